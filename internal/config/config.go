package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// reservedPrefixes - первые сегменты путей API; раздача файлов не может их занимать.
var reservedPrefixes = []string{"auth", "users", "images", "galleries", "articles", "healthz", "metrics"}

// DefaultJWTSecret - значение по умолчанию, которое нельзя оставлять в продакшене.
const DefaultJWTSecret = "dev-secret-change-me"

// Config - вся конфигурация сервиса. Передается в компоненты при создании,
// глобального доступа к переменным окружения из кода нет.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Validation ValidationConfig `mapstructure:"validation"`
	Security   SecurityConfig   `mapstructure:"security"`
	Email      EmailConfig      `mapstructure:"email"`
	HumanCheck HumanCheckConfig `mapstructure:"human_check"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Messages   Messages         `mapstructure:"messages"`
}

// AppConfig - базовые параметры процесса.
type AppConfig struct {
	Env          string `mapstructure:"env"`           // local / prod
	LogLevel     string `mapstructure:"log_level"`     // debug / info / warn / error
	HTTPAddr     string `mapstructure:"http_addr"`     // адрес прослушивания
	CookieSecret string `mapstructure:"cookie_secret"` // секрет подписи cookie сессий
	SecureCookie bool   `mapstructure:"secure_cookie"` // cookie только по HTTPS
}

// DatabaseConfig - путь к файлу SQLite.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// StorageConfig - размещение файлов. Каждый вид ресурса живет в своей папке
// внутри Root, временные загрузки - в TempDir.
type StorageConfig struct {
	Root              string   `mapstructure:"root"`
	TempDir           string   `mapstructure:"temp_dir"`
	BaseURL           string   `mapstructure:"base_url"`
	AllowedExtensions []string `mapstructure:"allowed_extensions"`
	MaxUploadSize     int64    `mapstructure:"max_upload_size"`
	ThumbnailWidth    int      `mapstructure:"thumbnail_width"`
	ThumbnailSuffix   string   `mapstructure:"thumbnail_suffix"`
}

// Dir возвращает папку хранения для вида ресурса.
func (s StorageConfig) Dir(kind string) string {
	return filepath.Join(s.Root, kind)
}

// Temp возвращает папку временных загрузок.
func (s StorageConfig) Temp() string {
	if s.TempDir != "" {
		return s.TempDir
	}
	return filepath.Join(s.Root, "tmp")
}

// ValidationConfig - границы длины строковых полей.
type ValidationConfig struct {
	MinLength     int `mapstructure:"min_length"`
	MaxLength     int `mapstructure:"max_length"`
	MaxTextLength int `mapstructure:"max_text_length"`
}

// SecurityConfig - токены доступа и сброса пароля.
type SecurityConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
	ResetTTL  time.Duration `mapstructure:"reset_ttl"`
}

// EmailConfig - SMTP и адреса писем.
type EmailConfig struct {
	SMTPHost     string        `mapstructure:"smtp_host"`
	SMTPPort     int           `mapstructure:"smtp_port"`
	SMTPUser     string        `mapstructure:"smtp_user"`
	SMTPPass     string        `mapstructure:"smtp_pass"`
	FromEmail    string        `mapstructure:"from_email"`
	ContactEmail string        `mapstructure:"contact_email"` // куда приходят сообщения с сайта
	ResetURL     string        `mapstructure:"reset_url"`     // страница сброса пароля, токен добавляется в query
	Timeout      time.Duration `mapstructure:"timeout"`
}

// HumanCheckConfig - проверка "человек ли это" (совместима с reCAPTCHA siteverify).
type HumanCheckConfig struct {
	Secret    string        `mapstructure:"secret"`
	VerifyURL string        `mapstructure:"verify_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	MinScore  float64       `mapstructure:"min_score"`
	Required  bool          `mapstructure:"required"` // требовать проверку при регистрации и отправке сообщений
}

// RedisConfig - необязательное хранилище токенов сброса. Пустой Addr - токены в SQLite.
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// Messages - тексты ответов клиенту для каждого исхода.
type Messages struct {
	ValidationFailed   string `mapstructure:"validation_failed"`
	NotFound           string `mapstructure:"not_found"`
	CreateFailed       string `mapstructure:"create_failed"`
	UpdateFailed       string `mapstructure:"update_failed"`
	DeleteFailed       string `mapstructure:"delete_failed"`
	Unauthorized       string `mapstructure:"unauthorized"`
	Forbidden          string `mapstructure:"forbidden"`
	InvalidCredentials string `mapstructure:"invalid_credentials"`
	HumanCheckFailed   string `mapstructure:"human_check_failed"`
	HumanCheckPassed   string `mapstructure:"human_check_passed"`
	InternalError      string `mapstructure:"internal_error"`
	ResetRequested     string `mapstructure:"reset_requested"`
	ResetDone          string `mapstructure:"reset_done"`
	TokenInvalid       string `mapstructure:"token_invalid"`
	TokenExpired       string `mapstructure:"token_expired"`
	TokenAlreadyUsed   string `mapstructure:"token_already_used"`
	MessageSent        string `mapstructure:"message_sent"`
	MailFailed         string `mapstructure:"mail_failed"`
}

// Default возвращает конфигурацию по умолчанию (для локального запуска и тестов).
func Default() *Config {
	return &Config{
		App: AppConfig{
			Env:          "local",
			LogLevel:     "info",
			HTTPAddr:     ":8080",
			CookieSecret: "fallback-secret-change-in-production",
		},
		Database: DatabaseConfig{
			Path: "data/portfolio.db",
		},
		Storage: StorageConfig{
			Root:              "uploads",
			BaseURL:           "/files",
			AllowedExtensions: []string{"jpg", "png", "gif"},
			MaxUploadSize:     10 << 20,
			ThumbnailWidth:    320,
			ThumbnailSuffix:   "_thumb",
		},
		Validation: ValidationConfig{
			MinLength:     2,
			MaxLength:     64,
			MaxTextLength: 5000,
		},
		Security: SecurityConfig{
			JWTSecret: DefaultJWTSecret,
			TokenTTL:  24 * time.Hour,
			ResetTTL:  time.Hour,
		},
		Email: EmailConfig{
			SMTPPort: 587,
			ResetURL: "http://localhost:8080/reset",
			Timeout:  10 * time.Second,
		},
		HumanCheck: HumanCheckConfig{
			VerifyURL: "https://www.google.com/recaptcha/api/siteverify",
			Timeout:   5 * time.Second,
		},
		Redis: RedisConfig{
			KeyPrefix: "portfolio:reset:",
		},
		Messages: Messages{
			ValidationFailed:   "Данные не прошли проверку.",
			NotFound:           "Запись не найдена.",
			CreateFailed:       "Не удалось создать запись.",
			UpdateFailed:       "Не удалось обновить запись.",
			DeleteFailed:       "Не удалось удалить запись.",
			Unauthorized:       "Требуется авторизация.",
			Forbidden:          "Недостаточно прав.",
			InvalidCredentials: "Неверный email или пароль.",
			HumanCheckFailed:   "Проверка на робота не пройдена.",
			HumanCheckPassed:   "Проверка пройдена.",
			InternalError:      "Внутренняя ошибка сервера.",
			ResetRequested:     "Если такой email зарегистрирован, письмо со ссылкой уже отправлено.",
			ResetDone:          "Пароль изменен.",
			TokenInvalid:       "Ссылка для сброса недействительна.",
			TokenExpired:       "Срок действия ссылки истек.",
			TokenAlreadyUsed:   "Ссылка уже была использована.",
			MessageSent:        "Сообщение отправлено.",
			MailFailed:         "Не удалось отправить письмо, попробуйте позже.",
		},
	}
}

// Load собирает конфигурацию: .env (если есть) -> значения по умолчанию ->
// файл конфигурации (если указан) -> переменные окружения.
// Ключ "storage.root" читается из переменной STORAGE_ROOT и т.д.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("ошибка чтения .env: %w", err)
	}

	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("ошибка чтения файла конфигурации %s: %w", configPath, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("ошибка разбора конфигурации: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет согласованность значений.
func (c *Config) Validate() error {
	if c.Security.JWTSecret == "" {
		return errors.New("security.jwt_secret не может быть пустым")
	}
	if c.Security.TokenTTL <= 0 || c.Security.ResetTTL <= 0 {
		return errors.New("security.token_ttl и security.reset_ttl должны быть положительными")
	}
	if c.Validation.MinLength < 0 || c.Validation.MinLength > c.Validation.MaxLength {
		return fmt.Errorf("некорректные границы длины: [%d, %d]", c.Validation.MinLength, c.Validation.MaxLength)
	}
	if c.Validation.MaxTextLength < c.Validation.MaxLength {
		return errors.New("validation.max_text_length меньше validation.max_length")
	}
	if c.Storage.Root == "" || c.Storage.Root == "/" || c.Storage.Root == "." {
		return fmt.Errorf("небезопасный storage.root: %q", c.Storage.Root)
	}
	if len(c.Storage.AllowedExtensions) == 0 {
		return errors.New("storage.allowed_extensions пуст")
	}
	return c.Storage.validateBaseURL()
}

// validateBaseURL: префикс раздачи файлов вида "/files", не "/" и не путь API.
func (s StorageConfig) validateBaseURL() error {
	base := s.BaseURL
	if !strings.HasPrefix(base, "/") || base == "/" || strings.HasSuffix(base, "/") {
		return fmt.Errorf("storage.base_url должен начинаться с '/' и не заканчиваться на '/': %q", base)
	}
	first, _, _ := strings.Cut(strings.TrimPrefix(base, "/"), "/")
	for _, p := range reservedPrefixes {
		if first == p {
			return fmt.Errorf("storage.base_url %q пересекается с маршрутами API", base)
		}
	}
	return nil
}

// IsProduction - true для окружения prod.
func (c *Config) IsProduction() bool {
	return c.App.Env == "prod"
}

// setDefaults регистрирует каждый ключ в viper. Без этого AutomaticEnv
// не увидит переменные окружения при Unmarshal.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("app.env", d.App.Env)
	v.SetDefault("app.log_level", d.App.LogLevel)
	v.SetDefault("app.http_addr", d.App.HTTPAddr)
	v.SetDefault("app.cookie_secret", d.App.CookieSecret)
	v.SetDefault("app.secure_cookie", d.App.SecureCookie)

	v.SetDefault("database.path", d.Database.Path)

	v.SetDefault("storage.root", d.Storage.Root)
	v.SetDefault("storage.temp_dir", d.Storage.TempDir)
	v.SetDefault("storage.base_url", d.Storage.BaseURL)
	v.SetDefault("storage.allowed_extensions", d.Storage.AllowedExtensions)
	v.SetDefault("storage.max_upload_size", d.Storage.MaxUploadSize)
	v.SetDefault("storage.thumbnail_width", d.Storage.ThumbnailWidth)
	v.SetDefault("storage.thumbnail_suffix", d.Storage.ThumbnailSuffix)

	v.SetDefault("validation.min_length", d.Validation.MinLength)
	v.SetDefault("validation.max_length", d.Validation.MaxLength)
	v.SetDefault("validation.max_text_length", d.Validation.MaxTextLength)

	v.SetDefault("security.jwt_secret", d.Security.JWTSecret)
	v.SetDefault("security.token_ttl", d.Security.TokenTTL)
	v.SetDefault("security.reset_ttl", d.Security.ResetTTL)

	v.SetDefault("email.smtp_host", d.Email.SMTPHost)
	v.SetDefault("email.smtp_port", d.Email.SMTPPort)
	v.SetDefault("email.smtp_user", d.Email.SMTPUser)
	v.SetDefault("email.smtp_pass", d.Email.SMTPPass)
	v.SetDefault("email.from_email", d.Email.FromEmail)
	v.SetDefault("email.contact_email", d.Email.ContactEmail)
	v.SetDefault("email.reset_url", d.Email.ResetURL)
	v.SetDefault("email.timeout", d.Email.Timeout)

	v.SetDefault("human_check.secret", d.HumanCheck.Secret)
	v.SetDefault("human_check.verify_url", d.HumanCheck.VerifyURL)
	v.SetDefault("human_check.timeout", d.HumanCheck.Timeout)
	v.SetDefault("human_check.min_score", d.HumanCheck.MinScore)
	v.SetDefault("human_check.required", d.HumanCheck.Required)

	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("redis.key_prefix", d.Redis.KeyPrefix)

	m := d.Messages
	v.SetDefault("messages.validation_failed", m.ValidationFailed)
	v.SetDefault("messages.not_found", m.NotFound)
	v.SetDefault("messages.create_failed", m.CreateFailed)
	v.SetDefault("messages.update_failed", m.UpdateFailed)
	v.SetDefault("messages.delete_failed", m.DeleteFailed)
	v.SetDefault("messages.unauthorized", m.Unauthorized)
	v.SetDefault("messages.forbidden", m.Forbidden)
	v.SetDefault("messages.invalid_credentials", m.InvalidCredentials)
	v.SetDefault("messages.human_check_failed", m.HumanCheckFailed)
	v.SetDefault("messages.human_check_passed", m.HumanCheckPassed)
	v.SetDefault("messages.internal_error", m.InternalError)
	v.SetDefault("messages.reset_requested", m.ResetRequested)
	v.SetDefault("messages.reset_done", m.ResetDone)
	v.SetDefault("messages.token_invalid", m.TokenInvalid)
	v.SetDefault("messages.token_expired", m.TokenExpired)
	v.SetDefault("messages.token_already_used", m.TokenAlreadyUsed)
	v.SetDefault("messages.message_sent", m.MessageSent)
	v.SetDefault("messages.mail_failed", m.MailFailed)
}

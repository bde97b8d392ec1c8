package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"portfolio/internal/database"
	"portfolio/internal/mailer"
	"portfolio/internal/metrics"
	"portfolio/internal/models"
	"portfolio/internal/services"
	"portfolio/internal/validation"

	"github.com/sirupsen/logrus"
)

const resetTokenBytes = 32

var (
	// ErrInvalidCredentials - неизвестный email или неверный пароль. Клиент не различает эти случаи.
	ErrInvalidCredentials = errors.New("неверный email или пароль")
	// ErrWeakPassword - новый пароль не проходит проверку стойкости.
	ErrWeakPassword = errors.New("слабый пароль")
)

// UserStore - то, что менеджеру нужно от хранилища пользователей.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUserPassword(ctx context.Context, email, passwordHash string) error
}

// ResetStore хранит токены сброса. Реализации: database.Store и RedisResetStore.
type ResetStore interface {
	CreatePasswordReset(ctx context.Context, r *models.PasswordReset) error
	ConsumePasswordReset(ctx context.Context, tokenHash string, now time.Time) (string, error)
	ReleasePasswordReset(ctx context.Context, tokenHash string) error
}

// Options - параметры сброса пароля.
type Options struct {
	ResetTTL    time.Duration
	ResetURL    string
	MailTimeout time.Duration
}

// Session - результат успешного входа.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *models.User
}

// Manager - вход и сброс пароля.
type Manager struct {
	users  UserStore
	resets ResetStore
	mail   mailer.Sender
	tokens *TokenIssuer
	opts   Options
	logger *logrus.Logger
	now    func() time.Time

	wg sync.WaitGroup
}

func NewManager(users UserStore, resets ResetStore, mail mailer.Sender, tokens *TokenIssuer, opts Options, logger *logrus.Logger) *Manager {
	if opts.ResetTTL <= 0 {
		opts.ResetTTL = time.Hour
	}
	if opts.MailTimeout <= 0 {
		opts.MailTimeout = 10 * time.Second
	}
	return &Manager{
		users:  users,
		resets: resets,
		mail:   mail,
		tokens: tokens,
		opts:   opts,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Tokens - выпускатель токенов доступа (нужен middleware).
func (m *Manager) Tokens() *TokenIssuer {
	return m.tokens
}

// Login проверяет пароль и выпускает токен доступа.
func (m *Manager) Login(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	user, err := m.users.GetUserByEmail(ctx, email)
	if err != nil {
		metrics.RecordAuth("login", false)
		return nil, fmt.Errorf("ошибка поиска пользователя при входе: %w", err)
	}
	if user == nil {
		burnPasswordCheck(password)
		metrics.RecordAuth("login", false)
		m.logger.Info("Вход отклонен: неверные учетные данные")
		return nil, ErrInvalidCredentials
	}
	if !CheckPasswordHash(password, user.PasswordHash) {
		metrics.RecordAuth("login", false)
		m.logger.WithField("user_id", user.ID).Info("Вход отклонен: неверные учетные данные")
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := m.tokens.Issue(user.ID, user.Role)
	if err != nil {
		metrics.RecordAuth("login", false)
		return nil, err
	}
	metrics.RecordAuth("login", true)
	m.logger.WithFields(logrus.Fields{"user_id": user.ID, "role": user.Role}).Info("Пользователь вошел в систему")
	return &Session{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// RequestPasswordReset выпускает токен сброса и отправляет ссылку письмом.
// Вызывающему ничего не сообщается: ответ клиенту одинаков для
// существующего и несуществующего email. Письмо уходит в фоне.
func (m *Manager) RequestPasswordReset(ctx context.Context, email string) {
	email = normalizeEmail(email)
	user, err := m.users.GetUserByEmail(ctx, email)
	if err != nil {
		metrics.RecordAuth("reset_request", false)
		m.logger.WithError(err).Error("Ошибка поиска пользователя для сброса пароля")
		return
	}
	if user == nil {
		metrics.RecordAuth("reset_request", true)
		m.logger.Debug("Сброс пароля запрошен для незарегистрированного email")
		return
	}

	token, err := services.GenerateSecureToken(resetTokenBytes)
	if err != nil {
		metrics.RecordAuth("reset_request", false)
		m.logger.WithError(err).Error("Не удалось сгенерировать токен сброса")
		return
	}
	reset := &models.PasswordReset{
		TokenHash: hashResetToken(token),
		Email:     user.Email,
		ExpiresAt: m.now().Add(m.opts.ResetTTL),
	}
	if err := m.resets.CreatePasswordReset(ctx, reset); err != nil {
		metrics.RecordAuth("reset_request", false)
		m.logger.WithError(err).Error("Не удалось сохранить токен сброса")
		return
	}

	msg := mailer.Message{
		To:      user.Email,
		Subject: "Сброс пароля",
		Body: fmt.Sprintf("Здравствуйте, %s!\n\nЧтобы задать новый пароль, перейдите по ссылке:\n%s\n\nСсылка действует до %s (UTC). Если вы не запрашивали сброс, просто проигнорируйте письмо.\n",
			user.Name, m.resetLink(token), reset.ExpiresAt.Format("02.01.2006 15:04")),
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), m.opts.MailTimeout)
		defer cancel()
		if err := m.mail.Send(ctx, msg); err != nil {
			metrics.RecordAuth("reset_request", false)
			m.logger.WithError(err).WithField("user_id", user.ID).Error("Письмо для сброса пароля не отправлено")
			return
		}
		metrics.RecordAuth("reset_request", true)
		m.logger.WithField("user_id", user.ID).Info("Ссылка для сброса пароля отправлена")
	}()
}

// RedeemPasswordReset гасит токен и устанавливает новый пароль.
// Если пароль сохранить не удалось, погашение снимается и ссылкой можно
// воспользоваться снова.
func (m *Manager) RedeemPasswordReset(ctx context.Context, token, newPassword string) (err error) {
	defer func() { metrics.RecordAuth("reset_redeem", err == nil) }()

	if !validation.CheckPassword(newPassword) {
		return ErrWeakPassword
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return models.ErrTokenInvalid
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}

	tokenHash := hashResetToken(token)
	email, err := m.resets.ConsumePasswordReset(ctx, tokenHash, m.now())
	if err != nil {
		return err
	}

	if err := m.users.UpdateUserPassword(ctx, email, hash); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			// Пользователь удален после выпуска токена
			return models.ErrTokenInvalid
		}
		if relErr := m.resets.ReleasePasswordReset(ctx, tokenHash); relErr != nil {
			m.logger.WithError(relErr).Error("Не удалось снять погашение токена сброса")
		}
		return fmt.Errorf("ошибка сохранения нового пароля: %w", err)
	}

	m.logger.Info("Пароль изменен по ссылке сброса")
	return nil
}

// Wait дожидается фоновой отправки писем. Вызывается при остановке сервиса.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) resetLink(token string) string {
	u, err := url.Parse(m.opts.ResetURL)
	if err != nil {
		return m.opts.ResetURL + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// hashResetToken - в хранилище попадает только SHA-256 от токена.
func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

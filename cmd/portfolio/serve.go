package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"portfolio/internal/auth"
	"portfolio/internal/config"
	"portfolio/internal/database"
	"portfolio/internal/handlers"
	"portfolio/internal/mailer"
	"portfolio/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Запустить HTTP-сервер",
	RunE:    runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.IsProduction() && cfg.Security.JWTSecret == config.DefaultJWTSecret {
		return errors.New("в prod нужно задать SECURITY_JWT_SECRET")
	}
	if cfg.App.CookieSecret == config.Default().App.CookieSecret {
		logger.Warn("Используется секрет cookie по умолчанию, задайте APP_COOKIE_SECRET")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Папку БД создаем до открытия БД
	if err := services.EnsureDir(filepath.Dir(cfg.Database.Path), logger); err != nil {
		return err
	}
	store, err := database.Open(cfg.Database.Path, logger)
	if err != nil {
		return fmt.Errorf("ошибка инициализации базы данных: %w", err)
	}
	defer store.Close()

	assets, err := services.NewManager(cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("ошибка инициализации хранилища файлов: %w", err)
	}

	resets, closeResets, err := newResetStore(ctx, cfg.Redis, store, logger)
	if err != nil {
		return err
	}
	defer closeResets()

	smtp := mailer.NewSMTPSender(cfg.Email, logger)
	if !smtp.Configured() {
		logger.Warn("SMTP не настроен: письма сброса пароля и сообщения с сайта не будут отправляться")
	}

	creds := auth.NewManager(store, resets, smtp, auth.NewTokenIssuer(cfg.Security.JWTSecret, cfg.Security.TokenTTL), auth.Options{
		ResetTTL:    cfg.Security.ResetTTL,
		ResetURL:    cfg.Email.ResetURL,
		MailTimeout: cfg.Email.Timeout,
	}, logger)
	defer creds.Wait()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router, err := handlers.NewRouter(handlers.New(handlers.Deps{
		Config:      cfg,
		Store:       store,
		Assets:      assets,
		Credentials: creds,
		Human:       auth.NewRecaptchaVerifier(cfg.HumanCheck, logger),
		Mailer:      smtp,
		Logger:      logger,
	}))
	if err != nil {
		return fmt.Errorf("ошибка настройки маршрутов: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.App.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.App.HTTPAddr).Info("Сервер запускается")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("не удалось запустить сервер: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Получен сигнал остановки, завершаем работу")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ошибка остановки сервера: %w", err)
	}
	logger.Info("Сервер остановлен")
	return nil
}

// newResetStore выбирает хранилище токенов сброса: Redis, если задан адрес, иначе SQLite.
func newResetStore(ctx context.Context, cfg config.RedisConfig, store *database.Store, logger *logrus.Logger) (auth.ResetStore, func(), error) {
	if cfg.Addr == "" {
		return store, func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("redis недоступен (%s): %w", cfg.Addr, err)
	}
	logger.WithField("addr", cfg.Addr).Info("Токены сброса хранятся в Redis")
	return auth.NewRedisResetStore(rdb, cfg.KeyPrefix), func() { rdb.Close() }, nil
}

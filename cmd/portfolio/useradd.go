package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"portfolio/internal/auth"
	"portfolio/internal/database"
	"portfolio/internal/models"
	"portfolio/internal/services"
	"portfolio/internal/validation"

	"github.com/spf13/cobra"
)

var (
	useraddName     string
	useraddEmail    string
	useraddPassword string
	useraddAdmin    bool
)

var useraddCmd = &cobra.Command{
	Use:   "useradd",
	Short: "Создать пользователя",
	Long: `Создает пользователя напрямую в базе, без проверки на робота.
Нужен для первого администратора: регистрация через API создает только
обычных пользователей.`,
	RunE: runUseradd,
}

func init() {
	useraddCmd.Flags().StringVar(&useraddName, "name", "", "имя пользователя")
	useraddCmd.Flags().StringVar(&useraddEmail, "email", "", "email")
	useraddCmd.Flags().StringVar(&useraddPassword, "password", "", "пароль")
	useraddCmd.Flags().BoolVar(&useraddAdmin, "admin", false, "выдать роль администратора")
	useraddCmd.MarkFlagRequired("name")
	useraddCmd.MarkFlagRequired("email")
	useraddCmd.MarkFlagRequired("password")
	rootCmd.AddCommand(useraddCmd)
}

func runUseradd(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	name := strings.TrimSpace(useraddName)
	email := strings.ToLower(strings.TrimSpace(useraddEmail))
	if !validation.CheckRange(name, cfg.Validation.MinLength, cfg.Validation.MaxLength) {
		return fmt.Errorf("длина имени должна быть от %d до %d символов", cfg.Validation.MinLength, cfg.Validation.MaxLength)
	}
	if !validation.CheckEmail(email) {
		return errors.New("некорректный email")
	}
	if !validation.CheckPassword(useraddPassword) {
		return errors.New("пароль должен быть от 8 до 72 байт и содержать строчные и заглавные буквы, цифры и символы")
	}

	if err := services.EnsureDir(filepath.Dir(cfg.Database.Path), logger); err != nil {
		return err
	}
	store, err := database.Open(cfg.Database.Path, logger)
	if err != nil {
		return fmt.Errorf("ошибка инициализации базы данных: %w", err)
	}
	defer store.Close()

	hash, err := auth.HashPassword(useraddPassword)
	if err != nil {
		return err
	}
	user := &models.User{Name: name, Email: email, PasswordHash: hash, Role: models.RoleUser}
	if useraddAdmin {
		user.Role = models.RoleAdmin
	}
	if err := store.CreateUser(cmd.Context(), user); err != nil {
		if errors.Is(err, database.ErrConflict) {
			return errors.New("пользователь с таким именем или email уже существует")
		}
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Создан пользователь %s (ID %d, роль %s)\n", user.Name, user.ID, user.Role)
	return nil
}

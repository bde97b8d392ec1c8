package main

import (
	"fmt"
	"os"

	"portfolio/internal/config"
	"portfolio/internal/logging"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "portfolio",
	Short: "Бэкенд фотопортфолио: статьи, галереи, изображения и пользователи",
	Long: `portfolio - HTTP API для сайта-портфолио фотографа.

Конфигурация читается из .env, файла (--config или PORTFOLIO_CONFIG)
и переменных окружения вида STORAGE_ROOT, SECURITY_JWT_SECRET.

  portfolio serve      запустить HTTP-сервер
  portfolio useradd    создать пользователя (например, первого администратора)`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "файл конфигурации (по умолчанию PORTFOLIO_CONFIG)")
}

// loadConfig читает конфигурацию и создает логгер по ее настройкам.
func loadConfig() (*config.Config, *logrus.Logger, error) {
	path := cfgFile
	if path == "" {
		path = os.Getenv("PORTFOLIO_CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logging.New(cfg.App.Env, cfg.App.LogLevel), nil
}

// main - точка входа: разбор команд cobra.
func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

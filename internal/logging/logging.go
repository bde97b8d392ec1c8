package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New создает логгер: JSON в prod, текст локально. Неизвестный уровень - info.
func New(env, level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	if env == "prod" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
		logger.WithField("level", level).Warn("Неизвестный уровень логирования, используется info")
	}
	logger.SetLevel(lvl)
	return logger
}

// Discard - логгер, который ничего не пишет. Для тестов.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

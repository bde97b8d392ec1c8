// Package mailer отправляет письма через SMTP.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"portfolio/internal/config"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// ErrNotConfigured - SMTP не настроен, письмо не может быть отправлено.
var ErrNotConfigured = errors.New("SMTP не настроен")

// Message - одно письмо в виде простого текста.
type Message struct {
	To      string
	Subject string
	Body    string
	ReplyTo string
}

// Sender отправляет письма. Реализация должна уважать отмену ctx.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender - Sender поверх gomail.
type SMTPSender struct {
	cfg    config.EmailConfig
	logger *logrus.Logger
}

func NewSMTPSender(cfg config.EmailConfig, logger *logrus.Logger) *SMTPSender {
	return &SMTPSender{cfg: cfg, logger: logger}
}

// Configured - true, если заданы сервер и адрес отправителя.
func (s *SMTPSender) Configured() bool {
	return s.cfg.SMTPHost != "" && s.cfg.FromEmail != ""
}

// Send отправляет письмо. gomail не принимает контекст, поэтому
// отправка идет в отдельной горутине, а ожидание ограничено ctx и cfg.Timeout.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if !s.Configured() {
		return ErrNotConfigured
	}
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("пустой адрес получателя")
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	m := s.buildMessage(msg)
	d := gomail.NewDialer(s.cfg.SMTPHost, s.cfg.SMTPPort, s.cfg.SMTPUser, s.cfg.SMTPPass)

	done := make(chan error, 1)
	go func() { done <- d.DialAndSend(m) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("ошибка отправки письма: %w", err)
		}
	case <-ctx.Done():
		return fmt.Errorf("отправка письма прервана: %w", ctx.Err())
	}

	s.logger.WithFields(logrus.Fields{"to": msg.To, "subject": msg.Subject}).Info("Письмо отправлено")
	return nil
}

func (s *SMTPSender) buildMessage(msg Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.FromEmail)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	if msg.ReplyTo != "" {
		m.SetHeader("Reply-To", msg.ReplyTo)
	}
	m.SetBody("text/plain", msg.Body)
	return m
}

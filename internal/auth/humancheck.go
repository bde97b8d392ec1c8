package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"portfolio/internal/config"
	"portfolio/internal/metrics"

	"github.com/sirupsen/logrus"
)

// HumanVerifier отвечает, прошел ли клиент проверку "человек ли это".
type HumanVerifier interface {
	Verify(ctx context.Context, clientToken string) bool
}

// RecaptchaVerifier проверяет токен клиента через siteverify.
// Любая ошибка сети, таймаут или неразборчивый ответ - отказ.
type RecaptchaVerifier struct {
	cfg    config.HumanCheckConfig
	client *http.Client
	logger *logrus.Logger
}

func NewRecaptchaVerifier(cfg config.HumanCheckConfig, logger *logrus.Logger) *RecaptchaVerifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RecaptchaVerifier{cfg: cfg, client: &http.Client{Timeout: timeout}, logger: logger}
}

type siteverifyResponse struct {
	Success    bool     `json:"success"`
	Score      *float64 `json:"score"`
	ErrorCodes []string `json:"error-codes"`
}

func (v *RecaptchaVerifier) Verify(ctx context.Context, clientToken string) (ok bool) {
	defer func() { metrics.RecordAuth("human_check", ok) }()

	clientToken = strings.TrimSpace(clientToken)
	if clientToken == "" {
		return false
	}
	if v.cfg.Secret == "" {
		v.logger.Warn("Секрет проверки на робота не задан, проверка отклонена")
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, v.client.Timeout)
	defer cancel()

	form := url.Values{"secret": {v.cfg.Secret}, "response": {clientToken}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.cfg.VerifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		v.logger.WithError(err).Error("Не удалось собрать запрос проверки на робота")
		return false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		v.logger.WithError(err).Warn("Сервис проверки на робота недоступен")
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		v.logger.WithField("status", resp.StatusCode).Warn("Сервис проверки на робота вернул ошибку")
		return false
	}

	var body siteverifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		v.logger.WithError(err).Warn("Неразборчивый ответ сервиса проверки на робота")
		return false
	}
	if !body.Success {
		v.logger.WithField("codes", body.ErrorCodes).Info("Проверка на робота не пройдена")
		return false
	}
	if v.cfg.MinScore > 0 {
		score := "нет"
		if body.Score != nil {
			score = fmt.Sprintf("%.2f", *body.Score)
		}
		if body.Score == nil || *body.Score < v.cfg.MinScore {
			v.logger.WithField("score", score).Info("Проверка на робота: низкая оценка")
			return false
		}
	}
	return true
}

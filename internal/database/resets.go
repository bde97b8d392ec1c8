package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"portfolio/internal/models"
)

// CreatePasswordReset сохраняет выпущенный токен сброса (только хеш).
func (s *Store) CreatePasswordReset(ctx context.Context, r *models.PasswordReset) error {
	r.CreatedAt = s.now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO password_resets (token_hash, email, expires_at, used_at, created_at) VALUES (?, ?, ?, NULL, ?)`,
		r.TokenHash, r.Email, r.ExpiresAt.UTC(), r.CreatedAt)
	if err != nil {
		return mutationError("CreatePasswordReset", err)
	}
	return nil
}

// ConsumePasswordReset гасит токен и возвращает email, к которому он привязан.
// Переходы: выпущен -> погашен (только если не истек) или выпущен -> истек.
// Оба конечные; повторное погашение дает ErrTokenAlreadyUsed.
func (s *Store) ConsumePasswordReset(ctx context.Context, tokenHash string, now time.Time) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("ошибка начала транзакции ConsumePasswordReset: %w", err)
	}
	defer tx.Rollback()

	var (
		email     string
		expiresAt time.Time
		usedAt    sql.NullTime
	)
	err = tx.QueryRowContext(ctx,
		`SELECT email, expires_at, used_at FROM password_resets WHERE token_hash = ?`, tokenHash).
		Scan(&email, &expiresAt, &usedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", models.ErrTokenInvalid
		}
		return "", fmt.Errorf("ошибка сканирования ConsumePasswordReset: %w", err)
	}
	if usedAt.Valid {
		return "", models.ErrTokenAlreadyUsed
	}
	if now.After(expiresAt) {
		return "", models.ErrTokenExpired
	}

	// Условие used_at IS NULL защищает от гонки двух одновременных погашений.
	res, err := tx.ExecContext(ctx,
		`UPDATE password_resets SET used_at = ? WHERE token_hash = ? AND used_at IS NULL`, now.UTC(), tokenHash)
	if err != nil {
		return "", fmt.Errorf("ошибка выполнения запроса ConsumePasswordReset: %w", err)
	}
	if err := expectOneRow("ConsumePasswordReset", res); err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", models.ErrTokenAlreadyUsed
		}
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("ошибка фиксации транзакции ConsumePasswordReset: %w", err)
	}
	return email, nil
}

// ReleasePasswordReset снимает отметку о погашении, если смена пароля
// после погашения не удалась.
func (s *Store) ReleasePasswordReset(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE password_resets SET used_at = NULL WHERE token_hash = ?`, tokenHash)
	if err != nil {
		return fmt.Errorf("ошибка выполнения запроса ReleasePasswordReset: %w", err)
	}
	return nil
}

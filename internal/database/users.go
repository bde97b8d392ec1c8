package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"portfolio/internal/models"

	"github.com/sirupsen/logrus"
)

const userColumns = `id, name, email, COALESCE(image, ''), password_hash, role, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Image, &u.PasswordHash, &u.Role, &u.CreatedAt); err != nil {
		return nil, err
	}
	return u, nil
}

// ListUsers возвращает всех пользователей по возрастанию ID.
func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса ListUsers: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования ListUsers: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// GetUser ищет пользователя по ID. Нет записи - ErrNotFound.
func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка сканирования GetUser для ID %d: %w", id, err)
	}
	return u, nil
}

// GetUserByEmail ищет пользователя по email.
// Пользователь не найден - возвращает nil, nil: для входа это не ошибка БД.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка сканирования GetUserByEmail: %w", err)
	}
	return u, nil
}

// CreateUser вставляет пользователя и заполняет ID и CreatedAt.
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	u.CreatedAt = s.now()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (name, email, image, password_hash, role, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		u.Name, u.Email, nullIfEmpty(u.Image), u.PasswordHash, u.Role, u.CreatedAt)
	if err != nil {
		return mutationError("CreateUser", err)
	}
	if u.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("ошибка при получении ID пользователя CreateUser: %w", err)
	}

	s.logger.WithFields(logrus.Fields{"user_id": u.ID, "name": u.Name}).Info("Создан пользователь")
	return nil
}

// UpdateUser сохраняет имя, email, аватар, хеш пароля и роль.
func (s *Store) UpdateUser(ctx context.Context, u *models.User) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET name = ?, email = ?, image = ?, password_hash = ?, role = ? WHERE id = ?`,
		u.Name, u.Email, nullIfEmpty(u.Image), u.PasswordHash, u.Role, u.ID)
	if err != nil {
		return mutationError("UpdateUser", err)
	}
	return expectOneRow("UpdateUser", res)
}

// UpdateUserPassword меняет хеш пароля пользователя с данным email.
func (s *Store) UpdateUserPassword(ctx context.Context, email, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE email = ?`, passwordHash, email)
	if err != nil {
		return mutationError("UpdateUserPassword", err)
	}
	return expectOneRow("UpdateUserPassword", res)
}

// DeleteUser удаляет пользователя. Повторное удаление - ErrNotFound.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("ошибка выполнения запроса DeleteUser для ID %d: %w", id, err)
	}
	return expectOneRow("DeleteUser", res)
}

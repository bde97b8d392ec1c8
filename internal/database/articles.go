package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"portfolio/internal/models"
)

const articleColumns = `id, name, text, COALESCE(image, ''), alt, url, category, likes, created_at, updated_at`

func scanArticle(row rowScanner) (*models.Article, error) {
	a := &models.Article{}
	if err := row.Scan(&a.ID, &a.Name, &a.Text, &a.Image, &a.Alt, &a.URL, &a.Category, &a.Likes, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return a, nil
}

// ListArticles возвращает статьи, новые первыми. Пустая категория - все статьи.
func (s *Store) ListArticles(ctx context.Context, category string) ([]models.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles`
	args := []any{}
	if category != "" {
		query += ` WHERE category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса ListArticles: %w", err)
	}
	defer rows.Close()

	articles := []models.Article{}
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования ListArticles: %w", err)
		}
		articles = append(articles, *a)
	}
	return articles, rows.Err()
}

// GetArticle ищет статью по ID.
func (s *Store) GetArticle(ctx context.Context, id int64) (*models.Article, error) {
	a, err := scanArticle(s.db.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка сканирования GetArticle для ID %d: %w", id, err)
	}
	return a, nil
}

// CreateArticle вставляет статью со счетчиком лайков 0.
func (s *Store) CreateArticle(ctx context.Context, a *models.Article) error {
	a.CreatedAt = s.now()
	a.UpdatedAt = a.CreatedAt
	a.Likes = 0
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO articles (name, text, image, alt, url, category, likes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		a.Name, a.Text, nullIfEmpty(a.Image), a.Alt, a.URL, a.Category, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return mutationError("CreateArticle", err)
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("ошибка получения ID статьи CreateArticle: %w", err)
	}
	return nil
}

// UpdateArticle сохраняет поля статьи; счетчик лайков не трогает.
func (s *Store) UpdateArticle(ctx context.Context, a *models.Article) error {
	a.UpdatedAt = s.now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE articles SET name = ?, text = ?, image = ?, alt = ?, url = ?, category = ?, updated_at = ? WHERE id = ?`,
		a.Name, a.Text, nullIfEmpty(a.Image), a.Alt, a.URL, a.Category, a.UpdatedAt, a.ID)
	if err != nil {
		return mutationError("UpdateArticle", err)
	}
	return expectOneRow("UpdateArticle", res)
}

// LikeArticle атомарно увеличивает счетчик и возвращает новое значение.
func (s *Store) LikeArticle(ctx context.Context, id int64) (int64, error) {
	var likes int64
	err := s.db.QueryRowContext(ctx, `UPDATE articles SET likes = likes + 1 WHERE id = ? RETURNING likes`, id).Scan(&likes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("ошибка выполнения запроса LikeArticle для ID %d: %w", id, err)
	}
	return likes, nil
}

// DeleteArticle удаляет статью.
func (s *Store) DeleteArticle(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM articles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("ошибка выполнения запроса DeleteArticle для ID %d: %w", id, err)
	}
	return expectOneRow("DeleteArticle", res)
}

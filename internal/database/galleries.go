package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"portfolio/internal/models"
)

// Обложка: выбранное изображение, если оно все еще в галерее, иначе первое по ID.
const gallerySelect = `
	SELECT g.id, g.name, g.author, g.cover_image_id, g.created_at,
		COALESCE(
			(SELECT i.url FROM images i WHERE i.id = g.cover_image_id AND i.gallery_id = g.id),
			(SELECT i.url FROM images i WHERE i.gallery_id = g.id ORDER BY i.id LIMIT 1),
			''
		)
	FROM galleries g`

func scanGallery(row rowScanner) (*models.Gallery, error) {
	g := &models.Gallery{}
	var cover sql.NullInt64
	if err := row.Scan(&g.ID, &g.Name, &g.Author, &cover, &g.CreatedAt, &g.Cover); err != nil {
		return nil, err
	}
	if cover.Valid {
		id := cover.Int64
		g.CoverImageID = &id
	}
	return g, nil
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

// ListGalleries возвращает все галереи с вычисленной обложкой.
func (s *Store) ListGalleries(ctx context.Context) ([]models.Gallery, error) {
	rows, err := s.db.QueryContext(ctx, gallerySelect+` ORDER BY g.id`)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса ListGalleries: %w", err)
	}
	defer rows.Close()

	galleries := []models.Gallery{}
	for rows.Next() {
		g, err := scanGallery(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования ListGalleries: %w", err)
		}
		galleries = append(galleries, *g)
	}
	return galleries, rows.Err()
}

// GetGallery ищет галерею по ID.
func (s *Store) GetGallery(ctx context.Context, id int64) (*models.Gallery, error) {
	g, err := scanGallery(s.db.QueryRowContext(ctx, gallerySelect+` WHERE g.id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка сканирования GetGallery для ID %d: %w", id, err)
	}
	return g, nil
}

// CreateGallery вставляет галерею.
func (s *Store) CreateGallery(ctx context.Context, g *models.Gallery) error {
	g.CreatedAt = s.now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO galleries (name, author, cover_image_id, created_at) VALUES (?, ?, ?, ?)`,
		g.Name, g.Author, nullableID(g.CoverImageID), g.CreatedAt)
	if err != nil {
		return mutationError("CreateGallery", err)
	}
	if g.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("ошибка получения ID галереи CreateGallery: %w", err)
	}
	return nil
}

// UpdateGallery сохраняет имя, автора и выбранную обложку.
func (s *Store) UpdateGallery(ctx context.Context, g *models.Gallery) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE galleries SET name = ?, author = ?, cover_image_id = ? WHERE id = ?`,
		g.Name, g.Author, nullableID(g.CoverImageID), g.ID)
	if err != nil {
		return mutationError("UpdateGallery", err)
	}
	return expectOneRow("UpdateGallery", res)
}

// DeleteGallery удаляет галерею вместе с ее изображениями в одной транзакции
// и возвращает удаленные записи изображений: их файлы вызывающий код
// удаляет только после фиксации.
func (s *Store) DeleteGallery(ctx context.Context, id int64) ([]models.Image, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка начала транзакции DeleteGallery: %w", err)
	}
	// Если Commit не вызван, транзакция откатывается.
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT `+imageColumns+` FROM images WHERE gallery_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса изображений DeleteGallery: %w", err)
	}
	removed := []models.Image{}
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("ошибка сканирования DeleteGallery: %w", err)
		}
		removed = append(removed, *img)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения изображений DeleteGallery: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM galleries WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса DeleteGallery для ID %d: %w", id, err)
	}
	if err := expectOneRow("DeleteGallery", res); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM images WHERE gallery_id = ?`, id); err != nil {
		return nil, fmt.Errorf("ошибка удаления изображений галереи %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("ошибка фиксации транзакции DeleteGallery: %w", err)
	}
	return removed, nil
}

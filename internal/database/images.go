package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"portfolio/internal/models"

	"github.com/sirupsen/logrus"
)

const imageColumns = `id, name, url, description, gallery_id, created_at`

func scanImage(row rowScanner) (*models.Image, error) {
	img := &models.Image{}
	if err := row.Scan(&img.ID, &img.Name, &img.URL, &img.Description, &img.GalleryID, &img.CreatedAt); err != nil {
		return nil, err
	}
	return img, nil
}

func (s *Store) queryImages(ctx context.Context, op, query string, args ...any) ([]models.Image, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса %s: %w", op, err)
	}
	defer rows.Close()

	images := []models.Image{}
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования %s: %w", op, err)
		}
		images = append(images, *img)
	}
	return images, rows.Err()
}

// ListImages возвращает все изображения.
func (s *Store) ListImages(ctx context.Context) ([]models.Image, error) {
	return s.queryImages(ctx, "ListImages", `SELECT `+imageColumns+` FROM images ORDER BY id`)
}

// ListImagesByGallery возвращает изображения одной галереи.
func (s *Store) ListImagesByGallery(ctx context.Context, galleryID int64) ([]models.Image, error) {
	return s.queryImages(ctx, "ListImagesByGallery",
		`SELECT `+imageColumns+` FROM images WHERE gallery_id = ? ORDER BY id`, galleryID)
}

// GetImage ищет изображение по ID.
func (s *Store) GetImage(ctx context.Context, id int64) (*models.Image, error) {
	img, err := scanImage(s.db.QueryRowContext(ctx, `SELECT `+imageColumns+` FROM images WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка сканирования GetImage для ID %d: %w", id, err)
	}
	return img, nil
}

// CreateImage вставляет запись об изображении.
func (s *Store) CreateImage(ctx context.Context, img *models.Image) error {
	img.CreatedAt = s.now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO images (name, url, description, gallery_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		img.Name, img.URL, img.Description, img.GalleryID, img.CreatedAt)
	if err != nil {
		return mutationError("CreateImage", err)
	}
	if img.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("ошибка получения ID записи изображения CreateImage: %w", err)
	}

	s.logger.WithFields(logrus.Fields{"image_id": img.ID, "url": img.URL, "gallery_id": img.GalleryID}).Info("Запись об изображении создана")
	return nil
}

// UpdateImage сохраняет поля изображения, включая имя файла.
func (s *Store) UpdateImage(ctx context.Context, img *models.Image) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE images SET name = ?, url = ?, description = ?, gallery_id = ? WHERE id = ?`,
		img.Name, img.URL, img.Description, img.GalleryID, img.ID)
	if err != nil {
		return mutationError("UpdateImage", err)
	}
	return expectOneRow("UpdateImage", res)
}

// DeleteImage удаляет запись. Файл удаляет вызывающий код после успеха.
func (s *Store) DeleteImage(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM images WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("ошибка выполнения запроса DeleteImage для ID %d: %w", id, err)
	}
	return expectOneRow("DeleteImage", res)
}

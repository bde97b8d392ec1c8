package handlers

import (
	"errors"
	"net/http"
	"strings"

	"portfolio/internal/database"
	"portfolio/internal/models"
	"portfolio/internal/services"
	"portfolio/internal/validation"

	"github.com/gin-gonic/gin"
)

type galleryRequest struct {
	Name   string `json:"name"`
	Author string `json:"author"`
	Cover  *int64 `json:"cover"`
}

func galleryRecords(galleries []models.Gallery) []validation.Record {
	records := make([]validation.Record, 0, len(galleries))
	for _, g := range galleries {
		records = append(records, validation.Record{ID: g.ID, Name: g.Name})
	}
	return records
}

// checkGallery проверяет поля, уникальность названия и обложку:
// обложкой может быть только изображение этой же галереи.
func (h *Handler) checkGallery(c *gin.Context, g *models.Gallery) bool {
	if !h.checkName(g.Name) || !h.checkName(g.Author) {
		h.validationFailed(c, "длина названия или автора вне допустимых границ")
		return false
	}
	if g.CoverImageID != nil {
		img, err := h.store.GetImage(c.Request.Context(), *g.CoverImageID)
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			h.internalError(c, "Ошибка чтения изображения", err)
			return false
		}
		if err != nil || img.GalleryID != g.ID {
			h.validationFailed(c, "обложка должна быть изображением этой галереи")
			return false
		}
	}

	existing, err := h.store.ListGalleries(c.Request.Context())
	if err != nil {
		h.internalError(c, "Ошибка чтения галерей", err)
		return false
	}
	if _, found := validation.FindCollision(g.Name, "", galleryRecords(existing), g.ID); found {
		h.validationFailed(c, "галерея с таким названием уже есть")
		return false
	}
	return true
}

func (h *Handler) ListGalleries(c *gin.Context) {
	galleries, err := h.store.ListGalleries(c.Request.Context())
	if err != nil {
		h.internalError(c, "Ошибка чтения галерей", err)
		return
	}
	c.JSON(http.StatusOK, galleries)
}

func (h *Handler) GetGallery(c *gin.Context) {
	id, ok := h.paramID(c)
	if !ok {
		return
	}
	g, err := h.store.GetGallery(c.Request.Context(), id)
	if err != nil {
		h.lookupFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

// ListGalleryImages - изображения одной галереи.
func (h *Handler) ListGalleryImages(c *gin.Context) {
	id, ok := h.paramID(c)
	if !ok {
		return
	}
	if _, err := h.store.GetGallery(c.Request.Context(), id); err != nil {
		h.lookupFailed(c, err)
		return
	}
	images, err := h.store.ListImagesByGallery(c.Request.Context(), id)
	if err != nil {
		h.internalError(c, "Ошибка чтения изображений", err)
		return
	}
	c.JSON(http.StatusOK, images)
}

func (h *Handler) CreateGallery(c *gin.Context) {
	var req galleryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.validationFailed(c, "некорректное тело запроса: "+err.Error())
		return
	}
	// У новой галереи еще нет изображений, обложку задают через PUT.
	if req.Cover != nil {
		h.validationFailed(c, "обложку можно задать только после добавления изображений в галерею")
		return
	}
	g := &models.Gallery{
		Name:   strings.TrimSpace(req.Name),
		Author: strings.TrimSpace(req.Author),
	}
	if !h.checkGallery(c, g) {
		return
	}
	if err := h.store.CreateGallery(c.Request.Context(), g); err != nil {
		h.mutationFailed(c, "CreateGallery", err, h.msg.CreateFailed)
		return
	}
	c.JSON(http.StatusCreated, g)
}

func (h *Handler) UpdateGallery(c *gin.Context) {
	id, ok := h.paramID(c)
	if !ok {
		return
	}
	var req galleryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.validationFailed(c, "некорректное тело запроса: "+err.Error())
		return
	}

	g, err := h.store.GetGallery(c.Request.Context(), id)
	if err != nil {
		h.lookupFailed(c, err)
		return
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		g.Name = name
	}
	if author := strings.TrimSpace(req.Author); author != "" {
		g.Author = author
	}
	if req.Cover != nil {
		g.CoverImageID = req.Cover
	}
	if !h.checkGallery(c, g) {
		return
	}
	if err := h.store.UpdateGallery(c.Request.Context(), g); err != nil {
		h.mutationFailed(c, "UpdateGallery", err, h.msg.UpdateFailed)
		return
	}

	// Обложка вычисляется при чтении
	if fresh, err := h.store.GetGallery(c.Request.Context(), id); err == nil {
		g = fresh
	}
	c.JSON(http.StatusOK, g)
}

// DeleteGallery удаляет галерею вместе с изображениями, затем их файлы.
func (h *Handler) DeleteGallery(c *gin.Context) {
	id, ok := h.paramID(c)
	if !ok {
		return
	}
	removed, err := h.store.DeleteGallery(c.Request.Context(), id)
	if err != nil {
		h.mutationFailed(c, "DeleteGallery", err, h.msg.DeleteFailed)
		return
	}
	for _, img := range removed {
		if err := h.assets.Retire(services.KindImages, img.URL); err != nil {
			h.logger.WithError(err).WithField("image_id", img.ID).Warn("Файл изображения удаленной галереи остался на диске")
		}
	}
	c.Status(http.StatusNoContent)
}

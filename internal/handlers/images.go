package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"portfolio/internal/database"
	"portfolio/internal/models"
	"portfolio/internal/services"
	"portfolio/internal/validation"

	"github.com/gin-gonic/gin"
)

type imageForm struct {
	Name        string `form:"name"`
	Description string `form:"description"`
	Gallery     int64  `form:"gallery"`
}

// imageRecords - для изображений уникальны имя и имя файла.
func imageRecords(images []models.Image) []validation.Record {
	records := make([]validation.Record, 0, len(images))
	for _, img := range images {
		records = append(records, validation.Record{ID: img.ID, Name: img.Name, Secondary: img.URL})
	}
	return records
}

// checkImage проверяет поля, существование галереи и уникальность имени.
// Имя уникально среди всех изображений, а не только в своей галерее.
func (h *Handler) checkImage(c *gin.Context, img *models.Image) bool {
	if !h.checkName(img.Name) {
		h.validationFailed(c, "длина названия вне допустимых границ")
		return false
	}
	if img.Description != "" && !h.checkText(img.Description) {
		h.validationFailed(c, "описание слишком длинное")
		return false
	}
	if img.GalleryID <= 0 {
		h.validationFailed(c, "не указана галерея")
		return false
	}
	if _, err := h.store.GetGallery(c.Request.Context(), img.GalleryID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			h.validationFailed(c, "галерея "+strconv.FormatInt(img.GalleryID, 10)+" не существует")
		} else {
			h.internalError(c, "Ошибка чтения галереи", err)
		}
		return false
	}

	existing, err := h.store.ListImages(c.Request.Context())
	if err != nil {
		h.internalError(c, "Ошибка чтения изображений", err)
		return false
	}
	if _, found := validation.FindCollision(img.Name, img.URL, imageRecords(existing), img.ID); found {
		h.validationFailed(c, "изображение с таким названием уже есть")
		return false
	}
	return true
}

// ListImages - все изображения или только галереи из ?gallery=.
func (h *Handler) ListImages(c *gin.Context) {
	var (
		images []models.Image
		err    error
	)
	if raw := c.Query("gallery"); raw != "" {
		galleryID, parseErr := strconv.ParseInt(raw, 10, 64)
		if parseErr != nil {
			h.validationFailed(c, "некорректный параметр gallery")
			return
		}
		images, err = h.store.ListImagesByGallery(c.Request.Context(), galleryID)
	} else {
		images, err = h.store.ListImages(c.Request.Context())
	}
	if err != nil {
		h.internalError(c, "Ошибка чтения изображений", err)
		return
	}
	c.JSON(http.StatusOK, images)
}

func (h *Handler) GetImage(c *gin.Context) {
	id, ok := h.paramID(c)
	if !ok {
		return
	}
	img, err := h.store.GetImage(c.Request.Context(), id)
	if err != nil {
		h.lookupFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, img)
}

// CreateImage - файл обязателен.
func (h *Handler) CreateImage(c *gin.Context) {
	var form imageForm
	if err := c.ShouldBind(&form); err != nil {
		h.validationFailed(c, "некорректная форма: "+err.Error())
		return
	}
	img := &models.Image{
		Name:        strings.TrimSpace(form.Name),
		Description: strings.TrimSpace(form.Description),
		GalleryID:   form.Gallery,
	}
	if !h.checkImage(c, img) {
		return
	}

	upload, ok := h.stageUpload(c, true)
	if !ok {
		return
	}
	defer h.assets.DiscardTemp(upload)

	_, err := h.assets.Replace(services.KindImages, upload, img.Name, "", func(stored string) error {
		img.URL = stored
		return h.store.CreateImage(c.Request.Context(), img)
	})
	if err != nil {
		h.mutationFailed(c, "CreateImage", err, h.msg.CreateFailed)
		return
	}
	c.JSON(http.StatusCreated, img)
}

// UpdateImage меняет поля и, если прислан файл, заменяет его.
// Старый файл удаляется только после сохранения записи.
func (h *Handler) UpdateImage(c *gin.Context) {
	id, ok := h.paramID(c)
	if !ok {
		return
	}
	var form imageForm
	if err := c.ShouldBind(&form); err != nil {
		h.validationFailed(c, "некорректная форма: "+err.Error())
		return
	}

	img, err := h.store.GetImage(c.Request.Context(), id)
	if err != nil {
		h.lookupFailed(c, err)
		return
	}
	if name := strings.TrimSpace(form.Name); name != "" {
		img.Name = name
	}
	if description := strings.TrimSpace(form.Description); description != "" {
		img.Description = description
	}
	if form.Gallery != 0 {
		img.GalleryID = form.Gallery
	}
	if !h.checkImage(c, img) {
		return
	}

	upload, ok := h.stageUpload(c, false)
	if !ok {
		return
	}
	defer h.assets.DiscardTemp(upload)

	_, err = h.assets.Replace(services.KindImages, upload, img.Name, img.URL, func(stored string) error {
		previous := img.URL
		img.URL = stored
		if err := h.store.UpdateImage(c.Request.Context(), img); err != nil {
			img.URL = previous
			return err
		}
		return nil
	})
	if err != nil {
		h.mutationFailed(c, "UpdateImage", err, h.msg.UpdateFailed)
		return
	}
	c.JSON(http.StatusOK, img)
}

// DeleteImage удаляет запись, затем файл и миниатюру.
func (h *Handler) DeleteImage(c *gin.Context) {
	id, ok := h.paramID(c)
	if !ok {
		return
	}
	img, err := h.store.GetImage(c.Request.Context(), id)
	if err != nil {
		h.lookupFailed(c, err)
		return
	}
	if err := h.store.DeleteImage(c.Request.Context(), id); err != nil {
		h.mutationFailed(c, "DeleteImage", err, h.msg.DeleteFailed)
		return
	}
	if err := h.assets.Retire(services.KindImages, img.URL); err != nil {
		h.logger.WithError(err).WithField("image_id", id).Warn("Файл удаленного изображения остался на диске")
	}
	c.Status(http.StatusNoContent)
}

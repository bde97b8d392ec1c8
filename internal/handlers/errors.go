package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"portfolio/internal/auth"
	"portfolio/internal/database"
	"portfolio/internal/models"
	"portfolio/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// respondError завершает запрос ответом {"error": message}.
func respondError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

// validationFailed - данные не прошли проверку до каких-либо изменений.
// Причина уходит только в лог.
func (h *Handler) validationFailed(c *gin.Context, reason string) {
	h.logger.WithFields(logrus.Fields{"path": c.Request.URL.Path, "reason": reason}).Info("Проверка данных не пройдена")
	respondError(c, http.StatusForbidden, h.msg.ValidationFailed)
}

// uploadFailed - загруженный файл отвергнут при приеме.
func (h *Handler) uploadFailed(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrUnsupportedType),
		errors.Is(err, services.ErrEmptyUpload),
		errors.Is(err, services.ErrUploadTooBig):
		h.validationFailed(c, err.Error())
	default:
		h.internalError(c, "Ошибка приема файла", err)
	}
}

// mutationFailed отображает ошибку создания/изменения/удаления в ответ.
// Нарушение UNIQUE при фиксации - та же ошибка проверки, что и до записи.
func (h *Handler) mutationFailed(c *gin.Context, op string, err error, failMessage string) {
	entry := h.logger.WithError(err).WithField("op", op)
	switch {
	case errors.Is(err, database.ErrConflict):
		entry.Info("Конфликт уникальности при записи")
		respondError(c, http.StatusForbidden, h.msg.ValidationFailed)
	case errors.Is(err, database.ErrNotFound):
		respondError(c, http.StatusNotFound, h.msg.NotFound)
	default:
		entry.Error("Ошибка изменения данных")
		respondError(c, http.StatusBadRequest, failMessage)
	}
}

// lookupFailed - ошибка чтения: нет записи - 404, остальное - 500.
func (h *Handler) lookupFailed(c *gin.Context, err error) {
	if errors.Is(err, database.ErrNotFound) {
		respondError(c, http.StatusNotFound, h.msg.NotFound)
		return
	}
	h.internalError(c, "Ошибка чтения данных", err)
}

func (h *Handler) internalError(c *gin.Context, what string, err error) {
	h.logger.WithError(err).WithField("path", c.Request.URL.Path).Error(what)
	respondError(c, http.StatusInternalServerError, h.msg.InternalError)
}

// resetFailed отображает ошибки погашения токена сброса.
func (h *Handler) resetFailed(c *gin.Context, err error) {
	switch {
	case errors.Is(err, auth.ErrWeakPassword):
		h.validationFailed(c, err.Error())
	case errors.Is(err, models.ErrTokenInvalid):
		respondError(c, http.StatusBadRequest, h.msg.TokenInvalid)
	case errors.Is(err, models.ErrTokenExpired):
		respondError(c, http.StatusGone, h.msg.TokenExpired)
	case errors.Is(err, models.ErrTokenAlreadyUsed):
		respondError(c, http.StatusConflict, h.msg.TokenAlreadyUsed)
	default:
		h.internalError(c, "Ошибка сброса пароля", err)
	}
}

// paramID разбирает :id. Некорректный ID - 404, такой записи быть не может.
func (h *Handler) paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, http.StatusNotFound, h.msg.NotFound)
		return 0, false
	}
	return id, true
}

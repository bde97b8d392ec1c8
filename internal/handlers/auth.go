package handlers

import (
	"errors"
	"net/http"

	"portfolio/internal/auth"
	"portfolio/internal/middleware"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type resetRequest struct {
	Email string `json:"email"`
}

type redeemRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// GetAvatar - публичная часть профиля: имя, аватар, роль.
func (h *Handler) GetAvatar(c *gin.Context) {
	id, ok := h.paramID(c)
	if !ok {
		return
	}
	user, err := h.store.GetUser(c.Request.Context(), id)
	if err != nil {
		h.lookupFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, user.Avatar())
}

// Login проверяет email и пароль и возвращает токен доступа.
// Дополнительно пользователь запоминается в cookie сессии.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		respondError(c, http.StatusUnauthorized, h.msg.InvalidCredentials)
		return
	}

	session, err := h.creds.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			respondError(c, http.StatusUnauthorized, h.msg.InvalidCredentials)
			return
		}
		h.internalError(c, "Ошибка входа", err)
		return
	}

	if err := middleware.SaveSession(c, session.User.ID, session.User.Role); err != nil {
		// Токен уже выпущен, cookie - только удобство для браузера
		h.logger.WithError(err).WithField("user_id", session.User.ID).Warn("Ошибка сохранения сессии после входа")
	}

	c.JSON(http.StatusOK, gin.H{
		"userId":    session.User.ID,
		"userToken": session.Token,
		"expiresAt": session.ExpiresAt,
	})
}

// Logout очищает cookie сессии. Токен доступа истекает сам.
func (h *Handler) Logout(c *gin.Context) {
	middleware.ClearSession(c, h.logger)
	c.Status(http.StatusNoContent)
}

// RequestPasswordReset всегда отвечает 202, чтобы по ответу нельзя было
// узнать, зарегистрирован ли email.
func (h *Handler) RequestPasswordReset(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.Email != "" {
		h.creds.RequestPasswordReset(c.Request.Context(), req.Email)
	}
	c.JSON(http.StatusAccepted, gin.H{"message": h.msg.ResetRequested})
}

// ResetPassword гасит токен из письма и устанавливает новый пароль.
func (h *Handler) ResetPassword(c *gin.Context) {
	var req redeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.validationFailed(c, "некорректное тело запроса: "+err.Error())
		return
	}
	if err := h.creds.RedeemPasswordReset(c.Request.Context(), req.Token, req.Password); err != nil {
		h.resetFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": h.msg.ResetDone})
}

// VerifyHuman проверяет токен клиента без побочных действий.
func (h *Handler) VerifyHuman(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil || !h.human.Verify(c.Request.Context(), req.Token) {
		respondError(c, http.StatusForbidden, h.msg.HumanCheckFailed)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": h.msg.HumanCheckPassed})
}

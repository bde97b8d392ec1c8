package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"portfolio/internal/auth"
	"portfolio/internal/mailer"
	"portfolio/internal/middleware"
	"portfolio/internal/models"
	"portfolio/internal/services"
	"portfolio/internal/validation"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// userForm - поля, которые клиент может задать пользователю. Пустое поле
// при обновлении оставляет текущее значение.
type userForm struct {
	Name     string `form:"name"`
	Email    string `form:"email"`
	Password string `form:"password"`
	Role     string `form:"role"`
	Token    string `form:"token"` // проверка на робота при регистрации
}

type messageRequest struct {
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
	Token   string `json:"token"`
}

func userRecords(users []models.User) []validation.Record {
	records := make([]validation.Record, 0, len(users))
	for _, u := range users {
		records = append(records, validation.Record{ID: u.ID, Name: u.Name, Secondary: u.Email})
	}
	return records
}

// checkUser проверяет поля пользователя и уникальность имени и email.
// При false ответ уже отправлен.
func (h *Handler) checkUser(c *gin.Context, u *models.User, skipID int64) bool {
	if !h.checkName(u.Name) {
		h.validationFailed(c, "длина имени вне допустимых границ")
		return false
	}
	if !validation.CheckEmail(u.Email) {
		h.validationFailed(c, "некорректный email")
		return false
	}

	existing, err := h.store.ListUsers(c.Request.Context())
	if err != nil {
		h.internalError(c, "Ошибка чтения пользователей", err)
		return false
	}
	if other, found := validation.FindCollision(u.Name, u.Email, userRecords(existing), skipID); found {
		h.validationFailed(c, "имя или email заняты пользователем "+other.Name)
		return false
	}
	return true
}

// CreateUser - регистрация. Аватар необязателен.
func (h *Handler) CreateUser(c *gin.Context) {
	var form userForm
	if err := c.ShouldBind(&form); err != nil {
		h.validationFailed(c, "некорректная форма: "+err.Error())
		return
	}
	if !h.checkHuman(c, form.Token) {
		return
	}

	user := &models.User{
		Name:  strings.TrimSpace(form.Name),
		Email: strings.ToLower(strings.TrimSpace(form.Email)),
		Role:  models.RoleUser,
	}
	if !validation.CheckPassword(form.Password) {
		h.validationFailed(c, "слабый пароль")
		return
	}
	if !h.checkUser(c, user, 0) {
		return
	}

	upload, ok := h.stageUpload(c, false)
	if !ok {
		return
	}
	defer h.assets.DiscardTemp(upload)

	hash, err := auth.HashPassword(form.Password)
	if err != nil {
		h.internalError(c, "Ошибка хеширования пароля", err)
		return
	}
	user.PasswordHash = hash

	_, err = h.assets.Replace(services.KindUsers, upload, user.Name, "", func(stored string) error {
		user.Image = stored
		return h.store.CreateUser(c.Request.Context(), user)
	})
	if err != nil {
		h.mutationFailed(c, "CreateUser", err, h.msg.CreateFailed)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// ListUsers - все пользователи (без хешей паролей).
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.store.ListUsers(c.Request.Context())
	if err != nil {
		h.internalError(c, "Ошибка чтения пользователей", err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *Handler) GetUser(c *gin.Context) {
	id, ok := h.paramID(c)
	if !ok {
		return
	}
	user, err := h.store.GetUser(c.Request.Context(), id)
	if err != nil {
		h.lookupFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// selfOrAdmin - менять и удалять профиль может только его владелец или администратор.
func (h *Handler) selfOrAdmin(c *gin.Context, targetID int64) (isAdmin bool, ok bool) {
	userID, role, found := middleware.CurrentUser(c)
	if !found {
		respondError(c, http.StatusUnauthorized, h.msg.Unauthorized)
		return false, false
	}
	if role != models.RoleAdmin && userID != targetID {
		respondError(c, http.StatusForbidden, h.msg.Forbidden)
		return false, false
	}
	return role == models.RoleAdmin, true
}

// UpdateUser меняет профиль. Новый аватар заменяет старый файл только
// после сохранения записи.
func (h *Handler) UpdateUser(c *gin.Context) {
	id, ok := h.paramID(c)
	if !ok {
		return
	}
	isAdmin, ok := h.selfOrAdmin(c, id)
	if !ok {
		return
	}

	var form userForm
	if err := c.ShouldBind(&form); err != nil {
		h.validationFailed(c, "некорректная форма: "+err.Error())
		return
	}

	user, err := h.store.GetUser(c.Request.Context(), id)
	if err != nil {
		h.lookupFailed(c, err)
		return
	}
	if name := strings.TrimSpace(form.Name); name != "" {
		user.Name = name
	}
	if email := strings.TrimSpace(form.Email); email != "" {
		user.Email = strings.ToLower(email)
	}
	if form.Role != "" {
		if !isAdmin || (form.Role != models.RoleUser && form.Role != models.RoleAdmin) {
			h.validationFailed(c, "роль может менять только администратор")
			return
		}
		user.Role = form.Role
	}
	if form.Password != "" && !validation.CheckPassword(form.Password) {
		h.validationFailed(c, "слабый пароль")
		return
	}
	if !h.checkUser(c, user, user.ID) {
		return
	}

	upload, ok := h.stageUpload(c, false)
	if !ok {
		return
	}
	defer h.assets.DiscardTemp(upload)

	if form.Password != "" {
		if user.PasswordHash, err = auth.HashPassword(form.Password); err != nil {
			h.internalError(c, "Ошибка хеширования пароля", err)
			return
		}
	}

	_, err = h.assets.Replace(services.KindUsers, upload, user.Name, user.Image, func(stored string) error {
		previous := user.Image
		user.Image = stored
		if err := h.store.UpdateUser(c.Request.Context(), user); err != nil {
			user.Image = previous
			return err
		}
		return nil
	})
	if err != nil {
		h.mutationFailed(c, "UpdateUser", err, h.msg.UpdateFailed)
		return
	}
	c.JSON(http.StatusOK, user)
}

// DeleteUser удаляет запись, затем файл аватара.
func (h *Handler) DeleteUser(c *gin.Context) {
	id, ok := h.paramID(c)
	if !ok {
		return
	}
	if _, ok := h.selfOrAdmin(c, id); !ok {
		return
	}

	user, err := h.store.GetUser(c.Request.Context(), id)
	if err != nil {
		h.lookupFailed(c, err)
		return
	}
	if err := h.store.DeleteUser(c.Request.Context(), id); err != nil {
		h.mutationFailed(c, "DeleteUser", err, h.msg.DeleteFailed)
		return
	}
	if err := h.assets.Retire(services.KindUsers, user.Image); err != nil {
		h.logger.WithError(err).WithField("user_id", id).Warn("Аватар удаленного пользователя остался на диске")
	}

	if currentID, _, _ := middleware.CurrentUser(c); currentID == id {
		middleware.ClearSession(c, h.logger)
	}
	h.logger.WithField("user_id", id).Info("Пользователь удален")
	c.Status(http.StatusNoContent)
}

// SendMessage пересылает сообщение посетителя на контактный адрес сайта.
func (h *Handler) SendMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.validationFailed(c, "некорректное тело запроса: "+err.Error())
		return
	}
	if !h.checkHuman(c, req.Token) {
		return
	}
	if !validation.CheckEmail(req.Email) || !h.checkName(req.Subject) || !h.checkText(req.Text) {
		h.validationFailed(c, "некорректные поля сообщения")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.mailTimeout())
	defer cancel()
	err := h.mail.Send(ctx, mailer.Message{
		To:      h.cfg.Email.ContactEmail,
		Subject: "Сообщение с сайта: " + req.Subject,
		Body:    "От: " + req.Email + "\n\n" + req.Text,
		ReplyTo: req.Email,
	})
	if err != nil {
		h.logger.WithError(err).Error("Сообщение посетителя не отправлено")
		respondError(c, http.StatusBadGateway, h.msg.MailFailed)
		return
	}
	h.logger.WithFields(logrus.Fields{"from": req.Email}).Info("Сообщение посетителя отправлено")
	c.JSON(http.StatusAccepted, gin.H{"message": h.msg.MessageSent})
}

func (h *Handler) mailTimeout() time.Duration {
	if h.cfg.Email.Timeout > 0 {
		return h.cfg.Email.Timeout
	}
	return 10 * time.Second
}

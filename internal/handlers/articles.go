package handlers

import (
	"net/http"
	"strings"

	"portfolio/internal/models"
	"portfolio/internal/services"
	"portfolio/internal/validation"

	"github.com/gin-gonic/gin"
)

type articleForm struct {
	Name     string `form:"name"`
	Text     string `form:"text"`
	Alt      string `form:"alt"`
	URL      string `form:"url"`
	Category string `form:"category"`
}

// articleRecords - у статей уникален только адрес (url).
func articleRecords(articles []models.Article) []validation.Record {
	records := make([]validation.Record, 0, len(articles))
	for _, a := range articles {
		records = append(records, validation.Record{ID: a.ID, Secondary: a.URL})
	}
	return records
}

func (h *Handler) checkArticle(c *gin.Context, a *models.Article) bool {
	if !h.checkName(a.Name) || !h.checkName(a.Category) {
		h.validationFailed(c, "длина названия или категории вне допустимых границ")
		return false
	}
	if !h.checkText(a.Text) {
		h.validationFailed(c, "длина текста вне допустимых границ")
		return false
	}
	if a.Alt != "" && !validation.CheckRange(a.Alt, 1, h.cfg.Validation.MaxLength) {
		h.validationFailed(c, "подпись к изображению слишком длинная")
		return false
	}
	if a.URL == "" {
		h.validationFailed(c, "адрес статьи пуст")
		return false
	}

	existing, err := h.store.ListArticles(c.Request.Context(), "")
	if err != nil {
		h.internalError(c, "Ошибка чтения статей", err)
		return false
	}
	if _, found := validation.FindCollision("", a.URL, articleRecords(existing), a.ID); found {
		h.validationFailed(c, "статья с таким адресом уже есть")
		return false
	}
	return true
}

// ListArticles - статьи, новые первыми; ?category= фильтрует.
func (h *Handler) ListArticles(c *gin.Context) {
	articles, err := h.store.ListArticles(c.Request.Context(), strings.TrimSpace(c.Query("category")))
	if err != nil {
		h.internalError(c, "Ошибка чтения статей", err)
		return
	}
	c.JSON(http.StatusOK, articles)
}

func (h *Handler) GetArticle(c *gin.Context) {
	id, ok := h.paramID(c)
	if !ok {
		return
	}
	a, err := h.store.GetArticle(c.Request.Context(), id)
	if err != nil {
		h.lookupFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// CreateArticle - изображение необязательно. Пустой url строится из названия.
func (h *Handler) CreateArticle(c *gin.Context) {
	var form articleForm
	if err := c.ShouldBind(&form); err != nil {
		h.validationFailed(c, "некорректная форма: "+err.Error())
		return
	}
	a := &models.Article{
		Name:     strings.TrimSpace(form.Name),
		Text:     strings.TrimSpace(form.Text),
		Alt:      strings.TrimSpace(form.Alt),
		Category: strings.TrimSpace(form.Category),
	}
	a.URL = articleSlug(form.URL, a.Name)
	if !h.checkArticle(c, a) {
		return
	}

	upload, ok := h.stageUpload(c, false)
	if !ok {
		return
	}
	defer h.assets.DiscardTemp(upload)

	_, err := h.assets.Replace(services.KindArticles, upload, a.URL, "", func(stored string) error {
		a.Image = stored
		return h.store.CreateArticle(c.Request.Context(), a)
	})
	if err != nil {
		h.mutationFailed(c, "CreateArticle", err, h.msg.CreateFailed)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (h *Handler) UpdateArticle(c *gin.Context) {
	id, ok := h.paramID(c)
	if !ok {
		return
	}
	var form articleForm
	if err := c.ShouldBind(&form); err != nil {
		h.validationFailed(c, "некорректная форма: "+err.Error())
		return
	}

	a, err := h.store.GetArticle(c.Request.Context(), id)
	if err != nil {
		h.lookupFailed(c, err)
		return
	}
	if v := strings.TrimSpace(form.Name); v != "" {
		a.Name = v
	}
	if v := strings.TrimSpace(form.Text); v != "" {
		a.Text = v
	}
	if v := strings.TrimSpace(form.Alt); v != "" {
		a.Alt = v
	}
	if v := strings.TrimSpace(form.Category); v != "" {
		a.Category = v
	}
	if strings.TrimSpace(form.URL) != "" {
		a.URL = articleSlug(form.URL, a.Name)
	}
	if !h.checkArticle(c, a) {
		return
	}

	upload, ok := h.stageUpload(c, false)
	if !ok {
		return
	}
	defer h.assets.DiscardTemp(upload)

	_, err = h.assets.Replace(services.KindArticles, upload, a.URL, a.Image, func(stored string) error {
		previous := a.Image
		a.Image = stored
		if err := h.store.UpdateArticle(c.Request.Context(), a); err != nil {
			a.Image = previous
			return err
		}
		return nil
	})
	if err != nil {
		h.mutationFailed(c, "UpdateArticle", err, h.msg.UpdateFailed)
		return
	}
	c.JSON(http.StatusOK, a)
}

// LikeArticle увеличивает счетчик лайков.
func (h *Handler) LikeArticle(c *gin.Context) {
	id, ok := h.paramID(c)
	if !ok {
		return
	}
	likes, err := h.store.LikeArticle(c.Request.Context(), id)
	if err != nil {
		h.mutationFailed(c, "LikeArticle", err, h.msg.UpdateFailed)
		return
	}
	c.JSON(http.StatusOK, gin.H{"likes": likes})
}

func (h *Handler) DeleteArticle(c *gin.Context) {
	id, ok := h.paramID(c)
	if !ok {
		return
	}
	a, err := h.store.GetArticle(c.Request.Context(), id)
	if err != nil {
		h.lookupFailed(c, err)
		return
	}
	if err := h.store.DeleteArticle(c.Request.Context(), id); err != nil {
		h.mutationFailed(c, "DeleteArticle", err, h.msg.DeleteFailed)
		return
	}
	if err := h.assets.Retire(services.KindArticles, a.Image); err != nil {
		h.logger.WithError(err).WithField("article_id", id).Warn("Изображение удаленной статьи осталось на диске")
	}
	c.Status(http.StatusNoContent)
}

// articleSlug - адрес статьи: заданный клиентом или построенный из названия.
// Если ни из одного не вышло латинского slug, адрес генерируется.
func articleSlug(requested, name string) string {
	if slug := services.Slugify(requested); slug != "" {
		return slug
	}
	if slug := services.Slugify(name); slug != "" {
		return slug
	}
	return services.UniqueSlug("article")
}

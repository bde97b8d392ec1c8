package handlers

import (
	"errors"
	"net/http"

	"portfolio/internal/auth"
	"portfolio/internal/config"
	"portfolio/internal/database"
	"portfolio/internal/mailer"
	"portfolio/internal/middleware"
	"portfolio/internal/services"
	"portfolio/internal/validation"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// sessionName - имя cookie сессии.
const sessionName = "portfolio_session"

// Deps - зависимости обработчиков. Все поля обязательны.
type Deps struct {
	Config      *config.Config
	Store       *database.Store
	Assets      *services.Manager
	Credentials *auth.Manager
	Human       auth.HumanVerifier
	Mailer      mailer.Sender
	Logger      *logrus.Logger
}

// Handler - HTTP-обработчики всех ресурсов.
type Handler struct {
	cfg    *config.Config
	msg    config.Messages
	store  *database.Store
	assets *services.Manager
	creds  *auth.Manager
	human  auth.HumanVerifier
	mail   mailer.Sender
	logger *logrus.Logger
}

func New(d Deps) *Handler {
	return &Handler{
		cfg:    d.Config,
		msg:    d.Config.Messages,
		store:  d.Store,
		assets: d.Assets,
		creds:  d.Credentials,
		human:  d.Human,
		mail:   d.Mailer,
		logger: d.Logger,
	}
}

// NewRouter собирает gin.Engine со всеми маршрутами.
func NewRouter(h *Handler) (*gin.Engine, error) {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(h.logger), middleware.Metrics())

	// Сервис работает за обратным прокси; nil - доверять всем прокси.
	if err := router.SetTrustedProxies(nil); err != nil {
		return nil, err
	}
	// Остальное multipart-формы уходит во временные файлы.
	router.MaxMultipartMemory = 8 << 20

	store := cookie.NewStore([]byte(h.cfg.App.CookieSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(h.cfg.Security.TokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cfg.App.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	router.Use(sessions.Sessions(sessionName, store))

	// Файлы ресурсов отдаются только на чтение.
	for _, kind := range services.Kinds {
		router.Static(h.cfg.Storage.BaseURL+"/"+string(kind), h.cfg.Storage.Dir(string(kind)))
	}

	router.GET("/healthz", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authRequired := middleware.AuthRequired(h.creds.Tokens(), h.msg.Unauthorized, h.logger)
	upload := h.limitBody()

	a := router.Group("/auth")
	{
		a.POST("", h.Login)
		a.GET("/:id", h.GetAvatar)
		a.POST("/logout", authRequired, h.Logout)
		a.POST("/password", h.RequestPasswordReset)
		a.POST("/password/reset", h.ResetPassword)
		a.POST("/recaptcha", h.VerifyHuman)
	}

	users := router.Group("/users")
	{
		users.POST("", upload, h.CreateUser)
		users.POST("/message", h.SendMessage)
		users.GET("", authRequired, h.ListUsers)
		users.GET("/:id", authRequired, h.GetUser)
		users.PUT("/:id", authRequired, upload, h.UpdateUser)
		users.DELETE("/:id", authRequired, h.DeleteUser)
	}

	images := router.Group("/images")
	{
		images.GET("", h.ListImages)
		images.GET("/:id", h.GetImage)
		images.POST("", authRequired, upload, h.CreateImage)
		images.PUT("/:id", authRequired, upload, h.UpdateImage)
		images.DELETE("/:id", authRequired, h.DeleteImage)
	}

	galleries := router.Group("/galleries")
	{
		galleries.GET("", h.ListGalleries)
		galleries.GET("/:id", h.GetGallery)
		galleries.GET("/:id/images", h.ListGalleryImages)
		galleries.POST("", authRequired, h.CreateGallery)
		galleries.PUT("/:id", authRequired, h.UpdateGallery)
		galleries.DELETE("/:id", authRequired, h.DeleteGallery)
	}

	articles := router.Group("/articles")
	{
		articles.GET("", h.ListArticles)
		articles.GET("/:id", h.GetArticle)
		articles.POST("/:id/like", h.LikeArticle)
		articles.POST("", authRequired, upload, h.CreateArticle)
		articles.PUT("/:id", authRequired, upload, h.UpdateArticle)
		articles.DELETE("/:id", authRequired, h.DeleteArticle)
	}

	return router, nil
}

// Health проверяет доступность БД.
func (h *Handler) Health(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		h.logger.WithError(err).Error("БД недоступна")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// limitBody ограничивает размер тела запроса с файлом: один файл плюс 1 МБ на поля.
func (h *Handler) limitBody() gin.HandlerFunc {
	limit := h.cfg.Storage.MaxUploadSize + 1<<20
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

// stageUpload принимает файл из поля image. Поля нет - nil без ошибки,
// если файл не обязателен. При false ответ уже отправлен.
func (h *Handler) stageUpload(c *gin.Context, required bool) (*services.Upload, bool) {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) && !required {
			return nil, true
		}
		h.validationFailed(c, "файл не получен: "+err.Error())
		return nil, false
	}
	upload, err := h.assets.Stage(fileHeader)
	if err != nil {
		h.uploadFailed(c, err)
		return nil, false
	}
	return upload, true
}

// checkName - длина обычного строкового поля.
func (h *Handler) checkName(value string) bool {
	return validation.CheckRange(value, h.cfg.Validation.MinLength, h.cfg.Validation.MaxLength)
}

// checkText - длина длинного текстового поля.
func (h *Handler) checkText(value string) bool {
	return validation.CheckRange(value, 1, h.cfg.Validation.MaxTextLength)
}

// checkHuman проходит проверку на робота, если она включена. При false ответ уже отправлен.
func (h *Handler) checkHuman(c *gin.Context, token string) bool {
	if !h.cfg.HumanCheck.Required {
		return true
	}
	if h.human.Verify(c.Request.Context(), token) {
		return true
	}
	respondError(c, http.StatusForbidden, h.msg.HumanCheckFailed)
	return false
}

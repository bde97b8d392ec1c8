package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"portfolio/internal/auth"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Ключи контекста Gin и сессии.
const (
	UserIDKey = "userID"
	RoleKey   = "role"
)

// AuthRequired - Gin middleware, которое проверяет аутентификацию пользователя.
// Сначала смотрит заголовок Authorization: Bearer <токен>, затем cookie
// сессии (для браузера после входа). В контекст кладет userID (int64) и role.
func AuthRequired(tokens *auth.TokenIssuer, message string, logger *logrus.Logger) gin.HandlerFunc {
	deny := func(c *gin.Context, reason string) {
		logger.WithFields(logrus.Fields{"path": c.Request.URL.Path, "ip": c.ClientIP(), "reason": reason}).
			Info("Доступ запрещен (не аутентифицирован)")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message})
	}

	return func(c *gin.Context) {
		if header := c.GetHeader("Authorization"); header != "" {
			scheme, token, found := strings.Cut(header, " ")
			if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				deny(c, "некорректный заголовок Authorization")
				return
			}
			claims, userID, err := tokens.Parse(strings.TrimSpace(token))
			if err != nil {
				deny(c, err.Error())
				return
			}
			c.Set(UserIDKey, userID)
			c.Set(RoleKey, claims.Role)
			c.Next()
			return
		}

		session := sessions.Default(c)
		userIDRaw := session.Get(UserIDKey)
		if userIDRaw == nil {
			deny(c, "нет токена и сессии")
			return
		}

		// При входе userID сохраняется как int64. Другой тип - поврежденная сессия.
		userID, ok := userIDRaw.(int64)
		if !ok {
			logger.WithField("type", fmt.Sprintf("%T", userIDRaw)).Warn("Некорректный тип userID в сессии, сессия будет очищена")
			ClearSession(c, logger)
			deny(c, "поврежденная сессия")
			return
		}
		role, _ := session.Get(RoleKey).(string)

		c.Set(UserIDKey, userID)
		c.Set(RoleKey, role)
		c.Next()
	}
}

// SaveSession запоминает пользователя в cookie сессии.
func SaveSession(c *gin.Context, userID int64, role string) error {
	session := sessions.Default(c)
	session.Set(UserIDKey, userID)
	session.Set(RoleKey, role)
	return session.Save()
}

// ClearSession удаляет данные пользователя и просит браузер удалить cookie.
func ClearSession(c *gin.Context, logger *logrus.Logger) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		logger.WithError(err).Error("Ошибка сохранения сессии при очистке")
	}
}

// CurrentUser возвращает ID и роль, положенные AuthRequired.
func CurrentUser(c *gin.Context) (int64, string, bool) {
	userID, ok := c.Get(UserIDKey)
	if !ok {
		return 0, "", false
	}
	id, ok := userID.(int64)
	if !ok {
		return 0, "", false
	}
	return id, c.GetString(RoleKey), true
}

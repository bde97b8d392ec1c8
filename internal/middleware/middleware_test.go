package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"portfolio/internal/auth"
	"portfolio/internal/logging"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(tokens *auth.TokenIssuer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := logging.Discard()

	r := gin.New()
	r.Use(sessions.Sessions("test", cookie.NewStore([]byte("cookie-secret"))))
	r.Use(RequestLogger(logger), Metrics())

	r.POST("/login/:id", func(c *gin.Context) {
		if err := SaveSession(c, 7, "admin"); err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusNoContent)
	})
	r.POST("/corrupt", func(c *gin.Context) {
		s := sessions.Default(c)
		s.Set(UserIDKey, "seven")
		s.Save()
		c.Status(http.StatusNoContent)
	})

	protected := r.Group("/", AuthRequired(tokens, "auth required", logger))
	protected.GET("/me", func(c *gin.Context) {
		id, role, ok := CurrentUser(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id, "role": role})
	})
	return r
}

func TestAuthRequired_Bearer(t *testing.T) {
	tokens := auth.NewTokenIssuer("secret", time.Hour)
	r := newTestRouter(tokens)
	token, _, err := tokens.Issue(42, "user")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id": 42, "role": "user"}`, w.Body.String())
}

func TestAuthRequired_Rejects(t *testing.T) {
	tokens := auth.NewTokenIssuer("secret", time.Hour)
	r := newTestRouter(tokens)
	foreign, _, err := auth.NewTokenIssuer("other", time.Hour).Issue(1, "admin")
	require.NoError(t, err)

	for name, header := range map[string]string{
		"missing":       "",
		"wrong scheme":  "Basic abc",
		"empty token":   "Bearer ",
		"foreign token": "Bearer " + foreign,
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.JSONEq(t, `{"error": "auth required"}`, w.Body.String())
		})
	}
}

func TestAuthRequired_SessionCookie(t *testing.T) {
	r := newTestRouter(auth.NewTokenIssuer("secret", time.Hour))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login/7", nil))
	require.Equal(t, http.StatusNoContent, w.Code)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id": 7, "role": "admin"}`, w.Body.String())
}

func TestAuthRequired_CorruptSession(t *testing.T) {
	r := newTestRouter(auth.NewTokenIssuer("secret", time.Hour))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/corrupt", nil))
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

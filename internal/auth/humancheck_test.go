package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"portfolio/internal/config"
	"portfolio/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVerifier(t *testing.T, handler http.HandlerFunc, tweak func(*config.HumanCheckConfig)) *RecaptchaVerifier {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Default().HumanCheck
	cfg.Secret = "site-secret"
	cfg.VerifyURL = srv.URL
	cfg.Timeout = 200 * time.Millisecond
	if tweak != nil {
		tweak(&cfg)
	}
	return NewRecaptchaVerifier(cfg, logging.Discard())
}

func TestRecaptcha_Success(t *testing.T) {
	v := newVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "site-secret", r.PostForm.Get("secret"))
		assert.Equal(t, "client-token", r.PostForm.Get("response"))
		w.Write([]byte(`{"success": true, "score": 0.9}`))
	}, nil)

	assert.True(t, v.Verify(context.Background(), "client-token"))
}

func TestRecaptcha_FailClosed(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		tweak   func(*config.HumanCheckConfig)
		token   string
	}{
		{
			name: "rejected by service",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(`{"success": false, "error-codes": ["invalid-input-response"]}`))
			},
			token: "t",
		},
		{
			name:    "malformed body",
			handler: func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte(`<html>`)) },
			token:   "t",
		},
		{
			name:    "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusInternalServerError) },
			token:   "t",
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
				w.Write([]byte(`{"success": true}`))
			},
			token: "t",
		},
		{
			name:    "low score",
			handler: func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte(`{"success": true, "score": 0.1}`)) },
			tweak:   func(c *config.HumanCheckConfig) { c.MinScore = 0.5 },
			token:   "t",
		},
		{
			name:    "missing score",
			handler: func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte(`{"success": true}`)) },
			tweak:   func(c *config.HumanCheckConfig) { c.MinScore = 0.5 },
			token:   "t",
		},
		{
			name:    "empty token",
			handler: func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte(`{"success": true}`)) },
			token:   "",
		},
		{
			name:    "no secret",
			handler: func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte(`{"success": true}`)) },
			tweak:   func(c *config.HumanCheckConfig) { c.Secret = "" },
			token:   "t",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newVerifier(t, tt.handler, tt.tweak)
			assert.False(t, v.Verify(context.Background(), tt.token))
		})
	}
}

func TestRecaptcha_Unreachable(t *testing.T) {
	cfg := config.Default().HumanCheck
	cfg.Secret = "s"
	cfg.VerifyURL = "http://127.0.0.1:1/siteverify"
	cfg.Timeout = 200 * time.Millisecond
	v := NewRecaptchaVerifier(cfg, logging.Discard())
	assert.False(t, v.Verify(context.Background(), "t"))
}

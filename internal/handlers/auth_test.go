package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearspend/clearspend/internal/config"
)

func loginConfig() config.Config {
	return config.Config{
		Admin: config.AdminConfig{Username: "admin", Password: "hunter2"},
		Auth:  config.AuthConfig{JWTSecret: "test-secret", JWTExpiresIn: "1h"},
	}
}

func postLogin(h *AuthHandler, body string) *httptest.ResponseRecorder {
	e := echo.New()
	h.Register(e)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestLogin(t *testing.T) {
	t.Parallel()

	h := NewAuthHandler(nil, loginConfig())
	rec := postLogin(h, `{"username":"admin","password":"hunter2"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.False(t, resp.ExpiresAt.IsZero())
}

func TestLoginRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{name: "wrong password", body: `{"username":"admin","password":"wrong"}`, wantCode: http.StatusUnauthorized},
		{name: "wrong username", body: `{"username":"root","password":"hunter2"}`, wantCode: http.StatusUnauthorized},
		{name: "empty credentials", body: `{}`, wantCode: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := NewAuthHandler(nil, loginConfig())
			rec := postLogin(h, tt.body)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.NotContains(t, rec.Body.String(), "token", "no token on rejection")
		})
	}
}

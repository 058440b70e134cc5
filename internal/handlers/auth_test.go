package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tablegate/tablegate/internal/models"
	"github.com/tablegate/tablegate/internal/services"
)

type stubAuthService struct {
	loginResp   *services.AuthResponse
	loginErr    error
	refreshResp *services.AuthResponse
	refreshErr  error

	gotEmail string
	gotIP    string
}

func (s *stubAuthService) Login(ctx context.Context, email, password, ipAddress, userAgent string) (*services.AuthResponse, error) {
	s.gotEmail = email
	s.gotIP = ipAddress
	return s.loginResp, s.loginErr
}

func (s *stubAuthService) Refresh(ctx context.Context, refreshToken string) (*services.AuthResponse, error) {
	return s.refreshResp, s.refreshErr
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "203.0.113.9:51234"
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestAuthHandler_LoginSuccess(t *testing.T) {
	svc := &stubAuthService{
		loginResp: &services.AuthResponse{
			AccessToken:  "access",
			RefreshToken: "refresh",
			User:         &services.UserResponse{ID: "u1", Email: "owner@example.com"},
		},
	}
	h := NewAuthHandler(svc)

	rec := postJSON(t, h.Login, "/auth/login", map[string]string{
		"email":    "owner@example.com",
		"password": "correct horse",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp services.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "access", resp.AccessToken)
	assert.Equal(t, "203.0.113.9", svc.gotIP)
}

func TestAuthHandler_LoginInvalidCredentials(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{loginErr: models.ErrUnauthorized})

	rec := postJSON(t, h.Login, "/auth/login", map[string]string{
		"email":    "owner@example.com",
		"password": "wrong",
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid email or password")
}

func TestAuthHandler_LoginBlocked(t *testing.T) {
	until := time.Now().Add(10 * time.Minute)
	h := NewAuthHandler(&stubAuthService{loginErr: &services.AccountBlockedError{
		BlockedUntil: &until,
		Remaining:    10 * time.Minute,
	}})

	rec := postJSON(t, h.Login, "/auth/login", map[string]string{
		"email":    "owner@example.com",
		"password": "whatever",
	})

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "600", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "Try again in 10 minutes")
}

func TestAuthHandler_LoginValidation(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{})

	rec := postJSON(t, h.Login, "/auth/login", map[string]string{
		"email":    "not-an-email",
		"password": "x",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "email")
}

func TestAuthHandler_LoginMalformedBody(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{})

	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader([]byte("{")))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthHandler_RefreshSuccess(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{
		refreshResp: &services.AuthResponse{AccessToken: "new-access", RefreshToken: "new-refresh"},
	})

	rec := postJSON(t, h.Refresh, "/auth/refresh", map[string]string{
		"refresh_token": "old-refresh",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "new-access")
}

func TestAuthHandler_RefreshInvalidToken(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{refreshErr: models.ErrUnauthorized})

	rec := postJSON(t, h.Refresh, "/auth/refresh", map[string]string{
		"refresh_token": "expired",
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

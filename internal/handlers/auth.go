package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tablegate/tablegate/internal/models"
	"github.com/tablegate/tablegate/internal/services"
	pkghttp "github.com/tablegate/tablegate/pkg/http"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password, ipAddress, userAgent string) (*services.AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*services.AuthResponse, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest represents the request body for token refresh
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Login handles dashboard user login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		writeValidationError(w, err)
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r)
	userAgent := r.UserAgent()

	resp, err := h.service.Login(r.Context(), req.Email, req.Password, ipAddress, userAgent)
	if err != nil {
		var blocked *services.AccountBlockedError
		switch {
		case errors.As(err, &blocked):
			minutes := int(blocked.Remaining.Round(time.Minute) / time.Minute)
			if minutes < 1 {
				minutes = 1
			}
			pkghttp.WriteTooManyRequests(w,
				fmt.Sprintf("Too many failed attempts. Try again in %d minutes.", minutes),
				blocked.Remaining)
		case errors.Is(err, models.ErrUnauthorized):
			pkghttp.WriteUnauthorized(w, "Invalid email or password")
		default:
			pkghttp.WriteInternalError(w, "An unexpected error occurred")
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Refresh exchanges a refresh token for a new token pair.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		writeValidationError(w, err)
		return
	}

	resp, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, models.ErrUnauthorized) {
			pkghttp.WriteUnauthorized(w, "Invalid or expired refresh token")
			return
		}
		pkghttp.WriteInternalError(w, "An unexpected error occurred")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeValidationError(w http.ResponseWriter, err error) {
	if fe, ok := models.AsFieldError(err); ok {
		pkghttp.WriteError(w, http.StatusBadRequest, "validation_failed", fe.Error())
		return
	}
	pkghttp.WriteBadRequest(w, "Invalid request")
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tablegate/tablegate/internal/auth"
	"github.com/tablegate/tablegate/internal/models"
	pkgauth "github.com/tablegate/tablegate/pkg/auth"
	pkglogger "github.com/tablegate/tablegate/pkg/logger"
)

// UserRepository defines the user lookups the auth flow needs.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// AccountBlockedError is returned when the login guard denies an attempt.
// It carries the block window so the transport layer can tell the caller how
// long to wait.
type AccountBlockedError struct {
	BlockedUntil *time.Time
	Remaining    time.Duration
}

func (e *AccountBlockedError) Error() string {
	return fmt.Sprintf("account temporarily blocked, retry in %s", e.Remaining.Round(time.Second))
}

func (e *AccountBlockedError) Unwrap() error {
	return models.ErrAccountBlocked
}

// UserResponse represents a user in the HTTP response
type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// AuthResponse represents the response from auth operations
type AuthResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	User         *UserResponse `json:"user"`
}

// AuthService orchestrates login: guard check, credential verification,
// outcome recording, token issuance. The guard decides first; credentials are
// never even compared for a blocked identity.
type AuthService struct {
	users  UserRepository
	guard  *LoginGuard
	tm     *auth.TokenManager
	timing *auth.TimingDelay
	logger *slog.Logger
	audit  *pkglogger.AuditLogger
}

// NewAuthService creates a new AuthService
func NewAuthService(users UserRepository, guard *LoginGuard, tm *auth.TokenManager, timing *auth.TimingDelay, logger *slog.Logger, audit *pkglogger.AuditLogger) *AuthService {
	return &AuthService{
		users:  users,
		guard:  guard,
		tm:     tm,
		timing: timing,
		logger: logger,
		audit:  audit,
	}
}

// Login authenticates a dashboard user and returns a token pair. Failed
// attempts are counted against the (email, ip) identity whether or not the
// account exists, so probing unknown emails builds toward a block too.
func (s *AuthService) Login(ctx context.Context, email, password, ip, userAgent string) (*AuthResponse, error) {
	email = NormalizeEmail(email)
	if email == "" {
		s.timing.Wait(false)
		return nil, models.ErrUnauthorized
	}

	decision := s.guard.CheckBlocked(ctx, email, ip)
	if decision.Blocked {
		s.guard.ReportBlockedAttempt(email, ip, userAgent, decision)
		s.timing.Wait(false)
		return nil, &AccountBlockedError{
			BlockedUntil: decision.BlockedUntil,
			Remaining:    decision.Remaining(time.Now()),
		}
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, s.failAttempt(ctx, email, ip, userAgent, "invalid_credentials")
		}
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if user.Status != "active" {
		s.audit.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			Email:         email,
			IPAddress:     ip,
			UserAgent:     userAgent,
			Success:       false,
			FailureReason: "account_" + user.Status,
		})
		s.timing.Wait(false)
		return nil, models.ErrUnauthorized
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, s.failAttempt(ctx, email, ip, userAgent, "invalid_credentials")
	}

	if _, err := s.guard.RecordAttempt(ctx, email, ip, true); err != nil {
		// The login itself succeeded; a lost reset only means the count stays
		// where it was until the next attempt.
		s.audit.LogSecurityAnomaly("ledger_write_failed", err, map[string]string{
			"ip":      ip,
			"outcome": "success",
		})
	}

	accessToken, err := s.tm.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	refreshToken, err := s.tm.GenerateRefreshToken(user.ID, user.Email)
	if err != nil {
		s.logger.Error("failed to generate refresh token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.audit.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		Email:     email,
		IPAddress: ip,
		UserAgent: userAgent,
		Success:   true,
	})
	s.timing.Wait(true)

	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User: &UserResponse{
			ID:    user.ID,
			Email: user.Email,
			Name:  user.Name,
			Role:  user.Role,
		},
	}, nil
}

// failAttempt records a failed attempt, logs it, applies the timing delay and
// returns the uniform credential error. The caller learns nothing about
// whether the account exists.
func (s *AuthService) failAttempt(ctx context.Context, email, ip, userAgent, reason string) error {
	if _, err := s.guard.RecordAttempt(ctx, email, ip, false); err != nil {
		// A lost failure record weakens the brute-force defense. Loud log,
		// but the response to the caller stays the same.
		s.audit.LogSecurityAnomaly("ledger_write_failed", err, map[string]string{
			"ip":      ip,
			"outcome": "failure",
		})
	}

	s.audit.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:     "login_failed",
		Email:         email,
		IPAddress:     ip,
		UserAgent:     userAgent,
		Success:       false,
		FailureReason: reason,
	})
	s.timing.Wait(false)
	return models.ErrUnauthorized
}

// Refresh validates a refresh token and issues a new token pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	claims, err := s.tm.ValidateToken(refreshToken)
	if err != nil {
		return nil, models.ErrUnauthorized
	}
	if claims.Type != "refresh" {
		return nil, models.ErrUnauthorized
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get user by id", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if user.Status != "active" {
		return nil, models.ErrUnauthorized
	}

	accessToken, err := s.tm.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	newRefreshToken, err := s.tm.GenerateRefreshToken(user.ID, user.Email)
	if err != nil {
		s.logger.Error("failed to generate refresh token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
		User: &UserResponse{
			ID:    user.ID,
			Email: user.Email,
			Name:  user.Name,
			Role:  user.Role,
		},
	}, nil
}

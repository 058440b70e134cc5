package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/tablegate/tablegate/internal/models"
	"github.com/tablegate/tablegate/internal/notify"
	"github.com/tablegate/tablegate/internal/repositories"
	pkglogger "github.com/tablegate/tablegate/pkg/logger"
)

// AttemptLedger is the persistence contract for login attempt state. The
// increment-and-compare on failure is atomic inside the ledger; callers never
// read-compute-write.
type AttemptLedger interface {
	Get(ctx context.Context, email, ip string) (*models.AttemptRecord, error)
	RecordFailure(ctx context.Context, email, ip string, maxAttempts int, blockDuration time.Duration) (models.AttemptOutcome, error)
	RecordSuccess(ctx context.Context, email, ip string) error
}

// SettingReader reads runtime policy values.
type SettingReader interface {
	GetInt(ctx context.Context, key string) (int, error)
}

// LoginGuardPolicy is the effective policy for one evaluation.
type LoginGuardPolicy struct {
	MaxAttempts   int
	BlockDuration time.Duration
}

// LoginGuard decides whether a login attempt from an (email, ip) identity may
// proceed, and records attempt outcomes. Blocks expire lazily: an expired
// blocked_until simply stops matching; nothing rewrites the row until the next
// attempt, and expiry alone never resets the failure count.
type LoginGuard struct {
	ledger     AttemptLedger
	settings   SettingReader
	dispatcher *notify.Dispatcher
	logger     *slog.Logger
	audit      *pkglogger.AuditLogger

	defaults LoginGuardPolicy

	now func() time.Time
}

// NewLoginGuard creates a new LoginGuard. The defaults apply whenever the
// settings storage has no value for a policy key.
func NewLoginGuard(ledger AttemptLedger, settings SettingReader, dispatcher *notify.Dispatcher, logger *slog.Logger, audit *pkglogger.AuditLogger, defaults LoginGuardPolicy) *LoginGuard {
	return &LoginGuard{
		ledger:     ledger,
		settings:   settings,
		dispatcher: dispatcher,
		logger:     logger,
		audit:      audit,
		defaults:   defaults,
		now:        time.Now,
	}
}

// NormalizeEmail canonicalizes an email for use as a ledger key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CheckBlocked reports whether the identity is currently blocked. Read-only:
// calling it any number of times changes nothing. A missing ledger row means
// not blocked. An unreadable ledger fails open so that storage trouble does
// not lock every customer out; the error is logged as a security anomaly.
func (g *LoginGuard) CheckBlocked(ctx context.Context, email, ip string) models.BlockDecision {
	email = NormalizeEmail(email)

	rec, err := g.ledger.Get(ctx, email, ip)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.BlockDecision{}
		}
		g.audit.LogSecurityAnomaly("ledger_read_failed", err, map[string]string{
			"ip": ip,
		})
		return models.BlockDecision{}
	}

	if rec.BlockedUntil == nil || !rec.BlockedUntil.After(g.now()) {
		return models.BlockDecision{}
	}

	reason := models.BlockReasonMaxAttempts
	if rec.BlockReason != nil {
		reason = *rec.BlockReason
	}
	return models.BlockDecision{
		Blocked:      true,
		BlockedUntil: rec.BlockedUntil,
		Reason:       reason,
	}
}

// RecordAttempt persists the outcome of a finished login attempt. Success
// resets the identity to the clear state. Failure increments atomically in
// storage and, when the threshold is crossed, applies the block window and
// reports ShouldBlock for exactly that one attempt. Ledger write errors are
// surfaced to the caller; losing a failure record weakens the defense and must
// not be silent.
func (g *LoginGuard) RecordAttempt(ctx context.Context, email, ip string, success bool) (models.AttemptOutcome, error) {
	email = NormalizeEmail(email)

	if success {
		if err := g.ledger.RecordSuccess(ctx, email, ip); err != nil {
			return models.AttemptOutcome{}, err
		}
		return models.AttemptOutcome{}, nil
	}

	policy := g.policy(ctx)
	outcome, err := g.ledger.RecordFailure(ctx, email, ip, policy.MaxAttempts, policy.BlockDuration)
	if err != nil {
		return models.AttemptOutcome{}, err
	}

	if outcome.ShouldBlock {
		g.audit.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "account_blocked",
			Email:         email,
			IPAddress:     ip,
			Success:       false,
			FailureReason: models.BlockReasonMaxAttempts,
			BlockedUntil:  outcome.BlockUntil,
		})
		g.dispatcher.Emit(notify.Event{
			Type:          notify.EventAccountBlocked,
			Email:         email,
			IPAddress:     ip,
			BlockedUntil:  outcome.BlockUntil,
			Reason:        models.BlockReasonMaxAttempts,
			TriggeredBy:   ip,
			MaxAttempts:   policy.MaxAttempts,
			BlockDuration: policy.BlockDuration,
		})
	}

	return outcome, nil
}

// ReportBlockedAttempt records that a login attempt was denied because the
// identity is already blocked. The ledger is untouched: denied attempts do not
// increment the count or extend the window.
func (g *LoginGuard) ReportBlockedAttempt(email, ip, userAgent string, decision models.BlockDecision) {
	email = NormalizeEmail(email)

	g.audit.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:     "login_blocked_attempt",
		Email:         email,
		IPAddress:     ip,
		UserAgent:     userAgent,
		Success:       false,
		FailureReason: decision.Reason,
		BlockedUntil:  decision.BlockedUntil,
	})
	g.dispatcher.Emit(notify.Event{
		Type:         notify.EventBlockedAttempt,
		Email:        email,
		IPAddress:    ip,
		BlockedUntil: decision.BlockedUntil,
		Reason:       decision.Reason,
		TriggeredBy:  ip,
		UserAgent:    userAgent,
	})
}

// policy reads the live policy values, falling back to the configured
// defaults when a key is absent or unreadable. Reading fresh on every
// evaluation lets an operator tighten policy without a restart.
func (g *LoginGuard) policy(ctx context.Context) LoginGuardPolicy {
	policy := g.defaults

	if v, err := g.settings.GetInt(ctx, repositories.SettingMaxLoginAttempts); err == nil && v > 0 {
		policy.MaxAttempts = v
	} else if err != nil && !errors.Is(err, models.ErrNotFound) {
		g.logger.Warn("falling back to default max attempts", slog.Any("error", err))
	}

	if v, err := g.settings.GetInt(ctx, repositories.SettingBlockDurationMinutes); err == nil && v > 0 {
		policy.BlockDuration = time.Duration(v) * time.Minute
	} else if err != nil && !errors.Is(err, models.ErrNotFound) {
		g.logger.Warn("falling back to default block duration", slog.Any("error", err))
	}

	return policy
}

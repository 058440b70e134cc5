package repositories

import (
	"context"
	"time"

	"github.com/tablegate/tablegate/internal/database"
	"github.com/tablegate/tablegate/internal/models"
)

// AttemptLedgerRepository owns the login_blocks table: one aggregate row per
// (email, ip) identity. Nothing else writes this table.
type AttemptLedgerRepository struct {
	db *database.DB
}

// NewAttemptLedgerRepository creates a new AttemptLedgerRepository
func NewAttemptLedgerRepository(db *database.DB) *AttemptLedgerRepository {
	return &AttemptLedgerRepository{db: db}
}

// Get returns the ledger row for an identity, or models.ErrNotFound when the
// identity has no recorded attempts.
func (r *AttemptLedgerRepository) Get(ctx context.Context, email, ip string) (*models.AttemptRecord, error) {
	query := `
		SELECT email, ip_address, failure_count, last_attempt_at, blocked_until, block_reason
		FROM login_blocks
		WHERE email = $1 AND ip_address = $2
	`

	var rec models.AttemptRecord
	err := r.db.Pool.QueryRow(ctx, query, email, ip).Scan(
		&rec.Email,
		&rec.IPAddress,
		&rec.FailureCount,
		&rec.LastAttemptAt,
		&rec.BlockedUntil,
		&rec.BlockReason,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &rec, nil
}

// RecordFailure increments the failure count for an identity and applies the
// block transition in a single statement. The increment-and-compare happens
// inside the database, never in the caller: the upsert takes a row lock, so
// two concurrent failures cannot both observe threshold-1. An identity whose
// block is still active is not incremented and keeps its existing window.
func (r *AttemptLedgerRepository) RecordFailure(ctx context.Context, email, ip string, maxAttempts int, blockDuration time.Duration) (models.AttemptOutcome, error) {
	query := `
		WITH prior AS (
			SELECT blocked_until IS NOT NULL AND blocked_until > now() AS was_blocked
			FROM login_blocks
			WHERE email = $1 AND ip_address = $2
		), upsert AS (
			INSERT INTO login_blocks (email, ip_address, failure_count, last_attempt_at, blocked_until, block_reason)
			VALUES ($1, $2, 1, now(),
				CASE WHEN 1 >= $3 THEN now() + $4 END,
				CASE WHEN 1 >= $3 THEN 'max_attempts' END)
			ON CONFLICT (email, ip_address) DO UPDATE SET
				failure_count = CASE
					WHEN login_blocks.blocked_until IS NOT NULL AND login_blocks.blocked_until > now()
						THEN login_blocks.failure_count
					ELSE login_blocks.failure_count + 1
				END,
				blocked_until = CASE
					WHEN login_blocks.blocked_until IS NOT NULL AND login_blocks.blocked_until > now()
						THEN login_blocks.blocked_until
					WHEN login_blocks.failure_count + 1 >= $3
						THEN now() + $4
				END,
				block_reason = CASE
					WHEN login_blocks.blocked_until IS NOT NULL AND login_blocks.blocked_until > now()
						THEN login_blocks.block_reason
					WHEN login_blocks.failure_count + 1 >= $3
						THEN 'max_attempts'
				END,
				last_attempt_at = now()
			RETURNING failure_count, blocked_until
		)
		SELECT u.failure_count, u.blocked_until, COALESCE(p.was_blocked, false)
		FROM upsert u
		LEFT JOIN prior p ON true
	`

	var (
		failureCount int
		blockedUntil *time.Time
		wasBlocked   bool
	)
	err := r.db.Pool.QueryRow(ctx, query, email, ip, maxAttempts, blockDuration).
		Scan(&failureCount, &blockedUntil, &wasBlocked)
	if err != nil {
		return models.AttemptOutcome{}, database.MapPostgresError(err)
	}

	// ShouldBlock is true only for the write that caused the transition, not
	// for attempts that arrived while the identity was already blocked.
	nowBlocked := blockedUntil != nil && blockedUntil.After(time.Now())
	return models.AttemptOutcome{
		ShouldBlock: nowBlocked && !wasBlocked,
		BlockUntil:  blockedUntil,
	}, nil
}

// RecordSuccess resets the identity to the clear state.
func (r *AttemptLedgerRepository) RecordSuccess(ctx context.Context, email, ip string) error {
	query := `
		UPDATE login_blocks
		SET failure_count = 0, blocked_until = NULL, block_reason = NULL, last_attempt_at = now()
		WHERE email = $1 AND ip_address = $2
	`

	_, err := r.db.Pool.Exec(ctx, query, email, ip)
	return database.MapPostgresError(err)
}

// DeleteStale removes rows whose last attempt is older than the cutoff and
// whose block, if any, has long expired. Lazy expiry at read time remains the
// primary mechanism; this only keeps the table from accumulating dead rows.
func (r *AttemptLedgerRepository) DeleteStale(ctx context.Context, olderThan time.Time) (int64, error) {
	query := `
		DELETE FROM login_blocks
		WHERE last_attempt_at < $1
		  AND (blocked_until IS NULL OR blocked_until < now())
	`

	tag, err := r.db.Pool.Exec(ctx, query, olderThan)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}

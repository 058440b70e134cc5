package models

import "time"

// BlockReason identifies why an identity was blocked.
const BlockReasonMaxAttempts = "max_attempts"

// AttemptRecord is the per-identity aggregate row in the login ledger.
// One row per (email, ip) pair, not one row per attempt.
type AttemptRecord struct {
	Email         string     `db:"email"`
	IPAddress     string     `db:"ip_address"`
	FailureCount  int        `db:"failure_count"`
	LastAttemptAt time.Time  `db:"last_attempt_at"`
	BlockedUntil  *time.Time `db:"blocked_until"`
	BlockReason   *string    `db:"block_reason"`
}

// BlockDecision is the transient result of evaluating an identity against the
// ledger. It is computed fresh on every check and never persisted.
type BlockDecision struct {
	Blocked      bool
	BlockedUntil *time.Time
	Reason       string
}

// Remaining returns how long the block still holds at the given instant.
// Zero if the decision is not a block or the block has lapsed.
func (d BlockDecision) Remaining(now time.Time) time.Duration {
	if !d.Blocked || d.BlockedUntil == nil {
		return 0
	}
	r := d.BlockedUntil.Sub(now)
	if r < 0 {
		return 0
	}
	return r
}

// AttemptOutcome is returned by the ledger after recording an attempt.
type AttemptOutcome struct {
	ShouldBlock bool
	BlockUntil  *time.Time
}

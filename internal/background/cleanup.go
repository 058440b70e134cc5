package background

import (
	"context"
	"log/slog"
	"time"
)

const (
	// Ledger rows untouched this long, with no live block, are dead weight.
	ledgerRetention = 30 * 24 * time.Hour
	// Chat messages are operational data, not an archive.
	messageRetention = 90 * 24 * time.Hour
)

// LedgerCleaner removes stale attempt rows.
type LedgerCleaner interface {
	DeleteStale(ctx context.Context, olderThan time.Time) (int64, error)
}

// MessagePurger removes old logged messages.
type MessagePurger interface {
	PurgeOldMessages(ctx context.Context, olderThan time.Time) (int64, error)
}

// CleanupManager periodically removes stale ledger rows and old chat
// messages. It is a janitor, not a correctness mechanism: block expiry is
// evaluated lazily at read time whether or not this ever runs.
type CleanupManager struct {
	ledger   LedgerCleaner
	messages MessagePurger
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(ledger LedgerCleaner, messages MessagePurger, logger *slog.Logger, interval time.Duration) *CleanupManager {
	return &CleanupManager{
		ledger:   ledger,
		messages: messages,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// Stop signals the cleanup loop to exit.
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}

func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	now := time.Now()

	removed, err := cm.ledger.DeleteStale(cleanupCtx, now.Add(-ledgerRetention))
	if err != nil {
		cm.logger.Error("ledger cleanup failed", slog.Any("error", err))
	} else if removed > 0 {
		cm.logger.Info("removed stale ledger rows", slog.Int64("count", removed))
	}

	purged, err := cm.messages.PurgeOldMessages(cleanupCtx, now.Add(-messageRetention))
	if err != nil {
		cm.logger.Error("message cleanup failed", slog.Any("error", err))
	} else if purged > 0 {
		cm.logger.Info("purged old chat messages", slog.Int64("count", purged))
	}
}

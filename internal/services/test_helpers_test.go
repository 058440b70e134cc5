package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/tablegate/tablegate/internal/models"
	pkglogger "github.com/tablegate/tablegate/pkg/logger"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAudit() *pkglogger.AuditLogger {
	return pkglogger.NewAuditLogger(newTestLogger())
}

// mockLedger implements the same atomic contract as the SQL upsert: the
// increment-and-compare happens under one lock, blocked identities are not
// incremented, and ShouldBlock fires only on the causing transition.
type mockLedger struct {
	mu   sync.Mutex
	rows map[string]*models.AttemptRecord
	now  func() time.Time

	getCalls     int
	failureCalls int
	successCalls int

	getErr   error
	writeErr error
}

func newMockLedger(now func() time.Time) *mockLedger {
	return &mockLedger{
		rows: make(map[string]*models.AttemptRecord),
		now:  now,
	}
}

func ledgerKey(email, ip string) string {
	return email + "|" + ip
}

func (m *mockLedger) Get(ctx context.Context, email, ip string) (*models.AttemptRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++

	if m.getErr != nil {
		return nil, m.getErr
	}

	rec, ok := m.rows[ledgerKey(email, ip)]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *mockLedger) RecordFailure(ctx context.Context, email, ip string, maxAttempts int, blockDuration time.Duration) (models.AttemptOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failureCalls++

	if m.writeErr != nil {
		return models.AttemptOutcome{}, m.writeErr
	}

	now := m.now()
	key := ledgerKey(email, ip)
	rec, ok := m.rows[key]
	if !ok {
		rec = &models.AttemptRecord{Email: email, IPAddress: ip}
		m.rows[key] = rec
	}

	wasBlocked := rec.BlockedUntil != nil && rec.BlockedUntil.After(now)
	if !wasBlocked {
		rec.FailureCount++
		if rec.FailureCount >= maxAttempts {
			until := now.Add(blockDuration)
			reason := models.BlockReasonMaxAttempts
			rec.BlockedUntil = &until
			rec.BlockReason = &reason
		}
	}
	rec.LastAttemptAt = now

	nowBlocked := rec.BlockedUntil != nil && rec.BlockedUntil.After(now)
	var until *time.Time
	if rec.BlockedUntil != nil {
		u := *rec.BlockedUntil
		until = &u
	}
	return models.AttemptOutcome{
		ShouldBlock: nowBlocked && !wasBlocked,
		BlockUntil:  until,
	}, nil
}

func (m *mockLedger) RecordSuccess(ctx context.Context, email, ip string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.successCalls++

	if m.writeErr != nil {
		return m.writeErr
	}

	if rec, ok := m.rows[ledgerKey(email, ip)]; ok {
		rec.FailureCount = 0
		rec.BlockedUntil = nil
		rec.BlockReason = nil
		rec.LastAttemptAt = m.now()
	}
	return nil
}

func (m *mockLedger) failureCount(email, ip string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.rows[ledgerKey(email, ip)]
	if !ok {
		return 0
	}
	return rec.FailureCount
}

// mockSettings serves policy values from a map; absent keys return
// models.ErrNotFound like the real repository.
type mockSettings struct {
	mu     sync.Mutex
	values map[string]int
	err    error
}

func newMockSettings() *mockSettings {
	return &mockSettings{values: make(map[string]int)}
}

func (m *mockSettings) set(key string, value int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

func (m *mockSettings) GetInt(ctx context.Context, key string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	v, ok := m.values[key]
	if !ok {
		return 0, models.ErrNotFound
	}
	return v, nil
}

// countingStore records how often each storage operation runs, so tests can
// assert that rejected requests never touch storage.
type countingStore struct {
	mu sync.Mutex

	listMenuCalls    int
	historyCalls     int
	addonsCalls      int
	createOrderCalls int
	logMessageCalls  int

	historyLimit  int
	addonCategory string

	err error
}

func (s *countingStore) totalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listMenuCalls + s.historyCalls + s.addonsCalls + s.createOrderCalls + s.logMessageCalls
}

func (s *countingStore) ListMenu(ctx context.Context) ([]models.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listMenuCalls++
	if s.err != nil {
		return nil, s.err
	}
	return []models.MenuItem{{ID: "11111111-1111-1111-1111-111111111111", Name: "Tacos al pastor", Available: true}}, nil
}

func (s *countingStore) GetCustomerHistory(ctx context.Context, userID string, limit int) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.historyCalls++
	s.historyLimit = limit
	if s.err != nil {
		return nil, s.err
	}
	return []models.Order{}, nil
}

func (s *countingStore) ListAddons(ctx context.Context, productID, category string) ([]models.Addon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addonsCalls++
	s.addonCategory = category
	if s.err != nil {
		return nil, s.err
	}
	return []models.Addon{}, nil
}

func (s *countingStore) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createOrderCalls++
	if s.err != nil {
		return nil, s.err
	}
	created := *order
	created.ID = "22222222-2222-2222-2222-222222222222"
	created.Status = "pending"
	created.CreatedAt = time.Now()
	return &created, nil
}

func (s *countingStore) LogMessage(ctx context.Context, msg *models.ChatMessage) (*models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logMessageCalls++
	if s.err != nil {
		return nil, s.err
	}
	logged := *msg
	logged.ID = "33333333-3333-3333-3333-333333333333"
	logged.CreatedAt = time.Now()
	return &logged, nil
}

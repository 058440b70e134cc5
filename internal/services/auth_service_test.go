package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tablegate/tablegate/internal/auth"
	"github.com/tablegate/tablegate/internal/models"
	"golang.org/x/crypto/bcrypt"
)

type mockUserRepo struct {
	mu           sync.Mutex
	usersByEmail map[string]*models.User
	usersByID    map[string]*models.User
	getCalls     int
}

func newMockUserRepo(users ...*models.User) *mockUserRepo {
	repo := &mockUserRepo{
		usersByEmail: make(map[string]*models.User),
		usersByID:    make(map[string]*models.User),
	}
	for _, u := range users {
		repo.usersByEmail[u.Email] = u
		repo.usersByID[u.ID] = u
	}
	return repo
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	u, ok := m.usersByEmail[email]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.usersByID[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) lookups() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getCalls
}

func testPasswordHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func newTestAuthService(t *testing.T, users ...*models.User) (*AuthService, *mockLedger, *guardClock, *mockUserRepo) {
	t.Helper()

	guard, ledger, _, clock, _ := newTestGuard(t)
	repo := newMockUserRepo(users...)
	tm := auth.NewTokenManager("test-secret-32-characters-long!", 15*time.Minute, 24*time.Hour)
	timing := auth.NewTimingDelay(auth.TimingConfig{})

	svc := NewAuthService(repo, guard, tm, timing, newTestLogger(), newTestAudit())
	return svc, ledger, clock, repo
}

func TestAuthService_LoginSuccess(t *testing.T) {
	svc, ledger, _, _ := newTestAuthService(t, &models.User{
		ID:           "44444444-4444-4444-4444-444444444444",
		Email:        "owner@example.com",
		PasswordHash: testPasswordHash(t, "correct horse"),
		Name:         "Owner",
		Role:         "owner",
		Status:       "active",
	})

	resp, err := svc.Login(context.Background(), "owner@example.com", "correct horse", "203.0.113.9", "test")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "owner@example.com", resp.User.Email)
	assert.Zero(t, ledger.failureCount("owner@example.com", "203.0.113.9"))
}

// Five wrong passwords, then everything from that identity is denied for the
// cooldown window, correct password included.
func TestAuthService_BruteForceScenario(t *testing.T) {
	svc, _, clock, repo := newTestAuthService(t, &models.User{
		ID:           "44444444-4444-4444-4444-444444444444",
		Email:        "owner@example.com",
		PasswordHash: testPasswordHash(t, "correct horse"),
		Status:       "active",
	})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Login(ctx, "owner@example.com", "wrong", "203.0.113.9", "test")
		assert.ErrorIs(t, err, models.ErrUnauthorized)
	}

	lookupsBeforeBlock := repo.lookups()

	// Correct password, same identity: still denied, and the guard decides
	// before the user record is even fetched.
	_, err := svc.Login(ctx, "owner@example.com", "correct horse", "203.0.113.9", "test")
	assert.ErrorIs(t, err, models.ErrAccountBlocked)
	var blocked *AccountBlockedError
	require.ErrorAs(t, err, &blocked)
	assert.NotNil(t, blocked.BlockedUntil)
	assert.Equal(t, lookupsBeforeBlock, repo.lookups())

	// Same email from another IP is a different identity and goes through.
	resp, err := svc.Login(ctx, "owner@example.com", "correct horse", "198.51.100.7", "test")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)

	// After the window lapses the original identity can log in again.
	clock.advance(15*time.Minute + time.Second)
	resp, err = svc.Login(ctx, "owner@example.com", "correct horse", "203.0.113.9", "test")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
}

func TestAuthService_UnknownEmailCountsTowardBlock(t *testing.T) {
	svc, ledger, _, _ := newTestAuthService(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Login(ctx, "ghost@example.com", "whatever", "203.0.113.9", "test")
		assert.ErrorIs(t, err, models.ErrUnauthorized)
	}

	assert.Equal(t, 5, ledger.failureCount("ghost@example.com", "203.0.113.9"))

	_, err := svc.Login(ctx, "ghost@example.com", "whatever", "203.0.113.9", "test")
	assert.ErrorIs(t, err, models.ErrAccountBlocked)
}

func TestAuthService_SuccessResetsFailureCount(t *testing.T) {
	svc, ledger, _, _ := newTestAuthService(t, &models.User{
		ID:           "44444444-4444-4444-4444-444444444444",
		Email:        "owner@example.com",
		PasswordHash: testPasswordHash(t, "correct horse"),
		Status:       "active",
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Login(ctx, "owner@example.com", "wrong", "203.0.113.9", "test")
		assert.ErrorIs(t, err, models.ErrUnauthorized)
	}
	require.Equal(t, 3, ledger.failureCount("owner@example.com", "203.0.113.9"))

	_, err := svc.Login(ctx, "owner@example.com", "correct horse", "203.0.113.9", "test")
	require.NoError(t, err)
	assert.Zero(t, ledger.failureCount("owner@example.com", "203.0.113.9"))
}

func TestAuthService_InactiveAccountDenied(t *testing.T) {
	svc, ledger, _, _ := newTestAuthService(t, &models.User{
		ID:           "44444444-4444-4444-4444-444444444444",
		Email:        "owner@example.com",
		PasswordHash: testPasswordHash(t, "correct horse"),
		Status:       "suspended",
	})

	_, err := svc.Login(context.Background(), "owner@example.com", "correct horse", "203.0.113.9", "test")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
	// Account state denials are not credential failures and do not count.
	assert.Zero(t, ledger.failureCount("owner@example.com", "203.0.113.9"))
}

func TestAuthService_RefreshIssuesNewPair(t *testing.T) {
	svc, _, _, _ := newTestAuthService(t, &models.User{
		ID:           "44444444-4444-4444-4444-444444444444",
		Email:        "owner@example.com",
		PasswordHash: testPasswordHash(t, "correct horse"),
		Status:       "active",
	})
	ctx := context.Background()

	resp, err := svc.Login(ctx, "owner@example.com", "correct horse", "203.0.113.9", "test")
	require.NoError(t, err)

	refreshed, err := svc.Refresh(ctx, resp.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.Equal(t, "44444444-4444-4444-4444-444444444444", refreshed.User.ID)
}

func TestAuthService_RefreshRejectsAccessToken(t *testing.T) {
	svc, _, _, _ := newTestAuthService(t, &models.User{
		ID:           "44444444-4444-4444-4444-444444444444",
		Email:        "owner@example.com",
		PasswordHash: testPasswordHash(t, "correct horse"),
		Status:       "active",
	})
	ctx := context.Background()

	resp, err := svc.Login(ctx, "owner@example.com", "correct horse", "203.0.113.9", "test")
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, resp.AccessToken)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

package repositories

import (
	"context"
	"strconv"

	"github.com/tablegate/tablegate/internal/database"
	"github.com/tablegate/tablegate/internal/models"
)

// Setting keys read by the login guard on every evaluation.
const (
	SettingMaxLoginAttempts     = "max_login_attempts"
	SettingBlockDurationMinutes = "block_duration_minutes"
)

// SettingRepository reads runtime policy values from the app_settings table.
// Values are read fresh on each call so an admin can tighten policy without a
// restart; callers fall back to configured defaults on ErrNotFound.
type SettingRepository struct {
	db *database.DB
}

// NewSettingRepository creates a new SettingRepository
func NewSettingRepository(db *database.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

// GetInt returns the integer value for a setting key.
func (r *SettingRepository) GetInt(ctx context.Context, key string) (int, error) {
	query := `SELECT value FROM app_settings WHERE key = $1`

	var raw string
	if err := r.db.Pool.QueryRow(ctx, query, key).Scan(&raw); err != nil {
		return 0, database.MapPostgresError(err)
	}

	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, models.ErrBadRequest
	}
	return val, nil
}

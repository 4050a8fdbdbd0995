package repository

import (
	"database/sql"
	"fmt"

	"github.com/adiwicaksono/pd-tracker/internal/models"
	"go.uber.org/zap"
)

// SettingRepository handles app setting database operations. Settings
// are opaque key/value rows; nothing in the workflow interprets them.
type SettingRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSettingRepository creates a new setting repository
func NewSettingRepository(db *sql.DB, logger *zap.Logger) *SettingRepository {
	return &SettingRepository{
		db:     db,
		logger: logger,
	}
}

// Get retrieves a setting by key
func (r *SettingRepository) Get(key string) (*models.AppSetting, error) {
	var s models.AppSetting
	err := r.db.QueryRow(
		"SELECT id, key, value, updated_at FROM app_settings WHERE key = ?", key,
	).Scan(&s.ID, &s.Key, &s.Value, &s.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get setting", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("failed to get setting: %w", err)
	}
	return &s, nil
}

// Upsert creates or replaces a setting value
func (r *SettingRepository) Upsert(key, value string) error {
	query := `
		INSERT INTO app_settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`
	if _, err := r.db.Exec(query, key, value); err != nil {
		r.logger.Error("Failed to upsert setting", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to upsert setting: %w", err)
	}
	return nil
}

// List retrieves all settings as a key/value map
func (r *SettingRepository) List() (map[string]string, error) {
	rows, err := r.db.Query("SELECT key, value FROM app_settings")
	if err != nil {
		r.logger.Error("Failed to list settings", zap.Error(err))
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		settings[key] = value
	}
	return settings, rows.Err()
}

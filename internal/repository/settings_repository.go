package repository

import (
	"database/sql"
	"errors"
	"fmt"
)

// SettingsRepository is a key-value store of integer-encoded settings
type SettingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

func (r *SettingsRepository) GetInt(key string) (int, bool, error) {
	var value int
	err := r.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, true, nil
}

func (r *SettingsRepository) GetBool(key string) (bool, bool, error) {
	value, found, err := r.GetInt(key)
	return value != 0, found, err
}

func (r *SettingsRepository) SetInt(key string, value int) error {
	_, err := r.db.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to store setting %s: %w", key, err)
	}
	return nil
}

func (r *SettingsRepository) SetBool(key string, value bool) error {
	v := 0
	if value {
		v = 1
	}
	return r.SetInt(key, v)
}

// Delete removes key; deleting a missing key is not an error
func (r *SettingsRepository) Delete(key string) error {
	if _, err := r.db.Exec("DELETE FROM settings WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete setting %s: %w", key, err)
	}
	return nil
}

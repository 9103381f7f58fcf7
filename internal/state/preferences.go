package state

import (
	"database/sql"
	"time"
)

// Preference keys in use.
const (
	PrefSelectedApp = "selected_app"
)

type PreferenceRepository struct {
	db *sql.DB
}

func NewPreferenceRepository(db *DB) *PreferenceRepository {
	return &PreferenceRepository{db: db.DB}
}

// Get returns a preference value, or "" when unset.
func (r *PreferenceRepository) Get(userID, key string) (string, error) {
	var value string
	err := r.db.QueryRow(
		"SELECT value FROM preferences WHERE user_id = ? AND key = ?",
		userID, key,
	).Scan(&value)

	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// Set upserts a preference value.
func (r *PreferenceRepository) Set(userID, key, value string) error {
	_, err := r.db.Exec(`
		INSERT INTO preferences (user_id, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		userID, key, value, time.Now(),
	)
	return err
}

// Delete removes a preference.
func (r *PreferenceRepository) Delete(userID, key string) error {
	_, err := r.db.Exec("DELETE FROM preferences WHERE user_id = ? AND key = ?", userID, key)
	return err
}

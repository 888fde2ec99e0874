package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"math-learning-bot/internal/domain/preferences"
)

type preferenceStore struct {
	db *sql.DB
}

// NewPreferenceStore creates the durable store for preference records
func NewPreferenceStore(db *sql.DB) preferences.DurableStore {
	return &preferenceStore{db: db}
}

// Get returns the record stored under key; ok is false when there is none
func (s *preferenceStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	query := `SELECT data FROM preference_records WHERE record_key = ?`

	var data []byte
	err := s.db.QueryRowContext(ctx, query, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get preference record %s: %w", key, err)
	}

	return data, true, nil
}

// Set replaces the record stored under key
func (s *preferenceStore) Set(ctx context.Context, key string, data []byte) error {
	query := `
		INSERT OR REPLACE INTO preference_records (record_key, data, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
	`

	_, err := s.db.ExecContext(ctx, query, key, data)
	if err != nil {
		return fmt.Errorf("failed to set preference record %s: %w", key, err)
	}

	return nil
}

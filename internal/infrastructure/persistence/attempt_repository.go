package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"math-learning-bot/internal/domain/quiz"
	"math-learning-bot/internal/domain/user"
)

type attemptRepository struct {
	db *sql.DB
}

// NewAttemptRepository creates a new quiz attempt repository
func NewAttemptRepository(db *sql.DB) quiz.Repository {
	return &attemptRepository{db: db}
}

// SaveAttempt persists one answered question
func (r *attemptRepository) SaveAttempt(ctx context.Context, a *quiz.Attempt) error {
	query := `
		INSERT INTO quiz_attempts (user_id, category, focus, difficulty, question, given, expected,
			correct, timed_out, response_time_ms, answered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		int64(a.UserID()), a.Category(), a.Focus(), a.Difficulty(), a.Question(),
		a.Given(), a.Expected(), a.Correct(), a.TimedOut(), a.ResponseTimeMs(),
		a.AnsweredAt().UTC())
	if err != nil {
		return fmt.Errorf("failed to save attempt: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get attempt ID: %w", err)
	}

	a.SetID(quiz.ID(id))
	return nil
}

// RecentAttempts returns the latest attempts of a user, newest first
func (r *attemptRepository) RecentAttempts(ctx context.Context, userID user.ID, limit int) ([]*quiz.Attempt, error) {
	query := `
		SELECT id, category, focus, difficulty, question, given, expected, correct, timed_out,
			COALESCE(response_time_ms, 0), answered_at
		FROM quiz_attempts
		WHERE user_id = ?
		ORDER BY answered_at DESC, id DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, int64(userID), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*quiz.Attempt
	for rows.Next() {
		var id int64
		var category, focus, question string
		var difficulty, given, expected, responseTimeMs int
		var correct, timedOut bool
		var answeredAt time.Time
		if err := rows.Scan(&id, &category, &focus, &difficulty, &question, &given, &expected,
			&correct, &timedOut, &responseTimeMs, &answeredAt); err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		attempts = append(attempts, quiz.RestoreAttempt(quiz.ID(id), userID, category, focus,
			difficulty, question, given, expected, correct, timedOut, responseTimeMs, answeredAt))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return attempts, nil
}

// GetUserStats retrieves practice statistics for a user
func (r *attemptRepository) GetUserStats(ctx context.Context, userID user.ID, since time.Time) (*quiz.UserStats, error) {
	stats := &quiz.UserStats{ByCategory: make(map[string]quiz.CategoryStats)}

	rows, err := r.db.QueryContext(ctx, `
		SELECT category, COUNT(*), COALESCE(SUM(CASE WHEN correct THEN 1 ELSE 0 END), 0)
		FROM quiz_attempts WHERE user_id = ?
		GROUP BY category
	`, int64(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to get attempts by category: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var category string
		var cs quiz.CategoryStats
		if err := rows.Scan(&category, &cs.Attempts, &cs.Correct); err != nil {
			return nil, fmt.Errorf("failed to scan category stats: %w", err)
		}
		stats.ByCategory[category] = cs
		stats.TotalAttempts += cs.Attempts
		stats.CorrectAttempts += cs.Correct
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	rows.Close()

	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM quiz_attempts WHERE user_id = ? AND answered_at >= ?
	`, int64(userID), since.UTC()).Scan(&stats.AttemptsSince)
	if err != nil {
		return nil, fmt.Errorf("failed to count recent attempts: %w", err)
	}

	err = r.db.QueryRowContext(ctx, `
		SELECT answered_at FROM quiz_attempts WHERE user_id = ?
		ORDER BY answered_at DESC LIMIT 1
	`, int64(userID)).Scan(&stats.LastAttemptAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get last attempt: %w", err)
	}

	return stats, nil
}

// GetUsersWithAttempts retrieves all users who have answered at least once
func (r *attemptRepository) GetUsersWithAttempts(ctx context.Context) ([]user.ID, error) {
	query := `
		SELECT DISTINCT user_id
		FROM quiz_attempts
		ORDER BY user_id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query users with attempts: %w", err)
	}
	defer rows.Close()

	var userIDs []user.ID
	for rows.Next() {
		var userID int64
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan user ID: %w", err)
		}
		userIDs = append(userIDs, user.ID(userID))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return userIDs, nil
}

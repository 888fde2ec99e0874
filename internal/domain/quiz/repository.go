package quiz

import (
	"context"
	"time"

	"math-learning-bot/internal/domain/user"
)

// Repository defines the contract for quiz attempt persistence
type Repository interface {
	// SaveAttempt persists one answered question
	SaveAttempt(ctx context.Context, attempt *Attempt) error

	// RecentAttempts returns the latest attempts of a user, newest first
	RecentAttempts(ctx context.Context, userID user.ID, limit int) ([]*Attempt, error)

	// GetUserStats retrieves practice statistics for a user
	GetUserStats(ctx context.Context, userID user.ID, since time.Time) (*UserStats, error)

	// GetUsersWithAttempts retrieves all users who have answered at least once
	GetUsersWithAttempts(ctx context.Context) ([]user.ID, error)
}

// UserStats represents practice statistics for a user
type UserStats struct {
	TotalAttempts   int
	CorrectAttempts int
	// AttemptsSince counts attempts at or after the requested time.
	AttemptsSince int
	LastAttemptAt time.Time
	ByCategory    map[string]CategoryStats
}

// CategoryStats counts attempts in one category
type CategoryStats struct {
	Attempts int
	Correct  int
}

// Accuracy returns the share of correct attempts in percent.
func (s *UserStats) Accuracy() float64 {
	if s == nil || s.TotalAttempts == 0 {
		return 0
	}
	return float64(s.CorrectAttempts) * 100 / float64(s.TotalAttempts)
}

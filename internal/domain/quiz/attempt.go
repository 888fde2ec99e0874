package quiz

import (
	"time"

	"math-learning-bot/internal/domain/user"
)

// ID represents the attempt unique identifier
type ID int64

// Attempt is one answered question
type Attempt struct {
	id             ID
	userID         user.ID
	category       string
	focus          string
	difficulty     int
	question       string
	given          int
	expected       int
	correct        bool
	timedOut       bool
	responseTimeMs int
	answeredAt     time.Time
}

// RestoreAttempt rebuilds an attempt loaded from storage.
func RestoreAttempt(
	id ID,
	userID user.ID,
	category, focus string,
	difficulty int,
	question string,
	given, expected int,
	correct, timedOut bool,
	responseTimeMs int,
	answeredAt time.Time,
) *Attempt {
	return &Attempt{
		id:             id,
		userID:         userID,
		category:       category,
		focus:          focus,
		difficulty:     difficulty,
		question:       question,
		given:          given,
		expected:       expected,
		correct:        correct,
		timedOut:       timedOut,
		responseTimeMs: responseTimeMs,
		answeredAt:     answeredAt,
	}
}

// Getters
func (a *Attempt) ID() ID                { return a.id }
func (a *Attempt) UserID() user.ID       { return a.userID }
func (a *Attempt) Category() string      { return a.category }
func (a *Attempt) Focus() string         { return a.focus }
func (a *Attempt) Difficulty() int       { return a.difficulty }
func (a *Attempt) Question() string      { return a.question }
func (a *Attempt) Given() int            { return a.given }
func (a *Attempt) Expected() int         { return a.expected }
func (a *Attempt) Correct() bool         { return a.correct }
func (a *Attempt) TimedOut() bool        { return a.timedOut }
func (a *Attempt) ResponseTimeMs() int   { return a.responseTimeMs }
func (a *Attempt) AnsweredAt() time.Time { return a.answeredAt }

// SetID sets the attempt ID (used by repository)
func (a *Attempt) SetID(id ID) {
	a.id = id
}

package quiz

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"math-learning-bot/internal/domain/preferences"
	"math-learning-bot/internal/domain/user"
)

// ErrNoQuestion is returned when answering a session with no open question.
var ErrNoQuestion = errors.New("no open question")

// Settings are the preference values a quiz session runs with.
type Settings struct {
	Category      string
	Difficulty    int
	Focus         string
	QuestionCount int
	TimeLimit     time.Duration
	Hints         bool
}

// SettingsFrom reads quiz settings from a preference snapshot.
func SettingsFrom(s preferences.Snapshot) Settings {
	return Settings{
		Category:      s.Category(),
		Difficulty:    s.Difficulty(),
		Focus:         s.PracticeFocus(),
		QuestionCount: s.QuestionCount(),
		TimeLimit:     s.TimeLimit(),
		Hints:         s.HintsEnabled(),
	}
}

// Session is one run of questions for a user. It is not safe for concurrent use.
type Session struct {
	id        string
	userID    user.ID
	settings  Settings
	version   uint64
	current   *Problem
	askedAt   time.Time
	answered  int
	correct   int
	startedAt time.Time
}

// NewSession starts a session with the settings of snapshot.
func NewSession(userID user.ID, snapshot preferences.Snapshot, now time.Time) *Session {
	return &Session{
		id:        uuid.NewString(),
		userID:    userID,
		settings:  SettingsFrom(snapshot),
		version:   snapshot.Version(),
		startedAt: now,
	}
}

// Getters
func (s *Session) ID() string           { return s.id }
func (s *Session) UserID() user.ID      { return s.userID }
func (s *Session) Settings() Settings   { return s.settings }
func (s *Session) Version() uint64      { return s.version }
func (s *Session) Current() *Problem    { return s.current }
func (s *Session) Answered() int        { return s.answered }
func (s *Session) Correct() int         { return s.correct }
func (s *Session) StartedAt() time.Time { return s.startedAt }

// Apply adopts a newer preference snapshot mid-session. Older snapshots are
// ignored. The question count never drops below what was already asked.
func (s *Session) Apply(snapshot preferences.Snapshot) bool {
	if snapshot.Version() <= s.version {
		return false
	}
	settings := SettingsFrom(snapshot)
	asked := s.answered
	if s.current != nil {
		asked++
	}
	if settings.QuestionCount < asked {
		settings.QuestionCount = asked
	}
	s.settings = settings
	s.version = snapshot.Version()
	return true
}

// Done reports whether every question has been answered.
func (s *Session) Done() bool {
	return s.current == nil && s.answered >= s.settings.QuestionCount
}

// Remaining returns how many questions are left, the open one included.
func (s *Session) Remaining() int {
	n := s.settings.QuestionCount - s.answered
	if n < 0 {
		return 0
	}
	return n
}

// Ask opens the next question using gen.
func (s *Session) Ask(gen *Generator, now time.Time) *Problem {
	s.current = gen.Next(s.settings.Category, s.settings.Difficulty, s.settings.Focus)
	s.askedAt = now
	return s.current
}

// Answer closes the open question. An answer given after the time limit
// counts as incorrect.
func (s *Session) Answer(given int, now time.Time) (*Attempt, error) {
	if s.current == nil {
		return nil, ErrNoQuestion
	}
	p := s.current
	elapsed := now.Sub(s.askedAt)
	timedOut := s.settings.TimeLimit > 0 && elapsed > s.settings.TimeLimit
	correct := !timedOut && p.Check(given)

	s.current = nil
	s.answered++
	if correct {
		s.correct++
	}

	return &Attempt{
		userID:         s.userID,
		category:       p.Category(),
		focus:          p.Focus(),
		difficulty:     s.settings.Difficulty,
		question:       p.Text(),
		given:          given,
		expected:       p.Answer(),
		correct:        correct,
		timedOut:       timedOut,
		responseTimeMs: int(elapsed.Milliseconds()),
		answeredAt:     now,
	}, nil
}

package usecases

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"math-learning-bot/internal/application/adjust"
	"math-learning-bot/internal/application/prefsync"
	"math-learning-bot/internal/domain/preferences"
	"math-learning-bot/internal/domain/quiz"
	"math-learning-bot/internal/domain/user"
)

// ErrNoSession is returned when a user answers without an active quiz.
var ErrNoSession = errors.New("no active quiz session")

// AnswerResult describes the outcome of one answer.
type AnswerResult struct {
	Attempt  *quiz.Attempt
	Next     *quiz.Problem
	Done     bool
	Answered int
	Correct  int
	Total    int
	// Adjusted is set when the answer triggered an automatic adjustment.
	Adjusted bool
	Settings quiz.Settings
}

// QuizUseCase runs quiz sessions. It subscribes to preference updates so
// running sessions follow settings changes.
type QuizUseCase struct {
	hub      *prefsync.Hub
	attempts quiz.Repository
	adjuster *adjust.Adjuster
	gen      *quiz.Generator
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	sessions map[user.ID]*quiz.Session
}

// NewQuizUseCase creates a new quiz use case
func NewQuizUseCase(
	hub *prefsync.Hub,
	attempts quiz.Repository,
	adjuster *adjust.Adjuster,
	gen *quiz.Generator,
	logger *zap.Logger,
) *QuizUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if gen == nil {
		gen = quiz.NewGenerator(nil)
	}
	uc := &QuizUseCase{
		hub:      hub,
		attempts: attempts,
		adjuster: adjuster,
		gen:      gen,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[user.ID]*quiz.Session),
	}
	hub.Subscribe("quiz-sessions", uc.onPreferences)
	return uc
}

// onPreferences applies new settings to the user's running session. It
// never writes preferences, so guarded updates are handled like any other.
func (uc *QuizUseCase) onPreferences(_ context.Context, update prefsync.Update) error {
	id, ok := prefsync.ParseUserKey(update.UserKey)
	if !ok {
		return nil
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()

	session, ok := uc.sessions[user.ID(id)]
	if !ok {
		return nil
	}
	if session.Apply(update.Snapshot) {
		uc.logger.Debug("Quiz session picked up new settings",
			zap.Int64("user_id", id),
			zap.Uint64("version", update.Snapshot.Version()),
			zap.Stringer("origin", update.Origin))
	}
	return nil
}

// Start begins a new session for userID, replacing any running one, and
// returns its first problem.
func (uc *QuizUseCase) Start(ctx context.Context, userID user.ID) (*quiz.Session, *quiz.Problem, error) {
	store, err := uc.hub.For(ctx, int64(userID))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open preferences: %w", err)
	}
	snap, err := store.Read(ctx)
	if err != nil {
		uc.logger.Warn("Starting quiz with in-memory preferences", zap.Error(err))
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()

	session := quiz.NewSession(userID, snap, uc.now())
	// a write may have landed between Read and registration
	session.Apply(store.Current())
	problem := session.Ask(uc.gen, uc.now())
	uc.sessions[userID] = session
	if uc.adjuster != nil {
		uc.adjuster.Reset(int64(userID))
	}

	uc.logger.Info("Quiz started",
		zap.Int64("user_id", int64(userID)),
		zap.String("category", session.Settings().Category),
		zap.Int("questions", session.Settings().QuestionCount))
	return session, problem, nil
}

// Current returns the open problem of userID's session, if any.
func (uc *QuizUseCase) Current(userID user.ID) (*quiz.Problem, quiz.Settings, bool) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	session, ok := uc.sessions[userID]
	if !ok || session.Current() == nil {
		return nil, quiz.Settings{}, false
	}
	return session.Current(), session.Settings(), true
}

// Answer records the answer to the open problem, feeds the adjustment policy
// and asks the next problem with the settings in force afterwards.
func (uc *QuizUseCase) Answer(ctx context.Context, userID user.ID, given int) (*AnswerResult, error) {
	uc.mu.Lock()
	session, ok := uc.sessions[userID]
	if !ok {
		uc.mu.Unlock()
		return nil, ErrNoSession
	}
	attempt, err := session.Answer(given, uc.now())
	uc.mu.Unlock()
	if errors.Is(err, quiz.ErrNoQuestion) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}

	if err := uc.attempts.SaveAttempt(ctx, attempt); err != nil {
		uc.logger.Error("Failed to save quiz attempt", zap.Int64("user_id", int64(userID)), zap.Error(err))
	}

	result := &AnswerResult{Attempt: attempt}

	// runs outside uc.mu: the write broadcasts back into onPreferences
	if uc.adjuster != nil {
		store, err := uc.hub.For(ctx, int64(userID))
		if err == nil {
			_, result.Adjusted, err = uc.adjuster.Observe(ctx, int64(userID), store, attempt.Correct())
		}
		if err != nil {
			uc.logger.Warn("Automatic adjustment failed", zap.Int64("user_id", int64(userID)), zap.Error(err))
		}
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()

	if uc.sessions[userID] != session {
		// replaced or stopped meanwhile
		result.Done = true
		return result, nil
	}
	if session.Done() {
		delete(uc.sessions, userID)
		result.Done = true
	} else {
		result.Next = session.Ask(uc.gen, uc.now())
	}
	result.Answered = session.Answered()
	result.Correct = session.Correct()
	result.Total = session.Settings().QuestionCount
	result.Settings = session.Settings()
	return result, nil
}

// Stop ends userID's session. It reports whether one was running.
func (uc *QuizUseCase) Stop(userID user.ID) bool {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	_, ok := uc.sessions[userID]
	delete(uc.sessions, userID)
	return ok
}

// Stats returns the user's practice statistics for today.
func (uc *QuizUseCase) Stats(ctx context.Context, userID user.ID) (*quiz.UserStats, error) {
	stats, err := uc.attempts.GetUserStats(ctx, userID, startOfDay(uc.now()))
	if err != nil {
		return nil, fmt.Errorf("failed to get quiz stats: %w", err)
	}
	return stats, nil
}

// Settings returns the quiz settings userID would start with now.
func (uc *QuizUseCase) Settings(ctx context.Context, userID user.ID) (quiz.Settings, preferences.Snapshot, error) {
	store, err := uc.hub.For(ctx, int64(userID))
	if err != nil {
		return quiz.Settings{}, preferences.Snapshot{}, fmt.Errorf("failed to open preferences: %w", err)
	}
	snap, _ := store.Read(ctx)
	return quiz.SettingsFrom(snap), snap, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

package adjust

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"math-learning-bot/internal/domain/preferences"
)

// Proposer is satisfied by *Policy and *Live.
type Proposer interface {
	Propose(current preferences.Snapshot, sig Signal) (Proposal, bool, error)
}

// Target is the preference store an adjustment is written to.
type Target interface {
	Current() preferences.Snapshot
	Write(ctx context.Context, origin preferences.Origin, partial preferences.Partial, baseVersion uint64) (preferences.Snapshot, error)
}

type streak struct {
	correct   int
	incorrect int
	answered  int
}

// Adjuster tracks answer streaks per user and turns rule hits into
// AutomaticAdjustment writes.
type Adjuster struct {
	policy Proposer
	logger *zap.Logger

	mu      sync.Mutex
	streaks map[int64]*streak
}

// NewAdjuster creates an adjuster evaluating policy.
func NewAdjuster(policy Proposer, logger *zap.Logger) *Adjuster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adjuster{
		policy:  policy,
		logger:  logger,
		streaks: make(map[int64]*streak),
	}
}

// Observe records one answer and applies the first matching rule. It returns
// the snapshot after the write and whether anything was adjusted. A proposal
// touching only protected fields is dropped without error.
func (a *Adjuster) Observe(ctx context.Context, userID int64, target Target, correct bool) (preferences.Snapshot, bool, error) {
	sig := a.record(userID, correct)
	current := target.Current()

	proposal, ok, err := a.policy.Propose(current, sig)
	if err != nil {
		return current, false, err
	}
	if !ok {
		return current, false, nil
	}

	next, err := target.Write(ctx, preferences.AutomaticAdjustment, proposal.Partial, current.Version())
	switch {
	case errors.Is(err, preferences.ErrAllFieldsProtected):
		a.logger.Debug("Adjustment targets protected fields only",
			zap.Int64("user_id", userID),
			zap.String("rule", proposal.Rule))
		return current, false, nil
	case err != nil:
		return current, false, err
	}

	adjusted := next.Version() != current.Version()
	if adjusted {
		a.logger.Info("Preferences adjusted automatically",
			zap.Int64("user_id", userID),
			zap.String("rule", proposal.Rule),
			zap.Strings("fields", proposal.Partial.Names()),
			zap.Uint64("version", next.Version()))
		a.Reset(userID)
	}
	return next, adjusted, nil
}

func (a *Adjuster) record(userID int64, correct bool) Signal {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.streaks[userID]
	if !ok {
		s = &streak{}
		a.streaks[userID] = s
	}
	s.answered++
	if correct {
		s.correct++
		s.incorrect = 0
	} else {
		s.incorrect++
		s.correct = 0
	}
	return Signal{
		Correct:         correct,
		IncorrectStreak: s.incorrect,
		CorrectStreak:   s.correct,
		Answered:        s.answered,
	}
}

// Reset clears the streaks of userID, e.g. when a quiz session ends.
func (a *Adjuster) Reset(userID int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.streaks, userID)
}

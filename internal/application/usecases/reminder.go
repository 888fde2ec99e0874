package usecases

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"math-learning-bot/internal/config"
	"math-learning-bot/internal/domain/preferences"
	"math-learning-bot/internal/domain/quiz"
	"math-learning-bot/internal/domain/user"
)

// Notifier delivers a reminder to a chat.
type Notifier interface {
	SendMessageWithMarkdown(chatID int64, text string) error
}

// PreferenceReader returns a user's current preferences.
type PreferenceReader interface {
	Preferences(ctx context.Context, userID user.ID) (preferences.Snapshot, error)
}

// ReminderUseCase nudges users who have not practised today
type ReminderUseCase struct {
	notifier Notifier
	userRepo user.Repository
	attempts quiz.Repository
	prefs    PreferenceReader
	config   config.ReminderConfig
	logger   *zap.Logger
	now      func() time.Time

	mu    sync.Mutex
	state map[user.ID]*UserReminderState
}

// UserReminderState tracks reminder state for each user
type UserReminderState struct {
	LastReminderSent time.Time
	RemindersToday   int
	LastCheckDate    time.Time
}

// ReminderOption customises a ReminderUseCase.
type ReminderOption func(*ReminderUseCase)

// WithReminderClock replaces time.Now.
func WithReminderClock(now func() time.Time) ReminderOption {
	return func(uc *ReminderUseCase) { uc.now = now }
}

// NewReminderUseCase creates a new reminder use case
func NewReminderUseCase(
	notifier Notifier,
	userRepo user.Repository,
	attempts quiz.Repository,
	prefs PreferenceReader,
	cfg config.ReminderConfig,
	logger *zap.Logger,
	opts ...ReminderOption,
) *ReminderUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	uc := &ReminderUseCase{
		notifier: notifier,
		userRepo: userRepo,
		attempts: attempts,
		prefs:    prefs,
		config:   cfg,
		logger:   logger,
		now:      time.Now,
		state:    make(map[user.ID]*UserReminderState),
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Run checks for reminders every CheckInterval until ctx is done.
func (uc *ReminderUseCase) Run(ctx context.Context) error {
	uc.logger.Info("Starting reminder service", zap.Duration("check_interval", uc.config.CheckInterval))

	ticker := time.NewTicker(uc.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			uc.logger.Info("Reminder service stopping")
			return nil
		case <-ticker.C:
			uc.CheckAndSend(ctx)
		}
	}
}

// CheckAndSend runs one reminder pass and returns how many were sent.
func (uc *ReminderUseCase) CheckAndSend(ctx context.Context) int {
	if uc.isQuietTime(uc.now()) {
		return 0
	}

	ids, err := uc.attempts.GetUsersWithAttempts(ctx)
	if err != nil {
		uc.logger.Error("Failed to list practising users", zap.Error(err))
		return 0
	}

	sent := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		u, err := uc.userRepo.FindByID(ctx, id)
		if err != nil || u == nil {
			uc.logger.Warn("Skipping reminder for unknown user", zap.Int64("user_id", int64(id)), zap.Error(err))
			continue
		}
		stats, ok := uc.shouldRemind(ctx, u)
		if !ok {
			continue
		}
		if uc.send(u, stats) {
			sent++
		}
	}

	if sent > 0 {
		uc.logger.Info("Sent reminders", zap.Int("count", sent))
	}
	return sent
}

func (uc *ReminderUseCase) shouldRemind(ctx context.Context, u *user.User) (*quiz.UserStats, bool) {
	now := uc.now()

	snap, err := uc.prefs.Preferences(ctx, u.ID())
	if err != nil {
		uc.logger.Warn("Failed to read preferences", zap.Int64("user_id", int64(u.ID())), zap.Error(err))
		return nil, false
	}
	if !snap.RemindersEnabled() {
		return nil, false
	}

	uc.mu.Lock()
	state := uc.stateFor(u.ID(), now)
	allowed := state.RemindersToday < uc.config.MaxPerDay &&
		now.Sub(state.LastReminderSent) >= uc.config.MinInterval
	uc.mu.Unlock()
	if !allowed {
		return nil, false
	}

	stats, err := uc.attempts.GetUserStats(ctx, u.ID(), startOfDay(now))
	if err != nil {
		uc.logger.Warn("Failed to get quiz stats", zap.Int64("user_id", int64(u.ID())), zap.Error(err))
		return nil, false
	}
	if stats.AttemptsSince > 0 {
		return nil, false
	}
	// recently active users are left alone
	if now.Sub(u.LastActive()) < time.Hour {
		return nil, false
	}
	return stats, true
}

// stateFor must be called with uc.mu held.
func (uc *ReminderUseCase) stateFor(id user.ID, now time.Time) *UserReminderState {
	state, ok := uc.state[id]
	if !ok {
		state = &UserReminderState{LastCheckDate: now}
		uc.state[id] = state
	}
	if !isSameDay(state.LastCheckDate, now) {
		state.RemindersToday = 0
		state.LastCheckDate = now
	}
	return state
}

func (uc *ReminderUseCase) send(u *user.User, stats *quiz.UserStats) bool {
	text := uc.message(u, stats)
	if err := uc.notifier.SendMessageWithMarkdown(int64(u.TelegramID()), text); err != nil {
		uc.logger.Error("Failed to send reminder",
			zap.Int64("user_id", int64(u.ID())),
			zap.Int64("telegram_id", int64(u.TelegramID())),
			zap.Error(err))
		return false
	}

	now := uc.now()
	uc.mu.Lock()
	state := uc.stateFor(u.ID(), now)
	state.LastReminderSent = now
	state.RemindersToday++
	uc.mu.Unlock()

	uc.logger.Debug("Sent reminder", zap.Int64("user_id", int64(u.ID())))
	return true
}

func (uc *ReminderUseCase) message(u *user.User, stats *quiz.UserStats) string {
	var greeting string
	switch hour := uc.now().Hour(); {
	case hour < 12:
		greeting = "Good morning"
	case hour < 17:
		greeting = "Good afternoon"
	default:
		greeting = "Good evening"
	}

	msg := fmt.Sprintf("🧮 %s, %s!\n\n"+
		"You haven't practised today. A few quick problems keep your skills sharp! ✨\n\n"+
		"Use /quiz to start, or /menu for more options.",
		greeting, u.DisplayName())

	if stats.TotalAttempts > 0 {
		msg += fmt.Sprintf("\n\n📊 So far you've solved **%d of %d** problems (%.0f%%). Keep it up! 🌟",
			stats.CorrectAttempts, stats.TotalAttempts, stats.Accuracy())
	}
	return msg
}

// isQuietTime checks if t falls within quiet hours. Equal bounds disable them.
func (uc *ReminderUseCase) isQuietTime(t time.Time) bool {
	hour := t.Hour()
	start := uc.config.QuietHourStart
	end := uc.config.QuietHourEnd

	switch {
	case start == end:
		return false
	case start > end:
		// crosses midnight, e.g. 22:00 to 08:00
		return hour >= start || hour < end
	default:
		return hour >= start && hour < end
	}
}

// isSameDay checks if two times are on the same day
func isSameDay(t1, t2 time.Time) bool {
	y1, m1, d1 := t1.Date()
	y2, m2, d2 := t2.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// ReminderStats summarises reminder activity.
type ReminderStats struct {
	TrackedUsers int
	SentToday    int
}

// Stats returns statistics about reminders sent so far
func (uc *ReminderUseCase) Stats() ReminderStats {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	now := uc.now()
	stats := ReminderStats{TrackedUsers: len(uc.state)}
	for _, state := range uc.state {
		if isSameDay(state.LastCheckDate, now) {
			stats.SentToday += state.RemindersToday
		}
	}
	return stats
}

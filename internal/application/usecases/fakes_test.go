package usecases

import (
	"context"
	"sync"
	"time"

	"math-learning-bot/internal/domain/preferences"
	"math-learning-bot/internal/domain/quiz"
	"math-learning-bot/internal/domain/user"
)

type fakeUsers struct {
	mu     sync.Mutex
	users  map[user.ID]*user.User
	nextID user.ID
}

func newFakeUsers(users ...*user.User) *fakeUsers {
	f := &fakeUsers{users: make(map[user.ID]*user.User)}
	for _, u := range users {
		f.users[u.ID()] = u
		if u.ID() > f.nextID {
			f.nextID = u.ID()
		}
	}
	return f
}

func (f *fakeUsers) Save(_ context.Context, u *user.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	u.SetID(f.nextID)
	f.users[u.ID()] = u
	return nil
}

func (f *fakeUsers) FindByID(_ context.Context, id user.ID) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[id], nil
}

func (f *fakeUsers) FindByTelegramID(_ context.Context, telegramID user.TelegramID) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.TelegramID() == telegramID {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeUsers) Update(_ context.Context, u *user.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.ID()] = u
	return nil
}

func (f *fakeUsers) UpdateLastActive(context.Context, user.ID) error { return nil }

func (f *fakeUsers) GetAllUsers(context.Context) ([]*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*user.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, nil
}

type fakeAttempts struct {
	mu       sync.Mutex
	attempts []*quiz.Attempt
	stats    map[user.ID]*quiz.UserStats
}

func newFakeAttempts() *fakeAttempts {
	return &fakeAttempts{stats: make(map[user.ID]*quiz.UserStats)}
}

func (f *fakeAttempts) SaveAttempt(_ context.Context, a *quiz.Attempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a.SetID(quiz.ID(len(f.attempts) + 1))
	f.attempts = append(f.attempts, a)
	return nil
}

func (f *fakeAttempts) RecentAttempts(_ context.Context, userID user.ID, limit int) ([]*quiz.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*quiz.Attempt
	for i := len(f.attempts) - 1; i >= 0 && len(out) < limit; i-- {
		if f.attempts[i].UserID() == userID {
			out = append(out, f.attempts[i])
		}
	}
	return out, nil
}

func (f *fakeAttempts) GetUserStats(_ context.Context, userID user.ID, _ time.Time) (*quiz.UserStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.stats[userID]; ok {
		return s, nil
	}
	s := &quiz.UserStats{ByCategory: map[string]quiz.CategoryStats{}}
	for _, a := range f.attempts {
		if a.UserID() != userID {
			continue
		}
		s.TotalAttempts++
		s.AttemptsSince++
		if a.Correct() {
			s.CorrectAttempts++
		}
	}
	return s, nil
}

func (f *fakeAttempts) GetUsersWithAttempts(context.Context) ([]user.ID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]user.ID, 0, len(f.stats))
	for id := range f.stats {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeAttempts) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.attempts)
}

type prefsFunc func(ctx context.Context, userID user.ID) (preferences.Snapshot, error)

func (fn prefsFunc) Preferences(ctx context.Context, userID user.ID) (preferences.Snapshot, error) {
	return fn(ctx, userID)
}

type sentMessage struct {
	chatID int64
	text   string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (n *fakeNotifier) SendMessageWithMarkdown(chatID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentMessage{chatID: chatID, text: text})
	return nil
}

func (n *fakeNotifier) messages() []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentMessage(nil), n.sent...)
}

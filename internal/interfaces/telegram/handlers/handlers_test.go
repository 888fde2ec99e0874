package handlers

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"math-learning-bot/internal/application/adjust"
	"math-learning-bot/internal/application/prefsync"
	"math-learning-bot/internal/application/usecases"
	"math-learning-bot/internal/domain/preferences"
	"math-learning-bot/internal/domain/user"
	"math-learning-bot/internal/infrastructure/persistence"
	"math-learning-bot/internal/infrastructure/persistence/memory"
)

const chatID int64 = 555

type sent struct {
	method    string
	chatID    int64
	messageID int
	text      string
	keyboard  *tgbotapi.InlineKeyboardMarkup
}

type fakeMessenger struct {
	mu        sync.Mutex
	sent      []sent
	callbacks map[string]string
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{callbacks: make(map[string]string)}
}

func (m *fakeMessenger) record(s sent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, s)
	return nil
}

func (m *fakeMessenger) SendMessage(chatID int64, text string) error {
	return m.record(sent{method: "send", chatID: chatID, text: text})
}

func (m *fakeMessenger) SendMessageWithMarkdown(chatID int64, text string) error {
	return m.record(sent{method: "markdown", chatID: chatID, text: text})
}

func (m *fakeMessenger) SendMessageWithKeyboard(chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) error {
	return m.record(sent{method: "send", chatID: chatID, text: text, keyboard: &kb})
}

func (m *fakeMessenger) EditMessage(chatID int64, messageID int, text string) error {
	return m.record(sent{method: "edit", chatID: chatID, messageID: messageID, text: text})
}

func (m *fakeMessenger) EditMessageWithKeyboard(chatID int64, messageID int, text string, kb tgbotapi.InlineKeyboardMarkup) error {
	return m.record(sent{method: "edit", chatID: chatID, messageID: messageID, text: text, keyboard: &kb})
}

func (m *fakeMessenger) AnswerCallbackQuery(callbackID string, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks[callbackID] = text
	return nil
}

func (m *fakeMessenger) last() sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sent{}
	}
	return m.sent[len(m.sent)-1]
}

func (m *fakeMessenger) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *fakeMessenger) byMethod(method string) []sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []sent
	for _, s := range m.sent {
		if s.method == method {
			out = append(out, s)
		}
	}
	return out
}

func (m *fakeMessenger) callbackText(id string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	text, ok := m.callbacks[id]
	return text, ok
}

type fixture struct {
	handler  *BotHandler
	bot      *fakeMessenger
	hub      *prefsync.Hub
	users    *usecases.UserUseCase
	settings *usecases.SettingsUseCase
	quiz     *usecases.QuizUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := persistence.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	live := adjust.NewLive(adjust.DefaultPolicy())
	hub := prefsync.NewHub(memory.NewKV(), nil, prefsync.WithProtection(live))
	t.Cleanup(func() { _ = hub.Close(context.Background()) })

	f := &fixture{
		bot:      newFakeMessenger(),
		hub:      hub,
		users:    usecases.NewUserUseCase(persistence.NewUserRepository(db)),
		settings: usecases.NewSettingsUseCase(hub, nil),
	}
	f.quiz = usecases.NewQuizUseCase(hub, persistence.NewAttemptRepository(db), adjust.NewAdjuster(live, nil), nil, nil)
	f.handler = NewBotHandler(f.bot, f.users, f.settings, f.quiz, nil)
	return f
}

func (f *fixture) user(t *testing.T) *user.User {
	t.Helper()
	u, err := f.users.GetUserByTelegramID(context.Background(), user.TelegramID(chatID))
	require.NoError(t, err)
	return u
}

func messageUpdate(text string) tgbotapi.Update {
	msg := &tgbotapi.Message{
		MessageID: 10,
		From:      &tgbotapi.User{ID: chatID, FirstName: "Ada", UserName: "ada"},
		Chat:      &tgbotapi.Chat{ID: chatID},
		Text:      text,
	}
	if strings.HasPrefix(text, "/") {
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}}
	}
	return tgbotapi.Update{Message: msg}
}

func callbackUpdate(id, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   id,
		From: &tgbotapi.User{ID: chatID, FirstName: "Ada", UserName: "ada"},
		Message: &tgbotapi.Message{
			MessageID: 20,
			Chat:      &tgbotapi.Chat{ID: chatID},
		},
		Data: data,
	}}
}

func callbackData(kb *tgbotapi.InlineKeyboardMarkup) []string {
	var out []string
	for _, row := range kb.InlineKeyboard {
		for _, b := range row {
			if b.CallbackData != nil {
				out = append(out, *b.CallbackData)
			}
		}
	}
	return out
}

func TestBotHandler_Start(t *testing.T) {
	f := newFixture(t)

	f.handler.handleUpdate(context.Background(), messageUpdate("/start"))

	last := f.bot.last()
	assert.Equal(t, chatID, last.chatID)
	assert.Contains(t, last.text, "Welcome to Math Practice Bot, Ada")
	require.NotNil(t, last.keyboard)
	assert.Contains(t, callbackData(last.keyboard), "menu:quiz")
	assert.Equal(t, "Ada", f.user(t).FirstName())
}

func TestBotHandler_UnknownText(t *testing.T) {
	f := newFixture(t)

	f.handler.handleUpdate(context.Background(), messageUpdate("hello"))

	assert.Contains(t, f.bot.last().text, "/menu")
}

func TestBotHandler_QuizAnswerFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.handler.handleUpdate(ctx, messageUpdate("/quiz"))
	last := f.bot.last()
	assert.Contains(t, last.text, "Question 1 of 10")
	require.NotNil(t, last.keyboard)
	assert.Contains(t, callbackData(last.keyboard), "quiz:hint")

	problem, _, ok := f.quiz.Current(f.user(t).ID())
	require.True(t, ok)

	f.handler.handleUpdate(ctx, callbackUpdate("cb1", "answer:"+strconv.Itoa(problem.Answer())))

	last = f.bot.last()
	assert.Equal(t, "edit", last.method)
	assert.Contains(t, last.text, "Correct!")
	assert.Contains(t, last.text, "Question 2 of 10")
	_, answered := f.bot.callbackText("cb1")
	assert.True(t, answered)
}

func TestBotHandler_DuplicateAnswerClickIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.handler.clicks.now = func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }

	f.handler.handleUpdate(ctx, messageUpdate("/quiz"))
	problem, _, ok := f.quiz.Current(f.user(t).ID())
	require.True(t, ok)

	f.handler.handleUpdate(ctx, callbackUpdate("cb1", "answer:"+strconv.Itoa(problem.Answer())))
	f.handler.handleUpdate(ctx, callbackUpdate("cb2", "answer:"+strconv.Itoa(problem.Answer())))

	assert.Len(t, f.bot.byMethod("edit"), 1)
	_, answered := f.bot.callbackText("cb2")
	assert.True(t, answered)
}

func TestBotHandler_TypedAnswer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.handler.handleUpdate(ctx, messageUpdate("/quiz"))
	problem, _, ok := f.quiz.Current(f.user(t).ID())
	require.True(t, ok)

	f.handler.handleUpdate(ctx, messageUpdate(" "+strconv.Itoa(problem.Answer()+1)+" "))

	assert.Contains(t, f.bot.last().text, "Not quite")
}

func TestBotHandler_QuizStop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.handler.handleUpdate(ctx, messageUpdate("/quiz"))
	f.handler.handleUpdate(ctx, callbackUpdate("cb1", "quiz:stop"))

	assert.Contains(t, f.bot.last().text, "Quiz stopped")
	_, _, ok := f.quiz.Current(f.user(t).ID())
	assert.False(t, ok)

	f.handler.handleUpdate(ctx, callbackUpdate("cb2", "answer:4"))
	text, _ := f.bot.callbackText("cb2")
	assert.Contains(t, text, "/quiz")
}

func TestBotHandler_Settings(t *testing.T) {
	f := newFixture(t)

	f.handler.handleUpdate(context.Background(), messageUpdate("/settings"))

	last := f.bot.last()
	assert.Contains(t, last.text, "Difficulty: **1**/5")
	require.NotNil(t, last.keyboard)
	assert.Contains(t, callbackData(last.keyboard), "set:difficulty:2:0")
	assert.Contains(t, callbackData(last.keyboard), "toggle:hints_enabled")
}

func TestBotHandler_SetCallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.handler.handleUpdate(ctx, callbackUpdate("cb1", "set:difficulty:3:0"))

	text, _ := f.bot.callbackText("cb1")
	assert.Equal(t, "Difficulty: 3", text)
	last := f.bot.last()
	assert.Equal(t, "edit", last.method)
	assert.Contains(t, last.text, "Difficulty: **3**/5")
	assert.Contains(t, callbackData(last.keyboard), "set:difficulty:4:1")

	snap, err := f.settings.Preferences(ctx, f.user(t).ID())
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Difficulty())
	assert.Equal(t, uint64(1), snap.Version())
}

func TestBotHandler_SetCallback_StaleMenuStillApplies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.handler.handleUpdate(ctx, callbackUpdate("cb1", "set:difficulty:3:0"))
	// a second button from the same, now outdated, menu
	f.handler.handleUpdate(ctx, callbackUpdate("cb2", "set:category:division:0"))

	snap, err := f.settings.Preferences(ctx, f.user(t).ID())
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Difficulty())
	assert.Equal(t, "division", snap.Category())
	assert.Equal(t, uint64(2), snap.Version())
}

func TestBotHandler_SetCallback_OutOfRange(t *testing.T) {
	f := newFixture(t)

	f.handler.handleUpdate(context.Background(), callbackUpdate("cb1", "set:difficulty:0:0"))

	text, _ := f.bot.callbackText("cb1")
	assert.Equal(t, "That's already the limit.", text)
	assert.Zero(t, f.bot.count())
}

func TestBotHandler_ToggleCallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.handler.handleUpdate(ctx, callbackUpdate("cb1", "toggle:reminders_enabled"))

	text, _ := f.bot.callbackText("cb1")
	assert.Equal(t, "Reminders: off", text)
	snap, err := f.settings.Preferences(ctx, f.user(t).ID())
	require.NoError(t, err)
	assert.False(t, snap.RemindersEnabled())
}

func TestBotHandler_Stats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.handler.handleUpdate(ctx, messageUpdate("/quiz"))
	problem, _, ok := f.quiz.Current(f.user(t).ID())
	require.True(t, ok)
	f.handler.handleUpdate(ctx, callbackUpdate("cb1", "answer:"+strconv.Itoa(problem.Answer())))

	f.handler.handleUpdate(ctx, callbackUpdate("cb2", "menu:stats"))

	last := f.bot.last()
	assert.Contains(t, last.text, "Problems solved: 1")
	assert.Contains(t, last.text, "Accuracy: 100%")
}

func TestBotHandler_Start_StopsWhenChannelCloses(t *testing.T) {
	f := newFixture(t)
	updates := make(chan tgbotapi.Update, 2)
	updates <- messageUpdate("/help")
	close(updates)

	require.NoError(t, f.handler.Start(context.Background(), updates))
	assert.Contains(t, f.bot.last().text, "Math Practice Bot Help")
}

func TestSettingsNotifier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	notices := newFakeMessenger()
	NewSettingsNotifier(notices, f.users, nil).Subscribe(f.hub)

	f.handler.handleUpdate(ctx, messageUpdate("/start"))
	id := f.user(t).ID()

	_, err := f.settings.Set(ctx, id, preferences.FieldDifficulty, preferences.Int(2), 0)
	require.NoError(t, err)
	assert.Zero(t, notices.count(), "user initiated changes are not announced")

	f.handler.handleUpdate(ctx, messageUpdate("/quiz"))
	for i := 0; i < 3; i++ {
		problem, _, ok := f.quiz.Current(id)
		require.True(t, ok)
		_, err := f.quiz.Answer(ctx, id, problem.Answer()+1)
		require.NoError(t, err)
	}

	require.Equal(t, 1, notices.count())
	notice := notices.last()
	assert.Equal(t, chatID, notice.chatID)
	assert.Contains(t, notice.text, "Practice adjusted")
	assert.Contains(t, notice.text, "Practice focus: **carrying**")

	// the notifier only reads: nothing beyond the adjustment was written
	snap, err := f.settings.Preferences(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), snap.Version())
}

func TestSettingsNotifier_ExternalSync(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	notices := newFakeMessenger()
	NewSettingsNotifier(notices, f.users, nil).Subscribe(f.hub)

	f.handler.handleUpdate(ctx, messageUpdate("/start"))
	id := f.user(t).ID()
	_, err := f.settings.Set(ctx, id, preferences.FieldLargeText, preferences.Bool(true), 0)
	require.NoError(t, err)

	record, err := preferences.EncodeRecord(prefsync.UserKey(int64(id)),
		preferences.Defaults().Merge(preferences.Partial{
			preferences.FieldLargeText: preferences.Bool(true),
			preferences.FieldCategory:  preferences.String("percentages"),
		}, time.Now()))
	require.NoError(t, err)
	_, err = f.settings.Import(ctx, id, record)
	require.NoError(t, err)

	require.Equal(t, 1, notices.count())
	assert.Contains(t, notices.last().text, "Settings synced")
	assert.Contains(t, notices.last().text, "Category: **percentages**")
	assert.NotContains(t, notices.last().text, "Large text")
}

package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"math-learning-bot/internal/application/usecases"
	"math-learning-bot/internal/domain/user"
	"math-learning-bot/internal/interfaces/telegram/handlers/shared"
)

// clickTracker tracks recent clicks to prevent rapid duplicates
type clickTracker struct {
	mu         sync.Mutex
	lastClicks map[string]time.Time
	window     time.Duration
	now        func() time.Time
}

func newClickTracker() *clickTracker {
	return &clickTracker{
		lastClicks: make(map[string]time.Time),
		window:     time.Second,
		now:        time.Now,
	}
}

// allow records a click and reports whether it is outside the debounce window
// of the previous click on the same message.
func (ct *clickTracker) allow(userID int64, messageID int) bool {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	now := ct.now()
	key := fmt.Sprintf("%d_%d", userID, messageID)
	last, exists := ct.lastClicks[key]
	if exists && now.Sub(last) < ct.window {
		return false
	}
	ct.lastClicks[key] = now

	// old entries go whenever the map grows
	if len(ct.lastClicks) > 1024 {
		cutoff := now.Add(-5 * time.Minute)
		for k, t := range ct.lastClicks {
			if t.Before(cutoff) {
				delete(ct.lastClicks, k)
			}
		}
	}
	return true
}

// handleQuizFlow starts a quiz for both commands and callbacks
func (h *BotHandler) handleQuizFlow(ctx context.Context, chatID int64, messageID int, u *user.User, isCallback bool) {
	session, problem, err := h.quizUseCase.Start(ctx, u.ID())
	if err != nil {
		h.logger.Error("Failed to start quiz", zap.Int64("user_id", int64(u.ID())), zap.Error(err))
		h.replyError(chatID, messageID, isCallback, "Sorry, there was an error starting your quiz. Please try again.")
		return
	}

	settings := session.Settings()
	text := shared.FormatQuestion(problem, 1, settings.QuestionCount, settings)
	h.reply(chatID, messageID, isCallback, text, shared.CreateQuestionKeyboard(problem, settings.Hints))
}

// handleAnswerCallback handles "answer:<n>" buttons
func (h *BotHandler) handleAnswerCallback(ctx context.Context, callback *tgbotapi.CallbackQuery, u *user.User, args []string) {
	if len(args) != 1 {
		h.answerCallback(callback, "")
		return
	}
	given, err := strconv.Atoi(args[0])
	if err != nil {
		h.answerCallback(callback, "")
		return
	}
	if !h.clicks.allow(int64(u.ID()), callback.Message.MessageID) {
		h.answerCallback(callback, "")
		return
	}

	result, err := h.quizUseCase.Answer(ctx, u.ID(), given)
	if errors.Is(err, usecases.ErrNoSession) {
		h.answerCallback(callback, "This quiz has ended. Start a new one with /quiz.")
		return
	}
	if err != nil {
		h.logger.Error("Failed to record answer", zap.Int64("user_id", int64(u.ID())), zap.Error(err))
		h.answerCallback(callback, "Sorry, there was an error saving your answer.")
		return
	}

	h.answerCallback(callback, "")
	h.showResult(callback.Message.Chat.ID, callback.Message.MessageID, true, result)
}

// handleTypedAnswer handles a number typed while a question is open
func (h *BotHandler) handleTypedAnswer(ctx context.Context, message *tgbotapi.Message, u *user.User, given int) {
	result, err := h.quizUseCase.Answer(ctx, u.ID(), given)
	if err != nil {
		if !errors.Is(err, usecases.ErrNoSession) {
			h.logger.Error("Failed to record answer", zap.Int64("user_id", int64(u.ID())), zap.Error(err))
		}
		h.send(h.bot.SendMessage(message.Chat.ID, "There is no open question. Start a quiz with /quiz."))
		return
	}
	h.showResult(message.Chat.ID, message.MessageID, false, result)
}

// handleQuizControl handles the hint, stop and again buttons
func (h *BotHandler) handleQuizControl(ctx context.Context, callback *tgbotapi.CallbackQuery, u *user.User, control string) {
	chatID, messageID := callback.Message.Chat.ID, callback.Message.MessageID

	switch control {
	case "hint":
		problem, settings, ok := h.quizUseCase.Current(u.ID())
		if !ok || !settings.Hints {
			return
		}
		h.send(h.bot.SendMessageWithMarkdown(chatID, fmt.Sprintf("💡 _%s_", problem.Hint())))
	case "stop":
		if h.quizUseCase.Stop(u.ID()) {
			h.reply(chatID, messageID, true, "⏹ Quiz stopped. Come back any time!", shared.CreateQuizFinishedKeyboard())
		}
	case "again":
		h.handleQuizFlow(ctx, chatID, messageID, u, true)
	default:
		h.logger.Warn("Unknown quiz control", zap.String("control", control))
	}
}

// showResult reports the outcome of an answer and asks the next question
func (h *BotHandler) showResult(chatID int64, messageID int, edit bool, result *usecases.AnswerResult) {
	a := result.Attempt

	var feedback string
	switch {
	case a.TimedOut():
		feedback = fmt.Sprintf("⌛ Time's up! `%s` is **%d**.", a.Question(), a.Expected())
	case a.Correct():
		feedback = "✅ Correct!"
	default:
		feedback = fmt.Sprintf("❌ Not quite. `%s` is **%d**.", a.Question(), a.Expected())
	}
	if result.Adjusted {
		feedback += fmt.Sprintf("\n🔄 Let's practise **%s** for a bit.", shared.Humanize(result.Settings.Focus))
	}

	if result.Done {
		text := fmt.Sprintf("%s\n\n🏁 **Quiz complete!** You got **%d of %d** right.",
			feedback, result.Correct, result.Answered)
		h.reply(chatID, messageID, edit, text, shared.CreateQuizFinishedKeyboard())
		return
	}

	question := shared.FormatQuestion(result.Next, result.Answered+1, result.Total, result.Settings)
	h.reply(chatID, messageID, edit, feedback+"\n\n"+question,
		shared.CreateQuestionKeyboard(result.Next, result.Settings.Hints))
}

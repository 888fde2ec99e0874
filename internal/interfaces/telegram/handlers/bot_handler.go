package handlers

import (
	"context"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"math-learning-bot/internal/application/usecases"
	"math-learning-bot/internal/domain/user"
	"math-learning-bot/internal/interfaces/telegram"
	"math-learning-bot/internal/interfaces/telegram/handlers/shared"
)

// Messenger is the part of the Telegram bot the handlers talk to
type Messenger interface {
	SendMessage(chatID int64, text string) error
	SendMessageWithMarkdown(chatID int64, text string) error
	SendMessageWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) error
	EditMessage(chatID int64, messageID int, text string) error
	EditMessageWithKeyboard(chatID int64, messageID int, text string, keyboard tgbotapi.InlineKeyboardMarkup) error
	AnswerCallbackQuery(callbackID string, text string) error
}

// BotHandler handles Telegram bot interactions
type BotHandler struct {
	bot             Messenger
	router          telegram.Router
	userUseCase     *usecases.UserUseCase
	settingsUseCase *usecases.SettingsUseCase
	quizUseCase     *usecases.QuizUseCase
	clicks          *clickTracker
	logger          *zap.Logger

	wg sync.WaitGroup
}

// NewBotHandler creates a new bot handler
func NewBotHandler(
	bot Messenger,
	userUseCase *usecases.UserUseCase,
	settingsUseCase *usecases.SettingsUseCase,
	quizUseCase *usecases.QuizUseCase,
	logger *zap.Logger,
) *BotHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &BotHandler{
		bot:             bot,
		router:          telegram.NewRouter(),
		userUseCase:     userUseCase,
		settingsUseCase: settingsUseCase,
		quizUseCase:     quizUseCase,
		clicks:          newClickTracker(),
		logger:          logger,
	}

	h.router.RegisterHandler("start", h.withUser(h.handleStart))
	h.router.RegisterHandler("menu", h.withUser(h.handleMenu))
	h.router.RegisterHandler("quiz", h.withUser(h.handleQuiz))
	h.router.RegisterHandler("settings", h.withUser(h.handleSettings))
	h.router.RegisterHandler("stats", h.withUser(h.handleStats))
	h.router.RegisterHandler("help", h.withUser(h.handleHelp))
	return h
}

// Start handles updates until ctx is done or updates is closed. Updates are
// processed concurrently; Start waits for them before returning.
func (h *BotHandler) Start(ctx context.Context, updates <-chan tgbotapi.Update) error {
	h.logger.Info("Bot started, waiting for updates", zap.Strings("commands", h.router.Commands()))
	defer h.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Bot stopping")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			h.wg.Add(1)
			go func() {
				defer h.wg.Done()
				h.handleUpdate(ctx, update)
			}()
		}
	}
}

// handleUpdate processes incoming updates
func (h *BotHandler) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("Panic while handling update", zap.Int("update_id", update.UpdateID), zap.Any("panic", r))
		}
	}()

	if update.Message != nil {
		h.handleMessage(ctx, update)
	} else if update.CallbackQuery != nil {
		h.handleCallbackQuery(ctx, update.CallbackQuery)
	}
}

type commandFunc func(ctx context.Context, message *tgbotapi.Message, u *user.User)

func (h *BotHandler) withUser(fn commandFunc) telegram.HandlerFunc {
	return func(ctx context.Context, update tgbotapi.Update) error {
		u, err := h.getOrCreateUser(ctx, update.Message.From)
		if err != nil {
			return err
		}
		fn(ctx, update.Message, u)
		return nil
	}
}

// handleMessage processes text messages and commands
func (h *BotHandler) handleMessage(ctx context.Context, update tgbotapi.Update) {
	message := update.Message
	if message.From == nil {
		return
	}

	handled, err := h.router.Dispatch(ctx, update)
	if err != nil {
		h.logger.Error("Failed to handle command", zap.String("command", message.Command()), zap.Error(err))
		return
	}
	if handled {
		return
	}

	u, err := h.getOrCreateUser(ctx, message.From)
	if err != nil {
		h.logger.Error("Failed to get or create user", zap.Error(err))
		return
	}

	// a bare number answers the open quiz question
	if n, err := strconv.Atoi(strings.TrimSpace(message.Text)); err == nil && !message.IsCommand() {
		if _, _, ok := h.quizUseCase.Current(u.ID()); ok {
			h.handleTypedAnswer(ctx, message, u, n)
			return
		}
	}

	h.send(h.bot.SendMessage(message.Chat.ID, "Use /menu to see available options, or /help for detailed help."))
}

// handleCallbackQuery processes inline keyboard callbacks
func (h *BotHandler) handleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	if callback.From == nil || callback.Message == nil {
		return
	}
	u, err := h.getOrCreateUser(ctx, callback.From)
	if err != nil {
		h.logger.Error("Failed to get or create user", zap.Error(err))
		return
	}

	action, args := shared.ParseCallbackData(callback.Data)
	h.logger.Debug("Processing callback",
		zap.String("data", callback.Data),
		zap.Int("message_id", callback.Message.MessageID))

	// answer buttons and quiz controls reply to the callback themselves
	switch action {
	case shared.ActionAnswer:
		h.handleAnswerCallback(ctx, callback, u, args)
		return
	case shared.ActionSet:
		h.handleSetCallback(ctx, callback, u, args)
		return
	case shared.ActionToggle:
		h.handleToggleCallback(ctx, callback, u, args)
		return
	}

	// remove the loading state
	if err := h.bot.AnswerCallbackQuery(callback.ID, ""); err != nil {
		h.logger.Warn("Failed to answer callback query", zap.Error(err))
	}

	switch action {
	case shared.ActionNoop:
	case shared.ActionMenu:
		if len(args) == 1 {
			h.handleMenuSelection(ctx, callback, u, args[0])
		}
	case shared.ActionBack:
		h.handleBackToMenu(ctx, callback, u)
	case shared.ActionQuiz:
		if len(args) == 1 {
			h.handleQuizControl(ctx, callback, u, args[0])
		}
	default:
		h.logger.Warn("Unknown callback type", zap.String("data", callback.Data))
	}
}

// getOrCreateUser gets or creates a user from Telegram user info
func (h *BotHandler) getOrCreateUser(ctx context.Context, from *tgbotapi.User) (*user.User, error) {
	return h.userUseCase.GetOrCreateUser(ctx,
		user.TelegramID(from.ID), from.UserName, from.FirstName, from.LastName, from.LanguageCode)
}

// send logs a failed Telegram call.
func (h *BotHandler) send(err error) {
	if err != nil {
		h.logger.Warn("Failed to send Telegram message", zap.Error(err))
	}
}

// reply sends a new message or edits the callback's message.
func (h *BotHandler) reply(chatID int64, messageID int, edit bool, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	if edit {
		h.send(h.bot.EditMessageWithKeyboard(chatID, messageID, text, keyboard))
		return
	}
	h.send(h.bot.SendMessageWithKeyboard(chatID, text, keyboard))
}

func (h *BotHandler) answerCallback(callback *tgbotapi.CallbackQuery, text string) {
	if err := h.bot.AnswerCallbackQuery(callback.ID, text); err != nil {
		h.logger.Warn("Failed to answer callback query", zap.Error(err))
	}
}

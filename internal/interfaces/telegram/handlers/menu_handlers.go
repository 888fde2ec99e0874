package handlers

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"math-learning-bot/internal/domain/user"
	"math-learning-bot/internal/interfaces/telegram/handlers/shared"
)

// handleMenuSelection processes menu button selections
func (h *BotHandler) handleMenuSelection(ctx context.Context, callback *tgbotapi.CallbackQuery, u *user.User, selection string) {
	chatID, messageID := callback.Message.Chat.ID, callback.Message.MessageID

	switch selection {
	case "quiz":
		h.handleQuizFlow(ctx, chatID, messageID, u, true)
	case "stats":
		h.handleStatsFlow(ctx, chatID, messageID, u, true)
	case "help":
		h.reply(chatID, messageID, true, shared.GetHelpText(), shared.CreateHelpKeyboard())
	case "settings":
		h.handleSettingsFlow(ctx, chatID, messageID, u, true)
	default:
		h.logger.Warn("Unknown menu selection", zap.String("selection", selection))
	}
}

// handleBackToMenu returns to the main menu
func (h *BotHandler) handleBackToMenu(ctx context.Context, callback *tgbotapi.CallbackQuery, u *user.User) {
	h.reply(callback.Message.Chat.ID, callback.Message.MessageID, true, mainMenuText, shared.CreateMainMenuKeyboard())
}

// handleStatsFlow handles showing stats for both commands and callbacks
func (h *BotHandler) handleStatsFlow(ctx context.Context, chatID int64, messageID int, u *user.User, isCallback bool) {
	stats, err := h.quizUseCase.Stats(ctx, u.ID())
	if err != nil {
		h.logger.Error("Failed to get user stats", zap.Int64("user_id", int64(u.ID())), zap.Error(err))
		h.replyError(chatID, messageID, isCallback, "Sorry, there was an error getting your statistics.")
		return
	}

	h.reply(chatID, messageID, isCallback, shared.FormatStatsText(stats), shared.CreateStatsKeyboard())
}

func (h *BotHandler) replyError(chatID int64, messageID int, isCallback bool, text string) {
	if isCallback {
		h.send(h.bot.EditMessage(chatID, messageID, text))
		return
	}
	h.send(h.bot.SendMessage(chatID, text))
}

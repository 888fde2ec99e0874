package handlers

import (
	"context"
	"errors"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"math-learning-bot/internal/domain/preferences"
	"math-learning-bot/internal/domain/user"
	"math-learning-bot/internal/interfaces/telegram/handlers/shared"
)

// handleSettingsFlow shows the settings menu for both commands and callbacks
func (h *BotHandler) handleSettingsFlow(ctx context.Context, chatID int64, messageID int, u *user.User, isCallback bool) {
	snap, err := h.settingsUseCase.Preferences(ctx, u.ID())
	if err != nil {
		h.logger.Error("Failed to get user preferences", zap.Int64("user_id", int64(u.ID())), zap.Error(err))
		h.replyError(chatID, messageID, isCallback, "Sorry, there was an error loading your settings. Please try again.")
		return
	}

	h.reply(chatID, messageID, isCallback, shared.FormatSettingsText(snap), shared.CreateSettingsKeyboard(snap))
}

// handleSetCallback handles "set:<field>:<value>:<version>" buttons. The
// version is the one the menu was rendered from.
func (h *BotHandler) handleSetCallback(ctx context.Context, callback *tgbotapi.CallbackQuery, u *user.User, args []string) {
	if len(args) != 3 {
		h.answerCallback(callback, "")
		return
	}
	field := preferences.Field(args[0])
	value, err := preferences.ParseValue(field, args[1])
	if err != nil {
		h.answerCallback(callback, "That setting is not available.")
		return
	}
	base, err := strconv.ParseUint(args[2], 10, 64)
	if err != nil {
		h.answerCallback(callback, "")
		return
	}

	snap, err := h.settingsUseCase.Set(ctx, u.ID(), field, value, base)
	h.afterSettingsWrite(callback, u, field, snap, err)
}

// handleToggleCallback handles "toggle:<field>" buttons
func (h *BotHandler) handleToggleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery, u *user.User, args []string) {
	if len(args) != 1 {
		h.answerCallback(callback, "")
		return
	}
	field := preferences.Field(args[0])
	snap, err := h.settingsUseCase.Toggle(ctx, u.ID(), field)
	h.afterSettingsWrite(callback, u, field, snap, err)
}

func (h *BotHandler) afterSettingsWrite(
	callback *tgbotapi.CallbackQuery,
	u *user.User,
	field preferences.Field,
	snap preferences.Snapshot,
	err error,
) {
	switch {
	case errors.Is(err, preferences.ErrInvalidField):
		h.answerCallback(callback, "That's already the limit.")
		return
	case err != nil:
		h.logger.Error("Failed to update setting",
			zap.Int64("user_id", int64(u.ID())),
			zap.String("field", string(field)),
			zap.Error(err))
		h.answerCallback(callback, "Sorry, there was an error updating your settings.")
		return
	}

	value, _ := snap.Get(field)
	h.answerCallback(callback, shared.FieldLabel(field)+": "+shared.FormatValue(field, value))
	h.reply(callback.Message.Chat.ID, callback.Message.MessageID, true,
		shared.FormatSettingsText(snap), shared.CreateSettingsKeyboard(snap))
}

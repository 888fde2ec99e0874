package handlers

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"math-learning-bot/internal/domain/user"
	"math-learning-bot/internal/interfaces/telegram/handlers/shared"
)

const mainMenuText = "🧮 **Math Practice Bot - Main Menu**\n\nChoose an option:"

// handleStart processes the /start command
func (h *BotHandler) handleStart(ctx context.Context, message *tgbotapi.Message, u *user.User) {
	welcomeText := fmt.Sprintf(
		"🧮 Welcome to Math Practice Bot, %s!\n\n"+
			"I'll quiz you on addition, subtraction, multiplication, division and percentages, "+
			"and adapt the practice focus to how you are doing.\n\n"+
			"Choose an option below to get started:",
		shared.EscapeMarkdown(u.DisplayName()))

	h.send(h.bot.SendMessageWithKeyboard(message.Chat.ID, welcomeText, shared.CreateMainMenuKeyboard()))
}

// handleMenu processes the /menu command
func (h *BotHandler) handleMenu(ctx context.Context, message *tgbotapi.Message, u *user.User) {
	h.send(h.bot.SendMessageWithKeyboard(message.Chat.ID, mainMenuText, shared.CreateMainMenuKeyboard()))
}

// handleQuiz processes the /quiz command
func (h *BotHandler) handleQuiz(ctx context.Context, message *tgbotapi.Message, u *user.User) {
	h.handleQuizFlow(ctx, message.Chat.ID, message.MessageID, u, false)
}

// handleSettings processes the /settings command
func (h *BotHandler) handleSettings(ctx context.Context, message *tgbotapi.Message, u *user.User) {
	h.handleSettingsFlow(ctx, message.Chat.ID, message.MessageID, u, false)
}

// handleStats processes the /stats command
func (h *BotHandler) handleStats(ctx context.Context, message *tgbotapi.Message, u *user.User) {
	h.handleStatsFlow(ctx, message.Chat.ID, message.MessageID, u, false)
}

// handleHelp processes the /help command
func (h *BotHandler) handleHelp(ctx context.Context, message *tgbotapi.Message, u *user.User) {
	h.reply(message.Chat.ID, message.MessageID, false, shared.GetHelpText(), shared.CreateHelpKeyboard())
}

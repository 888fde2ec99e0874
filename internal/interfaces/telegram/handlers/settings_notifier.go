package handlers

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"math-learning-bot/internal/application/prefsync"
	"math-learning-bot/internal/domain/preferences"
	"math-learning-bot/internal/domain/user"
	"math-learning-bot/internal/interfaces/telegram/handlers/shared"
)

// ChatSender delivers a markdown message to a chat.
type ChatSender interface {
	SendMessageWithMarkdown(chatID int64, text string) error
}

// UserLookup resolves a user id to its Telegram account.
type UserLookup interface {
	GetUser(ctx context.Context, userID user.ID) (*user.User, error)
}

// SettingsNotifier tells users about preference changes they did not make
// themselves: automatic adjustments and imports. It only reads updates.
type SettingsNotifier struct {
	sender ChatSender
	users  UserLookup
	logger *zap.Logger

	mu       sync.Mutex
	lastSeen map[string]preferences.Snapshot
}

// NewSettingsNotifier creates a notifier. Call Subscribe to attach it to a hub.
func NewSettingsNotifier(sender ChatSender, users UserLookup, logger *zap.Logger) *SettingsNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsNotifier{
		sender:   sender,
		users:    users,
		logger:   logger,
		lastSeen: make(map[string]preferences.Snapshot),
	}
}

// Subscribe registers the notifier with every store of hub.
func (n *SettingsNotifier) Subscribe(hub *prefsync.Hub) {
	hub.Subscribe("settings-notifier", n.OnUpdate)
}

// OnUpdate is the subscriber callback.
func (n *SettingsNotifier) OnUpdate(ctx context.Context, update prefsync.Update) error {
	n.mu.Lock()
	previous, known := n.lastSeen[update.UserKey]
	if known && previous.Version() >= update.Snapshot.Version() {
		n.mu.Unlock()
		return nil
	}
	n.lastSeen[update.UserKey] = update.Snapshot
	n.mu.Unlock()

	if update.Origin == preferences.UserInitiated {
		return nil
	}

	id, ok := prefsync.ParseUserKey(update.UserKey)
	if !ok {
		return nil
	}
	u, err := n.users.GetUser(ctx, user.ID(id))
	if err != nil {
		return fmt.Errorf("failed to find user for settings notice: %w", err)
	}

	if err := n.sender.SendMessageWithMarkdown(int64(u.TelegramID()), n.message(update, previous, known)); err != nil {
		return fmt.Errorf("failed to send settings notice: %w", err)
	}
	n.logger.Debug("Sent settings notice",
		zap.Int64("user_id", id),
		zap.Stringer("origin", update.Origin),
		zap.Uint64("version", update.Snapshot.Version()))
	return nil
}

func (n *SettingsNotifier) message(update prefsync.Update, previous preferences.Snapshot, known bool) string {
	var changes preferences.Partial
	if known {
		changes = previous.Changes(update.Snapshot.Fields())
	}

	var header string
	switch update.Origin {
	case preferences.AutomaticAdjustment:
		header = "🔄 **Practice adjusted**\n\nBased on your recent answers I changed:\n"
	default:
		header = "📥 **Settings synced**\n\nYour settings were updated from another device:\n"
	}

	if len(changes) == 0 {
		return header + "• your practice settings\n\nUse /settings to review them."
	}
	return header + shared.FormatChanges(changes) + "\nUse /settings to review them."
}

package usecases

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"math-learning-bot/internal/application/prefsync"
	"math-learning-bot/internal/domain/preferences"
	"math-learning-bot/internal/domain/user"
)

// SettingsUseCase reads and writes user preferences through the sync hub.
type SettingsUseCase struct {
	hub    *prefsync.Hub
	logger *zap.Logger
}

// NewSettingsUseCase creates a new settings use case
func NewSettingsUseCase(hub *prefsync.Hub, logger *zap.Logger) *SettingsUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsUseCase{hub: hub, logger: logger}
}

// Preferences returns the freshest snapshot for userID. A failed reload is
// logged and the in-memory snapshot is used.
func (uc *SettingsUseCase) Preferences(ctx context.Context, userID user.ID) (preferences.Snapshot, error) {
	store, err := uc.hub.For(ctx, int64(userID))
	if err != nil {
		return preferences.Snapshot{}, fmt.Errorf("failed to open preferences: %w", err)
	}
	snap, err := store.Read(ctx)
	if err != nil {
		uc.logger.Warn("Serving preferences from memory", zap.Int64("user_id", int64(userID)), zap.Error(err))
	}
	return snap, nil
}

// Set applies a user-initiated change of one field. baseVersion is the
// version the user was looking at.
func (uc *SettingsUseCase) Set(
	ctx context.Context,
	userID user.ID,
	field preferences.Field,
	value preferences.Value,
	baseVersion uint64,
) (preferences.Snapshot, error) {
	store, err := uc.hub.For(ctx, int64(userID))
	if err != nil {
		return preferences.Snapshot{}, fmt.Errorf("failed to open preferences: %w", err)
	}
	return store.Write(ctx, preferences.UserInitiated, preferences.Partial{field: value}, baseVersion)
}

// Toggle flips a boolean field.
func (uc *SettingsUseCase) Toggle(ctx context.Context, userID user.ID, field preferences.Field) (preferences.Snapshot, error) {
	if kind, ok := field.Kind(); !ok || kind != preferences.KindBool {
		return preferences.Snapshot{}, fmt.Errorf("%w: %s is not a switch", preferences.ErrInvalidField, field)
	}
	snap, err := uc.Preferences(ctx, userID)
	if err != nil {
		return preferences.Snapshot{}, err
	}
	current, _ := snap.Get(field)
	return uc.Set(ctx, userID, field, preferences.Bool(!current.AsBool()), snap.Version())
}

// Export returns the persisted record form of the user's preferences.
func (uc *SettingsUseCase) Export(ctx context.Context, userID user.ID) ([]byte, error) {
	snap, err := uc.Preferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	data, err := preferences.EncodeRecord(prefsync.UserKey(int64(userID)), snap)
	if err != nil {
		return nil, fmt.Errorf("failed to encode preferences: %w", err)
	}
	return data, nil
}

// Import applies a record produced elsewhere as an ExternalSync write. The
// change is broadcast quietly and is not persisted by the sync engine; the
// caller decides whether to write the record through.
func (uc *SettingsUseCase) Import(ctx context.Context, userID user.ID, data []byte) (preferences.Snapshot, error) {
	_, incoming, err := preferences.DecodeRecord(data)
	if err != nil {
		return preferences.Snapshot{}, fmt.Errorf("failed to decode preference record: %w", err)
	}

	store, err := uc.hub.For(ctx, int64(userID))
	if err != nil {
		return preferences.Snapshot{}, fmt.Errorf("failed to open preferences: %w", err)
	}
	current := store.Current()
	return store.Write(ctx, preferences.ExternalSync, current.Changes(incoming.Fields()), current.Version())
}

package usecases

import (
	"context"
	"errors"
	"fmt"

	"math-learning-bot/internal/domain/user"
)

// ErrUserNotFound is returned when a user id has no record.
var ErrUserNotFound = errors.New("user not found")

// UserUseCase handles user-related business operations
type UserUseCase struct {
	userRepo user.Repository
}

// NewUserUseCase creates a new user use case
func NewUserUseCase(userRepo user.Repository) *UserUseCase {
	return &UserUseCase{userRepo: userRepo}
}

// GetOrCreateUser gets an existing user or creates a new one. Preferences are
// not created here; a user without a record reads the defaults.
func (uc *UserUseCase) GetOrCreateUser(
	ctx context.Context,
	telegramID user.TelegramID,
	username, firstName, lastName, languageCode string,
) (*user.User, error) {
	existingUser, err := uc.userRepo.FindByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if existingUser != nil {
		existingUser.UpdateLastActive()
		existingUser.UpdateProfile(username, firstName, lastName, languageCode)

		err = uc.userRepo.Update(ctx, existingUser)
		if err != nil {
			return nil, fmt.Errorf("failed to update user: %w", err)
		}

		return existingUser, nil
	}

	newUser := user.NewUser(telegramID, username, firstName, lastName, languageCode)
	err = uc.userRepo.Save(ctx, newUser)
	if err != nil {
		return nil, fmt.Errorf("failed to save new user: %w", err)
	}

	return newUser, nil
}

// GetUser retrieves a user by ID
func (uc *UserUseCase) GetUser(ctx context.Context, userID user.ID) (*user.User, error) {
	u, err := uc.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if u == nil {
		return nil, ErrUserNotFound
	}

	return u, nil
}

// GetUserByTelegramID retrieves a user by Telegram ID
func (uc *UserUseCase) GetUserByTelegramID(ctx context.Context, telegramID user.TelegramID) (*user.User, error) {
	u, err := uc.userRepo.FindByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if u == nil {
		return nil, ErrUserNotFound
	}

	return u, nil
}

package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"math-learning-bot/internal/domain/user"
)

type userRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB) user.Repository {
	return &userRepository{db: db}
}

const userColumns = `id, telegram_id, username, first_name, last_name, language_code, created_at, last_active`

// Save persists a user to storage
func (r *userRepository) Save(ctx context.Context, u *user.User) error {
	query := `
		INSERT INTO users (telegram_id, username, first_name, last_name, language_code, created_at, last_active)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		int64(u.TelegramID()), u.Username(), u.FirstName(), u.LastName(),
		u.LanguageCode(), u.CreatedAt().UTC(), u.LastActive().UTC())
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get user ID: %w", err)
	}

	u.SetID(user.ID(id))
	return nil
}

// FindByID retrieves a user by their ID
func (r *userRepository) FindByID(ctx context.Context, id user.ID) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`

	u, err := scanUser(r.db.QueryRowContext(ctx, query, int64(id)))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return u, nil
}

// FindByTelegramID retrieves a user by their Telegram ID
func (r *userRepository) FindByTelegramID(ctx context.Context, telegramID user.TelegramID) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE telegram_id = ?`

	u, err := scanUser(r.db.QueryRowContext(ctx, query, int64(telegramID)))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by Telegram ID: %w", err)
	}
	return u, nil
}

// Update updates an existing user
func (r *userRepository) Update(ctx context.Context, u *user.User) error {
	query := `
		UPDATE users
		SET username = ?, first_name = ?, last_name = ?, language_code = ?, last_active = ?
		WHERE id = ?
	`

	_, err := r.db.ExecContext(ctx, query,
		u.Username(), u.FirstName(), u.LastName(), u.LanguageCode(), u.LastActive().UTC(), int64(u.ID()))
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	return nil
}

// UpdateLastActive updates the last active time of a user
func (r *userRepository) UpdateLastActive(ctx context.Context, id user.ID) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET last_active = ? WHERE id = ?`,
		time.Now().UTC(), int64(id))
	if err != nil {
		return fmt.Errorf("failed to update last active: %w", err)
	}
	return nil
}

// GetAllUsers retrieves all users from storage
func (r *userRepository) GetAllUsers(ctx context.Context) ([]*user.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return users, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanUser returns nil, nil when the row does not exist
func scanUser(row rowScanner) (*user.User, error) {
	var id, telegramID int64
	var username, firstName, lastName, languageCode sql.NullString
	var createdAt, lastActive time.Time

	err := row.Scan(&id, &telegramID, &username, &firstName, &lastName, &languageCode, &createdAt, &lastActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return user.RestoreUser(user.ID(id), user.TelegramID(telegramID),
		username.String, firstName.String, lastName.String, languageCode.String,
		createdAt, lastActive), nil
}

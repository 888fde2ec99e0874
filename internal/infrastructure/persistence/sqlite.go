package persistence

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// NewSQLiteDB creates a new SQLite database connection
func NewSQLiteDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer at a time; also keeps ":memory:" databases on a single connection
	db.SetMaxOpenConns(1)

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	// Users table
	usersTable := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		telegram_id INTEGER UNIQUE NOT NULL,
		username TEXT,
		first_name TEXT,
		last_name TEXT,
		language_code TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_active DATETIME DEFAULT CURRENT_TIMESTAMP
	);`

	_, err := db.Exec(usersTable)
	if err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}

	// One JSON preference record per user key
	preferenceRecordsTable := `
	CREATE TABLE IF NOT EXISTS preference_records (
		record_key TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`

	_, err = db.Exec(preferenceRecordsTable)
	if err != nil {
		return fmt.Errorf("failed to create preference_records table: %w", err)
	}

	quizAttemptsTable := `
	CREATE TABLE IF NOT EXISTS quiz_attempts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		category TEXT NOT NULL,
		focus TEXT NOT NULL,
		difficulty INTEGER NOT NULL,
		question TEXT NOT NULL,
		given INTEGER NOT NULL,
		expected INTEGER NOT NULL,
		correct BOOLEAN NOT NULL,
		timed_out BOOLEAN NOT NULL DEFAULT 0,
		response_time_ms INTEGER,
		answered_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users (id)
	);`

	_, err = db.Exec(quizAttemptsTable)
	if err != nil {
		return fmt.Errorf("failed to create quiz_attempts table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_quiz_attempts_user ON quiz_attempts (user_id, answered_at)`)
	if err != nil {
		return fmt.Errorf("failed to create quiz_attempts index: %w", err)
	}

	return nil
}

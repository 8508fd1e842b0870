package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Connect initializes the database connection and runs migrations.
func Connect(dsn string, log *zap.Logger) (*sqlx.DB, error) {
	database, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(database); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	log.Info("database migrations applied")

	return database, nil
}

func runMigrations(database *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id SERIAL PRIMARY KEY,
            username TEXT NOT NULL UNIQUE,
            password_hash TEXT NOT NULL,
            public_key TEXT NOT NULL DEFAULT '',
            avatar_url TEXT,
            about TEXT,
            status TEXT NOT NULL DEFAULT 'OFFLINE',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS chats (
            id SERIAL PRIMARY KEY,
            type TEXT NOT NULL CHECK (type IN ('DM', 'GROUP')),
            name TEXT,
            avatar_url TEXT,
            invite_code TEXT UNIQUE,
            owner_id INT REFERENCES users(id),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS chat_participants (
            user_id INT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            chat_id INT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
            is_hidden BOOLEAN NOT NULL DEFAULT FALSE,
            PRIMARY KEY (user_id, chat_id)
        );`,
		`CREATE TABLE IF NOT EXISTS messages (
            id SERIAL PRIMARY KEY,
            chat_id INT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
            sender_id INT NOT NULL REFERENCES users(id),
            content TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE INDEX IF NOT EXISTS idx_messages_chat_created ON messages (chat_id, created_at);`,
		`CREATE TABLE IF NOT EXISTS read_receipts (
            message_id INT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
            user_id INT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            PRIMARY KEY (message_id, user_id)
        );`,
	}

	for _, m := range migrations {
		if _, err := database.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

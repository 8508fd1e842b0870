package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"messenger-service/internal/models"
)

// MessageRepository abstracts message and read-receipt persistence.
type MessageRepository interface {
	CreateMessage(ctx context.Context, chatID int, senderID int, content string) (models.Message, error)
	ListByChat(ctx context.Context, chatID int) ([]models.Message, error)
	GetMessage(ctx context.Context, messageID int) (models.Message, error)
	DeleteMessage(ctx context.Context, messageID int) error
	MarkChatRead(ctx context.Context, chatID int, userID int) (int, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage inserts the message and advances the owning chat's
// updated_at inside one transaction, so a message is never durable
// without its chat reflecting the new activity. Both timestamps come
// from the transaction clock, keeping updated_at >= created_at.
func (r *MessageRepo) CreateMessage(ctx context.Context, chatID int, senderID int, content string) (models.Message, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var msg models.Message
	if err = tx.QueryRowxContext(ctx,
		`INSERT INTO messages (chat_id, sender_id, content) VALUES ($1, $2, $3)
         RETURNING id, chat_id, sender_id, content, created_at`, chatID, senderID, content).
		Scan(&msg.ID, &msg.ChatID, &msg.SenderID, &msg.Content, &msg.CreatedAt); err != nil {
		return models.Message{}, err
	}

	if _, err = tx.ExecContext(ctx, `UPDATE chats SET updated_at = NOW() WHERE id=$1`, chatID); err != nil {
		return models.Message{}, err
	}

	if err = tx.QueryRowxContext(ctx,
		`SELECT id, username, avatar_url FROM users WHERE id=$1`, senderID).
		Scan(&msg.Sender.ID, &msg.Sender.Username, &msg.Sender.AvatarURL); err != nil {
		return models.Message{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// ListByChat returns all messages of a chat in send order with sender
// summaries attached.
func (r *MessageRepo) ListByChat(ctx context.Context, chatID int) ([]models.Message, error) {
	rows, err := r.db.QueryxContext(ctx,
		`SELECT m.id, m.chat_id, m.sender_id, m.content, m.created_at, u.username, u.avatar_url
         FROM messages m
         JOIN users u ON u.id = m.sender_id
         WHERE m.chat_id=$1
         ORDER BY m.created_at ASC, m.id ASC`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := []models.Message{}
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.CreatedAt,
			&m.Sender.Username, &m.Sender.AvatarURL); err != nil {
			return nil, err
		}
		m.Sender.ID = m.SenderID
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	var m models.Message
	err := r.db.QueryRowxContext(ctx,
		`SELECT m.id, m.chat_id, m.sender_id, m.content, m.created_at, u.username, u.avatar_url
         FROM messages m
         JOIN users u ON u.id = m.sender_id
         WHERE m.id=$1`, messageID).
		Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.CreatedAt,
			&m.Sender.Username, &m.Sender.AvatarURL)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	if err != nil {
		return models.Message{}, err
	}
	m.Sender.ID = m.SenderID
	return m, nil
}

// DeleteMessage removes a message. The chat's updated_at is left
// untouched; deletions do not rewind list ordering.
func (r *MessageRepo) DeleteMessage(ctx context.Context, messageID int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE id=$1`, messageID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// MarkChatRead inserts one receipt per message in the chat not sent by
// the user and not yet receipted. Idempotent: repeats insert nothing.
func (r *MessageRepo) MarkChatRead(ctx context.Context, chatID int, userID int) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO read_receipts (message_id, user_id)
         SELECT m.id, $2 FROM messages m WHERE m.chat_id=$1 AND m.sender_id<>$2
         ON CONFLICT (message_id, user_id) DO NOTHING`, chatID, userID)
	if err != nil {
		return 0, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

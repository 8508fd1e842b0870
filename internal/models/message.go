package models

import "time"

// Message is a chat message. Immutable once created except for
// deletion; always created in the same transaction that advances the
// owning chat's updated_at.
type Message struct {
	ID        int         `db:"id" json:"id"`
	ChatID    int         `db:"chat_id" json:"chat_id"`
	SenderID  int         `db:"sender_id" json:"sender_id"`
	Content   string      `db:"content" json:"content"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
	Sender    UserSummary `db:"-" json:"sender"`
}

// ReadReceipt marks a message as read by a user. Presence of the row
// is the read state; a group message can be read by some participants
// and not others.
type ReadReceipt struct {
	MessageID int `db:"message_id" json:"message_id"`
	UserID    int `db:"user_id" json:"user_id"`
}

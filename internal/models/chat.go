package models

import "time"

// Chat types.
const (
	ChatTypeDM    = "DM"
	ChatTypeGroup = "GROUP"
)

// Chat is a conversation: a two-participant DM or an invite-code group.
// UpdatedAt is the recency ranking key, advanced on every new message.
type Chat struct {
	ID         int       `db:"id" json:"id"`
	Type       string    `db:"type" json:"type"`
	Name       *string   `db:"name" json:"name,omitempty"`
	AvatarURL  *string   `db:"avatar_url" json:"avatar_url,omitempty"`
	InviteCode *string   `db:"invite_code" json:"invite_code,omitempty"`
	OwnerID    *int      `db:"owner_id" json:"owner_id,omitempty"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// ChatParticipant joins a user to a chat and carries the per-user
// visibility flag. A participant with IsHidden set is still a member.
type ChatParticipant struct {
	UserID   int  `db:"user_id" json:"user_id"`
	ChatID   int  `db:"chat_id" json:"chat_id"`
	IsHidden bool `db:"is_hidden" json:"is_hidden"`
}

// ChatSummary is the list-preview view of a chat: the chat itself plus
// participant summaries and its most recent message.
type ChatSummary struct {
	Chat
	Participants []UserSummary `json:"participants"`
	LastMessage  *Message      `json:"last_message,omitempty"`
}

// IsOwner reports whether userID owns the chat. DM chats have no owner.
func (c Chat) IsOwner(userID int) bool {
	return c.OwnerID != nil && *c.OwnerID == userID
}

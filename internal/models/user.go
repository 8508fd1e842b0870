package models

import "time"

// User presence status values persisted on the users table.
const (
	StatusOnline  = "ONLINE"
	StatusOffline = "OFFLINE"
)

// User is the account collaborator's row. This service only reads
// id/username/avatar_url/status and writes status.
type User struct {
	ID           int       `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	PublicKey    string    `db:"public_key" json:"public_key"`
	AvatarURL    *string   `db:"avatar_url" json:"avatar_url,omitempty"`
	About        *string   `db:"about" json:"about,omitempty"`
	Status       string    `db:"status" json:"status"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// UserSummary is the denormalized sender/participant view embedded in
// API and websocket payloads.
type UserSummary struct {
	ID        int     `db:"id" json:"id"`
	Username  string  `db:"username" json:"username"`
	AvatarURL *string `db:"avatar_url" json:"avatar_url,omitempty"`
	Status    string  `db:"status" json:"status,omitempty"`
}

package repositories

import (
	"errors"

	"github.com/lib/pq"
)

var (
	ErrChatNotFound        = errors.New("chat not found")
	ErrMessageNotFound     = errors.New("message not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrNotParticipant      = errors.New("not a chat participant")
	ErrNotOwner            = errors.New("not the chat owner")
	ErrOwnerCannotLeave    = errors.New("owner cannot leave the chat")
	ErrGroupNameRequired   = errors.New("group name is required")
	ErrDuplicateInviteCode = errors.New("invite code already in use")
)

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation so store-level conflicts never leak as raw driver errors.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"messenger-service/internal/repositories"
)

const requestIDContextKey = "request_id"

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDContextKey, requestID)
	return requestID
}

// statusForError maps domain errors onto HTTP statuses. Anything
// unrecognized is an internal failure and must not leak details.
func statusForError(err error) int {
	switch {
	case errors.Is(err, repositories.ErrChatNotFound),
		errors.Is(err, repositories.ErrMessageNotFound),
		errors.Is(err, repositories.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, repositories.ErrNotParticipant),
		errors.Is(err, repositories.ErrNotOwner),
		errors.Is(err, repositories.ErrOwnerCannotLeave):
		return http.StatusForbidden
	case errors.Is(err, repositories.ErrGroupNameRequired):
		return http.StatusBadRequest
	case errors.Is(err, repositories.ErrDuplicateInviteCode):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error, fallback string) {
	status := statusForError(err)
	msg := fallback
	if status != http.StatusInternalServerError {
		msg = err.Error()
	}
	c.JSON(status, gin.H{"error": msg})
}

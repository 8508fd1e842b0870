package ws

import (
	"encoding/json"

	"go.uber.org/zap"

	"messenger-service/internal/models"
)

// Wire event names.
const (
	EventChatMessage      = "chatMessage"
	EventMessageConfirmed = "messageConfirmed"
	EventMessageDeleted   = "messageDeleted"
	EventUserStatusChange = "userStatusChange"
	EventError            = "error"
)

// InboundEvent is the envelope read from a client channel.
type InboundEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ChatMessagePayload is the data of an inbound chatMessage event.
type ChatMessagePayload struct {
	ChatID        int    `json:"chat_id"`
	Content       string `json:"content"`
	CorrelationID string `json:"correlation_id"`
}

// Event is the envelope written to client channels.
type Event struct {
	Type          string          `json:"type"`
	Message       *models.Message `json:"message,omitempty"`
	MessageID     int             `json:"message_id,omitempty"`
	ChatID        int             `json:"chat_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	UserID        int             `json:"user_id,omitempty"`
	Status        string          `json:"status,omitempty"`
	Error         string          `json:"error,omitempty"`
}

func (h *Hub) marshalEvent(ev Event) []byte {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.log.Warn("event marshal failed", zap.String("type", ev.Type), zap.Error(err))
	}
	return payload
}

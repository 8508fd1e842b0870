package telemetry

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// AuditEmitter wraps the event publisher with a stable envelope for
// connection and messaging audit events.
type AuditEmitter struct {
	publisher  Publisher
	routingKey string
	service    string
	log        *zap.Logger
}

type AuditEnvelope struct {
	SchemaVersion int            `json:"schema_version"`
	EventType     string         `json:"event_type"`
	EventName     string         `json:"event_name"`
	OccurredAt    string         `json:"occurred_at"`
	Service       string         `json:"service"`
	RequestID     string         `json:"request_id,omitempty"`
	UserID        int            `json:"user_id,omitempty"`
	Payload       map[string]any `json:"payload,omitempty"`
}

func NewAuditEmitter(publisher Publisher, routingKey, service string, log *zap.Logger) *AuditEmitter {
	return &AuditEmitter{
		publisher:  publisher,
		routingKey: routingKey,
		service:    service,
		log:        log,
	}
}

// Emit publishes an audit event. Safe on a nil emitter so callers
// never have to branch on whether auditing is wired.
func (e *AuditEmitter) Emit(ctx context.Context, eventName, requestID string, userID int, payload map[string]any) {
	if e == nil || e.publisher == nil {
		return
	}

	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "ws_events",
		EventName:     eventName,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		RequestID:     requestID,
		UserID:        userID,
		Payload:       payload,
	}

	if err := e.publisher.Publish(ctx, e.routingKey, envelope); err != nil {
		e.log.Error("audit publish failed", zap.String("event", eventName), zap.Error(err))
	}
}

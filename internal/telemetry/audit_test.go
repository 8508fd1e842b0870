package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"messenger-service/internal/mocks"
)

func TestEmitPublishesEnvelope(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := NewAuditEmitter(publisher, "ws_events.messenger", "messenger-service", zap.NewNop())

	var captured AuditEnvelope
	publisher.On("Publish", mock.Anything, "ws_events.messenger", mock.MatchedBy(func(event any) bool {
		envelope, ok := event.(AuditEnvelope)
		if ok {
			captured = envelope
		}
		return ok
	})).Return(nil).Once()

	emitter.Emit(context.Background(), "ws_connect", "req-1", 42, map[string]any{"conn_id": "abc"})

	publisher.AssertExpectations(t)
	require.Equal(t, 1, captured.SchemaVersion)
	require.Equal(t, "ws_events", captured.EventType)
	require.Equal(t, "ws_connect", captured.EventName)
	require.Equal(t, "messenger-service", captured.Service)
	require.Equal(t, "req-1", captured.RequestID)
	require.Equal(t, 42, captured.UserID)
	require.NotEmpty(t, captured.OccurredAt)
	require.Equal(t, "abc", captured.Payload["conn_id"])
}

func TestEmitOnNilEmitter(t *testing.T) {
	var emitter *AuditEmitter
	emitter.Emit(context.Background(), "ws_connect", "req-1", 42, nil)
}

func TestEmitSwallowsPublishFailure(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("broker gone")).Once()
	emitter := NewAuditEmitter(publisher, "ws_events.messenger", "messenger-service", zap.NewNop())

	emitter.Emit(context.Background(), "chat_message", "", 1, nil)
	publisher.AssertExpectations(t)
}

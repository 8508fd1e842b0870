package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"messenger-service/internal/auth"
	"messenger-service/internal/models"
	"messenger-service/internal/observability"
	"messenger-service/internal/repositories"
	"messenger-service/internal/telemetry"
)

// Gateway accepts websocket connections, authenticates them, wires
// them into the hub's presence table and rooms, and dispatches inbound
// events to the stores.
type Gateway struct {
	hub      *Hub
	verifier auth.Verifier
	chats    repositories.ChatRepository
	messages repositories.MessageRepository
	users    repositories.UserRepository
	audit    *telemetry.AuditEmitter
	log      *zap.Logger
}

// NewGateway constructs a Gateway.
func NewGateway(hub *Hub, verifier auth.Verifier, chats repositories.ChatRepository,
	messages repositories.MessageRepository, users repositories.UserRepository,
	audit *telemetry.AuditEmitter, log *zap.Logger) *Gateway {
	return &Gateway{
		hub:      hub,
		verifier: verifier,
		chats:    chats,
		messages: messages,
		users:    users,
		audit:    audit,
		log:      log,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handle authenticates the handshake and admits the connection. A bad
// credential rejects before upgrade: no presence entry, no rooms.
func (g *Gateway) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("messenger-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	identity, err := g.verifier.Verify(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	// Room membership is fixed now; joining a chat after connecting
	// requires a reconnect to receive its live traffic.
	chatIDs, err := g.chats.ChatIDsForUser(ctx, identity.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load memberships"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	client := newClient(conn, identity.ID, identity.Username, info)

	if displaced := g.hub.Register(identity.ID, client); displaced != nil {
		// Takeover: the previous connection for this user is now stale.
		displaced.close()
		g.log.Info("presence takeover",
			zap.Int("user_id", identity.ID), zap.String("conn_id", info.ConnID))
	}
	for _, chatID := range chatIDs {
		g.hub.JoinRoom(chatID, client)
	}

	if err := g.users.SetStatus(ctx, identity.ID, models.StatusOnline); err != nil {
		g.log.Error("failed to persist online status", zap.Int("user_id", identity.ID), zap.Error(err))
	}
	g.hub.BroadcastStatusChange(identity.ID, models.StatusOnline)

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	g.audit.Emit(ctx, "ws_connect", info.RequestID, identity.ID, map[string]any{
		"conn_id": info.ConnID,
		"ip":      info.IP,
	})

	go client.writePump()
	go g.readLoop(client)
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && header[:7] == "Bearer " {
		return header[7:]
	}
	return c.Query("token")
}

// readLoop pumps inbound frames until the connection drops, then runs
// the disconnect transition.
func (g *Gateway) readLoop(client *Client) {
	defer g.disconnect(client)

	client.conn.SetReadLimit(maxMessageSize)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := client.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
			}
			return
		}

		var ev InboundEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			g.hub.SendError(client, "malformed event")
			continue
		}

		switch ev.Type {
		case EventChatMessage:
			g.handleChatMessage(client, ev.Data)
		default:
			g.hub.SendError(client, "unknown event type")
		}
	}
}

// handleChatMessage runs the send path: authorize, un-archive for
// recipients, persist (message insert + chat touch, one transaction),
// fan out to the room minus the sender, confirm to the sender.
func (g *Gateway) handleChatMessage(client *Client, data json.RawMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var p ChatMessagePayload
	if err := json.Unmarshal(data, &p); err != nil || p.ChatID == 0 || p.Content == "" {
		g.hub.SendError(client, "chat_id and content are required")
		return
	}

	member, err := g.chats.IsParticipant(ctx, p.ChatID, client.UserID)
	if err != nil {
		g.log.Error("participant check failed", zap.Int("chat_id", p.ChatID), zap.Error(err))
		g.hub.SendError(client, "internal error")
		return
	}
	if !member {
		g.hub.SendError(client, "not a chat participant")
		return
	}

	// A new message un-archives the chat for recipients, never for the
	// sender. Idempotent, so racing sends are safe.
	if err := g.chats.UnhideForOthers(ctx, p.ChatID, client.UserID); err != nil {
		g.log.Error("unhide failed", zap.Int("chat_id", p.ChatID), zap.Error(err))
		g.hub.SendError(client, "internal error")
		return
	}

	msg, err := g.messages.CreateMessage(ctx, p.ChatID, client.UserID, p.Content)
	if err != nil {
		g.log.Error("message create failed", zap.Int("chat_id", p.ChatID), zap.Error(err))
		g.hub.SendError(client, "failed to store message")
		return
	}

	g.hub.BroadcastChatMessage(p.ChatID, msg, client)
	g.hub.ConfirmMessage(client, p.CorrelationID, msg)

	observability.IncWSEvent("chat_message")
	g.audit.Emit(ctx, "chat_message", client.Info.RequestID, client.UserID, map[string]any{
		"chat_id":    p.ChatID,
		"message_id": msg.ID,
	})
}

// disconnect tears down one channel: presence entry (only if still
// current), persisted status, and the offline broadcast. Other
// channels' in-flight work is untouched.
func (g *Gateway) disconnect(client *Client) {
	client.close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if g.hub.Unregister(client.UserID, client) {
		if err := g.users.SetStatus(ctx, client.UserID, models.StatusOffline); err != nil {
			g.log.Error("failed to persist offline status", zap.Int("user_id", client.UserID), zap.Error(err))
		}
		g.hub.BroadcastStatusChange(client.UserID, models.StatusOffline)
	}

	observability.DecWSActive()
	observability.IncWSEvent("ws_disconnect")
	g.audit.Emit(ctx, "ws_disconnect", client.Info.RequestID, client.UserID, map[string]any{
		"conn_id":     client.Info.ConnID,
		"duration_ms": time.Since(client.Info.ConnectedAt).Milliseconds(),
	})
}

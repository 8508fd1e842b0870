package ws

import (
	"sync"

	"go.uber.org/zap"

	"messenger-service/internal/models"
)

// Hub owns the process-wide presence table (user id -> live client)
// and the rooms (chat id -> set of clients) used for fan-out. All
// access goes through its mutex; callers never see the maps directly.
type Hub struct {
	mu       sync.RWMutex
	presence map[int]*Client
	rooms    map[int]map[*Client]struct{}
	joined   map[*Client][]int
	log      *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		presence: make(map[int]*Client),
		rooms:    make(map[int]map[*Client]struct{}),
		joined:   make(map[*Client][]int),
		log:      log,
	}
}

// Register records the client as the user's live channel and returns
// any displaced previous client. A new entry for an already-mapped user
// is an intentional takeover: one connection per user, last one wins.
func (h *Hub) Register(userID int, c *Client) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	prev := h.presence[userID]
	h.presence[userID] = c
	if prev != nil {
		h.leaveAllLocked(prev)
	}
	return prev
}

// Unregister removes the presence entry and room memberships, but only
// if the entry still points at this client. A late-arriving disconnect
// from a stale connection must not evict a newer one.
func (h *Hub) Unregister(userID int, c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.presence[userID] != c {
		h.leaveAllLocked(c)
		return false
	}
	delete(h.presence, userID)
	h.leaveAllLocked(c)
	return true
}

// Current returns the user's live client, if any.
func (h *Hub) Current(userID int) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.presence[userID]
	return c, ok
}

// JoinRoom subscribes the client to a chat's room.
func (h *Hub) JoinRoom(chatID int, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[chatID]; !ok {
		h.rooms[chatID] = make(map[*Client]struct{})
	}
	h.rooms[chatID][c] = struct{}{}
	h.joined[c] = append(h.joined[c], chatID)
}

// LeaveRoom drops the user's live channel from one chat's room, e.g.
// when a membership ends while the user is connected. No-op when the
// user has no live channel.
func (h *Hub) LeaveRoom(chatID int, userID int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.presence[userID]
	if !ok {
		return
	}
	if members, ok := h.rooms[chatID]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, chatID)
		}
	}
	remaining := h.joined[c][:0]
	for _, id := range h.joined[c] {
		if id != chatID {
			remaining = append(remaining, id)
		}
	}
	h.joined[c] = remaining
}

func (h *Hub) leaveAllLocked(c *Client) {
	for _, chatID := range h.joined[c] {
		if members, ok := h.rooms[chatID]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, chatID)
			}
		}
	}
	delete(h.joined, c)
}

// BroadcastChatMessage delivers a persisted message to the chat's room,
// excluding the sender's own channel.
func (h *Hub) BroadcastChatMessage(chatID int, msg models.Message, exclude *Client) {
	h.broadcastRoom(chatID, h.marshalEvent(Event{Type: EventChatMessage, Message: &msg}), exclude)
}

// ConfirmMessage acknowledges a send on the sender's own channel so it
// can reconcile its optimistic local state by correlation id.
func (h *Hub) ConfirmMessage(c *Client, correlationID string, msg models.Message) {
	h.deliver(c, h.marshalEvent(Event{Type: EventMessageConfirmed, CorrelationID: correlationID, Message: &msg}))
}

// BroadcastDeletion notifies the chat's room of a deleted message.
func (h *Hub) BroadcastDeletion(chatID int, messageID int) {
	h.broadcastRoom(chatID, h.marshalEvent(Event{Type: EventMessageDeleted, MessageID: messageID, ChatID: chatID}), nil)
}

// BroadcastStatusChange announces a presence transition to every
// connected client.
func (h *Hub) BroadcastStatusChange(userID int, status string) {
	payload := h.marshalEvent(Event{Type: EventUserStatusChange, UserID: userID, Status: status})

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.presence))
	for _, c := range h.presence {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.deliver(c, payload)
	}
}

// SendError reports a rejected event back to the offending channel.
func (h *Hub) SendError(c *Client, message string) {
	h.deliver(c, h.marshalEvent(Event{Type: EventError, Error: message}))
}

func (h *Hub) broadcastRoom(chatID int, payload []byte, exclude *Client) {
	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[chatID]))
	for c := range h.rooms[chatID] {
		if c != exclude {
			members = append(members, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range members {
		h.deliver(c, payload)
	}
}

// deliver enqueues a payload, dropping the client if its buffer is
// full. Dropping beats blocking the fan-out path on one slow consumer;
// the client's read pump will observe the close and run disconnect.
func (h *Hub) deliver(c *Client, payload []byte) {
	if c == nil {
		return
	}
	if !c.enqueue(payload) {
		c.close()
	}
}

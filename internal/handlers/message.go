package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"messenger-service/internal/repositories"
	"messenger-service/internal/telemetry"
	"messenger-service/internal/ws"
)

// MessageHandler manages the message-scoped HTTP surface.
type MessageHandler struct {
	messageRepo repositories.MessageRepository
	chatRepo    repositories.ChatRepository
	hub         *ws.Hub
	audit       *telemetry.AuditEmitter
	log         *zap.Logger
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(messageRepo repositories.MessageRepository, chatRepo repositories.ChatRepository,
	hub *ws.Hub, audit *telemetry.AuditEmitter, log *zap.Logger) *MessageHandler {
	return &MessageHandler{
		messageRepo: messageRepo,
		chatRepo:    chatRepo,
		hub:         hub,
		audit:       audit,
		log:         log,
	}
}

// ListMessages returns a chat's messages in send order. Participants only.
func (h *MessageHandler) ListMessages(c *gin.Context) {
	chatID, ok := parseChatID(c)
	if !ok {
		return
	}
	userID := c.GetInt("userID")

	if _, err := h.chatRepo.GetChat(c.Request.Context(), chatID); err != nil {
		respondError(c, err, "failed to load chat")
		return
	}

	member, err := h.chatRepo.IsParticipant(c.Request.Context(), chatID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a chat participant"})
		return
	}

	msgs, err := h.messageRepo.ListByChat(c.Request.Context(), chatID)
	if err != nil {
		h.log.Error("failed to list messages", zap.Int("chat_id", chatID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// MarkChatRead creates receipts for every unread message not sent by
// the caller. Safe to repeat; a second call inserts nothing.
func (h *MessageHandler) MarkChatRead(c *gin.Context) {
	chatID, ok := parseChatID(c)
	if !ok {
		return
	}
	userID := c.GetInt("userID")

	member, err := h.chatRepo.IsParticipant(c.Request.Context(), chatID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a chat participant"})
		return
	}

	count, err := h.messageRepo.MarkChatRead(c.Request.Context(), chatID, userID)
	if err != nil {
		h.log.Error("failed to mark chat read", zap.Int("chat_id", chatID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark chat read"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"marked": count})
}

// DeleteMessage removes the caller's own message and notifies the
// chat's room. Non-senders are refused.
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	messageID, err := strconv.Atoi(c.Param("message_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}
	userID := c.GetInt("userID")

	msg, err := h.messageRepo.GetMessage(c.Request.Context(), messageID)
	if err != nil {
		respondError(c, err, "failed to load message")
		return
	}
	if msg.SenderID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the sender can delete a message"})
		return
	}

	if err := h.messageRepo.DeleteMessage(c.Request.Context(), messageID); err != nil {
		respondError(c, err, "could not delete message")
		return
	}

	h.hub.BroadcastDeletion(msg.ChatID, messageID)
	h.audit.Emit(c.Request.Context(), "message_deleted", requestIDFromContext(c), userID, map[string]any{
		"chat_id":    msg.ChatID,
		"message_id": messageID,
	})

	c.Status(http.StatusNoContent)
}

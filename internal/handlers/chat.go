package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"messenger-service/internal/repositories"
	"messenger-service/internal/ws"
)

// ChatHandler manages the chat-scoped HTTP surface.
type ChatHandler struct {
	chatRepo repositories.ChatRepository
	userRepo repositories.UserRepository
	hub      *ws.Hub
	log      *zap.Logger
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(chatRepo repositories.ChatRepository, userRepo repositories.UserRepository,
	hub *ws.Hub, log *zap.Logger) *ChatHandler {
	return &ChatHandler{chatRepo: chatRepo, userRepo: userRepo, hub: hub, log: log}
}

// ListChats returns the chats visible to the authenticated user,
// newest activity first, with participants and a message preview.
func (h *ChatHandler) ListChats(c *gin.Context) {
	userID := c.GetInt("userID")

	chats, err := h.chatRepo.ListChatsForUser(c.Request.Context(), userID)
	if err != nil {
		h.log.Error("failed to list chats", zap.Int("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// GetChat returns one chat: 404 when absent, 403 for non-participants.
func (h *ChatHandler) GetChat(c *gin.Context) {
	chatID, ok := parseChatID(c)
	if !ok {
		return
	}
	userID := c.GetInt("userID")

	chat, err := h.chatRepo.GetChat(c.Request.Context(), chatID)
	if err != nil {
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

	c.JSON(http.StatusOK, chat)
}

// StartDM finds or creates the DM with the named partner.
func (h *ChatHandler) StartDM(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username is required"})
		return
	}

	userID := c.GetInt("userID")
	partner, err := h.userRepo.FindByUsername(c.Request.Context(), req.Username)
	if err != nil {
		respondError(c, err, "failed to resolve user")
		return
	}
	if partner.ID == userID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot start a chat with yourself"})
		return
	}

	chat, err := h.chatRepo.CreateOrGetDM(c.Request.Context(), userID, partner.ID)
	if err != nil {
		h.log.Error("failed to create dm", zap.Int("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create chat"})
		return
	}

	c.JSON(http.StatusOK, chat)
}

// CreateGroup creates a group chat owned by the caller.
func (h *ChatHandler) CreateGroup(c *gin.Context) {
	var req struct {
		Name      string  `json:"name"`
		AvatarURL *string `json:"avatar_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	ownerID := c.GetInt("userID")
	chat, err := h.chatRepo.CreateGroup(c.Request.Context(), ownerID, req.Name, req.AvatarURL)
	if err != nil {
		respondError(c, err, "could not create group")
		return
	}

	c.JSON(http.StatusCreated, chat)
}

// JoinGroup adds the caller to the chat behind an invite code.
func (h *ChatHandler) JoinGroup(c *gin.Context) {
	var req struct {
		InviteCode string `json:"invite_code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invite_code is required"})
		return
	}

	userID := c.GetInt("userID")
	chat, err := h.chatRepo.JoinWithInviteCode(c.Request.Context(), userID, req.InviteCode)
	if err != nil {
		respondError(c, err, "could not join chat")
		return
	}

	c.JSON(http.StatusOK, chat)
}

// UpdateGroup patches group name/avatar; owner only.
func (h *ChatHandler) UpdateGroup(c *gin.Context) {
	chatID, ok := parseChatID(c)
	if !ok {
		return
	}

	var req struct {
		Name      *string `json:"name"`
		AvatarURL *string `json:"avatar_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	callerID := c.GetInt("userID")
	chat, err := h.chatRepo.UpdateGroup(c.Request.Context(), chatID, callerID, req.Name, req.AvatarURL)
	if err != nil {
		respondError(c, err, "could not update group")
		return
	}

	c.JSON(http.StatusOK, chat)
}

// LeaveChat removes the caller's membership. Owners are refused.
func (h *ChatHandler) LeaveChat(c *gin.Context) {
	chatID, ok := parseChatID(c)
	if !ok {
		return
	}

	userID := c.GetInt("userID")
	if err := h.chatRepo.Leave(c.Request.Context(), userID, chatID); err != nil {
		respondError(c, err, "could not leave chat")
		return
	}

	// A connected leaver must stop receiving the chat's live traffic.
	h.hub.LeaveRoom(chatID, userID)

	c.Status(http.StatusNoContent)
}

// HideChat archives the chat from the caller's list without leaving it.
func (h *ChatHandler) HideChat(c *gin.Context) {
	chatID, ok := parseChatID(c)
	if !ok {
		return
	}

	userID := c.GetInt("userID")
	if err := h.chatRepo.HideChat(c.Request.Context(), userID, chatID); err != nil {
		respondError(c, err, "could not hide chat")
		return
	}

	c.Status(http.StatusNoContent)
}

// UnhideChat restores a hidden chat to the caller's list.
func (h *ChatHandler) UnhideChat(c *gin.Context) {
	chatID, ok := parseChatID(c)
	if !ok {
		return
	}

	userID := c.GetInt("userID")
	if err := h.chatRepo.UnhideChat(c.Request.Context(), userID, chatID); err != nil {
		respondError(c, err, "could not unhide chat")
		return
	}

	c.Status(http.StatusNoContent)
}

func parseChatID(c *gin.Context) (int, bool) {
	chatID, err := strconv.Atoi(c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return 0, false
	}
	return chatID, true
}

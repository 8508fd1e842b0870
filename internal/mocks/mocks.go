package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"messenger-service/internal/auth"
	"messenger-service/internal/models"
)

type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) CreateOrGetDM(ctx context.Context, userID int, partnerID int) (models.Chat, error) {
	args := m.Called(ctx, userID, partnerID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) CreateGroup(ctx context.Context, ownerID int, name string, avatarURL *string) (models.Chat, error) {
	args := m.Called(ctx, ownerID, name, avatarURL)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) ListChatsForUser(ctx context.Context, userID int) ([]models.ChatSummary, error) {
	args := m.Called(ctx, userID)
	var list []models.ChatSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.ChatSummary)
	}
	return list, args.Error(1)
}

func (m *ChatRepositoryMock) GetChat(ctx context.Context, chatID int) (models.Chat, error) {
	args := m.Called(ctx, chatID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) JoinWithInviteCode(ctx context.Context, userID int, code string) (models.Chat, error) {
	args := m.Called(ctx, userID, code)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) Leave(ctx context.Context, userID int, chatID int) error {
	args := m.Called(ctx, userID, chatID)
	return args.Error(0)
}

func (m *ChatRepositoryMock) HideChat(ctx context.Context, userID int, chatID int) error {
	args := m.Called(ctx, userID, chatID)
	return args.Error(0)
}

func (m *ChatRepositoryMock) UnhideChat(ctx context.Context, userID int, chatID int) error {
	args := m.Called(ctx, userID, chatID)
	return args.Error(0)
}

func (m *ChatRepositoryMock) UnhideForOthers(ctx context.Context, chatID int, senderID int) error {
	args := m.Called(ctx, chatID, senderID)
	return args.Error(0)
}

func (m *ChatRepositoryMock) IsParticipant(ctx context.Context, chatID int, userID int) (bool, error) {
	args := m.Called(ctx, chatID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ChatRepositoryMock) UpdateGroup(ctx context.Context, chatID int, callerID int, name *string, avatarURL *string) (models.Chat, error) {
	args := m.Called(ctx, chatID, callerID, name, avatarURL)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) ChatIDsForUser(ctx context.Context, userID int) ([]int, error) {
	args := m.Called(ctx, userID)
	var ids []int
	if val := args.Get(0); val != nil {
		ids = val.([]int)
	}
	return ids, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, chatID int, senderID int, content string) (models.Message, error) {
	args := m.Called(ctx, chatID, senderID, content)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListByChat(ctx context.Context, chatID int) ([]models.Message, error) {
	args := m.Called(ctx, chatID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) DeleteMessage(ctx context.Context, messageID int) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) MarkChatRead(ctx context.Context, chatID int, userID int) (int, error) {
	args := m.Called(ctx, chatID, userID)
	return args.Int(0), args.Error(1)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) FindByID(ctx context.Context, userID int) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) FindByUsername(ctx context.Context, username string) (models.User, error) {
	args := m.Called(ctx, username)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) SetStatus(ctx context.Context, userID int, status string) error {
	args := m.Called(ctx, userID, status)
	return args.Error(0)
}

type VerifierMock struct {
	mock.Mock
}

func (m *VerifierMock) Verify(token string) (auth.Identity, error) {
	args := m.Called(token)
	var identity auth.Identity
	if val := args.Get(0); val != nil {
		identity = val.(auth.Identity)
	}
	return identity, args.Error(1)
}

package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateMessageTouchesChat(t *testing.T) {
	database := testDB(t)
	chats := NewChatRepo(database)
	messages := NewMessageRepo(database)
	ctx := context.Background()
	alice := seedUser(t, database, "alice")
	bob := seedUser(t, database, "bob")

	dm, err := chats.CreateOrGetDM(ctx, alice, bob)
	require.NoError(t, err)

	msg, err := messages.CreateMessage(ctx, dm.ID, alice, "hello")
	require.NoError(t, err)
	require.Equal(t, dm.ID, msg.ChatID)
	require.Equal(t, "alice", msg.Sender.Username)

	// The chat's recency key moves with the message, never behind it.
	updated, err := chats.GetChat(ctx, dm.ID)
	require.NoError(t, err)
	require.False(t, updated.UpdatedAt.Before(msg.CreatedAt))
	require.False(t, updated.UpdatedAt.Before(dm.UpdatedAt))
}

func TestListByChatOrder(t *testing.T) {
	database := testDB(t)
	chats := NewChatRepo(database)
	messages := NewMessageRepo(database)
	ctx := context.Background()
	alice := seedUser(t, database, "alice")
	bob := seedUser(t, database, "bob")

	dm, err := chats.CreateOrGetDM(ctx, alice, bob)
	require.NoError(t, err)
	for i, content := range []string{"one", "two", "three"} {
		sender := alice
		if i%2 == 1 {
			sender = bob
		}
		_, err := messages.CreateMessage(ctx, dm.ID, sender, content)
		require.NoError(t, err)
	}

	listed, err := messages.ListByChat(ctx, dm.ID)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	require.Equal(t, "one", listed[0].Content)
	require.Equal(t, "two", listed[1].Content)
	require.Equal(t, "three", listed[2].Content)
	require.Equal(t, "bob", listed[1].Sender.Username)
}

func TestMarkChatReadIdempotent(t *testing.T) {
	database := testDB(t)
	chats := NewChatRepo(database)
	messages := NewMessageRepo(database)
	ctx := context.Background()
	alice := seedUser(t, database, "alice")
	bob := seedUser(t, database, "bob")

	dm, err := chats.CreateOrGetDM(ctx, alice, bob)
	require.NoError(t, err)
	for _, content := range []string{"a1", "a2", "a3"} {
		_, err := messages.CreateMessage(ctx, dm.ID, alice, content)
		require.NoError(t, err)
	}
	_, err = messages.CreateMessage(ctx, dm.ID, bob, "b1")
	require.NoError(t, err)

	// Own messages are never receipted; repeats insert nothing.
	marked, err := messages.MarkChatRead(ctx, dm.ID, bob)
	require.NoError(t, err)
	require.Equal(t, 3, marked)

	marked, err = messages.MarkChatRead(ctx, dm.ID, bob)
	require.NoError(t, err)
	require.Equal(t, 0, marked)

	marked, err = messages.MarkChatRead(ctx, dm.ID, alice)
	require.NoError(t, err)
	require.Equal(t, 1, marked)

	require.Equal(t, 4, countRows(t, database, `SELECT COUNT(*) FROM read_receipts`))
}

func TestDeleteMessageGone(t *testing.T) {
	database := testDB(t)
	chats := NewChatRepo(database)
	messages := NewMessageRepo(database)
	ctx := context.Background()
	alice := seedUser(t, database, "alice")
	bob := seedUser(t, database, "bob")

	dm, err := chats.CreateOrGetDM(ctx, alice, bob)
	require.NoError(t, err)
	msg, err := messages.CreateMessage(ctx, dm.ID, alice, "oops")
	require.NoError(t, err)

	require.NoError(t, messages.DeleteMessage(ctx, msg.ID))
	_, err = messages.GetMessage(ctx, msg.ID)
	require.ErrorIs(t, err, ErrMessageNotFound)
	require.ErrorIs(t, messages.DeleteMessage(ctx, msg.ID), ErrMessageNotFound)
}

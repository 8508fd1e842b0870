package repositories

import (
	"context"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"messenger-service/internal/db"
	"messenger-service/internal/models"
)

// testDB connects to the Postgres named by MESSENGER_TEST_DB_DSN,
// applies migrations, and wipes all rows. Skipped when the variable is
// unset so the suite stays runnable without a database.
func testDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("MESSENGER_TEST_DB_DSN")
	if dsn == "" {
		t.Skip("MESSENGER_TEST_DB_DSN not set")
	}

	database, err := db.Connect(dsn, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	for _, table := range []string{"read_receipts", "messages", "chat_participants", "chats", "users"} {
		_, err := database.Exec(`DELETE FROM ` + table)
		require.NoError(t, err)
	}
	return database
}

func seedUser(t *testing.T, database *sqlx.DB, username string) int {
	t.Helper()
	var id int
	require.NoError(t, database.QueryRowx(
		`INSERT INTO users (username, password_hash) VALUES ($1, 'x') RETURNING id`, username).Scan(&id))
	return id
}

func countRows(t *testing.T, database *sqlx.DB, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, database.Get(&n, query, args...))
	return n
}

func TestCreateOrGetDMIdempotent(t *testing.T) {
	database := testDB(t)
	repo := NewChatRepo(database)
	ctx := context.Background()
	alice := seedUser(t, database, "alice")
	bob := seedUser(t, database, "bob")

	first, err := repo.CreateOrGetDM(ctx, alice, bob)
	require.NoError(t, err)
	require.Equal(t, models.ChatTypeDM, first.Type)

	// The reversed pair resolves to the same chat.
	second, err := repo.CreateOrGetDM(ctx, bob, alice)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	require.Equal(t, 1, countRows(t, database, `SELECT COUNT(*) FROM chats`))
	require.Equal(t, 2, countRows(t, database,
		`SELECT COUNT(*) FROM chat_participants WHERE chat_id=$1`, first.ID))
}

func TestCreateOrGetDMIgnoresSharedGroup(t *testing.T) {
	database := testDB(t)
	repo := NewChatRepo(database)
	ctx := context.Background()
	alice := seedUser(t, database, "alice")
	bob := seedUser(t, database, "bob")

	group, err := repo.CreateGroup(ctx, alice, "crew", nil)
	require.NoError(t, err)
	require.NotNil(t, group.InviteCode)
	_, err = repo.JoinWithInviteCode(ctx, bob, *group.InviteCode)
	require.NoError(t, err)

	// A group containing both users is not their DM.
	dm, err := repo.CreateOrGetDM(ctx, alice, bob)
	require.NoError(t, err)
	require.NotEqual(t, group.ID, dm.ID)
	require.Equal(t, models.ChatTypeDM, dm.Type)
}

func TestCreateOrGetDMUnhidesForCaller(t *testing.T) {
	database := testDB(t)
	repo := NewChatRepo(database)
	ctx := context.Background()
	alice := seedUser(t, database, "alice")
	bob := seedUser(t, database, "bob")

	dm, err := repo.CreateOrGetDM(ctx, alice, bob)
	require.NoError(t, err)
	require.NoError(t, repo.HideChat(ctx, alice, dm.ID))

	again, err := repo.CreateOrGetDM(ctx, alice, bob)
	require.NoError(t, err)
	require.Equal(t, dm.ID, again.ID)
	require.Equal(t, 0, countRows(t, database,
		`SELECT COUNT(*) FROM chat_participants WHERE chat_id=$1 AND user_id=$2 AND is_hidden = TRUE`,
		dm.ID, alice))
}

func TestJoinWithInviteCodeRestoresMembership(t *testing.T) {
	database := testDB(t)
	repo := NewChatRepo(database)
	ctx := context.Background()
	alice := seedUser(t, database, "alice")
	bob := seedUser(t, database, "bob")

	group, err := repo.CreateGroup(ctx, alice, "crew", nil)
	require.NoError(t, err)
	_, err = repo.JoinWithInviteCode(ctx, bob, *group.InviteCode)
	require.NoError(t, err)
	require.NoError(t, repo.HideChat(ctx, bob, group.ID))

	// Re-joining upserts: one row, hidden flag cleared.
	_, err = repo.JoinWithInviteCode(ctx, bob, *group.InviteCode)
	require.NoError(t, err)
	require.Equal(t, 1, countRows(t, database,
		`SELECT COUNT(*) FROM chat_participants WHERE chat_id=$1 AND user_id=$2`, group.ID, bob))
	require.Equal(t, 0, countRows(t, database,
		`SELECT COUNT(*) FROM chat_participants WHERE chat_id=$1 AND user_id=$2 AND is_hidden = TRUE`,
		group.ID, bob))
}

func TestUnhideForOthersLeavesSenderHidden(t *testing.T) {
	database := testDB(t)
	repo := NewChatRepo(database)
	ctx := context.Background()
	alice := seedUser(t, database, "alice")
	bob := seedUser(t, database, "bob")

	dm, err := repo.CreateOrGetDM(ctx, alice, bob)
	require.NoError(t, err)
	require.NoError(t, repo.HideChat(ctx, alice, dm.ID))
	require.NoError(t, repo.HideChat(ctx, bob, dm.ID))

	require.NoError(t, repo.UnhideForOthers(ctx, dm.ID, alice))

	require.Equal(t, 1, countRows(t, database,
		`SELECT COUNT(*) FROM chat_participants WHERE chat_id=$1 AND user_id=$2 AND is_hidden = TRUE`,
		dm.ID, alice))
	require.Equal(t, 0, countRows(t, database,
		`SELECT COUNT(*) FROM chat_participants WHERE chat_id=$1 AND user_id=$2 AND is_hidden = TRUE`,
		dm.ID, bob))
}

func TestLeaveRemovesMembership(t *testing.T) {
	database := testDB(t)
	repo := NewChatRepo(database)
	ctx := context.Background()
	alice := seedUser(t, database, "alice")
	bob := seedUser(t, database, "bob")

	group, err := repo.CreateGroup(ctx, alice, "crew", nil)
	require.NoError(t, err)
	_, err = repo.JoinWithInviteCode(ctx, bob, *group.InviteCode)
	require.NoError(t, err)

	require.ErrorIs(t, repo.Leave(ctx, alice, group.ID), ErrOwnerCannotLeave)

	require.NoError(t, repo.Leave(ctx, bob, group.ID))
	require.Equal(t, 0, countRows(t, database,
		`SELECT COUNT(*) FROM chat_participants WHERE chat_id=$1 AND user_id=$2`, group.ID, bob))
	require.ErrorIs(t, repo.Leave(ctx, bob, group.ID), ErrNotParticipant)
}

func TestListChatsForUserPreviews(t *testing.T) {
	database := testDB(t)
	chats := NewChatRepo(database)
	messages := NewMessageRepo(database)
	ctx := context.Background()
	alice := seedUser(t, database, "alice")
	bob := seedUser(t, database, "bob")
	carol := seedUser(t, database, "carol")

	dm, err := chats.CreateOrGetDM(ctx, alice, bob)
	require.NoError(t, err)
	group, err := chats.CreateGroup(ctx, alice, "crew", nil)
	require.NoError(t, err)
	hidden, err := chats.CreateOrGetDM(ctx, alice, carol)
	require.NoError(t, err)
	require.NoError(t, chats.HideChat(ctx, alice, hidden.ID))

	_, err = messages.CreateMessage(ctx, group.ID, alice, "group first")
	require.NoError(t, err)
	_, err = messages.CreateMessage(ctx, dm.ID, alice, "dm first")
	require.NoError(t, err)
	last, err := messages.CreateMessage(ctx, dm.ID, bob, "dm second")
	require.NoError(t, err)

	summaries, err := chats.ListChatsForUser(ctx, alice)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	// Latest activity first; hidden chats excluded.
	require.Equal(t, dm.ID, summaries[0].ID)
	require.Equal(t, group.ID, summaries[1].ID)

	// The preview is the newest message with its sender attached.
	require.NotNil(t, summaries[0].LastMessage)
	require.Equal(t, last.ID, summaries[0].LastMessage.ID)
	require.Equal(t, "dm second", summaries[0].LastMessage.Content)
	require.Equal(t, "bob", summaries[0].LastMessage.Sender.Username)

	names := []string{}
	for _, p := range summaries[0].Participants {
		names = append(names, p.Username)
	}
	require.ElementsMatch(t, []string{"alice", "bob"}, names)
}

package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"messenger-service/internal/models"
)

const chatColumns = `id, type, name, avatar_url, invite_code, owner_id, updated_at, created_at`

// ChatRepository abstracts chat and membership persistence.
type ChatRepository interface {
	CreateOrGetDM(ctx context.Context, userID int, partnerID int) (models.Chat, error)
	CreateGroup(ctx context.Context, ownerID int, name string, avatarURL *string) (models.Chat, error)
	ListChatsForUser(ctx context.Context, userID int) ([]models.ChatSummary, error)
	GetChat(ctx context.Context, chatID int) (models.Chat, error)
	JoinWithInviteCode(ctx context.Context, userID int, code string) (models.Chat, error)
	Leave(ctx context.Context, userID int, chatID int) error
	HideChat(ctx context.Context, userID int, chatID int) error
	UnhideChat(ctx context.Context, userID int, chatID int) error
	UnhideForOthers(ctx context.Context, chatID int, senderID int) error
	IsParticipant(ctx context.Context, chatID int, userID int) (bool, error)
	UpdateGroup(ctx context.Context, chatID int, callerID int, name *string, avatarURL *string) (models.Chat, error)
	ChatIDsForUser(ctx context.Context, userID int) ([]int, error)
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

// CreateOrGetDM returns the DM chat between two users, creating it if
// none exists. Repeated calls with the same unordered pair never create
// a second chat; an existing chat is unhidden for the caller.
func (r *ChatRepo) CreateOrGetDM(ctx context.Context, userID int, partnerID int) (models.Chat, error) {
	if userID == partnerID {
		return models.Chat{}, errors.New("cannot create chat with self")
	}

	var chat models.Chat
	query := `SELECT c.id, c.type, c.name, c.avatar_url, c.invite_code, c.owner_id, c.updated_at, c.created_at
        FROM chats c
        JOIN chat_participants p1 ON p1.chat_id = c.id AND p1.user_id = $1
        JOIN chat_participants p2 ON p2.chat_id = c.id AND p2.user_id = $2
        WHERE c.type = 'DM'`
	err := r.db.GetContext(ctx, &chat, query, userID, partnerID)
	if err == nil {
		if err := r.UnhideChat(ctx, userID, chat.ID); err != nil {
			return models.Chat{}, err
		}
		return chat, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Chat{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = tx.GetContext(ctx, &chat,
		`INSERT INTO chats (type) VALUES ('DM') RETURNING `+chatColumns); err != nil {
		return models.Chat{}, err
	}
	for _, id := range []int{userID, partnerID} {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO chat_participants (user_id, chat_id) VALUES ($1, $2)`, id, chat.ID); err != nil {
			return models.Chat{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return models.Chat{}, err
	}
	return chat, nil
}

// CreateGroup creates a GROUP chat with the owner as sole participant
// and a freshly generated invite code.
func (r *ChatRepo) CreateGroup(ctx context.Context, ownerID int, name string, avatarURL *string) (models.Chat, error) {
	if name == "" {
		return models.Chat{}, ErrGroupNameRequired
	}

	// Unique-violation on invite_code is resolved by regenerating.
	for attempt := 0; attempt < 5; attempt++ {
		code, err := newInviteCode()
		if err != nil {
			return models.Chat{}, err
		}
		chat, err := r.createGroupOnce(ctx, ownerID, name, avatarURL, code)
		if err == nil {
			return chat, nil
		}
		if !isUniqueViolation(err) {
			return models.Chat{}, err
		}
	}
	return models.Chat{}, ErrDuplicateInviteCode
}

func (r *ChatRepo) createGroupOnce(ctx context.Context, ownerID int, name string, avatarURL *string, code string) (models.Chat, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Chat{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var chat models.Chat
	if err = tx.GetContext(ctx, &chat,
		`INSERT INTO chats (type, name, avatar_url, invite_code, owner_id)
         VALUES ('GROUP', $1, $2, $3, $4) RETURNING `+chatColumns,
		name, avatarURL, code, ownerID); err != nil {
		return models.Chat{}, err
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO chat_participants (user_id, chat_id) VALUES ($1, $2)`, ownerID, chat.ID); err != nil {
		return models.Chat{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Chat{}, err
	}
	return chat, nil
}

// ListChatsForUser returns the caller's visible chats ordered by
// recency, each with participant summaries and the latest message.
func (r *ChatRepo) ListChatsForUser(ctx context.Context, userID int) ([]models.ChatSummary, error) {
	var chats []models.Chat
	query := `SELECT c.id, c.type, c.name, c.avatar_url, c.invite_code, c.owner_id, c.updated_at, c.created_at
        FROM chats c
        JOIN chat_participants p ON p.chat_id = c.id
        WHERE p.user_id = $1 AND p.is_hidden = FALSE
        ORDER BY c.updated_at DESC`
	if err := r.db.SelectContext(ctx, &chats, query, userID); err != nil {
		return nil, err
	}
	if len(chats) == 0 {
		return []models.ChatSummary{}, nil
	}

	chatIDs := make([]int, 0, len(chats))
	for _, c := range chats {
		chatIDs = append(chatIDs, c.ID)
	}

	participants, err := r.participantsByChat(ctx, chatIDs)
	if err != nil {
		return nil, err
	}
	lastMessages, err := r.lastMessagesByChat(ctx, chatIDs)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.ChatSummary, 0, len(chats))
	for _, c := range chats {
		summaries = append(summaries, models.ChatSummary{
			Chat:         c,
			Participants: participants[c.ID],
			LastMessage:  lastMessages[c.ID],
		})
	}
	return summaries, nil
}

func (r *ChatRepo) participantsByChat(ctx context.Context, chatIDs []int) (map[int][]models.UserSummary, error) {
	query, args, err := sqlx.In(`SELECT p.chat_id, u.id, u.username, u.avatar_url, u.status
        FROM chat_participants p
        JOIN users u ON u.id = p.user_id
        WHERE p.chat_id IN (?)`, chatIDs)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryxContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := map[int][]models.UserSummary{}
	for rows.Next() {
		var chatID int
		var u models.UserSummary
		if err := rows.Scan(&chatID, &u.ID, &u.Username, &u.AvatarURL, &u.Status); err != nil {
			return nil, err
		}
		result[chatID] = append(result[chatID], u)
	}
	return result, rows.Err()
}

func (r *ChatRepo) lastMessagesByChat(ctx context.Context, chatIDs []int) (map[int]*models.Message, error) {
	query, args, err := sqlx.In(`SELECT DISTINCT ON (m.chat_id)
            m.id, m.chat_id, m.sender_id, m.content, m.created_at, u.username, u.avatar_url
        FROM messages m
        JOIN users u ON u.id = m.sender_id
        WHERE m.chat_id IN (?)
        ORDER BY m.chat_id, m.created_at DESC, m.id DESC`, chatIDs)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryxContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := map[int]*models.Message{}
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.CreatedAt,
			&m.Sender.Username, &m.Sender.AvatarURL); err != nil {
			return nil, err
		}
		m.Sender.ID = m.SenderID
		result[m.ChatID] = &m
	}
	return result, rows.Err()
}

// GetChat fetches a chat by id.
func (r *ChatRepo) GetChat(ctx context.Context, chatID int) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, `SELECT `+chatColumns+` FROM chats WHERE id=$1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

// JoinWithInviteCode adds the user to the chat behind the code. A user
// who previously left or hid the chat is restored, never duplicated.
func (r *ChatRepo) JoinWithInviteCode(ctx context.Context, userID int, code string) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, `SELECT `+chatColumns+` FROM chats WHERE invite_code=$1`, code)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	if err != nil {
		return models.Chat{}, err
	}

	if _, err := r.db.ExecContext(ctx, `INSERT INTO chat_participants (user_id, chat_id) VALUES ($1, $2)
        ON CONFLICT (user_id, chat_id) DO UPDATE SET is_hidden = FALSE`, userID, chat.ID); err != nil {
		return models.Chat{}, err
	}
	return chat, nil
}

// Leave removes the caller's participant row. Owners cannot leave;
// chat deletion is a separate concern and not implemented here.
func (r *ChatRepo) Leave(ctx context.Context, userID int, chatID int) error {
	chat, err := r.GetChat(ctx, chatID)
	if err != nil {
		return err
	}
	if chat.IsOwner(userID) {
		return ErrOwnerCannotLeave
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM chat_participants WHERE user_id=$1 AND chat_id=$2`, userID, chatID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotParticipant
	}
	return nil
}

// HideChat marks the chat hidden for the caller only.
func (r *ChatRepo) HideChat(ctx context.Context, userID int, chatID int) error {
	return r.setHidden(ctx, userID, chatID, true)
}

// UnhideChat clears the hidden flag for the caller only.
func (r *ChatRepo) UnhideChat(ctx context.Context, userID int, chatID int) error {
	return r.setHidden(ctx, userID, chatID, false)
}

func (r *ChatRepo) setHidden(ctx context.Context, userID int, chatID int, hidden bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE chat_participants SET is_hidden=$3 WHERE user_id=$1 AND chat_id=$2`, userID, chatID, hidden)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotParticipant
	}
	return nil
}

// UnhideForOthers clears the hidden flag for every participant except
// the sender: a new message un-archives the chat for its recipients.
func (r *ChatRepo) UnhideForOthers(ctx context.Context, chatID int, senderID int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE chat_participants SET is_hidden = FALSE
         WHERE chat_id=$1 AND user_id<>$2 AND is_hidden = TRUE`, chatID, senderID)
	return err
}

// IsParticipant is the sole authorization check for chat-scoped operations.
func (r *ChatRepo) IsParticipant(ctx context.Context, chatID int, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM chat_participants WHERE chat_id=$1 AND user_id=$2)`, chatID, userID)
	return exists, err
}

// UpdateGroup patches a group's name and avatar. Only the owner may
// update; non-group chats are reported as not found.
func (r *ChatRepo) UpdateGroup(ctx context.Context, chatID int, callerID int, name *string, avatarURL *string) (models.Chat, error) {
	chat, err := r.GetChat(ctx, chatID)
	if err != nil {
		return models.Chat{}, err
	}
	if chat.Type != models.ChatTypeGroup {
		return models.Chat{}, ErrChatNotFound
	}
	if !chat.IsOwner(callerID) {
		return models.Chat{}, ErrNotOwner
	}

	var updated models.Chat
	err = r.db.GetContext(ctx, &updated,
		`UPDATE chats SET name = COALESCE($2, name), avatar_url = COALESCE($3, avatar_url)
         WHERE id=$1 RETURNING `+chatColumns, chatID, name, avatarURL)
	if err != nil {
		return models.Chat{}, err
	}
	return updated, nil
}

// ChatIDsForUser returns every chat the user belongs to, hidden ones
// included. Used by the gateway to join live rooms: a hidden chat must
// still receive traffic so an incoming message can surface it.
func (r *ChatRepo) ChatIDsForUser(ctx context.Context, userID int) ([]int, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids,
		`SELECT chat_id FROM chat_participants WHERE user_id=$1`, userID)
	return ids, err
}

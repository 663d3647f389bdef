package repositories

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

var (
	ErrChatNotFound       = errors.New("chat not found")
	ErrMembershipNotFound = errors.New("membership not found")
)

const chatColumns = `id, name, is_group, created_at, updated_at`

// ChatRepository abstracts chat and membership persistence.
type ChatRepository interface {
	Create(ctx context.Context, chat models.Chat) (models.Chat, error)
	Get(ctx context.Context, chatID int) (models.Chat, error)
	GetForUpdate(ctx context.Context, chatID int) (models.Chat, error)
	GetForShare(ctx context.Context, chatID int) (models.Chat, error)
	UpdateName(ctx context.Context, chatID int, name *string) (models.Chat, error)
	Delete(ctx context.Context, chatID int) error

	AddMember(ctx context.Context, membership models.Membership) (models.Membership, error)
	GetMembership(ctx context.Context, chatID int, userID int) (models.Membership, error)
	IsMember(ctx context.Context, chatID int, userID int) (bool, error)
	IsAdmin(ctx context.Context, chatID int, userID int) (bool, error)
	RemoveMember(ctx context.Context, chatID int, userID int) error
	CountMembers(ctx context.Context, chatID int) (int, error)
	DeleteMembers(ctx context.Context, chatID int) error
	ListMembers(ctx context.Context, chatID int) ([]models.User, error)
	ListMemberships(ctx context.Context, chatID int) ([]models.Membership, error)
	ListChatIDsForUser(ctx context.Context, userID int, skip, limit int) ([]int, error)
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db sqlx.ExtContext
}

// NewChatRepo constructs a ChatRepo on a database or transaction handle.
func NewChatRepo(db sqlx.ExtContext) *ChatRepo {
	return &ChatRepo{db: db}
}

// Create inserts a chat row. Memberships are added separately.
func (r *ChatRepo) Create(ctx context.Context, chat models.Chat) (models.Chat, error) {
	chat.CreatedAt = now()
	chat.UpdatedAt = nil
	err := r.db.QueryRowxContext(ctx, r.db.Rebind(`INSERT INTO chats (name, is_group, created_at) VALUES (?, ?, ?) RETURNING id`),
		chat.Name, chat.IsGroup, chat.CreatedAt).Scan(&chat.ID)
	if err != nil {
		return models.Chat{}, err
	}
	return chat, nil
}

// Get fetches a chat by id.
func (r *ChatRepo) Get(ctx context.Context, chatID int) (models.Chat, error) {
	return r.get(ctx, chatID, "")
}

// GetForUpdate fetches a chat and locks it against concurrent membership changes.
func (r *ChatRepo) GetForUpdate(ctx context.Context, chatID int) (models.Chat, error) {
	return r.get(ctx, chatID, lockClause(r.db, "UPDATE"))
}

// GetForShare fetches a chat and keeps it from being deleted until the transaction ends.
func (r *ChatRepo) GetForShare(ctx context.Context, chatID int) (models.Chat, error) {
	return r.get(ctx, chatID, lockClause(r.db, "SHARE"))
}

func (r *ChatRepo) get(ctx context.Context, chatID int, lock string) (models.Chat, error) {
	var chat models.Chat
	err := sqlx.GetContext(ctx, r.db, &chat, r.db.Rebind(`SELECT `+chatColumns+` FROM chats WHERE id=?`+lock), chatID)
	if err != nil {
		return models.Chat{}, notFound(err, ErrChatNotFound)
	}
	return chat, nil
}

// UpdateName renames a chat.
func (r *ChatRepo) UpdateName(ctx context.Context, chatID int, name *string) (models.Chat, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE chats SET name=?, updated_at=? WHERE id=?`), name, now(), chatID)
	if err != nil {
		return models.Chat{}, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return models.Chat{}, err
	}
	if count == 0 {
		return models.Chat{}, ErrChatNotFound
	}
	return r.Get(ctx, chatID)
}

// Delete removes the chat row.
func (r *ChatRepo) Delete(ctx context.Context, chatID int) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM chats WHERE id=?`), chatID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrChatNotFound
	}
	return nil
}

// AddMember inserts a membership row.
func (r *ChatRepo) AddMember(ctx context.Context, membership models.Membership) (models.Membership, error) {
	membership.JoinedAt = now()
	err := r.db.QueryRowxContext(ctx, r.db.Rebind(`INSERT INTO users_chats (user_id, chat_id, is_admin, joined_at) VALUES (?, ?, ?, ?) RETURNING id`),
		membership.UserID, membership.ChatID, membership.IsAdmin, membership.JoinedAt).Scan(&membership.ID)
	if err != nil {
		return models.Membership{}, err
	}
	return membership, nil
}

// GetMembership fetches the membership of a user in a chat.
func (r *ChatRepo) GetMembership(ctx context.Context, chatID int, userID int) (models.Membership, error) {
	var membership models.Membership
	err := sqlx.GetContext(ctx, r.db, &membership, r.db.Rebind(`SELECT id, user_id, chat_id, is_admin, joined_at FROM users_chats
        WHERE chat_id=? AND user_id=?`), chatID, userID)
	if err != nil {
		return models.Membership{}, notFound(err, ErrMembershipNotFound)
	}
	return membership, nil
}

// IsMember checks the join table directly, so it also answers for chats that do not exist.
func (r *ChatRepo) IsMember(ctx context.Context, chatID int, userID int) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, r.db, &exists, r.db.Rebind(`SELECT EXISTS(SELECT 1 FROM users_chats WHERE chat_id=? AND user_id=?)`), chatID, userID)
	return exists, err
}

// IsAdmin checks whether the user holds the admin flag on the chat.
func (r *ChatRepo) IsAdmin(ctx context.Context, chatID int, userID int) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, r.db, &exists, r.db.Rebind(`SELECT EXISTS(SELECT 1 FROM users_chats WHERE chat_id=? AND user_id=? AND is_admin=?)`), chatID, userID, true)
	return exists, err
}

// RemoveMember deletes one membership.
func (r *ChatRepo) RemoveMember(ctx context.Context, chatID int, userID int) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM users_chats WHERE chat_id=? AND user_id=?`), chatID, userID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMembershipNotFound
	}
	return nil
}

// CountMembers returns the number of memberships of a chat.
func (r *ChatRepo) CountMembers(ctx context.Context, chatID int) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, r.db, &count, r.db.Rebind(`SELECT COUNT(*) FROM users_chats WHERE chat_id=?`), chatID)
	return count, err
}

// DeleteMembers removes every membership of a chat.
func (r *ChatRepo) DeleteMembers(ctx context.Context, chatID int) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM users_chats WHERE chat_id=?`), chatID)
	return err
}

// ListMembers returns the users of a chat in joining order.
func (r *ChatRepo) ListMembers(ctx context.Context, chatID int) ([]models.User, error) {
	users := []models.User{}
	err := sqlx.SelectContext(ctx, r.db, &users, r.db.Rebind(`SELECT u.id, u.username, u.email, u.hashed_password, u.full_name, u.profile_pic_url, u.is_active, u.created_at, u.updated_at
        FROM users u
        JOIN users_chats uc ON uc.user_id = u.id
        WHERE uc.chat_id=?
        ORDER BY uc.id`), chatID)
	return users, err
}

// ListMemberships returns the membership rows of a chat in joining order.
func (r *ChatRepo) ListMemberships(ctx context.Context, chatID int) ([]models.Membership, error) {
	memberships := []models.Membership{}
	err := sqlx.SelectContext(ctx, r.db, &memberships, r.db.Rebind(`SELECT id, user_id, chat_id, is_admin, joined_at FROM users_chats
        WHERE chat_id=? ORDER BY id`), chatID)
	return memberships, err
}

// ListChatIDsForUser pages through the chats of a user in membership order.
func (r *ChatRepo) ListChatIDsForUser(ctx context.Context, userID int, skip, limit int) ([]int, error) {
	ids := []int{}
	err := sqlx.SelectContext(ctx, r.db, &ids, r.db.Rebind(`SELECT chat_id FROM users_chats WHERE user_id=?
        ORDER BY id, chat_id LIMIT ? OFFSET ?`), userID, limit, skip)
	return ids, err
}

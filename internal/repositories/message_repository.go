package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

const messageColumns = `id, chat_id, sender_id, content, is_read, created_at, updated_at`

// MessageRepository defines interactions for chat messages and read receipts.
type MessageRepository interface {
	Create(ctx context.Context, msg models.Message) (models.Message, error)
	Get(ctx context.Context, messageID int) (models.Message, error)
	GetForUpdate(ctx context.Context, messageID int) (models.Message, error)
	ListByChat(ctx context.Context, chatID int, skip, limit int) ([]models.MessageDetail, error)
	Latest(ctx context.Context, chatID int) (*models.Message, error)
	UpdateContent(ctx context.Context, messageID int, content string) (models.Message, error)
	Delete(ctx context.Context, messageID int) error
	DeleteByChat(ctx context.Context, chatID int) error
	AddReadReceipt(ctx context.Context, messageID int, userID int) (bool, error)
	SetRead(ctx context.Context, messageID int) error
	UnreadCounts(ctx context.Context, userID int) (map[int]int, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db sqlx.ExtContext
}

// NewMessageRepo constructs MessageRepo on a database or transaction handle.
func NewMessageRepo(db sqlx.ExtContext) *MessageRepo {
	return &MessageRepo{db: db}
}

// Create stores an unread message.
func (r *MessageRepo) Create(ctx context.Context, msg models.Message) (models.Message, error) {
	msg.IsRead = false
	msg.CreatedAt = now()
	msg.UpdatedAt = nil
	err := r.db.QueryRowxContext(ctx, r.db.Rebind(`INSERT INTO messages (chat_id, sender_id, content, is_read, created_at) VALUES (?, ?, ?, ?, ?) RETURNING id`),
		msg.ChatID, msg.SenderID, msg.Content, msg.IsRead, msg.CreatedAt).Scan(&msg.ID)
	if err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// Get retrieves a single message.
func (r *MessageRepo) Get(ctx context.Context, messageID int) (models.Message, error) {
	return r.get(ctx, messageID, "")
}

// GetForUpdate retrieves a message and locks it for the rest of the transaction.
func (r *MessageRepo) GetForUpdate(ctx context.Context, messageID int) (models.Message, error) {
	return r.get(ctx, messageID, lockClause(r.db, "UPDATE"))
}

func (r *MessageRepo) get(ctx context.Context, messageID int, lock string) (models.Message, error) {
	var msg models.Message
	err := sqlx.GetContext(ctx, r.db, &msg, r.db.Rebind(`SELECT `+messageColumns+` FROM messages WHERE id=?`+lock), messageID)
	if err != nil {
		return models.Message{}, notFound(err, ErrMessageNotFound)
	}
	return msg, nil
}

// ListByChat returns chat messages newest first along with the sender's username.
func (r *MessageRepo) ListByChat(ctx context.Context, chatID int, skip, limit int) ([]models.MessageDetail, error) {
	query := `SELECT m.id, m.chat_id, m.sender_id, m.content, m.is_read, m.created_at, m.updated_at, u.username AS sender_username
        FROM messages m
        JOIN users u ON u.id = m.sender_id
        WHERE m.chat_id=?
        ORDER BY m.created_at DESC, m.id DESC
        LIMIT ? OFFSET ?`
	msgs := []models.MessageDetail{}
	err := sqlx.SelectContext(ctx, r.db, &msgs, r.db.Rebind(query), chatID, limit, skip)
	return msgs, err
}

// Latest returns the most recently created message of a chat, or nil when it has none.
func (r *MessageRepo) Latest(ctx context.Context, chatID int) (*models.Message, error) {
	var msg models.Message
	err := sqlx.GetContext(ctx, r.db, &msg, r.db.Rebind(`SELECT `+messageColumns+` FROM messages WHERE chat_id=?
        ORDER BY created_at DESC, id DESC LIMIT 1`), chatID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

// UpdateContent replaces the content of a message.
func (r *MessageRepo) UpdateContent(ctx context.Context, messageID int, content string) (models.Message, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE messages SET content=?, updated_at=? WHERE id=?`), content, now(), messageID)
	if err != nil {
		return models.Message{}, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return models.Message{}, err
	}
	if count == 0 {
		return models.Message{}, ErrMessageNotFound
	}
	return r.Get(ctx, messageID)
}

// Delete removes a message and its read receipts.
func (r *MessageRepo) Delete(ctx context.Context, messageID int) error {
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM message_reads WHERE message_id=?`), messageID); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM messages WHERE id=?`), messageID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// DeleteByChat removes every message of a chat together with their receipts.
func (r *MessageRepo) DeleteByChat(ctx context.Context, chatID int) error {
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM message_reads WHERE message_id IN (SELECT id FROM messages WHERE chat_id=?)`), chatID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM messages WHERE chat_id=?`), chatID)
	return err
}

// AddReadReceipt records that userID read the message. It reports false when the
// receipt already existed.
func (r *MessageRepo) AddReadReceipt(ctx context.Context, messageID int, userID int) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`INSERT INTO message_reads (message_id, user_id, read_at) VALUES (?, ?, ?)
        ON CONFLICT (message_id, user_id) DO NOTHING`), messageID, userID, now())
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// SetRead flips the message-level read flag.
func (r *MessageRepo) SetRead(ctx context.Context, messageID int) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE messages SET is_read=? WHERE id=? AND is_read=?`), true, messageID, false)
	return err
}

// UnreadCounts counts, for every chat of the user, the messages sent by others
// that the user has not read. Chats without unread messages map to 0.
func (r *MessageRepo) UnreadCounts(ctx context.Context, userID int) (map[int]int, error) {
	query := `SELECT uc.chat_id AS chat_id, COUNT(m.id) AS unread
        FROM users_chats uc
        LEFT JOIN messages m ON m.chat_id = uc.chat_id
            AND m.sender_id <> uc.user_id
            AND NOT EXISTS (SELECT 1 FROM message_reads mr WHERE mr.message_id = m.id AND mr.user_id = uc.user_id)
        WHERE uc.user_id=?
        GROUP BY uc.chat_id`
	rows, err := r.db.QueryxContext(ctx, r.db.Rebind(query), userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var chatID, unread int
		if err := rows.Scan(&chatID, &unread); err != nil {
			return nil, err
		}
		counts[chatID] = unread
	}
	return counts, rows.Err()
}

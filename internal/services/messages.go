package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

// MessageService enforces message authorship and membership rules.
type MessageService struct {
	store  repositories.Store
	logger *zap.Logger
}

// NewMessageService constructs a MessageService.
func NewMessageService(store repositories.Store, logger *zap.Logger) *MessageService {
	return &MessageService{store: store, logger: logger}
}

// CreateMessage posts content to a chat the sender belongs to.
func (s *MessageService) CreateMessage(ctx context.Context, senderID, chatID int, content string) (models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return models.Message{}, badRequest(msgEmptyContent)
	}

	var msg models.Message
	err := s.store.WithinTx(ctx, func(tx repositories.Repositories) error {
		_, err := tx.Chats().GetForShare(ctx, chatID)
		if errors.Is(err, repositories.ErrChatNotFound) {
			return notFound(msgChatNotFound)
		}
		if err != nil {
			return err
		}
		if err := requireMember(ctx, tx, chatID, senderID); err != nil {
			return err
		}
		msg, err = tx.Messages().Create(ctx, models.Message{ChatID: chatID, SenderID: senderID, Content: content})
		return err
	})
	return msg, err
}

// ListChatMessages returns a page of chat messages, newest first.
func (s *MessageService) ListChatMessages(ctx context.Context, chatID, requesterID, skip, limit int) ([]models.MessageDetail, error) {
	var msgs []models.MessageDetail
	err := s.store.WithinTx(ctx, func(tx repositories.Repositories) error {
		if err := requireMember(ctx, tx, chatID, requesterID); err != nil {
			return err
		}
		var err error
		msgs, err = tx.Messages().ListByChat(ctx, chatID, skip, limit)
		return err
	})
	return msgs, err
}

// UpdateMessage replaces the content of a message. Only its sender may do it.
func (s *MessageService) UpdateMessage(ctx context.Context, messageID, requesterID int, content string) (models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return models.Message{}, badRequest(msgEmptyContent)
	}

	var msg models.Message
	err := s.store.WithinTx(ctx, func(tx repositories.Repositories) error {
		current, err := lockMessage(ctx, tx, messageID)
		if err != nil {
			return err
		}
		if current.SenderID != requesterID {
			return forbidden(msgForeignUpdate)
		}
		msg, err = tx.Messages().UpdateContent(ctx, messageID, content)
		return err
	})
	return msg, err
}

// DeleteMessage removes a message. Only its sender may do it; the deleted
// message is returned.
func (s *MessageService) DeleteMessage(ctx context.Context, messageID, requesterID int) (models.Message, error) {
	var msg models.Message
	err := s.store.WithinTx(ctx, func(tx repositories.Repositories) error {
		var err error
		msg, err = lockMessage(ctx, tx, messageID)
		if err != nil {
			return err
		}
		if msg.SenderID != requesterID {
			return forbidden(msgForeignDelete)
		}
		return tx.Messages().Delete(ctx, messageID)
	})
	if err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// MarkRead records that requesterID read the message. Any member of the chat
// may do it and repeating it changes nothing.
func (s *MessageService) MarkRead(ctx context.Context, messageID, requesterID int) (models.Message, error) {
	var msg models.Message
	err := s.store.WithinTx(ctx, func(tx repositories.Repositories) error {
		current, err := lockMessage(ctx, tx, messageID)
		if err != nil {
			return err
		}
		if err := requireMember(ctx, tx, current.ChatID, requesterID); err != nil {
			return err
		}
		if _, err := tx.Messages().AddReadReceipt(ctx, messageID, requesterID); err != nil {
			return err
		}
		if current.SenderID != requesterID && !current.IsRead {
			if err := tx.Messages().SetRead(ctx, messageID); err != nil {
				return err
			}
		}
		msg, err = tx.Messages().Get(ctx, messageID)
		return err
	})
	return msg, err
}

// UnreadCounts maps every chat of userID to the number of messages from other
// members that userID has not read yet.
func (s *MessageService) UnreadCounts(ctx context.Context, userID int) (map[int]int, error) {
	return s.store.Messages().UnreadCounts(ctx, userID)
}

func lockMessage(ctx context.Context, tx repositories.Repositories, messageID int) (models.Message, error) {
	msg, err := tx.Messages().GetForUpdate(ctx, messageID)
	if errors.Is(err, repositories.ErrMessageNotFound) {
		return models.Message{}, notFound(msgMessageNotFound)
	}
	return msg, err
}

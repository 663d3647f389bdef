package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

// CreateChatInput describes a chat to create.
type CreateChatInput struct {
	Name    *string
	IsGroup bool
	UserIDs []int
}

// ChatService enforces chat membership and admin rules.
type ChatService struct {
	store  repositories.Store
	logger *zap.Logger
}

// NewChatService constructs a ChatService.
func NewChatService(store repositories.Store, logger *zap.Logger) *ChatService {
	return &ChatService{store: store, logger: logger}
}

// CreateChat creates a chat whose creator is always an admin member. Every
// requested member must exist; nothing is written otherwise.
func (s *ChatService) CreateChat(ctx context.Context, creatorID int, input CreateChatInput) (models.Chat, error) {
	memberIDs := uniqueIDs(append([]int{creatorID}, input.UserIDs...))
	if len(memberIDs) < 2 {
		return models.Chat{}, badRequest(msgTooFewMembers)
	}
	name := trimName(input.Name)
	if input.IsGroup && name == nil {
		return models.Chat{}, badRequest(msgGroupNeedsName)
	}

	var chat models.Chat
	err := s.store.WithinTx(ctx, func(tx repositories.Repositories) error {
		count, err := tx.Users().CountExisting(ctx, memberIDs)
		if err != nil {
			return err
		}
		if count != len(memberIDs) {
			return notFound(msgUsersNotFound)
		}

		chat, err = tx.Chats().Create(ctx, models.Chat{Name: name, IsGroup: input.IsGroup})
		if err != nil {
			return err
		}
		for _, userID := range memberIDs {
			if _, err := tx.Chats().AddMember(ctx, models.Membership{
				ChatID:  chat.ID,
				UserID:  userID,
				IsAdmin: userID == creatorID,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.Chat{}, err
	}
	s.logger.Info("chat created", zap.Int("chat_id", chat.ID), zap.Int("creator_id", creatorID), zap.Int("members", len(memberIDs)))
	return chat, nil
}

// GetChatDetail returns a chat with its members and latest message. Membership
// is checked before existence, so non-members never learn whether a chat exists.
func (s *ChatService) GetChatDetail(ctx context.Context, chatID, requesterID int) (models.ChatDetail, error) {
	var detail models.ChatDetail
	err := s.store.WithinTx(ctx, func(tx repositories.Repositories) error {
		if err := requireMember(ctx, tx, chatID, requesterID); err != nil {
			return err
		}
		chat, err := tx.Chats().Get(ctx, chatID)
		if errors.Is(err, repositories.ErrChatNotFound) {
			return notFound(msgChatNotFound)
		}
		if err != nil {
			return err
		}
		detail, err = resolveDetail(ctx, tx, chat)
		return err
	})
	return detail, err
}

// ListUserChats returns the chats of requesterID in membership order.
func (s *ChatService) ListUserChats(ctx context.Context, requesterID, skip, limit int) ([]models.ChatDetail, error) {
	details := []models.ChatDetail{}
	err := s.store.WithinTx(ctx, func(tx repositories.Repositories) error {
		chatIDs, err := tx.Chats().ListChatIDsForUser(ctx, requesterID, skip, limit)
		if err != nil {
			return err
		}
		for _, chatID := range chatIDs {
			chat, err := tx.Chats().Get(ctx, chatID)
			if err != nil {
				return err
			}
			detail, err := resolveDetail(ctx, tx, chat)
			if err != nil {
				return err
			}
			details = append(details, detail)
		}
		return nil
	})
	return details, err
}

// UpdateChat renames a chat. Only admins may do it.
func (s *ChatService) UpdateChat(ctx context.Context, chatID, requesterID int, name *string) (models.Chat, error) {
	var chat models.Chat
	err := s.store.WithinTx(ctx, func(tx repositories.Repositories) error {
		if err := requireAdmin(ctx, tx, chatID, requesterID); err != nil {
			return err
		}
		current, err := lockChat(ctx, tx, chatID)
		if err != nil {
			return err
		}
		if name == nil {
			chat = current
			return nil
		}
		trimmed := trimName(name)
		if current.IsGroup && trimmed == nil {
			return badRequest(msgGroupNeedsName)
		}
		chat, err = tx.Chats().UpdateName(ctx, chatID, trimmed)
		return err
	})
	return chat, err
}

// AddUsers adds userIDs to a group chat. Users that are already members are
// skipped; new members are never admins. It returns the resulting detail and
// the ids that were actually added.
func (s *ChatService) AddUsers(ctx context.Context, chatID, requesterID int, userIDs []int) (models.ChatDetail, []int, error) {
	var (
		detail models.ChatDetail
		added  []int
	)
	err := s.store.WithinTx(ctx, func(tx repositories.Repositories) error {
		if err := requireAdmin(ctx, tx, chatID, requesterID); err != nil {
			return err
		}
		chat, err := lockChat(ctx, tx, chatID)
		if err != nil {
			return err
		}
		if !chat.IsGroup {
			return badRequest(msgIndividualChat)
		}

		ids := uniqueIDs(userIDs)
		count, err := tx.Users().CountExisting(ctx, ids)
		if err != nil {
			return err
		}
		if count != len(ids) {
			return notFound(msgUsersNotFound)
		}

		for _, userID := range ids {
			isMember, err := tx.Chats().IsMember(ctx, chatID, userID)
			if err != nil {
				return err
			}
			if isMember {
				continue
			}
			if _, err := tx.Chats().AddMember(ctx, models.Membership{ChatID: chatID, UserID: userID}); err != nil {
				return err
			}
			added = append(added, userID)
		}

		detail, err = resolveDetail(ctx, tx, chat)
		return err
	})
	if err != nil {
		return models.ChatDetail{}, nil, err
	}
	return detail, added, nil
}

// RemoveUser removes targetID from a chat. Members may always remove
// themselves; removing others requires admin rights. When one member or fewer
// remain, the chat is deleted together with its messages.
func (s *ChatService) RemoveUser(ctx context.Context, chatID, requesterID, targetID int) (models.RemovalOutcome, error) {
	var outcome models.RemovalOutcome
	err := s.store.WithinTx(ctx, func(tx repositories.Repositories) error {
		if requesterID != targetID {
			if err := requireAdmin(ctx, tx, chatID, requesterID); err != nil {
				return err
			}
		}
		// a missing chat has no membership row, so it reports the same reason
		_, err := tx.Chats().GetForUpdate(ctx, chatID)
		if errors.Is(err, repositories.ErrChatNotFound) {
			return notFound(msgUserNotInChat)
		}
		if err != nil {
			return err
		}

		err = tx.Chats().RemoveMember(ctx, chatID, targetID)
		if errors.Is(err, repositories.ErrMembershipNotFound) {
			return notFound(msgUserNotInChat)
		}
		if err != nil {
			return err
		}

		remaining, err := tx.Chats().CountMembers(ctx, chatID)
		if err != nil {
			return err
		}
		if remaining > 1 {
			outcome = models.MembershipRemoved
			return nil
		}

		if err := tx.Messages().DeleteByChat(ctx, chatID); err != nil {
			return err
		}
		if err := tx.Chats().DeleteMembers(ctx, chatID); err != nil {
			return err
		}
		if err := tx.Chats().Delete(ctx, chatID); err != nil {
			return err
		}
		outcome = models.ChatDeleted
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("chat member removed",
		zap.Int("chat_id", chatID),
		zap.Int("user_id", targetID),
		zap.Stringer("outcome", outcome))
	return outcome, nil
}

// IsMember reports whether userID currently belongs to chatID.
func (s *ChatService) IsMember(ctx context.Context, chatID, userID int) (bool, error) {
	return s.store.Chats().IsMember(ctx, chatID, userID)
}

func requireMember(ctx context.Context, tx repositories.Repositories, chatID, userID int) error {
	isMember, err := tx.Chats().IsMember(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if !isMember {
		return forbidden(msgNotMember)
	}
	return nil
}

func requireAdmin(ctx context.Context, tx repositories.Repositories, chatID, userID int) error {
	isAdmin, err := tx.Chats().IsAdmin(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if !isAdmin {
		return forbidden(msgNotAdmin)
	}
	return nil
}

func lockChat(ctx context.Context, tx repositories.Repositories, chatID int) (models.Chat, error) {
	chat, err := tx.Chats().GetForUpdate(ctx, chatID)
	if errors.Is(err, repositories.ErrChatNotFound) {
		return models.Chat{}, notFound(msgChatNotFound)
	}
	return chat, err
}

func resolveDetail(ctx context.Context, tx repositories.Repositories, chat models.Chat) (models.ChatDetail, error) {
	members, err := tx.Chats().ListMembers(ctx, chat.ID)
	if err != nil {
		return models.ChatDetail{}, err
	}
	last, err := tx.Messages().Latest(ctx, chat.ID)
	if err != nil {
		return models.ChatDetail{}, err
	}
	return models.ChatDetail{Chat: chat, Users: members, LastMessage: last}, nil
}

func uniqueIDs(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func trimName(name *string) *string {
	if name == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*name)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"messaging-service/internal/models"
	"messaging-service/internal/services"
)

type UsersMock struct {
	mock.Mock
}

func (m *UsersMock) UserIDFromToken(token string) (int, error) {
	args := m.Called(token)
	return args.Int(0), args.Error(1)
}

func (m *UsersMock) Authenticate(ctx context.Context, token string) (models.User, error) {
	args := m.Called(ctx, token)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UsersMock) Register(ctx context.Context, input services.RegisterInput) (models.User, error) {
	args := m.Called(ctx, input)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UsersMock) Login(ctx context.Context, username, password, clientIP string) (services.LoginResult, error) {
	args := m.Called(ctx, username, password, clientIP)
	var result services.LoginResult
	if val := args.Get(0); val != nil {
		result = val.(services.LoginResult)
	}
	return result, args.Error(1)
}

func (m *UsersMock) Get(ctx context.Context, userID int) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UsersMock) List(ctx context.Context, skip, limit int) ([]models.User, error) {
	args := m.Called(ctx, skip, limit)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

func (m *UsersMock) UpdateSelf(ctx context.Context, userID int, update models.UserUpdate) (models.User, error) {
	args := m.Called(ctx, userID, update)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UsersMock) Deactivate(ctx context.Context, userID int) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

type AllowListMock struct {
	mock.Mock
}

func (m *AllowListMock) IsAddressAuthorized(ctx context.Context, userID int, address string) (bool, error) {
	args := m.Called(ctx, userID, address)
	return args.Bool(0), args.Error(1)
}

func (m *AllowListMock) ListAuthorizedIPs(ctx context.Context, userID int) ([]models.AuthorizedIP, error) {
	args := m.Called(ctx, userID)
	var list []models.AuthorizedIP
	if val := args.Get(0); val != nil {
		list = val.([]models.AuthorizedIP)
	}
	return list, args.Error(1)
}

func (m *AllowListMock) AddAuthorizedIP(ctx context.Context, userID int, address string, description *string) (models.AuthorizedIP, models.RegisterOutcome, error) {
	args := m.Called(ctx, userID, address, description)
	var entry models.AuthorizedIP
	if val := args.Get(0); val != nil {
		entry = val.(models.AuthorizedIP)
	}
	var outcome models.RegisterOutcome
	if val := args.Get(1); val != nil {
		outcome = val.(models.RegisterOutcome)
	}
	return entry, outcome, args.Error(2)
}

func (m *AllowListMock) RemoveAuthorizedIP(ctx context.Context, userID int, address, currentAddress string) error {
	args := m.Called(ctx, userID, address, currentAddress)
	return args.Error(0)
}

type ChatsMock struct {
	mock.Mock
}

func (m *ChatsMock) CreateChat(ctx context.Context, creatorID int, input services.CreateChatInput) (models.Chat, error) {
	args := m.Called(ctx, creatorID, input)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatsMock) GetChatDetail(ctx context.Context, chatID, requesterID int) (models.ChatDetail, error) {
	args := m.Called(ctx, chatID, requesterID)
	var detail models.ChatDetail
	if val := args.Get(0); val != nil {
		detail = val.(models.ChatDetail)
	}
	return detail, args.Error(1)
}

func (m *ChatsMock) ListUserChats(ctx context.Context, requesterID, skip, limit int) ([]models.ChatDetail, error) {
	args := m.Called(ctx, requesterID, skip, limit)
	var list []models.ChatDetail
	if val := args.Get(0); val != nil {
		list = val.([]models.ChatDetail)
	}
	return list, args.Error(1)
}

func (m *ChatsMock) UpdateChat(ctx context.Context, chatID, requesterID int, name *string) (models.Chat, error) {
	args := m.Called(ctx, chatID, requesterID, name)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatsMock) AddUsers(ctx context.Context, chatID, requesterID int, userIDs []int) (models.ChatDetail, []int, error) {
	args := m.Called(ctx, chatID, requesterID, userIDs)
	var detail models.ChatDetail
	if val := args.Get(0); val != nil {
		detail = val.(models.ChatDetail)
	}
	var added []int
	if val := args.Get(1); val != nil {
		added = val.([]int)
	}
	return detail, added, args.Error(2)
}

func (m *ChatsMock) RemoveUser(ctx context.Context, chatID, requesterID, targetID int) (models.RemovalOutcome, error) {
	args := m.Called(ctx, chatID, requesterID, targetID)
	var outcome models.RemovalOutcome
	if val := args.Get(0); val != nil {
		outcome = val.(models.RemovalOutcome)
	}
	return outcome, args.Error(1)
}

func (m *ChatsMock) IsMember(ctx context.Context, chatID, userID int) (bool, error) {
	args := m.Called(ctx, chatID, userID)
	return args.Bool(0), args.Error(1)
}

type MessagesMock struct {
	mock.Mock
}

func (m *MessagesMock) CreateMessage(ctx context.Context, senderID, chatID int, content string) (models.Message, error) {
	args := m.Called(ctx, senderID, chatID, content)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessagesMock) ListChatMessages(ctx context.Context, chatID, requesterID, skip, limit int) ([]models.MessageDetail, error) {
	args := m.Called(ctx, chatID, requesterID, skip, limit)
	var list []models.MessageDetail
	if val := args.Get(0); val != nil {
		list = val.([]models.MessageDetail)
	}
	return list, args.Error(1)
}

func (m *MessagesMock) UpdateMessage(ctx context.Context, messageID, requesterID int, content string) (models.Message, error) {
	args := m.Called(ctx, messageID, requesterID, content)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessagesMock) DeleteMessage(ctx context.Context, messageID, requesterID int) (models.Message, error) {
	args := m.Called(ctx, messageID, requesterID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessagesMock) MarkRead(ctx context.Context, messageID, requesterID int) (models.Message, error) {
	args := m.Called(ctx, messageID, requesterID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessagesMock) UnreadCounts(ctx context.Context, userID int) (map[int]int, error) {
	args := m.Called(ctx, userID)
	var counts map[int]int
	if val := args.Get(0); val != nil {
		counts = val.(map[int]int)
	}
	return counts, args.Error(1)
}

var (
	_ services.Users     = (*UsersMock)(nil)
	_ services.AllowList = (*AllowListMock)(nil)
	_ services.Chats     = (*ChatsMock)(nil)
	_ services.Messages  = (*MessagesMock)(nil)
)

package services

import (
	"context"

	"messaging-service/internal/models"
)

// TokenResolver maps a bearer token to the user id it was issued for.
type TokenResolver interface {
	UserIDFromToken(token string) (int, error)
}

// Authenticator resolves a bearer token to an active user.
type Authenticator interface {
	TokenResolver
	Authenticate(ctx context.Context, token string) (models.User, error)
}

// Users is the account surface consumed by handlers.
type Users interface {
	Authenticator
	Register(ctx context.Context, input RegisterInput) (models.User, error)
	Login(ctx context.Context, username, password, clientIP string) (LoginResult, error)
	Get(ctx context.Context, userID int) (models.User, error)
	List(ctx context.Context, skip, limit int) ([]models.User, error)
	UpdateSelf(ctx context.Context, userID int, update models.UserUpdate) (models.User, error)
	Deactivate(ctx context.Context, userID int) (models.User, error)
}

// AddressAuthorizer decides whether a user may act from an address.
type AddressAuthorizer interface {
	IsAddressAuthorized(ctx context.Context, userID int, address string) (bool, error)
}

// AllowList is the allow-list surface consumed by handlers and middleware.
type AllowList interface {
	AddressAuthorizer
	ListAuthorizedIPs(ctx context.Context, userID int) ([]models.AuthorizedIP, error)
	AddAuthorizedIP(ctx context.Context, userID int, address string, description *string) (models.AuthorizedIP, models.RegisterOutcome, error)
	RemoveAuthorizedIP(ctx context.Context, userID int, address, currentAddress string) error
}

// Chats is the chat surface consumed by handlers and websockets.
type Chats interface {
	CreateChat(ctx context.Context, creatorID int, input CreateChatInput) (models.Chat, error)
	GetChatDetail(ctx context.Context, chatID, requesterID int) (models.ChatDetail, error)
	ListUserChats(ctx context.Context, requesterID, skip, limit int) ([]models.ChatDetail, error)
	UpdateChat(ctx context.Context, chatID, requesterID int, name *string) (models.Chat, error)
	AddUsers(ctx context.Context, chatID, requesterID int, userIDs []int) (models.ChatDetail, []int, error)
	RemoveUser(ctx context.Context, chatID, requesterID, targetID int) (models.RemovalOutcome, error)
	IsMember(ctx context.Context, chatID, userID int) (bool, error)
}

// Messages is the message surface consumed by handlers.
type Messages interface {
	CreateMessage(ctx context.Context, senderID, chatID int, content string) (models.Message, error)
	ListChatMessages(ctx context.Context, chatID, requesterID, skip, limit int) ([]models.MessageDetail, error)
	UpdateMessage(ctx context.Context, messageID, requesterID int, content string) (models.Message, error)
	DeleteMessage(ctx context.Context, messageID, requesterID int) (models.Message, error)
	MarkRead(ctx context.Context, messageID, requesterID int) (models.Message, error)
	UnreadCounts(ctx context.Context, userID int) (map[int]int, error)
}

var (
	_ Users     = (*UserService)(nil)
	_ AllowList = (*AccessGuard)(nil)
	_ Chats     = (*ChatService)(nil)
	_ Messages  = (*MessageService)(nil)
)

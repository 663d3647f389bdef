package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"messaging-service/internal/auth"
	"messaging-service/internal/db"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

type testEnv struct {
	store    *repositories.SQLStore
	guard    *AccessGuard
	users    *UserService
	chats    *ChatService
	messages *MessageService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	conn, err := db.Connect("sqlite3", ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	logger := zap.NewNop()
	store := repositories.NewSQLStore(conn)
	guard := NewAccessGuard(store, logger)
	return &testEnv{
		store:    store,
		guard:    guard,
		users:    NewUserService(store, auth.NewBcryptHasher(bcrypt.MinCost), auth.NewJWTService("test-secret"), guard, time.Minute, logger),
		chats:    NewChatService(store, logger),
		messages: NewMessageService(store, logger),
	}
}

func (e *testEnv) register(t *testing.T, username string) models.User {
	t.Helper()
	user, err := e.users.Register(context.Background(), RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "password123",
	})
	require.NoError(t, err)
	return user
}

func strPtr(s string) *string {
	return &s
}

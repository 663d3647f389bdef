package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/models"
)

func TestRegisterRejectsDuplicates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "alice")

	_, err := env.users.Register(ctx, RegisterInput{Username: "alice", Email: "new@example.com", Password: "password123"})
	assert.ErrorIs(t, err, ErrBadRequest)
	assert.Equal(t, "Username already registered", Detail(err))

	_, err = env.users.Register(ctx, RegisterInput{Username: "other", Email: "alice@example.com", Password: "password123"})
	assert.ErrorIs(t, err, ErrBadRequest)
	assert.Equal(t, "Email already registered", Detail(err))
}

func TestLoginIssuesTokenAndRegistersAddress(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")

	result, err := env.users.Login(ctx, "alice", "password123", "203.0.113.7")
	require.NoError(t, err)
	assert.NotEmpty(t, result.AccessToken)
	assert.Equal(t, models.IPCreated, result.IPOutcome)

	list, err := env.guard.ListAuthorizedIPs(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "203.0.113.7", list[0].IPAddress)
	assert.Equal(t, LoginIPDescription, *list[0].Description)

	again, err := env.users.Login(ctx, "alice", "password123", "203.0.113.7")
	require.NoError(t, err)
	assert.Equal(t, models.IPAlreadyActive, again.IPOutcome)

	user, err := env.users.Authenticate(ctx, result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, user.ID)
}

func TestLoginFailuresAreUndifferentiated(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")

	_, err := env.users.Login(ctx, "alice", "wrong-password", "203.0.113.7")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	wrongPassword := Detail(err)

	_, err = env.users.Login(ctx, "nobody", "password123", "203.0.113.7")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, wrongPassword, Detail(err))

	_, err = env.users.Deactivate(ctx, alice.ID)
	require.NoError(t, err)
	_, err = env.users.Login(ctx, "alice", "password123", "203.0.113.7")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	list, err := env.guard.ListAuthorizedIPs(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAuthenticateRejectsInactiveAndBogusTokens(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")

	result, err := env.users.Login(ctx, "alice", "password123", "127.0.0.1")
	require.NoError(t, err)

	_, err = env.users.Authenticate(ctx, "bogus")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = env.users.Deactivate(ctx, alice.ID)
	require.NoError(t, err)
	_, err = env.users.Authenticate(ctx, result.AccessToken)
	assert.ErrorIs(t, err, ErrBadRequest)
	assert.Equal(t, "Inactive user", Detail(err))
}

func TestUpdateSelf(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	env.register(t, "bob")

	_, err := env.users.UpdateSelf(ctx, alice.ID, models.UserUpdate{Username: strPtr("bob")})
	assert.ErrorIs(t, err, ErrBadRequest)

	_, err = env.users.UpdateSelf(ctx, alice.ID, models.UserUpdate{Email: strPtr("bob@example.com")})
	assert.ErrorIs(t, err, ErrBadRequest)

	updated, err := env.users.UpdateSelf(ctx, alice.ID, models.UserUpdate{
		Username: strPtr("alice"),
		FullName: strPtr("Alice Liddell"),
		Password: strPtr("new-password"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice Liddell", *updated.FullName)

	_, err = env.users.Login(ctx, "alice", "new-password", "127.0.0.1")
	assert.NoError(t, err)
}

func TestGetUserNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.users.Get(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "User not found", Detail(err))
}

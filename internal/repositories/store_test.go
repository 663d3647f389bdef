package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/db"
	"messaging-service/internal/models"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	conn, err := db.Connect("sqlite3", ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewSQLStore(conn)
}

func createUser(t *testing.T, store *SQLStore, username string) models.User {
	t.Helper()
	user, err := store.Users().Create(context.Background(), models.User{
		Username:       username,
		Email:          username + "@example.com",
		HashedPassword: "digest",
	})
	require.NoError(t, err)
	return user
}

func TestUserRepoCreateAndLookup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	alice := createUser(t, store, "alice")
	assert.NotZero(t, alice.ID)
	assert.True(t, alice.IsActive)

	byName, err := store.Users().GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byName.ID)

	byEmail, err := store.Users().GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byEmail.ID)

	_, err = store.Users().GetByID(ctx, 999)
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = store.Users().Create(ctx, models.User{Username: "alice", Email: "other@example.com", HashedPassword: "x"})
	assert.ErrorIs(t, err, ErrUserConflict)
}

func TestUserRepoUpdateAndCount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	alice := createUser(t, store, "alice")
	bob := createUser(t, store, "bob")

	alice.IsActive = false
	updated, err := store.Users().Update(ctx, alice)
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.NotNil(t, updated.UpdatedAt)

	bob.Username = "alice"
	_, err = store.Users().Update(ctx, bob)
	assert.ErrorIs(t, err, ErrUserConflict)

	count, err := store.Users().CountExisting(ctx, []int{alice.ID, bob.ID, 42})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	users, err := store.Users().List(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, bob.ID, users[0].ID)
}

func TestChatRepoMembership(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	alice := createUser(t, store, "alice")
	bob := createUser(t, store, "bob")

	name := "team"
	chat, err := store.Chats().Create(ctx, models.Chat{Name: &name, IsGroup: true})
	require.NoError(t, err)

	_, err = store.Chats().AddMember(ctx, models.Membership{ChatID: chat.ID, UserID: alice.ID, IsAdmin: true})
	require.NoError(t, err)
	_, err = store.Chats().AddMember(ctx, models.Membership{ChatID: chat.ID, UserID: bob.ID})
	require.NoError(t, err)

	_, err = store.Chats().AddMember(ctx, models.Membership{ChatID: chat.ID, UserID: bob.ID})
	assert.True(t, isUniqueViolation(err))

	isAdmin, err := store.Chats().IsAdmin(ctx, chat.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, isAdmin)

	isAdmin, err = store.Chats().IsAdmin(ctx, chat.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, isAdmin)

	isMember, err := store.Chats().IsMember(ctx, 999, alice.ID)
	require.NoError(t, err)
	assert.False(t, isMember)

	members, err := store.Chats().ListMembers(ctx, chat.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "alice", members[0].Username)

	require.NoError(t, store.Chats().RemoveMember(ctx, chat.ID, bob.ID))
	assert.ErrorIs(t, store.Chats().RemoveMember(ctx, chat.ID, bob.ID), ErrMembershipNotFound)

	count, err := store.Chats().CountMembers(ctx, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	renamed := "renamed"
	updated, err := store.Chats().UpdateName(ctx, chat.ID, &renamed)
	require.NoError(t, err)
	assert.Equal(t, "renamed", *updated.Name)
	assert.NotNil(t, updated.UpdatedAt)

	_, err = store.Chats().Get(ctx, 999)
	assert.ErrorIs(t, err, ErrChatNotFound)
}

func TestChatRepoListChatIDsForUserPaginates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	alice := createUser(t, store, "alice")
	var ids []int
	for i := 0; i < 3; i++ {
		chat, err := store.Chats().Create(ctx, models.Chat{})
		require.NoError(t, err)
		_, err = store.Chats().AddMember(ctx, models.Membership{ChatID: chat.ID, UserID: alice.ID, IsAdmin: true})
		require.NoError(t, err)
		ids = append(ids, chat.ID)
	}

	page, err := store.Chats().ListChatIDsForUser(ctx, alice.ID, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{ids[1]}, page)

	all, err := store.Chats().ListChatIDsForUser(ctx, alice.ID, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, ids, all)
}

func TestMessageRepoReadReceiptsAndUnreadCounts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	alice := createUser(t, store, "alice")
	bob := createUser(t, store, "bob")
	chat, err := store.Chats().Create(ctx, models.Chat{})
	require.NoError(t, err)
	for _, id := range []int{alice.ID, bob.ID} {
		_, err = store.Chats().AddMember(ctx, models.Membership{ChatID: chat.ID, UserID: id})
		require.NoError(t, err)
	}

	first, err := store.Messages().Create(ctx, models.Message{ChatID: chat.ID, SenderID: bob.ID, Content: "hi"})
	require.NoError(t, err)
	second, err := store.Messages().Create(ctx, models.Message{ChatID: chat.ID, SenderID: bob.ID, Content: "there"})
	require.NoError(t, err)

	counts, err := store.Messages().UnreadCounts(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{chat.ID: 2}, counts)

	counts, err = store.Messages().UnreadCounts(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{chat.ID: 0}, counts)

	inserted, err := store.Messages().AddReadReceipt(ctx, first.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, inserted)
	inserted, err = store.Messages().AddReadReceipt(ctx, first.ID, alice.ID)
	require.NoError(t, err)
	assert.False(t, inserted)

	counts, err = store.Messages().UnreadCounts(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[chat.ID])

	list, err := store.Messages().ListByChat(ctx, chat.ID, 0, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, "bob", list[0].SenderUsername)

	latest, err := store.Messages().Latest(ctx, chat.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.ID, latest.ID)

	require.NoError(t, store.Messages().DeleteByChat(ctx, chat.ID))
	latest, err = store.Messages().Latest(ctx, chat.ID)
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestMessageRepoUpdateAndDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	alice := createUser(t, store, "alice")
	chat, err := store.Chats().Create(ctx, models.Chat{})
	require.NoError(t, err)
	msg, err := store.Messages().Create(ctx, models.Message{ChatID: chat.ID, SenderID: alice.ID, Content: "draft"})
	require.NoError(t, err)

	updated, err := store.Messages().UpdateContent(ctx, msg.ID, "final")
	require.NoError(t, err)
	assert.Equal(t, "final", updated.Content)
	assert.NotNil(t, updated.UpdatedAt)

	require.NoError(t, store.Messages().SetRead(ctx, msg.ID))
	read, err := store.Messages().Get(ctx, msg.ID)
	require.NoError(t, err)
	assert.True(t, read.IsRead)

	require.NoError(t, store.Messages().Delete(ctx, msg.ID))
	_, err = store.Messages().Get(ctx, msg.ID)
	assert.ErrorIs(t, err, ErrMessageNotFound)
	assert.ErrorIs(t, store.Messages().Delete(ctx, msg.ID), ErrMessageNotFound)
}

func TestAuthorizedIPRepoLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	alice := createUser(t, store, "alice")

	desc := "office"
	entry, inserted, err := store.AuthorizedIPs().Insert(ctx, models.AuthorizedIP{UserID: alice.ID, IPAddress: "203.0.113.7", Description: &desc})
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, models.IPActive, entry.Status)

	_, inserted, err = store.AuthorizedIPs().Insert(ctx, models.AuthorizedIP{UserID: alice.ID, IPAddress: "203.0.113.7"})
	require.NoError(t, err)
	assert.False(t, inserted)

	require.NoError(t, store.AuthorizedIPs().TouchLastUsed(ctx, entry.ID))
	active, err := store.AuthorizedIPs().FindActive(ctx, alice.ID, "203.0.113.7")
	require.NoError(t, err)
	assert.NotNil(t, active.LastUsedAt)

	require.NoError(t, store.AuthorizedIPs().Deactivate(ctx, alice.ID, "203.0.113.7"))
	assert.ErrorIs(t, store.AuthorizedIPs().Deactivate(ctx, alice.ID, "203.0.113.7"), ErrAuthorizedIPNotFound)

	_, err = store.AuthorizedIPs().FindActive(ctx, alice.ID, "203.0.113.7")
	assert.ErrorIs(t, err, ErrAuthorizedIPNotFound)

	list, err := store.AuthorizedIPs().ListActive(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	found, err := store.AuthorizedIPs().Find(ctx, alice.ID, "203.0.113.7")
	require.NoError(t, err)
	assert.Equal(t, models.IPInactive, found.Status)

	newDesc := "home"
	reactivated, err := store.AuthorizedIPs().Reactivate(ctx, found.ID, &newDesc)
	require.NoError(t, err)
	assert.True(t, reactivated.IsActive())
	assert.Equal(t, "home", *reactivated.Description)
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithinTx(ctx, func(tx Repositories) error {
		if _, err := tx.Users().Create(ctx, models.User{Username: "ghost", Email: "ghost@example.com", HashedPassword: "x"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = store.Users().GetByUsername(ctx, "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)

	err = store.WithinTx(ctx, func(tx Repositories) error {
		_, err := tx.Users().Create(ctx, models.User{Username: "kept", Email: "kept@example.com", HashedPassword: "x"})
		return err
	})
	require.NoError(t, err)
	_, err = store.Users().GetByUsername(ctx, "kept")
	assert.NoError(t, err)

	assert.NoError(t, store.Ping(ctx))
}

func TestAuthorizedIPTouchSkipsDeactivatedEntry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	alice := createUser(t, store, "alice")

	entry, _, err := store.AuthorizedIPs().Insert(ctx, models.AuthorizedIP{UserID: alice.ID, IPAddress: "203.0.113.9"})
	require.NoError(t, err)
	active, err := store.AuthorizedIPs().FindActive(ctx, alice.ID, "203.0.113.9")
	require.NoError(t, err)
	require.NoError(t, store.AuthorizedIPs().Deactivate(ctx, alice.ID, "203.0.113.9"))

	require.NoError(t, store.AuthorizedIPs().TouchLastUsed(ctx, active.ID))
	found, err := store.AuthorizedIPs().Find(ctx, alice.ID, "203.0.113.9")
	require.NoError(t, err)
	assert.Equal(t, entry.ID, found.ID)
	assert.Equal(t, models.IPInactive, found.Status)
	assert.Nil(t, found.LastUsedAt)
}

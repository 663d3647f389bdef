package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"messaging-service/internal/middleware"
	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/services"
)

func TestHubAddAndRemoveChatClient(t *testing.T) {
	hub := NewHub(zap.NewNop())

	hub.AddChatClient(1, nil, ConnInfo{ConnID: "c1"})
	assert.Equal(t, 1, hub.RoomSize(1))

	hub.RemoveChatClient(1, nil)
	assert.Equal(t, 0, hub.RoomSize(1))
	assert.Empty(t, hub.rooms)
}

func setupWSServer(t *testing.T, users *mocks.UsersMock, guard *mocks.AllowListMock, chats *mocks.ChatsMock) (*Hub, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := NewHub(zap.NewNop())
	handler := NewChatWebSocketHandler(hub, users, guard, chats, zap.NewNop())

	r := gin.New()
	r.Use(middleware.RequestContextMiddleware())
	r.GET("/ws/chats/:chat_id", handler.Handle)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return hub, srv
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func TestChatWebSocketReceivesBroadcast(t *testing.T) {
	users := new(mocks.UsersMock)
	chats := new(mocks.ChatsMock)
	hub, srv := setupWSServer(t, users, new(mocks.AllowListMock), chats)

	users.On("Authenticate", mock.Anything, "tok").Return(models.User{ID: 1, IsActive: true}, nil).Once()
	chats.On("IsMember", mock.Anything, 5, 1).Return(true, nil).Once()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/chats/5?token=tok"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.RoomSize(5) == 1 }, time.Second, 10*time.Millisecond)

	hub.Broadcast(5, models.ChatEvent{Type: models.EventMessage, Message: &models.Message{ID: 9, ChatID: 5, SenderID: 1, Content: "hi"}})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var event models.ChatEvent
	require.NoError(t, json.Unmarshal(payload, &event))
	assert.Equal(t, models.EventMessage, event.Type)
	assert.Equal(t, 5, event.ChatID)
	require.NotNil(t, event.Message)
	assert.Equal(t, "hi", event.Message.Content)

	hub.CloseRoom(5)
	assert.Equal(t, 0, hub.RoomSize(5))
	users.AssertExpectations(t)
	chats.AssertExpectations(t)
}

func TestChatWebSocketRejectsNonMember(t *testing.T) {
	users := new(mocks.UsersMock)
	chats := new(mocks.ChatsMock)
	_, srv := setupWSServer(t, users, new(mocks.AllowListMock), chats)

	users.On("Authenticate", mock.Anything, "tok").Return(models.User{ID: 2, IsActive: true}, nil).Once()
	chats.On("IsMember", mock.Anything, 5, 2).Return(false, nil).Once()

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/chats/5?token=tok"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestChatWebSocketRejectsInvalidToken(t *testing.T) {
	users := new(mocks.UsersMock)
	_, srv := setupWSServer(t, users, new(mocks.AllowListMock), new(mocks.ChatsMock))

	users.On("Authenticate", mock.Anything, "bad").
		Return(models.User{}, &services.Error{Kind: services.ErrInvalidCredentials, Detail: "Could not validate credentials"}).Once()

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/chats/5?token=bad"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestChatWebSocketMissingToken(t *testing.T) {
	_, srv := setupWSServer(t, new(mocks.UsersMock), new(mocks.AllowListMock), new(mocks.ChatsMock))

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/chats/5"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRemovedMemberSocketIsClosed(t *testing.T) {
	users := new(mocks.UsersMock)
	chats := new(mocks.ChatsMock)
	hub, srv := setupWSServer(t, users, new(mocks.AllowListMock), chats)

	users.On("Authenticate", mock.Anything, "tok-removed").Return(models.User{ID: 1, IsActive: true}, nil).Once()
	users.On("Authenticate", mock.Anything, "tok-kept").Return(models.User{ID: 2, IsActive: true}, nil).Once()
	chats.On("IsMember", mock.Anything, 5, 1).Return(true, nil).Once()
	chats.On("IsMember", mock.Anything, 5, 2).Return(true, nil).Once()

	removed, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/chats/5?token=tok-removed"), nil)
	require.NoError(t, err)
	defer removed.Close()
	kept, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/chats/5?token=tok-kept"), nil)
	require.NoError(t, err)
	defer kept.Close()

	require.Eventually(t, func() bool { return hub.RoomSize(5) == 2 }, time.Second, 10*time.Millisecond)

	hub.RemoveUserFromChat(5, 1)
	assert.Equal(t, 1, hub.RoomSize(5))

	hub.Broadcast(5, models.ChatEvent{Type: models.EventMessage, Message: &models.Message{ID: 10, ChatID: 5, SenderID: 2, Content: "after removal"}})

	removed.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = removed.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), err.Error())

	kept.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := kept.ReadMessage()
	require.NoError(t, err)
	var event models.ChatEvent
	require.NoError(t, json.Unmarshal(payload, &event))
	require.NotNil(t, event.Message)
	assert.Equal(t, "after removal", event.Message.Content)
}

func TestRemoveUserFromChatLeavesOtherRooms(t *testing.T) {
	hub := NewHub(zap.NewNop())
	hub.AddChatClient(1, nil, ConnInfo{ConnID: "c1", UserID: 7})
	hub.AddChatClient(2, nil, ConnInfo{ConnID: "c2", UserID: 7})

	hub.RemoveUserFromChat(1, 7)
	assert.Equal(t, 0, hub.RoomSize(1))
	assert.Equal(t, 1, hub.RoomSize(2))
	_, ok := hub.rooms[1]
	assert.False(t, ok)
}

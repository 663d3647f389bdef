package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
)

const (
	wsKind       = "chat"
	wsRoutingKey = "ws_events.chats"
	writeTimeout = 10 * time.Second
)

type client struct {
	conn *websocket.Conn
	info ConnInfo
	mu   sync.Mutex
}

func (cl *client) write(messageType int, payload []byte) error {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.conn == nil {
		return nil
	}
	cl.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return cl.conn.WriteMessage(messageType, payload)
}

// Hub maintains one websocket room per chat.
type Hub struct {
	rooms  map[int]map[*websocket.Conn]*client
	mu     sync.RWMutex
	logger *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:  make(map[int]map[*websocket.Conn]*client),
		logger: logger,
	}
}

// AddChatClient registers a websocket connection to a chat room.
func (h *Hub) AddChatClient(chatID int, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[chatID]; !ok {
		h.rooms[chatID] = make(map[*websocket.Conn]*client)
	}
	h.rooms[chatID][conn] = &client{conn: conn, info: info}
}

// RemoveChatClient removes a chat websocket connection.
func (h *Hub) RemoveChatClient(chatID int, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.rooms[chatID]; ok {
		delete(clients, conn)
		if len(clients) == 0 {
			delete(h.rooms, chatID)
		}
	}
}

// RoomSize returns the number of connections listening on chatID.
func (h *Hub) RoomSize(chatID int) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[chatID])
}

// Broadcast sends event to every client of the chat. Clients that fail to
// receive it are dropped.
func (h *Hub) Broadcast(chatID int, event models.ChatEvent) {
	event.ChatID = chatID
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("marshal chat event", zap.Int("chat_id", chatID), zap.Error(err))
		return
	}

	for _, cl := range h.snapshot(chatID) {
		if err := cl.write(websocket.TextMessage, payload); err != nil {
			h.logger.Warn("websocket write error", zap.Int("chat_id", chatID), zap.String("conn_id", cl.info.ConnID), zap.Error(err))
			cl.conn.Close()
			h.RemoveChatClient(chatID, cl.conn)
			publishWSEvent(context.Background(), "ws_error", chatID, cl.info, err.Error())
		}
	}
	observability.IncWSEvent(wsKind, event.Type)
}

// CloseRoom disconnects every client of the chat, used once the chat is gone.
func (h *Hub) CloseRoom(chatID int) {
	h.mu.Lock()
	clients := h.rooms[chatID]
	delete(h.rooms, chatID)
	h.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "chat deleted")
	for _, cl := range clients {
		if cl.conn == nil {
			continue
		}
		cl.write(websocket.CloseMessage, msg)
		cl.conn.Close()
	}
}

// RemoveUserFromChat disconnects the chat connections opened by userID, used
// once the user is no longer a member.
func (h *Hub) RemoveUserFromChat(chatID, userID int) {
	h.mu.Lock()
	var removed []*client
	if clients, ok := h.rooms[chatID]; ok {
		for conn, cl := range clients {
			if cl.info.UserID == userID {
				removed = append(removed, cl)
				delete(clients, conn)
			}
		}
		if len(clients) == 0 {
			delete(h.rooms, chatID)
		}
	}
	h.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "removed from chat")
	for _, cl := range removed {
		publishWSEvent(context.Background(), "ws_removed", chatID, cl.info, "removed from chat")
		if cl.conn == nil {
			continue
		}
		cl.write(websocket.CloseMessage, msg)
		cl.conn.Close()
	}
}

func (h *Hub) snapshot(chatID int) []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients := make([]*client, 0, len(h.rooms[chatID]))
	for _, cl := range h.rooms[chatID] {
		clients = append(clients, cl)
	}
	return clients
}

func publishWSEvent(ctx context.Context, name string, chatID int, info ConnInfo, reason string) {
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":        wsKind,
			"resource_id": chatID,
			"event":       name,
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}

	_ = observability.PublishEvent(ctx, wsRoutingKey, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: name,
		Payload:   payload,
	}, observability.BuildHeaders(info.RequestID, info.TraceID))
	observability.IncWSEvent(wsKind, name)
}

package ws

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"messaging-service/internal/middleware"
	"messaging-service/internal/observability"
	"messaging-service/internal/services"
)

// MembershipChecker answers whether a user belongs to a chat.
type MembershipChecker interface {
	IsMember(ctx context.Context, chatID, userID int) (bool, error)
}

// ChatWebSocketHandler handles chat websocket connections.
type ChatWebSocketHandler struct {
	hub    *Hub
	users  services.Authenticator
	guard  services.AddressAuthorizer
	chats  MembershipChecker
	logger *zap.Logger
}

// NewChatWebSocketHandler constructs a ChatWebSocketHandler.
func NewChatWebSocketHandler(hub *Hub, users services.Authenticator, guard services.AddressAuthorizer, chats MembershipChecker, logger *zap.Logger) *ChatWebSocketHandler {
	return &ChatWebSocketHandler{hub: hub, users: users, guard: guard, chats: chats, logger: logger}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle authenticates the caller, applies the IP allow-list and the
// membership check, then upgrades the connection and registers the client.
func (h *ChatWebSocketHandler) Handle(c *gin.Context) {
	chatID, err := strconv.Atoi(c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	ctx, span := otel.Tracer("messaging-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	rc := middleware.FromContext(c)
	token := rc.Token
	if token == "" {
		token = c.Query("token")
	}
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	user, err := h.users.Authenticate(ctx, token)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, services.ErrInvalidCredentials):
			status = http.StatusUnauthorized
		case errors.Is(err, services.ErrBadRequest):
			status = http.StatusBadRequest
		default:
			h.logger.Error("websocket authentication failed", zap.String("request_id", rc.RequestID), zap.Error(err))
		}
		c.JSON(status, gin.H{"error": "invalid token"})
		return
	}

	if !services.IsBypassAddress(rc.ClientIP) {
		ok, err := h.guard.IsAddressAuthorized(ctx, user.ID, rc.ClientIP)
		if err != nil {
			h.logger.Error("ip guard check failed, allowing websocket", zap.Int("user_id", user.ID), zap.Error(err))
		} else if !ok {
			observability.IncIPGuardDecision("rejected")
			c.JSON(http.StatusForbidden, gin.H{
				"error":     "IP address not authorized for this user",
				"client_ip": rc.ClientIP,
			})
			return
		}
	}

	member, err := h.chats.IsMember(ctx, chatID, user.ID)
	if err != nil || !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not authorized for chat"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	info := ConnInfo{
		ConnID:      uuid.NewString(),
		UserID:      user.ID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          rc.ClientIP,
		RequestID:   rc.RequestID,
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	h.hub.AddChatClient(chatID, conn, info)

	observability.IncWSActive(wsKind)
	publishWSEvent(ctx, "ws_connect", chatID, info, "")

	// Keep connection alive and clean on close
	go func() {
		var closeReason string
		defer func() {
			h.hub.RemoveChatClient(chatID, conn)
			observability.DecWSActive(wsKind)
			publishWSEvent(context.Background(), "ws_disconnect", chatID, info, closeReason)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				closeReason = err.Error()
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					publishWSEvent(context.Background(), "ws_error", chatID, info, closeReason)
				}
				return
			}
		}
	}()
}

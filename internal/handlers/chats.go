package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"messaging-service/internal/middleware"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/services"
	"messaging-service/internal/telemetry"
)

// Broadcaster pushes chat events to connected websocket clients.
type Broadcaster interface {
	Broadcast(chatID int, event models.ChatEvent)
	CloseRoom(chatID int)
	RemoveUserFromChat(chatID, userID int)
}

// ChatHandler manages chat and membership endpoints.
type ChatHandler struct {
	chats  services.Chats
	hub    Broadcaster
	audit  *telemetry.AuditEmitter
	logger *zap.Logger
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(chats services.Chats, hub Broadcaster, audit *telemetry.AuditEmitter, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{chats: chats, hub: hub, audit: audit, logger: logger}
}

type createChatRequest struct {
	Name    *string `json:"name"`
	IsGroup bool    `json:"is_group"`
	UserIDs []int   `json:"user_ids" binding:"required"`
}

type updateChatRequest struct {
	Name *string `json:"name"`
}

type addUsersRequest struct {
	UserIDs []int `json:"user_ids" binding:"required"`
}

// CreateChat opens a chat with the caller as admin.
func (h *ChatHandler) CreateChat(c *gin.Context) {
	var req createChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	chat, err := h.chats.CreateChat(c.Request.Context(), c.GetInt(middleware.UserIDKey), services.CreateChatInput{
		Name:    req.Name,
		IsGroup: req.IsGroup,
		UserIDs: req.UserIDs,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	observability.IncChatLifecycle("created")
	emitAudit(c, h.audit, "INFO", "chat created", map[string]string{
		"chat_id":  strconv.Itoa(chat.ID),
		"is_group": strconv.FormatBool(chat.IsGroup),
	})
	c.JSON(http.StatusCreated, chat)
}

// ListChats returns the caller's chats with members and latest message.
func (h *ChatHandler) ListChats(c *gin.Context) {
	skip, limit, ok := pagination(c)
	if !ok {
		return
	}
	chats, err := h.chats.ListUserChats(c.Request.Context(), c.GetInt(middleware.UserIDKey), skip, limit)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, chats)
}

// GetChat returns one chat the caller belongs to.
func (h *ChatHandler) GetChat(c *gin.Context) {
	chatID, ok := pathID(c, "chat_id")
	if !ok {
		return
	}
	detail, err := h.chats.GetChatDetail(c.Request.Context(), chatID, c.GetInt(middleware.UserIDKey))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// UpdateChat renames a chat. Admins only.
func (h *ChatHandler) UpdateChat(c *gin.Context) {
	chatID, ok := pathID(c, "chat_id")
	if !ok {
		return
	}
	var req updateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	chat, err := h.chats.UpdateChat(c.Request.Context(), chatID, c.GetInt(middleware.UserIDKey), req.Name)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

// AddUsers adds members to a group chat. Admins only.
func (h *ChatHandler) AddUsers(c *gin.Context) {
	chatID, ok := pathID(c, "chat_id")
	if !ok {
		return
	}
	var req addUsersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	detail, added, err := h.chats.AddUsers(c.Request.Context(), chatID, c.GetInt(middleware.UserIDKey), req.UserIDs)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	for _, userID := range added {
		observability.IncChatLifecycle("member_added")
		emitAudit(c, h.audit, "INFO", "user added to chat", map[string]string{
			"chat_id": strconv.Itoa(chatID),
			"member":  strconv.Itoa(userID),
		})
	}
	c.JSON(http.StatusOK, detail)
}

// RemoveUser removes a member. Dropping a chat to one member deletes it.
func (h *ChatHandler) RemoveUser(c *gin.Context) {
	chatID, ok := pathID(c, "chat_id")
	if !ok {
		return
	}
	targetID, ok := pathID(c, "user_id")
	if !ok {
		return
	}

	outcome, err := h.chats.RemoveUser(c.Request.Context(), chatID, c.GetInt(middleware.UserIDKey), targetID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	fields := map[string]string{
		"chat_id": strconv.Itoa(chatID),
		"member":  strconv.Itoa(targetID),
		"outcome": outcome.String(),
	}
	observability.IncChatLifecycle("member_removed")
	emitAudit(c, h.audit, "INFO", "user removed from chat", fields)

	if outcome == models.ChatDeleted {
		observability.IncChatLifecycle("deleted")
		emitAudit(c, h.audit, "INFO", "chat deleted", fields)
		h.hub.Broadcast(chatID, models.ChatEvent{Type: models.EventChatDeleted, UserID: targetID})
		h.hub.CloseRoom(chatID)
	} else {
		h.hub.RemoveUserFromChat(chatID, targetID)
	}
	c.Status(http.StatusNoContent)
}

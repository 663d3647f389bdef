package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"messaging-service/internal/middleware"
	"messaging-service/internal/models"
	"messaging-service/internal/services"
)

// MessageHandler manages message endpoints and pushes changes to chat rooms.
type MessageHandler struct {
	messages services.Messages
	hub      Broadcaster
	logger   *zap.Logger
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(messages services.Messages, hub Broadcaster, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{messages: messages, hub: hub, logger: logger}
}

type createMessageRequest struct {
	ChatID  int    `json:"chat_id" binding:"required"`
	Content string `json:"content" binding:"required,min=1"`
}

type updateMessageRequest struct {
	Content string `json:"content" binding:"required,min=1"`
}

// CreateMessage stores a message and broadcasts it.
func (h *MessageHandler) CreateMessage(c *gin.Context) {
	var req createMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.messages.CreateMessage(c.Request.Context(), c.GetInt(middleware.UserIDKey), req.ChatID, req.Content)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	h.hub.Broadcast(msg.ChatID, models.ChatEvent{Type: models.EventMessage, Message: &msg})
	c.JSON(http.StatusCreated, msg)
}

// ListChatMessages returns a chat's messages, newest first.
func (h *MessageHandler) ListChatMessages(c *gin.Context) {
	chatID, ok := pathID(c, "chat_id")
	if !ok {
		return
	}
	skip, limit, ok := pagination(c)
	if !ok {
		return
	}

	msgs, err := h.messages.ListChatMessages(c.Request.Context(), chatID, c.GetInt(middleware.UserIDKey), skip, limit)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

// UpdateMessage edits the content of the caller's own message.
func (h *MessageHandler) UpdateMessage(c *gin.Context) {
	messageID, ok := pathID(c, "message_id")
	if !ok {
		return
	}
	var req updateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.messages.UpdateMessage(c.Request.Context(), messageID, c.GetInt(middleware.UserIDKey), req.Content)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	h.hub.Broadcast(msg.ChatID, models.ChatEvent{Type: models.EventMessageUpdated, Message: &msg})
	c.JSON(http.StatusOK, msg)
}

// DeleteMessage removes the caller's own message.
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	messageID, ok := pathID(c, "message_id")
	if !ok {
		return
	}

	msg, err := h.messages.DeleteMessage(c.Request.Context(), messageID, c.GetInt(middleware.UserIDKey))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	h.hub.Broadcast(msg.ChatID, models.ChatEvent{Type: models.EventMessageDeleted, MessageID: msg.ID})
	c.Status(http.StatusNoContent)
}

// MarkRead records that the caller has read a message.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	messageID, ok := pathID(c, "message_id")
	if !ok {
		return
	}

	userID := c.GetInt(middleware.UserIDKey)
	msg, err := h.messages.MarkRead(c.Request.Context(), messageID, userID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	h.hub.Broadcast(msg.ChatID, models.ChatEvent{Type: models.EventMessageRead, MessageID: msg.ID, UserID: userID})
	c.JSON(http.StatusOK, msg)
}

// UnreadCounts returns unread message counts keyed by chat id.
func (h *MessageHandler) UnreadCounts(c *gin.Context) {
	counts, err := h.messages.UnreadCounts(c.Request.Context(), c.GetInt(middleware.UserIDKey))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

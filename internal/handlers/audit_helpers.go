package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"messaging-service/internal/middleware"
	"messaging-service/internal/telemetry"
)

func requestIDFromContext(c *gin.Context) string {
	if id := middleware.FromContext(c).RequestID; id != "" {
		return id
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(middleware.RequestIDKey, requestID)
	return requestID
}

func userIDFromContext(c *gin.Context) *int {
	if userID := c.GetInt(middleware.UserIDKey); userID != 0 {
		return &userID
	}
	return nil
}

func emitAudit(c *gin.Context, emitter *telemetry.AuditEmitter, level, text string, fields map[string]string) {
	emitter.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c), fields)
}

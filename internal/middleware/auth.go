package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"messaging-service/internal/services"
)

// AuthMiddleware validates the bearer token and rejects inactive users.
func AuthMiddleware(users services.Authenticator, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rc := FromContext(c)
		if rc.Token == "" {
			c.Header("WWW-Authenticate", "Bearer")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}

		user, err := users.Authenticate(c.Request.Context(), rc.Token)
		switch {
		case err == nil:
		case errors.Is(err, services.ErrInvalidCredentials):
			c.Header("WWW-Authenticate", "Bearer")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": services.Detail(err)})
			return
		case errors.Is(err, services.ErrBadRequest):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": services.Detail(err)})
			return
		default:
			logger.Error("authentication failed", zap.String("request_id", rc.RequestID), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}

		c.Set(UserIDKey, user.ID)
		c.Set("user", user)
		c.Next()
	}
}

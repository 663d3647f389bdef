package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"messaging-service/internal/observability"
)

const (
	requestContextKey = "request_context"
	// RequestIDKey holds the request id on the gin context.
	RequestIDKey = "request_id"
	// UserIDKey holds the authenticated user id on the gin context.
	UserIDKey = "userID"
)

// RequestContext is the per-request caller information passed to services.
type RequestContext struct {
	ClientIP  string
	Token     string
	RequestID string
	UserID    int
}

// RequestContextMiddleware resolves the client address, bearer token and request id.
func RequestContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := observability.RequestIDFromRequest(c.Request)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		token, _ := BearerToken(c.GetHeader("Authorization"))

		c.Set(RequestIDKey, requestID)
		c.Set(requestContextKey, RequestContext{
			ClientIP:  c.ClientIP(),
			Token:     token,
			RequestID: requestID,
		})
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// FromContext returns the request context, building a partial one when the
// middleware did not run.
func FromContext(c *gin.Context) RequestContext {
	if val, ok := c.Get(requestContextKey); ok {
		if rc, ok := val.(RequestContext); ok {
			rc.UserID = c.GetInt(UserIDKey)
			return rc
		}
	}
	token, _ := BearerToken(c.GetHeader("Authorization"))
	return RequestContext{
		ClientIP:  c.ClientIP(),
		Token:     token,
		RequestID: c.GetString(RequestIDKey),
		UserID:    c.GetInt(UserIDKey),
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

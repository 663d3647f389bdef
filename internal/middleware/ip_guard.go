package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"messaging-service/internal/observability"
	"messaging-service/internal/services"
	"messaging-service/internal/telemetry"
)

// publicRoutes are never subject to the allow-list.
var publicRoutes = map[string]map[string]bool{
	"/":             {http.MethodGet: true},
	"/health":       {http.MethodGet: true},
	"/health/db":    {http.MethodGet: true},
	"/docs":         {http.MethodGet: true},
	"/openapi.json": {http.MethodGet: true},
	"/metrics":      {http.MethodGet: true},
	"/users":        {http.MethodPost: true},
	"/users/token":  {http.MethodPost: true},
}

// IsPublicRoute reports whether method and path bypass the IP guard.
func IsPublicRoute(method, path string) bool {
	return publicRoutes[path][method]
}

// IPGuard rejects requests whose bearer token resolves to a user that has not
// authorized the client address. Requests without a usable token pass through
// untouched and fail authentication later. Guard failures are logged and the
// request is allowed.
func IPGuard(tokens services.TokenResolver, guard services.AddressAuthorizer, audit *telemetry.AuditEmitter, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsPublicRoute(c.Request.Method, c.Request.URL.Path) {
			c.Next()
			return
		}

		rc := FromContext(c)
		if rc.Token == "" {
			c.Next()
			return
		}
		userID, err := tokens.UserIDFromToken(rc.Token)
		if err != nil {
			c.Next()
			return
		}

		if services.IsBypassAddress(rc.ClientIP) {
			observability.IncIPGuardDecision("bypassed")
			c.Next()
			return
		}

		ok, err := guard.IsAddressAuthorized(c.Request.Context(), userID, rc.ClientIP)
		if err != nil {
			observability.IncIPGuardDecision("error")
			logger.Error("ip guard check failed, allowing request",
				zap.String("request_id", rc.RequestID),
				zap.Int("user_id", userID),
				zap.String("client_ip", rc.ClientIP),
				zap.Error(err))
			c.Next()
			return
		}
		if !ok {
			observability.IncIPGuardDecision("rejected")
			logger.Warn("request from unauthorized ip",
				zap.String("request_id", rc.RequestID),
				zap.Int("user_id", userID),
				zap.String("client_ip", rc.ClientIP))
			audit.Emit(c.Request.Context(), "WARN", "IP address not authorized", rc.RequestID, &userID, map[string]string{
				"client_ip": rc.ClientIP,
				"path":      c.Request.URL.Path,
				"user_id":   strconv.Itoa(userID),
			})
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":     "IP address not authorized for this user",
				"client_ip": rc.ClientIP,
			})
			return
		}

		observability.IncIPGuardDecision("allowed")
		c.Next()
	}
}

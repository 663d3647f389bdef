package handlers

import (
	"errors"
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

// UserHandler serves account, login and allow-list endpoints.
type UserHandler struct {
	users  services.Users
	ips    services.AllowList
	audit  *telemetry.AuditEmitter
	logger *zap.Logger
}

// NewUserHandler builds a UserHandler.
func NewUserHandler(users services.Users, ips services.AllowList, audit *telemetry.AuditEmitter, logger *zap.Logger) *UserHandler {
	return &UserHandler{users: users, ips: ips, audit: audit, logger: logger}
}

type registerRequest struct {
	Username      string  `json:"username" binding:"required,min=3,max=50"`
	Email         string  `json:"email" binding:"required,email"`
	Password      string  `json:"password" binding:"required,min=8"`
	FullName      *string `json:"full_name"`
	ProfilePicURL *string `json:"profile_pic_url"`
}

type updateUserRequest struct {
	Username      *string `json:"username" binding:"omitempty,min=3,max=50"`
	Email         *string `json:"email" binding:"omitempty,email"`
	FullName      *string `json:"full_name"`
	ProfilePicURL *string `json:"profile_pic_url"`
	Password      *string `json:"password" binding:"omitempty,min=8"`
}

type loginRequest struct {
	Username string `form:"username" json:"username" binding:"required"`
	Password string `form:"password" json:"password" binding:"required"`
}

type authorizedIPRequest struct {
	IPAddress   string  `json:"ip_address" binding:"required"`
	Description *string `json:"description"`
}

// Register creates an account.
func (h *UserHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Register(c.Request.Context(), services.RegisterInput{
		Username:      req.Username,
		Email:         req.Email,
		Password:      req.Password,
		FullName:      req.FullName,
		ProfilePicURL: req.ProfilePicURL,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// Login exchanges credentials for a bearer token. Both form and JSON bodies are accepted.
func (h *UserHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rc := middleware.FromContext(c)
	result, err := h.users.Login(c.Request.Context(), req.Username, req.Password, rc.ClientIP)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			observability.IncLoginAttempt("failure")
			emitAudit(c, h.audit, "WARN", "login failed", map[string]string{
				"username":  req.Username,
				"client_ip": rc.ClientIP,
			})
		}
		writeError(c, h.logger, err)
		return
	}

	observability.IncLoginAttempt("success")
	userID := result.User.ID
	h.audit.Emit(c.Request.Context(), "INFO", "login succeeded", rc.RequestID, &userID, map[string]string{
		"client_ip":  rc.ClientIP,
		"ip_outcome": result.IPOutcome.String(),
	})
	c.JSON(http.StatusOK, gin.H{"access_token": result.AccessToken, "token_type": "bearer"})
}

// Me returns the authenticated user.
func (h *UserHandler) Me(c *gin.Context) {
	user, err := h.users.Get(c.Request.Context(), c.GetInt(middleware.UserIDKey))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateMe applies a partial update to the authenticated user.
func (h *UserHandler) UpdateMe(c *gin.Context) {
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.UpdateSelf(c.Request.Context(), c.GetInt(middleware.UserIDKey), models.UserUpdate{
		Username:      req.Username,
		Email:         req.Email,
		FullName:      req.FullName,
		ProfilePicURL: req.ProfilePicURL,
		Password:      req.Password,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// DeactivateMe disables the authenticated account.
func (h *UserHandler) DeactivateMe(c *gin.Context) {
	user, err := h.users.Deactivate(c.Request.Context(), c.GetInt(middleware.UserIDKey))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	emitAudit(c, h.audit, "INFO", "user deactivated", nil)
	c.JSON(http.StatusOK, user)
}

// List returns users with skip/limit pagination.
func (h *UserHandler) List(c *gin.Context) {
	skip, limit, ok := pagination(c)
	if !ok {
		return
	}
	users, err := h.users.List(c.Request.Context(), skip, limit)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// Get returns one user by id.
func (h *UserHandler) Get(c *gin.Context) {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}
	user, err := h.users.Get(c.Request.Context(), userID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// ListIPs returns the caller's active allow-list entries.
func (h *UserHandler) ListIPs(c *gin.Context) {
	entries, err := h.ips.ListAuthorizedIPs(c.Request.Context(), c.GetInt(middleware.UserIDKey))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// AddIP authorizes a new address or reactivates a deactivated one.
func (h *UserHandler) AddIP(c *gin.Context) {
	var req authorizedIPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, outcome, err := h.ips.AddAuthorizedIP(c.Request.Context(), c.GetInt(middleware.UserIDKey), req.IPAddress, req.Description)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	emitAudit(c, h.audit, "INFO", "authorized ip added", map[string]string{
		"ip_address": entry.IPAddress,
		"outcome":    outcome.String(),
		"entry_id":   strconv.Itoa(entry.ID),
	})
	c.JSON(http.StatusCreated, entry)
}

// RemoveIP deactivates an allow-list entry other than the one in use.
func (h *UserHandler) RemoveIP(c *gin.Context) {
	rc := middleware.FromContext(c)
	address := c.Param("ip_address")
	if err := h.ips.RemoveAuthorizedIP(c.Request.Context(), rc.UserID, address, rc.ClientIP); err != nil {
		writeError(c, h.logger, err)
		return
	}
	emitAudit(c, h.audit, "INFO", "authorized ip removed", map[string]string{"ip_address": address})
	c.Status(http.StatusNoContent)
}

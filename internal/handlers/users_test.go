package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/services"
)

func setupUserRouter(users *mocks.UsersMock, ips *mocks.AllowListMock, userID int) http.Handler {
	handler := NewUserHandler(users, ips, nil, zap.NewNop())
	r := newTestRouter(userID)
	r.POST("/users", handler.Register)
	r.POST("/users/token", handler.Login)
	r.GET("/users/me", handler.Me)
	r.PUT("/users/me", handler.UpdateMe)
	r.DELETE("/users/me", handler.DeactivateMe)
	r.GET("/users", handler.List)
	r.GET("/users/:user_id", handler.Get)
	r.GET("/users/me/ips", handler.ListIPs)
	r.POST("/users/me/ips", handler.AddIP)
	r.DELETE("/users/me/ips/:ip_address", handler.RemoveIP)
	return r
}

func TestRegisterCreatesUser(t *testing.T) {
	users := new(mocks.UsersMock)
	router := setupUserRouter(users, new(mocks.AllowListMock), 0)

	users.On("Register", mock.Anything, services.RegisterInput{Username: "alice", Email: "alice@example.com", Password: "password1"}).
		Return(models.User{ID: 1, Username: "alice", Email: "alice@example.com", IsActive: true}, nil).Once()

	rec := doJSON(router, http.MethodPost, "/users", map[string]any{
		"username": "alice", "email": "alice@example.com", "password": "password1",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"alice"`)
	assert.NotContains(t, rec.Body.String(), "hashed_password")
	users.AssertExpectations(t)
}

func TestRegisterValidatesInput(t *testing.T) {
	router := setupUserRouter(new(mocks.UsersMock), new(mocks.AllowListMock), 0)

	rec := doJSON(router, http.MethodPost, "/users", map[string]any{
		"username": "al", "email": "not-an-email", "password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	users := new(mocks.UsersMock)
	router := setupUserRouter(users, new(mocks.AllowListMock), 0)

	users.On("Register", mock.Anything, mock.Anything).
		Return(nil, &services.Error{Kind: services.ErrBadRequest, Detail: "Username already registered"}).Once()

	rec := doJSON(router, http.MethodPost, "/users", map[string]any{
		"username": "alice", "email": "alice@example.com", "password": "password1",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Username already registered", decodeError(t, rec))
}

func TestLoginWithFormBody(t *testing.T) {
	users := new(mocks.UsersMock)
	router := setupUserRouter(users, new(mocks.AllowListMock), 0)

	users.On("Login", mock.Anything, "alice", "password1", "203.0.113.7").
		Return(services.LoginResult{AccessToken: "tok", User: models.User{ID: 1}, IPOutcome: models.IPCreated}, nil).Once()

	form := url.Values{"username": {"alice"}, "password": {"password1"}}
	req := httptest.NewRequest(http.MethodPost, "/users/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = "203.0.113.7:5000"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"access_token":"tok","token_type":"bearer"}`, rec.Body.String())
	users.AssertExpectations(t)
}

func TestLoginInvalidCredentials(t *testing.T) {
	users := new(mocks.UsersMock)
	router := setupUserRouter(users, new(mocks.AllowListMock), 0)

	users.On("Login", mock.Anything, "alice", "wrong-pass", "203.0.113.7").
		Return(nil, &services.Error{Kind: services.ErrInvalidCredentials, Detail: "Incorrect username or password"}).Once()

	rec := doJSON(router, http.MethodPost, "/users/token", map[string]any{"username": "alice", "password": "wrong-pass"})

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
	assert.Equal(t, "Incorrect username or password", decodeError(t, rec))
}

func TestGetUserNotFound(t *testing.T) {
	users := new(mocks.UsersMock)
	router := setupUserRouter(users, new(mocks.AllowListMock), 1)

	users.On("Get", mock.Anything, 42).Return(nil, &services.Error{Kind: services.ErrNotFound, Detail: "User not found"}).Once()

	rec := doJSON(router, http.MethodGet, "/users/42", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User not found", decodeError(t, rec))
}

func TestListUsersPagination(t *testing.T) {
	users := new(mocks.UsersMock)
	router := setupUserRouter(users, new(mocks.AllowListMock), 1)

	users.On("List", mock.Anything, 5, 10).Return([]models.User{{ID: 6}}, nil).Once()

	rec := doJSON(router, http.MethodGet, "/users?skip=5&limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	users.AssertExpectations(t)

	rec = doJSON(router, http.MethodGet, "/users?skip=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateMePassesOptionalFields(t *testing.T) {
	users := new(mocks.UsersMock)
	router := setupUserRouter(users, new(mocks.AllowListMock), 1)

	users.On("UpdateSelf", mock.Anything, 1, mock.MatchedBy(func(u models.UserUpdate) bool {
		return u.FullName != nil && *u.FullName == "Alice A" && u.Username == nil && u.Password == nil
	})).Return(models.User{ID: 1, Username: "alice"}, nil).Once()

	rec := doJSON(router, http.MethodPut, "/users/me", map[string]any{"full_name": "Alice A"})
	require.Equal(t, http.StatusOK, rec.Code)
	users.AssertExpectations(t)
}

func TestAddIPAlreadyAuthorized(t *testing.T) {
	ips := new(mocks.AllowListMock)
	router := setupUserRouter(new(mocks.UsersMock), ips, 1)

	ips.On("AddAuthorizedIP", mock.Anything, 1, "198.51.100.4", (*string)(nil)).
		Return(nil, nil, &services.Error{Kind: services.ErrBadRequest, Detail: "IP address already authorized"}).Once()

	rec := doJSON(router, http.MethodPost, "/users/me/ips", map[string]any{"ip_address": "198.51.100.4"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "IP address already authorized", decodeError(t, rec))
}

func TestAddIPCreated(t *testing.T) {
	ips := new(mocks.AllowListMock)
	router := setupUserRouter(new(mocks.UsersMock), ips, 1)

	ips.On("AddAuthorizedIP", mock.Anything, 1, "198.51.100.4", mock.Anything).
		Return(models.AuthorizedIP{ID: 3, UserID: 1, IPAddress: "198.51.100.4", Status: models.IPActive}, models.IPCreated, nil).Once()

	rec := doJSON(router, http.MethodPost, "/users/me/ips", map[string]any{"ip_address": "198.51.100.4", "description": "office"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"active"`)
}

func TestRemoveIPUsesClientAddress(t *testing.T) {
	ips := new(mocks.AllowListMock)
	router := setupUserRouter(new(mocks.UsersMock), ips, 1)

	ips.On("RemoveAuthorizedIP", mock.Anything, 1, "198.51.100.4", "203.0.113.7").Return(nil).Once()
	ips.On("RemoveAuthorizedIP", mock.Anything, 1, "203.0.113.7", "203.0.113.7").
		Return(&services.Error{Kind: services.ErrBadRequest, Detail: "Cannot remove the IP address you are currently using"}).Once()

	rec := doJSON(router, http.MethodDelete, "/users/me/ips/198.51.100.4", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(router, http.MethodDelete, "/users/me/ips/203.0.113.7", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Cannot remove the IP address you are currently using", decodeError(t, rec))
	ips.AssertExpectations(t)
}

func TestMeInternalError(t *testing.T) {
	users := new(mocks.UsersMock)
	router := setupUserRouter(users, new(mocks.AllowListMock), 1)

	users.On("Get", mock.Anything, 1).Return(nil, assert.AnError).Once()

	rec := doJSON(router, http.MethodGet, "/users/me", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", decodeError(t, rec))
}

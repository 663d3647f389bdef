package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/middleware"
	"messaging-service/internal/models"
)

type recordingHub struct {
	mu     sync.Mutex
	events  []models.ChatEvent
	closed  []int
	removed [][2]int
}

func (h *recordingHub) Broadcast(chatID int, event models.ChatEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	event.ChatID = chatID
	h.events = append(h.events, event)
}

func (h *recordingHub) CloseRoom(chatID int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = append(h.closed, chatID)
}

func (h *recordingHub) RemoveUserFromChat(chatID, userID int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removed = append(h.removed, [2]int{chatID, userID})
}

func newTestRouter(userID int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestContextMiddleware())
	r.Use(func(c *gin.Context) {
		if userID != 0 {
			c.Set(middleware.UserIDKey, userID)
		}
		c.Next()
	})
	return r
}

func doJSON(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "203.0.113.7:5000"
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	msg, _ := body["error"].(string)
	return msg
}

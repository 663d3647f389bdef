package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthEndpoints(t *testing.T) {
	var pingErr error
	handler := NewHealthHandler(pingFunc(func(context.Context) error { return pingErr }), "1.0.0", zap.NewNop())
	r := newTestRouter(0)
	r.GET("/", handler.Root)
	r.GET("/health", handler.Health)
	r.GET("/health/db", handler.Database)

	rec := doJSON(r, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version":"1.0.0"`)

	rec = doJSON(r, http.MethodGet, "/health", nil)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = doJSON(r, http.MethodGet, "/health/db", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Database connection successful")

	pingErr = errors.New("connection refused")
	rec = doJSON(r, http.MethodGet, "/health/db", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

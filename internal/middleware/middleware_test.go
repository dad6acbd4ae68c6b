package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cyphera/cyphera-associations/internal/logger"
)

func init() {
	logger.InitLogger("test")
	gin.SetMode(gin.TestMode)
}

func TestRequestScope(t *testing.T) {
	router := gin.New()
	router.Use(RequestScope())
	router.GET("/ping", func(c *gin.Context) {
		assert.Equal(t, CorrelationID(c), CorrelationIDFromContext(c.Request.Context()))
		c.String(http.StatusOK, CorrelationID(c))
	})

	t.Run("generates an id", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

		id := w.Header().Get(CorrelationIDHeader)
		require.NotEmpty(t, id)
		assert.Equal(t, id, w.Body.String())
	})

	t.Run("keeps the caller's id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(CorrelationIDHeader, "req-123")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "req-123", w.Header().Get(CorrelationIDHeader))
		assert.Equal(t, "req-123", w.Body.String())
	})
}

func TestRequestScope_LoggerCarriesSubject(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	previous := logger.Log
	logger.Log = zap.New(core)
	t.Cleanup(func() { logger.Log = previous })

	router := gin.New()
	router.Use(RequestScope())
	handler := func(c *gin.Context) {
		Logger(c.Request.Context()).Info("handled")
		c.Status(http.StatusOK)
	}
	router.GET("/api/v1/accounts/:chainId/:address/associations", handler)
	router.GET("/api/v1/drafts/:id", handler)

	tests := []struct {
		path string
		key  string
		want string
	}{
		{
			path: "/api/v1/accounts/11155111/0x1111111111111111111111111111111111111111/associations",
			key:  "account",
			want: "0x1111111111111111111111111111111111111111@eip155:11155111",
		},
		{path: "/api/v1/drafts/0xabc", key: "association_id", want: "0xabc"},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		req.Header.Set(CorrelationIDHeader, "req-7")
		router.ServeHTTP(httptest.NewRecorder(), req)

		entries := logs.FilterMessage("handled").TakeAll()
		require.Len(t, entries, 1, tt.path)
		fields := entries[0].ContextMap()
		assert.Equal(t, "req-7", fields["correlation_id"])
		assert.Equal(t, tt.want, fields[tt.key])
	}

	assert.Same(t, logger.Log, Logger(context.Background()))
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	t.Cleanup(rl.Stop)

	router := gin.New()
	router.Use(rl.Middleware())
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/api/v1/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(path, apiKey string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if apiKey != "" {
			req.Header.Set("X-API-Key", apiKey)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, do("/api/v1/x", "client-a-key"))
	assert.Equal(t, http.StatusOK, do("/api/v1/x", "client-a-key"))
	assert.Equal(t, http.StatusTooManyRequests, do("/api/v1/x", "client-a-key"))

	// Separate bucket per client, and health is exempt.
	assert.Equal(t, http.StatusOK, do("/api/v1/x", "client-b-key"))
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, do("/health", "client-a-key"))
	}
}

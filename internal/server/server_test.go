package server

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyphera/cyphera-associations/internal/drafts"
	"github.com/cyphera/cyphera-associations/internal/logger"
	"github.com/cyphera/cyphera-associations/internal/middleware"
	"github.com/cyphera/cyphera-associations/internal/store"
	"github.com/cyphera/cyphera-associations/pkg/association"
	"github.com/cyphera/cyphera-associations/pkg/delegation"
	"github.com/cyphera/cyphera-associations/pkg/signer"
)

func init() {
	logger.InitLogger("test")
	gin.SetMode(gin.TestMode)
}

type emptyStore struct{}

func (emptyStore) GetAssociationsForAccount(context.Context, *big.Int, common.Address) ([]store.SignedAssociation, error) {
	return []store.SignedAssociation{}, nil
}

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	limiter := middleware.NewRateLimiter(100, 100)
	t.Cleanup(limiter.Stop)

	router := gin.New()
	InitializeRoutes(router, &Dependencies{
		Store:       emptyStore{},
		Drafts:      drafts.NewMemoryRepository(),
		Validator:   association.NewValidator(signer.Checker{}, delegation.Verifier{}),
		RateLimiter: limiter,
	})
	return router
}

func TestRoutes(t *testing.T) {
	router := newRouter(t)

	tests := []struct {
		method   string
		path     string
		wantCode int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/api/v1/accounts/1/0x1111111111111111111111111111111111111111/associations", http.StatusOK},
		{http.MethodGet, "/api/v1/accounts/1/0x1111111111111111111111111111111111111111/drafts", http.StatusOK},
		{http.MethodGet, "/api/v1/drafts/" + common.Hash{0x01}.Hex(), http.StatusNotFound},
		{http.MethodGet, "/api/v1/unknown", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.wantCode, w.Code)
			assert.NotEmpty(t, w.Header().Get(middleware.CorrelationIDHeader))
		})
	}
}

func TestCORS(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com")
	router := newRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/drafts", nil)
	req.Header.Set("Origin", "https://admin.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Less(t, w.Code, 300)
	assert.Equal(t, "https://admin.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestSwaggerDoc(t *testing.T) {
	router := newRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var doc struct {
		Paths map[string]interface{} `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	for _, path := range []string{
		"/health",
		"/api/v1/accounts/{chainId}/{address}/associations",
		"/api/v1/associations/validate",
		"/api/v1/drafts",
		"/api/v1/drafts/{id}/signature",
	} {
		assert.Contains(t, doc.Paths, path)
	}
}

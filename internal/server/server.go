// Package server wires configuration, clients and handlers into the HTTP API.
package server

import (
	"context"
	"net/http"
	"os"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/cyphera/cyphera-associations/docs"
	"github.com/cyphera/cyphera-associations/internal/chain"
	"github.com/cyphera/cyphera-associations/internal/config"
	"github.com/cyphera/cyphera-associations/internal/drafts"
	"github.com/cyphera/cyphera-associations/internal/handlers"
	"github.com/cyphera/cyphera-associations/internal/logger"
	"github.com/cyphera/cyphera-associations/internal/middleware"
	"github.com/cyphera/cyphera-associations/internal/store"
	"github.com/cyphera/cyphera-associations/pkg/association"
	"github.com/cyphera/cyphera-associations/pkg/delegation"
	"github.com/cyphera/cyphera-associations/pkg/signer"
)

// Dependencies are the services the routes are built from.
type Dependencies struct {
	Store        handlers.AssociationReader
	Drafts       drafts.Repository
	Validator    *association.Validator
	HealthChecks map[string]handlers.HealthCheck
	RateLimiter  *middleware.RateLimiter
}

// InitializeHandlers builds the dependencies for cfg. The returned function
// releases the database pool and the rate limiter.
func InitializeHandlers(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	client, err := cfg.DialChain(ctx, logger.Log)
	if err != nil {
		return nil, nil, err
	}

	checker := signer.Checker{Contracts: chain.ContractVerifier{Client: client}}
	validator := association.NewValidator(checker, delegation.Verifier{
		Manager: cfg.DelegationManager,
		ChainID: client.ChainID(),
	})

	deps := &Dependencies{
		Store:     store.NewClient(client, cfg.AssociationStore, logger.Log),
		Validator: validator,
		HealthChecks: map[string]handlers.HealthCheck{
			"chain": client.Ping,
		},
		RateLimiter: middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
	}
	cleanup := []func(){deps.RateLimiter.Stop}

	if cfg.DatabaseURL != "" {
		pool, repo, err := drafts.Connect(ctx, cfg.DatabaseURL, logger.Log)
		if err != nil {
			deps.RateLimiter.Stop()
			return nil, nil, err
		}
		deps.Drafts = repo
		deps.HealthChecks["database"] = pool.Ping
		cleanup = append(cleanup, pool.Close)
	} else {
		logger.Warn("DATABASE_URL not set, drafts are kept in memory")
		deps.Drafts = drafts.NewMemoryRepository()
	}

	logger.Info("Handlers initialized",
		zap.String("store", cfg.AssociationStore.Hex()),
		zap.String("delegation_manager", cfg.DelegationManager.Hex()),
	)
	return deps, func() {
		for _, fn := range cleanup {
			fn()
		}
	}, nil
}

// InitializeRoutes registers middleware and routes on router.
func InitializeRoutes(router *gin.Engine, deps *Dependencies) {
	router.Use(middleware.RequestScope())
	router.Use(configureCORS())
	if deps.RateLimiter != nil {
		router.Use(deps.RateLimiter.Middleware())
	}
	// if we are not in production, log the request body
	if os.Getenv("GIN_MODE") != "release" {
		router.Use(middleware.LogRequest())
	}

	health := handlers.NewHealthHandler(deps.HealthChecks)
	router.GET("/health", health.Health)
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	common := handlers.NewCommonServices(deps.Store, deps.Drafts, deps.Validator)
	associationHandler := handlers.NewAssociationHandler(common)
	draftHandler := handlers.NewDraftHandler(common)

	v1 := router.Group("/api/v1")
	{
		accounts := v1.Group("/accounts/:chainId/:address")
		{
			accounts.GET("/associations", associationHandler.ListAssociations)
			accounts.GET("/drafts", draftHandler.ListDrafts)
		}

		v1.POST("/associations/validate", associationHandler.ValidateAssociation)

		draftRoutes := v1.Group("/drafts")
		{
			draftRoutes.POST("", draftHandler.CreateDraft)
			draftRoutes.GET("/:id", draftHandler.GetDraft)
			draftRoutes.PUT("/:id/signature", draftHandler.AddSignature)
			draftRoutes.DELETE("/:id", draftHandler.DeleteDraft)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, handlers.ErrorResponse{
			Error:         "Not found",
			CorrelationID: middleware.CorrelationID(c),
		})
	})
}

// configureCORS returns a configured CORS middleware
func configureCORS() gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()

	corsConfig.AllowOrigins = splitEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"})
	corsConfig.AllowMethods = splitEnv("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	corsConfig.AllowHeaders = splitEnv("CORS_ALLOWED_HEADERS",
		[]string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-Key", middleware.CorrelationIDHeader})
	corsConfig.ExposeHeaders = splitEnv("CORS_EXPOSED_HEADERS",
		[]string{middleware.CorrelationIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining"})
	corsConfig.AllowCredentials = os.Getenv("CORS_ALLOW_CREDENTIALS") == "true"

	return cors.New(corsConfig)
}

func splitEnv(key string, fallback []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	parts := strings.Split(raw, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

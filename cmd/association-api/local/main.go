//go:build !lambda
// +build !lambda

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	awsclient "github.com/cyphera/cyphera-associations/internal/client/aws"
	"github.com/cyphera/cyphera-associations/internal/config"
	"github.com/cyphera/cyphera-associations/internal/logger"
	"github.com/cyphera/cyphera-associations/internal/server"
)

//go:generate swag init -g main.go -d ./,../../../internal/handlers -o ../../../docs

// @title        Cyphera Associations API
// @version      1.0
// @description  Read and coordination surface for associated accounts: stored associations, validation and the draft signature exchange.
// @host         localhost:8000
// @BasePath     /
func main() {
	config.LoadDotEnv()
	logger.InitLogger(os.Getenv(config.EnvStage))
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	secrets, err := awsclient.NewSecretsManagerClient(ctx)
	if err != nil {
		logger.Warn("Secrets Manager unavailable, using environment only", zap.Error(err))
		secrets = awsclient.NewSecretsManagerClientWithAPI(nil)
	}
	cfg, err := config.Load(ctx, secrets)
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	deps, cleanup, err := server.InitializeHandlers(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize handlers", zap.Error(err))
	}
	defer cleanup()

	r := gin.Default()
	server.InitializeRoutes(r, deps)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Error starting server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
	logger.Info("Server stopped")
}

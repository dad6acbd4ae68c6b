//go:build lambda
// +build lambda

package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/davecgh/go-spew/spew"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	awsclient "github.com/cyphera/cyphera-associations/internal/client/aws"
	"github.com/cyphera/cyphera-associations/internal/config"
	"github.com/cyphera/cyphera-associations/internal/logger"
	"github.com/cyphera/cyphera-associations/internal/server"
)

var ginLambda *ginadapter.GinLambda

func init() {
	logger.InitLogger(os.Getenv(config.EnvStage))
	ctx := context.Background()

	secrets, err := awsclient.NewSecretsManagerClient(ctx)
	if err != nil {
		logger.Fatal("Unable to create Secrets Manager client", zap.Error(err))
	}
	cfg, err := config.Load(ctx, secrets)
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	// The pool and limiter live as long as the container.
	deps, _, err := server.InitializeHandlers(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize handlers", zap.Error(err))
	}

	r := gin.New()
	r.Use(gin.Recovery())
	server.InitializeRoutes(r, deps)

	ginLambda = ginadapter.New(r)
}

func Handler(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	logger.Debug("Received Lambda request",
		zap.String("path", req.Path),
		zap.String("request", spew.Sdump(req)),
	)
	return ginLambda.ProxyWithContext(ctx, req)
}

func main() {
	defer logger.Sync()
	lambda.Start(Handler)
}

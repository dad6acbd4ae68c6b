package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"go.uber.org/zap"

	"github.com/cyphera/cyphera-associations/internal/logger"
)

// SecretsAPI is the part of the Secrets Manager client used here.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManagerClient resolves secrets from AWS Secrets Manager with an
// environment variable fallback for local runs.
type SecretsManagerClient struct {
	svc SecretsAPI
}

// NewSecretsManagerClient uses the default AWS configuration chain
// (environment variables, shared config, IAM role).
func NewSecretsManagerClient(ctx context.Context) (*SecretsManagerClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}
	return NewSecretsManagerClientWithAPI(secretsmanager.NewFromConfig(cfg)), nil
}

// NewSecretsManagerClientWithAPI wraps an existing client.
func NewSecretsManagerClientWithAPI(svc SecretsAPI) *SecretsManagerClient {
	return &SecretsManagerClient{svc: svc}
}

func (c *SecretsManagerClient) fetch(ctx context.Context, secretArnEnvVar string) (string, bool) {
	secretArn := os.Getenv(secretArnEnvVar)
	if secretArn == "" || c.svc == nil {
		logger.Log.Debug("Secret ARN not configured", zap.String("arnEnvVar", secretArnEnvVar))
		return "", false
	}

	result, err := c.svc.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretArn),
	})
	if err != nil || result.SecretString == nil || *result.SecretString == "" {
		logger.Log.Warn("Failed to retrieve secret from Secrets Manager, falling back",
			zap.String("arnEnvVar", secretArnEnvVar),
			zap.Error(err),
		)
		return "", false
	}
	logger.Log.Info("Fetched secret from Secrets Manager", zap.String("arnEnvVar", secretArnEnvVar))
	return *result.SecretString, true
}

// GetSecretString returns the secret named by the ARN in secretArnEnvVar,
// or the value of fallbackEnvVar when the ARN is unset or the fetch fails.
func (c *SecretsManagerClient) GetSecretString(ctx context.Context, secretArnEnvVar string, fallbackEnvVar string) (string, error) {
	if value, ok := c.fetch(ctx, secretArnEnvVar); ok {
		return value, nil
	}
	if value := os.Getenv(fallbackEnvVar); value != "" {
		logger.Log.Debug("Using secret from environment", zap.String("envVar", fallbackEnvVar))
		return value, nil
	}
	return "", fmt.Errorf("secret not found using ARN env var '%s' or direct env var '%s'", secretArnEnvVar, fallbackEnvVar)
}

// DatabaseSecret is the JSON layout of an RDS managed secret.
type DatabaseSecret struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	DBName   string `json:"dbname"`
}

// DSN renders the secret as a postgres connection URL.
func (s DatabaseSecret) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(s.Username, s.Password),
		Host:   fmt.Sprintf("%s:%d", s.Host, s.Port),
		Path:   "/" + s.DBName,
	}
	return u.String()
}

// GetDatabaseURL resolves a connection string. A JSON RDS secret is turned
// into a DSN; the fallback variable must already hold one.
func (c *SecretsManagerClient) GetDatabaseURL(ctx context.Context, secretArnEnvVar string, fallbackEnvVar string) (string, error) {
	if value, ok := c.fetch(ctx, secretArnEnvVar); ok {
		var secret DatabaseSecret
		if err := json.Unmarshal([]byte(value), &secret); err == nil && secret.Host != "" {
			return secret.DSN(), nil
		}
		return value, nil
	}
	if value := os.Getenv(fallbackEnvVar); value != "" {
		return value, nil
	}
	return "", fmt.Errorf("database url not found using ARN env var '%s' or direct env var '%s'", secretArnEnvVar, fallbackEnvVar)
}

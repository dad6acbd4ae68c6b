// Package config reads service settings from the environment, with secrets
// resolved through AWS Secrets Manager when an ARN is configured.
package config

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/cyphera/cyphera-associations/internal/helpers"
	"github.com/cyphera/cyphera-associations/internal/logger"
	"github.com/cyphera/cyphera-associations/pkg/delegation"
)

const (
	EnvStage                  = "STAGE"
	EnvPort                   = "PORT"
	EnvRPCURL                 = "RPC_URL"
	EnvRelayURL               = "RELAY_URL"
	EnvRelayAPIKey            = "RELAY_API_KEY"
	EnvOwnerPrivateKey        = "OWNER_PRIVATE_KEY"
	EnvOwnerPrivateKeyARN     = "OWNER_PRIVATE_KEY_ARN"
	EnvDatabaseURL            = "DATABASE_URL"
	EnvDatabaseURLARN         = "DATABASE_URL_ARN"
	EnvAssociationStore       = "ASSOCIATION_STORE_ADDRESS"
	EnvDelegationManager      = "DELEGATION_MANAGER_ADDRESS"
	EnvIdentityRegistry       = "IDENTITY_REGISTRY_ADDRESS"
	EnvValidationRegistry     = "VALIDATION_REGISTRY_ADDRESS"
	EnvAllowedTargetsEnforcer = "ALLOWED_TARGETS_ENFORCER_ADDRESS"
	EnvAllowedMethodsEnforcer = "ALLOWED_METHODS_ENFORCER_ADDRESS"
	EnvAgentID                = "AGENT_ID"
	EnvAgentAddress           = "AGENT_ADDRESS"
	EnvSubmitTimeout          = "SUBMIT_TIMEOUT"
	EnvRateLimitRPS           = "RATE_LIMIT_RPS"
	EnvRateLimitBurst         = "RATE_LIMIT_BURST"
)

var ErrMissing = errors.New("config: required setting missing")

// SecretSource resolves secrets by ARN variable with an environment fallback.
type SecretSource interface {
	GetSecretString(ctx context.Context, secretArnEnvVar string, fallbackEnvVar string) (string, error)
	GetDatabaseURL(ctx context.Context, secretArnEnvVar string, fallbackEnvVar string) (string, error)
}

// Config holds every setting the binaries use. Optional addresses are the
// zero address when unset.
type Config struct {
	Stage    string
	Port     string
	RPCURL   string
	RelayURL string

	// RelayAPIKey is sent as a bearer token to the relay when set.
	RelayAPIKey string

	// OwnerPrivateKey is empty for read-only deployments.
	OwnerPrivateKey string
	// DatabaseURL is empty when drafts are kept in memory.
	DatabaseURL string

	AssociationStore  common.Address
	DelegationManager common.Address

	IdentityRegistry       common.Address
	ValidationRegistry     common.Address
	AllowedTargetsEnforcer common.Address
	AllowedMethodsEnforcer common.Address

	AgentID      *big.Int
	AgentAddress common.Address

	SubmitTimeout  time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
}

// LoadDotEnv loads .env when present. A missing file is not an error.
func LoadDotEnv(files ...string) {
	if err := godotenv.Load(files...); err != nil {
		logger.Log.Debug("No .env file loaded", zap.Error(err))
	}
}

// Load reads the environment. secrets may be nil, in which case secret
// values come from their plain environment variables only.
func Load(ctx context.Context, secrets SecretSource) (*Config, error) {
	stage := os.Getenv(EnvStage)
	if !helpers.IsValidStage(stage) {
		return nil, errors.Errorf("config: %s must be one of local, dev, prod (got %q)", EnvStage, stage)
	}

	cfg := &Config{
		Stage:          stage,
		Port:           getEnvWithDefault(EnvPort, "8000"),
		RPCURL:         os.Getenv(EnvRPCURL),
		RelayURL:       os.Getenv(EnvRelayURL),
		RelayAPIKey:    os.Getenv(EnvRelayAPIKey),
		SubmitTimeout:  2 * time.Minute,
		RateLimitRPS:   10,
		RateLimitBurst: 20,
	}
	if cfg.RPCURL == "" {
		return nil, errors.Wrap(ErrMissing, EnvRPCURL)
	}

	var err error
	if cfg.AssociationStore, err = requiredAddress(EnvAssociationStore); err != nil {
		return nil, err
	}
	if cfg.DelegationManager, err = requiredAddress(EnvDelegationManager); err != nil {
		return nil, err
	}
	for env, dst := range map[string]*common.Address{
		EnvIdentityRegistry:       &cfg.IdentityRegistry,
		EnvValidationRegistry:     &cfg.ValidationRegistry,
		EnvAllowedTargetsEnforcer: &cfg.AllowedTargetsEnforcer,
		EnvAllowedMethodsEnforcer: &cfg.AllowedMethodsEnforcer,
		EnvAgentAddress:           &cfg.AgentAddress,
	} {
		if *dst, err = optionalAddress(env); err != nil {
			return nil, err
		}
	}

	if raw := os.Getenv(EnvAgentID); raw != "" {
		id, ok := new(big.Int).SetString(raw, 10)
		if !ok || id.Sign() < 0 {
			return nil, errors.Errorf("config: %s is not a token id: %q", EnvAgentID, raw)
		}
		cfg.AgentID = id
	}
	if raw := os.Getenv(EnvSubmitTimeout); raw != "" {
		if cfg.SubmitTimeout, err = time.ParseDuration(raw); err != nil {
			return nil, errors.Wrapf(err, "config: %s", EnvSubmitTimeout)
		}
	}
	if raw := os.Getenv(EnvRateLimitRPS); raw != "" {
		if cfg.RateLimitRPS, err = strconv.ParseFloat(raw, 64); err != nil {
			return nil, errors.Wrapf(err, "config: %s", EnvRateLimitRPS)
		}
	}
	if raw := os.Getenv(EnvRateLimitBurst); raw != "" {
		if cfg.RateLimitBurst, err = strconv.Atoi(raw); err != nil {
			return nil, errors.Wrapf(err, "config: %s", EnvRateLimitBurst)
		}
	}

	if secrets != nil {
		if key, err := secrets.GetSecretString(ctx, EnvOwnerPrivateKeyARN, EnvOwnerPrivateKey); err == nil {
			cfg.OwnerPrivateKey = key
		}
		if dsn, err := secrets.GetDatabaseURL(ctx, EnvDatabaseURLARN, EnvDatabaseURL); err == nil {
			cfg.DatabaseURL = dsn
		}
	} else {
		cfg.OwnerPrivateKey = os.Getenv(EnvOwnerPrivateKey)
		cfg.DatabaseURL = os.Getenv(EnvDatabaseURL)
	}
	if cfg.OwnerPrivateKey != "" && !helpers.IsPrivateKeyValid(cfg.OwnerPrivateKey) {
		return nil, errors.Errorf("config: %s is not a 0x-prefixed 32 byte key", EnvOwnerPrivateKey)
	}

	return cfg, nil
}

// DelegationEnvironment returns the deployment addresses delegations are
// built against.
func (c *Config) DelegationEnvironment() delegation.Environment {
	return delegation.Environment{
		Manager:                c.DelegationManager,
		AllowedTargetsEnforcer: c.AllowedTargetsEnforcer,
		AllowedMethodsEnforcer: c.AllowedMethodsEnforcer,
	}
}

// RequireOwnerKey fails when no owner key was configured.
func (c *Config) RequireOwnerKey() error {
	if c.OwnerPrivateKey == "" {
		return errors.Wrap(ErrMissing, EnvOwnerPrivateKey)
	}
	return nil
}

func requiredAddress(env string) (common.Address, error) {
	raw := os.Getenv(env)
	if raw == "" {
		return common.Address{}, errors.Wrap(ErrMissing, env)
	}
	return parseAddress(env, raw)
}

func optionalAddress(env string) (common.Address, error) {
	raw := os.Getenv(env)
	if raw == "" {
		return common.Address{}, nil
	}
	return parseAddress(env, raw)
}

func parseAddress(env, raw string) (common.Address, error) {
	if !helpers.IsAddressValid(raw) {
		return common.Address{}, fmt.Errorf("config: %s is not a valid address: %q", env, raw)
	}
	return common.HexToAddress(raw), nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

package config

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/cyphera/cyphera-associations/internal/chain"
	httpClient "github.com/cyphera/cyphera-associations/internal/client/http"
	"github.com/cyphera/cyphera-associations/internal/client/relay"
	"github.com/cyphera/cyphera-associations/internal/helpers"
	"github.com/cyphera/cyphera-associations/internal/logger"
)

// DialChain connects the chain client described by c. The owner key, when
// configured, becomes the transaction key; a relay URL routes broadcasts and
// receipt lookups through the relay.
func (c *Config) DialChain(ctx context.Context, l *zap.Logger) (*chain.EthClient, error) {
	l = logger.OrGlobal(l)
	opts := []chain.EthOption{chain.WithLogger(l)}

	if c.OwnerPrivateKey != "" {
		key, err := crypto.HexToECDSA(c.OwnerPrivateKey[2:])
		if err != nil {
			return nil, errors.Wrap(err, "config: owner key")
		}
		opts = append(opts, chain.WithTransactionKey(key))
	}
	if c.RelayURL != "" {
		opts = append(opts, chain.WithRelay(relay.NewClient(c.RelayURL, c.relayOptions(l)...)))
	}

	client, err := chain.Dial(ctx, c.RPCURL, opts...)
	if err != nil {
		return nil, err
	}
	l.Info("Connected to chain",
		zap.String("chain_id", client.ChainID().String()),
		zap.Bool("relay", c.RelayURL != ""),
		zap.Bool("can_send", c.OwnerPrivateKey != ""),
	)
	return client, nil
}

func (c *Config) relayOptions(l *zap.Logger) []httpClient.ClientOption {
	opts := []httpClient.ClientOption{
		httpClient.WithTimeout(30 * time.Second),
		httpClient.WithRateLimit(5, 10),
		httpClient.WithLogger(l),
	}
	if c.RelayAPIKey != "" {
		opts = append(opts, httpClient.WithDefaultHeader("Authorization", "Bearer "+c.RelayAPIKey))
	}
	if c.Stage != helpers.StageProd {
		opts = append(opts, httpClient.WithMiddleware(httpClient.LoggingMiddleware(l)))
	}
	return opts
}

package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
)

var errPending = errors.New("receipt pending")

// PollConfig bounds receipt polling.
type PollConfig struct {
	Timeout         time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultPollConfig suits L1 and L2 block times alike.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		Timeout:         2 * time.Minute,
		InitialInterval: time.Second,
		MaxInterval:     10 * time.Second,
	}
}

// WaitForReceipt polls src until hash has a receipt. A reverted transaction
// returns the receipt together with ErrReverted. When the timeout or ctx ends
// first the error is an *OutcomeUnknownError; only local waiting stops.
func WaitForReceipt(ctx context.Context, src ReceiptSource, hash common.Hash, cfg PollConfig) (*Receipt, error) {
	if cfg.Timeout <= 0 {
		cfg = DefaultPollConfig()
	}
	waitCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialInterval
	b.MaxInterval = cfg.MaxInterval
	b.MaxElapsedTime = 0

	var receipt *Receipt
	var lastErr error
	err := backoff.Retry(func() error {
		r, err := src.Receipt(waitCtx, hash)
		if err != nil {
			lastErr = err
			return err
		}
		if r == nil {
			return errPending
		}
		receipt = r
		return nil
	}, backoff.WithContext(b, waitCtx))

	if receipt == nil {
		cause := lastErr
		if cause == nil {
			cause = err
		}
		if cause == nil {
			cause = waitCtx.Err()
		}
		return nil, &OutcomeUnknownError{Hash: hash, Cause: cause}
	}
	if !receipt.Success {
		return receipt, fmt.Errorf("%w: tx %s", ErrReverted, hash.Hex())
	}
	return receipt, nil
}

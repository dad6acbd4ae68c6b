// Package chain is the single capability the rest of the service uses to
// reach a blockchain: contract calls, transaction submission and receipts.
package chain

//go:generate mockgen -destination=../mocks/mock_chain_client.go -package=mocks github.com/cyphera/cyphera-associations/internal/chain Client

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrOutcomeUnknown means a transaction was sent but no receipt arrived
	// before the deadline. The transaction may still land.
	ErrOutcomeUnknown = errors.New("chain: transaction outcome unknown")
	ErrReverted       = errors.New("chain: transaction reverted")
	ErrNoSigner       = errors.New("chain: client has no transaction key")
)

// Receipt is the part of a transaction receipt callers act on.
type Receipt struct {
	TransactionHash common.Hash
	BlockNumber     *big.Int
	Success         bool
}

// ReceiptSource returns a receipt, or nil while the transaction is pending.
type ReceiptSource interface {
	Receipt(ctx context.Context, hash common.Hash) (*Receipt, error)
}

// Client is the chain capability.
type Client interface {
	ReceiptSource
	ChainID() *big.Int
	Call(ctx context.Context, contract common.Address, contractABI *abi.ABI, method string, args ...interface{}) ([]interface{}, error)
	SendTransaction(ctx context.Context, to common.Address, data []byte, value *big.Int) (common.Hash, error)
	EncodeFunctionData(contractABI *abi.ABI, method string, args ...interface{}) ([]byte, error)
}

// OutcomeUnknownError carries the hash of a transaction whose result is
// not known yet.
type OutcomeUnknownError struct {
	Hash  common.Hash
	Cause error
}

func (e *OutcomeUnknownError) Error() string {
	return fmt.Sprintf("%v: tx %s: %v", ErrOutcomeUnknown, e.Hash.Hex(), e.Cause)
}

func (e *OutcomeUnknownError) Is(target error) bool {
	return target == ErrOutcomeUnknown
}

func (e *OutcomeUnknownError) Unwrap() error {
	return e.Cause
}

// EncodeFunctionData packs a call to method.
func EncodeFunctionData(contractABI *abi.ABI, method string, args ...interface{}) ([]byte, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", method, err)
	}
	return data, nil
}

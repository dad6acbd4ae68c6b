// Package store reads and writes the on-chain association store.
package store

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/cyphera/cyphera-associations/internal/chain"
	"github.com/cyphera/cyphera-associations/internal/logger"
	"github.com/cyphera/cyphera-associations/pkg/association"
	"github.com/cyphera/cyphera-associations/pkg/interop"
)

// SignedAssociation is a stored SAR with its derived identifiers and the
// sides resolved to display addresses.
type SignedAssociation struct {
	AssociationID       common.Hash      `json:"associationId"`
	AssociationCID      string           `json:"associationCid"`
	InitiatorAddress    string           `json:"initiatorAddress"`
	ApproverAddress     string           `json:"approverAddress"`
	CounterpartyAddress string           `json:"counterpartyAddress"`
	SAR                 *association.SAR `json:"sar"`
}

// Client talks to one association store deployment.
type Client struct {
	chain   chain.Client
	address common.Address
	log     *zap.Logger
}

// NewClient binds a store at address on the given chain client.
func NewClient(c chain.Client, address common.Address, l *zap.Logger) *Client {
	return &Client{
		chain:   c,
		address: address,
		log:     logger.OrGlobal(l).With(zap.String("store", address.Hex())),
	}
}

// Address returns the store contract address.
func (c *Client) Address() common.Address {
	return c.address
}

// GetAssociationsForAccount returns every association the store holds for
// account on chainID. It only reads.
func (c *Client) GetAssociationsForAccount(ctx context.Context, chainID *big.Int, account common.Address) ([]SignedAssociation, error) {
	encoded, err := interop.Encode(chainID, account.Bytes())
	if err != nil {
		return nil, err
	}
	out, err := c.chain.Call(ctx, c.address, StoreABI, "getAssociationsForAccount", encoded)
	if err != nil {
		return nil, fmt.Errorf("get associations for %s: %w", account.Hex(), err)
	}
	raw, err := convertSARs(out)
	if err != nil {
		return nil, err
	}

	result := make([]SignedAssociation, 0, len(raw))
	for _, r := range raw {
		sar := fromABI(r)
		view, err := describe(sar, account)
		if err != nil {
			c.log.Warn("Skipping stored association with unhashable record", zap.Error(err))
			continue
		}
		result = append(result, view)
	}
	c.log.Debug("Fetched associations",
		zap.String("account", account.Hex()),
		zap.Int("count", len(result)))
	return result, nil
}

func convertSARs(out []interface{}) (sars []abiSAR, err error) {
	if len(out) != 1 {
		return nil, fmt.Errorf("getAssociationsForAccount: expected one output, got %d", len(out))
	}
	defer func() {
		if r := recover(); r != nil {
			sars, err = nil, fmt.Errorf("getAssociationsForAccount: unexpected output shape: %v", r)
		}
	}()
	return *abi.ConvertType(out[0], new([]abiSAR)).(*[]abiSAR), nil
}

func describe(sar *association.SAR, account common.Address) (SignedAssociation, error) {
	id, err := sar.ID()
	if err != nil {
		return SignedAssociation{}, err
	}
	contentID, err := association.ContentID(id)
	if err != nil {
		return SignedAssociation{}, err
	}

	initiator := interop.DisplayAddress(sar.Record.Initiator)
	approver := interop.DisplayAddress(sar.Record.Approver)
	counterparty := approver
	if strings.EqualFold(approver, account.Hex()) && !strings.EqualFold(initiator, account.Hex()) {
		counterparty = initiator
	}

	return SignedAssociation{
		AssociationID:       id,
		AssociationCID:      contentID.String(),
		InitiatorAddress:    initiator,
		ApproverAddress:     approver,
		CounterpartyAddress: counterparty,
		SAR:                 sar,
	}, nil
}

// IsStored reports whether the store lists id for account. Used to settle
// submissions whose receipt never arrived.
func (c *Client) IsStored(ctx context.Context, chainID *big.Int, account common.Address, id common.Hash) (bool, error) {
	associations, err := c.GetAssociationsForAccount(ctx, chainID, account)
	if err != nil {
		return false, err
	}
	for _, a := range associations {
		if a.AssociationID == id {
			return true, nil
		}
	}
	return false, nil
}

// StoreCallData encodes storeAssociation(sar).
func (c *Client) StoreCallData(sar *association.SAR) ([]byte, error) {
	packed, err := toABI(sar)
	if err != nil {
		return nil, err
	}
	return c.chain.EncodeFunctionData(StoreABI, "storeAssociation", packed)
}

// RevokeCallData encodes revokeAssociation(id, revokedAt).
func (c *Client) RevokeCallData(id common.Hash, revokedAt uint64) ([]byte, error) {
	if revokedAt > association.MaxTimestamp {
		return nil, fmt.Errorf("%w: revokedAt %d", association.ErrTimestampRange, revokedAt)
	}
	return c.chain.EncodeFunctionData(StoreABI, "revokeAssociation", [32]byte(id), new(big.Int).SetUint64(revokedAt))
}

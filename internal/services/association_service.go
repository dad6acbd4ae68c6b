// Package services submits signed associations to the store, either directly
// or as a redemption through the delegation manager.
package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/cyphera/cyphera-associations/internal/chain"
	"github.com/cyphera/cyphera-associations/internal/logger"
	"github.com/cyphera/cyphera-associations/internal/store"
	"github.com/cyphera/cyphera-associations/pkg/association"
	"github.com/cyphera/cyphera-associations/pkg/delegation"
	"github.com/cyphera/cyphera-associations/pkg/interop"
)

var (
	ErrNotFullySigned = errors.New("services: association is not signed by both sides")
	ErrAlreadyStored  = errors.New("services: association is already stored")
)

// Outcome is what a submission is known to have done.
type Outcome string

const (
	OutcomeConfirmed Outcome = "confirmed"
	OutcomeReverted  Outcome = "reverted"
	// OutcomeUnknown means the transaction was sent but its receipt did not
	// arrive in time. Use Resolve with the returned hash to settle it.
	OutcomeUnknown Outcome = "unknown"
)

// SubmitResult describes a sent transaction.
type SubmitResult struct {
	Hash    common.Hash    `json:"hash"`
	Outcome Outcome        `json:"outcome"`
	Receipt *chain.Receipt `json:"receipt,omitempty"`
}

// AssociationService sends store writes and tracks their receipts.
type AssociationService struct {
	chain         chain.Client
	store         *store.Client
	manager       common.Address
	submitTimeout time.Duration
	poll          chain.PollConfig
	logger        *zap.Logger
	// Now stamps revocations submitted with revokedAt 0. Defaults to time.Now.
	Now           func() time.Time
}

// NewAssociationService binds the service to a store and a delegation
// manager. submitTimeout bounds how long a submission waits for its receipt.
func NewAssociationService(c chain.Client, st *store.Client, manager common.Address, submitTimeout time.Duration) *AssociationService {
	poll := chain.DefaultPollConfig()
	if submitTimeout > 0 {
		poll.Timeout = submitTimeout
	}
	return &AssociationService{
		chain:         c,
		store:         st,
		manager:       manager,
		submitTimeout: poll.Timeout,
		poll:          poll,
		logger:        logger.Log,
	}
}

// WithPollConfig overrides receipt polling. Timeout stays the submit timeout
// when cfg leaves it unset.
func (s *AssociationService) WithPollConfig(cfg chain.PollConfig) *AssociationService {
	if cfg.Timeout <= 0 {
		cfg.Timeout = s.submitTimeout
	}
	s.poll = cfg
	return s
}

// StoreWithDelegation stores sar through the delegation manager, redeeming
// chain so the store sees the chain's root account as the sender. On success
// sar is marked stored.
func (s *AssociationService) StoreWithDelegation(ctx context.Context, sar *association.SAR, authority delegation.Chain) (*SubmitResult, error) {
	if err := checkSubmittable(sar); err != nil {
		return nil, err
	}
	callData, err := s.store.StoreCallData(sar)
	if err != nil {
		return nil, err
	}
	result, err := s.redeem(ctx, authority, callData, "store")
	if err != nil {
		return result, err
	}
	sar.Stored = true
	return result, nil
}

// RevokeWithDelegation revokes a stored sar through the delegation manager
// at revokedAt, or now when it is zero. On success sar.RevokedAt is set.
func (s *AssociationService) RevokeWithDelegation(ctx context.Context, sar *association.SAR, revokedAt uint64, authority delegation.Chain) (*SubmitResult, error) {
	revokedAt = s.revocationTime(revokedAt)
	callData, err := s.revokeCallData(sar, revokedAt)
	if err != nil {
		return nil, err
	}
	result, err := s.redeem(ctx, authority, callData, "revoke")
	if err != nil {
		return result, err
	}
	sar.RevokedAt = revokedAt
	return result, nil
}

// Store sends storeAssociation straight to the store from the client's
// transaction key.
func (s *AssociationService) Store(ctx context.Context, sar *association.SAR) (*SubmitResult, error) {
	if err := checkSubmittable(sar); err != nil {
		return nil, err
	}
	callData, err := s.store.StoreCallData(sar)
	if err != nil {
		return nil, err
	}
	result, err := s.submit(ctx, s.store.Address(), callData, "store")
	if err != nil {
		return result, err
	}
	sar.Stored = true
	return result, nil
}

// Revoke sends revokeAssociation straight to the store. A zero revokedAt
// means now.
func (s *AssociationService) Revoke(ctx context.Context, sar *association.SAR, revokedAt uint64) (*SubmitResult, error) {
	revokedAt = s.revocationTime(revokedAt)
	callData, err := s.revokeCallData(sar, revokedAt)
	if err != nil {
		return nil, err
	}
	result, err := s.submit(ctx, s.store.Address(), callData, "revoke")
	if err != nil {
		return result, err
	}
	sar.RevokedAt = revokedAt
	return result, nil
}

// Resolve settles a store submission whose outcome was unknown. A receipt
// that has since arrived decides it; otherwise the store is asked whether
// it lists the association for the initiator.
func (s *AssociationService) Resolve(ctx context.Context, sar *association.SAR, hash common.Hash) (Outcome, error) {
	receipt, err := s.chain.Receipt(ctx, hash)
	if err != nil {
		s.logger.Warn("Receipt lookup failed while resolving, falling back to store",
			zap.String("tx_hash", hash.Hex()), zap.Error(err))
	}
	if receipt != nil {
		if !receipt.Success {
			return OutcomeReverted, nil
		}
		sar.Stored = true
		return OutcomeConfirmed, nil
	}

	id, err := sar.ID()
	if err != nil {
		return OutcomeUnknown, err
	}
	initiator := interop.Decode(sar.Record.Initiator)
	if !initiator.Parsed() || initiator.ChainID == nil {
		return OutcomeUnknown, fmt.Errorf("%w: initiator %s", association.ErrUnresolvableAccount, initiator)
	}
	stored, err := s.store.IsStored(ctx, initiator.ChainID, *initiator.Address, id)
	if err != nil {
		return OutcomeUnknown, err
	}
	if !stored {
		return OutcomeUnknown, nil
	}
	sar.Stored = true
	return OutcomeConfirmed, nil
}

func checkSubmittable(sar *association.SAR) error {
	switch sar.Status() {
	case association.StatusFullySigned:
		return nil
	case association.StatusRevoked:
		return association.ErrRevoked
	case association.StatusStored:
		return ErrAlreadyStored
	default:
		return fmt.Errorf("%w: status %s", ErrNotFullySigned, sar.Status())
	}
}

func (s *AssociationService) revocationTime(revokedAt uint64) uint64 {
	if revokedAt != 0 {
		return revokedAt
	}
	if s.Now != nil {
		return uint64(s.Now().Unix())
	}
	return uint64(time.Now().Unix())
}

func (s *AssociationService) revokeCallData(sar *association.SAR, revokedAt uint64) ([]byte, error) {
	if sar.Revoked() {
		return nil, association.ErrAlreadyRevoked
	}
	if !sar.Stored {
		return nil, association.ErrNotStored
	}
	id, err := sar.ID()
	if err != nil {
		return nil, err
	}
	return s.store.RevokeCallData(id, revokedAt)
}

func (s *AssociationService) redeem(ctx context.Context, authority delegation.Chain, callData []byte, action string) (*SubmitResult, error) {
	if len(authority) == 0 {
		return nil, fmt.Errorf("%s: %w", action, delegation.ErrEmptyChain)
	}
	redemption, err := delegation.EncodeSingleRedemption(authority, delegation.Execution{
		Target:   s.store.Address(),
		Value:    new(big.Int),
		CallData: callData,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", action, err)
	}
	return s.submit(ctx, s.manager, redemption, action)
}

func (s *AssociationService) submit(ctx context.Context, to common.Address, data []byte, action string) (*SubmitResult, error) {
	hash, err := s.chain.SendTransaction(ctx, to, data, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", action, err)
	}
	log := s.logger.With(zap.String("action", action), zap.String("tx_hash", hash.Hex()), zap.String("to", to.Hex()))
	log.Info("Transaction sent")

	receipt, err := chain.WaitForReceipt(ctx, s.chain, hash, s.poll)
	switch {
	case err == nil:
		log.Info("Transaction confirmed", zap.Stringer("block", receipt.BlockNumber))
		return &SubmitResult{Hash: hash, Outcome: OutcomeConfirmed, Receipt: receipt}, nil
	case errors.Is(err, chain.ErrOutcomeUnknown):
		log.Warn("Transaction outcome unknown", zap.Error(err))
		return &SubmitResult{Hash: hash, Outcome: OutcomeUnknown}, err
	case errors.Is(err, chain.ErrReverted):
		log.Error("Transaction reverted")
		return &SubmitResult{Hash: hash, Outcome: OutcomeReverted, Receipt: receipt}, err
	default:
		return &SubmitResult{Hash: hash, Outcome: OutcomeUnknown}, err
	}
}

package association

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/cyphera/cyphera-associations/pkg/delegation"
	"github.com/cyphera/cyphera-associations/pkg/interop"
	"github.com/cyphera/cyphera-associations/pkg/signer"
	"github.com/ethereum/go-ethereum/common"
)

// Result is the outcome of validating a SAR. A failed side carries the
// reason; validation itself never errors.
type Result struct {
	ID              common.Hash `json:"associationId"`
	InitiatorValid  bool        `json:"initiatorValid"`
	ApproverValid   bool        `json:"approverValid"`
	Revoked         bool        `json:"revoked"`
	Active          bool        `json:"active"`
	InitiatorReason error       `json:"-"`
	ApproverReason  error       `json:"-"`
}

// Valid reports whether both signatures validate and the record is not revoked.
func (r Result) Valid() bool {
	return r.InitiatorValid && r.ApproverValid && !r.Revoked
}

// Reason returns the failure reason of side, or nil.
func (r Result) Reason(side Side) error {
	if side == Approver {
		return r.ApproverReason
	}
	return r.InitiatorReason
}

// Validator checks SAR signatures. K1 sides go through Signatures;
// DELEGATED sides decode a delegation proof and go through Delegations.
type Validator struct {
	Signatures  signer.Checker
	Delegations delegation.Verifier
	// Now defaults to time.Now.
	Now func() time.Time
}

// NewValidator wires one signature checker into both strategies.
func NewValidator(checker signer.Checker, delegations delegation.Verifier) *Validator {
	delegations.Signatures = checker
	return &Validator{Signatures: checker, Delegations: delegations}
}

func (v *Validator) now() uint64 {
	if v.Now != nil {
		return uint64(v.Now().Unix())
	}
	return uint64(time.Now().Unix())
}

// Validate checks both sides of s independently.
func (v *Validator) Validate(ctx context.Context, s *SAR) Result {
	id, err := s.ID()
	if err != nil {
		return Result{InitiatorReason: err, ApproverReason: err}
	}
	res := Result{ID: id}

	if s.Revoked() {
		res.Revoked = true
		res.InitiatorReason = ErrRevoked
		res.ApproverReason = ErrRevoked
		return res
	}

	res.InitiatorReason = v.verifySide(ctx, s, Initiator, id)
	res.ApproverReason = v.verifySide(ctx, s, Approver, id)
	res.InitiatorValid = res.InitiatorReason == nil
	res.ApproverValid = res.ApproverReason == nil
	res.Active = res.Valid() && s.Record.ActiveAt(v.now())
	return res
}

func (v *Validator) verifySide(ctx context.Context, s *SAR, side Side, id common.Hash) error {
	account, ok := interop.FlatAddress(s.Record.Account(side))
	if !ok {
		return ErrUnresolvableAccount
	}
	sig, keyType := s.Signature(side)
	if len(sig) == 0 {
		return ErrMissingSignature
	}

	switch keyType {
	case KeyTypeK1:
		return v.Signatures.Verify(ctx, account, id, sig)
	case KeyTypeDelegated:
		proof := delegation.DecodeProof(sig)
		if proof == nil || len(proof.Delegations) == 0 {
			return ErrMissingDelegation
		}
		return v.Delegations.VerifyProof(ctx, *proof, account, id)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedKeyType, keyType)
	}
}

// Revoke marks a stored SAR revoked at revokedAt (now when zero). by is the
// interoperable address of the revoking party, which must be one of the
// record's sides with a valid signature.
func (v *Validator) Revoke(ctx context.Context, s *SAR, by []byte, revokedAt uint64) error {
	if !s.Stored {
		return ErrNotStored
	}
	if s.Revoked() {
		return ErrAlreadyRevoked
	}
	if revokedAt == 0 {
		revokedAt = v.now()
	}
	if revokedAt > MaxTimestamp {
		return fmt.Errorf("%w: revokedAt %d", ErrTimestampRange, revokedAt)
	}

	id, err := s.ID()
	if err != nil {
		return err
	}
	authorized := false
	for _, side := range []Side{Initiator, Approver} {
		if !bytes.Equal(by, s.Record.Account(side)) {
			continue
		}
		if err := v.verifySide(ctx, s, side, id); err == nil {
			authorized = true
			break
		}
	}
	if !authorized {
		return ErrUnauthorized
	}

	s.RevokedAt = revokedAt
	return nil
}

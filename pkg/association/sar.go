package association

import (
	"fmt"

	"github.com/cyphera/cyphera-associations/pkg/signer"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Status is the lifecycle stage of a signed record.
type Status string

const (
	StatusDraft           Status = "draft"
	StatusPartiallySigned Status = "partially_signed"
	StatusFullySigned     Status = "fully_signed"
	StatusStored          Status = "stored"
	StatusRevoked         Status = "revoked"
)

// SAR is a signed association record. The record is never modified once a
// signature exists; only signatures, key types and revokedAt change.
type SAR struct {
	RevokedAt          uint64        `json:"revokedAt"`
	InitiatorKeyType   KeyType       `json:"initiatorKeyType"`
	ApproverKeyType    KeyType       `json:"approverKeyType"`
	InitiatorSignature hexutil.Bytes `json:"initiatorSignature"`
	ApproverSignature  hexutil.Bytes `json:"approverSignature"`
	Record             Record        `json:"record"`

	// Stored is set once the association store has accepted the record.
	Stored bool `json:"-"`
}

// Build returns an unsigned, unrevoked SAR for r.
func Build(r Record) *SAR {
	return &SAR{Record: r}
}

// ID hashes the SAR's record.
func (s *SAR) ID() (common.Hash, error) {
	return ID(s.Record)
}

// Signature returns side's signature and key type.
func (s *SAR) Signature(side Side) ([]byte, KeyType) {
	if side == Approver {
		return s.ApproverSignature, s.ApproverKeyType
	}
	return s.InitiatorSignature, s.InitiatorKeyType
}

func (s *SAR) setSignature(side Side, sig []byte, keyType KeyType) {
	if side == Approver {
		s.ApproverSignature, s.ApproverKeyType = sig, keyType
		return
	}
	s.InitiatorSignature, s.InitiatorKeyType = sig, keyType
}

// Revoked reports whether a revocation timestamp is set.
func (s *SAR) Revoked() bool {
	return s.RevokedAt != 0
}

// Sign signs the record id with signer and records the signature for side.
// The other side is left untouched.
func Sign(s *SAR, side Side, sg signer.Signer, keyType KeyType) error {
	if s.Revoked() {
		return ErrRevoked
	}
	id, err := s.ID()
	if err != nil {
		return err
	}
	sig, err := sg.SignDigest(id)
	if err != nil {
		return fmt.Errorf("sign %s: %w", side, err)
	}
	s.setSignature(side, sig, keyType)
	return nil
}

// UpdateSignature attaches a signature produced elsewhere. record must hash
// to the same id as the SAR's record.
func UpdateSignature(s *SAR, side Side, record Record, sig []byte, keyType KeyType) error {
	if s.Revoked() {
		return ErrRevoked
	}
	want, err := s.ID()
	if err != nil {
		return err
	}
	got, err := ID(record)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("%w: got %s, want %s", ErrRecordMismatch, got.Hex(), want.Hex())
	}
	s.setSignature(side, common.CopyBytes(sig), keyType)
	return nil
}

// Status derives the lifecycle stage from the SAR's fields.
func (s *SAR) Status() Status {
	switch {
	case s.Revoked():
		return StatusRevoked
	case s.Stored:
		return StatusStored
	case len(s.InitiatorSignature) > 0 && len(s.ApproverSignature) > 0:
		return StatusFullySigned
	case len(s.InitiatorSignature) > 0 || len(s.ApproverSignature) > 0:
		return StatusPartiallySigned
	default:
		return StatusDraft
	}
}

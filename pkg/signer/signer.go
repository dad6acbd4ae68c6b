// Package signer holds the digest signers and the signature check shared by
// association records and delegations: ECDSA recovery first, then the
// account's own ERC-1271 entry point when a contract verifier is configured.
package signer

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrMalformedSignature = errors.New("signer: malformed signature")
	ErrSignatureMismatch  = errors.New("signer: signature does not resolve to the expected account")
)

// Signer produces signatures over 32-byte digests.
type Signer interface {
	Address() common.Address
	SignDigest(digest common.Hash) ([]byte, error)
}

// ContractVerifier asks a contract account whether it accepts a signature.
type ContractVerifier interface {
	IsValidSignature(ctx context.Context, account common.Address, digest common.Hash, signature []byte) (bool, error)
}

// PrivateKeySigner signs with an in-memory secp256k1 key.
type PrivateKeySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewPrivateKeySigner wraps key.
func NewPrivateKeySigner(key *ecdsa.PrivateKey) *PrivateKeySigner {
	return &PrivateKeySigner{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

// NewPrivateKeySignerFromHex parses a hex private key, with or without 0x.
func NewPrivateKeySignerFromHex(hexKey string) (*PrivateKeySigner, error) {
	if len(hexKey) >= 2 && hexKey[:2] == "0x" {
		hexKey = hexKey[2:]
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return NewPrivateKeySigner(key), nil
}

// GeneratePrivateKeySigner creates an ephemeral key.
func GeneratePrivateKeySigner() (*PrivateKeySigner, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return NewPrivateKeySigner(key), nil
}

func (s *PrivateKeySigner) Address() common.Address {
	return s.address
}

// PrivateKey exposes the key for transaction signing.
func (s *PrivateKeySigner) PrivateKey() *ecdsa.PrivateKey {
	return s.key
}

// SignDigest returns a 65-byte r‖s‖v signature with v in {27, 28}, the form
// on-chain ecrecover expects.
func (s *PrivateKeySigner) SignDigest(digest common.Hash) ([]byte, error) {
	sig, err := crypto.Sign(digest.Bytes(), s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign digest: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// Recover returns the address that produced sig over digest. Both v
// conventions (0/1 and 27/28) are accepted.
func Recover(digest common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("%w: length %d", ErrMalformedSignature, len(sig))
	}
	normalized := common.CopyBytes(sig)
	if normalized[crypto.RecoveryIDOffset] >= 27 {
		normalized[crypto.RecoveryIDOffset] -= 27
	}
	if normalized[crypto.RecoveryIDOffset] > 1 {
		return common.Address{}, fmt.Errorf("%w: invalid recovery id", ErrMalformedSignature)
	}
	pub, err := crypto.SigToPub(digest.Bytes(), normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Checker decides whether a signature is valid for an account.
type Checker struct {
	// Contracts is optional; without it only ECDSA signatures are accepted.
	Contracts ContractVerifier
}

// Verify returns nil when sig over digest is valid for account.
func (c Checker) Verify(ctx context.Context, account common.Address, digest common.Hash, sig []byte) error {
	recovered, recoverErr := Recover(digest, sig)
	if recoverErr == nil && recovered == account {
		return nil
	}

	if c.Contracts != nil {
		ok, err := c.Contracts.IsValidSignature(ctx, account, digest, sig)
		if err == nil && ok {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: contract check failed: %v", ErrSignatureMismatch, err)
		}
	}

	if recoverErr != nil {
		return fmt.Errorf("%w: %v", ErrSignatureMismatch, recoverErr)
	}
	return fmt.Errorf("%w: recovered %s, expected %s", ErrSignatureMismatch, recovered.Hex(), account.Hex())
}

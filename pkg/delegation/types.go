// Package delegation models chains of constrained authority grants and the
// encodings a delegation manager contract expects: struct hashes, the
// EIP-712 digest a delegator signs, permission contexts, proofs and the
// redeemDelegations payload.
//
// A Chain is ordered leaf first: Chain[0] names the final delegate (the
// redeemer) and Chain[len-1] is the root granted directly by the account.
// This is the order the delegation manager reads permission contexts in.
package delegation

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// RootAuthority marks a delegation granted directly by its delegator.
var RootAuthority = common.HexToHash("0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff")

var (
	ErrEncoding = errors.New("delegation: value out of range for its encoding")

	ErrEmptyChain           = errors.New("delegation: chain is empty")
	ErrRootAuthority        = errors.New("delegation: root link does not carry the root authority")
	ErrRootMismatch         = errors.New("delegation: root delegator is not the expected account")
	ErrBrokenChain          = errors.New("delegation: authority link does not match parent delegation")
	ErrDelegateMismatch     = errors.New("delegation: leaf delegate is not the signer")
	ErrDelegationSignature  = errors.New("delegation: delegator signature is invalid")
	ErrCaveatRejected       = errors.New("delegation: caveat rejected")
	ErrMismatchedRedemption = errors.New("delegation: chains, modes and executions differ in length")
)

// Caveat narrows what a delegate may do. Terms are hashed into the
// delegation; Args are supplied at redemption time and are not.
type Caveat struct {
	Enforcer common.Address `json:"enforcer"`
	Terms    hexutil.Bytes  `json:"terms"`
	Args     hexutil.Bytes  `json:"args"`
}

// Delegation is one link of a chain. Signature is the delegator's signature
// over TypedDigest(HashDelegation(d)) and is excluded from the hash.
type Delegation struct {
	Delegate  common.Address `json:"delegate"`
	Delegator common.Address `json:"delegator"`
	Authority common.Hash    `json:"authority"`
	Caveats   []Caveat       `json:"caveats"`
	Salt      *big.Int       `json:"salt"`
	Signature hexutil.Bytes  `json:"signature"`
}

// IsRoot reports whether d was granted directly by its delegator.
func (d Delegation) IsRoot() bool {
	return d.Authority == RootAuthority
}

// Chain is a list of delegations ordered leaf first.
type Chain []Delegation

// Root returns the root delegation, or nil for an empty chain.
func (c Chain) Root() *Delegation {
	if len(c) == 0 {
		return nil
	}
	return &c[len(c)-1]
}

// Leaf returns the delegation naming the final delegate, or nil.
func (c Chain) Leaf() *Delegation {
	if len(c) == 0 {
		return nil
	}
	return &c[0]
}

// Proof bundles a delegate's signature with the chain that authorizes it.
// It is the signature payload of a DELEGATED association side.
type Proof struct {
	Delegate          common.Address `json:"delegate"`
	DelegateSignature hexutil.Bytes  `json:"delegateSignature"`
	Delegations       Chain          `json:"delegations"`
}

package delegation

import (
	"context"
	"fmt"
	"math/big"

	"github.com/cyphera/cyphera-associations/pkg/signer"
	"github.com/ethereum/go-ethereum/common"
)

// CaveatPredicate decides off-chain whether a caveat is acceptable. On-chain
// enforcement still happens when the chain is redeemed.
type CaveatPredicate func(ctx context.Context, d Delegation, c Caveat) error

// AllowAllCaveats accepts every caveat.
func AllowAllCaveats(context.Context, Delegation, Caveat) error { return nil }

// EnforcersIn rejects caveats whose enforcer is not one of allowed.
func EnforcersIn(allowed ...common.Address) CaveatPredicate {
	set := make(map[common.Address]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	return func(_ context.Context, _ Delegation, c Caveat) error {
		if _, ok := set[c.Enforcer]; !ok {
			return fmt.Errorf("unknown enforcer %s", c.Enforcer.Hex())
		}
		return nil
	}
}

// Verifier checks delegation chains issued against one delegation manager.
type Verifier struct {
	Manager common.Address
	ChainID *big.Int
	// Signatures validates delegator signatures. Configure Contracts on it to
	// accept smart account delegators.
	Signatures signer.Checker
	// Caveats defaults to AllowAllCaveats.
	Caveats CaveatPredicate
}

// VerifyChain checks that chain grants root's authority to leafDelegate.
func (v Verifier) VerifyChain(ctx context.Context, chain Chain, root, leafDelegate common.Address) error {
	if len(chain) == 0 {
		return ErrEmptyChain
	}

	rootLink := chain.Root()
	if !rootLink.IsRoot() {
		return fmt.Errorf("%w: got %s", ErrRootAuthority, rootLink.Authority.Hex())
	}
	if rootLink.Delegator != root {
		return fmt.Errorf("%w: delegator %s, account %s", ErrRootMismatch, rootLink.Delegator.Hex(), root.Hex())
	}

	for i := len(chain) - 2; i >= 0; i-- {
		child, parent := chain[i], chain[i+1]
		parentHash, err := HashDelegation(parent)
		if err != nil {
			return err
		}
		if child.Authority != parentHash {
			return fmt.Errorf("%w: link %d authority %s, parent hash %s", ErrBrokenChain, i, child.Authority.Hex(), parentHash.Hex())
		}
		if child.Delegator != parent.Delegate {
			return fmt.Errorf("%w: link %d delegator %s, parent delegate %s", ErrBrokenChain, i, child.Delegator.Hex(), parent.Delegate.Hex())
		}
	}

	if leaf := chain.Leaf(); leaf.Delegate != leafDelegate {
		return fmt.Errorf("%w: leaf delegate %s, signer %s", ErrDelegateMismatch, leaf.Delegate.Hex(), leafDelegate.Hex())
	}

	caveats := v.Caveats
	if caveats == nil {
		caveats = AllowAllCaveats
	}
	for i, d := range chain {
		digest, err := DelegationDigest(d, v.Manager, v.ChainID)
		if err != nil {
			return err
		}
		if err := v.Signatures.Verify(ctx, d.Delegator, digest, d.Signature); err != nil {
			return fmt.Errorf("%w: link %d: %w", ErrDelegationSignature, i, err)
		}
		for _, c := range d.Caveats {
			if err := caveats(ctx, d, c); err != nil {
				return fmt.Errorf("%w: link %d: %w", ErrCaveatRejected, i, err)
			}
		}
	}
	return nil
}

// VerifyProof checks that p's delegate signed digest and that its chain
// resolves back to account.
func (v Verifier) VerifyProof(ctx context.Context, p Proof, account common.Address, digest common.Hash) error {
	if err := v.Signatures.Verify(ctx, p.Delegate, digest, p.DelegateSignature); err != nil {
		return err
	}
	return v.VerifyChain(ctx, p.Delegations, account, p.Delegate)
}

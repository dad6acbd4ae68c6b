package delegation

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Environment names the caveat enforcer deployments on a chain.
type Environment struct {
	Manager                common.Address `json:"delegationManager"`
	AllowedTargetsEnforcer common.Address `json:"allowedTargetsEnforcer"`
	AllowedMethodsEnforcer common.Address `json:"allowedMethodsEnforcer"`
}

// Scope limits what a delegate may call. Empty fields add no caveat.
type Scope struct {
	Targets   []common.Address
	Selectors [][4]byte
}

// Caveats renders s as enforcer caveats. Terms are the packed target
// addresses and the packed selectors respectively.
func (s Scope) Caveats(env Environment) []Caveat {
	var caveats []Caveat
	if len(s.Targets) > 0 {
		terms := make([]byte, 0, len(s.Targets)*common.AddressLength)
		for _, t := range s.Targets {
			terms = append(terms, t.Bytes()...)
		}
		caveats = append(caveats, Caveat{Enforcer: env.AllowedTargetsEnforcer, Terms: terms})
	}
	if len(s.Selectors) > 0 {
		terms := make([]byte, 0, len(s.Selectors)*4)
		for _, sel := range s.Selectors {
			terms = append(terms, sel[:]...)
		}
		caveats = append(caveats, Caveat{Enforcer: env.AllowedMethodsEnforcer, Terms: terms})
	}
	return caveats
}

// New builds an unsigned delegation from delegator to delegate. A nil parent
// makes a root delegation; otherwise the delegation redelegates parent and
// delegator must be parent's delegate.
func New(env Environment, delegator, delegate common.Address, scope Scope, parent *Delegation, extra ...Caveat) (Delegation, error) {
	authority := RootAuthority
	if parent != nil {
		if parent.Delegate != delegator {
			return Delegation{}, fmt.Errorf("%w: redelegating from %s, parent delegate is %s",
				ErrBrokenChain, delegator.Hex(), parent.Delegate.Hex())
		}
		hash, err := HashDelegation(*parent)
		if err != nil {
			return Delegation{}, err
		}
		authority = hash
	}

	id := uuid.New()
	return Delegation{
		Delegate:  delegate,
		Delegator: delegator,
		Authority: authority,
		Caveats:   append(scope.Caveats(env), extra...),
		Salt:      new(big.Int).SetBytes(id[:]),
	}, nil
}

// Extend returns a new chain with child in front of c.
func (c Chain) Extend(child Delegation) Chain {
	out := make(Chain, 0, len(c)+1)
	out = append(out, child)
	return append(out, c...)
}

package delegation

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

var (
	caveatComponents = []abi.ArgumentMarshaling{
		{Name: "enforcer", Type: "address"},
		{Name: "terms", Type: "bytes"},
		{Name: "args", Type: "bytes"},
	}
	delegationComponents = []abi.ArgumentMarshaling{
		{Name: "delegate", Type: "address"},
		{Name: "delegator", Type: "address"},
		{Name: "authority", Type: "bytes32"},
		{Name: "caveats", Type: "tuple[]", Components: caveatComponents},
		{Name: "salt", Type: "uint256"},
		{Name: "signature", Type: "bytes"},
	}

	bytesType          = mustNewType("bytes", nil)
	delegationListType = mustNewType("tuple[]", delegationComponents)

	chainArgs = abi.Arguments{{Name: "delegations", Type: delegationListType}}
	proofArgs = abi.Arguments{
		{Name: "delegate", Type: addressType},
		{Name: "delegateSignature", Type: bytesType},
		{Name: "delegations", Type: bytesType},
	}
)

// abiCaveat and abiDelegation mirror Caveat and Delegation with the plain
// []byte fields the abi packer requires for bytes.
type abiCaveat struct {
	Enforcer common.Address
	Terms    []byte
	Args     []byte
}

type abiDelegation struct {
	Delegate  common.Address
	Delegator common.Address
	Authority [32]byte
	Caveats   []abiCaveat
	Salt      *big.Int
	Signature []byte
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

// toABI converts c for packing: nil salts become zero, out-of-range salts
// are rejected and nil byte fields become empty.
func (c Chain) toABI() ([]abiDelegation, error) {
	out := make([]abiDelegation, len(c))
	for i, d := range c {
		salt, err := checkUint256(fmt.Sprintf("delegations[%d].salt", i), d.Salt)
		if err != nil {
			return nil, err
		}
		caveats := make([]abiCaveat, len(d.Caveats))
		for j, cv := range d.Caveats {
			caveats[j] = abiCaveat{Enforcer: cv.Enforcer, Terms: nonNil(cv.Terms), Args: nonNil(cv.Args)}
		}
		out[i] = abiDelegation{
			Delegate:  d.Delegate,
			Delegator: d.Delegator,
			Authority: d.Authority,
			Caveats:   caveats,
			Salt:      salt,
			Signature: nonNil(d.Signature),
		}
	}
	return out, nil
}

func chainFromABI(in []abiDelegation) Chain {
	out := make(Chain, len(in))
	for i, d := range in {
		caveats := make([]Caveat, len(d.Caveats))
		for j, cv := range d.Caveats {
			caveats[j] = Caveat{Enforcer: cv.Enforcer, Terms: cv.Terms, Args: cv.Args}
		}
		out[i] = Delegation{
			Delegate:  d.Delegate,
			Delegator: d.Delegator,
			Authority: common.Hash(d.Authority),
			Caveats:   caveats,
			Salt:      d.Salt,
			Signature: d.Signature,
		}
	}
	return out
}

// EncodeChain returns abi.encode(Delegation[]) in chain order, the permission
// context layout the delegation manager decodes.
func EncodeChain(c Chain) ([]byte, error) {
	packed, err := c.toABI()
	if err != nil {
		return nil, err
	}
	encoded, err := chainArgs.Pack(packed)
	if err != nil {
		return nil, fmt.Errorf("%w: permission context: %v", ErrEncoding, err)
	}
	return encoded, nil
}

// DecodeChain parses a permission context produced by EncodeChain.
func DecodeChain(data []byte) (chain Chain, err error) {
	values, err := chainArgs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("decode permission context: %w", err)
	}
	// ConvertType panics on shape mismatches instead of returning an error.
	defer func() {
		if r := recover(); r != nil {
			chain, err = nil, fmt.Errorf("decode permission context: %v", r)
		}
	}()
	decoded := *abi.ConvertType(values[0], new([]abiDelegation)).(*[]abiDelegation)
	return chainFromABI(decoded), nil
}

// EncodeProof returns abi.encode(delegate, delegateSignature, EncodeChain(delegations)).
func EncodeProof(p Proof) ([]byte, error) {
	permissionContext, err := EncodeChain(p.Delegations)
	if err != nil {
		return nil, err
	}
	sig := []byte(p.DelegateSignature)
	if sig == nil {
		sig = []byte{}
	}
	packed, err := proofArgs.Pack(p.Delegate, sig, permissionContext)
	if err != nil {
		return nil, fmt.Errorf("%w: proof: %v", ErrEncoding, err)
	}
	return packed, nil
}

// DecodeProof parses an encoded proof. Anything that is not a well formed
// proof yields nil; callers treat that as a missing delegation.
func DecodeProof(data []byte) *Proof {
	values, err := proofArgs.Unpack(data)
	if err != nil || len(values) != 3 {
		return nil
	}
	delegate, ok := values[0].(common.Address)
	if !ok {
		return nil
	}
	sig, ok := values[1].([]byte)
	if !ok {
		return nil
	}
	permissionContext, ok := values[2].([]byte)
	if !ok {
		return nil
	}
	chain, err := DecodeChain(permissionContext)
	if err != nil {
		return nil
	}
	return &Proof{Delegate: delegate, DelegateSignature: sig, Delegations: chain}
}

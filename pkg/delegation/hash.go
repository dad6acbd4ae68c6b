package delegation

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	caveatTypeString     = "Caveat(address enforcer,bytes terms)"
	delegationTypeString = "Delegation(address delegate,address delegator,bytes32 authority,Caveat[] caveats,uint256 salt)" + caveatTypeString
)

var (
	CaveatTypeHash     = crypto.Keccak256Hash([]byte(caveatTypeString))
	DelegationTypeHash = crypto.Keccak256Hash([]byte(delegationTypeString))

	bytes32Type = mustNewType("bytes32", nil)
	addressType = mustNewType("address", nil)
	uint256Type = mustNewType("uint256", nil)

	caveatPacket     = abi.Arguments{{Type: bytes32Type}, {Type: addressType}, {Type: bytes32Type}}
	delegationPacket = abi.Arguments{
		{Type: bytes32Type},
		{Type: addressType},
		{Type: addressType},
		{Type: bytes32Type},
		{Type: bytes32Type},
		{Type: uint256Type},
	}

	maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

func mustNewType(t string, components []abi.ArgumentMarshaling) abi.Type {
	typ, err := abi.NewType(t, "", components)
	if err != nil {
		panic(fmt.Sprintf("delegation: bad abi type %q: %v", t, err))
	}
	return typ
}

// checkUint256 rejects values the on-chain uint256 cannot hold instead of
// letting the packer wrap them.
func checkUint256(field string, v *big.Int) (*big.Int, error) {
	if v == nil {
		return new(big.Int), nil
	}
	if v.Sign() < 0 || v.Cmp(maxUint256) > 0 {
		return nil, fmt.Errorf("%w: %s=%s", ErrEncoding, field, v.String())
	}
	return v, nil
}

// HashCaveat returns keccak256(abi.encode(CAVEAT_TYPEHASH, enforcer, keccak256(terms))).
func HashCaveat(c Caveat) common.Hash {
	packed, err := caveatPacket.Pack(CaveatTypeHash, c.Enforcer, crypto.Keccak256Hash(c.Terms))
	if err != nil {
		panic(fmt.Sprintf("delegation: packing caveat: %v", err))
	}
	return crypto.Keccak256Hash(packed)
}

// HashCaveats hashes the concatenated caveat hashes in list order.
func HashCaveats(caveats []Caveat) common.Hash {
	buf := make([]byte, 0, len(caveats)*common.HashLength)
	for _, c := range caveats {
		buf = append(buf, HashCaveat(c).Bytes()...)
	}
	return crypto.Keccak256Hash(buf)
}

// HashDelegation returns the EIP-712 struct hash of d.
func HashDelegation(d Delegation) (common.Hash, error) {
	salt, err := checkUint256("salt", d.Salt)
	if err != nil {
		return common.Hash{}, err
	}
	packed, err := delegationPacket.Pack(
		DelegationTypeHash,
		d.Delegate,
		d.Delegator,
		d.Authority,
		HashCaveats(d.Caveats),
		salt,
	)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return crypto.Keccak256Hash(packed), nil
}

package delegation

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

const (
	DomainName    = "DelegationManager"
	DomainVersion = "1"
)

var domainTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
}

// DomainSeparator returns the EIP-712 domain hash of the delegation manager
// deployed at manager on chainID.
func DomainSeparator(manager common.Address, chainID *big.Int) (common.Hash, error) {
	if chainID == nil {
		return common.Hash{}, fmt.Errorf("%w: chainId is required", ErrEncoding)
	}
	if _, err := checkUint256("chainId", chainID); err != nil {
		return common.Hash{}, err
	}

	td := apitypes.TypedData{
		Types: domainTypes,
		Domain: apitypes.TypedDataDomain{
			Name:              DomainName,
			Version:           DomainVersion,
			ChainId:           (*math.HexOrDecimal256)(chainID),
			VerifyingContract: manager.Hex(),
		},
	}
	hash, err := td.HashStruct("EIP712Domain", td.Domain.Map())
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: domain: %v", ErrEncoding, err)
	}
	return common.BytesToHash(hash), nil
}

// TypedDigest returns keccak256(0x1901 ‖ domainSeparator ‖ structHash), the
// digest a delegator signs.
func TypedDigest(manager common.Address, chainID *big.Int, structHash common.Hash) (common.Hash, error) {
	sep, err := DomainSeparator(manager, chainID)
	if err != nil {
		return common.Hash{}, err
	}
	return Digest(sep, structHash), nil
}

// Digest joins a domain separator and a struct hash per EIP-712.
func Digest(domainSeparator, structHash common.Hash) common.Hash {
	return crypto.Keccak256Hash([]byte{0x19, 0x01}, domainSeparator.Bytes(), structHash.Bytes())
}

// DelegationDigest hashes d and returns the digest its delegator signs.
func DelegationDigest(d Delegation, manager common.Address, chainID *big.Int) (common.Hash, error) {
	hash, err := HashDelegation(d)
	if err != nil {
		return common.Hash{}, err
	}
	return TypedDigest(manager, chainID, hash)
}

package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ERC1271MagicValue is returned by isValidSignature for accepted signatures.
var ERC1271MagicValue = [4]byte{0x16, 0x26, 0xba, 0x7e}

const erc1271JSON = `[{
	"type": "function",
	"name": "isValidSignature",
	"stateMutability": "view",
	"inputs": [{"name": "hash", "type": "bytes32"}, {"name": "signature", "type": "bytes"}],
	"outputs": [{"name": "magicValue", "type": "bytes4"}]
}]`

const identityRegistryJSON = `[{
	"type": "function",
	"name": "ownerOf",
	"stateMutability": "view",
	"inputs": [{"name": "tokenId", "type": "uint256"}],
	"outputs": [{"name": "owner", "type": "address"}]
}]`

var (
	ERC1271ABI          = MustParseABI(erc1271JSON)
	IdentityRegistryABI = MustParseABI(identityRegistryJSON)
)

// MustParseABI parses a JSON ABI definition known at compile time.
func MustParseABI(def string) *abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("chain: bad abi: %v", err))
	}
	return &parsed
}

// ContractVerifier asks accounts to validate signatures through ERC-1271.
// It satisfies signer.ContractVerifier.
type ContractVerifier struct {
	Client Client
}

// IsValidSignature calls account.isValidSignature(digest, signature).
// Accounts without code, reverts and any value other than the magic value
// are reported as not valid.
func (v ContractVerifier) IsValidSignature(ctx context.Context, account common.Address, digest common.Hash, signature []byte) (bool, error) {
	out, err := v.Client.Call(ctx, account, ERC1271ABI, "isValidSignature", [32]byte(digest), signature)
	if err != nil {
		return false, err
	}
	if len(out) != 1 {
		return false, fmt.Errorf("isValidSignature: expected one output, got %d", len(out))
	}
	magic, ok := out[0].([4]byte)
	if !ok {
		return false, fmt.Errorf("isValidSignature: unexpected output type %T", out[0])
	}
	return magic == ERC1271MagicValue, nil
}

// OwnerOf returns the holder of an identity registry token.
func OwnerOf(ctx context.Context, client Client, registry common.Address, tokenID *big.Int) (common.Address, error) {
	out, err := client.Call(ctx, registry, IdentityRegistryABI, "ownerOf", tokenID)
	if err != nil {
		return common.Address{}, err
	}
	if len(out) != 1 {
		return common.Address{}, fmt.Errorf("ownerOf: expected one output, got %d", len(out))
	}
	owner, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("ownerOf: unexpected output type %T", out[0])
	}
	return owner, nil
}

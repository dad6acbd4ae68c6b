// Package interop encodes (chain, account) pairs into the self-describing
// interoperable address format (ERC-7930) used as the account identifier in
// association records.
//
// Layout:
//
//	version(2) ‖ chainType(2) ‖ chainRefLen(1) ‖ chainRef ‖ addrLen(1) ‖ address
//
// Only version 1 with the eip155 chain type resolves to a flat EVM address.
// Everything else still decodes, but without an address.
package interop

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	// Version is the only layout version this package produces.
	Version uint16 = 0x0001
	// ChainTypeEIP155 is the CAIP namespace id for EVM chains.
	ChainTypeEIP155 uint16 = 0x0000

	// EVMAddressLength is the addrLen of every EVM account.
	EVMAddressLength = common.AddressLength

	headerLength     = 5
	maxChainRefBytes = 255
)

var (
	ErrInvalidAddress = errors.New("interop: address must be 20 bytes")
	ErrInvalidChainID = errors.New("interop: chain id must be non-negative and fit in 255 bytes")
)

// Decoded is the tolerant result of Decode. ChainID is nil when the chain
// reference could not be read; Address is nil whenever the input is not a
// well-formed single-chain EVM address.
type Decoded struct {
	Version   uint16
	ChainType uint16
	ChainID   *big.Int
	Address   *common.Address
	Raw       []byte
}

// Encode builds the interoperable address for chainID and a 20-byte account.
func Encode(chainID *big.Int, address []byte) ([]byte, error) {
	if chainID == nil || chainID.Sign() < 0 {
		return nil, ErrInvalidChainID
	}
	if len(address) != EVMAddressLength {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidAddress, len(address))
	}

	chainRef := chainID.Bytes()
	if len(chainRef) == 0 {
		chainRef = []byte{0}
	}
	if len(chainRef) > maxChainRefBytes {
		return nil, fmt.Errorf("%w: chain reference is %d bytes", ErrInvalidChainID, len(chainRef))
	}

	out := make([]byte, 0, headerLength+len(chainRef)+1+len(address))
	out = binary.BigEndian.AppendUint16(out, Version)
	out = binary.BigEndian.AppendUint16(out, ChainTypeEIP155)
	out = append(out, byte(len(chainRef)))
	out = append(out, chainRef...)
	out = append(out, byte(len(address)))
	out = append(out, address...)
	return out, nil
}

// EncodeEVM is Encode for callers that already hold a typed address.
func EncodeEVM(chainID uint64, addr common.Address) []byte {
	out, err := Encode(new(big.Int).SetUint64(chainID), addr.Bytes())
	if err != nil {
		// A uint64 chain id and a common.Address are always encodable.
		panic(err)
	}
	return out
}

// Decode parses b without ever failing. Callers must treat a nil Address as
// "foreign or malformed, cannot resolve to a flat address".
func Decode(b []byte) Decoded {
	d := Decoded{Raw: common.CopyBytes(b)}
	if len(b) < headerLength+1 {
		return d
	}

	d.Version = binary.BigEndian.Uint16(b[0:2])
	d.ChainType = binary.BigEndian.Uint16(b[2:4])
	if d.Version != Version {
		return d
	}

	refLen := int(b[4])
	if len(b) < headerLength+refLen+1 {
		return d
	}
	if refLen > 0 {
		d.ChainID = new(big.Int).SetBytes(b[headerLength : headerLength+refLen])
	}

	addrLen := int(b[headerLength+refLen])
	rest := b[headerLength+refLen+1:]
	if len(rest) != addrLen {
		return d
	}
	if d.ChainType != ChainTypeEIP155 || addrLen != EVMAddressLength || d.ChainID == nil {
		return d
	}

	addr := common.BytesToAddress(rest)
	d.Address = &addr
	return d
}

// Parsed reports whether the input resolved to a flat EVM address.
func (d Decoded) Parsed() bool {
	return d.Address != nil
}

// String renders the human readable form (address@eip155:chainId) when the
// address resolved, and the raw hex otherwise.
func (d Decoded) String() string {
	if d.Address == nil || d.ChainID == nil {
		return hexutil.Encode(d.Raw)
	}
	return fmt.Sprintf("%s@eip155:%s", d.Address.Hex(), d.ChainID.String())
}

// FlatAddress is a shortcut returning the resolved EVM address of b.
func FlatAddress(b []byte) (common.Address, bool) {
	d := Decode(b)
	if d.Address == nil {
		return common.Address{}, false
	}
	return *d.Address, true
}

// DisplayAddress returns the checksummed flat address when b resolves, and
// the 0x-hex of the raw bytes otherwise.
func DisplayAddress(b []byte) string {
	if addr, ok := FlatAddress(b); ok {
		return addr.Hex()
	}
	return hexutil.Encode(b)
}

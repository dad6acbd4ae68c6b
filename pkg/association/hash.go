package association

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

const (
	DomainName    = "AssociatedAccounts"
	DomainVersion = "1"

	recordType = "AssociatedAccountRecord"
)

var typedDataTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
	},
	recordType: {
		{Name: "initiator", Type: "bytes"},
		{Name: "approver", Type: "bytes"},
		{Name: "validAt", Type: "uint40"},
		{Name: "validUntil", Type: "uint40"},
		{Name: "interfaceId", Type: "bytes4"},
		{Name: "data", Type: "bytes"},
	},
}

func typedData(r Record) apitypes.TypedData {
	return apitypes.TypedData{
		Types:       typedDataTypes,
		PrimaryType: recordType,
		Domain: apitypes.TypedDataDomain{
			Name:    DomainName,
			Version: DomainVersion,
		},
		Message: apitypes.TypedDataMessage{
			"initiator":   []byte(r.Initiator),
			"approver":    []byte(r.Approver),
			"validAt":     new(big.Int).SetUint64(r.ValidAt),
			"validUntil":  new(big.Int).SetUint64(r.ValidUntil),
			"interfaceId": hexutil.Encode(r.InterfaceID[:]),
			"data":        []byte(r.Data),
		},
	}
}

func checkTimestamps(r Record) error {
	if r.ValidAt > MaxTimestamp {
		return fmt.Errorf("%w: validAt %d", ErrTimestampRange, r.ValidAt)
	}
	if r.ValidUntil > MaxTimestamp {
		return fmt.Errorf("%w: validUntil %d", ErrTimestampRange, r.ValidUntil)
	}
	return nil
}

// Preimage returns 0x1901 ‖ domainSeparator ‖ structHash for r.
func Preimage(r Record) ([]byte, error) {
	if err := checkTimestamps(r); err != nil {
		return nil, err
	}
	td := typedData(r)
	domainSeparator, err := td.HashStruct("EIP712Domain", td.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("hash association domain: %w", err)
	}
	structHash, err := td.HashStruct(td.PrimaryType, td.Message)
	if err != nil {
		return nil, fmt.Errorf("hash association record: %w", err)
	}

	out := make([]byte, 0, 2+2*common.HashLength)
	out = append(out, 0x19, 0x01)
	out = append(out, domainSeparator...)
	return append(out, structHash...), nil
}

// ID returns the association id of r: the EIP-712 digest both parties sign
// and the key the store indexes the record under.
func ID(r Record) (common.Hash, error) {
	preimage, err := Preimage(r)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(preimage), nil
}

// ContentID expresses an association id as a CIDv1 over the raw EIP-712
// preimage with a keccak-256 multihash. The digest is the id itself.
func ContentID(id common.Hash) (cid.Cid, error) {
	mh, err := multihash.Encode(id.Bytes(), multihash.KECCAK_256)
	if err != nil {
		return cid.Undef, fmt.Errorf("encode multihash: %w", err)
	}
	return cid.NewCidV1(cid.Raw, mh), nil
}

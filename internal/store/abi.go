package store

import (
	"fmt"
	"math/big"

	"github.com/cyphera/cyphera-associations/internal/chain"
	"github.com/cyphera/cyphera-associations/pkg/association"
)

const storeJSON = `[
	{
		"type": "function",
		"name": "getAssociationsForAccount",
		"stateMutability": "view",
		"inputs": [{"name": "account", "type": "bytes"}],
		"outputs": [{"name": "", "type": "tuple[]", "components": [
			{"name": "revokedAt", "type": "uint40"},
			{"name": "initiatorKeyType", "type": "bytes2"},
			{"name": "approverKeyType", "type": "bytes2"},
			{"name": "initiatorSignature", "type": "bytes"},
			{"name": "approverSignature", "type": "bytes"},
			{"name": "record", "type": "tuple", "components": [
				{"name": "initiator", "type": "bytes"},
				{"name": "approver", "type": "bytes"},
				{"name": "validAt", "type": "uint40"},
				{"name": "validUntil", "type": "uint40"},
				{"name": "interfaceId", "type": "bytes4"},
				{"name": "data", "type": "bytes"}
			]}
		]}]
	},
	{
		"type": "function",
		"name": "storeAssociation",
		"stateMutability": "nonpayable",
		"inputs": [{"name": "sar", "type": "tuple", "components": [
			{"name": "revokedAt", "type": "uint40"},
			{"name": "initiatorKeyType", "type": "bytes2"},
			{"name": "approverKeyType", "type": "bytes2"},
			{"name": "initiatorSignature", "type": "bytes"},
			{"name": "approverSignature", "type": "bytes"},
			{"name": "record", "type": "tuple", "components": [
				{"name": "initiator", "type": "bytes"},
				{"name": "approver", "type": "bytes"},
				{"name": "validAt", "type": "uint40"},
				{"name": "validUntil", "type": "uint40"},
				{"name": "interfaceId", "type": "bytes4"},
				{"name": "data", "type": "bytes"}
			]}
		]}],
		"outputs": []
	},
	{
		"type": "function",
		"name": "revokeAssociation",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "associationId", "type": "bytes32"},
			{"name": "revokedAt", "type": "uint40"}
		],
		"outputs": []
	}
]`

// StoreABI is the association store contract interface.
var StoreABI = chain.MustParseABI(storeJSON)

// Field order and types mirror the tuple components; unpacking is positional.
type abiRecord struct {
	Initiator   []byte
	Approver    []byte
	ValidAt     *big.Int
	ValidUntil  *big.Int
	InterfaceId [4]byte //nolint:revive // matches the abi component name
	Data        []byte
}

type abiSAR struct {
	RevokedAt          *big.Int
	InitiatorKeyType   [2]byte
	ApproverKeyType    [2]byte
	InitiatorSignature []byte
	ApproverSignature  []byte
	Record             abiRecord
}

func keyTypeBytes(k association.KeyType) [2]byte {
	return [2]byte{byte(k >> 8), byte(k)}
}

func keyTypeFrom(b [2]byte) association.KeyType {
	return association.KeyType(uint16(b[0])<<8 | uint16(b[1]))
}

func orEmpty(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

func toABI(s *association.SAR) (abiSAR, error) {
	for name, v := range map[string]uint64{
		"revokedAt":  s.RevokedAt,
		"validAt":    s.Record.ValidAt,
		"validUntil": s.Record.ValidUntil,
	} {
		if v > association.MaxTimestamp {
			return abiSAR{}, fmt.Errorf("%w: %s %d", association.ErrTimestampRange, name, v)
		}
	}
	return abiSAR{
		RevokedAt:          new(big.Int).SetUint64(s.RevokedAt),
		InitiatorKeyType:   keyTypeBytes(s.InitiatorKeyType),
		ApproverKeyType:    keyTypeBytes(s.ApproverKeyType),
		InitiatorSignature: orEmpty(s.InitiatorSignature),
		ApproverSignature:  orEmpty(s.ApproverSignature),
		Record: abiRecord{
			Initiator:   orEmpty(s.Record.Initiator),
			Approver:    orEmpty(s.Record.Approver),
			ValidAt:     new(big.Int).SetUint64(s.Record.ValidAt),
			ValidUntil:  new(big.Int).SetUint64(s.Record.ValidUntil),
			InterfaceId: s.Record.InterfaceID,
			Data:        orEmpty(s.Record.Data),
		},
	}, nil
}

func fromABI(a abiSAR) *association.SAR {
	return &association.SAR{
		RevokedAt:          a.RevokedAt.Uint64(),
		InitiatorKeyType:   keyTypeFrom(a.InitiatorKeyType),
		ApproverKeyType:    keyTypeFrom(a.ApproverKeyType),
		InitiatorSignature: a.InitiatorSignature,
		ApproverSignature:  a.ApproverSignature,
		Record: association.Record{
			Initiator:   a.Record.Initiator,
			Approver:    a.Record.Approver,
			ValidAt:     a.Record.ValidAt.Uint64(),
			ValidUntil:  a.Record.ValidUntil.Uint64(),
			InterfaceID: a.Record.InterfaceId,
			Data:        a.Record.Data,
		},
		Stored: true,
	}
}

// Package association implements associated account records: the canonical
// record hash both accounts sign, the signed record lifecycle and its
// validation against direct (K1) and delegated signatures.
package association

import (
	"fmt"

	"github.com/cyphera/cyphera-associations/pkg/interop"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// MaxTimestamp is the largest value a uint40 record timestamp can hold.
const MaxTimestamp = 1<<40 - 1

// KeyType selects how a side's signature is validated.
type KeyType uint16

const (
	KeyTypeK1        KeyType = 0x0001
	KeyTypeDelegated KeyType = 0x8002
)

func (k KeyType) String() string {
	switch k {
	case KeyTypeK1:
		return "K1"
	case KeyTypeDelegated:
		return "DELEGATED"
	default:
		return fmt.Sprintf("0x%04x", uint16(k))
	}
}

// Side names one of the two parties of a record.
type Side int

const (
	Initiator Side = iota
	Approver
)

func (s Side) String() string {
	if s == Approver {
		return "approver"
	}
	return "initiator"
}

func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Side) UnmarshalText(input []byte) error {
	switch string(input) {
	case "initiator":
		*s = Initiator
	case "approver":
		*s = Approver
	default:
		return fmt.Errorf("unknown side %q", input)
	}
	return nil
}

// InterfaceID is a bytes4 interface selector, hex encoded in JSON.
type InterfaceID [4]byte

func (id InterfaceID) MarshalText() ([]byte, error) {
	return hexutil.Bytes(id[:]).MarshalText()
}

func (id *InterfaceID) UnmarshalText(input []byte) error {
	return hexutil.UnmarshalFixedText("InterfaceID", input, id[:])
}

// Record is an associated account record. Initiator and Approver are
// interoperable addresses. ValidAt 0 means valid immediately and
// ValidUntil 0 means it never expires.
type Record struct {
	Initiator   hexutil.Bytes `json:"initiator"`
	Approver    hexutil.Bytes `json:"approver"`
	ValidAt     uint64        `json:"validAt"`
	ValidUntil  uint64        `json:"validUntil"`
	InterfaceID InterfaceID   `json:"interfaceId"`
	Data        hexutil.Bytes `json:"data"`
}

// Account returns the interoperable address of side.
func (r Record) Account(side Side) []byte {
	if side == Approver {
		return r.Approver
	}
	return r.Initiator
}

// ActiveAt reports whether unix time now falls inside the validity window.
func (r Record) ActiveAt(now uint64) bool {
	if now < r.ValidAt {
		return false
	}
	return r.ValidUntil == 0 || now < r.ValidUntil
}

// Decoded parses both sides.
func (r Record) Decoded() (initiator, approver interop.Decoded) {
	return interop.Decode(r.Initiator), interop.Decode(r.Approver)
}

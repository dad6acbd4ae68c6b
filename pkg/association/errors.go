package association

import (
	"errors"

	"github.com/cyphera/cyphera-associations/pkg/delegation"
	"github.com/cyphera/cyphera-associations/pkg/signer"
)

var (
	ErrTimestampRange = errors.New("association: timestamp does not fit uint40")

	ErrRevoked          = errors.New("association: record is revoked")
	ErrAlreadyRevoked   = errors.New("association: record is already revoked")
	ErrNotStored        = errors.New("association: record has not been stored")
	ErrUnauthorized     = errors.New("association: revoker is not an authorized party")
	ErrRecordMismatch   = errors.New("association: record does not hash to this association id")
	ErrMissingSignature = errors.New("association: side is not signed")

	ErrUnresolvableAccount = errors.New("association: account is not an EVM interoperable address")
	ErrUnsupportedKeyType  = errors.New("association: unsupported key type")
	ErrMissingDelegation   = errors.New("association: delegated signature carries no delegation chain")
)

// Validation reasons shared with the signature and delegation packages.
var (
	ErrSignatureMismatch = signer.ErrSignatureMismatch
	ErrBrokenChain       = delegation.ErrBrokenChain
	ErrRootMismatch      = delegation.ErrRootMismatch
	ErrDelegateMismatch  = delegation.ErrDelegateMismatch
	ErrCaveatRejected    = delegation.ErrCaveatRejected
)

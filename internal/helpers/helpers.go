package helpers

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Stage constants define the possible deployment/runtime environments.
const (
	StageProd  = "prod"
	StageDev   = "dev"
	StageLocal = "local"
)

// IsValidStage checks if the provided stage string is one of the defined valid stages.
func IsValidStage(stage string) bool {
	switch stage {
	case StageProd, StageDev, StageLocal:
		return true
	default:
		return false
	}
}

// IsAddressValid checks for a 0x-prefixed 20 byte hex address.
func IsAddressValid(address string) bool {
	return strings.HasPrefix(address, "0x") && common.IsHexAddress(address)
}

// IsPrivateKeyValid checks for a 0x-prefixed 32 byte hex key
func IsPrivateKeyValid(key string) bool {
	if len(key) != 66 || !strings.HasPrefix(key, "0x") {
		return false
	}
	for _, c := range key[2:] {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}

// ParseChainID parses a positive decimal or 0x-prefixed chain id.
func ParseChainID(s string) (*big.Int, bool) {
	base := 10
	if strings.HasPrefix(s, "0x") {
		s, base = s[2:], 16
	}
	if s == "" {
		return nil, false
	}
	id, ok := new(big.Int).SetString(s, base)
	if !ok || id.Sign() <= 0 {
		return nil, false
	}
	return id, true
}

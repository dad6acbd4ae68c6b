package delegation

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
)

const managerABIJSON = `[
	{
		"type": "function",
		"name": "redeemDelegations",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "_permissionContexts", "type": "bytes[]"},
			{"name": "_modes", "type": "bytes32[]"},
			{"name": "_executionCallDatas", "type": "bytes[]"}
		],
		"outputs": []
	},
	{
		"type": "function",
		"name": "getDomainHash",
		"stateMutability": "view",
		"inputs": [],
		"outputs": [{"name": "", "type": "bytes32"}]
	}
]`

// ManagerABI is the subset of the delegation manager interface this package
// encodes for.
var ManagerABI = mustParseABI(managerABIJSON)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("delegation: bad abi: %v", err))
	}
	return parsed
}

// Mode is an ERC-7579 execution mode word. Only the call type byte is set.
type Mode [32]byte

var (
	ModeSingle = Mode{}
	ModeBatch  = Mode{0x01}
)

// Execution is one call a redeemed delegation performs on behalf of the
// root delegator.
type Execution struct {
	Target   common.Address `json:"target"`
	Value    *big.Int       `json:"value"`
	CallData []byte         `json:"callData"`
}

var executionListArgs = abi.Arguments{{Type: mustNewType("tuple[]", []abi.ArgumentMarshaling{
	{Name: "target", Type: "address"},
	{Name: "value", Type: "uint256"},
	{Name: "callData", Type: "bytes"},
})}}

// EncodeExecutions returns the execution calldata for mode: target ‖ value ‖
// callData for ModeSingle, abi.encode(Execution[]) for ModeBatch.
func EncodeExecutions(mode Mode, executions []Execution) ([]byte, error) {
	normalized := make([]Execution, len(executions))
	for i, e := range executions {
		value, err := checkUint256(fmt.Sprintf("executions[%d].value", i), e.Value)
		if err != nil {
			return nil, err
		}
		e.Value = value
		if e.CallData == nil {
			e.CallData = []byte{}
		}
		normalized[i] = e
	}

	switch mode {
	case ModeSingle:
		if len(normalized) != 1 {
			return nil, fmt.Errorf("%w: single mode takes one execution, got %d", ErrEncoding, len(normalized))
		}
		e := normalized[0]
		out := make([]byte, 0, common.AddressLength+32+len(e.CallData))
		out = append(out, e.Target.Bytes()...)
		out = append(out, math.U256Bytes(new(big.Int).Set(e.Value))...)
		return append(out, e.CallData...), nil
	case ModeBatch:
		packed, err := executionListArgs.Pack(normalized)
		if err != nil {
			return nil, fmt.Errorf("%w: batch executions: %v", ErrEncoding, err)
		}
		return packed, nil
	default:
		return nil, fmt.Errorf("%w: unsupported call type 0x%02x", ErrEncoding, mode[0])
	}
}

// EncodeRedemption builds calldata for
// redeemDelegations(bytes[],bytes32[],bytes[]). Chain i authorizes the
// executions at index i under modes[i].
func EncodeRedemption(chains []Chain, modes []Mode, executions [][]Execution) ([]byte, error) {
	if len(chains) != len(modes) || len(chains) != len(executions) {
		return nil, fmt.Errorf("%w: %d chains, %d modes, %d executions",
			ErrMismatchedRedemption, len(chains), len(modes), len(executions))
	}

	contexts := make([][]byte, len(chains))
	modeWords := make([][32]byte, len(modes))
	callDatas := make([][]byte, len(executions))
	for i := range chains {
		ctx, err := EncodeChain(chains[i])
		if err != nil {
			return nil, fmt.Errorf("redemption %d: %w", i, err)
		}
		contexts[i] = ctx
		modeWords[i] = modes[i]
		callData, err := EncodeExecutions(modes[i], executions[i])
		if err != nil {
			return nil, fmt.Errorf("redemption %d: %w", i, err)
		}
		callDatas[i] = callData
	}

	data, err := ManagerABI.Pack("redeemDelegations", contexts, modeWords, callDatas)
	if err != nil {
		return nil, fmt.Errorf("%w: redeemDelegations: %v", ErrEncoding, err)
	}
	return data, nil
}

// EncodeSingleRedemption is the common case: one chain authorizing one call.
func EncodeSingleRedemption(chain Chain, execution Execution) ([]byte, error) {
	return EncodeRedemption([]Chain{chain}, []Mode{ModeSingle}, [][]Execution{{execution}})
}

package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/cyphera/cyphera-associations/internal/client/relay"
	"github.com/cyphera/cyphera-associations/internal/logger"
)

// Backend is the subset of ethclient.Client the adapter uses.
type Backend interface {
	ethereum.ContractCaller
	ethereum.GasEstimator
	ethereum.TransactionSender
	ethereum.TransactionReader
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// EthClient implements Client over an RPC node. Transactions are signed
// locally and, when a relay is configured, broadcast and tracked through it.
type EthClient struct {
	backend Backend
	chainID *big.Int
	key     *ecdsa.PrivateKey
	from    common.Address
	relay   *relay.Client
	log     *zap.Logger
}

// EthOption configures an EthClient.
type EthOption func(*EthClient)

// WithTransactionKey sets the key that signs outgoing transactions.
func WithTransactionKey(key *ecdsa.PrivateKey) EthOption {
	return func(c *EthClient) {
		c.key = key
		c.from = crypto.PubkeyToAddress(key.PublicKey)
	}
}

// WithRelay broadcasts transactions and polls receipts through r.
func WithRelay(r *relay.Client) EthOption {
	return func(c *EthClient) {
		c.relay = r
	}
}

// WithLogger sets the logger; the global logger is used otherwise.
func WithLogger(l *zap.Logger) EthOption {
	return func(c *EthClient) {
		c.log = l
	}
}

// Dial connects to rpcURL and reads its chain id.
func Dial(ctx context.Context, rpcURL string, opts ...EthOption) (*EthClient, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to connect to rpc")
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, pkgerrors.Wrap(err, "failed to read chain id")
	}
	return NewEthClient(client, chainID, opts...), nil
}

// NewEthClient wraps an existing backend.
func NewEthClient(backend Backend, chainID *big.Int, opts ...EthOption) *EthClient {
	c := &EthClient{backend: backend, chainID: new(big.Int).Set(chainID)}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logger.OrGlobal(c.log).With(zap.String("chain_id", chainID.String()))
	return c
}

func (c *EthClient) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// Ping reads the latest header to confirm the node answers.
func (c *EthClient) Ping(ctx context.Context) error {
	if _, err := c.backend.HeaderByNumber(ctx, nil); err != nil {
		return pkgerrors.Wrap(err, "failed to read latest header")
	}
	return nil
}

// From returns the transaction sender, zero without a key.
func (c *EthClient) From() common.Address {
	return c.from
}

func (c *EthClient) EncodeFunctionData(contractABI *abi.ABI, method string, args ...interface{}) ([]byte, error) {
	return EncodeFunctionData(contractABI, method, args...)
}

// Call performs an eth_call against the latest block and unpacks the result.
// Calls to accounts without code return no data, which fails to unpack.
func (c *EthClient) Call(ctx context.Context, contract common.Address, contractABI *abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := EncodeFunctionData(contractABI, method, args...)
	if err != nil {
		return nil, err
	}
	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{From: c.from, To: &contract, Data: data}, nil)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "call %s on %s", method, contract.Hex())
	}
	values, err := contractABI.Unpack(method, out)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "unpack %s from %s", method, contract.Hex())
	}
	return values, nil
}

// SendTransaction signs and broadcasts an EIP-1559 transaction using the
// node's fee suggestions.
func (c *EthClient) SendTransaction(ctx context.Context, to common.Address, data []byte, value *big.Int) (common.Hash, error) {
	if c.key == nil {
		return common.Hash{}, ErrNoSigner
	}
	if value == nil {
		value = new(big.Int)
	}

	nonce, err := c.backend.PendingNonceAt(ctx, c.from)
	if err != nil {
		return common.Hash{}, pkgerrors.Wrap(err, "failed to get nonce")
	}
	tip, err := c.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return common.Hash{}, pkgerrors.Wrap(err, "failed to suggest gas tip")
	}
	head, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, pkgerrors.Wrap(err, "failed to get latest header")
	}
	feeCap := new(big.Int).Set(tip)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}
	gas, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:      c.from,
		To:        &to,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Value:     value,
		Data:      data,
	})
	if err != nil {
		return common.Hash{}, pkgerrors.Wrap(err, "failed to estimate gas")
	}

	tx, err := types.SignNewTx(c.key, types.LatestSignerForChainID(c.chainID), &types.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      data,
	})
	if err != nil {
		return common.Hash{}, pkgerrors.Wrap(err, "failed to sign transaction")
	}

	if c.relay != nil {
		raw, err := tx.MarshalBinary()
		if err != nil {
			return common.Hash{}, pkgerrors.Wrap(err, "failed to encode transaction")
		}
		if _, err := c.relay.SendRawTransaction(ctx, raw); err != nil {
			return common.Hash{}, pkgerrors.Wrap(err, "relay rejected transaction")
		}
	} else if err := c.backend.SendTransaction(ctx, tx); err != nil {
		return common.Hash{}, pkgerrors.Wrap(err, "failed to send transaction")
	}

	c.log.Info("Transaction sent",
		zap.String("tx_hash", tx.Hash().Hex()),
		zap.String("to", to.Hex()),
		zap.Uint64("nonce", nonce),
		zap.Uint64("gas", gas))
	return tx.Hash(), nil
}

// Receipt returns the receipt of hash or nil while pending.
func (c *EthClient) Receipt(ctx context.Context, hash common.Hash) (*Receipt, error) {
	if c.relay != nil {
		r, err := c.relay.Receipt(ctx, hash)
		if err != nil || r == nil {
			return nil, err
		}
		return &Receipt{TransactionHash: r.TransactionHash, BlockNumber: r.BlockNumber, Success: r.Success}, nil
	}

	r, err := c.backend.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to get receipt")
	}
	return &Receipt{
		TransactionHash: r.TxHash,
		BlockNumber:     r.BlockNumber,
		Success:         r.Status == types.ReceiptStatusSuccessful,
	}, nil
}

// Package relay talks JSON-RPC to a transaction relay (or any node endpoint)
// over the shared HTTP client, which supplies retries and rate limiting.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	httpClient "github.com/cyphera/cyphera-associations/internal/client/http"
	"github.com/cyphera/cyphera-associations/internal/logger"
)

var ErrMalformedReceipt = errors.New("relay: receipt has no transaction hash")

// RPCError is an error object returned by the endpoint.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("relay rpc error %d: %s", e.Code, e.Message)
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// Receipt is the subset of a transaction receipt callers need.
type Receipt struct {
	TransactionHash common.Hash
	BlockNumber     *big.Int
	Success         bool
}

// Client is a JSON-RPC relay client.
type Client struct {
	http   *httpClient.HTTPClient
	nextID atomic.Uint64
	log    *zap.Logger
}

// NewClient creates a client for the relay at url. Options are passed to
// the underlying HTTP client.
func NewClient(url string, options ...httpClient.ClientOption) *Client {
	opts := append([]httpClient.ClientOption{httpClient.WithBaseURL(url)}, options...)
	return &Client{
		http: httpClient.NewHTTPClient(opts...),
		log:  logger.Log.Named("relay"),
	}
}

// Call invokes method and decodes the result into out. A null result leaves
// out untouched and reports found=false.
func (c *Client) Call(ctx context.Context, out interface{}, method string, params ...interface{}) (found bool, err error) {
	if params == nil {
		params = []interface{}{}
	}
	req := rpcRequest{JSONRPC: "2.0", ID: c.nextID.Add(1), Method: method, Params: params}

	resp, err := c.http.Post(ctx, "", req)
	if err != nil {
		return false, fmt.Errorf("%s: %w", method, err)
	}
	var decoded rpcResponse
	if err := c.http.ProcessJSONResponse(resp, &decoded); err != nil {
		return false, fmt.Errorf("%s: decode response: %w", method, err)
	}
	if decoded.Error != nil {
		return false, decoded.Error
	}
	if len(decoded.Result) == 0 || string(decoded.Result) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(decoded.Result, out); err != nil {
		return false, fmt.Errorf("%s: decode result: %w", method, err)
	}
	return true, nil
}

// SendRawTransaction broadcasts a signed transaction.
func (c *Client) SendRawTransaction(ctx context.Context, rawTx []byte) (common.Hash, error) {
	var hash common.Hash
	found, err := c.Call(ctx, &hash, "eth_sendRawTransaction", hexutil.Encode(rawTx))
	if err != nil {
		return common.Hash{}, err
	}
	if !found {
		return common.Hash{}, errors.New("relay: eth_sendRawTransaction returned no hash")
	}
	c.log.Info("relayed transaction", zap.String("tx_hash", hash.Hex()))
	return hash, nil
}

type rawReceipt struct {
	TransactionHash *common.Hash    `json:"transactionHash"`
	BlockNumber     *hexutil.Big    `json:"blockNumber"`
	Status          *hexutil.Uint64 `json:"status"`
	Success         *bool           `json:"success"`
	Receipt         *rawReceipt     `json:"receipt"`
}

func (r *rawReceipt) resolve() (*Receipt, error) {
	out := &Receipt{}
	nested := r.Receipt
	switch {
	case r.TransactionHash != nil:
		out.TransactionHash = *r.TransactionHash
	case nested != nil && nested.TransactionHash != nil:
		out.TransactionHash = *nested.TransactionHash
	default:
		return nil, ErrMalformedReceipt
	}

	if r.BlockNumber != nil {
		out.BlockNumber = r.BlockNumber.ToInt()
	} else if nested != nil && nested.BlockNumber != nil {
		out.BlockNumber = nested.BlockNumber.ToInt()
	}

	switch {
	case r.Success != nil:
		out.Success = *r.Success
	case r.Status != nil:
		out.Success = *r.Status == 1
	case nested != nil && nested.Status != nil:
		out.Success = *nested.Status == 1
	}
	return out, nil
}

// Receipt returns the receipt for hash, or nil while it is pending.
// Receipts that nest the transaction fields under "receipt" are accepted.
func (c *Client) Receipt(ctx context.Context, hash common.Hash) (*Receipt, error) {
	var raw rawReceipt
	found, err := c.Call(ctx, &raw, "eth_getTransactionReceipt", hash)
	if err != nil || !found {
		return nil, err
	}
	return raw.resolve()
}

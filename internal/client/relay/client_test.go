package relay_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpClient "github.com/cyphera/cyphera-associations/internal/client/http"
	"github.com/cyphera/cyphera-associations/internal/client/relay"
	"github.com/cyphera/cyphera-associations/internal/logger"
)

func init() {
	logger.InitLogger("test")
}

var txHash = common.HexToHash("0x5f0c8b3bdf0a0e9bd1f4d0d0b36e0b8f6d3b0f4f2d7f2b5e1b3f1d6c4a2e9b01")

func fastRetries() httpClient.ClientOption {
	return httpClient.WithRetryConfig(&httpClient.RetryConfig{
		MaxRetries:           3,
		InitialInterval:      time.Millisecond,
		MaxInterval:          5 * time.Millisecond,
		Multiplier:           2,
		MaxElapsedTime:       time.Second,
		RetryableStatusCodes: []int{http.StatusTooManyRequests, http.StatusServiceUnavailable},
	})
}

type rpcCall struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

func rpcServer(t *testing.T, handle func(call rpcCall) string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var call rpcCall
		require.NoError(t, json.Unmarshal(body, &call))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, handle(call))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSendRawTransaction(t *testing.T) {
	srv := rpcServer(t, func(call rpcCall) string {
		assert.Equal(t, "eth_sendRawTransaction", call.Method)
		require.Len(t, call.Params, 1)
		assert.Equal(t, `"0x02f8"`, string(call.Params[0]))
		return `{"jsonrpc":"2.0","id":1,"result":"` + txHash.Hex() + `"}`
	})

	c := relay.NewClient(srv.URL, fastRetries())
	got, err := c.SendRawTransaction(context.Background(), []byte{0x02, 0xf8})
	require.NoError(t, err)
	assert.Equal(t, txHash, got)
}

func TestReceipt_Shapes(t *testing.T) {
	tests := []struct {
		name    string
		result  string
		want    *relay.Receipt
		wantErr error
	}{
		{
			name:   "flat receipt",
			result: `{"transactionHash":"` + txHash.Hex() + `","blockNumber":"0x10","status":"0x1"}`,
			want:   &relay.Receipt{TransactionHash: txHash, Success: true},
		},
		{
			name:   "nested receipt",
			result: `{"success":false,"receipt":{"transactionHash":"` + txHash.Hex() + `","blockNumber":"0x10","status":"0x1"}}`,
			want:   &relay.Receipt{TransactionHash: txHash, Success: false},
		},
		{
			name:   "pending",
			result: `null`,
		},
		{
			name:    "no hash anywhere",
			result:  `{"status":"0x1"}`,
			wantErr: relay.ErrMalformedReceipt,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := rpcServer(t, func(call rpcCall) string {
				assert.Equal(t, "eth_getTransactionReceipt", call.Method)
				return `{"jsonrpc":"2.0","id":1,"result":` + tt.result + `}`
			})
			got, err := relay.NewClient(srv.URL, fastRetries()).Receipt(context.Background(), txHash)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want.TransactionHash, got.TransactionHash)
			assert.Equal(t, tt.want.Success, got.Success)
			assert.Equal(t, int64(16), got.BlockNumber.Int64())
		})
	}
}

func TestCall_RPCError(t *testing.T) {
	srv := rpcServer(t, func(rpcCall) string {
		return `{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"nonce too low"}}`
	})

	_, err := relay.NewClient(srv.URL, fastRetries()).SendRawTransaction(context.Background(), []byte{0x01})
	var rpcErr *relay.RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -32000, rpcErr.Code)
}

func TestCall_RetriesRetryableStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"jsonrpc":"2.0","id":1,"result":"`+txHash.Hex()+`"}`)
	}))
	defer srv.Close()

	got, err := relay.NewClient(srv.URL, fastRetries()).SendRawTransaction(context.Background(), []byte{0x01})
	require.NoError(t, err)
	assert.Equal(t, txHash, got)
	assert.Equal(t, int32(3), calls.Load())
}

func TestCall_NonRetryableStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, "bad request")
	}))
	defer srv.Close()

	_, err := relay.NewClient(srv.URL, fastRetries()).SendRawTransaction(context.Background(), []byte{0x01})
	var httpErr *httpClient.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

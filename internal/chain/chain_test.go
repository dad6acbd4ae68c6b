package chain_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/cyphera/cyphera-associations/internal/chain"
	"github.com/cyphera/cyphera-associations/internal/logger"
	"github.com/cyphera/cyphera-associations/internal/mocks"
)

func init() {
	logger.InitLogger("test")
}

var (
	txHash  = common.HexToHash("0xabc1")
	account = common.HexToAddress("0x1111111111111111111111111111111111111111")
)

func fastPoll(timeout time.Duration) chain.PollConfig {
	return chain.PollConfig{Timeout: timeout, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}
}

func TestWaitForReceipt(t *testing.T) {
	ctx := context.Background()

	t.Run("pending then mined", func(t *testing.T) {
		client := mocks.NewMockClientForTest(t)
		gomock.InOrder(
			client.EXPECT().Receipt(gomock.Any(), txHash).Return(nil, nil).Times(2),
			client.EXPECT().Receipt(gomock.Any(), txHash).Return(&chain.Receipt{TransactionHash: txHash, Success: true}, nil),
		)

		r, err := chain.WaitForReceipt(ctx, client, txHash, fastPoll(time.Second))
		require.NoError(t, err)
		assert.Equal(t, txHash, r.TransactionHash)
	})

	t.Run("reverted", func(t *testing.T) {
		client := mocks.NewMockClientForTest(t)
		client.EXPECT().Receipt(gomock.Any(), txHash).Return(&chain.Receipt{TransactionHash: txHash}, nil)

		r, err := chain.WaitForReceipt(ctx, client, txHash, fastPoll(time.Second))
		assert.ErrorIs(t, err, chain.ErrReverted)
		assert.NotNil(t, r)
	})

	t.Run("timeout is an unknown outcome", func(t *testing.T) {
		client := mocks.NewMockClientForTest(t)
		client.EXPECT().Receipt(gomock.Any(), txHash).Return(nil, errors.New("connection refused")).AnyTimes()

		_, err := chain.WaitForReceipt(ctx, client, txHash, fastPoll(30*time.Millisecond))
		assert.ErrorIs(t, err, chain.ErrOutcomeUnknown)

		var unknown *chain.OutcomeUnknownError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, txHash, unknown.Hash)
	})
}

func TestContractVerifier(t *testing.T) {
	ctx := context.Background()
	digest := crypto.Keccak256Hash([]byte("digest"))
	sig := []byte{0x01}

	tests := []struct {
		name   string
		out    []interface{}
		err    error
		want   bool
		hasErr bool
	}{
		{name: "magic value", out: []interface{}{chain.ERC1271MagicValue}, want: true},
		{name: "other value", out: []interface{}{[4]byte{0xff, 0xff, 0xff, 0xff}}},
		{name: "no code", err: errors.New("abi: attempting to unmarshal an empty string"), hasErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := mocks.NewMockClientForTest(t)
			client.EXPECT().
				Call(gomock.Any(), account, chain.ERC1271ABI, "isValidSignature", [32]byte(digest), sig).
				Return(tt.out, tt.err)

			ok, err := chain.ContractVerifier{Client: client}.IsValidSignature(ctx, account, digest, sig)
			assert.Equal(t, tt.want, ok)
			if tt.hasErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOwnerOf(t *testing.T) {
	registry := common.HexToAddress("0x8004000000000000000000000000000000000000")
	client := mocks.NewMockClientForTest(t)
	client.EXPECT().
		Call(gomock.Any(), registry, chain.IdentityRegistryABI, "ownerOf", big.NewInt(7)).
		Return([]interface{}{account}, nil)

	owner, err := chain.OwnerOf(context.Background(), client, registry, big.NewInt(7))
	require.NoError(t, err)
	assert.Equal(t, account, owner)
}

// fakeBackend records what the adapter sends.
type fakeBackend struct {
	callResult []byte
	sent       *types.Transaction
	receipt    *types.Receipt
}

func (f *fakeBackend) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return f.callResult, nil
}

func (f *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 100_000, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.sent = tx
	return nil
}

func (f *fakeBackend) TransactionByHash(context.Context, common.Hash) (*types.Transaction, bool, error) {
	return nil, false, ethereum.NotFound
}

func (f *fakeBackend) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	if f.receipt == nil {
		return nil, ethereum.NotFound
	}
	return f.receipt, nil
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 5, nil
}

func (f *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{BaseFee: big.NewInt(2_000_000_000)}, nil
}

func TestEthClient_SendTransaction(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	backend := &fakeBackend{}
	chainID := big.NewInt(11155111)
	client := chain.NewEthClient(backend, chainID, chain.WithTransactionKey(key))

	to := common.HexToAddress("0x2222222222222222222222222222222222222222")
	hash, err := client.SendTransaction(context.Background(), to, []byte{0xde, 0xad}, nil)
	require.NoError(t, err)

	require.NotNil(t, backend.sent)
	assert.Equal(t, hash, backend.sent.Hash())
	assert.Equal(t, uint64(5), backend.sent.Nonce())
	assert.Equal(t, big.NewInt(5_000_000_000), backend.sent.GasFeeCap())
	assert.Equal(t, to, *backend.sent.To())

	sender, err := types.Sender(types.LatestSignerForChainID(chainID), backend.sent)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), sender)
}

func TestEthClient_NoKey(t *testing.T) {
	client := chain.NewEthClient(&fakeBackend{}, big.NewInt(1))
	_, err := client.SendTransaction(context.Background(), account, nil, nil)
	assert.ErrorIs(t, err, chain.ErrNoSigner)
}

func TestEthClient_CallAndReceipt(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{callResult: common.LeftPadBytes(account.Bytes(), 32)}
	client := chain.NewEthClient(backend, big.NewInt(1))

	owner, err := chain.OwnerOf(ctx, client, common.HexToAddress("0x01"), big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, account, owner)

	backend.callResult = nil
	_, err = chain.ContractVerifier{Client: client}.IsValidSignature(ctx, account, txHash, []byte{0x01})
	assert.Error(t, err)

	r, err := client.Receipt(ctx, txHash)
	require.NoError(t, err)
	assert.Nil(t, r)

	backend.receipt = &types.Receipt{TxHash: txHash, Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(9)}
	r, err = client.Receipt(ctx, txHash)
	require.NoError(t, err)
	assert.True(t, r.Success)
}

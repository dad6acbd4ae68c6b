package signer_test

import (
	"context"
	"errors"
	"testing"

	"github.com/cyphera/cyphera-associations/pkg/signer"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubContracts struct {
	accept bool
	err    error
	calls  int
}

func (s *stubContracts) IsValidSignature(ctx context.Context, account common.Address, digest common.Hash, signature []byte) (bool, error) {
	s.calls++
	return s.accept, s.err
}

func TestPrivateKeySigner_SignAndRecover(t *testing.T) {
	s, err := signer.GeneratePrivateKeySigner()
	require.NoError(t, err)

	digest := crypto.Keccak256Hash([]byte("association"))
	sig, err := s.SignDigest(digest)
	require.NoError(t, err)
	require.Len(t, sig, 65)
	assert.Contains(t, []byte{27, 28}, sig[64])

	recovered, err := signer.Recover(digest, sig)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), recovered)

	// Raw 0/1 recovery ids recover the same address.
	raw := common.CopyBytes(sig)
	raw[64] -= 27
	recovered, err = signer.Recover(digest, raw)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), recovered)
}

func TestNewPrivateKeySignerFromHex(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	hexKey := common.Bytes2Hex(crypto.FromECDSA(key))

	withPrefix, err := signer.NewPrivateKeySignerFromHex("0x" + hexKey)
	require.NoError(t, err)
	withoutPrefix, err := signer.NewPrivateKeySignerFromHex(hexKey)
	require.NoError(t, err)

	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), withPrefix.Address())
	assert.Equal(t, withPrefix.Address(), withoutPrefix.Address())

	_, err = signer.NewPrivateKeySignerFromHex("0x1234")
	assert.Error(t, err)
}

func TestRecover_Malformed(t *testing.T) {
	digest := crypto.Keccak256Hash([]byte("x"))

	_, err := signer.Recover(digest, []byte{1, 2, 3})
	assert.ErrorIs(t, err, signer.ErrMalformedSignature)

	bad := make([]byte, 65)
	bad[64] = 5
	_, err = signer.Recover(digest, bad)
	assert.ErrorIs(t, err, signer.ErrMalformedSignature)
}

func TestChecker_Verify(t *testing.T) {
	owner, err := signer.GeneratePrivateKeySigner()
	require.NoError(t, err)
	other, err := signer.GeneratePrivateKeySigner()
	require.NoError(t, err)

	digest := crypto.Keccak256Hash([]byte("digest"))
	sig, err := owner.SignDigest(digest)
	require.NoError(t, err)

	ctx := context.Background()

	t.Run("ecdsa match", func(t *testing.T) {
		assert.NoError(t, signer.Checker{}.Verify(ctx, owner.Address(), digest, sig))
	})

	t.Run("ecdsa mismatch without contracts", func(t *testing.T) {
		err := signer.Checker{}.Verify(ctx, other.Address(), digest, sig)
		assert.ErrorIs(t, err, signer.ErrSignatureMismatch)
	})

	t.Run("contract account accepts", func(t *testing.T) {
		contracts := &stubContracts{accept: true}
		err := signer.Checker{Contracts: contracts}.Verify(ctx, other.Address(), digest, sig)
		assert.NoError(t, err)
		assert.Equal(t, 1, contracts.calls)
	})

	t.Run("contract account rejects", func(t *testing.T) {
		contracts := &stubContracts{accept: false}
		err := signer.Checker{Contracts: contracts}.Verify(ctx, other.Address(), digest, sig)
		assert.ErrorIs(t, err, signer.ErrSignatureMismatch)
	})

	t.Run("contract call error", func(t *testing.T) {
		contracts := &stubContracts{err: errors.New("execution reverted")}
		err := signer.Checker{Contracts: contracts}.Verify(ctx, other.Address(), digest, sig)
		assert.ErrorIs(t, err, signer.ErrSignatureMismatch)
	})

	t.Run("contract signature that is not ecdsa", func(t *testing.T) {
		contracts := &stubContracts{accept: true}
		err := signer.Checker{Contracts: contracts}.Verify(ctx, other.Address(), digest, []byte{0x01, 0x02})
		assert.NoError(t, err)
	})

	t.Run("ecdsa match skips contract call", func(t *testing.T) {
		contracts := &stubContracts{accept: false}
		assert.NoError(t, signer.Checker{Contracts: contracts}.Verify(ctx, owner.Address(), digest, sig))
		assert.Zero(t, contracts.calls)
	})
}

package chain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// well-known hardhat test key, never funded on a real network
const testPrivateKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func TestNewSigner(t *testing.T) {
	signer, err := NewSigner(testPrivateKey, 11155111)
	require.NoError(t, err)
	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", signer.Address().Hex())
	assert.Equal(t, int64(11155111), signer.ChainID().Int64())

	// 0x prefix is optional
	bare, err := NewSigner(testPrivateKey[2:], 11155111)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), bare.Address())
}

func TestNewSigner_Invalid(t *testing.T) {
	_, err := NewSigner("not-a-key", 1)
	assert.Error(t, err)

	_, err = NewSigner(testPrivateKey, 0)
	assert.Error(t, err)
}

func TestSignTx_RecoversSender(t *testing.T) {
	signer, err := NewSigner(testPrivateKey, 11155111)
	require.NoError(t, err)

	to := common.HexToAddress(testContract)
	raw, hash, err := signer.SignTx(7, big.NewInt(2_000_000_000), 100000, to, nil, []byte{0x01, 0x02})
	require.NoError(t, err)
	require.NotEmpty(t, raw)
	assert.NotEqual(t, common.Hash{}, hash)

	var decoded types.Transaction
	require.NoError(t, decoded.UnmarshalBinary(raw))
	assert.Equal(t, uint64(7), decoded.Nonce())
	assert.Equal(t, to, *decoded.To())
	assert.Equal(t, uint64(100000), decoded.Gas())
	assert.Equal(t, hash, decoded.Hash())

	sender, err := types.Sender(types.NewEIP155Signer(big.NewInt(11155111)), &decoded)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), sender)
}

func TestSignTx_Deterministic(t *testing.T) {
	signer, err := NewSigner(testPrivateKey, 11155111)
	require.NoError(t, err)

	to := common.HexToAddress(testContract)
	first, hash1, err := signer.SignTx(1, big.NewInt(1), 21000, to, nil, nil)
	require.NoError(t, err)
	second, hash2, err := signer.SignTx(1, big.NewInt(1), 21000, to, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, hash1, hash2)
}

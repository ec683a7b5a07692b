package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockdoc/blockdoc/common/config"
	"github.com/blockdoc/blockdoc/common/logger"
)

// Well-known hardhat development key; its address is
// 0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266.
const (
	testPrivateKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testKeyAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	testContract   = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
)

func chainOnlyConfig() *config.Config {
	return &config.Config{
		Blockchain: config.BlockchainConfig{
			ProviderURL:     "http://localhost:8545",
			ContractAddress: testContract,
			PrivateKey:      testPrivateKey,
			ChainID:         31337,
			NetworkName:     "hardhat",
			RPCTimeout:      time.Second,
		},
	}
}

func setupChainOnly(t *testing.T, cfg *config.Config) (*Components, error) {
	t.Helper()
	components, err := Setup(context.Background(), "bootstrap-test",
		WithCustomConfig(cfg),
		WithCustomLogger(logger.New("error", "text")),
		WithoutDB(),
		WithoutRedis(),
		WithoutTelemetry(),
	)
	if components != nil {
		t.Cleanup(func() { components.Shutdown(context.Background()) })
	}
	return components, err
}

func TestSetup_AccountAddressMismatchFailsStartup(t *testing.T) {
	cfg := chainOnlyConfig()
	cfg.Blockchain.AccountAddress = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"

	_, err := setupChainOnly(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match signing key address")
}

func TestSetup_AccountAddressMatchAllowsStartup(t *testing.T) {
	cfg := chainOnlyConfig()
	cfg.Blockchain.AccountAddress = testKeyAddress

	components, err := setupChainOnly(t, cfg)
	require.NoError(t, err)
	assert.Equal(t, testKeyAddress, components.Signer.Address().Hex())
}

func TestSetup_AccountAddressMatchIsCaseInsensitive(t *testing.T) {
	cfg := chainOnlyConfig()
	cfg.Blockchain.AccountAddress = "0XF39FD6E51AAD88F6F4CE6AB8827279CFFFB92266"

	_, err := setupChainOnly(t, cfg)
	require.NoError(t, err)
}

func TestSetup_EmptyAccountAddressSkipsCheck(t *testing.T) {
	_, err := setupChainOnly(t, chainOnlyConfig())
	require.NoError(t, err)
}

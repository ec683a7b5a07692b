package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("blockdoc-api")
	require.NoError(t, err)

	assert.Equal(t, "blockdoc-api", cfg.Service.Name)
	assert.Equal(t, 8080, cfg.Service.Port)
	assert.Equal(t, int64(11155111), cfg.Blockchain.ChainID)
	assert.Equal(t, uint64(100000), cfg.Blockchain.GasLimit)
	assert.Equal(t, "sepolia", cfg.Blockchain.NetworkName)
	assert.Equal(t, 15*time.Second, cfg.Blockchain.RPCTimeout)
	assert.Equal(t, 60*time.Second, cfg.Worker.SweepInterval)
	assert.Equal(t, 24*time.Hour, cfg.Worker.StalePendingAfter)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("BLOCKCHAIN_CHAIN_ID", "1337")
	t.Setenv("WORKER_SWEEP_INTERVAL", "5s")
	t.Setenv("QUEUE_BACKOFF", "1s,2s,4s")

	cfg, err := Load("anchor-worker")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Service.Port)
	assert.Equal(t, int64(1337), cfg.Blockchain.ChainID)
	assert.Equal(t, 5*time.Second, cfg.Worker.SweepInterval)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, cfg.Queue.Backoff)
}

func TestLoad_BadDurationFallsBack(t *testing.T) {
	t.Setenv("WORKER_SWEEP_INTERVAL", "not-a-duration")

	cfg, err := Load("anchor-worker")
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, cfg.Worker.SweepInterval)
}

func TestDatabaseURL(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "db.internal")
	t.Setenv("POSTGRES_USER", "blockdoc")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("POSTGRES_DB", "blockdoc")

	cfg, err := Load("blockdoc-api")
	require.NoError(t, err)
	assert.Contains(t, cfg.DatabaseURL(), "db.internal")
	assert.Contains(t, cfg.DatabaseURL(), "blockdoc")
}

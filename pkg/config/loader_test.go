package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testYAML = `
scheduler:
  interval_seconds: 45
queue:
  worker_count: 8
database:
  dsn: "${TEST_DB_DSN}"
chains:
  cache_size: 500
  chains:
    - chain_id: 1
      genesis_timestamp: 1438269973
      average_block_time: 12.1
      endpoints: ["https://rpc.example.invalid/1"]
      market_contract: "0x0000000000000000000000000000000000000001"
`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "sentinel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testYAML), 0o644))
	return path
}

func TestInitializeAppliesDefaultsAndOverrides(t *testing.T) {
	t.Setenv("TEST_DB_DSN", "postgres://localhost/sentinel_test")
	path := writeTestConfig(t)

	cfg, err := Initialize(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 45, cfg.Scheduler.IntervalSeconds)
	assert.Equal(t, 8, cfg.Queue.WorkerCount)
	// PollInterval was left unset in YAML, so the built-in default survives.
	assert.Equal(t, DefaultQueueConfig().PollInterval, cfg.Queue.PollInterval)
	assert.Equal(t, "postgres://localhost/sentinel_test", cfg.Database.DSN)
	assert.Equal(t, 500, cfg.Chains.CacheSize)
	require.Len(t, cfg.Chains.Chains, 1)
	assert.Equal(t, int64(1), cfg.Chains.Chains[0].ChainID)
}

func TestInitializeMissingFile(t *testing.T) {
	_, err := Initialize(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestInitializeRejectsMissingDatabaseDSN(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sentinel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`chains:
  chains:
    - chain_id: 1
      average_block_time: 12
      endpoints: ["https://rpc.example.invalid"]
`), 0o644))

	_, err := Initialize(context.Background(), path)
	assert.ErrorIs(t, err, ErrValidationFailed)
}

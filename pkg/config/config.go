// Package config loads Sentinel's YAML + environment-variable
// configuration: an Initialize entry point that loads, defaults, and
// validates, returning a single umbrella Config struct holding typed
// per-subsystem configs.
package config

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/monarch-xyz/sentinel/pkg/chain"
)

// Config is the umbrella configuration object returned by Initialize,
// used throughout cmd/sentinel and cmd/sentinel-api.
type Config struct {
	configPath string

	Scheduler *SchedulerConfig `yaml:"scheduler"`
	Queue     *QueueConfig     `yaml:"queue"`
	Webhook   *WebhookConfig   `yaml:"webhook"`
	Chains    *ChainsConfig    `yaml:"chains"`
	Database  *DatabaseConfig  `yaml:"database"`
	API       *APIConfig       `yaml:"api"`
	Redis     *RedisConfig     `yaml:"redis"`
	Index     *IndexConfig     `yaml:"index"`
}

// ConfigPath returns the file this Config was loaded from.
func (c *Config) ConfigPath() string { return c.configPath }

// SchedulerConfig controls the scheduler's periodic tick.
type SchedulerConfig struct {
	IntervalSeconds int `yaml:"interval_seconds" validate:"omitempty,min=1"`
}

// QueueConfig controls the worker pool.
type QueueConfig struct {
	WorkerCount             int           `yaml:"worker_count" validate:"omitempty,min=1"`
	PollInterval            time.Duration `yaml:"poll_interval"`
	PollIntervalJitter      time.Duration `yaml:"poll_interval_jitter"`
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`
	FailureRetention        int           `yaml:"failure_retention"`
}

// WebhookConfig controls the webhook dispatcher.
type WebhookConfig struct {
	TimeoutSeconds int    `yaml:"timeout_seconds" validate:"omitempty,min=1"`
	MaxRetries     int    `yaml:"max_retries" validate:"omitempty,min=0"`
	SharedSecret   string `yaml:"-"` // loaded from SENTINEL_WEBHOOK_SECRET, never from YAML
}

// ChainEntry is one chain's static RPC configuration.
type ChainEntry struct {
	ChainID          int64    `yaml:"chain_id"`
	GenesisTimestamp int64    `yaml:"genesis_timestamp"`
	AverageBlockTime float64  `yaml:"average_block_time"`
	Endpoints        []string `yaml:"endpoints"`
	MarketContract   string   `yaml:"market_contract"`
}

// ChainsConfig controls the block resolver and the chain-RPC side of
// the data fetcher.
type ChainsConfig struct {
	CacheSize int          `yaml:"cache_size" validate:"omitempty,min=1"`
	Chains    []ChainEntry `yaml:"chains"`
}

// ResolverConfig converts ChainsConfig into pkg/chain.Config.
func (c *ChainsConfig) ResolverConfig() chain.Config {
	chains := make([]chain.ChainConfig, 0, len(c.Chains))
	for _, e := range c.Chains {
		chains = append(chains, chain.ChainConfig{
			ChainID:          e.ChainID,
			GenesisTimestamp: e.GenesisTimestamp,
			AverageBlockTime: e.AverageBlockTime,
			Endpoints:        e.Endpoints,
		})
	}
	return chain.Config{Chains: chains, CacheSize: c.CacheSize}
}

// RPCEndpoints returns the first configured RPC endpoint per chain, for
// pkg/fetch.Config.RPCEndpoints (eth_call reads use a single client per
// chain; failover across endpoints is the block resolver's concern,
// not the point-in-time RPC reader's).
func (c *ChainsConfig) RPCEndpoints() map[int64]string {
	out := make(map[int64]string, len(c.Chains))
	for _, e := range c.Chains {
		if len(e.Endpoints) > 0 {
			out[e.ChainID] = e.Endpoints[0]
		}
	}
	return out
}

// MarketContracts returns the configured Morpho Blue market contract
// address per chain, for pkg/fetch.Config.MarketContracts.
func (c *ChainsConfig) MarketContracts() map[int64]common.Address {
	out := make(map[int64]common.Address, len(c.Chains))
	for _, e := range c.Chains {
		if e.MarketContract != "" {
			out[e.ChainID] = common.HexToAddress(e.MarketContract)
		}
	}
	return out
}

// DatabaseConfig controls the Postgres connection pool (pkg/store).
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int32         `yaml:"max_open_conns"`
	MaxIdleConns    int32         `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// APIConfig controls the thin HTTP boundary (pkg/api).
type APIConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// RedisConfig controls the durable queue's Redis connection.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"-"` // loaded from SENTINEL_REDIS_PASSWORD
	DB       int    `yaml:"db"`
}

// IndexConfig controls the event-index GraphQL client.
type IndexConfig struct {
	Endpoint string `yaml:"endpoint"`
}

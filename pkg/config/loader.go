package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// yamlConfig mirrors sentinel.yaml's on-disk shape. Every section is a
// pointer so the loader can tell an absent section apart from a present
// one. For the sections passed through the with*Defaults helpers the
// distinction stops there: a field left at its zero value takes the
// built-in default whether or not its section is present.
type yamlConfig struct {
	Scheduler *SchedulerConfig `yaml:"scheduler"`
	Queue     *QueueConfig     `yaml:"queue"`
	Webhook   *WebhookConfig   `yaml:"webhook"`
	Chains    *ChainsConfig    `yaml:"chains"`
	Database  *DatabaseConfig  `yaml:"database"`
	API       *APIConfig       `yaml:"api"`
	Redis     *RedisConfig     `yaml:"redis"`
	Index     *IndexConfig     `yaml:"index"`
}

// Initialize loads sentinel.yaml from configPath, applies environment
// overlays and built-in defaults, validates the result, and returns a
// ready-to-use Config.
func Initialize(_ context.Context, configPath string) (*Config, error) {
	log := slog.With("config_path", configPath)
	log.Info("initializing configuration")

	raw, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewLoadError(configPath, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath))
		}
		return nil, NewLoadError(configPath, err)
	}
	raw = ExpandEnv(raw)

	var y yamlConfig
	if err := yaml.Unmarshal(raw, &y); err != nil {
		return nil, NewLoadError(configPath, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
	}

	cfg := &Config{
		configPath: configPath,
		Scheduler:  withSchedulerDefaults(y.Scheduler),
		Queue:      withQueueDefaults(y.Queue),
		Webhook:    withWebhookDefaults(y.Webhook),
		Chains:     withChainsDefaults(y.Chains),
		Database:   withDatabaseDefaults(y.Database),
		API:        withAPIDefaults(y.API),
		Redis:      y.Redis,
		Index:      y.Index,
	}
	if cfg.Redis == nil {
		cfg.Redis = &RedisConfig{Addr: "localhost:6379"}
	}
	if cfg.Index == nil {
		cfg.Index = &IndexConfig{}
	}

	// Secrets never live in YAML (not even via ${VAR} expansion caught
	// by a diff/log of the file) — read directly from the environment.
	cfg.Webhook.SharedSecret = os.Getenv("SENTINEL_WEBHOOK_SECRET")
	cfg.Redis.Password = os.Getenv("SENTINEL_REDIS_PASSWORD")

	if err := NewValidator(cfg).ValidateAll(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	log.Info("configuration initialized",
		"chains", len(cfg.Chains.Chains),
		"workers", cfg.Queue.WorkerCount,
		"scheduler_interval_seconds", cfg.Scheduler.IntervalSeconds)
	return cfg, nil
}

// The with*Defaults helpers apply built-in defaults field-by-field for
// whichever values the user's YAML left unset or at zero: start from
// defaults, override with any non-zero value the user set (so, e.g.,
// max_retries: 0 keeps the default). Done by hand since the
// subconfigs are small enough not to warrant a merge library.

func withSchedulerDefaults(in *SchedulerConfig) *SchedulerConfig {
	out := DefaultSchedulerConfig()
	if in != nil && in.IntervalSeconds > 0 {
		out.IntervalSeconds = in.IntervalSeconds
	}
	return out
}

func withQueueDefaults(in *QueueConfig) *QueueConfig {
	out := DefaultQueueConfig()
	if in == nil {
		return out
	}
	if in.WorkerCount > 0 {
		out.WorkerCount = in.WorkerCount
	}
	if in.PollInterval > 0 {
		out.PollInterval = in.PollInterval
	}
	if in.PollIntervalJitter > 0 {
		out.PollIntervalJitter = in.PollIntervalJitter
	}
	if in.GracefulShutdownTimeout > 0 {
		out.GracefulShutdownTimeout = in.GracefulShutdownTimeout
	}
	if in.FailureRetention > 0 {
		out.FailureRetention = in.FailureRetention
	}
	return out
}

func withWebhookDefaults(in *WebhookConfig) *WebhookConfig {
	out := DefaultWebhookConfig()
	if in == nil {
		return out
	}
	if in.TimeoutSeconds > 0 {
		out.TimeoutSeconds = in.TimeoutSeconds
	}
	if in.MaxRetries > 0 {
		out.MaxRetries = in.MaxRetries
	}
	return out
}

func withChainsDefaults(in *ChainsConfig) *ChainsConfig {
	out := DefaultChainConfig()
	if in == nil {
		return out
	}
	if in.CacheSize > 0 {
		out.CacheSize = in.CacheSize
	}
	out.Chains = in.Chains
	return out
}

func withDatabaseDefaults(in *DatabaseConfig) *DatabaseConfig {
	out := DefaultDatabaseConfig()
	if in == nil {
		return out
	}
	if in.DSN != "" {
		out.DSN = in.DSN
	}
	if in.MaxOpenConns > 0 {
		out.MaxOpenConns = in.MaxOpenConns
	}
	if in.MaxIdleConns > 0 {
		out.MaxIdleConns = in.MaxIdleConns
	}
	if in.ConnMaxLifetime > 0 {
		out.ConnMaxLifetime = in.ConnMaxLifetime
	}
	return out
}

func withAPIDefaults(in *APIConfig) *APIConfig {
	out := DefaultAPIConfig()
	if in != nil && in.ListenAddr != "" {
		out.ListenAddr = in.ListenAddr
	}
	return out
}

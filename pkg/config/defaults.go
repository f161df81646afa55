package config

import "time"

// DefaultSchedulerConfig returns the scheduler's built-in defaults.
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		IntervalSeconds: 30,
	}
}

// DefaultQueueConfig returns the worker pool's built-in defaults.
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		WorkerCount:             5,
		PollInterval:            2 * time.Second,
		PollIntervalJitter:      500 * time.Millisecond,
		GracefulShutdownTimeout: 30 * time.Second,
		FailureRetention:        1000,
	}
}

// DefaultWebhookConfig returns the dispatcher's built-in defaults.
func DefaultWebhookConfig() *WebhookConfig {
	return &WebhookConfig{
		TimeoutSeconds: 10,
		MaxRetries:     3,
	}
}

// DefaultChainConfig returns the block resolver's built-in defaults.
func DefaultChainConfig() *ChainsConfig {
	return &ChainsConfig{
		CacheSize: 1000,
	}
}

// DefaultDatabaseConfig returns the store's built-in pool defaults.
func DefaultDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

// DefaultAPIConfig returns the HTTP boundary's built-in defaults.
func DefaultAPIConfig() *APIConfig {
	return &APIConfig{
		ListenAddr: ":8080",
	}
}

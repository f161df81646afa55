package config

import "fmt"

// Validator validates a loaded Config with clear, field-scoped error
// messages.
type Validator struct {
	cfg *Config
}

// NewValidator constructs a Validator for cfg.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll validates every subsystem in dependency order, stopping
// at the first failure.
func (v *Validator) ValidateAll() error {
	if err := v.validateScheduler(); err != nil {
		return fmt.Errorf("scheduler validation failed: %w", err)
	}
	if err := v.validateQueue(); err != nil {
		return fmt.Errorf("queue validation failed: %w", err)
	}
	if err := v.validateWebhook(); err != nil {
		return fmt.Errorf("webhook validation failed: %w", err)
	}
	if err := v.validateChains(); err != nil {
		return fmt.Errorf("chains validation failed: %w", err)
	}
	if err := v.validateDatabase(); err != nil {
		return fmt.Errorf("database validation failed: %w", err)
	}
	return nil
}

func (v *Validator) validateScheduler() error {
	s := v.cfg.Scheduler
	if s == nil {
		return fmt.Errorf("scheduler configuration is nil")
	}
	if s.IntervalSeconds < 1 {
		return &ValidationError{Component: "scheduler", Field: "interval_seconds", Err: fmt.Errorf("must be at least 1, got %d", s.IntervalSeconds)}
	}
	return nil
}

func (v *Validator) validateQueue() error {
	q := v.cfg.Queue
	if q == nil {
		return fmt.Errorf("queue configuration is nil")
	}
	if q.WorkerCount < 1 {
		return &ValidationError{Component: "queue", Field: "worker_count", Err: fmt.Errorf("must be at least 1, got %d", q.WorkerCount)}
	}
	if q.FailureRetention < 0 {
		return &ValidationError{Component: "queue", Field: "failure_retention", Err: fmt.Errorf("must be non-negative")}
	}
	return nil
}

func (v *Validator) validateWebhook() error {
	w := v.cfg.Webhook
	if w == nil {
		return fmt.Errorf("webhook configuration is nil")
	}
	if w.TimeoutSeconds < 1 {
		return &ValidationError{Component: "webhook", Field: "timeout_seconds", Err: fmt.Errorf("must be at least 1, got %d", w.TimeoutSeconds)}
	}
	if w.MaxRetries < 0 {
		return &ValidationError{Component: "webhook", Field: "max_retries", Err: fmt.Errorf("must be non-negative")}
	}
	return nil
}

func (v *Validator) validateChains() error {
	c := v.cfg.Chains
	if c == nil {
		return fmt.Errorf("chains configuration is nil")
	}
	if c.CacheSize < 1 {
		return &ValidationError{Component: "chains", Field: "cache_size", Err: fmt.Errorf("must be at least 1, got %d", c.CacheSize)}
	}
	seen := make(map[int64]bool, len(c.Chains))
	for _, e := range c.Chains {
		if e.ChainID == 0 {
			return &ValidationError{Component: "chains", Field: "chain_id", Err: fmt.Errorf("required")}
		}
		if seen[e.ChainID] {
			return &ValidationError{Component: "chains", Field: "chain_id", Err: fmt.Errorf("duplicate chain id %d", e.ChainID)}
		}
		seen[e.ChainID] = true
		if len(e.Endpoints) == 0 {
			return &ValidationError{Component: "chains", Field: fmt.Sprintf("chains[%d].endpoints", e.ChainID), Err: fmt.Errorf("at least one RPC endpoint required")}
		}
		if e.AverageBlockTime <= 0 {
			return &ValidationError{Component: "chains", Field: fmt.Sprintf("chains[%d].average_block_time", e.ChainID), Err: fmt.Errorf("must be positive")}
		}
	}
	return nil
}

func (v *Validator) validateDatabase() error {
	d := v.cfg.Database
	if d == nil {
		return fmt.Errorf("database configuration is nil")
	}
	if d.DSN == "" {
		return &ValidationError{Component: "database", Field: "dsn", Err: fmt.Errorf("required")}
	}
	return nil
}

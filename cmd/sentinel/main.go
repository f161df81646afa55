// Sentinel worker process: runs the scheduler and a worker pool that
// evaluate and dispatch signals.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/monarch-xyz/sentinel/pkg/chain"
	"github.com/monarch-xyz/sentinel/pkg/config"
	"github.com/monarch-xyz/sentinel/pkg/eval"
	"github.com/monarch-xyz/sentinel/pkg/fetch"
	"github.com/monarch-xyz/sentinel/pkg/metrics"
	"github.com/monarch-xyz/sentinel/pkg/obs"
	"github.com/monarch-xyz/sentinel/pkg/queue"
	"github.com/monarch-xyz/sentinel/pkg/scheduler"
	"github.com/monarch-xyz/sentinel/pkg/store"
	"github.com/monarch-xyz/sentinel/pkg/webhook"
	"github.com/monarch-xyz/sentinel/pkg/worker"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("could not load .env file, continuing with existing environment", "path", envPath, "error", err)
	}

	ctx := context.Background()
	cfgPath := filepath.Join(*configDir, "sentinel.yaml")
	cfg, err := config.Initialize(ctx, cfgPath)
	if err != nil {
		slog.Error("failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	obs.Register()

	st, err := store.Open(ctx, store.Config{
		DSN: cfg.Database.DSN, MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns, ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		slog.Error("failed to connect to store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	resolver, err := chain.New(cfg.Chains.ResolverConfig())
	if err != nil {
		slog.Error("failed to build block resolver", "error", err)
		os.Exit(1)
	}

	fetcher, err := fetch.New(fetch.Config{
		IndexEndpoint:   cfg.Index.Endpoint,
		RPCEndpoints:    cfg.Chains.RPCEndpoints(),
		MarketContracts: cfg.Chains.MarketContracts(),
		Resolver:        resolver,
	})
	if err != nil {
		slog.Error("failed to build data fetcher", "error", err)
		os.Exit(1)
	}

	evaluator := eval.NewEvaluator(metrics.Morpho, fetcher)
	dispatcher := webhook.New(
		webhook.WithTimeout(time.Duration(cfg.Webhook.TimeoutSeconds)*time.Second),
		webhook.WithMaxRetries(cfg.Webhook.MaxRetries),
	)

	redisClient := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{cfg.Redis.Addr}, Password: cfg.Redis.Password, DB: cfg.Redis.DB,
	})
	defer redisClient.Close()
	q := queue.NewRedisQueue(redisClient, queue.WithFailureRetention(cfg.Queue.FailureRetention))

	sched := scheduler.New(q, st, cfg.Scheduler.IntervalSeconds)
	if err := sched.Start(ctx); err != nil {
		slog.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	pool := worker.NewPool(worker.Config{
		WorkerCount:  cfg.Queue.WorkerCount,
		PollInterval: cfg.Queue.PollInterval,
		PollJitter:   cfg.Queue.PollIntervalJitter,
	}, q, st, st, evaluator, dispatcher)
	pool.Start(ctx)

	slog.Info("sentinel worker process started",
		"workers", cfg.Queue.WorkerCount, "scheduler_interval_seconds", cfg.Scheduler.IntervalSeconds)

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	slog.Info("shutdown signal received, draining worker pool")
	sched.Stop()

	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Queue.GracefulShutdownTimeout)
	defer cancel()
	drained := make(chan struct{})
	go func() {
		pool.Stop()
		close(drained)
	}()
	select {
	case <-drained:
		slog.Info("worker pool drained cleanly")
	case <-drainCtx.Done():
		slog.Warn("graceful shutdown timeout elapsed, exiting with in-flight jobs still running")
	}
}

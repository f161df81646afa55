// Sentinel API process: the thin HTTP boundary (pkg/api) for
// submitting and inspecting signals and running simulations.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/monarch-xyz/sentinel/pkg/api"
	"github.com/monarch-xyz/sentinel/pkg/chain"
	"github.com/monarch-xyz/sentinel/pkg/config"
	"github.com/monarch-xyz/sentinel/pkg/eval"
	"github.com/monarch-xyz/sentinel/pkg/fetch"
	"github.com/monarch-xyz/sentinel/pkg/metrics"
	"github.com/monarch-xyz/sentinel/pkg/obs"
	"github.com/monarch-xyz/sentinel/pkg/simulate"
	"github.com/monarch-xyz/sentinel/pkg/store"
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
	simulator := simulate.New(evaluator)

	srv := api.NewServer(api.Config{
		Registry:  metrics.Morpho,
		Store:     st,
		Simulator: simulator,
	})

	listenAddr := cfg.API.ListenAddr
	httpServer := &http.Server{Addr: listenAddr, Handler: srv.Echo()}

	go func() {
		slog.Info("sentinel API process started", "listen_addr", listenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	slog.Info("shutdown signal received, draining http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http server shutdown did not complete cleanly", "error", err)
	}
}

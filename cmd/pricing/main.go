package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"pricingScope/internal/assets"
	"pricingScope/internal/chain"
	"pricingScope/internal/config"
	"pricingScope/internal/indexer"
	"pricingScope/internal/pricing"
	"pricingScope/internal/quote"
	"pricingScope/internal/storage"
	"pricingScope/internal/storage/postgres"
	"pricingScope/internal/watch"
)

func main() {
	root := &cobra.Command{
		Use:          "pricing",
		Short:        "DEX derived-pricing query service",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll pairs and record derived prices",
		RunE:  runWatch,
	}

	watchCmd.Flags().String("rpc", "", "chain RPC URL")
	watchCmd.Flags().String("quoter", "", "AMM quoter contract address")
	watchCmd.Flags().String("registry", "", "asset registry contract address")
	watchCmd.Flags().String("route-finder", "", "route finder base URL (optional)")
	watchCmd.Flags().String("indexer", "", "indexer GraphQL endpoint (optional)")
	watchCmd.Flags().String("pg-dsn", "", "Postgres DSN (optional, JSONL sink otherwise)")
	watchCmd.Flags().String("out", "./data/price_points.jsonl", "output JSONL path")
	watchCmd.Flags().StringSlice("pair", nil, "pairs to watch, sell:buy[:poolId] (comma-separated)")
	watchCmd.Flags().Float64("probe-amount", config.DefaultProbeAmount, "probe trade notional in whole sell tokens")
	watchCmd.Flags().Duration("fresh-window", config.DefaultFreshWindow, "cache freshness window")
	watchCmd.Flags().Duration("expire-window", config.DefaultExpireWindow, "cache hard-expiry window")
	watchCmd.Flags().Duration("apr-window", config.DefaultAPRWindow, "trailing fee window for APR")
	watchCmd.Flags().Duration("poll-interval", time.Minute, "derivation poll interval")
	watchCmd.Flags().Int("max-retries", 2, "maximum retry attempts per observation")
	watchCmd.Flags().Duration("retry-backoff", time.Second, "initial retry backoff")
	watchCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(watchCmd)

	priceCmd := &cobra.Command{
		Use:   "price",
		Short: "Derive the reserves price for one pair",
		RunE:  runPrice,
	}

	priceCmd.Flags().String("rpc", "", "chain RPC URL")
	priceCmd.Flags().String("quoter", "", "AMM quoter contract address")
	priceCmd.Flags().String("registry", "", "asset registry contract address")
	priceCmd.Flags().String("route-finder", "", "route finder base URL (optional)")
	priceCmd.Flags().String("sell", "", "sell asset id")
	priceCmd.Flags().String("buy", "", "buy asset id")
	priceCmd.Flags().Float64("probe-amount", config.DefaultProbeAmount, "probe trade notional in whole sell tokens")
	priceCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(priceCmd)

	aprCmd := &cobra.Command{
		Use:   "apr",
		Short: "Derive the annualized fee yield for one pool",
		RunE:  runAPR,
	}

	aprCmd.Flags().String("indexer", "", "indexer GraphQL endpoint")
	aprCmd.Flags().String("pool", "", "pool id at the indexer")
	aprCmd.Flags().Duration("apr-window", config.DefaultAPRWindow, "trailing fee window for APR")
	aprCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(aprCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if cfg.QuoterAddress == "" {
		return fmt.Errorf("quoter address is required")
	}
	if cfg.RegistryAddress == "" {
		return fmt.Errorf("registry address is required")
	}

	pairs, err := watch.ParsePairs(cfg.Pairs)
	if err != nil {
		return err
	}
	if len(pairs) == 0 {
		return fmt.Errorf("pair list is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	quoter, err := quote.NewEVMQuoter(chainClient, cfg.QuoterAddress)
	if err != nil {
		return err
	}
	resolver, err := assets.NewResolver(chainClient, cfg.RegistryAddress, logger)
	if err != nil {
		return err
	}
	router := quote.NewRouter(cfg.RouteFinderURL, logger)

	var indexerClient indexer.Client
	if cfg.IndexerURL != "" {
		gql, err := indexer.NewGraphQLClient(cfg.IndexerURL, logger)
		if err != nil {
			return err
		}
		indexerClient = gql
	}

	engine := pricing.NewEngine(pricing.Config{
		ProbeAmount:  cfg.ProbeAmount,
		FreshWindow:  cfg.FreshWindow,
		ExpireWindow: cfg.ExpireWindow,
		APRWindow:    cfg.APRWindow,
	}, quoter, indexerClient, logger)

	var sink storage.Storage
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		sink = store
	} else {
		sink = storage.NewJsonlStorage(cfg.Out)
	}

	runner := watch.NewRunner(watch.RunConfig{
		Pairs:        pairs,
		Interval:     cfg.PollInterval,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, engine, router, resolver, sink, logger)

	logger.Info("watch start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("quoter", cfg.QuoterAddress),
		zap.String("indexer", cfg.IndexerURL),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Int("pairs", len(pairs)),
		zap.Float64("probe_amount", cfg.ProbeAmount),
		zap.Duration("poll_interval", cfg.PollInterval),
	)

	return runner.Run(ctx)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}

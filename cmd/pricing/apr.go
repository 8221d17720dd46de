package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pricingScope/internal/config"
	"pricingScope/internal/indexer"
	"pricingScope/internal/pricing"
)

func runAPR(cmd *cobra.Command, _ []string) error {
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

	poolID, _ := cmd.Flags().GetString("pool")

	if cfg.IndexerURL == "" {
		return fmt.Errorf("indexer endpoint is required")
	}
	if poolID == "" {
		return fmt.Errorf("pool id is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	indexerClient, err := indexer.NewGraphQLClient(cfg.IndexerURL, logger)
	if err != nil {
		return err
	}

	engine := pricing.NewEngine(pricing.Config{
		APRWindow: cfg.APRWindow,
	}, nil, indexerClient, logger)

	result := engine.PoolAPR(ctx, poolID)
	if result.Err != nil {
		return result.Err
	}
	if !result.HasValue() {
		return fmt.Errorf("apr not computable for pool %s", poolID)
	}

	fmt.Printf("pool %s: apr %.2f%% tvl $%.2f reserves %.4f / %.4f\n",
		poolID, result.Value.APR, result.Value.TVLUSD, result.Value.Reserve0, result.Value.Reserve1)
	return nil
}

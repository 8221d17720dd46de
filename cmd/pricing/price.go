package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pricingScope/internal/assets"
	"pricingScope/internal/chain"
	"pricingScope/internal/config"
	"pricingScope/internal/model"
	"pricingScope/internal/pricing"
	"pricingScope/internal/quote"
)

func runPrice(cmd *cobra.Command, _ []string) error {
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

	sellFlag, _ := cmd.Flags().GetString("sell")
	buyFlag, _ := cmd.Flags().GetString("buy")

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if cfg.QuoterAddress == "" {
		return fmt.Errorf("quoter address is required")
	}
	if cfg.RegistryAddress == "" {
		return fmt.Errorf("registry address is required")
	}
	sellAsset := model.AssetID(sellFlag).Normalized()
	buyAsset := model.AssetID(buyFlag).Normalized()
	if !sellAsset.Valid() {
		return fmt.Errorf("invalid sell asset id: %s", sellFlag)
	}
	if !buyAsset.Valid() {
		return fmt.Errorf("invalid buy asset id: %s", buyFlag)
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

	engine := pricing.NewEngine(pricing.Config{
		ProbeAmount: cfg.ProbeAmount,
	}, quoter, nil, logger)

	sellRef := resolver.Resolve(ctx, sellAsset)
	buyRef := resolver.Resolve(ctx, buyAsset)

	route, err := router.FindRoute(ctx, sellAsset, buyAsset, nil)
	if err != nil {
		return fmt.Errorf("find route: %w", err)
	}

	result := engine.ReservesPrice(ctx, &sellRef, &buyRef, route)
	if result.Err != nil {
		return result.Err
	}
	if !result.HasValue() {
		return fmt.Errorf("reserves price not computable for %s/%s", sellAsset, buyAsset)
	}

	sellSymbol := sellRef.Symbol
	if sellSymbol == "" {
		sellSymbol = string(sellRef.ID)
	}
	buySymbol := buyRef.Symbol
	if buySymbol == "" {
		buySymbol = string(buyRef.ID)
	}

	fmt.Printf("1 %s ≈ %g %s\n", sellSymbol, result.Value, buySymbol)
	return nil
}

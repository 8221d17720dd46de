package watch

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"pricingScope/internal/model"
	"pricingScope/internal/pricing"
	"pricingScope/internal/storage"
)

// AssetResolver loads asset metadata for a pair side.
type AssetResolver interface {
	Resolve(ctx context.Context, id model.AssetID) model.AssetReference
}

// RouteSource resolves the pool route for a pair.
type RouteSource interface {
	FindRoute(ctx context.Context, sellAsset, buyAsset model.AssetID, amountRaw *big.Int) ([]model.PoolID, error)
}

// RunConfig holds runtime settings for the watch loop.
type RunConfig struct {
	Pairs        []Pair
	Interval     time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// Runner periodically derives reserves prices and APRs for the configured
// pairs and writes the observations to storage.
type Runner struct {
	cfg     RunConfig
	engine  *pricing.Engine
	router  RouteSource
	assets  AssetResolver
	storage storage.Storage
	logger  *zap.Logger
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, engine *pricing.Engine, router RouteSource, resolver AssetResolver, sink storage.Storage, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:     cfg,
		engine:  engine,
		router:  router,
		assets:  resolver,
		storage: sink,
		logger:  logger,
	}
}

// Run executes the polling loop until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	if r.engine == nil {
		return fmt.Errorf("engine is nil")
	}
	if r.router == nil {
		return fmt.Errorf("router is nil")
	}
	if r.assets == nil {
		return fmt.Errorf("asset resolver is nil")
	}
	if len(r.cfg.Pairs) == 0 {
		return fmt.Errorf("at least one pair is required")
	}
	interval := r.cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}

	r.cycle(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			// Each cycle is a fresh derivation pass.
			r.engine.InvalidateAll()
			r.cycle(ctx)
		}
	}
}

func (r *Runner) cycle(ctx context.Context) {
	observedAt := time.Now().UTC()
	points := make([]model.PricePoint, 0, len(r.cfg.Pairs))

	for _, pair := range r.cfg.Pairs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		point, err := r.observe(ctx, pair, observedAt)
		if err != nil {
			r.logger.Warn("pair observation failed",
				zap.String("sell", string(pair.SellAsset)),
				zap.String("buy", string(pair.BuyAsset)),
				zap.Error(err),
			)
			continue
		}
		points = append(points, point)
	}

	if r.storage != nil && len(points) > 0 {
		if err := r.storage.PutPricePoints(ctx, points); err != nil {
			r.logger.Error("store price points", zap.Error(err))
		}
	}

	r.logger.Info("cycle complete", zap.Int("pairs", len(r.cfg.Pairs)), zap.Int("points", len(points)))
}

func (r *Runner) observe(ctx context.Context, pair Pair, observedAt time.Time) (model.PricePoint, error) {
	sellRef := r.assets.Resolve(ctx, pair.SellAsset)
	buyRef := r.assets.Resolve(ctx, pair.BuyAsset)

	route, err := r.router.FindRoute(ctx, pair.SellAsset, pair.BuyAsset, nil)
	if err != nil {
		return model.PricePoint{}, fmt.Errorf("find route: %w", err)
	}
	if !r.engine.CanFetchReservesPrice(&sellRef, &buyRef, route) {
		return model.PricePoint{}, fmt.Errorf("reserves price gated closed for %s/%s", pair.SellAsset, pair.BuyAsset)
	}

	price, err := r.observePrice(ctx, sellRef, buyRef, route)
	if err != nil {
		return model.PricePoint{}, fmt.Errorf("reserves price: %w", err)
	}

	point := model.PricePoint{
		SellAsset:  sellRef.ID,
		BuyAsset:   buyRef.ID,
		RouteKey:   model.RouteKey(route),
		Price:      price,
		ObservedAt: observedAt,
	}

	if pair.IndexerPoolID != "" && r.engine.CanFetchAPR(pair.IndexerPoolID) {
		apr, err := r.observeAPR(ctx, pair.IndexerPoolID)
		if err != nil {
			r.logger.Warn("apr derivation failed",
				zap.String("pool_id", pair.IndexerPoolID),
				zap.Error(err),
			)
		} else {
			point.APR = &apr.APR
			point.TVLUSD = &apr.TVLUSD
		}
	}

	return point, nil
}

func (r *Runner) observePrice(ctx context.Context, sellRef, buyRef model.AssetReference, route []model.PoolID) (float64, error) {
	var price float64
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		result := r.engine.ReservesPrice(ctx, &sellRef, &buyRef, route)
		if result.Err != nil {
			// Error entries are terminal per key; reset before retrying.
			r.engine.InvalidateReservesPrice(sellRef.ID, buyRef.ID, route)
			return result.Err
		}
		if result.Loading {
			return fmt.Errorf("reserves price still in flight")
		}
		price = result.Value
		return nil
	})
	return price, err
}

func (r *Runner) observeAPR(ctx context.Context, poolID string) (model.APRResult, error) {
	var apr model.APRResult
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		result := r.engine.PoolAPR(ctx, poolID)
		if result.Err != nil {
			r.engine.InvalidateAPR(poolID)
			return result.Err
		}
		if result.Loading {
			return fmt.Errorf("apr still in flight")
		}
		apr = result.Value
		return nil
	})
	return apr, err
}

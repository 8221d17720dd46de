package pricing

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"time"

	"go.uber.org/zap"

	"pricingScope/internal/binding"
	"pricingScope/internal/config"
	"pricingScope/internal/indexer"
	"pricingScope/internal/model"
	"pricingScope/internal/quote"
)

// Config holds the engine tunables. Zero values fall back to the named
// defaults in the config package.
type Config struct {
	// ProbeAmount is the notional, in whole tokens of the sell asset, of
	// the simulated trade used to back-compute the reserves price. It must
	// be large enough to get a non-zero quote yet small next to the trade
	// whose impact is being measured.
	ProbeAmount  float64
	FreshWindow  time.Duration
	ExpireWindow time.Duration
	APRWindow    time.Duration
	Clock        Clock
}

// Engine combines quote and indexer results into derived pricing values with
// per-key caching, staleness windows and conditional fetch gating. Every
// failure is scoped to one derived value and one cache key.
type Engine struct {
	cfg     Config
	quote   quote.Client
	indexer indexer.Client
	logger  *zap.Logger

	prices   *keyedCache[float64]
	previews *keyedCache[model.PricePreview]
	aprs     *keyedCache[model.APRResult]
}

// NewEngine builds an Engine. Either client may be nil; the matching
// derivations then gate closed instead of failing.
func NewEngine(cfg Config, quoteClient quote.Client, indexerClient indexer.Client, logger *zap.Logger) *Engine {
	if cfg.ProbeAmount <= 0 {
		cfg.ProbeAmount = config.DefaultProbeAmount
	}
	if cfg.FreshWindow <= 0 {
		cfg.FreshWindow = config.DefaultFreshWindow
	}
	if cfg.ExpireWindow <= 0 {
		cfg.ExpireWindow = config.DefaultExpireWindow
	}
	if cfg.APRWindow <= 0 {
		cfg.APRWindow = config.DefaultAPRWindow
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		cfg:      cfg,
		quote:    quoteClient,
		indexer:  indexerClient,
		logger:   logger,
		prices:   newKeyedCache[float64](cfg.Clock, cfg.FreshWindow, cfg.ExpireWindow),
		previews: newKeyedCache[model.PricePreview](cfg.Clock, cfg.FreshWindow, cfg.ExpireWindow),
		aprs:     newKeyedCache[model.APRResult](cfg.Clock, cfg.FreshWindow, cfg.ExpireWindow),
	}
}

// resolve runs the shared fetch flow: serve fresh values, coalesce in-flight
// requests, revalidate stale values in the background, and fetch on miss.
func resolve[T any](ctx context.Context, cache *keyedCache[T], key string, logger *zap.Logger, fetch func(context.Context) (T, error)) binding.Result[T] {
	dec := cache.begin(key)
	switch dec.action {
	case actionServe:
		if dec.refresh {
			generation := dec.generation
			bg := context.WithoutCancel(ctx)
			go func() {
				value, err := fetch(bg)
				if err != nil {
					logger.Debug("background revalidate failed", zap.String("key", key), zap.Error(err))
				}
				cache.commit(key, generation, value, err)
			}()
		}
		return binding.Ready(dec.value)

	case actionPending:
		return binding.Pending[T]()

	case actionError:
		return binding.Failed[T](dec.err)

	default:
		value, err := fetch(ctx)
		if !cache.commit(key, dec.generation, value, err) {
			// Inputs changed while the request was outstanding; the
			// response no longer belongs to any current key.
			logger.Debug("discarded superseded response", zap.String("key", key))
			return binding.Pending[T]()
		}
		if err != nil {
			return binding.Failed[T](err)
		}
		return binding.Ready(value)
	}
}

// CanFetchReservesPrice reports whether a reserves-price query may be
// issued: quote client present and both assets resolved with a non-empty
// route. Key freshness is the cache's part of the gate.
func (e *Engine) CanFetchReservesPrice(sellAsset, buyAsset *model.AssetReference, route []model.PoolID) bool {
	return e.quote != nil &&
		sellAsset != nil && sellAsset.ID.Valid() &&
		buyAsset != nil && buyAsset.ID.Valid() &&
		len(route) > 0
}

// ReservesPrice returns the pool-implied marginal price of the buy asset per
// whole sell token, derived from a probe trade across the route.
func (e *Engine) ReservesPrice(ctx context.Context, sellAsset, buyAsset *model.AssetReference, route []model.PoolID) binding.Result[float64] {
	if !e.CanFetchReservesPrice(sellAsset, buyAsset, route) {
		return binding.None[float64]()
	}

	key := reservesPriceKey(sellAsset.ID, buyAsset.ID, route)
	sell, buy := *sellAsset, *buyAsset
	return resolve(ctx, e.prices, key, e.logger, func(ctx context.Context) (float64, error) {
		return e.fetchReservesPrice(ctx, sell, buy, route)
	})
}

// InvalidateReservesPrice resets the cache entry for a pair and route, e.g.
// when the selected asset changes or a manual refresh is requested. Any
// outstanding request for the old inputs is discarded on arrival.
func (e *Engine) InvalidateReservesPrice(sellAsset, buyAsset model.AssetID, route []model.PoolID) {
	e.prices.invalidate(reservesPriceKey(sellAsset, buyAsset, route))
}

func (e *Engine) fetchReservesPrice(ctx context.Context, sellAsset, buyAsset model.AssetReference, route []model.PoolID) (float64, error) {
	probeRaw := probeRawAmount(e.cfg.ProbeAmount, sellAsset.Decimals)
	if probeRaw.Sign() <= 0 {
		return 0, fmt.Errorf("%w: probe amount %g rounds to zero", model.ErrQuoteUnavailable, e.cfg.ProbeAmount)
	}

	preview, err := e.quote.PreviewExactInput(ctx, sellAsset.ID, probeRaw, route)
	if err != nil {
		return 0, err
	}
	if preview.OutputAmountRaw == nil || preview.OutputAmountRaw.Sign() == 0 {
		return 0, fmt.Errorf("%w: probe trade returned no output", model.ErrQuoteUnavailable)
	}

	out := new(big.Float).SetInt(preview.OutputAmountRaw)
	in := new(big.Float).SetInt(probeRaw)
	ratio, _ := new(big.Float).Quo(out, in).Float64()
	return ratio * math.Pow(10, float64(sellAsset.Decimals)-float64(buyAsset.Decimals)), nil
}

// CanFetchExactInput reports whether an exact-input preview may be issued.
// A zero, negative or malformed amount gates closed: the quote client is
// never called for it.
func (e *Engine) CanFetchExactInput(sellAsset *model.AssetReference, amount string, route []model.PoolID) bool {
	if e.quote == nil || sellAsset == nil || !sellAsset.ID.Valid() || len(route) == 0 {
		return false
	}
	raw, err := HumanToRaw(amount, sellAsset.Decimals)
	return err == nil && raw.Sign() > 0
}

// ExactInputPreview simulates selling the human-unit amount through the
// route and returns the quoted output.
func (e *Engine) ExactInputPreview(ctx context.Context, sellAsset *model.AssetReference, amount string, route []model.PoolID) binding.Result[model.PricePreview] {
	if !e.CanFetchExactInput(sellAsset, amount, route) {
		return binding.None[model.PricePreview]()
	}

	raw, err := HumanToRaw(amount, sellAsset.Decimals)
	if err != nil {
		return binding.None[model.PricePreview]()
	}

	assetID := sellAsset.ID
	key := previewKey(assetID, raw, route)
	return resolve(ctx, e.previews, key, e.logger, func(ctx context.Context) (model.PricePreview, error) {
		return e.quote.PreviewExactInput(ctx, assetID, raw, route)
	})
}

// CanFetchAPR reports whether the APR derivation may query the indexer.
func (e *Engine) CanFetchAPR(poolID string) bool {
	return e.indexer != nil && poolID != ""
}

// PoolAPR derives the annualized fee yield for a pool from its trailing fee
// snapshots over current TVL.
func (e *Engine) PoolAPR(ctx context.Context, poolID string) binding.Result[model.APRResult] {
	if !e.CanFetchAPR(poolID) {
		return binding.None[model.APRResult]()
	}

	key := aprKey(poolID)
	return resolve(ctx, e.aprs, key, e.logger, func(ctx context.Context) (model.APRResult, error) {
		return e.fetchAPR(ctx, poolID)
	})
}

// InvalidateAPR resets the APR cache entry for a pool.
func (e *Engine) InvalidateAPR(poolID string) {
	e.aprs.invalidate(aprKey(poolID))
}

func (e *Engine) fetchAPR(ctx context.Context, poolID string) (model.APRResult, error) {
	since := e.cfg.Clock().Add(-e.cfg.APRWindow).Unix()

	snapshots, err := e.indexer.PoolSnapshots(ctx, poolID, since)
	if err != nil {
		return model.APRResult{}, err
	}
	state, err := e.indexer.PoolState(ctx, poolID)
	if err != nil {
		return model.APRResult{}, err
	}

	return AnnualizedAPR(snapshots, state), nil
}

// InvalidateAll resets every cache entry, forcing fresh derivations.
func (e *Engine) InvalidateAll() {
	e.prices.invalidateAll()
	e.previews.invalidateAll()
	e.aprs.invalidateAll()
}

func reservesPriceKey(sellAsset, buyAsset model.AssetID, route []model.PoolID) string {
	return "price|" + string(sellAsset.Normalized()) + "|" + string(buyAsset.Normalized()) + "|" + model.RouteKey(route)
}

func previewKey(sellAsset model.AssetID, amountRaw *big.Int, route []model.PoolID) string {
	return "preview|" + string(sellAsset.Normalized()) + "|" + amountRaw.String() + "|" + model.RouteKey(route)
}

func aprKey(poolID string) string {
	return "apr|" + poolID
}

func probeRawAmount(probe float64, decimals uint8) *big.Int {
	scaled := new(big.Float).Mul(big.NewFloat(probe), big.NewFloat(math.Pow(10, float64(decimals))))
	raw, _ := scaled.Int(nil)
	return raw
}

package pricing

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pricingScope/internal/binding"
	"pricingScope/internal/indexer"
	"pricingScope/internal/model"
	"pricingScope/internal/quote"
)

const (
	assetSell = model.AssetID("0xf8f8b6283d7fa5b672b530cbb84fcccb4ff8dc40f8176ef4544ddb1f1952ad07")
	assetBuy  = model.AssetID("0x286c479da40dc953bddc3bb4c453b608bba2e0ac483b077bd475174115395e6b")
	assetAlt  = model.AssetID("0xccceeb1c83f9a8e2442e2b03ad8b2f2a5497a2c86bd1d312bcb1ab6c8b2a23c2")
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeQuote struct {
	mu         sync.Mutex
	calls      int
	lastAmount *big.Int
	outputRaw  *big.Int
	err        error

	// when set, each call signals started and blocks until release closes
	started chan struct{}
	release chan struct{}
}

func (f *fakeQuote) PreviewExactInput(_ context.Context, _ model.AssetID, amountRaw *big.Int, _ []model.PoolID) (model.PricePreview, error) {
	f.mu.Lock()
	f.calls++
	f.lastAmount = new(big.Int).Set(amountRaw)
	started, release := f.started, f.release
	out, err := f.outputRaw, f.err
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		<-release
	}
	if err != nil {
		return model.PricePreview{}, err
	}
	return model.PricePreview{OutputAmountRaw: new(big.Int).Set(out), PriceRaw: big.NewRat(1, 1)}, nil
}

func (f *fakeQuote) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeQuote) setError(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

type fakeIndexer struct {
	mu        sync.Mutex
	calls     int
	lastSince int64
	snapshots []model.PoolSnapshot
	state     model.PoolState
	err       error
}

func (f *fakeIndexer) PoolSnapshots(_ context.Context, _ string, since int64) ([]model.PoolSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastSince = since
	if f.err != nil {
		return nil, f.err
	}
	return f.snapshots, nil
}

func (f *fakeIndexer) PoolState(_ context.Context, _ string) (model.PoolState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return model.PoolState{}, f.err
	}
	return f.state, nil
}

func testRoute() []model.PoolID {
	return []model.PoolID{model.BuildPoolID(assetSell, assetBuy, false)}
}

func testRefs() (model.AssetReference, model.AssetReference) {
	sell := model.AssetReference{ID: assetSell, Symbol: "ETH", Decimals: 2}
	buy := model.AssetReference{ID: assetBuy, Symbol: "USDC", Decimals: 2}
	return sell, buy
}

func newTestEngine(quoteClient quote.Client, indexerClient indexer.Client, clock *fakeClock) *Engine {
	return NewEngine(Config{ProbeAmount: 1000, Clock: clock.Now}, quoteClient, indexerClient, nil)
}

func TestReservesPriceValue(t *testing.T) {
	clock := newFakeClock()
	// probe 1000 whole tokens at 2 decimals = 100000 raw in, 200000 raw out
	quoteClient := &fakeQuote{outputRaw: big.NewInt(200000)}
	engine := newTestEngine(quoteClient, nil, clock)
	sell, buy := testRefs()

	result := engine.ReservesPrice(context.Background(), &sell, &buy, testRoute())
	require.NoError(t, result.Err)
	require.False(t, result.Loading)
	require.InDelta(t, 2.0, result.Value, 1e-9)
	require.Equal(t, "100000", quoteClient.lastAmount.String())
}

func TestReservesPriceDedupeWithinFreshWindow(t *testing.T) {
	clock := newFakeClock()
	quoteClient := &fakeQuote{outputRaw: big.NewInt(200000)}
	engine := newTestEngine(quoteClient, nil, clock)
	sell, buy := testRefs()

	first := engine.ReservesPrice(context.Background(), &sell, &buy, testRoute())
	clock.Advance(10 * time.Second)
	second := engine.ReservesPrice(context.Background(), &sell, &buy, testRoute())

	require.Equal(t, 1, quoteClient.callCount())
	require.Equal(t, first.Value, second.Value)
}

func TestReservesPriceRefetchAfterHardExpiry(t *testing.T) {
	clock := newFakeClock()
	quoteClient := &fakeQuote{outputRaw: big.NewInt(200000)}
	engine := newTestEngine(quoteClient, nil, clock)
	sell, buy := testRefs()

	engine.ReservesPrice(context.Background(), &sell, &buy, testRoute())
	clock.Advance(61 * time.Second)
	result := engine.ReservesPrice(context.Background(), &sell, &buy, testRoute())

	require.Equal(t, 2, quoteClient.callCount())
	require.NoError(t, result.Err)
}

func TestReservesPriceStaleServedWhileRevalidating(t *testing.T) {
	clock := newFakeClock()
	quoteClient := &fakeQuote{outputRaw: big.NewInt(200000)}
	engine := newTestEngine(quoteClient, nil, clock)
	sell, buy := testRefs()

	first := engine.ReservesPrice(context.Background(), &sell, &buy, testRoute())
	require.NoError(t, first.Err)

	started := make(chan struct{}, 1)
	quoteClient.mu.Lock()
	quoteClient.started = started
	quoteClient.outputRaw = big.NewInt(400000)
	quoteClient.mu.Unlock()

	clock.Advance(45 * time.Second)
	stale := engine.ReservesPrice(context.Background(), &sell, &buy, testRoute())
	require.NoError(t, stale.Err)
	require.Equal(t, first.Value, stale.Value)

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected a background revalidation request")
	}
	require.Equal(t, 2, quoteClient.callCount())
}

func TestReservesPriceErrorTerminalUntilInvalidated(t *testing.T) {
	clock := newFakeClock()
	quoteClient := &fakeQuote{err: fmt.Errorf("%w: no liquidity", model.ErrQuoteUnavailable)}
	engine := newTestEngine(quoteClient, nil, clock)
	sell, buy := testRefs()

	first := engine.ReservesPrice(context.Background(), &sell, &buy, testRoute())
	require.ErrorIs(t, first.Err, model.ErrQuoteUnavailable)

	second := engine.ReservesPrice(context.Background(), &sell, &buy, testRoute())
	require.ErrorIs(t, second.Err, model.ErrQuoteUnavailable)
	require.Equal(t, 1, quoteClient.callCount())

	quoteClient.setError(nil)
	quoteClient.mu.Lock()
	quoteClient.outputRaw = big.NewInt(200000)
	quoteClient.mu.Unlock()

	engine.InvalidateReservesPrice(assetSell, assetBuy, testRoute())
	third := engine.ReservesPrice(context.Background(), &sell, &buy, testRoute())
	require.NoError(t, third.Err)
	require.Equal(t, 2, quoteClient.callCount())
}

func TestReservesPriceLateResponseDiscarded(t *testing.T) {
	clock := newFakeClock()
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	quoteClient := &fakeQuote{outputRaw: big.NewInt(200000), started: started, release: release}
	engine := newTestEngine(quoteClient, nil, clock)
	sell, buy := testRefs()

	results := make(chan binding.Result[float64], 1)
	go func() {
		results <- engine.ReservesPrice(context.Background(), &sell, &buy, testRoute())
	}()

	<-started
	// the sell asset changed while the request was outstanding
	engine.InvalidateReservesPrice(assetSell, assetBuy, testRoute())
	close(release)

	result := <-results
	require.True(t, result.Loading, "superseded response must not be committed")

	key := reservesPriceKey(assetSell, assetBuy, testRoute())
	require.Equal(t, StateIdle, engine.prices.state(key))
}

func TestReservesPriceCoalescesInFlight(t *testing.T) {
	clock := newFakeClock()
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	quoteClient := &fakeQuote{outputRaw: big.NewInt(200000), started: started, release: release}
	engine := newTestEngine(quoteClient, nil, clock)
	sell, buy := testRefs()

	results := make(chan binding.Result[float64], 1)
	go func() {
		results <- engine.ReservesPrice(context.Background(), &sell, &buy, testRoute())
	}()

	<-started
	coalesced := engine.ReservesPrice(context.Background(), &sell, &buy, testRoute())
	require.True(t, coalesced.Loading)
	require.Equal(t, 1, quoteClient.callCount())

	close(release)
	winner := <-results
	require.NoError(t, winner.Err)
	require.Equal(t, 1, quoteClient.callCount())
}

func TestReservesPriceGating(t *testing.T) {
	clock := newFakeClock()
	quoteClient := &fakeQuote{outputRaw: big.NewInt(200000)}
	engine := newTestEngine(quoteClient, nil, clock)
	sell, buy := testRefs()

	require.False(t, engine.CanFetchReservesPrice(nil, &buy, testRoute()))
	require.False(t, engine.CanFetchReservesPrice(&sell, nil, testRoute()))
	require.False(t, engine.CanFetchReservesPrice(&sell, &buy, nil))
	require.True(t, engine.CanFetchReservesPrice(&sell, &buy, testRoute()))

	noQuote := newTestEngine(nil, nil, clock)
	result := noQuote.ReservesPrice(context.Background(), &sell, &buy, testRoute())
	require.NoError(t, result.Err)
	require.False(t, result.Loading)
	require.Equal(t, 0.0, result.Value)
	require.Equal(t, 0, quoteClient.callCount())
}

func TestReservesPriceZeroProbeOutput(t *testing.T) {
	clock := newFakeClock()
	quoteClient := &fakeQuote{outputRaw: big.NewInt(0)}
	engine := newTestEngine(quoteClient, nil, clock)
	sell, buy := testRefs()

	result := engine.ReservesPrice(context.Background(), &sell, &buy, testRoute())
	require.ErrorIs(t, result.Err, model.ErrQuoteUnavailable)
}

func TestExactInputPreviewShortCircuitsInvalidAmounts(t *testing.T) {
	clock := newFakeClock()
	quoteClient := &fakeQuote{outputRaw: big.NewInt(200000)}
	engine := newTestEngine(quoteClient, nil, clock)
	sell, _ := testRefs()

	for _, amount := range []string{"", "0", "0.00", "abc", "-5"} {
		result := engine.ExactInputPreview(context.Background(), &sell, amount, testRoute())
		require.NoError(t, result.Err)
		require.False(t, result.Loading)
	}
	require.Equal(t, 0, quoteClient.callCount(), "adapter must not be called for invalid amounts")
}

func TestExactInputPreviewScalesAmount(t *testing.T) {
	clock := newFakeClock()
	quoteClient := &fakeQuote{outputRaw: big.NewInt(4200)}
	engine := newTestEngine(quoteClient, nil, clock)
	sell, _ := testRefs()

	result := engine.ExactInputPreview(context.Background(), &sell, "1.5", testRoute())
	require.NoError(t, result.Err)
	require.Equal(t, "150", quoteClient.lastAmount.String())
	require.Equal(t, "4200", result.Value.OutputAmountRaw.String())
}

func TestPoolAPRDerivation(t *testing.T) {
	clock := newFakeClock()
	indexerClient := &fakeIndexer{
		snapshots: []model.PoolSnapshot{{FeesUSD: 100, Timestamp: 10}},
		state:     model.PoolState{TVLUSD: 10000, Reserve0Decimal: 1, Reserve1Decimal: 2},
	}
	engine := newTestEngine(nil, indexerClient, clock)

	result := engine.PoolAPR(context.Background(), "pool-1")
	require.NoError(t, result.Err)
	require.InDelta(t, 365.0, result.Value.APR, 1e-9)
	require.Equal(t, clock.Now().Add(-24*time.Hour).Unix(), indexerClient.lastSince)
}

func TestPoolAPRCached(t *testing.T) {
	clock := newFakeClock()
	indexerClient := &fakeIndexer{state: model.PoolState{TVLUSD: 500}}
	engine := newTestEngine(nil, indexerClient, clock)

	engine.PoolAPR(context.Background(), "pool-1")
	engine.PoolAPR(context.Background(), "pool-1")
	require.Equal(t, 1, indexerClient.calls)
}

func TestPoolAPRIndexerErrorSurfaces(t *testing.T) {
	clock := newFakeClock()
	indexerClient := &fakeIndexer{err: fmt.Errorf("%w: boom", model.ErrIndexerUnavailable)}
	engine := newTestEngine(nil, indexerClient, clock)

	result := engine.PoolAPR(context.Background(), "pool-1")
	require.True(t, errors.Is(result.Err, model.ErrIndexerUnavailable))
}

func TestPoolAPRGating(t *testing.T) {
	clock := newFakeClock()
	engine := newTestEngine(nil, &fakeIndexer{}, clock)

	require.False(t, engine.CanFetchAPR(""))
	require.True(t, engine.CanFetchAPR("pool-1"))

	noIndexer := newTestEngine(nil, nil, clock)
	require.False(t, noIndexer.CanFetchAPR("pool-1"))
}

func TestDistinctKeysFetchIndependently(t *testing.T) {
	clock := newFakeClock()
	quoteClient := &fakeQuote{outputRaw: big.NewInt(200000)}
	engine := newTestEngine(quoteClient, nil, clock)
	sell, buy := testRefs()
	alt := model.AssetReference{ID: assetAlt, Symbol: "DAI", Decimals: 2}
	altRoute := []model.PoolID{model.BuildPoolID(assetSell, assetAlt, false)}

	engine.ReservesPrice(context.Background(), &sell, &buy, testRoute())
	engine.ReservesPrice(context.Background(), &sell, &alt, altRoute)

	require.Equal(t, 2, quoteClient.callCount())
}

package model

import "math/big"

// PricePreview is the result of a quote request. It lives for one query cycle
// and is never cached.
type PricePreview struct {
	OutputAmountRaw *big.Int
	PriceRaw        *big.Rat
}

// PoolSnapshot is one fee observation returned by the indexer.
type PoolSnapshot struct {
	FeesUSD   float64 `json:"feesUSD"`
	Timestamp int64   `json:"timestamp"`
}

// PoolState is the current indexed state of a pool.
type PoolState struct {
	TVLUSD          float64 `json:"tvlUSD"`
	Reserve0Decimal float64 `json:"reserve0Decimal"`
	Reserve1Decimal float64 `json:"reserve1Decimal"`
}

// APRResult is the annualized fee yield derived from trailing fee snapshots
// over total value locked.
type APRResult struct {
	APR      float64 `json:"apr"`
	TVLUSD   float64 `json:"tvlUSD"`
	Reserve0 float64 `json:"reserve0"`
	Reserve1 float64 `json:"reserve1"`
}

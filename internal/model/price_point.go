package model

import "time"

// PricePoint is one persisted derived-pricing observation produced by the
// watch loop.
type PricePoint struct {
	SellAsset  AssetID   `json:"sell_asset"`
	BuyAsset   AssetID   `json:"buy_asset"`
	RouteKey   string    `json:"route_key"`
	Price      float64   `json:"price"`
	APR        *float64  `json:"apr,omitempty"`
	TVLUSD     *float64  `json:"tvl_usd,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
}

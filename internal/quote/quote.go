package quote

import (
	"context"
	"math/big"

	"pricingScope/internal/model"
)

// Client obtains swap previews from the external AMM. Implementations are
// pass-through: no caching, no retries.
type Client interface {
	// PreviewExactInput simulates selling amountRaw of assetIn through the
	// given pool route and returns the resulting output amount and implied
	// price. Fails with model.ErrQuoteUnavailable when the route has no
	// liquidity or the client is unreachable.
	PreviewExactInput(ctx context.Context, assetIn model.AssetID, amountRaw *big.Int, route []model.PoolID) (model.PricePreview, error)
}

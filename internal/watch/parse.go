package watch

import (
	"fmt"
	"strings"

	"pricingScope/internal/model"
)

// Pair is one asset pair the watch loop derives prices for. IndexerPoolID is
// the pool's id at the indexer; when empty the APR derivation is skipped.
type Pair struct {
	SellAsset     model.AssetID
	BuyAsset      model.AssetID
	IndexerPoolID string
}

// ParsePairs parses pair specs of the form "sellAsset:buyAsset[:poolId]".
func ParsePairs(inputs []string) ([]Pair, error) {
	pairs := make([]Pair, 0, len(inputs))
	for _, input := range inputs {
		parts := strings.Split(strings.TrimSpace(input), ":")
		if len(parts) != 2 && len(parts) != 3 {
			return nil, fmt.Errorf("invalid pair spec %q: want sell:buy[:poolId]", input)
		}

		sell := model.AssetID(parts[0]).Normalized()
		buy := model.AssetID(parts[1]).Normalized()
		if !sell.Valid() {
			return nil, fmt.Errorf("invalid sell asset in pair %q", input)
		}
		if !buy.Valid() {
			return nil, fmt.Errorf("invalid buy asset in pair %q", input)
		}
		if sell == buy {
			return nil, fmt.Errorf("pair %q has identical assets", input)
		}

		pair := Pair{SellAsset: sell, BuyAsset: buy}
		if len(parts) == 3 {
			pair.IndexerPoolID = parts[2]
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

package storage

import (
	"context"

	"pricingScope/internal/model"
)

// Storage defines a sink for derived price observations.
type Storage interface {
	PutPricePoints(ctx context.Context, points []model.PricePoint) error
}

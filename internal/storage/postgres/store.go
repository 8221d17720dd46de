package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pricingScope/internal/model"
)

// Store provides Postgres persistence for price observations.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// PutPricePoints inserts a batch of derived price observations.
func (s *Store) PutPricePoints(ctx context.Context, points []model.PricePoint) error {
	if len(points) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, point := range points {
		batch.Queue(`
			INSERT INTO price_points (
				sell_asset, buy_asset, route_key, price, apr, tvl_usd, observed_at, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		`,
			string(point.SellAsset),
			string(point.BuyAsset),
			point.RouteKey,
			point.Price,
			point.APR,
			point.TVLUSD,
			point.ObservedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range points {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

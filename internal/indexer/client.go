package indexer

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/machinebox/graphql"
	"go.uber.org/zap"

	"pricingScope/internal/model"
)

// Client issues read-only queries against the pool indexer. Queries are
// idempotent and safe to retry by the caller.
type Client interface {
	// PoolSnapshots returns fee snapshots for the pool with timestamps
	// strictly greater than since (unix seconds). A pool unknown to the
	// indexer yields an empty list.
	PoolSnapshots(ctx context.Context, poolID string, since int64) ([]model.PoolSnapshot, error)

	// PoolState returns the current indexed TVL and reserves for the pool.
	PoolState(ctx context.Context, poolID string) (model.PoolState, error)
}

const poolSnapshotsQuery = `
query PoolSnapshots($id: String!, $since: BigInt!) {
  poolById(id: $id) {
    snapshots(where: {timestamp_gt: $since}) {
      feesUSD
      timestamp
    }
  }
}`

const poolStateQuery = `
query PoolState($id: String!) {
  poolById(id: $id) {
    tvlUSD
    reserve0Decimal
    reserve1Decimal
  }
}`

// GraphQLClient implements Client over a GraphQL endpoint.
type GraphQLClient struct {
	gql    *graphql.Client
	logger *zap.Logger
}

// NewGraphQLClient builds a client for the indexer endpoint.
func NewGraphQLClient(endpoint string, logger *zap.Logger) (*GraphQLClient, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("indexer endpoint is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := &http.Client{Timeout: 15 * time.Second}
	return &GraphQLClient{
		gql:    graphql.NewClient(endpoint, graphql.WithHTTPClient(httpClient)),
		logger: logger,
	}, nil
}

type snapshotsResponse struct {
	PoolByID *struct {
		Snapshots []struct {
			FeesUSD   string `json:"feesUSD"`
			Timestamp string `json:"timestamp"`
		} `json:"snapshots"`
	} `json:"poolById"`
}

// PoolSnapshots implements Client.
func (c *GraphQLClient) PoolSnapshots(ctx context.Context, poolID string, since int64) ([]model.PoolSnapshot, error) {
	req := graphql.NewRequest(poolSnapshotsQuery)
	req.Var("id", poolID)
	req.Var("since", strconv.FormatInt(since, 10))

	var resp snapshotsResponse
	if err := c.gql.Run(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("%w: pool snapshots: %v", model.ErrIndexerUnavailable, err)
	}
	if resp.PoolByID == nil {
		c.logger.Debug("pool unknown to indexer", zap.String("pool_id", poolID))
		return nil, nil
	}

	snapshots := make([]model.PoolSnapshot, 0, len(resp.PoolByID.Snapshots))
	for _, raw := range resp.PoolByID.Snapshots {
		fees, err := strconv.ParseFloat(raw.FeesUSD, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: parse feesUSD %q: %v", model.ErrIndexerUnavailable, raw.FeesUSD, err)
		}
		ts, err := strconv.ParseInt(raw.Timestamp, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: parse timestamp %q: %v", model.ErrIndexerUnavailable, raw.Timestamp, err)
		}
		snapshots = append(snapshots, model.PoolSnapshot{FeesUSD: fees, Timestamp: ts})
	}
	return snapshots, nil
}

type stateResponse struct {
	PoolByID *struct {
		TVLUSD          string `json:"tvlUSD"`
		Reserve0Decimal string `json:"reserve0Decimal"`
		Reserve1Decimal string `json:"reserve1Decimal"`
	} `json:"poolById"`
}

// PoolState implements Client.
func (c *GraphQLClient) PoolState(ctx context.Context, poolID string) (model.PoolState, error) {
	req := graphql.NewRequest(poolStateQuery)
	req.Var("id", poolID)

	var resp stateResponse
	if err := c.gql.Run(ctx, req, &resp); err != nil {
		return model.PoolState{}, fmt.Errorf("%w: pool state: %v", model.ErrIndexerUnavailable, err)
	}
	if resp.PoolByID == nil {
		return model.PoolState{}, fmt.Errorf("%w: pool %s not indexed", model.ErrIndexerUnavailable, poolID)
	}

	tvl, err := strconv.ParseFloat(resp.PoolByID.TVLUSD, 64)
	if err != nil {
		return model.PoolState{}, fmt.Errorf("%w: parse tvlUSD %q: %v", model.ErrIndexerUnavailable, resp.PoolByID.TVLUSD, err)
	}
	reserve0, err := strconv.ParseFloat(resp.PoolByID.Reserve0Decimal, 64)
	if err != nil {
		return model.PoolState{}, fmt.Errorf("%w: parse reserve0Decimal %q: %v", model.ErrIndexerUnavailable, resp.PoolByID.Reserve0Decimal, err)
	}
	reserve1, err := strconv.ParseFloat(resp.PoolByID.Reserve1Decimal, 64)
	if err != nil {
		return model.PoolState{}, fmt.Errorf("%w: parse reserve1Decimal %q: %v", model.ErrIndexerUnavailable, resp.PoolByID.Reserve1Decimal, err)
	}

	return model.PoolState{
		TVLUSD:          tvl,
		Reserve0Decimal: reserve0,
		Reserve1Decimal: reserve1,
	}, nil
}

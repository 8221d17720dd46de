package quote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"pricingScope/internal/model"
)

// Router resolves the pool route for a swap. It asks the external
// route-finder service first and falls back to the two direct pool
// candidates (volatile and stable) when no routed path is available.
type Router struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewRouter builds a Router. An empty baseURL disables the route-finder
// service and always yields the direct candidates.
func NewRouter(baseURL string, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

type findRouteRequest struct {
	Input     string `json:"input"`
	Output    string `json:"output"`
	Amount    string `json:"amount"`
	TradeType string `json:"trade_type"`
}

type findRouteResponse struct {
	Path [][3]json.RawMessage `json:"path"`
}

// FindRoute returns an ordered pool route from the sell asset to the buy
// asset for an exact-input trade of amountRaw.
func (r *Router) FindRoute(ctx context.Context, sellAsset, buyAsset model.AssetID, amountRaw *big.Int) ([]model.PoolID, error) {
	direct := DirectCandidates(sellAsset, buyAsset)
	if r.baseURL == "" {
		return direct, nil
	}

	route, err := r.queryRouteFinder(ctx, sellAsset, buyAsset, amountRaw)
	if err != nil {
		r.logger.Warn("route finder failed, using direct candidates",
			zap.Error(err),
			zap.String("sell", string(sellAsset)),
			zap.String("buy", string(buyAsset)),
		)
		return direct, nil
	}
	if len(route) == 0 {
		return direct, nil
	}
	return route, nil
}

func (r *Router) queryRouteFinder(ctx context.Context, sellAsset, buyAsset model.AssetID, amountRaw *big.Int) ([]model.PoolID, error) {
	amount := "0"
	if amountRaw != nil {
		amount = amountRaw.String()
	}
	body, err := json.Marshal(findRouteRequest{
		Input:     string(sellAsset),
		Output:    string(buyAsset),
		Amount:    amount,
		TradeType: "ExactInput",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal route request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/find_route", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build route request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("route request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("no route found")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("route finder status %d", resp.StatusCode)
	}

	var decoded findRouteResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode route response: %w", err)
	}

	route := make([]model.PoolID, 0, len(decoded.Path))
	for _, hop := range decoded.Path {
		var input, output string
		var stable bool
		if err := json.Unmarshal(hop[0], &input); err != nil {
			return nil, fmt.Errorf("decode route hop input: %w", err)
		}
		if err := json.Unmarshal(hop[1], &output); err != nil {
			return nil, fmt.Errorf("decode route hop output: %w", err)
		}
		if err := json.Unmarshal(hop[2], &stable); err != nil {
			return nil, fmt.Errorf("decode route hop stable: %w", err)
		}
		route = append(route, model.BuildPoolID(withHexPrefix(input), withHexPrefix(output), stable))
	}
	return route, nil
}

// DirectCandidates returns the volatile and stable direct pools for a pair.
func DirectCandidates(sellAsset, buyAsset model.AssetID) []model.PoolID {
	return []model.PoolID{
		model.BuildPoolID(sellAsset, buyAsset, false),
		model.BuildPoolID(sellAsset, buyAsset, true),
	}
}

func withHexPrefix(id string) model.AssetID {
	if !strings.HasPrefix(id, "0x") {
		id = "0x" + id
	}
	return model.AssetID(id)
}

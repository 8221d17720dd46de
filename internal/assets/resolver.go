package assets

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"pricingScope/internal/chain"
	"pricingScope/internal/model"
)

const registryABIJSON = `[
  {"inputs": [{"internalType": "bytes32", "name": "assetId", "type": "bytes32"}], "name": "assetSymbol", "outputs": [{"internalType": "string", "name": "", "type": "string"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"internalType": "bytes32", "name": "assetId", "type": "bytes32"}], "name": "assetDecimals", "outputs": [{"internalType": "uint8", "name": "", "type": "uint8"}], "stateMutability": "view", "type": "function"}
]`

var (
	registryABI    abi.ABI
	registryOnce   sync.Once
	registryABIErr error
)

func getRegistryABI() (abi.ABI, error) {
	registryOnce.Do(func() {
		registryABI, registryABIErr = abi.JSON(strings.NewReader(registryABIJSON))
	})
	return registryABI, registryABIErr
}

// Resolver loads asset metadata from the on-chain asset registry and caches
// it by asset id. Resolved references are immutable.
type Resolver struct {
	chainClient *chain.Client
	registry    common.Address
	logger      *zap.Logger

	mu   sync.RWMutex
	data map[model.AssetID]model.AssetReference
}

// NewResolver builds a Resolver bound to the registry contract address.
func NewResolver(chainClient *chain.Client, registryAddress string, logger *zap.Logger) (*Resolver, error) {
	if chainClient == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	if !common.IsHexAddress(registryAddress) {
		return nil, fmt.Errorf("invalid registry address: %s", registryAddress)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		chainClient: chainClient,
		registry:    common.HexToAddress(registryAddress),
		logger:      logger,
		data:        make(map[model.AssetID]model.AssetReference),
	}, nil
}

// Resolve returns the asset reference for an id. When metadata cannot be
// loaded the reference falls back to an empty symbol and 0 decimals.
func (r *Resolver) Resolve(ctx context.Context, id model.AssetID) model.AssetReference {
	id = id.Normalized()

	r.mu.RLock()
	ref, ok := r.data[id]
	r.mu.RUnlock()
	if ok {
		return ref
	}

	ref = model.AssetReference{ID: id}
	symbol, decimals, err := r.fetchMeta(ctx, id)
	if err != nil {
		r.logger.Warn("asset metadata unavailable, using defaults",
			zap.String("asset", string(id)),
			zap.Error(err),
		)
	} else {
		ref.Symbol = symbol
		ref.Decimals = decimals
	}

	r.mu.Lock()
	r.data[id] = ref
	r.mu.Unlock()

	return ref
}

func (r *Resolver) fetchMeta(ctx context.Context, id model.AssetID) (string, uint8, error) {
	registryABI, err := getRegistryABI()
	if err != nil {
		return "", 0, fmt.Errorf("parse registry abi: %w", err)
	}

	assetID := common.HexToHash(string(id))

	values, err := r.callRegistry(ctx, registryABI, "assetSymbol", assetID)
	if err != nil {
		return "", 0, err
	}
	symbol, ok := values[0].(string)
	if !ok {
		return "", 0, fmt.Errorf("assetSymbol unexpected type %T", values[0])
	}

	values, err = r.callRegistry(ctx, registryABI, "assetDecimals", assetID)
	if err != nil {
		return "", 0, err
	}
	decimals, ok := values[0].(uint8)
	if !ok {
		return "", 0, fmt.Errorf("assetDecimals unexpected type %T", values[0])
	}

	return symbol, decimals, nil
}

func (r *Resolver) callRegistry(ctx context.Context, registryABI abi.ABI, method string, assetID common.Hash) ([]interface{}, error) {
	data, err := registryABI.Pack(method, assetID)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	msg := ethereum.CallMsg{To: &r.registry, Data: data}
	resp, err := r.chainClient.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	values, err := registryABI.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("%s return size %d", method, len(values))
	}
	return values, nil
}

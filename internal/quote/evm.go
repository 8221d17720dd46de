package quote

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"pricingScope/internal/chain"
	"pricingScope/internal/model"
)

const quoterABIJSON = `[
  {"inputs": [
     {"internalType": "bytes32", "name": "assetIn", "type": "bytes32"},
     {"internalType": "uint256", "name": "amountIn", "type": "uint256"},
     {"components": [
        {"internalType": "bytes32", "name": "assetA", "type": "bytes32"},
        {"internalType": "bytes32", "name": "assetB", "type": "bytes32"},
        {"internalType": "bool", "name": "stable", "type": "bool"}
      ], "internalType": "struct Quoter.PoolId[]", "name": "route", "type": "tuple[]"}
   ],
   "name": "previewSwapExactInput",
   "outputs": [
     {"internalType": "uint256", "name": "amountOut", "type": "uint256"},
     {"internalType": "uint256", "name": "priceNum", "type": "uint256"},
     {"internalType": "uint256", "name": "priceDen", "type": "uint256"}
   ],
   "stateMutability": "view", "type": "function"}
]`

var (
	quoterABI    abi.ABI
	quoterOnce   sync.Once
	quoterABIErr error
)

func getQuoterABI() (abi.ABI, error) {
	quoterOnce.Do(func() {
		quoterABI, quoterABIErr = abi.JSON(strings.NewReader(quoterABIJSON))
	})
	return quoterABI, quoterABIErr
}

type poolTuple struct {
	AssetA [32]byte
	AssetB [32]byte
	Stable bool
}

// EVMQuoter previews swaps via eth_call against the AMM quoter contract.
type EVMQuoter struct {
	chainClient *chain.Client
	quoter      common.Address
}

// NewEVMQuoter builds a quote client bound to the quoter contract address.
func NewEVMQuoter(chainClient *chain.Client, quoterAddress string) (*EVMQuoter, error) {
	if chainClient == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	if !common.IsHexAddress(quoterAddress) {
		return nil, fmt.Errorf("invalid quoter address: %s", quoterAddress)
	}
	return &EVMQuoter{
		chainClient: chainClient,
		quoter:      common.HexToAddress(quoterAddress),
	}, nil
}

// PreviewExactInput implements Client.
func (q *EVMQuoter) PreviewExactInput(ctx context.Context, assetIn model.AssetID, amountRaw *big.Int, route []model.PoolID) (model.PricePreview, error) {
	if !assetIn.Valid() {
		return model.PricePreview{}, fmt.Errorf("invalid asset id: %s", assetIn)
	}
	if amountRaw == nil || amountRaw.Sign() < 0 {
		return model.PricePreview{}, fmt.Errorf("amount must be a non-negative integer")
	}
	if len(route) == 0 {
		return model.PricePreview{}, fmt.Errorf("route must not be empty")
	}

	quoterABI, err := getQuoterABI()
	if err != nil {
		return model.PricePreview{}, fmt.Errorf("parse quoter abi: %w", err)
	}

	pools := make([]poolTuple, 0, len(route))
	for _, pool := range route {
		pools = append(pools, poolTuple{
			AssetA: common.HexToHash(string(pool.AssetA)),
			AssetB: common.HexToHash(string(pool.AssetB)),
			Stable: pool.Stable,
		})
	}

	data, err := quoterABI.Pack("previewSwapExactInput", common.HexToHash(string(assetIn)), amountRaw, pools)
	if err != nil {
		return model.PricePreview{}, fmt.Errorf("pack previewSwapExactInput: %w", err)
	}

	msg := ethereum.CallMsg{To: &q.quoter, Data: data}
	resp, err := q.chainClient.CallContract(ctx, msg, nil)
	if err != nil {
		return model.PricePreview{}, fmt.Errorf("%w: call previewSwapExactInput: %v", model.ErrQuoteUnavailable, err)
	}

	values, err := quoterABI.Unpack("previewSwapExactInput", resp)
	if err != nil {
		return model.PricePreview{}, fmt.Errorf("%w: unpack previewSwapExactInput: %v", model.ErrQuoteUnavailable, err)
	}
	if len(values) != 3 {
		return model.PricePreview{}, fmt.Errorf("%w: previewSwapExactInput return size %d", model.ErrQuoteUnavailable, len(values))
	}

	amountOut, err := asBigInt(values[0])
	if err != nil {
		return model.PricePreview{}, fmt.Errorf("%w: amountOut: %v", model.ErrQuoteUnavailable, err)
	}
	priceNum, err := asBigInt(values[1])
	if err != nil {
		return model.PricePreview{}, fmt.Errorf("%w: priceNum: %v", model.ErrQuoteUnavailable, err)
	}
	priceDen, err := asBigInt(values[2])
	if err != nil {
		return model.PricePreview{}, fmt.Errorf("%w: priceDen: %v", model.ErrQuoteUnavailable, err)
	}
	if priceDen.Sign() == 0 {
		return model.PricePreview{}, fmt.Errorf("%w: zero price denominator", model.ErrQuoteUnavailable)
	}

	return model.PricePreview{
		OutputAmountRaw: amountOut,
		PriceRaw:        new(big.Rat).SetFrac(priceNum, priceDen),
	}, nil
}

func asBigInt(value interface{}) (*big.Int, error) {
	out, ok := value.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected type %T", value)
	}
	return out, nil
}

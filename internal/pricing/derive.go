package pricing

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"pricingScope/internal/model"
)

// HiddenImpact is the sentinel for "not yet computable": it is distinct from
// a computed zero-impact trade so callers can hide the display.
const HiddenImpact = -1.0

// maxPriceImpact caps the reported impact for pathological inputs such as
// near-empty pools.
const maxPriceImpact = 99.99

// Severity thresholds are part of the observable contract, not styling.
const (
	HighImpactThreshold   = 5.0
	MediumImpactThreshold = 2.0
)

// ImpactSeverity classifies a price impact for display emphasis.
type ImpactSeverity string

const (
	ImpactNormal ImpactSeverity = "normal"
	ImpactMedium ImpactSeverity = "medium"
	ImpactHigh   ImpactSeverity = "high"
)

// PriceImpact returns the adverse price deviation in percent between the
// pool-implied price before the trade and the price implied by the simulated
// trade. Undefined inputs or a zero reserves price yield HiddenImpact. A
// trade that improves or holds the price reports 0: impact is only ever an
// adverse deviation.
func PriceImpact(reservesPrice, previewPrice *float64) float64 {
	if reservesPrice == nil || previewPrice == nil || *reservesPrice == 0 {
		return HiddenImpact
	}
	if *reservesPrice <= *previewPrice {
		return 0
	}
	impact := (*reservesPrice - *previewPrice) / *reservesPrice * 100
	if impact > maxPriceImpact {
		return maxPriceImpact
	}
	return impact
}

// SeverityFor maps an impact percentage to its display band.
func SeverityFor(impact float64) ImpactSeverity {
	switch {
	case impact > HighImpactThreshold:
		return ImpactHigh
	case impact > MediumImpactThreshold:
		return ImpactMedium
	default:
		return ImpactNormal
	}
}

// PreviewPrice derives the trade-implied price (buy amount per sell unit)
// from a swap form. Nil when either amount is missing, malformed, or the sell
// amount is zero.
func PreviewPrice(state model.SwapState) *float64 {
	sell, err := strconv.ParseFloat(state.Sell.Amount, 64)
	if err != nil || sell == 0 {
		return nil
	}
	buy, err := strconv.ParseFloat(state.Buy.Amount, 64)
	if err != nil {
		return nil
	}
	price := buy / sell
	return &price
}

// ExchangeRate renders "1 {sym} ≈ {rate} {otherSym}" for the given mode,
// formatted to the other asset's declared decimals. The second return is
// false ("no rate") when either amount is empty, either asset is unresolved,
// or the active-mode amount parses to zero. Toggling the mode is pure and
// never triggers a fetch: both directions are computable from the amounts
// already on the form.
func ExchangeRate(state model.SwapState, mode model.TradeMode) (string, bool) {
	active := state.Side(mode)
	other := state.Side(mode.Other())

	if active.Asset == nil || other.Asset == nil {
		return "", false
	}
	if active.Amount == "" || other.Amount == "" {
		return "", false
	}

	activeAmount, err := strconv.ParseFloat(active.Amount, 64)
	if err != nil || activeAmount == 0 {
		return "", false
	}
	otherAmount, err := strconv.ParseFloat(other.Amount, 64)
	if err != nil {
		return "", false
	}

	rate := otherAmount / activeAmount
	formatted := strconv.FormatFloat(rate, 'f', int(other.Asset.Decimals), 64)
	return fmt.Sprintf("1 %s ≈ %s %s", active.Asset.Symbol, formatted, other.Asset.Symbol), true
}

// AnnualizedAPR sums trailing fee snapshots over the current TVL and
// annualizes the ratio. A zero TVL or an empty snapshot window yields a zero
// APR, never a division error.
func AnnualizedAPR(snapshots []model.PoolSnapshot, state model.PoolState) model.APRResult {
	result := model.APRResult{
		TVLUSD:   state.TVLUSD,
		Reserve0: state.Reserve0Decimal,
		Reserve1: state.Reserve1Decimal,
	}
	if state.TVLUSD <= 0 || len(snapshots) == 0 {
		return result
	}

	var fees float64
	for _, snapshot := range snapshots {
		fees += snapshot.FeesUSD
	}
	result.APR = fees / state.TVLUSD * 365 * 100
	return result
}

// HumanToRaw converts a human-unit decimal string into the asset's smallest
// unit, truncating excess fractional digits.
func HumanToRaw(amount string, decimals uint8) (*big.Int, error) {
	rat, ok := new(big.Rat).SetString(strings.TrimSpace(amount))
	if !ok {
		return nil, fmt.Errorf("malformed amount %q", amount)
	}
	if rat.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %q", amount)
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	rat.Mul(rat, new(big.Rat).SetInt(scale))
	return new(big.Int).Quo(rat.Num(), rat.Denom()), nil
}

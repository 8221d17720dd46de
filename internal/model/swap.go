package model

// TradeMode names the side of a swap form being priced against the other.
type TradeMode string

const (
	TradeModeSell TradeMode = "sell"
	TradeModeBuy  TradeMode = "buy"
)

// Other returns the opposite trade mode.
func (m TradeMode) Other() TradeMode {
	if m == TradeModeSell {
		return TradeModeBuy
	}
	return TradeModeSell
}

// SwapInput is one side of a swap form. Amount is a decimal string in human
// units, empty when the user has not typed anything.
type SwapInput struct {
	Asset  *AssetReference `json:"asset"`
	Amount string          `json:"amount"`
}

// SwapState holds both sides of a swap form. This layer does not enforce that
// the two assets differ.
type SwapState struct {
	Sell SwapInput `json:"sell"`
	Buy  SwapInput `json:"buy"`
}

// Side returns the input for the given trade mode.
func (s SwapState) Side(mode TradeMode) SwapInput {
	if mode == TradeModeBuy {
		return s.Buy
	}
	return s.Sell
}

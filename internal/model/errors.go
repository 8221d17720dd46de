package model

import "errors"

// Adapter failure taxonomy. Both surface through a derivation's result error
// field and are never fatal to the process.
var (
	// ErrQuoteUnavailable means the AMM client could not produce a swap
	// preview: no route, no liquidity, or transport failure.
	ErrQuoteUnavailable = errors.New("quote unavailable")

	// ErrIndexerUnavailable means the indexer request failed in transport
	// or its response could not be parsed.
	ErrIndexerUnavailable = errors.New("indexer unavailable")
)

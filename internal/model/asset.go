package model

import "strings"

// AssetID is a 32-byte fungible asset identifier in 0x-prefixed hex form.
type AssetID string

// Valid reports whether the id is a well-formed 32-byte hex string.
func (id AssetID) Valid() bool {
	s := string(id)
	if len(s) != 66 || !strings.HasPrefix(s, "0x") {
		return false
	}
	for _, r := range s[2:] {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') && (r < 'A' || r > 'F') {
			return false
		}
	}
	return true
}

// Normalized returns the id lowercased for use in cache keys and queries.
func (id AssetID) Normalized() AssetID {
	return AssetID(strings.ToLower(string(id)))
}

// AssetReference binds an asset id to its resolved metadata. Decimals stay 0
// when metadata could not be resolved.
type AssetReference struct {
	ID       AssetID `json:"id"`
	Symbol   string  `json:"symbol"`
	Decimals uint8   `json:"decimals"`
}

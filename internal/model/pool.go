package model

import "strings"

// PoolID identifies an AMM reserve pair by its two assets and the stable
// flag. Assets are held in canonical order so that building from (A, B) and
// (B, A) yields the same id.
type PoolID struct {
	AssetA AssetID `json:"assetA"`
	AssetB AssetID `json:"assetB"`
	Stable bool    `json:"stable"`
}

// BuildPoolID canonicalizes the asset pair and returns the pool id.
func BuildPoolID(a, b AssetID, stable bool) PoolID {
	a = a.Normalized()
	b = b.Normalized()
	if strings.Compare(string(b), string(a)) < 0 {
		a, b = b, a
	}
	return PoolID{AssetA: a, AssetB: b, Stable: stable}
}

// Key returns the cache-key form of the pool id.
func (p PoolID) Key() string {
	stable := "v"
	if p.Stable {
		stable = "s"
	}
	return string(p.AssetA) + "-" + string(p.AssetB) + "-" + stable
}

// FeePercent returns the pool swap fee in percent.
func (p PoolID) FeePercent() float64 {
	if p.Stable {
		return 0.05
	}
	return 0.3
}

// RouteKey returns a stable cache-key form of an ordered pool route.
func RouteKey(route []PoolID) string {
	keys := make([]string, 0, len(route))
	for _, pool := range route {
		keys = append(keys, pool.Key())
	}
	return strings.Join(keys, "|")
}

// Package portfolio caches per-account holdings: the collectible inventory,
// the fungible token balance and the capability flags needed before either
// can be queried. Snapshots replace atomically; a failed refresh never
// clobbers good data.
package portfolio

import (
	"time"

	"momentswap/chain"
	"momentswap/identity"
)

// Known collectible tiers. Items outside this set stay in the inventory but
// do not increment any tally.
const (
	TierCommon    = "common"
	TierFandom    = "fandom"
	TierRare      = "rare"
	TierLegendary = "legendary"
	TierUltimate  = "ultimate"
)

// KnownTiers lists the tiers in display order.
var KnownTiers = []string{TierCommon, TierFandom, TierRare, TierLegendary, TierUltimate}

// Item is one collectible unit. Immutable once minted; custody transfer shows
// up as removal from one account's inventory and later appearance in another.
type Item struct {
	ID           uint64 `json:"id"`
	SetID        uint32 `json:"setId"`
	PlayID       uint32 `json:"playId"`
	SerialNumber uint32 `json:"serialNumber"`
	EditionSize  uint32 `json:"editionSize"`
	Category     string `json:"category"`
	DisplayName  string `json:"displayName"`
	SeriesNumber uint32 `json:"seriesNumber"`
	Locked       bool   `json:"locked,omitempty"`
}

// Account is the cached snapshot of one ledger account.
type Account struct {
	Address         chain.Address  `json:"address"`
	Role            identity.Role  `json:"role"`
	Inventory       []Item         `json:"inventory"`
	Balance         Amount         `json:"-"`
	BalanceDecimal  string         `json:"balance"`
	CategoryCounts  map[string]int `json:"categoryCounts"`
	HasCollection   bool           `json:"hasCollection"`
	HasTokenVault   bool           `json:"hasTokenVault"`
	Loading         bool           `json:"loading"`
	Stale           bool           `json:"stale,omitempty"`
	LastRefreshedAt time.Time      `json:"lastRefreshedAt"`
}

// HasItem reports whether the inventory currently holds the given item id.
func (a *Account) HasItem(id uint64) bool {
	for i := range a.Inventory {
		if a.Inventory[i].ID == id {
			return true
		}
	}
	return false
}

// tallyCategories is the single source of the category-count mapping. It is
// recomputed on every inventory replacement; CategoryCounts is never mutated
// independently.
func tallyCategories(items []Item) map[string]int {
	counts := make(map[string]int, len(KnownTiers))
	for _, tier := range KnownTiers {
		counts[tier] = 0
	}
	for i := range items {
		if _, ok := counts[items[i].Category]; ok {
			counts[items[i].Category]++
		}
	}
	return counts
}

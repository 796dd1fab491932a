// Package selection tracks the transient working set for one pending
// exchange: the chosen account and the item ids picked from it. It is a pure
// state container with no I/O; staleness against the live inventory is
// checked at submission time, not here.
package selection

import (
	"sync"

	"momentswap/chain"
)

// Direction of an exchange.
type Direction string

const (
	ItemsForTokens Direction = "items_for_tokens"
	TokensForItems Direction = "tokens_for_items"
)

// Valid reports whether the direction is one of the two exchange kinds.
func (d Direction) Valid() bool {
	return d == ItemsForTokens || d == TokensForItems
}

// Selection is a point-in-time copy of the model state. Item ids keep
// insertion order for display; exchange semantics treat them as a set.
type Selection struct {
	Account chain.Address `json:"account"`
	ItemIDs []uint64      `json:"itemIds"`
}

// Model is the mutable selection state, owned by the UI-interaction flow.
type Model struct {
	mu      sync.Mutex
	account chain.Address
	ids     []uint64
	index   map[uint64]bool
}

// NewModel returns an empty selection.
func NewModel() *Model {
	return &Model{index: make(map[uint64]bool)}
}

// SelectAccount sets the chosen account. Picks are cleared unconditionally,
// even when re-selecting the same address: item ids are only unique within
// one account, so carrying them across accounts would collide.
func (m *Model) SelectAccount(addr chain.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.account = addr
	m.clearLocked()
}

// ToggleItem adds the id if absent and removes it if present.
func (m *Model) ToggleItem(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.index[id] {
		delete(m.index, id)
		for i, existing := range m.ids {
			if existing == id {
				m.ids = append(m.ids[:i], m.ids[i+1:]...)
				break
			}
		}
		return
	}
	m.index[id] = true
	m.ids = append(m.ids, id)
}

// Clear empties the item picks, leaving the chosen account untouched.
func (m *Model) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearLocked()
}

// Reset returns the model to its initial state. Called on logout.
func (m *Model) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.account = ""
	m.clearLocked()
}

// Snapshot returns a copy of the current state.
func (m *Model) Snapshot() Selection {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]uint64, len(m.ids))
	copy(ids, m.ids)
	return Selection{Account: m.account, ItemIDs: ids}
}

func (m *Model) clearLocked() {
	m.ids = nil
	m.index = make(map[uint64]bool)
}

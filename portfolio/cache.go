package portfolio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"momentswap/chain"
	"momentswap/identity"
)

// ErrUnknownAccount is returned for addresses the resolver never registered.
var ErrUnknownAccount = errors.New("account not registered")

// ErrLoad wraps fetch failures. The prior snapshot is retained; the account
// is only marked stale.
var ErrLoad = errors.New("account load failed")

// Cache holds the per-account snapshots. It is the only mutable state shared
// between the resolver, user-initiated refreshes and post-transaction
// refreshes; all writes funnel through Refresh.
//
// Concurrent refreshes for one address are serialized by initiation order: a
// monotonic token is issued per request and only the most recently issued
// request may apply its result, so a slow stale fetch can never overwrite a
// fresher one.
type Cache struct {
	mu      sync.Mutex
	fetcher Fetcher
	log     *slog.Logger
	entries map[chain.Address]*entry
	order   []chain.Address
}

type entry struct {
	acct   Account
	issued uint64
}

// NewCache builds an empty cache over the given fetcher.
func NewCache(fetcher Fetcher, log *slog.Logger) *Cache {
	if log == nil {
		log = slog.Default()
	}
	return &Cache{
		fetcher: fetcher,
		log:     log,
		entries: make(map[chain.Address]*entry),
	}
}

// Register creates an empty entry for a resolved account. Holdings are
// fetched lazily via Refresh. Re-registering an existing address only
// updates the role.
func (c *Cache) Register(acct identity.ResolvedAccount) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[acct.Address]; ok {
		e.acct.Role = acct.Role
		return
	}
	c.entries[acct.Address] = &entry{acct: Account{
		Address:        acct.Address,
		Role:           acct.Role,
		Inventory:      []Item{},
		CategoryCounts: tallyCategories(nil),
	}}
	c.order = append(c.order, acct.Address)
}

// Refresh fetches a fresh snapshot for the address and applies it atomically.
// On fetch failure the prior snapshot is retained and the account is marked
// stale. Results superseded by a later-initiated refresh are discarded.
func (c *Cache) Refresh(ctx context.Context, addr chain.Address) error {
	c.mu.Lock()
	e, ok := c.entries[addr]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownAccount, addr)
	}
	e.issued++
	token := e.issued
	e.acct.Loading = true
	c.mu.Unlock()

	snap, err := c.fetcher.Fetch(ctx, addr)

	c.mu.Lock()
	defer c.mu.Unlock()
	if token != e.issued {
		// A newer refresh was initiated while this one was in flight.
		return nil
	}
	e.acct.Loading = false
	if err != nil {
		e.acct.Stale = true
		c.log.Warn("account refresh failed", "address", addr, "err", err)
		return fmt.Errorf("%w: %s: %v", ErrLoad, addr, err)
	}
	e.acct.Inventory = snap.Inventory
	e.acct.Balance = snap.Balance
	e.acct.BalanceDecimal = snap.Balance.String()
	e.acct.HasCollection = snap.HasCollection
	e.acct.HasTokenVault = snap.HasTokenVault
	e.acct.CategoryCounts = tallyCategories(snap.Inventory)
	e.acct.Stale = false
	e.acct.LastRefreshedAt = snap.FetchedAt
	return nil
}

// RefreshAll refreshes every registered account concurrently. Failures are
// per-account; the first error is returned after all loads settle.
func (c *Cache) RefreshAll(ctx context.Context) error {
	addrs := c.Addresses()
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		first error
	)
	for _, addr := range addrs {
		wg.Add(1)
		go func(addr chain.Address) {
			defer wg.Done()
			if err := c.Refresh(ctx, addr); err != nil {
				mu.Lock()
				if first == nil {
					first = err
				}
				mu.Unlock()
			}
		}(addr)
	}
	wg.Wait()
	return first
}

// Account returns a copy of the snapshot for the address.
func (c *Cache) Account(addr chain.Address) (Account, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[addr]
	if !ok {
		return Account{}, false
	}
	return cloneAccount(&e.acct), true
}

// Accounts returns copies of all snapshots in registration order.
func (c *Cache) Accounts() []Account {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Account, 0, len(c.order))
	for _, addr := range c.order {
		out = append(out, cloneAccount(&c.entries[addr].acct))
	}
	return out
}

// Addresses returns registered addresses in registration order.
func (c *Cache) Addresses() []chain.Address {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]chain.Address, len(c.order))
	copy(out, c.order)
	return out
}

// Reset discards every entry. Called on logout.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[chain.Address]*entry)
	c.order = nil
}

func cloneAccount(a *Account) Account {
	out := *a
	out.Inventory = make([]Item, len(a.Inventory))
	copy(out.Inventory, a.Inventory)
	out.CategoryCounts = make(map[string]int, len(a.CategoryCounts))
	for k, v := range a.CategoryCounts {
		out.CategoryCounts[k] = v
	}
	return out
}

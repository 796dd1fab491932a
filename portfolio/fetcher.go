package portfolio

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"momentswap/chain"
)

// Script names understood by the access node for holdings queries.
const (
	scriptHasCollection = "account_hasCollection"
	scriptListItems     = "account_listItems"
	scriptHasTokenVault = "account_hasTokenVault"
	scriptTokenBalance  = "account_tokenBalance"
)

// Snapshot is the result of one full account fetch.
type Snapshot struct {
	Inventory     []Item
	Balance       Amount
	HasCollection bool
	HasTokenVault bool
	FetchedAt     time.Time
}

// Fetcher materializes a snapshot for an address. The cache depends on this
// interface; tests substitute scripted fakes.
type Fetcher interface {
	Fetch(ctx context.Context, addr chain.Address) (*Snapshot, error)
}

// ChainFetcher reads account state through the chain gateway. The capability
// check, inventory listing and balance lookup run as independent concurrent
// queries; the inventory query is skipped entirely when the collection
// capability is absent, since it would be guaranteed to fail.
type ChainFetcher struct {
	gw    chain.Gateway
	nowFn func() time.Time
}

// NewChainFetcher builds a fetcher over the given gateway.
func NewChainFetcher(gw chain.Gateway) *ChainFetcher {
	return &ChainFetcher{gw: gw, nowFn: time.Now}
}

// Fetch implements Fetcher. Either every query succeeds and a full snapshot
// is returned, or the whole fetch fails.
func (f *ChainFetcher) Fetch(ctx context.Context, addr chain.Address) (*Snapshot, error) {
	if !addr.Ready() {
		return nil, fmt.Errorf("address %q not ready", addr)
	}

	var (
		wg   sync.WaitGroup
		snap Snapshot

		invErr, vaultErr, balErr error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		has, err := f.queryBool(ctx, scriptHasCollection, addr)
		if err != nil {
			invErr = err
			return
		}
		snap.HasCollection = has
		if !has {
			snap.Inventory = []Item{}
			return
		}
		raw, err := f.gw.Query(ctx, scriptListItems, []any{addr.String()})
		if err != nil {
			invErr = err
			return
		}
		items := []Item{}
		if err := json.Unmarshal(raw, &items); err != nil {
			invErr = fmt.Errorf("decode inventory: %w", err)
			return
		}
		snap.Inventory = items
	}()
	go func() {
		defer wg.Done()
		has, err := f.queryBool(ctx, scriptHasTokenVault, addr)
		if err != nil {
			vaultErr = err
			return
		}
		snap.HasTokenVault = has
	}()
	go func() {
		defer wg.Done()
		raw, err := f.gw.Query(ctx, scriptTokenBalance, []any{addr.String()})
		if err != nil {
			balErr = err
			return
		}
		var decimal string
		if err := json.Unmarshal(raw, &decimal); err != nil {
			balErr = fmt.Errorf("decode balance: %w", err)
			return
		}
		amount, err := ParseAmount(decimal)
		if err != nil {
			balErr = fmt.Errorf("parse balance: %w", err)
			return
		}
		snap.Balance = amount
	}()
	wg.Wait()

	for _, err := range []error{invErr, vaultErr, balErr} {
		if err != nil {
			return nil, fmt.Errorf("fetch account %s: %w", addr, err)
		}
	}
	snap.FetchedAt = f.nowFn().UTC()
	return &snap, nil
}

func (f *ChainFetcher) queryBool(ctx context.Context, script string, addr chain.Address) (bool, error) {
	raw, err := f.gw.Query(ctx, script, []any{addr.String()})
	if err != nil {
		return false, err
	}
	var out bool
	if err := json.Unmarshal(raw, &out); err != nil {
		return false, fmt.Errorf("decode %s: %w", script, err)
	}
	return out, nil
}

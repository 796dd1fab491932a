package identity

import (
	"context"
	"encoding/json"
	"log/slog"

	"momentswap/chain"
)

// Script names understood by the access node for account-graph discovery.
const (
	scriptHasDelegates  = "account_hasDelegates"
	scriptListDelegates = "account_listDelegates"
)

// Resolver derives the account set for an identity. Delegate discovery is
// best-effort: a failed lookup degrades to the primary account alone rather
// than failing the session.
type Resolver struct {
	gw  chain.Gateway
	log *slog.Logger
}

// NewResolver builds a resolver over the given gateway.
func NewResolver(gw chain.Gateway, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{gw: gw, log: log}
}

// ResolveAccounts returns the accounts the identity controls. It fails
// closed: a logged-out or unknown session resolves to no accounts, and an
// address the wallet has not finished materializing (missing 0x prefix) is
// treated as not ready rather than queried.
func (r *Resolver) ResolveAccounts(ctx context.Context, ident Identity) []ResolvedAccount {
	if ident.State != LoggedIn {
		return nil
	}
	if !ident.PrimaryAddress.Ready() {
		return nil
	}

	accounts := []ResolvedAccount{{Address: ident.PrimaryAddress, Role: RolePrimary}}

	has, err := r.hasDelegates(ctx, ident.PrimaryAddress)
	if err != nil {
		r.log.Warn("delegate discovery failed", "address", ident.PrimaryAddress, "err", err)
		return accounts
	}
	if !has {
		return accounts
	}

	delegates, err := r.listDelegates(ctx, ident.PrimaryAddress)
	if err != nil {
		r.log.Warn("delegate listing failed", "address", ident.PrimaryAddress, "err", err)
		return accounts
	}
	seen := map[chain.Address]bool{ident.PrimaryAddress: true}
	for _, raw := range delegates {
		addr := chain.NormalizeAddress(raw)
		if !addr.Ready() || seen[addr] {
			continue
		}
		seen[addr] = true
		accounts = append(accounts, ResolvedAccount{Address: addr, Role: RoleDelegated})
	}
	return accounts
}

func (r *Resolver) hasDelegates(ctx context.Context, addr chain.Address) (bool, error) {
	raw, err := r.gw.Query(ctx, scriptHasDelegates, []any{addr.String()})
	if err != nil {
		return false, err
	}
	var has bool
	if err := json.Unmarshal(raw, &has); err != nil {
		return false, err
	}
	return has, nil
}

func (r *Resolver) listDelegates(ctx context.Context, addr chain.Address) ([]string, error) {
	raw, err := r.gw.Query(ctx, scriptListDelegates, []any{addr.String()})
	if err != nil {
		return nil, err
	}
	var addrs []string
	if err := json.Unmarshal(raw, &addrs); err != nil {
		return nil, err
	}
	return addrs, nil
}

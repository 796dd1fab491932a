package identity

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"

	"momentswap/chain"
)

// fakeGateway answers discovery queries from canned data.
type fakeGateway struct {
	mu           sync.Mutex
	hasDelegates map[chain.Address]bool
	delegates    map[chain.Address][]string
	failHas      bool
	failList     bool
	queries      []string
}

func (g *fakeGateway) Query(_ context.Context, script string, args []any) (json.RawMessage, error) {
	g.mu.Lock()
	g.queries = append(g.queries, script)
	g.mu.Unlock()
	addr := chain.Address(args[0].(string))
	switch script {
	case "account_hasDelegates":
		if g.failHas {
			return nil, errors.New("node unavailable")
		}
		return json.Marshal(g.hasDelegates[addr])
	case "account_listDelegates":
		if g.failList {
			return nil, errors.New("node unavailable")
		}
		return json.Marshal(g.delegates[addr])
	}
	return nil, errors.New("unknown script")
}

func (g *fakeGateway) Submit(context.Context, string, []any, chain.Signers) (string, error) {
	return "", errors.New("not implemented")
}

func (g *fakeGateway) TransactionResult(context.Context, string) (*chain.TxResult, error) {
	return nil, errors.New("not implemented")
}

const primaryAddr = chain.Address("0xf8d6e0586b0a20c7")

func TestResolveFailsClosedWhenLoggedOut(t *testing.T) {
	r := NewResolver(&fakeGateway{}, nil)
	for _, state := range []LoginState{LoginUnknown, LoggedOut} {
		if got := r.ResolveAccounts(context.Background(), Identity{State: state, PrimaryAddress: primaryAddr}); got != nil {
			t.Fatalf("state %v: expected no accounts, got %+v", state, got)
		}
	}
}

func TestResolveSkipsUnreadyAddress(t *testing.T) {
	gw := &fakeGateway{}
	r := NewResolver(gw, nil)
	got := r.ResolveAccounts(context.Background(), Identity{State: LoggedIn, PrimaryAddress: "f8d6e0586b0a20c7"})
	if got != nil {
		t.Fatalf("expected no accounts for unprefixed address, got %+v", got)
	}
	if len(gw.queries) != 0 {
		t.Fatalf("unready address must never be queried, saw %v", gw.queries)
	}
}

func TestResolvePrimaryOnly(t *testing.T) {
	gw := &fakeGateway{hasDelegates: map[chain.Address]bool{primaryAddr: false}}
	r := NewResolver(gw, nil)
	got := r.ResolveAccounts(context.Background(), Identity{State: LoggedIn, PrimaryAddress: primaryAddr})
	if len(got) != 1 || got[0].Address != primaryAddr || got[0].Role != RolePrimary {
		t.Fatalf("unexpected accounts: %+v", got)
	}
}

func TestResolveWithDelegates(t *testing.T) {
	gw := &fakeGateway{
		hasDelegates: map[chain.Address]bool{primaryAddr: true},
		delegates: map[chain.Address][]string{
			primaryAddr: {"0x1111111111111111", "0X2222222222222222", string(primaryAddr), "0x1111111111111111"},
		},
	}
	r := NewResolver(gw, nil)
	got := r.ResolveAccounts(context.Background(), Identity{State: LoggedIn, PrimaryAddress: primaryAddr})

	if len(got) != 3 {
		t.Fatalf("expected primary plus two delegates, got %+v", got)
	}
	if got[0].Role != RolePrimary {
		t.Fatalf("first account must be the primary: %+v", got[0])
	}
	for _, acct := range got[1:] {
		if acct.Role != RoleDelegated {
			t.Fatalf("expected delegated role: %+v", acct)
		}
	}
	if got[2].Address != "0x2222222222222222" {
		t.Fatalf("delegate address not normalized: %s", got[2].Address)
	}
}

func TestResolveSurvivesDiscoveryFailure(t *testing.T) {
	for _, gw := range []*fakeGateway{
		{failHas: true},
		{hasDelegates: map[chain.Address]bool{primaryAddr: true}, failList: true},
	} {
		r := NewResolver(gw, nil)
		got := r.ResolveAccounts(context.Background(), Identity{State: LoggedIn, PrimaryAddress: primaryAddr})
		if len(got) != 1 || got[0].Address != primaryAddr {
			t.Fatalf("primary must survive discovery failure, got %+v", got)
		}
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	gw := &fakeGateway{
		hasDelegates: map[chain.Address]bool{primaryAddr: true},
		delegates:    map[chain.Address][]string{primaryAddr: {"0x1111111111111111", "0x2222222222222222"}},
	}
	r := NewResolver(gw, nil)
	ident := Identity{State: LoggedIn, PrimaryAddress: primaryAddr}

	first := addressSet(r.ResolveAccounts(context.Background(), ident))
	second := addressSet(r.ResolveAccounts(context.Background(), ident))
	if len(first) != len(second) {
		t.Fatalf("account sets differ: %v vs %v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("account sets differ: %v vs %v", first, second)
		}
	}
}

func addressSet(accounts []ResolvedAccount) []string {
	out := make([]string, 0, len(accounts))
	for _, acct := range accounts {
		out = append(out, string(acct.Address))
	}
	sort.Strings(out)
	return out
}

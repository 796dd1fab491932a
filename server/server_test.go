package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"momentswap/chain"
	"momentswap/exchange"
	"momentswap/identity"
	"momentswap/portfolio"
	"momentswap/selection"
	"momentswap/stats"
)

const (
	primaryAddr   = "0xf8d6e0586b0a20c7"
	delegatedAddr = "0x1111111111111111"
)

// fakeNode answers the discovery scripts and accepts exchange transactions.
type fakeNode struct {
	pingErr error
}

func (n *fakeNode) Ping(context.Context) error { return n.pingErr }

func (n *fakeNode) Query(_ context.Context, script string, _ []any) (json.RawMessage, error) {
	switch script {
	case "account_hasDelegates":
		return json.RawMessage(`true`), nil
	case "account_listDelegates":
		return json.RawMessage(fmt.Sprintf(`[%q]`, delegatedAddr)), nil
	}
	return nil, fmt.Errorf("unexpected script %s", script)
}

func (n *fakeNode) Submit(context.Context, string, []any, chain.Signers) (string, error) {
	return "tx-http-1", nil
}

func (n *fakeNode) TransactionResult(context.Context, string) (*chain.TxResult, error) {
	return &chain.TxResult{Status: chain.StatusSealed}, nil
}

type fixedFetcher struct{}

func (fixedFetcher) Fetch(context.Context, chain.Address) (*portfolio.Snapshot, error) {
	return &portfolio.Snapshot{
		Inventory:     []portfolio.Item{{ID: 11, Category: portfolio.TierCommon}},
		Balance:       portfolio.WholeTokens(4),
		HasCollection: true,
		HasTokenVault: true,
		FetchedAt:     time.Unix(1700000000, 0).UTC(),
	}, nil
}

type testEnv struct {
	node    *fakeNode
	handler http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	node := &fakeNode{}

	cache := portfolio.NewCache(fixedFetcher{}, nil)
	sel := selection.NewModel()
	resolver := identity.NewResolver(node, nil)
	manager := identity.NewManager(resolver, cache, nil)
	feed := identity.NewSessionFeed()
	manager.Start(feed)
	t.Cleanup(manager.Stop)

	watcher := chain.NewWatcher(node, time.Millisecond)
	orch := exchange.New(node, watcher, cache, sel, func() chain.Address {
		return manager.Current().PrimaryAddress
	}, nil, exchange.Config{SettleDelay: time.Hour})
	manager.OnLogout(sel.Reset)
	manager.OnLogout(orch.Reset)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"price":"7.25"}`))
	}))
	t.Cleanup(upstream.Close)
	statsClient, err := stats.NewClient(upstream.URL, time.Second)
	require.NoError(t, err)
	store, err := stats.OpenStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	statsSvc := stats.NewService(statsClient, store, time.Minute, nil)

	srv := New(feed, manager, cache, sel, orch, statsSvc, node, nil, nil, nil)
	return &testEnv{node: node, handler: srv.Handler()}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/v1/session/login", fmt.Sprintf(`{"address":%q}`, primaryAddr))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	// The initial load runs in the background; wait for both accounts.
	require.Eventually(t, func() bool {
		var out struct {
			Accounts []portfolio.Account `json:"accounts"`
		}
		rec := e.do(t, http.MethodGet, "/v1/accounts", "")
		if rec.Code != http.StatusOK {
			return false
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			return false
		}
		return len(out.Accounts) == 2 && !out.Accounts[0].LastRefreshedAt.IsZero()
	}, time.Second, 5*time.Millisecond)
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	env.node.pingErr = errors.New("connection refused")
	rec = env.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "node unreachable")
}

func TestLoginResolvesAccountGraph(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	var out struct {
		Accounts []portfolio.Account `json:"accounts"`
	}
	rec := env.do(t, http.MethodGet, "/v1/accounts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Accounts, 2)
	require.Equal(t, chain.Address(primaryAddr), out.Accounts[0].Address)
	require.Equal(t, identity.RolePrimary, out.Accounts[0].Role)
	require.Equal(t, chain.Address(delegatedAddr), out.Accounts[1].Address)
	require.Equal(t, identity.RoleDelegated, out.Accounts[1].Role)
}

func TestLoginRejectsMalformedAddress(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/v1/session/login", `{"address":"f8d6e0586b0a20c7"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogoutTearsDownSession(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)
	env.do(t, http.MethodPost, fmt.Sprintf("/v1/selection/items/%d/toggle", 11), "")

	rec := env.do(t, http.MethodPost, "/v1/session/logout", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/accounts", "")
	require.JSONEq(t, `{"accounts":[]}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/v1/selection", "")
	require.JSONEq(t, `{"account":"","itemIds":[]}`, rec.Body.String())
}

func TestSelectionEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	rec := env.do(t, http.MethodPost, "/v1/selection/account", `{"address":"0x9999999999999999"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/v1/selection/account", fmt.Sprintf(`{"address":%q}`, delegatedAddr))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/v1/selection/items/11/toggle", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, fmt.Sprintf(`{"account":%q,"itemIds":[11]}`, delegatedAddr), rec.Body.String())

	rec = env.do(t, http.MethodPost, "/v1/selection/items/notanumber/toggle", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodDelete, "/v1/selection", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, fmt.Sprintf(`{"account":%q,"itemIds":[]}`, delegatedAddr), rec.Body.String())
}

func TestExchangeLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	rec := env.do(t, http.MethodGet, "/v1/exchange", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	env.do(t, http.MethodPost, "/v1/selection/account", fmt.Sprintf(`{"address":%q}`, delegatedAddr))
	env.do(t, http.MethodPost, "/v1/selection/items/11/toggle", "")

	rec = env.do(t, http.MethodPost, "/v1/exchange", `{"direction":"items_for_tokens"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result exchange.Request
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, "tx-http-1", result.TxID)

	rec = env.do(t, http.MethodGet, "/v1/exchange", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodDelete, "/v1/exchange", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/exchange", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExchangeValidationFailureIs422(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	rec := env.do(t, http.MethodPost, "/v1/exchange", `{"direction":"items_for_tokens"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "no account selected")
}

func TestExchangeRejectsBadTokenAmount(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)
	env.do(t, http.MethodPost, "/v1/selection/account", fmt.Sprintf(`{"address":%q}`, delegatedAddr))

	rec := env.do(t, http.MethodPost, "/v1/exchange", `{"direction":"tokens_for_items","tokenAmount":"1.2.3"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	rec := env.do(t, http.MethodGet, "/v1/stats/floor-price", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var payload stats.Payload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.JSONEq(t, `{"price":"7.25"}`, string(payload.Data))

	rec = env.do(t, http.MethodGet, "/v1/stats/not-a-thing", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnknownFieldsRejected(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/v1/session/login", `{"address":"0xf8d6e0586b0a20c7","extra":true}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

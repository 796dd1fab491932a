package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(srv.URL, "secret", 5*time.Second)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestQuery(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected auth header: %q", got)
		}
		var req jsonRPCRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Method != "chain_executeScript" {
			t.Errorf("unexpected method: %s", req.Method)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  true,
		})
	})

	raw, err := client.Query(context.Background(), "account_hasCollection", []any{"0xf8d6e0586b0a20c7"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	var out bool
	if err := json.Unmarshal(raw, &out); err != nil || !out {
		t.Fatalf("unexpected result: %s err=%v", raw, err)
	}
}

func TestQueryPreservesRPCError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      1,
			"error":   map[string]any{"code": -32000, "message": "capability not published"},
		})
	})

	_, err := client.Query(context.Background(), "account_listItems", nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	rpcErr, ok := err.(*RPCError)
	if !ok {
		t.Fatalf("expected *RPCError, got %T", err)
	}
	if rpcErr.Message != "capability not published" {
		t.Fatalf("message not preserved verbatim: %q", rpcErr.Message)
	}
}

func TestSubmitReturnsTxID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req jsonRPCRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Method != "chain_sendTransaction" {
			t.Errorf("unexpected method: %s", req.Method)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  map[string]string{"txId": "abc123"},
		})
	})

	signers := Signers{Proposer: "0xf8d6e0586b0a20c7", Payer: "0xf8d6e0586b0a20c7", Authorizers: []Address{"0xf8d6e0586b0a20c7"}}
	txID, err := client.Submit(context.Background(), "swap_itemsForTokens", []any{[]uint64{1, 2}}, signers)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if txID != "abc123" {
		t.Fatalf("unexpected tx id: %s", txID)
	}
}

func TestSubmitRejectsMissingTxID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      1,
			"result":  map[string]string{},
		})
	})
	if _, err := client.Submit(context.Background(), "swap_itemsForTokens", nil, Signers{}); err == nil {
		t.Fatalf("expected error for missing tx id")
	}
}

func TestTransactionResult(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      1,
			"result": map[string]any{
				"status":       "sealed",
				"statusCode":   1,
				"errorMessage": "insufficient balance",
			},
		})
	})

	res, err := client.TransactionResult(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("transaction result: %v", err)
	}
	if res.Status != StatusSealed {
		t.Fatalf("unexpected status: %v", res.Status)
	}
	if res.StatusCode != 1 || res.ErrorMessage != "insufficient balance" {
		t.Fatalf("result not preserved: %+v", res)
	}
	if res.TxID != "abc123" {
		t.Fatalf("tx id not set: %s", res.TxID)
	}
}

func TestCallRejectsHTTPFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})
	if _, err := client.Query(context.Background(), "account_tokenBalance", nil); err == nil {
		t.Fatalf("expected error on http failure")
	}
}

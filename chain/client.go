// Package chain is the gateway's thin JSON-RPC client for the collectible
// ledger's access node. It covers the read path (script execution), the write
// path (transaction submission with a proposer/payer/authorizer triple) and
// transaction result polling.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// Gateway is the surface the rest of the service depends on. The concrete
// client talks JSON-RPC; tests substitute scripted fakes.
type Gateway interface {
	// Query executes a read-only script against current ledger state.
	Query(ctx context.Context, script string, args []any) (json.RawMessage, error)
	// Submit sends a state-changing transaction and returns the node-assigned
	// transaction id.
	Submit(ctx context.Context, script string, args []any, signers Signers) (string, error)
	// TransactionResult fetches the current status of a submitted transaction.
	TransactionResult(ctx context.Context, txID string) (*TxResult, error)
}

// Client implements Gateway against the access node's JSON-RPC endpoint.
type Client struct {
	baseURL   string
	authToken string
	http      *http.Client
	nextID    atomic.Int64
}

// NewClient builds a client for the given node URL. An empty authToken omits
// the Authorization header.
func NewClient(baseURL, authToken string, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("node rpc url required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:   baseURL,
		authToken: authToken,
		http:      &http.Client{Timeout: timeout},
	}, nil
}

type jsonRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      int64  `json:"id"`
}

type jsonRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

// Query implements Gateway.
func (c *Client) Query(ctx context.Context, script string, args []any) (json.RawMessage, error) {
	params := map[string]any{"script": script}
	if len(args) > 0 {
		params["args"] = args
	}
	var result json.RawMessage
	if err := c.call(ctx, "chain_executeScript", []any{params}, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Submit implements Gateway.
func (c *Client) Submit(ctx context.Context, script string, args []any, signers Signers) (string, error) {
	params := map[string]any{
		"script":  script,
		"signers": signers,
	}
	if len(args) > 0 {
		params["args"] = args
	}
	var result struct {
		TxID string `json:"txId"`
	}
	if err := c.call(ctx, "chain_sendTransaction", []any{params}, &result); err != nil {
		return "", err
	}
	if strings.TrimSpace(result.TxID) == "" {
		return "", errors.New("node accepted transaction but returned no id")
	}
	return result.TxID, nil
}

// TransactionResult implements Gateway.
func (c *Client) TransactionResult(ctx context.Context, txID string) (*TxResult, error) {
	var result TxResult
	params := []any{map[string]string{"txId": txID}}
	if err := c.call(ctx, "chain_getTransactionResult", params, &result); err != nil {
		return nil, err
	}
	result.TxID = txID
	result.Status = statusFromName(result.StatusName)
	return &result, nil
}

// Ping checks node reachability for health reporting.
func (c *Client) Ping(ctx context.Context) error {
	var height uint64
	return c.call(ctx, "chain_blockHeight", nil, &height)
}

func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	id := c.nextID.Add(1)
	buf, err := json.Marshal(jsonRPCRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      id,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(c.authToken) != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("node rpc %s failed: status=%d body=%s", method, resp.StatusCode, string(body))
	}
	var rpcResp jsonRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return err
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if out == nil {
		return nil
	}
	if len(rpcResp.Result) == 0 {
		return errors.New("node rpc returned empty result")
	}
	return json.Unmarshal(rpcResp.Result, out)
}

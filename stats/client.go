// Package stats consumes the read-only statistics HTTP API: floor price,
// vault contents and leaderboard. Responses are cached locally so a flaky
// upstream degrades the relevant display without touching the account or
// transaction flow.
package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Endpoint names, doubling as cache keys.
const (
	EndpointFloorPrice  = "floor-price"
	EndpointVault       = "vault"
	EndpointLeaderboard = "leaderboard"
)

// FloorPrice is the token-denominated floor of the open market.
type FloorPrice struct {
	Price     string    `json:"price"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// VaultSummary describes the exchange vault's current contents.
type VaultSummary struct {
	TotalItems int            `json:"totalItems"`
	ByTier     map[string]int `json:"byTier"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// LeaderboardEntry is one row of the exchange leaderboard.
type LeaderboardEntry struct {
	Rank      int    `json:"rank"`
	Address   string `json:"address"`
	Exchanged int    `json:"exchanged"`
}

// Client fetches statistics from the upstream API with plain unauthenticated
// GETs.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a client for the statistics API.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("stats base url required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{baseURL: trimmed, http: &http.Client{Timeout: timeout}}, nil
}

// Get fetches one endpoint and returns the raw JSON body.
func (c *Client) Get(ctx context.Context, endpoint string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stats %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("stats %s: read body: %w", endpoint, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stats %s: status=%d body=%s", endpoint, resp.StatusCode, string(body))
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("stats %s: invalid json", endpoint)
	}
	return body, nil
}

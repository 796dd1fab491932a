package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Service fronts the upstream client with the local cache. A response
// younger than TTL is served from cache without hitting the upstream; an
// upstream failure falls back to whatever is cached, however old, with a
// staleness marker.
type Service struct {
	client *Client
	store  *Store
	ttl    time.Duration
	log    *slog.Logger
	nowFn  func() time.Time
}

// Payload is what the UI receives for a stats endpoint.
type Payload struct {
	Data      json.RawMessage `json:"data"`
	FetchedAt time.Time       `json:"fetchedAt"`
	Stale     bool            `json:"stale,omitempty"`
}

// NewService wires the cache-through stats service.
func NewService(client *Client, store *Store, ttl time.Duration, log *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{client: client, store: store, ttl: ttl, log: log, nowFn: time.Now}
}

// Get returns the payload for an endpoint, serving from cache when fresh.
func (s *Service) Get(ctx context.Context, endpoint string) (*Payload, error) {
	now := s.nowFn().UTC()

	cached, err := s.store.Load(endpoint)
	if err != nil {
		s.log.Warn("stats cache read failed", "endpoint", endpoint, "err", err)
	}
	if cached != nil && now.Sub(cached.FetchedAt) < s.ttl {
		return &Payload{Data: cached.Body, FetchedAt: cached.FetchedAt}, nil
	}

	body, err := s.client.Get(ctx, endpoint)
	if err != nil {
		if cached != nil {
			s.log.Warn("stats upstream failed, serving stale", "endpoint", endpoint, "err", err)
			return &Payload{Data: cached.Body, FetchedAt: cached.FetchedAt, Stale: true}, nil
		}
		return nil, fmt.Errorf("stats %s unavailable: %w", endpoint, err)
	}
	if err := s.store.Save(endpoint, body, now); err != nil {
		s.log.Warn("stats cache write failed", "endpoint", endpoint, "err", err)
	}
	return &Payload{Data: body, FetchedAt: now}, nil
}

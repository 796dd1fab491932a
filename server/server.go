// Package server exposes the gateway's UI-facing HTTP surface: session
// lifecycle, aggregated accounts, the working selection, exchange submission
// and the read-only statistics endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"momentswap/chain"
	"momentswap/exchange"
	"momentswap/identity"
	"momentswap/portfolio"
	"momentswap/selection"
	"momentswap/stats"
)

// Pinger reports node reachability for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the wired components behind the HTTP surface.
type Server struct {
	feed    *identity.SessionFeed
	manager *identity.Manager
	cache   *portfolio.Cache
	sel     *selection.Model
	orch    *exchange.Orchestrator
	stats   *stats.Service
	node    Pinger
	log     *slog.Logger
	obs     *Observability
	limiter *RateLimiter
}

// New assembles the server. obs and limiter may be nil to disable the
// corresponding middleware.
func New(feed *identity.SessionFeed, manager *identity.Manager, cache *portfolio.Cache, sel *selection.Model, orch *exchange.Orchestrator, statsSvc *stats.Service, node Pinger, log *slog.Logger, obs *Observability, limiter *RateLimiter) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		feed:    feed,
		manager: manager,
		cache:   cache,
		sel:     sel,
		orch:    orch,
		stats:   statsSvc,
		node:    node,
		log:     log,
		obs:     obs,
		limiter: limiter,
	}
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.health)
	if s.obs != nil {
		r.Handle("/metrics", s.obs.MetricsHandler())
	}

	r.Route("/v1", func(v1 chi.Router) {
		if s.obs != nil {
			v1.Use(s.obs.Middleware("v1"))
		}
		if s.limiter != nil {
			v1.Use(s.limiter.Middleware("v1"))
		}

		v1.Get("/session", s.getSession)
		v1.Post("/session/login", s.login)
		v1.Post("/session/logout", s.logout)

		v1.Get("/accounts", s.getAccounts)
		v1.Post("/accounts/refresh", s.refreshAll)
		v1.Post("/accounts/{address}/refresh", s.refreshAccount)

		v1.Get("/selection", s.getSelection)
		v1.Post("/selection/account", s.selectAccount)
		v1.Post("/selection/items/{itemID}/toggle", s.toggleItem)
		v1.Delete("/selection", s.clearSelection)

		v1.Post("/exchange", s.submitExchange)
		v1.Get("/exchange", s.getExchange)
		v1.Delete("/exchange", s.dismissExchange)
		v1.Get("/exchange/stream", s.streamExchange)

		v1.Get("/stats/{endpoint}", s.getStats)
	})

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.node != nil {
		if err := s.node.Ping(r.Context()); err != nil {
			writeJSONError(w, http.StatusServiceUnavailable, fmt.Errorf("node unreachable: %w", err))
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type sessionPayload struct {
	State          string `json:"state"`
	PrimaryAddress string `json:"primaryAddress,omitempty"`
}

func (s *Server) getSession(w http.ResponseWriter, _ *http.Request) {
	ident := s.manager.Current()
	writeJSON(w, http.StatusOK, sessionPayload{
		State:          ident.State.String(),
		PrimaryAddress: ident.PrimaryAddress.String(),
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Address string `json:"address"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeBadRequest(w, err)
		return
	}
	addr, err := chain.ParseAddress(body.Address)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	s.feed.Publish(identity.Identity{State: identity.LoggedIn, PrimaryAddress: addr})
	writeJSON(w, http.StatusOK, sessionPayload{State: identity.LoggedIn.String(), PrimaryAddress: addr.String()})
}

func (s *Server) logout(w http.ResponseWriter, _ *http.Request) {
	s.feed.Publish(identity.Identity{State: identity.LoggedOut})
	writeJSON(w, http.StatusOK, sessionPayload{State: identity.LoggedOut.String()})
}

func (s *Server) getAccounts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"accounts": s.cache.Accounts()})
}

func (s *Server) refreshAll(w http.ResponseWriter, r *http.Request) {
	if err := s.cache.RefreshAll(r.Context()); err != nil {
		writeJSONError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": s.cache.Accounts()})
}

func (s *Server) refreshAccount(w http.ResponseWriter, r *http.Request) {
	addr := chain.NormalizeAddress(chi.URLParam(r, "address"))
	err := s.cache.Refresh(r.Context(), addr)
	switch {
	case errors.Is(err, portfolio.ErrUnknownAccount):
		writeJSONError(w, http.StatusNotFound, err)
		return
	case err != nil:
		// The prior snapshot is retained; the account is only marked stale.
		writeJSONError(w, http.StatusBadGateway, err)
		return
	}
	acct, _ := s.cache.Account(addr)
	writeJSON(w, http.StatusOK, acct)
}

func (s *Server) getSelection(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sel.Snapshot())
}

func (s *Server) selectAccount(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Address string `json:"address"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeBadRequest(w, err)
		return
	}
	addr := chain.NormalizeAddress(body.Address)
	if _, ok := s.cache.Account(addr); !ok {
		writeJSONError(w, http.StatusNotFound, fmt.Errorf("account %s is not part of this session", addr))
		return
	}
	s.sel.SelectAccount(addr)
	writeJSON(w, http.StatusOK, s.sel.Snapshot())
}

func (s *Server) toggleItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil {
		writeBadRequest(w, fmt.Errorf("invalid item id: %w", err))
		return
	}
	s.sel.ToggleItem(id)
	writeJSON(w, http.StatusOK, s.sel.Snapshot())
}

func (s *Server) clearSelection(w http.ResponseWriter, _ *http.Request) {
	s.sel.Clear()
	writeJSON(w, http.StatusOK, s.sel.Snapshot())
}

type exchangePayload struct {
	Direction   string `json:"direction"`
	TokenAmount string `json:"tokenAmount,omitempty"`
}

func (s *Server) submitExchange(w http.ResponseWriter, r *http.Request) {
	var body exchangePayload
	if err := decodeJSON(r, &body); err != nil {
		writeBadRequest(w, err)
		return
	}
	dir := selection.Direction(body.Direction)
	var tokens portfolio.Amount
	if strings.TrimSpace(body.TokenAmount) != "" {
		parsed, err := portfolio.ParseAmount(body.TokenAmount)
		if err != nil {
			writeBadRequest(w, err)
			return
		}
		tokens = parsed
	}

	result, err := s.orch.Submit(r.Context(), dir, tokens)
	var vErr *exchange.ValidationError
	switch {
	case errors.Is(err, exchange.ErrBusy):
		writeJSONError(w, http.StatusConflict, err)
		return
	case errors.As(err, &vErr):
		writeJSONError(w, http.StatusUnprocessableEntity, err)
		return
	case err != nil:
		writeJSONError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) getExchange(w http.ResponseWriter, _ *http.Request) {
	req, ok := s.orch.Last()
	if !ok {
		writeJSONError(w, http.StatusNotFound, errors.New("no exchange request"))
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) dismissExchange(w http.ResponseWriter, _ *http.Request) {
	s.orch.Dismiss()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	endpoint := chi.URLParam(r, "endpoint")
	switch endpoint {
	case stats.EndpointFloorPrice, stats.EndpointVault, stats.EndpointLeaderboard:
	default:
		writeJSONError(w, http.StatusNotFound, fmt.Errorf("unknown stats endpoint %q", endpoint))
		return
	}
	payload, err := s.stats.Get(r.Context(), endpoint)
	if err != nil {
		writeJSONError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func decodeJSON(r *http.Request, out any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	data, err := json.Marshal(payload)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Errorf("marshal response: %w", err))
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSONError(w, http.StatusBadRequest, err)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	message := strings.TrimSpace(err.Error())
	if message == "" {
		message = http.StatusText(status)
	}
	payload, marshalErr := json.Marshal(map[string]string{"error": message})
	if marshalErr != nil {
		payload = []byte(`{"error":"internal error"}`)
	}
	_, _ = w.Write(payload)
}

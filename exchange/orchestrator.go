// Package exchange drives one collectible-for-token exchange from the current
// selection through submission and status tracking to a terminal state. At
// most one request is in flight per orchestrator; every status transition is
// fanned out to subscribers in chain-reported order, with exactly one
// terminal update per request.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"momentswap/chain"
	"momentswap/portfolio"
	"momentswap/selection"
)

// Transaction scripts understood by the access node.
const (
	scriptItemsForTokens = "swap_itemsForTokens"
	scriptTokensForItems = "swap_tokensForItems"
)

// ErrBusy rejects a submission while another request is in flight. The prior
// request is never silently queued or dropped.
var ErrBusy = errors.New("a transaction is already in progress")

// ValidationError is a pre-submission failure; the chain gateway is never
// contacted.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Update is delivered to subscribers on every status transition.
type Update struct {
	RequestID string `json:"requestId"`
	TxID      string `json:"txId,omitempty"`
	Status    Status `json:"status"`
	Message   string `json:"message,omitempty"`
}

// Request is one exchange operation.
type Request struct {
	ID           string              `json:"id"`
	Kind         selection.Direction `json:"kind"`
	Source       chain.Address       `json:"source"`
	Destination  chain.Address       `json:"destination"`
	ItemIDs      []uint64            `json:"itemIds,omitempty"`
	TokenAmount  string              `json:"tokenAmount,omitempty"`
	TxID         string              `json:"txId,omitempty"`
	Status       Status              `json:"status"`
	ErrorMessage string              `json:"errorMessage,omitempty"`
	SubmittedAt  time.Time           `json:"submittedAt"`
}

// Result is the terminal view of a request.
type Result = Request

// Config tunes the orchestrator.
type Config struct {
	// SettleDelay is how long after a sealed success to wait before
	// re-querying affected accounts, tolerating ledger propagation latency.
	SettleDelay time.Duration
	// WatchTimeout bounds status tracking after submission.
	WatchTimeout time.Duration
	// Registry receives the exchange outcome counter when non-nil.
	Registry *prometheus.Registry
}

// Orchestrator coordinates selection, cache, gateway and watcher.
type Orchestrator struct {
	gw        chain.Gateway
	watcher   *chain.Watcher
	cache     *portfolio.Cache
	sel       *selection.Model
	primaryFn func() chain.Address
	log       *slog.Logger

	settleDelay  time.Duration
	watchTimeout time.Duration
	after        func(d time.Duration, fn func())
	nowFn        func() time.Time

	mu       sync.Mutex
	inflight bool
	last     *Request
	subs     map[uint64]func(Update)
	nextSub  uint64

	outcomes *prometheus.CounterVec
}

// New wires an orchestrator. primaryFn reports the session's primary address
// at submission time.
func New(gw chain.Gateway, watcher *chain.Watcher, cache *portfolio.Cache, sel *selection.Model, primaryFn func() chain.Address, log *slog.Logger, cfg Config) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 10 * time.Second
	}
	if cfg.WatchTimeout <= 0 {
		cfg.WatchTimeout = 2 * time.Minute
	}
	o := &Orchestrator{
		gw:           gw,
		watcher:      watcher,
		cache:        cache,
		sel:          sel,
		primaryFn:    primaryFn,
		log:          log,
		settleDelay:  cfg.SettleDelay,
		watchTimeout: cfg.WatchTimeout,
		after: func(d time.Duration, fn func()) {
			time.AfterFunc(d, fn)
		},
		nowFn: time.Now,
		subs:  make(map[uint64]func(Update)),
	}
	if cfg.Registry != nil {
		o.outcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "momentswap",
			Name:      "exchanges_total",
			Help:      "Exchange requests by direction and terminal status.",
		}, []string{"direction", "result"})
		cfg.Registry.MustRegister(o.outcomes)
	}
	return o
}

// Subscribe registers a status callback and returns an unsubscribe function.
func (o *Orchestrator) Subscribe(fn func(Update)) func() {
	o.mu.Lock()
	id := o.nextSub
	o.nextSub++
	o.subs[id] = fn
	o.mu.Unlock()
	return func() {
		o.mu.Lock()
		delete(o.subs, id)
		o.mu.Unlock()
	}
}

// Last returns the most recent request, including a retained terminal result.
func (o *Orchestrator) Last() (Request, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.last == nil {
		return Request{}, false
	}
	return cloneRequest(o.last), true
}

// Dismiss drops a retained terminal result. A request still in flight is
// kept: once submitted, the underlying ledger transaction cannot be
// retracted.
func (o *Orchestrator) Dismiss() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.last != nil && o.last.Status.Terminal() {
		o.last = nil
	}
}

// Reset dismisses any terminal result. Called on logout.
func (o *Orchestrator) Reset() { o.Dismiss() }

// Submit builds a request from the current selection, validates it against
// the cached account state, sends it through the gateway and blocks until a
// terminal state. Validation failures and gateway errors surface their
// messages verbatim.
func (o *Orchestrator) Submit(ctx context.Context, dir selection.Direction, tokens portfolio.Amount) (*Result, error) {
	o.mu.Lock()
	if o.inflight {
		o.mu.Unlock()
		return nil, ErrBusy
	}
	o.inflight = true
	o.mu.Unlock()

	req := &Request{
		ID:     uuid.NewString(),
		Kind:   dir,
		Status: StatusIdle,
	}

	if err := o.build(req, dir, tokens); err != nil {
		o.finish(req, StatusClientError, err.Error())
		return nil, err
	}

	o.transition(req, StatusAwaitingApproval, "")

	txID, err := o.gw.Submit(ctx, o.script(dir), o.args(req), o.signers(req))
	if err != nil {
		o.finish(req, StatusClientError, err.Error())
		return nil, fmt.Errorf("submit exchange: %w", err)
	}
	o.mu.Lock()
	req.TxID = txID
	req.SubmittedAt = o.nowFn().UTC()
	o.mu.Unlock()
	o.transition(req, StatusSubmitted, "")

	watchCtx, cancel := context.WithTimeout(context.Background(), o.watchTimeout)
	defer cancel()
	res, err := o.watcher.Watch(watchCtx, txID, func(u chain.TxUpdate) {
		if u.Status == chain.StatusExecuted {
			o.transition(req, StatusExecuting, "")
		}
	})
	if err != nil {
		msg := fmt.Sprintf("status tracking for tx %s interrupted: %v", txID, err)
		o.finish(req, StatusClientError, msg)
		return nil, errors.New(msg)
	}

	if res.StatusCode != 0 || res.ErrorMessage != "" {
		o.finish(req, StatusSealedFailed, res.ErrorMessage)
		result := cloneRequest(req)
		return &result, nil
	}

	// Clear the picks right away; the delayed refresh only reconciles
	// balances once the ledger has settled.
	o.sel.Clear()
	o.scheduleRefresh(req)
	o.finish(req, StatusSealedSuccess, "")
	result := cloneRequest(req)
	return &result, nil
}

func (o *Orchestrator) build(req *Request, dir selection.Direction, tokens portfolio.Amount) error {
	if !dir.Valid() {
		return &ValidationError{Reason: fmt.Sprintf("unknown exchange direction %q", dir)}
	}
	snap := o.sel.Snapshot()
	if !snap.Account.Ready() {
		return &ValidationError{Reason: "no account selected"}
	}
	acct, ok := o.cache.Account(snap.Account)
	if !ok {
		return &ValidationError{Reason: fmt.Sprintf("account %s is not part of this session", snap.Account)}
	}

	primary := o.primaryFn()
	req.Source = snap.Account
	req.Destination = primary
	if !primary.Ready() {
		req.Destination = snap.Account
	}

	switch dir {
	case selection.ItemsForTokens:
		if len(snap.ItemIDs) == 0 {
			return &ValidationError{Reason: "no items selected"}
		}
		for _, id := range snap.ItemIDs {
			if !acct.HasItem(id) {
				return &ValidationError{Reason: fmt.Sprintf("item %d is no longer in account %s", id, snap.Account)}
			}
		}
		req.ItemIDs = append([]uint64(nil), snap.ItemIDs...)
	case selection.TokensForItems:
		if tokens == 0 {
			return &ValidationError{Reason: "token amount must be greater than zero"}
		}
		if tokens > acct.Balance {
			return &ValidationError{Reason: fmt.Sprintf("token amount %s exceeds balance %s", tokens, acct.Balance)}
		}
		req.TokenAmount = tokens.String()
	}
	return nil
}

func (o *Orchestrator) script(dir selection.Direction) string {
	if dir == selection.TokensForItems {
		return scriptTokensForItems
	}
	return scriptItemsForTokens
}

func (o *Orchestrator) args(req *Request) []any {
	if req.Kind == selection.TokensForItems {
		return []any{req.Source.String(), req.TokenAmount}
	}
	args := []any{req.Source.String()}
	ids := make([]uint64, len(req.ItemIDs))
	copy(ids, req.ItemIDs)
	args = append(args, ids)
	return args
}

func (o *Orchestrator) signers(req *Request) chain.Signers {
	primary := o.primaryFn()
	if !primary.Ready() {
		primary = req.Source
	}
	signers := chain.Signers{
		Proposer:    primary,
		Payer:       primary,
		Authorizers: []chain.Address{primary},
	}
	if req.Source != primary {
		signers.Authorizers = append(signers.Authorizers, req.Source)
	}
	return signers
}

func (o *Orchestrator) scheduleRefresh(req *Request) {
	source, dest := req.Source, req.Destination
	o.after(o.settleDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := o.cache.Refresh(ctx, source); err != nil {
			o.log.Warn("post-exchange refresh failed", "address", source, "err", err)
		}
		if dest != source {
			if err := o.cache.Refresh(ctx, dest); err != nil {
				o.log.Warn("post-exchange refresh failed", "address", dest, "err", err)
			}
		}
	})
}

func (o *Orchestrator) transition(req *Request, status Status, msg string) {
	o.mu.Lock()
	req.Status = status
	if msg != "" {
		req.ErrorMessage = msg
	}
	o.last = req
	fns := subscribers(o.subs)
	o.mu.Unlock()

	o.emit(fns, req, msg)
}

func (o *Orchestrator) finish(req *Request, status Status, msg string) {
	o.mu.Lock()
	req.Status = status
	req.ErrorMessage = msg
	o.last = req
	o.inflight = false
	fns := subscribers(o.subs)
	o.mu.Unlock()

	if o.outcomes != nil {
		o.outcomes.WithLabelValues(string(req.Kind), status.String()).Inc()
	}
	o.emit(fns, req, msg)
}

func (o *Orchestrator) emit(fns []func(Update), req *Request, msg string) {
	u := Update{
		RequestID: req.ID,
		TxID:      req.TxID,
		Status:    req.Status,
		Message:   msg,
	}
	for _, fn := range fns {
		fn(u)
	}
}

func subscribers(m map[uint64]func(Update)) []func(Update) {
	fns := make([]func(Update), 0, len(m))
	for _, fn := range m {
		fns = append(fns, fn)
	}
	return fns
}

func cloneRequest(r *Request) Request {
	out := *r
	out.ItemIDs = append([]uint64(nil), r.ItemIDs...)
	return out
}

package identity

import (
	"context"
	"log/slog"
	"sync"
)

// AccountSink receives resolved accounts. *portfolio.Cache satisfies it.
type AccountSink interface {
	Register(acct ResolvedAccount)
	RefreshAll(ctx context.Context) error
	Reset()
}

// Manager drives the session lifecycle: on login it resolves the account set,
// registers each account with the sink and kicks off a background load; on
// logout it tears the account graph down. Listeners are detached on Stop so
// they do not leak across identity changes.
type Manager struct {
	resolver *Resolver
	sink     AccountSink
	log      *slog.Logger

	mu       sync.Mutex
	current  Identity
	unsub    func()
	onLogout []func()
}

// NewManager wires a manager over the resolver and sink.
func NewManager(resolver *Resolver, sink AccountSink, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{resolver: resolver, sink: sink, log: log}
}

// OnLogout registers a hook invoked whenever the session ends. Used to clear
// the selection and dismiss stale transaction results.
func (m *Manager) OnLogout(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onLogout = append(m.onLogout, fn)
}

// Start subscribes to the session feed. Safe to call once.
func (m *Manager) Start(feed *SessionFeed) {
	unsub := feed.Subscribe(m.handle)
	m.mu.Lock()
	m.unsub = unsub
	m.mu.Unlock()
}

// Stop detaches from the session feed.
func (m *Manager) Stop() {
	m.mu.Lock()
	unsub := m.unsub
	m.unsub = nil
	m.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// Current returns the identity as of the last session event.
func (m *Manager) Current() Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *Manager) handle(ident Identity) {
	m.mu.Lock()
	prev := m.current
	m.current = ident
	hooks := make([]func(), len(m.onLogout))
	copy(hooks, m.onLogout)
	m.mu.Unlock()

	switch ident.State {
	case LoggedIn:
		// A login over a live session for a different principal must not
		// leave the old identity's accounts behind.
		if prev.State == LoggedIn && prev.PrimaryAddress != ident.PrimaryAddress {
			m.sink.Reset()
			for _, fn := range hooks {
				fn()
			}
			m.log.Info("session replaced", "previous", prev.PrimaryAddress)
		}
		accounts := m.resolver.ResolveAccounts(context.Background(), ident)
		for _, acct := range accounts {
			m.sink.Register(acct)
		}
		m.log.Info("session established", "primary", ident.PrimaryAddress, "accounts", len(accounts))
		go func() {
			if err := m.sink.RefreshAll(context.Background()); err != nil {
				m.log.Warn("initial account load incomplete", "err", err)
			}
		}()
	case LoggedOut:
		m.sink.Reset()
		for _, fn := range hooks {
			fn()
		}
		if prev.State == LoggedIn {
			m.log.Info("session ended", "primary", prev.PrimaryAddress)
		}
	}
}

package identity

import "sync"

// SessionFeed fans wallet session changes out to subscribers. It fires on
// login, logout and initial load. Subscribers receive the current identity
// immediately on subscription so late joiners do not miss the initial state.
type SessionFeed struct {
	mu      sync.Mutex
	nextID  uint64
	subs    map[uint64]func(Identity)
	current Identity
}

// NewSessionFeed returns a feed whose current identity is LoginUnknown.
func NewSessionFeed() *SessionFeed {
	return &SessionFeed{subs: make(map[uint64]func(Identity))}
}

// Subscribe registers a callback and returns an unsubscribe function. The
// callback is invoked synchronously with the current identity before
// Subscribe returns.
func (f *SessionFeed) Subscribe(fn func(Identity)) func() {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = fn
	current := f.current
	f.mu.Unlock()

	fn(current)

	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

// Publish records the new identity and notifies every subscriber.
func (f *SessionFeed) Publish(ident Identity) {
	f.mu.Lock()
	f.current = ident
	fns := make([]func(Identity), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(ident)
	}
}

// Current returns the most recently published identity.
func (f *SessionFeed) Current() Identity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

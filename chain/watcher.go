package chain

import (
	"context"
	"time"
)

// Watcher polls a transaction until the node reports it sealed, delivering
// every observed status transition to a callback in the order the node
// reported them. The callback fires exactly once with a terminal status.
type Watcher struct {
	gw           Gateway
	pollInterval time.Duration
}

// NewWatcher constructs a watcher with sane defaults.
func NewWatcher(gw Gateway, pollInterval time.Duration) *Watcher {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &Watcher{gw: gw, pollInterval: pollInterval}
}

// Watch blocks until the transaction seals or the context is cancelled.
// Transient poll failures are retried; the loop only gives up when the
// context does.
func (w *Watcher) Watch(ctx context.Context, txID string, onUpdate func(TxUpdate)) (*TxResult, error) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	last := StatusUnknown
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			res, err := w.gw.TransactionResult(ctx, txID)
			if err != nil {
				continue
			}
			if res.Status == StatusUnknown || res.Status == last {
				continue
			}
			last = res.Status
			if onUpdate != nil {
				onUpdate(TxUpdate{
					TxID:         txID,
					Status:       res.Status,
					StatusCode:   res.StatusCode,
					ErrorMessage: res.ErrorMessage,
				})
			}
			if res.Status.Terminal() {
				return res, nil
			}
		}
	}
}

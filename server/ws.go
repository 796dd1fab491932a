package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"nhooyr.io/websocket"

	"momentswap/exchange"
)

const wsWriteTimeout = 10 * time.Second

// streamExchange relays orchestrator status updates to a websocket client.
// The subscription is detached when the client disconnects.
func (s *Server) streamExchange(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	ctx := r.Context()
	updates := make(chan exchange.Update, 16)
	unsub := s.orch.Subscribe(func(u exchange.Update) {
		offerUpdate(updates, u)
	})
	defer unsub()

	// Replay the current request state so late joiners see where things
	// stand.
	if req, ok := s.orch.Last(); ok {
		update := exchange.Update{
			RequestID: req.ID,
			TxID:      req.TxID,
			Status:    req.Status,
			Message:   req.ErrorMessage,
		}
		if err := writeUpdate(ctx, conn, update); err != nil {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case u := <-updates:
			if err := writeUpdate(ctx, conn, u); err != nil {
				return
			}
		}
	}
}

// offerUpdate enqueues without blocking. A stalled client sheds the oldest
// buffered update so the newest state, terminal included, is the one that
// survives.
func offerUpdate(updates chan exchange.Update, u exchange.Update) {
	for {
		select {
		case updates <- u:
			return
		default:
		}
		select {
		case <-updates:
		default:
		}
	}
}

func writeUpdate(ctx context.Context, conn *websocket.Conn, u exchange.Update) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}

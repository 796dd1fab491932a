package chain

import (
	"encoding/json"
	"fmt"
)

// TxStatus mirrors the lifecycle the node reports for a submitted transaction.
type TxStatus int

const (
	StatusUnknown TxStatus = iota
	StatusPending
	StatusExecuted
	StatusSealed
)

func (s TxStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusExecuted:
		return "executed"
	case StatusSealed:
		return "sealed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status is final.
func (s TxStatus) Terminal() bool { return s == StatusSealed }

// Signers carries the proposer/payer/authorizer triple attached to a
// transaction submission.
type Signers struct {
	Proposer    Address   `json:"proposer"`
	Payer       Address   `json:"payer"`
	Authorizers []Address `json:"authorizers"`
}

// TxResult is the node's view of a transaction at one point in time.
type TxResult struct {
	TxID         string   `json:"txId"`
	Status       TxStatus `json:"-"`
	StatusName   string   `json:"status"`
	StatusCode   int      `json:"statusCode"`
	ErrorMessage string   `json:"errorMessage,omitempty"`
	BlockHeight  uint64   `json:"blockHeight,omitempty"`
}

// TxUpdate is delivered to watchers on every observed status change.
type TxUpdate struct {
	TxID         string   `json:"txId"`
	Status       TxStatus `json:"status"`
	StatusCode   int      `json:"statusCode"`
	ErrorMessage string   `json:"errorMessage,omitempty"`
}

// RPCError is a JSON-RPC error object returned by the node. The message is
// preserved verbatim because it frequently carries contract-level diagnostics.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("node rpc error %d: %s", e.Code, e.Message)
}

func statusFromName(name string) TxStatus {
	switch name {
	case "pending":
		return StatusPending
	case "executed":
		return StatusExecuted
	case "sealed":
		return StatusSealed
	default:
		return StatusUnknown
	}
}

package exchange

// Status is the orchestrator's view of one exchange request.
type Status int

const (
	StatusIdle Status = iota
	StatusAwaitingApproval
	StatusSubmitted
	StatusExecuting
	StatusSealedSuccess
	StatusSealedFailed
	StatusClientError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusAwaitingApproval:
		return "awaiting_approval"
	case StatusSubmitted:
		return "submitted"
	case StatusExecuting:
		return "executing"
	case StatusSealedSuccess:
		return "sealed_success"
	case StatusSealedFailed:
		return "sealed_failed"
	case StatusClientError:
		return "client_error"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status ends the request's lifecycle.
func (s Status) Terminal() bool {
	switch s {
	case StatusSealedSuccess, StatusSealedFailed, StatusClientError:
		return true
	default:
		return false
	}
}

// MarshalText renders the status for JSON payloads.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

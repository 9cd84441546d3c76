package llm

import "fmt"

// ErrorKind classifies gateway failures for the caller's retry policy.
type ErrorKind int

const (
	// KindConfig covers missing or invalid remote-service credentials.
	// Fatal; never retried.
	KindConfig ErrorKind = iota

	// KindRateLimited means the remote service throttled us even after
	// the gateway's single internal retry. Retryable by the caller.
	KindRateLimited

	// KindUpstream is any other remote failure, wrapped with the
	// original message.
	KindUpstream
)

// String returns the kind name for logging.
func (k ErrorKind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "upstream"
	}
}

// GatewayError is the single error type surfaced by the gateway.
type GatewayError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("gateway %s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *GatewayError) Unwrap() error {
	return e.Err
}

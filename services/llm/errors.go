package llm

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/sashabaranov/go-openai"
)

// FailureKind classifies a transport-level failure from the generative
// service. Each kind is surfaced to the user distinctly; none of them ever
// reaches the graph, because external calls complete strictly before any
// store mutation begins.
type FailureKind int

const (
	// FailureOffline means the service could not be reached at all.
	FailureOffline FailureKind = iota

	// FailureTimeout means the call exceeded its deadline.
	FailureTimeout

	// FailureRateLimited means the service refused the call with a quota
	// or rate-limit response.
	FailureRateLimited

	// FailureServer means the service failed on its side (5xx or an
	// unrecognized failure).
	FailureServer

	// FailureClient means the request itself was rejected (other 4xx).
	FailureClient
)

// failureKindNames maps FailureKind values to human-readable labels.
var failureKindNames = map[FailureKind]string{
	FailureOffline:     "service unreachable",
	FailureTimeout:     "request timed out",
	FailureRateLimited: "rate limited",
	FailureServer:      "service error",
	FailureClient:      "request rejected",
}

// String returns the human-readable label for the FailureKind.
func (k FailureKind) String() string {
	if name, ok := failureKindNames[k]; ok {
		return name
	}
	return "service error"
}

// TransportError wraps a backend failure with its classification.
type TransportError struct {
	Kind FailureKind
	Err  error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

// Unwrap exposes the underlying failure.
func (e *TransportError) Unwrap() error { return e.Err }

// WrapTransport classifies err and wraps it in a TransportError. A nil err
// passes through; an already-wrapped error is returned unchanged.
func WrapTransport(err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{Kind: Classify(err), Err: err}
}

// Classify maps a raw backend error onto a FailureKind.
func Classify(err error) FailureKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return FailureOffline
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return FailureOffline
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 429:
			return FailureRateLimited
		case apiErr.HTTPStatusCode >= 500:
			return FailureServer
		case apiErr.HTTPStatusCode >= 400:
			return FailureClient
		}
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == 429:
			return FailureRateLimited
		case statusErr.StatusCode >= 500:
			return FailureServer
		case statusErr.StatusCode >= 400:
			return FailureClient
		}
	}

	// Unrecognized failures read as server-side: the request was sound and
	// the network was up, yet no usable answer came back.
	return FailureServer
}

// StatusError is an HTTP status failure from a plain-HTTP backend (Ollama).
type StatusError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

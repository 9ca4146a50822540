package rpcsocket

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by the connect pipeline and the active session.
var (
	// ErrOperationAborted is the default cancellation error used throughout the
	// package when a caller cancels an in-flight operation without specifying
	// a more precise reason.
	ErrOperationAborted = errors.New("rpcsocket: operation aborted")

	// ErrNotConnected is returned when a send is attempted before the
	// WebSocket upgrade has completed, or after the session has torn down.
	ErrNotConnected = errors.New("rpcsocket: not connected")

	// ErrConnectionAborted is returned from Run if the connect latch is
	// ever canceled by something other than Close — a defensive fallback,
	// since today Close is the only caller that cancels it, and Close
	// itself makes Run return nil rather than this error.
	ErrConnectionAborted = errors.New("rpcsocket: connection aborted before connect completed")

	// ErrSessionClosed is the reason given to outstanding JSON-RPC calls
	// when the underlying transport tears down without a transport error,
	// e.g. following an orderly close.
	ErrSessionClosed = errors.New("rpcsocket: session closed")
)

// TransportError wraps a lower-layer error (DNS, TCP, TLS, WebSocket) so that
// callers can distinguish transport failures from remote JSON-RPC failures
// via errors.As.
type TransportError struct {
	Err error
}

// NewTransportError wraps err in a *TransportError, returning nil if err is nil.
func NewTransportError(err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Err: err}
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("rpcsocket: transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

package rpcsocket

import (
	"encoding/json"
	"errors"
	"fmt"
)

// RemoteFailure reports a JSON-RPC error object returned by the peer, as
// opposed to a local transport or protocol failure.
type RemoteFailure struct {
	// ErrorJSON is the raw "error" member of the response frame.
	ErrorJSON json.RawMessage
	// Context names the method the failing response was for.
	Context string
}

// Error formats the failure as "[remote_failure [context X] [error Y]]",
// per spec.md §4.8.
func (f *RemoteFailure) Error() string {
	return fmt.Sprintf("[remote_failure [context %s] [error %s]]", f.Context, f.ErrorJSON)
}

type resultKind int

const (
	resultKindTransportError resultKind = iota
	resultKindValue
	resultKindRemoteFailure
)

// RemoteResult is the outcome of a JSON-RPC call: exactly one of a transport
// error, a successful value, or a remote failure.
type RemoteResult struct {
	kind          resultKind
	transportErr  error
	value         json.RawMessage
	remoteFailure *RemoteFailure
}

// NewTransportResult wraps a local failure (timeout, disconnect, protocol
// error) that prevented the call from completing against the peer.
func NewTransportResult(err error) RemoteResult {
	return RemoteResult{kind: resultKindTransportError, transportErr: err}
}

// NewValueResult wraps a successful response's result member.
func NewValueResult(v json.RawMessage) RemoteResult {
	return RemoteResult{kind: resultKindValue, value: v}
}

// NewRemoteFailureResult wraps a response's error member.
func NewRemoteFailureResult(f *RemoteFailure) RemoteResult {
	return RemoteResult{kind: resultKindRemoteFailure, remoteFailure: f}
}

// IsTransportError reports whether the call failed locally.
func (r RemoteResult) IsTransportError() bool { return r.kind == resultKindTransportError }

// IsValue reports whether the call returned a successful result.
func (r RemoteResult) IsValue() bool { return r.kind == resultKindValue }

// IsRemoteFailure reports whether the peer reported an error for this call.
func (r RemoteResult) IsRemoteFailure() bool { return r.kind == resultKindRemoteFailure }

// Get returns the successful result, or the failure as an error (a
// *TransportError or *RemoteFailure depending on kind).
func (r RemoteResult) Get() (json.RawMessage, error) {
	switch r.kind {
	case resultKindValue:
		return r.value, nil
	case resultKindTransportError:
		return nil, r.transportErr
	case resultKindRemoteFailure:
		return nil, r.remoteFailure
	default:
		return nil, errors.New("rpcsocket: empty remote result")
	}
}

// RemoteFailure returns the wrapped failure, if any.
func (r RemoteResult) RemoteFailure() (*RemoteFailure, bool) {
	if r.kind != resultKindRemoteFailure {
		return nil, false
	}
	return r.remoteFailure, true
}

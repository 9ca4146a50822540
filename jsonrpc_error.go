package rpcsocket

import "fmt"

// ProtocolErrorCode classifies a JSON-RPC framing failure that isn't itself
// a transport error or a well-formed remote failure.
type ProtocolErrorCode int

const (
	// ProtoNotJSON means the frame could not be parsed as JSON at all.
	ProtoNotJSON ProtocolErrorCode = 1
	// ProtoInvalidContent means the frame parsed but didn't match the
	// JSON-RPC envelope (missing id/method/result/error in any combination).
	ProtoInvalidContent ProtocolErrorCode = 2
	// ProtoEmptyResult means a call returned an empty result. No code path in
	// this package reports it: a response carrying neither a result nor an
	// error is reported as ProtoInvalidContent.
	ProtoEmptyResult ProtocolErrorCode = 3
	// ProtoUnexpectedSuccess means a call expected to fail (e.g. during
	// authentication) instead returned a result.
	ProtoUnexpectedSuccess ProtocolErrorCode = 4
	// ProtoAuthenticationFailure means the session's authenticate call
	// itself returned a remote failure.
	ProtoAuthenticationFailure ProtocolErrorCode = 5
)

func (c ProtocolErrorCode) String() string {
	switch c {
	case ProtoNotJSON:
		return "not_json"
	case ProtoInvalidContent:
		return "invalid_content"
	case ProtoEmptyResult:
		return "empty_result"
	case ProtoUnexpectedSuccess:
		return "unexpected_success"
	case ProtoAuthenticationFailure:
		return "authentication_failure"
	default:
		return fmt.Sprintf("protocol_error(%d)", int(c))
	}
}

// ProtocolError reports a JSON-RPC framing failure local to this side of the
// connection, as opposed to a RemoteFailure reported by the peer.
type ProtocolError struct {
	Code ProtocolErrorCode
}

// NewProtocolError constructs a ProtocolError for the given code.
func NewProtocolError(code ProtocolErrorCode) *ProtocolError {
	return &ProtocolError{Code: code}
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("rpcsocket: json-rpc protocol error: %s", e.Code)
}

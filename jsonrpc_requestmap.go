package rpcsocket

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
)

// privateMethodPrefix marks methods that may not be sent until
// NotifyAuthenticated has been called.
const privateMethodPrefix = "private/"

// CallHandler receives the outcome of a single JSON-RPC call. err is non-nil
// only for failures local to this side (encode failure, send failure,
// session teardown, malformed response); a remote error object is instead
// carried inside RemoteResult.
type CallHandler func(err error, result RemoteResult)

type pendingAuthCall struct {
	method  string
	params  json.RawMessage
	handler CallHandler
}

// outstandingCall pairs a caller's handler with the method name it was sent
// for, so a RemoteFailure completing that call can be stamped with a
// Context identifying which call it belongs to.
type outstandingCall struct {
	method  string
	handler CallHandler
}

// RequestMap allocates JSON-RPC call IDs, correlates responses back to their
// caller, and gates private/* methods behind authentication until
// NotifyAuthenticated releases them in the order they were queued.
type RequestMap struct {
	mu            sync.Mutex
	nextID        uint64
	outstanding   map[uint64]outstandingCall
	pendingAuth   []pendingAuthCall
	authenticated bool
}

// NewRequestMap returns an empty, unauthenticated request map.
func NewRequestMap() *RequestMap {
	return &RequestMap{outstanding: make(map[uint64]outstandingCall)}
}

// AddAsyncRequest registers handler against a freshly allocated call ID and
// sends the encoded request via send. If method carries the private/ prefix
// and the map hasn't been authenticated yet, the call is buffered instead
// and send is not invoked until NotifyAuthenticated.
//
// If encoding or send fails, handler is invoked once with that error and the
// ID is released.
func (m *RequestMap) AddAsyncRequest(method string, params json.RawMessage, handler CallHandler, send func([]byte) error) {
	m.mu.Lock()
	if !m.authenticated && strings.HasPrefix(method, privateMethodPrefix) {
		m.pendingAuth = append(m.pendingAuth, pendingAuthCall{method: method, params: params, handler: handler})
		m.mu.Unlock()
		return
	}
	m.nextID++
	id := m.nextID
	m.outstanding[id] = outstandingCall{method: method, handler: handler}
	m.mu.Unlock()

	frame, err := encodeRequest(id, method, params)
	if err != nil {
		m.failAndErase(id, err)
		return
	}
	if err := send(frame); err != nil {
		m.failAndErase(id, err)
	}
}

// NotifyAuthenticated releases every call buffered behind the private/
// prefix, in the order AddAsyncRequest queued them, allocating their IDs and
// sending them via send.
func (m *RequestMap) NotifyAuthenticated(send func([]byte) error) {
	m.mu.Lock()
	if m.authenticated {
		m.mu.Unlock()
		return
	}
	m.authenticated = true
	pending := m.pendingAuth
	m.pendingAuth = nil

	type prepared struct {
		id     uint64
		method string
		params json.RawMessage
	}
	items := make([]prepared, 0, len(pending))
	for _, p := range pending {
		m.nextID++
		id := m.nextID
		m.outstanding[id] = outstandingCall{method: p.method, handler: p.handler}
		items = append(items, prepared{id: id, method: p.method, params: p.params})
	}
	m.mu.Unlock()

	for _, it := range items {
		frame, err := encodeRequest(it.id, it.method, it.params)
		if err != nil {
			m.failAndErase(it.id, err)
			continue
		}
		if err := send(frame); err != nil {
			m.failAndErase(it.id, err)
		}
	}
}

// Complete delivers result to the handler registered for id, if any. It
// reports whether a handler was found. A RemoteFailure result that doesn't
// already carry a Context is stamped with the method the call was sent for.
// A transport-error result is also passed to the handler as its err.
func (m *RequestMap) Complete(id uint64, result RemoteResult) bool {
	m.mu.Lock()
	call, ok := m.outstanding[id]
	if ok {
		delete(m.outstanding, id)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	if rf, isFailure := result.RemoteFailure(); isFailure && rf.Context == "" {
		rf.Context = call.method
	}
	var err error
	if result.IsTransportError() {
		_, err = result.Get()
	}
	call.handler(err, result)
	return true
}

// Cancel fails every outstanding and pending-auth call with ec, as a
// TransportError, and clears both tables. Cancel is used both for explicit
// teardown and for session-ending errors.
func (m *RequestMap) Cancel(ec error) {
	m.mu.Lock()
	outstanding := m.outstanding
	m.outstanding = make(map[uint64]outstandingCall)
	pending := m.pendingAuth
	m.pendingAuth = nil
	m.mu.Unlock()

	for _, call := range outstanding {
		call.handler(ec, NewTransportResult(ec))
	}
	for _, p := range pending {
		p.handler(ec, NewTransportResult(ec))
	}
}

// CancelAborted is Cancel(ErrOperationAborted), the default teardown reason
// used when a caller aborts a request map without specifying a more precise
// error, mirroring the original implementation's defaulted cancel().
func (m *RequestMap) CancelAborted() {
	m.Cancel(ErrOperationAborted)
}

func (m *RequestMap) failAndErase(id uint64, err error) {
	m.mu.Lock()
	call, ok := m.outstanding[id]
	if ok {
		delete(m.outstanding, id)
	}
	m.mu.Unlock()
	if ok {
		call.handler(err, NewTransportResult(err))
	}
}

type requestFrame struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

func encodeRequest(id uint64, method string, params json.RawMessage) ([]byte, error) {
	return sonic.Marshal(requestFrame{JSONRPC: "2.0", ID: id, Method: method, Params: params})
}

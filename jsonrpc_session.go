package rpcsocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
)

// MethodHandler receives a JSON-RPC notification or server-initiated call
// pushed by the peer.
type MethodHandler func(method string, params json.RawMessage)

// JsonRpcSession is a persistent WebSocket connection multiplexing JSON-RPC
// 2.0 requests and responses over it, with calls to private/* methods gated
// until NotifyAuthenticated.
type JsonRpcSession struct {
	ws     *WsSession
	exec   *Executor
	logger zerolog.Logger
	reqMap *RequestMap

	mu       sync.Mutex
	onMethod MethodHandler
}

// NewJsonRpcSession constructs a session with its own executor and
// WebSocket transport. The executor is owned by the session and shut down
// when Run returns.
func NewJsonRpcSession(opts ...Option) *JsonRpcSession {
	cfg := defaultSessionConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	exec := NewExecutor()
	ws := NewWsSession(exec, opts...)
	return &JsonRpcSession{
		ws:     ws,
		exec:   exec,
		logger: cfg.logger,
		reqMap: NewRequestMap(),
	}
}

// ID identifies this session for logging and correlation.
func (s *JsonRpcSession) ID() xid.ID { return s.ws.ID() }

// Connect requests a connection to host:port, optionally over TLS.
func (s *JsonRpcSession) Connect(ctx context.Context, host, port, target string, useTLS bool) error {
	return s.ws.ConnectTLS(ctx, host, port, target, useTLS)
}

// Close requests an orderly shutdown of the connection.
func (s *JsonRpcSession) Close(reason CloseReason) {
	s.ws.Close(reason)
}

// CloseDefault requests an orderly shutdown using the session's configured
// close reason (WithCloseReason, or DefaultCloseReason if unset).
func (s *JsonRpcSession) CloseDefault() {
	s.ws.CloseDefault()
}

// Run drives the underlying transport and dispatches inbound notifications
// and server-initiated calls to onMethod. It blocks until the connection
// ends, at which point every outstanding and pending-auth call is failed.
func (s *JsonRpcSession) Run(ctx context.Context, onMethod MethodHandler) error {
	s.mu.Lock()
	s.onMethod = onMethod
	s.mu.Unlock()

	err := s.ws.Run(ctx, s.dispatchText, nil)

	if err != nil {
		s.reqMap.Cancel(NewTransportError(err))
	} else {
		s.reqMap.Cancel(ErrSessionClosed)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if shutdownErr := s.exec.Shutdown(shutdownCtx); shutdownErr != nil {
		s.logger.Warn().Stringer("id", s.ID()).Err(shutdownErr).Msg("executor shutdown timed out")
	}

	return err
}

// AsyncCall sends a JSON-RPC request and invokes cb with its outcome. If
// method carries the private/ prefix and the session hasn't yet called
// NotifyAuthenticated, the call is buffered and sent once it does.
func (s *JsonRpcSession) AsyncCall(method string, params json.RawMessage, cb func(err error, result RemoteResult)) {
	s.reqMap.AddAsyncRequest(method, params, cb, s.send)
}

// NotifyAuthenticated releases every call buffered behind the private/
// prefix, sending them in the order they were queued.
func (s *JsonRpcSession) NotifyAuthenticated() {
	s.reqMap.NotifyAuthenticated(s.send)
}

func (s *JsonRpcSession) send(frame []byte) error {
	return s.ws.SendText(string(frame))
}

type rpcFrame struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *uint64         `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	Result  json.RawMessage `json:"result"`
	Error   json.RawMessage `json:"error"`
}

func (s *JsonRpcSession) dispatchText(data []byte) {
	var frame rpcFrame
	if err := sonic.Unmarshal(data, &frame); err != nil {
		s.logger.Warn().Err(err).Msg("dropped frame: not valid JSON")
		return
	}

	if frame.Method != "" {
		s.mu.Lock()
		h := s.onMethod
		s.mu.Unlock()
		if h != nil {
			h(frame.Method, frame.Params)
		}
		return
	}

	if frame.ID == nil {
		s.logger.Warn().Msg("dropped frame: neither method nor id present")
		return
	}

	var result RemoteResult
	switch {
	case frame.Result != nil:
		result = NewValueResult(frame.Result)
	case frame.Error != nil:
		result = NewRemoteFailureResult(&RemoteFailure{ErrorJSON: frame.Error})
	default:
		err := NewProtocolError(ProtoInvalidContent)
		result = NewTransportResult(err)
	}

	if !s.reqMap.Complete(*frame.ID, result) {
		s.logger.Warn().Uint64("id", *frame.ID).Msg("dropped response: unknown id")
	}
}

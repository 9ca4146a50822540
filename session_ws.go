package rpcsocket

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
)

// CloseReason describes the code and text sent in a WebSocket close frame.
type CloseReason struct {
	Code   uint16
	Reason string
}

// DefaultCloseReason is the going-away reason CloseDefault uses when no
// WithCloseReason option was given.
func DefaultCloseReason() CloseReason {
	return CloseReason{Code: uint16(websocket.CloseGoingAway)}
}

// ConnectRequest describes the target of a connect attempt, as filled into
// a WsSession's connect latch by Connect/ConnectTLS.
type ConnectRequest struct {
	Host   string
	Port   string
	Target string
	UseTLS bool
}

// closeHook is the phase-scoped variant of CancelHook used by WsSession: it
// carries a CloseReason payload rather than an error, since an explicit
// Close is not itself a failure.
type closeHook struct {
	mu      sync.Mutex
	fn      func(CloseReason)
	pending *CloseReason
}

func (h *closeHook) install(fn func(CloseReason)) {
	h.mu.Lock()
	if h.pending != nil {
		reason := *h.pending
		h.pending = nil
		h.mu.Unlock()
		fn(reason)
		return
	}
	h.fn = fn
	h.mu.Unlock()
}

func (h *closeHook) deliver(reason CloseReason) {
	h.mu.Lock()
	fn := h.fn
	h.fn = nil
	if fn == nil {
		r := reason
		h.pending = &r
	}
	h.mu.Unlock()
	if fn != nil {
		fn(reason)
	}
}

// WsSession is a single persistent WebSocket connection: a connect pipeline
// layered over resolve/TCP/TLS, followed by a fork/join active phase that
// runs independent reader, writer and closer goroutines until the
// connection ends.
type WsSession struct {
	id               xid.ID
	exec             *Executor
	ownsExec         bool
	logger           zerolog.Logger
	dialTimeout      time.Duration
	handshakeTimeout time.Duration
	tlsConfig        *tls.Config
	closeReason      CloseReason

	connectLatch    *JoinLatch1[ConnectRequest]
	connectedSignal *AsyncEvent
	closeHk         closeHook

	mu     sync.Mutex
	conn   *websocket.Conn
	writer *wsWriter
}

// NewWsSession constructs a WsSession dispatching completions on exec. If
// exec is nil, a dedicated executor is created and owned by the session.
func NewWsSession(exec *Executor, opts ...Option) *WsSession {
	cfg := defaultSessionConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	ownsExec := false
	if exec == nil {
		exec = NewExecutor()
		ownsExec = true
	}
	return &WsSession{
		id:               xid.New(),
		exec:             exec,
		ownsExec:         ownsExec,
		logger:           cfg.logger,
		dialTimeout:      cfg.dialTimeout,
		handshakeTimeout: cfg.handshakeTimeout,
		tlsConfig:        cfg.tlsConfig,
		closeReason:      cfg.closeReason,
		connectLatch:     NewJoinLatch1[ConnectRequest](exec),
		connectedSignal:  NewAsyncEvent(exec),
	}
}

// ID identifies this session for logging and correlation.
func (s *WsSession) ID() xid.ID { return s.id }

// Executor returns the executor this session dispatches completions on.
func (s *WsSession) Executor() *Executor { return s.exec }

// Connect requests a plaintext connect to host:port and waits for the
// WebSocket upgrade to complete or fail.
func (s *WsSession) Connect(ctx context.Context, host, port, target string) error {
	return s.ConnectTLS(ctx, host, port, target, false)
}

// ConnectTLS requests a connect to host:port, optionally over TLS, and waits
// for the WebSocket upgrade to complete or fail. Connect/ConnectTLS may only
// be called once per session; Run must be running concurrently to drive the
// connect pipeline forward.
func (s *WsSession) ConnectTLS(ctx context.Context, host, port, target string, useTLS bool) error {
	req := ConnectRequest{Host: host, Port: port, Target: target, UseTLS: useTLS}

	done := make(chan error, 1)
	s.connectedSignal.AsyncWait(func(err error) { done <- err })
	s.connectLatch.SetEventA(req)

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close requests an orderly shutdown of the active connection, or aborts an
// in-flight connect attempt. Close is safe to call at any point in the
// session's lifetime and is idempotent.
func (s *WsSession) Close(reason CloseReason) {
	s.closeHk.deliver(reason)
}

// CloseDefault requests an orderly shutdown using the session's configured
// close reason (WithCloseReason, or DefaultCloseReason if unset).
func (s *WsSession) CloseDefault() {
	s.Close(s.closeReason)
}

// SendText enqueues a text frame for the writer goroutine. It returns
// ErrNotConnected if the WebSocket upgrade hasn't completed yet, or has
// already torn down.
func (s *WsSession) SendText(text string) error {
	s.mu.Lock()
	w := s.writer
	s.mu.Unlock()
	if w == nil {
		return ErrNotConnected
	}
	w.Send(text)
	return nil
}

// Run drives the session's connect pipeline and, once connected, its active
// fork/join phase, delivering received text and binary frames to onText and
// onBinary respectively. Run blocks until the session ends, returning nil
// for an orderly close and a non-nil error for anything else. Exactly one
// Run call may be outstanding per session.
func (s *WsSession) Run(ctx context.Context, onText, onBinary func([]byte)) error {
	if s.ownsExec {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.exec.Shutdown(shutdownCtx); err != nil {
				s.logger.Warn().Stringer("id", s.id).Err(err).Msg("executor shutdown timed out")
			}
		}()
	}

	// Phase 1: pre-connect. A Close arriving here aborts the connect latch
	// before any network activity has begun.
	var preCloseReason *CloseReason
	s.closeHk.install(func(r CloseReason) {
		preCloseReason = &r
		s.connectLatch.Cancel(ErrOperationAborted)
	})

	waitDone := make(chan error, 1)
	s.connectLatch.AsyncWait(func(err error) { waitDone <- err })
	connErr := <-waitDone

	// A Close is not a failure: it must unwind Run with a nil error, the
	// same as an orderly close reached via Phase 3. Check it ahead of
	// connErr, since the only thing that ever cancels connectLatch is the
	// hook above.
	if preCloseReason != nil {
		s.logger.Debug().Stringer("id", s.id).Msg("closed before connect completed")
		s.connectedSignal.Cancel(ErrOperationAborted)
		return nil
	}
	if connErr != nil {
		s.connectedSignal.Cancel(connErr)
		return ErrConnectionAborted
	}

	req := s.connectLatch.EventA()

	// Phase 2: connect. A Close arriving here cancels the in-flight
	// resolve/TCP/TLS/WS pipeline via the shared hook.
	var hook CancelHook
	var midCloseReason *CloseReason
	s.closeHk.install(func(r CloseReason) {
		midCloseReason = &r
		hook.Cancel(ErrOperationAborted)
	})

	connectCtx := ctx
	if s.dialTimeout > 0 || s.handshakeTimeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, s.dialTimeout+s.handshakeTimeout)
		defer cancel()
	}

	conn, err := (WSConnectOp{}).Run(connectCtx, &hook, req.Host, req.Port, req.Target, req.UseTLS, s.tlsConfig)
	if midCloseReason != nil {
		if err == nil {
			conn.Close()
		}
		s.logger.Debug().Stringer("id", s.id).Msg("closed during connect")
		s.connectedSignal.Cancel(ErrOperationAborted)
		return nil
	}
	if err != nil {
		s.connectedSignal.Cancel(err)
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	// Phase 3: active session. Reader, writer and closer run independently
	// until the connection ends; their exits are joined via a two-slot
	// latch.
	writer := newWsWriter(s.exec, conn)
	closer := newWsCloser(s.exec, conn)
	join := NewJoinLatch2[error, error](s.exec)

	s.mu.Lock()
	s.writer = writer
	s.mu.Unlock()

	var postCloseReason *CloseReason
	s.closeHk.install(func(r CloseReason) {
		postCloseReason = &r
		closer.Close(r)
		writer.Cancel()
	})

	s.connectedSignal.SetEvent()

	if postCloseReason != nil {
		closer.Close(*postCloseReason)
		writer.Cancel()
	}

	go func() { join.SetEventA(writer.run()) }()
	go func() { join.SetEventB(closer.run()) }()

	reader := newWsReader(conn, onText, onBinary, s.logger, s.id)
	readErr := reader.run()
	// Reader exit, clean or not, is the only signal the writer and closer
	// get that the connection is gone. Cancel is a no-op against a sibling
	// that already finished via an explicit Close.
	closer.Cancel()
	writer.Cancel()

	joinResult := make(chan error, 1)
	join.AsyncWait(func(err error) { joinResult <- err })
	<-joinResult

	s.mu.Lock()
	s.writer = nil
	s.conn = nil
	s.mu.Unlock()

	var merr *multierror.Error
	if readErr != nil {
		merr = multierror.Append(merr, fmt.Errorf("reader: %w", readErr))
	}
	if writerErr := join.EventA(); writerErr != nil && !errors.Is(writerErr, ErrOperationAborted) {
		merr = multierror.Append(merr, fmt.Errorf("writer: %w", writerErr))
	}
	if closerErr := join.EventB(); closerErr != nil && !errors.Is(closerErr, ErrOperationAborted) {
		merr = multierror.Append(merr, fmt.Errorf("closer: %w", closerErr))
	}
	if err := merr.ErrorOrNil(); err != nil {
		s.logger.Warn().Stringer("id", s.id).Err(err).Msg("session ended with errors")
		return err
	}
	return nil
}

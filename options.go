package rpcsocket

import (
	"crypto/tls"
	"time"

	"github.com/rs/zerolog"
)

// sessionConfig holds the tunables shared by WsSession and JsonRpcSession.
type sessionConfig struct {
	logger           zerolog.Logger
	dialTimeout      time.Duration
	handshakeTimeout time.Duration
	closeReason      CloseReason
	tlsConfig        *tls.Config
}

func defaultSessionConfig() sessionConfig {
	return sessionConfig{
		logger:           defaultLogger,
		dialTimeout:      10 * time.Second,
		handshakeTimeout: 10 * time.Second,
		closeReason:      DefaultCloseReason(),
	}
}

// Option configures a WsSession or JsonRpcSession at construction time.
type Option func(*sessionConfig)

// WithLogger sets the logger used for diagnostic events.
func WithLogger(l zerolog.Logger) Option {
	return func(c *sessionConfig) { c.logger = l }
}

// WithDialTimeout sets the dial share of the connect deadline. Run drives the
// whole resolve/TCP/TLS/WebSocket connect pipeline under one deadline equal to
// the dial timeout plus the handshake timeout; the individual phases are not
// bounded separately. When both are zero there is no such deadline and only
// the ctx passed to Run bounds the connect.
func WithDialTimeout(d time.Duration) Option {
	return func(c *sessionConfig) { c.dialTimeout = d }
}

// WithHandshakeTimeout sets the handshake share of the connect deadline; see
// WithDialTimeout.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *sessionConfig) { c.handshakeTimeout = d }
}

// WithCloseReason sets the close code and reason that CloseDefault uses.
func WithCloseReason(r CloseReason) Option {
	return func(c *sessionConfig) { c.closeReason = r }
}

// WithTLSConfig sets the TLS configuration used for TLS-enabled connects.
// ServerName defaults to the connect host when left unset.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(c *sessionConfig) { c.tlsConfig = cfg }
}

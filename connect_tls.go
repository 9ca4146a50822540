package rpcsocket

import (
	"context"
	"crypto/tls"
)

// TLSConnectOp dials a TCP connection to host:port and performs a TLS
// handshake over it.
type TLSConnectOp struct{}

// Run composes TCPConnectOp with a TLS handshake, defaulting cfg.ServerName
// to host when the caller hasn't set one.
func (TLSConnectOp) Run(ctx context.Context, hook *CancelHook, host, port string, cfg *tls.Config) (*tls.Conn, error) {
	return tlsConnect(ctx, hook, host, port, cfg)
}

func tlsConnect(ctx context.Context, hook *CancelHook, host, port string, cfg *tls.Config) (*tls.Conn, error) {
	tcpConn, err := tcpConnectHostPort(ctx, hook, host, port)
	if err != nil {
		return nil, err
	}

	hsCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	myErr := ErrOperationAborted
	hook.Install(func(err error) {
		myErr = err
		cancel()
	})
	defer hook.Clear()

	if cfg == nil {
		cfg = &tls.Config{}
	}
	if cfg.ServerName == "" {
		clone := cfg.Clone()
		clone.ServerName = host
		cfg = clone
	}

	tlsConn := tls.Client(tcpConn, cfg)
	if err := tlsConn.HandshakeContext(hsCtx); err != nil {
		tcpConn.Close()
		if hsCtx.Err() != nil {
			return nil, myErr
		}
		return nil, NewTransportError(err)
	}
	return tlsConn, nil
}

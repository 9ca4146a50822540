package rpcsocket

import (
	"context"
	"net"
	"net/netip"
)

// TCPConnectOp resolves a host:port pair and dials the first endpoint that
// accepts a connection.
type TCPConnectOp struct{}

// Run resolves host:port via ResolveOp and dials the resulting endpoints in
// turn, composing ctx's cancellation with hook.
func (TCPConnectOp) Run(ctx context.Context, hook *CancelHook, host, port string) (net.Conn, error) {
	return tcpConnectHostPort(ctx, hook, host, port)
}

func tcpConnectHostPort(ctx context.Context, hook *CancelHook, host, port string) (net.Conn, error) {
	endpoints, err := resolveEndpoints(ctx, hook, host, port)
	if err != nil {
		return nil, err
	}
	return tcpConnect(ctx, hook, endpoints)
}

func tcpConnect(ctx context.Context, hook *CancelHook, endpoints []netip.AddrPort) (net.Conn, error) {
	dialCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	myErr := ErrOperationAborted
	hook.Install(func(err error) {
		myErr = err
		cancel()
	})
	defer hook.Clear()

	dialer := &net.Dialer{}
	var lastErr error
	for _, ep := range endpoints {
		conn, err := dialer.DialContext(dialCtx, "tcp", ep.String())
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if dialCtx.Err() != nil {
			return nil, myErr
		}
	}
	return nil, NewTransportError(lastErr)
}

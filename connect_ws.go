package rpcsocket

import (
	"context"
	"crypto/tls"
	"net"
	"net/url"

	"github.com/gorilla/websocket"
)

// WSConnectOp composes the TCP/TLS layers with a WebSocket upgrade handshake.
type WSConnectOp struct{}

// Run dials the lower layer exactly once — TCPConnectOp when useTLS is
// false, TLSConnectOp when it's true — and splices the resulting connection
// into the WebSocket upgrade via the gorilla dialer's NetDialContext or
// NetDialTLSContext hook, so the dialer never attempts a TLS handshake of
// its own on a connection that has already been through TLSConnectOp.
func (WSConnectOp) Run(
	ctx context.Context,
	hook *CancelHook,
	host, port, target string,
	useTLS bool,
	tlsCfg *tls.Config,
) (*websocket.Conn, error) {
	return wsConnect(ctx, hook, host, port, target, useTLS, tlsCfg)
}

func wsConnect(
	ctx context.Context,
	hook *CancelHook,
	host, port, target string,
	useTLS bool,
	tlsCfg *tls.Config,
) (*websocket.Conn, error) {
	var lowerConn net.Conn
	var dialErr error

	upgradeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	myErr := ErrOperationAborted
	// installUpgradeFn re-arms the WS-upgrade-level cancel hook. The lower
	// dial (tcpConnectHostPort/tlsConnect) installs and clears its own hook
	// on the same *CancelHook inside the dialer's NetDial(TLS)Context
	// callback below, so this hook must be re-installed right after that
	// callback's dial succeeds to stay live for the upgrade exchange that
	// follows in the same DialContext call.
	installUpgradeFn := func() {
		hook.Install(func(err error) {
			myErr = err
			cancel()
		})
	}

	dialer := &websocket.Dialer{}

	if useTLS {
		dialer.NetDialTLSContext = func(context.Context, string, string) (net.Conn, error) {
			conn, err := tlsConnect(ctx, hook, host, port, tlsCfg)
			if err != nil {
				dialErr = err
				return nil, err
			}
			lowerConn = conn
			installUpgradeFn()
			return conn, nil
		}
	} else {
		dialer.NetDialContext = func(context.Context, string, string) (net.Conn, error) {
			conn, err := tcpConnectHostPort(ctx, hook, host, port)
			if err != nil {
				dialErr = err
				return nil, err
			}
			lowerConn = conn
			installUpgradeFn()
			return conn, nil
		}
	}

	scheme := "ws"
	if useTLS {
		scheme = "wss"
	}
	u := url.URL{Scheme: scheme, Host: net.JoinHostPort(host, port), Path: target}

	installUpgradeFn()
	defer hook.Clear()

	conn, resp, err := dialer.DialContext(upgradeCtx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if dialErr != nil {
			return nil, dialErr
		}
		if lowerConn != nil {
			lowerConn.Close()
		}
		if upgradeCtx.Err() != nil {
			return nil, myErr
		}
		return nil, NewTransportError(err)
	}
	return conn, nil
}

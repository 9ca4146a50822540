package rpcsocket

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// jsonrpcTestServer upgrades one WebSocket connection and exposes its frames
// for the test to drive directly: every inbound text frame is forwarded to
// received, and every frame pushed to toSend is written back to the client.
type jsonrpcTestServer struct {
	*httptest.Server
	received chan []byte
	toSend   chan []byte
}

func newJSONRPCTestServer(t *testing.T) *jsonrpcTestServer {
	t.Helper()
	s := &jsonrpcTestServer{
		received: make(chan []byte, 16),
		toSend:   make(chan []byte, 16),
	}
	upgrader := websocket.Upgrader{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		readErrs := make(chan struct{})
		go func() {
			defer close(readErrs)
			for {
				_, data, err := conn.ReadMessage()
				if err != nil {
					return
				}
				s.received <- data
			}
		}()

		for {
			select {
			case frame := <-s.toSend:
				if conn.WriteMessage(websocket.TextMessage, frame) != nil {
					return
				}
			case <-readErrs:
				return
			}
		}
	}))
	return s
}

func (s *jsonrpcTestServer) hostPort(t *testing.T) (string, string) {
	host, port, err := net.SplitHostPort(s.Listener.Addr().String())
	require.NoError(t, err)
	return host, port
}

func connectedSession(t *testing.T, srv *jsonrpcTestServer) (*JsonRpcSession, chan error) {
	t.Helper()
	session := NewJsonRpcSession()
	runErr := make(chan error, 1)
	go func() {
		runErr <- session.Run(context.Background(), func(string, json.RawMessage) {})
	}()

	host, port := srv.hostPort(t)
	connectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, session.Connect(connectCtx, host, port, "/", false))
	return session, runErr
}

// TestJsonRpcSessionCallRoundTrip covers scenario 6: a successful result
// response completes the call with a Value.
func TestJsonRpcSessionCallRoundTrip(t *testing.T) {
	srv := newJSONRPCTestServer(t)
	defer srv.Close()

	session, runErr := connectedSession(t, srv)

	done := make(chan struct{})
	var gotErr error
	var gotResult RemoteResult
	session.AsyncCall("public/test", json.RawMessage(`{}`), func(err error, result RemoteResult) {
		gotErr = err
		gotResult = result
		close(done)
	})

	select {
	case req := <-srv.received:
		var decoded map[string]any
		require.NoError(t, json.Unmarshal(req, &decoded))
		require.Equal(t, "public/test", decoded["method"])
		require.Equal(t, float64(1), decoded["id"])
	case <-time.After(time.Second):
		t.Fatal("server never received the request")
	}

	srv.toSend <- []byte(`{"jsonrpc":"2.0","id":1,"result":{"ok":true}}`)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler never completed")
	}

	require.NoError(t, gotErr)
	require.True(t, gotResult.IsValue())
	value, err := gotResult.Get()
	require.NoError(t, err)
	require.JSONEq(t, `{"ok":true}`, string(value))

	session.Close(DefaultCloseReason())
	<-runErr
}

// TestJsonRpcSessionRemoteError covers scenario 7: an "error" response
// completes the call with a RemoteFailure.
func TestJsonRpcSessionRemoteError(t *testing.T) {
	srv := newJSONRPCTestServer(t)
	defer srv.Close()

	session, runErr := connectedSession(t, srv)

	done := make(chan struct{})
	var gotResult RemoteResult
	session.AsyncCall("public/test", json.RawMessage(`{}`), func(err error, result RemoteResult) {
		gotResult = result
		close(done)
	})

	<-srv.received
	srv.toSend <- []byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"no"}}`)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler never completed")
	}

	require.True(t, gotResult.IsRemoteFailure())
	failure, ok := gotResult.RemoteFailure()
	require.True(t, ok)
	require.JSONEq(t, `{"code":-32601,"message":"no"}`, string(failure.ErrorJSON))
	require.Equal(t, "public/test", failure.Context)

	session.Close(DefaultCloseReason())
	<-runErr
}

// TestJsonRpcSessionAuthGating covers scenario 8: a private/* call issued
// before NotifyAuthenticated is buffered, not sent, until authentication
// flushes it.
func TestJsonRpcSessionAuthGating(t *testing.T) {
	srv := newJSONRPCTestServer(t)
	defer srv.Close()

	session, runErr := connectedSession(t, srv)

	session.AsyncCall("private/buy", json.RawMessage(`{}`), func(error, RemoteResult) {})

	select {
	case <-srv.received:
		t.Fatal("private/* call was sent before NotifyAuthenticated")
	case <-time.After(50 * time.Millisecond):
	}

	session.NotifyAuthenticated()

	select {
	case req := <-srv.received:
		var decoded map[string]any
		require.NoError(t, json.Unmarshal(req, &decoded))
		require.Equal(t, "private/buy", decoded["method"])
		require.Equal(t, float64(1), decoded["id"])
	case <-time.After(time.Second):
		t.Fatal("private/* call was never sent after NotifyAuthenticated")
	}

	session.Close(DefaultCloseReason())
	<-runErr
}

// TestJsonRpcSessionInvalidContentResponse covers the protocol-error path:
// a response frame carrying an id but neither "result" nor "error" fails
// the matching call with invalid_content.
func TestJsonRpcSessionInvalidContentResponse(t *testing.T) {
	srv := newJSONRPCTestServer(t)
	defer srv.Close()

	session, runErr := connectedSession(t, srv)

	done := make(chan struct{})
	var gotErr error
	session.AsyncCall("public/test", json.RawMessage(`{}`), func(err error, result RemoteResult) {
		gotErr = err
		close(done)
	})
	<-srv.received

	srv.toSend <- []byte(`{"jsonrpc":"2.0","id":1}`)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler never completed")
	}

	var pe *ProtocolError
	require.ErrorAs(t, gotErr, &pe)
	require.Equal(t, ProtoInvalidContent, pe.Code)

	session.Close(DefaultCloseReason())
	<-runErr
}

// TestJsonRpcSessionUnknownIDResponseIsDropped covers the "unknown ids are
// logged and dropped" clause: a response for an id with no outstanding call
// must not panic or otherwise disrupt the session.
func TestJsonRpcSessionUnknownIDResponseIsDropped(t *testing.T) {
	srv := newJSONRPCTestServer(t)
	defer srv.Close()

	session, runErr := connectedSession(t, srv)

	srv.toSend <- []byte(`{"jsonrpc":"2.0","id":999,"result":{}}`)

	done := make(chan struct{})
	var gotErr error
	var gotResult RemoteResult
	session.AsyncCall("public/test", json.RawMessage(`{}`), func(err error, result RemoteResult) {
		gotErr = err
		gotResult = result
		close(done)
	})
	<-srv.received
	srv.toSend <- []byte(`{"jsonrpc":"2.0","id":1,"result":{"ok":true}}`)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler never completed")
	}
	require.NoError(t, gotErr)
	require.True(t, gotResult.IsValue())

	session.Close(DefaultCloseReason())
	<-runErr
}

// TestJsonRpcSessionCancelFailsOutstandingCalls covers the teardown
// propagation policy: tearing down the connection fails every outstanding
// and pending-auth call.
func TestJsonRpcSessionCancelFailsOutstandingCalls(t *testing.T) {
	srv := newJSONRPCTestServer(t)
	defer srv.Close()

	session, runErr := connectedSession(t, srv)

	outstandingDone := make(chan error, 1)
	session.AsyncCall("public/test", json.RawMessage(`{}`), func(err error, result RemoteResult) {
		outstandingDone <- err
	})
	<-srv.received

	pendingDone := make(chan error, 1)
	session.AsyncCall("private/buy", json.RawMessage(`{}`), func(err error, result RemoteResult) {
		pendingDone <- err
	})

	session.Close(DefaultCloseReason())
	require.NoError(t, <-runErr)

	select {
	case err := <-outstandingDone:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("outstanding call never completed on teardown")
	}
	select {
	case err := <-pendingDone:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("pending-auth call never completed on teardown")
	}
}

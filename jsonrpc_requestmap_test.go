package rpcsocket

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestMapAddAsyncRequestSendsImmediately(t *testing.T) {
	m := NewRequestMap()

	var sent []byte
	var gotResult RemoteResult
	called := false

	m.AddAsyncRequest("public/ping", json.RawMessage(`{}`), func(err error, result RemoteResult) {
		called = true
		gotResult = result
	}, func(frame []byte) error {
		sent = frame
		return nil
	})

	require.NotNil(t, sent)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(sent, &decoded))
	assert.Equal(t, "public/ping", decoded["method"])
	assert.Equal(t, float64(1), decoded["id"])
	assert.False(t, called)

	ok := m.Complete(1, NewValueResult(json.RawMessage(`"pong"`)))
	assert.True(t, ok)
	assert.True(t, called)
	assert.True(t, gotResult.IsValue())
}

func TestRequestMapBuffersPrivateMethodsUntilAuthenticated(t *testing.T) {
	m := NewRequestMap()

	sendCount := 0
	m.AddAsyncRequest("private/withdraw", json.RawMessage(`{}`), func(error, RemoteResult) {}, func([]byte) error {
		sendCount++
		return nil
	})
	assert.Equal(t, 0, sendCount)

	m.NotifyAuthenticated(func([]byte) error {
		sendCount++
		return nil
	})
	assert.Equal(t, 1, sendCount)
}

func TestRequestMapAddAsyncRequestSendFailureInvokesHandler(t *testing.T) {
	m := NewRequestMap()

	sentinel := errors.New("write failed")
	var gotErr error
	m.AddAsyncRequest("public/ping", nil, func(err error, result RemoteResult) {
		gotErr = err
	}, func([]byte) error { return sentinel })

	assert.Equal(t, sentinel, gotErr)

	// The id should have been erased: a late Complete finds nothing to do.
	assert.False(t, m.Complete(1, NewValueResult(nil)))
}

func TestRequestMapCancelFailsOutstandingAndPending(t *testing.T) {
	m := NewRequestMap()

	var outstandingErr, pendingErr error
	m.AddAsyncRequest("public/ping", nil, func(err error, result RemoteResult) { outstandingErr = err }, func([]byte) error { return nil })
	m.AddAsyncRequest("private/withdraw", nil, func(err error, result RemoteResult) { pendingErr = err }, func([]byte) error { return nil })

	sentinel := errors.New("teardown")
	m.Cancel(sentinel)

	assert.Equal(t, sentinel, outstandingErr)
	assert.Equal(t, sentinel, pendingErr)
}

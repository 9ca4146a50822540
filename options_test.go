package rpcsocket

import (
	"context"
	"crypto/tls"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestOptionsApplyOverDefaults(t *testing.T) {
	cfg := defaultSessionConfig()
	assert.Equal(t, DefaultCloseReason(), cfg.closeReason)
	assert.Nil(t, cfg.tlsConfig)

	customLogger := zerolog.Nop()
	tlsCfg := &tls.Config{ServerName: "example.com"}
	reason := CloseReason{Code: 4000, Reason: "bye"}

	for _, opt := range []Option{
		WithLogger(customLogger),
		WithDialTimeout(2 * time.Second),
		WithHandshakeTimeout(3 * time.Second),
		WithCloseReason(reason),
		WithTLSConfig(tlsCfg),
	} {
		opt(&cfg)
	}

	assert.Equal(t, 2*time.Second, cfg.dialTimeout)
	assert.Equal(t, 3*time.Second, cfg.handshakeTimeout)
	assert.Equal(t, reason, cfg.closeReason)
	assert.Same(t, tlsCfg, cfg.tlsConfig)
}

func TestWsSessionCloseDefaultBeforeConnectEndsRunCleanly(t *testing.T) {
	reason := CloseReason{Code: 4001, Reason: "custom"}
	session := NewWsSession(nil, WithCloseReason(reason))

	runErr := make(chan error, 1)
	go func() { runErr <- session.Run(context.Background(), nil, nil) }()

	time.Sleep(10 * time.Millisecond)
	session.CloseDefault()

	select {
	case err := <-runErr:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run never returned")
	}
}

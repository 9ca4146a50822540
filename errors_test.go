package rpcsocket

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTransportErrorWrapsAndUnwraps(t *testing.T) {
	sentinel := errors.New("dial refused")
	err := NewTransportError(sentinel)

	var te *TransportError
	assert.True(t, errors.As(err, &te))
	assert.True(t, errors.Is(err, sentinel))
	assert.Contains(t, err.Error(), "dial refused")
}

func TestNewTransportErrorNilIsNil(t *testing.T) {
	assert.Nil(t, NewTransportError(nil))
}

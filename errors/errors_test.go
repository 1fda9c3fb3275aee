package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapTransient_Classification(t *testing.T) {
	err := WrapTransient(ErrConnectionLost, "Sender", "Send", "publish sample")

	assert.True(t, IsTransient(err))
	assert.False(t, IsInvalid(err))
	assert.False(t, IsFatal(err))
	assert.Equal(t, ErrorTransient, Classify(err))
	assert.Contains(t, err.Error(), "Sender.Send")
}

func TestWrapInvalid_Unwrap(t *testing.T) {
	err := WrapInvalid(ErrUnknownDevice, "Gate", "Ingest", "validate device")

	require.True(t, stderrors.Is(err, ErrUnknownDevice))
	assert.True(t, IsInvalid(err))
	assert.Equal(t, ErrorInvalid, Classify(err))
}

func TestWrapFatal(t *testing.T) {
	err := WrapFatal(ErrMissingConfig, "Store", "Open", "resolve dsn")

	assert.True(t, IsFatal(err))
	assert.Equal(t, ErrorFatal, Classify(err))
}

func TestWrap_NilPassthrough(t *testing.T) {
	assert.NoError(t, Wrap(nil, "c", "m", "a"))
	assert.NoError(t, WrapTransient(nil, "c", "m", "a"))
	assert.NoError(t, WrapInvalid(nil, "c", "m", "a"))
	assert.NoError(t, WrapFatal(nil, "c", "m", "a"))
}

func TestSentinelClassification(t *testing.T) {
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.True(t, IsTransient(ErrStorageUnavailable))
	assert.True(t, IsInvalid(ErrInactiveDevice))
	assert.True(t, IsFatal(ErrInvalidConfig))

	// Unknown errors default to transient so callers may retry.
	assert.Equal(t, ErrorTransient, Classify(fmt.Errorf("something odd")))
}

func TestErrorClass_String(t *testing.T) {
	assert.Equal(t, "transient", ErrorTransient.String())
	assert.Equal(t, "invalid", ErrorInvalid.String())
	assert.Equal(t, "fatal", ErrorFatal.String())
}

package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClassString(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected string
	}{
		{ErrorTransient, "transient"},
		{ErrorInvalid, "invalid"},
		{ErrorFatal, "fatal"},
		{ErrorClass(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.class.String())
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection timeout", ErrConnectionTimeout, true},
		{"connection lost", ErrConnectionLost, true},
		{"storage unavailable", ErrStorageUnavailable, true},
		{"context deadline", context.DeadlineExceeded, true},
		{"wrapped transient", WrapTransient(errors.New("boom"), "Test", "Op", "act"), true},
		{"wrapped invalid", WrapInvalid(errors.New("boom"), "Test", "Op", "act"), false},
		{"timeout pattern in message", errors.New("dial tcp: i/o timeout"), true},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsTransient(tt.err))
		})
	}
}

func TestIsFatal(t *testing.T) {
	assert.False(t, IsFatal(nil))
	assert.True(t, IsFatal(ErrMissingConfig))
	assert.True(t, IsFatal(ErrContextNotFound))
	assert.True(t, IsFatal(WrapFatal(errors.New("boom"), "Test", "Op", "act")))
	assert.False(t, IsFatal(errors.New("boom")))
}

func TestIsInvalid(t *testing.T) {
	assert.False(t, IsInvalid(nil))
	assert.True(t, IsInvalid(ErrParsingFailed))
	assert.True(t, IsInvalid(WrapInvalid(errors.New("boom"), "Test", "Op", "act")))
	assert.False(t, IsInvalid(ErrConnectionLost))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ErrorFatal, Classify(ErrInvalidConfig))
	assert.Equal(t, ErrorInvalid, Classify(ErrInvalidData))
	assert.Equal(t, ErrorTransient, Classify(errors.New("something else")))
}

func TestWrapFormat(t *testing.T) {
	base := errors.New("boom")
	err := Wrap(base, "Reconciler", "Apply", "resolve device")
	require.Error(t, err)
	assert.Equal(t, "Reconciler.Apply: resolve device failed: boom", err.Error())
	assert.True(t, errors.Is(err, base))
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "C", "M", "a"))
	assert.NoError(t, WrapTransient(nil, "C", "M", "a"))
	assert.NoError(t, WrapInvalid(nil, "C", "M", "a"))
	assert.NoError(t, WrapFatal(nil, "C", "M", "a"))
}

func TestClassificationPreservedThroughChain(t *testing.T) {
	inner := WrapInvalid(ErrParsingFailed, "Normalizer", "Normalize", "decode payload")
	outer := fmt.Errorf("processing event: %w", inner)

	assert.True(t, IsInvalid(outer))

	var ce *ClassifiedError
	require.True(t, errors.As(outer, &ce))
	assert.Equal(t, "Normalizer", ce.Component)
	assert.Equal(t, ErrorInvalid, ce.Class)
}

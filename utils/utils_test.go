package utils

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode(t *testing.T) {
	code, err := GenerateCode(4)
	require.NoError(t, err)

	assert.Len(t, code, 8)
	assert.Equal(t, strings.ToUpper(code), code)

	other, err := GenerateCode(4)
	require.NoError(t, err)
	assert.NotEqual(t, code, other)
}

func TestCircuitBreaker_PassesThroughWhileClosed(t *testing.T) {
	cb := NewCircuitBreaker("test")

	err := cb.Execute(context.Background(), func() error { return nil })
	assert.NoError(t, err)

	wantErr := errors.New("provider down")
	err = cb.Execute(context.Background(), func() error { return wantErr })
	assert.ErrorIs(t, err, wantErr)
}

func TestCircuitBreaker_TripsAfterRepeatedFailures(t *testing.T) {
	cb := NewCircuitBreaker("test")

	failing := func() error { return errors.New("provider down") }
	for i := 0; i < 10; i++ {
		cb.Execute(context.Background(), failing)
	}

	calls := 0
	err := cb.Execute(context.Background(), func() error {
		calls++
		return nil
	})

	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 0, calls)
}

func TestCircuitBreaker_CancelledContext(t *testing.T) {
	cb := NewCircuitBreaker("test")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := cb.Execute(ctx, func() error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

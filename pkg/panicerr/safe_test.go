package panicerr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeReturnsError(t *testing.T) {
	wantErr := errors.New("boom")
	err := Safe(func() error { return wantErr })()
	assert.Equal(t, wantErr, err)
}

func TestSafeCatchesPanic(t *testing.T) {
	err := Safe(func() error { panic("unexpected") })()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected")
}

func TestSafeContextCatchesPanic(t *testing.T) {
	err := SafeContext(func(ctx context.Context) error { panic("kaboom") })(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestSafeContextNilOnSuccess(t *testing.T) {
	err := SafeContext(func(ctx context.Context) error { return nil })(context.Background())
	assert.NoError(t, err)
}

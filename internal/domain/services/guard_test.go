package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReentrancyGuard(t *testing.T) {
	g := NewReentrancyGuard()

	require.NoError(t, g.Lock("zap"))
	assert.True(t, g.Held("zap"))
	assert.ErrorIs(t, g.Lock("zap"), ErrReentrancy)

	// other keys are independent
	require.NoError(t, g.Lock("other"))

	g.Unlock("zap")
	assert.False(t, g.Held("zap"))
	require.NoError(t, g.Lock("zap"))
}

func TestReentrancyGuardWith(t *testing.T) {
	g := NewReentrancyGuard()

	err := g.With("zap", func() error {
		return g.With("zap", func() error { return nil })
	})
	assert.ErrorIs(t, err, ErrReentrancy)
	assert.False(t, g.Held("zap"))

	boom := errors.New("boom")
	assert.ErrorIs(t, g.With("zap", func() error { return boom }), boom)
	assert.False(t, g.Held("zap"))
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrInvalidInputToken, "invalid_input_token"},
		{&PathError{Leg: 1, Err: ErrPathDestinationMismatch}, "path_destination_mismatch"},
		{fmt.Errorf("wrapped: %w", ErrReentrancy), "reentrancy"},
		{&ExternalCallError{Op: "swap", Err: errors.New("reverted")}, "external_call_failure"},
		{errors.New("other"), "internal"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorCode(tt.err))
	}
}

func TestExternalKeepsReentrancy(t *testing.T) {
	reentered := fmt.Errorf("%w: nested", ErrReentrancy)
	assert.Same(t, reentered, external("transfer", common.Address{}, reentered))

	err := external("transfer", tokenA, errors.New("reverted"))
	assert.ErrorIs(t, err, ErrExternalCall)
	assert.NoError(t, external("transfer", tokenA, nil))
}

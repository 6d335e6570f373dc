package dex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingChain struct {
	begun int
}

func (c *countingChain) Begin(context.Context) (Tx, error) {
	c.begun++
	return nil, nil
}

type nopTx struct {
	Tx
}

func TestBeginJoinsContextTx(t *testing.T) {
	chain := &countingChain{}
	outer := nopTx{}

	ctx := WithTx(context.Background(), outer)
	joinedCtx, tx, owned, err := Begin(ctx, chain)
	require.NoError(t, err)
	assert.False(t, owned)
	assert.Equal(t, outer, tx)
	assert.Equal(t, ctx, joinedCtx)
	assert.Zero(t, chain.begun)
}

func TestBeginRespectsCancellation(t *testing.T) {
	chain := &countingChain{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, _, err := Begin(ctx, chain)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, chain.begun)
}

func TestTxFromContext(t *testing.T) {
	_, ok := TxFromContext(context.Background())
	assert.False(t, ok)

	_, ok = TxFromContext(WithTx(context.Background(), nopTx{}))
	assert.True(t, ok)
}

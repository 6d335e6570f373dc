package services

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bimakw/lp-zapper/internal/domain/entities"
)

func TestNewZapServiceRequiresRouter(t *testing.T) {
	_, err := NewZapService(Core{Self: engine}, nil)
	assert.ErrorIs(t, err, ErrInvalidRouter)

	_, err = NewZapService(Core{DefaultRouter: router}, nil)
	assert.Error(t, err)

	svc, err := NewZapService(Core{Self: engine, DefaultRouter: router}, nil)
	require.NoError(t, err)
	assert.Equal(t, router, svc.DefaultRouter())
	assert.Equal(t, engine, svc.Self())
}

func TestZapInWithPath(t *testing.T) {
	e := newTestEnv(t, feeRate(1))
	amount := ether(100)
	e.approve(tokenIn, amount)

	res, err := e.svc.ZapInWithPath(e.ctx, e.request(e.pairAB, amount,
		route(tokenIn, tokenA), route(tokenIn, tokenB)))
	require.NoError(t, err)

	assert.NotEmpty(t, res.ID)
	assert.Equal(t, entities.ZapTwoPath, res.Variant)
	assertAmount(t, ether(1), res.Fee)
	assertAmount(t, ether(99), res.NetAmount)
	assert.Positive(t, res.Liquidity.Sign())

	assertAmount(t, res.Liquidity, e.balance(e.pairAB, caller))
	assertAmount(t, ether(1), e.balance(tokenIn, treasury))
	assertAmount(t, ether(900), e.balance(tokenIn, caller))

	// refunds land with the caller
	assertAmount(t, res.Refund0, new(big.Int).Sub(e.balance(tokenA, caller), ether(1000)))
	assertAmount(t, res.Refund1, e.balance(tokenB, caller))

	e.requireEngineEmpty(e.pairAB, tokenIn, tokenA, tokenB)
	assert.Equal(t, 1, e.published.count())
}

func TestZapPathOrderIsSymmetric(t *testing.T) {
	tests := []struct {
		name  string
		paths []entities.Path
	}{
		{"token0 first", []entities.Path{route(tokenIn, tokenA), route(tokenIn, tokenB)}},
		{"token1 first", []entities.Path{route(tokenIn, tokenB), route(tokenIn, tokenA)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t, feeRate(1))
			e.approve(tokenIn, ether(10))

			res, err := e.svc.ZapInWithPath(e.ctx, e.request(e.pairAB, ether(10), tt.paths...))
			require.NoError(t, err)
			assert.Positive(t, res.Liquidity.Sign())
			assert.Equal(t, tokenA, res.Swaps[0].TokenOut)
			assert.Equal(t, tokenB, res.Swaps[1].TokenOut)
			e.requireEngineEmpty(e.pairAB, tokenIn, tokenA, tokenB)
		})
	}
}

func TestZapRejectsInvalidRequests(t *testing.T) {
	zero := common.Address{}
	tests := []struct {
		name    string
		mutate  func(e *testEnv, req *entities.ZapRequest)
		wantErr error
		wantLeg int
	}{
		{"zero token", func(_ *testEnv, r *entities.ZapRequest) { r.TokenIn = zero }, ErrInvalidInputToken, -1},
		{"zero pair", func(_ *testEnv, r *entities.ZapRequest) { r.Pair = zero }, ErrInvalidPairAddress, -1},
		{"zero router", func(_ *testEnv, r *entities.ZapRequest) { r.Router = zero }, ErrInvalidRouterAddress, -1},
		{"zero amount", func(_ *testEnv, r *entities.ZapRequest) { r.AmountIn = big.NewInt(0) }, ErrInvalidInputAmount, -1},
		{"first path too short", func(_ *testEnv, r *entities.ZapRequest) { r.Paths[0] = route(tokenIn) }, ErrPathTooShort, 0},
		{"second path too short", func(_ *testEnv, r *entities.ZapRequest) { r.Paths[1] = route(tokenIn) }, ErrPathTooShort, 1},
		{"incompatible factory", func(_ *testEnv, r *entities.ZapRequest) { r.Router = otherRouter }, ErrIncompatibleFactory, -1},
		{"origin mismatch", func(_ *testEnv, r *entities.ZapRequest) { r.Paths[1] = route(tokenA, tokenB) }, ErrPathOriginMismatch, 1},
		{"duplicate destination", func(_ *testEnv, r *entities.ZapRequest) { r.Paths[1] = route(tokenIn, tokenA) }, ErrPathDestinationMismatch, 1},
		{"token0 not covered", func(e *testEnv, r *entities.ZapRequest) { r.Pair = e.pairInA }, ErrPathDestinationMismatch, 0},
		{"unknown router", func(_ *testEnv, r *entities.ZapRequest) {
			r.Router = common.HexToAddress("0x00000000000000000000000000000000000000e9")
		}, ErrExternalCall, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t, feeRate(1))
			e.approve(tokenIn, ether(10))

			req := e.request(e.pairAB, ether(10), route(tokenIn, tokenA), route(tokenIn, tokenB))
			tt.mutate(e, req)

			_, err := e.svc.ZapInWithPath(e.ctx, req)
			require.ErrorIs(t, err, tt.wantErr)
			if tt.wantLeg >= 0 {
				var pe *PathError
				require.ErrorAs(t, err, &pe)
				assert.Equal(t, tt.wantLeg, pe.Leg)
			}

			// nothing moved
			assertAmount(t, ether(1000), e.balance(tokenIn, caller))
			assert.Zero(t, e.balance(tokenIn, treasury).Sign())
			assert.Zero(t, e.balance(e.pairAB, caller).Sign())
			assert.Zero(t, e.published.count())
		})
	}
}

func TestZapInWithSinglePath(t *testing.T) {
	e := newTestEnv(t, feeRate(1))
	amount := ether(50)
	e.approve(tokenA, amount)

	req := e.request(e.pairAB, amount, route(tokenA, tokenB))
	req.TokenIn = tokenA

	res, err := e.svc.ZapInWithSinglePath(e.ctx, req)
	require.NoError(t, err)

	assert.Equal(t, entities.ZapSinglePath, res.Variant)
	assert.False(t, res.Swaps[0].Swapped)
	assert.True(t, res.Swaps[1].Swapped)
	assert.Positive(t, res.Liquidity.Sign())
	assertAmount(t, res.Liquidity, e.balance(e.pairAB, caller))
	assertAmount(t, new(big.Int).Div(ether(1), big.NewInt(2)), e.balance(tokenA, treasury))
	e.requireEngineEmpty(e.pairAB, tokenA, tokenB)
}

func TestZapInWithSinglePathNeedsConstituent(t *testing.T) {
	e := newTestEnv(t, feeRate(1))
	e.approve(tokenIn, ether(10))

	_, err := e.svc.ZapInWithSinglePath(e.ctx, e.request(e.pairAB, ether(10), route(tokenIn, tokenA)))
	require.ErrorIs(t, err, ErrPathDestinationMismatch)

	var pe *PathError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 1, pe.Leg)
}

func TestZapOddUnitGoesToFirstPath(t *testing.T) {
	e := newTestEnv(t, nil)
	amount := big.NewInt(1_000_001)
	e.approve(tokenIn, amount)

	res, err := e.svc.ZapInWithPath(e.ctx, e.request(e.pairAB, amount,
		route(tokenIn, tokenB), route(tokenIn, tokenA)))
	require.NoError(t, err)

	assert.Zero(t, res.Fee.Sign())
	// Paths[0] ends at token1 (B)
	assertAmount(t, big.NewInt(500_001), res.Swaps[1].AmountIn)
	assertAmount(t, big.NewInt(500_000), res.Swaps[0].AmountIn)
	assert.Zero(t, e.balance(tokenIn, treasury).Sign())
}

func TestZapFeeConsumingEverythingFails(t *testing.T) {
	e := newTestEnv(t, feeRate(entities.FeeScale))
	e.approve(tokenIn, ether(10))

	_, err := e.svc.ZapInWithPath(e.ctx, e.request(e.pairAB, ether(10),
		route(tokenIn, tokenA), route(tokenIn, tokenB)))
	require.ErrorIs(t, err, ErrInvalidInputAmount)
	assertAmount(t, ether(1000), e.balance(tokenIn, caller))
}

func TestZapSlippage(t *testing.T) {
	t.Run("leg minimum", func(t *testing.T) {
		e := newTestEnv(t, feeRate(1))
		e.approve(tokenIn, ether(10))

		req := e.request(e.pairAB, ether(10), route(tokenIn, tokenA), route(tokenIn, tokenB))
		req.MinAmountsOut = []*big.Int{ether(10), nil}

		_, err := e.svc.ZapInWithPath(e.ctx, req)
		require.ErrorIs(t, err, ErrExternalCall)
		assert.ErrorContains(t, err, "INSUFFICIENT_OUTPUT_AMOUNT")
		assertAmount(t, ether(1000), e.balance(tokenIn, caller))
	})

	t.Run("minimum liquidity", func(t *testing.T) {
		e := newTestEnv(t, feeRate(1))
		e.approve(tokenIn, ether(10))

		req := e.request(e.pairAB, ether(10), route(tokenIn, tokenA), route(tokenIn, tokenB))
		req.MinLiquidity = ether(1_000_000)

		_, err := e.svc.ZapInWithPath(e.ctx, req)
		require.ErrorIs(t, err, ErrSlippageExceeded)
		assertAmount(t, ether(1000), e.balance(tokenIn, caller))
		assert.Zero(t, e.balance(e.pairAB, caller).Sign())
	})
}

func TestZapWithoutAllowanceFails(t *testing.T) {
	e := newTestEnv(t, feeRate(1))

	_, err := e.svc.ZapInWithPath(e.ctx, e.request(e.pairAB, ether(10),
		route(tokenIn, tokenA), route(tokenIn, tokenB)))
	require.ErrorIs(t, err, ErrExternalCall)

	var ce *ExternalCallError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "transferFrom", ce.Op)
	assert.Equal(t, tokenIn, ce.Contract)
}

func TestZapReentrancyIsRejected(t *testing.T) {
	e := newTestEnv(t, feeRate(1))
	e.approve(tokenIn, ether(20))

	var nestedErr error
	e.chain.SetTransferHook(tokenB, func(ctx context.Context, token, from, to common.Address, amount *big.Int) error {
		if to != engine {
			return nil
		}
		_, nestedErr = e.svc.ZapInWithPath(ctx, e.request(e.pairAB, ether(10),
			route(tokenIn, tokenA), route(tokenIn, tokenB)))
		return nestedErr
	})

	_, err := e.svc.ZapInWithPath(e.ctx, e.request(e.pairAB, ether(10),
		route(tokenIn, tokenA), route(tokenIn, tokenB)))
	require.ErrorIs(t, err, ErrReentrancy)
	require.ErrorIs(t, nestedErr, ErrReentrancy)

	// the whole outer zap was rolled back
	assertAmount(t, ether(1000), e.balance(tokenIn, caller))
	assert.Zero(t, e.balance(tokenIn, treasury).Sign())
	assert.Zero(t, e.published.count())

	// the guard is released afterwards
	e.chain.SetTransferHook(tokenB, nil)
	_, err = e.svc.ZapInWithPath(e.ctx, e.request(e.pairAB, ether(10),
		route(tokenIn, tokenA), route(tokenIn, tokenB)))
	require.NoError(t, err)
}

func TestZapHookFailureRollsBack(t *testing.T) {
	e := newTestEnv(t, feeRate(1))
	e.approve(tokenIn, ether(10))

	boom := errors.New("token paused")
	e.chain.SetTransferHook(tokenA, func(context.Context, common.Address, common.Address, common.Address, *big.Int) error {
		return boom
	})

	_, err := e.svc.ZapInWithPath(e.ctx, e.request(e.pairAB, ether(10),
		route(tokenIn, tokenA), route(tokenIn, tokenB)))
	require.ErrorIs(t, err, ErrExternalCall)
	require.ErrorIs(t, err, boom)
	assertAmount(t, ether(1000), e.balance(tokenIn, caller))
}

func TestConcurrentZapsAreSerialized(t *testing.T) {
	e := newTestEnv(t, feeRate(1))
	e.approve(tokenIn, ether(40))

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.svc.ZapInWithPath(context.Background(), e.request(e.pairAB, ether(10),
				route(tokenIn, tokenA), route(tokenIn, tokenB)))
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assertAmount(t, ether(960), e.balance(tokenIn, caller))
	assert.Equal(t, 4, e.published.count())
	e.requireEngineEmpty(e.pairAB, tokenIn, tokenA, tokenB)
}

func TestPreview(t *testing.T) {
	e := newTestEnv(t, feeRate(1))

	req := e.request(e.pairAB, ether(10), route(tokenIn, tokenB), route(tokenIn, tokenA))
	preview, err := e.svc.Preview(e.ctx, req, entities.ZapTwoPath, 100)
	require.NoError(t, err)

	assertAmount(t, big.NewInt(1e17), preview.Fee)
	assert.Equal(t, "TKA", preview.Pair.Token0.Symbol)
	assert.Equal(t, "IN", preview.TokenIn.Symbol)
	require.Len(t, preview.MinAmountsOut, 2)

	// side 1 (token B) is Paths[0]
	leg := preview.Legs[1]
	assert.Equal(t, 0, leg.PathIndex)
	amounts, err := e.chain.GetAmountsOut(e.ctx, router, leg.AmountIn, leg.Path)
	require.NoError(t, err)
	assertAmount(t, amounts[1], leg.AmountOut)
	assertAmount(t, applySlippage(leg.AmountOut, 100), preview.MinAmountsOut[0])

	// the suggested floors are met by the real zap
	e.approve(tokenIn, ether(10))
	req.MinAmountsOut = preview.MinAmountsOut
	res, err := e.svc.ZapInWithPath(e.ctx, req)
	require.NoError(t, err)
	assertAmount(t, leg.AmountOut, res.Swaps[1].AmountOut)
}

func TestPreviewRejectsBadRequests(t *testing.T) {
	e := newTestEnv(t, feeRate(1))

	_, err := e.svc.Preview(e.ctx, e.request(e.pairAB, ether(10), route(tokenIn)), entities.ZapSinglePath, 0)
	assert.ErrorIs(t, err, ErrPathTooShort)

	_, err = e.svc.Preview(e.ctx, e.request(e.pairAB, ether(10),
		route(tokenIn, tokenA), route(tokenIn, tokenB)), entities.ZapTwoPath, 20000)
	assert.Error(t, err)
}

func TestQuoteFeeAmount(t *testing.T) {
	e := newTestEnv(t, feeRate(1))
	fee, err := e.svc.QuoteFeeAmount(e.ctx, big.NewInt(100))
	require.NoError(t, err)
	assertAmount(t, big.NewInt(1), fee)

	_, err = e.fees.UpdateFeeRate(e.ctx, owner, 2)
	require.NoError(t, err)
	fee, err = e.svc.QuoteFeeAmount(e.ctx, big.NewInt(100))
	require.NoError(t, err)
	assertAmount(t, big.NewInt(2), fee)

	free := newTestEnv(t, nil)
	fee, err = free.svc.QuoteFeeAmount(free.ctx, big.NewInt(100))
	require.NoError(t, err)
	assert.Zero(t, fee.Sign())
}

func TestSplitAmount(t *testing.T) {
	tests := []struct {
		in, first, second int64
	}{
		{100, 50, 50},
		{101, 51, 50},
		{1, 1, 0},
	}
	for _, tt := range tests {
		first, second := SplitAmount(big.NewInt(tt.in))
		assertAmount(t, big.NewInt(tt.first), first)
		assertAmount(t, big.NewInt(tt.second), second)
	}
}

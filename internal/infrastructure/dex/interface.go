package dex

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Reader exposes the read-only calls a zap needs from pairs, routers and tokens
type Reader interface {
	// Factory returns factory() of a pair or router
	Factory(ctx context.Context, contract common.Address) (common.Address, error)

	Token0(ctx context.Context, pair common.Address) (common.Address, error)

	Token1(ctx context.Context, pair common.Address) (common.Address, error)

	BalanceOf(ctx context.Context, token, account common.Address) (*big.Int, error)

	// GetAmountsOut mirrors the router's getAmountsOut(amountIn, path)
	GetAmountsOut(ctx context.Context, router common.Address, amountIn *big.Int, path []common.Address) ([]*big.Int, error)
}

// Tx is one atomic unit of execution. Every state-changing call is made as
// the account passed in `from`; nothing is visible outside the Tx until Commit.
type Tx interface {
	Reader

	Transfer(ctx context.Context, token, from, to common.Address, amount *big.Int) error

	// TransferFrom moves tokens from owner to recipient using spender's allowance
	TransferFrom(ctx context.Context, token, spender, owner, recipient common.Address, amount *big.Int) error

	Approve(ctx context.Context, token, owner, spender common.Address, amount *big.Int) error

	SwapExactTokensForTokens(ctx context.Context, router, from common.Address, params SwapParams) ([]*big.Int, error)

	AddLiquidity(ctx context.Context, router, from common.Address, params AddLiquidityParams) (*AddLiquidityResult, error)

	Commit() error

	Rollback()
}

// Chain opens transactions
type Chain interface {
	Begin(ctx context.Context) (Tx, error)
}

// SwapParams are the arguments of swapExactTokensForTokens
type SwapParams struct {
	AmountIn     *big.Int
	AmountOutMin *big.Int
	Path         []common.Address
	To           common.Address
	Deadline     uint64
}

// AddLiquidityParams are the arguments of addLiquidity
type AddLiquidityParams struct {
	TokenA         common.Address
	TokenB         common.Address
	AmountADesired *big.Int
	AmountBDesired *big.Int
	AmountAMin     *big.Int
	AmountBMin     *big.Int
	To             common.Address
	Deadline       uint64
}

// AddLiquidityResult is what addLiquidity returns
type AddLiquidityResult struct {
	AmountA   *big.Int
	AmountB   *big.Int
	Liquidity *big.Int
}

type txKey struct{}

// WithTx attaches an open transaction to the context so nested calls join it
func WithTx(ctx context.Context, tx Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext returns the transaction the context is executing in, if any
func TxFromContext(ctx context.Context) (Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(Tx)
	return tx, ok && tx != nil
}

// Begin joins the transaction carried by ctx or opens a new one.
// owned is false for a joined transaction; the outer caller settles it.
func Begin(ctx context.Context, chain Chain) (context.Context, Tx, bool, error) {
	if tx, ok := TxFromContext(ctx); ok {
		return ctx, tx, false, nil
	}
	if err := ctx.Err(); err != nil {
		return ctx, nil, false, err
	}
	tx, err := chain.Begin(ctx)
	if err != nil {
		return ctx, nil, false, err
	}
	return WithTx(ctx, tx), tx, true, nil
}

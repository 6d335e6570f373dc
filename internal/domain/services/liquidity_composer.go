package services

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bimakw/lp-zapper/internal/domain/entities"
	"github.com/bimakw/lp-zapper/internal/infrastructure/dex"
)

// Deposit is what the engine holds after both legs, ready for addLiquidity
type Deposit struct {
	Self      common.Address
	Recipient common.Address
	Router    common.Address
	Pair      entities.Pair
	Amount0   *big.Int
	Amount1   *big.Int
	Deadline  uint64
}

// Composition is the outcome of a deposit
type Composition struct {
	Amount0   *big.Int
	Amount1   *big.Int
	Liquidity *big.Int
	Refund0   *big.Int
	Refund1   *big.Int
}

// LiquidityComposer adds liquidity and returns whatever the router did not use
type LiquidityComposer struct{}

func NewLiquidityComposer() *LiquidityComposer {
	return &LiquidityComposer{}
}

// Compose deposits both amounts with LP minted straight to the recipient,
// clears the router allowances and refunds the unused remainder.
func (c *LiquidityComposer) Compose(ctx context.Context, tx dex.Tx, d Deposit) (*Composition, error) {
	token0 := d.Pair.Token0.Address
	token1 := d.Pair.Token1.Address

	if err := tx.Approve(ctx, token0, d.Self, d.Router, d.Amount0); err != nil {
		return nil, external("approve", token0, err)
	}
	if err := tx.Approve(ctx, token1, d.Self, d.Router, d.Amount1); err != nil {
		return nil, external("approve", token1, err)
	}

	added, err := tx.AddLiquidity(ctx, d.Router, d.Self, dex.AddLiquidityParams{
		TokenA:         token0,
		TokenB:         token1,
		AmountADesired: d.Amount0,
		AmountBDesired: d.Amount1,
		AmountAMin:     big.NewInt(0),
		AmountBMin:     big.NewInt(0),
		To:             d.Recipient,
		Deadline:       d.Deadline,
	})
	if err != nil {
		return nil, external("addLiquidity", d.Router, err)
	}

	zero := big.NewInt(0)
	if err := tx.Approve(ctx, token0, d.Self, d.Router, zero); err != nil {
		return nil, external("approve", token0, err)
	}
	if err := tx.Approve(ctx, token1, d.Self, d.Router, zero); err != nil {
		return nil, external("approve", token1, err)
	}

	out := &Composition{
		Amount0:   added.AmountA,
		Amount1:   added.AmountB,
		Liquidity: added.Liquidity,
		Refund0:   new(big.Int).Sub(d.Amount0, added.AmountA),
		Refund1:   new(big.Int).Sub(d.Amount1, added.AmountB),
	}

	if out.Refund0.Sign() > 0 {
		if err := tx.Transfer(ctx, token0, d.Self, d.Recipient, out.Refund0); err != nil {
			return nil, external("transfer", token0, err)
		}
	}
	if out.Refund1.Sign() > 0 {
		if err := tx.Transfer(ctx, token1, d.Self, d.Recipient, out.Refund1); err != nil {
			return nil, external("transfer", token1, err)
		}
	}
	return out, nil
}

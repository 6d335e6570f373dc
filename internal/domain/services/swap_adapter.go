package services

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bimakw/lp-zapper/internal/domain/entities"
	"github.com/bimakw/lp-zapper/internal/infrastructure/dex"
)

// SplitAmount halves amount; the odd unit goes to the first half
func SplitAmount(amount *big.Int) (*big.Int, *big.Int) {
	second := new(big.Int).Rsh(amount, 1)
	first := new(big.Int).Sub(amount, second)
	return first, second
}

// SwapAdapter executes one leg of a zap through the router
type SwapAdapter struct{}

func NewSwapAdapter() *SwapAdapter {
	return &SwapAdapter{}
}

// SwapLeg is one leg to execute on behalf of the engine (self)
type SwapLeg struct {
	Self     common.Address
	Router   common.Address
	Leg      Leg
	AmountIn *big.Int
	MinOut   *big.Int
	Deadline uint64
}

// Execute swaps along the leg's path and returns what the router delivered.
// A direct leg passes the amount through untouched.
func (a *SwapAdapter) Execute(ctx context.Context, tx dex.Tx, s SwapLeg) (entities.SwapOutcome, error) {
	path := s.Leg.Path
	outcome := entities.SwapOutcome{
		Path:     path,
		TokenOut: path.Destination(),
		AmountIn: new(big.Int).Set(s.AmountIn),
	}

	if s.Leg.Direct() {
		outcome.AmountOut = new(big.Int).Set(s.AmountIn)
		return outcome, nil
	}

	minOut := s.MinOut
	if minOut == nil {
		minOut = big.NewInt(0)
	}

	tokenIn := path.Origin()
	if err := tx.Approve(ctx, tokenIn, s.Self, s.Router, s.AmountIn); err != nil {
		return outcome, external("approve", tokenIn, err)
	}

	amounts, err := tx.SwapExactTokensForTokens(ctx, s.Router, s.Self, dex.SwapParams{
		AmountIn:     s.AmountIn,
		AmountOutMin: minOut,
		Path:         path,
		To:           s.Self,
		Deadline:     s.Deadline,
	})
	if err != nil {
		return outcome, external("swapExactTokensForTokens", s.Router, err)
	}
	if len(amounts) != len(path) {
		return outcome, external("swapExactTokensForTokens", s.Router,
			fmt.Errorf("router returned %d amounts for a %d token path", len(amounts), len(path)))
	}

	out := amounts[len(amounts)-1]
	if out.Cmp(minOut) < 0 {
		return outcome, fmt.Errorf("%w: leg %d got %s, want at least %s", ErrSlippageExceeded, s.Leg.PathIndex, out, minOut)
	}

	outcome.AmountOut = new(big.Int).Set(out)
	outcome.Swapped = true
	return outcome, nil
}

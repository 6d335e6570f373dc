package entities

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ZapVariant distinguishes the two entry points
type ZapVariant string

const (
	ZapTwoPath    ZapVariant = "two_path"
	ZapSinglePath ZapVariant = "single_path"
)

// ZapRequest is one caller-submitted zap instruction
type ZapRequest struct {
	Caller   common.Address `json:"caller"`
	TokenIn  common.Address `json:"tokenIn"`
	Pair     common.Address `json:"pair"`
	Router   common.Address `json:"router"`
	AmountIn *big.Int       `json:"amountIn"`
	Paths    []Path         `json:"paths"`

	// MinAmountsOut[i] is the minimum router output accepted for Paths[i]
	MinAmountsOut []*big.Int `json:"minAmountsOut,omitempty"`
	MinLiquidity  *big.Int   `json:"minLiquidity,omitempty"`

	// Deadline is a unix timestamp; zero lets the engine pick one
	Deadline uint64 `json:"deadline,omitempty"`
}

// MinAmountOut returns the slippage floor for path i, zero when unset
func (r *ZapRequest) MinAmountOut(i int) *big.Int {
	if i < len(r.MinAmountsOut) && r.MinAmountsOut[i] != nil {
		return r.MinAmountsOut[i]
	}
	return big.NewInt(0)
}

// SwapOutcome is the transient result of one swap leg
type SwapOutcome struct {
	Path      Path           `json:"path"`
	TokenOut  common.Address `json:"tokenOut"`
	AmountIn  *big.Int       `json:"amountIn"`
	AmountOut *big.Int       `json:"amountOut"`
	Swapped   bool           `json:"swapped"`
}

// ZapResult is returned to the caller of a completed zap
type ZapResult struct {
	ID        string         `json:"id"`
	Variant   ZapVariant     `json:"variant"`
	Caller    common.Address `json:"caller"`
	TokenIn   common.Address `json:"tokenIn"`
	Pair      common.Address `json:"pair"`
	AmountIn  *big.Int       `json:"amountIn"`
	Fee       *big.Int       `json:"fee"`
	NetAmount *big.Int       `json:"netAmount"`
	Liquidity *big.Int       `json:"liquidity"`
	Amount0   *big.Int       `json:"amount0"`
	Amount1   *big.Int       `json:"amount1"`
	Refund0   *big.Int       `json:"refund0"`
	Refund1   *big.Int       `json:"refund1"`

	// Swaps is indexed by pair side: Swaps[0] produced token0, Swaps[1] token1
	Swaps [2]SwapOutcome `json:"swaps"`
}

// ZapCompleted is published after a zap commits
type ZapCompleted struct {
	ID        string         `json:"id"`
	Caller    common.Address `json:"caller"`
	TokenIn   common.Address `json:"tokenIn"`
	Pair      common.Address `json:"pair"`
	AmountIn  *big.Int       `json:"amountIn"`
	Fee       *big.Int       `json:"fee"`
	Liquidity *big.Int       `json:"liquidity"`
	Timestamp time.Time      `json:"timestamp"`
}

// Event builds the completion event for a result
func (r *ZapResult) Event(at time.Time) ZapCompleted {
	return ZapCompleted{
		ID:        r.ID,
		Caller:    r.Caller,
		TokenIn:   r.TokenIn,
		Pair:      r.Pair,
		AmountIn:  r.AmountIn,
		Fee:       r.Fee,
		Liquidity: r.Liquidity,
		Timestamp: at,
	}
}

// ZapPreview is a read-only estimate of a zap
type ZapPreview struct {
	Variant       ZapVariant    `json:"variant"`
	TokenIn       Token         `json:"tokenIn"`
	Pair          Pair          `json:"pair"`
	AmountIn      *big.Int      `json:"amountIn"`
	Fee           *big.Int      `json:"fee"`
	NetAmount     *big.Int      `json:"netAmount"`
	Legs          [2]LegPreview `json:"legs"`
	SlippageBps   uint64        `json:"slippageBps"`
	MinAmountsOut []*big.Int    `json:"minAmountsOut"`
}

// LegPreview estimates one leg; PathIndex refers to ZapRequest.Paths, -1 for a direct leg
type LegPreview struct {
	PathIndex    int            `json:"pathIndex"`
	Path         Path           `json:"path"`
	TokenOut     common.Address `json:"tokenOut"`
	AmountIn     *big.Int       `json:"amountIn"`
	AmountOut    *big.Int       `json:"amountOut"`
	MinAmountOut *big.Int       `json:"minAmountOut"`
}

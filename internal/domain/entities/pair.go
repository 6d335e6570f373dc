package entities

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Pair fees are expressed in basis points of this scale
const bpsScale = 10000

// MinimumLiquidity is the amount of LP tokens locked forever on the first mint (Uniswap V2 convention)
var MinimumLiquidity = big.NewInt(1000)

// Pair represents a Uniswap V2 style liquidity pair
type Pair struct {
	Address     common.Address `json:"address"`
	Factory     common.Address `json:"factory"`
	Token0      Token          `json:"token0"`
	Token1      Token          `json:"token1"`
	Reserve0    *big.Int       `json:"reserve0"`
	Reserve1    *big.Int       `json:"reserve1"`
	TotalSupply *big.Int       `json:"totalSupply"`
	Fee         uint64         `json:"fee"` // Fee in basis points (e.g., 30 = 0.3%)
}

// Router represents an AMM router bound to one factory
type Router struct {
	Address common.Address `json:"address"`
	Factory common.Address `json:"factory"`
}

// Covers reports which side of the pair a token sits on
func (p *Pair) Covers(token common.Address) (int, bool) {
	switch token {
	case p.Token0.Address:
		return 0, true
	case p.Token1.Address:
		return 1, true
	}
	return -1, false
}

// Other returns the constituent opposite to token
func (p *Pair) Other(token common.Address) common.Address {
	if token == p.Token0.Address {
		return p.Token1.Address
	}
	return p.Token0.Address
}

// Reserves returns the reserves ordered as (tokenA, tokenB)
func (p *Pair) Reserves(tokenA common.Address) (*big.Int, *big.Int) {
	if tokenA == p.Token0.Address {
		return p.Reserve0, p.Reserve1
	}
	return p.Reserve1, p.Reserve0
}

func (p *Pair) GetAmountOut(amountIn *big.Int, tokenIn common.Address) *big.Int {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return big.NewInt(0)
	}

	reserveIn, reserveOut := p.Reserves(tokenIn)
	if reserveIn == nil || reserveOut == nil || reserveIn.Sign() == 0 || reserveOut.Sign() == 0 {
		return big.NewInt(0)
	}

	// out = in*(10000-fee)*rOut / (rIn*10000 + in*(10000-fee))
	inWithFee := new(big.Int).Mul(amountIn, big.NewInt(bpsScale-int64(p.Fee)))
	num := new(big.Int).Mul(inWithFee, reserveOut)
	den := new(big.Int).Mul(reserveIn, big.NewInt(bpsScale))
	return num.Div(num, den.Add(den, inWithFee))
}

// Quote returns the amount of tokenB equivalent to amountA at the current reserve ratio
func Quote(amountA, reserveA, reserveB *big.Int) *big.Int {
	if amountA == nil || reserveA == nil || reserveB == nil || reserveA.Sign() == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(amountA, reserveB)
	return out.Div(out, reserveA)
}

// LiquidityMinted returns the LP amount minted for a deposit of amount0/amount1.
// The first deposit mints sqrt(amount0*amount1) minus MinimumLiquidity.
func (p *Pair) LiquidityMinted(amount0, amount1 *big.Int) *big.Int {
	if p.TotalSupply == nil || p.TotalSupply.Sign() == 0 {
		product := new(big.Int).Mul(amount0, amount1)
		liquidity := new(big.Int).Sqrt(product)
		liquidity.Sub(liquidity, MinimumLiquidity)
		if liquidity.Sign() < 0 {
			return big.NewInt(0)
		}
		return liquidity
	}

	if p.Reserve0 == nil || p.Reserve1 == nil || p.Reserve0.Sign() == 0 || p.Reserve1.Sign() == 0 {
		return big.NewInt(0)
	}

	l0 := new(big.Int).Mul(amount0, p.TotalSupply)
	l0.Div(l0, p.Reserve0)
	l1 := new(big.Int).Mul(amount1, p.TotalSupply)
	l1.Div(l1, p.Reserve1)
	if l0.Cmp(l1) < 0 {
		return l0
	}
	return l1
}

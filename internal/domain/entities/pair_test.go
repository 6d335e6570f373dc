package entities

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestPairCovers(t *testing.T) {
	tokenA := common.HexToAddress("0x0000000000000000000000000000000000000001")
	tokenB := common.HexToAddress("0x0000000000000000000000000000000000000002")
	stranger := common.HexToAddress("0x0000000000000000000000000000000000000003")

	p := &Pair{Token0: Token{Address: tokenA}, Token1: Token{Address: tokenB}}

	tests := []struct {
		name     string
		token    common.Address
		wantSide int
		wantOK   bool
	}{
		{"token0", tokenA, 0, true},
		{"token1", tokenB, 1, true},
		{"not in pair", stranger, -1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			side, ok := p.Covers(tt.token)
			if side != tt.wantSide || ok != tt.wantOK {
				t.Errorf("Covers() = (%d, %v), want (%d, %v)", side, ok, tt.wantSide, tt.wantOK)
			}
		})
	}

	if got := p.Other(tokenA); got != tokenB {
		t.Errorf("Other(token0) = %s, want %s", got.Hex(), tokenB.Hex())
	}
	if got := p.Other(tokenB); got != tokenA {
		t.Errorf("Other(token1) = %s, want %s", got.Hex(), tokenA.Hex())
	}
}

func units(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

func TestGetAmountOut(t *testing.T) {
	wbnb := common.HexToAddress("0x0000000000000000000000000000000000000001")
	busd := common.HexToAddress("0x0000000000000000000000000000000000000002")

	// Reserve0 is WBNB, Reserve1 is BUSD
	tests := []struct {
		name       string
		reserves   [2]*big.Int
		feeBps     uint64
		amountIn   *big.Int
		tokenIn    common.Address
		wantAmount string
	}{
		{"pancake tier balanced pool", [2]*big.Int{units(10000), units(10000)}, 25, units(1), wbnb, "997400509299197405"},
		{"apeswap tier 1:4 pool", [2]*big.Int{units(10000), units(40000)}, 20, units(1), wbnb, "3991601638156511980"},
		{"reverse direction", [2]*big.Int{units(10000), units(40000)}, 20, units(4), busd, "997900409539127995"},
		{"ten percent of pool", [2]*big.Int{units(1000), units(1000)}, 25, units(100), wbnb, "90702432370993407592"},
		{"dust", [2]*big.Int{big.NewInt(1_000_000), big.NewInt(4_000_000)}, 25, big.NewInt(1), wbnb, "3"},
		{"zero amount", [2]*big.Int{units(1), units(1)}, 25, big.NewInt(0), wbnb, "0"},
		{"nil amount", [2]*big.Int{units(1), units(1)}, 25, nil, wbnb, "0"},
		{"empty reserve in", [2]*big.Int{big.NewInt(0), big.NewInt(1000)}, 25, units(1), wbnb, "0"},
		{"empty reserve out", [2]*big.Int{big.NewInt(1000), big.NewInt(0)}, 25, units(1), wbnb, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Pair{
				Token0:   Token{Address: wbnb},
				Token1:   Token{Address: busd},
				Reserve0: tt.reserves[0],
				Reserve1: tt.reserves[1],
				Fee:      tt.feeBps,
			}
			if got := p.GetAmountOut(tt.amountIn, tt.tokenIn).String(); got != tt.wantAmount {
				t.Errorf("GetAmountOut() = %s, want %s", got, tt.wantAmount)
			}
		})
	}
}

func TestLowerFeeTierPaysMore(t *testing.T) {
	wbnb := common.HexToAddress("0x0000000000000000000000000000000000000001")
	busd := common.HexToAddress("0x0000000000000000000000000000000000000002")
	pool := func(fee uint64) *Pair {
		return &Pair{
			Token0:   Token{Address: wbnb},
			Token1:   Token{Address: busd},
			Reserve0: units(500),
			Reserve1: units(150000),
			Fee:      fee,
		}
	}

	pancake := pool(25).GetAmountOut(units(2), wbnb)
	ape := pool(20).GetAmountOut(units(2), wbnb)
	if ape.Cmp(pancake) <= 0 {
		t.Errorf("20bps pool returned %s, 25bps pool %s", ape, pancake)
	}
}

func TestQuote(t *testing.T) {
	got := Quote(big.NewInt(50), big.NewInt(1000), big.NewInt(2000))
	if got.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("Quote() = %v, want 100", got)
	}
	if Quote(big.NewInt(50), big.NewInt(0), big.NewInt(2000)).Sign() != 0 {
		t.Error("Quote() with zero reserve should be 0")
	}
}

func TestLiquidityMinted(t *testing.T) {
	t.Run("first deposit", func(t *testing.T) {
		p := &Pair{TotalSupply: big.NewInt(0)}
		got := p.LiquidityMinted(big.NewInt(4_000_000), big.NewInt(1_000_000))
		// sqrt(4e12) - 1000
		if got.Cmp(big.NewInt(1_999_000)) != 0 {
			t.Errorf("LiquidityMinted() = %v, want 1999000", got)
		}
	})

	t.Run("below minimum liquidity", func(t *testing.T) {
		p := &Pair{}
		if got := p.LiquidityMinted(big.NewInt(10), big.NewInt(10)); got.Sign() != 0 {
			t.Errorf("LiquidityMinted() = %v, want 0", got)
		}
	})

	t.Run("proportional deposit takes the smaller share", func(t *testing.T) {
		p := &Pair{
			Reserve0:    big.NewInt(1000),
			Reserve1:    big.NewInt(2000),
			TotalSupply: big.NewInt(500),
		}
		got := p.LiquidityMinted(big.NewInt(100), big.NewInt(100))
		// min(100*500/1000, 100*500/2000) = min(50, 25)
		if got.Cmp(big.NewInt(25)) != 0 {
			t.Errorf("LiquidityMinted() = %v, want 25", got)
		}
	})
}

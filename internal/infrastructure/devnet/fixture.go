package devnet

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bimakw/lp-zapper/internal/domain/entities"
)

// Fixture describes the initial devnet state
type Fixture struct {
	Tokens    []entities.TokenConfig `json:"tokens"`
	Factories []FactoryFixture       `json:"factories"`
	Pairs     []PairFixture          `json:"pairs"`
	Balances  []BalanceFixture       `json:"balances"`
}

type FactoryFixture struct {
	Address string `json:"address"`
	Router  string `json:"router"`
	FeeBps  uint64 `json:"feeBps"`
}

type PairFixture struct {
	Factory  string `json:"factory"`
	TokenA   string `json:"tokenA"`
	TokenB   string `json:"tokenB"`
	AmountA  string `json:"amountA"`
	AmountB  string `json:"amountB"`
	Provider string `json:"provider"`
}

type BalanceFixture struct {
	Token   string `json:"token"`
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

// LoadFixture reads a JSON fixture file
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read devnet fixture: %w", err)
	}

	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse devnet fixture: %w", err)
	}
	return &f, nil
}

// Apply deploys the fixture onto chain in one transaction and registers its
// tokens. It returns the created pair addresses in fixture order.
func (f *Fixture) Apply(ctx context.Context, chain *Chain, registry *entities.TokenRegistry) ([]common.Address, error) {
	if registry == nil {
		registry = entities.NewTokenRegistry()
	}
	if err := registry.RegisterConfigs(f.Tokens); err != nil {
		return nil, err
	}

	var pairs []common.Address
	err := chain.Update(ctx, func(ctx context.Context, tx *Tx) error {
		routers := make(map[common.Address]common.Address)
		for _, ff := range f.Factories {
			factory, err := parseAddress(ff.Address)
			if err != nil {
				return err
			}
			router, err := parseAddress(ff.Router)
			if err != nil {
				return err
			}
			fee := ff.FeeBps
			if fee == 0 {
				fee = DefaultSwapFee
			}
			tx.RegisterFactory(factory, fee)
			if err := tx.RegisterRouter(router, factory); err != nil {
				return err
			}
			routers[factory] = router
		}

		for _, pf := range f.Pairs {
			addrs, err := parseAddresses(pf.Factory, pf.TokenA, pf.TokenB, pf.Provider)
			if err != nil {
				return err
			}
			factory, tokenA, tokenB, provider := addrs[0], addrs[1], addrs[2], addrs[3]

			pair, err := tx.CreatePair(factory, tokenA, tokenB)
			if err != nil {
				return err
			}
			pairs = append(pairs, pair)

			amountA, err := parseAmount(pf.AmountA)
			if err != nil {
				return err
			}
			amountB, err := parseAmount(pf.AmountB)
			if err != nil {
				return err
			}
			if amountA.Sign() == 0 && amountB.Sign() == 0 {
				continue
			}
			router, ok := routers[factory]
			if !ok {
				return fmt.Errorf("no router for factory %s", factory.Hex())
			}
			if _, err := tx.SeedLiquidity(ctx, router, provider, tokenA, tokenB, amountA, amountB); err != nil {
				return fmt.Errorf("failed to seed pair %s: %w", pair.Hex(), err)
			}
		}

		for _, bf := range f.Balances {
			addrs, err := parseAddresses(bf.Token, bf.Account)
			if err != nil {
				return err
			}
			amount, err := parseAmount(bf.Amount)
			if err != nil {
				return err
			}
			tx.Mint(addrs[0], addrs[1], amount)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pairs, nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

func parseAddresses(values ...string) ([]common.Address, error) {
	out := make([]common.Address, len(values))
	for i, v := range values {
		addr, err := parseAddress(v)
		if err != nil {
			return nil, err
		}
		out[i] = addr
	}
	return out, nil
}

func parseAmount(s string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}

package devnet

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bimakw/lp-zapper/internal/domain/entities"
	"github.com/bimakw/lp-zapper/internal/infrastructure/dex"
)

// maxUint256 allowances are never decremented (ERC20 infinite approval)
var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

type allowanceKey struct {
	owner   common.Address
	spender common.Address
}

type pairKey struct {
	factory common.Address
	token0  common.Address
	token1  common.Address
}

type state struct {
	balances   map[common.Address]map[common.Address]*big.Int
	allowances map[common.Address]map[allowanceKey]*big.Int
	pairs      map[common.Address]*entities.Pair
	pairIndex  map[pairKey]common.Address
	routers    map[common.Address]common.Address
	fees       map[common.Address]uint64 // factory -> swap fee in bps
}

func newState() *state {
	return &state{
		balances:   make(map[common.Address]map[common.Address]*big.Int),
		allowances: make(map[common.Address]map[allowanceKey]*big.Int),
		pairs:      make(map[common.Address]*entities.Pair),
		pairIndex:  make(map[pairKey]common.Address),
		routers:    make(map[common.Address]common.Address),
		fees:       make(map[common.Address]uint64),
	}
}

func (s *state) clone() *state {
	out := newState()
	for token, holders := range s.balances {
		m := make(map[common.Address]*big.Int, len(holders))
		for acct, bal := range holders {
			m[acct] = new(big.Int).Set(bal)
		}
		out.balances[token] = m
	}
	for token, allowances := range s.allowances {
		m := make(map[allowanceKey]*big.Int, len(allowances))
		for k, v := range allowances {
			m[k] = new(big.Int).Set(v)
		}
		out.allowances[token] = m
	}
	for addr, p := range s.pairs {
		out.pairs[addr] = clonePair(p)
	}
	for k, v := range s.pairIndex {
		out.pairIndex[k] = v
	}
	for k, v := range s.routers {
		out.routers[k] = v
	}
	for k, v := range s.fees {
		out.fees[k] = v
	}
	return out
}

func clonePair(p *entities.Pair) *entities.Pair {
	cp := *p
	cp.Reserve0 = copyInt(p.Reserve0)
	cp.Reserve1 = copyInt(p.Reserve1)
	cp.TotalSupply = copyInt(p.TotalSupply)
	return &cp
}

func copyInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func (s *state) balance(token, account common.Address) *big.Int {
	if holders, ok := s.balances[token]; ok {
		if bal, ok := holders[account]; ok {
			return bal
		}
	}
	return big.NewInt(0)
}

func (s *state) credit(token, account common.Address, amount *big.Int) {
	holders, ok := s.balances[token]
	if !ok {
		holders = make(map[common.Address]*big.Int)
		s.balances[token] = holders
	}
	bal, ok := holders[account]
	if !ok {
		bal = big.NewInt(0)
		holders[account] = bal
	}
	bal.Add(bal, amount)
}

func (s *state) debit(token, account common.Address, amount *big.Int) error {
	bal := s.balance(token, account)
	if bal.Cmp(amount) < 0 {
		return revert("ERC20: transfer amount exceeds balance")
	}
	bal.Sub(bal, amount)
	return nil
}

func (s *state) move(token, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return revert("ERC20: invalid transfer amount")
	}
	if to == (common.Address{}) {
		return revert("ERC20: transfer to the zero address")
	}
	if err := s.debit(token, from, amount); err != nil {
		return err
	}
	s.credit(token, to, amount)
	return nil
}

func (s *state) allowance(token, owner, spender common.Address) *big.Int {
	if m, ok := s.allowances[token]; ok {
		if v, ok := m[allowanceKey{owner, spender}]; ok {
			return v
		}
	}
	return big.NewInt(0)
}

func (s *state) setAllowance(token, owner, spender common.Address, amount *big.Int) {
	m, ok := s.allowances[token]
	if !ok {
		m = make(map[allowanceKey]*big.Int)
		s.allowances[token] = m
	}
	m[allowanceKey{owner, spender}] = new(big.Int).Set(amount)
}

func (s *state) spendAllowance(token, owner, spender common.Address, amount *big.Int) error {
	current := s.allowance(token, owner, spender)
	if current.Cmp(maxUint256) == 0 {
		return nil
	}
	if current.Cmp(amount) < 0 {
		return revert("ERC20: insufficient allowance")
	}
	s.setAllowance(token, owner, spender, new(big.Int).Sub(current, amount))
	return nil
}

func (s *state) pair(addr common.Address) (*entities.Pair, error) {
	p, ok := s.pairs[addr]
	if !ok {
		return nil, revert("%s is not a pair", addr.Hex())
	}
	return p, nil
}

func (s *state) pairFor(factory, tokenA, tokenB common.Address) (*entities.Pair, error) {
	token0, token1 := dex.SortTokens(tokenA, tokenB)
	addr, ok := s.pairIndex[pairKey{factory, token0, token1}]
	if !ok {
		return nil, revert("UniswapV2Library: PAIR_NOT_FOUND")
	}
	return s.pairs[addr], nil
}

// sync sets the pair reserves to the tokens it actually holds
func (s *state) sync(p *entities.Pair) {
	p.Reserve0 = new(big.Int).Set(s.balance(p.Token0.Address, p.Address))
	p.Reserve1 = new(big.Int).Set(s.balance(p.Token1.Address, p.Address))
}

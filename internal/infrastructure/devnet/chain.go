// Package devnet is an in-memory EVM-like ledger with ERC20 balances and a
// Uniswap V2 factory/pair/router set. Transactions are serialised and either
// commit every effect or none, which makes it usable both as a local backend
// for the API and as the collaborator for engine tests.
package devnet

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/bimakw/lp-zapper/internal/domain/entities"
	"github.com/bimakw/lp-zapper/internal/infrastructure/dex"
)

// RevertError is returned when a call would revert on chain
type RevertError struct {
	Reason string
}

func (e *RevertError) Error() string {
	return "execution reverted: " + e.Reason
}

func revert(format string, args ...any) error {
	return &RevertError{Reason: fmt.Sprintf(format, args...)}
}

// TransferHook runs inside the transaction after a token moves.
// Returning an error reverts the transfer.
type TransferHook func(ctx context.Context, token, from, to common.Address, amount *big.Int) error

// Chain is the devnet state plus its transaction lock
type Chain struct {
	sem   chan struct{}
	state *state
	hooks map[common.Address]TransferHook
	now   func() time.Time
}

// Option configures a Chain
type Option func(*Chain)

// WithClock overrides the block time source
func WithClock(now func() time.Time) Option {
	return func(c *Chain) { c.now = now }
}

// NewChain creates an empty devnet
func NewChain(opts ...Option) *Chain {
	c := &Chain{
		sem:   make(chan struct{}, 1),
		state: newState(),
		hooks: make(map[common.Address]TransferHook),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Now returns the current block time
func (c *Chain) Now() time.Time {
	return c.now()
}

// Begin opens a transaction; it waits for the previous one to settle
func (c *Chain) Begin(ctx context.Context) (dex.Tx, error) {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &Tx{chain: c, st: c.state.clone()}, nil
}

// Update runs fn in its own transaction and commits when fn succeeds
func (c *Chain) Update(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	ctx, tx, owned, err := dex.Begin(ctx, c)
	if err != nil {
		return err
	}
	devTx, ok := tx.(*Tx)
	if !ok {
		return fmt.Errorf("devnet: foreign transaction in context")
	}
	if !owned {
		return fn(ctx, devTx)
	}
	if err := fn(ctx, devTx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// View runs fn against a consistent snapshot without changing state
func (c *Chain) View(ctx context.Context, fn func(r dex.Reader) error) error {
	if tx, ok := dex.TxFromContext(ctx); ok {
		return fn(tx)
	}
	tx, err := c.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	return fn(tx)
}

// Approve commits owner's allowance for spender in its own transaction
func (c *Chain) Approve(ctx context.Context, token, owner, spender common.Address, amount *big.Int) error {
	return c.Update(ctx, func(ctx context.Context, tx *Tx) error {
		return tx.Approve(ctx, token, owner, spender, amount)
	})
}

// SetTransferHook installs a hook called after every transfer of token
func (c *Chain) SetTransferHook(token common.Address, hook TransferHook) {
	c.sem <- struct{}{}
	defer func() { <-c.sem }()
	if hook == nil {
		delete(c.hooks, token)
		return
	}
	c.hooks[token] = hook
}

// Factory implements dex.Reader on the committed state
func (c *Chain) Factory(ctx context.Context, contract common.Address) (addr common.Address, err error) {
	err = c.View(ctx, func(r dex.Reader) error {
		addr, err = r.Factory(ctx, contract)
		return err
	})
	return addr, err
}

func (c *Chain) Token0(ctx context.Context, pair common.Address) (addr common.Address, err error) {
	err = c.View(ctx, func(r dex.Reader) error {
		addr, err = r.Token0(ctx, pair)
		return err
	})
	return addr, err
}

func (c *Chain) Token1(ctx context.Context, pair common.Address) (addr common.Address, err error) {
	err = c.View(ctx, func(r dex.Reader) error {
		addr, err = r.Token1(ctx, pair)
		return err
	})
	return addr, err
}

func (c *Chain) BalanceOf(ctx context.Context, token, account common.Address) (bal *big.Int, err error) {
	err = c.View(ctx, func(r dex.Reader) error {
		bal, err = r.BalanceOf(ctx, token, account)
		return err
	})
	return bal, err
}

func (c *Chain) GetAmountsOut(ctx context.Context, router common.Address, amountIn *big.Int, path []common.Address) (amounts []*big.Int, err error) {
	err = c.View(ctx, func(r dex.Reader) error {
		amounts, err = r.GetAmountsOut(ctx, router, amountIn, path)
		return err
	})
	return amounts, err
}

// PairState returns a copy of a pair's committed state
func (c *Chain) PairState(ctx context.Context, pair common.Address) (*entities.Pair, error) {
	var out *entities.Pair
	err := c.View(ctx, func(r dex.Reader) error {
		tx, ok := r.(*Tx)
		if !ok {
			return fmt.Errorf("devnet: foreign reader")
		}
		p, err := tx.st.pair(pair)
		if err != nil {
			return err
		}
		out = clonePair(p)
		return nil
	})
	return out, err
}

// PairAddress derives the deterministic address of a factory's pair
func PairAddress(factory, tokenA, tokenB common.Address) common.Address {
	token0, token1 := dex.SortTokens(tokenA, tokenB)
	hash := crypto.Keccak256(factory.Bytes(), token0.Bytes(), token1.Bytes())
	return common.BytesToAddress(hash[12:])
}

// Tx is an open devnet transaction working on a private copy of the state
type Tx struct {
	chain *Chain
	st    *state
	done  bool
}

// Commit publishes the transaction's state
func (t *Tx) Commit() error {
	if t.done {
		return fmt.Errorf("devnet: transaction already settled")
	}
	t.chain.state = t.st
	t.done = true
	<-t.chain.sem
	return nil
}

// Rollback discards the transaction; safe to call after Commit
func (t *Tx) Rollback() {
	if t.done {
		return
	}
	t.done = true
	<-t.chain.sem
}

func (t *Tx) Factory(_ context.Context, contract common.Address) (common.Address, error) {
	if p, ok := t.st.pairs[contract]; ok {
		return p.Factory, nil
	}
	if f, ok := t.st.routers[contract]; ok {
		return f, nil
	}
	return common.Address{}, revert("%s has no factory()", contract.Hex())
}

func (t *Tx) Token0(_ context.Context, pair common.Address) (common.Address, error) {
	p, err := t.st.pair(pair)
	if err != nil {
		return common.Address{}, err
	}
	return p.Token0.Address, nil
}

func (t *Tx) Token1(_ context.Context, pair common.Address) (common.Address, error) {
	p, err := t.st.pair(pair)
	if err != nil {
		return common.Address{}, err
	}
	return p.Token1.Address, nil
}

func (t *Tx) BalanceOf(_ context.Context, token, account common.Address) (*big.Int, error) {
	return new(big.Int).Set(t.st.balance(token, account)), nil
}

// Transfer moves tokens held by from
func (t *Tx) Transfer(ctx context.Context, token, from, to common.Address, amount *big.Int) error {
	if err := t.st.move(token, from, to, amount); err != nil {
		return err
	}
	return t.afterTransfer(ctx, token, from, to, amount)
}

// TransferFrom spends spender's allowance over owner's tokens
func (t *Tx) TransferFrom(ctx context.Context, token, spender, owner, recipient common.Address, amount *big.Int) error {
	if err := t.st.spendAllowance(token, owner, spender, amount); err != nil {
		return err
	}
	return t.Transfer(ctx, token, owner, recipient, amount)
}

// Approve sets owner's allowance for spender
func (t *Tx) Approve(_ context.Context, token, owner, spender common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return revert("ERC20: invalid approval amount")
	}
	t.st.setAllowance(token, owner, spender, amount)
	return nil
}

// Allowance returns owner's allowance for spender
func (t *Tx) Allowance(token, owner, spender common.Address) *big.Int {
	return new(big.Int).Set(t.st.allowance(token, owner, spender))
}

// Mint creates tokens out of thin air
func (t *Tx) Mint(token, to common.Address, amount *big.Int) {
	t.st.credit(token, to, amount)
}

func (t *Tx) afterTransfer(ctx context.Context, token, from, to common.Address, amount *big.Int) error {
	hook, ok := t.chain.hooks[token]
	if !ok {
		return nil
	}
	return hook(dex.WithTx(ctx, t), token, from, to, amount)
}

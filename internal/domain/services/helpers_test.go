package services

import (
	"context"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bimakw/lp-zapper/internal/domain/entities"
	"github.com/bimakw/lp-zapper/internal/infrastructure/devnet"
	"github.com/bimakw/lp-zapper/internal/infrastructure/dex"
)

var (
	tokenIn = common.HexToAddress("0x0000000000000000000000000000000000000101")
	tokenA  = common.HexToAddress("0x0000000000000000000000000000000000000102")
	tokenB  = common.HexToAddress("0x0000000000000000000000000000000000000103")

	factory      = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	router       = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	otherFactory = common.HexToAddress("0x00000000000000000000000000000000000000f2")
	otherRouter  = common.HexToAddress("0x00000000000000000000000000000000000000e2")

	engine   = common.HexToAddress("0x00000000000000000000000000000000000000ee")
	owner    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	treasury = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	devAcct  = common.HexToAddress("0x00000000000000000000000000000000000000a3")
	caller   = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	provider = common.HexToAddress("0x00000000000000000000000000000000000000d1")
)

const deepReserve = "1000000000000000000000000" // 1e24

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []entities.ZapCompleted
}

func (p *recordingPublisher) PublishZapCompleted(_ context.Context, e entities.ZapCompleted) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type testEnv struct {
	t         *testing.T
	ctx       context.Context
	chain     *devnet.Chain
	fees      *FeeService
	svc       *ZapService
	published *recordingPublisher

	pairInA, pairInB, pairAB, otherPairAB common.Address
}

// newTestEnv deploys two factories on a devnet and an engine charging rate
// percent. A nil rate builds a fee-free engine.
func newTestEnv(t *testing.T, rate *uint64) *testEnv {
	t.Helper()
	ctx := context.Background()
	chain := devnet.NewChain()

	fixture := &devnet.Fixture{
		Tokens: []entities.TokenConfig{
			{Address: tokenIn.Hex(), Symbol: "IN", Name: "Input", Decimals: 18},
			{Address: tokenA.Hex(), Symbol: "TKA", Name: "Token A", Decimals: 18},
			{Address: tokenB.Hex(), Symbol: "TKB", Name: "Token B", Decimals: 18},
		},
		Factories: []devnet.FactoryFixture{
			{Address: factory.Hex(), Router: router.Hex()},
			{Address: otherFactory.Hex(), Router: otherRouter.Hex()},
		},
		Pairs: []devnet.PairFixture{
			{Factory: factory.Hex(), TokenA: tokenIn.Hex(), TokenB: tokenA.Hex(), AmountA: deepReserve, AmountB: deepReserve, Provider: provider.Hex()},
			{Factory: factory.Hex(), TokenA: tokenIn.Hex(), TokenB: tokenB.Hex(), AmountA: deepReserve, AmountB: deepReserve, Provider: provider.Hex()},
			{Factory: factory.Hex(), TokenA: tokenA.Hex(), TokenB: tokenB.Hex(), AmountA: deepReserve, AmountB: deepReserve, Provider: provider.Hex()},
			{Factory: otherFactory.Hex(), TokenA: tokenA.Hex(), TokenB: tokenB.Hex(), AmountA: deepReserve, AmountB: deepReserve, Provider: provider.Hex()},
		},
		Balances: []devnet.BalanceFixture{
			{Token: tokenIn.Hex(), Account: caller.Hex(), Amount: ether(1000).String()},
			{Token: tokenA.Hex(), Account: caller.Hex(), Amount: ether(1000).String()},
		},
	}

	registry := entities.NewTokenRegistry()
	pairs, err := fixture.Apply(ctx, chain, registry)
	require.NoError(t, err)
	require.Len(t, pairs, 4)

	published := &recordingPublisher{}
	opts := []ZapOption{
		WithPublisher(published),
		WithRegistry(registry),
		WithLogger(zap.NewNop()),
	}

	var fees *FeeService
	if rate != nil {
		fees = NewFeeService(nil, zap.NewNop(), nil)
		require.NoError(t, fees.Initialize(ctx, owner, treasury, devAcct, *rate))
		opts = append(opts, WithFeeService(fees))
	}

	svc, err := NewZapService(Core{Self: engine, DefaultRouter: router}, chain, opts...)
	require.NoError(t, err)

	return &testEnv{
		t:           t,
		ctx:         ctx,
		chain:       chain,
		fees:        fees,
		svc:         svc,
		published:   published,
		pairInA:     pairs[0],
		pairInB:     pairs[1],
		pairAB:      pairs[2],
		otherPairAB: pairs[3],
	}
}

// assertAmount compares values rather than big.Int internals
func assertAmount(t *testing.T, want, got *big.Int, msgAndArgs ...interface{}) {
	t.Helper()
	require.NotNil(t, got, msgAndArgs...)
	assert.Equal(t, want.String(), got.String(), msgAndArgs...)
}

func feeRate(r uint64) *uint64 {
	return &r
}

func (e *testEnv) approve(token common.Address, amount *big.Int) {
	e.t.Helper()
	err := e.chain.Update(e.ctx, func(ctx context.Context, tx *devnet.Tx) error {
		return tx.Approve(ctx, token, caller, engine, amount)
	})
	require.NoError(e.t, err)
}

func (e *testEnv) balance(token, account common.Address) *big.Int {
	e.t.Helper()
	bal, err := e.chain.BalanceOf(e.ctx, token, account)
	require.NoError(e.t, err)
	return bal
}

// requireEngineEmpty checks the engine kept nothing of the zap's tokens
func (e *testEnv) requireEngineEmpty(pair common.Address, tokens ...common.Address) {
	e.t.Helper()
	for _, token := range append(tokens, pair) {
		require.Zero(e.t, e.balance(token, engine).Sign(), "engine holds %s", token.Hex())
	}
}

func (e *testEnv) request(pair common.Address, amount *big.Int, paths ...entities.Path) *entities.ZapRequest {
	return &entities.ZapRequest{
		Caller:   caller,
		TokenIn:  tokenIn,
		Pair:     pair,
		Router:   router,
		AmountIn: amount,
		Paths:    paths,
	}
}

func route(tokens ...common.Address) entities.Path {
	return entities.Path(tokens)
}

var _ dex.Chain = (*devnet.Chain)(nil)

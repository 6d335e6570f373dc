package devnet

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bimakw/lp-zapper/internal/domain/entities"
	"github.com/bimakw/lp-zapper/internal/infrastructure/dex"
)

// DefaultSwapFee is the Uniswap V2 swap fee in basis points
const DefaultSwapFee uint64 = 30

// RegisterFactory declares a factory and the swap fee its pairs charge
func (t *Tx) RegisterFactory(factory common.Address, feeBps uint64) {
	t.st.fees[factory] = feeBps
}

// RegisterRouter binds a router to a factory
func (t *Tx) RegisterRouter(router, factory common.Address) error {
	if _, ok := t.st.fees[factory]; !ok {
		return revert("unknown factory %s", factory.Hex())
	}
	t.st.routers[router] = factory
	return nil
}

// CreatePair deploys an empty pair for tokenA/tokenB under factory
func (t *Tx) CreatePair(factory, tokenA, tokenB common.Address) (common.Address, error) {
	fee, ok := t.st.fees[factory]
	if !ok {
		return common.Address{}, revert("unknown factory %s", factory.Hex())
	}
	if tokenA == tokenB {
		return common.Address{}, revert("UniswapV2: IDENTICAL_ADDRESSES")
	}
	token0, token1 := dex.SortTokens(tokenA, tokenB)
	if token0 == (common.Address{}) {
		return common.Address{}, revert("UniswapV2: ZERO_ADDRESS")
	}
	key := pairKey{factory, token0, token1}
	if _, exists := t.st.pairIndex[key]; exists {
		return common.Address{}, revert("UniswapV2: PAIR_EXISTS")
	}

	addr := PairAddress(factory, token0, token1)
	t.st.pairs[addr] = &entities.Pair{
		Address:     addr,
		Factory:     factory,
		Token0:      entities.Token{Address: token0},
		Token1:      entities.Token{Address: token1},
		Reserve0:    big.NewInt(0),
		Reserve1:    big.NewInt(0),
		TotalSupply: big.NewInt(0),
		Fee:         fee,
	}
	t.st.pairIndex[key] = addr
	return addr, nil
}

// SeedLiquidity mints both tokens to provider and deposits them through router
func (t *Tx) SeedLiquidity(ctx context.Context, router, provider, tokenA, tokenB common.Address, amountA, amountB *big.Int) (*dex.AddLiquidityResult, error) {
	t.Mint(tokenA, provider, amountA)
	t.Mint(tokenB, provider, amountB)
	if err := t.Approve(ctx, tokenA, provider, router, amountA); err != nil {
		return nil, err
	}
	if err := t.Approve(ctx, tokenB, provider, router, amountB); err != nil {
		return nil, err
	}
	return t.AddLiquidity(ctx, router, provider, dex.AddLiquidityParams{
		TokenA:         tokenA,
		TokenB:         tokenB,
		AmountADesired: amountA,
		AmountBDesired: amountB,
		To:             provider,
		Deadline:       uint64(t.chain.now().Unix()) + 60,
	})
}

// GetAmountsOut mirrors UniswapV2Router02.getAmountsOut
func (t *Tx) GetAmountsOut(_ context.Context, router common.Address, amountIn *big.Int, path []common.Address) ([]*big.Int, error) {
	factory, err := t.factoryOf(router)
	if err != nil {
		return nil, err
	}
	if len(path) < 2 {
		return nil, revert("UniswapV2Library: INVALID_PATH")
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, revert("UniswapV2Library: INSUFFICIENT_INPUT_AMOUNT")
	}

	amounts := make([]*big.Int, len(path))
	amounts[0] = new(big.Int).Set(amountIn)
	for i := 0; i < len(path)-1; i++ {
		pair, err := t.st.pairFor(factory, path[i], path[i+1])
		if err != nil {
			return nil, err
		}
		if pair.Reserve0.Sign() == 0 || pair.Reserve1.Sign() == 0 {
			return nil, revert("UniswapV2Library: INSUFFICIENT_LIQUIDITY")
		}
		amounts[i+1] = pair.GetAmountOut(amounts[i], path[i])
	}
	return amounts, nil
}

// SwapExactTokensForTokens mirrors UniswapV2Router02.swapExactTokensForTokens
// called by `from`.
func (t *Tx) SwapExactTokensForTokens(ctx context.Context, router, from common.Address, params dex.SwapParams) ([]*big.Int, error) {
	if err := t.checkDeadline(params.Deadline); err != nil {
		return nil, err
	}
	factory, err := t.factoryOf(router)
	if err != nil {
		return nil, err
	}

	amounts, err := t.GetAmountsOut(ctx, router, params.AmountIn, params.Path)
	if err != nil {
		return nil, err
	}
	if params.AmountOutMin != nil && amounts[len(amounts)-1].Cmp(params.AmountOutMin) < 0 {
		return nil, revert("UniswapV2Router: INSUFFICIENT_OUTPUT_AMOUNT")
	}

	path := params.Path
	first, err := t.st.pairFor(factory, path[0], path[1])
	if err != nil {
		return nil, err
	}
	if err := t.TransferFrom(ctx, path[0], router, from, first.Address, amounts[0]); err != nil {
		return nil, err
	}

	for i := 0; i < len(path)-1; i++ {
		pair, err := t.st.pairFor(factory, path[i], path[i+1])
		if err != nil {
			return nil, err
		}
		out := amounts[i+1]
		if out.Sign() <= 0 {
			return nil, revert("UniswapV2: INSUFFICIENT_OUTPUT_AMOUNT")
		}

		recipient := params.To
		if i < len(path)-2 {
			next, err := t.st.pairFor(factory, path[i+1], path[i+2])
			if err != nil {
				return nil, err
			}
			recipient = next.Address
		}
		if err := t.Transfer(ctx, path[i+1], pair.Address, recipient, out); err != nil {
			return nil, err
		}
		t.st.sync(pair)
	}

	return amounts, nil
}

// AddLiquidity mirrors UniswapV2Router02.addLiquidity called by `from`.
// The pair must already exist.
func (t *Tx) AddLiquidity(ctx context.Context, router, from common.Address, params dex.AddLiquidityParams) (*dex.AddLiquidityResult, error) {
	if err := t.checkDeadline(params.Deadline); err != nil {
		return nil, err
	}
	if params.To == (common.Address{}) {
		return nil, revert("UniswapV2: MINT_TO_ZERO_ADDRESS")
	}
	factory, err := t.factoryOf(router)
	if err != nil {
		return nil, err
	}
	pair, err := t.st.pairFor(factory, params.TokenA, params.TokenB)
	if err != nil {
		return nil, err
	}

	amountA, amountB, err := optimalAmounts(pair, params)
	if err != nil {
		return nil, err
	}

	if err := t.TransferFrom(ctx, params.TokenA, router, from, pair.Address, amountA); err != nil {
		return nil, err
	}
	if err := t.TransferFrom(ctx, params.TokenB, router, from, pair.Address, amountB); err != nil {
		return nil, err
	}

	amount0, amount1 := amountA, amountB
	if params.TokenA != pair.Token0.Address {
		amount0, amount1 = amountB, amountA
	}

	liquidity := pair.LiquidityMinted(amount0, amount1)
	if pair.TotalSupply.Sign() == 0 {
		t.st.credit(pair.Address, common.Address{}, entities.MinimumLiquidity)
		pair.TotalSupply.Add(pair.TotalSupply, entities.MinimumLiquidity)
	}
	if liquidity.Sign() <= 0 {
		return nil, revert("UniswapV2: INSUFFICIENT_LIQUIDITY_MINTED")
	}

	t.st.credit(pair.Address, params.To, liquidity)
	pair.TotalSupply.Add(pair.TotalSupply, liquidity)
	t.st.sync(pair)

	return &dex.AddLiquidityResult{
		AmountA:   amountA,
		AmountB:   amountB,
		Liquidity: liquidity,
	}, nil
}

// optimalAmounts is UniswapV2Router02._addLiquidity
func optimalAmounts(pair *entities.Pair, params dex.AddLiquidityParams) (*big.Int, *big.Int, error) {
	minA := orZero(params.AmountAMin)
	minB := orZero(params.AmountBMin)
	desiredA := orZero(params.AmountADesired)
	desiredB := orZero(params.AmountBDesired)

	reserveA, reserveB := pair.Reserves(params.TokenA)
	if reserveA.Sign() == 0 && reserveB.Sign() == 0 {
		return desiredA, desiredB, nil
	}

	optimalB := entities.Quote(desiredA, reserveA, reserveB)
	if optimalB.Cmp(desiredB) <= 0 {
		if optimalB.Cmp(minB) < 0 {
			return nil, nil, revert("UniswapV2Router: INSUFFICIENT_B_AMOUNT")
		}
		return desiredA, optimalB, nil
	}

	optimalA := entities.Quote(desiredB, reserveB, reserveA)
	if optimalA.Cmp(desiredA) > 0 {
		return nil, nil, revert("UniswapV2Router: OPTIMAL_A_EXCEEDS_DESIRED")
	}
	if optimalA.Cmp(minA) < 0 {
		return nil, nil, revert("UniswapV2Router: INSUFFICIENT_A_AMOUNT")
	}
	return optimalA, desiredB, nil
}

func (t *Tx) factoryOf(router common.Address) (common.Address, error) {
	factory, ok := t.st.routers[router]
	if !ok {
		return common.Address{}, revert("%s is not a router", router.Hex())
	}
	return factory, nil
}

func (t *Tx) checkDeadline(deadline uint64) error {
	if uint64(t.chain.now().Unix()) > deadline {
		return revert("UniswapV2Router: EXPIRED")
	}
	return nil
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}

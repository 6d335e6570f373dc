package dex

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// UniswapV2 ABI function selectors (first 4 bytes of keccak256 of the signature)
var (
	// factory() returns (address)
	factorySelector = common.Hex2Bytes("c45a0155")
	// token0() returns (address)
	token0Selector = common.Hex2Bytes("0dfe1681")
	// token1() returns (address)
	token1Selector = common.Hex2Bytes("d21220a7")
	// balanceOf(address) returns (uint256)
	balanceOfSelector = common.Hex2Bytes("70a08231")
)

// Minimal Router02 ABI, only the view we call
const routerABIJSON = `[
	{
		"name": "getAmountsOut",
		"type": "function",
		"stateMutability": "view",
		"inputs": [
			{"name": "amountIn", "type": "uint256"},
			{"name": "path",     "type": "address[]"}
		],
		"outputs": [
			{"name": "amounts", "type": "uint256[]"}
		]
	}
]`

var routerABI = mustParseABI(routerABIJSON)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("invalid router abi: %v", err))
	}
	return parsed
}

// ContractCaller executes eth_call
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
}

// UniswapV2Reader reads pair, router and token state from a live chain
type UniswapV2Reader struct {
	caller ContractCaller
}

// NewUniswapV2Reader creates a reader backed by eth_call
func NewUniswapV2Reader(caller ContractCaller) *UniswapV2Reader {
	return &UniswapV2Reader{caller: caller}
}

// Factory returns the factory a pair or router is bound to
func (r *UniswapV2Reader) Factory(ctx context.Context, contract common.Address) (common.Address, error) {
	return r.callAddress(ctx, contract, factorySelector, "factory")
}

// Token0 returns the pair's token0
func (r *UniswapV2Reader) Token0(ctx context.Context, pair common.Address) (common.Address, error) {
	return r.callAddress(ctx, pair, token0Selector, "token0")
}

// Token1 returns the pair's token1
func (r *UniswapV2Reader) Token1(ctx context.Context, pair common.Address) (common.Address, error) {
	return r.callAddress(ctx, pair, token1Selector, "token1")
}

// BalanceOf returns an ERC20 balance
func (r *UniswapV2Reader) BalanceOf(ctx context.Context, token, account common.Address) (*big.Int, error) {
	data := make([]byte, 36)
	copy(data[0:4], balanceOfSelector)
	copy(data[16:36], account.Bytes())

	result, err := r.caller.CallContract(ctx, ethereum.CallMsg{
		To:   &token,
		Data: data,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}

	if len(result) < 32 {
		return nil, fmt.Errorf("invalid balanceOf response length")
	}

	return new(big.Int).SetBytes(result[0:32]), nil
}

// GetAmountsOut asks the router for the output of every hop along path
func (r *UniswapV2Reader) GetAmountsOut(ctx context.Context, router common.Address, amountIn *big.Int, path []common.Address) ([]*big.Int, error) {
	data, err := routerABI.Pack("getAmountsOut", amountIn, path)
	if err != nil {
		return nil, fmt.Errorf("failed to encode getAmountsOut: %w", err)
	}

	result, err := r.caller.CallContract(ctx, ethereum.CallMsg{
		To:   &router,
		Data: data,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get amounts out: %w", err)
	}

	values, err := routerABI.Unpack("getAmountsOut", result)
	if err != nil {
		return nil, fmt.Errorf("failed to decode getAmountsOut: %w", err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unexpected getAmountsOut output count %d", len(values))
	}

	amounts, ok := values[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected getAmountsOut output type %T", values[0])
	}
	return amounts, nil
}

func (r *UniswapV2Reader) callAddress(ctx context.Context, contract common.Address, selector []byte, name string) (common.Address, error) {
	result, err := r.caller.CallContract(ctx, ethereum.CallMsg{
		To:   &contract,
		Data: selector,
	})
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to call %s(): %w", name, err)
	}

	if len(result) < 32 {
		return common.Address{}, fmt.Errorf("invalid %s() response length", name)
	}

	return common.BytesToAddress(result[12:32]), nil
}

// SortTokens sorts two addresses in ascending order (Uniswap V2 convention)
func SortTokens(tokenA, tokenB common.Address) (common.Address, common.Address) {
	if bytes.Compare(tokenA.Bytes(), tokenB.Bytes()) < 0 {
		return tokenA, tokenB
	}
	return tokenB, tokenA
}

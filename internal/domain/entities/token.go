package entities

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

type Token struct {
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol"`
	Name     string         `json:"name"`
	Decimals uint8          `json:"decimals"`
}

// Format renders a raw amount in whole-token units
func (t Token) Format(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -int32(t.Decimals)).String()
}

// WBNB is Wrapped BNB on BNB Smart Chain
var WBNB = Token{
	Address:  common.HexToAddress("0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c"),
	Symbol:   "WBNB",
	Name:     "Wrapped BNB",
	Decimals: 18,
}

// BUSD is Binance USD on BNB Smart Chain
var BUSD = Token{
	Address:  common.HexToAddress("0xe9e7CEA3DedcA5984780Bafc599bD69ADd087D56"),
	Symbol:   "BUSD",
	Name:     "Binance USD",
	Decimals: 18,
}

// USDT is Tether USD on BNB Smart Chain
var USDT = Token{
	Address:  common.HexToAddress("0x55d398326f99059fF775485246999027B3197955"),
	Symbol:   "USDT",
	Name:     "Tether USD",
	Decimals: 18,
}

// AMES is the Amethyst token on BNB Smart Chain
var AMES = Token{
	Address:  common.HexToAddress("0xb9E05B4C168B56F73940980aE6EF366354357009"),
	Symbol:   "AMES",
	Name:     "Amethyst",
	Decimals: 18,
}

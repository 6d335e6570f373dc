package entities

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// FeeScale expresses fee rates in parts-per-hundred (1 = 1%)
	FeeScale uint64 = 100

	// DefaultFeeRate is the initial protocol fee (1%)
	DefaultFeeRate uint64 = 1

	// FeeConfigSchemaVersion is the current persisted layout of FeeConfig
	FeeConfigSchemaVersion uint64 = 1
)

// FeeConfig is the protocol fee state owned by the engine
type FeeConfig struct {
	Rate          uint64         `json:"rate"`
	Scale         uint64         `json:"scale"`
	Treasury      common.Address `json:"treasury"`
	Dev           common.Address `json:"dev"`
	Owner         common.Address `json:"owner"`
	Version       uint64         `json:"version"`
	SchemaVersion uint64         `json:"schemaVersion"`
}

// QuoteFee returns floor(amount * rate / scale). Rounding dust stays with the depositor.
func (c FeeConfig) QuoteFee(amount *big.Int) *big.Int {
	if amount == nil || amount.Sign() <= 0 || c.Rate == 0 || c.Scale == 0 {
		return big.NewInt(0)
	}
	fee := new(big.Int).Mul(amount, new(big.Int).SetUint64(c.Rate))
	return fee.Quo(fee, new(big.Int).SetUint64(c.Scale))
}

// ExceedsScale reports a rate that would take the whole input or more
func (c FeeConfig) ExceedsScale() bool {
	return c.Scale != 0 && c.Rate >= c.Scale
}

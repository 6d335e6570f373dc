package services

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Request validation
var (
	ErrInvalidInputToken    = errors.New("invalid input token address")
	ErrInvalidPairAddress   = errors.New("invalid pair address")
	ErrInvalidRouterAddress = errors.New("invalid router address")
	ErrInvalidInputAmount   = errors.New("invalid input amount")
	ErrPathTooShort         = errors.New("path too short")
	ErrInvalidPathCount     = errors.New("invalid number of paths")
)

// Pair/router compatibility
var (
	ErrIncompatibleFactory     = errors.New("router and pair factories differ")
	ErrPathOriginMismatch      = errors.New("path does not start with the input token")
	ErrPathDestinationMismatch = errors.New("path destination not in pair")
)

// Execution and configuration
var (
	ErrExternalCall       = errors.New("external call failed")
	ErrSlippageExceeded   = errors.New("slippage limit exceeded")
	ErrResidueLeft        = errors.New("engine balance changed after zap")
	ErrReentrancy         = errors.New("reentrant zap")
	ErrUnauthorized       = errors.New("caller is not the owner")
	ErrInvalidRouter      = errors.New("default router is the zero address")
	ErrAlreadyInitialized = errors.New("already initialized")
	ErrNotInitialized     = errors.New("not initialized")
	ErrVersionConflict    = errors.New("fee config version mismatch")
	ErrInvalidFeeConfig   = errors.New("invalid fee configuration")
)

// PathError reports a failure tied to one leg. For destination mismatches
// Leg is the LP token side (0 or 1) left uncovered.
type PathError struct {
	Leg int
	Err error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("path %d: %v", e.Leg, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// ExternalCallError wraps a revert or transport failure from a token, pair or router
type ExternalCallError struct {
	Op       string
	Contract common.Address
	Err      error
}

func (e *ExternalCallError) Error() string {
	return fmt.Sprintf("%s on %s: %v", e.Op, e.Contract.Hex(), e.Err)
}

func (e *ExternalCallError) Unwrap() error {
	return e.Err
}

func (e *ExternalCallError) Is(target error) bool {
	return target == ErrExternalCall
}

func external(op string, contract common.Address, err error) error {
	if err == nil {
		return nil
	}
	// nested zaps surface their own error unchanged
	if errors.Is(err, ErrReentrancy) {
		return err
	}
	return &ExternalCallError{Op: op, Contract: contract, Err: err}
}

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrInvalidInputToken, "invalid_input_token"},
	{ErrInvalidPairAddress, "invalid_pair_address"},
	{ErrInvalidRouterAddress, "invalid_router_address"},
	{ErrInvalidInputAmount, "invalid_input_amount"},
	{ErrPathTooShort, "path_too_short"},
	{ErrInvalidPathCount, "invalid_path_count"},
	{ErrIncompatibleFactory, "incompatible_factory"},
	{ErrPathOriginMismatch, "path_origin_mismatch"},
	{ErrPathDestinationMismatch, "path_destination_mismatch"},
	{ErrReentrancy, "reentrancy"},
	{ErrSlippageExceeded, "slippage_exceeded"},
	{ErrResidueLeft, "residue_left"},
	{ErrUnauthorized, "unauthorized"},
	{ErrInvalidRouter, "invalid_router"},
	{ErrAlreadyInitialized, "already_initialized"},
	{ErrNotInitialized, "not_initialized"},
	{ErrVersionConflict, "version_conflict"},
	{ErrInvalidFeeConfig, "invalid_fee_config"},
	{ErrExternalCall, "external_call_failure"},
}

// ErrorCode maps an error to a stable machine-readable code
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return "internal"
}

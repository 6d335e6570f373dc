package services

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"github.com/bimakw/lp-zapper/internal/domain/entities"
)

func TestValidateRequest(t *testing.T) {
	valid := func() *entities.ZapRequest {
		return stubRequest(route(tokenIn, tokenA), route(tokenIn, tokenB))
	}

	tests := []struct {
		name    string
		variant entities.ZapVariant
		mutate  func(r *entities.ZapRequest)
		wantErr error
	}{
		{"valid", entities.ZapTwoPath, func(*entities.ZapRequest) {}, nil},
		{"token checked first", entities.ZapTwoPath, func(r *entities.ZapRequest) {
			r.TokenIn = common.Address{}
			r.Pair = common.Address{}
		}, ErrInvalidInputToken},
		{"pair before router", entities.ZapTwoPath, func(r *entities.ZapRequest) {
			r.Pair = common.Address{}
			r.Router = common.Address{}
		}, ErrInvalidPairAddress},
		{"router before amount", entities.ZapTwoPath, func(r *entities.ZapRequest) {
			r.Router = common.Address{}
			r.AmountIn = nil
		}, ErrInvalidRouterAddress},
		{"nil amount", entities.ZapTwoPath, func(r *entities.ZapRequest) { r.AmountIn = nil }, ErrInvalidInputAmount},
		{"negative amount", entities.ZapTwoPath, func(r *entities.ZapRequest) { r.AmountIn = big.NewInt(-1) }, ErrInvalidInputAmount},
		{"empty path", entities.ZapTwoPath, func(r *entities.ZapRequest) { r.Paths[0] = nil }, ErrPathTooShort},
		{"missing second path", entities.ZapTwoPath, func(r *entities.ZapRequest) { r.Paths = r.Paths[:1] }, ErrPathTooShort},
		{"three paths", entities.ZapTwoPath, func(r *entities.ZapRequest) {
			r.Paths = append(r.Paths, route(tokenIn, tokenA))
		}, ErrInvalidPathCount},
		{"single path valid", entities.ZapSinglePath, func(r *entities.ZapRequest) { r.Paths = r.Paths[:1] }, nil},
		{"single path given two", entities.ZapSinglePath, func(*entities.ZapRequest) {}, ErrInvalidPathCount},
		{"single path too short", entities.ZapSinglePath, func(r *entities.ZapRequest) {
			r.Paths = []entities.Path{route(tokenIn)}
		}, ErrPathTooShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(req)
			err := ValidateRequest(req, tt.variant)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateRequestReportsLeg(t *testing.T) {
	req := stubRequest(route(tokenIn, tokenA), route(tokenIn))
	err := ValidateRequest(req, entities.ZapTwoPath)

	var pe *PathError
	assert.True(t, errors.As(err, &pe))
	assert.Equal(t, 1, pe.Leg)
	assert.Equal(t, "path 1: path too short", err.Error())
}

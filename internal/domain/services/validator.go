package services

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/bimakw/lp-zapper/internal/domain/entities"
)

// ValidateRequest rejects malformed requests before any external call.
// Checks run in a fixed order: token, pair, router, amount, then each path.
func ValidateRequest(req *entities.ZapRequest, variant entities.ZapVariant) error {
	if req.TokenIn == (common.Address{}) {
		return ErrInvalidInputToken
	}
	if req.Pair == (common.Address{}) {
		return ErrInvalidPairAddress
	}
	if req.Router == (common.Address{}) {
		return ErrInvalidRouterAddress
	}
	if req.AmountIn == nil || req.AmountIn.Sign() <= 0 {
		return ErrInvalidInputAmount
	}

	want := 2
	if variant == entities.ZapSinglePath {
		want = 1
	}

	for i := 0; i < want; i++ {
		if i >= len(req.Paths) || len(req.Paths[i]) < 2 {
			return &PathError{Leg: i, Err: ErrPathTooShort}
		}
	}
	if len(req.Paths) != want {
		return ErrInvalidPathCount
	}
	return nil
}

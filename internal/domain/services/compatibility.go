package services

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sourcegraph/conc"

	"github.com/bimakw/lp-zapper/internal/domain/entities"
	"github.com/bimakw/lp-zapper/internal/infrastructure/dex"
)

// Leg is the route that delivers one side of the pair.
// PathIndex points into ZapRequest.Paths; -1 marks a direct (unswapped) leg.
type Leg struct {
	PathIndex int
	Path      entities.Path
}

// Direct reports whether the leg feeds the input token straight through
func (l Leg) Direct() bool {
	return l.Path.IsDirect()
}

// Plan is a validated zap: the pair as read on chain and one leg per side
type Plan struct {
	Pair entities.Pair
	Legs [2]Leg
}

// CompatibilityValidator checks that router, pair and paths belong together.
// Everything is read fresh on each call; nothing is cached between zaps.
type CompatibilityValidator struct{}

// NewCompatibilityValidator creates a validator
func NewCompatibilityValidator() *CompatibilityValidator {
	return &CompatibilityValidator{}
}

type pairReads struct {
	pairFactory, routerFactory common.Address
	token0, token1             common.Address
	pairFactoryErr, routerErr  error
	token0Err, token1Err       error
}

// Validate reads the pair and router through r and returns the leg assignment
func (v *CompatibilityValidator) Validate(ctx context.Context, r dex.Reader, req *entities.ZapRequest, variant entities.ZapVariant) (*Plan, error) {
	var reads pairReads
	var wg conc.WaitGroup
	wg.Go(func() { reads.pairFactory, reads.pairFactoryErr = r.Factory(ctx, req.Pair) })
	wg.Go(func() { reads.routerFactory, reads.routerErr = r.Factory(ctx, req.Router) })
	wg.Go(func() { reads.token0, reads.token0Err = r.Token0(ctx, req.Pair) })
	wg.Go(func() { reads.token1, reads.token1Err = r.Token1(ctx, req.Pair) })
	wg.Wait()

	if reads.pairFactoryErr != nil {
		return nil, external("factory", req.Pair, reads.pairFactoryErr)
	}
	if reads.routerErr != nil {
		return nil, external("factory", req.Router, reads.routerErr)
	}
	if reads.pairFactory != reads.routerFactory {
		return nil, ErrIncompatibleFactory
	}

	for i, path := range req.Paths {
		if path.Origin() != req.TokenIn {
			return nil, &PathError{Leg: i, Err: ErrPathOriginMismatch}
		}
	}

	if reads.token0Err != nil {
		return nil, external("token0", req.Pair, reads.token0Err)
	}
	if reads.token1Err != nil {
		return nil, external("token1", req.Pair, reads.token1Err)
	}

	candidates := make([]Leg, 0, 2)
	if variant == entities.ZapSinglePath {
		candidates = append(candidates, Leg{PathIndex: -1, Path: entities.Path{req.TokenIn}})
	}
	for i, path := range req.Paths {
		candidates = append(candidates, Leg{PathIndex: i, Path: path})
	}

	legs, err := assignLegs(reads.token0, reads.token1, candidates)
	if err != nil {
		return nil, err
	}

	return &Plan{
		Pair: entities.Pair{
			Address: req.Pair,
			Factory: reads.pairFactory,
			Token0:  entities.Token{Address: reads.token0},
			Token1:  entities.Token{Address: reads.token1},
		},
		Legs: legs,
	}, nil
}

// assignLegs matches two candidate legs to {token0, token1}, each covered once.
// The result does not depend on candidate order.
func assignLegs(token0, token1 common.Address, candidates []Leg) ([2]Leg, error) {
	var legs [2]Leg
	if len(candidates) != 2 {
		return legs, ErrInvalidPathCount
	}

	first := -1
	for i, c := range candidates {
		if c.Path.Destination() == token0 {
			first = i
			break
		}
	}
	if first < 0 {
		return legs, &PathError{Leg: 0, Err: ErrPathDestinationMismatch}
	}

	second := candidates[1-first]
	if second.Path.Destination() != token1 {
		return legs, &PathError{Leg: 1, Err: ErrPathDestinationMismatch}
	}

	legs[0] = candidates[first]
	legs[1] = second
	return legs, nil
}

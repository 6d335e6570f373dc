package entities

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Hop represents a single swap step in a path
type Hop struct {
	TokenIn  common.Address `json:"tokenIn"`
	TokenOut common.Address `json:"tokenOut"`
}

// Path is the ordered token sequence a swap walks through.
// A path of length 1 means the token is used as-is without swapping.
type Path []common.Address

// Origin returns the first token of the path
func (p Path) Origin() common.Address {
	if len(p) == 0 {
		return common.Address{}
	}
	return p[0]
}

// Destination returns the last token of the path
func (p Path) Destination() common.Address {
	if len(p) == 0 {
		return common.Address{}
	}
	return p[len(p)-1]
}

// IsDirect reports whether the path skips swapping
func (p Path) IsDirect() bool {
	return len(p) == 1
}

// Hops splits the path into consecutive swap steps
func (p Path) Hops() []Hop {
	if len(p) < 2 {
		return nil
	}
	hops := make([]Hop, 0, len(p)-1)
	for i := 0; i < len(p)-1; i++ {
		hops = append(hops, Hop{TokenIn: p[i], TokenOut: p[i+1]})
	}
	return hops
}

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, addr := range p {
		parts[i] = addr.Hex()
	}
	return strings.Join(parts, " -> ")
}

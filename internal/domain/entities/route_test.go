package entities

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestPathAccessors(t *testing.T) {
	a := common.HexToAddress("0x0000000000000000000000000000000000000001")
	b := common.HexToAddress("0x0000000000000000000000000000000000000002")
	c := common.HexToAddress("0x0000000000000000000000000000000000000003")

	path := Path{a, b, c}
	if path.Origin() != a || path.Destination() != c {
		t.Errorf("Origin/Destination = %s/%s", path.Origin().Hex(), path.Destination().Hex())
	}
	if path.IsDirect() {
		t.Error("three-token path is not direct")
	}

	hops := path.Hops()
	if len(hops) != 2 {
		t.Fatalf("Hops() len = %d, want 2", len(hops))
	}
	if hops[1].TokenIn != b || hops[1].TokenOut != c {
		t.Errorf("second hop = %+v", hops[1])
	}

	direct := Path{a}
	if !direct.IsDirect() || direct.Hops() != nil {
		t.Error("single token path should be direct with no hops")
	}

	var empty Path
	if empty.Origin() != (common.Address{}) || empty.Destination() != (common.Address{}) {
		t.Error("empty path should report zero addresses")
	}
}

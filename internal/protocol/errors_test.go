package protocol

import "testing"

func TestIsKnownCode(t *testing.T) {
	cases := []string{
		"",
		ErrBadRequest,
		ErrLocationOccupied,
		ErrInvalidQuantity,
		ErrInvalidPrice,
		ErrNotTradable,
		ErrSelfTrade,
		ErrMaxShops,
		ErrNoLedger,
		ErrShopInactive,
		ErrNoStock,
		ErrNoSpace,
		ErrNoFunds,
		ErrNoItems,
		ErrCooldown,
		ErrConsistency,
	}
	for _, c := range cases {
		if !IsKnownCode(c) {
			t.Fatalf("expected known code: %q", c)
		}
	}
	if IsKnownCode("E_NOT_DEFINED") {
		t.Fatalf("expected unknown code rejected")
	}
}

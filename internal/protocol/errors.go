package protocol

const (
	// Validation: rejected before any mutation is attempted.
	ErrBadRequest       = "E_BAD_REQUEST"
	ErrLocationOccupied = "E_LOCATION_OCCUPIED"
	ErrInvalidQuantity  = "E_INVALID_QUANTITY"
	ErrInvalidPrice     = "E_INVALID_PRICE"
	ErrNotTradable      = "E_ITEM_NOT_TRADABLE"
	ErrSelfTrade        = "E_SELF_TRADE"
	ErrMaxShops         = "E_MAX_SHOPS"
	ErrNoLedger         = "E_NO_LEDGER"

	// Preconditions: checked against live resources, no state change.
	ErrShopInactive = "E_SHOP_INACTIVE"
	ErrNoStock      = "E_NO_STOCK"
	ErrNoSpace      = "E_NO_SPACE"
	ErrNoFunds      = "E_NO_FUNDS"
	ErrNoItems      = "E_NO_ITEMS"
	ErrCooldown     = "E_COOLDOWN"

	// Rollback failure: resources may be out of sync, needs operator attention.
	ErrConsistency = "E_CONSISTENCY"
)

var knownCodes = map[string]struct{}{
	ErrBadRequest:       {},
	ErrLocationOccupied: {},
	ErrInvalidQuantity:  {},
	ErrInvalidPrice:     {},
	ErrNotTradable:      {},
	ErrSelfTrade:        {},
	ErrMaxShops:         {},
	ErrNoLedger:         {},
	ErrShopInactive:     {},
	ErrNoStock:          {},
	ErrNoSpace:          {},
	ErrNoFunds:          {},
	ErrNoItems:          {},
	ErrCooldown:         {},
	ErrConsistency:      {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

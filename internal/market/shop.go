package market

import "time"

type ShopStatus string

const (
	StatusActive     ShopStatus = "ACTIVE"
	StatusInactive   ShopStatus = "INACTIVE"
	StatusOutOfStock ShopStatus = "OUT_OF_STOCK"
	StatusOutOfSpace ShopStatus = "OUT_OF_SPACE"
)

// Barter converts a shop into an item-for-item exchange: the actor gives
// RequiredQty of RequiredGood and receives OfferedQty of OfferedGood. While
// barter is set, both money prices are forced to zero.
type Barter struct {
	RequiredGood string
	RequiredQty  int
	OfferedGood  string
	OfferedQty   int
}

// Shop is the registry's entity record. The registry is the only writer;
// everything else reads it or requests mutations through registry methods.
type Shop struct {
	ID        string
	OwnerID   string
	OwnerName string

	// Both locations are required, distinct, and immutable after creation.
	Storage Location
	Sign    Location

	Good      string
	Quantity  int // lot size per transaction
	BuyPrice  float64
	SellPrice float64

	Barter *Barter // nil for money shops

	Active   bool
	Created  time.Time
	LastUsed time.Time
}

// A price of exactly zero disables that trade direction.
func (s *Shop) BuyEnabled() bool  { return s.Barter == nil && s.BuyPrice > 0 }
func (s *Shop) SellEnabled() bool { return s.Barter == nil && s.SellPrice > 0 }

func (s *Shop) BarterEnabled() bool { return s.Barter != nil }

// Status derives the presentation state from live storage. It is a pure
// function of shop state and stock; the stock/space values are never stored
// and revert on their own once the container changes.
func (s *Shop) Status(storage Inventory) ShopStatus {
	if !s.Active {
		return StatusInactive
	}
	if storage != nil {
		if s.BuyEnabled() && storage.Count(s.Good) == 0 {
			return StatusOutOfStock
		}
		if s.SellEnabled() && storage.FreeCapacity(s.Good) == 0 {
			return StatusOutOfSpace
		}
	}
	return StatusActive
}

// Entry is the flat persisted form of one shop, matching the shops.yml
// layout one key/value tree per shop id. Timestamps are unix millis.
type Entry struct {
	ID         string
	OwnerID    string
	OwnerName  string
	Storage    Location
	Sign       Location
	Good       string
	Quantity   int
	BuyPrice   float64
	SellPrice  float64
	Active     bool
	CreatedMS  int64
	LastUsedMS int64
	Barter     *BarterEntry
}

type BarterEntry struct {
	RequiredGood string
	RequiredQty  int
	OfferedGood  string
	OfferedQty   int
}

func (s *Shop) entry() Entry {
	e := Entry{
		ID:         s.ID,
		OwnerID:    s.OwnerID,
		OwnerName:  s.OwnerName,
		Storage:    s.Storage,
		Sign:       s.Sign,
		Good:       s.Good,
		Quantity:   s.Quantity,
		BuyPrice:   s.BuyPrice,
		SellPrice:  s.SellPrice,
		Active:     s.Active,
		CreatedMS:  s.Created.UnixMilli(),
		LastUsedMS: s.LastUsed.UnixMilli(),
	}
	if s.Barter != nil {
		e.Barter = &BarterEntry{
			RequiredGood: s.Barter.RequiredGood,
			RequiredQty:  s.Barter.RequiredQty,
			OfferedGood:  s.Barter.OfferedGood,
			OfferedQty:   s.Barter.OfferedQty,
		}
	}
	return e
}

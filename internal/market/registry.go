package market

import (
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"chestmarket.gg/internal/market/goods"
	"chestmarket.gg/internal/protocol"
)

// Registry is the single source of truth mapping shop identity and location
// to shop records. It owns every Shop it hands out: all mutations go through
// registry methods so the invariants are checked in one place, and the
// location index never observes a half-inserted record.
type Registry struct {
	cfg     Config
	catalog *goods.Catalog
	storage StorageResolver
	store   Store
	hooks   Hooks
	logger  *log.Logger
	now     func() time.Time

	mu    sync.RWMutex
	shops map[string]*Shop
	byLoc map[string]string // location key -> shop id
	order []string          // insertion order, for ByOwner/All
}

type RegistryDeps struct {
	Storage StorageResolver
	Store   Store
	Hooks   Hooks
	Logger  *log.Logger
	Now     func() time.Time
}

func NewRegistry(cfg Config, catalog *goods.Catalog, deps RegistryDeps) *Registry {
	r := &Registry{
		cfg:     cfg,
		catalog: catalog,
		storage: deps.Storage,
		store:   deps.Store,
		hooks:   deps.Hooks,
		logger:  deps.Logger,
		now:     deps.Now,
		shops:   map[string]*Shop{},
		byLoc:   map[string]string{},
	}
	if r.hooks == nil {
		r.hooks = NopHooks{}
	}
	if r.logger == nil {
		r.logger = log.New(os.Stdout, "[registry] ", log.LstdFlags)
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

type CreateParams struct {
	OwnerID   string
	OwnerName string
	Storage   Location
	Sign      Location
	Good      string
	Quantity  int
	BuyPrice  float64
	SellPrice float64
}

// Create validates and inserts a new money shop. On a rejected create the
// registry is left unchanged and the caller observes the specific error.
func (r *Registry) Create(p CreateParams) (*Shop, error) {
	if p.OwnerID == "" {
		return nil, reject(protocol.ErrBadRequest, "missing owner")
	}
	if !p.Storage.Valid() || !p.Sign.Valid() {
		return nil, reject(protocol.ErrBadRequest, "both chest and sign locations are required")
	}
	if p.Storage.Key() == p.Sign.Key() {
		return nil, reject(protocol.ErrBadRequest, "chest and sign must be distinct blocks")
	}
	if !r.cfg.RegionAllowed(p.Storage.Region) || !r.cfg.RegionAllowed(p.Sign.Region) {
		return nil, reject(protocol.ErrBadRequest, "shops are not allowed in region %s", p.Storage.Region)
	}
	if err := r.checkGood(p.Good); err != nil {
		return nil, err
	}
	if err := r.checkQuantity(p.Quantity); err != nil {
		return nil, err
	}
	if err := r.checkPrices(p.BuyPrice, p.SellPrice); err != nil {
		return nil, err
	}

	now := r.now()
	shop := &Shop{
		OwnerID:   p.OwnerID,
		OwnerName: p.OwnerName,
		Storage:   p.Storage,
		Sign:      p.Sign,
		Good:      p.Good,
		Quantity:  p.Quantity,
		BuyPrice:  p.BuyPrice,
		SellPrice: p.SellPrice,
		Active:    true,
		Created:   now,
		LastUsed:  now,
	}

	r.mu.Lock()
	if max := r.cfg.General.MaxShopsPerOwner; max > 0 && r.countByOwnerLocked(p.OwnerID) >= max {
		r.mu.Unlock()
		return nil, reject(protocol.ErrMaxShops, "shop limit reached (%d)", max)
	}
	if id, taken := r.byLoc[p.Storage.Key()]; taken {
		r.mu.Unlock()
		return nil, reject(protocol.ErrLocationOccupied, "chest location already used by shop %s", id)
	}
	if id, taken := r.byLoc[p.Sign.Key()]; taken {
		r.mu.Unlock()
		return nil, reject(protocol.ErrLocationOccupied, "sign location already used by shop %s", id)
	}
	shop.ID = r.newIDLocked()
	r.insertLocked(shop)
	r.mu.Unlock()

	// Fire-and-forget: a failed render is not a registry error.
	r.hooks.OnShopCreated(shop)
	return shop, nil
}

// Remove deletes a shop and both its index entries. Removing an absent id
// returns false, not an error.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	shop := r.shops[id]
	if shop == nil {
		r.mu.Unlock()
		return false
	}
	delete(r.shops, id)
	delete(r.byLoc, shop.Storage.Key())
	delete(r.byLoc, shop.Sign.Key())
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	r.hooks.OnShopRemoved(id)
	return true
}

// RemoveByLocation removes the shop whose chest or sign sits at loc. Used
// when a backing block is destroyed externally.
func (r *Registry) RemoveByLocation(loc Location) (string, bool) {
	r.mu.RLock()
	id, ok := r.byLoc[loc.Key()]
	r.mu.RUnlock()
	if !ok {
		return "", false
	}
	return id, r.Remove(id)
}

func (r *Registry) ByID(id string) (*Shop, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.shops[id]
	return s, ok
}

func (r *Registry) ByLocation(loc Location) (*Shop, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byLoc[loc.Key()]
	if !ok {
		return nil, false
	}
	return r.shops[id], true
}

// ByOwner returns the owner's shops in insertion order. The order is not
// guaranteed stable across reloads.
func (r *Registry) ByOwner(ownerID string) []*Shop {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Shop
	for _, id := range r.order {
		if s := r.shops[id]; s != nil && s.OwnerID == ownerID {
			out = append(out, s)
		}
	}
	return out
}

func (r *Registry) All() []*Shop {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Shop, 0, len(r.order))
	for _, id := range r.order {
		if s := r.shops[id]; s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.shops)
}

func (r *Registry) CountByOwner(ownerID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.countByOwnerLocked(ownerID)
}

// StatusOf derives the live status of a shop from its backing container.
func (r *Registry) StatusOf(s *Shop) ShopStatus {
	var inv Inventory
	if r.storage != nil {
		inv, _ = r.storage.StorageAt(s.Storage)
	}
	return s.Status(inv)
}

// SetPrices updates the money prices of a shop within the configured limits.
func (r *Registry) SetPrices(id string, buy, sell float64) error {
	return r.mutate(id, func(s *Shop) error {
		if s.Barter != nil {
			return reject(protocol.ErrBadRequest, "barter shop has no money prices")
		}
		if err := r.checkPrices(buy, sell); err != nil {
			return err
		}
		s.BuyPrice = buy
		s.SellPrice = sell
		return nil
	})
}

func (r *Registry) SetQuantity(id string, qty int) error {
	return r.mutate(id, func(s *Shop) error {
		if err := r.checkQuantity(qty); err != nil {
			return err
		}
		s.Quantity = qty
		return nil
	})
}

func (r *Registry) SetActive(id string, active bool) error {
	return r.mutate(id, func(s *Shop) error {
		s.Active = active
		return nil
	})
}

// ConvertToBarter switches a shop into item-for-item mode. Both money prices
// are forced to zero while barter terms are set.
func (r *Registry) ConvertToBarter(id string, b Barter) error {
	return r.mutate(id, func(s *Shop) error {
		if !r.cfg.Barter.Enabled {
			return reject(protocol.ErrBadRequest, "item trading is disabled")
		}
		if err := r.checkGood(b.RequiredGood); err != nil {
			return err
		}
		if err := r.checkGood(b.OfferedGood); err != nil {
			return err
		}
		if b.RequiredGood == b.OfferedGood {
			return reject(protocol.ErrBadRequest, "cannot trade a good for itself")
		}
		if err := r.checkQuantity(b.RequiredQty); err != nil {
			return err
		}
		if err := r.checkQuantity(b.OfferedQty); err != nil {
			return err
		}
		s.Barter = &b
		s.BuyPrice = 0
		s.SellPrice = 0
		return nil
	})
}

// Settle marks a shop as used after a successful trade. Price and ownership
// fields are never touched by settlement.
func (r *Registry) Settle(id string) error {
	return r.mutate(id, func(s *Shop) error {
		s.LastUsed = r.now()
		return nil
	})
}

// Load replaces in-memory state from the persistence store. Corrupt entries
// (unresolvable location, malformed identity, unknown good) are logged and
// skipped; they never abort loading of the remaining entries.
func (r *Registry) Load() error {
	if r.store == nil {
		return reject(protocol.ErrBadRequest, "no persistence store configured")
	}
	entries, err := r.store.LoadAll()
	if err != nil {
		return err
	}

	shops := map[string]*Shop{}
	byLoc := map[string]string{}
	var order []string
	for _, e := range entries {
		s, why := r.shopFromEntry(e)
		if s == nil {
			r.logger.Printf("skipping shop %s: %s", e.ID, why)
			continue
		}
		if _, dup := shops[s.ID]; dup {
			r.logger.Printf("skipping shop %s: duplicate id", s.ID)
			continue
		}
		if owner, taken := byLoc[s.Storage.Key()]; taken {
			r.logger.Printf("skipping shop %s: chest location already used by shop %s", s.ID, owner)
			continue
		}
		if owner, taken := byLoc[s.Sign.Key()]; taken {
			r.logger.Printf("skipping shop %s: sign location already used by shop %s", s.ID, owner)
			continue
		}
		shops[s.ID] = s
		byLoc[s.Storage.Key()] = s.ID
		byLoc[s.Sign.Key()] = s.ID
		order = append(order, s.ID)
	}

	r.mu.Lock()
	r.shops = shops
	r.byLoc = byLoc
	r.order = order
	r.mu.Unlock()

	r.logger.Printf("shops loaded: %d", len(shops))
	return nil
}

// Save writes the full registry snapshot through the store.
func (r *Registry) Save() error {
	if r.store == nil {
		return reject(protocol.ErrBadRequest, "no persistence store configured")
	}
	r.mu.RLock()
	entries := make([]Entry, 0, len(r.order))
	for _, id := range r.order {
		if s := r.shops[id]; s != nil {
			entries = append(entries, s.entry())
		}
	}
	r.mu.RUnlock()
	return r.store.SaveAll(entries)
}

func (r *Registry) shopFromEntry(e Entry) (*Shop, string) {
	if strings.TrimSpace(e.ID) == "" {
		return nil, "empty id"
	}
	if strings.TrimSpace(e.OwnerID) == "" {
		return nil, "malformed identity"
	}
	if !e.Storage.Valid() || !e.Sign.Valid() || e.Storage.Key() == e.Sign.Key() {
		return nil, "invalid locations"
	}
	if r.catalog != nil && !r.catalog.Known(e.Good) {
		return nil, "unknown good " + e.Good
	}
	if e.Quantity <= 0 {
		return nil, "invalid quantity"
	}
	if e.BuyPrice < 0 || e.SellPrice < 0 {
		return nil, "negative price"
	}
	s := &Shop{
		ID:        e.ID,
		OwnerID:   e.OwnerID,
		OwnerName: e.OwnerName,
		Storage:   e.Storage,
		Sign:      e.Sign,
		Good:      e.Good,
		Quantity:  e.Quantity,
		BuyPrice:  e.BuyPrice,
		SellPrice: e.SellPrice,
		Active:    e.Active,
		Created:   time.UnixMilli(e.CreatedMS),
		LastUsed:  time.UnixMilli(e.LastUsedMS),
	}
	if b := e.Barter; b != nil {
		if barterEntryValid(r.catalog, b) {
			s.Barter = &Barter{
				RequiredGood: b.RequiredGood,
				RequiredQty:  b.RequiredQty,
				OfferedGood:  b.OfferedGood,
				OfferedQty:   b.OfferedQty,
			}
			s.BuyPrice = 0
			s.SellPrice = 0
		} else {
			// Keep the shop, drop the broken barter terms.
			r.logger.Printf("shop %s: invalid barter terms, loading as money shop", e.ID)
		}
	}
	if s.Barter == nil && s.BuyPrice == 0 && s.SellPrice == 0 {
		return nil, "both trade directions disabled"
	}
	return s, ""
}

func barterEntryValid(cat *goods.Catalog, b *BarterEntry) bool {
	if b.RequiredGood == "" || b.OfferedGood == "" || b.RequiredGood == b.OfferedGood {
		return false
	}
	if b.RequiredQty < 1 || b.RequiredQty > 64 || b.OfferedQty < 1 || b.OfferedQty > 64 {
		return false
	}
	if cat != nil && (!cat.Known(b.RequiredGood) || !cat.Known(b.OfferedGood)) {
		return false
	}
	return true
}

func (r *Registry) mutate(id string, fn func(*Shop) error) error {
	r.mu.Lock()
	shop := r.shops[id]
	if shop == nil {
		r.mu.Unlock()
		return reject(protocol.ErrBadRequest, "unknown shop %s", id)
	}
	if err := fn(shop); err != nil {
		r.mu.Unlock()
		return err
	}
	r.mu.Unlock()

	r.hooks.OnShopChanged(shop)
	return nil
}

func (r *Registry) checkGood(good string) error {
	if r.catalog != nil && !r.catalog.Known(good) {
		return reject(protocol.ErrNotTradable, "unknown good %s", good)
	}
	if r.catalog != nil && !r.catalog.Tradable(good) {
		return reject(protocol.ErrNotTradable, "%s cannot be traded", good)
	}
	if r.cfg.GoodBanned(good) {
		return reject(protocol.ErrNotTradable, "%s is banned from trading", good)
	}
	return nil
}

func (r *Registry) checkQuantity(qty int) error {
	if qty < r.cfg.Shop.MinQuantity || qty > r.cfg.Shop.MaxQuantity {
		return reject(protocol.ErrInvalidQuantity, "quantity must be between %d and %d",
			r.cfg.Shop.MinQuantity, r.cfg.Shop.MaxQuantity)
	}
	return nil
}

// checkPrices enforces: no negatives, at least one direction enabled, and
// enabled directions inside the configured limits. Zero disables a direction.
func (r *Registry) checkPrices(buy, sell float64) error {
	if buy < 0 || sell < 0 {
		return reject(protocol.ErrInvalidPrice, "prices must not be negative")
	}
	if buy == 0 && sell == 0 {
		return reject(protocol.ErrInvalidPrice, "at least one of buy or sell price must be set")
	}
	pl := r.cfg.Shop.PriceLimits
	if buy > 0 && (buy < pl.MinBuy || buy > pl.MaxBuy) {
		return reject(protocol.ErrInvalidPrice, "buy price must be between %.2f and %.2f", pl.MinBuy, pl.MaxBuy)
	}
	if sell > 0 && (sell < pl.MinSell || sell > pl.MaxSell) {
		return reject(protocol.ErrInvalidPrice, "sell price must be between %.2f and %.2f", pl.MinSell, pl.MaxSell)
	}
	return nil
}

func (r *Registry) countByOwnerLocked(ownerID string) int {
	n := 0
	for _, s := range r.shops {
		if s.OwnerID == ownerID {
			n++
		}
	}
	return n
}

func (r *Registry) newIDLocked() string {
	for {
		id := uuid.NewString()[:8]
		if _, taken := r.shops[id]; !taken {
			return id
		}
	}
}

func (r *Registry) insertLocked(s *Shop) {
	r.shops[s.ID] = s
	r.byLoc[s.Storage.Key()] = s.ID
	r.byLoc[s.Sign.Key()] = s.ID
	r.order = append(r.order, s.ID)
}

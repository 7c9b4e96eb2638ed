package market

import (
	"log"
	"os"
	"strconv"
	"time"

	"chestmarket.gg/internal/market/goods"
	"chestmarket.gg/internal/protocol"
)

type TradeKind string

const (
	KindBuy    TradeKind = "BUY"
	KindSell   TradeKind = "SELL"
	KindBarter TradeKind = "BARTER"
)

// Party is the acting side of a trade: an identity plus its holdings.
type Party struct {
	ID   string
	Name string
	Inv  Inventory
}

// Receipt describes a settled trade: the terms that were actually executed.
type Receipt struct {
	Kind     TradeKind
	ShopID   string
	ActorID  string
	OwnerID  string
	Good     string
	Quantity int
	Price    float64

	// Barter trades: what the actor gave and received.
	Gave     *protocol.ItemStack
	Received *protocol.ItemStack

	// OwnerCredited is false when the owner could not be paid on a buy
	// (no open account); the trade completes regardless.
	OwnerCredited bool

	At time.Time
}

func (r Receipt) Event() protocol.TradeEvent {
	return protocol.TradeEvent{
		Type:          protocol.TypeTrade,
		Kind:          string(r.Kind),
		ShopID:        r.ShopID,
		ActorID:       r.ActorID,
		OwnerID:       r.OwnerID,
		Good:          r.Good,
		Quantity:      r.Quantity,
		Price:         r.Price,
		Gave:          r.Gave,
		Received:      r.Received,
		OwnerCredited: r.OwnerCredited,
		At:            r.At.UnixMilli(),
	}
}

// Engine executes a single trade as an atomic-from-the-caller's-view
// operation across the actor's holdings, the shop's chest, and two currency
// balances. It holds no shop state of its own: every record is borrowed for
// the duration of one call, and record mutations go through the registry.
type Engine struct {
	reg      *Registry
	ledger   Ledger
	stats    StatsSink
	notifier *Notifier
	cooldown *Tracker
	logger   *log.Logger
	now      func() time.Time
}

type EngineDeps struct {
	Ledger   Ledger
	Stats    StatsSink
	Notifier *Notifier
	Logger   *log.Logger
	Now      func() time.Time
}

func NewEngine(reg *Registry, deps EngineDeps) *Engine {
	e := &Engine{
		reg:      reg,
		ledger:   deps.Ledger,
		stats:    deps.Stats,
		notifier: deps.Notifier,
		logger:   deps.Logger,
		now:      deps.Now,
	}
	if e.logger == nil {
		e.logger = log.New(os.Stdout, "[engine] ", log.LstdFlags)
	}
	if e.now == nil {
		e.now = time.Now
	}
	e.cooldown = NewTracker(time.Duration(reg.cfg.Barter.CooldownSeconds)*time.Second, e.now)
	return e
}

// Cooldowns exposes the barter cooldown tracker so the host can sweep or
// clear it on reload.
func (e *Engine) Cooldowns() *Tracker { return e.cooldown }

// Buy moves one lot of the shop's good to the actor for the buy price.
// Preconditions are checked in order before any mutation; the first failure
// wins. The inventory-room check runs up front specifically so a late grant
// failure never forces reversing a currency transfer.
func (e *Engine) Buy(actor Party, shop *Shop) (Receipt, error) {
	if e.ledger == nil {
		return Receipt{}, reject(protocol.ErrNoLedger, "no currency provider configured")
	}
	if actor.Inv == nil {
		return Receipt{}, reject(protocol.ErrBadRequest, "actor has no inventory")
	}
	if shop.BarterEnabled() {
		return Receipt{}, reject(protocol.ErrBadRequest, "this is an item trading shop")
	}
	storage, ok := e.storageFor(shop)
	if !ok {
		return Receipt{}, reject(protocol.ErrNoStock, "shop chest is unreachable")
	}

	good, qty, price := shop.Good, shop.Quantity, shop.BuyPrice
	if !shop.Active {
		return Receipt{}, reject(protocol.ErrShopInactive, "shop is inactive")
	}
	if price <= 0 {
		return Receipt{}, reject(protocol.ErrInvalidPrice, "buying is disabled at this shop")
	}
	if storage.Count(good) < qty {
		return Receipt{}, reject(protocol.ErrNoStock, "shop has only %d of %s", storage.Count(good), goods.DisplayName(good))
	}
	if !e.ledger.HasAtLeast(actor.ID, price) {
		return Receipt{}, reject(protocol.ErrNoFunds, "you need %s", formatMoney(price))
	}
	if actor.Inv.FreeCapacity(good) < qty {
		return Receipt{}, reject(protocol.ErrNoSpace, "no room for %dx %s", qty, goods.DisplayName(good))
	}

	ownerCredited := false
	err := e.run([]step{
		{
			name:   "take stock",
			code:   protocol.ErrNoStock,
			reason: "shop is out of stock",
			apply:  func() bool { return storage.Remove(good, qty) },
			revert: func() bool { return storage.Add(good, qty) },
		},
		{
			name:   "charge buyer",
			code:   protocol.ErrNoFunds,
			reason: "you cannot afford " + formatMoney(price),
			apply:  func() bool { return e.ledger.Withdraw(actor.ID, price) },
			revert: func() bool { return e.ledger.Deposit(actor.ID, price) },
		},
		{
			// Best-effort: an owner with no open account does not fail the
			// trade and never triggers a rollback.
			name:  "credit owner",
			apply: func() bool { ownerCredited = e.ledger.Deposit(shop.OwnerID, price); return true },
			revert: func() bool {
				if !ownerCredited {
					return true
				}
				return e.ledger.Withdraw(shop.OwnerID, price)
			},
		},
		{
			name:   "grant goods",
			code:   protocol.ErrNoSpace,
			reason: "your inventory is full",
			apply:  func() bool { return actor.Inv.Add(good, qty) },
			revert: func() bool { return actor.Inv.Remove(good, qty) },
		},
	})
	if err != nil {
		return Receipt{}, err
	}

	rcpt := Receipt{
		Kind: KindBuy, ShopID: shop.ID, ActorID: actor.ID, OwnerID: shop.OwnerID,
		Good: good, Quantity: qty, Price: price, OwnerCredited: ownerCredited, At: e.now(),
	}
	e.settle(shop, storage, rcpt)
	return rcpt, nil
}

// Sell is the mirror of Buy: the actor gives one lot of the good to the shop
// for the sell price, paid from the owner's live balance. The owner balance
// is checked at trade time; there is no escrow, so a shop can advertise a
// sell price its owner cannot currently honor.
func (e *Engine) Sell(actor Party, shop *Shop) (Receipt, error) {
	if e.ledger == nil {
		return Receipt{}, reject(protocol.ErrNoLedger, "no currency provider configured")
	}
	if actor.Inv == nil {
		return Receipt{}, reject(protocol.ErrBadRequest, "actor has no inventory")
	}
	if shop.BarterEnabled() {
		return Receipt{}, reject(protocol.ErrBadRequest, "this is an item trading shop")
	}
	storage, ok := e.storageFor(shop)
	if !ok {
		return Receipt{}, reject(protocol.ErrNoSpace, "shop chest is unreachable")
	}

	good, qty, price := shop.Good, shop.Quantity, shop.SellPrice
	if !shop.Active {
		return Receipt{}, reject(protocol.ErrShopInactive, "shop is inactive")
	}
	if price <= 0 {
		return Receipt{}, reject(protocol.ErrInvalidPrice, "selling is disabled at this shop")
	}
	if storage.FreeCapacity(good) < qty {
		return Receipt{}, reject(protocol.ErrNoSpace, "shop chest has no room for %dx %s", qty, goods.DisplayName(good))
	}
	if actor.Inv.Count(good) < qty {
		return Receipt{}, reject(protocol.ErrNoItems, "you need %dx %s", qty, goods.DisplayName(good))
	}
	if !e.ledger.HasAtLeast(shop.OwnerID, price) {
		return Receipt{}, reject(protocol.ErrNoFunds, "the shop owner cannot afford %s", formatMoney(price))
	}

	err := e.run([]step{
		{
			name:   "collect goods",
			code:   protocol.ErrNoItems,
			reason: "you do not have enough items",
			apply:  func() bool { return actor.Inv.Remove(good, qty) },
			revert: func() bool { return actor.Inv.Add(good, qty) },
		},
		{
			name:   "stock shop",
			code:   protocol.ErrNoSpace,
			reason: "shop chest is full",
			apply:  func() bool { return storage.Add(good, qty) },
			revert: func() bool { return storage.Remove(good, qty) },
		},
		{
			name:   "charge owner",
			code:   protocol.ErrNoFunds,
			reason: "the shop owner cannot afford " + formatMoney(price),
			apply:  func() bool { return e.ledger.Withdraw(shop.OwnerID, price) },
			revert: func() bool { return e.ledger.Deposit(shop.OwnerID, price) },
		},
		{
			name:   "pay seller",
			code:   protocol.ErrNoFunds,
			reason: "payout failed",
			apply:  func() bool { return e.ledger.Deposit(actor.ID, price) },
			revert: func() bool { return e.ledger.Withdraw(actor.ID, price) },
		},
	})
	if err != nil {
		return Receipt{}, err
	}

	rcpt := Receipt{
		Kind: KindSell, ShopID: shop.ID, ActorID: actor.ID, OwnerID: shop.OwnerID,
		Good: good, Quantity: qty, Price: price, OwnerCredited: true, At: e.now(),
	}
	e.settle(shop, storage, rcpt)
	return rcpt, nil
}

// Barter exchanges the shop's required good for its offered good, no
// currency involved. Self-trade is rejected outright, independent of any
// other check.
func (e *Engine) Barter(actor Party, shop *Shop) (Receipt, error) {
	if actor.Inv == nil {
		return Receipt{}, reject(protocol.ErrBadRequest, "actor has no inventory")
	}
	if actor.ID == shop.OwnerID {
		return Receipt{}, reject(protocol.ErrSelfTrade, "you cannot trade with your own shop")
	}
	b := shop.Barter
	if b == nil {
		return Receipt{}, reject(protocol.ErrBadRequest, "this shop does not trade items")
	}
	if !shop.Active {
		return Receipt{}, reject(protocol.ErrShopInactive, "shop is inactive")
	}
	if rem := e.cooldown.Remaining(actor.ID); rem > 0 {
		secs := int64(rem.Seconds())
		if secs == 0 {
			secs = 1
		}
		rej := reject(protocol.ErrCooldown, "wait %d more seconds before trading again", secs)
		rej.CooldownSeconds = secs
		return Receipt{}, rej
	}
	storage, ok := e.storageFor(shop)
	if !ok {
		return Receipt{}, reject(protocol.ErrNoStock, "shop chest is unreachable")
	}

	if actor.Inv.Count(b.RequiredGood) < b.RequiredQty {
		return Receipt{}, reject(protocol.ErrNoItems, "you need %dx %s", b.RequiredQty, goods.DisplayName(b.RequiredGood))
	}
	if actor.Inv.FreeCapacity(b.OfferedGood) < b.OfferedQty {
		return Receipt{}, reject(protocol.ErrNoSpace, "no room for %dx %s", b.OfferedQty, goods.DisplayName(b.OfferedGood))
	}
	if storage.Count(b.OfferedGood) < b.OfferedQty {
		return Receipt{}, reject(protocol.ErrNoStock, "shop has only %d of %s", storage.Count(b.OfferedGood), goods.DisplayName(b.OfferedGood))
	}
	if storage.FreeCapacity(b.RequiredGood) < b.RequiredQty {
		return Receipt{}, reject(protocol.ErrNoSpace, "shop chest has no room for %dx %s", b.RequiredQty, goods.DisplayName(b.RequiredGood))
	}

	err := e.run([]step{
		{
			name:   "collect required goods",
			code:   protocol.ErrNoItems,
			reason: "you do not have the required items",
			apply:  func() bool { return actor.Inv.Remove(b.RequiredGood, b.RequiredQty) },
			revert: func() bool { return actor.Inv.Add(b.RequiredGood, b.RequiredQty) },
		},
		{
			name:   "store required goods",
			code:   protocol.ErrNoSpace,
			reason: "shop chest is full",
			apply:  func() bool { return storage.Add(b.RequiredGood, b.RequiredQty) },
			revert: func() bool { return storage.Remove(b.RequiredGood, b.RequiredQty) },
		},
		{
			name:   "take offered goods",
			code:   protocol.ErrNoStock,
			reason: "shop is out of stock",
			apply:  func() bool { return storage.Remove(b.OfferedGood, b.OfferedQty) },
			revert: func() bool { return storage.Add(b.OfferedGood, b.OfferedQty) },
		},
		{
			name:   "grant offered goods",
			code:   protocol.ErrNoSpace,
			reason: "your inventory is full",
			apply:  func() bool { return actor.Inv.Add(b.OfferedGood, b.OfferedQty) },
			revert: func() bool { return actor.Inv.Remove(b.OfferedGood, b.OfferedQty) },
		},
	})
	if err != nil {
		return Receipt{}, err
	}

	e.cooldown.Mark(actor.ID)
	rcpt := Receipt{
		Kind: KindBarter, ShopID: shop.ID, ActorID: actor.ID, OwnerID: shop.OwnerID,
		Gave:     &protocol.ItemStack{Item: b.RequiredGood, Count: b.RequiredQty},
		Received: &protocol.ItemStack{Item: b.OfferedGood, Count: b.OfferedQty},
		At:       e.now(),
	}
	e.settle(shop, storage, rcpt)
	return rcpt, nil
}

func (e *Engine) storageFor(shop *Shop) (Inventory, bool) {
	if e.reg.storage == nil {
		return nil, false
	}
	return e.reg.storage.StorageAt(shop.Storage)
}

// settle runs the post-trade side effects: last-used timestamp (through the
// registry, which also refreshes presentation), stock notifications, stats,
// and the transaction log line.
func (e *Engine) settle(shop *Shop, storage Inventory, r Receipt) {
	if err := e.reg.Settle(shop.ID); err != nil {
		e.logger.Printf("settle %s: %v", shop.ID, err)
	}
	if e.notifier != nil {
		switch r.Kind {
		case KindBuy:
			e.notifier.CheckLowStock(shop, storage)
		case KindSell:
			e.notifier.CheckFullShop(shop, storage)
		}
	}
	if e.stats != nil && e.reg.cfg.Statistics.Enabled {
		e.stats.RecordTrade(r)
	}
	if e.reg.cfg.Logging.LogTrades {
		switch r.Kind {
		case KindBarter:
			e.logger.Printf("BARTER: %s traded %dx %s for %dx %s at shop %s",
				r.ActorID, r.Gave.Count, r.Gave.Item, r.Received.Count, r.Received.Item, r.ShopID)
		default:
			e.logger.Printf("%s: %s %dx %s for %s at shop %s (owner %s)",
				r.Kind, r.ActorID, r.Quantity, r.Good, formatMoney(r.Price), r.ShopID, r.OwnerID)
		}
	}
}

func formatMoney(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

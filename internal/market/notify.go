package market

import (
	"fmt"
	"sync"
	"time"

	"chestmarket.gg/internal/market/goods"
)

type noticeKind string

const (
	noticeLowStock noticeKind = "low_stock"
	noticeFullShop noticeKind = "full_shop"
)

// Notifier sends owners low-stock and full-chest notices after trades.
// Each (shop, kind) pair fires at most once per window so a busy shop does
// not flood its owner.
type Notifier struct {
	cfg   NotificationsConfig
	hooks Hooks
	now   func() time.Time

	mu   sync.Mutex
	sent map[string]time.Time // shopID+"/"+kind -> last sent
}

func NewNotifier(cfg NotificationsConfig, hooks Hooks, now func() time.Time) *Notifier {
	if hooks == nil {
		hooks = NopHooks{}
	}
	if now == nil {
		now = time.Now
	}
	return &Notifier{
		cfg:   cfg,
		hooks: hooks,
		now:   now,
		sent:  map[string]time.Time{},
	}
}

// CheckLowStock runs after a buy: when remaining stock covers fewer than
// the threshold lots, the owner is told to restock.
func (n *Notifier) CheckLowStock(shop *Shop, storage Inventory) {
	if !n.cfg.LowStockEnabled || storage == nil || !shop.BuyEnabled() {
		return
	}
	remaining := storage.Count(shop.Good)
	if shop.Quantity <= 0 || remaining/shop.Quantity >= n.cfg.LowStockThreshold {
		return
	}
	if !n.claim(shop.ID, noticeLowStock) {
		return
	}
	n.hooks.Notify(shop.OwnerID, fmt.Sprintf("Your shop at %s is running low: %d %s left",
		shop.Storage.String(), remaining, goods.DisplayName(shop.Good)))
}

// CheckFullShop runs after a sell: a chest with no room left for the good
// means the shop stops accepting until the owner empties it.
func (n *Notifier) CheckFullShop(shop *Shop, storage Inventory) {
	if !n.cfg.FullShopEnabled || storage == nil || !shop.SellEnabled() {
		return
	}
	if storage.FreeCapacity(shop.Good) >= shop.Quantity {
		return
	}
	if !n.claim(shop.ID, noticeFullShop) {
		return
	}
	n.hooks.Notify(shop.OwnerID, fmt.Sprintf("Your shop at %s is full and cannot buy more %s",
		shop.Storage.String(), goods.DisplayName(shop.Good)))
}

// claim reports whether this (shop, kind) notice may fire now, and records
// the attempt when it may.
func (n *Notifier) claim(shopID string, kind noticeKind) bool {
	window := time.Duration(n.cfg.WindowSeconds) * time.Second
	key := shopID + "/" + string(kind)

	n.mu.Lock()
	defer n.mu.Unlock()
	if at, ok := n.sent[key]; ok && n.now().Sub(at) < window {
		return false
	}
	n.sent[key] = n.now()
	return true
}

// Forget clears the notice history of a removed shop.
func (n *Notifier) Forget(shopID string) {
	n.mu.Lock()
	delete(n.sent, shopID+"/"+string(noticeLowStock))
	delete(n.sent, shopID+"/"+string(noticeFullShop))
	n.mu.Unlock()
}

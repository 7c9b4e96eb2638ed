package market_test

import (
	"testing"
	"time"

	"chestmarket.gg/internal/market"
	"chestmarket.gg/internal/markettest"
	"chestmarket.gg/internal/protocol"
)

func TestBuyMovesGoodsAndMoney(t *testing.T) {
	env := markettest.New(t)
	shop := env.NewShop("bob", "IRON_INGOT", 16, 12.5, 0)
	env.Stock(shop, "IRON_INGOT", 64)
	env.Ledger.SetBalance("bob", 0)
	alice := env.Actor("alice", 100)

	rcpt, err := env.Eng.Buy(alice, shop)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if rcpt.Kind != market.KindBuy || rcpt.Quantity != 16 || rcpt.Price != 12.5 {
		t.Fatalf("unexpected receipt: %+v", rcpt)
	}
	if !rcpt.OwnerCredited {
		t.Fatalf("owner should be credited")
	}
	if got := alice.Inv.Count("IRON_INGOT"); got != 16 {
		t.Fatalf("buyer items = %d, want 16", got)
	}
	if got := env.StorageFor(shop).Count("IRON_INGOT"); got != 48 {
		t.Fatalf("shop stock = %d, want 48", got)
	}
	if got := env.Ledger.Balance("alice"); got != 87.5 {
		t.Fatalf("buyer balance = %.2f, want 87.50", got)
	}
	if got := env.Ledger.Balance("bob"); got != 12.5 {
		t.Fatalf("owner balance = %.2f, want 12.50", got)
	}
	if env.Stats.Count() != 1 {
		t.Fatalf("stats receipts = %d, want 1", env.Stats.Count())
	}
}

func TestBuyExactBalanceDrainsBuyerAndEmptiesShop(t *testing.T) {
	env := markettest.New(t)
	shop := env.NewShop("bob", "COAL", 5, 10, 0)
	env.Stock(shop, "COAL", 5)
	env.Ledger.SetBalance("bob", 0)
	alice := env.Actor("alice", 10)

	if _, err := env.Eng.Buy(alice, shop); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if got := env.Ledger.Balance("alice"); got != 0 {
		t.Fatalf("buyer balance = %.2f, want 0", got)
	}
	if got := env.Ledger.Balance("bob"); got != 10 {
		t.Fatalf("owner balance = %.2f, want 10", got)
	}
	if got := env.StorageFor(shop).Count("COAL"); got != 0 {
		t.Fatalf("shop stock = %d, want 0", got)
	}
	if got := env.Reg.StatusOf(shop); got != market.StatusOutOfStock {
		t.Fatalf("status = %s, want OUT_OF_STOCK", got)
	}

	// A second buy must fail on stock before touching any balance.
	if _, err := env.Eng.Buy(alice, shop); err == nil {
		t.Fatalf("expected rejection on empty shop")
	}
}

func TestBuyPreconditionOrderAndNoMutation(t *testing.T) {
	env := markettest.New(t)
	shop := env.NewShop("bob", "COAL", 10, 5, 0)
	env.Stock(shop, "COAL", 4) // short of one lot
	alice := env.Actor("alice", 100)

	before := env.Ledger.Total()
	_, err := env.Eng.Buy(alice, shop)
	markettest.WantReject(t, err, protocol.ErrNoStock)

	if got := env.Ledger.Total(); got != before {
		t.Fatalf("balances changed on rejected buy: %.2f -> %.2f", before, got)
	}
	if got := env.StorageFor(shop).Count("COAL"); got != 4 {
		t.Fatalf("stock changed on rejected buy: %d", got)
	}
	if got := alice.Inv.Count("COAL"); got != 0 {
		t.Fatalf("buyer received items on rejected buy: %d", got)
	}

	// With stock present the funds check is next in line.
	env.Stock(shop, "COAL", 6)
	poor := env.Actor("poor", 1)
	_, err = env.Eng.Buy(poor, shop)
	markettest.WantReject(t, err, protocol.ErrNoFunds)
}

func TestBuyInactiveShopRejected(t *testing.T) {
	env := markettest.New(t)
	shop := env.NewShop("bob", "COAL", 1, 1, 0)
	env.Stock(shop, "COAL", 64)
	if err := env.Reg.SetActive(shop.ID, false); err != nil {
		t.Fatalf("set active: %v", err)
	}
	alice := env.Actor("alice", 100)

	_, err := env.Eng.Buy(alice, shop)
	markettest.WantReject(t, err, protocol.ErrShopInactive)
}

func TestBuyOwnerWithoutAccountStillCompletes(t *testing.T) {
	env := markettest.New(t)
	shop := env.NewShop("bob", "COAL", 4, 8, 0)
	env.Stock(shop, "COAL", 8)
	env.Ledger.FailDeposit["bob"] = true
	alice := env.Actor("alice", 20)

	rcpt, err := env.Eng.Buy(alice, shop)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if rcpt.OwnerCredited {
		t.Fatalf("owner credit should be reported as failed")
	}
	if got := alice.Inv.Count("COAL"); got != 4 {
		t.Fatalf("buyer items = %d, want 4", got)
	}
	if got := env.Ledger.Balance("alice"); got != 12 {
		t.Fatalf("buyer balance = %.2f, want 12", got)
	}
}

// failAddInv passes the capacity precondition but fails the final grant,
// forcing the rollback path.
type failAddInv struct {
	market.Inventory
}

func (f failAddInv) Add(good string, n int) bool { return false }

func TestBuyRollbackRestoresEverything(t *testing.T) {
	env := markettest.New(t)
	shop := env.NewShop("bob", "COAL", 6, 9, 0)
	env.Stock(shop, "COAL", 12)
	env.Ledger.SetBalance("bob", 5)
	alice := env.Actor("alice", 50)
	broken := market.Party{ID: alice.ID, Name: alice.Name, Inv: failAddInv{alice.Inv}}

	_, err := env.Eng.Buy(broken, shop)
	markettest.WantReject(t, err, protocol.ErrNoSpace)

	if got := env.StorageFor(shop).Count("COAL"); got != 12 {
		t.Fatalf("stock = %d, want 12 after rollback", got)
	}
	if got := env.Ledger.Balance("alice"); got != 50 {
		t.Fatalf("buyer balance = %.2f, want 50 after rollback", got)
	}
	if got := env.Ledger.Balance("bob"); got != 5 {
		t.Fatalf("owner balance = %.2f, want 5 after rollback", got)
	}
	if env.Stats.Count() != 0 {
		t.Fatalf("rolled-back trade must not reach stats")
	}
}

func TestBuyFailedRollbackEscalates(t *testing.T) {
	env := markettest.New(t)
	shop := env.NewShop("bob", "COAL", 6, 9, 0)
	env.Stock(shop, "COAL", 12)
	env.Ledger.SetBalance("bob", 5)
	alice := env.Actor("alice", 50)
	broken := market.Party{ID: alice.ID, Name: alice.Name, Inv: failAddInv{alice.Inv}}

	// Grant fails, then the refund of the buyer's charge fails too.
	env.Ledger.FailDeposit["alice"] = true

	_, err := env.Eng.Buy(broken, shop)
	markettest.WantReject(t, err, protocol.ErrConsistency)

	// The broken refund must not stop the remaining reverts: the owner's
	// credit and the chest stock both come back; only the buyer's charge
	// stays desynced.
	if got := env.Ledger.Balance("bob"); got != 5 {
		t.Fatalf("owner balance = %.2f, want 5 after partial rollback", got)
	}
	if got := env.StorageFor(shop).Count("COAL"); got != 12 {
		t.Fatalf("stock = %d, want 12 after partial rollback", got)
	}
	if got := env.Ledger.Balance("alice"); got != 41 {
		t.Fatalf("buyer balance = %.2f, want 41 (charge not refundable)", got)
	}
}

func TestSellMovesGoodsAndMoney(t *testing.T) {
	env := markettest.New(t)
	shop := env.NewShop("bob", "WHEAT", 32, 0, 8)
	env.Ledger.SetBalance("bob", 100)
	carol := env.Actor("carol", 0)
	env.Give(carol, "WHEAT", 40)

	rcpt, err := env.Eng.Sell(carol, shop)
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if rcpt.Kind != market.KindSell {
		t.Fatalf("kind = %s", rcpt.Kind)
	}
	if got := carol.Inv.Count("WHEAT"); got != 8 {
		t.Fatalf("seller items = %d, want 8", got)
	}
	if got := env.StorageFor(shop).Count("WHEAT"); got != 32 {
		t.Fatalf("shop stock = %d, want 32", got)
	}
	if got := env.Ledger.Balance("carol"); got != 8 {
		t.Fatalf("seller balance = %.2f, want 8", got)
	}
	if got := env.Ledger.Balance("bob"); got != 92 {
		t.Fatalf("owner balance = %.2f, want 92", got)
	}
}

func TestSellPoorOwnerNeverTouchesInventories(t *testing.T) {
	env := markettest.New(t)
	shop := env.NewShop("bob", "WHEAT", 32, 0, 8)
	env.Ledger.SetBalance("bob", 7.99)
	carol := env.Actor("carol", 0)
	env.Give(carol, "WHEAT", 32)

	_, err := env.Eng.Sell(carol, shop)
	markettest.WantReject(t, err, protocol.ErrNoFunds)

	if got := carol.Inv.Count("WHEAT"); got != 32 {
		t.Fatalf("seller items = %d, want 32", got)
	}
	if got := env.StorageFor(shop).Count("WHEAT"); got != 0 {
		t.Fatalf("shop stock = %d, want 0", got)
	}
	if got := env.Ledger.Balance("carol"); got != 0 {
		t.Fatalf("seller balance = %.2f, want 0", got)
	}
}

func TestSellRollbackRestoresEverything(t *testing.T) {
	env := markettest.New(t)
	shop := env.NewShop("bob", "WHEAT", 32, 0, 8)
	env.Ledger.SetBalance("bob", 100)
	// Passes the balance precondition, then fails the charge itself after
	// the goods have already moved into the chest.
	env.Ledger.FailWithdraw["bob"] = true
	carol := env.Actor("carol", 0)
	env.Give(carol, "WHEAT", 40)

	_, err := env.Eng.Sell(carol, shop)
	markettest.WantReject(t, err, protocol.ErrNoFunds)

	if got := carol.Inv.Count("WHEAT"); got != 40 {
		t.Fatalf("seller items = %d, want 40 after rollback", got)
	}
	if got := env.StorageFor(shop).Count("WHEAT"); got != 0 {
		t.Fatalf("shop stock = %d, want 0 after rollback", got)
	}
	if got := env.Ledger.Balance("bob"); got != 100 {
		t.Fatalf("owner balance = %.2f, want 100 after rollback", got)
	}
	if got := env.Ledger.Balance("carol"); got != 0 {
		t.Fatalf("seller balance = %.2f, want 0 after rollback", got)
	}
	if env.Stats.Count() != 0 {
		t.Fatalf("rolled-back trade must not reach stats")
	}
}

func TestSellWithoutItemsRejected(t *testing.T) {
	env := markettest.New(t)
	shop := env.NewShop("bob", "WHEAT", 32, 0, 8)
	env.Ledger.SetBalance("bob", 100)
	carol := env.Actor("carol", 0)
	env.Give(carol, "WHEAT", 31)

	_, err := env.Eng.Sell(carol, shop)
	markettest.WantReject(t, err, protocol.ErrNoItems)
}

func TestSellDirectionDisabledRejected(t *testing.T) {
	env := markettest.New(t)
	shop := env.NewShop("bob", "WHEAT", 32, 5, 0) // buy-only
	env.Ledger.SetBalance("bob", 100)
	carol := env.Actor("carol", 0)
	env.Give(carol, "WHEAT", 32)

	_, err := env.Eng.Sell(carol, shop)
	markettest.WantReject(t, err, protocol.ErrInvalidPrice)
}

func TestBarterExchangesItems(t *testing.T) {
	env := markettest.New(t)
	shop := env.NewBarterShop("bob", market.Barter{
		RequiredGood: "COAL", RequiredQty: 8,
		OfferedGood: "DIAMOND", OfferedQty: 1,
	})
	env.Stock(shop, "DIAMOND", 3)
	alice := env.Actor("alice", 0)
	env.Give(alice, "COAL", 20)

	rcpt, err := env.Eng.Barter(alice, shop)
	if err != nil {
		t.Fatalf("barter: %v", err)
	}
	if rcpt.Gave == nil || rcpt.Gave.Item != "COAL" || rcpt.Gave.Count != 8 {
		t.Fatalf("gave = %+v", rcpt.Gave)
	}
	if rcpt.Received == nil || rcpt.Received.Item != "DIAMOND" || rcpt.Received.Count != 1 {
		t.Fatalf("received = %+v", rcpt.Received)
	}
	if got := alice.Inv.Count("COAL"); got != 12 {
		t.Fatalf("actor coal = %d, want 12", got)
	}
	if got := alice.Inv.Count("DIAMOND"); got != 1 {
		t.Fatalf("actor diamonds = %d, want 1", got)
	}
	st := env.StorageFor(shop)
	if got := st.Count("COAL"); got != 8 {
		t.Fatalf("shop coal = %d, want 8", got)
	}
	if got := st.Count("DIAMOND"); got != 2 {
		t.Fatalf("shop diamonds = %d, want 2", got)
	}
}

func TestBarterConservesItemTotals(t *testing.T) {
	env := markettest.New(t)
	shop := env.NewBarterShop("bob", market.Barter{
		RequiredGood: "COAL", RequiredQty: 4,
		OfferedGood: "IRON_INGOT", OfferedQty: 2,
	})
	env.Stock(shop, "IRON_INGOT", 10)
	alice := env.Actor("alice", 0)
	env.Give(alice, "COAL", 16)

	st := env.StorageFor(shop)
	coalBefore := markettest.TotalOf("COAL", alice.Inv, st)
	ironBefore := markettest.TotalOf("IRON_INGOT", alice.Inv, st)

	for i := 0; i < 3; i++ {
		if _, err := env.Eng.Barter(alice, shop); err != nil {
			t.Fatalf("barter %d: %v", i, err)
		}
		env.Advance(5 * time.Second)
	}

	if got := markettest.TotalOf("COAL", alice.Inv, st); got != coalBefore {
		t.Fatalf("coal total changed: %d -> %d", coalBefore, got)
	}
	if got := markettest.TotalOf("IRON_INGOT", alice.Inv, st); got != ironBefore {
		t.Fatalf("iron total changed: %d -> %d", ironBefore, got)
	}
}

func TestBarterSelfTradeRejectedFirst(t *testing.T) {
	env := markettest.New(t)
	shop := env.NewBarterShop("bob", market.Barter{
		RequiredGood: "COAL", RequiredQty: 8,
		OfferedGood: "DIAMOND", OfferedQty: 1,
	})
	// Even with every other precondition failing, self-trade wins.
	if err := env.Reg.SetActive(shop.ID, false); err != nil {
		t.Fatalf("set active: %v", err)
	}
	bob := env.Actor("bob", 0)

	_, err := env.Eng.Barter(bob, shop)
	markettest.WantReject(t, err, protocol.ErrSelfTrade)
}

func TestBarterCooldownRejectsThenRecovers(t *testing.T) {
	env := markettest.New(t)
	shop := env.NewBarterShop("bob", market.Barter{
		RequiredGood: "COAL", RequiredQty: 1,
		OfferedGood: "DIAMOND", OfferedQty: 1,
	})
	env.Stock(shop, "DIAMOND", 10)
	alice := env.Actor("alice", 0)
	env.Give(alice, "COAL", 10)

	if _, err := env.Eng.Barter(alice, shop); err != nil {
		t.Fatalf("first barter: %v", err)
	}

	env.Advance(time.Second)
	_, err := env.Eng.Barter(alice, shop)
	markettest.WantReject(t, err, protocol.ErrCooldown)
	if rej, ok := err.(*market.Reject); !ok || rej.CooldownSeconds <= 0 {
		t.Fatalf("cooldown rejection must carry remaining seconds: %v", err)
	}

	env.Advance(3 * time.Second)
	if _, err := env.Eng.Barter(alice, shop); err != nil {
		t.Fatalf("barter after cooldown: %v", err)
	}
}

func TestBarterRollbackOnShopOverflow(t *testing.T) {
	env := markettest.New(t)
	shop := env.NewBarterShop("bob", market.Barter{
		RequiredGood: "COAL", RequiredQty: 8,
		OfferedGood: "DIAMOND", OfferedQty: 1,
	})
	// Fill the chest completely so storing the required goods must fail at
	// the precondition, leaving everything untouched.
	st := env.StorageFor(shop)
	if !st.Add("DIAMOND", 27*64) {
		t.Fatalf("fill chest")
	}
	alice := env.Actor("alice", 0)
	env.Give(alice, "COAL", 8)

	_, err := env.Eng.Barter(alice, shop)
	markettest.WantReject(t, err, protocol.ErrNoSpace)
	if got := alice.Inv.Count("COAL"); got != 8 {
		t.Fatalf("actor coal = %d, want 8", got)
	}
}

func TestMoneyConservationAcrossTrades(t *testing.T) {
	env := markettest.New(t)
	buyShop := env.NewShop("bob", "COAL", 8, 10, 0)
	sellShop := env.NewShop("bob", "WHEAT", 16, 0, 6)
	env.Stock(buyShop, "COAL", 64)
	env.Ledger.SetBalance("bob", 100)
	alice := env.Actor("alice", 50)
	env.Give(alice, "WHEAT", 64)

	before := env.Ledger.Total()

	if _, err := env.Eng.Buy(alice, buyShop); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if _, err := env.Eng.Sell(alice, sellShop); err != nil {
		t.Fatalf("sell: %v", err)
	}
	if _, err := env.Eng.Buy(alice, buyShop); err != nil {
		t.Fatalf("second buy: %v", err)
	}

	if got := env.Ledger.Total(); got != before {
		t.Fatalf("money not conserved: %.2f -> %.2f", before, got)
	}
}

func TestTradeOnMoneyShopViaBarterRejected(t *testing.T) {
	env := markettest.New(t)
	shop := env.NewShop("bob", "COAL", 8, 10, 0)
	alice := env.Actor("alice", 50)

	_, err := env.Eng.Barter(alice, shop)
	markettest.WantReject(t, err, protocol.ErrBadRequest)
}

func TestBuyOnBarterShopRejected(t *testing.T) {
	env := markettest.New(t)
	shop := env.NewBarterShop("bob", market.Barter{
		RequiredGood: "COAL", RequiredQty: 1,
		OfferedGood: "DIAMOND", OfferedQty: 1,
	})
	alice := env.Actor("alice", 50)

	_, err := env.Eng.Buy(alice, shop)
	markettest.WantReject(t, err, protocol.ErrBadRequest)
}

func TestSettleUpdatesLastUsed(t *testing.T) {
	env := markettest.New(t)
	shop := env.NewShop("bob", "COAL", 1, 1, 0)
	env.Stock(shop, "COAL", 10)
	alice := env.Actor("alice", 10)

	created := shop.LastUsed
	env.Advance(time.Minute)
	if _, err := env.Eng.Buy(alice, shop); err != nil {
		t.Fatalf("buy: %v", err)
	}
	got, _ := env.Reg.ByID(shop.ID)
	if !got.LastUsed.After(created) {
		t.Fatalf("last used not advanced: %v", got.LastUsed)
	}
}

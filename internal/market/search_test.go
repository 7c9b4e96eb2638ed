package market_test

import (
	"testing"

	"chestmarket.gg/internal/market"
	"chestmarket.gg/internal/markettest"
)

func TestSearchByGoodIncludesBarterSides(t *testing.T) {
	env := markettest.New(t)
	money := env.NewShop("bob", "COAL", 8, 10, 0)
	barter := env.NewBarterShop("carol", market.Barter{
		RequiredGood: "COAL", RequiredQty: 4,
		OfferedGood: "DIAMOND", OfferedQty: 1,
	})
	env.NewShop("dave", "WHEAT", 8, 10, 0)

	got := env.Reg.SearchByGood("COAL")
	if len(got) != 2 {
		t.Fatalf("coal shops = %d, want 2", len(got))
	}
	ids := map[string]bool{got[0].ID: true, got[1].ID: true}
	if !ids[money.ID] || !ids[barter.ID] {
		t.Fatalf("missing expected shops: %v", ids)
	}
}

func TestSearchByOwnerNameCaseInsensitive(t *testing.T) {
	env := markettest.New(t)
	s := env.NewShop("Bob", "COAL", 8, 10, 0)

	got := env.Reg.SearchByOwnerName("bob")
	if len(got) != 1 || got[0].ID != s.ID {
		t.Fatalf("owner search = %v", got)
	}
}

func TestBestBuyPricesOrdersByUnitPrice(t *testing.T) {
	env := markettest.New(t)
	cheapBulk := env.NewShop("a", "COAL", 64, 32, 0) // 0.5/unit
	expensive := env.NewShop("b", "COAL", 8, 16, 0)  // 2/unit
	midPrice := env.NewShop("c", "COAL", 8, 8, 0)    // 1/unit
	env.NewShop("d", "COAL", 8, 0, 5)                // sell-only, excluded

	got := env.Reg.BestBuyPrices("COAL", 10)
	if len(got) != 3 {
		t.Fatalf("buy shops = %d, want 3", len(got))
	}
	if got[0].ID != cheapBulk.ID || got[1].ID != midPrice.ID || got[2].ID != expensive.ID {
		t.Fatalf("order = %s %s %s", got[0].ID, got[1].ID, got[2].ID)
	}

	if limited := env.Reg.BestBuyPrices("COAL", 2); len(limited) != 2 {
		t.Fatalf("limit not applied: %d", len(limited))
	}
}

func TestBestSellPricesOrdersByPayout(t *testing.T) {
	env := markettest.New(t)
	low := env.NewShop("a", "WHEAT", 8, 0, 4)
	high := env.NewShop("b", "WHEAT", 8, 0, 12)

	got := env.Reg.BestSellPrices("WHEAT", 10)
	if len(got) != 2 || got[0].ID != high.ID || got[1].ID != low.ID {
		t.Fatalf("sell order wrong")
	}
}

func TestSearchByPriceRange(t *testing.T) {
	env := markettest.New(t)
	env.NewShop("a", "COAL", 8, 5, 0)
	inRange := env.NewShop("b", "COAL", 8, 50, 0)
	env.NewShop("c", "COAL", 8, 500, 0)

	got := env.Reg.SearchByPriceRange(10, 100, true)
	if len(got) != 1 || got[0].ID != inRange.ID {
		t.Fatalf("price range search = %v", got)
	}
}

func TestNearbyOrdersByDistanceWithinRegion(t *testing.T) {
	env := markettest.New(t)
	near := env.NewShop("a", "COAL", 8, 10, 0)
	far := env.NewShop("b", "COAL", 8, 10, 0)

	origin := near.Storage
	// Shops are laid out on a line by the harness; both are in range.
	got := env.Reg.Nearby(origin, 1000)
	if len(got) < 2 {
		t.Fatalf("nearby = %d shops", len(got))
	}
	if got[0].ID != near.ID || got[len(got)-1].ID == near.ID {
		t.Fatalf("distance ordering wrong")
	}
	if got[len(got)-1].ID != far.ID && got[1].ID != far.ID {
		t.Fatalf("far shop missing from results")
	}

	other := market.Location{Region: "nether", Pos: origin.Pos}
	if len(env.Reg.Nearby(other, 1000)) != 0 {
		t.Fatalf("region filter not applied")
	}
}

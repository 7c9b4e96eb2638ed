package market_test

import (
	"os"
	"path/filepath"
	"testing"

	"chestmarket.gg/internal/market"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := market.LoadConfig("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.General.MaxShopsPerOwner != 10 {
		t.Fatalf("max shops = %d", cfg.General.MaxShopsPerOwner)
	}
	if cfg.Shop.MinQuantity != 1 || cfg.Shop.MaxQuantity != 64 {
		t.Fatalf("quantity bounds = %d..%d", cfg.Shop.MinQuantity, cfg.Shop.MaxQuantity)
	}
	if !cfg.Barter.Enabled || cfg.Barter.CooldownSeconds != 3 {
		t.Fatalf("barter defaults: %+v", cfg.Barter)
	}
	if cfg.Signs.Header == "" || cfg.Signs.Colors.Active == "" {
		t.Fatalf("sign defaults missing: %+v", cfg.Signs)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "market.yaml")
	body := `
general:
  max_shops_per_owner: 3
  allowed_regions: [trade_district]
shop:
  min_quantity: 1
  max_quantity: 16
  price_limits:
    min_buy: 1
    max_buy: 500
    min_sell: 1
    max_sell: 500
barter:
  enabled: false
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := market.LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.General.MaxShopsPerOwner != 3 {
		t.Fatalf("max shops = %d", cfg.General.MaxShopsPerOwner)
	}
	if cfg.Shop.MaxQuantity != 16 {
		t.Fatalf("max quantity = %d", cfg.Shop.MaxQuantity)
	}
	if cfg.Barter.Enabled {
		t.Fatalf("barter should be disabled")
	}
	if !cfg.RegionAllowed("trade_district") || cfg.RegionAllowed("overworld") {
		t.Fatalf("region allow list not applied")
	}
	// Normalize backfills presentation defaults the file omitted.
	if cfg.Signs.Header == "" {
		t.Fatalf("sign header not defaulted")
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := market.DefaultConfig()
	cfg.Shop.MaxQuantity = 0
	cfg.Normalize() // normalize repairs zero values
	if err := cfg.Validate(); err != nil {
		t.Fatalf("normalized config must validate: %v", err)
	}

	cfg = market.DefaultConfig()
	cfg.Shop.PriceLimits.MaxBuy = 0.001 // below min_buy
	if err := cfg.Validate(); err == nil {
		t.Fatalf("inverted price limits must fail validation")
	}

	cfg = market.DefaultConfig()
	cfg.Barter.CooldownSeconds = -1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("negative cooldown must fail validation")
	}
}

func TestGoodBannedAndRegionAllowed(t *testing.T) {
	cfg := market.DefaultConfig()
	cfg.Shop.BannedGoods = []string{"BEDROCK"}
	if !cfg.GoodBanned("BEDROCK") || cfg.GoodBanned("COAL") {
		t.Fatalf("banned goods lookup")
	}
	// Empty allow list means every region.
	if !cfg.RegionAllowed("anything") {
		t.Fatalf("empty region list must allow all")
	}
}

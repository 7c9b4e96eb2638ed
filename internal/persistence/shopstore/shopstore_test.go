package shopstore

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"chestmarket.gg/internal/market"
)

func testStore(t *testing.T) (*YAMLStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shops.yml")
	return New(path, log.New(io.Discard, "", 0)), path
}

func sampleEntries() []market.Entry {
	return []market.Entry{
		{
			ID: "a1b2c3d4", OwnerID: "uuid-bob", OwnerName: "bob",
			Storage:  market.Location{Region: "overworld", Pos: market.Vec3i{X: 10, Y: 64, Z: 5}},
			Sign:     market.Location{Region: "overworld", Pos: market.Vec3i{X: 10, Y: 65, Z: 5}},
			Good:     "IRON_INGOT", Quantity: 16,
			BuyPrice: 12.5, SellPrice: 10,
			Active:   true, CreatedMS: 1750000000000, LastUsedMS: 1750000000500,
		},
		{
			ID: "ffee0011", OwnerID: "uuid-carol", OwnerName: "carol",
			Storage: market.Location{Region: "nether", Pos: market.Vec3i{X: -3, Y: 70, Z: 8}},
			Sign:    market.Location{Region: "nether", Pos: market.Vec3i{X: -3, Y: 71, Z: 8}},
			Good:    "DIAMOND", Quantity: 1,
			Active:  false, CreatedMS: 1750000001000, LastUsedMS: 1750000001000,
			Barter: &market.BarterEntry{
				RequiredGood: "COAL", RequiredQty: 8,
				OfferedGood: "DIAMOND", OfferedQty: 1,
			},
		},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store, _ := testStore(t)
	want := sampleEntries()

	if err := store.SaveAll(want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.LoadAll()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("entries = %d, want 2", len(got))
	}

	// LoadAll returns entries sorted by id.
	if got[0].ID != "a1b2c3d4" || got[1].ID != "ffee0011" {
		t.Fatalf("order: %s, %s", got[0].ID, got[1].ID)
	}
	money := got[0]
	if money.OwnerID != "uuid-bob" || money.Good != "IRON_INGOT" || money.Quantity != 16 {
		t.Fatalf("money entry mangled: %+v", money)
	}
	if money.BuyPrice != 12.5 || money.SellPrice != 10 || !money.Active {
		t.Fatalf("money terms mangled: %+v", money)
	}
	if money.Storage.Key() != "overworld:10:64:5" || money.Sign.Key() != "overworld:10:65:5" {
		t.Fatalf("locations mangled: %+v", money)
	}
	if money.CreatedMS != 1750000000000 || money.LastUsedMS != 1750000000500 {
		t.Fatalf("timestamps mangled: %+v", money)
	}

	barter := got[1]
	if barter.Active {
		t.Fatalf("active flag lost")
	}
	if barter.Barter == nil || barter.Barter.RequiredGood != "COAL" || barter.Barter.OfferedQty != 1 {
		t.Fatalf("barter terms mangled: %+v", barter.Barter)
	}
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	store, _ := testStore(t)
	got, err := store.LoadAll()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("entries = %d, want 0", len(got))
	}
}

func TestLoadSkipsMalformedEntry(t *testing.T) {
	store, path := testStore(t)
	body := `shops:
  good0001:
    owner-id: uuid-bob
    owner-name: bob
    chest-location: {world: overworld, x: 1, y: 64, z: 1}
    sign-location: {world: overworld, x: 1, y: 65, z: 1}
    item: COAL
    amount: 8
    buy-price: 10
    active: true
    created: 1750000000000
    last-used: 1750000000000
  broken01:
    owner-id: uuid-carol
    chest-location: "not a mapping"
    amount: not-a-number
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := store.LoadAll()
	if err != nil {
		t.Fatalf("one malformed entry must not fail the load: %v", err)
	}
	if len(got) != 1 || got[0].ID != "good0001" {
		t.Fatalf("entries = %+v, want only good0001", got)
	}
}

func TestLoadDefaultsActiveWhenAbsent(t *testing.T) {
	store, path := testStore(t)
	body := `shops:
  legacy01:
    owner-id: uuid-bob
    owner-name: bob
    chest-location: {world: overworld, x: 1, y: 64, z: 1}
    sign-location: {world: overworld, x: 1, y: 65, z: 1}
    item: COAL
    amount: 8
    buy-price: 10
    created: 1750000000000
    last-used: 1750000000000
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := store.LoadAll()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 1 || !got[0].Active {
		t.Fatalf("legacy entry without active flag must load as active: %+v", got)
	}
}

func TestSaveOverwritesAtomically(t *testing.T) {
	store, path := testStore(t)
	if err := store.SaveAll(sampleEntries()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.SaveAll(sampleEntries()[:1]); err != nil {
		t.Fatalf("second save: %v", err)
	}
	got, err := store.LoadAll()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("entries = %d, want 1 after overwrite", len(got))
	}

	// No temp files left behind.
	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(path), "shops-*.yml"))
	if len(matches) != 0 {
		t.Fatalf("temp files left behind: %v", matches)
	}
}

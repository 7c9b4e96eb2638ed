// Package shopstore persists the shop registry as a shops.yml tree keyed by
// shop id. Each entry is decoded independently so one corrupt entry never
// takes the rest of the file down with it.
package shopstore

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"chestmarket.gg/internal/market"
)

type YAMLStore struct {
	path   string
	logger *log.Logger
}

func New(path string, logger *log.Logger) *YAMLStore {
	if logger == nil {
		logger = log.New(os.Stdout, "[shopstore] ", log.LstdFlags)
	}
	return &YAMLStore{path: path, logger: logger}
}

// document matches the shops.yml layout: one subtree per shop id. Entries
// stay as raw nodes so a malformed one is skipped, not fatal.
type document struct {
	Shops map[string]yaml.Node `yaml:"shops"`
}

type locationYAML struct {
	World string `yaml:"world"`
	X     int    `yaml:"x"`
	Y     int    `yaml:"y"`
	Z     int    `yaml:"z"`
}

type barterYAML struct {
	Enabled    bool   `yaml:"enabled"`
	BuyItem    string `yaml:"buy-item"`
	BuyAmount  int    `yaml:"buy-amount"`
	SellItem   string `yaml:"sell-item"`
	SellAmount int    `yaml:"sell-amount"`
}

type entryYAML struct {
	OwnerID   string       `yaml:"owner-id"`
	OwnerName string       `yaml:"owner-name"`
	Chest     locationYAML `yaml:"chest-location"`
	Sign      locationYAML `yaml:"sign-location"`
	Item      string       `yaml:"item"`
	Amount    int          `yaml:"amount"`
	BuyPrice  float64      `yaml:"buy-price"`
	SellPrice float64      `yaml:"sell-price"`
	Active    *bool        `yaml:"active"` // absent means active
	Created   int64        `yaml:"created"`
	LastUsed  int64        `yaml:"last-used"`
	Barter    *barterYAML  `yaml:"item-trading,omitempty"`
}

// LoadAll reads shops.yml. A missing file is an empty registry, not an
// error. Entries that fail to decode are logged and skipped.
func (s *YAMLStore) LoadAll() ([]market.Entry, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var doc document
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("shops.yml: %w", err)
	}

	ids := make([]string, 0, len(doc.Shops))
	for id := range doc.Shops {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	entries := make([]market.Entry, 0, len(ids))
	for _, id := range ids {
		node := doc.Shops[id]
		var e entryYAML
		if err := node.Decode(&e); err != nil {
			s.logger.Printf("shops.yml: skipping entry %s: %v", id, err)
			continue
		}
		entries = append(entries, toEntry(id, e))
	}
	return entries, nil
}

// SaveAll writes the full snapshot atomically: temp file in the same
// directory, then rename.
func (s *YAMLStore) SaveAll(entries []market.Entry) error {
	doc := struct {
		Shops map[string]entryYAML `yaml:"shops"`
	}{Shops: make(map[string]entryYAML, len(entries))}
	for _, e := range entries {
		doc.Shops[e.ID] = fromEntry(e)
	}

	b, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "shops-*.yml")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func toEntry(id string, e entryYAML) market.Entry {
	out := market.Entry{
		ID:         id,
		OwnerID:    e.OwnerID,
		OwnerName:  e.OwnerName,
		Storage:    toLocation(e.Chest),
		Sign:       toLocation(e.Sign),
		Good:       e.Item,
		Quantity:   e.Amount,
		BuyPrice:   e.BuyPrice,
		SellPrice:  e.SellPrice,
		Active:     e.Active == nil || *e.Active,
		CreatedMS:  e.Created,
		LastUsedMS: e.LastUsed,
	}
	if b := e.Barter; b != nil && b.Enabled {
		out.Barter = &market.BarterEntry{
			RequiredGood: b.BuyItem,
			RequiredQty:  b.BuyAmount,
			OfferedGood:  b.SellItem,
			OfferedQty:   b.SellAmount,
		}
	}
	return out
}

func fromEntry(e market.Entry) entryYAML {
	active := e.Active
	out := entryYAML{
		OwnerID:   e.OwnerID,
		OwnerName: e.OwnerName,
		Chest:     fromLocation(e.Storage),
		Sign:      fromLocation(e.Sign),
		Item:      e.Good,
		Amount:    e.Quantity,
		BuyPrice:  e.BuyPrice,
		SellPrice: e.SellPrice,
		Active:    &active,
		Created:   e.CreatedMS,
		LastUsed:  e.LastUsedMS,
	}
	if b := e.Barter; b != nil {
		out.Barter = &barterYAML{
			Enabled:    true,
			BuyItem:    b.RequiredGood,
			BuyAmount:  b.RequiredQty,
			SellItem:   b.OfferedGood,
			SellAmount: b.OfferedQty,
		}
	}
	return out
}

func toLocation(l locationYAML) market.Location {
	return market.Location{Region: l.World, Pos: market.Vec3i{X: l.X, Y: l.Y, Z: l.Z}}
}

func fromLocation(l market.Location) locationYAML {
	return locationYAML{World: l.Region, X: l.Pos.X, Y: l.Pos.Y, Z: l.Pos.Z}
}

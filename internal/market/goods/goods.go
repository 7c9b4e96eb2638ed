package goods

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

const DefaultMaxStack = 64

type Def struct {
	ID       string `json:"id"`
	MaxStack int    `json:"max_stack"`
	Tradable bool   `json:"tradable"`
}

type Catalog struct {
	Defs    map[string]Def
	Palette []string
	Digest  string
}

// Load reads goods.json: a flat array of good definitions.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var defs []Def
	if err := json.Unmarshal(raw, &defs); err != nil {
		return nil, fmt.Errorf("goods.json: %w", err)
	}
	c, err := FromDefs(defs)
	if err != nil {
		return nil, fmt.Errorf("goods.json: %w", err)
	}
	c.Digest = sha256Hex(raw)
	return c, nil
}

func FromDefs(defs []Def) (*Catalog, error) {
	c := &Catalog{Defs: map[string]Def{}}
	for _, d := range defs {
		if d.ID == "" {
			return nil, fmt.Errorf("empty good id")
		}
		if _, dup := c.Defs[d.ID]; dup {
			return nil, fmt.Errorf("duplicate good id: %s", d.ID)
		}
		if d.MaxStack <= 0 {
			d.MaxStack = DefaultMaxStack
		}
		c.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(c.Defs))
	for id := range c.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	c.Palette = ids

	palJSON, _ := json.Marshal(ids)
	c.Digest = sha256Hex(palJSON)
	return c, nil
}

func (c *Catalog) Known(id string) bool {
	_, ok := c.Defs[id]
	return ok
}

func (c *Catalog) Tradable(id string) bool {
	d, ok := c.Defs[id]
	return ok && d.Tradable
}

// MaxStack returns the per-slot stack limit for a good, or the default for
// unknown goods so container arithmetic stays defined.
func (c *Catalog) MaxStack(id string) int {
	if d, ok := c.Defs[id]; ok {
		return d.MaxStack
	}
	return DefaultMaxStack
}

// DisplayName renders "IRON_INGOT" as "Iron Ingot" for user-facing text.
func DisplayName(id string) string {
	if id == "" {
		return "Unknown"
	}
	words := strings.Split(strings.ToLower(id), "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Package markettest provides a black-box harness for exercising the market
// through its public surface: a registry plus engine wired to in-memory
// collaborators, with a movable clock and recording hooks.
package markettest

import (
	"fmt"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"chestmarket.gg/internal/market"
	"chestmarket.gg/internal/market/goods"
)

// FakeLedger is an in-memory currency provider with fault injection
// switches for exercising mutation failures and rollback paths.
type FakeLedger struct {
	mu       sync.Mutex
	balances map[string]float64

	// Fault switches: when set, the matching operation fails for that
	// account regardless of balance.
	FailWithdraw map[string]bool
	FailDeposit  map[string]bool
}

func NewFakeLedger() *FakeLedger {
	return &FakeLedger{
		balances:     map[string]float64{},
		FailWithdraw: map[string]bool{},
		FailDeposit:  map[string]bool{},
	}
}

func (l *FakeLedger) SetBalance(id string, v float64) {
	l.mu.Lock()
	l.balances[id] = v
	l.mu.Unlock()
}

func (l *FakeLedger) Balance(id string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[id]
}

func (l *FakeLedger) HasAtLeast(id string, amount float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[id] >= amount
}

func (l *FakeLedger) Withdraw(id string, amount float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.FailWithdraw[id] || l.balances[id] < amount {
		return false
	}
	l.balances[id] -= amount
	return true
}

func (l *FakeLedger) Deposit(id string, amount float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.FailDeposit[id] {
		return false
	}
	l.balances[id] += amount
	return true
}

// Total sums every balance, for conservation checks.
func (l *FakeLedger) Total() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var sum float64
	for _, v := range l.balances {
		sum += v
	}
	return sum
}

// RecordingHooks captures presentation callbacks for assertions.
type RecordingHooks struct {
	mu      sync.Mutex
	Created []string
	Removed []string
	Changed []string
	Notices map[string][]string // ownerID -> messages
}

func NewRecordingHooks() *RecordingHooks {
	return &RecordingHooks{Notices: map[string][]string{}}
}

func (h *RecordingHooks) OnShopCreated(s *market.Shop) {
	h.mu.Lock()
	h.Created = append(h.Created, s.ID)
	h.mu.Unlock()
}

func (h *RecordingHooks) OnShopRemoved(id string) {
	h.mu.Lock()
	h.Removed = append(h.Removed, id)
	h.mu.Unlock()
}

func (h *RecordingHooks) OnShopChanged(s *market.Shop) {
	h.mu.Lock()
	h.Changed = append(h.Changed, s.ID)
	h.mu.Unlock()
}

func (h *RecordingHooks) Notify(ownerID, message string) {
	h.mu.Lock()
	h.Notices[ownerID] = append(h.Notices[ownerID], message)
	h.mu.Unlock()
}

func (h *RecordingHooks) NoticesFor(ownerID string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.Notices[ownerID]...)
}

// RecordingStats collects settled receipts.
type RecordingStats struct {
	mu       sync.Mutex
	Receipts []market.Receipt
}

func (s *RecordingStats) RecordTrade(r market.Receipt) {
	s.mu.Lock()
	s.Receipts = append(s.Receipts, r)
	s.mu.Unlock()
}

func (s *RecordingStats) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Receipts)
}

// MemStore is an in-memory persistence store.
type MemStore struct {
	mu      sync.Mutex
	Entries []market.Entry
	Saves   int
}

func (m *MemStore) LoadAll() ([]market.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]market.Entry(nil), m.Entries...), nil
}

func (m *MemStore) SaveAll(entries []market.Entry) error {
	m.mu.Lock()
	m.Entries = append([]market.Entry(nil), entries...)
	m.Saves++
	m.mu.Unlock()
	return nil
}

// Env is one fully-wired market under test.
type Env struct {
	T *testing.T

	Cfg      market.Config
	Cat      *goods.Catalog
	Reg      *market.Registry
	Eng      *market.Engine
	Ledger   *FakeLedger
	Pool     *market.ContainerPool
	Hooks    *RecordingHooks
	Stats    *RecordingStats
	Store    *MemStore
	Notifier *market.Notifier

	mu     sync.Mutex
	now    time.Time
	locSeq int
}

// DefaultCatalog covers the goods used across the test suites, including a
// low-stack good for capacity arithmetic.
func DefaultCatalog(t *testing.T) *goods.Catalog {
	t.Helper()
	cat, err := goods.FromDefs([]goods.Def{
		{ID: "COAL", MaxStack: 64, Tradable: true},
		{ID: "IRON_INGOT", MaxStack: 64, Tradable: true},
		{ID: "WHEAT", MaxStack: 64, Tradable: true},
		{ID: "DIAMOND", MaxStack: 64, Tradable: true},
		{ID: "ENDER_PEARL", MaxStack: 16, Tradable: true},
		{ID: "BARRIER", MaxStack: 64, Tradable: false},
	})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return cat
}

func New(t *testing.T) *Env {
	t.Helper()
	return NewWithConfig(t, market.DefaultConfig())
}

func NewWithConfig(t *testing.T, cfg market.Config) *Env {
	t.Helper()
	cfg.Normalize()

	env := &Env{
		T:      t,
		Cfg:    cfg,
		Cat:    DefaultCatalog(t),
		Ledger: NewFakeLedger(),
		Hooks:  NewRecordingHooks(),
		Stats:  &RecordingStats{},
		Store:  &MemStore{},
		now:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	env.Pool = market.NewContainerPool(env.Cat.MaxStack)

	logger := log.New(io.Discard, "", 0)
	env.Reg = market.NewRegistry(cfg, env.Cat, market.RegistryDeps{
		Storage: env.Pool,
		Store:   env.Store,
		Hooks:   env.Hooks,
		Logger:  logger,
		Now:     env.Now,
	})
	env.Notifier = market.NewNotifier(cfg.Notifications, env.Hooks, env.Now)
	env.Eng = market.NewEngine(env.Reg, market.EngineDeps{
		Ledger:   env.Ledger,
		Stats:    env.Stats,
		Notifier: env.Notifier,
		Logger:   logger,
		Now:      env.Now,
	})
	return env
}

func (e *Env) Now() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now
}

// Advance moves the harness clock forward.
func (e *Env) Advance(d time.Duration) {
	e.mu.Lock()
	e.now = e.now.Add(d)
	e.mu.Unlock()
}

// Loc hands out distinct locations in the "overworld" region.
func (e *Env) Loc() market.Location {
	e.mu.Lock()
	e.locSeq++
	n := e.locSeq
	e.mu.Unlock()
	return market.Location{Region: "overworld", Pos: market.Vec3i{X: n * 2, Y: 64, Z: 0}}
}

// NewShop creates an active money shop with fresh locations and fails the
// test on rejection.
func (e *Env) NewShop(ownerID string, good string, qty int, buy, sell float64) *market.Shop {
	e.T.Helper()
	s, err := e.Reg.Create(market.CreateParams{
		OwnerID:   ownerID,
		OwnerName: ownerID,
		Storage:   e.Loc(),
		Sign:      e.Loc(),
		Good:      good,
		Quantity:  qty,
		BuyPrice:  buy,
		SellPrice: sell,
	})
	if err != nil {
		e.T.Fatalf("create shop: %v", err)
	}
	return s
}

// NewBarterShop creates a shop and converts it to item trading.
func (e *Env) NewBarterShop(ownerID string, b market.Barter) *market.Shop {
	e.T.Helper()
	s := e.NewShop(ownerID, b.OfferedGood, b.OfferedQty, 1, 0)
	if err := e.Reg.ConvertToBarter(s.ID, b); err != nil {
		e.T.Fatalf("convert to barter: %v", err)
	}
	return s
}

// Actor builds a trading party with its own container and starting balance.
func (e *Env) Actor(id string, balance float64) market.Party {
	e.T.Helper()
	e.Ledger.SetBalance(id, balance)
	inv := market.NewContainer(36, e.Cat.MaxStack)
	return market.Party{ID: id, Name: id, Inv: inv}
}

// StorageFor returns the container backing a shop's chest.
func (e *Env) StorageFor(s *market.Shop) market.Inventory {
	e.T.Helper()
	inv, ok := e.Pool.StorageAt(s.Storage)
	if !ok {
		e.T.Fatalf("no storage for shop %s", s.ID)
	}
	return inv
}

// Stock adds goods to a shop's chest, failing on overflow.
func (e *Env) Stock(s *market.Shop, good string, n int) {
	e.T.Helper()
	if !e.StorageFor(s).Add(good, n) {
		e.T.Fatalf("cannot stock %dx %s into shop %s", n, good, s.ID)
	}
}

// Give adds goods to a party's holdings, failing on overflow.
func (e *Env) Give(p market.Party, good string, n int) {
	e.T.Helper()
	if !p.Inv.Add(good, n) {
		e.T.Fatalf("cannot give %dx %s to %s", n, good, p.ID)
	}
}

// TotalOf sums a good across the given inventories, for conservation checks.
func TotalOf(good string, invs ...market.Inventory) int {
	total := 0
	for _, inv := range invs {
		total += inv.Count(good)
	}
	return total
}

// WantReject asserts err is a rejection with the given code.
func WantReject(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("want rejection %s, got nil", code)
	}
	if got := market.RejectCode(err); got != code {
		t.Fatalf("want rejection %s, got %q (%v)", code, got, err)
	}
}

// Snapshot formats balances and holdings for failure messages.
func (e *Env) Snapshot(parties ...market.Party) string {
	out := ""
	for _, p := range parties {
		out += fmt.Sprintf("%s: balance=%.2f\n", p.ID, e.Ledger.Balance(p.ID))
	}
	return out
}

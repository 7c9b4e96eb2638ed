package market

// Ledger is the currency provider. Every call reports success or failure;
// the engine never assumes a withdraw succeeded without checking.
type Ledger interface {
	Balance(accountID string) float64
	HasAtLeast(accountID string, amount float64) bool
	Withdraw(accountID string, amount float64) bool
	Deposit(accountID string, amount float64) bool
}

// Inventory is one stacked-goods container: a shop chest or an actor's
// holdings. Add must report overflow as failure rather than dropping excess.
type Inventory interface {
	Count(good string) int
	FreeCapacity(good string) int
	Remove(good string, n int) bool
	Add(good string, n int) bool
}

// StorageResolver maps a shop's storage location to its backing container.
// A false return means the container is gone (chest destroyed externally).
type StorageResolver interface {
	StorageAt(loc Location) (Inventory, bool)
}

// Store persists registry snapshots as flat entries.
type Store interface {
	LoadAll() ([]Entry, error)
	SaveAll([]Entry) error
}

// Hooks receive fire-and-forget presentation updates (sign/hologram refresh,
// owner notices). Hook failure never fails the operation that triggered it.
type Hooks interface {
	OnShopCreated(s *Shop)
	OnShopRemoved(id string)
	OnShopChanged(s *Shop)
	Notify(ownerID, message string)
}

// StatsSink records settled trades.
type StatsSink interface {
	RecordTrade(r Receipt)
}

// MultiStats fans one receipt out to several sinks.
type MultiStats []StatsSink

func (m MultiStats) RecordTrade(r Receipt) {
	for _, s := range m {
		if s != nil {
			s.RecordTrade(r)
		}
	}
}

// NopHooks is the default when no presentation layer is wired.
type NopHooks struct{}

func (NopHooks) OnShopCreated(*Shop)  {}
func (NopHooks) OnShopRemoved(string) {}
func (NopHooks) OnShopChanged(*Shop)  {}
func (NopHooks) Notify(string, string) {}

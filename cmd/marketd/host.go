package main

import (
	"sync"

	"chestmarket.gg/internal/market"
)

// memoryLedger is marketd's built-in currency provider. Deployments that
// sit next to a real economy plug their own market.Ledger in instead.
type memoryLedger struct {
	mu       sync.Mutex
	balances map[string]float64
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{balances: map[string]float64{}}
}

func (l *memoryLedger) Balance(id string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[id]
}

func (l *memoryLedger) HasAtLeast(id string, amount float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[id] >= amount
}

func (l *memoryLedger) Withdraw(id string, amount float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if amount < 0 || l.balances[id] < amount {
		return false
	}
	l.balances[id] -= amount
	return true
}

func (l *memoryLedger) Deposit(id string, amount float64) bool {
	if amount < 0 {
		return false
	}
	l.mu.Lock()
	l.balances[id] += amount
	l.mu.Unlock()
	return true
}

// actorPool hands each actor a persistent personal container, sized like a
// player inventory.
type actorPool struct {
	mu       sync.Mutex
	stackFor func(good string) int
	byID     map[string]*market.Container
}

const actorSlots = 36

func newActorPool(stackFor func(good string) int) *actorPool {
	return &actorPool{stackFor: stackFor, byID: map[string]*market.Container{}}
}

func (p *actorPool) get(actorID string) *market.Container {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.byID[actorID]
	if c == nil {
		c = market.NewContainer(actorSlots, p.stackFor)
		p.byID[actorID] = c
	}
	return c
}

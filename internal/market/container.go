package market

import (
	"sort"
	"sync"

	"chestmarket.gg/internal/protocol"
)

// Container is a slot-backed stacked-goods inventory: a fixed number of
// slots, each holding at most one good kind up to its stack limit. Free
// capacity for a good is the empty slots times its stack size plus the
// headroom of its last partial stack, the same arithmetic a chest grid uses.
type Container struct {
	slots    int
	stackFor func(good string) int
	items    map[string]int
}

func NewContainer(slots int, stackFor func(good string) int) *Container {
	if stackFor == nil {
		stackFor = func(string) int { return 64 }
	}
	return &Container{
		slots:    slots,
		stackFor: stackFor,
		items:    map[string]int{},
	}
}

func (c *Container) Count(good string) int {
	return c.items[good]
}

func (c *Container) usedSlots() int {
	used := 0
	for good, n := range c.items {
		if n <= 0 {
			continue
		}
		stack := c.stack(good)
		used += (n + stack - 1) / stack
	}
	return used
}

func (c *Container) FreeCapacity(good string) int {
	stack := c.stack(good)
	free := c.slots - c.usedSlots()
	if free < 0 {
		free = 0
	}
	capacity := free * stack
	if n := c.items[good]; n > 0 {
		if rem := n % stack; rem != 0 {
			capacity += stack - rem
		}
	}
	return capacity
}

// Add is all-or-nothing: if the container cannot hold n more of the good,
// nothing is added and false is returned.
func (c *Container) Add(good string, n int) bool {
	if n <= 0 {
		return n == 0
	}
	if c.FreeCapacity(good) < n {
		return false
	}
	c.items[good] += n
	return true
}

func (c *Container) Remove(good string, n int) bool {
	if n <= 0 {
		return n == 0
	}
	if c.items[good] < n {
		return false
	}
	c.items[good] -= n
	if c.items[good] == 0 {
		delete(c.items, good)
	}
	return true
}

func (c *Container) Stacks() []protocol.ItemStack {
	out := make([]protocol.ItemStack, 0, len(c.items))
	for good, n := range c.items {
		if n <= 0 {
			continue
		}
		out = append(out, protocol.ItemStack{Item: good, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Item < out[j].Item })
	return out
}

func (c *Container) stack(good string) int {
	if s := c.stackFor(good); s > 0 {
		return s
	}
	return 64
}

// ContainerPool resolves storage locations to containers, creating a
// chest-sized container on first use. It is the in-process storage
// collaborator for marketd; hosts with a real inventory backend supply
// their own StorageResolver instead.
type ContainerPool struct {
	mu       sync.Mutex
	slots    int
	stackFor func(good string) int
	byLoc    map[string]*Container
}

const chestSlots = 27

func NewContainerPool(stackFor func(good string) int) *ContainerPool {
	return &ContainerPool{
		slots:    chestSlots,
		stackFor: stackFor,
		byLoc:    map[string]*Container{},
	}
}

func (p *ContainerPool) StorageAt(loc Location) (Inventory, bool) {
	if !loc.Valid() {
		return nil, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.byLoc[loc.Key()]
	if c == nil {
		c = NewContainer(p.slots, p.stackFor)
		p.byLoc[loc.Key()] = c
	}
	return c, true
}

// Drop forgets the container at a location (chest destroyed).
func (p *ContainerPool) Drop(loc Location) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.byLoc, loc.Key())
}

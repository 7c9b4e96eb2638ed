package market

import "fmt"

type Vec3i struct {
	X, Y, Z int
}

// Location is a block position in a named region. It is the registry's
// lookup key: one location belongs to at most one shop, as its chest or
// its sign.
type Location struct {
	Region string
	Pos    Vec3i
}

func (l Location) Valid() bool {
	return l.Region != ""
}

// Key is the index form of a location. Equality is structural; the key
// never drives business rules.
func (l Location) Key() string {
	return fmt.Sprintf("%s:%d:%d:%d", l.Region, l.Pos.X, l.Pos.Y, l.Pos.Z)
}

func (l Location) String() string {
	return fmt.Sprintf("%s (%d, %d, %d)", l.Region, l.Pos.X, l.Pos.Y, l.Pos.Z)
}

func Manhattan(a, b Vec3i) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y) + abs(a.Z-b.Z)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

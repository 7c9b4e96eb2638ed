package market

import (
	"sort"
	"strings"
)

// Search methods are read models over the registry snapshot. They copy the
// matching shop pointers out under the read lock; callers treat the records
// as read-only like every other registry consumer.

// SearchByGood returns all shops trading the given good.
func (r *Registry) SearchByGood(good string) []*Shop {
	return r.filter(func(s *Shop) bool {
		if s.Good == good {
			return true
		}
		if b := s.Barter; b != nil {
			return b.RequiredGood == good || b.OfferedGood == good
		}
		return false
	})
}

// SearchByOwnerName matches owner display names case-insensitively.
func (r *Registry) SearchByOwnerName(name string) []*Shop {
	name = strings.ToLower(name)
	return r.filter(func(s *Shop) bool {
		return strings.ToLower(s.OwnerName) == name
	})
}

// SearchByPriceRange returns money shops whose enabled price on the given
// side falls within [min, max].
func (r *Registry) SearchByPriceRange(min, max float64, buySide bool) []*Shop {
	return r.filter(func(s *Shop) bool {
		var p float64
		if buySide {
			p = s.BuyPrice
		} else {
			p = s.SellPrice
		}
		return p > 0 && p >= min && p <= max
	})
}

// BestBuyPrices lists buy-enabled shops for a good, cheapest first.
func (r *Registry) BestBuyPrices(good string, limit int) []*Shop {
	out := r.filter(func(s *Shop) bool {
		return s.Good == good && s.BuyEnabled()
	})
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].BuyPrice/float64(out[i].Quantity) < out[j].BuyPrice/float64(out[j].Quantity)
	})
	return clip(out, limit)
}

// BestSellPrices lists sell-enabled shops for a good, best payout first.
func (r *Registry) BestSellPrices(good string, limit int) []*Shop {
	out := r.filter(func(s *Shop) bool {
		return s.Good == good && s.SellEnabled()
	})
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SellPrice/float64(out[i].Quantity) > out[j].SellPrice/float64(out[j].Quantity)
	})
	return clip(out, limit)
}

// Nearby returns shops in the same region within the given Manhattan
// distance of pos, closest first.
func (r *Registry) Nearby(loc Location, radius int) []*Shop {
	out := r.filter(func(s *Shop) bool {
		return s.Storage.Region == loc.Region && Manhattan(s.Storage.Pos, loc.Pos) <= radius
	})
	sort.SliceStable(out, func(i, j int) bool {
		return Manhattan(out[i].Storage.Pos, loc.Pos) < Manhattan(out[j].Storage.Pos, loc.Pos)
	})
	return out
}

func (r *Registry) filter(keep func(*Shop) bool) []*Shop {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Shop
	for _, id := range r.order {
		if s := r.shops[id]; s != nil && keep(s) {
			out = append(out, s)
		}
	}
	return out
}

func clip(shops []*Shop, limit int) []*Shop {
	if limit > 0 && len(shops) > limit {
		return shops[:limit]
	}
	return shops
}

package market

import (
	"fmt"
	"strings"

	"chestmarket.gg/internal/market/goods"
	"chestmarket.gg/internal/protocol"
)

// statusColor maps a derived shop status to its configured color code.
func statusColor(status ShopStatus, colors SignColors) string {
	switch status {
	case StatusInactive:
		return colors.Inactive
	case StatusOutOfStock:
		return colors.OutOfStock
	case StatusOutOfSpace:
		return colors.OutOfSpace
	default:
		return colors.Active
	}
}

// RenderSign produces the four display lines for a shop sign. The header
// carries the status color; the remaining lines are owner, lot, and terms.
func RenderSign(s *Shop, status ShopStatus, cfg SignsConfig) protocol.SignLines {
	var lines [4]string
	color := statusColor(status, cfg.Colors)

	if b := s.Barter; b != nil {
		lines[0] = colorize(color + cfg.BarterHeader)
		lines[1] = s.OwnerName
		lines[2] = fmt.Sprintf("%d %s", b.RequiredQty, goods.DisplayName(b.RequiredGood))
		lines[3] = fmt.Sprintf("for %d %s", b.OfferedQty, goods.DisplayName(b.OfferedGood))
		return protocol.SignLines{Lines: lines}
	}

	lines[0] = colorize(color + cfg.Header)
	lines[1] = s.OwnerName
	lines[2] = fmt.Sprintf("%d %s", s.Quantity, goods.DisplayName(s.Good))
	lines[3] = priceLine(s)
	return protocol.SignLines{Lines: lines}
}

// priceLine renders the enabled trade directions: "B: 10.00 S: 8.00", or
// just the enabled side.
func priceLine(s *Shop) string {
	var parts []string
	if s.BuyPrice > 0 {
		parts = append(parts, "B: "+formatMoney(s.BuyPrice))
	}
	if s.SellPrice > 0 {
		parts = append(parts, "S: "+formatMoney(s.SellPrice))
	}
	return strings.Join(parts, " ")
}

// colorize translates &-style color codes to the section-sign form the
// display layer expects.
func colorize(s string) string {
	return strings.ReplaceAll(s, "&", "§")
}

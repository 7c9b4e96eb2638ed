package tradedb

import "database/sql"

// Read-side queries over the trades index, backing the stats admin endpoint.
// Earnings attribution: on a BUY the owner earns the price; on a SELL the
// actor earns it. Barter rows carry no money and are counted by volume only.

type GoodVolume struct {
	Good   string  `json:"good"`
	Trades int     `json:"trades"`
	Items  int     `json:"items"`
	Money  float64 `json:"money"`
}

type AccountTotal struct {
	AccountID string  `json:"account_id"`
	Trades    int     `json:"trades"`
	Money     float64 `json:"money"`
}

type ShopTotal struct {
	ShopID string  `json:"shop_id"`
	Trades int     `json:"trades"`
	Money  float64 `json:"money"`
	LastAt int64   `json:"last_at"`
}

type Totals struct {
	Trades  int     `json:"trades"`
	Buys    int     `json:"buys"`
	Sells   int     `json:"sells"`
	Barters int     `json:"barters"`
	Money   float64 `json:"money"`
}

// MostPopularGoods ranks goods by trade count across money trades.
func (d *DB) MostPopularGoods(limit int) ([]GoodVolume, error) {
	rows, err := d.db.Query(`
		SELECT good, COUNT(*), COALESCE(SUM(quantity),0), COALESCE(SUM(price),0)
		FROM trades
		WHERE good IS NOT NULL AND good != ''
		GROUP BY good
		ORDER BY COUNT(*) DESC, good ASC
		LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GoodVolume
	for rows.Next() {
		var g GoodVolume
		if err := rows.Scan(&g.Good, &g.Trades, &g.Items, &g.Money); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// TopEarners ranks accounts by money received from trades.
func (d *DB) TopEarners(limit int) ([]AccountTotal, error) {
	rows, err := d.db.Query(`
		SELECT earner, COUNT(*), COALESCE(SUM(price),0) FROM (
			SELECT owner_id AS earner, price FROM trades WHERE kind = 'BUY'
			UNION ALL
			SELECT actor_id AS earner, price FROM trades WHERE kind = 'SELL'
		)
		GROUP BY earner
		ORDER BY SUM(price) DESC, earner ASC
		LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAccountTotals(rows)
}

// TopSpenders ranks accounts by money paid out in trades.
func (d *DB) TopSpenders(limit int) ([]AccountTotal, error) {
	rows, err := d.db.Query(`
		SELECT spender, COUNT(*), COALESCE(SUM(price),0) FROM (
			SELECT actor_id AS spender, price FROM trades WHERE kind = 'BUY'
			UNION ALL
			SELECT owner_id AS spender, price FROM trades WHERE kind = 'SELL'
		)
		GROUP BY spender
		ORDER BY SUM(price) DESC, spender ASC
		LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAccountTotals(rows)
}

// ShopPerformance ranks shops by trade count.
func (d *DB) ShopPerformance(limit int) ([]ShopTotal, error) {
	rows, err := d.db.Query(`
		SELECT shop_id, COUNT(*), COALESCE(SUM(price),0), MAX(at)
		FROM trades
		GROUP BY shop_id
		ORDER BY COUNT(*) DESC, shop_id ASC
		LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ShopTotal
	for rows.Next() {
		var s ShopTotal
		if err := rows.Scan(&s.ShopID, &s.Trades, &s.Money, &s.LastAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GlobalTotals sums the whole index.
func (d *DB) GlobalTotals() (Totals, error) {
	var t Totals
	err := d.db.QueryRow(`
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN kind='BUY' THEN 1 ELSE 0 END),0),
			COALESCE(SUM(CASE WHEN kind='SELL' THEN 1 ELSE 0 END),0),
			COALESCE(SUM(CASE WHEN kind='BARTER' THEN 1 ELSE 0 END),0),
			COALESCE(SUM(price),0)
		FROM trades`).Scan(&t.Trades, &t.Buys, &t.Sells, &t.Barters, &t.Money)
	return t, err
}

func scanAccountTotals(rows *sql.Rows) ([]AccountTotal, error) {
	var out []AccountTotal
	for rows.Next() {
		var a AccountTotal
		if err := rows.Scan(&a.AccountID, &a.Trades, &a.Money); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func clampLimit(n int) int {
	if n <= 0 || n > 100 {
		return 10
	}
	return n
}

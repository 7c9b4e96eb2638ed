// Package tradedb keeps a queryable sqlite index of settled trades. It is a
// secondary read model: the trade log is the source of truth, so a write
// dropped under backpressure loses a statistic, not a trade.
package tradedb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"chestmarket.gg/internal/market"
)

type DB struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqTrade reqKind = iota + 1
	reqBarrier
)

type req struct {
	kind  reqKind
	trade market.Receipt
	done  chan struct{}
}

func Open(path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	d := &DB{
		db: db,
		// Buffered so a burst of trades never stalls the engine.
		ch: make(chan req, 16384),
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.loop()
	}()
	return d, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads; NORMAL durability is
	// fine for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			at INTEGER NOT NULL,
			kind TEXT NOT NULL,
			shop_id TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			good TEXT,
			quantity INTEGER NOT NULL DEFAULT 0,
			price REAL NOT NULL DEFAULT 0,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_shop_at ON trades(shop_id, at);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_actor_at ON trades(actor_id, at);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_owner_at ON trades(owner_id, at);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_good ON trades(good);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (d *DB) Close() error {
	var err error
	d.once.Do(func() {
		d.closed.Store(true)
		close(d.ch)
		d.wg.Wait()
		err = d.db.Close()
	})
	return err
}

// RecordTrade implements market.StatsSink. It never blocks the engine: when
// the writer falls behind the receipt is dropped here and survives only in
// the trade log.
func (d *DB) RecordTrade(r market.Receipt) {
	if d == nil || d.closed.Load() {
		return
	}
	select {
	case d.ch <- req{kind: reqTrade, trade: r}:
	default:
	}
}

// Barrier blocks until every receipt enqueued before the call is committed.
// Used by tests and the shutdown path.
func (d *DB) Barrier() {
	if d == nil || d.closed.Load() {
		return
	}
	done := make(chan struct{})
	d.ch <- req{kind: reqBarrier, done: done}
	<-done
}

func (d *DB) loop() {
	ctx := context.Background()

	insert, _ := d.db.Prepare(`INSERT INTO trades(at,kind,shop_id,actor_id,owner_id,good,quantity,price,raw_json)
		VALUES(?,?,?,?,?,?,?,?,?)`)
	defer func() {
		if insert != nil {
			_ = insert.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 200
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := d.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
	}

	for r := range d.ch {
		switch r.kind {
		case reqTrade:
			begin()
			if tx == nil || insert == nil {
				continue
			}
			t := r.trade
			raw, _ := json.Marshal(t.Event())
			if _, err := tx.Stmt(insert).Exec(
				t.At.UnixMilli(),
				string(t.Kind),
				t.ShopID,
				t.ActorID,
				t.OwnerID,
				t.Good,
				t.Quantity,
				t.Price,
				string(raw),
			); err != nil {
				rollback()
				continue
			}
			opCount++
			if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
				commit()
			}

		case reqBarrier:
			commit()
			close(r.done)
		}
	}

	commit()
}

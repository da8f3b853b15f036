// Package indexdb keeps a secondary sqlite index of the saves on
// disk: one row per named map with its last save time and tile count,
// plus the catalog digests of the process that wrote it. The GUI's
// load-map menu reads this instead of peeking every info.ron. The
// mapfile tree remains the source of truth; rows here are advisory
// and rebuilt on every save.
package indexdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"hexmill.dev/internal/sim/catalogs"
)

type Index struct {
	db *sql.DB

	ch   chan saveRowReq
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

// SaveRow is one indexed save.
type SaveRow struct {
	Name      string
	SaveTime  time.Time
	TileCount int
	UpdatedAt time.Time
}

type saveRowReq struct {
	name      string
	saveTime  time.Time
	tileCount int
	done      chan struct{} // set only by Flush
}

func Open(path string) (*Index, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
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

	x := &Index{
		db: db,
		ch: make(chan saveRowReq, 64),
	}
	x.wg.Add(1)
	go func() {
		defer x.wg.Done()
		x.loop()
	}()
	return x, nil
}

func initPragmas(db *sql.DB) error {
	// WAL so index writes never block a concurrent menu read.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
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
		`CREATE TABLE IF NOT EXISTS saves (
			name TEXT PRIMARY KEY,
			save_time TEXT NOT NULL,
			tile_count INTEGER NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_saves_save_time ON saves(save_time);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (x *Index) Close() error {
	var err error
	x.once.Do(func() {
		x.closed.Store(true)
		close(x.ch)
		x.wg.Wait()
		err = x.db.Close()
	})
	return err
}

// RecordSave upserts the row for a named save. Non-blocking: if the
// writer falls behind the row is dropped, the filesystem still has
// the truth.
func (x *Index) RecordSave(name string, saveTime time.Time, tileCount int) {
	if x == nil || x.closed.Load() {
		return
	}
	select {
	case x.ch <- saveRowReq{name: name, saveTime: saveTime, tileCount: tileCount}:
	default:
	}
}

// UpsertCatalogs stores the running process's catalog digests so a
// later reader can tell which resource set wrote the index.
func (x *Index) UpsertCatalogs(reg *catalogs.Registry) error {
	if x == nil {
		return nil
	}
	rows := [][2]string{
		{"tile_digest", reg.TileDigest},
		{"item_digest", reg.ItemDigest},
		{"recipes_digest", reg.RecipesDigest},
	}
	for _, kv := range rows {
		if _, err := x.db.Exec(
			`INSERT INTO meta(key,value) VALUES(?,?)
			 ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
			kv[0], kv[1],
		); err != nil {
			return err
		}
	}
	return nil
}

// Lookup reads one save's row.
func (x *Index) Lookup(name string) (SaveRow, bool, error) {
	var r SaveRow
	var saveTime, updatedAt string
	err := x.db.QueryRow(
		`SELECT name, save_time, tile_count, updated_at FROM saves WHERE name = ?`, name,
	).Scan(&r.Name, &saveTime, &r.TileCount, &updatedAt)
	if err == sql.ErrNoRows {
		return SaveRow{}, false, nil
	}
	if err != nil {
		return SaveRow{}, false, err
	}
	r.SaveTime, _ = time.Parse(time.RFC3339Nano, saveTime)
	r.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return r, true, nil
}

// List returns every indexed save, most recently saved first.
func (x *Index) List() ([]SaveRow, error) {
	rows, err := x.db.Query(
		`SELECT name, save_time, tile_count, updated_at FROM saves ORDER BY save_time DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SaveRow
	for rows.Next() {
		var r SaveRow
		var saveTime, updatedAt string
		if err := rows.Scan(&r.Name, &saveTime, &r.TileCount, &updatedAt); err != nil {
			return nil, err
		}
		r.SaveTime, _ = time.Parse(time.RFC3339Nano, saveTime)
		r.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Flush blocks until every row queued before the call has been
// written. Test hook.
func (x *Index) Flush() {
	if x == nil || x.closed.Load() {
		return
	}
	done := make(chan struct{})
	x.ch <- saveRowReq{done: done}
	<-done
}

func (x *Index) loop() {
	upsert, err := x.db.Prepare(
		`INSERT INTO saves(name,save_time,tile_count,updated_at) VALUES(?,?,?,?)
		 ON CONFLICT(name) DO UPDATE SET
		   save_time=excluded.save_time,
		   tile_count=excluded.tile_count,
		   updated_at=excluded.updated_at`)
	if err != nil {
		return
	}
	defer upsert.Close()

	for r := range x.ch {
		if r.done != nil {
			close(r.done)
			continue
		}
		now := time.Now().UTC().Format(time.RFC3339Nano)
		_, _ = upsert.Exec(
			r.name,
			r.saveTime.UTC().Format(time.RFC3339Nano),
			r.tileCount,
			now,
		)
	}
}

package indexdb

import (
	"path/filepath"
	"testing"
	"time"

	"hexmill.dev/internal/sim/catalogs"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	x, err := Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = x.Close() })
	return x
}

func TestRecordSaveUpsertsAndLists(t *testing.T) {
	x := openTestIndex(t)

	first := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	x.RecordSave("factory", first, 12)
	x.RecordSave("sandbox", first.Add(time.Hour), 3)
	x.Flush()

	row, ok, err := x.Lookup("factory")
	if err != nil || !ok {
		t.Fatalf("lookup factory: ok=%v err=%v", ok, err)
	}
	if row.TileCount != 12 || !row.SaveTime.Equal(first) {
		t.Fatalf("row = %+v", row)
	}

	// Re-saving the same map replaces the row instead of adding one.
	x.RecordSave("factory", first.Add(2*time.Hour), 20)
	x.Flush()

	rows, err := x.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].Name != "factory" || rows[0].TileCount != 20 {
		t.Fatalf("newest row = %+v, want updated factory first", rows[0])
	}
}

func TestLookupMissing(t *testing.T) {
	x := openTestIndex(t)
	if _, ok, err := x.Lookup("nope"); ok || err != nil {
		t.Fatalf("missing row: ok=%v err=%v", ok, err)
	}
}

func TestUpsertCatalogs(t *testing.T) {
	x := openTestIndex(t)

	reg, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("load configs: %v", err)
	}
	if err := x.UpsertCatalogs(reg); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	// Idempotent.
	if err := x.UpsertCatalogs(reg); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	var digest string
	if err := x.db.QueryRow(`SELECT value FROM meta WHERE key = 'tile_digest'`).Scan(&digest); err != nil {
		t.Fatalf("read meta: %v", err)
	}
	if digest != reg.TileDigest {
		t.Fatalf("stored tile digest = %q, want %q", digest, reg.TileDigest)
	}
}

func TestWritesAfterCloseAreIgnored(t *testing.T) {
	x := openTestIndex(t)
	_ = x.Close()
	x.RecordSave("late", time.Now(), 1)
	x.Flush()
}

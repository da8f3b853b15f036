package game

import (
	"sort"
	"time"

	"hexmill.dev/internal/sim/hexgrid"
	"hexmill.dev/internal/sim/ident"
	"hexmill.dev/internal/sim/tiledata"
)

// TransactionRecord is one completed transfer, kept briefly so the
// render layer can animate items in flight.
type TransactionRecord struct {
	Stack       tiledata.ItemStack
	SourceCoord hexgrid.Coord
	DestCoord   hexgrid.Coord
	SourceID    ident.TileID
	DestID      ident.TileID
	At          time.Time
}

// recordKey dedupes records per source/destination pair.
type recordKey struct {
	Src hexgrid.Coord
	Dst hexgrid.Coord
}

func (g *Game) handleRecordTransaction(m msgRecordTransaction) {
	key := recordKey{Src: m.SourceCoord, Dst: m.DestCoord}
	now := time.Now()
	if prev, ok := g.records[key]; ok && now.Sub(prev.At) < g.cfg.RecordMinGap() {
		return
	}
	g.records[key] = TransactionRecord{
		Stack:       m.Stack,
		SourceCoord: m.SourceCoord,
		DestCoord:   m.DestCoord,
		SourceID:    m.SourceID,
		DestID:      m.DestID,
		At:          now,
	}
}

// handleGetRecords evicts expired records and returns what remains,
// oldest first.
func (g *Game) handleGetRecords() []TransactionRecord {
	now := time.Now()
	window := g.cfg.RecordWindow()
	out := make([]TransactionRecord, 0, len(g.records))
	for key, rec := range g.records {
		if now.Sub(rec.At) > window {
			delete(g.records, key)
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}

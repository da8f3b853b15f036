package game

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"hexmill.dev/internal/persistence/mapfile"
	"hexmill.dev/internal/sim/catalogs"
	"hexmill.dev/internal/sim/errq"
	"hexmill.dev/internal/sim/hexgrid"
	"hexmill.dev/internal/sim/ident"
	"hexmill.dev/internal/sim/tiledata"
	"hexmill.dev/internal/sim/tuning"
)

func newTestGame(t *testing.T) (*Game, *catalogs.Registry) {
	t.Helper()
	return newTestGameCfg(t, tuning.Defaults())
}

func newTestGameCfg(t *testing.T, cfg tuning.Tuning) (*Game, *catalogs.Registry) {
	t.Helper()
	reg, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("load configs: %v", err)
	}
	cfg.MapRoot = t.TempDir()
	g := New(zap.NewNop(), reg, errq.New(0), cfg)
	ctx, cancel := context.WithCancel(context.Background())
	go g.RunManual(ctx)
	t.Cleanup(func() {
		cancel()
		g.Stop()
	})
	return g, reg
}

func mustID(t *testing.T, reg *catalogs.Registry, s string) ident.ID {
	t.Helper()
	id, ok := reg.Interner.GetString(s, catalogs.DefaultNamespace)
	if !ok {
		t.Fatalf("unknown id %q", s)
	}
	return id
}

func mustTile(t *testing.T, reg *catalogs.Registry, s string) ident.TileID {
	return ident.TileID(mustID(t, reg, s))
}

// settle drains the message chain along the given coords: reading a
// tile's data flushes its mailbox, and the follow-up map lookup
// flushes whatever the tile posted back to the coordinator.
func settle(g *Game, chain ...hexgrid.Coord) {
	for _, c := range chain {
		g.TileData(c)
		g.GetTile(c)
	}
}

func TestProducerPushesToVoidAndRecords(t *testing.T) {
	g, reg := newTestGame(t)
	machine := mustTile(t, reg, "machine")
	void := mustTile(t, reg, "void")
	iron := mustID(t, reg, "iron")

	src := hexgrid.At(0, 0)
	dst := hexgrid.At(1, 0)
	g.PlaceTile(src, machine, tiledata.DataMap{
		reg.Keys.Script: tiledata.OfID(mustID(t, reg, "recipe/make_iron")),
		reg.Keys.Target: tiledata.OfCoord(hexgrid.Right),
	}, false)
	g.PlaceTile(dst, void, nil, false)

	g.StepOnce()
	settle(g, src, dst, src)

	recs := g.RecordedTransactions()
	if len(recs) != 1 {
		t.Fatalf("records = %d, want 1", len(recs))
	}
	r := recs[0]
	if r.SourceCoord != src || r.DestCoord != dst {
		t.Fatalf("record route %v -> %v, want %v -> %v", r.SourceCoord, r.DestCoord, src, dst)
	}
	if r.Stack.ID != iron || r.Stack.Amount != 1 {
		t.Fatalf("record stack = %+v, want iron x1", r.Stack)
	}
	if r.SourceID != machine || r.DestID != void {
		t.Fatalf("record ids = %v -> %v", r.SourceID, r.DestID)
	}
}

func TestMachineConsumesInputsOnSuccessfulPush(t *testing.T) {
	g, reg := newTestGame(t)
	machine := mustTile(t, reg, "machine")
	void := mustTile(t, reg, "void")
	iron := mustID(t, reg, "iron")
	plate := mustID(t, reg, "plate")

	src := hexgrid.At(0, 0)
	dst := hexgrid.At(1, 0)
	g.PlaceTile(src, machine, tiledata.DataMap{
		reg.Keys.Script: tiledata.OfID(mustID(t, reg, "recipe/make_plate")),
		reg.Keys.Target: tiledata.OfCoord(hexgrid.Right),
		reg.Keys.Buffer: tiledata.OfInventory(tiledata.Inventory{iron: 2}),
	}, false)
	g.PlaceTile(dst, void, nil, false)

	g.StepOnce()
	settle(g, src, dst, src)

	data, ok := g.TileData(src)
	if !ok {
		t.Fatal("machine data missing")
	}
	buf, _ := data.Inventory(reg.Keys.Buffer)
	if got := buf.Get(iron); got != 0 {
		t.Fatalf("buffer iron after debit = %d, want 0", got)
	}
	recs := g.RecordedTransactions()
	if len(recs) != 1 || recs[0].Stack.ID != plate || recs[0].Stack.Amount != 1 {
		t.Fatalf("records = %+v, want one plate x1", recs)
	}
}

func TestMachineWithoutInputsDoesNotFire(t *testing.T) {
	g, reg := newTestGame(t)
	machine := mustTile(t, reg, "machine")
	void := mustTile(t, reg, "void")

	src := hexgrid.At(0, 0)
	g.PlaceTile(src, machine, tiledata.DataMap{
		reg.Keys.Script: tiledata.OfID(mustID(t, reg, "recipe/make_plate")),
		reg.Keys.Target: tiledata.OfCoord(hexgrid.Right),
	}, false)
	g.PlaceTile(hexgrid.At(1, 0), void, nil, false)

	g.StepOnce()
	settle(g, src, hexgrid.At(1, 0), src)

	if recs := g.RecordedTransactions(); len(recs) != 0 {
		t.Fatalf("records = %+v, want none", recs)
	}
}

func TestStorageAcceptsUntilFullAndClamps(t *testing.T) {
	g, reg := newTestGame(t)
	machine := mustTile(t, reg, "machine")
	storage := mustTile(t, reg, "storage")
	iron := mustID(t, reg, "iron")

	src := hexgrid.At(0, 0)
	dst := hexgrid.At(1, 0)
	g.PlaceTile(src, machine, tiledata.DataMap{
		reg.Keys.Script: tiledata.OfID(mustID(t, reg, "recipe/make_iron")),
		reg.Keys.Target: tiledata.OfCoord(hexgrid.Right),
	}, false)
	g.PlaceTile(dst, storage, tiledata.DataMap{
		reg.Keys.Item:   tiledata.OfID(iron),
		reg.Keys.Amount: tiledata.OfAmount(2),
	}, false)

	for i := 0; i < 4; i++ {
		g.StepOnce()
		settle(g, src, dst, src)
	}

	data, _ := g.TileData(dst)
	buf, _ := data.Inventory(reg.Keys.Buffer)
	if got := buf.Get(iron); got != 2 {
		t.Fatalf("stored iron = %d, want capped at 2", got)
	}
}

func TestStorageWithoutConfigRejectsOffers(t *testing.T) {
	g, reg := newTestGame(t)
	machine := mustTile(t, reg, "machine")
	storage := mustTile(t, reg, "storage")

	src := hexgrid.At(0, 0)
	dst := hexgrid.At(1, 0)
	g.PlaceTile(src, machine, tiledata.DataMap{
		reg.Keys.Script: tiledata.OfID(mustID(t, reg, "recipe/make_iron")),
		reg.Keys.Target: tiledata.OfCoord(hexgrid.Right),
	}, false)
	g.PlaceTile(dst, storage, nil, false)

	g.StepOnce()
	settle(g, src, dst, src)

	if recs := g.RecordedTransactions(); len(recs) != 0 {
		t.Fatalf("records = %+v, want none for rejected offer", recs)
	}
}

func TestNodePullsThroughMasterNode(t *testing.T) {
	g, reg := newTestGame(t)
	storage := mustTile(t, reg, "storage")
	master := mustTile(t, reg, "master_node")
	node := mustTile(t, reg, "node")
	void := mustTile(t, reg, "void")
	iron := mustID(t, reg, "iron")

	sAt := hexgrid.At(0, 0)
	mAt := hexgrid.At(1, 0)
	nAt := hexgrid.At(2, 0)
	vAt := hexgrid.At(3, 0)

	g.PlaceTile(sAt, storage, tiledata.DataMap{
		reg.Keys.Item:   tiledata.OfID(iron),
		reg.Keys.Amount: tiledata.OfAmount(5),
		reg.Keys.Buffer: tiledata.OfInventory(tiledata.Inventory{iron: 5}),
	}, false)
	g.PlaceTile(mAt, master, tiledata.DataMap{
		reg.Keys.Target: tiledata.OfCoord(hexgrid.Left),
	}, false)
	g.PlaceTile(nAt, node, tiledata.DataMap{
		reg.Keys.Link:   tiledata.OfCoord(hexgrid.Left),
		reg.Keys.Target: tiledata.OfCoord(hexgrid.Right),
	}, false)
	g.PlaceTile(vAt, void, nil, false)

	// First tick: the node's pull travels node -> master -> storage,
	// and the storage pushes its contents back to the node.
	g.StepOnce()
	settle(g, nAt, mAt, sAt, nAt, sAt)

	sData, _ := g.TileData(sAt)
	sBuf, _ := sData.Inventory(reg.Keys.Buffer)
	if got := sBuf.Get(iron); got != 0 {
		t.Fatalf("storage after pull = %d iron, want 0", got)
	}
	nData, _ := g.TileData(nAt)
	nBuf, _ := nData.Inventory(reg.Keys.Buffer)
	if got := nBuf.Get(iron); got != 5 {
		t.Fatalf("node bank = %d iron, want 5", got)
	}

	// Second tick: the node drains its bank toward its target.
	g.StepOnce()
	settle(g, nAt, vAt, nAt)

	nData, _ = g.TileData(nAt)
	nBuf, _ = nData.Inventory(reg.Keys.Buffer)
	if got := nBuf.Get(iron); got != 0 {
		t.Fatalf("node bank after drain = %d iron, want 0", got)
	}

	var sawVoid bool
	for _, r := range g.RecordedTransactions() {
		if r.DestCoord == vAt && r.Stack.ID == iron && r.Stack.Amount == 5 {
			sawVoid = true
		}
	}
	if !sawVoid {
		t.Fatal("missing node -> void record for iron x5")
	}
}

func TestSplitterRoutesAwayFromIncomingLeg(t *testing.T) {
	g, reg := newTestGame(t)
	machine := mustTile(t, reg, "machine")
	splitter := mustTile(t, reg, "splitter")
	void := mustTile(t, reg, "void")

	// Producer sits on the splitter's top-left leg and pushes inward,
	// so the remaining candidates are the bottom-left and right legs.
	split := hexgrid.At(0, 0)
	src := split.Add(hexgrid.TopLeft)
	legBL := split.Add(hexgrid.BottomLeft)
	legR := split.Add(hexgrid.Right)

	g.PlaceTile(src, machine, tiledata.DataMap{
		reg.Keys.Script: tiledata.OfID(mustID(t, reg, "recipe/make_iron")),
		reg.Keys.Target: tiledata.OfCoord(hexgrid.BottomRight),
	}, false)
	g.PlaceTile(split, splitter, nil, false)
	g.PlaceTile(legBL, void, nil, false)
	g.PlaceTile(legR, void, nil, false)

	seen := map[hexgrid.Coord]bool{}
	for i := 0; i < 200 && (!seen[legBL] || !seen[legR]); i++ {
		g.StepOnce()
		settle(g, src, split, legBL, legR, src)
		for _, r := range g.RecordedTransactions() {
			seen[r.DestCoord] = true
		}
	}
	if !seen[legBL] || !seen[legR] {
		t.Fatalf("splitter never used both outgoing legs: %v", seen)
	}
	if seen[src] {
		t.Fatal("splitter routed back out the incoming leg")
	}
}

func TestDanglingTargetDropsKey(t *testing.T) {
	g, reg := newTestGame(t)
	machine := mustTile(t, reg, "machine")

	src := hexgrid.At(0, 0)
	g.PlaceTile(src, machine, tiledata.DataMap{
		reg.Keys.Script: tiledata.OfID(mustID(t, reg, "recipe/make_iron")),
		reg.Keys.Target: tiledata.OfCoord(hexgrid.Right),
	}, false)

	g.StepOnce()
	settle(g, src, src)

	if _, ok := g.TileDataValue(src, reg.Keys.Target); ok {
		t.Fatal("target key survived a push into an empty cell")
	}
}

func TestPlaceRemoveAndIdempotence(t *testing.T) {
	g, reg := newTestGame(t)
	machine := mustTile(t, reg, "machine")
	none := reg.NoneTile()
	at := hexgrid.At(2, -1)

	if got := g.PlaceTile(at, none, nil, true); got != Ignored {
		t.Fatalf("none on empty = %v, want Ignored", got)
	}
	if got := g.PlaceTile(at, machine, nil, true); got != Placed {
		t.Fatalf("place = %v, want Placed", got)
	}
	if got := g.PlaceTile(at, machine, nil, true); got != Ignored {
		t.Fatalf("re-place same id = %v, want Ignored", got)
	}
	if got := g.PlaceTile(at, none, nil, true); got != Removed {
		t.Fatalf("remove = %v, want Removed", got)
	}
	if _, ok := g.GetTile(at); ok {
		t.Fatal("tile survived removal")
	}
}

func TestUndoRestoresPlacementAndRemoval(t *testing.T) {
	g, reg := newTestGame(t)
	machine := mustTile(t, reg, "machine")
	storage := mustTile(t, reg, "storage")
	at := hexgrid.At(0, 0)

	g.PlaceTile(at, machine, tiledata.DataMap{
		reg.Keys.Script: tiledata.OfID(mustID(t, reg, "recipe/make_iron")),
	}, true)
	g.PlaceTile(at, storage, nil, true)

	if !g.Undo() {
		t.Fatal("undo replace failed")
	}
	if id, _ := g.GetTile(at); id != machine {
		t.Fatalf("after undo tile = %v, want machine", id)
	}
	if v, ok := g.TileDataValue(at, reg.Keys.Script); !ok {
		t.Fatal("auxiliary script lost across undo")
	} else if got, _ := v.AsID(); got != mustID(t, reg, "recipe/make_iron") {
		t.Fatalf("script after undo = %v", got)
	}

	if !g.Undo() {
		t.Fatal("undo place failed")
	}
	if _, ok := g.GetTile(at); ok {
		t.Fatal("first placement survived its undo")
	}
	if g.Undo() {
		t.Fatal("undo on empty log succeeded")
	}
}

func TestUndoLogIsBounded(t *testing.T) {
	g, reg := newTestGame(t)
	machine := mustTile(t, reg, "machine")

	for q := 0; q < 20; q++ {
		g.PlaceTile(hexgrid.At(hexgrid.Unit(q), 0), machine, nil, true)
	}
	undone := 0
	for g.Undo() {
		undone++
	}
	if undone != 16 {
		t.Fatalf("undo depth = %d, want 16", undone)
	}
}

func TestMoveTilesAndUndoMove(t *testing.T) {
	g, reg := newTestGame(t)
	machine := mustTile(t, reg, "machine")
	storage := mustTile(t, reg, "storage")
	iron := mustID(t, reg, "iron")

	a := hexgrid.At(0, 0)
	b := hexgrid.At(1, 0)
	offset := hexgrid.At(3, 0)

	g.PlaceTile(a, machine, tiledata.DataMap{
		reg.Keys.Script: tiledata.OfID(mustID(t, reg, "recipe/make_iron")),
	}, false)
	g.PlaceTile(b, storage, tiledata.DataMap{
		reg.Keys.Item:   tiledata.OfID(iron),
		reg.Keys.Amount: tiledata.OfAmount(8),
	}, false)

	g.MoveTiles([]hexgrid.Coord{a, b}, offset, true)

	if _, ok := g.GetTile(a); ok {
		t.Fatal("source cell still occupied after move")
	}
	if id, _ := g.GetTile(a.Add(offset)); id != machine {
		t.Fatal("machine missing at destination")
	}
	if v, ok := g.TileDataValue(b.Add(offset), reg.Keys.Item); !ok {
		t.Fatal("storage item config lost in move")
	} else if got, _ := v.AsID(); got != iron {
		t.Fatalf("moved storage item = %v, want iron", got)
	}

	if !g.Undo() {
		t.Fatal("undo move failed")
	}
	if id, _ := g.GetTile(a); id != machine {
		t.Fatal("machine not restored by undo")
	}
	if id, _ := g.GetTile(b); id != storage {
		t.Fatal("storage not restored by undo")
	}
	if _, ok := g.GetTile(a.Add(offset)); ok {
		t.Fatal("destination cell still occupied after undo")
	}
}

func TestCategoryItemDebitAndRefund(t *testing.T) {
	g, reg := newTestGame(t)
	golden := mustTile(t, reg, "golden_machine")
	part := mustID(t, reg, "machine_part")
	at := hexgrid.At(0, 0)

	if got := g.PlaceTile(at, golden, nil, false); got != Ignored {
		t.Fatalf("unaffordable placement = %v, want Ignored", got)
	}

	info := g.InfoAndName().Info
	info.With(func(data tiledata.DataMap) {
		data.EnsureInventory(reg.Keys.PlayerInventory).Add(part, 1)
	})

	if got := g.PlaceTile(at, golden, nil, false); got != Placed {
		t.Fatalf("affordable placement = %v, want Placed", got)
	}
	inv, _ := info.Snapshot().Inventory(reg.Keys.PlayerInventory)
	if got := inv.Get(part); got != 0 {
		t.Fatalf("inventory after debit = %d, want 0", got)
	}

	g.PlaceTile(at, reg.NoneTile(), nil, false)
	inv, _ = info.Snapshot().Inventory(reg.Keys.PlayerInventory)
	if got := inv.Get(part); got != 1 {
		t.Fatalf("inventory after refund = %d, want 1", got)
	}
}

func TestStopTickingFreezesSimulationAndMutations(t *testing.T) {
	g, reg := newTestGame(t)
	machine := mustTile(t, reg, "machine")

	g.StopTicking(true)
	if got := g.PlaceTile(hexgrid.At(0, 0), machine, nil, false); got != Ignored {
		t.Fatalf("placement while paused = %v, want Ignored", got)
	}
	if tick := g.StepOnce(); tick != 0 {
		t.Fatalf("tick advanced while paused: %d", tick)
	}

	g.StopTicking(false)
	if got := g.PlaceTile(hexgrid.At(0, 0), machine, nil, false); got != Placed {
		t.Fatalf("placement after resume = %v, want Placed", got)
	}
	if tick := g.StepOnce(); tick != 1 {
		t.Fatalf("tick after resume = %d, want 1", tick)
	}
}

func TestFailedTileIsEvicted(t *testing.T) {
	g, reg := newTestGame(t)
	machine := mustTile(t, reg, "machine")
	at := hexgrid.At(0, 0)

	g.PlaceTile(at, machine, nil, false)
	g.post(msgTileFailed{Coord: at, Err: context.DeadlineExceeded})
	g.GetTile(at)

	if _, ok := g.GetTile(at); ok {
		t.Fatal("failed tile still present")
	}
	if _, ok := g.TileData(at); ok {
		t.Fatal("failed tile still answers data queries")
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	g, reg := newTestGame(t)
	machine := mustTile(t, reg, "machine")
	storage := mustTile(t, reg, "storage")
	iron := mustID(t, reg, "iron")

	if err := g.LoadMap(mapfile.Named("round trip!")); err == nil {
		t.Fatal("loading a nonexistent save succeeded")
	}

	g.NewMap(mapfile.Named("round trip!"))

	g.PlaceTile(hexgrid.At(0, 0), machine, tiledata.DataMap{
		reg.Keys.Script: tiledata.OfID(mustID(t, reg, "recipe/make_iron")),
		reg.Keys.Target: tiledata.OfCoord(hexgrid.Right),
	}, false)
	g.PlaceTile(hexgrid.At(1, 0), storage, tiledata.DataMap{
		reg.Keys.Item:   tiledata.OfID(iron),
		reg.Keys.Amount: tiledata.OfAmount(64),
	}, false)

	if err := g.SaveMap(); err != nil {
		t.Fatalf("save: %v", err)
	}
	// Wipe and reload.
	g.PlaceTile(hexgrid.At(0, 0), reg.NoneTile(), nil, false)
	g.PlaceTile(hexgrid.At(1, 0), reg.NoneTile(), nil, false)
	if err := g.LoadMap(mapfile.Named("round trip!")); err != nil {
		t.Fatalf("load: %v", err)
	}

	if id, _ := g.GetTile(hexgrid.At(0, 0)); id != machine {
		t.Fatal("machine missing after reload")
	}
	if v, ok := g.TileDataValue(hexgrid.At(1, 0), reg.Keys.Amount); !ok {
		t.Fatal("storage amount missing after reload")
	} else if got, _ := v.AsAmount(); got != 64 {
		t.Fatalf("storage amount after reload = %d, want 64", got)
	}
	if name := g.InfoAndName().Name; name != "round_trip_" {
		t.Fatalf("map name = %q", name)
	}
}

func TestBuiltinMapLoadsAndNeverSaves(t *testing.T) {
	g, reg := newTestGame(t)

	if err := g.LoadMap(mapfile.Debug); err != nil {
		t.Fatalf("load built-in: %v", err)
	}
	tiles := g.GetTiles([]hexgrid.Coord{
		hexgrid.At(0, 0), hexgrid.At(1, 0), hexgrid.At(2, 0),
	})
	if len(tiles) == 0 {
		t.Fatal("built-in debug map loaded empty")
	}
	if err := g.SaveMap(); err != nil {
		t.Fatalf("save of built-in should be a silent no-op, got %v", err)
	}

	inv, ok := g.InfoAndName().Info.Snapshot().Inventory(reg.Keys.PlayerInventory)
	if !ok || inv.Get(mustID(t, reg, "machine_part")) != 10 {
		t.Fatal("debug map player inventory not restored")
	}
}

func TestRenderUnitsCullAndCache(t *testing.T) {
	g, reg := newTestGame(t)
	machine := mustTile(t, reg, "machine")
	storage := mustTile(t, reg, "storage")
	iron := mustID(t, reg, "iron")

	g.PlaceTile(hexgrid.At(0, 0), machine, nil, false)
	g.PlaceTile(hexgrid.At(1, 0), storage, tiledata.DataMap{
		reg.Keys.Item: tiledata.OfID(iron),
	}, false)
	g.PlaceTile(hexgrid.At(9, 0), machine, nil, false)

	bounds := hexgrid.Bounds{Center: hexgrid.Zero, Radius: 2}
	units := g.RenderUnits(bounds)
	if len(units) != 2 {
		t.Fatalf("visible units = %d, want 2", len(units))
	}
	u := units[hexgrid.At(1, 0)]
	if u.TileID != storage {
		t.Fatalf("unit tile = %v, want storage", u.TileID)
	}
	if u.Unit.ModelOverride == nil {
		t.Fatal("configured storage should override its model with the item's")
	}
	x, _ := hexgrid.At(1, 0).ToPixel()
	if got := u.Unit.Instance.Matrix[12]; got != float32(x) {
		t.Fatalf("translation x = %v, want %v", got, x)
	}

	// Mutation invalidates the cached bounds.
	g.PlaceTile(hexgrid.At(0, 1), machine, nil, false)
	if units = g.RenderUnits(bounds); len(units) != 3 {
		t.Fatalf("visible units after mutation = %d, want 3", len(units))
	}
}

func TestSaturatedInboxDoesNotWedgeBulkReads(t *testing.T) {
	cfg := tuning.Defaults()
	cfg.GameInboxSize = 1
	cfg.TileMailboxSize = 1
	g, reg := newTestGameCfg(t, cfg)
	machine := mustTile(t, reg, "machine")
	void := mustTile(t, reg, "void")
	makeIron := mustID(t, reg, "recipe/make_iron")

	var coords []hexgrid.Coord
	for i := 0; i < 8; i++ {
		src := hexgrid.At(hexgrid.Unit(i*2), 0)
		dst := hexgrid.At(hexgrid.Unit(i*2+1), 0)
		g.PlaceTile(src, machine, tiledata.DataMap{
			reg.Keys.Script: tiledata.OfID(makeIron),
			reg.Keys.Target: tiledata.OfCoord(hexgrid.Right),
		}, false)
		g.PlaceTile(dst, void, nil, false)
		coords = append(coords, src, dst)
	}

	// With one-slot queues every tick floods the inbox while the bulk
	// read holds the loop in synchronous tile exchanges. The loop must
	// keep draining or the whole simulation stalls here.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			g.StepOnce()
			g.GetTiles(coords)
		}
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("coordinator wedged under a full inbox")
	}
}

func TestMachineAdjacencyGateBlocksAndUnblocks(t *testing.T) {
	g, reg := newTestGame(t)
	machine := mustTile(t, reg, "machine")
	void := mustTile(t, reg, "void")
	storage := mustTile(t, reg, "storage")
	plate := mustID(t, reg, "plate")
	gear := mustID(t, reg, "gear")

	src := hexgrid.At(0, 0)
	dst := hexgrid.At(1, 0)
	g.PlaceTile(src, machine, tiledata.DataMap{
		reg.Keys.Script: tiledata.OfID(mustID(t, reg, "recipe/assemble")),
		reg.Keys.Target: tiledata.OfCoord(hexgrid.Right),
		reg.Keys.Buffer: tiledata.OfInventory(tiledata.Inventory{plate: 50, gear: 50}),
	}, false)
	g.PlaceTile(dst, void, nil, false)

	// The latch starts open, so the first scan interval produces.
	for i := 0; i < g.cfg.AdjacencyTicks; i++ {
		g.StepOnce()
	}
	settle(g, src, dst, src, src)
	data, _ := g.TileData(src)
	buf, _ := data.Inventory(reg.Keys.Buffer)
	if buf.Get(plate) == 50 {
		t.Fatal("latch should start open and allow production before the first scan")
	}

	// The scan found no storage neighbor; the machine must now idle.
	before := buf.Get(plate)
	for i := 0; i < 5; i++ {
		g.StepOnce()
	}
	settle(g, src, dst, src)
	data, _ = g.TileData(src)
	buf, _ = data.Inventory(reg.Keys.Buffer)
	if got := buf.Get(plate); got != before {
		t.Fatalf("machine produced without a storage neighbor: plate %d -> %d", before, got)
	}

	// A storage neighbor satisfies the tag; the next scan reopens the
	// latch and production resumes.
	g.PlaceTile(hexgrid.At(-1, 0), storage, nil, false)
	for i := 0; i < g.cfg.AdjacencyTicks; i++ {
		g.StepOnce()
	}
	settle(g, src, src)
	g.StepOnce()
	settle(g, src, dst, src)
	data, _ = g.TileData(src)
	buf, _ = data.Inventory(reg.Keys.Buffer)
	if got := buf.Get(plate); got >= before {
		t.Fatalf("machine stayed idle with a storage neighbor: plate still %d", got)
	}
}

func TestTransferRelaysTowardStorage(t *testing.T) {
	g, reg := newTestGame(t)
	machine := mustTile(t, reg, "machine")
	transfer := mustTile(t, reg, "transfer")
	storage := mustTile(t, reg, "storage")
	iron := mustID(t, reg, "iron")

	src := hexgrid.At(0, 0)
	mid := hexgrid.At(1, 0)
	dst := hexgrid.At(2, 0)
	g.PlaceTile(src, machine, tiledata.DataMap{
		reg.Keys.Script: tiledata.OfID(mustID(t, reg, "recipe/make_iron")),
		reg.Keys.Target: tiledata.OfCoord(hexgrid.Right),
	}, false)
	g.PlaceTile(mid, transfer, tiledata.DataMap{
		reg.Keys.Target: tiledata.OfCoord(hexgrid.Right),
	}, false)
	g.PlaceTile(dst, storage, tiledata.DataMap{
		reg.Keys.Item:   tiledata.OfID(iron),
		reg.Keys.Amount: tiledata.OfAmount(10),
	}, false)

	g.StepOnce()
	settle(g, src, mid, dst, src)

	data, _ := g.TileData(dst)
	buf, _ := data.Inventory(reg.Keys.Buffer)
	if got := buf.Get(iron); got != 1 {
		t.Fatalf("storage iron = %d, want 1", got)
	}
	recs := g.RecordedTransactions()
	if len(recs) != 1 {
		t.Fatalf("records = %d, want 1", len(recs))
	}
	// The relay keeps the producer as the transaction source.
	if recs[0].SourceCoord != src || recs[0].DestCoord != dst {
		t.Fatalf("record route %v -> %v, want %v -> %v",
			recs[0].SourceCoord, recs[0].DestCoord, src, dst)
	}
	if recs[0].DestID != storage {
		t.Fatalf("record dest id = %v, want storage", recs[0].DestID)
	}
}

func TestMergerCombinesTwoSources(t *testing.T) {
	g, reg := newTestGame(t)
	machine := mustTile(t, reg, "machine")
	merger := mustTile(t, reg, "merger")
	storage := mustTile(t, reg, "storage")
	iron := mustID(t, reg, "iron")
	makeIron := mustID(t, reg, "recipe/make_iron")

	left := hexgrid.At(0, 0)
	right := hexgrid.At(2, 0)
	mg := hexgrid.At(1, 0)
	st := mg.Add(hexgrid.BottomRight)
	g.PlaceTile(left, machine, tiledata.DataMap{
		reg.Keys.Script: tiledata.OfID(makeIron),
		reg.Keys.Target: tiledata.OfCoord(hexgrid.Right),
	}, false)
	g.PlaceTile(right, machine, tiledata.DataMap{
		reg.Keys.Script: tiledata.OfID(makeIron),
		reg.Keys.Target: tiledata.OfCoord(hexgrid.Left),
	}, false)
	g.PlaceTile(mg, merger, tiledata.DataMap{
		reg.Keys.Target: tiledata.OfCoord(hexgrid.BottomRight),
	}, false)
	g.PlaceTile(st, storage, tiledata.DataMap{
		reg.Keys.Item:   tiledata.OfID(iron),
		reg.Keys.Amount: tiledata.OfAmount(10),
	}, false)

	g.StepOnce()
	settle(g, left, right, mg, st, left, right)

	data, _ := g.TileData(st)
	buf, _ := data.Inventory(reg.Keys.Buffer)
	if got := buf.Get(iron); got != 2 {
		t.Fatalf("storage iron = %d, want 2", got)
	}
	recs := g.RecordedTransactions()
	if len(recs) != 2 {
		t.Fatalf("records = %d, want one per source", len(recs))
	}
	for _, r := range recs {
		if r.DestCoord != st {
			t.Fatalf("record dest = %v, want %v", r.DestCoord, st)
		}
		if r.SourceCoord != left && r.SourceCoord != right {
			t.Fatalf("record source = %v, want a producer", r.SourceCoord)
		}
	}
}

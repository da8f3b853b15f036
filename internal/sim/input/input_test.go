package input

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"hexmill.dev/internal/sim/catalogs"
	"hexmill.dev/internal/sim/errq"
	"hexmill.dev/internal/sim/game"
	"hexmill.dev/internal/sim/hexgrid"
	"hexmill.dev/internal/sim/ident"
	"hexmill.dev/internal/sim/tuning"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *game.Game, *catalogs.Registry) {
	t.Helper()
	reg, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("load configs: %v", err)
	}
	cfg := tuning.Defaults()
	cfg.MapRoot = t.TempDir()
	g := game.New(zap.NewNop(), reg, errq.New(0), cfg)
	ctx, cancel := context.WithCancel(context.Background())
	go g.RunManual(ctx)
	t.Cleanup(func() {
		cancel()
		g.Stop()
	})
	return NewDispatcher(g, reg, zap.NewNop()), g, reg
}

func tileID(t *testing.T, reg *catalogs.Registry, s string) ident.TileID {
	t.Helper()
	id, ok := reg.Interner.GetString(s, catalogs.DefaultNamespace)
	if !ok {
		t.Fatalf("unknown tile %q", s)
	}
	return ident.TileID(id)
}

func TestPrimaryClickPlacesWithOrientation(t *testing.T) {
	d, g, reg := newTestDispatcher(t)
	d.SelectTile(tileID(t, reg, "machine"))

	// Click just right of the origin hex center: the orientation
	// should snap to the right edge.
	cx, cy := hexgrid.Zero.ToPixel()
	if res := d.PrimaryClick(cx+0.4, cy); res != game.Placed {
		t.Fatalf("place = %v", res)
	}

	if id, _ := g.GetTile(hexgrid.Zero); id != tileID(t, reg, "machine") {
		t.Fatal("machine not placed at origin")
	}
	v, ok := g.TileDataValue(hexgrid.Zero, reg.Keys.Direction)
	if !ok {
		t.Fatal("orientation not attached")
	}
	if dir, _ := v.AsCoord(); dir != hexgrid.Right {
		t.Fatalf("orientation = %v, want right", dir)
	}
}

func TestPrimaryClickWithoutSelectionIgnored(t *testing.T) {
	d, g, _ := newTestDispatcher(t)
	if res := d.PrimaryClick(0, 0); res != game.Ignored {
		t.Fatalf("click without palette tile = %v", res)
	}
	if _, ok := g.GetTile(hexgrid.Zero); ok {
		t.Fatal("tile appeared without a selection")
	}
}

func TestLinkingFlow(t *testing.T) {
	d, g, reg := newTestDispatcher(t)
	node := tileID(t, reg, "node")
	g.PlaceTile(hexgrid.Zero, node, nil, false)
	g.PlaceTile(hexgrid.At(2, 0), tileID(t, reg, "storage"), nil, false)

	nodeX, nodeY := hexgrid.Zero.ToPixel()
	d.AlternateClick(nodeX, nodeY)
	if _, armed := d.Linking(); !armed {
		t.Fatal("linking tile not armed")
	}

	// Second click on the same tile disarms without writing.
	d.AlternateClick(nodeX, nodeY)
	if _, armed := d.Linking(); armed {
		t.Fatal("linking still armed after toggle off")
	}
	if _, ok := g.TileDataValue(hexgrid.Zero, reg.Keys.Link); ok {
		t.Fatal("link written by a toggle-off")
	}

	// Arm again, then link to the storage two hexes right.
	d.AlternateClick(nodeX, nodeY)
	tx, ty := hexgrid.At(2, 0).ToPixel()
	d.AlternateClick(tx, ty)

	v, ok := g.TileDataValue(hexgrid.Zero, reg.Keys.Link)
	if !ok {
		t.Fatal("link not written")
	}
	if link, _ := v.AsCoord(); link != hexgrid.At(2, 0) {
		t.Fatalf("link offset = %v, want (2,0)", link)
	}
}

func TestAlternateClickOnNonLinkingTileDoesNothing(t *testing.T) {
	d, g, reg := newTestDispatcher(t)
	g.PlaceTile(hexgrid.Zero, tileID(t, reg, "storage"), nil, false)

	x, y := hexgrid.Zero.ToPixel()
	d.AlternateClick(x, y)
	if _, armed := d.Linking(); armed {
		t.Fatal("storage armed for linking")
	}
}

func TestMoveSelectionAndEscape(t *testing.T) {
	d, g, reg := newTestDispatcher(t)
	machine := tileID(t, reg, "machine")
	g.PlaceTile(hexgrid.Zero, machine, nil, false)
	g.PlaceTile(hexgrid.At(1, 0), machine, nil, false)

	for _, c := range []hexgrid.Coord{hexgrid.Zero, hexgrid.At(1, 0)} {
		x, y := c.ToPixel()
		d.DragSelect(x, y)
	}
	if len(d.Selection()) != 2 {
		t.Fatalf("selection = %v", d.Selection())
	}

	d.MoveSelection(hexgrid.BottomRight)
	if _, ok := g.GetTile(hexgrid.Zero); ok {
		t.Fatal("tile left behind after group move")
	}
	if id, _ := g.GetTile(hexgrid.At(0, 1)); id != machine {
		t.Fatal("tile missing at moved position")
	}

	// The selection follows the tiles, so undo via Ctrl-Z still works
	// against the coordinator's log.
	if !d.Undo() {
		t.Fatal("undo after move failed")
	}
	if id, _ := g.GetTile(hexgrid.Zero); id != machine {
		t.Fatal("undo did not restore the group")
	}

	// Escape clears the selection first and only then asks to pause.
	if d.Escape() {
		t.Fatal("escape paused while a selection was active")
	}
	if d.Escape() != true {
		t.Fatal("second escape should reach the pause screen")
	}
}

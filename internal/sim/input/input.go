// Package input translates pointer and key events into coordinator
// calls: placement with orientation derived from the cursor's sub-hex
// offset, link toggling on linking tiles, drag selection, group moves
// and undo. It holds only view-side state (selection, pending link);
// the map itself always lives in the coordinator.
package input

import (
	"go.uber.org/zap"

	"hexmill.dev/internal/sim/catalogs"
	"hexmill.dev/internal/sim/game"
	"hexmill.dev/internal/sim/hexgrid"
	"hexmill.dev/internal/sim/ident"
	"hexmill.dev/internal/sim/tiledata"
)

type Dispatcher struct {
	game *game.Game
	reg  *catalogs.Registry
	log  *zap.Logger

	selected  ident.TileID
	selection map[hexgrid.Coord]struct{}
	linking   *hexgrid.Coord
}

func NewDispatcher(g *game.Game, reg *catalogs.Registry, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		game:      g,
		reg:       reg,
		log:       log,
		selection: map[hexgrid.Coord]struct{}{},
	}
}

// SelectTile sets the palette tile used by the next primary click.
func (d *Dispatcher) SelectTile(id ident.TileID) { d.selected = id }

// Selection returns the current drag-selected coords.
func (d *Dispatcher) Selection() []hexgrid.Coord {
	out := make([]hexgrid.Coord, 0, len(d.selection))
	for c := range d.selection {
		out = append(out, c)
	}
	return out
}

// PrimaryClick places the selected tile at the pointed coord. For
// tiles that are not direction-free, the cursor's sub-hex offset
// becomes the tile's orientation.
func (d *Dispatcher) PrimaryClick(x, y float64) game.PlaceResult {
	if d.selected == 0 {
		return game.Ignored
	}
	coord := hexgrid.FromPixel(x, y)

	var data tiledata.DataMap
	if def, ok := d.reg.Tile(d.selected); ok && !def.Indirectional {
		data = tiledata.DataMap{
			d.reg.Keys.Direction: tiledata.OfCoord(hexgrid.SubHexDirection(x, y)),
		}
	}
	return d.game.PlaceTile(coord, d.selected, data, true)
}

// AlternateClick drives the linking flow. Clicking a linking tile arms
// it; the next alternate click stores the offset from the armed tile
// to the pointed coord under its link key, and clicking the armed tile
// again disarms without writing.
func (d *Dispatcher) AlternateClick(x, y float64) {
	coord := hexgrid.FromPixel(x, y)

	if d.linking != nil {
		from := *d.linking
		d.linking = nil
		if coord == from {
			return
		}
		d.game.SetTileDataValue(from, d.reg.Keys.Link, tiledata.OfCoord(coord.Sub(from)))
		return
	}

	id, ok := d.game.GetTile(coord)
	if !ok {
		return
	}
	if def, known := d.reg.Tile(id); known && def.Linking {
		d.linking = &coord
	}
}

// Linking reports the armed linking tile, if any.
func (d *Dispatcher) Linking() (hexgrid.Coord, bool) {
	if d.linking == nil {
		return hexgrid.Coord{}, false
	}
	return *d.linking, true
}

// DragSelect adds the pointed coord to the selection set.
func (d *Dispatcher) DragSelect(x, y float64) {
	d.selection[hexgrid.FromPixel(x, y)] = struct{}{}
}

// MoveSelection shifts the whole selection by one hex step and keeps
// the selection tracking the moved tiles.
func (d *Dispatcher) MoveSelection(dir hexgrid.Coord) {
	if len(d.selection) == 0 {
		return
	}
	d.game.MoveTiles(d.Selection(), dir, true)
	moved := make(map[hexgrid.Coord]struct{}, len(d.selection))
	for c := range d.selection {
		moved[c.Add(dir)] = struct{}{}
	}
	d.selection = moved
}

// Undo reverts the latest recorded command.
func (d *Dispatcher) Undo() bool { return d.game.Undo() }

// Escape cancels linking first, then selection. With neither active it
// forces a save and reports that the caller should open the pause
// screen.
func (d *Dispatcher) Escape() bool {
	if d.linking != nil {
		d.linking = nil
		return false
	}
	if len(d.selection) > 0 {
		d.selection = map[hexgrid.Coord]struct{}{}
		return false
	}
	if err := d.game.SaveMap(); err != nil {
		d.log.Warn("save on pause failed", zap.Error(err))
	}
	return true
}

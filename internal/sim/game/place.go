package game

import (
	"hexmill.dev/internal/sim/hexgrid"
	"hexmill.dev/internal/sim/ident"
	"hexmill.dev/internal/sim/tiledata"
)

// placementCost is the item a placement debits from the player
// inventory, or 0 when the tile is free. Default tiles are always
// free so the starter map cannot strand the player.
func (g *Game) placementCost(id ident.TileID) ident.ID {
	def, ok := g.reg.Tiles[id]
	if !ok || def.DefaultTile || def.Category == 0 {
		return 0
	}
	cat, ok := g.reg.Categories[def.Category]
	if !ok {
		return 0
	}
	return cat.Item
}

func (g *Game) debitPlayer(item ident.ID) bool {
	if item == 0 {
		return true
	}
	ok := false
	g.info.With(func(data tiledata.DataMap) {
		inv := data.EnsureInventory(g.reg.Keys.PlayerInventory)
		if inv.Get(item) >= 1 {
			inv.Take(item, 1)
			ok = true
		}
	})
	return ok
}

func (g *Game) refundPlayer(item ident.ID) {
	if item == 0 {
		return
	}
	g.info.With(func(data tiledata.DataMap) {
		data.EnsureInventory(g.reg.Keys.PlayerInventory).Add(item, 1)
	})
}

// placeOne swaps the cell contents and returns the previous state as
// an inverse placement. changed is false when the command was a no-op
// (the caller then skips undo bookkeeping).
func (g *Game) placeOne(coord hexgrid.Coord, id ident.TileID, data tiledata.DataMap) (inverse Placement, result PlaceResult) {
	none := g.reg.NoneTile()
	prevID, occupied := g.tiles[coord]

	if !occupied || prevID == none {
		prevID = none
	}

	removing := id == 0 || id == none
	if removing {
		if !occupied {
			return Placement{}, Ignored
		}
		gone, prevData, _ := g.removeTileInternal(coord)
		g.refundPlayer(g.placementCost(gone))
		return Placement{Coord: coord, ID: gone, Data: g.copyAuxiliary(prevData)}, Removed
	}

	// Re-placing the same tile with no data override is a no-op.
	if occupied && prevID == id && data == nil {
		return Placement{}, Ignored
	}

	cost := g.placementCost(id)
	if !g.debitPlayer(cost) {
		return Placement{}, Ignored
	}

	var prevData tiledata.DataMap
	if occupied {
		gone, d, _ := g.removeTileInternal(coord)
		prevData = d
		g.refundPlayer(g.placementCost(gone))
	}

	t := g.spawnTile(id, coord)
	if data != nil {
		g.sendToTile(t, msgSetData{Data: data.Clone()})
	}
	g.tiles[coord] = id
	g.entities[coord] = t
	g.clearRenderCache()

	if !occupied {
		return Placement{Coord: coord, ID: none}, Placed
	}
	return Placement{Coord: coord, ID: prevID, Data: g.copyAuxiliary(prevData)}, Placed
}

func (g *Game) handlePlaceTile(coord hexgrid.Coord, id ident.TileID, data tiledata.DataMap, record bool) PlaceResult {
	if g.stopped {
		return Ignored
	}
	inverse, result := g.placeOne(coord, id, data)
	if result != Ignored && record {
		g.undo.push(undoStep{tiles: []Placement{inverse}})
	}
	return result
}

func (g *Game) handlePlaceTiles(tiles []Placement, placeOver, record bool) []Placement {
	if g.stopped {
		return nil
	}
	var inverse []Placement
	for _, p := range tiles {
		if !placeOver {
			if _, occupied := g.tiles[p.Coord]; occupied {
				continue
			}
		}
		inv, result := g.placeOne(p.Coord, p.ID, p.Data)
		if result != Ignored {
			inverse = append(inverse, inv)
		}
	}
	if len(inverse) > 0 && record {
		g.undo.push(undoStep{tiles: inverse})
	}
	return inverse
}

// handleMoveTiles picks the live tiles up (stopping their actors) and
// respawns them offset, keeping only the auxiliary data. Ordering
// matters: every source is lifted before any destination fills, so a
// group can shift onto its own cells.
func (g *Game) handleMoveTiles(coords []hexgrid.Coord, offset hexgrid.Coord, record bool) {
	if g.stopped || offset == hexgrid.Zero {
		return
	}
	type lifted struct {
		coord hexgrid.Coord
		id    ident.TileID
		data  tiledata.DataMap
	}
	var moved []lifted
	for _, c := range coords {
		id, ok := g.tiles[c]
		if !ok {
			continue
		}
		_, data, _ := g.removeTileInternal(c)
		moved = append(moved, lifted{coord: c, id: id, data: g.copyAuxiliary(data)})
	}
	if len(moved) == 0 {
		return
	}
	for _, l := range moved {
		dst := l.coord.Add(offset)
		if _, occupied := g.tiles[dst]; occupied {
			g.removeTileInternal(dst)
		}
		t := g.spawnTile(l.id, dst)
		if l.data != nil {
			g.sendToTile(t, msgSetData{Data: l.data})
		}
		g.tiles[dst] = l.id
		g.entities[dst] = t
	}
	g.clearRenderCache()
	if record {
		dsts := make([]hexgrid.Coord, len(moved))
		for i, l := range moved {
			dsts[i] = l.coord.Add(offset)
		}
		g.undo.push(undoStep{isMove: true, coords: dsts, offset: offset.Neg()})
	}
}

func (g *Game) handleUndo() bool {
	if g.stopped {
		return false
	}
	step, ok := g.undo.pop()
	if !ok {
		return false
	}
	if step.isMove {
		g.handleMoveTiles(step.coords, step.offset, false)
		return true
	}
	g.handlePlaceTiles(step.tiles, true, false)
	return true
}

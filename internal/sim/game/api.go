package game

import (
	"hexmill.dev/internal/persistence/mapfile"
	"hexmill.dev/internal/sim/hexgrid"
	"hexmill.dev/internal/sim/ident"
	"hexmill.dev/internal/sim/tiledata"
)

// The request methods below are the only external surface of the
// coordinator. Each posts a message and awaits the loop's one-shot
// reply; the zero value comes back if the loop has stopped.

func await[T any](g *Game, resp <-chan T) T {
	select {
	case v := <-resp:
		return v
	case <-g.stopc:
		var zero T
		return zero
	}
}

// StepOnce advances the simulation by exactly one tick and returns
// the new tick counter. Pair with RunManual for deterministic runs.
func (g *Game) StepOnce() uint16 {
	resp := make(chan uint16, 1)
	g.post(msgStep{Resp: resp})
	return await(g, resp)
}

// StopTicking pauses (or resumes) the simulation. While paused, ticks
// and map mutations are ignored; reads and saves still work.
func (g *Game) StopTicking(stopped bool) {
	resp := make(chan struct{}, 1)
	g.post(msgStopTicking{Stopped: stopped, Resp: resp})
	await(g, resp)
}

// PlaceTile places, replaces, or removes (id none) the tile at coord.
func (g *Game) PlaceTile(coord hexgrid.Coord, id ident.TileID, data tiledata.DataMap, record bool) PlaceResult {
	resp := make(chan PlaceResult, 1)
	g.post(msgPlaceTile{Coord: coord, ID: id, Data: data, Record: record, Resp: resp})
	return await(g, resp)
}

// PlaceTiles applies a batch of placements and returns the inverse
// batch that restores the previous cell contents.
func (g *Game) PlaceTiles(tiles []Placement, placeOver, record bool) []Placement {
	resp := make(chan []Placement, 1)
	g.post(msgPlaceTiles{Tiles: tiles, PlaceOver: placeOver, Record: record, Resp: resp})
	return await(g, resp)
}

// MoveTiles shifts every occupied coord in the set by offset.
func (g *Game) MoveTiles(coords []hexgrid.Coord, offset hexgrid.Coord, record bool) {
	resp := make(chan struct{}, 1)
	g.post(msgMoveTiles{Coords: coords, Offset: offset, Record: record, Resp: resp})
	await(g, resp)
}

// Undo reverts the most recent recorded command. Returns false when
// the log is empty.
func (g *Game) Undo() bool {
	resp := make(chan bool, 1)
	g.post(msgUndo{Resp: resp})
	return await(g, resp)
}

// NewMap starts an empty map under the given name. The save file is
// only created on the next SaveMap.
func (g *Game) NewMap(opt mapfile.Option) {
	resp := make(chan struct{}, 1)
	g.post(msgNewMap{Opt: opt, Resp: resp})
	await(g, resp)
}

// LoadMap replaces the running map with the named (or built-in) save.
func (g *Game) LoadMap(opt mapfile.Option) error {
	resp := make(chan error, 1)
	g.post(msgLoadMap{Opt: opt, Resp: resp})
	return await(g, resp)
}

// SaveMap writes the running map to disk. Built-in maps are skipped.
func (g *Game) SaveMap() error {
	resp := make(chan error, 1)
	g.post(msgSaveMap{Resp: resp})
	return await(g, resp)
}

// InfoAndName returns the shared map-info handle and the map name.
func (g *Game) InfoAndName() MapInfoAndName {
	resp := make(chan MapInfoAndName, 1)
	g.post(msgMapInfo{Resp: resp})
	return await(g, resp)
}

// GetTile looks up the tile id at coord.
func (g *Game) GetTile(coord hexgrid.Coord) (ident.TileID, bool) {
	resp := make(chan TileReply, 1)
	g.post(msgGetTile{Coord: coord, Resp: resp})
	r := await(g, resp)
	return r.ID, r.OK
}

// GetTiles snapshots the named cells, auxiliary data included. Empty
// cells are omitted.
func (g *Game) GetTiles(coords []hexgrid.Coord) []TileEntry {
	resp := make(chan []TileEntry, 1)
	g.post(msgGetTiles{Coords: coords, Resp: resp})
	return await(g, resp)
}

// TileData returns a snapshot of the tile's full data map.
func (g *Game) TileData(coord hexgrid.Coord) (tiledata.DataMap, bool) {
	resp := make(chan tileDataReply, 1)
	g.post(msgTileData{Coord: coord, Resp: resp})
	r := await(g, resp)
	return r.Data, r.OK
}

// TileDataValue reads one key from the tile's data map.
func (g *Game) TileDataValue(coord hexgrid.Coord, key ident.ID) (tiledata.Data, bool) {
	resp := make(chan tileValueReply, 1)
	g.post(msgTileValue{Coord: coord, Key: key, Resp: resp})
	r := await(g, resp)
	return r.Value, r.OK
}

// SetTileDataValue sets one key on the tile at coord. Returns false
// when the cell is empty.
func (g *Game) SetTileDataValue(coord hexgrid.Coord, key ident.ID, value tiledata.Data) bool {
	return g.forwardToTile(coord, msgSetDataValue{Key: key, Value: value})
}

// RemoveTileDataValue deletes one key from the tile at coord.
func (g *Game) RemoveTileDataValue(coord hexgrid.Coord, key ident.ID) bool {
	return g.forwardToTile(coord, msgRemoveData{Key: key})
}

// SetTileData replaces the tile's whole data map.
func (g *Game) SetTileData(coord hexgrid.Coord, data tiledata.DataMap) bool {
	return g.forwardToTile(coord, msgSetData{Data: data.Clone()})
}

func (g *Game) forwardToTile(coord hexgrid.Coord, m tileMsg) bool {
	resp := make(chan bool, 1)
	g.post(msgSendToTile{Coord: coord, Msg: m, Resp: resp})
	return await(g, resp)
}

// RenderUnits answers a culling-range query for the renderer.
func (g *Game) RenderUnits(bounds hexgrid.Bounds) map[hexgrid.Coord]RenderEntry {
	resp := make(chan map[hexgrid.Coord]RenderEntry, 1)
	g.post(msgRenderUnits{Range: bounds, Resp: resp})
	return await(g, resp)
}

// RecordedTransactions returns the recent successful transfers,
// oldest first, pruning anything outside the animation window.
func (g *Game) RecordedTransactions() []TransactionRecord {
	resp := make(chan []TransactionRecord, 1)
	g.post(msgGetRecords{Resp: resp})
	return await(g, resp)
}

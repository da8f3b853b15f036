package game

import (
	"go.uber.org/zap"

	"hexmill.dev/internal/persistence/mapfile"
	"hexmill.dev/internal/sim/hexgrid"
	"hexmill.dev/internal/sim/ident"
	"hexmill.dev/internal/sim/tiledata"
)

// PlaceResult answers a single placement.
type PlaceResult uint8

const (
	Ignored PlaceResult = iota
	Placed
	Removed
)

func (r PlaceResult) String() string {
	switch r {
	case Placed:
		return "placed"
	case Removed:
		return "removed"
	default:
		return "ignored"
	}
}

// Placement is one entry of a bulk place request (and of the inverse
// batch it returns).
type Placement struct {
	Coord hexgrid.Coord
	ID    ident.TileID
	Data  tiledata.DataMap
}

// TileEntry is one row of a GetTiles response; Data holds only the
// auxiliary fields.
type TileEntry struct {
	Coord hexgrid.Coord
	ID    ident.TileID
	Data  tiledata.DataMap
}

// TileReply answers a map lookup.
type TileReply struct {
	ID ident.TileID
	OK bool
}

// MapInfoAndName is the shared info handle plus the current map name.
type MapInfoAndName struct {
	Info *MapInfo
	Name string
}

type gameMsg interface{ isGameMsg() }

type msgStep struct{ Resp chan<- uint16 }

type msgStopTicking struct {
	Stopped bool
	Resp    chan<- struct{}
}

type msgPlaceTile struct {
	Coord  hexgrid.Coord
	ID     ident.TileID
	Data   tiledata.DataMap
	Record bool
	Resp   chan<- PlaceResult
}

type msgPlaceTiles struct {
	Tiles     []Placement
	PlaceOver bool
	Record    bool
	Resp      chan<- []Placement
}

type msgMoveTiles struct {
	Coords []hexgrid.Coord
	Offset hexgrid.Coord
	Record bool
	Resp   chan<- struct{}
}

type msgUndo struct{ Resp chan<- bool }

type msgLoadMap struct {
	Opt  mapfile.Option
	Resp chan<- error
}

type msgNewMap struct {
	Opt  mapfile.Option
	Resp chan<- struct{}
}

type msgSaveMap struct{ Resp chan<- error }

type msgMapInfo struct{ Resp chan<- MapInfoAndName }

type msgGetTile struct {
	Coord hexgrid.Coord
	Resp  chan<- TileReply
}

type msgGetTiles struct {
	Coords []hexgrid.Coord
	Resp   chan<- []TileEntry
}

type msgTileData struct {
	Coord hexgrid.Coord
	Resp  chan tileDataReply
}

type msgTileValue struct {
	Coord hexgrid.Coord
	Key   ident.ID
	Resp  chan tileValueReply
}

// msgSendToTile is the external ForwardMsgToTile surface: script
// tools and input push data messages at a tile by coordinate.
type msgSendToTile struct {
	Coord hexgrid.Coord
	Msg   tileMsg
	Resp  chan<- bool
}

type msgRenderUnits struct {
	Range hexgrid.Bounds
	Resp  chan<- map[hexgrid.Coord]RenderEntry
}

type msgGetRecords struct{ Resp chan<- []TransactionRecord }

// msgForward routes a tile-to-tile message by coordinate, applying
// OnFail to the sender when the destination is empty.
type msgForward struct {
	Coord  hexgrid.Coord
	From   hexgrid.Coord
	Msg    tileMsg
	OnFail OnFail
}

type msgCheckAdjacent struct {
	Recipe    ident.ID
	Coord     hexgrid.Coord
	SelfCoord hexgrid.Coord
}

type msgRecordTransaction struct {
	Stack       tiledata.ItemStack
	SourceCoord hexgrid.Coord
	DestCoord   hexgrid.Coord
	SourceID    ident.TileID
	DestID      ident.TileID
}

type msgTileFailed struct {
	Coord hexgrid.Coord
	Err   error
}

func (msgStep) isGameMsg()              {}
func (msgStopTicking) isGameMsg()       {}
func (msgPlaceTile) isGameMsg()         {}
func (msgPlaceTiles) isGameMsg()        {}
func (msgMoveTiles) isGameMsg()         {}
func (msgUndo) isGameMsg()              {}
func (msgLoadMap) isGameMsg()           {}
func (msgNewMap) isGameMsg()            {}
func (msgSaveMap) isGameMsg()           {}
func (msgMapInfo) isGameMsg()           {}
func (msgGetTile) isGameMsg()           {}
func (msgGetTiles) isGameMsg()          {}
func (msgTileData) isGameMsg()          {}
func (msgTileValue) isGameMsg()         {}
func (msgSendToTile) isGameMsg()        {}
func (msgRenderUnits) isGameMsg()       {}
func (msgGetRecords) isGameMsg()        {}
func (msgForward) isGameMsg()           {}
func (msgCheckAdjacent) isGameMsg()     {}
func (msgRecordTransaction) isGameMsg() {}
func (msgTileFailed) isGameMsg()        {}

func (g *Game) dispatch(m gameMsg) {
	switch m := m.(type) {
	case msgStep:
		g.tick()
		m.Resp <- g.tickCount
	case msgStopTicking:
		g.stopped = m.Stopped
		m.Resp <- struct{}{}
	case msgPlaceTile:
		res := g.handlePlaceTile(m.Coord, m.ID, m.Data, m.Record)
		if m.Resp != nil {
			m.Resp <- res
		}
	case msgPlaceTiles:
		inverse := g.handlePlaceTiles(m.Tiles, m.PlaceOver, m.Record)
		if m.Resp != nil {
			m.Resp <- inverse
		}
	case msgMoveTiles:
		g.handleMoveTiles(m.Coords, m.Offset, m.Record)
		if m.Resp != nil {
			m.Resp <- struct{}{}
		}
	case msgUndo:
		ok := g.handleUndo()
		if m.Resp != nil {
			m.Resp <- ok
		}
	case msgLoadMap:
		m.Resp <- g.handleLoadMap(m.Opt)
	case msgNewMap:
		g.handleNewMap(m.Opt)
		if m.Resp != nil {
			m.Resp <- struct{}{}
		}
	case msgSaveMap:
		m.Resp <- g.handleSaveMap()
	case msgMapInfo:
		m.Resp <- MapInfoAndName{Info: g.info, Name: g.mapOpt.Name}
	case msgGetTile:
		id, ok := g.tiles[m.Coord]
		m.Resp <- TileReply{ID: id, OK: ok}
	case msgGetTiles:
		m.Resp <- g.handleGetTiles(m.Coords)
	case msgTileData:
		if t, ok := g.entities[m.Coord]; ok {
			g.sendToTile(t, msgGetData{Resp: m.Resp})
		} else {
			m.Resp <- tileDataReply{}
		}
	case msgTileValue:
		if t, ok := g.entities[m.Coord]; ok {
			g.sendToTile(t, msgGetDataValue{Key: m.Key, Resp: m.Resp})
		} else {
			m.Resp <- tileValueReply{}
		}
	case msgSendToTile:
		t, ok := g.entities[m.Coord]
		if ok {
			g.sendToTile(t, m.Msg)
			g.clearRenderCache()
		}
		if m.Resp != nil {
			m.Resp <- ok
		}
	case msgRenderUnits:
		m.Resp <- g.handleRenderUnits(m.Range)
	case msgGetRecords:
		m.Resp <- g.handleGetRecords()
	case msgForward:
		g.handleForward(m)
	case msgCheckAdjacent:
		g.handleCheckAdjacent(m)
	case msgRecordTransaction:
		g.handleRecordTransaction(m)
	case msgTileFailed:
		g.handleTileFailed(m)
	}
}

func (g *Game) handleForward(m msgForward) {
	if t, ok := g.entities[m.Coord]; ok {
		g.sendToTile(t, m.Msg)
		return
	}
	// Destination is empty; recover the sender per its chosen action.
	switch m.OnFail.Action {
	case OnFailNone:
	case OnFailRemoveTile:
		g.removeTileInternal(m.From)
	case OnFailRemoveAllData:
		if t, ok := g.entities[m.From]; ok {
			g.sendToTile(t, msgSetData{Data: tiledata.DataMap{}})
		}
	case OnFailRemoveData:
		if t, ok := g.entities[m.From]; ok {
			g.sendToTile(t, msgRemoveData{Key: m.OnFail.Key})
		}
	}
}

func (g *Game) handleCheckAdjacent(m msgCheckAdjacent) {
	recipe, ok := g.reg.Recipe(m.Recipe)
	fulfilled := !ok || recipe.Adjacent == 0
	if !fulfilled {
		for _, n := range m.Coord.Neighbors() {
			if id, placed := g.tiles[n]; placed && g.reg.TileMatch(id, recipe.Adjacent) {
				fulfilled = true
				break
			}
		}
	}
	if t, ok := g.entities[m.SelfCoord]; ok {
		g.sendToTile(t, msgAdjacentState{Fulfilled: fulfilled})
	}
}

func (g *Game) handleTileFailed(m msgTileFailed) {
	g.log.Error("tile actor failed, evicting",
		zap.String("coord", m.Coord.String()),
		zap.Error(m.Err))
	if t, ok := g.entities[m.Coord]; ok {
		t.stopAndWait()
		delete(g.entities, m.Coord)
	}
	delete(g.tiles, m.Coord)
	g.clearRenderCache()
}

func (g *Game) handleGetTiles(coords []hexgrid.Coord) []TileEntry {
	out := make([]TileEntry, 0, len(coords))
	for _, c := range coords {
		id, ok := g.tiles[c]
		if !ok {
			continue
		}
		var aux tiledata.DataMap
		if t, live := g.entities[c]; live {
			aux = g.copyAuxiliary(g.getDataWithCoordSync(t).Data)
		}
		out = append(out, TileEntry{Coord: c, ID: id, Data: aux})
	}
	return out
}

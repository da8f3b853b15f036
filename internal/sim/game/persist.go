package game

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"hexmill.dev/internal/persistence/mapfile"
	"hexmill.dev/internal/sim/catalogs"
	"hexmill.dev/internal/sim/hexgrid"
	"hexmill.dev/internal/sim/ident"
	"hexmill.dev/internal/sim/tiledata"
)

// handleLoadMap replaces the live map with the one on disk. Both files
// are read before anything is torn down, so a failed load leaves the
// current map running.
func (g *Game) handleLoadMap(opt mapfile.Option) error {
	infoRaw, mapRaw, err := mapfile.Load(g.root, opt)
	if err != nil {
		g.errs.Push(g.reg.Keys.ErrInvalidMapData, err.Error())
		return fmt.Errorf("load map %q: %w", opt.Name, err)
	}
	named := mapfile.ResolveTiles(mapRaw)

	for c, t := range g.entities {
		t.stopAndWait()
		delete(g.entities, c)
	}
	g.tiles = map[hexgrid.Coord]ident.TileID{}
	g.undo = newUndoRing(g.cfg.UndoCapacity)
	g.records = map[recordKey]TransactionRecord{}
	g.clearRenderCache()
	g.tickCount = 0
	g.stopped = false
	g.mapOpt = opt
	g.info.replaceData(tiledata.MapFromRaw(infoRaw.Data, g.reg.Interner, catalogs.DefaultNamespace))

	dropped := 0
	for _, nt := range named {
		id, ok := g.reg.Interner.GetString(nt.Name, catalogs.DefaultNamespace)
		if !ok {
			dropped++
			continue
		}
		tileID := ident.TileID(id)
		if _, known := g.reg.Tile(tileID); !known {
			dropped++
			continue
		}
		t := g.spawnTile(tileID, nt.Coord)
		if len(nt.Data) > 0 {
			g.sendToTile(t, msgSetData{Data: tiledata.MapFromRaw(nt.Data, g.reg.Interner, catalogs.DefaultNamespace)})
		}
		g.tiles[nt.Coord] = tileID
		g.entities[nt.Coord] = t
	}
	if dropped > 0 {
		g.log.Warn("dropped unknown tiles on load",
			zap.String("map", opt.Name),
			zap.Int("dropped", dropped))
	}
	g.log.Info("map loaded",
		zap.String("map", opt.Name),
		zap.Int("tiles", len(g.tiles)))
	return nil
}

// handleNewMap tears the running map down and starts an empty one
// under the given option. Nothing touches disk until the next save.
func (g *Game) handleNewMap(opt mapfile.Option) {
	for c, t := range g.entities {
		t.stopAndWait()
		delete(g.entities, c)
	}
	g.tiles = map[hexgrid.Coord]ident.TileID{}
	g.undo = newUndoRing(g.cfg.UndoCapacity)
	g.records = map[recordKey]TransactionRecord{}
	g.clearRenderCache()
	g.tickCount = 0
	g.stopped = false
	g.mapOpt = opt
	g.info.replaceData(tiledata.DataMap{})
	g.log.Info("new map", zap.String("map", opt.Name))
}

// handleSaveMap snapshots every live tile and writes the canonical
// save. Built-in maps are never written back.
func (g *Game) handleSaveMap() error {
	if g.mapOpt.Kind != mapfile.KindNamed {
		return nil
	}

	coords := make([]hexgrid.Coord, 0, len(g.tiles))
	for c := range g.tiles {
		coords = append(coords, c)
	}
	sort.Slice(coords, func(i, j int) bool {
		a, b := coords[i], coords[j]
		if a.Q != b.Q {
			return a.Q < b.Q
		}
		return a.R < b.R
	})

	named := make([]mapfile.NamedTile, 0, len(coords))
	for _, c := range coords {
		id := g.tiles[c]
		name, ok := g.reg.Interner.NameOf(ident.ID(id))
		if !ok {
			continue
		}
		var raw tiledata.RawDataMap
		if t, live := g.entities[c]; live {
			if data := g.getDataSync(t); len(data) > 0 {
				raw = tiledata.MapToRaw(data, g.reg.Interner)
			}
		}
		named = append(named, mapfile.NamedTile{Coord: c, Name: name, Data: raw})
	}

	info := mapfile.InfoRaw{
		TileCount: uint32(len(named)),
		Data:      tiledata.MapToRaw(g.info.Snapshot(), g.reg.Interner),
	}
	if err := mapfile.Save(g.root, g.mapOpt, info, mapfile.BuildMapRaw(named)); err != nil {
		g.errs.Push(g.reg.Keys.ErrUnwritableOptions, err.Error())
		return fmt.Errorf("save map %q: %w", g.mapOpt.Name, err)
	}
	now := time.Now()
	g.info.setSaveTime(now)
	if g.saveHook != nil {
		g.saveHook(g.mapOpt.Name, len(named), now)
	}
	g.log.Info("map saved",
		zap.String("map", g.mapOpt.Name),
		zap.Int("tiles", len(named)))
	return nil
}

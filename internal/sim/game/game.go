// Package game implements the simulation core: a coordinator goroutine
// owning the authoritative tile map, per-tile actor goroutines, the
// undo log, transaction records, and the render feed.
package game

import (
	"context"
	"sync"
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

// MapInfo is the per-map metadata record. It is shared between the
// coordinator (player-inventory side effects) and external readers, so
// every access goes through the mutex.
type MapInfo struct {
	mu       sync.Mutex
	saveTime time.Time
	data     tiledata.DataMap
}

// With runs fn while holding the lock. Keep fn to a single field
// mutation.
func (mi *MapInfo) With(fn func(data tiledata.DataMap)) {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	if mi.data == nil {
		mi.data = tiledata.DataMap{}
	}
	fn(mi.data)
}

// Snapshot returns a deep copy of the data map.
func (mi *MapInfo) Snapshot() tiledata.DataMap {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	return mi.data.Clone()
}

// SaveTime reports when this map was last written to disk.
func (mi *MapInfo) SaveTime() time.Time {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	return mi.saveTime
}

func (mi *MapInfo) setSaveTime(t time.Time) {
	mi.mu.Lock()
	mi.saveTime = t
	mi.mu.Unlock()
}

func (mi *MapInfo) replaceData(data tiledata.DataMap) {
	mi.mu.Lock()
	mi.data = data
	mi.mu.Unlock()
}

// Game is the coordinator. All fields below inbox are owned by the
// loop goroutine; external callers interact through the request
// methods only.
type Game struct {
	log  *zap.Logger
	reg  *catalogs.Registry
	errs *errq.Queue
	cfg  tuning.Tuning
	root string

	inbox chan gameMsg
	stopc chan struct{}

	// pending holds inbox messages pulled while the loop was blocked
	// inside a synchronous tile exchange; they run, in order, before
	// any new inbox read.
	pending []gameMsg

	tickCount   uint16
	stopped     bool
	tiles       map[hexgrid.Coord]ident.TileID
	entities    map[hexgrid.Coord]*tileEntity
	mapOpt      mapfile.Option
	info        *MapInfo
	undo        *undoRing
	records     map[recordKey]TransactionRecord
	renderCache map[hexgrid.Bounds]map[hexgrid.Coord]RenderEntry

	saveHook func(name string, tileCount int, at time.Time)
}

// OnSave registers a hook invoked after every successful save (the
// save index uses it). Must be set before Run.
func (g *Game) OnSave(fn func(name string, tileCount int, at time.Time)) {
	g.saveHook = fn
}

// New builds a coordinator with an empty map. Call Run (or RunManual)
// before using the request methods.
func New(log *zap.Logger, reg *catalogs.Registry, errs *errq.Queue, cfg tuning.Tuning) *Game {
	return &Game{
		log:         log,
		reg:         reg,
		errs:        errs,
		cfg:         cfg,
		root:        cfg.MapRoot,
		inbox:       make(chan gameMsg, cfg.GameInboxSize),
		stopc:       make(chan struct{}),
		tiles:       map[hexgrid.Coord]ident.TileID{},
		entities:    map[hexgrid.Coord]*tileEntity{},
		mapOpt:      mapfile.MainMenu,
		info:        &MapInfo{data: tiledata.DataMap{}},
		undo:        newUndoRing(cfg.UndoCapacity),
		records:     map[recordKey]TransactionRecord{},
		renderCache: map[hexgrid.Bounds]map[hexgrid.Coord]RenderEntry{},
	}
}

// Run drives the loop at the configured tick rate until the context is
// canceled or Stop is called.
func (g *Game) Run(ctx context.Context) error {
	ticker := time.NewTicker(g.cfg.TickInterval())
	defer ticker.Stop()
	return g.loop(ctx, ticker.C)
}

// RunManual drives the loop without a ticker; time advances only
// through StepOnce. Used by tests and replays.
func (g *Game) RunManual(ctx context.Context) error {
	return g.loop(ctx, nil)
}

func (g *Game) loop(ctx context.Context, tickC <-chan time.Time) error {
	defer g.shutdownTiles()
	for {
		for len(g.pending) > 0 {
			m := g.pending[0]
			g.pending[0] = nil
			g.pending = g.pending[1:]
			g.dispatch(m)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-g.stopc:
			return nil
		case <-tickC:
			g.tick()
		case m := <-g.inbox:
			g.dispatch(m)
		}
	}
}

// Stop ends the loop. Safe to call once.
func (g *Game) Stop() { close(g.stopc) }

func (g *Game) shutdownTiles() {
	for _, t := range g.entities {
		t.stopAndWait()
	}
}

// post is the raw injection point into the loop. Tile actors go
// through tileEntity.postGame instead so eviction can interrupt them.
func (g *Game) post(m gameMsg) {
	select {
	case g.inbox <- m:
	case <-g.stopc:
	}
}

// sendToTile delivers m to a live actor. The loop keeps draining its
// own inbox while the mailbox is full: tiles block in postGame when
// the inbox fills up, so a plain send here could wait forever on a
// tile that is itself waiting on us.
func (g *Game) sendToTile(t *tileEntity, m tileMsg) {
	for {
		select {
		case t.mailbox <- m:
			return
		case <-t.stopc:
			return
		case in := <-g.inbox:
			g.pending = append(g.pending, in)
		}
	}
}

// tick fans Tick out to every live actor without awaiting replies.
// The counter wraps deliberately.
func (g *Game) tick() {
	if g.stopped {
		return
	}
	start := time.Now()
	g.tickCount++
	for _, t := range g.entities {
		g.sendToTile(t, msgTick{Tick: g.tickCount})
	}
	if d := time.Since(start); d > g.cfg.MaxTickDuration() {
		g.log.Warn("tick overran",
			zap.Duration("took", d),
			zap.Duration("budget", g.cfg.MaxTickDuration()),
			zap.Int("tiles", len(g.entities)))
	}
}

func (g *Game) liveTick() uint16 { return g.tickCount }

// TickRateHz reports the configured simulation rate. cfg is immutable
// after New, so this is safe from any goroutine.
func (g *Game) TickRateHz() int { return g.cfg.TickRateHz }

// clearRenderCache is called on every map mutation.
func (g *Game) clearRenderCache() {
	if len(g.renderCache) > 0 {
		g.renderCache = map[hexgrid.Bounds]map[hexgrid.Coord]RenderEntry{}
	}
}

// getDataSync asks one actor for its data and blocks for the answer.
// Only the loop calls this (save, move, bulk reads). It keeps pulling
// inbox messages into pending while it waits: the target may be stuck
// in postGame, a reply, or behind peers that are, and all of those
// chains unwind only when the inbox drains.
func (g *Game) getDataSync(t *tileEntity) tiledata.DataMap {
	resp := make(chan tileDataReply, 1)
	g.sendToTile(t, msgGetData{Resp: resp})
	for {
		select {
		case r := <-resp:
			return r.Data
		case <-t.done:
			return tiledata.DataMap{}
		case in := <-g.inbox:
			g.pending = append(g.pending, in)
		}
	}
}

func (g *Game) getDataWithCoordSync(t *tileEntity) CoordData {
	resp := make(chan CoordData, 1)
	g.sendToTile(t, msgGetDataWithCoord{Resp: resp})
	for {
		select {
		case r := <-resp:
			return r
		case <-t.done:
			return CoordData{}
		case in := <-g.inbox:
			g.pending = append(g.pending, in)
		}
	}
}

func (g *Game) takeDataSync(t *tileEntity) tiledata.DataMap {
	resp := make(chan tiledata.DataMap, 1)
	g.sendToTile(t, msgTakeData{Resp: resp})
	for {
		select {
		case d := <-resp:
			return d
		case <-t.done:
			return tiledata.DataMap{}
		case in := <-g.inbox:
			g.pending = append(g.pending, in)
		}
	}
}

// removeTileInternal evicts a tile without undo bookkeeping. Returns
// the dead actor's final data.
func (g *Game) removeTileInternal(coord hexgrid.Coord) (ident.TileID, tiledata.DataMap, bool) {
	id, ok := g.tiles[coord]
	if !ok {
		return 0, nil, false
	}
	t := g.entities[coord]
	var data tiledata.DataMap
	if t != nil {
		data = g.takeDataSync(t)
		t.stopAndWait()
	}
	delete(g.tiles, coord)
	delete(g.entities, coord)
	g.clearRenderCache()
	return id, data, true
}

// copyAuxiliary keeps only the fields that survive moves and undo:
// direction, link, script, amount, item.
func (g *Game) copyAuxiliary(data tiledata.DataMap) tiledata.DataMap {
	if data == nil {
		return nil
	}
	k := g.reg.Keys
	out := tiledata.DataMap{}
	for _, key := range [...]ident.ID{k.Direction, k.Link, k.Script, k.Amount, k.Item} {
		if d, ok := data.Get(key); ok {
			out.Set(key, d.Clone())
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

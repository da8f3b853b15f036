package game

import (
	"fmt"
	"math/rand"

	"go.uber.org/zap"

	"hexmill.dev/internal/sim/catalogs"
	"hexmill.dev/internal/sim/hexgrid"
	"hexmill.dev/internal/sim/ident"
	"hexmill.dev/internal/sim/tiledata"
)

// tileEntity is one placed tile's actor. It owns its data map
// exclusively; all cross-tile traffic goes through the coordinator's
// forwarding and each peer's mailbox.
type tileEntity struct {
	game *Game
	reg  *catalogs.Registry
	log  *zap.Logger

	id    ident.TileID
	def   catalogs.TileDef
	coord hexgrid.Coord
	data  tiledata.DataMap

	// Latched adjacency verdict. Starts true and is corrected by the
	// coordinator's asynchronous neighbor scans.
	adjacentOK bool

	mailbox chan tileMsg
	stopc   chan struct{}
	done    chan struct{}
}

func (g *Game) spawnTile(id ident.TileID, coord hexgrid.Coord) *tileEntity {
	def, _ := g.reg.Tile(id)
	t := &tileEntity{
		game:       g,
		reg:        g.reg,
		log:        g.log.With(zap.String("tile", coord.MinimalString())),
		id:         id,
		def:        def,
		coord:      coord,
		data:       tiledata.DataMap{},
		adjacentOK: true,
		mailbox:    make(chan tileMsg, g.cfg.TileMailboxSize),
		stopc:      make(chan struct{}),
		done:       make(chan struct{}),
	}
	go t.run()
	return t
}

// postGame reaches the coordinator. It gives up when either side is
// shutting down, so stopAndWait can never hang on an actor that is
// blocked posting into a full inbox.
func (t *tileEntity) postGame(m gameMsg) {
	select {
	case t.game.inbox <- m:
	case <-t.game.stopc:
	case <-t.stopc:
	}
}

// stopAndWait shuts the actor down and blocks until its goroutine has
// exited, guaranteeing no stale message survives.
func (t *tileEntity) stopAndWait() {
	select {
	case <-t.stopc:
	default:
		close(t.stopc)
	}
	<-t.done
}

func (t *tileEntity) run() {
	defer close(t.done)
	defer func() {
		if r := recover(); r != nil {
			t.postGame(msgTileFailed{Coord: t.coord, Err: fmt.Errorf("tile panic: %v", r)})
		}
	}()
	for {
		select {
		case <-t.stopc:
			return
		case m := <-t.mailbox:
			t.handle(m)
		}
	}
}

func (t *tileEntity) handle(m tileMsg) {
	switch m := m.(type) {
	case msgTick:
		t.onTick(m.Tick)
	case msgTransaction:
		t.onTransaction(m)
	case msgTransactionResult:
		t.onTransactionResult(m)
	case msgExtractRequest:
		t.onExtractRequest(m)
	case msgAdjacentState:
		t.adjacentOK = m.Fulfilled
	case msgSetData:
		t.data = m.Data.Clone()
	case msgSetDataValue:
		t.data.Set(m.Key, m.Value.Clone())
	case msgRemoveData:
		t.data.Remove(m.Key)
	case msgGetData:
		m.Resp <- tileDataReply{Data: t.data.Clone(), OK: true}
	case msgGetDataValue:
		v, ok := t.data.Get(m.Key)
		m.Resp <- tileValueReply{Value: v.Clone(), OK: ok}
	case msgGetDataWithCoord:
		m.Resp <- CoordData{Coord: t.coord, Data: t.data.Clone()}
	case msgTakeData:
		out := t.data
		t.data = tiledata.DataMap{}
		m.Resp <- out
	}
}

// onTick runs one simulation step for this tile. Only machines and
// nodes act on ticks.
func (t *tileEntity) onTick(tick uint16) {
	k := t.reg.Keys
	switch t.def.TileType {
	case k.TypeMachine:
		t.machineTick(tick)
	case k.TypeNode:
		t.nodeTick(tick)
	}
}

func (t *tileEntity) machineTick(tick uint16) {
	k := t.reg.Keys
	script, ok := t.data.ID(k.Script)
	if !ok {
		return
	}
	recipe, ok := t.reg.Recipe(script)
	if !ok {
		return
	}

	if tick%uint16(t.game.cfg.AdjacencyTicks) == 0 {
		t.postGame(msgCheckAdjacent{Recipe: script, Coord: t.coord, SelfCoord: t.coord})
	}
	if !t.adjacentOK {
		return
	}

	target, ok := t.data.Coord(k.Target)
	if !ok {
		return
	}
	if recipe.Inputs != nil {
		buf, _ := t.data.Inventory(k.Buffer)
		for _, in := range recipe.Inputs {
			if buf.Get(in.ID) < in.Amount {
				return
			}
		}
	}
	if len(recipe.Outputs) == 0 {
		return
	}
	t.pushStack(tick, target, recipe.Outputs[0], failRemoveData(k.Target))
}

func (t *tileEntity) nodeTick(tick uint16) {
	k := t.reg.Keys
	link, hasLink := t.data.Coord(k.Link)
	target, hasTarget := t.data.Coord(k.Target)

	if hasLink && hasTarget {
		t.postGame(msgForward{
			Coord: t.coord.Add(link),
			From:  t.coord,
			Msg: msgExtractRequest{
				Tick:      tick,
				DestCoord: t.coord,
				Direction: link.Neg(),
			},
			OnFail: failNone(),
		})
	}

	// Drain a banked stack toward the target.
	if !hasTarget {
		return
	}
	buf, ok := t.data.Inventory(k.Buffer)
	if !ok || len(buf) == 0 {
		return
	}
	var item ident.ID
	for id := range buf {
		if item == 0 || id < item {
			item = id
		}
	}
	t.pushStack(tick, target, tiledata.ItemStack{ID: item, Amount: buf.Get(item)}, failRemoveData(k.Target))
}

// pushStack offers a stack to the neighbor at the given offset,
// pointing the reply port at this tile.
func (t *tileEntity) pushStack(tick uint16, offset hexgrid.Coord, stack tiledata.ItemStack, onFail OnFail) {
	t.postGame(msgForward{
		Coord: t.coord.Add(offset),
		From:  t.coord,
		Msg: msgTransaction{
			Tick:        tick,
			Stack:       stack,
			SourceType:  t.def.TileType,
			SourceID:    t.id,
			SourceCoord: t.coord,
			Direction:   offset,
			Source:      t.mailbox,
		},
		OnFail: onFail,
	})
}

func (t *tileEntity) onTransaction(m msgTransaction) {
	k := t.reg.Keys
	switch t.def.TileType {
	case k.TypeVoid:
		t.reply(m, resultOk(m.Stack))
	case k.TypeMachine:
		t.reply(m, t.machineReceive(m))
	case k.TypeStorage:
		t.reply(m, t.storageReceive(m))
	case k.TypeNode:
		// Nodes bank whatever a pull delivers and answer for it when
		// they drain toward their target.
		buf := t.data.EnsureInventory(k.Buffer)
		buf.Add(m.Stack.ID, m.Stack.Amount)
		t.reply(m, resultOk(m.Stack))
	case k.TypeSplitter:
		t.splitterForward(m)
	case k.TypeTransfer, k.TypeMerger, k.TypeMasterNode:
		t.forwardAlongTarget(m)
	}
}

// reply delivers the result straight to the producer's mailbox. The
// send is abandoned if this actor is stopped while the producer's
// mailbox is full.
func (t *tileEntity) reply(m msgTransaction, res TxResult) {
	if m.Source == nil {
		return
	}
	select {
	case m.Source <- msgTransactionResult{
		Tick:      m.Tick,
		Result:    res,
		DestCoord: t.coord,
		DestID:    t.id,
	}:
	case <-t.stopc:
	}
}

func (t *tileEntity) machineReceive(m msgTransaction) TxResult {
	k := t.reg.Keys
	script, ok := t.data.ID(k.Script)
	if !ok {
		return resultErr(ErrNoScript)
	}
	recipe, ok := t.reg.Recipe(script)
	if !ok {
		return resultErr(ErrNoScript)
	}

	var matched *tiledata.ItemStack
	for i := range recipe.Inputs {
		if t.reg.ItemMatch(m.Stack.ID, recipe.Inputs[i].ID) {
			matched = &recipe.Inputs[i]
			break
		}
	}
	if matched == nil {
		return resultErr(ErrNotSuitable)
	}

	buf := t.data.EnsureInventory(k.Buffer)
	remaining := matched.Amount - buf.Get(matched.ID)
	if remaining <= 0 {
		return resultErr(ErrFull)
	}
	taken := m.Stack.Amount
	if taken > remaining {
		taken = remaining
	}
	buf.Add(matched.ID, taken)
	return resultOk(tiledata.ItemStack{ID: matched.ID, Amount: taken})
}

func (t *tileEntity) storageReceive(m msgTransaction) TxResult {
	k := t.reg.Keys
	item, hasItem := t.data.ID(k.Item)
	capAmount, hasCap := t.data.Amount(k.Amount)
	if !hasItem || !hasCap {
		return resultErr(ErrNotSuitable)
	}
	if m.Stack.ID != item {
		return resultErr(ErrNotSuitable)
	}
	buf := t.data.EnsureInventory(k.Buffer)
	stored := buf.Get(item)
	if stored >= capAmount {
		return resultErr(ErrFull)
	}
	taken := m.Stack.Amount
	if room := capAmount - stored; taken > room {
		taken = room
	}
	buf.Add(item, taken)
	return resultOk(tiledata.ItemStack{ID: item, Amount: taken})
}

// forwardAlongTarget relays a transaction one hop toward this tile's
// target, keeping the producer as the reply destination.
func (t *tileEntity) forwardAlongTarget(m msgTransaction) {
	k := t.reg.Keys
	target, ok := t.data.Coord(k.Target)
	if !ok {
		return
	}
	fwd := m
	fwd.Direction = target
	t.postGame(msgForward{
		Coord:  t.coord.Add(target),
		From:   t.coord,
		Msg:    fwd,
		OnFail: failRemoveData(k.Target),
	})
}

// splitterForward routes an incoming transaction out one of the two
// legs it did not arrive on.
func (t *tileEntity) splitterForward(m msgTransaction) {
	legs := t.splitterLegs()
	in := m.Direction.Neg()

	candidates := make([]hexgrid.Coord, 0, 3)
	for _, leg := range legs {
		if leg != in {
			candidates = append(candidates, leg)
		}
	}
	if len(candidates) == 0 {
		return
	}
	out := candidates[rand.Intn(len(candidates))]

	fwd := m
	fwd.Direction = out
	t.postGame(msgForward{
		Coord:  t.coord.Add(out),
		From:   t.coord,
		Msg:    fwd,
		OnFail: failNone(),
	})
}

// splitterLegs derives the three legs from the placement orientation:
// top-left, bottom-left, right for an even direction index, the same
// triple rotated one step for an odd one.
func (t *tileEntity) splitterLegs() []hexgrid.Coord {
	legs := []hexgrid.Coord{hexgrid.TopLeft, hexgrid.BottomLeft, hexgrid.Right}
	if d, ok := t.data.Coord(t.reg.Keys.Direction); ok {
		if i := hexgrid.DirectionIndex(d); i >= 0 && i%2 == 1 {
			for j, leg := range legs {
				legs[j] = hexgrid.Directions[(hexgrid.DirectionIndex(leg)+1)%6]
			}
		}
	}
	return legs
}

func (t *tileEntity) onTransactionResult(m msgTransactionResult) {
	if !m.Result.Ok() {
		return
	}
	k := t.reg.Keys
	switch t.def.TileType {
	case k.TypeMachine:
		// Consumption is recipe-input-indexed: one full input set per
		// produced output.
		if script, ok := t.data.ID(k.Script); ok {
			if recipe, ok := t.reg.Recipe(script); ok && recipe.Inputs != nil {
				buf := t.data.EnsureInventory(k.Buffer)
				for _, in := range recipe.Inputs {
					buf.Take(in.ID, in.Amount)
				}
			}
		}
	case k.TypeStorage, k.TypeNode:
		buf := t.data.EnsureInventory(k.Buffer)
		buf.Take(m.Result.Stack.ID, m.Result.Stack.Amount)
	}

	t.postGame(msgRecordTransaction{
		Stack:       m.Result.Stack,
		SourceCoord: t.coord,
		DestCoord:   m.DestCoord,
		SourceID:    t.id,
		DestID:      m.DestID,
	})
}

func (t *tileEntity) onExtractRequest(m msgExtractRequest) {
	k := t.reg.Keys
	switch t.def.TileType {
	case k.TypeStorage:
		item, hasItem := t.data.ID(k.Item)
		capAmount, hasCap := t.data.Amount(k.Amount)
		if !hasItem || !hasCap {
			return
		}
		buf, ok := t.data.Inventory(k.Buffer)
		if !ok {
			return
		}
		stored := buf.Get(item)
		if stored <= 0 {
			return
		}
		amount := stored
		if amount > capAmount {
			amount = capAmount
		}
		t.postGame(msgForward{
			Coord: m.DestCoord,
			From:  t.coord,
			Msg: msgTransaction{
				Tick:        m.Tick,
				Stack:       tiledata.ItemStack{ID: item, Amount: amount},
				SourceType:  t.def.TileType,
				SourceID:    t.id,
				SourceCoord: t.coord,
				Direction:   m.Direction,
				Source:      t.mailbox,
			},
			OnFail: failNone(),
		})
	case k.TypeMasterNode:
		if target, ok := t.data.Coord(k.Target); ok {
			t.postGame(msgForward{
				Coord:  t.coord.Add(target),
				From:   t.coord,
				Msg:    m,
				OnFail: failNone(),
			})
		}
	}
}

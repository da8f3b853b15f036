package game

import (
	"hexmill.dev/internal/sim/hexgrid"
	"hexmill.dev/internal/sim/ident"
	"hexmill.dev/internal/sim/tiledata"
)

// TxError is the transaction failure taxonomy. These never reach the
// user; producer tiles consume them to decide whether to debit.
type TxError uint8

const (
	txOk TxError = iota
	ErrNoScript
	ErrNotSuitable
	ErrFull
)

func (e TxError) Error() string {
	switch e {
	case ErrNoScript:
		return "no script"
	case ErrNotSuitable:
		return "not suitable"
	case ErrFull:
		return "full"
	default:
		return "ok"
	}
}

// TxResult answers a Transaction. Stack is the transferred portion and
// is only meaningful when Ok.
type TxResult struct {
	Stack tiledata.ItemStack
	Err   TxError
}

func (r TxResult) Ok() bool { return r.Err == txOk }

func resultOk(stack tiledata.ItemStack) TxResult { return TxResult{Stack: stack} }
func resultErr(err TxError) TxResult             { return TxResult{Err: err} }

// tileMsg is a message a tile actor accepts through its mailbox.
type tileMsg interface{ isTileMsg() }

type msgTick struct{ Tick uint16 }

// msgTransaction offers a stack to the receiving tile. Direction is
// the travel direction (sender toward receiver); the side the offer
// arrives from is its negation. Source stays pointed at the producer
// across forwarding hops so the result returns directly.
type msgTransaction struct {
	Tick        uint16
	Stack       tiledata.ItemStack
	SourceType  ident.ID
	SourceID    ident.TileID
	SourceCoord hexgrid.Coord
	Direction   hexgrid.Coord
	Source      chan<- tileMsg
}

// msgTransactionResult is the receiver's answer, delivered into the
// producer's mailbox.
type msgTransactionResult struct {
	Tick      uint16
	Result    TxResult
	DestCoord hexgrid.Coord
	DestID    ident.TileID
}

// msgExtractRequest asks a holder to push its contents to DestCoord.
type msgExtractRequest struct {
	Tick      uint16
	DestCoord hexgrid.Coord
	Direction hexgrid.Coord
}

// msgAdjacentState is the coordinator's answer to a neighbor scan.
type msgAdjacentState struct{ Fulfilled bool }

type msgSetData struct{ Data tiledata.DataMap }

type msgSetDataValue struct {
	Key   ident.ID
	Value tiledata.Data
}

type msgRemoveData struct{ Key ident.ID }

type tileDataReply struct {
	Data tiledata.DataMap
	OK   bool
}

type tileValueReply struct {
	Value tiledata.Data
	OK    bool
}

type msgGetData struct{ Resp chan<- tileDataReply }

type msgGetDataValue struct {
	Key  ident.ID
	Resp chan<- tileValueReply
}

// CoordData pairs a tile's coordinate with its data snapshot.
type CoordData struct {
	Coord hexgrid.Coord
	Data  tiledata.DataMap
}

type msgGetDataWithCoord struct{ Resp chan<- CoordData }

// msgTakeData moves the data map out, leaving the tile empty.
type msgTakeData struct{ Resp chan<- tiledata.DataMap }

func (msgTick) isTileMsg()              {}
func (msgTransaction) isTileMsg()       {}
func (msgTransactionResult) isTileMsg() {}
func (msgExtractRequest) isTileMsg()    {}
func (msgAdjacentState) isTileMsg()     {}
func (msgSetData) isTileMsg()           {}
func (msgSetDataValue) isTileMsg()      {}
func (msgRemoveData) isTileMsg()        {}
func (msgGetData) isTileMsg()           {}
func (msgGetDataValue) isTileMsg()      {}
func (msgGetDataWithCoord) isTileMsg()  {}
func (msgTakeData) isTileMsg()          {}

// OnFailAction tells the coordinator what to do to the sending tile
// when a forwarded message addresses an empty coordinate.
type OnFailAction uint8

const (
	OnFailNone OnFailAction = iota
	OnFailRemoveTile
	OnFailRemoveAllData
	OnFailRemoveData
)

// OnFail bundles the action with the data key it applies to.
type OnFail struct {
	Action OnFailAction
	Key    ident.ID // for OnFailRemoveData
}

func failNone() OnFail { return OnFail{} }

func failRemoveData(k ident.ID) OnFail {
	return OnFail{Action: OnFailRemoveData, Key: k}
}

// Package tiledata holds the per-tile value model: a tagged Data
// variant, the id-keyed DataMap each tile actor owns, and inventories
// of item stacks.
package tiledata

import (
	"hexmill.dev/internal/sim/hexgrid"
	"hexmill.dev/internal/sim/ident"
)

// ItemStack is an (item, amount) pair moved by transactions.
type ItemStack struct {
	ID     ident.ID
	Amount int64
}

// Inventory counts items by id. Amounts never go negative.
type Inventory map[ident.ID]int64

func (v Inventory) Get(id ident.ID) int64 { return v[id] }

// Add credits n (may be negative); the stored amount clamps at zero
// and zero entries are removed.
func (v Inventory) Add(id ident.ID, n int64) {
	next := v[id] + n
	if next <= 0 {
		delete(v, id)
		return
	}
	v[id] = next
}

// Take removes up to n of id and returns how many were removed.
func (v Inventory) Take(id ident.ID, n int64) int64 {
	have := v[id]
	if n > have {
		n = have
	}
	v.Add(id, -n)
	return n
}

func (v Inventory) Clone() Inventory {
	out := make(Inventory, len(v))
	for id, n := range v {
		out[id] = n
	}
	return out
}

// Kind discriminates the Data variant.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInventory
	KindCoord
	KindVecCoord
	KindID
	KindVecID
	KindAmount
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindInventory:
		return "Inventory"
	case KindCoord:
		return "Coord"
	case KindVecCoord:
		return "VecCoord"
	case KindID:
		return "Id"
	case KindVecID:
		return "VecId"
	case KindAmount:
		return "Amount"
	case KindBool:
		return "Bool"
	default:
		return "Invalid"
	}
}

// Data is a tagged variant holding exactly one of the seven value
// shapes. The zero Data is "absent".
type Data struct {
	kind   Kind
	inv    Inventory
	coord  hexgrid.Coord
	coords []hexgrid.Coord
	id     ident.ID
	ids    []ident.ID
	amount int64
	flag   bool
}

func OfInventory(v Inventory) Data         { return Data{kind: KindInventory, inv: v} }
func OfCoord(c hexgrid.Coord) Data         { return Data{kind: KindCoord, coord: c} }
func OfVecCoord(cs []hexgrid.Coord) Data   { return Data{kind: KindVecCoord, coords: cs} }
func OfID(id ident.ID) Data                { return Data{kind: KindID, id: id} }
func OfVecID(ids []ident.ID) Data          { return Data{kind: KindVecID, ids: ids} }
func OfAmount(n int64) Data                { return Data{kind: KindAmount, amount: n} }
func OfBool(b bool) Data                   { return Data{kind: KindBool, flag: b} }

func (d Data) Kind() Kind    { return d.kind }
func (d Data) IsValid() bool { return d.kind != KindInvalid }

func (d Data) AsInventory() (Inventory, bool)       { return d.inv, d.kind == KindInventory }
func (d Data) AsCoord() (hexgrid.Coord, bool)       { return d.coord, d.kind == KindCoord }
func (d Data) AsVecCoord() ([]hexgrid.Coord, bool)  { return d.coords, d.kind == KindVecCoord }
func (d Data) AsID() (ident.ID, bool)               { return d.id, d.kind == KindID }
func (d Data) AsVecID() ([]ident.ID, bool)          { return d.ids, d.kind == KindVecID }
func (d Data) AsAmount() (int64, bool)              { return d.amount, d.kind == KindAmount }
func (d Data) AsBool() (bool, bool)                 { return d.flag, d.kind == KindBool }

// Clone deep-copies reference-shaped variants so a tile's DataMap
// never aliases another actor's state.
func (d Data) Clone() Data {
	switch d.kind {
	case KindInventory:
		d.inv = d.inv.Clone()
	case KindVecCoord:
		d.coords = append([]hexgrid.Coord(nil), d.coords...)
	case KindVecID:
		d.ids = append([]ident.ID(nil), d.ids...)
	}
	return d
}

// Equal compares two values structurally.
func (d Data) Equal(o Data) bool {
	if d.kind != o.kind {
		return false
	}
	switch d.kind {
	case KindInventory:
		if len(d.inv) != len(o.inv) {
			return false
		}
		for id, n := range d.inv {
			if o.inv[id] != n {
				return false
			}
		}
		return true
	case KindCoord:
		return d.coord == o.coord
	case KindVecCoord:
		if len(d.coords) != len(o.coords) {
			return false
		}
		for i := range d.coords {
			if d.coords[i] != o.coords[i] {
				return false
			}
		}
		return true
	case KindID:
		return d.id == o.id
	case KindVecID:
		if len(d.ids) != len(o.ids) {
			return false
		}
		for i := range d.ids {
			if d.ids[i] != o.ids[i] {
				return false
			}
		}
		return true
	case KindAmount:
		return d.amount == o.amount
	case KindBool:
		return d.flag == o.flag
	default:
		return true
	}
}

// DataMap is a tile's key/value state, keyed by interned ids. Reading
// a missing key yields the invalid Data, not a default.
type DataMap map[ident.ID]Data

func (m DataMap) Get(key ident.ID) (Data, bool) {
	d, ok := m[key]
	return d, ok
}

func (m DataMap) Set(key ident.ID, d Data) { m[key] = d }

func (m DataMap) Remove(key ident.ID) (Data, bool) {
	d, ok := m[key]
	if ok {
		delete(m, key)
	}
	return d, ok
}

func (m DataMap) Clone() DataMap {
	out := make(DataMap, len(m))
	for k, d := range m {
		out[k] = d.Clone()
	}
	return out
}

func (m DataMap) Equal(o DataMap) bool {
	if len(m) != len(o) {
		return false
	}
	for k, d := range m {
		od, ok := o[k]
		if !ok || !d.Equal(od) {
			return false
		}
	}
	return true
}

// Coord reads key as a coordinate, returning ok=false if absent or of
// another kind. The remaining typed getters follow the same shape.
func (m DataMap) Coord(key ident.ID) (hexgrid.Coord, bool) {
	d, ok := m[key]
	if !ok {
		return hexgrid.Coord{}, false
	}
	return d.AsCoord()
}

func (m DataMap) ID(key ident.ID) (ident.ID, bool) {
	d, ok := m[key]
	if !ok {
		return 0, false
	}
	return d.AsID()
}

func (m DataMap) Amount(key ident.ID) (int64, bool) {
	d, ok := m[key]
	if !ok {
		return 0, false
	}
	return d.AsAmount()
}

func (m DataMap) Bool(key ident.ID) bool {
	d, ok := m[key]
	if !ok {
		return false
	}
	b, _ := d.AsBool()
	return b
}

// Inventory reads key as an inventory, allocating and storing a fresh
// one when the key is absent so callers can mutate in place.
func (m DataMap) Inventory(key ident.ID) (Inventory, bool) {
	d, ok := m[key]
	if !ok {
		return nil, false
	}
	return d.AsInventory()
}

// EnsureInventory returns the inventory at key, creating it if needed.
func (m DataMap) EnsureInventory(key ident.ID) Inventory {
	if inv, ok := m.Inventory(key); ok {
		return inv
	}
	inv := Inventory{}
	m[key] = OfInventory(inv)
	return inv
}

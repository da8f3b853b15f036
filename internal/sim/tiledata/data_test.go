package tiledata

import (
	"testing"

	"hexmill.dev/internal/sim/hexgrid"
	"hexmill.dev/internal/sim/ident"
)

func TestInventory(t *testing.T) {
	iron := ident.ID(1)
	inv := Inventory{}

	inv.Add(iron, 5)
	if inv.Get(iron) != 5 {
		t.Fatalf("Get = %d", inv.Get(iron))
	}

	if took := inv.Take(iron, 3); took != 3 {
		t.Fatalf("Take = %d", took)
	}
	if took := inv.Take(iron, 10); took != 2 {
		t.Fatalf("overdraw Take = %d", took)
	}
	if _, ok := inv[iron]; ok {
		t.Error("zero entry not removed")
	}

	inv.Add(iron, -4)
	if inv.Get(iron) != 0 {
		t.Error("negative credit went below zero")
	}
}

func TestDataAccessors(t *testing.T) {
	c := hexgrid.At(1, -1)
	d := OfCoord(c)
	if got, ok := d.AsCoord(); !ok || got != c {
		t.Fatalf("AsCoord = %v, %v", got, ok)
	}
	if _, ok := d.AsAmount(); ok {
		t.Error("AsAmount succeeded on a coord")
	}
	if (Data{}).IsValid() {
		t.Error("zero Data is valid")
	}
}

func TestDataMapTypedGetters(t *testing.T) {
	key := ident.ID(7)
	m := DataMap{}

	if _, ok := m.Coord(key); ok {
		t.Error("missing key read as coord")
	}
	m.Set(key, OfAmount(3))
	if _, ok := m.Coord(key); ok {
		t.Error("amount read as coord")
	}
	if n, ok := m.Amount(key); !ok || n != 3 {
		t.Fatalf("Amount = %d, %v", n, ok)
	}

	inv := m.EnsureInventory(ident.ID(8))
	inv.Add(ident.ID(9), 2)
	got, ok := m.Inventory(ident.ID(8))
	if !ok || got.Get(ident.ID(9)) != 2 {
		t.Fatal("EnsureInventory does not store in the map")
	}
}

func TestCloneIsDeep(t *testing.T) {
	iron := ident.ID(1)
	key := ident.ID(2)
	m := DataMap{key: OfInventory(Inventory{iron: 1})}

	cl := m.Clone()
	inv, _ := cl.Inventory(key)
	inv.Add(iron, 10)

	orig, _ := m.Inventory(key)
	if orig.Get(iron) != 1 {
		t.Fatal("clone shares inventory storage")
	}
	if m.Equal(cl) {
		t.Fatal("Equal missed the divergence")
	}
}

func TestRawRoundTrip(t *testing.T) {
	in := ident.NewInterner()
	iron := in.Intern(ident.Name{Namespace: "core", Path: "iron"})
	script := in.Intern(ident.Name{Namespace: "core", Path: "script"})
	recipe := in.Intern(ident.Name{Namespace: "core", Path: "recipe_a"})
	buffer := in.Intern(ident.Name{Namespace: "core", Path: "buffer"})
	target := in.Intern(ident.Name{Namespace: "core", Path: "target"})
	in.Freeze()

	m := DataMap{
		script: OfID(recipe),
		buffer: OfInventory(Inventory{iron: 4}),
		target: OfCoord(hexgrid.Right),
	}

	raw := MapToRaw(m, in)
	back := MapFromRaw(raw, in, "core")
	if !m.Equal(back) {
		t.Fatalf("round trip diverged: %v vs %v", m, back)
	}
}

func TestFromRawDropsUnknownIDs(t *testing.T) {
	in := ident.NewInterner()
	known := in.Intern(ident.Name{Namespace: "core", Path: "known"})
	in.Freeze()

	gone := "core:removed"
	d, ok := FromRaw(RawData{ID: &gone}, in, "core")
	if ok {
		t.Fatalf("unknown id resolved: %v", d)
	}

	d, ok = FromRaw(RawData{VecID: []string{"core:known", gone}}, in, "core")
	if !ok {
		t.Fatal("vec_id dropped entirely")
	}
	ids, _ := d.AsVecID()
	if len(ids) != 1 || ids[0] != known {
		t.Fatalf("vec_id = %v", ids)
	}

	d, ok = FromRaw(RawData{Inventory: map[string]int64{"core:known": 2, gone: 9}}, in, "core")
	if !ok {
		t.Fatal("inventory dropped entirely")
	}
	inv, _ := d.AsInventory()
	if inv.Get(known) != 2 || len(inv) != 1 {
		t.Fatalf("inventory = %v", inv)
	}
}

package tiledata

import (
	"hexmill.dev/internal/sim/hexgrid"
	"hexmill.dev/internal/sim/ident"
)

// RawData is the on-disk form of a Data value. Ids are stored as full
// "ns:path" strings so saves survive interner renumbering. Exactly one
// field is set.
type RawData struct {
	Inventory map[string]int64 `json:"inventory,omitempty"`
	Coord     *hexgrid.Coord   `json:"coord,omitempty"`
	VecCoord  []hexgrid.Coord  `json:"vec_coord,omitempty"`
	ID        *string          `json:"id,omitempty"`
	VecID     []string         `json:"vec_id,omitempty"`
	Amount    *int64           `json:"amount,omitempty"`
	Bool      *bool            `json:"bool,omitempty"`
}

// RawDataMap is the on-disk form of a DataMap, keyed by "ns:path"
// strings.
type RawDataMap map[string]RawData

// ToRaw converts a live value to its disk form. ok is false when the
// value references an id the interner cannot name (never expected for
// ids issued by the same process).
func ToRaw(d Data, in *ident.Interner) (RawData, bool) {
	switch d.kind {
	case KindInventory:
		raw := make(map[string]int64, len(d.inv))
		for id, n := range d.inv {
			name, ok := in.NameOf(id)
			if !ok {
				return RawData{}, false
			}
			raw[name] = n
		}
		return RawData{Inventory: raw}, true
	case KindCoord:
		c := d.coord
		return RawData{Coord: &c}, true
	case KindVecCoord:
		return RawData{VecCoord: append([]hexgrid.Coord{}, d.coords...)}, true
	case KindID:
		name, ok := in.NameOf(d.id)
		if !ok {
			return RawData{}, false
		}
		return RawData{ID: &name}, true
	case KindVecID:
		names := make([]string, 0, len(d.ids))
		for _, id := range d.ids {
			name, ok := in.NameOf(id)
			if !ok {
				return RawData{}, false
			}
			names = append(names, name)
		}
		return RawData{VecID: names}, true
	case KindAmount:
		n := d.amount
		return RawData{Amount: &n}, true
	case KindBool:
		b := d.flag
		return RawData{Bool: &b}, true
	default:
		return RawData{}, false
	}
}

// FromRaw converts a disk value back to a live one. Unknown id strings
// are dropped: an id-valued entry resolves to ok=false, unknown
// inventory keys and vector elements are skipped. This keeps old saves
// loadable after resources are removed.
func FromRaw(r RawData, in *ident.Interner, defaultNS string) (Data, bool) {
	switch {
	case r.Inventory != nil:
		inv := Inventory{}
		for name, n := range r.Inventory {
			if id, ok := in.GetString(name, defaultNS); ok && n > 0 {
				inv[id] = n
			}
		}
		return OfInventory(inv), true
	case r.Coord != nil:
		return OfCoord(*r.Coord), true
	case r.VecCoord != nil:
		return OfVecCoord(append([]hexgrid.Coord{}, r.VecCoord...)), true
	case r.ID != nil:
		id, ok := in.GetString(*r.ID, defaultNS)
		if !ok {
			return Data{}, false
		}
		return OfID(id), true
	case r.VecID != nil:
		ids := make([]ident.ID, 0, len(r.VecID))
		for _, name := range r.VecID {
			if id, ok := in.GetString(name, defaultNS); ok {
				ids = append(ids, id)
			}
		}
		return OfVecID(ids), true
	case r.Amount != nil:
		return OfAmount(*r.Amount), true
	case r.Bool != nil:
		return OfBool(*r.Bool), true
	default:
		return Data{}, false
	}
}

// MapToRaw converts a whole DataMap for saving.
func MapToRaw(m DataMap, in *ident.Interner) RawDataMap {
	out := make(RawDataMap, len(m))
	for key, d := range m {
		name, ok := in.NameOf(key)
		if !ok {
			continue
		}
		raw, ok := ToRaw(d, in)
		if !ok {
			continue
		}
		out[name] = raw
	}
	return out
}

// MapFromRaw converts a loaded RawDataMap, dropping entries whose key
// or value no longer resolves.
func MapFromRaw(raw RawDataMap, in *ident.Interner, defaultNS string) DataMap {
	out := make(DataMap, len(raw))
	for name, r := range raw {
		key, ok := in.GetString(name, defaultNS)
		if !ok {
			continue
		}
		d, ok := FromRaw(r, in, defaultNS)
		if !ok {
			continue
		}
		out[key] = d
	}
	return out
}

package hexgrid

// Bounds is a hexagonal region: every coordinate within Radius steps of
// Center. Radius 0 contains only the center tile.
type Bounds struct {
	Center Coord
	Radius Unit
}

// Contains reports whether c lies inside the bounds.
func (b Bounds) Contains(c Coord) bool {
	return b.Center.Distance(c) <= b.Radius
}

// Count returns the number of tiles inside the bounds.
func (b Bounds) Count() int {
	n := int64(b.Radius)
	return int(3*n*(n+1) + 1)
}

// Each calls fn for every coordinate inside the bounds, in row order.
// Iteration stops early if fn returns false.
func (b Bounds) Each(fn func(Coord) bool) {
	r := b.Radius
	for q := -r; q <= r; q++ {
		lo := max(-r, -q-r)
		hi := min(r, -q+r)
		for rr := lo; rr <= hi; rr++ {
			if !fn(b.Center.Add(Coord{Q: q, R: rr})) {
				return
			}
		}
	}
}

func max(a, b Unit) Unit {
	if a > b {
		return a
	}
	return b
}

func min(a, b Unit) Unit {
	if a < b {
		return a
	}
	return b
}

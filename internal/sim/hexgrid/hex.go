// Package hexgrid implements axial hex coordinates for the tile map.
//
// Coordinates are pointy-top axial (q, r) with the implicit cube
// component s = -q - r. The six edge directions are enumerated
// top-right first, then clockwise.
package hexgrid

import (
	"encoding/json"
	"fmt"
	"math"
)

// Unit is the component type of a tile coordinate. Matches the on-disk
// representation (signed 32-bit).
type Unit = int32

// Coord is a tile position (or a direction offset) on the hex grid.
// It serializes as the two-element array [q, r].
type Coord struct {
	Q Unit
	R Unit
}

// MarshalJSON encodes the coordinate as [q, r].
func (c Coord) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("[%d,%d]", c.Q, c.R)), nil
}

// UnmarshalJSON decodes a [q, r] array.
func (c *Coord) UnmarshalJSON(b []byte) error {
	var pair [2]Unit
	if err := json.Unmarshal(b, &pair); err != nil {
		return fmt.Errorf("coord: %w", err)
	}
	c.Q, c.R = pair[0], pair[1]
	return nil
}

// At builds a coordinate from its q and r components.
func At(q, r Unit) Coord { return Coord{Q: q, R: r} }

// Zero is the origin tile.
var Zero = Coord{}

// The six edge directions, pointy-top orientation.
var (
	TopRight    = Coord{Q: 1, R: -1}
	Right       = Coord{Q: 1, R: 0}
	BottomRight = Coord{Q: 0, R: 1}
	BottomLeft  = Coord{Q: -1, R: 1}
	Left        = Coord{Q: -1, R: 0}
	TopLeft     = Coord{Q: 0, R: -1}
)

// Directions lists the edge directions in fixed order: index 0 is
// top-right, continuing clockwise through top-left.
var Directions = [6]Coord{TopRight, Right, BottomRight, BottomLeft, Left, TopLeft}

func (c Coord) Add(o Coord) Coord { return Coord{Q: c.Q + o.Q, R: c.R + o.R} }
func (c Coord) Sub(o Coord) Coord { return Coord{Q: c.Q - o.Q, R: c.R - o.R} }
func (c Coord) Neg() Coord        { return Coord{Q: -c.Q, R: -c.R} }

func (c Coord) Mul(k Unit) Coord { return Coord{Q: c.Q * k, R: c.R * k} }

// S is the derived cube component.
func (c Coord) S() Unit { return -c.Q - c.R }

// Neighbors returns the six adjacent coordinates in direction order.
func (c Coord) Neighbors() [6]Coord {
	var out [6]Coord
	for i, d := range Directions {
		out[i] = c.Add(d)
	}
	return out
}

// Distance is the axial hex distance between two coordinates.
func (c Coord) Distance(o Coord) Unit {
	dq := abs(c.Q - o.Q)
	dr := abs(c.R - o.R)
	ds := abs(c.S() - o.S())
	return (dq + dr + ds) / 2
}

// DirectionIndex returns the index of c in Directions, or -1 if c is
// not a unit direction offset.
func DirectionIndex(c Coord) int {
	for i, d := range Directions {
		if c == d {
			return i
		}
	}
	return -1
}

func (c Coord) String() string {
	return fmt.Sprintf("[%d, %d]", c.Q, c.R)
}

// MinimalString renders the coordinate as "q,r", used for actor names
// and log fields.
func (c Coord) MinimalString() string {
	return fmt.Sprintf("%d,%d", c.Q, c.R)
}

func abs(v Unit) Unit {
	if v < 0 {
		return -v
	}
	return v
}

// Round converts a fractional hex to the nearest coordinate using cube
// rounding: round all three cube components, then reset the one with
// the largest delta so they sum to zero again.
func Round(fq, fr float64) Coord {
	fs := -fq - fr

	q := math.Round(fq)
	r := math.Round(fr)
	s := math.Round(fs)

	dq := math.Abs(q - fq)
	dr := math.Abs(r - fr)
	ds := math.Abs(s - fs)

	switch {
	case dq > dr && dq > ds:
		q = -r - s
	case dr > ds:
		r = -q - s
	}

	return Coord{Q: Unit(q), R: Unit(r)}
}

const sqrt3 = 1.7320508075688772

// ToPixel converts a coordinate to world-space (pointy-top layout,
// unit hex size).
func (c Coord) ToPixel() (x, y float64) {
	q := float64(c.Q)
	r := float64(c.R)
	return sqrt3*q + sqrt3/2*r, 1.5 * r
}

// FromPixel converts a world-space position to the containing hex.
func FromPixel(x, y float64) Coord {
	fq := sqrt3/3*x - y/3
	fr := 2.0 / 3.0 * y
	return Round(fq, fr)
}

// SubHexDirection returns the edge direction nearest to the offset of
// the point (x, y) from the center of its containing hex. Used to
// derive a placement orientation from the cursor position.
func SubHexDirection(x, y float64) Coord {
	c := FromPixel(x, y)
	cx, cy := c.ToPixel()

	best := 0
	bestDot := math.Inf(-1)
	for i, d := range Directions {
		nx, ny := d.ToPixel()
		dot := nx*(x-cx) + ny*(y-cy)
		if dot > bestDot {
			bestDot = dot
			best = i
		}
	}
	return Directions[best]
}

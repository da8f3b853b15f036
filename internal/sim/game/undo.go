package game

import "hexmill.dev/internal/sim/hexgrid"

// undoStep is the inverse of one recorded command. Exactly one of the
// two forms is populated: a batch of placements that restores the
// previous cell contents, or a reverse move.
type undoStep struct {
	tiles []Placement

	isMove bool
	coords []hexgrid.Coord
	offset hexgrid.Coord
}

// undoRing keeps the newest cap steps, silently dropping the oldest.
type undoRing struct {
	steps []undoStep
	cap   int
}

func newUndoRing(capacity int) *undoRing {
	if capacity <= 0 {
		capacity = 1
	}
	return &undoRing{cap: capacity}
}

func (u *undoRing) push(s undoStep) {
	if len(u.steps) == u.cap {
		copy(u.steps, u.steps[1:])
		u.steps = u.steps[:len(u.steps)-1]
	}
	u.steps = append(u.steps, s)
}

// pop removes and returns the newest step.
func (u *undoRing) pop() (undoStep, bool) {
	if len(u.steps) == 0 {
		return undoStep{}, false
	}
	s := u.steps[len(u.steps)-1]
	u.steps = u.steps[:len(u.steps)-1]
	return s, true
}

func (u *undoRing) len() int { return len(u.steps) }

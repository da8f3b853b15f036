// Package errq is the structured error queue: user-facing data errors
// (bad map files, unwritable options, invalid names) are pushed here
// keyed by well-known ids, and the GUI drains them one modal popup at
// a time.
package errq

import (
	"sync"
	"time"

	"hexmill.dev/internal/sim/ident"
)

// Error is one queued user-facing error.
type Error struct {
	ID     ident.ID // well-known error id from the registry
	Detail string
	When   time.Time
}

// Queue is a bounded FIFO. When full, the oldest entry is dropped so
// a flood of load errors cannot grow without bound.
type Queue struct {
	mu    sync.Mutex
	items []Error
	cap   int
}

func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 32
	}
	return &Queue{cap: capacity}
}

func (q *Queue) Push(id ident.ID, detail string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == q.cap {
		copy(q.items, q.items[1:])
		q.items = q.items[:q.cap-1]
	}
	q.items = append(q.items, Error{ID: id, Detail: detail, When: time.Now()})
}

// Peek returns the oldest entry without removing it.
func (q *Queue) Peek() (Error, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Error{}, false
	}
	return q.items[0], true
}

// Pop removes and returns the oldest entry. Called when the user
// confirms the popup.
func (q *Queue) Pop() (Error, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Error{}, false
	}
	e := q.items[0]
	copy(q.items, q.items[1:])
	q.items = q.items[:len(q.items)-1]
	return e, true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

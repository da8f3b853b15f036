package errq

import (
	"fmt"
	"testing"

	"hexmill.dev/internal/sim/ident"
)

func TestFIFO(t *testing.T) {
	q := New(4)
	q.Push(ident.ID(1), "first")
	q.Push(ident.ID(2), "second")

	e, ok := q.Peek()
	if !ok || e.Detail != "first" {
		t.Fatalf("Peek = %+v, %v", e, ok)
	}
	if q.Len() != 2 {
		t.Fatalf("Peek consumed; len = %d", q.Len())
	}

	e, _ = q.Pop()
	if e.Detail != "first" {
		t.Fatalf("Pop = %q", e.Detail)
	}
	e, _ = q.Pop()
	if e.Detail != "second" {
		t.Fatalf("Pop = %q", e.Detail)
	}
	if _, ok := q.Pop(); ok {
		t.Error("Pop on empty succeeded")
	}
}

func TestDropsOldestWhenFull(t *testing.T) {
	q := New(3)
	for i := 0; i < 5; i++ {
		q.Push(ident.ID(1), fmt.Sprintf("e%d", i))
	}
	if q.Len() != 3 {
		t.Fatalf("len = %d", q.Len())
	}
	e, _ := q.Pop()
	if e.Detail != "e2" {
		t.Fatalf("oldest surviving = %q", e.Detail)
	}
}

// Package ident interns namespaced resource names into small integer
// ids. Names have the form "namespace:path"; a bare "path" resolves
// against a default namespace. Interning is append-only while catalogs
// load, then the table is frozen and lookups of unknown names fail
// instead of allocating.
package ident

import (
	"fmt"
	"strings"
	"sync"
)

// ID is an interned name. The zero value is invalid and never issued.
type ID uint32

// Typed aliases for ids that live in distinct catalog namespaces.
type (
	TileID      ID
	ModelID     ID
	RenderTagID ID
	ModelMeshID ID
)

// Name is a parsed "namespace:path" pair.
type Name struct {
	Namespace string
	Path      string
}

func (n Name) String() string { return n.Namespace + ":" + n.Path }

// ParseName splits s into namespace and path. A name without a colon
// belongs to defaultNS. Empty namespace or path is an error.
func ParseName(s, defaultNS string) (Name, error) {
	ns, path, found := strings.Cut(s, ":")
	if !found {
		ns, path = defaultNS, s
	}
	if ns == "" || path == "" {
		return Name{}, fmt.Errorf("ident: malformed name %q", s)
	}
	return Name{Namespace: ns, Path: path}, nil
}

// Interner is a bidirectional string/ID table. Safe for concurrent
// reads after Freeze; interning itself is single-threaded (catalog
// load time).
type Interner struct {
	mu     sync.RWMutex
	byName map[string]ID
	names  []string // names[i] holds the name for ID(i+1)
	frozen bool
}

func NewInterner() *Interner {
	return &Interner{byName: map[string]ID{}}
}

// Intern returns the id for name, allocating one if the table is not
// yet frozen. Interning after Freeze panics: it means a code path is
// inventing names at runtime.
func (in *Interner) Intern(name Name) ID {
	key := name.String()

	in.mu.Lock()
	defer in.mu.Unlock()

	if id, ok := in.byName[key]; ok {
		return id
	}
	if in.frozen {
		panic(fmt.Sprintf("ident: intern %q after freeze", key))
	}
	in.names = append(in.names, key)
	id := ID(len(in.names))
	in.byName[key] = id
	return id
}

// Freeze ends the allocation phase.
func (in *Interner) Freeze() {
	in.mu.Lock()
	in.frozen = true
	in.mu.Unlock()
}

// Get resolves an already-interned name. ok is false for names never
// interned.
func (in *Interner) Get(name Name) (ID, bool) {
	in.mu.RLock()
	id, ok := in.byName[name.String()]
	in.mu.RUnlock()
	return id, ok
}

// GetString resolves a raw "ns:path" (or bare path) string.
func (in *Interner) GetString(s, defaultNS string) (ID, bool) {
	n, err := ParseName(s, defaultNS)
	if err != nil {
		return 0, false
	}
	return in.Get(n)
}

// NameOf returns the "ns:path" string for id. ok is false for ids this
// interner never issued.
func (in *Interner) NameOf(id ID) (string, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	i := int(id) - 1
	if i < 0 || i >= len(in.names) {
		return "", false
	}
	return in.names[i], true
}

// Len reports how many names are interned.
func (in *Interner) Len() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return len(in.names)
}

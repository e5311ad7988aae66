// Package storage holds candidate tables for the key search.
//
// A Store is an indexed sequence of 32-bit values that grows at its end. The
// memory store keeps the values in a slice; the file store pages every access
// through a scratch file so the tables never have to fit in RAM.
package storage

import (
	"errors"
	"fmt"
	"slices"
	"sort"
)

var ErrClosed = errors.New("store is closed")

type Store interface {
	Len() int
	Get(i int) uint32
	// Set writes v at i. Writing at Len() appends.
	Set(i int, v uint32)
	Append(v uint32)
	Swap(i, j int)
	// Truncate drops every element from n on.
	Truncate(n int)
	// Err reports the first I/O failure. Values read after a failure are undefined.
	Err() error
	Close() error
}

const (
	BackendMemory = "memory"
	BackendFile   = "file"
)

// Factory creates empty stores of one backend.
type Factory struct {
	Backend    string
	ScratchDir string
}

func NewFactory(backend, scratchDir string) (*Factory, error) {
	switch backend {
	case BackendMemory, BackendFile:
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
	return &Factory{Backend: backend, ScratchDir: scratchDir}, nil
}

// New returns an empty store. File stores get a scratch file of their own.
func (f *Factory) New() (Store, error) {
	if f == nil || f.Backend == BackendMemory {
		return NewMemStore(0), nil
	}
	return NewFileStore(f.ScratchDir)
}

// Sort orders the inclusive range [lo, hi] ascending.
func Sort(s Store, lo, hi int) {
	if lo >= hi {
		return
	}
	if m, ok := s.(*MemStore); ok {
		slices.Sort(m.data[lo : hi+1])
		return
	}
	sort.Sort(window{s: s, lo: lo, n: hi - lo + 1})
}

// Compact removes adjacent duplicates from a sorted store.
func Compact(s Store) {
	n := s.Len()
	if n < 2 {
		return
	}
	w, prev := 1, s.Get(0)
	for r := 1; r < n; r++ {
		v := s.Get(r)
		if v == prev {
			continue
		}
		if w != r {
			s.Set(w, v)
		}
		prev = v
		w++
	}
	s.Truncate(w)
}

type window struct {
	s  Store
	lo int
	n  int
}

func (w window) Len() int           { return w.n }
func (w window) Less(i, j int) bool { return w.s.Get(w.lo+i) < w.s.Get(w.lo+j) }
func (w window) Swap(i, j int)      { w.s.Swap(w.lo+i, w.lo+j) }

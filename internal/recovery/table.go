package recovery

import (
	"iter"

	"mfkey/internal/storage"
	"mfkey/pkg/crypto1"
)

const (
	// seedBits is the width of a semi-state, enough to feed one filter call.
	seedBits = 20
	// plainRounds are extended before contributions carry information.
	plainRounds = 4
	// seedRounds are the extensions done per seed before bucketing.
	seedRounds = 12
	// levelRounds is how many bits a recovery level consumes before intersecting.
	levelRounds = 4
	// finalDepth is the recursion depth left after seeding: 3 more bits, then combine.
	finalDepth = 3

	stateMask uint32 = 0xffffff
)

// Candidate is a packed table entry: the low 24 bits are partial LFSR state,
// the top byte is the parity contribution of the last four extensions.
type Candidate uint32

func (c Candidate) State() uint32 {
	return uint32(c) & stateMask
}

func (c Candidate) Contribution() uint8 {
	return uint8(c >> 24)
}

// masks select the feedback taps whose parity one table contributes towards
// matching the other half.
type masks struct {
	m1, m2 uint32
}

var (
	oddMasks  = masks{m1: crypto1.PolyEven<<1 | 1, m2: crypto1.PolyOdd << 1}
	evenMasks = masks{m1: crypto1.PolyOdd, m2: crypto1.PolyEven<<1 | 1}
)

func (m masks) contribute(v uint32) uint32 {
	p := v >> 25
	p = p<<1 | crypto1.Parity(v&m.m1)
	p = p<<1 | crypto1.Parity(v&m.m2)
	return p<<24 | v&stateMask
}

// splitKeystream separates the bits produced while the odd register fed the
// filter from those produced by the even register, oldest bit first.
func splitKeystream(ks uint32) (oks, eks uint32) {
	for i := 31; i >= 0; i -= 2 {
		oks = oks<<1 | ks>>(i^24)&1
	}
	for i := 30; i >= 0; i -= 2 {
		eks = eks<<1 | ks>>(i^24)&1
	}
	return oks, eks
}

// seeds yields every semi-state whose filter output is bit.
func seeds(bit uint32) iter.Seq[uint32] {
	return func(yield func(uint32) bool) {
		for x := uint32(1) << seedBits; ; x-- {
			if crypto1.Filter(x) == bit && !yield(x) {
				return
			}
			if x == 0 {
				return
			}
		}
	}
}

// extend shifts one more keystream bit into the entries [head, tail] of s.
// Entries whose new bit is forced are kept, entries that fit either way are
// split in two and entries that cannot produce bit are replaced by the tail.
// It returns the new tail; tail < head means no candidate survived.
func extend(s storage.Store, head, tail int, bit uint32, m masks, contribute bool) int {
	fix := func(v uint32) uint32 {
		if contribute {
			return m.contribute(v)
		}
		return v
	}

	for i := head; i <= tail; {
		v := s.Get(i) << 1
		f := crypto1.Filter(v)
		switch {
		case f != crypto1.Filter(v|1):
			s.Set(i, fix(v|(f^bit)))
			i++
		case f == bit:
			tail++
			if i+1 < tail {
				// park the unprocessed neighbour at the new tail
				s.Set(tail, s.Get(i+1))
			}
			s.Set(i, fix(v))
			s.Set(i+1, fix(v|1))
			i += 2
		default:
			s.Set(i, s.Get(tail))
			tail--
		}
	}
	return tail
}

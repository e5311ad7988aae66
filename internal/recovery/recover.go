package recovery

import (
	"context"

	"mfkey/internal/storage"
	"mfkey/pkg/crypto1"
)

// span is an inclusive index range of a table.
type span struct {
	head, tail int
}

func (s span) empty() bool {
	return s.head > s.tail
}

// outcome is how a search branch ended.
type outcome struct {
	key   uint64
	found bool
}

// walker intersects an odd and an even table level by level.
type walker struct {
	ctx       context.Context
	odd, even storage.Store
	params    *Params

	// tested counts combined states handed to the validator.
	tested int
}

// recover consumes up to levelRounds keystream bits on both ranges, pairs
// entries whose contribution bytes agree and descends into every pair of
// clusters. At depth -1 the ranges are combined into full states.
// Ranges passed with extend unset must already be sorted.
func (w *walker) recover(o, e span, oks, eks uint32, rem int, extend bool) outcome {
	if rem == -1 {
		return w.combine(o, e)
	}

	if extend {
		for i := 0; i < levelRounds; i++ {
			if rem == 0 {
				rem = -1
				break
			}
			rem--
			oks >>= 1
			eks >>= 1

			o.tail = extendTable(w.odd, o, oks&1, oddMasks)
			if o.empty() || w.failed() {
				return outcome{}
			}
			e.tail = extendTable(w.even, e, eks&1, evenMasks)
			if e.empty() || w.failed() {
				return outcome{}
			}
		}
		storage.Sort(w.odd, o.head, o.tail)
		storage.Sort(w.even, e.head, e.tail)
	}

	for !o.empty() && !e.empty() {
		ov, ev := w.odd.Get(o.tail), w.even.Get(e.tail)
		switch {
		case (ov^ev)>>24 == 0:
			oc := span{clusterStart(w.odd, o.head, o.tail), o.tail}
			ec := span{clusterStart(w.even, e.head, e.tail), e.tail}
			if res := w.recover(oc, ec, oks, eks, rem, true); res.found {
				return res
			}
			o.tail, e.tail = oc.head-1, ec.head-1
		case ov > ev:
			o.tail = clusterStart(w.odd, o.head, o.tail) - 1
		default:
			e.tail = clusterStart(w.even, e.head, e.tail) - 1
		}
		if w.failed() {
			return outcome{}
		}
	}
	return outcome{}
}

// combine rebuilds full states from the surviving halves. The even entries
// still miss their final feedback bit, which the odd half determines.
func (w *walker) combine(o, e span) outcome {
	for i := e.head; i <= e.tail; i++ {
		ev := w.even.Get(i)
		ev = ev<<1 ^ crypto1.Parity(ev&crypto1.PolyEven)
		for j := o.head; j <= o.tail; j++ {
			ov := w.odd.Get(j)
			s := crypto1.State{
				Odd:  (ev ^ crypto1.Parity(ov&crypto1.PolyOdd)) & stateMask,
				Even: ov & stateMask,
			}
			w.tested++
			if key, ok := w.params.check(s); ok {
				return outcome{key: key, found: true}
			}
		}
	}
	return outcome{}
}

// failed reports a table I/O error or cancellation; the branch is abandoned.
func (w *walker) failed() bool {
	return w.odd.Err() != nil || w.even.Err() != nil || w.ctx.Err() != nil
}

func extendTable(s storage.Store, r span, bit uint32, m masks) int {
	return extend(s, r.head, r.tail, bit, m, true)
}

// clusterStart finds the first index in [head, tail] whose contribution byte
// equals that of the entry at tail. The range must be sorted.
func clusterStart(s storage.Store, head, tail int) int {
	top := s.Get(tail) >> 24
	lo, hi := head, tail
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if s.Get(mid)>>24 < top {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

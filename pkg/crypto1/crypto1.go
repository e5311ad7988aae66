// Package crypto1 simulates the Crypto1 stream cipher bit by bit.
//
// The 48-bit LFSR is kept as two interleaved 24-bit registers: Odd holds the
// odd-numbered key bits and Even the even-numbered ones, each at bit position i^3.
package crypto1

import "math/bits"

const (
	PolyOdd  uint32 = 0x29CE5C
	PolyEven uint32 = 0x870804

	mask24 uint32 = 0xffffff
)

// State is the cipher's LFSR split into its two halves.
type State struct {
	Odd, Even uint32
}

// NewState loads a 48-bit key into a fresh LFSR.
func NewState(key uint64) State {
	var s State
	for i := 0; i < 24; i++ {
		s.Odd |= uint32(key>>(2*i+1)&1) << (i ^ 3)
		s.Even |= uint32(key>>(2*i)&1) << (i ^ 3)
	}
	return s
}

// Key returns the 48-bit key the state encodes.
func (s State) Key() uint64 {
	var key uint64
	for i := 23; i >= 0; i-- {
		key = key<<1 | uint64(bit(s.Odd, i^3))
		key = key<<1 | uint64(bit(s.Even, i^3))
	}
	return key
}

// Filter is the nonlinear output function over the low 20 bits of x.
func Filter(x uint32) uint32 {
	f := uint32(0xf22c0) >> (x & 0xf) & 16
	f |= uint32(0x6c9c0) >> (x >> 4 & 0xf) & 8
	f |= uint32(0x3c8b0) >> (x >> 8 & 0xf) & 4
	f |= uint32(0x1e458) >> (x >> 12 & 0xf) & 2
	f |= uint32(0x0d938) >> (x >> 16 & 0xf) & 1
	return uint32(0xEC57E80A) >> f & 1
}

// Parity returns the even parity of x.
func Parity(x uint32) uint32 {
	return uint32(bits.OnesCount32(x) & 1)
}

// Successor advances the tag's PRNG n steps. Nonces travel big-endian on the
// air, so the register is byte-swapped around the shifts.
func Successor(x, n uint32) uint32 {
	x = bits.ReverseBytes32(x)
	for ; n > 0; n-- {
		x = x>>1 | (x>>16^x>>18^x>>19^x>>21)<<31
	}
	return bits.ReverseBytes32(x)
}

// Step clocks the cipher once, shifting in the in bit. With fb set the
// keystream bit is folded into the feedback, which is how encrypted input
// (the reader nonce) is loaded. It returns the keystream bit.
func (s *State) Step(in uint32, fb bool) uint32 {
	ret := Filter(s.Odd)

	feed := ret & b2u(fb)
	feed ^= b2u(in != 0)
	feed ^= PolyOdd & s.Odd
	feed ^= PolyEven & s.Even
	s.Even = (s.Even<<1 | Parity(feed)) & mask24

	s.Odd, s.Even = s.Even, s.Odd
	return ret
}

// Rollback undoes a Step made with the same in and fb.
func (s *State) Rollback(in uint32, fb bool) uint32 {
	s.Odd &= mask24
	s.Odd, s.Even = s.Even, s.Odd

	out := s.Even & 1
	s.Even >>= 1
	out ^= PolyEven & s.Even
	out ^= PolyOdd & s.Odd
	out ^= b2u(in != 0)

	ret := Filter(s.Odd)
	out ^= ret & b2u(fb)

	s.Even |= Parity(out) << 23
	return ret
}

// Word clocks 32 bits of in through the cipher and returns the keystream word.
func (s *State) Word(in uint32, fb bool) uint32 {
	var ret uint32
	for i := 0; i < 32; i++ {
		ret |= s.Step(bebit(in, i), fb) << (i ^ 24)
	}
	return ret
}

// RollbackWord undoes Word.
func (s *State) RollbackWord(in uint32, fb bool) uint32 {
	var ret uint32
	for i := 31; i >= 0; i-- {
		ret |= s.Rollback(bebit(in, i), fb) << (i ^ 24)
	}
	return ret
}

func bit(x uint32, n int) uint32 {
	return x >> n & 1
}

// bebit addresses bits in on-air byte order.
func bebit(x uint32, n int) uint32 {
	return bit(x, n^24)
}

func b2u(v bool) uint32 {
	if v {
		return 1
	}
	return 0
}

package recovery

import "mfkey/pkg/crypto1"

// Params are the values observed across two authentications made with the same key.
type Params struct {
	UID    uint32
	NT0    uint32
	NR0Enc uint32
	AR0Enc uint32
	NT1    uint32
	NR1Enc uint32
	AR1Enc uint32

	// P64 and P64b are the reader answers expected for nt0 and nt1.
	P64  uint32
	P64b uint32
}

func NewParams(uid, nt0, nr0Enc, ar0Enc, nt1, nr1Enc, ar1Enc uint32) Params {
	return Params{
		UID:    uid,
		NT0:    nt0,
		NR0Enc: nr0Enc,
		AR0Enc: ar0Enc,
		NT1:    nt1,
		NR1Enc: nr1Enc,
		AR1Enc: ar1Enc,
		P64:    crypto1.Successor(nt0, 64),
		P64b:   crypto1.Successor(nt1, 64),
	}
}

// Keystream is the cipher output that encrypted the first reader answer.
func (p *Params) Keystream() uint32 {
	return p.AR0Enc ^ p.P64
}

// Explains reports whether key reproduces the second authentication.
func (p *Params) Explains(key uint64) bool {
	s := crypto1.NewState(key)
	s.Word(p.UID^p.NT1, false)
	s.Word(p.NR1Enc, true)
	return s.Word(0, false)^p.P64b == p.AR1Enc
}

// check takes a candidate state positioned right after the first reader answer,
// walks it back to key load and tests the key against the second trace.
func (p *Params) check(s crypto1.State) (uint64, bool) {
	if s.Odd|s.Even == 0 {
		return 0, false
	}
	if s.RollbackWord(0, false)^p.P64 != p.AR0Enc {
		return 0, false
	}
	s.RollbackWord(p.NR0Enc, true)
	s.RollbackWord(p.UID^p.NT0, false)

	key := s.Key()
	if !p.Explains(key) {
		return 0, false
	}
	return key, true
}

// Simulate produces the params a reader holding key would leave in a capture
// log after authenticating twice to the card uid, answering the tag nonces
// nt0 and nt1 with the reader nonces nr0 and nr1.
func Simulate(key uint64, uid, nt0, nr0, nt1, nr1 uint32) Params {
	nr0Enc, ar0Enc := authenticate(key, uid, nt0, nr0)
	nr1Enc, ar1Enc := authenticate(key, uid, nt1, nr1)
	return NewParams(uid, nt0, nr0Enc, ar0Enc, nt1, nr1Enc, ar1Enc)
}

func authenticate(key uint64, uid, nt, nr uint32) (nrEnc, arEnc uint32) {
	s := crypto1.NewState(key)
	s.Word(uid^nt, false)
	nrEnc = nr ^ s.Word(nr, false)
	arEnc = crypto1.Successor(nt, 64) ^ s.Word(0, false)
	return nrEnc, arEnc
}

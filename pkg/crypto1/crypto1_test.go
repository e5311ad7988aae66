package crypto1

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomState(rng *rand.Rand) State {
	return State{Odd: rng.Uint32() & mask24, Even: rng.Uint32() & mask24}
}

func TestStepRollbackRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for n := 0; n < 200; n++ {
		start := randomState(rng)
		s := start

		ins := make([]uint32, 32)
		fbs := make([]bool, 32)
		outs := make([]uint32, 32)
		for i := range ins {
			ins[i] = uint32(rng.Intn(2))
			fbs[i] = rng.Intn(2) == 1
			outs[i] = s.Step(ins[i], fbs[i])
		}
		for i := len(ins) - 1; i >= 0; i-- {
			assert.Equal(t, outs[i], s.Rollback(ins[i], fbs[i]), "keystream bit %d", i)
		}
		require.Equal(t, start, s)
	}
}

func TestWordRollbackWord(t *testing.T) {
	rng := rand.New(rand.NewSource(2))

	for n := 0; n < 100; n++ {
		start := randomState(rng)
		in := rng.Uint32()
		s := start

		ks := s.Word(in, n%2 == 0)
		assert.NotEqual(t, start, s)
		assert.Equal(t, ks, s.RollbackWord(in, n%2 == 0))
		assert.Equal(t, start, s)
	}
}

func TestEncryptedFeedbackDecrypts(t *testing.T) {
	key := uint64(0xA0A1A2A3A4A5)
	nr := uint32(0x12345678)

	enc := NewState(key)
	nrEnc := nr ^ enc.Word(nr, false)

	dec := NewState(key)
	got := nrEnc ^ dec.Word(nrEnc, true)

	assert.Equal(t, nr, got)
	assert.Equal(t, enc, dec)
}

func TestKeyInterleave(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for n := 0; n < 100; n++ {
		key := rng.Uint64() & 0xffffffffffff
		s := NewState(key)
		assert.LessOrEqual(t, s.Odd, mask24)
		assert.LessOrEqual(t, s.Even, mask24)
		assert.Equal(t, key, s.Key())
	}

	assert.Equal(t, State{Odd: mask24, Even: mask24}, NewState(0xffffffffffff))
	assert.Equal(t, State{}, NewState(0))
}

func TestSuccessor(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	for n := 0; n < 100; n++ {
		x := rng.Uint32()
		assert.Equal(t, x, Successor(x, 0))
		assert.Equal(t, Successor(x, 64), Successor(Successor(x, 32), 32))
		assert.Equal(t, Successor(x, 96), Successor(Successor(x, 64), 32))
	}
}

func TestFilterDeterministic(t *testing.T) {
	ones := 0
	for x := uint32(0); x < 1<<20; x++ {
		f := Filter(x)
		require.LessOrEqual(t, f, uint32(1))
		require.Equal(t, f, Filter(x))
		// bits above 20 are ignored
		require.Equal(t, f, Filter(x|0xfff00000))
		ones += int(f)
	}
	// the filter is balanced
	assert.Equal(t, 1<<19, ones)
}

func TestParity(t *testing.T) {
	assert.Equal(t, uint32(0), Parity(0))
	assert.Equal(t, uint32(1), Parity(1))
	assert.Equal(t, uint32(0), Parity(3))
	assert.Equal(t, uint32(1), Parity(0x80000000))
	assert.Equal(t, uint32(0), Parity(0xffffffff))
}

func BenchmarkWord(b *testing.B) {
	s := NewState(0xffffffffffff)
	for i := 0; i < b.N; i++ {
		s.Word(uint32(i), false)
	}
}

package storage

import (
	"math/rand"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStores(t *testing.T) map[string]Store {
	t.Helper()
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = fs.Close() })

	return map[string]Store{
		BackendMemory: NewMemStore(0),
		BackendFile:   fs,
	}
}

func TestStoreContract(t *testing.T) {
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, 0, s.Len())

			s.Append(10)
			s.Append(20)
			s.Set(2, 30)
			assert.Equal(t, 3, s.Len())

			s.Set(0, 11)
			assert.Equal(t, uint32(11), s.Get(0))
			assert.Equal(t, uint32(20), s.Get(1))
			assert.Equal(t, uint32(30), s.Get(2))

			s.Swap(0, 2)
			assert.Equal(t, uint32(30), s.Get(0))
			assert.Equal(t, uint32(11), s.Get(2))

			s.Truncate(1)
			assert.Equal(t, 1, s.Len())
			assert.Equal(t, uint32(30), s.Get(0))

			s.Set(3, 7)
			assert.Equal(t, 4, s.Len())
			assert.Equal(t, uint32(0), s.Get(2))
			assert.Equal(t, uint32(7), s.Get(3))

			require.NoError(t, s.Err())
		})
	}
}

func TestSortAndCompactAgree(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	values := make([]uint32, 500)
	for i := range values {
		values[i] = rng.Uint32() % 64
	}

	got := map[string][]uint32{}
	for name, s := range newStores(t) {
		for _, v := range values {
			s.Append(v)
		}
		Sort(s, 0, s.Len()-1)
		Compact(s)
		require.NoError(t, s.Err())

		out := make([]uint32, s.Len())
		for i := range out {
			out[i] = s.Get(i)
		}
		got[name] = out
	}

	assert.Equal(t, got[BackendMemory], got[BackendFile])
	assert.IsIncreasing(t, got[BackendMemory])
	assert.LessOrEqual(t, len(got[BackendMemory]), 64)
}

func TestSortRange(t *testing.T) {
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			for _, v := range []uint32{9, 5, 4, 3, 2, 1, 0} {
				s.Append(v)
			}
			Sort(s, 1, 4)
			out := make([]uint32, s.Len())
			for i := range out {
				out[i] = s.Get(i)
			}
			assert.Equal(t, []uint32{9, 2, 3, 4, 5, 1, 0}, out)
		})
	}
}

func TestFileStoreErrors(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	name := fs.Name()

	fs.Append(1)
	assert.Equal(t, uint32(0), fs.Get(5))
	require.Error(t, fs.Err())

	// the first failure sticks
	first := fs.Err()
	fs.Set(0, 2)
	assert.Equal(t, first, fs.Err())

	require.NoError(t, fs.Close())
	_, statErr := os.Stat(name)
	assert.True(t, os.IsNotExist(statErr))
	assert.ErrorIs(t, fs.Close(), ErrClosed)
}

func TestFileStoreClosedFileFails(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	defer fs.Close()

	fs.Append(1)
	require.NoError(t, fs.f.Close())

	fs.Append(2)
	assert.Error(t, fs.Err())
}

func TestFactory(t *testing.T) {
	_, err := NewFactory("tape", "")
	assert.Error(t, err)

	f, err := NewFactory(BackendFile, t.TempDir())
	require.NoError(t, err)
	s, err := f.New()
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)
	require.NoError(t, s.Close())

	f, err = NewFactory(BackendMemory, "")
	require.NoError(t, err)
	s, err = f.New()
	require.NoError(t, err)
	assert.IsType(t, &MemStore{}, s)
}

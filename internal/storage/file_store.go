package storage

import (
	"encoding/binary"
	"fmt"
	"os"
)

const recordSize = 4

// FileStore keeps element i as a little-endian record at offset i*4 of a
// private scratch file. It is not safe for concurrent use.
type FileStore struct {
	f   *os.File
	n   int
	buf [recordSize]byte
	err error
}

// NewFileStore creates a scratch file in dir (the system temp dir when empty).
// The file is removed on Close.
func NewFileStore(dir string) (*FileStore, error) {
	f, err := os.CreateTemp(dir, "mfkey-table-*.bin")
	if err != nil {
		return nil, fmt.Errorf("create scratch file: %w", err)
	}
	return &FileStore{f: f}, nil
}

func (s *FileStore) Len() int {
	return s.n
}

func (s *FileStore) Get(i int) uint32 {
	if s.err != nil {
		return 0
	}
	if i < 0 || i >= s.n {
		s.fail(fmt.Errorf("read index %d out of range [0, %d)", i, s.n))
		return 0
	}
	if _, err := s.f.ReadAt(s.buf[:], int64(i)*recordSize); err != nil {
		s.fail(fmt.Errorf("read record %d: %w", i, err))
		return 0
	}
	return binary.LittleEndian.Uint32(s.buf[:])
}

func (s *FileStore) Set(i int, v uint32) {
	if s.err != nil {
		return
	}
	if i < 0 {
		s.fail(fmt.Errorf("write index %d out of range", i))
		return
	}
	binary.LittleEndian.PutUint32(s.buf[:], v)
	if _, err := s.f.WriteAt(s.buf[:], int64(i)*recordSize); err != nil {
		s.fail(fmt.Errorf("write record %d: %w", i, err))
		return
	}
	if i >= s.n {
		// a gap reads back as zeros
		s.n = i + 1
	}
}

func (s *FileStore) Append(v uint32) {
	s.Set(s.n, v)
}

func (s *FileStore) Swap(i, j int) {
	a, b := s.Get(i), s.Get(j)
	s.Set(i, b)
	s.Set(j, a)
}

func (s *FileStore) Truncate(n int) {
	if s.err != nil {
		return
	}
	if err := s.f.Truncate(int64(n) * recordSize); err != nil {
		s.fail(fmt.Errorf("truncate to %d records: %w", n, err))
		return
	}
	s.n = n
}

func (s *FileStore) Err() error {
	return s.err
}

// Name returns the scratch file path.
func (s *FileStore) Name() string {
	return s.f.Name()
}

func (s *FileStore) Close() error {
	if s.f == nil {
		return ErrClosed
	}
	name := s.f.Name()
	err := s.f.Close()
	s.f = nil
	if s.err == nil {
		s.err = ErrClosed
	}
	if rmErr := os.Remove(name); rmErr != nil && err == nil {
		err = rmErr
	}
	return err
}

func (s *FileStore) fail(err error) {
	if s.err == nil {
		s.err = err
	}
}

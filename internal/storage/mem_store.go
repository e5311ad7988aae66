package storage

type MemStore struct {
	data []uint32
}

func NewMemStore(capacity int) *MemStore {
	return &MemStore{data: make([]uint32, 0, capacity)}
}

func (m *MemStore) Len() int {
	return len(m.data)
}

func (m *MemStore) Get(i int) uint32 {
	return m.data[i]
}

func (m *MemStore) Set(i int, v uint32) {
	for i >= len(m.data) {
		m.data = append(m.data, 0)
	}
	m.data[i] = v
}

func (m *MemStore) Append(v uint32) {
	m.data = append(m.data, v)
}

func (m *MemStore) Swap(i, j int) {
	m.data[i], m.data[j] = m.data[j], m.data[i]
}

func (m *MemStore) Truncate(n int) {
	m.data = m.data[:n]
}

// Reset empties the store and keeps its capacity.
func (m *MemStore) Reset() {
	m.data = m.data[:0]
}

func (m *MemStore) Err() error {
	return nil
}

func (m *MemStore) Close() error {
	m.data = nil
	return nil
}

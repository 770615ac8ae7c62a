package storage

import "sync"

// MemorySlot keeps the value in process memory
type MemorySlot struct {
	value []byte
	set   bool
	mu    sync.Mutex
}

// NewMemorySlot creates an empty in-memory slot
func NewMemorySlot() *MemorySlot {
	return &MemorySlot{}
}

func (m *MemorySlot) Read() ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.set {
		return nil, false, nil
	}
	out := make([]byte, len(m.value))
	copy(out, m.value)
	return out, true, nil
}

func (m *MemorySlot) Write(value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = append(m.value[:0], value...)
	m.set = true
	return nil
}

func (m *MemorySlot) Remove() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = nil
	m.set = false
	return nil
}

func (m *MemorySlot) Close() error { return nil }

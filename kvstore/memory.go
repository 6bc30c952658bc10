package kvstore

import "sync"

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps values for the life of the process.
type MemoryStore struct {
	values map[string]string
	lock   sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string]string),
	}
}

func (m *MemoryStore) Get(key string) (string, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.values[key], nil
}

func (m *MemoryStore) Set(key, value string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.values[key] = value
	return nil
}

package selection

import "sync"

// Store persists staged selections between page loads, keyed by the order's
// short slug. Selections are staging data: losing them is acceptable, a
// customer just starts again from the suggested defaults.
type Store interface {
	Load(slug string) (State, bool)
	Save(slug string, st State)
	Delete(slug string)
}

// MemoryStore is the default in-process Store.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]State)}
}

func (m *MemoryStore) Load(slug string) (State, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.states[slug]
	return st, ok
}

func (m *MemoryStore) Save(slug string, st State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[slug] = st
}

func (m *MemoryStore) Delete(slug string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, slug)
}

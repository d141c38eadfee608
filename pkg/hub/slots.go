package hub

import "sync"

// Slot is one named storage position for a learned code
type Slot struct {
	Name string // Human-readable name ("tv power")
	Code []byte // Opaque learned code bytes
}

// SlotStore persists learned codes in numbered slots
// The orchestrator consumes this interface; persistence is the
// implementation's business.
type SlotStore interface {
	// GetSlot returns the slot contents, if the slot is populated
	GetSlot(id int) (Slot, bool)

	// PutSlot stores a code in a slot, replacing any previous contents
	PutSlot(id int, slot Slot) error

	// SlotIDs returns the ids of all populated slots
	SlotIDs() []int
}

// MemorySlotStore is an in-memory SlotStore
type MemorySlotStore struct {
	slots map[int]Slot
	mu    sync.RWMutex
}

// NewMemorySlotStore creates an empty in-memory slot store
func NewMemorySlotStore() *MemorySlotStore {
	return &MemorySlotStore{
		slots: make(map[int]Slot),
	}
}

// GetSlot returns the slot contents, if populated
func (m *MemorySlotStore) GetSlot(id int) (Slot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	slot, exists := m.slots[id]
	return slot, exists
}

// PutSlot stores a code in a slot
func (m *MemorySlotStore) PutSlot(id int, slot Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	code := make([]byte, len(slot.Code))
	copy(code, slot.Code)
	m.slots[id] = Slot{Name: slot.Name, Code: code}
	return nil
}

// SlotIDs returns the ids of all populated slots
func (m *MemorySlotStore) SlotIDs() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]int, 0, len(m.slots))
	for id := range m.slots {
		ids = append(ids, id)
	}
	return ids
}

package hub

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"os"
	"sort"
	"strconv"
	"sync"

	"github.com/BurntSushi/toml"
)

// FileSlotStore is a TOML-file-backed SlotStore
// The file is human-editable: each slot carries a name and the base64 form
// of its code bytes.
//
//	[slots.5]
//	name = "tv power"
//	code = "JgBGAJKT..."
type FileSlotStore struct {
	path  string
	slots map[int]Slot
	mu    sync.Mutex
}

// slotFile is the on-disk TOML document
type slotFile struct {
	Slots map[string]slotRecord `toml:"slots"`
}

type slotRecord struct {
	Name string `toml:"name"`
	Code string `toml:"code"`
}

// NewFileSlotStore opens (or creates) a TOML slot file
func NewFileSlotStore(path string) (*FileSlotStore, error) {
	fs := &FileSlotStore{
		path:  path,
		slots: make(map[int]Slot),
	}

	if err := fs.load(); err != nil {
		return nil, err
	}
	return fs, nil
}

// load reads the slot file; a missing file is an empty store
func (fs *FileSlotStore) load() error {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read slot file %s: %w", fs.path, err)
	}

	var doc slotFile
	if err := toml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse slot file %s: %w", fs.path, err)
	}

	for key, rec := range doc.Slots {
		id, err := strconv.Atoi(key)
		if err != nil {
			return fmt.Errorf("slot file %s: bad slot id %q", fs.path, key)
		}
		code, err := base64.StdEncoding.DecodeString(rec.Code)
		if err != nil {
			return fmt.Errorf("slot file %s: slot %d: %w", fs.path, id, err)
		}
		fs.slots[id] = Slot{Name: rec.Name, Code: code}
	}
	return nil
}

// save writes the whole store back to disk
func (fs *FileSlotStore) save() error {
	doc := slotFile{Slots: make(map[string]slotRecord, len(fs.slots))}
	for id, slot := range fs.slots {
		doc.Slots[strconv.Itoa(id)] = slotRecord{
			Name: slot.Name,
			Code: base64.StdEncoding.EncodeToString(slot.Code),
		}
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
		return fmt.Errorf("encode slot file: %w", err)
	}
	if err := os.WriteFile(fs.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write slot file %s: %w", fs.path, err)
	}
	return nil
}

// GetSlot returns the slot contents, if populated
func (fs *FileSlotStore) GetSlot(id int) (Slot, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	slot, exists := fs.slots[id]
	return slot, exists
}

// PutSlot stores a code in a slot and persists the store
func (fs *FileSlotStore) PutSlot(id int, slot Slot) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	code := make([]byte, len(slot.Code))
	copy(code, slot.Code)
	fs.slots[id] = Slot{Name: slot.Name, Code: code}
	return fs.save()
}

// SlotIDs returns the ids of all populated slots, sorted
func (fs *FileSlotStore) SlotIDs() []int {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	ids := make([]int, 0, len(fs.slots))
	for id := range fs.slots {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

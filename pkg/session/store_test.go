package session

import (
	"bytes"
	"testing"
)

func TestStore_CreateAndGet(t *testing.T) {
	st := NewStore()

	s, err := st.Create(7, DirectionReceive, 95, 56)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if s.Sequence != 7 || s.Direction != DirectionReceive {
		t.Errorf("Unexpected session identity: seq=%d dir=%v", s.Sequence, s.Direction)
	}
	if len(s.Buffer) != 95 || s.TotalLength != 95 {
		t.Errorf("Expected 95-byte buffer, got len=%d total=%d", len(s.Buffer), s.TotalLength)
	}
	if s.Cursor != 0 || s.State != StateInit {
		t.Errorf("Expected fresh session, got cursor=%d state=%v", s.Cursor, s.State)
	}

	got, exists := st.Get(7)
	if !exists || got != s {
		t.Errorf("Get() did not return the created session")
	}
}

func TestStore_DuplicateSequence(t *testing.T) {
	st := NewStore()

	if _, err := st.Create(3, DirectionSend, 10, 50); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if _, err := st.Create(3, DirectionReceive, 20, 56); err != ErrDuplicateSession {
		t.Errorf("Expected ErrDuplicateSession, got %v", err)
	}
}

func TestStore_WriteChunk(t *testing.T) {
	st := NewStore()
	if _, err := st.Create(1, DirectionReceive, 10, 56); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	n, err := st.WriteChunk(1, 0, []byte{1, 2, 3, 4})
	if err != nil || n != 4 {
		t.Fatalf("WriteChunk() = (%d, %v), expected (4, nil)", n, err)
	}

	n, err = st.WriteChunk(1, 4, []byte{5, 6, 7, 8, 9, 10})
	if err != nil || n != 6 {
		t.Fatalf("WriteChunk() = (%d, %v), expected (6, nil)", n, err)
	}

	s, _ := st.Get(1)
	if !bytes.Equal(s.Buffer, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}) {
		t.Errorf("Buffer mismatch: % X", s.Buffer)
	}
}

func TestStore_WriteChunkOverflowTruncates(t *testing.T) {
	st := NewStore()
	if _, err := st.Create(1, DirectionReceive, 5, 56); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	// 4 bytes at offset 3: only 2 fit
	n, err := st.WriteChunk(1, 3, []byte{0xA, 0xB, 0xC, 0xD})
	if err != ErrOverflow {
		t.Errorf("Expected ErrOverflow, got %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 bytes copied, got %d", n)
	}

	s, _ := st.Get(1)
	if !bytes.Equal(s.Buffer[3:], []byte{0xA, 0xB}) {
		t.Errorf("Truncated write mismatch: % X", s.Buffer)
	}
}

func TestStore_WriteChunkBadOffset(t *testing.T) {
	st := NewStore()
	if _, err := st.Create(1, DirectionReceive, 5, 56); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	// Outside the buffer entirely: malformed, not a tolerated overflow
	if n, err := st.WriteChunk(1, -1, []byte{1}); err != ErrBadOffset || n != 0 {
		t.Errorf("WriteChunk(offset=-1) = (%d, %v), expected (0, ErrBadOffset)", n, err)
	}
	if n, err := st.WriteChunk(1, 6, []byte{1}); err != ErrBadOffset || n != 0 {
		t.Errorf("WriteChunk(offset=6) = (%d, %v), expected (0, ErrBadOffset)", n, err)
	}

	s, _ := st.Get(1)
	for _, b := range s.Buffer {
		if b != 0 {
			t.Fatalf("Malformed write touched the buffer: % X", s.Buffer)
		}
	}
}

func TestStore_WriteChunkUnknownSession(t *testing.T) {
	st := NewStore()
	if _, err := st.WriteChunk(99, 0, []byte{1}); err != ErrUnknownSession {
		t.Errorf("Expected ErrUnknownSession, got %v", err)
	}
}

func TestStore_Remove(t *testing.T) {
	st := NewStore()
	if _, err := st.Create(5, DirectionSend, 10, 50); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	st.Remove(5)
	if _, exists := st.Get(5); exists {
		t.Errorf("Session still present after Remove()")
	}
	if st.Len() != 0 {
		t.Errorf("Expected empty store, got %d sessions", st.Len())
	}

	// Removing again is a no-op
	st.Remove(5)
}

func TestStore_NextSequenceSkipsOpen(t *testing.T) {
	st := NewStore()

	if seq := st.NextSequence(); seq != 0 {
		t.Fatalf("Expected first sequence 0, got %d", seq)
	}
	if seq := st.NextSequence(); seq != 1 {
		t.Fatalf("Expected sequence 1, got %d", seq)
	}

	// Open sequence 2; the allocator must skip it
	if _, err := st.Create(2, DirectionSend, 1, 50); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if seq := st.NextSequence(); seq != 3 {
		t.Errorf("Expected allocator to skip open sequence 2, got %d", seq)
	}
}

func TestStore_NextSequenceWraps(t *testing.T) {
	st := NewStore()
	st.nextSeq = 65534

	if seq := st.NextSequence(); seq != 65534 {
		t.Fatalf("Expected 65534, got %d", seq)
	}
	if seq := st.NextSequence(); seq != 65535 {
		t.Fatalf("Expected 65535, got %d", seq)
	}
	if seq := st.NextSequence(); seq != 0 {
		t.Errorf("Expected wrap to 0, got %d", seq)
	}
}

func TestStore_NextSequenceWrapSkipsOpen(t *testing.T) {
	st := NewStore()
	if _, err := st.Create(0, DirectionSend, 1, 50); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	st.nextSeq = 65535
	if seq := st.NextSequence(); seq != 65535 {
		t.Fatalf("Expected 65535, got %d", seq)
	}
	// 0 is still open, so the wrap lands on 1
	if seq := st.NextSequence(); seq != 1 {
		t.Errorf("Expected wrap to skip open sequence 0, got %d", seq)
	}
}

func TestStore_Bounded(t *testing.T) {
	st := NewStore()
	for i := 0; i < MaxOpenSessions; i++ {
		if _, err := st.Create(uint16(i), DirectionSend, 1, 50); err != nil {
			t.Fatalf("Create(%d) error: %v", i, err)
		}
	}

	if _, err := st.Create(1000, DirectionSend, 1, 50); err != ErrStoreFull {
		t.Errorf("Expected ErrStoreFull, got %v", err)
	}
}

package session

import "errors"

var (
	ErrDuplicateSession = errors.New("session sequence already open")
	ErrUnknownSession   = errors.New("unknown session sequence")
	ErrOverflow         = errors.New("chunk exceeds session buffer")
	ErrBadOffset        = errors.New("chunk offset outside session buffer")
	ErrStoreFull        = errors.New("too many open sessions")
)

// MaxOpenSessions bounds the store
// The protocol allows one transfer per device at a time; the headroom covers
// sessions that linger briefly between terminal event and removal.
const MaxOpenSessions = 32

// Store holds the in-flight transfer sessions keyed by sequence number
// It is not safe for concurrent use: all access is serialized through the
// transfer engine's event goroutine, which removes the need for locking.
type Store struct {
	sessions map[uint16]*Session
	nextSeq  uint16
}

// NewStore creates an empty session store
func NewStore() *Store {
	return &Store{
		sessions: make(map[uint16]*Session),
	}
}

// Create opens a new session and pre-allocates its buffer
// Fails with ErrDuplicateSession if the sequence is already open.
func (st *Store) Create(seq uint16, dir Direction, totalLength, chunkLimit int) (*Session, error) {
	if _, exists := st.sessions[seq]; exists {
		return nil, ErrDuplicateSession
	}
	if len(st.sessions) >= MaxOpenSessions {
		return nil, ErrStoreFull
	}

	s := &Session{
		Sequence:    seq,
		Direction:   dir,
		Buffer:      make([]byte, totalLength),
		TotalLength: totalLength,
		ChunkLimit:  chunkLimit,
		State:       StateInit,
	}
	st.sessions[seq] = s
	return s, nil
}

// Get returns the open session for a sequence, if any
func (st *Store) Get(seq uint16) (*Session, bool) {
	s, exists := st.sessions[seq]
	return s, exists
}

// WriteChunk copies chunk data into a session buffer at the given offset
// Returns the number of bytes copied. When the chunk would run past the end
// of the buffer, the bytes that fit are copied and ErrOverflow is returned
// alongside the count; the protocol tolerates a slightly-oversized final
// chunk this way. An offset outside the buffer entirely is a malformed
// write, not a tolerated overflow, and fails with ErrBadOffset.
func (st *Store) WriteChunk(seq uint16, offset int, data []byte) (int, error) {
	s, exists := st.sessions[seq]
	if !exists {
		return 0, ErrUnknownSession
	}

	if offset < 0 || offset > len(s.Buffer) {
		return 0, ErrBadOffset
	}

	n := copy(s.Buffer[offset:], data)
	if n < len(data) {
		return n, ErrOverflow
	}
	return n, nil
}

// Remove releases a session
// Safe to call for sequences that are not open.
func (st *Store) Remove(seq uint16) {
	delete(st.sessions, seq)
}

// Len returns the number of open sessions
func (st *Store) Len() int {
	return len(st.sessions)
}

// Sequences returns the sequences of all open sessions
func (st *Store) Sequences() []uint16 {
	seqs := make([]uint16, 0, len(st.sessions))
	for seq := range st.sessions {
		seqs = append(seqs, seq)
	}
	return seqs
}

// NextSequence allocates the next sequence number
// Allocation is monotonic, wraps modulo 65536, and skips any value that is
// currently open. The MaxOpenSessions bound guarantees termination.
func (st *Store) NextSequence() uint16 {
	for {
		seq := st.nextSeq
		st.nextSeq++ // uint16 wraps naturally
		if _, open := st.sessions[seq]; !open {
			return seq
		}
	}
}

package session

// Direction identifies who supplies the payload in a transfer
type Direction int

const (
	DirectionSend    Direction = iota // hub -> device (blast a stored code)
	DirectionReceive                  // device -> hub (learn a new code)
)

// String returns string representation of Direction
func (d Direction) String() string {
	switch d {
	case DirectionSend:
		return "Send"
	case DirectionReceive:
		return "Receive"
	default:
		return "Unknown"
	}
}

// State is the transfer state of a session
type State int

const (
	StateInit State = iota
	StateAwaitAck
	StateTransferring
	StateFinalizing
	StateDone
	StateAborted
)

// String returns string representation of State
func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateAwaitAck:
		return "AwaitAck"
	case StateTransferring:
		return "Transferring"
	case StateFinalizing:
		return "Finalizing"
	case StateDone:
		return "Done"
	case StateAborted:
		return "Aborted"
	default:
		return "Unknown"
	}
}

// Session is one in-progress chunked transfer
// The buffer is owned exclusively by the session for its lifetime; only the
// store and the currently executing state transition may touch it.
type Session struct {
	Sequence    uint16    // Unique among open sessions, assigned mod 65536
	Direction   Direction // Send or Receive
	Buffer      []byte    // Pre-allocated to TotalLength
	Cursor      int       // Offset of the next expected/served byte
	TotalLength int       // Declared payload length, fixed at creation
	ChunkLimit  int       // Maximum chunk size for this session
	Discard     bool      // Drop the final payload instead of reporting it
	State       State     // Current transfer state
}

// Remaining returns the number of bytes still to transfer
func (s *Session) Remaining() int {
	return s.TotalLength - s.Cursor
}

// Complete returns true once the cursor has covered the declared length
func (s *Session) Complete() bool {
	return s.Cursor >= s.TotalLength
}

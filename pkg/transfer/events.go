package transfer

// Protocol direction command carried in the Open handshake
const (
	DirectionCmdSend  uint8 = 0x01 // hub -> device transfer
	DirectionCmdLearn uint8 = 0x02 // device -> hub transfer
)

// Event is one decoded inbound protocol message
type Event interface {
	// Sequence returns the transfer sequence the event belongs to
	Sequence() uint16
}

// Open starts a transfer
// Marker folds the wire's fixed must-be-zero fields; a nonzero value means
// the handshake is malformed.
type Open struct {
	Seq          uint16
	TotalLength  uint32
	Marker       uint32
	DirectionCmd uint8
}

// OpenAck confirms receipt of an Open, echoing its fields
type OpenAck struct {
	Seq         uint16
	TotalLength uint32
}

// ChunkRequest asks the payload holder for the next chunk
type ChunkRequest struct {
	Seq    uint16
	Offset uint32
	MaxLen uint8
}

// ChunkDeliver carries payload bytes
type ChunkDeliver struct {
	Seq      uint16
	Offset   uint32
	Data     []byte
	Checksum uint8
}

// Complete signals that all bytes were received
type Complete struct {
	Seq uint16
}

// CompleteAck finalizes a transfer
type CompleteAck struct {
	Seq uint16
}

func (e Open) Sequence() uint16         { return e.Seq }
func (e OpenAck) Sequence() uint16      { return e.Seq }
func (e ChunkRequest) Sequence() uint16 { return e.Seq }
func (e ChunkDeliver) Sequence() uint16 { return e.Seq }
func (e Complete) Sequence() uint16     { return e.Seq }
func (e CompleteAck) Sequence() uint16  { return e.Seq }

package wire

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"kodalissri/irblaster-go/pkg/transfer"
)

var (
	ErrFrameTooShort  = errors.New("frame too short")
	ErrUnknownCommand = errors.New("unknown command byte")
	ErrBadMarker      = errors.New("fixed marker byte is not zero")
	ErrTruncatedChunk = errors.New("chunk blob shorter than its declared length")
)

// Transfer command bytes
const (
	CmdOpen         uint8 = 0x00
	CmdOpenAck      uint8 = 0x01
	CmdChunkRequest uint8 = 0x02
	CmdChunkDeliver uint8 = 0x03
	CmdComplete     uint8 = 0x04
	CmdCompleteAck  uint8 = 0x05

	// CmdCaptureMode rides the same link but is a control command, not part
	// of the transfer exchange
	CmdCaptureMode uint8 = 0xE0
)

// Fixed frame sizes (ChunkDeliver is variable)
const (
	openFrameSize         = 12
	openAckFrameSize      = 13
	chunkRequestFrameSize = 8
	chunkDeliverMinSize   = 10 // header (9) + checksum, with an empty blob
	completeFrameSize     = 7
	completeAckFrameSize  = 4
)

// All multi-byte fields are little-endian.

// EncodeOpen builds an Open frame
// seq(2) total(4) marker(4, zero) dircmd(1)
func EncodeOpen(seq uint16, totalLength uint32, directionCmd uint8) []byte {
	frame := make([]byte, openFrameSize)
	frame[0] = CmdOpen
	binary.LittleEndian.PutUint16(frame[1:3], seq)
	binary.LittleEndian.PutUint32(frame[3:7], totalLength)
	// frame[7:11] is the fixed zero marker
	frame[11] = directionCmd
	return frame
}

// EncodeOpenAck builds an OpenAck frame: a leading zero byte plus an echo of
// the Open fields
func EncodeOpenAck(seq uint16, totalLength uint32, directionCmd uint8) []byte {
	frame := make([]byte, openAckFrameSize)
	frame[0] = CmdOpenAck
	// frame[1] is the fixed leading zero
	binary.LittleEndian.PutUint16(frame[2:4], seq)
	binary.LittleEndian.PutUint32(frame[4:8], totalLength)
	frame[12] = directionCmd
	return frame
}

// EncodeChunkRequest builds a ChunkRequest frame
func EncodeChunkRequest(seq uint16, offset uint32, maxLen uint8) []byte {
	frame := make([]byte, chunkRequestFrameSize)
	frame[0] = CmdChunkRequest
	binary.LittleEndian.PutUint16(frame[1:3], seq)
	binary.LittleEndian.PutUint32(frame[3:7], offset)
	frame[7] = maxLen
	return frame
}

// EncodeChunkDeliver builds a ChunkDeliver frame
// zero(1) seq(2) offset(4) blob-len(1) blob checksum(1)
func EncodeChunkDeliver(seq uint16, offset uint32, data []byte, checksum uint8) []byte {
	frame := make([]byte, chunkDeliverMinSize+len(data))
	frame[0] = CmdChunkDeliver
	// frame[1] is the fixed leading zero
	binary.LittleEndian.PutUint16(frame[2:4], seq)
	binary.LittleEndian.PutUint32(frame[4:8], offset)
	frame[8] = uint8(len(data))
	copy(frame[9:], data)
	frame[9+len(data)] = checksum
	return frame
}

// EncodeComplete builds a Complete frame: sequence plus trailing zero fields
func EncodeComplete(seq uint16) []byte {
	frame := make([]byte, completeFrameSize)
	frame[0] = CmdComplete
	binary.LittleEndian.PutUint16(frame[1:3], seq)
	return frame
}

// EncodeCompleteAck builds a CompleteAck frame: sequence plus a trailing zero
func EncodeCompleteAck(seq uint16) []byte {
	frame := make([]byte, completeAckFrameSize)
	frame[0] = CmdCompleteAck
	binary.LittleEndian.PutUint16(frame[1:3], seq)
	return frame
}

// captureFlag is the capture-mode control payload
// study 0 enters capture mode, study 1 leaves it
type captureFlag struct {
	Study int `json:"study"`
}

// EncodeCaptureMode builds the capture-mode control frame
func EncodeCaptureMode(enter bool) []byte {
	flag := captureFlag{Study: 1}
	if enter {
		flag.Study = 0
	}
	payload, _ := json.Marshal(flag)
	return append([]byte{CmdCaptureMode}, payload...)
}

// DecodeCaptureMode parses a capture-mode control frame
// Returns true when the frame enters capture mode.
func DecodeCaptureMode(frame []byte) (bool, error) {
	if len(frame) < 2 || frame[0] != CmdCaptureMode {
		return false, ErrFrameTooShort
	}
	var flag captureFlag
	if err := json.Unmarshal(frame[1:], &flag); err != nil {
		return false, fmt.Errorf("capture flag payload: %w", err)
	}
	return flag.Study == 0, nil
}

// Decode parses a transfer frame into its protocol event
// Capture-mode frames are not transfer events; callers route on the command
// byte before decoding.
func Decode(frame []byte) (transfer.Event, error) {
	if len(frame) < 1 {
		return nil, ErrFrameTooShort
	}

	switch frame[0] {
	case CmdOpen:
		return decodeOpen(frame)
	case CmdOpenAck:
		return decodeOpenAck(frame)
	case CmdChunkRequest:
		return decodeChunkRequest(frame)
	case CmdChunkDeliver:
		return decodeChunkDeliver(frame)
	case CmdComplete:
		return decodeComplete(frame)
	case CmdCompleteAck:
		return decodeCompleteAck(frame)
	default:
		return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownCommand, frame[0])
	}
}

func decodeOpen(frame []byte) (transfer.Event, error) {
	if len(frame) < openFrameSize {
		return nil, ErrFrameTooShort
	}
	// The marker bytes travel into the event; the state machine decides
	// whether a nonzero marker aborts the session.
	return transfer.Open{
		Seq:          binary.LittleEndian.Uint16(frame[1:3]),
		TotalLength:  binary.LittleEndian.Uint32(frame[3:7]),
		Marker:       binary.LittleEndian.Uint32(frame[7:11]),
		DirectionCmd: frame[11],
	}, nil
}

func decodeOpenAck(frame []byte) (transfer.Event, error) {
	if len(frame) < openAckFrameSize {
		return nil, ErrFrameTooShort
	}
	if frame[1] != 0 {
		return nil, ErrBadMarker
	}
	return transfer.OpenAck{
		Seq:         binary.LittleEndian.Uint16(frame[2:4]),
		TotalLength: binary.LittleEndian.Uint32(frame[4:8]),
	}, nil
}

func decodeChunkRequest(frame []byte) (transfer.Event, error) {
	if len(frame) < chunkRequestFrameSize {
		return nil, ErrFrameTooShort
	}
	return transfer.ChunkRequest{
		Seq:    binary.LittleEndian.Uint16(frame[1:3]),
		Offset: binary.LittleEndian.Uint32(frame[3:7]),
		MaxLen: frame[7],
	}, nil
}

func decodeChunkDeliver(frame []byte) (transfer.Event, error) {
	if len(frame) < chunkDeliverMinSize {
		return nil, ErrFrameTooShort
	}
	if frame[1] != 0 {
		return nil, ErrBadMarker
	}
	blobLen := int(frame[8])
	if len(frame) < chunkDeliverMinSize+blobLen {
		return nil, ErrTruncatedChunk
	}
	data := make([]byte, blobLen)
	copy(data, frame[9:9+blobLen])
	return transfer.ChunkDeliver{
		Seq:      binary.LittleEndian.Uint16(frame[2:4]),
		Offset:   binary.LittleEndian.Uint32(frame[4:8]),
		Data:     data,
		Checksum: frame[9+blobLen],
	}, nil
}

func decodeComplete(frame []byte) (transfer.Event, error) {
	if len(frame) < completeFrameSize {
		return nil, ErrFrameTooShort
	}
	for _, b := range frame[3:completeFrameSize] {
		if b != 0 {
			return nil, ErrBadMarker
		}
	}
	return transfer.Complete{
		Seq: binary.LittleEndian.Uint16(frame[1:3]),
	}, nil
}

func decodeCompleteAck(frame []byte) (transfer.Event, error) {
	if len(frame) < completeAckFrameSize {
		return nil, ErrFrameTooShort
	}
	if frame[3] != 0 {
		return nil, ErrBadMarker
	}
	return transfer.CompleteAck{
		Seq: binary.LittleEndian.Uint16(frame[1:3]),
	}, nil
}

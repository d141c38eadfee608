package channel

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var ErrFrameTooLarge = errors.New("frame exceeds maximum size")

// Stream transports carry command frames with a 2-byte little-endian length
// prefix. Datagram-style transports (loopback) deliver whole frames and do
// not need these helpers.

// readFrame reads one length-prefixed frame from a stream
func readFrame(r io.Reader) ([]byte, error) {
	var prefix [2]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}

	length := int(binary.LittleEndian.Uint16(prefix[:]))
	if length > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length)
	}

	frame := make([]byte, length)
	if _, err := io.ReadFull(r, frame); err != nil {
		return nil, err
	}
	return frame, nil
}

// writeFrame writes one length-prefixed frame to a stream
func writeFrame(w io.Writer, frame []byte) error {
	if len(frame) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(frame))
	}

	buf := make([]byte, 2+len(frame))
	binary.LittleEndian.PutUint16(buf[:2], uint16(len(frame)))
	copy(buf[2:], frame)

	_, err := w.Write(buf)
	return err
}

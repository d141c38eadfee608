package chunk

import "errors"

var (
	ErrInvalidLimit = errors.New("chunk limit must be at least 1")
	ErrChunkGap     = errors.New("chunk offsets do not cover payload contiguously")
)

// Chunk size limits, fixed by protocol convention rather than negotiation
const (
	MaxInboundChunk  = 56 // device -> hub (learn uploads)
	MaxOutboundChunk = 50 // hub -> device (code blasts)
)

// Chunk is one bounded slice of a transfer payload
type Chunk struct {
	Offset int    // Byte offset into the payload
	Data   []byte // Chunk data
}

// Split breaks a payload into chunks of at most limit bytes
// Offsets are strictly increasing from 0 and cover the payload exactly once
func Split(payload []byte, limit int) ([]Chunk, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}

	var chunks []Chunk
	for offset := 0; offset < len(payload); {
		size := limit
		if remaining := len(payload) - offset; remaining < size {
			size = remaining
		}

		chunks = append(chunks, Chunk{
			Offset: offset,
			Data:   payload[offset : offset+size],
		})
		offset += size
	}

	return chunks, nil
}

// Reassemble is the inverse of Split
// Chunks must be contiguous starting at offset 0
func Reassemble(chunks []Chunk) ([]byte, error) {
	var payload []byte
	for _, c := range chunks {
		if c.Offset != len(payload) {
			return nil, ErrChunkGap
		}
		payload = append(payload, c.Data...)
	}
	return payload, nil
}

// ChecksumBytes computes the sum of byte values modulo 256
// Used to validate chunks received as raw bytes
func ChecksumBytes(data []byte) uint8 {
	var sum uint8
	for _, b := range data {
		sum += b
	}
	return sum
}

// ChecksumText computes the sum of character code points modulo 256
// Used when the payload originates as a textual message prior to transport
// encoding. Same arithmetic as ChecksumBytes under a different input
// convention; the peripheral firmware distinguishes the two per direction,
// so they are kept as separate entry points.
func ChecksumText(text string) uint8 {
	var sum uint8
	// Byte-wise, not rune-wise: the firmware sums raw character bytes, and
	// a range over the string would decode 0x80-0xFF as U+FFFD.
	for i := 0; i < len(text); i++ {
		sum += text[i]
	}
	return sum
}

// StripLengthPrefix removes a redundant leading length byte from a chunk
// Some peripheral firmware prefixes chunks with a byte equal to len-1;
// the prefix is detected when the first byte equals len(chunk)-1 and that
// value does not exceed maxChunk. Chunks without the pattern are returned
// unchanged.
func StripLengthPrefix(data []byte, maxChunk int) []byte {
	if len(data) == 0 {
		return data
	}
	if int(data[0]) == len(data)-1 && int(data[0]) <= maxChunk {
		return data[1:]
	}
	return data
}

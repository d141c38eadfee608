package chunk

import (
	"bytes"
	"testing"
)

func TestSplit_ChunkBoundaries(t *testing.T) {
	tests := []struct {
		name        string
		payloadLen  int
		limit       int
		wantOffsets []int
		wantLens    []int
	}{
		{
			name:        "120 bytes at limit 50",
			payloadLen:  120,
			limit:       50,
			wantOffsets: []int{0, 50, 100},
			wantLens:    []int{50, 50, 20},
		},
		{
			name:        "95 bytes at limit 56",
			payloadLen:  95,
			limit:       56,
			wantOffsets: []int{0, 56},
			wantLens:    []int{56, 39},
		},
		{
			name:        "exact multiple",
			payloadLen:  100,
			limit:       50,
			wantOffsets: []int{0, 50},
			wantLens:    []int{50, 50},
		},
		{
			name:        "smaller than limit",
			payloadLen:  10,
			limit:       56,
			wantOffsets: []int{0},
			wantLens:    []int{10},
		},
		{
			name:        "limit of one",
			payloadLen:  3,
			limit:       1,
			wantOffsets: []int{0, 1, 2},
			wantLens:    []int{1, 1, 1},
		},
		{
			name:        "empty payload",
			payloadLen:  0,
			limit:       50,
			wantOffsets: nil,
			wantLens:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := make([]byte, tt.payloadLen)
			for i := range payload {
				payload[i] = byte(i % 251)
			}

			chunks, err := Split(payload, tt.limit)
			if err != nil {
				t.Fatalf("Split() error: %v", err)
			}

			if len(chunks) != len(tt.wantOffsets) {
				t.Fatalf("Expected %d chunks, got %d", len(tt.wantOffsets), len(chunks))
			}

			for i, c := range chunks {
				if c.Offset != tt.wantOffsets[i] {
					t.Errorf("Chunk %d: expected offset %d, got %d", i, tt.wantOffsets[i], c.Offset)
				}
				if len(c.Data) != tt.wantLens[i] {
					t.Errorf("Chunk %d: expected length %d, got %d", i, tt.wantLens[i], len(c.Data))
				}
			}
		})
	}
}

func TestSplit_InvalidLimit(t *testing.T) {
	if _, err := Split([]byte{1, 2, 3}, 0); err != ErrInvalidLimit {
		t.Errorf("Expected ErrInvalidLimit, got %v", err)
	}
}

func TestSplitReassemble_RoundTrip(t *testing.T) {
	for _, size := range []int{0, 1, 49, 50, 51, 95, 120, 333, 1024} {
		for _, limit := range []int{1, 7, 50, 56, 255} {
			payload := make([]byte, size)
			for i := range payload {
				payload[i] = byte(i * 31)
			}

			chunks, err := Split(payload, limit)
			if err != nil {
				t.Fatalf("Split(size=%d, limit=%d) error: %v", size, limit, err)
			}

			got, err := Reassemble(chunks)
			if err != nil {
				t.Fatalf("Reassemble(size=%d, limit=%d) error: %v", size, limit, err)
			}

			if !bytes.Equal(got, payload) {
				t.Errorf("Round trip mismatch at size=%d, limit=%d", size, limit)
			}
		}
	}
}

func TestReassemble_Gap(t *testing.T) {
	chunks := []Chunk{
		{Offset: 0, Data: []byte{1, 2, 3}},
		{Offset: 5, Data: []byte{4, 5}},
	}
	if _, err := Reassemble(chunks); err != ErrChunkGap {
		t.Errorf("Expected ErrChunkGap, got %v", err)
	}
}

func TestChecksumBytes(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected uint8
	}{
		{name: "empty", data: []byte{}, expected: 0},
		{name: "single byte", data: []byte{0x42}, expected: 0x42},
		{name: "wraps modulo 256", data: []byte{0xFF, 0x02}, expected: 0x01},
		{name: "all 0xFF", data: bytes.Repeat([]byte{0xFF}, 4), expected: 0xFC},
		{name: "ascii text", data: []byte("abc"), expected: 0x26}, // 97+98+99 = 294 % 256
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ChecksumBytes(tt.data); got != tt.expected {
				t.Errorf("ChecksumBytes() = 0x%02X, expected 0x%02X", got, tt.expected)
			}
		})
	}
}

func TestChecksumText_MatchesBytesForSingleByteChars(t *testing.T) {
	samples := []string{
		"",
		"a",
		`{"key_num":1,"delay":300}`,
		"\x00\x01\x7F",
		"\x80\xFF\x41", // high bytes are not valid UTF-8 but must still sum per byte
		"\xE9",
	}

	for _, s := range samples {
		if ChecksumText(s) != ChecksumBytes([]byte(s)) {
			t.Errorf("Checksum conventions diverge for %q", s)
		}
	}

	// The full single-byte range, the way raw chunk bytes reach the text
	// convention via string conversion
	all := make([]byte, 256)
	for i := range all {
		all[i] = byte(i)
	}
	if got, want := ChecksumText(string(all)), ChecksumBytes(all); got != want {
		t.Errorf("ChecksumText over 0x00-0xFF = 0x%02X, expected 0x%02X", got, want)
	}
}

func TestStripLengthPrefix(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		maxChunk int
		want     []byte
	}{
		{
			name:     "prefix stripped",
			data:     []byte{3, 0xAA, 0xBB, 0xCC},
			maxChunk: 56,
			want:     []byte{0xAA, 0xBB, 0xCC},
		},
		{
			name:     "first byte not len-1",
			data:     []byte{5, 0xAA, 0xBB, 0xCC},
			maxChunk: 56,
			want:     []byte{5, 0xAA, 0xBB, 0xCC},
		},
		{
			name:     "prefix above max chunk size",
			data:     append([]byte{60}, make([]byte, 60)...),
			maxChunk: 56,
			want:     append([]byte{60}, make([]byte, 60)...),
		},
		{
			name:     "prefix exactly at max chunk size",
			data:     append([]byte{56}, make([]byte, 56)...),
			maxChunk: 56,
			want:     make([]byte, 56),
		},
		{
			name:     "empty chunk",
			data:     []byte{},
			maxChunk: 56,
			want:     []byte{},
		},
		{
			name:     "single zero byte counts as empty chunk prefix",
			data:     []byte{0},
			maxChunk: 56,
			want:     []byte{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StripLengthPrefix(tt.data, tt.maxChunk)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("StripLengthPrefix() = % X, expected % X", got, tt.want)
			}
		})
	}
}

package channel

import "context"

// ConnectionStateListener receives notifications about connection state changes
type ConnectionStateListener interface {
	// OnConnectionEstablished is called when a new connection is established
	OnConnectionEstablished()

	// OnConnectionLost is called when a connection is lost
	OnConnectionLost()
}

// PhysicalChannel represents a pluggable transport for command frames
// Users implement this interface to carry the exchange over TCP, QUIC, a
// Zigbee serial bridge, or any custom transport.
type PhysicalChannel interface {
	// Read reads the next complete command frame from the medium
	// Blocks until a frame is available or the context is cancelled.
	Read(ctx context.Context) ([]byte, error)

	// Write writes one command frame to the medium
	// Must be safe for concurrent use.
	Write(ctx context.Context, frame []byte) error

	// Close closes the channel and unblocks any pending Read/Write
	Close() error

	// Statistics returns transport-level statistics
	// Optional - can return zero values if not tracked.
	Statistics() TransportStats

	// SetConnectionStateListener sets a listener for connection state changes
	// Optional - channels without connection-state notions can ignore this.
	SetConnectionStateListener(listener ConnectionStateListener)
}

// TransportStats provides transport-level statistics
type TransportStats struct {
	BytesSent     uint64 // Total bytes sent
	BytesReceived uint64 // Total bytes received
	WriteErrors   uint64 // Number of write errors
	ReadErrors    uint64 // Number of read errors
	Connects      uint64 // Number of connections
	Disconnects   uint64 // Number of disconnections
}

// MaxFrameSize bounds a single command frame on the wire
// The largest legitimate frame is a ChunkDeliver with a 56-byte blob; the
// cap leaves room without letting a corrupt length prefix allocate much.
const MaxFrameSize = 512

package channel

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var ErrLoopbackClosed = errors.New("loopback channel closed")

// Loopback is an in-process PhysicalChannel
// NewLoopbackPair wires two of them back to back so a hub and a device
// emulator can run the full exchange inside one process. Frames are
// delivered whole and in order, like the real link.
type Loopback struct {
	in  chan []byte
	out chan []byte

	closed    chan struct{}
	closeOnce *sync.Once

	stats struct {
		bytesSent     atomic.Uint64
		bytesReceived atomic.Uint64
	}
}

// NewLoopbackPair creates two connected loopback channels
// A frame written to one side is read from the other.
func NewLoopbackPair() (*Loopback, *Loopback) {
	ab := make(chan []byte, 64)
	ba := make(chan []byte, 64)
	closed := make(chan struct{})
	once := &sync.Once{}

	a := &Loopback{in: ba, out: ab, closed: closed, closeOnce: once}
	b := &Loopback{in: ab, out: ba, closed: closed, closeOnce: once}
	return a, b
}

// Read implements PhysicalChannel.Read
func (l *Loopback) Read(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-l.in:
		l.stats.bytesReceived.Add(uint64(len(frame)))
		return frame, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.closed:
		return nil, ErrLoopbackClosed
	}
}

// Write implements PhysicalChannel.Write
func (l *Loopback) Write(ctx context.Context, frame []byte) error {
	buf := make([]byte, len(frame))
	copy(buf, frame)

	select {
	case l.out <- buf:
		l.stats.bytesSent.Add(uint64(len(frame)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.closed:
		return ErrLoopbackClosed
	}
}

// Close implements PhysicalChannel.Close
// Closing either side closes the pair.
func (l *Loopback) Close() error {
	l.closeOnce.Do(func() { close(l.closed) })
	return nil
}

// Statistics implements PhysicalChannel.Statistics
func (l *Loopback) Statistics() TransportStats {
	return TransportStats{
		BytesSent:     l.stats.bytesSent.Load(),
		BytesReceived: l.stats.bytesReceived.Load(),
	}
}

// SetConnectionStateListener implements PhysicalChannel.SetConnectionStateListener
// A loopback pair is always connected, so there is nothing to report.
func (l *Loopback) SetConnectionStateListener(listener ConnectionStateListener) {}

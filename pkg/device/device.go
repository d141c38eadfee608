package device

import (
	"context"
	"fmt"
	"sync"
	"time"

	"kodalissri/irblaster-go/pkg/channel"
	"kodalissri/irblaster-go/pkg/chunk"
	"kodalissri/irblaster-go/pkg/internal/logger"
	"kodalissri/irblaster-go/pkg/transfer"
	"kodalissri/irblaster-go/pkg/wire"
)

// BlastFunc receives the payload of a completed hub-to-device transfer
type BlastFunc func(payload []byte)

// Emulator speaks the peripheral's half of the transfer protocol
// It answers hub-initiated blasts, honors capture-mode toggles, and uploads
// queued captures as device-initiated transfers. Examples and integration
// tests use it as a stand-in for the IR hardware.
type Emulator struct {
	ch  channel.PhysicalChannel
	log logger.Logger

	mu       sync.Mutex
	capture  bool
	pending  []byte
	nextSeq  uint16
	inbound  *blastSession
	outbound *uploadSession
	onBlast  BlastFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// blastSession is one in-flight hub-to-device transfer
type blastSession struct {
	seq    uint16
	buffer []byte
	cursor int
}

// uploadSession is one in-flight device-to-hub capture upload
type uploadSession struct {
	seq     uint16
	payload []byte
}

// NewEmulator creates a peripheral emulator over a physical channel
func NewEmulator(ch channel.PhysicalChannel, log logger.Logger) *Emulator {
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Emulator{
		ch:      ch,
		log:     log,
		nextSeq: 1,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// OnBlast registers the callback invoked with each fully received payload
func (d *Emulator) OnBlast(fn BlastFunc) {
	d.mu.Lock()
	d.onBlast = fn
	d.mu.Unlock()
}

// Start starts the frame loop
func (d *Emulator) Start() {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.readLoop()
	}()
}

// Shutdown stops the frame loop
func (d *Emulator) Shutdown() {
	d.cancel()
	d.wg.Wait()
}

// Capturing reports whether capture mode is on
func (d *Emulator) Capturing() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.capture
}

// Capture queues a captured code for upload
// With capture mode on, the upload starts immediately; otherwise the payload
// waits until the hub enables capture mode.
func (d *Emulator) Capture(payload []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending = make([]byte, len(payload))
	copy(d.pending, payload)

	if d.capture {
		return d.beginUpload()
	}
	return nil
}

// beginUpload opens a device-initiated transfer for the pending capture
// Caller holds d.mu.
func (d *Emulator) beginUpload() error {
	if d.outbound != nil || len(d.pending) == 0 {
		return nil
	}

	seq := d.nextSeq
	d.nextSeq++
	d.outbound = &uploadSession{seq: seq, payload: d.pending}
	d.pending = nil

	d.log.Debug("Device: opening capture upload %d, %d bytes", seq, len(d.outbound.payload))
	return d.write(wire.EncodeOpen(seq, uint32(len(d.outbound.payload)), transfer.DirectionCmdLearn))
}

// readLoop pumps frames from the channel into the protocol handlers
func (d *Emulator) readLoop() {
	for {
		frame, err := d.ch.Read(d.ctx)
		if err != nil {
			if d.ctx.Err() != nil {
				return
			}
			d.log.Debug("Device: read error: %v", err)
			select {
			case <-d.ctx.Done():
				return
			case <-time.After(50 * time.Millisecond):
			}
			continue
		}
		if len(frame) == 0 {
			continue
		}

		if frame[0] == wire.CmdCaptureMode {
			enter, err := wire.DecodeCaptureMode(frame)
			if err != nil {
				d.log.Warn("Device: bad capture-mode frame: %v", err)
				continue
			}
			d.setCapture(enter)
			continue
		}

		ev, err := wire.Decode(frame)
		if err != nil {
			d.log.Warn("Device: dropping malformed frame: %v", err)
			continue
		}
		d.handle(ev)
	}
}

// setCapture applies a capture-mode toggle from the hub
func (d *Emulator) setCapture(enter bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.capture == enter {
		return
	}
	d.capture = enter
	d.log.Debug("Device: capture mode %v", enter)

	if enter && len(d.pending) > 0 {
		if err := d.beginUpload(); err != nil {
			d.log.Warn("Device: capture upload failed to open: %v", err)
		}
	}
	if !enter && d.outbound != nil {
		// The hub gave up on the learn; the upload has no receiver left
		d.log.Debug("Device: capture upload %d dropped on mode exit", d.outbound.seq)
		d.outbound = nil
	}
}

// handle routes one decoded event
func (d *Emulator) handle(ev transfer.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var err error
	switch ev := ev.(type) {
	case transfer.Open:
		err = d.handleOpen(ev)
	case transfer.OpenAck:
		// The upload is live; the hub pulls chunks from here on
		d.log.Debug("Device: upload %d acknowledged", ev.Seq)
	case transfer.ChunkRequest:
		err = d.handleChunkRequest(ev)
	case transfer.ChunkDeliver:
		err = d.handleChunkDeliver(ev)
	case transfer.Complete:
		err = d.handleComplete(ev)
	case transfer.CompleteAck:
		d.handleCompleteAck(ev)
	default:
		d.log.Warn("Device: unhandled event type %T", ev)
	}

	if err != nil {
		d.log.Warn("Device: event handling failed: %v", err)
	}
}

// handleOpen accepts a hub-initiated blast
func (d *Emulator) handleOpen(ev transfer.Open) error {
	if ev.DirectionCmd != transfer.DirectionCmdSend {
		return fmt.Errorf("unexpected open direction 0x%02X", ev.DirectionCmd)
	}
	if ev.TotalLength == 0 || ev.TotalLength > transfer.MaxPayloadSize {
		// The declared length sizes the buffer; an unchecked u32 from the
		// wire must not drive the allocation
		return fmt.Errorf("implausible blast length %d", ev.TotalLength)
	}
	if d.inbound != nil && d.inbound.seq == ev.Seq {
		// Duplicate open; the first one already set the session up
		return nil
	}

	d.inbound = &blastSession{
		seq:    ev.Seq,
		buffer: make([]byte, ev.TotalLength),
	}
	d.log.Debug("Device: blast %d opened, %d bytes", ev.Seq, ev.TotalLength)

	if err := d.write(wire.EncodeOpenAck(ev.Seq, ev.TotalLength, ev.DirectionCmd)); err != nil {
		return err
	}
	return d.write(wire.EncodeChunkRequest(ev.Seq, 0, chunk.MaxOutboundChunk))
}

// handleChunkRequest serves one chunk of the pending upload
func (d *Emulator) handleChunkRequest(ev transfer.ChunkRequest) error {
	if d.outbound == nil || d.outbound.seq != ev.Seq {
		d.log.Debug("Device: chunk request for unknown upload %d ignored", ev.Seq)
		return nil
	}

	payload := d.outbound.payload
	offset := int(ev.Offset)
	if offset >= len(payload) {
		return fmt.Errorf("chunk request offset %d beyond %d-byte upload", offset, len(payload))
	}

	max := int(ev.MaxLen)
	if max < 1 || max > chunk.MaxInboundChunk {
		max = chunk.MaxInboundChunk
	}
	end := offset + max
	if end > len(payload) {
		end = len(payload)
	}

	data := payload[offset:end]
	return d.write(wire.EncodeChunkDeliver(ev.Seq, ev.Offset, data, chunk.ChecksumBytes(data)))
}

// handleChunkDeliver consumes one chunk of an inbound blast
func (d *Emulator) handleChunkDeliver(ev transfer.ChunkDeliver) error {
	if d.inbound == nil || d.inbound.seq != ev.Seq {
		d.log.Debug("Device: chunk for unknown blast %d ignored", ev.Seq)
		return nil
	}

	s := d.inbound
	if int(ev.Offset) != s.cursor {
		return fmt.Errorf("blast %d chunk offset %d != cursor %d", ev.Seq, ev.Offset, s.cursor)
	}
	if sum := chunk.ChecksumText(string(ev.Data)); sum != ev.Checksum {
		d.log.Warn("Device: blast %d chunk checksum 0x%02X != declared 0x%02X, accepting",
			ev.Seq, sum, ev.Checksum)
	}

	n := copy(s.buffer[s.cursor:], ev.Data)
	s.cursor += n

	if s.cursor < len(s.buffer) {
		return d.write(wire.EncodeChunkRequest(ev.Seq, uint32(s.cursor), chunk.MaxOutboundChunk))
	}
	return d.write(wire.EncodeComplete(ev.Seq))
}

// handleComplete finalizes the pending upload
func (d *Emulator) handleComplete(ev transfer.Complete) error {
	if d.outbound == nil || d.outbound.seq != ev.Seq {
		d.log.Debug("Device: completion for unknown upload %d ignored", ev.Seq)
		return nil
	}

	d.outbound = nil
	d.log.Debug("Device: upload %d complete", ev.Seq)
	return d.write(wire.EncodeCompleteAck(ev.Seq))
}

// handleCompleteAck finalizes an inbound blast and fires the blast callback
func (d *Emulator) handleCompleteAck(ev transfer.CompleteAck) {
	if d.inbound == nil || d.inbound.seq != ev.Seq {
		d.log.Debug("Device: final ack for unknown blast %d ignored", ev.Seq)
		return
	}

	payload := d.inbound.buffer
	d.inbound = nil
	d.log.Debug("Device: blast %d complete, %d bytes", ev.Seq, len(payload))

	if d.onBlast != nil {
		// Release the lock around the callback; it may re-enter Capture
		fn := d.onBlast
		d.mu.Unlock()
		fn(payload)
		d.mu.Lock()
	}
}

// write sends one encoded frame
func (d *Emulator) write(frame []byte) error {
	return d.ch.Write(d.ctx, frame)
}

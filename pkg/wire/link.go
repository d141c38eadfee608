package wire

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"kodalissri/irblaster-go/pkg/channel"
	"kodalissri/irblaster-go/pkg/internal/logger"
	"kodalissri/irblaster-go/pkg/transfer"
)

// Handler receives decoded inbound protocol events
type Handler interface {
	Deliver(transfer.Event) error
}

// Link implements transfer.Link over a physical channel
// The read loop decodes frames and hands events to one handler, fixed at
// construction; there is no per-call handler lookup.
type Link struct {
	ch      channel.PhysicalChannel
	handler Handler
	log     logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewLink creates a link over a physical channel
// Bind the event handler before calling Start.
func NewLink(ch channel.PhysicalChannel, log logger.Logger) *Link {
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Link{
		ch:     ch,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Bind sets the handler that receives decoded inbound events
// The handler is resolved exactly once, before the read loop starts.
func (l *Link) Bind(handler Handler) {
	l.handler = handler
}

// Start starts the read loop
func (l *Link) Start() {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.readLoop()
	}()
}

// Shutdown stops the read loop
func (l *Link) Shutdown() {
	l.cancel()
	l.wg.Wait()
}

// readLoop pumps frames from the channel into the handler
func (l *Link) readLoop() {
	for {
		frame, err := l.ch.Read(l.ctx)
		if err != nil {
			if l.ctx.Err() != nil {
				return
			}
			l.log.Debug("Link: read error: %v", err)
			// The channel reconnects internally; avoid a tight spin while
			// it does
			select {
			case <-l.ctx.Done():
				return
			case <-time.After(50 * time.Millisecond):
			}
			continue
		}

		if len(frame) == 0 {
			continue
		}
		if frame[0] == CmdCaptureMode {
			// Control echo from the peripheral; nothing for the engine
			l.log.Debug("Link: capture-mode frame ignored on hub side")
			continue
		}

		ev, err := Decode(frame)
		if err != nil {
			l.log.Warn("Link: dropping malformed frame: %v", err)
			continue
		}

		if err := l.handler.Deliver(ev); err != nil {
			if errors.Is(err, transfer.ErrEngineStopped) {
				return
			}
			l.log.Warn("Link: event delivery failed: %v", err)
		}
	}
}

// write sends one encoded frame
func (l *Link) write(frame []byte) error {
	if err := l.ch.Write(l.ctx, frame); err != nil {
		return fmt.Errorf("link write: %w", err)
	}
	return nil
}

// SendOpen emits the opening handshake for a hub-initiated transfer
func (l *Link) SendOpen(seq uint16, totalLength uint32) error {
	return l.write(EncodeOpen(seq, totalLength, transfer.DirectionCmdSend))
}

// SendOpenAck acknowledges a device-initiated Open
func (l *Link) SendOpenAck(seq uint16, totalLength uint32) error {
	return l.write(EncodeOpenAck(seq, totalLength, transfer.DirectionCmdLearn))
}

// SendChunkRequest asks the device for the next chunk
func (l *Link) SendChunkRequest(seq uint16, offset uint32, maxLen uint8) error {
	return l.write(EncodeChunkRequest(seq, offset, maxLen))
}

// SendChunk delivers payload bytes to the device
func (l *Link) SendChunk(seq uint16, offset uint32, data []byte, checksum uint8) error {
	return l.write(EncodeChunkDeliver(seq, offset, data, checksum))
}

// SendComplete signals that all bytes were received
func (l *Link) SendComplete(seq uint16) error {
	return l.write(EncodeComplete(seq))
}

// SendCompleteAck finalizes a device-initiated transfer
func (l *Link) SendCompleteAck(seq uint16) error {
	return l.write(EncodeCompleteAck(seq))
}

// SetCaptureMode toggles the peripheral's IR capture mode
func (l *Link) SetCaptureMode(enabled bool) error {
	if l.ch == nil {
		return transfer.ErrCaptureModeUnavailable
	}
	if err := l.write(EncodeCaptureMode(enabled)); err != nil {
		return fmt.Errorf("%w: %v", transfer.ErrCaptureModeUnavailable, err)
	}
	return nil
}

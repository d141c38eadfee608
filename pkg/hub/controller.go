package hub

import (
	"context"
	"sync"

	"kodalissri/irblaster-go/pkg/channel"
	"kodalissri/irblaster-go/pkg/internal/logger"
	"kodalissri/irblaster-go/pkg/transfer"
	"kodalissri/irblaster-go/pkg/wire"
)

// Controller orchestrates transfers between the hub and one peripheral
// It owns the transfer engine and the link, ties learn sessions to capture
// mode, and files learned codes into a SlotStore.
type Controller struct {
	cfg   transfer.Config
	log   logger.Logger
	link  transfer.Link
	wlink *wire.Link
	eng   *transfer.Engine
	slots SlotStore

	learnMu sync.Mutex
	learn   chan transfer.Outcome
}

// New creates a controller over a physical channel
func New(ch channel.PhysicalChannel, cfg transfer.Config, slots SlotStore, log logger.Logger) *Controller {
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	c := newController(cfg, slots, log)
	c.wlink = wire.NewLink(ch, log)
	c.link = c.wlink
	c.eng = transfer.NewEngine(cfg, c.link, c.onOutcome, log)
	c.wlink.Bind(c.eng)

	if ch != nil {
		ch.SetConnectionStateListener(c)
	}
	return c
}

// NewWithLink creates a controller over an already-constructed link
func NewWithLink(link transfer.Link, cfg transfer.Config, slots SlotStore, log logger.Logger) *Controller {
	c := newController(cfg, slots, log)
	c.link = link
	c.eng = transfer.NewEngine(cfg, link, c.onOutcome, log)
	return c
}

func newController(cfg transfer.Config, slots SlotStore, log logger.Logger) *Controller {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if slots == nil {
		slots = NewMemorySlotStore()
	}
	return &Controller{
		cfg:   cfg,
		log:   log,
		slots: slots,
	}
}

// Start starts the engine and the link read loop
func (c *Controller) Start() {
	c.eng.Start()
	if c.wlink != nil {
		c.wlink.Start()
	}
}

// Shutdown stops the link and the engine
func (c *Controller) Shutdown() {
	if c.wlink != nil {
		c.wlink.Shutdown()
	}
	c.eng.Shutdown()
}

// Engine exposes the transfer engine, mainly for event injection in tests
func (c *Controller) Engine() *transfer.Engine {
	return c.eng
}

// Slots exposes the slot store
func (c *Controller) Slots() SlotStore {
	return c.slots
}

// SendCode wraps code bytes in the delivery envelope and blasts them
// Capture mode is forced off first so the peripheral does not treat the
// incoming blast as a half-open learn.
func (c *Controller) SendCode(ctx context.Context, code []byte, opts SendOptions) error {
	payload, err := EncodeEnvelope(code, opts)
	if err != nil {
		return err
	}

	if err := c.link.SetCaptureMode(false); err != nil {
		return err
	}

	seq, done, err := c.eng.StartSend(payload)
	if err != nil {
		return err
	}

	select {
	case o := <-done:
		return o.Err
	case <-ctx.Done():
		if err := c.eng.Abort(seq, transfer.ErrTransferAborted); err != nil {
			c.log.Warn("Hub: abort of cancelled send %d failed: %v", seq, err)
		}
		return ctx.Err()
	}
}

// Learn puts the peripheral into capture mode and waits for one code upload
// Only one learn can be pending at a time; a second caller gets
// ErrSessionBusy. Capture mode is released on every exit path.
func (c *Controller) Learn(ctx context.Context) ([]byte, error) {
	c.learnMu.Lock()
	if c.learn != nil {
		c.learnMu.Unlock()
		return nil, ErrSessionBusy
	}
	ch := make(chan transfer.Outcome, 1)
	c.learn = ch
	c.learnMu.Unlock()

	defer func() {
		c.learnMu.Lock()
		c.learn = nil
		c.learnMu.Unlock()
	}()

	if err := c.link.SetCaptureMode(true); err != nil {
		return nil, err
	}
	defer func() {
		if err := c.link.SetCaptureMode(false); err != nil {
			c.log.Warn("Hub: leaving capture mode failed: %v", err)
		}
	}()

	select {
	case o := <-ch:
		if o.Err != nil {
			return nil, o.Err
		}
		if o.Discarded {
			return nil, ErrCaptureDiscarded
		}
		return o.Payload, nil
	case <-ctx.Done():
		if err := c.eng.AbortReceives(transfer.ErrTransferAborted); err != nil {
			c.log.Warn("Hub: abort of cancelled learn failed: %v", err)
		}
		return nil, ctx.Err()
	}
}

// LearnToSlot learns one code and files it under the given slot id
func (c *Controller) LearnToSlot(ctx context.Context, id int, name string) error {
	payload, err := c.Learn(ctx)
	if err != nil {
		return err
	}

	code, err := ExtractCode(payload)
	if err != nil {
		// Some firmware uploads the bare code bytes without the envelope
		c.log.Debug("Hub: learned payload is not an envelope, storing raw: %v", err)
		code = payload
	}
	return c.slots.PutSlot(id, Slot{Name: name, Code: code})
}

// SendSlot blasts the code stored under the given slot id
func (c *Controller) SendSlot(ctx context.Context, id int, opts SendOptions) error {
	slot, ok := c.slots.GetSlot(id)
	if !ok || len(slot.Code) == 0 {
		return ErrSlotEmpty
	}
	return c.SendCode(ctx, slot.Code, opts)
}

// onOutcome receives outcomes no send waiter claimed
func (c *Controller) onOutcome(o transfer.Outcome) {
	c.learnMu.Lock()
	ch := c.learn
	c.learnMu.Unlock()

	if ch == nil {
		c.log.Warn("Hub: unsolicited transfer outcome dropped (seq %d, err %v)", o.Seq, o.Err)
		return
	}
	select {
	case ch <- o:
	default:
	}
}

// OnConnectionEstablished implements channel.ConnectionStateListener
func (c *Controller) OnConnectionEstablished() {
	c.log.Info("Hub: peripheral connection established")
}

// OnConnectionLost implements channel.ConnectionStateListener
// Open sessions cannot survive a reconnect; the peripheral renegotiates
// from scratch.
func (c *Controller) OnConnectionLost() {
	c.log.Warn("Hub: peripheral connection lost, aborting open transfers")
	if err := c.eng.AbortAll(transfer.ErrTransferAborted); err != nil {
		c.log.Warn("Hub: abort on connection loss failed: %v", err)
	}
}

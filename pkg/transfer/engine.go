package transfer

import (
	"context"
	"errors"
	"sync"
	"time"

	"kodalissri/irblaster-go/pkg/chunk"
	"kodalissri/irblaster-go/pkg/internal/logger"
	"kodalissri/irblaster-go/pkg/session"
)

// Outcome reports a session that reached a terminal state
type Outcome struct {
	Seq       uint16
	Direction session.Direction
	Payload   []byte // Learned payload; nil for sends and discarded captures
	Discarded bool   // Payload was implausible and dropped
	Err       error  // Nil on success
}

// OutcomeFunc receives terminal outcomes that no waiter claimed
// (device-initiated learn results and orphan protocol errors)
type OutcomeFunc func(Outcome)

// Engine drives transfer sessions through their state machines
// All session state lives behind a single event goroutine: inbound link
// events and orchestrator commands are funneled through the same loop, so
// no session or store access needs locking.
type Engine struct {
	cfg   Config
	link  Link
	store *session.Store
	log   logger.Logger
	sink  OutcomeFunc

	events  chan Event
	cmds    chan func()
	timers  map[uint16]*time.Timer
	waiters map[uint16]chan Outcome

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine creates a transfer engine
func NewEngine(cfg Config, link Link, sink OutcomeFunc, log logger.Logger) *Engine {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if sink == nil {
		sink = func(Outcome) {}
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Engine{
		cfg:     cfg,
		link:    link,
		store:   session.NewStore(),
		log:     log,
		sink:    sink,
		events:  make(chan Event, 64),
		cmds:    make(chan func(), 16),
		timers:  make(map[uint16]*time.Timer),
		waiters: make(map[uint16]chan Outcome),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start starts the event loop
func (e *Engine) Start() {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run()
	}()
}

// Shutdown stops the event loop and aborts any open sessions
func (e *Engine) Shutdown() {
	e.cancel()
	e.wg.Wait()
}

// Deliver hands an inbound protocol event to the engine
func (e *Engine) Deliver(ev Event) error {
	select {
	case e.events <- ev:
		return nil
	case <-e.ctx.Done():
		return ErrEngineStopped
	}
}

// StartSend opens a hub-initiated transfer of payload
// Returns the allocated sequence and a channel that yields exactly one
// Outcome when the session reaches Done or Aborted.
func (e *Engine) StartSend(payload []byte) (uint16, <-chan Outcome, error) {
	if len(payload) > MaxPayloadSize {
		return 0, nil, ErrMalformedHandshake
	}

	done := make(chan Outcome, 1)
	seqCh := make(chan uint16, 1)
	if err := e.do(func() { seqCh <- e.openSend(payload, done) }); err != nil {
		return 0, nil, err
	}

	select {
	case seq := <-seqCh:
		return seq, done, nil
	case <-e.ctx.Done():
		return 0, nil, ErrEngineStopped
	}
}

// Abort aborts one session with the given cause, if it is still open
func (e *Engine) Abort(seq uint16, cause error) error {
	return e.do(func() {
		if s, ok := e.store.Get(seq); ok {
			e.abort(s, cause)
		}
	})
}

// openSend creates and opens a send session; runs on the event goroutine
func (e *Engine) openSend(payload []byte, done chan Outcome) uint16 {
	seq := e.store.NextSequence()
	s, err := e.store.Create(seq, session.DirectionSend, len(payload), chunk.MaxOutboundChunk)
	if err != nil {
		done <- Outcome{Seq: seq, Direction: session.DirectionSend, Err: err}
		return seq
	}
	copy(s.Buffer, payload)
	e.waiters[seq] = done

	e.log.Debug("Transfer %d: opening send, %d bytes", seq, len(payload))
	if err := e.link.SendOpen(seq, uint32(s.TotalLength)); err != nil {
		e.abort(s, err)
		return seq
	}
	s.State = session.StateAwaitAck
	e.armTimer(seq)
	return seq
}

// AbortReceives aborts any open receive session with the given cause
// Used when a learn is cancelled: the device may still believe the upload
// is in progress, but the hub side releases its buffer immediately.
func (e *Engine) AbortReceives(cause error) error {
	return e.do(func() {
		for _, seq := range e.store.Sequences() {
			s, ok := e.store.Get(seq)
			if ok && s.Direction == session.DirectionReceive {
				e.abort(s, cause)
			}
		}
	})
}

// AbortAll aborts every open session with the given cause
// Used when the link loses its connection: neither direction can make
// progress against a peer that will renegotiate from scratch.
func (e *Engine) AbortAll(cause error) error {
	return e.do(func() {
		for _, seq := range e.store.Sequences() {
			if s, ok := e.store.Get(seq); ok {
				e.abort(s, cause)
			}
		}
	})
}

// do runs fn on the event goroutine
func (e *Engine) do(fn func()) error {
	select {
	case e.cmds <- fn:
		return nil
	case <-e.ctx.Done():
		return ErrEngineStopped
	}
}

// run is the single-threaded event loop
func (e *Engine) run() {
	for {
		select {
		case <-e.ctx.Done():
			e.drain()
			return
		case ev := <-e.events:
			e.dispatch(ev)
		case fn := <-e.cmds:
			fn()
		}
	}
}

// drain aborts every open session on shutdown
func (e *Engine) drain() {
	for _, seq := range e.store.Sequences() {
		if s, ok := e.store.Get(seq); ok {
			e.abort(s, ErrEngineStopped)
		}
	}
}

// dispatch routes one inbound event to its handler
func (e *Engine) dispatch(ev Event) {
	switch ev := ev.(type) {
	case Open:
		e.handleOpen(ev)
	case OpenAck:
		e.handleOpenAck(ev)
	case ChunkRequest:
		e.handleChunkRequest(ev)
	case ChunkDeliver:
		e.handleChunkDeliver(ev)
	case Complete:
		e.handleComplete(ev)
	case CompleteAck:
		e.handleCompleteAck(ev)
	default:
		e.log.Warn("Transfer %d: unhandled event type %T", ev.Sequence(), ev)
	}
}

// handleOpen processes a device-initiated opening handshake
func (e *Engine) handleOpen(ev Open) {
	if _, open := e.store.Get(ev.Seq); open {
		// Duplicate delivery from the link; the first Open already set the
		// session up, so this one is an idempotent no-op.
		e.log.Debug("Transfer %d: duplicate Open ignored", ev.Seq)
		return
	}

	if ev.Marker != 0 || ev.DirectionCmd != DirectionCmdLearn {
		e.log.Warn("Transfer %d: malformed Open (marker=0x%X cmd=0x%02X)", ev.Seq, ev.Marker, ev.DirectionCmd)
		e.sink(Outcome{Seq: ev.Seq, Direction: session.DirectionReceive, Err: ErrMalformedHandshake})
		return
	}
	if ev.TotalLength == 0 || ev.TotalLength > MaxPayloadSize {
		e.log.Warn("Transfer %d: implausible declared length %d", ev.Seq, ev.TotalLength)
		e.sink(Outcome{Seq: ev.Seq, Direction: session.DirectionReceive, Err: ErrMalformedHandshake})
		return
	}

	s, err := e.store.Create(ev.Seq, session.DirectionReceive, int(ev.TotalLength), chunk.MaxInboundChunk)
	if err != nil {
		e.sink(Outcome{Seq: ev.Seq, Direction: session.DirectionReceive, Err: err})
		return
	}

	if s.TotalLength < e.cfg.MinLearnPayload || s.TotalLength > e.cfg.MaxLearnPayload {
		// Complete the exchange anyway, but drop the result: too short is
		// capture noise, too long is a stuck-button repeat.
		s.Discard = true
		e.log.Info("Transfer %d: %d-byte capture outside plausible range, will discard", ev.Seq, s.TotalLength)
	}

	e.log.Debug("Transfer %d: learn upload opened, %d bytes", ev.Seq, s.TotalLength)
	if err := e.link.SendOpenAck(ev.Seq, ev.TotalLength); err != nil {
		e.abort(s, err)
		return
	}
	if err := e.link.SendChunkRequest(ev.Seq, 0, uint8(s.ChunkLimit)); err != nil {
		e.abort(s, err)
		return
	}
	s.State = session.StateTransferring
	e.armTimer(ev.Seq)
}

// handleOpenAck confirms a hub-initiated transfer as live
func (e *Engine) handleOpenAck(ev OpenAck) {
	s, ok := e.store.Get(ev.Seq)
	if !ok {
		e.log.Debug("Transfer %d: OpenAck for unknown session ignored", ev.Seq)
		return
	}
	if s.Direction != session.DirectionSend || s.State != session.StateAwaitAck {
		e.log.Debug("Transfer %d: unexpected OpenAck in %v/%v ignored", ev.Seq, s.Direction, s.State)
		return
	}
	if ev.TotalLength != uint32(s.TotalLength) {
		e.log.Warn("Transfer %d: OpenAck echoes length %d, expected %d", ev.Seq, ev.TotalLength, s.TotalLength)
		return
	}

	s.State = session.StateTransferring
	e.armTimer(ev.Seq)
}

// handleChunkRequest serves a chunk of a send-direction buffer
func (e *Engine) handleChunkRequest(ev ChunkRequest) {
	s, ok := e.store.Get(ev.Seq)
	if !ok {
		e.log.Debug("Transfer %d: ChunkRequest for unknown session ignored", ev.Seq)
		return
	}
	if s.Direction != session.DirectionSend || s.State != session.StateTransferring {
		e.log.Debug("Transfer %d: unexpected ChunkRequest in %v/%v ignored", ev.Seq, s.Direction, s.State)
		return
	}

	offset := int(ev.Offset)
	if offset >= s.TotalLength {
		e.log.Warn("Transfer %d: ChunkRequest offset %d beyond %d-byte payload", ev.Seq, offset, s.TotalLength)
		return
	}

	max := int(ev.MaxLen)
	if max < 1 {
		e.log.Warn("Transfer %d: ChunkRequest with zero max length ignored", ev.Seq)
		return
	}
	if max > s.ChunkLimit {
		max = s.ChunkLimit
	}

	end := offset + max
	if end > s.TotalLength {
		end = s.TotalLength
	}

	data := s.Buffer[offset:end]
	// The send-direction buffer is the textual envelope, so the checksum
	// follows the text convention.
	sum := chunk.ChecksumText(string(data))

	if err := e.link.SendChunk(ev.Seq, ev.Offset, data, sum); err != nil {
		e.abort(s, err)
		return
	}
	if end > s.Cursor {
		s.Cursor = end
	}
	e.armTimer(ev.Seq)
}

// handleChunkDeliver consumes a chunk of a receive-direction transfer
func (e *Engine) handleChunkDeliver(ev ChunkDeliver) {
	s, ok := e.store.Get(ev.Seq)
	if !ok {
		e.log.Debug("Transfer %d: ChunkDeliver for unknown session ignored", ev.Seq)
		return
	}
	if s.Direction != session.DirectionReceive || s.State != session.StateTransferring {
		e.log.Debug("Transfer %d: unexpected ChunkDeliver in %v/%v ignored", ev.Seq, s.Direction, s.State)
		return
	}

	// The event carries activity from a live peer either way
	e.armTimer(ev.Seq)

	data := chunk.StripLengthPrefix(ev.Data, s.ChunkLimit)

	if sum := chunk.ChecksumBytes(data); sum != ev.Checksum {
		if e.cfg.StrictChecksum {
			e.abort(s, ErrChecksumMismatch)
			return
		}
		// Known firmware quirk: declared chunk checksums do not always
		// match a straight byte sum. Accept the chunk and keep going.
		e.log.Warn("Transfer %d: chunk checksum 0x%02X != declared 0x%02X at offset %d, accepting",
			ev.Seq, sum, ev.Checksum, ev.Offset)
	}

	if int(ev.Offset) != s.Cursor {
		// Reject without advancing; the next request re-asks at the cursor
		e.log.Warn("Transfer %d: %v (offset %d, cursor %d)", ev.Seq, ErrOffsetMismatch, ev.Offset, s.Cursor)
		return
	}

	n, err := e.store.WriteChunk(ev.Seq, s.Cursor, data)
	if err != nil {
		if !errors.Is(err, session.ErrOverflow) {
			e.abort(s, err)
			return
		}
		// Oversized final chunk: the bytes that fit were copied
		e.log.Debug("Transfer %d: final chunk truncated to %d bytes", ev.Seq, n)
	}
	s.Cursor += n

	if !s.Complete() {
		if err := e.link.SendChunkRequest(ev.Seq, uint32(s.Cursor), uint8(s.ChunkLimit)); err != nil {
			e.abort(s, err)
		}
		return
	}

	if err := e.link.SendComplete(ev.Seq); err != nil {
		e.abort(s, err)
		return
	}
	s.State = session.StateFinalizing
}

// handleComplete finalizes a send-direction transfer
func (e *Engine) handleComplete(ev Complete) {
	s, ok := e.store.Get(ev.Seq)
	if !ok {
		// Repeated Complete after finalization lands here and is dropped
		e.log.Debug("Transfer %d: Complete for unknown session ignored", ev.Seq)
		return
	}
	if s.Direction != session.DirectionSend || s.State != session.StateTransferring {
		e.log.Debug("Transfer %d: unexpected Complete in %v/%v ignored", ev.Seq, s.Direction, s.State)
		return
	}

	s.State = session.StateFinalizing
	if err := e.link.SendCompleteAck(ev.Seq); err != nil {
		e.abort(s, err)
		return
	}

	s.State = session.StateDone
	e.log.Debug("Transfer %d: send complete", ev.Seq)
	e.finish(s, Outcome{Seq: ev.Seq, Direction: session.DirectionSend})
}

// handleCompleteAck finalizes a receive-direction transfer
func (e *Engine) handleCompleteAck(ev CompleteAck) {
	s, ok := e.store.Get(ev.Seq)
	if !ok {
		// Repeated final acks for an already-finalized sequence land here
		e.log.Debug("Transfer %d: CompleteAck for unknown session ignored", ev.Seq)
		return
	}
	if s.Direction != session.DirectionReceive || s.State != session.StateFinalizing {
		e.log.Debug("Transfer %d: unexpected CompleteAck in %v/%v ignored", ev.Seq, s.Direction, s.State)
		return
	}

	s.State = session.StateDone
	o := Outcome{Seq: ev.Seq, Direction: session.DirectionReceive}
	if s.Discard {
		o.Discarded = true
		e.log.Info("Transfer %d: learn complete, payload discarded as implausible", ev.Seq)
	} else {
		o.Payload = make([]byte, s.TotalLength)
		copy(o.Payload, s.Buffer[:s.TotalLength])
		e.log.Debug("Transfer %d: learn complete, %d bytes", ev.Seq, s.TotalLength)
	}
	e.finish(s, o)
}

// finish removes a terminal session and reports its outcome exactly once
func (e *Engine) finish(s *session.Session, o Outcome) {
	e.stopTimer(s.Sequence)
	e.store.Remove(s.Sequence)
	e.deliver(s.Sequence, o)
}

// abort moves a session to the Aborted sink and releases it
func (e *Engine) abort(s *session.Session, cause error) {
	s.State = session.StateAborted
	e.stopTimer(s.Sequence)
	e.store.Remove(s.Sequence)
	e.log.Warn("Transfer %d: aborted: %v", s.Sequence, cause)
	e.deliver(s.Sequence, Outcome{Seq: s.Sequence, Direction: s.Direction, Err: cause})
}

// deliver routes an outcome to its waiter, or to the sink if none claimed it
func (e *Engine) deliver(seq uint16, o Outcome) {
	if w, ok := e.waiters[seq]; ok {
		delete(e.waiters, seq)
		w <- o
		return
	}
	e.sink(o)
}

// armTimer starts or restarts the per-session inactivity timer
func (e *Engine) armTimer(seq uint16) {
	e.stopTimer(seq)
	if e.cfg.InactivityTimeout <= 0 {
		return
	}
	e.timers[seq] = time.AfterFunc(e.cfg.InactivityTimeout, func() {
		// Hop back onto the event goroutine; a stopped engine drops this
		_ = e.do(func() { e.expire(seq) })
	})
}

// stopTimer stops a session's inactivity timer
func (e *Engine) stopTimer(seq uint16) {
	if t, ok := e.timers[seq]; ok {
		t.Stop()
		delete(e.timers, seq)
	}
}

// expire aborts a session whose inactivity timer fired
func (e *Engine) expire(seq uint16) {
	s, ok := e.store.Get(seq)
	if !ok {
		return
	}
	e.abort(s, ErrTransferTimeout)
}

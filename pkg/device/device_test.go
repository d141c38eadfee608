package device

import (
	"bytes"
	"context"
	"testing"
	"time"

	"kodalissri/irblaster-go/pkg/channel"
	"kodalissri/irblaster-go/pkg/hub"
	"kodalissri/irblaster-go/pkg/transfer"
)

// newLoopbackStack wires a hub controller and a device emulator back to back
func newLoopbackStack(t *testing.T) (*hub.Controller, *Emulator) {
	t.Helper()

	hubCh, devCh := channel.NewLoopbackPair()

	cfg := transfer.DefaultConfig()
	ctrl := hub.New(hubCh, cfg, hub.NewMemorySlotStore(), nil)
	ctrl.Start()
	t.Cleanup(ctrl.Shutdown)

	dev := NewEmulator(devCh, nil)
	dev.Start()
	t.Cleanup(dev.Shutdown)

	return ctrl, dev
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestEndToEnd_SendCode(t *testing.T) {
	ctrl, dev := newLoopbackStack(t)

	blasts := make(chan []byte, 1)
	dev.OnBlast(func(payload []byte) { blasts <- payload })

	// Long enough to need several chunks in each direction
	code := make([]byte, 200)
	for i := range code {
		code[i] = byte(i * 7)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := ctrl.SendCode(ctx, code, hub.SendOptions{Frequency: 36000}); err != nil {
		t.Fatalf("SendCode failed: %v", err)
	}

	var payload []byte
	select {
	case payload = <-blasts:
	case <-time.After(2 * time.Second):
		t.Fatal("device never received the blast")
	}

	env, err := hub.DecodeEnvelope(payload)
	if err != nil {
		t.Fatalf("device received a malformed envelope: %v", err)
	}
	if env.Key1.Freq != 36000 {
		t.Errorf("expected frequency 36000, got %d", env.Key1.Freq)
	}

	got, err := hub.ExtractCode(payload)
	if err != nil {
		t.Fatalf("ExtractCode failed: %v", err)
	}
	if !bytes.Equal(got, code) {
		t.Errorf("code mismatch: sent %d bytes, device decoded %d", len(code), len(got))
	}
}

func TestEndToEnd_Learn(t *testing.T) {
	ctrl, dev := newLoopbackStack(t)

	capture := make([]byte, 120)
	for i := range capture {
		capture[i] = byte(255 - i)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result := make(chan []byte, 1)
	errCh := make(chan error, 1)
	go func() {
		payload, err := ctrl.Learn(ctx)
		if err != nil {
			errCh <- err
			return
		}
		result <- payload
	}()

	waitFor(t, "capture mode", dev.Capturing)
	if err := dev.Capture(capture); err != nil {
		t.Fatalf("Capture failed: %v", err)
	}

	select {
	case payload := <-result:
		if !bytes.Equal(payload, capture) {
			t.Errorf("learned payload mismatch: %d bytes vs %d captured", len(payload), len(capture))
		}
	case err := <-errCh:
		t.Fatalf("Learn failed: %v", err)
	case <-time.After(3 * time.Second):
		t.Fatal("Learn did not return")
	}

	waitFor(t, "capture mode release", func() bool { return !dev.Capturing() })
}

func TestEndToEnd_QueuedCaptureBeforeLearn(t *testing.T) {
	ctrl, dev := newLoopbackStack(t)

	// The code was pressed before the hub asked; the upload waits for
	// capture mode
	capture := make([]byte, 64)
	if err := dev.Capture(capture); err != nil {
		t.Fatalf("Capture failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	payload, err := ctrl.Learn(ctx)
	if err != nil {
		t.Fatalf("Learn failed: %v", err)
	}
	if !bytes.Equal(payload, capture) {
		t.Errorf("learned payload mismatch: %d bytes vs %d captured", len(payload), len(capture))
	}
}

func TestEndToEnd_LearnToSlotAndSendBack(t *testing.T) {
	ctrl, dev := newLoopbackStack(t)

	blasts := make(chan []byte, 1)
	dev.OnBlast(func(payload []byte) { blasts <- payload })

	// The device uploads an envelope, the way real firmware reports a learn
	code := make([]byte, 90)
	for i := range code {
		code[i] = byte(i ^ 0x5A)
	}
	envelope, err := hub.EncodeEnvelope(code, hub.SendOptions{})
	if err != nil {
		t.Fatalf("EncodeEnvelope failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	learnErr := make(chan error, 1)
	go func() { learnErr <- ctrl.LearnToSlot(ctx, 2, "tv power") }()

	waitFor(t, "capture mode", dev.Capturing)
	if err := dev.Capture(envelope); err != nil {
		t.Fatalf("Capture failed: %v", err)
	}

	select {
	case err := <-learnErr:
		if err != nil {
			t.Fatalf("LearnToSlot failed: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("LearnToSlot did not return")
	}

	slot, ok := ctrl.Slots().GetSlot(2)
	if !ok {
		t.Fatal("slot 2 not populated after learn")
	}
	if slot.Name != "tv power" || !bytes.Equal(slot.Code, code) {
		t.Errorf("slot 2 mismatch: name %q, %d bytes", slot.Name, len(slot.Code))
	}

	// Blast the learned slot back at the device
	if err := ctrl.SendSlot(ctx, 2, hub.SendOptions{}); err != nil {
		t.Fatalf("SendSlot failed: %v", err)
	}

	select {
	case payload := <-blasts:
		got, err := hub.ExtractCode(payload)
		if err != nil {
			t.Fatalf("ExtractCode failed: %v", err)
		}
		if !bytes.Equal(got, code) {
			t.Errorf("round-tripped code mismatch: %d bytes vs %d", len(got), len(code))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("device never received the slot blast")
	}
}

func TestEmulator_RejectsImplausibleBlastLength(t *testing.T) {
	ch, _ := channel.NewLoopbackPair()
	dev := NewEmulator(ch, nil)

	// A declared length sizes the receive buffer; the u32 from the wire
	// must not be trusted
	dev.handle(transfer.Open{Seq: 7, TotalLength: 0xFFFFFFFF, DirectionCmd: transfer.DirectionCmdSend})
	if dev.inbound != nil {
		t.Fatal("oversized Open created a blast session")
	}

	dev.handle(transfer.Open{Seq: 7, TotalLength: 0, DirectionCmd: transfer.DirectionCmdSend})
	if dev.inbound != nil {
		t.Fatal("zero-length Open created a blast session")
	}

	dev.handle(transfer.Open{Seq: 8, TotalLength: 64, DirectionCmd: transfer.DirectionCmdSend})
	if dev.inbound == nil || len(dev.inbound.buffer) != 64 {
		t.Fatal("plausible Open was rejected")
	}
}

func TestEndToEnd_TinyCaptureDiscarded(t *testing.T) {
	ctrl, dev := newLoopbackStack(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		_, err := ctrl.Learn(ctx)
		errCh <- err
	}()

	waitFor(t, "capture mode", dev.Capturing)
	if err := dev.Capture(make([]byte, 10)); err != nil {
		t.Fatalf("Capture failed: %v", err)
	}

	select {
	case err := <-errCh:
		if err != hub.ErrCaptureDiscarded {
			t.Fatalf("expected ErrCaptureDiscarded, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Learn did not return")
	}
}

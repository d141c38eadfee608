package channel

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestLoopbackPair_DeliversFramesBothWays(t *testing.T) {
	a, b := NewLoopbackPair()
	defer a.Close()

	ctx := context.Background()

	if err := a.Write(ctx, []byte{0x01, 0x02}); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	frame, err := b.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if !bytes.Equal(frame, []byte{0x01, 0x02}) {
		t.Errorf("Frame mismatch: % X", frame)
	}

	if err := b.Write(ctx, []byte{0x03}); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	frame, err = a.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if !bytes.Equal(frame, []byte{0x03}) {
		t.Errorf("Frame mismatch: % X", frame)
	}
}

func TestLoopbackPair_PreservesOrder(t *testing.T) {
	a, b := NewLoopbackPair()
	defer a.Close()

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		if err := a.Write(ctx, []byte{byte(i)}); err != nil {
			t.Fatalf("Write(%d) error: %v", i, err)
		}
	}
	for i := 0; i < 10; i++ {
		frame, err := b.Read(ctx)
		if err != nil {
			t.Fatalf("Read(%d) error: %v", i, err)
		}
		if frame[0] != byte(i) {
			t.Fatalf("Out of order: expected %d, got %d", i, frame[0])
		}
	}
}

func TestLoopback_CloseUnblocksRead(t *testing.T) {
	a, b := NewLoopbackPair()

	done := make(chan error, 1)
	go func() {
		_, err := b.Read(context.Background())
		done <- err
	}()

	a.Close()

	select {
	case err := <-done:
		if err != ErrLoopbackClosed {
			t.Errorf("Expected ErrLoopbackClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Read did not unblock on close")
	}
}

func TestLoopback_WriteCopiesFrame(t *testing.T) {
	a, b := NewLoopbackPair()
	defer a.Close()

	ctx := context.Background()
	frame := []byte{0xAA, 0xBB}
	if err := a.Write(ctx, frame); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	frame[0] = 0x00 // caller reuses its buffer

	got, err := b.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if got[0] != 0xAA {
		t.Errorf("Frame shares caller's buffer")
	}
}

package hub

import "errors"

var (
	ErrSessionBusy      = errors.New("a learn session is already pending")
	ErrCaptureDiscarded = errors.New("captured payload was implausible and discarded")
	ErrEmptyCode        = errors.New("code payload is empty")
	ErrSlotEmpty        = errors.New("slot holds no code")
)

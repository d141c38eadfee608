package transfer

import "time"

// MaxPayloadSize is the hard cap on any declared transfer length
// An Open above this aborts: there is no room to truncate a buffer that was
// never allocated.
const MaxPayloadSize = 4096

// Config holds transfer engine configuration
type Config struct {
	// StrictChecksum aborts a receive session on a chunk checksum mismatch.
	// Default is lenient: deployed peripheral firmware is known to declare
	// chunk checksums that do not match a straight byte sum, so mismatches
	// are logged and the chunk is accepted.
	StrictChecksum bool

	// InactivityTimeout aborts a session that receives no events for this
	// long. The exchange itself has no keepalive; an abandoned learn (user
	// never presses the remote after the handshake) would otherwise hold
	// its buffer forever.
	InactivityTimeout time.Duration

	// MinLearnPayload and MaxLearnPayload bound plausible learned code
	// lengths. A receive session declaring a total outside the range still
	// completes the exchange, but its payload is discarded: below the
	// minimum is capture noise, above the maximum is a stuck-button repeat.
	MinLearnPayload int
	MaxLearnPayload int
}

// DefaultConfig returns default transfer configuration
func DefaultConfig() Config {
	return Config{
		StrictChecksum:    false,
		InactivityTimeout: 5 * time.Second,
		MinLearnPayload:   48,
		MaxLearnPayload:   1536,
	}
}

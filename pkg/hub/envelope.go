package hub

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Defaults for the delivery parameters carried alongside a blasted code
const (
	DefaultDelay     = 300   // Milliseconds between repeats
	DefaultFrequency = 38000 // IR carrier frequency in Hz
	DefaultEncoding  = 1     // Raw learned-timing encoding
)

// KeyDescriptor describes one IR code inside the envelope
type KeyDescriptor struct {
	Num  int    `json:"num"`
	Freq int    `json:"freq"`
	Type int    `json:"type"`
	Code string `json:"key_code"` // base64-encoded opaque code bytes
}

// Envelope is the structured message wrapping a code payload for the send
// direction. The device consumes it as JSON text; the transfer layer treats
// the encoded form as the opaque payload.
type Envelope struct {
	KeyNum int           `json:"key_num"`
	Delay  int           `json:"delay"`
	Key1   KeyDescriptor `json:"key1"`
}

// SendOptions carries the delivery parameters for a blast
// Zero values fall back to the protocol defaults.
type SendOptions struct {
	Delay     int // Milliseconds between repeats
	Frequency int // Carrier frequency in Hz
	Encoding  int // Encoding type tag
}

// EncodeEnvelope wraps opaque code bytes in the send-direction envelope
func EncodeEnvelope(code []byte, opts SendOptions) ([]byte, error) {
	if len(code) == 0 {
		return nil, ErrEmptyCode
	}

	if opts.Delay == 0 {
		opts.Delay = DefaultDelay
	}
	if opts.Frequency == 0 {
		opts.Frequency = DefaultFrequency
	}
	if opts.Encoding == 0 {
		opts.Encoding = DefaultEncoding
	}

	env := Envelope{
		KeyNum: 1,
		Delay:  opts.Delay,
		Key1: KeyDescriptor{
			Num:  1,
			Freq: opts.Frequency,
			Type: opts.Encoding,
			Code: base64.StdEncoding.EncodeToString(code),
		},
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return payload, nil
}

// DecodeEnvelope parses an envelope from its JSON form
func DecodeEnvelope(payload []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

// ExtractCode pulls the opaque code bytes out of a learned payload
// Peripherals upload learn results in the same envelope shape they accept
// for blasts.
func ExtractCode(payload []byte) ([]byte, error) {
	env, err := DecodeEnvelope(payload)
	if err != nil {
		return nil, err
	}
	if env.Key1.Code == "" {
		return nil, fmt.Errorf("learned envelope carries no key code")
	}

	code, err := base64.StdEncoding.DecodeString(env.Key1.Code)
	if err != nil {
		return nil, fmt.Errorf("decode key code: %w", err)
	}
	return code, nil
}

package transfer

// Link is the outbound half of the wire protocol
// One fixed set of typed sends, resolved once at engine construction; the
// engine never re-resolves handlers per call.
type Link interface {
	// SendOpen emits the opening handshake for a hub-initiated transfer
	SendOpen(seq uint16, totalLength uint32) error

	// SendOpenAck acknowledges a device-initiated Open
	SendOpenAck(seq uint16, totalLength uint32) error

	// SendChunkRequest asks the device for the next chunk
	SendChunkRequest(seq uint16, offset uint32, maxLen uint8) error

	// SendChunk delivers payload bytes to the device
	SendChunk(seq uint16, offset uint32, data []byte, checksum uint8) error

	// SendComplete signals that all bytes were received
	SendComplete(seq uint16) error

	// SendCompleteAck finalizes a device-initiated transfer
	SendCompleteAck(seq uint16) error

	// SetCaptureMode toggles the peripheral's IR capture mode
	// Returns ErrCaptureModeUnavailable when the control channel is absent.
	SetCaptureMode(enabled bool) error
}

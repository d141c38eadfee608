package transfer

import "errors"

var (
	ErrMalformedHandshake     = errors.New("malformed transfer handshake")
	ErrOffsetMismatch         = errors.New("chunk offset does not match session cursor")
	ErrChecksumMismatch       = errors.New("chunk checksum mismatch")
	ErrTransferTimeout        = errors.New("transfer timed out waiting for peer")
	ErrTransferAborted        = errors.New("transfer aborted")
	ErrCaptureModeUnavailable = errors.New("capture mode control channel unavailable")
	ErrEngineStopped          = errors.New("transfer engine is stopped")
)

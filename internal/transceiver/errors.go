package transceiver

import "errors"

// Send-side errors. Per spec.md §7 these propagate synchronously to
// the caller of Send; receive-side drops are never surfaced this way.
var (
	ErrMissingKey       = errors.New("transceiver: no key for own sender id")
	ErrPayloadTooLarge  = errors.New("transceiver: payload exceeds maximum size")
	ErrCounterExhausted = errors.New("transceiver: outbound counter exhausted")
	ErrRadio            = errors.New("transceiver: radio error")
	ErrStopped          = errors.New("transceiver: stopped")
)

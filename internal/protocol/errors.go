package protocol

import "errors"

// Parse-time errors, per spec §7. These are wrapped with additional
// context via fmt.Errorf("%w: ...", ErrX) and should be tested for
// with errors.Is.
var (
	ErrShortFrame  = errors.New("protocol: frame shorter than minimum wire size")
	ErrBadVersion  = errors.New("protocol: unsupported version byte")
	ErrUnknownKind = errors.New("protocol: unrecognized message kind")
)

package packet

import (
	"errors"
	"fmt"
)

var ErrFraming = errors.New("packet framing error")

type FramingReason uint8

const (
	ReasonShortHeader FramingReason = iota
	ReasonTruncatedBody
	ReasonInvalidType
	ReasonBadTail
	ReasonBodyTooLarge
)

func (r FramingReason) String() string {
	switch r {
	case ReasonShortHeader:
		return "short header"
	case ReasonTruncatedBody:
		return "truncated body"
	case ReasonInvalidType:
		return "invalid type"
	case ReasonBadTail:
		return "bad tail"
	case ReasonBodyTooLarge:
		return "body too large"
	default:
		return "unknown"
	}
}

// FramingError reports a malformed or truncated packet. It matches ErrFraming
// with errors.Is.
type FramingError struct {
	Reason FramingReason
	desc   string
}

func newFramingError(reason FramingReason, format string, args ...any) *FramingError {
	return &FramingError{Reason: reason, desc: fmt.Sprintf(format, args...)}
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("framing error - reason: %s\tdesc: %s", e.Reason, e.desc)
}

func (e *FramingError) Unwrap() error {
	return ErrFraming
}

func IsFramingError(err error) bool {
	return errors.Is(err, ErrFraming)
}

package token

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a token could not be verified.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindExpired
	KindMalformed
	KindUnsupportedFormat
	KindInvalidArgument
)

var kindNames = map[ErrorKind]string{
	KindUnknown:           "unknown",
	KindExpired:           "expired",
	KindMalformed:         "malformed",
	KindUnsupportedFormat: "unsupported format",
	KindInvalidArgument:   "invalid argument",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is returned by every codec operation that fails.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "token: " + e.Kind.String()
	}
	return fmt.Sprintf("token: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, err error) error {
	return &Error{Kind: kind, Err: err}
}

// KindOf extracts the ErrorKind from err. Errors that did not come from the codec
// are KindUnknown.
func KindOf(err error) ErrorKind {
	var tokErr *Error
	if errors.As(err, &tokErr) {
		return tokErr.Kind
	}
	return KindUnknown
}

package stl

import (
	"errors"
	"fmt"
)

// Decode failure kinds.
var (
	ErrEncoding  = errors.New("invalid mesh encoding")
	ErrTruncated = errors.New("truncated mesh data")
	ErrEmptyMesh = errors.New("mesh contains no triangles")
)

// DecodeError describes why a payload could not be decoded.
// Kind is one of ErrEncoding, ErrTruncated or ErrEmptyMesh.
type DecodeError struct {
	Kind   error
	Detail string
}

func (e *DecodeError) Error() string {
	if e.Detail == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// Unwrap returns the failure kind so errors.Is matches the sentinels.
func (e *DecodeError) Unwrap() error {
	return e.Kind
}

func decodeErr(kind error, format string, args ...any) error {
	return &DecodeError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

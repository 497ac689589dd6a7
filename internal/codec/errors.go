package codec

import (
	"errors"
	"fmt"
)

var (
	ErrBufferTooShort = errors.New("buffer too short to contain a record header")
	ErrTruncatedField = errors.New("truncated field")
	ErrInvalidAction  = errors.New("invalid action")
	ErrFieldTooLarge  = errors.New("field exceeds maximum encodable length")
	ErrTrailingBytes  = errors.New("trailing bytes after record")
)

// FieldError reports which field of a record failed to encode or decode.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("codec: field %s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

func truncated(field string) error {
	return &FieldError{Field: field, Err: ErrTruncatedField}
}

// IsDecodeError reports whether err came from decoding malformed input, as
// opposed to a transport failure.
func IsDecodeError(err error) bool {
	return errors.Is(err, ErrBufferTooShort) ||
		errors.Is(err, ErrTruncatedField) ||
		errors.Is(err, ErrInvalidAction) ||
		errors.Is(err, ErrTrailingBytes)
}

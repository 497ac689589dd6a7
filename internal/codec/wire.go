package codec

import (
	"encoding/binary"
	"fmt"
	"math"
)

// LengthPrefixSize is the width of every variable-length field header.
const LengthPrefixSize = 4

// MaxFieldLen is the largest blob a single field can carry.
const MaxFieldLen = math.MaxUint32

func appendBytes(b []byte, field string, v []byte) ([]byte, error) {
	if uint64(len(v)) > MaxFieldLen {
		return b, &FieldError{Field: field, Err: ErrFieldTooLarge}
	}
	b = binary.LittleEndian.AppendUint32(b, uint32(len(v)))
	return append(b, v...), nil
}

func appendString(b []byte, field string, v string) ([]byte, error) {
	if uint64(len(v)) > MaxFieldLen {
		return b, &FieldError{Field: field, Err: ErrFieldTooLarge}
	}
	b = binary.LittleEndian.AppendUint32(b, uint32(len(v)))
	return append(b, v...), nil
}

// decoder walks a buffer front to back. Every accessor checks the remaining
// length before slicing so malformed input surfaces as an error.
type decoder struct {
	buf []byte
	off int
}

func (d *decoder) remaining() int {
	return len(d.buf) - d.off
}

func (d *decoder) blob(field string) ([]byte, error) {
	if d.remaining() < LengthPrefixSize {
		return nil, truncated(field)
	}
	n := binary.LittleEndian.Uint32(d.buf[d.off:])
	d.off += LengthPrefixSize
	if uint64(n) > uint64(d.remaining()) {
		return nil, truncated(field)
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]byte, n)
	copy(out, d.buf[d.off:d.off+int(n)])
	d.off += int(n)
	return out, nil
}

func (d *decoder) str(field string) (string, error) {
	if d.remaining() < LengthPrefixSize {
		return "", truncated(field)
	}
	n := binary.LittleEndian.Uint32(d.buf[d.off:])
	d.off += LengthPrefixSize
	if uint64(n) > uint64(d.remaining()) {
		return "", truncated(field)
	}
	s := string(d.buf[d.off : d.off+int(n)])
	d.off += int(n)
	return s, nil
}

func (d *decoder) action() (Action, error) {
	if d.remaining() < 1 {
		return ActionNoop, truncated("action")
	}
	a := Action(d.buf[d.off])
	if !a.Valid() {
		return ActionNoop, &FieldError{Field: "action", Err: fmt.Errorf("%w: %d", ErrInvalidAction, uint8(a))}
	}
	d.off++
	return a, nil
}

func (d *decoder) uint16(field string) (uint16, error) {
	if d.remaining() < 2 {
		return 0, truncated(field)
	}
	v := binary.LittleEndian.Uint16(d.buf[d.off:])
	d.off += 2
	return v, nil
}

package codec

import "fmt"

// ServerMinSize is the smallest possible encoded ServerItem.
const ServerMinSize = 2*LengthPrefixSize + 1 + 2

// ServerItem is a status record sent back from the table consumer.
type ServerItem struct {
	TableID string
	Action  Action
	Index   uint16
	Value   []byte
}

// EncodedLen returns the number of bytes AppendBinary will add.
func (s ServerItem) EncodedLen() int {
	return ServerMinSize + len(s.TableID) + len(s.Value)
}

// AppendBinary appends the wire form of s to b and returns the extended slice.
func (s ServerItem) AppendBinary(b []byte) ([]byte, error) {
	if !s.Action.Valid() {
		return b, &FieldError{Field: "action", Err: fmt.Errorf("%w: %d", ErrInvalidAction, uint8(s.Action))}
	}
	start := len(b)
	out, err := appendString(b, "table_id", s.TableID)
	if err != nil {
		return b[:start], err
	}
	out = append(out, byte(s.Action))
	out = append(out, byte(s.Index), byte(s.Index>>8))
	if out, err = appendBytes(out, "value", s.Value); err != nil {
		return b[:start], err
	}
	return out, nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (s ServerItem) MarshalBinary() ([]byte, error) {
	return s.AppendBinary(make([]byte, 0, s.EncodedLen()))
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (s *ServerItem) UnmarshalBinary(data []byte) error {
	item, n, err := DecodeServerItem(data)
	if err != nil {
		return err
	}
	if n != len(data) {
		return fmt.Errorf("%w: %d", ErrTrailingBytes, len(data)-n)
	}
	*s = item
	return nil
}

// DecodeServerItem parses one ServerItem from the front of data and reports
// how many bytes it consumed.
func DecodeServerItem(data []byte) (ServerItem, int, error) {
	if len(data) < ServerMinSize {
		return ServerItem{}, 0, fmt.Errorf("%w: need %d bytes, have %d", ErrBufferTooShort, ServerMinSize, len(data))
	}

	d := decoder{buf: data}
	var (
		item ServerItem
		err  error
	)
	if item.TableID, err = d.str("table_id"); err != nil {
		return ServerItem{}, 0, err
	}
	if item.Action, err = d.action(); err != nil {
		return ServerItem{}, 0, err
	}
	if item.Index, err = d.uint16("index"); err != nil {
		return ServerItem{}, 0, err
	}
	if item.Value, err = d.blob("value"); err != nil {
		return ServerItem{}, 0, err
	}
	return item, d.off, nil
}

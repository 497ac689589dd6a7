package codec

import "fmt"

// ClientMinSize is the smallest possible encoded ClientItem: four length
// prefixes, the action byte and the priority.
const ClientMinSize = 4*LengthPrefixSize + 1 + 2

// ClientItem is a mutation sent from a producer to the table consumer.
type ClientItem struct {
	TableID  string
	Action   Action
	Priority uint16
	Key      []byte
	Meta     []byte
	Payload  []byte
}

// EncodedLen returns the number of bytes AppendBinary will add.
func (c ClientItem) EncodedLen() int {
	return ClientMinSize + len(c.TableID) + len(c.Key) + len(c.Meta) + len(c.Payload)
}

// AppendBinary appends the wire form of c to b and returns the extended slice.
// On error b is returned unchanged in length.
func (c ClientItem) AppendBinary(b []byte) ([]byte, error) {
	if !c.Action.Valid() {
		return b, &FieldError{Field: "action", Err: fmt.Errorf("%w: %d", ErrInvalidAction, uint8(c.Action))}
	}
	start := len(b)
	out, err := appendString(b, "table_id", c.TableID)
	if err != nil {
		return b[:start], err
	}
	out = append(out, byte(c.Action))
	out = append(out, byte(c.Priority), byte(c.Priority>>8))
	if out, err = appendBytes(out, "key", c.Key); err != nil {
		return b[:start], err
	}
	if out, err = appendBytes(out, "meta", c.Meta); err != nil {
		return b[:start], err
	}
	if out, err = appendBytes(out, "payload", c.Payload); err != nil {
		return b[:start], err
	}
	return out, nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (c ClientItem) MarshalBinary() ([]byte, error) {
	return c.AppendBinary(make([]byte, 0, c.EncodedLen()))
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. The buffer must hold
// exactly one record.
func (c *ClientItem) UnmarshalBinary(data []byte) error {
	item, n, err := DecodeClientItem(data)
	if err != nil {
		return err
	}
	if n != len(data) {
		return fmt.Errorf("%w: %d", ErrTrailingBytes, len(data)-n)
	}
	*c = item
	return nil
}

// DecodeClientItem parses one ClientItem from the front of data and reports
// how many bytes it consumed.
func DecodeClientItem(data []byte) (ClientItem, int, error) {
	if len(data) < ClientMinSize {
		return ClientItem{}, 0, fmt.Errorf("%w: need %d bytes, have %d", ErrBufferTooShort, ClientMinSize, len(data))
	}

	d := decoder{buf: data}
	var (
		item ClientItem
		err  error
	)
	if item.TableID, err = d.str("table_id"); err != nil {
		return ClientItem{}, 0, err
	}
	if item.Action, err = d.action(); err != nil {
		return ClientItem{}, 0, err
	}
	if item.Priority, err = d.uint16("priority"); err != nil {
		return ClientItem{}, 0, err
	}
	if item.Key, err = d.blob("key"); err != nil {
		return ClientItem{}, 0, err
	}
	if item.Meta, err = d.blob("meta"); err != nil {
		return ClientItem{}, 0, err
	}
	if item.Payload, err = d.blob("payload"); err != nil {
		return ClientItem{}, 0, err
	}
	return item, d.off, nil
}

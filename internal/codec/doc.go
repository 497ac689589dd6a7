// Package codec provides the binary wire format for table mutation records.
//
// Two record shapes travel over the IPC channels:
//   - ClientItem: producer-to-consumer mutation (table, action, priority, key, meta, payload)
//   - ServerItem: consumer-to-producer status (table, action, index, value)
//
// Wire Format:
//   - Variable-length fields: 4-byte little-endian length, then the raw bytes
//   - Action: 1 byte (0 noop, 1 add, 2 delete, 3 query)
//   - Priority / Index: 2 bytes little-endian
//   - No padding or alignment between fields
//
// Field order:
//
//	ClientItem: table_id action priority key meta payload
//	ServerItem: table_id action index value
//
// Decoding never panics on malformed input. A failed decode returns the zero
// record together with ErrBufferTooShort, ErrTruncatedField or ErrInvalidAction.
//
// Example Usage:
//
//	buf, err := item.AppendBinary(buf[:0])
//	...
//	item, n, err := codec.DecodeClientItem(buf)
package codec

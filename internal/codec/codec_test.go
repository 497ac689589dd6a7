package codec

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clientFixtures() []struct {
	name string
	item ClientItem
} {
	return []struct {
		name string
		item ClientItem
	}{
		{name: "zero value", item: ClientItem{}},
		{name: "empty table id", item: ClientItem{Action: ActionAdd, Priority: 7, Key: []byte("k")}},
		{
			name: "all fields",
			item: ClientItem{
				TableID:  "users",
				Action:   ActionDelete,
				Priority: 0xBEEF,
				Key:      []byte("user:42"),
				Meta:     []byte{0x00, 0x01, 0xff},
				Payload:  bytes.Repeat([]byte("x"), 1024),
			},
		},
		{name: "query with payload only", item: ClientItem{TableID: "t", Action: ActionQuery, Payload: []byte{0}}},
	}
}

func serverFixtures() []struct {
	name string
	item ServerItem
} {
	return []struct {
		name string
		item ServerItem
	}{
		{name: "zero value", item: ServerItem{}},
		{name: "empty value", item: ServerItem{TableID: "orders", Action: ActionAdd, Index: 3}},
		{name: "all fields", item: ServerItem{TableID: "orders", Action: ActionQuery, Index: 0xFFFF, Value: []byte("hello")}},
	}
}

func TestClientItemRoundTrip(t *testing.T) {
	for _, tt := range clientFixtures() {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := tt.item.AppendBinary(nil)
			require.NoError(t, err)
			assert.Len(t, buf, tt.item.EncodedLen())

			got, n, err := DecodeClientItem(buf)
			require.NoError(t, err)
			assert.Equal(t, len(buf), n)
			assert.Equal(t, tt.item, got)
		})
	}
}

func TestServerItemRoundTrip(t *testing.T) {
	for _, tt := range serverFixtures() {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := tt.item.MarshalBinary()
			require.NoError(t, err)
			assert.Len(t, buf, tt.item.EncodedLen())

			var got ServerItem
			require.NoError(t, got.UnmarshalBinary(buf))
			assert.Equal(t, tt.item, got)
		})
	}
}

func TestWireLayout(t *testing.T) {
	item := ClientItem{TableID: "ab", Action: ActionAdd, Priority: 0x0102, Key: []byte{9}, Meta: nil, Payload: []byte{7, 8}}
	buf, err := item.AppendBinary(nil)
	require.NoError(t, err)

	want := []byte{
		2, 0, 0, 0, 'a', 'b',
		1,
		0x02, 0x01,
		1, 0, 0, 0, 9,
		0, 0, 0, 0,
		2, 0, 0, 0, 7, 8,
	}
	assert.Equal(t, want, buf)

	status := ServerItem{TableID: "z", Action: ActionQuery, Index: 5, Value: []byte{1}}
	buf, err = status.AppendBinary(nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 0, 0, 'z', 3, 5, 0, 1, 0, 0, 0, 1}, buf)
}

func TestAppendAccumulates(t *testing.T) {
	items := clientFixtures()

	var buf []byte
	var err error
	for _, tt := range items {
		buf, err = tt.item.AppendBinary(buf)
		require.NoError(t, err)
	}

	rest := buf
	for _, tt := range items {
		got, n, err := DecodeClientItem(rest)
		require.NoError(t, err)
		assert.Equal(t, tt.item, got)
		rest = rest[n:]
	}
	assert.Empty(t, rest)
}

func TestAppendPreservesPrefix(t *testing.T) {
	prefix := []byte("header")
	buf, err := ServerItem{TableID: "t", Value: []byte("v")}.AppendBinary(append([]byte(nil), prefix...))
	require.NoError(t, err)
	assert.Equal(t, prefix, buf[:len(prefix)])
}

func TestClientItemTruncation(t *testing.T) {
	for _, tt := range clientFixtures() {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := tt.item.MarshalBinary()
			require.NoError(t, err)

			for cut := 0; cut < len(buf); cut++ {
				got, n, err := DecodeClientItem(buf[:cut])
				require.Error(t, err, "cut at %d", cut)
				assert.Zero(t, n)
				assert.Equal(t, ClientItem{}, got)
				if cut < ClientMinSize {
					assert.ErrorIs(t, err, ErrBufferTooShort)
				} else {
					assert.ErrorIs(t, err, ErrTruncatedField)
				}
			}
		})
	}
}

func TestServerItemTruncation(t *testing.T) {
	for _, tt := range serverFixtures() {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := tt.item.MarshalBinary()
			require.NoError(t, err)

			for cut := 0; cut < len(buf); cut++ {
				got, _, err := DecodeServerItem(buf[:cut])
				require.Error(t, err, "cut at %d", cut)
				assert.Equal(t, ServerItem{}, got)
			}
		})
	}
}

func TestInvalidAction(t *testing.T) {
	item := ClientItem{TableID: "inventory", Action: ActionAdd, Key: []byte("k"), Payload: []byte("p")}
	buf, err := item.MarshalBinary()
	require.NoError(t, err)
	actionAt := LengthPrefixSize + len(item.TableID)

	for _, v := range []byte{4, 5, 0x7f, 0x80, 0xff} {
		corrupt := append([]byte(nil), buf...)
		corrupt[actionAt] = v

		got, _, err := DecodeClientItem(corrupt)
		assert.ErrorIs(t, err, ErrInvalidAction)
		assert.Equal(t, ClientItem{}, got)

		var fe *FieldError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, "action", fe.Field)
	}

	status, err := ServerItem{TableID: "", Action: ActionNoop}.MarshalBinary()
	require.NoError(t, err)
	status[LengthPrefixSize] = 9
	_, _, err = DecodeServerItem(status)
	assert.ErrorIs(t, err, ErrInvalidAction)
}

func TestOversizedLengthPrefix(t *testing.T) {
	buf, err := ClientItem{TableID: "t", Key: []byte("key")}.MarshalBinary()
	require.NoError(t, err)

	// key length claims far more than the buffer holds
	keyAt := LengthPrefixSize + 1 + 1 + 2
	binary.LittleEndian.PutUint32(buf[keyAt:], 0xFFFFFFFF)

	_, _, err = DecodeClientItem(buf)
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "key", fe.Field)
	assert.ErrorIs(t, err, ErrTruncatedField)
}

func TestUnmarshalRejectsTrailingBytes(t *testing.T) {
	buf, err := ClientItem{TableID: "t"}.MarshalBinary()
	require.NoError(t, err)

	var item ClientItem
	assert.ErrorIs(t, item.UnmarshalBinary(append(buf, 0)), ErrTrailingBytes)
}

func TestEncodeRejectsUndefinedAction(t *testing.T) {
	buf := []byte("keep")
	out, err := ClientItem{Action: Action(4)}.AppendBinary(buf)
	assert.ErrorIs(t, err, ErrInvalidAction)
	assert.Equal(t, []byte("keep"), out)
}

func TestDecodeDoesNotAliasInput(t *testing.T) {
	buf, err := ServerItem{TableID: "t", Value: []byte("abc")}.MarshalBinary()
	require.NoError(t, err)

	item, _, err := DecodeServerItem(buf)
	require.NoError(t, err)
	for i := range buf {
		buf[i] = 0
	}
	assert.Equal(t, []byte("abc"), item.Value)
	assert.Equal(t, "t", item.TableID)
}

func TestAction(t *testing.T) {
	tests := []struct {
		in   string
		want Action
	}{
		{"noop", ActionNoop},
		{"ADD", ActionAdd},
		{" delete ", ActionDelete},
		{"query", ActionQuery},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAction(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseAction("upsert")
	assert.ErrorIs(t, err, ErrInvalidAction)

	var zero Action
	assert.Equal(t, ActionNoop, zero)
	assert.Equal(t, "action(9)", Action(9).String())

	text, err := ActionDelete.MarshalText()
	require.NoError(t, err)
	var a Action
	require.NoError(t, a.UnmarshalText(text))
	assert.Equal(t, ActionDelete, a)
}

func FuzzDecodeClientItem(f *testing.F) {
	for _, tt := range clientFixtures() {
		buf, _ := tt.item.MarshalBinary()
		f.Add(buf)
	}
	f.Fuzz(func(t *testing.T, data []byte) {
		item, n, err := DecodeClientItem(data)
		if err != nil {
			return
		}
		again, err := item.MarshalBinary()
		if err != nil {
			t.Fatalf("re-encode: %v", err)
		}
		if !bytes.Equal(again, data[:n]) {
			t.Fatalf("re-encode mismatch")
		}
	})
}

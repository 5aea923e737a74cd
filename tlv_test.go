package sendproxy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_TLV_Format(t *testing.T) {
	tests := []struct {
		name string
		tlv  TLV
		want []byte
	}{
		{
			name: "with-value",
			tlv:  NewTLV(PP2_TYPE_AUTHORITY, []byte("example.com")),
			want: []byte("\x02\x00\x0Bexample.com"),
		}, {
			name: "unregistered-type",
			tlv:  NewTLV(PP2Type(0xEA), []byte("vcpe")),
			want: []byte("\xEA\x00\x04vcpe"),
		}, {
			name: "empty-value",
			tlv:  NewTLV(PP2Type(0xEA), nil),
			want: nil,
		}, {
			name: "no-op",
			tlv:  NewNoOpTLV(4),
			want: []byte("\x04\x00\x04\x00\x00\x00\x00"),
		}, {
			name: "no-op-padding-only",
			tlv:  TLV{Type: PP2_TYPE_NOOP, Length: 3},
			want: []byte("\x00\x00\x00"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.tlv.Format())
		})
	}
}

func Test_NewTLV(t *testing.T) {
	tlv := NewTLV(PP2_TYPE_UNIQUE_ID, []byte("abc123"))
	require.Equal(t, PP2_TYPE_UNIQUE_ID, tlv.Type)
	require.Equal(t, uint16(6), tlv.Length)
	require.Equal(t, []byte("abc123"), tlv.Value)
}

func Test_TLV_IsRegistered(t *testing.T) {
	require.True(t, NewTLV(PP2_TYPE_ALPN, []byte("h2")).IsRegistered())
	require.True(t, NewTLV(PP2_TYPE_NETNS, []byte("ns")).IsRegistered())
	require.False(t, NewTLV(PP2Type(0x06), []byte("x")).IsRegistered())
	require.False(t, NewTLV(PP2Type(0xEA), []byte("x")).IsRegistered())
}

func Test_TLVs_String(t *testing.T) {
	require.Equal(t, "", TLVs{}.String())

	s := TLVs{
		NewTLV(PP2_TYPE_CRC32C, []byte{0xBF, 0xFF, 0x0E, 0xAA}),
		NewTLV(PP2Type(0xEA), []byte("vcpe")),
		NewTLV(PP2Type(0xEB), []byte("tag")),
	}
	require.Equal(t, `[type:234,length:4,value:"vcpe"],[type:235,length:3,value:"tag"]`, s.String())
}

func Test_TLVs_typeSet(t *testing.T) {
	var empty TLVs
	set := empty.typeSet()
	require.Nil(t, set)
	_, ok := set[PP2_TYPE_ALPN]
	require.False(t, ok)

	s := TLVs{
		NewTLV(PP2Type(0xEA), []byte("a")),
		NewTLV(PP2Type(0xEB), []byte("b")),
		NewTLV(PP2Type(0xEA), []byte("dup")),
	}
	set = s.typeSet()
	require.Len(t, set, 2)
	require.Contains(t, set, PP2Type(0xEA))
	require.Contains(t, set, PP2Type(0xEB))
}

package sendproxy

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"strings"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// stubFactory is the inner end of a factory chain in tests.
type stubFactory struct {
	conn net.Conn
	err  error
}

func (s *stubFactory) NewConn(_ context.Context, _ *ProxyInfo, _ *Host) (net.Conn, error) {
	return s.conn, s.err
}

func (s *stubFactory) HashKey(key []byte, _ *ProxyInfo) []byte {
	return append(key, "inner"...)
}

func Test_NewFactory_errors(t *testing.T) {
	_, err := NewFactory(nil, Config{Version: Version2}, nil, nil)
	require.Error(t, err)

	_, err = NewFactory(&stubFactory{}, Config{}, nil, nil)
	require.ErrorIs(t, err, ErrUnknownVersion)
}

func Test_Factory_NewConn(t *testing.T) {
	fc := &fakeConn{}
	f, err := NewFactory(&stubFactory{conn: fc}, Config{Version: Version2}, nil, nil)
	require.NoError(t, err)

	conn, err := f.NewConn(context.Background(), testProxyInfo(), &Host{Address: "10.0.0.2:443"})
	require.NoError(t, err)

	c, ok := conn.(*Conn)
	require.True(t, ok)
	require.Equal(t, v2AddressOnlyHeader, c.RawHeader())
	require.False(t, c.HeaderSent())
}

func Test_Factory_NewConn_passesThroughInnerResults(t *testing.T) {
	innerErr := errors.New("dial failed")
	f, err := NewFactory(&stubFactory{err: innerErr}, Config{Version: Version2}, nil, nil)
	require.NoError(t, err)

	conn, err := f.NewConn(context.Background(), testProxyInfo(), nil)
	require.ErrorIs(t, err, innerErr)
	require.Nil(t, conn)

	// an inner factory yielding no connection is not an error
	f, err = NewFactory(&stubFactory{}, Config{Version: Version2}, nil, nil)
	require.NoError(t, err)
	conn, err = f.NewConn(context.Background(), testProxyInfo(), nil)
	require.NoError(t, err)
	require.Nil(t, conn)
}

func Test_Factory_NewConn_hostMetadata(t *testing.T) {
	f, err := NewFactory(&stubFactory{conn: &fakeConn{}}, Config{Version: Version2}, nil, nil)
	require.NoError(t, err)

	host := &Host{
		Address:  "10.0.0.2:443",
		Metadata: Metadata{TLVMetadataKey: TLVs{NewTLV(PP2Type(0xEA), []byte("vcpe"))}},
	}
	conn, err := f.NewConn(context.Background(), testProxyInfo(), host)
	require.NoError(t, err)

	c := conn.(*Conn)
	require.Equal(t, TLVs{NewTLV(PP2Type(0xEA), []byte("vcpe"))}, c.Header().TLVs)
}

func Test_Factory_HashKey(t *testing.T) {
	f, err := NewFactory(&stubFactory{}, Config{Version: Version2}, nil, nil)
	require.NoError(t, err)

	// nothing announced, nothing mixed in beyond the inner contribution
	require.Equal(t, []byte("seedinner"), f.HashKey([]byte("seed"), nil))

	info := &ProxyInfo{
		SrcAddr: &net.TCPAddr{IP: net.IPv4(10, 1, 1, 1), Port: 1000},
		DstAddr: &net.TCPAddr{IP: net.IPv4(10, 2, 2, 2), Port: 2000},
	}
	key := f.HashKey([]byte("seed"), info)
	require.Len(t, key, len("seedinner")+8)
	require.Equal(t, []byte("seedinner"), key[:len("seedinner")])

	sum := xxhash.Sum64String(strings.ToLower("10.1.1.1:1000@10.2.2.2:2000"))
	require.Equal(t, sum, binary.BigEndian.Uint64(key[len(key)-8:]))

	// the same announced addresses always land on the same key
	same := f.HashKey([]byte("seed"), &ProxyInfo{
		SrcAddr: &net.TCPAddr{IP: net.IPv4(10, 1, 1, 1), Port: 1000},
		DstAddr: &net.TCPAddr{IP: net.IPv4(10, 2, 2, 2), Port: 2000},
	})
	require.Equal(t, key, same)

	// different addresses must not share a pooled connection
	other := f.HashKey([]byte("seed"), &ProxyInfo{
		SrcAddr: &net.TCPAddr{IP: net.IPv4(10, 1, 1, 1), Port: 1000},
		DstAddr: &net.TCPAddr{IP: net.IPv4(10, 2, 2, 2), Port: 2001},
	})
	require.NotEqual(t, key, other)
}

func Test_Factory_HashKey_caseInsensitive(t *testing.T) {
	f, err := NewFactory(&stubFactory{}, Config{Version: Version2}, nil, nil)
	require.NoError(t, err)

	upper := f.HashKey(nil, &ProxyInfo{
		SrcAddr: &net.UnixAddr{Name: "/RUN/Src.sock", Net: "unix"},
		DstAddr: &net.UnixAddr{Name: "/RUN/Dst.sock", Net: "unix"},
	})
	lower := f.HashKey(nil, &ProxyInfo{
		SrcAddr: &net.UnixAddr{Name: "/run/src.sock", Net: "unix"},
		DstAddr: &net.UnixAddr{Name: "/run/dst.sock", Net: "unix"},
	})
	require.Equal(t, lower, upper)
}

func Test_DialerFactory(t *testing.T) {
	d := &DialerFactory{}

	require.Nil(t, d.HashKey(nil, testProxyInfo()))
	require.Equal(t, []byte("seed"), d.HashKey([]byte("seed"), nil))

	_, err := d.NewConn(context.Background(), nil, nil)
	require.Error(t, err)
	_, err = d.NewConn(context.Background(), nil, &Host{})
	require.Error(t, err)
}

func Test_Factory_endToEnd(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			done <- result{err: err}
			return
		}
		defer conn.Close()
		data, err := io.ReadAll(conn)
		done <- result{data: data, err: err}
	}()

	f, err := NewFactory(&DialerFactory{}, Config{Version: Version2}, nil, nil)
	require.NoError(t, err)

	conn, err := f.NewConn(context.Background(), testProxyInfo(), &Host{Address: ln.Addr().String()})
	require.NoError(t, err)

	payload := []byte("ping")
	n, err := conn.Write(payload)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)
	require.True(t, conn.(*Conn).HeaderSent())
	require.NoError(t, conn.Close())

	res := <-done
	require.NoError(t, res.err)
	require.Equal(t, append(append([]byte{}, v2AddressOnlyHeader...), payload...), res.data)
}

package sendproxy

import (
	"bytes"
	"net"
	"strconv"
)

const (
	// worst case (optional fields set to 0xff):
	// "PROXY UNKNOWN ffff:f...f:ffff ffff:f...f:ffff 65535 65535\r\n"
	// => 5 + 1 + 7 + 1 + 39 + 1 + 39 + 1 + 5 + 1 + 5 + 2 = 107 chars
	v1HeaderMaxLength = 107
)

// v1LocalValue the header sent when no address information is conveyed.
var v1LocalValue = []byte("PROXY UNKNOWN\r\n")

// formatV1 format the version 1 text line. it rejects addresses that cannot
// be represented, version 1 conveys tcp over IPv4 or IPv6 only.
func formatV1(h *Header) ([]byte, error) {
	if h.Command == CMD_LOCAL {
		h.Raw = v1LocalValue
		return h.Raw, nil
	}

	// version 1 supports tcp only.
	srcType, srcOK := h.SrcAddr.(*net.TCPAddr)
	dstType, dstOK := h.DstAddr.(*net.TCPAddr)
	if !srcOK || !dstOK || srcType == nil || dstType == nil {
		return nil, ErrInvalidAddress
	}
	if validatePort(srcType.Port) != nil || validatePort(dstType.Port) != nil {
		return nil, ErrInvalidAddress
	}
	h.TransportProtocol = SOCK_STREAM

	var buf bytes.Buffer
	buf.Grow(v1HeaderMaxLength)
	buf.Write(v1Prefix)

	if len(srcType.IP.To4()) == net.IPv4len && len(dstType.IP.To4()) == net.IPv4len {
		buf.WriteString("TCP4 ")
		buf.WriteString(srcType.IP.To4().String())
		buf.WriteString(" ")
		buf.WriteString(dstType.IP.To4().String())
		buf.WriteString(" ")
		h.AddressFamily = AF_INET // IPv4
	} else if len(srcType.IP.To16()) == net.IPv6len && len(dstType.IP.To16()) == net.IPv6len {
		buf.WriteString("TCP6 ")
		buf.WriteString(srcType.IP.To16().String())
		buf.WriteString(" ")
		buf.WriteString(dstType.IP.To16().String())
		buf.WriteString(" ")
		h.AddressFamily = AF_INET6 // IPv6
	} else {
		return nil, ErrUnknownAddrFamily
	}

	buf.WriteString(strconv.Itoa(srcType.Port))
	buf.WriteString(" ")
	buf.WriteString(strconv.Itoa(dstType.Port))
	buf.WriteString("\r\n") // the CRLF sequence
	h.Raw = buf.Bytes()
	return h.Raw, nil
}

// encodeV1 build the version 1 header for a connection. unusable addresses
// degrade to the "PROXY UNKNOWN" line instead of failing, the connection is
// still established in that case.
func encodeV1(src, dst net.Addr) *Header {
	h := &Header{
		Version: Version1,
		Command: CMD_PROXY,
		SrcAddr: src,
		DstAddr: dst,
	}

	if _, err := formatV1(h); err != nil {
		h.Command = CMD_LOCAL
		h.AddressFamily = AF_UNSPEC
		h.TransportProtocol = SOCK_UNSPEC
		h.SrcAddr, h.DstAddr = nil, nil
		h.Raw = v1LocalValue
	}
	return h
}

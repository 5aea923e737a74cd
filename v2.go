package sendproxy

import (
	"bytes"
	"math"
	"net"
)

const (
	// addressLengthIPv4 address length is 2*4 + 2*2 = 12 bytes.
	addressLengthIPv4 = 12
	// addressLengthIPv6 address length is 2*16 + 2*2 = 36 bytes.
	addressLengthIPv6 = 36
	// addressLengthUnix address length is 2*108 = 216 bytes.
	addressLengthUnix = 216
)

// v2LocalValue the fixed local command header, no address information and no
// TLV groups follow it.
var v2LocalValue = []byte("\r\n\r\n\x00\r\nQUIT\n\x20\x00\x00\x00")

// guessAndParseAddrs derive address family and transport protocol from an
// address pair and fill the v2 address block. a nil buffer reports that the
// pair cannot be carried in a version 2 header.
func guessAndParseAddrs(src, dst net.Addr) (*bytes.Buffer, uint16, AddressFamily, TransportProtocol) {
	var srcIP, dstIP net.IP
	var srcPort, dstPort int
	var tp TransportProtocol

	switch srcAddr := src.(type) {
	case *net.TCPAddr:
		dstAddr, ok := dst.(*net.TCPAddr)
		if !ok || srcAddr == nil || dstAddr == nil {
			return nil, 0, AF_UNSPEC, SOCK_UNSPEC
		}
		srcIP, srcPort = srcAddr.IP, srcAddr.Port
		dstIP, dstPort = dstAddr.IP, dstAddr.Port
		tp = SOCK_STREAM

	case *net.UDPAddr:
		dstAddr, ok := dst.(*net.UDPAddr)
		if !ok || srcAddr == nil || dstAddr == nil {
			return nil, 0, AF_UNSPEC, SOCK_UNSPEC
		}
		srcIP, srcPort = srcAddr.IP, srcAddr.Port
		dstIP, dstPort = dstAddr.IP, dstAddr.Port
		tp = SOCK_DGRAM

	case *net.UnixAddr:
		dstAddr, ok := dst.(*net.UnixAddr)
		if !ok || srcAddr == nil || dstAddr == nil {
			return nil, 0, AF_UNSPEC, SOCK_UNSPEC
		}
		tp = SOCK_STREAM
		if srcAddr.Net == "unixgram" {
			tp = SOCK_DGRAM
		}

		var buf bytes.Buffer
		buf.Grow(addressLengthUnix)
		buf.Write(formatUnixName(srcAddr.Name))
		buf.Write(formatUnixName(dstAddr.Name))
		return &buf, addressLengthUnix, AF_UNIX, tp

	default:
		return nil, 0, AF_UNSPEC, SOCK_UNSPEC
	}

	if validatePort(srcPort) != nil || validatePort(dstPort) != nil {
		return nil, 0, AF_UNSPEC, SOCK_UNSPEC
	}

	var buf bytes.Buffer
	if src4, dst4 := srcIP.To4(), dstIP.To4(); src4 != nil && dst4 != nil {
		buf.Grow(addressLengthIPv4)
		buf.Write(src4)
		buf.Write(dst4)
		buf.Write([]byte{byte(srcPort >> 8), byte(srcPort), byte(dstPort >> 8), byte(dstPort)})
		return &buf, addressLengthIPv4, AF_INET, tp
	}
	if src16, dst16 := srcIP.To16(), dstIP.To16(); src16 != nil && dst16 != nil {
		buf.Grow(addressLengthIPv6)
		buf.Write(src16)
		buf.Write(dst16)
		buf.Write([]byte{byte(srcPort >> 8), byte(srcPort), byte(dstPort >> 8), byte(dstPort)})
		return &buf, addressLengthIPv6, AF_INET6, tp
	}
	return nil, 0, AF_UNSPEC, SOCK_UNSPEC
}

// formatV2 format the version 2 binary header, it rejects addresses that
// cannot be represented and TLV payloads over the length ceiling.
func formatV2(h *Header, wantChecksum bool) ([]byte, error) {
	if h.Command == CMD_LOCAL {
		h.Raw = v2LocalValue
		return h.Raw, nil
	}

	var payloadBuf *bytes.Buffer
	var payloadLength uint16
	payloadBuf, payloadLength, h.AddressFamily, h.TransportProtocol = guessAndParseAddrs(h.SrcAddr, h.DstAddr)
	if payloadBuf == nil {
		return nil, ErrInvalidAddress
	}
	if uint16(payloadBuf.Len()) != payloadLength {
		return nil, ErrInvalidAddress
	}

	var verAndCmd = byte(Version2)<<4 | byte(CMD_PROXY)
	var afAndTp = byte(h.AddressFamily)<<4 | byte(h.TransportProtocol)

	if len(h.TLVs) == 0 && !wantChecksum {
		h.Raw = make([]byte, 0, 16+payloadLength)
		h.Raw = append(h.Raw, v2Signature...)
		h.Raw = append(h.Raw, verAndCmd, afAndTp, byte(payloadLength>>8), byte(payloadLength))
		h.Raw = append(h.Raw, payloadBuf.Bytes()...)
		return h.Raw, nil
	}

	for _, tlv := range h.TLVs {
		data := tlv.Format()
		if l := len(data); 3 < l && l < math.MaxUint16 {
			if payloadBuf.Len()+l > math.MaxUint16 {
				return nil, ErrExceedPayloadLength
			}
			payloadBuf.Write(data)
			payloadLength += uint16(l)
		}
	}

	var err error
	h.Raw, err = formatV2Bytes(verAndCmd, afAndTp, payloadLength, payloadBuf, wantChecksum)
	return h.Raw, err
}

func formatV2Bytes(verAndCmd, afAndTp byte, length uint16, payload *bytes.Buffer, wantChecksum bool) ([]byte, error) {
	if wantChecksum {
		// ensure payload length is valid
		if int(length)+crc32cTLVLength > math.MaxUint16 {
			return nil, ErrExceedPayloadLength
		}
		length += crc32cTLVLength
	}
	var appendNOOP bool
	if int(length)+11 < math.MaxUint16 {
		length += 11 // NOOP TLV: 1+2+8=11 bytes
		appendNOOP = true
	}

	var buf = make([]byte, 0, 16+length)
	buf = append(buf, v2Signature...)
	buf = append(buf, verAndCmd, afAndTp, byte(length>>8), byte(length))

	if wantChecksum {
		raw := make([]byte, 0, 16+length)
		raw = append(raw, buf...)
		raw = append(raw, payload.Bytes()...)
		raw = append(raw, byte(PP2_TYPE_CRC32C), 0, 4, 0, 0, 0, 0)
		if appendNOOP {
			noopTLV := NewNoOpTLV(8)
			raw = append(raw, noopTLV.Format()...)
		}

		checksumBytes := CalcCRC32cChecksum(raw)
		// write CRC-32c checksum in payload
		checksumTLV := NewTLV(PP2_TYPE_CRC32C, checksumBytes)
		payload.Write(checksumTLV.Format())
	}

	if appendNOOP {
		noopTLV := NewNoOpTLV(8)
		payload.Write(noopTLV.Format())
	}
	return append(buf, payload.Bytes()...), nil
}

// encodeV2 build the version 2 header for a connection with downstream
// address information. eligible pass-through TLV groups are emitted first,
// then the custom groups, a type owned by the custom groups is never also
// passed through. the boolean reports whether the TLV payload fits the
// protocol's length ceiling, when it does not the header carries the address
// block alone.
func encodeV2(info *ProxyInfo, passAll bool, passTypes map[PP2Type]struct{}, customTLVs TLVs, wantChecksum bool) (*Header, bool) {
	h := &Header{
		Version: Version2,
		Command: CMD_PROXY,
		SrcAddr: info.SrcAddr,
		DstAddr: info.DstAddr,
	}

	payloadBuf, payloadLength, af, tp := guessAndParseAddrs(info.SrcAddr, info.DstAddr)
	if payloadBuf == nil {
		// no representable address information, fall back to a local header.
		h.Command = CMD_LOCAL
		h.SrcAddr, h.DstAddr = nil, nil
		h.Raw = v2LocalValue
		return h, true
	}
	h.AddressFamily, h.TransportProtocol = af, tp

	owned := customTLVs.typeSet()
	var selected TLVs
	for _, tlv := range info.TLVs {
		if _, ok := owned[tlv.Type]; ok {
			continue
		}
		if !passAll {
			if _, ok := passTypes[tlv.Type]; !ok {
				continue
			}
		}
		selected = append(selected, tlv)
	}
	selected = append(selected, customTLVs...)

	var tlvBuf bytes.Buffer
	emitted := make(TLVs, 0, len(selected))
	for _, tlv := range selected {
		data := tlv.Format()
		if len(data) == 0 {
			continue
		}
		tlvBuf.Write(data)
		emitted = append(emitted, tlv)
	}

	var verAndCmd = byte(Version2)<<4 | byte(CMD_PROXY)
	var afAndTp = byte(af)<<4 | byte(tp)

	length := int(payloadLength) + tlvBuf.Len()
	if wantChecksum {
		length += crc32cTLVLength
	}
	if length > math.MaxUint16 {
		// over the ceiling, the address block is still conveyed but the
		// whole TLV payload is dropped, the checksum with it.
		h.Raw = make([]byte, 0, 16+int(payloadLength))
		h.Raw = append(h.Raw, v2Signature...)
		h.Raw = append(h.Raw, verAndCmd, afAndTp, byte(payloadLength>>8), byte(payloadLength))
		h.Raw = append(h.Raw, payloadBuf.Bytes()...)
		return h, false
	}

	h.TLVs = emitted
	raw := make([]byte, 0, 16+length)
	raw = append(raw, v2Signature...)
	raw = append(raw, verAndCmd, afAndTp, byte(length>>8), byte(length))
	raw = append(raw, payloadBuf.Bytes()...)
	raw = append(raw, tlvBuf.Bytes()...)
	if wantChecksum {
		// calculated over the whole header with the checksum field zeroed
		raw = append(raw, byte(PP2_TYPE_CRC32C), 0, 4, 0, 0, 0, 0)
		sum := CalcCRC32cChecksum(raw)
		copy(raw[len(raw)-4:], sum)
		h.TLVs = append(h.TLVs, NewTLV(PP2_TYPE_CRC32C, sum))
	}
	h.Raw = raw
	return h, true
}

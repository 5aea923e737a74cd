package sendproxy

import "net"

// ProxyInfo carries the downstream connection facts to convey upstream: the
// addresses to announce instead of the decorated connection's own, and the
// TLV groups observed downstream that are candidates for pass-through.
//
// A nil *ProxyInfo means the connection has no known downstream peer. A v1
// header then falls back to the connection's local and remote addresses, a
// v2 header is sent as the local command.
type ProxyInfo struct {
	SrcAddr net.Addr
	DstAddr net.Addr

	TLVs TLVs
}

// hashString is the canonical form mixed into pool hash keys. Connections
// announcing different downstream addresses must never share a pooled
// upstream connection.
func (info *ProxyInfo) hashString() string {
	var src, dst string
	if info.SrcAddr != nil {
		src = info.SrcAddr.String()
	}
	if info.DstAddr != nil {
		dst = info.DstAddr.String()
	}
	return src + "@" + dst
}

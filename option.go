package sendproxy

import "go.uber.org/zap"

type Option func(*Conn)

// WithProxyInfo announce the downstream addresses and TLV groups instead of
// the connection's own. Without it a v1 header uses the connection's local
// and remote addresses, and a v2 header degrades to the local command.
func WithProxyInfo(info *ProxyInfo) Option {
	return func(c *Conn) {
		c.info = info
	}
}

// WithHost attach the upstream host whose metadata may carry TLV groups
func WithHost(host *Host) Option {
	return func(c *Conn) {
		c.host = host
	}
}

// WithStats count header-shaping events, such as TLV payload overflow
func WithStats(stats *Stats) Option {
	return func(c *Conn) {
		c.stats = stats
	}
}

// WithLogger log dropped TLV groups and header progress. Silent by default.
func WithLogger(log *zap.Logger) Option {
	return func(c *Conn) {
		c.log = log
	}
}

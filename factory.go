package sendproxy

import (
	"context"
	"net"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ConnFactory build the upstream connections that get decorated. HashKey
// contributes to the pool key deciding which requests may share a pooled
// connection.
type ConnFactory interface {
	NewConn(ctx context.Context, info *ProxyInfo, host *Host) (net.Conn, error)
	HashKey(key []byte, info *ProxyInfo) []byte
}

// Factory decorate the connections of an inner factory with PROXY protocol
// headers. Configuration and stats are fixed at construction, there is no
// package-level state.
type Factory struct {
	inner ConnFactory
	cfg   Config
	stats *Stats
	log   *zap.Logger
}

var _ ConnFactory = (*Factory)(nil)

func NewFactory(inner ConnFactory, cfg Config, stats *Stats, log *zap.Logger) (*Factory, error) {
	if inner == nil {
		return nil, errors.New("inner factory is nil")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Factory{
		inner: inner,
		cfg:   cfg,
		stats: stats,
		log:   log,
	}, nil
}

// NewConn build a connection through the inner factory and decorate it. An
// inner error, or an inner factory that yields no connection, is passed
// through untouched, nothing is decorated then.
func (f *Factory) NewConn(ctx context.Context, info *ProxyInfo, host *Host) (net.Conn, error) {
	inner, err := f.inner.NewConn(ctx, info, host)
	if err != nil {
		return nil, err
	}
	if inner == nil {
		return nil, nil
	}

	return NewConn(inner, f.cfg,
		WithProxyInfo(info),
		WithHost(host),
		WithStats(f.stats),
		WithLogger(f.log),
	)
}

// HashKey let the inner factory contribute first, then mix in the announced
// downstream addresses. Two connections announcing different addresses must
// never share a pooled upstream connection, connections announcing nothing
// need no distinction on this axis.
func (f *Factory) HashKey(key []byte, info *ProxyInfo) []byte {
	key = f.inner.HashKey(key, info)
	if info == nil {
		return key
	}

	sum := xxhash.Sum64String(strings.ToLower(info.hashString()))
	return append(key,
		byte(sum>>56), byte(sum>>48), byte(sum>>40), byte(sum>>32),
		byte(sum>>24), byte(sum>>16), byte(sum>>8), byte(sum))
}

// DialerFactory is the plain base of a factory chain: it dials the host over
// TCP and contributes nothing to the pool key.
type DialerFactory struct {
	Dialer net.Dialer
}

var _ ConnFactory = (*DialerFactory)(nil)

func (d *DialerFactory) NewConn(ctx context.Context, _ *ProxyInfo, host *Host) (net.Conn, error) {
	if host == nil || host.Address == "" {
		return nil, errors.New("no host address to dial")
	}
	return d.Dialer.DialContext(ctx, "tcp", host.Address)
}

func (d *DialerFactory) HashKey(key []byte, _ *ProxyInfo) []byte {
	return key
}

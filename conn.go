package sendproxy

import (
	"encoding/hex"
	"errors"
	"io"
	"net"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
)

// Conn wrap an established net.Conn and prepend a PROXY protocol header to
// it. The header is generated when the Conn is built and drained ahead of
// the first payload bytes, partial writes included: no payload byte reaches
// the wire before the last header byte.
//
// A Conn lives for exactly one connection attempt. If it is torn down before
// HeaderSent reports true, the peer may have seen a truncated header and the
// connection must not be reused.
type Conn struct {
	net.Conn

	version    Version
	passAll    bool
	passTypes  map[PP2Type]struct{}
	staticTLVs TLVs
	checksum   bool

	info  *ProxyInfo
	host  *Host
	stats *Stats
	log   *zap.Logger

	mu       sync.Mutex
	header   *Header
	pending  []byte // header bytes not yet accepted by the inner connection
	writeErr error  // sticky fatal error from the header drain
}

var _ net.Conn = (*Conn)(nil)

type writeCloser interface {
	CloseWrite() error
}

// NewConn decorate an established connection. The header is generated here,
// construction is the "connected" moment, so nothing can be written ahead
// of it.
func NewConn(conn net.Conn, cfg Config, opts ...Option) (*Conn, error) {
	if conn == nil {
		return nil, errors.New("inner connection is nil")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	c := &Conn{
		Conn:     conn,
		version:  cfg.Version,
		passAll:  cfg.PassAllTLVs,
		checksum: cfg.Checksum,
	}
	for _, o := range opts {
		o(c)
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	c.passTypes = cfg.passTypeSet()
	c.staticTLVs = cfg.staticTLVs(c.log)

	c.generateHeader()
	return c, nil
}

func (c *Conn) generateHeader() {
	if c.version == Version1 {
		c.generateHeaderV1()
	} else {
		c.generateHeaderV2()
	}
	c.pending = c.header.Raw
}

func (c *Conn) generateHeaderV1() {
	// default to the connection's own addresses. used when no downstream
	// peer exists, e.g. health checks.
	src, dst := c.Conn.LocalAddr(), c.Conn.RemoteAddr()
	if c.info != nil {
		src, dst = c.info.SrcAddr, c.info.DstAddr
	}
	c.header = encodeV1(src, dst)
}

func (c *Conn) generateHeaderV2() {
	if c.info == nil {
		// no downstream peer to announce
		c.header = &Header{Version: Version2, Command: CMD_LOCAL, Raw: v2LocalValue}
		return
	}

	customTLVs := mergeTLVs(hostMetadataTLVs(c.host, c.log), c.staticTLVs)
	header, ok := encodeV2(c.info, c.passAll, c.passTypes, customTLVs, c.checksum)
	if !ok {
		c.log.Warn("v2 TLV payload exceeds the maximum length, sending header without TLVs",
			zap.Int("custom_tlv_count", len(customTLVs)))
		if c.stats != nil {
			c.stats.V2TLVsExceedMaxLength.Inc()
		}
	}

	c.header = header
	c.log.Debug("generated proxy protocol v2 header",
		zap.Int("length", len(header.Raw)), zap.String("raw", hex.EncodeToString(header.Raw)))
}

// Write implement net.Conn. The header is drained completely before any of
// p goes to the inner connection, and the count reports bytes of p only,
// header bytes are never part of it. A transient drain failure leaves p
// unwritten so the caller can retry the whole Write later.
func (c *Conn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.writeErr != nil {
		return 0, c.writeErr
	}
	if len(c.pending) > 0 {
		if err := c.writeHeader(); err != nil {
			return 0, err
		}
	}
	return c.Conn.Write(p)
}

// writeHeader drain the pending header bytes. The drain is strictly
// monotonic, bytes accepted by the inner connection are never re-sent. A
// transient failure keeps the remainder for a later attempt, any other
// failure poisons the connection for writing.
func (c *Conn) writeHeader() error {
	for len(c.pending) > 0 {
		n, err := c.Conn.Write(c.pending)
		if n > 0 {
			c.pending = c.pending[n:]
		}
		if err != nil {
			if isTransientWriteError(err) {
				c.log.Debug("header write stalled, keeping remainder for retry",
					zap.Int("remaining", len(c.pending)), zap.Error(err))
				return err
			}
			c.writeErr = err
			return err
		}
		if n == 0 {
			// no error and no progress, bail out instead of spinning.
			return io.ErrShortWrite
		}
	}

	c.log.Debug("proxy protocol header fully written", zap.Int("length", len(c.header.Raw)))
	return nil
}

// Flush write any pending header bytes without sending payload, for
// connections where the upstream speaks first.
func (c *Conn) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.writeErr != nil {
		return c.writeErr
	}
	if len(c.pending) == 0 {
		return nil
	}
	return c.writeHeader()
}

// CloseWrite flush the header, then forward the half-close when the inner
// connection supports one.
func (c *Conn) CloseWrite() error {
	if err := c.Flush(); err != nil {
		return err
	}
	if cw, ok := c.Conn.(writeCloser); ok {
		return cw.CloseWrite()
	}
	return nil
}

// HeaderSent report whether the header was handed to the inner connection in
// full. A connection closed before that carries a truncated header and must
// not be pooled for reuse.
func (c *Conn) HeaderSent() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending) == 0 && c.writeErr == nil
}

// Header the generated header, raw bytes included
func (c *Conn) Header() *Header {
	return c.header
}

// RawHeader get raw header
func (c *Conn) RawHeader() []byte {
	if c.header == nil {
		return nil
	}
	return c.header.Raw
}

// ZapFields header fields for zap
func (c *Conn) ZapFields() []zap.Field {
	if c.header == nil {
		return nil
	}
	return c.header.ZapFields()
}

// LogrusFields header fields for logrus
func (c *Conn) LogrusFields() logrus.Fields {
	if c.header == nil {
		return nil
	}
	return c.header.LogrusFields()
}

// isTransientWriteError report whether a write failure may clear on a later
// attempt. Deadline and would-block conditions qualify, everything else
// means the connection is broken.
func isTransientWriteError(err error) bool {
	if errors.Is(err, io.ErrShortWrite) {
		return true
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK)
}

package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/orientgo/driver/internal/config"
	"github.com/orientgo/driver/internal/driverr"
	"github.com/orientgo/driver/internal/wire"
)

// SyncConnection is the blocking synchronous facade: one request is
// outstanding at a time, and the caller waits for the matching response
// before issuing the next one. State is tracked under a mutex, with a
// Ping-style liveness probe, and I/O errors permanently mark the
// connection broken rather than attempting in-place recovery.
type SyncConnection struct {
	addr   string
	conn   net.Conn
	r      *wire.Reader
	logger *slog.Logger

	mu     sync.Mutex // serializes request/response pairs; no multiplexing
	broken atomic.Bool

	bytesOut atomic.Uint64
	bytesIn  atomic.Uint64
	framesOut atomic.Uint64
	framesIn  atomic.Uint64
}

// DialSync opens a new synchronous connection to addr and sends the
// protocol handshake.
func DialSync(ctx context.Context, addr string, opts config.DialOptions, logger *slog.Logger) (*SyncConnection, error) {
	raw, err := dial(ctx, addr, opts)
	if err != nil {
		return nil, driverr.NewIOError("dial", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	sc := &SyncConnection{addr: addr, logger: logger}
	cc := &countingConn{Conn: raw, bytesOut: &sc.bytesOut, bytesIn: &sc.bytesIn}
	sc.conn = cc
	sc.r = wire.NewReader(cc)

	if err := sendHandshake(cc, opts.ConnectTimeout); err != nil {
		raw.Close()
		return nil, driverr.NewIOError("handshake", err)
	}
	sc.framesOut.Add(1)
	logger.Debug("sync connection established", "addr", addr)
	return sc, nil
}

func (c *SyncConnection) Address() string { return c.addr }
func (c *SyncConnection) Broken() bool    { return c.broken.Load() }

func (c *SyncConnection) Stats() Stats {
	return Stats{
		FramesOut: c.framesOut.Load(),
		FramesIn:  c.framesIn.Load(),
		BytesOut:  c.bytesOut.Load(),
		BytesIn:   c.bytesIn.Load(),
	}
}

func (c *SyncConnection) Close() error {
	c.markBroken()
	return c.conn.Close()
}

func (c *SyncConnection) markBroken() {
	c.broken.Store(true)
}

func (c *SyncConnection) applyDeadline(ctx context.Context) {
	if dl, ok := ctx.Deadline(); ok {
		c.conn.SetDeadline(dl)
	} else {
		c.conn.SetDeadline(time.Time{})
	}
}

// Request writes frame and blocks for the matching response, returning the
// decoded header plus the shared Reader positioned right after the header
// so the caller can decode the op-specific payload. A StatusError response
// is translated into a *driverr.RequestError. A StatusPush response is
// rejected: the synchronous facade never subscribes to live queries.
func (c *SyncConnection) Request(ctx context.Context, frame []byte) (wire.ResponseHeader, *wire.Reader, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.broken.Load() {
		return wire.ResponseHeader{}, nil, driverr.NewPoolClosedError("connection is broken")
	}

	c.applyDeadline(ctx)
	defer c.conn.SetDeadline(time.Time{})

	if _, err := c.conn.Write(frame); err != nil {
		c.markBroken()
		return wire.ResponseHeader{}, nil, driverr.NewIOError("write", err)
	}
	c.framesOut.Add(1)

	status, err := wire.DecodeStatus(c.r)
	if err != nil {
		c.markBroken()
		return wire.ResponseHeader{}, nil, err
	}
	if status == wire.StatusPush {
		c.markBroken()
		return wire.ResponseHeader{}, nil, driverr.NewProtocolError("unexpected push frame on synchronous connection", nil)
	}

	hdr, err := wire.DecodeResponseHeader(c.r, status)
	if err != nil {
		c.markBroken()
		return wire.ResponseHeader{}, nil, err
	}
	c.framesIn.Add(1)

	if status == wire.StatusError {
		reqErr, err := wire.DecodeRequestError(c.r)
		if err != nil {
			c.markBroken()
			return hdr, nil, err
		}
		return hdr, nil, reqErr
	}

	return hdr, c.r, nil
}

// SendAndForget writes frame without waiting for a reply, for requests
// whose op never solicits one (Close).
func (c *SyncConnection) SendAndForget(ctx context.Context, frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.broken.Load() {
		return driverr.NewPoolClosedError("connection is broken")
	}
	c.applyDeadline(ctx)
	defer c.conn.SetDeadline(time.Time{})

	if _, err := c.conn.Write(frame); err != nil {
		c.markBroken()
		return driverr.NewIOError("write", err)
	}
	c.framesOut.Add(1)
	return nil
}

// Ping performs a lightweight liveness probe: a short-deadline read that
// should time out on a live, idle connection. Any other outcome marks the
// connection broken. Grounded on PooledConn.Ping (internal/pool/conn.go).
func (c *SyncConnection) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.broken.Load() {
		return fmt.Errorf("connection already broken")
	}

	c.conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	buf := make([]byte, 1)
	_, err := c.conn.Read(buf)
	c.conn.SetReadDeadline(time.Time{})
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return nil
		}
		c.markBroken()
		return err
	}
	// Unsolicited data on an idle sync connection means the stream is out
	// of sync with this client's view of it; treat it as broken.
	c.markBroken()
	return fmt.Errorf("unexpected data on idle connection")
}

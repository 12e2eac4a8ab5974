// Package transport implements the two framed-connection facades over the
// wire protocol: a blocking synchronous connection with no multiplexing,
// and a cooperative asynchronous connection built from a sender task, a
// reader task, and a pending-response FIFO, with server push frames
// interleaved out of band.
package transport

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"github.com/orientgo/driver/internal/config"
	"github.com/orientgo/driver/internal/wire"
)

// Stats is a point-in-time snapshot of a connection's traffic counters,
// consumed by internal/metrics.
type Stats struct {
	FramesOut    uint64
	FramesIn     uint64
	BytesOut     uint64
	BytesIn      uint64
	PendingDepth int
}

// Connection is the common surface both facades expose to the connection
// pool: address, liveness, traffic stats, and teardown. Request/response
// methods differ enough between the sync and async flavours (no
// multiplexing vs. a pending FIFO) that they are not unified here — the
// pool only ever needs this much to manage the physical socket.
type Connection interface {
	Address() string
	Broken() bool
	Stats() Stats
	Close() error
}

// countingConn wraps a net.Conn to track bytes in/out without requiring
// every call site to update counters by hand.
type countingConn struct {
	net.Conn
	bytesOut *atomic.Uint64
	bytesIn  *atomic.Uint64
}

func (c *countingConn) Read(b []byte) (int, error) {
	n, err := c.Conn.Read(b)
	c.bytesIn.Add(uint64(n))
	return n, err
}

func (c *countingConn) Write(b []byte) (int, error) {
	n, err := c.Conn.Write(b)
	c.bytesOut.Add(uint64(n))
	return n, err
}

// dial opens a raw TCP connection honoring the configured connect timeout
// and TCP keep-alive.
func dial(ctx context.Context, addr string, opts config.DialOptions) (net.Conn, error) {
	d := net.Dialer{
		Timeout:   opts.ConnectTimeout,
		KeepAlive: opts.KeepAlive,
	}
	return d.DialContext(ctx, "tcp", addr)
}

// sendHandshake writes the fire-and-forget protocol handshake frame that
// must be the first thing sent on a freshly dialed connection.
func sendHandshake(conn net.Conn, timeout time.Duration) error {
	if timeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(timeout))
		defer conn.SetWriteDeadline(time.Time{})
	}
	_, err := conn.Write(wire.EncodeHandshake())
	return err
}

package transport

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/orientgo/driver/internal/config"
	"github.com/orientgo/driver/internal/driverr"
	"github.com/orientgo/driver/internal/wire"
)

// commandQueueDepth bounds the sender task's inbound command channel,
// giving callers backpressure instead of unbounded goroutine buildup when
// the socket is slow, mirroring smux's bounded writeRequest channel.
const commandQueueDepth = 256

// PayloadDecoder decodes a response body once its header has already been
// read off the wire. Supplied by the caller at send time, since only the
// caller knows which op it is waiting on.
type PayloadDecoder func(r *wire.Reader, hdr wire.ResponseHeader) (any, error)

// PushHandler receives a decoded server push frame (a live-query result),
// dispatched out of band from the pending-response FIFO.
type PushHandler func(*wire.PushFrame)

type asyncResult struct {
	header wire.ResponseHeader
	value  any
	err    error
}

type outboundCmd struct {
	frame    []byte
	decode   PayloadDecoder
	resultCh chan asyncResult
}

type pendingEntry struct {
	decode   PayloadDecoder
	resultCh chan asyncResult
}

// AsyncConnection is the cooperative asynchronous facade: a sender
// goroutine drains a bounded command channel and appends to a pending FIFO,
// a reader goroutine decodes frames strictly in arrival order and either
// dispatches a push frame or completes the head of the FIFO. Because the
// protocol has no length-prefixed outer frame and no correlation id, the
// reader must fully decode one frame's payload before it is safe to read
// the next — so decoding happens inline on the reader goroutine using the
// decoder the original caller supplied, not on the caller's own goroutine.
// Grounded on smux's session.go sender/reader split and writeRequest queue.
type AsyncConnection struct {
	addr   string
	conn   net.Conn
	r      *wire.Reader
	logger *slog.Logger

	sendCh chan outboundCmd

	pendingMu sync.Mutex
	pending   []pendingEntry

	pushHandler atomic.Pointer[PushHandler]

	broken    atomic.Bool
	closeOnce sync.Once
	doneCh    chan struct{}
	wg        sync.WaitGroup

	bytesOut  atomic.Uint64
	bytesIn   atomic.Uint64
	framesOut atomic.Uint64
	framesIn  atomic.Uint64
}

// DialAsync opens a new asynchronous connection to addr, sends the
// handshake, and starts the sender/reader tasks.
func DialAsync(ctx context.Context, addr string, opts config.DialOptions, logger *slog.Logger) (*AsyncConnection, error) {
	raw, err := dial(ctx, addr, opts)
	if err != nil {
		return nil, driverr.NewIOError("dial", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	ac := &AsyncConnection{
		addr:   addr,
		logger: logger,
		sendCh: make(chan outboundCmd, commandQueueDepth),
		doneCh: make(chan struct{}),
	}
	cc := &countingConn{Conn: raw, bytesOut: &ac.bytesOut, bytesIn: &ac.bytesIn}
	ac.conn = cc
	ac.r = wire.NewReader(cc)

	if err := sendHandshake(cc, opts.ConnectTimeout); err != nil {
		raw.Close()
		return nil, driverr.NewIOError("handshake", err)
	}
	ac.framesOut.Add(1)

	ac.wg.Add(2)
	go ac.senderLoop()
	go ac.readerLoop()

	logger.Debug("async connection established", "addr", addr)
	return ac, nil
}

func (c *AsyncConnection) Address() string { return c.addr }
func (c *AsyncConnection) Broken() bool    { return c.broken.Load() }

func (c *AsyncConnection) Stats() Stats {
	c.pendingMu.Lock()
	depth := len(c.pending)
	c.pendingMu.Unlock()
	return Stats{
		FramesOut:    c.framesOut.Load(),
		FramesIn:     c.framesIn.Load(),
		BytesOut:     c.bytesOut.Load(),
		BytesIn:      c.bytesIn.Load(),
		PendingDepth: depth,
	}
}

// SetPushHandler installs the callback invoked for every decoded push
// frame. Typically wired to the session's live-query manager.
func (c *AsyncConnection) SetPushHandler(h PushHandler) {
	c.pushHandler.Store(&h)
}

// SendRequest enqueues frame and blocks until the matching response has
// been decoded by decode, or ctx is done, or the connection fails.
func (c *AsyncConnection) SendRequest(ctx context.Context, frame []byte, decode PayloadDecoder) (any, wire.ResponseHeader, error) {
	if c.broken.Load() {
		return nil, wire.ResponseHeader{}, driverr.NewPoolClosedError("connection is broken")
	}

	resultCh := make(chan asyncResult, 1)
	cmd := outboundCmd{frame: frame, decode: decode, resultCh: resultCh}

	select {
	case c.sendCh <- cmd:
	case <-ctx.Done():
		return nil, wire.ResponseHeader{}, ctx.Err()
	case <-c.doneCh:
		return nil, wire.ResponseHeader{}, driverr.NewPoolClosedError("connection is broken")
	}

	select {
	case res := <-resultCh:
		return res.value, res.header, res.err
	case <-ctx.Done():
		return nil, wire.ResponseHeader{}, ctx.Err()
	case <-c.doneCh:
		return nil, wire.ResponseHeader{}, driverr.NewPoolClosedError("connection is broken")
	}
}

// SendAndForget enqueues frame with no pending entry, for ops that never
// solicit a reply (Close, UnsubscribeLiveQuery).
func (c *AsyncConnection) SendAndForget(ctx context.Context, frame []byte) error {
	if c.broken.Load() {
		return driverr.NewPoolClosedError("connection is broken")
	}
	cmd := outboundCmd{frame: frame}
	select {
	case c.sendCh <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.doneCh:
		return driverr.NewPoolClosedError("connection is broken")
	}
}

func (c *AsyncConnection) senderLoop() {
	defer c.wg.Done()
	for {
		select {
		case cmd, ok := <-c.sendCh:
			if !ok {
				return
			}
			if _, err := c.conn.Write(cmd.frame); err != nil {
				c.fail(driverr.NewIOError("write", err))
				if cmd.resultCh != nil {
					cmd.resultCh <- asyncResult{err: driverr.NewIOError("write", err)}
				}
				return
			}
			c.framesOut.Add(1)
			if cmd.decode != nil {
				c.pendingMu.Lock()
				c.pending = append(c.pending, pendingEntry{decode: cmd.decode, resultCh: cmd.resultCh})
				c.pendingMu.Unlock()
			}
		case <-c.doneCh:
			return
		}
	}
}

func (c *AsyncConnection) readerLoop() {
	defer c.wg.Done()
	for {
		status, err := wire.DecodeStatus(c.r)
		if err != nil {
			c.fail(err)
			return
		}

		if status == wire.StatusPush {
			pf, err := wire.DecodePushFrame(c.r)
			if err != nil {
				c.fail(err)
				return
			}
			c.framesIn.Add(1)
			if h := c.pushHandler.Load(); h != nil && *h != nil {
				(*h)(pf)
			}
			continue
		}

		hdr, err := wire.DecodeResponseHeader(c.r, status)
		if err != nil {
			c.fail(err)
			return
		}
		c.framesIn.Add(1)

		entry, ok := c.popPending()
		if !ok {
			c.fail(driverr.NewProtocolError("response with no pending request", nil))
			return
		}

		if status == wire.StatusError {
			reqErr, err := wire.DecodeRequestError(c.r)
			if err != nil {
				c.fail(err)
				if entry.resultCh != nil {
					entry.resultCh <- asyncResult{header: hdr, err: err}
				}
				return
			}
			if entry.resultCh != nil {
				entry.resultCh <- asyncResult{header: hdr, err: reqErr}
			}
			continue
		}

		val, err := entry.decode(c.r, hdr)
		if entry.resultCh != nil {
			entry.resultCh <- asyncResult{header: hdr, value: val, err: err}
		}
		if err != nil {
			// The stream is no longer aligned on a frame boundary once a
			// payload decode fails partway through, so the connection
			// cannot be trusted for any further request.
			c.fail(err)
			return
		}
	}
}

func (c *AsyncConnection) popPending() (pendingEntry, bool) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	if len(c.pending) == 0 {
		return pendingEntry{}, false
	}
	entry := c.pending[0]
	c.pending = c.pending[1:]
	return entry, true
}

func (c *AsyncConnection) fail(err error) {
	if !c.broken.CompareAndSwap(false, true) {
		return
	}
	c.logger.Warn("async connection failed", "addr", c.addr, "error", err)
	c.conn.Close()
	close(c.doneCh)

	c.pendingMu.Lock()
	pending := c.pending
	c.pending = nil
	c.pendingMu.Unlock()
	for _, p := range pending {
		if p.resultCh != nil {
			p.resultCh <- asyncResult{err: err}
		}
	}
}

// Close gracefully shuts down both tasks and the underlying socket.
func (c *AsyncConnection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		wasBroken := c.broken.Swap(true)
		if !wasBroken {
			close(c.doneCh)
		}
		err = c.conn.Close()
		c.wg.Wait()

		c.pendingMu.Lock()
		pending := c.pending
		c.pending = nil
		c.pendingMu.Unlock()
		for _, p := range pending {
			if p.resultCh != nil {
				p.resultCh <- asyncResult{err: driverr.NewPoolClosedError("connection closed")}
			}
		}
	})
	return err
}

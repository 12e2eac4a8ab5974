// Package connpool implements the bounded per-server connection pool that
// sits under the cluster's session pool: a sync.Cond-guarded idle stack,
// a warm-up phase, idle reaping, and a waiter queue, keyed by server
// address. There is no wire-auth dial step — OrientDB's Connect/Open
// opcodes carry credentials in-band per request, so there is nothing to
// do during dial beyond the handshake transport.DialSync already
// performs.
package connpool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/orientgo/driver/internal/config"
	"github.com/orientgo/driver/internal/driverr"
	"github.com/orientgo/driver/internal/transport"
)

// Stats holds point-in-time connection pool statistics for one server.
type Stats struct {
	Server    string
	Active    int
	Idle      int
	Total     int
	Waiting   int
	MaxConns  int
	MinConns  int
	Exhausted int64
}

// OnPoolExhausted is invoked when Acquire must wait because the pool is at
// MaxConns.
type OnPoolExhausted func(server string)

// Dialer opens one new raw connection to the pool's server. Supplied by the
// caller so the same pool shape works for both transport.SyncConnection and
// transport.AsyncConnection.
type Dialer func(ctx context.Context) (transport.Connection, error)

// Pool is a bounded connection pool for a single server address.
type Pool struct {
	mu   sync.Mutex
	cond *sync.Cond

	server         string
	dialer         Dialer
	minConns       int
	maxConns       int
	idleTimeout    time.Duration
	maxLifetime    time.Duration
	acquireTimeout time.Duration
	logger         *slog.Logger

	idle      []*entry
	active    map[transport.Connection]struct{}
	total     int
	waiting   int
	exhausted int64

	closed          bool
	stopCh          chan struct{}
	onPoolExhausted OnPoolExhausted
}

type entry struct {
	conn      transport.Connection
	createdAt time.Time
	lastUsed  time.Time
}

// New creates a connection pool for one server and starts its background
// idle reaper and (if MinConns > 0) warm-up.
func New(server string, dialer Dialer, pc config.PoolDefaults, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{
		server:         server,
		dialer:         dialer,
		minConns:       pc.MinConns,
		maxConns:       pc.MaxConns,
		idleTimeout:    pc.IdleTimeout,
		maxLifetime:    pc.MaxLifetime,
		acquireTimeout: pc.AcquireTimeout,
		logger:         logger,
		active:         make(map[transport.Connection]struct{}),
		stopCh:         make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)

	go p.reapLoop()
	if p.minConns > 0 {
		go p.warmUp()
	}
	return p
}

func (p *Pool) warmUp() {
	for i := 0; i < p.minConns; i++ {
		p.mu.Lock()
		if p.closed || p.total >= p.minConns {
			p.mu.Unlock()
			return
		}
		p.total++
		p.mu.Unlock()

		conn, err := p.dialer(context.Background())
		if err != nil {
			p.mu.Lock()
			p.total--
			p.mu.Unlock()
			p.logger.Warn("warm-up connection failed", "server", p.server, "index", i+1, "of", p.minConns, "error", err)
			return
		}

		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			conn.Close()
			return
		}
		now := time.Now()
		p.idle = append(p.idle, &entry{conn: conn, createdAt: now, lastUsed: now})
		p.mu.Unlock()
	}
	p.logger.Info("pre-warmed connections", "server", p.server, "count", p.minConns)
}

// Acquire returns a connection from the idle list or dials a new one,
// waiting (bounded by ctx and the configured acquire timeout) if the pool
// is already at MaxConns.
func (p *Pool) Acquire(ctx context.Context) (transport.Connection, error) {
	deadlineAt := time.Now().Add(p.acquireTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadlineAt) {
		deadlineAt = ctxDeadline
	}

	p.mu.Lock()
	for {
		select {
		case <-ctx.Done():
			p.mu.Unlock()
			return nil, ctx.Err()
		default:
		}

		if p.closed {
			p.mu.Unlock()
			return nil, driverr.NewPoolClosedError(fmt.Sprintf("pool closed for server %s", p.server))
		}

		for len(p.idle) > 0 {
			e := p.idle[len(p.idle)-1]
			p.idle = p.idle[:len(p.idle)-1]

			if p.maxLifetime > 0 && time.Since(e.createdAt) > p.maxLifetime {
				e.conn.Close()
				p.total--
				continue
			}
			if e.conn.Broken() {
				e.conn.Close()
				p.total--
				continue
			}

			p.active[e.conn] = struct{}{}
			p.mu.Unlock()
			return e.conn, nil
		}

		if p.total < p.maxConns {
			p.total++
			p.mu.Unlock()

			conn, err := p.dialer(ctx)
			if err != nil {
				p.mu.Lock()
				p.total--
				p.mu.Unlock()
				return nil, driverr.NewIOError(fmt.Sprintf("dial %s", p.server), err)
			}

			p.mu.Lock()
			p.active[conn] = struct{}{}
			p.mu.Unlock()
			return conn, nil
		}

		p.waiting++
		p.exhausted++
		cb := p.onPoolExhausted
		p.mu.Unlock()

		if cb != nil {
			cb(p.server)
		}

		p.mu.Lock()
		remaining := time.Until(deadlineAt)
		if remaining <= 0 {
			p.waiting--
			p.mu.Unlock()
			return nil, driverr.NewPoolTimeoutError(fmt.Sprintf("acquire timeout (%s) for server %s: pool exhausted", p.acquireTimeout, p.server))
		}

		timer := time.AfterFunc(remaining, func() { p.cond.Broadcast() })
		p.cond.Wait()
		timer.Stop()

		p.waiting--

		if p.closed {
			p.mu.Unlock()
			return nil, driverr.NewPoolClosedError(fmt.Sprintf("pool closing for server %s", p.server))
		}
		if time.Now().After(deadlineAt) {
			p.mu.Unlock()
			return nil, driverr.NewPoolTimeoutError(fmt.Sprintf("acquire timeout (%s) for server %s: pool exhausted", p.acquireTimeout, p.server))
		}
		// retry from the top of the loop (mu held)
	}
}

// Return releases conn back to the idle list, or closes it outright if the
// pool is closed or the connection is broken. Return does not check
// MaxLifetime itself.
func (p *Pool) Return(conn transport.Connection) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.active, conn)

	if p.closed || conn.Broken() {
		conn.Close()
		p.total--
		p.cond.Signal()
		return
	}

	p.idle = append(p.idle, &entry{conn: conn, createdAt: time.Now(), lastUsed: time.Now()})
	p.cond.Signal()
}

// SetOnPoolExhausted installs the pool-exhaustion callback, normally wired
// to internal/metrics.
func (p *Pool) SetOnPoolExhausted(cb OnPoolExhausted) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onPoolExhausted = cb
}

// Stats returns a snapshot of the pool's counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Server:    p.server,
		Active:    len(p.active),
		Idle:      len(p.idle),
		Total:     p.total,
		Waiting:   p.waiting,
		MaxConns:  p.maxConns,
		MinConns:  p.minConns,
		Exhausted: p.exhausted,
	}
}

// Drain closes idle connections immediately and waits (up to 30s, then
// force-closes) for active connections to be returned.
func (p *Pool) Drain() {
	p.mu.Lock()
	for _, e := range p.idle {
		e.conn.Close()
		p.total--
	}
	p.idle = p.idle[:0]
	activeCount := len(p.active)
	p.mu.Unlock()

	if activeCount == 0 {
		return
	}

	p.logger.Info("draining active connections", "server", p.server, "count", activeCount)
	timeout := time.After(30 * time.Second)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.mu.Lock()
			if len(p.active) == 0 {
				p.mu.Unlock()
				return
			}
			p.mu.Unlock()
		case <-timeout:
			p.mu.Lock()
			for conn := range p.active {
				conn.Close()
				p.total--
			}
			p.active = make(map[transport.Connection]struct{})
			p.mu.Unlock()
			p.logger.Warn("force-closed active connections after drain timeout", "server", p.server)
			return
		}
	}
}

// Close shuts down the pool: stops the reaper and drains every connection.
// Safe to call once; subsequent Acquire calls return ErrPoolClosed.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.stopCh)
	p.cond.Broadcast()
	p.mu.Unlock()

	p.Drain()
}

func (p *Pool) reapLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.reapIdle()
		case <-p.stopCh:
			return
		}
	}
}

func (p *Pool) reapIdle() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.idle) <= p.minConns {
		return
	}

	kept := make([]*entry, 0, len(p.idle))
	excess := len(p.idle) - p.minConns
	for i, e := range p.idle {
		idle := p.idleTimeout > 0 && time.Since(e.lastUsed) > p.idleTimeout
		expired := p.maxLifetime > 0 && time.Since(e.createdAt) > p.maxLifetime
		if i < excess && (idle || expired) {
			e.conn.Close()
			p.total--
		} else {
			kept = append(kept, e)
		}
	}
	p.idle = kept
}

// StartStatsLoop periodically invokes cb with this pool's stats.
func (p *Pool) StartStatsLoop(interval time.Duration, cb func(Stats)) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				cb(p.Stats())
			case <-p.stopCh:
				return
			}
		}
	}()
}

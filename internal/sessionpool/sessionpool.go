// Package sessionpool layers a pool of opened database sessions over a
// connpool.Pool of raw connections, grounded on jackc-pgx's pgxpool.Pool
// wrapping pgconn's raw connections: Acquire opens (or reuses) a raw
// connection and runs the Open handshake only on a fresh one, Release
// returns the session — not just the socket — to the idle list so the
// underlying connection is reused transparently.
package sessionpool

import (
	"context"
	"sync"

	"github.com/orientgo/driver/internal/connpool"
	"github.com/orientgo/driver/internal/transport"
	"github.com/orientgo/driver/internal/wire"
)

// PooledSession bundles one raw connection with the database session
// (session id + token) that was opened on it.
type PooledSession struct {
	Conn    transport.Connection
	Header  wire.SessionHeader
	DBName  string

	pool *Pool
}

// Release returns the session to its pool. Safe to call once; a second
// call is a no-op.
func (s *PooledSession) Release() {
	if s.pool == nil {
		return
	}
	p := s.pool
	s.pool = nil
	p.release(s)
}

// Discard closes the underlying connection instead of returning it to the
// pool, for use after a protocol error leaves the session unusable.
func (s *PooledSession) Discard() {
	if s.pool == nil {
		return
	}
	p := s.pool
	s.pool = nil
	p.discard(s)
}

// OpenFunc issues the Open request on a freshly acquired raw connection and
// returns the resulting session header. Supplied by the session package so
// this pool stays independent of the statement/auth request shapes.
type OpenFunc func(ctx context.Context, conn transport.Connection, dbName string) (wire.SessionHeader, error)

// Pool is a per-database pool of opened sessions, backed by one
// connpool.Pool of raw connections to a single server.
type Pool struct {
	raw    *connpool.Pool
	dbName string
	open   OpenFunc

	mu   sync.Mutex
	idle []*PooledSession
}

// New creates a session pool for dbName over the given raw connection pool.
func New(raw *connpool.Pool, dbName string, open OpenFunc) *Pool {
	return &Pool{raw: raw, dbName: dbName, open: open}
}

// Acquire returns an idle session if one is available, reusing its raw
// connection untouched; otherwise it acquires a fresh raw connection from
// the underlying pool and runs the Open handshake on it.
func (p *Pool) Acquire(ctx context.Context) (*PooledSession, error) {
	p.mu.Lock()
	if n := len(p.idle); n > 0 {
		s := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		s.pool = p
		return s, nil
	}
	p.mu.Unlock()

	conn, err := p.raw.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	hdr, err := p.open(ctx, conn, p.dbName)
	if err != nil {
		p.raw.Return(conn)
		return nil, err
	}

	return &PooledSession{Conn: conn, Header: hdr, DBName: p.dbName, pool: p}, nil
}

func (p *Pool) release(s *PooledSession) {
	if s.Conn.Broken() {
		p.raw.Return(s.Conn)
		return
	}
	p.mu.Lock()
	p.idle = append(p.idle, s)
	p.mu.Unlock()
}

func (p *Pool) discard(s *PooledSession) {
	s.Conn.Close()
	p.raw.Return(s.Conn)
}

// Close drains every idle session's raw connection back to the underlying
// pool. Sessions currently acquired are returned by their own Release call.
func (p *Pool) Close() {
	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	for _, s := range idle {
		p.raw.Return(s.Conn)
	}
}

// Len reports the number of idle sessions currently held.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

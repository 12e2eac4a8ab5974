package sessionpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/orientgo/driver/internal/config"
	"github.com/orientgo/driver/internal/connpool"
	"github.com/orientgo/driver/internal/transport"
	"github.com/orientgo/driver/internal/wire"
)

type fakeConn struct {
	broken atomic.Bool
	closed atomic.Bool
}

func (f *fakeConn) Address() string        { return "fake" }
func (f *fakeConn) Broken() bool           { return f.broken.Load() }
func (f *fakeConn) Stats() transport.Stats { return transport.Stats{} }
func (f *fakeConn) Close() error           { f.closed.Store(true); return nil }

func newTestRawPool() *connpool.Pool {
	defaults := config.PoolDefaults{
		MaxConns:       4,
		AcquireTimeout: time.Second,
	}
	return connpool.New("srv:1", func(ctx context.Context) (transport.Connection, error) {
		return &fakeConn{}, nil
	}, defaults, nil)
}

func TestAcquireOpensAndReusesSession(t *testing.T) {
	raw := newTestRawPool()
	defer raw.Close()

	var opens atomic.Int32
	p := New(raw, "testdb", func(ctx context.Context, conn transport.Connection, dbName string) (wire.SessionHeader, error) {
		opens.Add(1)
		return wire.SessionHeader{SessionID: 1}, nil
	})

	s, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if opens.Load() != 1 {
		t.Fatalf("expected one Open call, got %d", opens.Load())
	}
	s.Release()

	if p.Len() != 1 {
		t.Fatalf("expected 1 idle session after Release, got %d", p.Len())
	}

	s2, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire (reuse): %v", err)
	}
	if opens.Load() != 1 {
		t.Fatalf("expected no additional Open call when reusing an idle session, got %d opens", opens.Load())
	}
	if s2 != s {
		t.Fatal("expected the same *PooledSession instance to be reused")
	}
	s2.Release()
}

func TestAcquirePropagatesOpenFailureAndReturnsConn(t *testing.T) {
	raw := newTestRawPool()
	defer raw.Close()

	sentinel := errors.New("open failed")
	p := New(raw, "testdb", func(ctx context.Context, conn transport.Connection, dbName string) (wire.SessionHeader, error) {
		return wire.SessionHeader{}, sentinel
	})

	if _, err := p.Acquire(context.Background()); !errors.Is(err, sentinel) {
		t.Fatalf("expected the Open error to propagate, got %v", err)
	}

	// The raw connection must have been returned to the underlying pool
	// rather than leaked.
	if stats := raw.Stats(); stats.Active != 0 {
		t.Fatalf("expected the raw connection to be returned, active=%d", stats.Active)
	}
}

func TestReleaseOfBrokenSessionReturnsRawConnInsteadOfCaching(t *testing.T) {
	raw := newTestRawPool()
	defer raw.Close()

	p := New(raw, "testdb", func(ctx context.Context, conn transport.Connection, dbName string) (wire.SessionHeader, error) {
		return wire.SessionHeader{SessionID: 1}, nil
	})

	s, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	s.Conn.(*fakeConn).broken.Store(true)
	s.Release()

	if p.Len() != 0 {
		t.Fatalf("a broken session should not be cached idle, got Len()=%d", p.Len())
	}
}

func TestDiscardClosesAndReturnsConn(t *testing.T) {
	raw := newTestRawPool()
	defer raw.Close()

	p := New(raw, "testdb", func(ctx context.Context, conn transport.Connection, dbName string) (wire.SessionHeader, error) {
		return wire.SessionHeader{SessionID: 1}, nil
	})

	s, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	fc := s.Conn.(*fakeConn)
	s.Discard()

	if !fc.closed.Load() {
		t.Fatal("expected Discard to close the underlying connection")
	}
	if p.Len() != 0 {
		t.Fatalf("a discarded session should not be idle, got Len()=%d", p.Len())
	}
}

func TestReleaseIsSafeToCallOnce(t *testing.T) {
	raw := newTestRawPool()
	defer raw.Close()

	p := New(raw, "testdb", func(ctx context.Context, conn transport.Connection, dbName string) (wire.SessionHeader, error) {
		return wire.SessionHeader{SessionID: 1}, nil
	})

	s, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	s.Release()
	s.Release() // no-op: pool reference already cleared

	if p.Len() != 1 {
		t.Fatalf("expected exactly 1 idle session after a double Release, got %d", p.Len())
	}
}

func TestCloseDrainsIdleSessions(t *testing.T) {
	raw := newTestRawPool()
	defer raw.Close()

	p := New(raw, "testdb", func(ctx context.Context, conn transport.Connection, dbName string) (wire.SessionHeader, error) {
		return wire.SessionHeader{SessionID: 1}, nil
	})

	s, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	s.Release()

	p.Close()
	if p.Len() != 0 {
		t.Fatalf("expected Close to drain idle sessions, got Len()=%d", p.Len())
	}
}

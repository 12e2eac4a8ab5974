// Package client is the driver's top-level entry point: it owns the
// cluster selector and per-server connection pools, runs admin operations
// (Connect/CreateDB/ExistDB/DropDB) via the short-lived run_as_admin
// pattern, and opens database sessions. Construction order is
// config -> metrics -> cluster -> per-server pool, created lazily.
package client

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/orientgo/driver/internal/cluster"
	"github.com/orientgo/driver/internal/config"
	"github.com/orientgo/driver/internal/connpool"
	"github.com/orientgo/driver/internal/driverr"
	"github.com/orientgo/driver/internal/metrics"
	"github.com/orientgo/driver/internal/session"
	"github.com/orientgo/driver/internal/sessionpool"
	"github.com/orientgo/driver/internal/transport"
	"github.com/orientgo/driver/internal/wire"
)

// Client is the driver's top-level handle: one cluster selector plus one
// raw connection pool per server.
type Client struct {
	cluster *cluster.Cluster
	metrics *metrics.Collector
	logger  *slog.Logger
	cfg     *config.Config

	mu    sync.Mutex
	pools map[string]*connpool.Pool

	spMu         sync.Mutex
	sessionPools map[string]*sessionpool.Pool
}

// New constructs a Client: the cluster selector from the configured seed
// servers, and one connpool.Pool per server (created lazily on first
// use).
func New(cfg *config.Config, m *metrics.Collector, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cl, err := cluster.New(cfg)
	if err != nil {
		return nil, err
	}
	c := &Client{
		cluster:      cl,
		metrics:      m,
		logger:       logger,
		cfg:          cfg,
		pools:        make(map[string]*connpool.Pool),
		sessionPools: make(map[string]*sessionpool.Pool),
	}
	logger.Info("client initialized", "servers", len(cfg.Servers))
	return c, nil
}

func (c *Client) poolFor(server string) *connpool.Pool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.pools[server]; ok {
		return p
	}

	dialer := func(ctx context.Context) (transport.Connection, error) {
		return transport.DialSync(ctx, server, c.cfg.Dial, c.logger)
	}
	p := connpool.New(server, dialer, c.cfg.Pool, c.logger)
	if c.metrics != nil {
		p.SetOnPoolExhausted(func(srv string) { c.metrics.PoolExhausted(srv) })
		p.StartStatsLoop(5*time.Second, func(s connpool.Stats) {
			c.metrics.UpdatePoolStats(server, s.Active, s.Idle, s.Total, s.Waiting)
		})
	}
	c.pools[server] = p
	return p
}

// runAsAdmin borrows a raw connection for the cluster's selected server,
// runs Connect, hands the authenticated session header to fn, then tears
// the session down with a fire-and-forget Close before returning the
// connection to the pool — the admin borrow-connect-work-close pattern.
func (c *Client) runAsAdmin(ctx context.Context, username, password string, fn func(ctx context.Context, conn transport.Connection, hdr wire.SessionHeader) (any, error)) (any, error) {
	server, err := c.cluster.Select()
	if err != nil {
		return nil, err
	}
	pool := c.poolFor(server.Address)

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer pool.Return(conn)

	sc, ok := conn.(*transport.SyncConnection)
	if !ok {
		return nil, driverr.NewGeneric("admin operations require a synchronous connection", nil)
	}

	hdr, err := connectAdmin(ctx, sc, username, password)
	if err != nil {
		return nil, err
	}

	result, fnErr := fn(ctx, sc, hdr)

	// Close is always fire-and-forget; swallow its own error, since the
	// admin work's own result/error already took precedence.
	_ = sc.SendAndForget(ctx, wire.EncodeClose(hdr))

	return result, fnErr
}

func connectAdmin(ctx context.Context, sc *transport.SyncConnection, username, password string) (wire.SessionHeader, error) {
	frame := wire.EncodeConnect(username, password)
	_, r, err := sc.Request(ctx, frame)
	if err != nil {
		return wire.SessionHeader{}, err
	}
	return wire.DecodeConnectPayload(r)
}

// CreateDB creates a new database on the cluster's selected server.
func (c *Client) CreateDB(ctx context.Context, username, password, dbName string, dbType wire.DatabaseType) error {
	_, err := c.runAsAdmin(ctx, username, password, func(ctx context.Context, conn transport.Connection, hdr wire.SessionHeader) (any, error) {
		sc := conn.(*transport.SyncConnection)
		frame := wire.EncodeCreateDB(dbName, username, password, dbType)
		_, _, err := sc.Request(ctx, frame)
		return nil, err
	})
	return err
}

// ExistDB reports whether a database exists on the cluster's selected
// server.
func (c *Client) ExistDB(ctx context.Context, username, password, dbName string, dbType wire.DatabaseType) (bool, error) {
	res, err := c.runAsAdmin(ctx, username, password, func(ctx context.Context, conn transport.Connection, hdr wire.SessionHeader) (any, error) {
		sc := conn.(*transport.SyncConnection)
		frame := wire.EncodeExistDB(dbName, username, password, dbType)
		_, r, err := sc.Request(ctx, frame)
		if err != nil {
			return nil, err
		}
		payload, err := wire.DecodeExistDBPayload(r)
		if err != nil {
			return nil, err
		}
		return payload.Exist, nil
	})
	if err != nil {
		return false, err
	}
	return res.(bool), nil
}

// DropDB drops a database on the cluster's selected server.
func (c *Client) DropDB(ctx context.Context, username, password, dbName string, dbType wire.DatabaseType) error {
	_, err := c.runAsAdmin(ctx, username, password, func(ctx context.Context, conn transport.Connection, hdr wire.SessionHeader) (any, error) {
		sc := conn.(*transport.SyncConnection)
		frame := wire.EncodeDropDB(dbName, username, password, dbType)
		_, _, err := sc.Request(ctx, frame)
		return nil, err
	})
	return err
}

// ServerInfo issues a server-level introspection query, a thin convenience
// wrapper over the generic server-query path for "select from
// metadata:database"-style requests, so callers don't have to hand-build
// the statement themselves.
func (c *Client) ServerInfo(ctx context.Context, username, password string) (*wire.QueryPayload, error) {
	res, err := c.runAsAdmin(ctx, username, password, func(ctx context.Context, conn transport.Connection, hdr wire.SessionHeader) (any, error) {
		sc := conn.(*transport.SyncConnection)
		frame := wire.EncodeServerQuery(wire.StatementRequest{
			Header:   hdr,
			Language: wire.DefaultLanguage,
			SQL:      "select from metadata:database",
			Mode:     wire.ModeIdempotent,
			PageSize: wire.DefaultPageSize,
		})
		_, r, err := sc.Request(ctx, frame)
		if err != nil {
			return nil, err
		}
		return wire.DecodeQueryPayload(r)
	})
	if err != nil {
		return nil, err
	}
	return res.(*wire.QueryPayload), nil
}

// PoolFor exposes the raw connection pool for a server address, used by
// sessionpool.Pool to back a database's session pool.
func (c *Client) PoolFor(server string) *connpool.Pool {
	return c.poolFor(server)
}

// Cluster exposes the cluster selector, used by the admin status surface
// to list every known server regardless of whether it has an open pool.
func (c *Client) Cluster() *cluster.Cluster {
	return c.cluster
}

// Close drains every per-server connection pool and session pool.
func (c *Client) Close() {
	c.spMu.Lock()
	sessionPools := c.sessionPools
	c.sessionPools = make(map[string]*sessionpool.Pool)
	c.spMu.Unlock()
	for _, sp := range sessionPools {
		sp.Close()
	}

	c.mu.Lock()
	pools := c.pools
	c.pools = make(map[string]*connpool.Pool)
	c.mu.Unlock()
	for _, p := range pools {
		p.Close()
	}

	c.logger.Info("client closed")
}

// PoolStats returns a snapshot of stats for every server pool created so
// far. Servers with no pool yet (never dialed) are simply absent.
func (c *Client) PoolStats() map[string]connpool.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]connpool.Stats, len(c.pools))
	for addr, p := range c.pools {
		out[addr] = p.Stats()
	}
	return out
}

// SelectServer returns the server the cluster currently selects.
func (c *Client) SelectServer() (*cluster.Server, error) {
	return c.cluster.Select()
}

func (c *Client) sessionPoolFor(server, dbName, username, password string) *sessionpool.Pool {
	key := dbName + "@" + server
	c.spMu.Lock()
	defer c.spMu.Unlock()

	if sp, ok := c.sessionPools[key]; ok {
		return sp
	}

	rawPool := c.poolFor(server)
	openFn := func(ctx context.Context, conn transport.Connection, dbName string) (wire.SessionHeader, error) {
		sc, ok := conn.(*transport.SyncConnection)
		if !ok {
			return wire.SessionHeader{}, driverr.NewGeneric("database sessions require a synchronous connection", nil)
		}
		_, r, err := sc.Request(ctx, wire.EncodeOpen(dbName, username, password))
		if err != nil {
			return wire.SessionHeader{}, err
		}
		return wire.DecodeOpenPayload(r)
	}

	sp := sessionpool.New(rawPool, dbName, openFn)
	c.sessionPools[key] = sp
	return sp
}

// OpenDatabase acquires (or opens, if none are idle) a pooled database
// session for dbName on the cluster's selected server. Database-level
// session opening is kept separate from the admin run_as_admin sequence:
// acquire a raw connection, send Open(db,user,password), construct the
// session from the response.
func (c *Client) OpenDatabase(ctx context.Context, dbName, username, password string) (*session.Session, error) {
	server, err := c.cluster.Select()
	if err != nil {
		return nil, err
	}

	sp := c.sessionPoolFor(server.Address, dbName, username, password)
	ps, err := sp.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	return session.Open(ps, session.Options{
		Username: username,
		Password: password,
		Server:   server.Address,
		Dial:     c.cfg.Dial,
		Metrics:  c.metrics,
		Logger:   c.logger,
		Pooled:   true,
	}), nil
}

// Package session implements the per-database session: the statement
// builder, paged-cursor dispatch, the retry and transaction combinators,
// and live-query subscription. Every blocking operation here takes a
// context.Context and logs through a *slog.Logger scoped with db/session
// fields.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/orientgo/driver/internal/config"
	"github.com/orientgo/driver/internal/cursor"
	"github.com/orientgo/driver/internal/driverr"
	"github.com/orientgo/driver/internal/livequery"
	"github.com/orientgo/driver/internal/metrics"
	"github.com/orientgo/driver/internal/sessionpool"
	"github.com/orientgo/driver/internal/transport"
	"github.com/orientgo/driver/internal/wire"
)

// Session is one opened database session.
type Session struct {
	pooled *sessionpool.PooledSession
	dbName string

	username string
	password string
	server   string
	dial     config.DialOptions

	isPooled bool // if false, Close() sends a real Close on the wire

	metrics *metrics.Collector
	logger  *slog.Logger

	closed bool

	liveConn   *transport.AsyncConnection // lazily dialed, one per session
	liveHeader wire.SessionHeader          // session header negotiated on liveConn, distinct from s.pooled.Header
	liveMgr    *livequery.Manager
}

// Options configures a freshly opened Session.
type Options struct {
	Username string
	Password string
	Server   string
	Dial     config.DialOptions
	Metrics  *metrics.Collector
	Logger   *slog.Logger
	// Pooled reports whether this session came from a sessionpool.Pool;
	// Close() is then a no-op (the pool reclaims the connection) instead
	// of sending a real wire Close.
	Pooled bool
}

// Open wraps a sessionpool.PooledSession (already carrying an opened
// database session header) into a Session.
func Open(ps *sessionpool.PooledSession, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("db", ps.DBName, "session_id", ps.Header.SessionID)
	logger.Info("session opened")

	return &Session{
		pooled:   ps,
		dbName:   ps.DBName,
		username: opts.Username,
		password: opts.Password,
		server:   opts.Server,
		dial:     opts.Dial,
		isPooled: opts.Pooled,
		metrics:  opts.Metrics,
		logger:   logger,
	}
}

func (s *Session) conn() *transport.SyncConnection {
	return s.pooled.Conn.(*transport.SyncConnection)
}

func (s *Session) header() wire.SessionHeader {
	return s.pooled.Header
}

// Close tears the session down. If the session is pooled, this is a
// no-op: releasing it back to the pool (via Release, called by the owner
// of the Session) reclaims the connection. If unpooled, it sends a real
// Close request on the wire.
func (s *Session) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true

	if s.liveConn != nil {
		s.liveMgr.Close()
		_ = s.liveConn.SendAndForget(ctx, wire.EncodeClose(s.liveHeader))
		s.liveConn.Close()
	}

	if s.isPooled {
		s.logger.Debug("session closed (pooled, connection reclaimed)")
		return nil
	}

	s.logger.Info("session closed")
	return s.conn().SendAndForget(ctx, wire.EncodeClose(s.header()))
}

// Release returns a pooled session to its pool. Only valid when the
// session was opened with Options.Pooled == true.
func (s *Session) Release() {
	s.pooled.Release()
}

// Query starts an idempotent query statement (default page size 150,
// language "sql").
func (s *Session) Query(sql string) *StatementBuilder {
	return s.newBuilder(sql, wire.ModeIdempotent)
}

// Command starts a non-idempotent command statement.
func (s *Session) Command(sql string) *StatementBuilder {
	return s.newBuilder(sql, wire.ModeNonIdempotent)
}

// Script starts a script statement in the given language.
func (s *Session) Script(src, language string) *StatementBuilder {
	b := s.newBuilder(src, wire.ModeScript)
	b.language = language
	return b
}

func (s *Session) newBuilder(sql string, mode wire.ExecutionMode) *StatementBuilder {
	return &StatementBuilder{
		session:  s,
		sql:      sql,
		mode:     mode,
		language: wire.DefaultLanguage,
		pageSize: wire.DefaultPageSize,
		params:   make(map[string]wire.Value),
	}
}

// StatementBuilder accumulates a statement's sql/params/language/page
// size/mode before dispatch.
type StatementBuilder struct {
	session  *Session
	sql      string
	language string
	mode     wire.ExecutionMode
	pageSize int32
	params   map[string]wire.Value
	named    bool
	timeout  time.Duration
}

// Positional sets positional parameters "0", "1", ... and clears Named.
func (b *StatementBuilder) Positional(vals ...wire.Value) *StatementBuilder {
	b.params = make(map[string]wire.Value, len(vals))
	for i, v := range vals {
		b.params[strconv.Itoa(i)] = v
	}
	b.named = false
	return b
}

// Named sets named (:name) parameters.
func (b *StatementBuilder) Named(pairs map[string]wire.Value) *StatementBuilder {
	b.params = pairs
	b.named = true
	return b
}

// PageSize overrides the default page size (150).
func (b *StatementBuilder) PageSize(n int32) *StatementBuilder {
	b.pageSize = n
	return b
}

// Timeout wraps Run in a client-side context.WithTimeout. The wire request
// itself carries no timeout field — this is purely client-side convenience
// over the context passed to Run.
func (b *StatementBuilder) Timeout(d time.Duration) *StatementBuilder {
	b.timeout = d
	return b
}

// Run dispatches the accumulated statement and returns a paged cursor
// over the first page of results.
func (b *StatementBuilder) Run(ctx context.Context) (*cursor.Cursor, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	s := b.session
	start := time.Now()

	req := wire.StatementRequest{
		Header:   s.header(),
		Language: b.language,
		SQL:      b.sql,
		Mode:     b.mode,
		PageSize: b.pageSize,
		Params:   wire.StatementParams{Values: b.params, Named: b.named},
	}
	frame := wire.EncodeQuery(req)

	_, r, err := s.conn().Request(ctx, frame)
	if s.metrics != nil {
		s.metrics.QueryDuration(s.dbName, kindLabel(b.mode), time.Since(start))
	}
	if err != nil {
		return nil, err
	}
	payload, err := wire.DecodeQueryPayload(r)
	if err != nil {
		return nil, err
	}
	return cursor.New(s.conn(), s.header(), payload, b.pageSize, false, s.logger), nil
}

func kindLabel(mode wire.ExecutionMode) string {
	switch mode {
	case wire.ModeIdempotent:
		return "query"
	case wire.ModeNonIdempotent:
		return "command"
	case wire.ModeScript:
		return "script"
	default:
		return "unknown"
	}
}

// WithRetry invokes f(s); on success it returns immediately. On failure,
// if the error is a server-reported request error flagged retryable
// (code 3, concurrent modification) and the remaining budget is
// positive, the budget is decremented and f is re-invoked. Any other
// error propagates immediately. n == 0 is a programming error.
func (s *Session) WithRetry(n int, f func(*Session) error) error {
	if n <= 0 {
		return errors.New("session: retry budget must be positive")
	}

	budget := n
	for {
		err := f(s)
		if err == nil {
			return nil
		}

		if !errors.Is(err, driverr.ErrConcurrentModification) || budget <= 0 {
			return err
		}

		budget--
		if s.metrics != nil {
			s.metrics.RetryDispatched(s.dbName)
		}
		s.logger.Info("retrying after concurrent modification", "remaining_budget", budget)
	}
}

// Transaction wraps WithRetry(n, f'): f' issues "begin", invokes f, and
// on f's success runs "commit" and propagates any commit error to the
// caller; on f's failure it does not commit — the server auto-rolls-back
// on session teardown.
func (s *Session) Transaction(ctx context.Context, n int, f func(*Session) error) error {
	return s.WithRetry(n, func(s *Session) error {
		if _, err := s.Command("begin").Run(ctx); err != nil {
			return err
		}

		if err := f(s); err != nil {
			return err
		}

		if _, err := s.Command("commit").Run(ctx); err != nil {
			s.logger.Warn("commit failed after successful transaction body", "error", err)
			return err
		}
		return nil
	})
}

// LiveStatementBuilder accumulates a live-query subscription's sql before
// subscribing.
type LiveStatementBuilder struct {
	session  *Session
	sql      string
	language string
	params   map[string]wire.Value
	named    bool
}

// LiveQuery starts a live-query subscription builder.
func (s *Session) LiveQuery(sql string) *LiveStatementBuilder {
	return &LiveStatementBuilder{session: s, sql: sql, language: wire.DefaultLanguage, params: make(map[string]wire.Value)}
}

// Named sets named parameters on the subscription.
func (b *LiveStatementBuilder) Named(pairs map[string]wire.Value) *LiveStatementBuilder {
	b.params = pairs
	b.named = true
	return b
}

// Unsubscriber tears a live-query subscription down.
type Unsubscriber struct {
	conn      *transport.AsyncConnection
	header    wire.SessionHeader
	monitorID int32
	mgr       *livequery.Manager
}

// Unsubscribe sends UnsubscribeLiveQuery (fire-and-forget) and removes
// the local sink.
func (u *Unsubscriber) Unsubscribe(ctx context.Context) error {
	u.mgr.Unregister(u.monitorID)
	return u.conn.SendAndForget(ctx, wire.EncodeUnsubscribeLiveQuery(u.header, u.monitorID))
}

// Run subscribes and returns an Unsubscriber plus the channel of decoded
// row events. Live queries require push-frame support, so this dials a
// dedicated AsyncConnection the first time any live query runs on this
// session and reuses it for subsequent subscriptions.
func (b *LiveStatementBuilder) Run(ctx context.Context) (*Unsubscriber, <-chan livequery.Event, error) {
	s := b.session

	conn, err := s.ensureLiveConn(ctx)
	if err != nil {
		return nil, nil, err
	}

	req := wire.StatementRequest{
		Header:   s.liveHeader,
		Language: b.language,
		SQL:      b.sql,
		Mode:     wire.ModeIdempotent,
		PageSize: wire.DefaultPageSize,
		Params:   wire.StatementParams{Values: b.params, Named: b.named},
	}
	frame := wire.EncodeLiveQuery(req)

	val, _, err := conn.SendRequest(ctx, frame, func(r *wire.Reader, hdr wire.ResponseHeader) (any, error) {
		return wire.DecodeLiveQueryPayload(r)
	})
	if err != nil {
		return nil, nil, err
	}
	payload := val.(*wire.LiveQueryPayload)

	sink := s.liveMgr.Register(payload.MonitorID, 16)
	s.logger.Info("live query subscribed", "monitor_id", payload.MonitorID)

	return &Unsubscriber{conn: conn, header: s.liveHeader, monitorID: payload.MonitorID, mgr: s.liveMgr}, sink.Events, nil
}

func (s *Session) ensureLiveConn(ctx context.Context) (*transport.AsyncConnection, error) {
	if s.liveConn != nil {
		return s.liveConn, nil
	}

	conn, err := transport.DialAsync(ctx, s.server, s.dial, s.logger)
	if err != nil {
		return nil, err
	}

	mgr := livequery.New()
	conn.SetPushHandler(func(pf *wire.PushFrame) { mgr.Dispatch(pf) })

	openFrame := wire.EncodeOpen(s.dbName, s.username, s.password)
	val, _, err := conn.SendRequest(ctx, openFrame, func(r *wire.Reader, hdr wire.ResponseHeader) (any, error) {
		return wire.DecodeOpenPayload(r)
	})
	if err != nil {
		conn.Close()
		return nil, err
	}

	s.liveConn = conn
	s.liveHeader = val.(wire.SessionHeader)
	s.liveMgr = mgr
	return conn, nil
}

// Package orientgo is a Go client driver for the OrientDB binary
// network protocol (protocol version 37). It speaks the wire format
// directly over TCP — no JDBC/HTTP bridge — and exposes a cluster-aware
// connection pool, a synchronous query/command/script API, and
// subscription-based live queries.
//
// Construct a Client with Connect, open a database session with
// Client.OpenDatabase, and run statements with Session.Query/Command/
// Script. All real logic lives under internal/; this package re-exports
// the small public surface applications are expected to depend on.
package orientgo

import (
	"log/slog"

	"github.com/orientgo/driver/internal/client"
	"github.com/orientgo/driver/internal/config"
	"github.com/orientgo/driver/internal/cursor"
	"github.com/orientgo/driver/internal/livequery"
	"github.com/orientgo/driver/internal/metrics"
	"github.com/orientgo/driver/internal/session"
	"github.com/orientgo/driver/internal/wire"
)

// Client is the driver's top-level handle: a cluster selector plus one
// connection pool per server, with admin operations (CreateDB/ExistDB/
// DropDB/ServerInfo) and database session opening.
type Client = client.Client

// Session is an opened database session: statement builders, paged
// cursors, the retry/transaction combinators, and live-query
// subscription.
type Session = session.Session

// StatementBuilder accumulates a query/command/script's sql, params,
// language, page size, and mode before dispatch.
type StatementBuilder = session.StatementBuilder

// LiveStatementBuilder accumulates a live-query subscription's sql
// before subscribing.
type LiveStatementBuilder = session.LiveStatementBuilder

// Unsubscriber tears a live-query subscription down.
type Unsubscriber = session.Unsubscriber

// Cursor is a paged result cursor returned by StatementBuilder.Run.
type Cursor = cursor.Cursor

// LiveEvent is one row-level notification delivered to a live-query
// subscriber.
type LiveEvent = livequery.Event

// Document is a named record: a class, an identity, a version, and an
// unordered field set.
type Document = wire.Document

// Projection is document-shaped but carries no identity or version.
type Projection = wire.Projection

// Result is the Document|Projection sum returned by queries.
type Result = wire.Result

// Value is a tagged union over every type the server can put on the
// wire.
type Value = wire.Value

// RecordID is the primitive record identifier: (cluster, position).
type RecordID = wire.RecordID

// DatabaseType enumerates the wire strings accepted by
// CreateDB/ExistDB/DropDB ("memory", "plocal").
type DatabaseType = wire.DatabaseType

const (
	DatabaseTypeMemory = wire.DatabaseTypeMemory
	DatabaseTypePLocal = wire.DatabaseTypePLocal
)

// Config is the driver's cluster/pool/dial/log/metrics configuration,
// normally loaded from YAML with LoadConfig.
type Config = config.Config

// Metrics is a Prometheus-backed collector of connection pool, query,
// retry, and server health instrumentation. Pass the same *Metrics to
// every Connect call that should share one registry.
type Metrics = metrics.Collector

// NewMetrics constructs a Metrics collector with its own Prometheus
// registry.
func NewMetrics() *Metrics {
	return metrics.New()
}

// LoadConfig loads and validates a YAML configuration file, applying
// defaults for any unset pool/dial/log fields.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// Connect constructs a Client from an already-loaded Config. It does not
// dial any server itself — connections are established lazily, the
// first time a server's pool is used. m and logger may both be nil.
func Connect(cfg *Config, m *Metrics, logger *slog.Logger) (*Client, error) {
	return client.New(cfg, m, logger)
}

// Package cursor implements the paged result cursor returned by
// query/command/script execution: an in-memory page of records that
// transitions to Fetching and issues QueryNext once exhausted, and tears
// itself down with a best-effort QueryClose when closed early.
package cursor

import (
	"context"
	"io"
	"log/slog"

	"github.com/orientgo/driver/internal/transport"
	"github.com/orientgo/driver/internal/wire"
)

// State is the cursor's position in its page lifecycle.
type State int

const (
	// Looping is the steady state: records from the current page are
	// being handed out one at a time.
	Looping State = iota
	// Fetching marks a QueryNext in flight.
	Fetching
)

// Cursor is a paged result cursor. Not safe for concurrent use.
type Cursor struct {
	conn     *transport.SyncConnection
	header   wire.SessionHeader
	logger   *slog.Logger

	cursorID string
	pageSize int32
	records  []wire.Result
	hasNext  bool

	state  State
	closed bool

	// singlePage marks a server-query cursor: one page, no QueryNext, no
	// QueryClose on drop.
	singlePage bool
}

// New wraps the first page of a query/command/script response in a
// cursor. singlePage is true for ServerQuery responses, which never page
// and never need a teardown QueryClose.
func New(conn *transport.SyncConnection, header wire.SessionHeader, payload *wire.QueryPayload, pageSize int32, singlePage bool, logger *slog.Logger) *Cursor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cursor{
		conn:       conn,
		header:     header,
		logger:     logger,
		cursorID:   payload.CursorID,
		pageSize:   pageSize,
		records:    payload.Records,
		hasNext:    payload.HasNext,
		state:      Looping,
		singlePage: singlePage,
	}
}

// Next returns the next result in the cursor, fetching a new page via
// QueryNext if the current one is exhausted. Returns io.EOF once the
// server reports no further pages.
func (c *Cursor) Next(ctx context.Context) (wire.Result, error) {
	if c.closed {
		return wire.Result{}, io.EOF
	}

	if len(c.records) > 0 {
		r := c.records[0]
		c.records = c.records[1:]
		return r, nil
	}

	if !c.hasNext || c.singlePage {
		c.closed = true
		return wire.Result{}, io.EOF
	}

	c.state = Fetching
	frame := wire.EncodeQueryNext(c.header, c.cursorID, c.pageSize)
	_, r, err := c.conn.Request(ctx, frame)
	if err != nil {
		c.state = Looping
		return wire.Result{}, err
	}
	payload, err := wire.DecodeQueryPayload(r)
	if err != nil {
		c.state = Looping
		return wire.Result{}, err
	}

	c.records = payload.Records
	c.hasNext = payload.HasNext
	c.state = Looping

	if len(c.records) == 0 {
		c.closed = true
		return wire.Result{}, io.EOF
	}

	next := c.records[0]
	c.records = c.records[1:]
	return next, nil
}

// Close tears the cursor down. If the server still has further pages
// (hasNext), it fires a best-effort QueryClose — errors are logged and
// swallowed, matching the driver's general best-effort teardown posture.
// A cursor that already reached EOF, or a single-page server-query
// cursor, produces no QueryClose.
func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	if c.singlePage || !c.hasNext {
		return nil
	}

	frame := wire.EncodeQueryClose(c.header, c.cursorID)
	if err := c.conn.SendAndForget(context.Background(), frame); err != nil {
		c.logger.Warn("cursor teardown failed", "cursor_id", c.cursorID, "error", err)
	}
	return nil
}

var _ io.Closer = (*Cursor)(nil)

package wire

// SessionHeader is the (session_id, token) pair that prefixes every
// request except Handshake. Admin operations use the admin header
// (session_id=-1, empty token); everything else uses the session's own
// id and token.
type SessionHeader struct {
	SessionID int32
	Token     []byte
}

// AdminHeader returns the sentinel header used by Connect and any
// request issued before a database session exists.
func AdminHeader() SessionHeader {
	return SessionHeader{SessionID: -1, Token: nil}
}

func (h SessionHeader) encode(w *Writer) {
	w.WriteI32(h.SessionID)
	w.WriteBytes(h.Token)
}

// StatementParams is the parameter map threaded through
// Query/ServerQuery/LiveQuery requests, keyed by name for :name params or
// by stringified index ("0","1",...) for positional ones.
type StatementParams struct {
	Values map[string]Value
	Named  bool
}

// encodeParamDocument wraps params in a single document with one field
// "params" holding an EmbeddedMap, and returns its serialised bytes.
func encodeParamDocument(p StatementParams) []byte {
	doc := NewDocument("")
	doc.Set("params", NewEmbeddedMap(p.Values))
	dw := NewWriter()
	EncodeDocument(dw, doc)
	return dw.Bytes()
}

// StatementRequest is the common body shape of Query, ServerQuery, and
// LiveQuery.
type StatementRequest struct {
	Header   SessionHeader
	Language string
	SQL      string
	Mode     ExecutionMode
	PageSize int32
	Params   StatementParams
}

func encodeStatementBody(w *Writer, s StatementRequest) {
	w.WriteString(s.Language)
	w.WriteString(s.SQL)
	w.WriteI8(int8(s.Mode))
	w.WriteI32(s.PageSize)
	w.WriteString("") // reserved
	w.WriteBytes(encodeParamDocument(s.Params))
	w.WriteBool(s.Params.Named)
}

// EncodeHandshake builds the fire-and-forget Handshake request. No
// session header; the server never replies to it.
func EncodeHandshake() []byte {
	w := NewWriter()
	w.WriteI8(int8(OpHandshake))
	w.WriteI16(MinProtocolVersion)
	w.WriteString(ClientName)
	w.WriteString(ClientVersion)
	w.WriteI8(0)
	w.WriteI8(1)
	return w.Bytes()
}

// EncodeConnect builds the admin Connect request.
func EncodeConnect(username, password string) []byte {
	w := NewWriter()
	w.WriteI8(int8(OpConnect))
	AdminHeader().encode(w)
	w.WriteString(username)
	w.WriteString(password)
	return w.Bytes()
}

// EncodeOpen builds the database Open request.
func EncodeOpen(dbName, username, password string) []byte {
	w := NewWriter()
	w.WriteI8(int8(OpOpen))
	AdminHeader().encode(w)
	w.WriteString(dbName)
	w.WriteString(username)
	w.WriteString(password)
	return w.Bytes()
}

// EncodeCreateDB builds the admin CreateDB request.
func EncodeCreateDB(dbName, username, password string, dbType DatabaseType) []byte {
	w := NewWriter()
	w.WriteI8(int8(OpCreateDB))
	AdminHeader().encode(w)
	w.WriteString(dbName)
	w.WriteString(username)
	w.WriteString(password)
	w.WriteString(string(dbType))
	return w.Bytes()
}

// EncodeExistDB builds the admin ExistDB request.
func EncodeExistDB(dbName, username, password string, dbType DatabaseType) []byte {
	w := NewWriter()
	w.WriteI8(int8(OpExistDB))
	AdminHeader().encode(w)
	w.WriteString(dbName)
	w.WriteString(username)
	w.WriteString(password)
	w.WriteString(string(dbType))
	return w.Bytes()
}

// EncodeDropDB builds the admin DropDB request.
func EncodeDropDB(dbName, username, password string, dbType DatabaseType) []byte {
	w := NewWriter()
	w.WriteI8(int8(OpDropDB))
	AdminHeader().encode(w)
	w.WriteString(dbName)
	w.WriteString(username)
	w.WriteString(password)
	w.WriteString(string(dbType))
	return w.Bytes()
}

// EncodeClose builds the (always fire-and-forget) Close request.
func EncodeClose(h SessionHeader) []byte {
	w := NewWriter()
	w.WriteI8(int8(OpClose))
	h.encode(w)
	return w.Bytes()
}

// EncodeQuery builds a session-scoped Query/Command/Script request.
func EncodeQuery(s StatementRequest) []byte {
	w := NewWriter()
	w.WriteI8(int8(OpQuery))
	s.Header.encode(w)
	encodeStatementBody(w, s)
	return w.Bytes()
}

// EncodeServerQuery builds an admin-scoped server-level query request.
func EncodeServerQuery(s StatementRequest) []byte {
	w := NewWriter()
	w.WriteI8(int8(OpServerQuery))
	s.Header.encode(w)
	encodeStatementBody(w, s)
	return w.Bytes()
}

// EncodeLiveQuery builds a live-query subscription request.
func EncodeLiveQuery(s StatementRequest) []byte {
	w := NewWriter()
	w.WriteI8(int8(OpLiveQuery))
	s.Header.encode(w)
	encodeStatementBody(w, s)
	return w.Bytes()
}

// EncodeQueryNext builds a paged-cursor continuation request.
func EncodeQueryNext(h SessionHeader, cursorID string, pageSize int32) []byte {
	w := NewWriter()
	w.WriteI8(int8(OpQueryNext))
	h.encode(w)
	w.WriteString(cursorID)
	w.WriteI32(pageSize)
	return w.Bytes()
}

// EncodeQueryClose builds a cursor teardown request. The wire exchange
// itself solicits a reply (see expectedReplyOp); callers that treat
// cursor teardown as best-effort (cursor.Close()) choose not to block on
// or propagate that reply, not that the protocol omits one.
func EncodeQueryClose(h SessionHeader, cursorID string) []byte {
	w := NewWriter()
	w.WriteI8(int8(OpQueryClose))
	h.encode(w)
	w.WriteString(cursorID)
	return w.Bytes()
}

// EncodeUnsubscribeLiveQuery builds a (fire-and-forget) live-query
// teardown request.
func EncodeUnsubscribeLiveQuery(h SessionHeader, monitorID int32) []byte {
	w := NewWriter()
	w.WriteI8(int8(OpUnsubscribeLiveQuery))
	h.encode(w)
	w.WriteI32(monitorID)
	return w.Bytes()
}

// expectedReplyOp maps a request opcode to the op byte its synchronous
// response is expected to carry. Close (5) is intentionally absent — it
// is always fire-and-forget and never solicits a reply.
var expectedReplyOp = map[Opcode]int8{
	OpConnect:              2,
	OpOpen:                 3,
	OpCreateDB:              4,
	OpExistDB:               6,
	OpDropDB:                7,
	OpQuery:                 45,
	OpQueryClose:            46,
	OpQueryNext:             47,
	OpServerQuery:           50,
	OpLiveQuery:             100,
}

// ExpectedReplyOp reports the response op byte a request opcode expects,
// and whether that request expects any reply at all.
func ExpectedReplyOp(op Opcode) (int8, bool) {
	v, ok := expectedReplyOp[op]
	return v, ok
}

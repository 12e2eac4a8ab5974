package wire

import (
	"bytes"
	"fmt"

	"github.com/orientgo/driver/internal/driverr"
)

// ResponseHeader is the common prefix of every non-push response: status,
// session id, token, and the op byte identifying which request this
// response answers.
type ResponseHeader struct {
	Status    Status
	SessionID int32
	Token     []byte
	Op        int8
}

// DecodeStatus reads the single leading status byte that every frame —
// response or push — starts with.
func DecodeStatus(r *Reader) (Status, error) {
	b, err := r.ReadI8()
	if err != nil {
		return 0, err
	}
	return Status(b), nil
}

// DecodeResponseHeader reads the session id / token / op fields that
// follow the status byte on every OK or ERROR frame. Callers must have
// already consumed the status byte via DecodeStatus and confirmed it is
// not StatusPush.
func DecodeResponseHeader(r *Reader, status Status) (ResponseHeader, error) {
	sessionID, err := r.ReadI32()
	if err != nil {
		return ResponseHeader{}, err
	}
	token, err := r.ReadBytes()
	if err != nil {
		return ResponseHeader{}, err
	}
	op, err := r.ReadI8()
	if err != nil {
		return ResponseHeader{}, err
	}
	return ResponseHeader{Status: status, SessionID: sessionID, Token: token, Op: op}, nil
}

// DecodeConnectPayload reads the Connect response body: the server's
// freshly assigned session id and token. The response header carries the
// (-1, nil) admin sentinel the request was sent with, not the real
// session — only the body does, so callers must decode this rather than
// trust the header's SessionID/Token.
func DecodeConnectPayload(r *Reader) (SessionHeader, error) {
	sessionID, err := r.ReadI32()
	if err != nil {
		return SessionHeader{}, driverr.NewDecodeError("connect.session_id", r.Offset(), err)
	}
	token, err := r.ReadBytes()
	if err != nil {
		return SessionHeader{}, driverr.NewDecodeError("connect.token", r.Offset(), err)
	}
	return SessionHeader{SessionID: sessionID, Token: token}, nil
}

// DecodeOpenPayload reads the Open response body: same shape as Connect,
// the server's freshly assigned session id and token for the opened
// database.
func DecodeOpenPayload(r *Reader) (SessionHeader, error) {
	sessionID, err := r.ReadI32()
	if err != nil {
		return SessionHeader{}, driverr.NewDecodeError("open.session_id", r.Offset(), err)
	}
	token, err := r.ReadBytes()
	if err != nil {
		return SessionHeader{}, driverr.NewDecodeError("open.token", r.Offset(), err)
	}
	return SessionHeader{SessionID: sessionID, Token: token}, nil
}

// DecodeRequestError reads the RequestError payload present whenever
// Status == StatusError: a numeric code, an identifier, the exception
// chain, and an opaque serialized-exception blob.
func DecodeRequestError(r *Reader) (*driverr.RequestError, error) {
	code, err := r.ReadI32()
	if err != nil {
		return nil, err
	}
	identifier, err := r.ReadI32()
	if err != nil {
		return nil, err
	}
	var chain []driverr.ExceptionFrame
	for {
		more, err := r.ReadBool()
		if err != nil {
			return nil, err
		}
		typ, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		msg, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		chain = append(chain, driverr.ExceptionFrame{Type: typ, Message: msg})
		if !more {
			break
		}
	}
	blob, err := r.ReadBytes()
	if err != nil {
		return nil, err
	}
	return &driverr.RequestError{
		Code:             code,
		Identifier:       identifier,
		Chain:            chain,
		SerializedExcept: blob,
	}, nil
}

// ExistDBPayload is the response body of an ExistDB request.
type ExistDBPayload struct {
	Exist bool
}

func DecodeExistDBPayload(r *Reader) (*ExistDBPayload, error) {
	exist, err := r.ReadBool()
	if err != nil {
		return nil, err
	}
	return &ExistDBPayload{Exist: exist}, nil
}

// QueryPayload is the shared response body of Query and ServerQuery: the
// paging cursor id, whether this is a transaction-changes result, the
// optional execution plan, the page of result rows, whether another page
// is available, and execution statistics.
type QueryPayload struct {
	CursorID string
	Changes  bool
	ExecPlan *Result
	Records  []Result
	HasNext  bool
	Stats    map[string]int64
}

// DecodeQueryPayload reads a Query/ServerQuery/QueryNext response body:
// query_id (string), changes (bool), has_plan (bool) + execution_plan,
// prefetched record count (i32, unused by this driver), the result set,
// has_next (bool), query stats, and a trailing reload_metadata flag.
func DecodeQueryPayload(r *Reader) (*QueryPayload, error) {
	cursorID, err := r.ReadString()
	if err != nil {
		return nil, driverr.NewDecodeError("query.query_id", r.Offset(), err)
	}
	changes, err := r.ReadBool()
	if err != nil {
		return nil, driverr.NewDecodeError("query.changes", r.Offset(), err)
	}
	hasPlan, err := r.ReadBool()
	if err != nil {
		return nil, driverr.NewDecodeError("query.has_plan", r.Offset(), err)
	}
	var execPlan *Result
	if hasPlan {
		plan, err := readResult(r)
		if err != nil {
			return nil, err
		}
		execPlan = &plan
	}
	if _, err := r.ReadI32(); err != nil { // prefetched record count, unused
		return nil, driverr.NewDecodeError("query.prefetched", r.Offset(), err)
	}
	records, err := readResultSet(r)
	if err != nil {
		return nil, err
	}
	hasNext, err := r.ReadBool()
	if err != nil {
		return nil, driverr.NewDecodeError("query.has_next", r.Offset(), err)
	}
	stats, err := readQueryStats(r)
	if err != nil {
		return nil, err
	}
	if _, err := r.ReadBool(); err != nil { // reload_metadata, unused
		return nil, driverr.NewDecodeError("query.reload_metadata", r.Offset(), err)
	}
	return &QueryPayload{
		CursorID: cursorID,
		Changes:  changes,
		ExecPlan: execPlan,
		Records:  records,
		HasNext:  hasNext,
		Stats:    stats,
	}, nil
}

// readResultSet reads an i32-prefixed array of results.
func readResultSet(r *Reader) ([]Result, error) {
	size, err := r.ReadI32()
	if err != nil {
		return nil, driverr.NewDecodeError("query.record_count", r.Offset(), err)
	}
	records := make([]Result, 0, size)
	for i := int32(0); i < size; i++ {
		rec, err := readResult(r)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// readResult reads one tagged record: a marker byte, then either a
// length-prefixed projection buffer (marker 4) or a record identity,
// version, and length-prefixed document buffer (markers 1-3).
func readResult(r *Reader) (Result, error) {
	marker, err := r.ReadI8()
	if err != nil {
		return Result{}, driverr.NewDecodeError("query.record_marker", r.Offset(), err)
	}
	switch marker {
	case 4: // projection
		buf, err := r.ReadBytes()
		if err != nil {
			return Result{}, driverr.NewDecodeError("query.projection_buffer", r.Offset(), err)
		}
		p, err := DecodeProjection(NewReader(bytes.NewReader(buf)))
		if err != nil {
			return Result{}, err
		}
		return ResultFromProjection(p), nil
	case 1, 2, 3: // document
		if _, err := r.ReadI16(); err != nil { // class id, unused
			return Result{}, driverr.NewDecodeError("query.record_class_id", r.Offset(), err)
		}
		if _, err := r.ReadI8(); err != nil { // record type, unused
			return Result{}, driverr.NewDecodeError("query.record_type", r.Offset(), err)
		}
		identity, err := r.ReadIdentity()
		if err != nil {
			return Result{}, driverr.NewDecodeError("query.record_identity", r.Offset(), err)
		}
		version, err := r.ReadI32()
		if err != nil {
			return Result{}, driverr.NewDecodeError("query.record_version", r.Offset(), err)
		}
		buf, err := r.ReadBytes()
		if err != nil {
			return Result{}, driverr.NewDecodeError("query.document_buffer", r.Offset(), err)
		}
		d, err := DecodeDocument(NewReader(bytes.NewReader(buf)))
		if err != nil {
			return Result{}, err
		}
		d.RecordID = identity
		d.Version = version
		return ResultFromDocument(d), nil
	default:
		return Result{}, driverr.NewDecodeError("query.record_marker", r.Offset(), fmt.Errorf("unknown record marker %d", marker))
	}
}

// readQueryStats reads the i32-prefixed query-statistics section. No
// per-entry bytes follow the count on this wire path, so the driver only
// consumes the count and always returns an empty map.
func readQueryStats(r *Reader) (map[string]int64, error) {
	if _, err := r.ReadI32(); err != nil {
		return nil, driverr.NewDecodeError("query.stats_count", r.Offset(), err)
	}
	return map[string]int64{}, nil
}

// LiveQueryPayload is the response to a LiveQuery subscription request:
// the server-assigned monitor id.
type LiveQueryPayload struct {
	MonitorID int32
}

func DecodeLiveQueryPayload(r *Reader) (*LiveQueryPayload, error) {
	id, err := r.ReadI32()
	if err != nil {
		return nil, err
	}
	return &LiveQueryPayload{MonitorID: id}, nil
}

// LiveEvent is one Created/Updated/Deleted notification inside a push
// frame.
type LiveEvent struct {
	Kind   LiveEventKind
	Before *Document
	After  *Document
}

// PushFrame is a server-initiated LiveQueryResult, decoded after a
// StatusPush status byte with no session id / op byte.
type PushFrame struct {
	MonitorID int32
	Ended     bool
	Events    []LiveEvent
}

func DecodePushFrame(r *Reader) (*PushFrame, error) {
	monitorID, err := r.ReadI32()
	if err != nil {
		return nil, err
	}
	ended, err := r.ReadBool()
	if err != nil {
		return nil, err
	}
	count, err := r.ReadVarint()
	if err != nil {
		return nil, err
	}
	events := make([]LiveEvent, 0, count)
	for i := int64(0); i < count; i++ {
		kindByte, err := r.ReadI8()
		if err != nil {
			return nil, err
		}
		kind := LiveEventKind(kindByte)
		ev := LiveEvent{Kind: kind}
		switch kind {
		case LiveEventCreated:
			d, err := DecodeDocument(r)
			if err != nil {
				return nil, err
			}
			ev.After = d
		case LiveEventUpdated:
			before, err := DecodeDocument(r)
			if err != nil {
				return nil, err
			}
			after, err := DecodeDocument(r)
			if err != nil {
				return nil, err
			}
			ev.Before, ev.After = before, after
		case LiveEventDeleted:
			d, err := DecodeDocument(r)
			if err != nil {
				return nil, err
			}
			ev.Before = d
		default:
			return nil, driverr.NewDecodeError("live_event.kind", r.Offset(), fmt.Errorf("unknown live event kind %d", kind))
		}
		events = append(events, ev)
	}
	return &PushFrame{MonitorID: monitorID, Ended: ended, Events: events}, nil
}

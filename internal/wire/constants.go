// Package wire implements the OrientDB binary network protocol: framing
// primitives, the zig-zag varint used by protocol 37, document and
// projection serialisation, and the request/response codec built on top
// of them.
//
// All multi-byte integers on the wire are big-endian. There is no outer
// length prefix — a message is a concatenation of primitives, and a
// connection tells a server push apart from a response only by the
// leading status byte.
package wire

// MinProtocolVersion is the protocol version this driver speaks and
// announces in its Handshake request. The driver does not read a protocol
// version from the server, so no version is negotiated and no server is
// rejected for its version; there are no per-version encoders/decoders.
const MinProtocolVersion = 37

// Opcode identifies a request's wire operation.
type Opcode int8

const (
	OpHandshake             Opcode = 20
	OpConnect               Opcode = 2
	OpOpen                  Opcode = 3
	OpCreateDB              Opcode = 4
	OpClose                 Opcode = 5
	OpExistDB               Opcode = 6
	OpDropDB                Opcode = 7
	OpQuery                 Opcode = 45
	OpQueryClose            Opcode = 46
	OpQueryNext             Opcode = 47
	OpServerQuery           Opcode = 50
	OpLiveQuery             Opcode = 100
	OpUnsubscribeLiveQuery  Opcode = 101
)

// Status is the first byte of every response frame.
type Status int8

const (
	StatusOK    Status = 0
	StatusError Status = 1
	StatusPush  Status = 3
)

// Tag identifies the on-wire type of a Value.
type Tag int8

const (
	TagNull           Tag = -1
	TagBoolean        Tag = 0
	TagInteger        Tag = 1  // i32
	TagShort          Tag = 2  // i16
	TagLong           Tag = 3  // i64
	TagFloat          Tag = 4  // f32
	TagDouble         Tag = 5  // f64
	TagDatetime       Tag = 6
	TagString         Tag = 7
	TagEmbedded       Tag = 9
	TagEmbeddedList   Tag = 10
	TagEmbeddedSet    Tag = 11
	TagEmbeddedMap    Tag = 12
	TagLink           Tag = 13
	TagLinkList       Tag = 14
	TagLinkSet        Tag = 15
	TagByte           Tag = 17
	TagDate           Tag = 19
	TagRidBag         Tag = 22
)

// RidBagKind distinguishes an inline ridbag from a server-side tree
// descriptor.
type RidBagKind uint8

const (
	RidBagEmbedded RidBagKind = 1
	RidBagTree     RidBagKind = 2
)

// ExecutionMode is the Query/ServerQuery/LiveQuery mode byte.
type ExecutionMode int8

const (
	ModeIdempotent    ExecutionMode = 0 // query
	ModeNonIdempotent ExecutionMode = 1 // command
	ModeScript        ExecutionMode = 2 // script
)

// DatabaseType enumerates the wire strings accepted by CreateDB/ExistDB/
// DropDB.
type DatabaseType string

const (
	DatabaseTypeMemory DatabaseType = "memory"
	DatabaseTypePLocal DatabaseType = "plocal"
)

// LiveEventKind tags a push event inside a LiveQueryResult payload.
type LiveEventKind int8

const (
	LiveEventCreated LiveEventKind = 1
	LiveEventUpdated LiveEventKind = 2
	LiveEventDeleted LiveEventKind = 3
)

// DefaultPageSize and DefaultLanguage are the statement-builder defaults.
const (
	DefaultPageSize = 150
	DefaultLanguage = "sql"
)

// ClientName/ClientVersion are sent, fire-and-forget, in the Handshake
// request.
const (
	ClientName    = "orientgo-driver"
	ClientVersion = "1.0.0"
)

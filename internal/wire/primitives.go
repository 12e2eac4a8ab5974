package wire

import (
	"encoding/binary"
	"io"
	"math"
	"strconv"
	"unicode/utf8"

	"github.com/orientgo/driver/internal/driverr"
)

// RecordID is the primitive record identifier: (cluster, position). The
// empty sentinel is (-1, -1).
type RecordID struct {
	Cluster  int16
	Position int64
}

// EmptyRecordID is the wire sentinel for "no record".
var EmptyRecordID = RecordID{Cluster: -1, Position: -1}

// IsEmpty reports whether r is the empty sentinel.
func (r RecordID) IsEmpty() bool { return r.Cluster == -1 && r.Position == -1 }

func (r RecordID) String() string {
	return "#" + strconv.FormatInt(int64(r.Cluster), 10) + ":" + strconv.FormatInt(r.Position, 10)
}

// Writer accumulates a request frame as a flat byte slice. Fixed-width
// primitives (used for opcodes, session headers, i32-length fields) and
// varint primitives (used inside document/projection bodies) are both
// written into the same linear buffer: a message is a concatenation of
// primitives, with no outer length prefix.
type Writer struct {
	buf []byte
}

// NewWriter returns a Writer with a pre-sized backing buffer.
func NewWriter() *Writer { return &Writer{buf: make([]byte, 0, 256)} }

// Bytes returns the accumulated frame.
func (w *Writer) Bytes() []byte { return w.buf }

// Len reports the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

func (w *Writer) WriteI8(v int8) {
	w.buf = append(w.buf, byte(v))
}

func (w *Writer) WriteBool(v bool) {
	if v {
		w.WriteI8(1)
	} else {
		w.WriteI8(0)
	}
}

func (w *Writer) WriteI16(v int16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(v))
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) WriteI32(v int32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) WriteI64(v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) WriteF32(v float32) {
	w.WriteI32(int32(math.Float32bits(v)))
}

func (w *Writer) WriteF64(v float64) {
	w.WriteI64(int64(math.Float64bits(v)))
}

// WriteBytes writes an i32-length-prefixed byte slice. A nil slice is
// encoded as length -1 ("absent").
func (w *Writer) WriteBytes(b []byte) {
	if b == nil {
		w.WriteI32(-1)
		return
	}
	w.WriteI32(int32(len(b)))
	w.buf = append(w.buf, b...)
}

// WriteString writes an i32-length-prefixed UTF-8 string.
func (w *Writer) WriteString(s string) {
	w.WriteBytes([]byte(s))
}

// WriteIdentity writes an i16 cluster + i64 position pair.
func (w *Writer) WriteIdentity(r RecordID) {
	w.WriteI16(r.Cluster)
	w.WriteI64(r.Position)
}

// WriteVarint writes a zig-zag varint.
func (w *Writer) WriteVarint(n int64) {
	w.buf = EncodeVarint(w.buf, n)
}

// WriteVarString writes a varint-length-prefixed UTF-8 string, the form
// used inside document/projection bodies (class names, field names,
// string values).
func (w *Writer) WriteVarString(s string) {
	w.WriteVarint(int64(len(s)))
	w.buf = append(w.buf, s...)
}

// Reader reads primitives off a live byte stream (a socket, or a
// bytes.Reader over an already-buffered frame). offset tracks the
// cumulative byte position for decode-error reporting.
type Reader struct {
	r      io.Reader
	offset int
}

func NewReader(r io.Reader) *Reader { return &Reader{r: r} }

func (r *Reader) Offset() int { return r.offset }

func (r *Reader) readFull(n int) ([]byte, error) {
	buf := make([]byte, n)
	if n == 0 {
		return buf, nil
	}
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return nil, driverr.NewIOError("read", err)
	}
	r.offset += n
	return buf, nil
}

func (r *Reader) ReadI8() (int8, error) {
	b, err := r.readFull(1)
	if err != nil {
		return 0, err
	}
	return int8(b[0]), nil
}

func (r *Reader) ReadBool() (bool, error) {
	v, err := r.ReadI8()
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, driverr.NewDecodeError("bool", r.offset, errInvalidBool)
	}
}

func (r *Reader) ReadI16() (int16, error) {
	b, err := r.readFull(2)
	if err != nil {
		return 0, err
	}
	return int16(binary.BigEndian.Uint16(b)), nil
}

func (r *Reader) ReadI32() (int32, error) {
	b, err := r.readFull(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

func (r *Reader) ReadI64() (int64, error) {
	b, err := r.readFull(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

func (r *Reader) ReadF32() (float32, error) {
	v, err := r.ReadI32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(uint32(v)), nil
}

func (r *Reader) ReadF64() (float64, error) {
	v, err := r.ReadI64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(uint64(v)), nil
}

// ReadBytes reads an i32-length-prefixed byte slice. Length -1 yields a
// nil slice ("absent").
func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.ReadI32()
	if err != nil {
		return nil, err
	}
	if n == -1 {
		return nil, nil
	}
	if n < 0 {
		return nil, driverr.NewDecodeError("bytes", r.offset, errNegativeLength)
	}
	return r.readFull(int(n))
}

// ReadString reads an i32-length-prefixed UTF-8 string.
func (r *Reader) ReadString() (string, error) {
	b, err := r.ReadBytes()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", driverr.NewUTF8Error(errInvalidUTF8)
	}
	return string(b), nil
}

func (r *Reader) ReadIdentity() (RecordID, error) {
	cl, err := r.ReadI16()
	if err != nil {
		return RecordID{}, err
	}
	pos, err := r.ReadI64()
	if err != nil {
		return RecordID{}, err
	}
	return RecordID{Cluster: cl, Position: pos}, nil
}

func (r *Reader) ReadVarint() (int64, error) {
	// Varints are not a fixed width, so decode one byte at a time off the
	// stream rather than buffering ahead.
	var u uint64
	for i := 0; i < maxVarintBytes; i++ {
		b, err := r.readFull(1)
		if err != nil {
			return 0, err
		}
		u |= uint64(b[0]&0x7f) << (7 * uint(i))
		if b[0]&0x80 == 0 {
			return int64(u>>1) ^ -int64(u&1), nil
		}
	}
	return 0, driverr.NewDecodeError("varint", r.offset, errVarintTooLong)
}

// ReadVarString reads a varint-length-prefixed UTF-8 string.
func (r *Reader) ReadVarString() (string, error) {
	n, err := r.ReadVarint()
	if err != nil {
		return "", err
	}
	if n < 0 {
		return "", driverr.NewDecodeError("varstring", r.offset, errNegativeLength)
	}
	b, err := r.readFull(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", driverr.NewUTF8Error(errInvalidUTF8)
	}
	return string(b), nil
}

type invalidBoolErr struct{}

func (invalidBoolErr) Error() string { return "boolean must be 0 or 1" }

type negativeLengthErr struct{}

func (negativeLengthErr) Error() string { return "negative length prefix" }

type invalidUTF8Err struct{}

func (invalidUTF8Err) Error() string { return "invalid UTF-8 byte sequence" }

var (
	errInvalidBool    = invalidBoolErr{}
	errNegativeLength = negativeLengthErr{}
	errInvalidUTF8    = invalidUTF8Err{}
)

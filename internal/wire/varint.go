package wire

import "github.com/orientgo/driver/internal/driverr"

// maxVarintBytes is the longest a 64-bit zig-zag varint can legally be;
// a tenth continuation byte means the stream is malformed.
const maxVarintBytes = 10

// EncodeVarint zig-zag encodes a signed 64-bit integer and appends its
// 7-bits-per-byte varint form to dst, returning the extended slice.
//
// Zig-zag (not two's-complement varint) is mandatory: the server expects
// ((n<<1) XOR (n>>63)) treated as unsigned, so that small negative
// numbers stay small on the wire.
func EncodeVarint(dst []byte, n int64) []byte {
	u := uint64((n << 1) ^ (n >> 63))
	for {
		b := byte(u & 0x7f)
		u >>= 7
		if u != 0 {
			dst = append(dst, b|0x80)
		} else {
			dst = append(dst, b)
			return dst
		}
	}
}

// DecodeVarint reads a zig-zag varint from src starting at offset and
// returns the decoded value plus the number of bytes consumed.
func DecodeVarint(src []byte, offset int) (int64, int, error) {
	var u uint64
	for i := 0; i < maxVarintBytes; i++ {
		if offset+i >= len(src) {
			return 0, 0, driverr.NewDecodeError("varint", offset, errShortVarintBuf)
		}
		b := src[offset+i]
		u |= uint64(b&0x7f) << (7 * uint(i))
		if b&0x80 == 0 {
			n := int64(u>>1) ^ -int64(u&1)
			return n, i + 1, nil
		}
	}
	return 0, 0, driverr.NewDecodeError("varint", offset, errVarintTooLong)
}

var (
	errShortVarintBuf = shortBufErr{}
	errVarintTooLong  = tooLongErr{}
)

type shortBufErr struct{}

func (shortBufErr) Error() string { return "unexpected end of buffer" }

type tooLongErr struct{}

func (tooLongErr) Error() string { return "varint did not terminate within 10 bytes" }

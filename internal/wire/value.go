package wire

import (
	"time"

	"github.com/orientgo/driver/internal/driverr"
)

// Value is a tagged union over every type the server can put on the
// wire. Only the fields relevant to Tag are populated. The zero Value
// has Tag 0 (TagBoolean, false); use Null() for a null value.
type Value struct {
	Tag Tag

	Bool    bool
	Int32   int32
	Int16   int16
	Int64   int64
	Float32 float32
	Float64 float64
	Byte    int8
	Str     string
	Time    time.Time // Datetime (ms precision) or Date (day precision)
	Link    RecordID
	List    []Value          // EmbeddedList / EmbeddedSet
	Map     map[string]Value // EmbeddedMap
	Doc     *Document        // Embedded
	Links   []RecordID       // LinkList / LinkSet
	Bag     *RidBag
}

// RidBag is the compact representation of a (possibly large) set of
// record ids (spec GLOSSARY). Inline bags carry the ids directly; tree
// bags are a pointer to a server-side structure and this driver decodes
// only the size hint, never the backing pages.
type RidBag struct {
	UUID1, UUID2 int64
	Kind         RidBagKind
	Inline       []RecordID // populated when Kind == RidBagEmbedded
	TreeSize     int32      // populated when Kind == RidBagTree
}

func Null() Value                     { return Value{Tag: TagNull} }
func NewBool(b bool) Value            { return Value{Tag: TagBoolean, Bool: b} }
func NewInt32(v int32) Value          { return Value{Tag: TagInteger, Int32: v} }
func NewInt16(v int16) Value          { return Value{Tag: TagShort, Int16: v} }
func NewInt64(v int64) Value          { return Value{Tag: TagLong, Int64: v} }
func NewFloat32(v float32) Value      { return Value{Tag: TagFloat, Float32: v} }
func NewFloat64(v float64) Value      { return Value{Tag: TagDouble, Float64: v} }
func NewByte(v int8) Value            { return Value{Tag: TagByte, Byte: v} }
func NewString(s string) Value        { return Value{Tag: TagString, Str: s} }
func NewDatetime(t time.Time) Value   { return Value{Tag: TagDatetime, Time: t} }
func NewDate(t time.Time) Value       { return Value{Tag: TagDate, Time: t} }
func NewLink(r RecordID) Value        { return Value{Tag: TagLink, Link: r} }
func NewLinkList(rs []RecordID) Value { return Value{Tag: TagLinkList, Links: rs} }
func NewLinkSet(rs []RecordID) Value  { return Value{Tag: TagLinkSet, Links: rs} }
func NewEmbeddedList(vs []Value) Value { return Value{Tag: TagEmbeddedList, List: vs} }
func NewEmbeddedSet(vs []Value) Value  { return Value{Tag: TagEmbeddedSet, List: vs} }
func NewEmbeddedMap(m map[string]Value) Value {
	return Value{Tag: TagEmbeddedMap, Map: m}
}
func NewEmbedded(d *Document) Value { return Value{Tag: TagEmbedded, Doc: d} }
func NewRidBag(b *RidBag) Value     { return Value{Tag: TagRidBag, Bag: b} }

// IsNull reports whether the value is the null tag.
func (v Value) IsNull() bool { return v.Tag == TagNull }

// AsString extracts a string value, returning a ConversionError if the
// tag does not carry one.
func (v Value) AsString() (string, error) {
	if v.Tag != TagString {
		return "", driverr.NewConversionError("", "string", tagName(v.Tag))
	}
	return v.Str, nil
}

// AsInt32 extracts an int32 value from any integer-shaped tag.
func (v Value) AsInt32() (int32, error) {
	switch v.Tag {
	case TagInteger:
		return v.Int32, nil
	case TagShort:
		return int32(v.Int16), nil
	case TagLong:
		return int32(v.Int64), nil
	case TagByte:
		return int32(v.Byte), nil
	default:
		return 0, driverr.NewConversionError("", "int32", tagName(v.Tag))
	}
}

// AsInt64 extracts an int64 value from any integer-shaped tag.
func (v Value) AsInt64() (int64, error) {
	switch v.Tag {
	case TagLong:
		return v.Int64, nil
	case TagInteger:
		return int64(v.Int32), nil
	case TagShort:
		return int64(v.Int16), nil
	case TagByte:
		return int64(v.Byte), nil
	default:
		return 0, driverr.NewConversionError("", "int64", tagName(v.Tag))
	}
}

// AsBool extracts a boolean value.
func (v Value) AsBool() (bool, error) {
	if v.Tag != TagBoolean {
		return false, driverr.NewConversionError("", "bool", tagName(v.Tag))
	}
	return v.Bool, nil
}

// AsLink extracts a link (RecordID) value.
func (v Value) AsLink() (RecordID, error) {
	if v.Tag != TagLink {
		return RecordID{}, driverr.NewConversionError("", "link", tagName(v.Tag))
	}
	return v.Link, nil
}

func tagName(t Tag) string {
	switch t {
	case TagNull:
		return "null"
	case TagBoolean:
		return "boolean"
	case TagInteger:
		return "integer"
	case TagShort:
		return "short"
	case TagLong:
		return "long"
	case TagFloat:
		return "float"
	case TagDouble:
		return "double"
	case TagDatetime:
		return "datetime"
	case TagString:
		return "string"
	case TagEmbedded:
		return "embedded"
	case TagEmbeddedList:
		return "embedded_list"
	case TagEmbeddedSet:
		return "embedded_set"
	case TagEmbeddedMap:
		return "embedded_map"
	case TagLink:
		return "link"
	case TagLinkList:
		return "link_list"
	case TagLinkSet:
		return "link_set"
	case TagByte:
		return "byte"
	case TagDate:
		return "date"
	case TagRidBag:
		return "ridbag"
	default:
		return "unknown"
	}
}

// Equal reports deep value equality, used by the codec round-trip tests.
func (v Value) Equal(o Value) bool {
	if v.Tag != o.Tag {
		return false
	}
	switch v.Tag {
	case TagNull:
		return true
	case TagBoolean:
		return v.Bool == o.Bool
	case TagInteger:
		return v.Int32 == o.Int32
	case TagShort:
		return v.Int16 == o.Int16
	case TagLong:
		return v.Int64 == o.Int64
	case TagFloat:
		return v.Float32 == o.Float32
	case TagDouble:
		return v.Float64 == o.Float64
	case TagByte:
		return v.Byte == o.Byte
	case TagString:
		return v.Str == o.Str
	case TagDatetime:
		return v.Time.UnixMilli() == o.Time.UnixMilli()
	case TagDate:
		return v.Time.Truncate(24 * time.Hour).Equal(o.Time.Truncate(24 * time.Hour))
	case TagLink:
		return v.Link == o.Link
	case TagLinkList, TagLinkSet:
		if len(v.Links) != len(o.Links) {
			return false
		}
		for i := range v.Links {
			if v.Links[i] != o.Links[i] {
				return false
			}
		}
		return true
	case TagEmbeddedList, TagEmbeddedSet:
		if len(v.List) != len(o.List) {
			return false
		}
		for i := range v.List {
			if !v.List[i].Equal(o.List[i]) {
				return false
			}
		}
		return true
	case TagEmbeddedMap:
		if len(v.Map) != len(o.Map) {
			return false
		}
		for k, vv := range v.Map {
			ov, ok := o.Map[k]
			if !ok || !vv.Equal(ov) {
				return false
			}
		}
		return true
	case TagEmbedded:
		if v.Doc == nil || o.Doc == nil {
			return v.Doc == o.Doc
		}
		return v.Doc.Equal(*o.Doc)
	case TagRidBag:
		return v.Bag.Equal(o.Bag)
	default:
		return false
	}
}

// Equal reports deep equality between two ridbags.
func (b *RidBag) Equal(o *RidBag) bool {
	if b == nil || o == nil {
		return b == o
	}
	if b.UUID1 != o.UUID1 || b.UUID2 != o.UUID2 || b.Kind != o.Kind {
		return false
	}
	if b.Kind == RidBagTree {
		return b.TreeSize == o.TreeSize
	}
	if len(b.Inline) != len(o.Inline) {
		return false
	}
	for i := range b.Inline {
		if b.Inline[i] != o.Inline[i] {
			return false
		}
	}
	return true
}

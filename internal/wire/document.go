package wire

import (
	"fmt"
	"time"

	"github.com/orientgo/driver/internal/driverr"
)

// Document is a named record: a class, an identity, a version, and an
// unordered field set. The empty class name is legal — it denotes an
// anonymous/embedded document.
type Document struct {
	ClassName string
	RecordID  RecordID
	Version   int32
	Fields    map[string]Value
}

// NewDocument returns an empty document for the given class (use "" for
// an anonymous/embedded document).
func NewDocument(className string) *Document {
	return &Document{ClassName: className, RecordID: EmptyRecordID, Fields: map[string]Value{}}
}

// Get returns a field uniformly, just like Projection.Get.
func (d *Document) Get(name string) (Value, bool) {
	v, ok := d.Fields[name]
	return v, ok
}

// Set assigns a field value, creating the field map if needed.
func (d *Document) Set(name string, v Value) {
	if d.Fields == nil {
		d.Fields = map[string]Value{}
	}
	d.Fields[name] = v
}

// Equal reports deep equality, ignoring field iteration order — the
// field set is unordered.
func (d Document) Equal(o Document) bool {
	if d.ClassName != o.ClassName || d.RecordID != o.RecordID || d.Version != o.Version {
		return false
	}
	if len(d.Fields) != len(o.Fields) {
		return false
	}
	for k, v := range d.Fields {
		ov, ok := o.Fields[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Projection is document-shaped but carries no identity or version.
type Projection struct {
	Fields map[string]Value
}

func NewProjection() *Projection {
	return &Projection{Fields: map[string]Value{}}
}

func (p *Projection) Get(name string) (Value, bool) {
	v, ok := p.Fields[name]
	return v, ok
}

func (p *Projection) Set(name string, v Value) {
	if p.Fields == nil {
		p.Fields = map[string]Value{}
	}
	p.Fields[name] = v
}

func (p Projection) Equal(o Projection) bool {
	if len(p.Fields) != len(o.Fields) {
		return false
	}
	for k, v := range p.Fields {
		ov, ok := o.Fields[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Result is the Document|Projection sum returned by queries. Both sides
// support Get(name) uniformly.
type Result struct {
	Doc  *Document
	Proj *Projection
}

func ResultFromDocument(d *Document) Result  { return Result{Doc: d} }
func ResultFromProjection(p *Projection) Result { return Result{Proj: p} }

// Get looks up a field on whichever side of the sum is populated.
func (r Result) Get(name string) (Value, bool) {
	if r.Doc != nil {
		return r.Doc.Get(name)
	}
	if r.Proj != nil {
		return r.Proj.Get(name)
	}
	return Value{}, false
}

// GetString looks up name and extracts it as a string, returning a
// *driverr.FieldError if the field is absent or a *driverr.ConversionError
// if it is present under a different type.
func (r Result) GetString(name string) (string, error) {
	v, ok := r.Get(name)
	if !ok {
		return "", driverr.NewFieldError(name)
	}
	s, err := v.AsString()
	if err != nil {
		return "", driverr.NewConversionError(name, "string", tagName(v.Tag))
	}
	return s, nil
}

// GetInt32 looks up name and extracts it as an int32.
func (r Result) GetInt32(name string) (int32, error) {
	v, ok := r.Get(name)
	if !ok {
		return 0, driverr.NewFieldError(name)
	}
	n, err := v.AsInt32()
	if err != nil {
		return 0, driverr.NewConversionError(name, "int32", tagName(v.Tag))
	}
	return n, nil
}

// GetInt64 looks up name and extracts it as an int64.
func (r Result) GetInt64(name string) (int64, error) {
	v, ok := r.Get(name)
	if !ok {
		return 0, driverr.NewFieldError(name)
	}
	n, err := v.AsInt64()
	if err != nil {
		return 0, driverr.NewConversionError(name, "int64", tagName(v.Tag))
	}
	return n, nil
}

// GetBool looks up name and extracts it as a bool.
func (r Result) GetBool(name string) (bool, error) {
	v, ok := r.Get(name)
	if !ok {
		return false, driverr.NewFieldError(name)
	}
	b, err := v.AsBool()
	if err != nil {
		return false, driverr.NewConversionError(name, "bool", tagName(v.Tag))
	}
	return b, nil
}

// GetLink looks up name and extracts it as a RecordID.
func (r Result) GetLink(name string) (RecordID, error) {
	v, ok := r.Get(name)
	if !ok {
		return RecordID{}, driverr.NewFieldError(name)
	}
	rid, err := v.AsLink()
	if err != nil {
		return RecordID{}, driverr.NewConversionError(name, "link", tagName(v.Tag))
	}
	return rid, nil
}

// --- serialisation (protocol 37) ---

// EncodeDocument appends a document's wire form to w:
// class_name (varint-length string), field count (varint), then for
// each field: name (varint-length string), type tag (i8), value body.
func EncodeDocument(w *Writer, d *Document) {
	w.WriteVarString(d.ClassName)
	w.WriteVarint(int64(len(d.Fields)))
	for name, v := range d.Fields {
		w.WriteVarString(name)
		w.WriteI8(int8(v.Tag))
		encodeValueBody(w, v)
	}
}

// EncodeProjection appends a projection's wire form: the same framing as
// a document minus class/identity, plus a discarded meta section.
func EncodeProjection(w *Writer, p *Projection) {
	w.WriteVarint(int64(len(p.Fields)))
	for name, v := range p.Fields {
		w.WriteVarString(name)
		w.WriteI8(int8(v.Tag))
		encodeValueBody(w, v)
	}
	w.WriteVarint(0) // meta_count: this driver never attaches result metadata
}

func encodeValueBody(w *Writer, v Value) {
	switch v.Tag {
	case TagNull:
		// empty body
	case TagBoolean:
		w.WriteBool(v.Bool)
	case TagInteger:
		w.WriteVarint(int64(v.Int32))
	case TagShort:
		w.WriteVarint(int64(v.Int16))
	case TagLong:
		w.WriteVarint(v.Int64)
	case TagFloat:
		w.WriteF32(v.Float32)
	case TagDouble:
		w.WriteF64(v.Float64)
	case TagDatetime:
		w.WriteVarint(v.Time.UnixMilli())
	case TagString:
		w.WriteVarString(v.Str)
	case TagEmbedded:
		EncodeDocument(w, v.Doc)
	case TagEmbeddedList, TagEmbeddedSet:
		w.WriteVarint(int64(len(v.List)))
		for _, elem := range v.List {
			w.WriteI8(int8(elem.Tag))
			encodeValueBody(w, elem)
		}
	case TagEmbeddedMap:
		w.WriteVarint(int64(len(v.Map)))
		for name, elem := range v.Map {
			w.WriteVarString(name)
			w.WriteI8(int8(elem.Tag))
			encodeValueBody(w, elem)
		}
	case TagLink:
		w.WriteVarint(int64(v.Link.Cluster))
		w.WriteVarint(v.Link.Position)
	case TagLinkList, TagLinkSet:
		w.WriteVarint(int64(len(v.Links)))
		for _, r := range v.Links {
			w.WriteVarint(int64(r.Cluster))
			w.WriteVarint(r.Position)
		}
	case TagByte:
		w.WriteI8(v.Byte)
	case TagDate:
		days := v.Time.Truncate(24*time.Hour).Unix() / 86400
		w.WriteVarint(days)
	case TagRidBag:
		encodeRidBag(w, v.Bag)
	}
}

func encodeRidBag(w *Writer, b *RidBag) {
	w.WriteI64(b.UUID1)
	w.WriteI64(b.UUID2)
	w.WriteI8(int8(b.Kind))
	if b.Kind == RidBagEmbedded {
		w.WriteVarint(int64(len(b.Inline)))
		for _, r := range b.Inline {
			w.WriteVarint(int64(r.Cluster))
			w.WriteVarint(r.Position)
		}
		return
	}
	// Tree descriptor: file_id, page_index, page_offset, bag_size,
	// changes_size. This driver never originates a tree bag, but encodes
	// one faithfully if a caller round-trips a decoded tree value.
	w.WriteVarint(0)
	w.WriteVarint(0)
	w.WriteVarint(0)
	w.WriteVarint(int64(b.TreeSize))
	w.WriteVarint(0)
}

// DecodeDocument reads a document in protocol-37 wire form from r.
func DecodeDocument(r *Reader) (*Document, error) {
	className, err := r.ReadVarString()
	if err != nil {
		return nil, driverr.NewDecodeError("document.class_name", r.Offset(), err)
	}
	count, err := r.ReadVarint()
	if err != nil {
		return nil, driverr.NewDecodeError("document.field_count", r.Offset(), err)
	}
	d := &Document{ClassName: className, RecordID: EmptyRecordID, Fields: make(map[string]Value, count)}
	for i := int64(0); i < count; i++ {
		name, err := r.ReadVarString()
		if err != nil {
			return nil, driverr.NewDecodeError("document.field_name", r.Offset(), err)
		}
		v, err := decodeValue(r)
		if err != nil {
			return nil, fmt.Errorf("document field %q: %w", name, err)
		}
		d.Fields[name] = v
	}
	return d, nil
}

// DecodeProjection reads a projection in protocol-37 wire form from r,
// discarding the trailing meta section.
func DecodeProjection(r *Reader) (*Projection, error) {
	count, err := r.ReadVarint()
	if err != nil {
		return nil, driverr.NewDecodeError("projection.field_count", r.Offset(), err)
	}
	p := &Projection{Fields: make(map[string]Value, count)}
	for i := int64(0); i < count; i++ {
		name, err := r.ReadVarString()
		if err != nil {
			return nil, driverr.NewDecodeError("projection.field_name", r.Offset(), err)
		}
		v, err := decodeValue(r)
		if err != nil {
			return nil, fmt.Errorf("projection field %q: %w", name, err)
		}
		p.Fields[name] = v
	}
	metaCount, err := r.ReadVarint()
	if err != nil {
		return nil, driverr.NewDecodeError("projection.meta_count", r.Offset(), err)
	}
	for i := int64(0); i < metaCount; i++ {
		if _, err := r.ReadVarString(); err != nil {
			return nil, driverr.NewDecodeError("projection.meta_name", r.Offset(), err)
		}
		if _, err := decodeValue(r); err != nil {
			return nil, fmt.Errorf("projection meta field: %w", err)
		}
	}
	return p, nil
}

func decodeValue(r *Reader) (Value, error) {
	tagByte, err := r.ReadI8()
	if err != nil {
		return Value{}, err
	}
	tag := Tag(tagByte)
	return decodeValueBody(r, tag)
}

func decodeValueBody(r *Reader, tag Tag) (Value, error) {
	switch tag {
	case TagNull:
		return Null(), nil
	case TagBoolean:
		b, err := r.ReadBool()
		return Value{Tag: tag, Bool: b}, err
	case TagInteger:
		n, err := r.ReadVarint()
		return Value{Tag: tag, Int32: int32(n)}, err
	case TagShort:
		n, err := r.ReadVarint()
		return Value{Tag: tag, Int16: int16(n)}, err
	case TagLong:
		n, err := r.ReadVarint()
		return Value{Tag: tag, Int64: n}, err
	case TagFloat:
		f, err := r.ReadF32()
		return Value{Tag: tag, Float32: f}, err
	case TagDouble:
		f, err := r.ReadF64()
		return Value{Tag: tag, Float64: f}, err
	case TagDatetime:
		ms, err := r.ReadVarint()
		if err != nil {
			return Value{}, err
		}
		return Value{Tag: tag, Time: time.UnixMilli(ms).UTC()}, nil
	case TagString:
		s, err := r.ReadVarString()
		return Value{Tag: tag, Str: s}, err
	case TagEmbedded:
		d, err := DecodeDocument(r)
		if err != nil {
			return Value{}, err
		}
		return Value{Tag: tag, Doc: d}, nil
	case TagEmbeddedList, TagEmbeddedSet:
		n, err := r.ReadVarint()
		if err != nil {
			return Value{}, err
		}
		list := make([]Value, 0, n)
		for i := int64(0); i < n; i++ {
			v, err := decodeValue(r)
			if err != nil {
				return Value{}, err
			}
			list = append(list, v)
		}
		return Value{Tag: tag, List: list}, nil
	case TagEmbeddedMap:
		n, err := r.ReadVarint()
		if err != nil {
			return Value{}, err
		}
		m := make(map[string]Value, n)
		for i := int64(0); i < n; i++ {
			name, err := r.ReadVarString()
			if err != nil {
				return Value{}, err
			}
			v, err := decodeValue(r)
			if err != nil {
				return Value{}, err
			}
			m[name] = v
		}
		return Value{Tag: tag, Map: m}, nil
	case TagLink:
		cl, err := r.ReadVarint()
		if err != nil {
			return Value{}, err
		}
		pos, err := r.ReadVarint()
		if err != nil {
			return Value{}, err
		}
		return Value{Tag: tag, Link: RecordID{Cluster: int16(cl), Position: pos}}, nil
	case TagLinkList, TagLinkSet:
		n, err := r.ReadVarint()
		if err != nil {
			return Value{}, err
		}
		links := make([]RecordID, 0, n)
		for i := int64(0); i < n; i++ {
			cl, err := r.ReadVarint()
			if err != nil {
				return Value{}, err
			}
			pos, err := r.ReadVarint()
			if err != nil {
				return Value{}, err
			}
			links = append(links, RecordID{Cluster: int16(cl), Position: pos})
		}
		return Value{Tag: tag, Links: links}, nil
	case TagByte:
		b, err := r.ReadI8()
		return Value{Tag: tag, Byte: b}, err
	case TagDate:
		days, err := r.ReadVarint()
		if err != nil {
			return Value{}, err
		}
		return Value{Tag: tag, Time: time.Unix(days*86400, 0).UTC()}, nil
	case TagRidBag:
		b, err := decodeRidBag(r)
		if err != nil {
			return Value{}, err
		}
		return Value{Tag: tag, Bag: b}, nil
	default:
		return Value{}, driverr.NewDecodeError("value.tag", r.Offset(), fmt.Errorf("unknown type tag %d", tag))
	}
}

func decodeRidBag(r *Reader) (*RidBag, error) {
	u1, err := r.ReadI64()
	if err != nil {
		return nil, err
	}
	u2, err := r.ReadI64()
	if err != nil {
		return nil, err
	}
	kindByte, err := r.ReadI8()
	if err != nil {
		return nil, err
	}
	kind := RidBagKind(kindByte)
	b := &RidBag{UUID1: u1, UUID2: u2, Kind: kind}
	switch kind {
	case RidBagEmbedded:
		n, err := r.ReadVarint()
		if err != nil {
			return nil, err
		}
		b.Inline = make([]RecordID, 0, n)
		for i := int64(0); i < n; i++ {
			cl, err := r.ReadVarint()
			if err != nil {
				return nil, err
			}
			pos, err := r.ReadVarint()
			if err != nil {
				return nil, err
			}
			b.Inline = append(b.Inline, RecordID{Cluster: int16(cl), Position: pos})
		}
		return b, nil
	case RidBagTree:
		// file_id, page_index, page_offset, bag_size, changes_size.
		// Decode to Tree(bag_size) and skip changes.
		if _, err := r.ReadVarint(); err != nil { // file_id
			return nil, err
		}
		if _, err := r.ReadVarint(); err != nil { // page_index
			return nil, err
		}
		if _, err := r.ReadVarint(); err != nil { // page_offset
			return nil, err
		}
		bagSize, err := r.ReadVarint()
		if err != nil {
			return nil, err
		}
		if _, err := r.ReadVarint(); err != nil { // changes_size
			return nil, err
		}
		b.TreeSize = int32(bagSize)
		return b, nil
	default:
		return nil, driverr.NewDecodeError("ridbag.kind", r.Offset(), fmt.Errorf("unknown ridbag kind %d", kind))
	}
}

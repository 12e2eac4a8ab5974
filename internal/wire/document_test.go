package wire

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/orientgo/driver/internal/driverr"
)

func roundTripDocument(t *testing.T, d *Document) *Document {
	t.Helper()
	w := NewWriter()
	EncodeDocument(w, d)
	r := NewReader(bytes.NewReader(w.Bytes()))
	got, err := DecodeDocument(r)
	if err != nil {
		t.Fatalf("DecodeDocument: %v", err)
	}
	return got
}

func TestDocumentRoundTripScalarFields(t *testing.T) {
	d := NewDocument("Person")
	d.Set("name", NewString("ada"))
	d.Set("age", NewInt32(36))
	d.Set("balance", NewFloat64(12.5))
	d.Set("active", NewBool(true))
	d.Set("nothing", Null())
	d.Set("tag", NewByte(9))

	got := roundTripDocument(t, d)
	// RecordID/Version aren't part of the wire form; Equal compares them
	// too, so reset them to the decoded zero value before comparing.
	d.RecordID = EmptyRecordID
	d.Version = 0
	if !d.Equal(*got) {
		t.Fatalf("round-trip mismatch:\nwant %+v\ngot  %+v", d, got)
	}
}

func TestDocumentRoundTripEmbeddedAndLinks(t *testing.T) {
	child := NewDocument("Address")
	child.Set("city", NewString("Chennai"))

	d := NewDocument("Person")
	d.Set("home", NewEmbedded(child))
	d.Set("friends", NewLinkList([]RecordID{{Cluster: 10, Position: 1}, {Cluster: 10, Position: 2}}))
	d.Set("self", NewLink(RecordID{Cluster: 5, Position: 42}))
	d.Set("tags", NewEmbeddedList([]Value{NewString("a"), NewString("b")}))
	d.Set("meta", NewEmbeddedMap(map[string]Value{"k": NewInt32(1)}))

	got := roundTripDocument(t, d)
	d.RecordID, d.Version = EmptyRecordID, 0
	if !d.Equal(*got) {
		t.Fatalf("round-trip mismatch:\nwant %+v\ngot  %+v", d, got)
	}
}

func TestDocumentRoundTripDatetimeAndDate(t *testing.T) {
	d := NewDocument("Event")
	d.Set("when", NewDatetime(time.UnixMilli(1700000000123).UTC()))
	d.Set("day", NewDate(time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)))

	got := roundTripDocument(t, d)
	d.RecordID, d.Version = EmptyRecordID, 0
	if !d.Equal(*got) {
		t.Fatalf("round-trip mismatch:\nwant %+v\ngot  %+v", d, got)
	}
}

func TestDocumentRoundTripInlineRidBag(t *testing.T) {
	d := NewDocument("Node")
	d.Set("edges", NewRidBag(&RidBag{
		UUID1:  1,
		UUID2:  2,
		Kind:   RidBagEmbedded,
		Inline: []RecordID{{Cluster: 3, Position: 7}},
	}))

	got := roundTripDocument(t, d)
	d.RecordID, d.Version = EmptyRecordID, 0
	if !d.Equal(*got) {
		t.Fatalf("round-trip mismatch:\nwant %+v\ngot  %+v", d, got)
	}
}

func TestDocumentRoundTripTreeRidBag(t *testing.T) {
	d := NewDocument("Node")
	d.Set("edges", NewRidBag(&RidBag{UUID1: 9, UUID2: 10, Kind: RidBagTree, TreeSize: 100}))

	got := roundTripDocument(t, d)
	d.RecordID, d.Version = EmptyRecordID, 0
	if !d.Equal(*got) {
		t.Fatalf("round-trip mismatch:\nwant %+v\ngot  %+v", d, got)
	}
}

func TestProjectionRoundTrip(t *testing.T) {
	p := NewProjection()
	p.Set("count", NewInt64(100))
	p.Set("label", NewString("total"))

	w := NewWriter()
	EncodeProjection(w, p)
	r := NewReader(bytes.NewReader(w.Bytes()))
	got, err := DecodeProjection(r)
	if err != nil {
		t.Fatalf("DecodeProjection: %v", err)
	}
	if !p.Equal(*got) {
		t.Fatalf("round-trip mismatch:\nwant %+v\ngot  %+v", p, got)
	}
}

func TestResultGetDispatchesToUnderlyingSide(t *testing.T) {
	d := NewDocument("X")
	d.Set("a", NewInt32(1))
	r := ResultFromDocument(d)
	if v, ok := r.Get("a"); !ok || v.Int32 != 1 {
		t.Fatalf("Result.Get over Document: %v, %v", v, ok)
	}

	p := NewProjection()
	p.Set("b", NewInt32(2))
	r2 := ResultFromProjection(p)
	if v, ok := r2.Get("b"); !ok || v.Int32 != 2 {
		t.Fatalf("Result.Get over Projection: %v, %v", v, ok)
	}

	var empty Result
	if _, ok := empty.Get("anything"); ok {
		t.Fatal("empty Result.Get should report ok=false")
	}
}

func TestResultTypedAccessors(t *testing.T) {
	d := NewDocument("X")
	d.Set("name", NewString("ada"))
	d.Set("age", NewInt32(30))
	r := ResultFromDocument(d)

	name, err := r.GetString("name")
	if err != nil || name != "ada" {
		t.Fatalf("GetString: %q, %v", name, err)
	}
	age, err := r.GetInt32("age")
	if err != nil || age != 30 {
		t.Fatalf("GetInt32: %d, %v", age, err)
	}

	if _, err := r.GetString("missing"); !errors.As(err, new(*driverr.FieldError)) {
		t.Fatalf("expected a FieldError for a missing field, got %v", err)
	}
	if _, err := r.GetString("age"); !errors.As(err, new(*driverr.ConversionError)) {
		t.Fatalf("expected a ConversionError for a mistyped field, got %v", err)
	}
}

func TestDecodeValueRejectsUnknownTag(t *testing.T) {
	w := NewWriter()
	w.WriteI8(120) // not a valid Tag
	r := NewReader(bytes.NewReader(w.Bytes()))
	if _, err := decodeValue(r); err == nil {
		t.Fatal("expected error for an unrecognized type tag")
	}
}

func TestValueConversionHelpers(t *testing.T) {
	if _, err := NewString("x").AsInt32(); err == nil {
		t.Fatal("expected conversion error extracting int32 from a string value")
	}
	if v, err := NewInt16(7).AsInt64(); err != nil || v != 7 {
		t.Fatalf("AsInt64 widening from short: %v, %v", v, err)
	}
	link := NewLink(RecordID{Cluster: 1, Position: 2})
	if v, err := link.AsLink(); err != nil || v != (RecordID{Cluster: 1, Position: 2}) {
		t.Fatalf("AsLink: %v, %v", v, err)
	}
}

package wire

import (
	"bytes"
	"testing"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	w := NewWriter()
	w.WriteI8(-7)
	w.WriteBool(true)
	w.WriteI16(-1234)
	w.WriteI32(987654321)
	w.WriteI64(-9223372036854775800)
	w.WriteF32(3.5)
	w.WriteF64(2.71828)
	w.WriteBytes([]byte("hello"))
	w.WriteBytes(nil)
	w.WriteString("orientgo")
	w.WriteIdentity(RecordID{Cluster: 12, Position: 99})
	w.WriteVarint(-150)
	w.WriteVarString("projected field")

	r := NewReader(bytes.NewReader(w.Bytes()))

	if v, err := r.ReadI8(); err != nil || v != -7 {
		t.Fatalf("ReadI8: %v, %v", v, err)
	}
	if v, err := r.ReadBool(); err != nil || v != true {
		t.Fatalf("ReadBool: %v, %v", v, err)
	}
	if v, err := r.ReadI16(); err != nil || v != -1234 {
		t.Fatalf("ReadI16: %v, %v", v, err)
	}
	if v, err := r.ReadI32(); err != nil || v != 987654321 {
		t.Fatalf("ReadI32: %v, %v", v, err)
	}
	if v, err := r.ReadI64(); err != nil || v != -9223372036854775800 {
		t.Fatalf("ReadI64: %v, %v", v, err)
	}
	if v, err := r.ReadF32(); err != nil || v != 3.5 {
		t.Fatalf("ReadF32: %v, %v", v, err)
	}
	if v, err := r.ReadF64(); err != nil || v != 2.71828 {
		t.Fatalf("ReadF64: %v, %v", v, err)
	}
	if v, err := r.ReadBytes(); err != nil || string(v) != "hello" {
		t.Fatalf("ReadBytes: %v, %v", v, err)
	}
	if v, err := r.ReadBytes(); err != nil || v != nil {
		t.Fatalf("ReadBytes(nil): %v, %v", v, err)
	}
	if v, err := r.ReadString(); err != nil || v != "orientgo" {
		t.Fatalf("ReadString: %v, %v", v, err)
	}
	if v, err := r.ReadIdentity(); err != nil || v != (RecordID{Cluster: 12, Position: 99}) {
		t.Fatalf("ReadIdentity: %v, %v", v, err)
	}
	if v, err := r.ReadVarint(); err != nil || v != -150 {
		t.Fatalf("ReadVarint: %v, %v", v, err)
	}
	if v, err := r.ReadVarString(); err != nil || v != "projected field" {
		t.Fatalf("ReadVarString: %v, %v", v, err)
	}
}

func TestReadBoolRejectsInvalidByte(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{5}))
	if _, err := r.ReadBool(); err == nil {
		t.Fatal("expected error for non-0/1 boolean byte")
	}
}

func TestReadBytesNegativeLengthRejected(t *testing.T) {
	w := NewWriter()
	w.WriteI32(-2)
	r := NewReader(bytes.NewReader(w.Bytes()))
	if _, err := r.ReadBytes(); err == nil {
		t.Fatal("expected error for length < -1")
	}
}

func TestReadStringRejectsInvalidUTF8(t *testing.T) {
	w := NewWriter()
	w.WriteBytes([]byte{0xff, 0xfe, 0xfd})
	r := NewReader(bytes.NewReader(w.Bytes()))
	if _, err := r.ReadString(); err == nil {
		t.Fatal("expected error for invalid UTF-8")
	}
}

func TestRecordIDEmptySentinel(t *testing.T) {
	if !EmptyRecordID.IsEmpty() {
		t.Fatal("EmptyRecordID should report IsEmpty")
	}
	if (RecordID{Cluster: 1, Position: -1}).IsEmpty() {
		t.Fatal("a partial sentinel should not report IsEmpty")
	}
	if got, want := EmptyRecordID.String(), "#-1:-1"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

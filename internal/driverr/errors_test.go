package driverr

import (
	"errors"
	"testing"
)

func TestNewIOErrorNilIsNil(t *testing.T) {
	if err := NewIOError("dial", nil); err != nil {
		t.Fatalf("expected nil error for a nil cause, got %v", err)
	}
}

func TestIOErrorUnwrap(t *testing.T) {
	sentinel := errors.New("connection refused")
	err := NewIOError("dial", sentinel)
	if !errors.Is(err, sentinel) {
		t.Fatal("expected errors.Is to see through IOError to its cause")
	}
}

func TestProtocolErrorMessage(t *testing.T) {
	err := NewProtocolError("unexpected opcode", nil)
	if got := err.Error(); got != "protocol: unexpected opcode" {
		t.Fatalf("unexpected message: %q", got)
	}
}

func TestDecodeErrorIncludesOffset(t *testing.T) {
	sentinel := errors.New("short buffer")
	err := NewDecodeError("varint", 12, sentinel)
	if !errors.Is(err, sentinel) {
		t.Fatal("expected errors.Is to see through DecodeError")
	}
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatal("expected errors.As to recover *DecodeError")
	}
	if de.Offset != 12 || de.What != "varint" {
		t.Fatalf("unexpected DecodeError: %+v", de)
	}
}

func TestRequestErrorUnwrapsToConcurrentModification(t *testing.T) {
	err := &RequestError{Code: ConcurrentModificationCode}
	if !errors.Is(err, ErrConcurrentModification) {
		t.Fatal("expected a code-3 RequestError to unwrap to ErrConcurrentModification")
	}
	if !err.IsRetryable() {
		t.Fatal("expected IsRetryable to be true for code 3")
	}
}

func TestRequestErrorNonRetryableDoesNotUnwrap(t *testing.T) {
	err := &RequestError{Code: 42}
	if errors.Is(err, ErrConcurrentModification) {
		t.Fatal("a non-retry-code RequestError must not unwrap to ErrConcurrentModification")
	}
	if err.IsRetryable() {
		t.Fatal("expected IsRetryable to be false for an arbitrary code")
	}
}

func TestRequestErrorMessageIncludesChain(t *testing.T) {
	err := &RequestError{
		Code:       1,
		Identifier: 2,
		Chain:      []ExceptionFrame{{Type: "OSomeException", Message: "boom"}},
	}
	msg := err.Error()
	if msg == "" {
		t.Fatal("expected a non-empty message")
	}
	bare := &RequestError{Code: 1, Identifier: 2}
	if bare.Error() == msg {
		t.Fatal("expected the chained message to differ from the bare one")
	}
}

func TestPoolErrorConstructors(t *testing.T) {
	if err := NewPoolTimeoutError("acquire"); !errors.Is(err, ErrPoolTimeout) {
		t.Fatalf("expected ErrPoolTimeout, got %v", err)
	}
	if err := NewPoolClosedError("acquire"); !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("expected ErrPoolClosed, got %v", err)
	}
}

func TestFieldErrorMessage(t *testing.T) {
	err := NewFieldError("name")
	if err.Error() != `field "name" not found` {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestConversionErrorMessage(t *testing.T) {
	err := NewConversionError("age", "int32", "string")
	want := `field "age": cannot convert string to int32`
	if err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
}

func TestUTF8ErrorUnwrap(t *testing.T) {
	sentinel := errors.New("invalid byte sequence")
	err := NewUTF8Error(sentinel)
	if !errors.Is(err, sentinel) {
		t.Fatal("expected errors.Is to see through UTF8Error")
	}
}

func TestGenericUnwrapAndMessage(t *testing.T) {
	sentinel := errors.New("context canceled")
	err := NewGeneric("waiting for a connection", sentinel)
	if !errors.Is(err, sentinel) {
		t.Fatal("expected errors.Is to see through Generic")
	}

	bare := NewGeneric("no connection available", nil)
	if bare.Error() != "no connection available" {
		t.Fatalf("unexpected bare Generic message: %q", bare.Error())
	}
}

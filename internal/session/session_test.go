package session

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/orientgo/driver/internal/driverr"
	"github.com/orientgo/driver/internal/wire"
)

func newTestSession() *Session {
	return &Session{dbName: "test", logger: slog.Default()}
}

func TestWithRetrySucceedsImmediately(t *testing.T) {
	s := newTestSession()
	calls := 0

	err := s.WithRetry(3, func(*Session) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("WithRetry: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call on immediate success, got %d", calls)
	}
}

func TestWithRetryRetriesConcurrentModification(t *testing.T) {
	s := newTestSession()
	calls := 0

	err := s.WithRetry(3, func(*Session) error {
		calls++
		if calls < 3 {
			return &driverr.RequestError{Code: driverr.ConcurrentModificationCode}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithRetry: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls (2 retries), got %d", calls)
	}
}

func TestWithRetryExhaustsBudget(t *testing.T) {
	s := newTestSession()
	calls := 0

	err := s.WithRetry(2, func(*Session) error {
		calls++
		return &driverr.RequestError{Code: driverr.ConcurrentModificationCode}
	})
	if err == nil {
		t.Fatal("expected the retry budget to be exhausted and the error to propagate")
	}
	if calls != 3 { // initial attempt + 2 retries
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestWithRetryPropagatesNonRetryableError(t *testing.T) {
	s := newTestSession()
	calls := 0
	sentinel := errors.New("boom")

	err := s.WithRetry(3, func(*Session) error {
		calls++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected the non-retryable error to propagate unchanged, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected no retries for a non-retryable error, got %d calls", calls)
	}
}

func TestWithRetryRejectsNonPositiveBudget(t *testing.T) {
	s := newTestSession()
	if err := s.WithRetry(0, func(*Session) error { return nil }); err == nil {
		t.Fatal("expected an error for a zero retry budget")
	}
}

func TestStatementBuilderPositionalParams(t *testing.T) {
	s := newTestSession()
	b := s.Query("select from V").Positional(wire.NewInt32(1), wire.NewString("x"))

	if b.named {
		t.Fatal("Positional should clear the named flag")
	}
	if len(b.params) != 2 {
		t.Fatalf("expected 2 positional params, got %d", len(b.params))
	}
	if v := b.params["0"]; v.Int32 != 1 {
		t.Fatalf("param \"0\" = %+v, want Int32=1", v)
	}
	if v := b.params["1"]; v.Str != "x" {
		t.Fatalf("param \"1\" = %+v, want Str=\"x\"", v)
	}
}

func TestStatementBuilderNamedParams(t *testing.T) {
	s := newTestSession()
	b := s.Command("update V set a = :a").Named(map[string]wire.Value{"a": wire.NewInt32(5)})

	if !b.named {
		t.Fatal("Named should set the named flag")
	}
	if v := b.params["a"]; v.Int32 != 5 {
		t.Fatalf("param \"a\" = %+v, want Int32=5", v)
	}
}

func TestStatementBuilderDefaults(t *testing.T) {
	s := newTestSession()
	b := s.Query("select 1")

	if b.mode != wire.ModeIdempotent {
		t.Fatalf("Query should default to ModeIdempotent, got %v", b.mode)
	}
	if b.pageSize != wire.DefaultPageSize {
		t.Fatalf("expected default page size %d, got %d", wire.DefaultPageSize, b.pageSize)
	}
	if b.language != wire.DefaultLanguage {
		t.Fatalf("expected default language %q, got %q", wire.DefaultLanguage, b.language)
	}

	cb := s.Command("update V set a = 1")
	if cb.mode != wire.ModeNonIdempotent {
		t.Fatalf("Command should default to ModeNonIdempotent, got %v", cb.mode)
	}

	sb := s.Script("print('hi')", "javascript")
	if sb.mode != wire.ModeScript || sb.language != "javascript" {
		t.Fatalf("Script builder misconfigured: mode=%v language=%q", sb.mode, sb.language)
	}
}

func TestStatementBuilderPageSizeOverride(t *testing.T) {
	s := newTestSession()
	b := s.Query("select 1").PageSize(50)
	if b.pageSize != 50 {
		t.Fatalf("PageSize override not applied, got %d", b.pageSize)
	}
}

func TestKindLabel(t *testing.T) {
	cases := map[wire.ExecutionMode]string{
		wire.ModeIdempotent:    "query",
		wire.ModeNonIdempotent: "command",
		wire.ModeScript:        "script",
	}
	for mode, want := range cases {
		if got := kindLabel(mode); got != want {
			t.Errorf("kindLabel(%v) = %q, want %q", mode, got, want)
		}
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	s := newTestSession()
	s.isPooled = true

	ctx := context.Background()
	if err := s.Close(ctx); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	err := Store("findNotes failed")
	kind, ok := KindOf(err)
	if !ok {
		t.Fatal("expected classified error")
	}
	if kind != KindStore {
		t.Errorf("expected KindStore, got %v", kind)
	}
}

func TestKindOfWrapped(t *testing.T) {
	inner := Infra("lock acquisition failed")
	wrapped := fmt.Errorf("phase lock: %w", inner)

	kind, ok := KindOf(wrapped)
	if !ok {
		t.Fatal("expected classified error through wrapping")
	}
	if kind != KindInfra {
		t.Errorf("expected KindInfra, got %v", kind)
	}
}

func TestKindOfUnclassified(t *testing.T) {
	if _, ok := KindOf(errors.New("plain")); ok {
		t.Error("plain error should not be classified")
	}
	if code := CodeOf(errors.New("plain")); code != "UNKNOWN" {
		t.Errorf("expected UNKNOWN code, got %s", code)
	}
}

func TestRetryableDefaults(t *testing.T) {
	cases := []struct {
		name      string
		err       *Error
		retryable bool
	}{
		{"config", Config("bad path"), false},
		{"infra", Infra("disk full"), true},
		{"store", Store("connection refused"), true},
		{"data", Data("items.json malformed"), false},
		{"degrade", Degrade("insufficient notes"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if IsRetryable(tc.err) != tc.retryable {
				t.Errorf("retryable = %v, want %v", IsRetryable(tc.err), tc.retryable)
			}
		})
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Store("sync failed").Wrap(cause)

	if !errors.Is(err, cause) {
		t.Error("wrapped cause not reachable via errors.Is")
	}
}

func TestWithCode(t *testing.T) {
	err := Degrade("short by 5").WithCode("DEGRADE_INSUFFICIENT_NOTES")
	if CodeOf(err) != "DEGRADE_INSUFFICIENT_NOTES" {
		t.Errorf("unexpected code: %s", CodeOf(err))
	}
}

package ctxutil

import (
	"context"
	"testing"
	"time"
)

func TestUserID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if got := GetUserID(ctx); got != "" {
		t.Errorf("GetUserID() on empty context = %q, want empty", got)
	}

	ctx = WithUserID(ctx, "student-42")
	if got := GetUserID(ctx); got != "student-42" {
		t.Errorf("GetUserID() = %q, want %q", got, "student-42")
	}
}

func TestRequestID(t *testing.T) {
	t.Parallel()

	if _, ok := GetRequestID(context.Background()); ok {
		t.Error("GetRequestID() reported a value on empty context")
	}

	ctx := WithRequestID(context.Background(), "req-1")
	got, ok := GetRequestID(ctx)
	if !ok || got != "req-1" {
		t.Errorf("GetRequestID() = (%q, %v), want (req-1, true)", got, ok)
	}

	if _, ok := GetRequestID(WithRequestID(context.Background(), "")); ok {
		t.Error("empty request ID should be reported as missing")
	}
}

func TestPreserveTracing(t *testing.T) {
	t.Parallel()

	parent, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	parent = WithUserID(parent, "u1")
	parent = WithRequestID(parent, "r1")
	cancel()

	detached := PreserveTracing(parent)
	if detached.Err() != nil {
		t.Fatalf("detached context inherited cancellation: %v", detached.Err())
	}
	if GetUserID(detached) != "u1" {
		t.Error("user ID not preserved")
	}
	if id, _ := GetRequestID(detached); id != "r1" {
		t.Error("request ID not preserved")
	}
}

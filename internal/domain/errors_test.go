package domain

import (
	"errors"
	"testing"
)

func TestDomainErrorWrapsSentinel(t *testing.T) {
	err := NewSubSystemError("adapter", "Adapter.Invoke", ErrTimeout, "10s elapsed")

	if !errors.Is(err, ErrTimeout) {
		t.Fatal("expected errors.Is to match the sentinel")
	}
	want := "Adapter.Invoke: 10s elapsed: operation timed out"
	if err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
}

func TestErrorCodeOf(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorCode
	}{
		{NewDomainError("op", ErrSpawnFailure, ""), CodeSpawnFailure},
		{NewDomainError("op", ErrProtocol, ""), CodeProtocol},
		{WrapOp("outer", NewDomainError("op", ErrListenerDisconnected, "")), CodeListenerDropped},
		{ErrShutdownTimeout, CodeShutdownTimeout},
		{errors.New("something else"), CodeUnknown},
	}
	for _, c := range cases {
		if got := ErrorCodeOf(c.err); got != c.want {
			t.Errorf("ErrorCodeOf(%v) = %s, want %s", c.err, got, c.want)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	timeout := NewDomainError("op", ErrTimeout, "")

	if IsRetryable(NewSendMessage("c1", "hi"), timeout) {
		t.Fatal("a timed-out send may have been delivered and must never be retried")
	}
	if !IsRetryable(NewFetchHistory("c1", "", 0), timeout) {
		t.Fatal("a timed-out read is safe to retry")
	}
	if !IsRetryable(NewListConversations(), NewDomainError("op", ErrUnavailable, "")) {
		t.Fatal("a rejected read is safe to retry")
	}
	if IsRetryable(NewListConversations(), NewDomainError("op", ErrProtocol, "")) {
		t.Fatal("protocol errors are not transient")
	}
}

func TestWrapOpNil(t *testing.T) {
	if WrapOp("op", nil) != nil {
		t.Fatal("WrapOp(nil) must be nil")
	}
}

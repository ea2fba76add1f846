package tui

import (
	"fmt"
	"testing"

	"kbchatbox/internal/domain"
)

func TestTextBufferEvictsOldest(t *testing.T) {
	b := NewTextBuffer(3)
	for i := 1; i <= 5; i++ {
		b.Append(domain.ChatMessage{ID: uint64(i), Body: fmt.Sprintf("m%d", i)})
	}

	if b.Len() != 3 {
		t.Fatalf("got %d messages, want 3", b.Len())
	}
	if got := b.Messages()[0].ID; got != 3 {
		t.Fatalf("oldest surviving id = %d, want 3", got)
	}
}

func TestTextBufferContains(t *testing.T) {
	b := NewTextBuffer(10)
	b.Append(domain.ChatMessage{ID: 7})

	if !b.Contains(7) {
		t.Fatal("expected id 7 to be present")
	}
	if b.Contains(8) {
		t.Fatal("id 8 should be absent")
	}
	if b.Contains(0) {
		t.Fatal("id 0 is the unknown id and never matches")
	}
}

func TestTextBufferResolvePending(t *testing.T) {
	b := NewTextBuffer(10)
	b.Append(domain.ChatMessage{Body: "hi", Status: domain.DeliverySent})
	b.Append(domain.ChatMessage{Body: "hi", Status: domain.DeliveryPending})

	if !b.Resolve("hi", domain.DeliverySent, 42) {
		t.Fatal("expected a pending message to resolve")
	}
	msgs := b.Messages()
	if msgs[1].Status != domain.DeliverySent || msgs[1].ID != 42 {
		t.Fatalf("newest pending not resolved: %+v", msgs[1])
	}
	if msgs[0].ID != 0 {
		t.Fatal("already-sent message must be untouched")
	}

	if b.Resolve("hi", domain.DeliveryFailed, 0) {
		t.Fatal("nothing pending remains")
	}
}

func TestTextBufferReplace(t *testing.T) {
	b := NewTextBuffer(2)
	b.Append(domain.ChatMessage{ID: 1})
	b.Replace([]domain.ChatMessage{{ID: 10}, {ID: 11}, {ID: 12}})

	if b.Len() != 2 || b.Messages()[0].ID != 11 {
		t.Fatalf("replace should respect capacity, got %+v", b.Messages())
	}
}

package domain

import "testing"

func TestNewFetchHistoryDefaultsLimit(t *testing.T) {
	cmd := NewFetchHistory("c1", "", 0)
	if cmd.Limit != DefaultHistoryLimit {
		t.Fatalf("got limit %d, want %d", cmd.Limit, DefaultHistoryLimit)
	}

	cmd = NewFetchHistory("c1", "cursor", 25)
	if cmd.Limit != 25 || cmd.Cursor != "cursor" {
		t.Fatalf("explicit limit/cursor not preserved: %+v", cmd)
	}
}

func TestNewCommandIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewCommandID()
		if seen[id] {
			t.Fatalf("duplicate command id %s", id)
		}
		seen[id] = true
	}
}

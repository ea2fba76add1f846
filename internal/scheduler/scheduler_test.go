package scheduler

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"kbchatbox/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAddRefreshRejectsBadSchedule(t *testing.T) {
	s := New(func(domain.Command) error { return nil }, testLogger())
	err := s.AddRefresh("every now and then")
	require.Error(t, err)
}

func TestRefreshSubmitsListConversations(t *testing.T) {
	var mu sync.Mutex
	var got []domain.Command
	submit := func(c domain.Command) error {
		mu.Lock()
		got = append(got, c)
		mu.Unlock()
		return nil
	}

	s := New(submit, testLogger())
	require.NoError(t, s.AddRefresh("@every 10ms"))
	s.Start()
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n >= 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, got, "expected at least one scheduled refresh")
	require.Equal(t, domain.CommandListConversations, got[0].Kind)
}

func TestQueueFullIsTolerated(t *testing.T) {
	submit := func(domain.Command) error {
		return domain.NewSubSystemError("bridge", "Handle.Submit", domain.ErrQueueFull, "")
	}

	s := New(submit, testLogger())
	require.NoError(t, s.AddRefresh("@every 10ms"))
	s.Start()
	time.Sleep(50 * time.Millisecond)
	s.Stop()
	// Nothing to assert: a full queue must not panic or wedge Stop.
}

func TestStartStopIdempotent(t *testing.T) {
	s := New(func(domain.Command) error { return nil }, testLogger())
	s.Start()
	s.Start()
	s.Stop()
	s.Stop()
}

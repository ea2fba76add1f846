package bridge

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"kbchatbox/internal/domain"
)

// ListenerState is the listener's lifecycle state.
type ListenerState int32

const (
	ListenerStarting ListenerState = iota
	ListenerListening
	ListenerReconnecting
	ListenerStopping
	ListenerStopped
)

func (s ListenerState) String() string {
	switch s {
	case ListenerStarting:
		return "starting"
	case ListenerListening:
		return "listening"
	case ListenerReconnecting:
		return "reconnecting"
	case ListenerStopping:
		return "stopping"
	case ListenerStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ListenerConfig tunes the reconnect behavior.
type ListenerConfig struct {
	InitialBackoff time.Duration // first reconnect delay (default 1s)
	MaxBackoff     time.Duration // backoff cap (default 30s)
	MaxRetries     int           // consecutive failed cycles before giving up (default 10)
}

func (c *ListenerConfig) applyDefaults() {
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 10
	}
}

// Listener owns the persistent notification stream. It reconnects with
// capped exponential backoff on stream errors, drops replayed notifications
// after a reconnect, and stops within a bounded time on cancellation by
// closing the stream underneath the blocking read.
type Listener struct {
	source domain.NotificationSource
	cfg    ListenerConfig
	emit   func(domain.Event)
	logger *slog.Logger

	state atomic.Int32

	// lastSeen tracks the highest message id delivered per conversation.
	// Only the Run goroutine touches it.
	lastSeen map[string]uint64
}

// NewListener creates a listener. emit is called for every accepted
// notification and must not block indefinitely.
func NewListener(source domain.NotificationSource, cfg ListenerConfig, emit func(domain.Event), logger *slog.Logger) *Listener {
	cfg.applyDefaults()
	return &Listener{
		source:   source,
		cfg:      cfg,
		emit:     emit,
		logger:   logger,
		lastSeen: make(map[string]uint64),
	}
}

// State returns the current lifecycle state.
func (l *Listener) State() ListenerState {
	return ListenerState(l.state.Load())
}

func (l *Listener) setState(s ListenerState) {
	old := ListenerState(l.state.Swap(int32(s)))
	if old != s {
		l.logger.Debug("listener state", "from", old.String(), "to", s.String())
	}
}

// Run blocks until ctx is canceled (returns nil) or the reconnect budget is
// exhausted (returns the last stream error). It always reaches the Stopped
// state before returning.
func (l *Listener) Run(ctx context.Context) error {
	defer l.setState(ListenerStopped)
	l.setState(ListenerStarting)

	backoff := l.cfg.InitialBackoff
	failures := 0

	for {
		if ctx.Err() != nil {
			l.setState(ListenerStopping)
			return nil
		}

		stream, err := l.source.Open(ctx)
		if err != nil {
			if ctx.Err() != nil {
				l.setState(ListenerStopping)
				return nil
			}
			failures++
			l.logger.Warn("notification stream open failed",
				"attempt", failures, "error", err)
			if failures > l.cfg.MaxRetries {
				return domain.WrapOp("listener", err)
			}
			if !l.wait(ctx, backoff) {
				l.setState(ListenerStopping)
				return nil
			}
			backoff = nextBackoff(backoff, l.cfg.MaxBackoff)
			continue
		}

		l.setState(ListenerListening)
		delivered, readErr := l.consume(ctx, stream)
		_ = stream.Close()

		if ctx.Err() != nil {
			l.setState(ListenerStopping)
			return nil
		}

		// A stream that delivered something earns a fresh reconnect budget.
		if delivered > 0 {
			failures = 0
			backoff = l.cfg.InitialBackoff
		}

		failures++
		l.logger.Warn("notification stream disconnected",
			"attempt", failures, "delivered", delivered, "error", readErr)
		if failures > l.cfg.MaxRetries {
			return domain.WrapOp("listener", readErr)
		}

		l.setState(ListenerReconnecting)
		if !l.wait(ctx, backoff) {
			l.setState(ListenerStopping)
			return nil
		}
		backoff = nextBackoff(backoff, l.cfg.MaxBackoff)
	}
}

// consume reads the stream until it breaks, emitting deduplicated
// MessageReceived events. A watcher goroutine closes the stream when ctx is
// canceled so the blocking Next returns within a bounded time.
func (l *Listener) consume(ctx context.Context, stream domain.NotificationStream) (int, error) {
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			_ = stream.Close()
		case <-watchDone:
		}
	}()

	delivered := 0
	for {
		msg, err := stream.Next()
		if err != nil {
			return delivered, err
		}
		if ctx.Err() != nil {
			return delivered, nil
		}
		if msg.ID != 0 && msg.ID <= l.lastSeen[msg.ConversationID] {
			l.logger.Debug("dropping replayed notification",
				"conversation", msg.ConversationID, "id", msg.ID)
			continue
		}
		if msg.ID != 0 {
			l.lastSeen[msg.ConversationID] = msg.ID
		}
		l.emit(domain.MessageReceived(msg))
		delivered++
	}
}

// wait sleeps for d, returning false if ctx was canceled first.
func (l *Listener) wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func nextBackoff(cur, max time.Duration) time.Duration {
	next := cur * 2
	if next > max {
		return max
	}
	return next
}

package domain

import "context"

// Invoker executes a single command against the external chat tool.
// Each call is independent; the implementation owns subprocess lifecycle and
// must not leak processes on any path. Invoke blocks only its caller — the
// bridge runs it on the worker goroutine, never on the UI side.
type Invoker interface {
	Invoke(ctx context.Context, cmd Command) (Outcome, error)
}

// NotificationSource opens the external tool's streaming notification
// interface. Open blocks until the stream is established or fails.
type NotificationSource interface {
	Open(ctx context.Context) (NotificationStream, error)
}

// NotificationStream yields new-message notifications until the stream
// breaks. Next blocks; Close must unblock a pending Next within a bounded
// time (for subprocess-backed streams this means killing the process).
type NotificationStream interface {
	Next() (ChatMessage, error)
	Close() error
}

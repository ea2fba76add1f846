package domain

import "time"

// EventKind identifies a result flowing from the worker to the UI.
type EventKind string

const (
	// EventCommandCompleted resolves a submitted Command, successfully or not.
	EventCommandCompleted EventKind = "command_completed"
	// EventMessageReceived carries an unsolicited new-message notification.
	EventMessageReceived EventKind = "message_received"
	// EventAdapterError reports a fault that is not tied to a single command,
	// such as the notification stream exhausting its reconnect budget.
	EventAdapterError EventKind = "adapter_error"
	// EventWorkerStopped is emitted exactly once when the worker terminates.
	EventWorkerStopped EventKind = "worker_stopped"
)

// Outcome is the result payload of a completed command. Exactly the fields
// matching the command kind are populated; Err is non-nil on failure.
type Outcome struct {
	Conversations []Conversation // ListConversations
	Messages      []ChatMessage  // FetchHistory, newest first
	NextCursor    string         // FetchHistory continuation, empty = exhausted
	Sent          *ChatMessage   // SendMessage echo with delivery status
	Err           error
}

// Event is a single record on the worker-to-UI channel. Events from the
// command path preserve submission order; events from the notification path
// preserve stream order; the two paths interleave nondeterministically.
type Event struct {
	Kind      EventKind
	Time      time.Time
	CommandID string       // EventCommandCompleted
	Outcome   *Outcome     // EventCommandCompleted
	Message   *ChatMessage // EventMessageReceived
	Err       error        // EventAdapterError, EventWorkerStopped (nil on clean stop)
}

// CommandCompleted builds a completion event for cmd.
func CommandCompleted(cmd Command, out Outcome) Event {
	return Event{
		Kind:      EventCommandCompleted,
		Time:      time.Now(),
		CommandID: cmd.ID,
		Outcome:   &out,
	}
}

// MessageReceived builds a notification event.
func MessageReceived(msg ChatMessage) Event {
	m := msg
	return Event{Kind: EventMessageReceived, Time: time.Now(), Message: &m}
}

// AdapterFault builds an out-of-band adapter error event.
func AdapterFault(err error) Event {
	return Event{Kind: EventAdapterError, Time: time.Now(), Err: err}
}

// WorkerStopped builds the terminal event. err is nil on a clean stop.
func WorkerStopped(err error) Event {
	return Event{Kind: EventWorkerStopped, Time: time.Now(), Err: err}
}

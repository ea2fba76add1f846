package domain

import "time"

// DeliveryStatus tracks an outbound message through the send pipeline.
type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
)

// ChatMessage is a single chat message as parsed from the external tool.
// ID is the tool's per-conversation monotonically increasing message id;
// the listener uses it as a high-water mark to drop replayed notifications.
type ChatMessage struct {
	ID             uint64
	ConversationID string
	Sender         string
	Body           string
	SentAt         time.Time
	Status         DeliveryStatus
}

// Conversation is a chat channel as reported by the external tool.
// Message contents are owned by the UI side; the bridge is a pure relay and
// never caches conversation state.
type Conversation struct {
	ID     string
	Name   string
	Unread bool
}

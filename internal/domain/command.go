package domain

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// CommandKind identifies a request from the UI to the worker.
type CommandKind string

const (
	CommandSendMessage       CommandKind = "send_message"
	CommandFetchHistory      CommandKind = "fetch_history"
	CommandListConversations CommandKind = "list_conversations"
	CommandShutdown          CommandKind = "shutdown"
)

// DefaultHistoryLimit is the page size used when FetchHistory does not set one.
const DefaultHistoryLimit = 50

// Command is a request submitted by the UI and owned by the worker once
// enqueued. Commands are immutable after creation. ID is client-generated so
// that send outcomes can be correlated and deduplicated without trusting the
// external tool to echo anything back.
type Command struct {
	ID             string
	Kind           CommandKind
	ConversationID string
	Body           string // SendMessage text
	Cursor         string // FetchHistory pagination cursor, empty = newest page
	Limit          int    // FetchHistory page size
	CreatedAt      time.Time
}

// NewSendMessage builds a SendMessage command.
func NewSendMessage(conversationID, body string) Command {
	return Command{
		ID:             NewCommandID(),
		Kind:           CommandSendMessage,
		ConversationID: conversationID,
		Body:           body,
		CreatedAt:      time.Now(),
	}
}

// NewFetchHistory builds a FetchHistory command. An empty cursor fetches the
// newest page; limit <= 0 uses DefaultHistoryLimit.
func NewFetchHistory(conversationID, cursor string, limit int) Command {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return Command{
		ID:             NewCommandID(),
		Kind:           CommandFetchHistory,
		ConversationID: conversationID,
		Cursor:         cursor,
		Limit:          limit,
		CreatedAt:      time.Now(),
	}
}

// NewListConversations builds a ListConversations command.
func NewListConversations() Command {
	return Command{ID: NewCommandID(), Kind: CommandListConversations, CreatedAt: time.Now()}
}

// NewShutdown builds a Shutdown command.
func NewShutdown() Command {
	return Command{ID: NewCommandID(), Kind: CommandShutdown, CreatedAt: time.Now()}
}

// NewCommandID returns a lexicographically sortable unique command id.
func NewCommandID() string {
	return ulid.Make().String()
}

package tui

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"kbchatbox/internal/adapter/notify"
	"kbchatbox/internal/domain"
)

// testModel builds a model without a live bridge; the event-application
// logic under test never touches the handle.
func testModel() Model {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := New(nil, notify.New("", "", false, log), "me", log)
	m.convs = []domain.Conversation{{ID: "c1", Name: "alice"}, {ID: "c2", Name: "bob"}}
	return m
}

func TestIncomingMessageMarksOtherConversationUnread(t *testing.T) {
	m := testModel()

	m.applyIncoming(domain.ChatMessage{ID: 1, ConversationID: "c2", Sender: "bob", Body: "hey"})

	require.True(t, m.convs[1].Unread)
	require.False(t, m.convs[0].Unread)
	require.Equal(t, 1, m.buffer("c2").Len())
}

func TestIncomingMessageDeduplicates(t *testing.T) {
	m := testModel()
	m.buffer("c1").Append(domain.ChatMessage{ID: 5, ConversationID: "c1", Sender: "bob", Body: "hi"})

	m.applyIncoming(domain.ChatMessage{ID: 5, ConversationID: "c1", Sender: "bob", Body: "hi"})

	require.Equal(t, 1, m.buffer("c1").Len())
}

func TestIncomingOwnMessageFoldsIntoEcho(t *testing.T) {
	m := testModel()
	m.buffer("c1").Append(domain.ChatMessage{
		ConversationID: "c1", Sender: "me", Body: "hi", Status: domain.DeliveryPending,
	})

	m.applyIncoming(domain.ChatMessage{ID: 9, ConversationID: "c1", Sender: "me", Body: "hi"})

	buf := m.buffer("c1")
	require.Equal(t, 1, buf.Len(), "notification of own send must not duplicate the echo")
	require.Equal(t, domain.DeliverySent, buf.Messages()[0].Status)
	require.Equal(t, uint64(9), buf.Messages()[0].ID)
}

func TestHistoryCompletionFillsBufferOldestFirst(t *testing.T) {
	m := testModel()
	cmd := domain.NewFetchHistory("c1", "", 0)
	m.inflight[cmd.ID] = cmd

	m.applyCompletion(domain.CommandCompleted(cmd, domain.Outcome{
		Messages: []domain.ChatMessage{ // tool reports newest first
			{ID: 2, ConversationID: "c1", Sender: "bob", Body: "second"},
			{ID: 1, ConversationID: "c1", Sender: "bob", Body: "first"},
		},
		NextCursor: "older",
	}))

	msgs := m.buffer("c1").Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, uint64(1), msgs[0].ID)
	require.Equal(t, uint64(2), msgs[1].ID)
	require.Equal(t, "older", m.cursors["c1"])
	require.Empty(t, m.inflight, "completion must clear the inflight entry")
}

func TestSendFailureResolvesEcho(t *testing.T) {
	m := testModel()
	cmd := domain.NewSendMessage("c1", "hi")
	m.inflight[cmd.ID] = cmd
	m.buffer("c1").Append(domain.ChatMessage{
		ConversationID: "c1", Sender: "me", Body: "hi", Status: domain.DeliveryPending,
	})

	failure := domain.NewSubSystemError("adapter", "test", domain.ErrTimeout, "")
	m.applyCompletion(domain.CommandCompleted(cmd, domain.Outcome{Err: failure}))

	require.Equal(t, domain.DeliveryFailed, m.buffer("c1").Messages()[0].Status)
	require.NotEmpty(t, m.status, "the failure must be surfaced in the status line")
}

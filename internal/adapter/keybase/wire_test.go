package keybase

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"kbchatbox/internal/domain"
)

const listFixture = `{
  "result": {
    "conversations": [
      {"id": "000f1", "channel": {"name": "alice,bob"}, "unread": true},
      {"id": "000f2", "channel": {"name": "alice,carol"}, "unread": false}
    ]
  }
}`

const readFixture = `{
  "result": {
    "messages": [
      {"msg": {"id": 42, "conversation_id": "000f1",
               "sender": {"username": "bob"}, "sent_at": 1700000000,
               "content": {"type": "text", "text": {"body": "hello"}}}},
      {"msg": {"id": 41, "conversation_id": "000f1",
               "sender": {"username": "alice"}, "sent_at": 1699999990,
               "content": {"type": "reaction"}}},
      {"msg": {"id": 40, "conversation_id": "000f1",
               "sender": {"username": "alice"}, "sent_at": 1699999980,
               "content": {"type": "text", "text": {"body": "hi bob"}}}}
    ],
    "pagination": {"next": "cursor-abc", "last": false}
  }
}`

func TestDecodeResponseAPIError(t *testing.T) {
	_, err := decodeResponse([]byte(`{"error": {"code": 2, "message": "invalid conversation"}}`))
	require.ErrorIs(t, err, domain.ErrProtocol)
	require.Contains(t, err.Error(), "invalid conversation")
}

func TestDecodeResponseGarbage(t *testing.T) {
	_, err := decodeResponse([]byte("not json at all"))
	require.ErrorIs(t, err, domain.ErrProtocol)

	_, err = decodeResponse([]byte(`{}`))
	require.ErrorIs(t, err, domain.ErrProtocol)
}

func TestParseConversations(t *testing.T) {
	res, err := decodeResponse([]byte(listFixture))
	require.NoError(t, err)

	convs, err := parseConversations(res)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	require.Equal(t, domain.Conversation{ID: "000f1", Name: "alice,bob", Unread: true}, convs[0])
	require.False(t, convs[1].Unread)
}

func TestParseConversationsWrongShape(t *testing.T) {
	res, err := decodeResponse([]byte(`{"result": {"messages": []}}`))
	require.NoError(t, err)

	_, err = parseConversations(res)
	require.ErrorIs(t, err, domain.ErrProtocol)
}

func TestParseMessagesSkipsNonText(t *testing.T) {
	res, err := decodeResponse([]byte(readFixture))
	require.NoError(t, err)

	msgs, next, err := parseMessages(res)
	require.NoError(t, err)
	require.Len(t, msgs, 2, "the reaction must be skipped")
	require.Equal(t, uint64(42), msgs[0].ID)
	require.Equal(t, "hello", msgs[0].Body)
	require.Equal(t, "bob", msgs[0].Sender)
	require.Equal(t, "cursor-abc", next)
}

func TestParseMessagesLastPage(t *testing.T) {
	res, err := decodeResponse([]byte(`{"result": {"messages": [], "pagination": {"next": "x", "last": true}}}`))
	require.NoError(t, err)

	msgs, next, err := parseMessages(res)
	require.NoError(t, err)
	require.Empty(t, msgs)
	require.Empty(t, next, "exhausted pagination must not return a cursor")
}

func TestParseSendAck(t *testing.T) {
	res, err := decodeResponse([]byte(`{"result": {"message": "message sent", "id": 99}}`))
	require.NoError(t, err)

	cmd := domain.NewSendMessage("000f1", "ping")
	sent, err := parseSendAck(res, cmd)
	require.NoError(t, err)
	require.Equal(t, uint64(99), sent.ID)
	require.Equal(t, "ping", sent.Body)
	require.Equal(t, domain.DeliverySent, sent.Status)

	_, err = parseSendAck(&apiResult{}, cmd)
	require.ErrorIs(t, err, domain.ErrProtocol)
}

func TestParseListenLine(t *testing.T) {
	chat := `{"type": "chat", "msg": {"id": 7, "conversation_id": "000f1",
	  "sender": {"username": "bob"}, "sent_at": 1700000000,
	  "content": {"type": "text", "text": {"body": "new"}}}}`

	msg, ok, err := parseListenLine([]byte(chat))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(7), msg.ID)
	require.Equal(t, "new", msg.Body)

	// Wallet and typing records share the stream; they are not messages.
	_, ok, err = parseListenLine([]byte(`{"type": "wallet", "notification": {}}`))
	require.NoError(t, err)
	require.False(t, ok)

	_, _, err = parseListenLine([]byte("{{{"))
	require.ErrorIs(t, err, domain.ErrProtocol)
}

func TestReadRequestCarriesCursor(t *testing.T) {
	raw, err := json.Marshal(readRequest("000f1", "cursor-abc", 25))
	require.NoError(t, err)

	var got apiRequest
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Equal(t, "read", got.Method)
	require.Equal(t, "000f1", got.Params.Options.ConversationID)
	require.Equal(t, "cursor-abc", got.Params.Options.Pagination.Next)
	require.Equal(t, 25, got.Params.Options.Pagination.Num)
}

func TestSendRequestShape(t *testing.T) {
	raw, err := json.Marshal(sendRequest("000f1", "hello"))
	require.NoError(t, err)
	require.Contains(t, string(raw), `"method":"send"`)
	require.Contains(t, string(raw), `"body":"hello"`)
}

package keybase

import (
	"encoding/json"
	"fmt"
	"time"

	"kbchatbox/internal/domain"
)

// Wire types for the `keybase chat api` JSON protocol. The format is defined
// by the Keybase client, not by us — parsing here is strict: a response that
// does not match the expected shape for the issued method is a protocol
// error, never silently coerced.

type apiRequest struct {
	Method string     `json:"method"`
	Params *apiParams `json:"params,omitempty"`
}

type apiParams struct {
	Options apiOptions `json:"options"`
}

type apiOptions struct {
	ConversationID string          `json:"conversation_id,omitempty"`
	Message        *apiMessageBody `json:"message,omitempty"`
	Pagination     *apiPagination  `json:"pagination,omitempty"`
}

type apiMessageBody struct {
	Body string `json:"body"`
}

type apiPagination struct {
	Num  int    `json:"num,omitempty"`
	Next string `json:"next,omitempty"`
	Last bool   `json:"last,omitempty"`
}

type apiResponse struct {
	Result *apiResult `json:"result"`
	Error  *apiError  `json:"error"`
}

type apiResult struct {
	Conversations []apiConversation `json:"conversations"`
	Messages      []apiMessageWrap  `json:"messages"`
	Pagination    *apiPagination    `json:"pagination"`
	Message       string            `json:"message"` // send ack, "message sent"
	ID            uint64            `json:"id"`      // send ack message id
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type apiConversation struct {
	ID      string     `json:"id"`
	Channel apiChannel `json:"channel"`
	Unread  bool       `json:"unread"`
}

type apiChannel struct {
	Name string `json:"name"`
}

type apiMessageWrap struct {
	Msg apiMessage `json:"msg"`
}

type apiMessage struct {
	ID             uint64     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	Channel        apiChannel `json:"channel"`
	Sender         apiSender  `json:"sender"`
	SentAt         int64      `json:"sent_at"`
	Content        apiContent `json:"content"`
}

type apiSender struct {
	Username string `json:"username"`
}

type apiContent struct {
	Type string   `json:"type"`
	Text *apiText `json:"text"`
}

type apiText struct {
	Body string `json:"body"`
}

// listenRecord is one line of `keybase chat api-listen` output.
type listenRecord struct {
	Type string     `json:"type"`
	Msg  apiMessage `json:"msg"`
}

// --- request builders ---

func listRequest() apiRequest {
	return apiRequest{Method: "list"}
}

func readRequest(conversationID, cursor string, limit int) apiRequest {
	return apiRequest{
		Method: "read",
		Params: &apiParams{Options: apiOptions{
			ConversationID: conversationID,
			Pagination:     &apiPagination{Num: limit, Next: cursor},
		}},
	}
}

func sendRequest(conversationID, body string) apiRequest {
	return apiRequest{
		Method: "send",
		Params: &apiParams{Options: apiOptions{
			ConversationID: conversationID,
			Message:        &apiMessageBody{Body: body},
		}},
	}
}

// --- response parsing ---

func decodeResponse(raw []byte) (*apiResult, error) {
	var resp apiResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, domain.NewSubSystemError("adapter", "decodeResponse",
			domain.ErrProtocol, err.Error())
	}
	if resp.Error != nil {
		return nil, domain.NewSubSystemError("adapter", "decodeResponse",
			domain.ErrProtocol, fmt.Sprintf("api error %d: %s", resp.Error.Code, resp.Error.Message))
	}
	if resp.Result == nil {
		return nil, domain.NewSubSystemError("adapter", "decodeResponse",
			domain.ErrProtocol, "response has neither result nor error")
	}
	return resp.Result, nil
}

func parseConversations(res *apiResult) ([]domain.Conversation, error) {
	if res.Conversations == nil {
		return nil, domain.NewSubSystemError("adapter", "parseConversations",
			domain.ErrProtocol, "result has no conversations array")
	}
	out := make([]domain.Conversation, 0, len(res.Conversations))
	for _, c := range res.Conversations {
		if c.ID == "" {
			return nil, domain.NewSubSystemError("adapter", "parseConversations",
				domain.ErrProtocol, "conversation without id")
		}
		out = append(out, domain.Conversation{
			ID:     c.ID,
			Name:   c.Channel.Name,
			Unread: c.Unread,
		})
	}
	return out, nil
}

// parseMessages converts a read result. Non-text messages (edits, reactions,
// attachments) are skipped; a result without a messages array is a protocol
// error.
func parseMessages(res *apiResult) ([]domain.ChatMessage, string, error) {
	if res.Messages == nil {
		return nil, "", domain.NewSubSystemError("adapter", "parseMessages",
			domain.ErrProtocol, "result has no messages array")
	}
	out := make([]domain.ChatMessage, 0, len(res.Messages))
	for _, w := range res.Messages {
		msg, ok := toChatMessage(w.Msg)
		if !ok {
			continue
		}
		out = append(out, msg)
	}
	next := ""
	if res.Pagination != nil && !res.Pagination.Last {
		next = res.Pagination.Next
	}
	return out, next, nil
}

func parseSendAck(res *apiResult, cmd domain.Command) (*domain.ChatMessage, error) {
	if res.Message == "" {
		return nil, domain.NewSubSystemError("adapter", "parseSendAck",
			domain.ErrProtocol, "send result has no acknowledgement")
	}
	return &domain.ChatMessage{
		ID:             res.ID,
		ConversationID: cmd.ConversationID,
		Body:           cmd.Body,
		SentAt:         time.Now(),
		Status:         domain.DeliverySent,
	}, nil
}

// parseListenLine decodes one api-listen record. ok is false for records
// that are valid JSON but not text chat messages.
func parseListenLine(line []byte) (domain.ChatMessage, bool, error) {
	var rec listenRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return domain.ChatMessage{}, false, domain.NewSubSystemError("listener",
			"parseListenLine", domain.ErrProtocol, err.Error())
	}
	if rec.Type != "chat" {
		return domain.ChatMessage{}, false, nil
	}
	msg, ok := toChatMessage(rec.Msg)
	return msg, ok, nil
}

func toChatMessage(m apiMessage) (domain.ChatMessage, bool) {
	if m.Content.Type != "text" || m.Content.Text == nil {
		return domain.ChatMessage{}, false
	}
	if m.ConversationID == "" || m.Sender.Username == "" {
		return domain.ChatMessage{}, false
	}
	return domain.ChatMessage{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Sender:         m.Sender.Username,
		Body:           m.Content.Text.Body,
		SentAt:         time.Unix(m.SentAt, 0).UTC(),
		Status:         domain.DeliverySent,
	}, true
}

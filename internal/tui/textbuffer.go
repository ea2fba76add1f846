package tui

import "kbchatbox/internal/domain"

// TextBuffer is a bounded scrollback of chat messages for one conversation.
// Oldest entries are dropped once the capacity is reached.
type TextBuffer struct {
	cap   int
	lines []domain.ChatMessage
}

// NewTextBuffer creates a buffer holding at most capacity messages.
func NewTextBuffer(capacity int) *TextBuffer {
	if capacity <= 0 {
		capacity = 200
	}
	return &TextBuffer{cap: capacity}
}

// Append adds a message, evicting the oldest when full.
func (b *TextBuffer) Append(msg domain.ChatMessage) {
	b.lines = append(b.lines, msg)
	if len(b.lines) > b.cap {
		b.lines = b.lines[len(b.lines)-b.cap:]
	}
}

// Replace clears the buffer and fills it oldest-first.
func (b *TextBuffer) Replace(msgs []domain.ChatMessage) {
	b.lines = b.lines[:0]
	for _, m := range msgs {
		b.Append(m)
	}
}

// Contains reports whether a message with the given id is already buffered.
// Used to drop a notification echo of a message we already rendered.
func (b *TextBuffer) Contains(id uint64) bool {
	if id == 0 {
		return false
	}
	for _, m := range b.lines {
		if m.ID == id {
			return true
		}
	}
	return false
}

// Resolve updates the delivery status of the newest pending message with a
// matching body. Returns true if one was found.
func (b *TextBuffer) Resolve(body string, status domain.DeliveryStatus, id uint64) bool {
	for i := len(b.lines) - 1; i >= 0; i-- {
		if b.lines[i].Status == domain.DeliveryPending && b.lines[i].Body == body {
			b.lines[i].Status = status
			if id != 0 {
				b.lines[i].ID = id
			}
			return true
		}
	}
	return false
}

// Messages returns the buffered messages oldest-first.
func (b *TextBuffer) Messages() []domain.ChatMessage {
	return b.lines
}

// Len returns the number of buffered messages.
func (b *TextBuffer) Len() int { return len(b.lines) }

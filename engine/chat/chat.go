package chat

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrMessageOpen reports an attempt to open a second streaming message
	// while one is still receiving chunks.
	ErrMessageOpen = errors.New("chat: a model message is already open")
	// ErrMessageClosed reports a chunk append addressed at a message that is
	// not the transcript's open model message.
	ErrMessageClosed = errors.New("chat: message is not open")
)

// Role identifies message author type.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Message is one transcript entry. Readers always receive value copies.
type Message struct {
	ID        string
	Role      Role
	Text      string
	CreatedAt time.Time
}

// Transcript is the ordered message log owned by one session. Appends and
// in-place text growth of the open model message are the only mutations.
// At most one model message is open at any time; it is addressed by id, never
// by position, so interleaved updates from other sessions cannot misroute.
type Transcript struct {
	mu       sync.RWMutex
	messages []*Message
	openID   string
}

func NewTranscript() *Transcript {
	return &Transcript{}
}

// AppendUser appends a whole, closed user message and returns a copy of it.
func (t *Transcript) AppendUser(text string) Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	msg := &Message{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Text:      text,
		CreatedAt: time.Now(),
	}
	t.messages = append(t.messages, msg)
	return *msg
}

// AppendModel appends a whole, closed model message and returns a copy of it.
// This is the fallback path for exchanges that failed before any chunk arrived.
func (t *Transcript) AppendModel(text string) Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	msg := &Message{
		ID:        uuid.NewString(),
		Role:      RoleModel,
		Text:      text,
		CreatedAt: time.Now(),
	}
	t.messages = append(t.messages, msg)
	return *msg
}

// OpenModel appends a model message seeded with initial text and marks it as
// the transcript's open message. It returns the message id used to address
// subsequent chunk appends.
func (t *Transcript) OpenModel(initial string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.openID != "" {
		return "", ErrMessageOpen
	}
	msg := &Message{
		ID:        uuid.NewString(),
		Role:      RoleModel,
		Text:      initial,
		CreatedAt: time.Now(),
	}
	t.messages = append(t.messages, msg)
	t.openID = msg.ID
	return msg.ID, nil
}

// AppendChunk grows the open model message addressed by id. Text only ever
// grows; existing content is never rewritten.
func (t *Transcript) AppendChunk(id, text string) error {
	if strings.TrimSpace(id) == "" {
		return ErrMessageClosed
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.openID != id {
		return ErrMessageClosed
	}
	for i := len(t.messages) - 1; i >= 0; i-- {
		if t.messages[i].ID == id {
			t.messages[i].Text += text
			return nil
		}
	}
	return ErrMessageClosed
}

// Close marks the message addressed by id as closed. Closing a message that
// is not open is a no-op, so success, error and cancellation paths can all
// close unconditionally.
func (t *Transcript) Close(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.openID == id {
		t.openID = ""
	}
}

// OpenMessageID returns the id of the currently open model message, or empty.
func (t *Transcript) OpenMessageID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.openID
}

// Messages returns a copying snapshot in insertion order.
func (t *Transcript) Messages() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Message, 0, len(t.messages))
	for _, msg := range t.messages {
		out = append(out, *msg)
	}
	return out
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

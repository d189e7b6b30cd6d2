package session

import (
	"context"
	"errors"
	"time"

	"github.com/sageleaf/converse/engine/chat"
)

var (
	ErrSessionNotFound = errors.New("session: not found")
	// ErrTitleAssigned reports a second title assignment; titles are immutable
	// once derived.
	ErrTitleAssigned = errors.New("session: title already assigned")
)

// Session is one independent, addressable conversation. Seq is the monotonic
// creation sequence used for listing order.
type Session struct {
	ID        string
	Title     string
	Seq       int64
	CreatedAt time.Time
}

// Summary is the listing projection of a session.
type Summary struct {
	ID        string
	Title     string
	Seq       int64
	CreatedAt time.Time
}

// Store provides session identity and enumeration. Streaming never mutates
// the store itself; it only appends to transcripts obtained from it.
type Store interface {
	// Create allocates a new untitled session with an empty transcript.
	Create(context.Context) (*Session, error)
	// Get returns session metadata by id.
	Get(context.Context, string) (*Session, error)
	// Transcript returns the live, mutable transcript for a session.
	Transcript(context.Context, string) (*chat.Transcript, error)
	// SetTitle assigns the derived title. It fails with ErrTitleAssigned if
	// the session is already titled.
	SetTitle(context.Context, string, string) error
	// List returns titled sessions in creation order. Sessions abandoned
	// before a qualifying first message stay hidden but are never deleted.
	List(context.Context) ([]Summary, error)
}

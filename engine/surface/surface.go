package surface

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sageleaf/converse/engine/chat"
	"github.com/sageleaf/converse/engine/session"
	"github.com/sageleaf/converse/engine/stream"
)

// Surface is one conversational feature area (tutor chat, debate arena,
// floating assistant). Surfaces differ only in configuration: each one binds
// a session store and a coordinator whose generator carries the surface
// persona. Control flow is identical across surfaces.
type Surface struct {
	name  string
	store session.Store
	coord *stream.Coordinator

	mu       sync.Mutex
	activeID string
}

// Config configures a Surface.
type Config struct {
	Name        string
	Store       session.Store
	Coordinator *stream.Coordinator
}

func New(cfg Config) (*Surface, error) {
	if strings.TrimSpace(cfg.Name) == "" {
		return nil, fmt.Errorf("surface: name is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("surface: store is nil")
	}
	if cfg.Coordinator == nil {
		return nil, fmt.Errorf("surface: coordinator is nil")
	}
	return &Surface{
		name:  cfg.Name,
		store: cfg.Store,
		coord: cfg.Coordinator,
	}, nil
}

func (s *Surface) Name() string {
	return s.name
}

// Activate points the surface at an existing session. It is a pure pointer
// update: in-flight streams keep writing to their own sessions regardless.
func (s *Surface) Activate(ctx context.Context, id string) error {
	if _, err := s.store.Get(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeID = id
	return nil
}

// ClearActive represents "new conversation" navigation. No session is
// created until the user actually submits something.
func (s *Surface) ClearActive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeID = ""
}

// ActiveID returns the addressed session id, or empty when none is active.
func (s *Surface) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// Busy reports whether the addressed session has an open stream. Streams in
// other sessions of this surface do not affect the signal.
func (s *Surface) Busy() bool {
	id := s.ActiveID()
	if id == "" {
		return false
	}
	return s.coord.Busy(id)
}

// Send submits text to the addressed session, creating and activating a new
// session when none is active. Whitespace-only input never creates a session.
func (s *Surface) Send(ctx context.Context, text string) *stream.Exchange {
	if strings.TrimSpace(text) == "" {
		return s.coord.Send(ctx, s.ActiveID(), text)
	}
	s.mu.Lock()
	if s.activeID == "" {
		sess, err := s.store.Create(ctx)
		if err != nil {
			s.mu.Unlock()
			return s.coord.Send(ctx, "", text)
		}
		s.activeID = sess.ID
	}
	id := s.activeID
	s.mu.Unlock()
	return s.coord.Send(ctx, id, text)
}

// Sessions lists this surface's titled sessions in creation order.
func (s *Surface) Sessions(ctx context.Context) ([]session.Summary, error) {
	return s.store.List(ctx)
}

// Messages returns a snapshot of the addressed session's transcript. An
// inactive surface has no messages.
func (s *Surface) Messages(ctx context.Context) ([]chat.Message, error) {
	id := s.ActiveID()
	if id == "" {
		return nil, nil
	}
	tr, err := s.store.Transcript(ctx, id)
	if err != nil {
		return nil, err
	}
	return tr.Messages(), nil
}

package inmemory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sageleaf/converse/engine/chat"
	"github.com/sageleaf/converse/engine/session"
)

type entry struct {
	session    *session.Session
	transcript *chat.Transcript
}

// Store is a thread-safe in-memory session store. Metadata reads return
// copies; transcripts are returned live so streaming can append to them.
type Store struct {
	mu      sync.RWMutex
	data    map[string]*entry
	nextSeq int64
}

func New() *Store {
	return &Store{data: make(map[string]*entry)}
}

func (s *Store) Create(ctx context.Context) (*session.Session, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSeq++
	sess := &session.Session{
		ID:        uuid.NewString(),
		Seq:       s.nextSeq,
		CreatedAt: time.Now(),
	}
	s.data[sess.ID] = &entry{
		session:    sess,
		transcript: chat.NewTranscript(),
	}
	cp := *sess
	return &cp, nil
}

func (s *Store) Get(ctx context.Context, id string) (*session.Session, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[id]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	cp := *e.session
	return &cp, nil
}

func (s *Store) Transcript(ctx context.Context, id string) (*chat.Transcript, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[id]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	return e.transcript, nil
}

func (s *Store) SetTitle(ctx context.Context, id, title string) error {
	_ = ctx
	title = strings.TrimSpace(title)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[id]
	if !ok {
		return session.ErrSessionNotFound
	}
	if e.session.Title != "" {
		return session.ErrTitleAssigned
	}
	e.session.Title = title
	return nil
}

func (s *Store) List(ctx context.Context) ([]session.Summary, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]session.Summary, 0, len(s.data))
	for _, e := range s.data {
		if e.session.Title == "" {
			continue
		}
		out = append(out, session.Summary{
			ID:        e.session.ID,
			Title:     e.session.Title,
			Seq:       e.session.Seq,
			CreatedAt: e.session.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

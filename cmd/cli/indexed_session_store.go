package main

import (
	"context"
	"time"

	"github.com/sageleaf/converse/engine/chat"
	"github.com/sageleaf/converse/engine/session"
)

// indexedSessionStore mirrors store lifecycle changes into the sqlite index.
// Index failures never surface: the in-memory store stays the source of
// truth and the index is best-effort listing metadata.
type indexedSessionStore struct {
	inner   session.Store
	index   *sessionIndex
	surface string
}

func newIndexedSessionStore(inner session.Store, index *sessionIndex, surface string) *indexedSessionStore {
	return &indexedSessionStore{
		inner:   inner,
		index:   index,
		surface: surface,
	}
}

func (s *indexedSessionStore) Create(ctx context.Context) (*session.Session, error) {
	sess, err := s.inner.Create(ctx)
	if err != nil {
		return nil, err
	}
	_ = s.index.Upsert(s.surface, sess.ID, sess.CreatedAt)
	return sess, nil
}

func (s *indexedSessionStore) Get(ctx context.Context, id string) (*session.Session, error) {
	return s.inner.Get(ctx, id)
}

func (s *indexedSessionStore) Transcript(ctx context.Context, id string) (*chat.Transcript, error) {
	return s.inner.Transcript(ctx, id)
}

func (s *indexedSessionStore) SetTitle(ctx context.Context, id, title string) error {
	if err := s.inner.SetTitle(ctx, id, title); err != nil {
		return err
	}
	_ = s.index.SetTitle(s.surface, id, title)
	return nil
}

func (s *indexedSessionStore) List(ctx context.Context) ([]session.Summary, error) {
	return s.inner.List(ctx)
}

func (s *indexedSessionStore) touchActivity(id string, messages int) {
	_ = s.index.TouchActivity(s.surface, id, messages, time.Now())
}

// listIndexed reads the durable listing for this surface. Unlike List, it
// spans previous CLI runs.
func (s *indexedSessionStore) listIndexed(limit int) ([]sessionIndexRecord, error) {
	return s.index.ListSurfaceSessions(s.surface, limit)
}

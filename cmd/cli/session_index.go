package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const (
	sessionIndexDriver = "sqlite"
	sessionIndexDSNOpt = "?_pragma=busy_timeout(3000)&_pragma=journal_mode(WAL)"
)

// sessionIndex records conversation metadata per surface so /sessions can
// list past conversations across CLI runs. It stores listing metadata only,
// never message text.
type sessionIndex struct {
	db *sql.DB
	mu sync.Mutex
}

type sessionIndexRecord struct {
	SessionID    string
	Surface      string
	Title        string
	CreatedAt    time.Time
	LastActiveAt time.Time
	MessageCount int64
}

func newSessionIndex(path string) (*sessionIndex, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("session index: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("session index: create dir: %w", err)
	}
	db, err := sql.Open(sessionIndexDriver, path+sessionIndexDSNOpt)
	if err != nil {
		return nil, fmt.Errorf("session index: open db: %w", err)
	}
	idx := &sessionIndex{db: db}
	if err := idx.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return idx, nil
}

func (s *sessionIndex) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sessionIndex) Upsert(surface, sessionID string, at time.Time) error {
	if s == nil || s.db == nil {
		return nil
	}
	if strings.TrimSpace(surface) == "" || strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("session index: surface and session_id are required")
	}
	if at.IsZero() {
		at = time.Now()
	}
	ts := at.UnixMilli()
	const q = `
INSERT INTO session_index (surface, session_id, title, created_at, last_active_at, message_count)
VALUES (?, ?, '', ?, ?, 0)
ON CONFLICT(surface, session_id) DO UPDATE SET
	last_active_at = CASE
		WHEN session_index.last_active_at > excluded.last_active_at THEN session_index.last_active_at
		ELSE excluded.last_active_at
	END`
	_, err := s.db.ExecContext(context.Background(), q, surface, sessionID, ts, ts)
	return err
}

func (s *sessionIndex) SetTitle(surface, sessionID, title string) error {
	if s == nil || s.db == nil {
		return nil
	}
	title = strings.TrimSpace(title)
	if strings.TrimSpace(surface) == "" || strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("session index: surface and session_id are required")
	}
	const q = `UPDATE session_index SET title = ? WHERE surface = ? AND session_id = ? AND title = ''`
	_, err := s.db.ExecContext(context.Background(), q, title, surface, sessionID)
	return err
}

// TouchActivity bumps the activity timestamp and message count after one
// completed exchange (user message plus reply).
func (s *sessionIndex) TouchActivity(surface, sessionID string, messages int, at time.Time) error {
	if s == nil || s.db == nil {
		return nil
	}
	if strings.TrimSpace(surface) == "" || strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("session index: surface and session_id are required")
	}
	if at.IsZero() {
		at = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.Upsert(surface, sessionID, at); err != nil {
		return err
	}
	const q = `
UPDATE session_index SET
	last_active_at = ?,
	message_count = ?
WHERE surface = ? AND session_id = ?`
	_, err := s.db.ExecContext(context.Background(), q, at.UnixMilli(), messages, surface, sessionID)
	return err
}

// ListSurfaceSessions returns titled sessions for one surface in creation
// order. Untitled sessions stay recorded but hidden, mirroring the engine's
// listing filter.
func (s *sessionIndex) ListSurfaceSessions(surface string, limit int) ([]sessionIndexRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	surface = strings.TrimSpace(surface)
	if surface == "" {
		return nil, fmt.Errorf("session index: surface is required")
	}
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT session_id, surface, title, created_at, last_active_at, message_count
FROM session_index
WHERE surface = ? AND title <> ''
ORDER BY created_at ASC
LIMIT ?`
	rows, err := s.db.QueryContext(context.Background(), q, surface, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]sessionIndexRecord, 0, limit)
	for rows.Next() {
		var rec sessionIndexRecord
		var createdAt, lastActiveAt int64
		if err := rows.Scan(&rec.SessionID, &rec.Surface, &rec.Title, &createdAt, &lastActiveAt, &rec.MessageCount); err != nil {
			return nil, err
		}
		rec.CreatedAt = time.UnixMilli(createdAt)
		rec.LastActiveAt = time.UnixMilli(lastActiveAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *sessionIndex) migrate(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS session_index (
	surface TEXT NOT NULL,
	session_id TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	last_active_at INTEGER NOT NULL,
	message_count INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (surface, session_id)
);
CREATE INDEX IF NOT EXISTS idx_session_index_surface_created
ON session_index(surface, created_at ASC);`
	_, err := s.db.ExecContext(ctx, ddl)
	if err != nil {
		return fmt.Errorf("session index: migrate: %w", err)
	}
	return nil
}

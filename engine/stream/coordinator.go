package stream

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sageleaf/converse/engine/backend"
	"github.com/sageleaf/converse/engine/session"
)

// DefaultFallbackReply is the fixed user-visible model message appended when
// an exchange fails before any chunk arrives.
const DefaultFallbackReply = "Sorry, something went wrong while generating a reply. Please try again."

// Config configures a Coordinator.
type Config struct {
	Store     session.Store
	Generator backend.Generator
	// FallbackReply overrides DefaultFallbackReply when non-empty.
	FallbackReply string
}

// Coordinator executes send-and-stream exchanges against one generation
// backend and folds results into session transcripts. Chunks are routed by
// the session addressed when the stream was opened; switching the active
// session elsewhere never redirects or cancels an in-flight exchange.
//
// The per-session gate admits at most one in-flight exchange per session
// while leaving unrelated sessions free to stream concurrently.
type Coordinator struct {
	store    session.Store
	gen      backend.Generator
	fallback string

	gateMu   sync.Mutex
	inflight map[string]struct{}
}

func New(cfg Config) (*Coordinator, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("stream: store is nil")
	}
	fallback := cfg.FallbackReply
	if fallback == "" {
		fallback = DefaultFallbackReply
	}
	return &Coordinator{
		store:    cfg.Store,
		gen:      cfg.Generator,
		fallback: fallback,
		inflight: map[string]struct{}{},
	}, nil
}

// Exchange tracks one send-and-stream invocation. Done is closed when the
// exchange has fully settled, including rejected no-op sends.
type Exchange struct {
	done    chan struct{}
	started bool
}

// Done returns a channel closed once the exchange has settled.
func (e *Exchange) Done() <-chan struct{} {
	return e.done
}

// Started reports whether the send passed validation and opened a stream.
func (e *Exchange) Started() bool {
	if e == nil {
		return false
	}
	return e.started
}

func settledExchange() *Exchange {
	ex := &Exchange{done: make(chan struct{})}
	close(ex.done)
	return ex
}

// Busy reports whether the session has an in-flight exchange.
func (c *Coordinator) Busy(sessionID string) bool {
	c.gateMu.Lock()
	defer c.gateMu.Unlock()
	_, held := c.inflight[sessionID]
	return held
}

func (c *Coordinator) acquire(sessionID string) bool {
	c.gateMu.Lock()
	defer c.gateMu.Unlock()
	if _, held := c.inflight[sessionID]; held {
		return false
	}
	c.inflight[sessionID] = struct{}{}
	return true
}

func (c *Coordinator) release(sessionID string) {
	c.gateMu.Lock()
	defer c.gateMu.Unlock()
	delete(c.inflight, sessionID)
}

// Send submits userText to the addressed session and streams the reply into
// its transcript. It never returns an error: invalid input, a missing
// generator, an unknown session and a busy session are all silent no-ops,
// and backend failures are converted into transcript state (fallback message
// on zero chunks, preserved partial text on a late failure).
//
// The user message is appended synchronously before Send returns; the stream
// itself runs as an independent unit of background work.
func (c *Coordinator) Send(ctx context.Context, sessionID, userText string) *Exchange {
	if strings.TrimSpace(userText) == "" {
		return settledExchange()
	}
	if c.gen == nil {
		return settledExchange()
	}
	sess, err := c.store.Get(ctx, sessionID)
	if err != nil {
		return settledExchange()
	}
	transcript, err := c.store.Transcript(ctx, sessionID)
	if err != nil {
		return settledExchange()
	}
	if !c.acquire(sessionID) {
		return settledExchange()
	}

	prior := transcript.Messages()
	transcript.AppendUser(userText)

	// Title derivation runs only on a session's first submission and never
	// again, even when a later message would make a better label.
	if sess.Title == "" && len(prior) == 0 {
		if title, ok := session.DeriveTitle(userText); ok {
			_ = c.store.SetTitle(ctx, sessionID, title)
		}
	}

	ex := &Exchange{done: make(chan struct{}), started: true}
	go func() {
		defer close(ex.done)
		defer c.release(sessionID)

		openID := ""
		for chunk, err := range c.gen.OpenStream(ctx, &backend.Request{History: prior, Input: userText}) {
			if err != nil {
				if openID == "" {
					transcript.AppendModel(c.fallback)
				} else {
					// Partial output is preserved as final; no fallback is
					// stacked on top of it and there is no retry.
					transcript.Close(openID)
				}
				return
			}
			if chunk == nil || chunk.Text == "" {
				continue
			}
			if openID == "" {
				id, openErr := transcript.OpenModel(chunk.Text)
				if openErr != nil {
					return
				}
				openID = id
				continue
			}
			if appendErr := transcript.AppendChunk(openID, chunk.Text); appendErr != nil {
				return
			}
		}
		// A clean end-of-stream with zero chunks appends nothing; the
		// fallback message is reserved for failures.
		if openID != "" {
			transcript.Close(openID)
		}
	}()
	return ex
}

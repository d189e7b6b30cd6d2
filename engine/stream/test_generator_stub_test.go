package stream

import (
	"context"
	"errors"
	"iter"
	"sync"

	"github.com/sageleaf/converse/engine/backend"
)

var errStubStream = errors.New("stub: stream interrupted")

// stubGenerator yields a scripted chunk sequence per stream. A non-nil gate
// channel makes every stream wait before its first chunk, and failAfter
// injects a stream error after that many chunks (0 fails the open itself).
type stubGenerator struct {
	name      string
	chunks    []string
	gate      chan struct{}
	failAfter int
	fail      bool

	mu       sync.Mutex
	requests []*backend.Request
}

func (g *stubGenerator) Name() string {
	if g.name == "" {
		return "stub"
	}
	return g.name
}

func (g *stubGenerator) Requests() []*backend.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*backend.Request(nil), g.requests...)
}

func (g *stubGenerator) OpenStream(ctx context.Context, req *backend.Request) iter.Seq2[*backend.Chunk, error] {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	g.mu.Unlock()
	return func(yield func(*backend.Chunk, error) bool) {
		if g.gate != nil {
			select {
			case <-g.gate:
			case <-ctx.Done():
				yield(nil, ctx.Err())
				return
			}
		}
		if g.fail && g.failAfter == 0 {
			yield(nil, errStubStream)
			return
		}
		for i, text := range g.chunks {
			if !yield(&backend.Chunk{Text: text}, nil) {
				return
			}
			if g.fail && i+1 == g.failAfter {
				yield(nil, errStubStream)
				return
			}
		}
	}
}

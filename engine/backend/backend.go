package backend

import (
	"context"
	"iter"

	"github.com/sageleaf/converse/engine/chat"
)

// Chunk is one incremental text fragment of a model reply. Fragments are
// concatenation-order-significant.
type Chunk struct {
	Text string
}

// Request carries one exchange: the prior turns of the conversation and the
// new user input. Persona/system instruction is not part of the request; it
// is fixed on the generator at construction.
type Request struct {
	History []chat.Message
	Input   string
}

// Generator is the token-streaming generation backend abstraction. The
// returned sequence yields chunks until the reply completes, or yields a
// single error and stops.
type Generator interface {
	Name() string
	OpenStream(ctx context.Context, req *Request) iter.Seq2[*Chunk, error]
}

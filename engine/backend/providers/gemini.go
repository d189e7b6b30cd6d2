package providers

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/sageleaf/converse/engine/backend"
	"github.com/sageleaf/converse/engine/chat"
)

type geminiGenerator struct {
	name         string
	token        string
	system       string
	maxOutputTok int

	initOnce sync.Once
	client   *genai.Client
	initErr  error
}

func newGemini(cfg Config, token string) backend.Generator {
	return &geminiGenerator{
		name:         cfg.Model,
		token:        token,
		system:       strings.TrimSpace(cfg.SystemInstruction),
		maxOutputTok: cfg.MaxOutputTok,
	}
}

func (g *geminiGenerator) Name() string {
	return g.name
}

// init builds the SDK client once. genai.NewClient wants a context, so the
// client is created lazily on the first stream instead of at construction.
func (g *geminiGenerator) init(ctx context.Context) (*genai.Client, error) {
	g.initOnce.Do(func() {
		g.client, g.initErr = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  g.token,
			Backend: genai.BackendGeminiAPI,
		})
	})
	if g.initErr != nil {
		return nil, fmt.Errorf("providers: gemini client: %w", g.initErr)
	}
	return g.client, nil
}

func (g *geminiGenerator) OpenStream(ctx context.Context, req *backend.Request) iter.Seq2[*backend.Chunk, error] {
	return func(yield func(*backend.Chunk, error) bool) {
		if req == nil {
			yield(nil, fmt.Errorf("providers: request is nil"))
			return
		}
		client, err := g.init(ctx)
		if err != nil {
			yield(nil, err)
			return
		}

		config := &genai.GenerateContentConfig{}
		if g.system != "" {
			config.SystemInstruction = genai.NewContentFromText(g.system, genai.RoleUser)
		}
		if g.maxOutputTok > 0 {
			config.MaxOutputTokens = int32(g.maxOutputTok)
		}

		contents := toGeminiContents(req.History)
		contents = append(contents, genai.NewContentFromText(req.Input, genai.RoleUser))

		for resp, err := range client.Models.GenerateContentStream(ctx, g.name, contents, config) {
			if err != nil {
				yield(nil, fmt.Errorf("providers: gemini stream: %w", err))
				return
			}
			text := geminiResponseText(resp)
			if text == "" {
				continue
			}
			if !yield(&backend.Chunk{Text: text}, nil) {
				return
			}
		}
	}
}

func toGeminiContents(history []chat.Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(history)+1)
	for _, msg := range history {
		if strings.TrimSpace(msg.Text) == "" {
			continue
		}
		var role genai.Role = genai.RoleUser
		if msg.Role == chat.RoleModel {
			role = genai.RoleModel
		}
		out = append(out, genai.NewContentFromText(msg.Text, role))
	}
	return out
}

func geminiResponseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	parts := make([]string, 0, len(resp.Candidates[0].Content.Parts))
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Text == "" {
			continue
		}
		parts = append(parts, part.Text)
	}
	return strings.Join(parts, "")
}

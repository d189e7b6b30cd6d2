package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/sageleaf/converse/engine/backend"
	"github.com/sageleaf/converse/engine/chat"
)

type openAICompatGenerator struct {
	name         string
	baseURL      string
	token        string
	system       string
	maxOutputTok int
	client       *http.Client
}

func newOpenAICompat(cfg Config, token string) backend.Generator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &openAICompatGenerator{
		name:         cfg.Model,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		token:        token,
		system:       strings.TrimSpace(cfg.SystemInstruction),
		maxOutputTok: cfg.MaxOutputTok,
		client:       &http.Client{Timeout: timeout},
	}
}

func (g *openAICompatGenerator) Name() string {
	return g.name
}

func (g *openAICompatGenerator) OpenStream(ctx context.Context, req *backend.Request) iter.Seq2[*backend.Chunk, error] {
	return func(yield func(*backend.Chunk, error) bool) {
		if req == nil {
			yield(nil, fmt.Errorf("providers: request is nil"))
			return
		}
		payload := openAICompatRequest{
			Model:    g.name,
			Messages: g.toWireMessages(req),
			Stream:   true,
		}
		if g.maxOutputTok > 0 {
			payload.MaxTokens = g.maxOutputTok
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			yield(nil, err)
			return
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(raw))
		if err != nil {
			yield(nil, err)
			return
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+g.token)

		resp, err := g.client.Do(httpReq)
		if err != nil {
			yield(nil, err)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			yield(nil, statusError(resp))
			return
		}

		if err := readSSE(resp.Body, func(data []byte) error {
			var delta openAICompatStreamChunk
			if err := json.Unmarshal(data, &delta); err != nil {
				return fmt.Errorf("providers: decode stream chunk: %w", err)
			}
			if len(delta.Choices) == 0 {
				return nil
			}
			text := delta.Choices[0].Delta.Content
			if text == "" {
				return nil
			}
			if !yield(&backend.Chunk{Text: text}, nil) {
				return errStopSSE
			}
			return nil
		}); err != nil {
			yield(nil, err)
			return
		}
	}
}

func (g *openAICompatGenerator) toWireMessages(req *backend.Request) []openAICompatMessage {
	out := make([]openAICompatMessage, 0, len(req.History)+2)
	if g.system != "" {
		out = append(out, openAICompatMessage{Role: "system", Content: g.system})
	}
	for _, msg := range req.History {
		if strings.TrimSpace(msg.Text) == "" {
			continue
		}
		role := "user"
		if msg.Role == chat.RoleModel {
			role = "assistant"
		}
		out = append(out, openAICompatMessage{Role: role, Content: msg.Text})
	}
	out = append(out, openAICompatMessage{Role: "user", Content: req.Input})
	return out
}

type openAICompatRequest struct {
	Model     string                `json:"model"`
	Messages  []openAICompatMessage `json:"messages"`
	MaxTokens int                   `json:"max_tokens,omitempty"`
	Stream    bool                  `json:"stream"`
}

type openAICompatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAICompatStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

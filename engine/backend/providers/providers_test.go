package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sageleaf/converse/engine/backend"
	"github.com/sageleaf/converse/engine/chat"
)

func TestFactory_RequiresRegistration(t *testing.T) {
	factory := NewFactory()
	if got := factory.ListAliases(); len(got) != 0 {
		t.Fatalf("expected empty alias list, got %v", got)
	}
	if _, err := factory.NewByAlias("gemini-flash", ""); err == nil {
		t.Fatal("expected unknown alias error without registration")
	}

	cfg := Config{
		Alias:    "gemini-flash",
		Provider: "google",
		API:      APIGemini,
		Model:    "gemini-2.0-flash",
		Auth:     AuthConfig{Token: "secret"},
	}
	if err := factory.Register(cfg); err != nil {
		t.Fatalf("register generator config: %v", err)
	}
	list := factory.ListAliases()
	if len(list) != 1 || list[0] != cfg.Alias {
		t.Fatalf("unexpected aliases: %v", list)
	}
}

func TestFactory_RejectsUnsupportedAPI(t *testing.T) {
	factory := NewFactory()
	err := factory.Register(Config{
		Alias: "bad",
		API:   APIType("carrier-pigeon"),
		Model: "m",
	})
	if err == nil {
		t.Fatal("expected unsupported api type error")
	}
}

func TestFactory_ResolvesTokenFromEnv(t *testing.T) {
	t.Setenv("CONVERSE_TEST_TOKEN", "from-env")
	factory := NewFactory()
	if err := factory.Register(Config{
		Alias: "local",
		API:   APIOpenAICompatible,
		Model: "test-model",
		Auth:  AuthConfig{TokenEnv: "CONVERSE_TEST_TOKEN"},
	}); err != nil {
		t.Fatal(err)
	}
	gen, err := factory.NewByAlias("local", "")
	if err != nil {
		t.Fatalf("expected env token to satisfy auth: %v", err)
	}
	if gen.Name() != "test-model" {
		t.Fatalf("unexpected generator name %q", gen.Name())
	}
}

func TestFactory_MissingTokenFails(t *testing.T) {
	factory := NewFactory()
	if err := factory.Register(Config{
		Alias: "local",
		API:   APIOpenAICompatible,
		Model: "test-model",
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := factory.NewByAlias("local", ""); err == nil {
		t.Fatal("expected empty token error")
	}
}

func TestOpenAICompat_StreamsDeltasInOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, piece := range []string{"Grav", "ity pulls", " masses together."} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", piece)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	gen := newOpenAICompat(Config{
		Model:   "test-model",
		BaseURL: server.URL,
		Timeout: 2 * time.Second,
	}, "token")

	var got strings.Builder
	for chunk, err := range gen.OpenStream(context.Background(), &backend.Request{Input: "tell me about gravity"}) {
		if err != nil {
			t.Fatalf("unexpected stream error: %v", err)
		}
		got.WriteString(chunk.Text)
	}
	if got.String() != "Gravity pulls masses together." {
		t.Fatalf("unexpected reply %q", got.String())
	}
}

func TestOpenAICompat_SendsPersonaAndHistory(t *testing.T) {
	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(raw))
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	gen := newOpenAICompat(Config{
		Model:             "test-model",
		BaseURL:           server.URL,
		SystemInstruction: "You are a terse helper.",
		Timeout:           2 * time.Second,
	}, "token")

	req := &backend.Request{
		History: []chat.Message{
			{Role: chat.RoleUser, Text: "earlier question"},
			{Role: chat.RoleModel, Text: "earlier answer"},
		},
		Input: "follow up",
	}
	for _, err := range gen.OpenStream(context.Background(), req) {
		if err != nil {
			t.Fatalf("unexpected stream error: %v", err)
		}
	}
	if len(bodies) != 1 {
		t.Fatalf("expected one request, got %d", len(bodies))
	}
	body := bodies[0]
	for _, want := range []string{"You are a terse helper.", "earlier question", "earlier answer", "follow up", "\"system\"", "\"assistant\""} {
		if !strings.Contains(body, want) {
			t.Fatalf("request body missing %q: %s", want, body)
		}
	}
}

func TestOpenAICompat_HTTPStatusBecomesStreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	gen := newOpenAICompat(Config{
		Model:   "test-model",
		BaseURL: server.URL,
		Timeout: 2 * time.Second,
	}, "token")

	var gotErr error
	var chunks int
	for chunk, err := range gen.OpenStream(context.Background(), &backend.Request{Input: "hi"}) {
		if err != nil {
			gotErr = err
			continue
		}
		if chunk != nil {
			chunks++
		}
	}
	if gotErr == nil {
		t.Fatal("expected error for http 429")
	}
	if chunks != 0 {
		t.Fatalf("expected no chunks on failure, got %d", chunks)
	}
	if !strings.Contains(gotErr.Error(), "429") {
		t.Fatalf("expected status in error, got %v", gotErr)
	}
}

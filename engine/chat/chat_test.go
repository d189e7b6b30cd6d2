package chat

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestTranscript_AppendOrder(t *testing.T) {
	tr := NewTranscript()
	tr.AppendUser("first")
	tr.AppendModel("second")
	tr.AppendUser("third")

	msgs := tr.Messages()
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[0].Text != "first" || msgs[1].Text != "second" || msgs[2].Text != "third" {
		t.Fatalf("unexpected order: %q, %q, %q", msgs[0].Text, msgs[1].Text, msgs[2].Text)
	}
	if msgs[0].Role != RoleUser || msgs[1].Role != RoleModel {
		t.Fatalf("unexpected roles: %s, %s", msgs[0].Role, msgs[1].Role)
	}
}

func TestTranscript_SingleOpenMessage(t *testing.T) {
	tr := NewTranscript()
	id, err := tr.OpenModel("Hel")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tr.OpenModel("again"); !errors.Is(err, ErrMessageOpen) {
		t.Fatalf("expected ErrMessageOpen for second open, got %v", err)
	}
	tr.Close(id)
	if _, err := tr.OpenModel("ok"); err != nil {
		t.Fatalf("open after close: %v", err)
	}
}

func TestTranscript_ChunkConcatenation(t *testing.T) {
	tr := NewTranscript()
	id, err := tr.OpenModel("Hel")
	if err != nil {
		t.Fatal(err)
	}
	for _, chunk := range []string{"lo, ", "world"} {
		if err := tr.AppendChunk(id, chunk); err != nil {
			t.Fatalf("append chunk %q: %v", chunk, err)
		}
	}
	tr.Close(id)

	msgs := tr.Messages()
	if got := msgs[len(msgs)-1].Text; got != "Hello, world" {
		t.Fatalf("expected %q, got %q", "Hello, world", got)
	}
	if err := tr.AppendChunk(id, "late"); !errors.Is(err, ErrMessageClosed) {
		t.Fatalf("expected ErrMessageClosed after close, got %v", err)
	}
}

func TestTranscript_ChunkRejectsStaleID(t *testing.T) {
	tr := NewTranscript()
	if err := tr.AppendChunk("missing", "x"); !errors.Is(err, ErrMessageClosed) {
		t.Fatalf("expected ErrMessageClosed for unknown id, got %v", err)
	}
	id, err := tr.OpenModel("a")
	if err != nil {
		t.Fatal(err)
	}
	if err := tr.AppendChunk("other", "x"); !errors.Is(err, ErrMessageClosed) {
		t.Fatalf("expected ErrMessageClosed for mismatched id, got %v", err)
	}
	tr.Close(id)
}

func TestTranscript_SnapshotIsolation(t *testing.T) {
	tr := NewTranscript()
	tr.AppendUser("hello")
	snap := tr.Messages()
	snap[0].Text = "mutated"
	if got := tr.Messages()[0].Text; got != "hello" {
		t.Fatalf("snapshot mutation leaked into transcript: %q", got)
	}
}

func TestTranscript_ConcurrentReadsDuringAppends(t *testing.T) {
	tr := NewTranscript()
	id, err := tr.OpenModel("")
	if err != nil {
		t.Fatal(err)
	}
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = tr.AppendChunk(id, fmt.Sprintf("%d,", i))
		}
		tr.Close(id)
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			msgs := tr.Messages()
			if len(msgs) != 1 {
				t.Errorf("expected 1 message during stream, got %d", len(msgs))
				return
			}
		}
	}()
	wg.Wait()
}

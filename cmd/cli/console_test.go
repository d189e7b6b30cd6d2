package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sageleaf/converse/engine/session/inmemory"
	"github.com/sageleaf/converse/engine/stream"
	"github.com/sageleaf/converse/engine/surface"
)

type bufferEditor struct {
	out bytes.Buffer
}

func (b *bufferEditor) ReadLine(string) (string, error) { return "", errInputEOF }
func (b *bufferEditor) Output() io.Writer               { return &b.out }
func (b *bufferEditor) Close() error                    { return nil }

func newTestConsole(t *testing.T, idx *sessionIndex) (*cliConsole, *surfaceRuntime, *bufferEditor) {
	t.Helper()
	store := newIndexedSessionStore(inmemory.New(), idx, "tutor")
	coord, err := stream.New(stream.Config{Store: store})
	if err != nil {
		t.Fatal(err)
	}
	sfc, err := surface.New(surface.Config{Name: "tutor", Store: store, Coordinator: coord})
	if err != nil {
		t.Fatal(err)
	}
	rt := &surfaceRuntime{surface: sfc, store: store}
	ed := &bufferEditor{}
	console := newCLIConsole(cliConsoleConfig{
		BaseCtx:  context.Background(),
		Editor:   ed,
		Version:  "test",
		Surfaces: map[string]*surfaceRuntime{"tutor": rt},
		Initial:  "tutor",
	})
	return console, rt, ed
}

func TestCmdSessions_ListsFromIndexAcrossRuns(t *testing.T) {
	idx := newTestIndex(t)
	// A conversation left behind by an earlier run lives only in the index.
	if err := idx.Upsert("tutor", "old-run-session", time.Now().Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := idx.SetTitle("tutor", "old-run-session", "Yesterday's question about tides"); err != nil {
		t.Fatal(err)
	}

	console, rt, ed := newTestConsole(t, idx)
	sess, err := rt.store.Create(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if err := rt.store.SetTitle(context.Background(), sess.ID, "Today's question about gravity"); err != nil {
		t.Fatal(err)
	}

	if _, err := console.cmdSessions(nil); err != nil {
		t.Fatal(err)
	}

	out := ed.out.String()
	if !strings.Contains(out, "Yesterday's question about tides") {
		t.Fatalf("listing must include earlier runs, got:\n%s", out)
	}
	if !strings.Contains(out, "Today's question about gravity") {
		t.Fatalf("listing must include this run's sessions, got:\n%s", out)
	}
	if len(console.lastListing) != 2 {
		t.Fatalf("expected 2 listed conversations, got %d", len(console.lastListing))
	}
	if console.lastListing[0].ID != "old-run-session" {
		t.Fatalf("expected creation order with the older session first, got %q", console.lastListing[0].ID)
	}
}

func TestCmdSwitch_CurrentRunActivatesPreviousRunExplains(t *testing.T) {
	idx := newTestIndex(t)
	if err := idx.Upsert("tutor", "old-run-session", time.Now().Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := idx.SetTitle("tutor", "old-run-session", "Yesterday's question about tides"); err != nil {
		t.Fatal(err)
	}

	console, rt, _ := newTestConsole(t, idx)
	sess, err := rt.store.Create(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if err := rt.store.SetTitle(context.Background(), sess.ID, "Today's question about gravity"); err != nil {
		t.Fatal(err)
	}
	if _, err := console.cmdSessions(nil); err != nil {
		t.Fatal(err)
	}

	// Row 2 is this run's session and must activate.
	if _, err := console.cmdSwitch([]string{"2"}); err != nil {
		t.Fatalf("switch to current-run session: %v", err)
	}
	if rt.surface.ActiveID() != sess.ID {
		t.Fatalf("expected active session %q, got %q", sess.ID, rt.surface.ActiveID())
	}

	// Row 1 only exists in the index; its transcript did not survive the
	// previous process, so switching must fail with an explanation.
	_, err = console.cmdSwitch([]string{"1"})
	if err == nil {
		t.Fatal("expected an error switching to a previous-run session")
	}
	if !strings.Contains(err.Error(), "previous run") {
		t.Fatalf("unexpected error %v", err)
	}
	if rt.surface.ActiveID() != sess.ID {
		t.Fatal("a failed switch must not move the active pointer")
	}
}

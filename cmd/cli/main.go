package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/sageleaf/converse/engine/backend/providers"
	"github.com/sageleaf/converse/engine/session/inmemory"
	"github.com/sageleaf/converse/engine/stream"
	"github.com/sageleaf/converse/engine/surface"
	"github.com/sageleaf/converse/internal/version"
)

var surfaceNames = []string{"tutor", "debate", "assistant"}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "converse: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		flagSurface = flag.String("surface", "tutor", "initial surface (tutor, debate, assistant)")
		flagModel   = flag.String("model", "", "generator alias override")
		flagConfig  = flag.String("config", "", "config file path")
	)
	flag.Parse()

	// Best-effort .env pick-up so API keys don't have to live in the shell.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadOrInitAppConfig(*flagConfig)
	if err != nil {
		return err
	}

	factory := providers.NewFactory()
	for _, generatorCfg := range cfg.GeneratorConfigs() {
		if err := factory.Register(generatorCfg); err != nil {
			return err
		}
	}

	alias := strings.ToLower(strings.TrimSpace(*flagModel))
	if alias == "" {
		alias = cfg.DefaultGenerator()
	}

	initial := strings.ToLower(strings.TrimSpace(*flagSurface))
	if !validSurface(initial) {
		return fmt.Errorf("unknown surface %q (want one of %s)", initial, strings.Join(surfaceNames, ", "))
	}

	index, err := newSessionIndex(sessionIndexPath())
	if err != nil {
		return err
	}
	defer index.Close()

	surfaces := make(map[string]*surfaceRuntime, len(surfaceNames))
	for _, name := range surfaceNames {
		rt, err := buildSurface(name, alias, cfg, factory, index)
		if err != nil {
			return err
		}
		surfaces[name] = rt
	}

	editor, err := newLineEditor(lineEditorConfig{
		HistoryFile: historyPath(),
		Commands:    consoleCommandNames(),
	})
	if err != nil {
		return err
	}
	defer editor.Close()

	console := newCLIConsole(cliConsoleConfig{
		BaseCtx:  ctx,
		Editor:   editor,
		Version:  version.Version,
		Surfaces: surfaces,
		Initial:  initial,
	})
	return console.Run()
}

// buildSurface wires one conversational surface: an indexed in-memory store
// plus a coordinator whose generator carries the surface persona.
func buildSurface(name, alias string, cfg *appConfigStore, factory *providers.Factory, index *sessionIndex) (*surfaceRuntime, error) {
	gen, err := factory.NewByAlias(alias, cfg.Persona(name))
	if err != nil {
		// A missing token degrades to a no-generator surface: sends become
		// silent no-ops instead of failing startup.
		fmt.Fprintf(os.Stderr, "converse: surface %s has no generator: %v\n", name, err)
		gen = nil
	}

	store := newIndexedSessionStore(inmemory.New(), index, name)
	coord, err := stream.New(stream.Config{Store: store, Generator: gen})
	if err != nil {
		return nil, err
	}
	sfc, err := surface.New(surface.Config{Name: name, Store: store, Coordinator: coord})
	if err != nil {
		return nil, err
	}
	return &surfaceRuntime{surface: sfc, store: store}, nil
}

func validSurface(name string) bool {
	for _, candidate := range surfaceNames {
		if candidate == name {
			return true
		}
	}
	return false
}

func stateDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(base, "converse")
}

func sessionIndexPath() string {
	return filepath.Join(stateDir(), "session_index.db")
}

func historyPath() string {
	return filepath.Join(stateDir(), "history")
}

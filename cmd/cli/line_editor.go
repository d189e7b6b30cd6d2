package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
)

var (
	errInputInterrupt = errors.New("cli: input interrupted")
	errInputEOF       = errors.New("cli: input eof")
)

// lineEditor abstracts the prompt loop's input so the console works the same
// on an interactive terminal and on piped stdin.
type lineEditor interface {
	ReadLine(prompt string) (string, error)
	Output() io.Writer
	Close() error
}

type lineEditorConfig struct {
	HistoryFile string
	Commands    []string
}

// newLineEditor prefers readline on a terminal and falls back to plain
// buffered stdin otherwise (pipes, redirects, readline init failure).
func newLineEditor(cfg lineEditorConfig) (lineEditor, error) {
	if isTTY(os.Stdin) && isTTY(os.Stdout) {
		if ed, err := newReadlineEditor(cfg); err == nil {
			return ed, nil
		}
	}
	return &stdioEditor{in: bufio.NewReader(os.Stdin), out: os.Stdout}, nil
}

func isTTY(f *os.File) bool {
	if f == nil {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

type readlineEditor struct {
	rl *readline.Instance
}

func newReadlineEditor(cfg lineEditorConfig) (*readlineEditor, error) {
	history := strings.TrimSpace(cfg.HistoryFile)
	if history != "" {
		if err := os.MkdirAll(filepath.Dir(history), 0o755); err != nil {
			return nil, fmt.Errorf("cli: create history dir: %w", err)
		}
	}
	rl, err := readline.NewEx(&readline.Config{
		HistoryFile:     history,
		AutoComplete:    slashCompleter(cfg.Commands),
		InterruptPrompt: "^C",
	})
	if err != nil {
		return nil, err
	}
	return &readlineEditor{rl: rl}, nil
}

// slashCompleter completes /commands at the start of a line.
func slashCompleter(commands []string) readline.AutoCompleter {
	items := make([]readline.PrefixCompleterInterface, 0, len(commands))
	for _, name := range commands {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		items = append(items, readline.PcItem("/"+name))
	}
	return readline.NewPrefixCompleter(items...)
}

func (r *readlineEditor) ReadLine(prompt string) (string, error) {
	r.rl.SetPrompt(prompt)
	line, err := r.rl.Readline()
	switch {
	case err == nil:
		return strings.TrimSpace(line), nil
	case errors.Is(err, readline.ErrInterrupt):
		return "", errInputInterrupt
	case errors.Is(err, io.EOF):
		return "", errInputEOF
	default:
		return "", err
	}
}

func (r *readlineEditor) Output() io.Writer {
	return r.rl.Stdout()
}

func (r *readlineEditor) Close() error {
	return r.rl.Close()
}

type stdioEditor struct {
	in  *bufio.Reader
	out io.Writer
}

func (s *stdioEditor) ReadLine(prompt string) (string, error) {
	fmt.Fprint(s.out, prompt)
	line, err := s.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", errInputEOF
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (s *stdioEditor) Output() io.Writer {
	return s.out
}

func (s *stdioEditor) Close() error {
	return nil
}

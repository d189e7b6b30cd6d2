package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"

	"github.com/sageleaf/converse/engine/chat"
	"github.com/sageleaf/converse/engine/session"
	"github.com/sageleaf/converse/engine/surface"
)

// surfaceRuntime bundles one surface with its index-backed store so the
// console can record activity after each exchange.
type surfaceRuntime struct {
	surface *surface.Surface
	store   *indexedSessionStore
}

type cliConsole struct {
	baseCtx context.Context
	editor  lineEditor
	out     io.Writer
	version string

	surfaces map[string]*surfaceRuntime
	current  string

	commands    map[string]slashCommand
	lastListing []sessionListing
	renderer    *glamour.TermRenderer
}

// sessionListing is one numbered /sessions row, kept so /switch can resolve
// the number the user saw.
type sessionListing struct {
	ID    string
	Title string
}

type slashCommand struct {
	Usage       string
	Description string
	Handle      func(*cliConsole, []string) (bool, error)
}

type cliConsoleConfig struct {
	BaseCtx  context.Context
	Editor   lineEditor
	Version  string
	Surfaces map[string]*surfaceRuntime
	Initial  string
}

func consoleCommandNames() []string {
	return []string{"help", "version", "new", "sessions", "switch", "surface", "exit"}
}

func newCLIConsole(cfg cliConsoleConfig) *cliConsole {
	c := &cliConsole{
		baseCtx:  cfg.BaseCtx,
		editor:   cfg.Editor,
		out:      cfg.Editor.Output(),
		version:  cfg.Version,
		surfaces: cfg.Surfaces,
		current:  cfg.Initial,
	}
	if renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100)); err == nil {
		c.renderer = renderer
	}
	c.commands = map[string]slashCommand{
		"help": {
			Usage:       "/help",
			Description: "show available commands",
			Handle:      (*cliConsole).cmdHelp,
		},
		"version": {
			Usage:       "/version",
			Description: "show version",
			Handle:      (*cliConsole).cmdVersion,
		},
		"new": {
			Usage:       "/new",
			Description: "start a new conversation on the current surface",
			Handle:      (*cliConsole).cmdNew,
		},
		"sessions": {
			Usage:       "/sessions",
			Description: "list this surface's conversations",
			Handle:      (*cliConsole).cmdSessions,
		},
		"switch": {
			Usage:       "/switch <n>",
			Description: "switch to conversation n from /sessions",
			Handle:      (*cliConsole).cmdSwitch,
		},
		"surface": {
			Usage:       "/surface <name>",
			Description: "change surface (tutor, debate, assistant)",
			Handle:      (*cliConsole).cmdSurface,
		},
		"exit": {
			Usage:       "/exit",
			Description: "quit",
			Handle:      (*cliConsole).cmdExit,
		},
	}
	return c
}

var (
	promptColor = color.New(color.FgCyan, color.Bold)
	noticeColor = color.New(color.FgYellow)
	errorColor  = color.New(color.FgRed)
	replyColor  = color.New(color.FgGreen)
)

func (c *cliConsole) Run() error {
	fmt.Fprintf(c.out, "converse %s — /help for commands\n", c.version)
	for {
		select {
		case <-c.baseCtx.Done():
			return nil
		default:
		}

		line, err := c.editor.ReadLine(c.prompt())
		if err != nil {
			if errors.Is(err, errInputInterrupt) {
				fmt.Fprintln(c.out, noticeColor.Sprint("use /exit to quit"))
				continue
			}
			if errors.Is(err, errInputEOF) {
				return nil
			}
			return err
		}
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := c.dispatch(line)
			if err != nil {
				fmt.Fprintln(c.out, errorColor.Sprintf("error: %v", err))
			}
			if quit {
				return nil
			}
			continue
		}

		c.sendAndRender(line)
	}
}

func (c *cliConsole) prompt() string {
	rt := c.currentRuntime()
	busy := ""
	if rt != nil && rt.surface.Busy() {
		busy = " (busy)"
	}
	return promptColor.Sprintf("%s%s> ", c.current, busy)
}

func (c *cliConsole) currentRuntime() *surfaceRuntime {
	return c.surfaces[c.current]
}

func (c *cliConsole) dispatch(line string) (bool, error) {
	fields := strings.Fields(strings.TrimPrefix(line, "/"))
	if len(fields) == 0 {
		return false, nil
	}
	name := strings.ToLower(fields[0])
	cmd, ok := c.commands[name]
	if !ok {
		return false, fmt.Errorf("unknown command %q, try /help", name)
	}
	return cmd.Handle(c, fields[1:])
}

func (c *cliConsole) sendAndRender(text string) {
	rt := c.currentRuntime()
	if rt == nil {
		fmt.Fprintln(c.out, errorColor.Sprint("no surface selected"))
		return
	}
	if rt.surface.Busy() {
		fmt.Fprintln(c.out, noticeColor.Sprint("still generating a reply for this conversation, please wait"))
		return
	}

	ex := rt.surface.Send(c.baseCtx, text)
	if !ex.Started() {
		return
	}
	select {
	case <-ex.Done():
	case <-c.baseCtx.Done():
		return
	}

	msgs, err := rt.surface.Messages(c.baseCtx)
	if err != nil {
		fmt.Fprintln(c.out, errorColor.Sprintf("error: %v", err))
		return
	}
	if len(msgs) == 0 {
		return
	}
	last := msgs[len(msgs)-1]
	if last.Role == chat.RoleModel {
		c.printReply(last.Text)
	}
	rt.store.touchActivity(rt.surface.ActiveID(), len(msgs))
}

func (c *cliConsole) printReply(text string) {
	if c.renderer != nil {
		if rendered, err := c.renderer.Render(text); err == nil {
			fmt.Fprint(c.out, rendered)
			return
		}
	}
	fmt.Fprintln(c.out, replyColor.Sprint(text))
}

func (c *cliConsole) cmdHelp(_ []string) (bool, error) {
	names := make([]string, 0, len(c.commands))
	for name := range c.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cmd := c.commands[name]
		fmt.Fprintf(c.out, "  %-18s %s\n", cmd.Usage, cmd.Description)
	}
	return false, nil
}

func (c *cliConsole) cmdVersion(_ []string) (bool, error) {
	fmt.Fprintf(c.out, "converse %s\n", c.version)
	return false, nil
}

func (c *cliConsole) cmdNew(_ []string) (bool, error) {
	rt := c.currentRuntime()
	if rt == nil {
		return false, fmt.Errorf("no surface selected")
	}
	// Navigation only: the session is created when the next message is sent.
	rt.surface.ClearActive()
	fmt.Fprintln(c.out, noticeColor.Sprint("new conversation — send a message to start it"))
	return false, nil
}

func (c *cliConsole) cmdSessions(_ []string) (bool, error) {
	rt := c.currentRuntime()
	if rt == nil {
		return false, fmt.Errorf("no surface selected")
	}
	// The index, not the in-memory store, backs the listing so earlier CLI
	// runs show up too.
	records, err := rt.store.listIndexed(50)
	if err != nil {
		return false, err
	}
	c.lastListing = c.lastListing[:0]
	if len(records) == 0 {
		fmt.Fprintln(c.out, "no conversations yet on this surface")
		return false, nil
	}
	active := rt.surface.ActiveID()
	for i, rec := range records {
		c.lastListing = append(c.lastListing, sessionListing{ID: rec.SessionID, Title: rec.Title})
		marker := " "
		if rec.SessionID == active {
			marker = "*"
		}
		fmt.Fprintf(c.out, "%s %2d. %s\n", marker, i+1, rec.Title)
	}
	return false, nil
}

func (c *cliConsole) cmdSwitch(args []string) (bool, error) {
	rt := c.currentRuntime()
	if rt == nil {
		return false, fmt.Errorf("no surface selected")
	}
	if len(args) != 1 {
		return false, fmt.Errorf("usage: /switch <n>")
	}
	if len(c.lastListing) == 0 {
		return false, fmt.Errorf("run /sessions first")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > len(c.lastListing) {
		return false, fmt.Errorf("pick a number between 1 and %d", len(c.lastListing))
	}
	target := c.lastListing[n-1]
	if err := rt.surface.Activate(c.baseCtx, target.ID); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			// Indexed but not in this run's store: transcripts don't outlive
			// the process, only the listing does.
			return false, fmt.Errorf("%q is from a previous run and its transcript is gone", target.Title)
		}
		return false, err
	}
	fmt.Fprintf(c.out, "switched to %q\n", target.Title)
	c.renderTranscript(rt)
	return false, nil
}

func (c *cliConsole) cmdSurface(args []string) (bool, error) {
	if len(args) != 1 {
		return false, fmt.Errorf("usage: /surface <%s>", strings.Join(c.surfaceNames(), "|"))
	}
	name := strings.ToLower(args[0])
	if _, ok := c.surfaces[name]; !ok {
		return false, fmt.Errorf("unknown surface %q", name)
	}
	c.current = name
	c.lastListing = nil
	fmt.Fprintf(c.out, "surface: %s\n", name)
	return false, nil
}

func (c *cliConsole) cmdExit(_ []string) (bool, error) {
	return true, nil
}

func (c *cliConsole) surfaceNames() []string {
	names := make([]string, 0, len(c.surfaces))
	for name := range c.surfaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *cliConsole) renderTranscript(rt *surfaceRuntime) {
	msgs, err := rt.surface.Messages(c.baseCtx)
	if err != nil {
		fmt.Fprintln(c.out, errorColor.Sprintf("error: %v", err))
		return
	}
	for _, msg := range msgs {
		if msg.Role == chat.RoleUser {
			fmt.Fprintf(c.out, "you: %s\n", msg.Text)
			continue
		}
		c.printReply(msg.Text)
	}
}

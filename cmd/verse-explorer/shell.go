package main

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"github.com/FocuswithJustin/VerseExplorer/core/errors"
	"github.com/FocuswithJustin/VerseExplorer/internal/session"
)

const shellHelp = `Enter a reference (2, 2.255, 2-3, 2.1-7, 2.1-3.5) to show it, or:
  :k [keyword]              set the keyword filter; empty clears it
  :t name[, name...]        select the translations to display
  :broad-search on|off      match the keyword in every translation
  :broad-results on|off     also display translations that matched
  :include-notes on|off     match the keyword against notes
  :next, :prev              move to the next or previous verse
  :notes on|off             enter or leave notes mode
  :note text                write the note of the verse on display
  :help                     show this text
  :quit                     save preferences and leave
`

// ShellCmd runs a line-oriented interactive session.
type ShellCmd struct {
	NoPrompt bool `name:"no-prompt" help:"Do not print a prompt before each line"`
}

func (c *ShellCmd) Run(g *Globals) error {
	ctx := context.Background()
	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := g.loadPrefs()
	if err != nil {
		return err
	}
	sh := &shell{ctx: ctx, s: session.New(a.lib, p), lib: a.lib, out: stdout, prompt: !c.NoPrompt}

	sh.report(sh.s.Show(ctx, false))
	if err := sh.loop(stdin); err != nil {
		return err
	}

	if err := sh.s.Close(ctx); err != nil {
		return err
	}
	return g.savePrefs(sh.s.Prefs())
}

type shell struct {
	ctx    context.Context
	s      *session.Session
	lib    *session.Library
	out    io.Writer
	prompt bool
}

func (sh *shell) loop(in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		if sh.prompt {
			fmt.Fprint(sh.out, "> ")
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !sh.exec(line) {
			return nil
		}
	}
}

// exec runs one line and reports whether the shell should continue.
func (sh *shell) exec(line string) bool {
	ctx := sh.ctx
	if !strings.HasPrefix(line, ":") {
		sh.s.Reference = line
		sh.report(sh.s.Show(ctx, false))
		return true
	}

	cmd, arg, _ := strings.Cut(line[1:], " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "q", "quit", "exit":
		return false
	case "help", "h", "?":
		fmt.Fprint(sh.out, shellHelp)
	case "k":
		prev := sh.s.Keyword
		sh.s.Keyword = arg
		v, err := sh.s.Show(ctx, false)
		if stderrors.Is(err, session.ErrNotesKeywordConflict) {
			sh.s.Keyword = prev
		}
		sh.report(v, err)
	case "t":
		var names []string
		for _, n := range strings.Split(arg, ",") {
			if n = strings.TrimSpace(n); n != "" {
				names = append(names, n)
			}
		}
		sh.s.Selected = names
		sh.report(sh.s.Show(ctx, false))
	case "broad-search", "broad-results", "include-notes":
		on, ok := parseSwitch(arg)
		if !ok {
			fmt.Fprintf(sh.out, "usage: :%s on|off\n", cmd)
			return true
		}
		switch cmd {
		case "broad-search":
			sh.s.BroadSearch = on
		case "broad-results":
			sh.s.BroadResults = on
		default:
			sh.s.IncludeNotes = on
		}
		sh.report(sh.s.Show(ctx, false))
	case "next":
		sh.report(sh.s.Next(ctx))
	case "prev":
		sh.report(sh.s.Previous(ctx))
	case "notes":
		on, ok := parseSwitch(arg)
		switch {
		case !ok:
			fmt.Fprintln(sh.out, "usage: :notes on|off")
		case on:
			sh.report(sh.s.EnableNotes(ctx))
		default:
			sh.report(sh.s.DisableNotes(ctx))
		}
	case "note":
		if err := sh.s.EditNote(arg); err != nil {
			fmt.Fprintf(sh.out, "error: %v\n", err)
			return true
		}
		fmt.Fprintln(sh.out, "Note pending; it is saved when you move on or quit")
	default:
		fmt.Fprintf(sh.out, "unknown command :%s (try :help)\n", cmd)
	}
	return true
}

// report prints a view, or the error that replaced it. A reference that
// does not resolve falls back to the default reference.
func (sh *shell) report(v *session.View, err error) {
	if err != nil {
		fmt.Fprintf(sh.out, "error: %v\n", err)
		if !stderrors.Is(err, errors.ErrInvalidReference) && !stderrors.Is(err, errors.ErrChapterNotFound) {
			return
		}
		fmt.Fprintf(sh.out, "Showing %s instead\n", session.FallbackReference)
		if v, err = sh.s.Fallback(sh.ctx); err != nil {
			fmt.Fprintf(sh.out, "error: %v\n", err)
			return
		}
	}
	if err := printView(sh.out, sh.lib, v); err != nil {
		fmt.Fprintf(sh.out, "error: %v\n", err)
	}
}

func parseSwitch(s string) (on, ok bool) {
	switch strings.ToLower(s) {
	case "on", "yes", "true", "1":
		return true, true
	case "off", "no", "false", "0":
		return false, true
	}
	return false, false
}

package ui

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// statusWidth is the fixed width of the transient status line. Updates are
// padded to this width and the cursor is moved back the same distance, so
// each update overwrites the previous one in place.
const statusWidth = 65

// StatusLine renders single-line, in-place progress for long operations
// like block commits. When disabled every Update is a no-op, so callers
// don't need to branch on interactivity.
type StatusLine struct {
	out     io.Writer
	enabled bool
	dirty   bool
}

// NewStatusLine creates a status line writing to out. Pass the result of
// StdoutIsTerminal (or a config override) as enabled.
func NewStatusLine(out io.Writer, enabled bool) *StatusLine {
	return &StatusLine{out: out, enabled: enabled}
}

// Enabled reports whether updates are rendered.
func (s *StatusLine) Enabled() bool { return s.enabled }

// Update overwrites the status line with the formatted message.
func (s *StatusLine) Update(format string, args ...interface{}) {
	if !s.enabled {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if len(msg) > statusWidth {
		msg = msg[:statusWidth]
	}
	fmt.Fprintf(s.out, "%-*s\x1b[%dD", statusWidth, msg, statusWidth)
	s.dirty = true
}

// Done terminates the status line with a newline if anything was drawn.
func (s *StatusLine) Done() {
	if !s.enabled || !s.dirty {
		return
	}
	fmt.Fprintln(s.out)
	s.dirty = false
}

// StdoutIsTerminal reports whether stdout is attached to a terminal.
func StdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Package args implements the token-by-token argument interpreter shared
// by the backup-vm and borg-multi binaries. A base state machine handles
// the tokens common to both (archive locations, --borg-args pass-through
// capture, device exclusions, help/version/progress flags); each binary
// supplies an Extension claiming its own positional fields.
//
// The machine is exit-free: it returns a typed Outcome and the host binary
// decides how to print and exit.
package args

import (
	"path/filepath"

	"github.com/virtbackup/backup-vm/internal/location"
)

// Session is the transient state of one argument-interpretation run. It is
// created per invocation, consumed token by token, and exclusively owned
// by its caller.
type Session struct {
	Prog     string
	Progress bool

	// Archives holds the accepted locations in order of appearance. Each
	// carries the pass-through tokens captured after it was introduced.
	Archives []*location.Location

	ExcludeSourceDevs map[string]bool
	ExcludeTargetDevs map[string]bool
}

// Kind discriminates parse outcomes.
type Kind int

const (
	// KindParsed: the token stream was fully interpreted and validated.
	KindParsed Kind = iota
	// KindHelp: a help flag was seen; print help and exit 0.
	KindHelp
	// KindVersion: a version flag was seen; print version and exit 0.
	KindVersion
	// KindError: classification or validation failed; print a usage
	// synopsis plus the message and exit 2.
	KindError
)

// Outcome is the typed result of a parse run.
type Outcome struct {
	Kind    Kind
	Session *Session

	// Message is the usage-error text; empty for non-error outcomes.
	Message string
	// FullHelp requests the full help text instead of the short synopsis
	// on the error path (used when no arguments were given at all).
	FullHelp bool
}

// ExitCode maps the outcome to the process exit code contract.
func (o Outcome) ExitCode() int {
	if o.Kind == KindError {
		return 2
	}
	return 0
}

// progName derives the program name from argv[0], falling back to a
// default when argv is empty.
func progName(argv []string, fallback string) string {
	if len(argv) == 0 || argv[0] == "" {
		return fallback
	}
	return filepath.Base(argv[0])
}

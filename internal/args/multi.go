package args

import (
	"fmt"
	"strings"
)

// MultiParser interprets borg-multi arguments: a borg subcommand and a
// working directory on top of the shared machine. Locations do not need an
// archive suffix up front; they are recognized by the --borg-args marker
// that immediately follows them.
type MultiParser struct {
	Command string
	Dir     string

	m *Machine
	// commandPending/dirPending mark the "awaiting explicit value" state
	// entered by -c/--borg-cmd and -l/--path without an attached value.
	commandPending bool
	dirPending     bool
}

// NewMultiParser creates a borg-multi parser with command "create" and
// directory "." as defaults.
func NewMultiParser(opts Options) *MultiParser {
	p := &MultiParser{Command: "create", Dir: "."}
	p.m = newMachine(opts)
	p.m.ext = p
	return p
}

// Parse interprets argv (argv[0] being the program name).
func (p *MultiParser) Parse(argv []string) Outcome {
	p.m.Session.Prog = progName(argv, "borg-multi")
	if len(argv) == 0 {
		return p.m.parseArgs(nil)
	}
	return p.m.parseArgs(argv[1:])
}

// Session exposes the parse session after a successful run.
func (p *MultiParser) Session() *Session {
	return p.m.Session
}

// NeedsArchive is false: the archive path is not necessarily the first
// positional, so it is recognized by lookahead instead.
func (p *MultiParser) NeedsArchive() bool { return false }

// Claim pre-empts the base classifier: a pending sentinel swallows the
// very next token, whatever it looks like.
func (p *MultiParser) Claim(arg string) bool {
	switch {
	case p.commandPending:
		p.Command = arg
		p.commandPending = false
	case p.dirPending:
		p.Dir = arg
		p.dirPending = false
	case arg == "-c" || arg == "--borg-cmd":
		p.commandPending = true
	case strings.HasPrefix(arg, "-c"):
		p.Command = arg[2:]
	case strings.HasPrefix(arg, "--borg-cmd="):
		p.Command = strings.SplitN(arg, "=", 2)[1]
	case arg == "-l" || arg == "--path":
		p.dirPending = true
	case strings.HasPrefix(arg, "-l"):
		p.Dir = arg[2:]
	case strings.HasPrefix(arg, "--path="):
		p.Dir = strings.SplitN(arg, "=", 2)[1]
	default:
		return false
	}
	return true
}

// Fallback declines: everything not claimed or classified is an error.
func (p *MultiParser) Fallback(string) bool { return false }

// Validate rejects a command left in the pending state.
func (p *MultiParser) Validate() string {
	if p.commandPending {
		return "--borg-args must precede a borg subcommand"
	}
	return ""
}

// Usage returns the short synopsis.
func (p *MultiParser) Usage(prog string) string {
	return fmt.Sprintf(`usage: %s [-hpv] [--path PATH] [--borg-cmd SUBCOMMAND]
    archive [--borg-args ...] [archive [--borg-args ...] ...]
`, prog)
}

// Help returns the full help text.
func (p *MultiParser) Help(prog string) string {
	return p.Usage(prog) + `
Batch multiple borg commands into one.

positional arguments:
  archive               a borg archive path (same format as borg create)

optional arguments:
  -h, --help            show this help message and exit
  -v, --version         show program version and exit
  -l, --path            path for borg to archive (default: .)
  -p, --progress        force progress display even if stdout isn't a tty
  -c, --borg-cmd        alternate borg subcommand to run (default: create)
  --borg-args ...       extra arguments passed straight to borg
`
}

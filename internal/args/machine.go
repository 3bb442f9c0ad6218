package args

import (
	"fmt"
	"os"
	"strings"

	"github.com/virtbackup/backup-vm/internal/location"
	"github.com/virtbackup/backup-vm/internal/logger"
)

// MarkerToken switches the machine into pass-through capture: every later
// bare token is appended to the most recently accepted location until a
// new location-shaped token is recognized.
const MarkerToken = "--borg-args"

// Extension supplies the specialization-specific token handling layered on
// the base machine.
type Extension interface {
	// Claim runs before the base classifier; a specialization uses it to
	// claim its own flags and sentinel-pending positional values.
	Claim(arg string) bool
	// Fallback runs after the base classifier declined a token.
	Fallback(arg string) bool
	// Validate checks specialization requirements after the token loop;
	// it returns an error message or "".
	Validate() string
	// NeedsArchive reports whether a location token must carry an archive
	// suffix to be accepted without lookahead.
	NeedsArchive() bool
	// Usage returns the short synopsis; Help the full help text.
	Usage(prog string) string
	Help(prog string) string
}

// Options configures a parse run. External reads (environment, working
// directory) are injected so runs stay deterministic under test.
type Options struct {
	// Progress seeds the progress flag; callers typically pass whether
	// stdout is a terminal.
	Progress bool
	// ExcludeSourceDevs/ExcludeTargetDevs seed the exclusion sets, e.g.
	// from the config file.
	ExcludeSourceDevs []string
	ExcludeTargetDevs []string
	// LookupEnv resolves the default-repository variable; nil means
	// os.LookupEnv.
	LookupEnv location.LookupEnv
	// Getwd supplies the working directory for path canonicalization;
	// nil means os.Getwd.
	Getwd func() (string, error)
	// Logger receives debug traces; nil means logger.Noop().
	Logger logger.Logger
}

// Machine is the base argument state machine. It owns the Session and
// delegates unrecognized tokens to its Extension.
type Machine struct {
	Session *Session

	ext        Extension
	lookupEnv  location.LookupEnv
	getwd      func() (string, error)
	log        logger.Logger
	collecting bool
}

func newMachine(opts Options) *Machine {
	m := &Machine{
		Session: &Session{
			Progress:          opts.Progress,
			ExcludeSourceDevs: make(map[string]bool),
			ExcludeTargetDevs: make(map[string]bool),
		},
		lookupEnv: opts.LookupEnv,
		getwd:     opts.Getwd,
		log:       opts.Logger,
	}
	for _, d := range opts.ExcludeSourceDevs {
		m.Session.ExcludeSourceDevs[d] = true
	}
	for _, d := range opts.ExcludeTargetDevs {
		m.Session.ExcludeTargetDevs[d] = true
	}
	if m.getwd == nil {
		m.getwd = os.Getwd
	}
	if m.log == nil {
		m.log = logger.Noop()
	}
	return m
}

// parseArgs drives the outer token loop over args (argv without the
// program name).
func (m *Machine) parseArgs(args []string) Outcome {
	if len(args) == 0 {
		return Outcome{Kind: KindError, Session: m.Session, FullHelp: true}
	}

	m.collecting = false
	skip := false
	for i := 0; i < len(args); i++ {
		arg := args[i]
		lookahead, has := "", false
		if i+1 < len(args) {
			lookahead, has = args[i+1], true
		}

		if skip {
			skip = false
			continue
		}

		switch {
		case strings.HasPrefix(arg, "-") && !strings.HasPrefix(arg, "--") && !strings.Contains(arg, "="):
			// Bundled short flags: one synthetic token per character, all
			// sharing the same lookahead so a flag needing a value still
			// consumes the next real token.
			for _, c := range arg[1:] {
				handled, out := m.dispatch("-"+string(c), lookahead, has)
				if out != nil {
					return *out
				}
				if !handled {
					return m.usageError(fmt.Sprintf("unrecognized argument: '-%c'", c))
				}
			}
		case strings.HasPrefix(arg, "--") && !strings.Contains(arg, "=") && arg != MarkerToken && !m.collecting:
			handled, out := m.dispatch(arg, lookahead, has)
			if out != nil {
				return *out
			}
			if !handled {
				return m.usageError("unrecognized argument: '" + arg + "'")
			}
			// The lookahead token is skipped whether or not the flag
			// actually consumed a value.
			skip = true
		default:
			handled, out := m.dispatch(arg, lookahead, has)
			if out != nil {
				return *out
			}
			if !handled {
				return m.usageError("unrecognized argument: '" + arg + "'")
			}
		}
	}

	if len(m.Session.Archives) == 0 {
		return m.usageError("at least one archive path is required")
	}
	if msg := m.ext.Validate(); msg != "" {
		return m.usageError(msg)
	}
	return Outcome{Kind: KindParsed, Session: m.Session}
}

// dispatch routes one token: extension claim, then the base classifier,
// then the extension fallback.
func (m *Machine) dispatch(arg, lookahead string, has bool) (bool, *Outcome) {
	if m.ext.Claim(arg) {
		return true, nil
	}
	handled, out := m.parseBase(arg, lookahead, has)
	if handled || out != nil {
		return handled, out
	}
	return m.ext.Fallback(arg), nil
}

// parseBase classifies one token against the shared rules. The rule order
// is load-bearing; see the per-case notes.
func (m *Machine) parseBase(arg, lookahead string, has bool) (bool, *Outcome) {
	if arg == "-h" || arg == "--help" {
		return true, &Outcome{Kind: KindHelp, Session: m.Session}
	}
	if (arg == "-v" || arg == "--version") && !m.collecting {
		return true, &Outcome{Kind: KindVersion, Session: m.Session}
	}

	loc := location.TryResolve(arg, m.lookupEnv)

	switch {
	case arg == "--exclude-source-dev" && !m.collecting:
		if has {
			m.Session.ExcludeSourceDevs[lookahead] = true
		}
	case arg == "--exclude-target-dev" && !m.collecting:
		if has {
			m.Session.ExcludeTargetDevs[lookahead] = true
		}
	case m.ext.NeedsArchive() && loc != nil && loc.Path != "" &&
		(loc.Proto == location.ProtoFile || loc.Host != "") && loc.Archive != "":
		// A complete archive location; accepting one ends pass-through
		// capture for the previous location.
		m.collecting = false
		m.canonicalize(loc)
		m.Session.Archives = append(m.Session.Archives, loc)
	case arg == MarkerToken:
		if len(m.Session.Archives) == 0 {
			out := m.usageError(MarkerToken + " must come after an archive path")
			return true, &out
		}
		m.collecting = true
	case !m.ext.NeedsArchive() && has && lookahead == MarkerToken && loc != nil && loc.Path != "" &&
		(loc.Proto == location.ProtoFile || loc.Host != ""):
		// Deferred-archive mode: the archive path is distinguished from
		// other positionals by the marker immediately following it.
		m.collecting = false
		m.canonicalize(loc)
		m.Session.Archives = append(m.Session.Archives, loc)
	case m.collecting:
		last := m.Session.Archives[len(m.Session.Archives)-1]
		last.ExtraArgs = append(last.ExtraArgs, arg)
	case arg == "-p" || arg == "--progress":
		m.Session.Progress = true
	default:
		return false, nil
	}
	return true, nil
}

// canonicalize resolves a relative file path against the working
// directory, querying it lazily.
func (m *Machine) canonicalize(loc *location.Location) {
	if loc.Proto != location.ProtoFile {
		return
	}
	if !loc.RelativeIntent() && strings.HasPrefix(loc.Path, "/") {
		return
	}
	cwd, err := m.getwd()
	if err != nil {
		m.log.Debug("cannot determine working directory: %v", err)
		return
	}
	loc.Canonicalize(cwd)
}

func (m *Machine) usageError(msg string) Outcome {
	return Outcome{Kind: KindError, Session: m.Session, Message: msg}
}

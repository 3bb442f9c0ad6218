package cli

import (
	"fmt"
	"io"

	"github.com/virtbackup/backup-vm/internal/args"
)

// helpProvider is satisfied by both argument parsers.
type helpProvider interface {
	Usage(prog string) string
	Help(prog string) string
}

// handleOutcome renders a terminal parse outcome. It returns the process
// exit code, or -1 when parsing succeeded and the run should continue.
func handleOutcome(out args.Outcome, hp helpProvider, stdout, stderr io.Writer) int {
	prog := out.Session.Prog

	switch out.Kind {
	case args.KindHelp:
		fmt.Fprint(stdout, hp.Help(prog))
		return 0
	case args.KindVersion:
		fmt.Fprintf(stdout, "%s %s\n", prog, formatVersion(version))
		return 0
	case args.KindError:
		if out.FullHelp {
			fmt.Fprint(stdout, hp.Help(prog))
			return out.ExitCode()
		}
		fmt.Fprint(stdout, hp.Usage(prog))
		fmt.Fprintf(stderr, "%s: error: %s\n", prog, out.Message)
		return out.ExitCode()
	}
	return -1
}

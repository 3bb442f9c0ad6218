package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/virtbackup/backup-vm/internal/args"
	"github.com/virtbackup/backup-vm/internal/borg"
	"github.com/virtbackup/backup-vm/internal/config"
	"github.com/virtbackup/backup-vm/internal/errors"
	"github.com/virtbackup/backup-vm/internal/logger"
	"github.com/virtbackup/backup-vm/internal/ui"
)

// NewMultiCommand builds the borg-multi root command.
func NewMultiCommand() *cobra.Command {
	return &cobra.Command{
		Use:                "borg-multi",
		Short:              "Batch multiple borg commands into one",
		DisableFlagParsing: true,
		SilenceUsage:       true,
		SilenceErrors:      true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMulti(os.Args)
		},
	}
}

// ExecuteMulti runs the borg-multi command and exits the process.
func ExecuteMulti() {
	execute(NewMultiCommand())
}

func runMulti(argv []string) error {
	log := logger.Default()

	cfg, err := config.LoadOrDefault("")
	if err != nil {
		return err
	}
	progress := cfg.ProgressEnabled(ui.StdoutIsTerminal())

	p := args.NewMultiParser(args.Options{
		Progress:  progress,
		LookupEnv: repoLookup(cfg),
		Logger:    log,
	})
	out := p.Parse(argv)
	if code := handleOutcome(out, p, os.Stdout, os.Stderr); code >= 0 {
		if code == 0 {
			return nil
		}
		return errors.NewExitError(code)
	}
	sess := out.Session

	// Only create takes a path to archive; other subcommands operate on
	// the archive alone.
	var paths []string
	if p.Command == "create" {
		paths = []string{p.Dir}
	}

	failures := 0
	for _, loc := range sess.Archives {
		job := borg.Job{
			Subcommand: p.Command,
			Location:   loc,
			Paths:      paths,
			Progress:   sess.Progress,
		}
		code, runErr := job.Run(os.Stdout, os.Stderr)
		if runErr != nil {
			log.Error("borg failed for %s: %v", loc, runErr)
			failures++
		} else if code != 0 {
			failures++
		}
	}

	if failures > 0 {
		return errors.NewExitError(1)
	}
	return nil
}

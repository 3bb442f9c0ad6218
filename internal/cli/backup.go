package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/virtbackup/backup-vm/internal/args"
	"github.com/virtbackup/backup-vm/internal/borg"
	"github.com/virtbackup/backup-vm/internal/config"
	"github.com/virtbackup/backup-vm/internal/domain"
	"github.com/virtbackup/backup-vm/internal/errors"
	"github.com/virtbackup/backup-vm/internal/exec"
	"github.com/virtbackup/backup-vm/internal/location"
	"github.com/virtbackup/backup-vm/internal/logger"
	"github.com/virtbackup/backup-vm/internal/snapshot"
	"github.com/virtbackup/backup-vm/internal/ui"
	"github.com/virtbackup/backup-vm/internal/virsh"
)

// NewBackupVMCommand builds the backup-vm root command. Flag parsing is
// disabled: the argument grammar (--borg-args pass-through, archive
// locations) is not expressible as ordinary flags, so the raw argv goes
// to the args package instead.
func NewBackupVMCommand() *cobra.Command {
	return &cobra.Command{
		Use:                "backup-vm",
		Short:              "Back up libvirt domains with borg",
		DisableFlagParsing: true,
		SilenceUsage:       true,
		SilenceErrors:      true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBackup(os.Args)
		},
	}
}

// ExecuteBackupVM runs the backup-vm command and exits the process.
func ExecuteBackupVM() {
	execute(NewBackupVMCommand())
}

func execute(cmd *cobra.Command) {
	if err := cmd.Execute(); err != nil {
		if code, ok := errors.GetExitCode(err); ok {
			os.Exit(code)
		}
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func runBackup(argv []string) error {
	log := logger.Default()

	cfg, err := config.LoadOrDefault("")
	if err != nil {
		return err
	}
	progress := cfg.ProgressEnabled(ui.StdoutIsTerminal())

	p := args.NewDomainBackupParser(args.Options{
		Progress:          progress,
		ExcludeSourceDevs: cfg.Exclude.SourceDevs,
		ExcludeTargetDevs: cfg.Exclude.TargetDevs,
		LookupEnv:         repoLookup(cfg),
		Logger:            log,
	})
	out := p.Parse(argv)
	if code := handleOutcome(out, p, os.Stdout, os.Stderr); code >= 0 {
		if code == 0 {
			return nil
		}
		return errors.NewExitError(code)
	}
	sess := out.Session

	// Config-level borg arguments apply before each location's own.
	if len(cfg.BorgArgs) > 0 {
		for _, loc := range sess.Archives {
			loc.ExtraArgs = append(append([]string{}, cfg.BorgArgs...), loc.ExtraArgs...)
		}
	}

	dom, err := virsh.Open(p.Domain, log)
	if err != nil {
		return err
	}
	xmlDesc, err := dom.XMLDesc()
	if err != nil {
		return err
	}
	disks, err := domain.ParseDisks(xmlDesc)
	if err != nil {
		return err
	}

	selected, missing := domain.Select(disks, p.Disks, sess.ExcludeSourceDevs)
	if len(missing) > 0 {
		return errors.New(errors.ErrDomain,
			"Disks not found on domain '"+p.Domain+"': "+strings.Join(missing, ", "),
			"Check 'virsh domblklist "+p.Domain+"' for the guest device names.")
	}
	if len(selected) == 0 {
		return errors.New(errors.ErrDomain,
			"No disks to back up on domain '"+p.Domain+"'", "")
	}
	domain.PlanSnapshots(selected)

	// Disks excluded as targets still get snapshotted so the domain
	// stays consistent; they are just not handed to borg.
	var paths []string
	for _, d := range selected {
		if sess.ExcludeTargetDevs[d.Target] || sess.ExcludeTargetDevs[d.Path] {
			continue
		}
		paths = append(paths, d.Path)
	}

	status := ui.NewStatusLine(os.Stdout, progress)
	mgr, err := snapshot.Begin(dom, disks, snapshot.Options{
		FSFreeze: cfg.FSFreeze,
		Status:   status,
		Log:      log,
		CommitImage: func(path string) error {
			return exec.Quiet("qemu-img", "commit", path)
		},
	})
	if err != nil {
		return err
	}

	failures := 0
	for _, loc := range sess.Archives {
		job := borg.Job{
			Subcommand: "create",
			Location:   loc,
			Paths:      paths,
			Progress:   sess.Progress,
		}
		code, runErr := job.Run(os.Stdout, os.Stderr)
		if runErr != nil {
			log.Error("borg failed for %s: %v", loc, runErr)
			failures++
		} else if code != 0 {
			log.Error("borg exited with status %d for %s", code, loc)
			failures++
		}
	}

	if err := mgr.Commit(); err != nil {
		return err
	}
	for _, d := range mgr.Failed() {
		log.Error("disk '%s' was not merged back cleanly", d.Target)
	}

	if failures > 0 || len(mgr.Failed()) > 0 {
		fmt.Fprintln(os.Stderr, ui.Failure("backup of '"+p.Domain+"' did not complete cleanly"))
		return errors.NewExitError(1)
	}
	fmt.Fprintln(os.Stdout, ui.Success(fmt.Sprintf("backed up %d disk%s of '%s' to %d archive%s",
		len(paths), plural(len(paths)), p.Domain,
		len(sess.Archives), plural(len(sess.Archives)))))
	return nil
}

// repoLookup resolves the default repository, letting the config file's
// repository setting take precedence over BORG_REPO.
func repoLookup(cfg *config.Config) location.LookupEnv {
	return func(key string) (string, bool) {
		if key == location.DefaultRepoEnv && cfg.Repository != "" {
			return cfg.Repository, true
		}
		return os.LookupEnv(key)
	}
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// Package borg assembles and runs borg invocations for the archive
// locations collected by the argument parser.
package borg

import (
	"io"
	"strconv"

	"github.com/virtbackup/backup-vm/internal/exec"
	"github.com/virtbackup/backup-vm/internal/location"
	"github.com/virtbackup/backup-vm/internal/util"
	"github.com/virtbackup/backup-vm/pkg/sshutil"
)

// Binary is the borg executable name.
const Binary = "borg"

// Job is one borg run against one repository location.
type Job struct {
	// Subcommand is the borg subcommand, e.g. "create".
	Subcommand string
	// Location is the repository (and archive, for subcommands that
	// take one) to operate on.
	Location *location.Location
	// Paths are the files or directories handed to the subcommand
	// after the repository spec.
	Paths []string
	// Progress forces borg's progress output.
	Progress bool
}

// Args builds the borg argv (without the binary itself): the subcommand,
// the location's pass-through arguments, the repository spec and the
// paths.
func (j Job) Args() []string {
	args := []string{j.Subcommand}
	if j.Progress {
		args = append(args, "--progress")
	}
	args = append(args, j.Location.ExtraArgs...)
	args = append(args, j.Location.String())
	args = append(args, j.Paths...)
	return args
}

// Env builds the extra environment for the job. Remote repositories get
// BORG_RSH derived from the user's SSH client configuration, so borg
// honors the same identity files a plain ssh invocation would.
func (j Job) Env() []string {
	if j.Location.Proto != location.ProtoSSH {
		return nil
	}
	settings, err := sshutil.Lookup(j.Location.Host)
	if err != nil {
		settings = sshutil.HostSettings{}
	}
	return []string{"BORG_RSH=" + RSH(settings, j.Location.Port)}
}

// Run executes the job, streaming borg's output to the given writers.
// Returns borg's exit code.
func (j Job) Run(stdout, stderr io.Writer) (int, error) {
	return exec.RunWithEnv(Binary, j.Args(), j.Env(), stdout, stderr)
}

// RSH builds the ssh command borg should use. An explicit port from the
// repository URL wins over one from the SSH config. The result is parsed
// shell-style by borg, so the identity path gets quoted.
func RSH(settings sshutil.HostSettings, port int) string {
	cmd := "ssh"
	if settings.IdentityFile != "" {
		cmd += " -i " + util.ShellQuote(settings.IdentityFile)
	}
	if port != 0 {
		cmd += " -p " + strconv.Itoa(port)
	} else if settings.Port != "" && settings.Port != "22" {
		cmd += " -p " + settings.Port
	}
	return cmd
}

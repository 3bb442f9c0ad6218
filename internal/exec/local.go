// Package exec runs the external tools backup-vm drives: virsh, qemu-img
// and borg. Commands are invoked directly with an argv, never through a
// shell, so paths and archive names need no quoting.
package exec

import (
	"bytes"
	stderrors "errors"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/virtbackup/backup-vm/internal/errors"
)

// Run executes a command, streaming output to the provided writers.
// Returns the exit code and any execution error. A non-zero exit is not
// an error; callers decide what it means.
func Run(name string, args []string, stdout, stderr io.Writer) (exitCode int, err error) {
	return RunWithEnv(name, args, nil, stdout, stderr)
}

// RunWithEnv is Run with extra environment variables (KEY=VALUE form)
// appended to the current environment.
func RunWithEnv(name string, args []string, env []string, stdout, stderr io.Writer) (int, error) {
	cmd := exec.Command(name, args...)
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	cmd.Stdin = os.Stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	runErr := cmd.Run()
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			return exitErr.ExitCode(), nil
		}
		return -1, errors.WrapWithCode(runErr, errors.ErrExec,
			"Couldn't run '"+name+"'",
			"Make sure "+name+" is installed and on your PATH.")
	}
	return 0, nil
}

// Capture runs a command and returns its trimmed stdout. A non-zero exit
// is an error carrying the command's stderr.
func Capture(name string, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	code, err := Run(name, args, &stdout, &stderr)
	if err != nil {
		return "", err
	}
	if code != 0 {
		return "", exitFailure(name, code, stderr.String())
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Quiet runs a command discarding stdout. A non-zero exit is an error
// carrying the command's stderr.
func Quiet(name string, args ...string) error {
	var stderr bytes.Buffer
	code, err := Run(name, args, io.Discard, &stderr)
	if err != nil {
		return err
	}
	if code != 0 {
		return exitFailure(name, code, stderr.String())
	}
	return nil
}

func exitFailure(name string, code int, stderr string) error {
	return errors.New(errors.ErrExec,
		name+" exited with status "+strconv.Itoa(code),
		strings.TrimSpace(stderr))
}

// IsNotFound reports whether err means the binary does not exist.
func IsNotFound(err error) bool {
	var execErr *exec.Error
	if stderrors.As(err, &execErr) {
		return execErr.Err == exec.ErrNotFound
	}
	return false
}

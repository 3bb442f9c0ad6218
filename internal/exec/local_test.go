package exec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_SimpleCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer

	exitCode, err := Run("echo", []string{"hello"}, &stdout, &stderr)

	require.NoError(t, err)
	assert.Equal(t, 0, exitCode)
	assert.Equal(t, "hello\n", stdout.String())
	assert.Empty(t, stderr.String())
}

func TestRun_ArgsAreNotShellExpanded(t *testing.T) {
	var stdout, stderr bytes.Buffer

	exitCode, err := Run("echo", []string{"a b", "$HOME"}, &stdout, &stderr)

	require.NoError(t, err)
	assert.Equal(t, 0, exitCode)
	assert.Equal(t, "a b $HOME\n", stdout.String())
}

func TestRun_NonZeroExitCode(t *testing.T) {
	var stdout, stderr bytes.Buffer

	exitCode, err := Run("false", nil, &stdout, &stderr)

	require.NoError(t, err) // no error - the command ran, just exited non-zero
	assert.NotEqual(t, 0, exitCode)
}

func TestRun_MissingBinary(t *testing.T) {
	var stdout, stderr bytes.Buffer

	exitCode, err := Run("definitely-not-a-real-binary-xyz", nil, &stdout, &stderr)

	require.Error(t, err)
	assert.Equal(t, -1, exitCode)
	assert.True(t, IsNotFound(err))
}

func TestRunWithEnv(t *testing.T) {
	var stdout, stderr bytes.Buffer

	exitCode, err := RunWithEnv("sh", []string{"-c", "echo $BVM_TEST_VAR"},
		[]string{"BVM_TEST_VAR=hello"}, &stdout, &stderr)

	require.NoError(t, err)
	assert.Equal(t, 0, exitCode)
	assert.Equal(t, "hello\n", stdout.String())
}

func TestCapture(t *testing.T) {
	out, err := Capture("echo", "  spaced  ")

	require.NoError(t, err)
	assert.Equal(t, "spaced", out)
}

func TestCapture_NonZeroExit(t *testing.T) {
	_, err := Capture("sh", "-c", "echo oops >&2; exit 3")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 3")
	assert.Contains(t, err.Error(), "oops")
}

func TestQuiet(t *testing.T) {
	assert.NoError(t, Quiet("true"))
	assert.Error(t, Quiet("false"))
}

func TestIsNotFound_OtherErrors(t *testing.T) {
	err := Quiet("false")
	require.Error(t, err)
	assert.False(t, IsNotFound(err))
}

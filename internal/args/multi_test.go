package args

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMulti_Defaults(t *testing.T) {
	p := NewMultiParser(testOptions(nil))
	out := p.Parse([]string{"borg-multi", "/r/x::a", "--borg-args", "--stats"})

	require.Equal(t, KindParsed, out.Kind)
	assert.Equal(t, "create", p.Command)
	assert.Equal(t, ".", p.Dir)

	require.Len(t, out.Session.Archives, 1)
	assert.Equal(t, []string{"--stats"}, out.Session.Archives[0].ExtraArgs)
}

func TestMulti_LocationNeedsMarkerLookahead(t *testing.T) {
	// Without --borg-args immediately after it, a location token is not
	// accepted and falls through to the unrecognized path.
	p := NewMultiParser(testOptions(nil))
	out := p.Parse([]string{"borg-multi", "/r/x::a"})

	require.Equal(t, KindError, out.Kind)
	assert.Contains(t, out.Message, "unrecognized argument: '/r/x::a'")
}

func TestMulti_ShortFlagsWithSeparateValues(t *testing.T) {
	p := NewMultiParser(testOptions(nil))
	out := p.Parse([]string{
		"borg-multi", "-c", "diff", "-l", "/src",
		"/r::a", "--borg-args", "--sort",
	})

	require.Equal(t, KindParsed, out.Kind)
	assert.Equal(t, "diff", p.Command)
	assert.Equal(t, "/src", p.Dir)
	require.Len(t, out.Session.Archives, 1)
	assert.Equal(t, []string{"--sort"}, out.Session.Archives[0].ExtraArgs)
}

func TestMulti_AttachedShortValueIsExploded(t *testing.T) {
	// -cdiff is a short-flag bundle, not an attached value: it explodes
	// to -c -d -i -f -f, so -d is swallowed as the pending command and
	// -i is unrecognized.
	p := NewMultiParser(testOptions(nil))
	out := p.Parse([]string{"borg-multi", "-cdiff", "/r::a", "--borg-args"})

	require.Equal(t, KindError, out.Kind)
	assert.Equal(t, "-d", p.Command)
	assert.Contains(t, out.Message, "unrecognized argument: '-i'")
}

func TestMulti_AttachedLongValues(t *testing.T) {
	p := NewMultiParser(testOptions(nil))
	out := p.Parse([]string{
		"borg-multi", "--borg-cmd=diff", "--path=/src",
		"/r::a", "--borg-args",
	})

	require.Equal(t, KindParsed, out.Kind)
	assert.Equal(t, "diff", p.Command)
	assert.Equal(t, "/src", p.Dir)
}

// --borg-cmd spelled as a bare long flag skips its lookahead, so the
// value is lost and the next token is claimed as the pending command.
func TestMulti_SeparateLongValueIsSkipped(t *testing.T) {
	p := NewMultiParser(testOptions(nil))
	out := p.Parse([]string{"borg-multi", "--borg-cmd", "diff", "/r::a", "--borg-args"})

	require.Equal(t, KindError, out.Kind)
	assert.Equal(t, "/r::a", p.Command)
	assert.Contains(t, out.Message, "must come after an archive path")
}

func TestMulti_PendingCommandSwallowsAnyToken(t *testing.T) {
	// A pending -c claims whatever comes next, even a token that would
	// otherwise be a flag.
	p := NewMultiParser(testOptions(nil))
	out := p.Parse([]string{"borg-multi", "-c", "-h", "/r::a", "--borg-args"})

	require.Equal(t, KindParsed, out.Kind)
	assert.Equal(t, "-h", p.Command)
}

func TestMulti_PendingCommandAtEnd(t *testing.T) {
	p := NewMultiParser(testOptions(nil))
	out := p.Parse([]string{"borg-multi", "/r::a", "--borg-args", "-c"})

	require.Equal(t, KindError, out.Kind)
	assert.Contains(t, out.Message, "--borg-args must precede a borg subcommand")
}

func TestMulti_UnrecognizedFlag(t *testing.T) {
	p := NewMultiParser(testOptions(nil))
	out := p.Parse([]string{"borg-multi", "-x"})

	require.Equal(t, KindError, out.Kind)
	assert.Equal(t, 2, out.ExitCode())
	assert.Contains(t, out.Message, "unrecognized argument: '-x'")
}

func TestMulti_HelpAndVersion(t *testing.T) {
	p := NewMultiParser(testOptions(nil))
	out := p.Parse([]string{"borg-multi", "--help"})
	assert.Equal(t, KindHelp, out.Kind)

	p = NewMultiParser(testOptions(nil))
	out = p.Parse([]string{"borg-multi", "--version"})
	assert.Equal(t, KindVersion, out.Kind)
}

func TestMulti_MultipleLocations(t *testing.T) {
	p := NewMultiParser(testOptions(nil))
	out := p.Parse([]string{
		"borg-multi",
		"/r/a::x", "--borg-args", "--one",
		"/r/b::y", "--borg-args", "--two",
	})

	require.Equal(t, KindParsed, out.Kind)
	require.Len(t, out.Session.Archives, 2)
	assert.Equal(t, []string{"--one"}, out.Session.Archives[0].ExtraArgs)
	assert.Equal(t, []string{"--two"}, out.Session.Archives[1].ExtraArgs)
}

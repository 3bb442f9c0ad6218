package args

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virtbackup/backup-vm/internal/location"
)

// testOptions returns Options with all external reads stubbed out.
func testOptions(env map[string]string) Options {
	return Options{
		LookupEnv: func(key string) (string, bool) {
			v, ok := env[key]
			return v, ok
		},
		Getwd: func() (string, error) { return "/work", nil },
	}
}

func TestDomainBackup_EndToEnd(t *testing.T) {
	p := NewDomainBackupParser(testOptions(nil))
	out := p.Parse([]string{
		"backup-vm", "myvm", "/backups/repo::daily1",
		"--exclude-source-dev", "vda", "--borg-args", "--stats",
	})

	require.Equal(t, KindParsed, out.Kind)
	assert.Equal(t, 0, out.ExitCode())

	assert.Equal(t, "myvm", p.Domain)
	assert.Empty(t, p.Disks)

	sess := out.Session
	require.Len(t, sess.Archives, 1)
	loc := sess.Archives[0]
	assert.Equal(t, location.ProtoFile, loc.Proto)
	assert.Equal(t, "/backups/repo", loc.Path)
	assert.Equal(t, "daily1", loc.Archive)
	assert.Equal(t, []string{"--stats"}, loc.ExtraArgs)

	assert.Equal(t, map[string]bool{"vda": true}, sess.ExcludeSourceDevs)
	assert.Empty(t, sess.ExcludeTargetDevs)
}

func TestDomainBackup_DiskPositionals(t *testing.T) {
	p := NewDomainBackupParser(testOptions(nil))
	out := p.Parse([]string{"backup-vm", "myvm", "vda", "vdb", "/r::a"})

	require.Equal(t, KindParsed, out.Kind)
	assert.Equal(t, "myvm", p.Domain)
	assert.Equal(t, map[string]bool{"vda": true, "vdb": true}, p.Disks)
}

func TestDomainBackup_ExcludeTargetDev(t *testing.T) {
	p := NewDomainBackupParser(testOptions(nil))
	out := p.Parse([]string{"backup-vm", "myvm", "--exclude-target-dev", "sda", "/r::a"})

	require.Equal(t, KindParsed, out.Kind)
	assert.Equal(t, map[string]bool{"sda": true}, out.Session.ExcludeTargetDevs)
	// The device name was consumed by the flag, not claimed as a disk.
	assert.Empty(t, p.Disks)
}

func TestMarkerMustFollowArchivePath(t *testing.T) {
	p := NewDomainBackupParser(testOptions(nil))
	out := p.Parse([]string{"backup-vm", "--borg-args", "--stats"})

	require.Equal(t, KindError, out.Kind)
	assert.Equal(t, 2, out.ExitCode())
	assert.Contains(t, out.Message, "must come after an archive path")
}

func TestShortFlagBundling(t *testing.T) {
	// -pv is equivalent to -p -v: progress is set, then version
	// terminates the parse.
	p := NewDomainBackupParser(testOptions(nil))
	out := p.Parse([]string{"backup-vm", "-pv"})

	assert.Equal(t, KindVersion, out.Kind)
	assert.Equal(t, 0, out.ExitCode())
	assert.True(t, out.Session.Progress)
}

func TestHelpTerminates(t *testing.T) {
	p := NewDomainBackupParser(testOptions(nil))
	out := p.Parse([]string{"backup-vm", "myvm", "-h", "ignored"})

	assert.Equal(t, KindHelp, out.Kind)
	assert.Equal(t, 0, out.ExitCode())
}

func TestVersionSuppressedWhileCollecting(t *testing.T) {
	p := NewDomainBackupParser(testOptions(nil))
	out := p.Parse([]string{"backup-vm", "vm", "/r::a", "--borg-args", "-v"})

	require.Equal(t, KindParsed, out.Kind)
	require.Len(t, out.Session.Archives, 1)
	assert.Equal(t, []string{"-v"}, out.Session.Archives[0].ExtraArgs)
}

func TestAtLeastOneArchiveRequired(t *testing.T) {
	p := NewDomainBackupParser(testOptions(nil))
	out := p.Parse([]string{"backup-vm", "myvm"})

	require.Equal(t, KindError, out.Kind)
	assert.Equal(t, "at least one archive path is required", out.Message)
}

func TestEmptyArgsShowsFullHelp(t *testing.T) {
	p := NewDomainBackupParser(testOptions(nil))
	out := p.Parse([]string{"backup-vm"})

	require.Equal(t, KindError, out.Kind)
	assert.True(t, out.FullHelp)
	assert.Equal(t, 2, out.ExitCode())
}

func TestArchiveOnlyTokenUsesDefaultRepo(t *testing.T) {
	env := map[string]string{location.DefaultRepoEnv: "/srv/repo"}
	p := NewDomainBackupParser(testOptions(env))
	out := p.Parse([]string{"backup-vm", "vm", "::nightly"})

	require.Equal(t, KindParsed, out.Kind)
	require.Len(t, out.Session.Archives, 1)
	assert.Equal(t, "/srv/repo", out.Session.Archives[0].Path)
	assert.Equal(t, "nightly", out.Session.Archives[0].Archive)
}

func TestArchiveOnlyTokenWithoutDefaultRepo(t *testing.T) {
	// Without the variable the token is not location-shaped, so it is
	// claimed as a disk positional and the parse fails on the missing
	// archive instead.
	p := NewDomainBackupParser(testOptions(nil))
	out := p.Parse([]string{"backup-vm", "vm", "::nightly"})

	require.Equal(t, KindError, out.Kind)
	assert.Equal(t, "at least one archive path is required", out.Message)
	assert.True(t, p.Disks["::nightly"])
}

func TestRelativePathCanonicalized(t *testing.T) {
	p := NewDomainBackupParser(testOptions(nil))
	out := p.Parse([]string{"backup-vm", "vm", "rel/repo::a"})

	require.Equal(t, KindParsed, out.Kind)
	require.Len(t, out.Session.Archives, 1)
	assert.Equal(t, "/work/rel/repo", out.Session.Archives[0].Path)
}

func TestRelativeIntentMarkerCanonicalized(t *testing.T) {
	p := NewDomainBackupParser(testOptions(nil))
	out := p.Parse([]string{"backup-vm", "vm", "/./sub/dir::a"})

	require.Equal(t, KindParsed, out.Kind)
	require.Len(t, out.Session.Archives, 1)
	assert.Equal(t, "/work/sub/dir", out.Session.Archives[0].Path)
}

func TestNewLocationEndsCapture(t *testing.T) {
	p := NewDomainBackupParser(testOptions(nil))
	out := p.Parse([]string{
		"backup-vm", "vm",
		"/r/a::x", "--borg-args", "--s1",
		"/r/b::y", "--borg-args", "--s2",
	})

	require.Equal(t, KindParsed, out.Kind)
	require.Len(t, out.Session.Archives, 2)
	assert.Equal(t, []string{"--s1"}, out.Session.Archives[0].ExtraArgs)
	assert.Equal(t, []string{"--s2"}, out.Session.Archives[1].ExtraArgs)
}

// A bare double-dash flag always skips its lookahead token, even when it
// consumed no value. The token after --progress is lost; the single-dash
// spelling does not skip.
func TestDoubleDashFlagSkipsLookahead(t *testing.T) {
	p := NewDomainBackupParser(testOptions(nil))
	out := p.Parse([]string{"backup-vm", "vm", "--progress", "/r::a"})
	require.Equal(t, KindError, out.Kind)
	assert.Equal(t, "at least one archive path is required", out.Message)

	p = NewDomainBackupParser(testOptions(nil))
	out = p.Parse([]string{"backup-vm", "vm", "-p", "/r::a"})
	require.Equal(t, KindParsed, out.Kind)
	assert.True(t, out.Session.Progress)
}

func TestProgressSeededFromOptions(t *testing.T) {
	opts := testOptions(nil)
	opts.Progress = true
	p := NewDomainBackupParser(opts)
	out := p.Parse([]string{"backup-vm", "vm", "/r::a"})

	require.Equal(t, KindParsed, out.Kind)
	assert.True(t, out.Session.Progress)
}

func TestExclusionsSeededFromOptions(t *testing.T) {
	opts := testOptions(nil)
	opts.ExcludeSourceDevs = []string{"vdz"}
	p := NewDomainBackupParser(opts)
	out := p.Parse([]string{"backup-vm", "vm", "/r::a"})

	require.Equal(t, KindParsed, out.Kind)
	assert.True(t, out.Session.ExcludeSourceDevs["vdz"])
}

func TestProgName(t *testing.T) {
	p := NewDomainBackupParser(testOptions(nil))
	out := p.Parse([]string{"/usr/local/bin/backup-vm", "vm", "/r::a"})

	require.Equal(t, KindParsed, out.Kind)
	assert.Equal(t, "backup-vm", out.Session.Prog)
}

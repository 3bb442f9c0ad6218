// Package location parses borg repository locations. A location names a
// repository plus an optional archive and comes in three textual forms,
// tried in this order:
//
//	ssh://user@host:port/abs/path::archive
//	file://some/path::archive
//	user@host:path::archive (scp shorthand; host prefix optional)
//
// The scp form resolves to the ssh protocol when a host was captured and
// to the file protocol otherwise. An input consisting of only an archive
// suffix ("::archive", "::" or the empty string) falls back to the
// repository named by $BORG_REPO.
package location

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Protocol identifies how a repository is reached. It is derived from the
// parsed fields, never chosen directly: ssh when a host was named, file
// otherwise.
type Protocol string

const (
	ProtoSSH  Protocol = "ssh"
	ProtoFile Protocol = "file"
)

// Location is a fully parsed repository-plus-optional-archive target.
//
// Path keeps the "/./" relative-intent marker when the input carried one,
// so a path meant to be resolved under a repository root is not silently
// promoted to an absolute path by normalization.
type Location struct {
	Proto   Protocol
	User    string // empty when no user was named
	Host    string // empty when no network endpoint was named
	Port    int    // 0 when unset; only meaningful for ssh
	Path    string
	Archive string // empty means "the repository itself"

	// ExtraArgs holds verbatim pass-through tokens captured after this
	// location was introduced and before the next one.
	ExtraArgs []string
}

// Parse matches text against the three location grammars, stopping at the
// first match. It does not consult the environment; see Resolve for the
// archive-only fallback.
func Parse(text string) (*Location, error) {
	if loc, ok := parseGrammar(text); ok {
		return loc, nil
	}
	return nil, fmt.Errorf("%q: %w", text, ErrNoGrammarMatch)
}

// RelativeIntent reports whether the path carries the "/./" marker that
// requests resolution relative to a repository root.
func (l *Location) RelativeIntent() bool {
	return l.Path == "/." || strings.HasPrefix(l.Path, "/./")
}

// Canonicalize rewrites a non-absolute file path to an absolute one by
// joining it against cwd. Paths carrying the relative-intent marker count
// as non-absolute; the marker is dropped because the result is a genuine
// absolute path. No-op for ssh locations and absolute paths.
func (l *Location) Canonicalize(cwd string) {
	if l.Proto != ProtoFile {
		return
	}
	if l.RelativeIntent() {
		l.Path = filepath.Join(cwd, strings.TrimPrefix(l.Path, "/."))
		return
	}
	if !strings.HasPrefix(l.Path, "/") {
		l.Path = filepath.Join(cwd, l.Path)
	}
}

// String reconstructs the canonical textual form understood by borg.
// The result is semantically equivalent to the original input but not
// necessarily byte-identical: paths have been normalized and possibly
// canonicalized since parsing.
func (l *Location) String() string {
	var repo string
	switch l.Proto {
	case ProtoFile:
		repo = l.Path
	case ProtoSSH:
		user := ""
		if l.User != "" {
			user = l.User + "@"
		}
		if l.Port != 0 {
			// URI form. A relative path needs the "./" marker so it
			// survives re-parsing as relative.
			p := l.Path
			if !strings.HasPrefix(p, "/") {
				p = "/./" + p
			}
			repo = fmt.Sprintf("ssh://%s%s:%d%s", user, l.Host, l.Port, p)
		} else {
			repo = user + l.Host + ":" + l.Path
		}
	}
	if l.Archive != "" {
		return repo + "::" + l.Archive
	}
	return repo
}

// Equal reports semantic equality, defined over the canonical string form
// rather than the raw input text.
func (l *Location) Equal(other *Location) bool {
	if l == nil || other == nil {
		return l == other
	}
	return l.String() == other.String()
}

// parseGrammar tries the three grammars in their fixed priority order.
func parseGrammar(text string) (*Location, bool) {
	if loc, ok := parseSSH(text); ok {
		return loc, true
	}
	if loc, ok := parseFile(text); ok {
		return loc, true
	}
	if loc, ok := parseSCP(text); ok {
		return loc, true
	}
	return nil, false
}

// parseSSH matches ssh://[user@]host[:port]/abs-path[::archive].
func parseSSH(text string) (*Location, bool) {
	after, ok := strings.CutPrefix(text, "ssh://")
	if !ok {
		return nil, false
	}

	// The user prefix is optional: when the user-present reading fails
	// further along, retry with the '@' run folded into the host.
	user, afterUser := splitUser(after)
	attempts := [][2]string{}
	if user != "" {
		attempts = append(attempts, [2]string{user, afterUser})
	}
	attempts = append(attempts, [2]string{"", after})

	for _, at := range attempts {
		u, rest := at[0], at[1]
		for _, h := range hostCandidates(rest) {
			tail := rest[len(h):]

			port := 0
			if strings.HasPrefix(tail, ":") && len(tail) > 1 && isDigit(tail[1]) {
				j := 1
				for j < len(tail) && isDigit(tail[j]) {
					j++
				}
				// A shorter digit run still ends on a digit, never on the
				// required '/', so there is nothing to backtrack to.
				if j >= len(tail) || tail[j] != '/' {
					continue
				}
				n, err := strconv.Atoi(tail[1:j])
				if err != nil {
					continue
				}
				port = n
				tail = tail[j:]
			}

			if !strings.HasPrefix(tail, "/") {
				continue
			}
			j := scanPathRun(tail, 1)
			if j == 1 {
				continue
			}
			archive, ok := splitArchive(tail[j:])
			if !ok {
				continue
			}
			return &Location{
				Proto:   ProtoSSH,
				User:    u,
				Host:    h,
				Port:    port,
				Path:    normalizePath(tail[:j]),
				Archive: archive,
			}, true
		}
	}
	return nil, false
}

// parseFile matches file://first-segment/path[::archive]. The path must
// contain at least one '/' so a single bare token never matches.
func parseFile(text string) (*Location, bool) {
	rest, ok := strings.CutPrefix(text, "file://")
	if !ok {
		return nil, false
	}
	idx := strings.IndexByte(rest, '/')
	if idx < 0 {
		return nil, false
	}
	j := scanPathRun(rest, idx+1)
	if j == idx+1 {
		return nil, false
	}
	archive, ok := splitArchive(rest[j:])
	if !ok {
		return nil, false
	}
	return &Location{
		Proto:   ProtoFile,
		Path:    normalizePath(rest[:j]),
		Archive: archive,
	}, true
}

// parseSCP matches [user@]host:path[::archive] where the whole host prefix
// is optional as a unit. Protocol is ssh when a host was captured, file
// otherwise.
func parseSCP(text string) (*Location, bool) {
	user, afterUser := splitUser(text)

	// Prefix attempts, most specific first: with user, then without.
	attempts := [][2]string{}
	if user != "" {
		attempts = append(attempts, [2]string{user, afterUser})
	}
	attempts = append(attempts, [2]string{"", text})

	for _, at := range attempts {
		u, rest := at[0], at[1]
		for _, h := range hostCandidates(rest) {
			tail := rest[len(h):]
			if !strings.HasPrefix(tail, ":") {
				continue
			}
			path, archive, ok := scanSCPPath(tail[1:])
			if !ok {
				continue
			}
			return &Location{
				Proto:   ProtoSSH,
				User:    u,
				Host:    h,
				Path:    normalizePath(path),
				Archive: archive,
			}, true
		}
	}

	// No host prefix: the whole input is a bare path.
	path, archive, ok := scanSCPPath(text)
	if !ok {
		return nil, false
	}
	return &Location{
		Proto:   ProtoFile,
		Path:    normalizePath(path),
		Archive: archive,
	}, true
}

// scanSCPPath matches the scp path rule: not starting with ":", "//" or
// "ssh://", containing no unescaped "::" run, with an optional anchored
// archive suffix.
func scanSCPPath(s string) (path, archive string, ok bool) {
	if strings.HasPrefix(s, ":") || strings.HasPrefix(s, "//") || strings.HasPrefix(s, "ssh://") {
		return "", "", false
	}
	j := scanPathRun(s, 0)
	if j == 0 {
		return "", "", false
	}
	archive, ok = splitArchive(s[j:])
	if !ok {
		return "", "", false
	}
	return s[:j], archive, true
}

// splitUser consumes an optional leading "user@". The user part excludes
// '@', ':' and '/' and must be non-empty.
func splitUser(s string) (user, rest string) {
	j := 0
	for j < len(s) && s[j] != '@' && s[j] != ':' && s[j] != '/' {
		j++
	}
	if j > 0 && j < len(s) && s[j] == '@' {
		return s[:j], s[j+1:]
	}
	return "", s
}

// hostCandidates returns the possible host captures at the start of s, in
// match priority order: a bare token excluding ':' and '/', then a
// bracketed IPv6-style literal. Both may be viable; callers try each.
func hostCandidates(s string) []string {
	var out []string
	j := 0
	for j < len(s) && s[j] != ':' && s[j] != '/' {
		j++
	}
	if j > 0 {
		out = append(out, s[:j])
	}
	if strings.HasPrefix(s, "[") {
		k := 1
		for k < len(s) && isIPv6Char(s[k]) {
			k++
		}
		if k > 1 && k < len(s) && s[k] == ']' {
			bracketed := s[:k+1]
			if len(out) == 0 || out[0] != bracketed {
				out = append(out, bracketed)
			}
		}
	}
	return out
}

// scanPathRun consumes path characters starting at i: any byte other than
// ':', or a ':' not immediately followed by another ':'. The run therefore
// stops at the first "::" or at the end of the string.
func scanPathRun(s string, i int) int {
	j := i
	for j < len(s) {
		if s[j] == ':' && j+1 < len(s) && s[j+1] == ':' {
			break
		}
		j++
	}
	return j
}

// splitArchive validates the remainder after a path run: either empty or a
// "::archive" suffix where the archive is non-empty and contains no '/'.
func splitArchive(rest string) (string, bool) {
	if rest == "" {
		return "", true
	}
	name, ok := strings.CutPrefix(rest, "::")
	if !ok || name == "" || strings.ContainsRune(name, '/') {
		return "", false
	}
	return name, true
}

// normalizePath collapses redundant separators and relative segments. A
// path starting with the "/./" marker keeps it: normalization must not
// promote a relative-intent path to a plain absolute one.
func normalizePath(p string) string {
	relative := strings.HasPrefix(p, "/./")
	p = filepath.Clean(p)
	if relative {
		return "/." + p
	}
	return p
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func isIPv6Char(b byte) bool {
	switch {
	case b >= '0' && b <= '9':
		return true
	case b >= 'a' && b <= 'f':
		return true
	case b >= 'A' && b <= 'F':
		return true
	case b == ':' || b == '.':
		return true
	}
	return false
}

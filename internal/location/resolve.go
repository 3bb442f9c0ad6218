package location

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// DefaultRepoEnv is the environment variable naming the default repository
// used when an input is only an archive suffix.
const DefaultRepoEnv = "BORG_REPO"

// Error kinds surfaced by Parse and Resolve. All are local and
// non-retryable; a string failing every grammar is never coerced into a
// best-effort guess.
var (
	// ErrNoGrammarMatch: the input matches none of the three grammars.
	ErrNoGrammarMatch = errors.New("location matches no grammar")
	// ErrInvalidLocation: the archive-only fallback pattern also failed.
	ErrInvalidLocation = errors.New("invalid repository location")
	// ErrMissingDefaultRepo: fallback requested but the variable is unset.
	ErrMissingDefaultRepo = errors.New(DefaultRepoEnv + " is not set")
	// ErrInvalidDefaultRepo: the variable's value fails the grammar itself.
	ErrInvalidDefaultRepo = errors.New(DefaultRepoEnv + " is not a valid repository location")
)

// LookupEnv is the environment access used by Resolve, injected so parsing
// stays deterministic under test. os.LookupEnv satisfies it.
type LookupEnv func(key string) (string, bool)

// Resolve parses text into a Location, falling back to the repository
// named by $BORG_REPO when text is only an archive suffix ("::archive",
// "::" or empty). The fallback is exactly one level deep: the default
// repository must match a grammar on its own. The caller's archive suffix
// always overrides the default repository's own archive, including an
// explicit override to none.
//
// A nil lookup uses os.LookupEnv.
func Resolve(text string, lookup LookupEnv) (*Location, error) {
	if loc, ok := parseGrammar(text); ok {
		return loc, nil
	}

	archive, ok := matchArchiveOnly(text)
	if !ok {
		return nil, fmt.Errorf("%q: %w", text, ErrInvalidLocation)
	}

	if lookup == nil {
		lookup = os.LookupEnv
	}
	repo, ok := lookup(DefaultRepoEnv)
	if !ok {
		return nil, ErrMissingDefaultRepo
	}

	loc, ok := parseGrammar(repo)
	if !ok {
		return nil, fmt.Errorf("%q: %w", repo, ErrInvalidDefaultRepo)
	}
	loc.Archive = archive
	return loc, nil
}

// TryResolve is Resolve with failures collapsed to nil, for callers that
// only want to know whether a token is location-shaped.
func TryResolve(text string, lookup LookupEnv) *Location {
	loc, err := Resolve(text, lookup)
	if err != nil {
		return nil
	}
	return loc
}

// matchArchiveOnly matches the narrow fallback pattern: the literal "::"
// alone, the empty string, or an "::archive" suffix with nothing else.
func matchArchiveOnly(text string) (archive string, ok bool) {
	if text == "" || text == "::" {
		return "", true
	}
	name, ok := strings.CutPrefix(text, "::")
	if !ok || name == "" || strings.ContainsRune(name, '/') {
		return "", false
	}
	return name, true
}

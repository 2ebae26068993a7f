// Package match evaluates glob patterns against object keys.
//
// A Matcher pairs include and exclude patterns with listing-prefix
// derivation: the static portion of each include pattern becomes a
// prefix filter, so bulk operations only list the key ranges that can
// possibly match.
package match

import (
	"errors"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Config configures a Matcher.
type Config struct {
	// Includes are glob patterns an object key must match (at least
	// one). Required.
	Includes []string

	// Excludes are glob patterns an object key must not match (any).
	Excludes []string
}

// Errors returned by New.
var (
	// ErrNoIncludes is returned when no include patterns are provided.
	ErrNoIncludes = errors.New("at least one include pattern is required")

	// ErrInvalidPattern is returned for a pattern that cannot compile.
	ErrInvalidPattern = errors.New("invalid glob pattern")
)

// PatternError wraps a pattern-related error with the offending pattern.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return "pattern " + e.Pattern + ": " + e.Err.Error()
}

func (e *PatternError) Unwrap() error { return e.Err }

// Matcher evaluates keys against a compiled pattern set. It is safe for
// concurrent use after creation.
type Matcher struct {
	includes []string
	excludes []string
	prefixes []string
}

// New creates a Matcher, validating every pattern.
func New(cfg Config) (*Matcher, error) {
	if len(cfg.Includes) == 0 {
		return nil, ErrNoIncludes
	}
	for _, p := range append(append([]string{}, cfg.Includes...), cfg.Excludes...) {
		if !doublestar.ValidatePattern(p) {
			return nil, &PatternError{Pattern: p, Err: ErrInvalidPattern}
		}
	}
	return &Matcher{
		includes: cfg.Includes,
		excludes: cfg.Excludes,
		prefixes: DerivePrefixes(cfg.Includes),
	}, nil
}

// Match reports whether key matches at least one include pattern and no
// exclude pattern. Keys are opaque strings and are matched as-is.
func (m *Matcher) Match(key string) bool {
	matched := false
	for _, p := range m.includes {
		if ok, _ := doublestar.Match(p, key); ok {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}
	for _, p := range m.excludes {
		if ok, _ := doublestar.Match(p, key); ok {
			return false
		}
	}
	return true
}

// Prefixes returns the deduplicated listing prefixes derived from the
// include patterns. An empty string means at least one pattern needs a
// full listing.
func (m *Matcher) Prefixes() []string {
	return m.prefixes
}

// DerivePrefix extracts the static listing prefix of a glob pattern: the
// portion before the first glob metacharacter, truncated to the last
// complete path segment. A pattern with no metacharacters is its own
// prefix (an exact-key filter).
func DerivePrefix(pattern string) string {
	meta := strings.IndexAny(pattern, "*?[{\\")
	if meta < 0 {
		return pattern
	}
	if meta == 0 {
		return ""
	}
	prefix := pattern[:meta]
	if slash := strings.LastIndex(prefix, "/"); slash >= 0 {
		return prefix[:slash+1]
	}
	return ""
}

// DerivePrefixes derives prefixes for all patterns, deduplicated and
// reduced: a prefix covered by a shorter one is dropped, and any empty
// prefix collapses the set to a single full listing.
func DerivePrefixes(patterns []string) []string {
	seen := make(map[string]struct{}, len(patterns))
	prefixes := make([]string, 0, len(patterns))
	for _, p := range patterns {
		prefix := DerivePrefix(p)
		if prefix == "" {
			return []string{""}
		}
		if _, dup := seen[prefix]; dup {
			continue
		}
		seen[prefix] = struct{}{}
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)

	// Drop prefixes shadowed by a shorter ancestor.
	reduced := prefixes[:0]
	for _, p := range prefixes {
		if len(reduced) > 0 && strings.HasPrefix(p, reduced[len(reduced)-1]) {
			continue
		}
		reduced = append(reduced, p)
	}
	return reduced
}

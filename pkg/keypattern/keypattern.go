// Package keypattern provides a small predicate language for matching
// cache keys, used by stores to implement bulk operations (delete-all,
// count, list) without the caching runtime knowing backend internals.
//
// Keys are strings. Structured keys join their segments with ":"
// (e.g. "users:42:profile"); [Segments] matches such keys positionally
// with "*" as a per-position wildcard. [All] matches every key and
// [Keys] matches an explicit finite set.
package keypattern

import "strings"

// Separator joins the segments of a structured cache key.
const Separator = ":"

// Wildcard matches any single segment in a Segments pattern.
const Wildcard = "*"

// Pattern is a pure predicate over cache keys. Patterns own nothing and
// have no lifecycle.
type Pattern interface {
	// Matches reports whether the key satisfies the pattern.
	Matches(key string) bool

	// IsWildcard reports whether the pattern can match keys that are not
	// explicitly enumerated: true for All and for any Segments pattern
	// containing a wildcard position.
	IsWildcard() bool

	// String renders the pattern for logs and diagnostics.
	String() string
}

// All returns the pattern that matches every key.
func All() Pattern { return allPattern{} }

type allPattern struct{}

func (allPattern) Matches(string) bool { return true }
func (allPattern) IsWildcard() bool    { return true }
func (allPattern) String() string      { return Wildcard }

// Keys returns a pattern matching exactly the given keys.
func Keys(keys ...string) Pattern {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return keySet(set)
}

type keySet map[string]struct{}

func (s keySet) Matches(key string) bool {
	_, ok := s[key]
	return ok
}

func (s keySet) IsWildcard() bool { return false }

func (s keySet) String() string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	return "{" + strings.Join(keys, ",") + "}"
}

// Segments returns a positional pattern over ":"-joined keys. A key
// matches when it has the same number of segments and every non-wildcard
// position is equal; "*" positions match any segment.
//
//	Segments("users", "*")            // matches "users:42", not "orders:42" or "users:42:profile"
//	Segments("users", "42", "*")      // matches "users:42:profile"
func Segments(parts ...string) Pattern {
	return segments(parts)
}

type segments []string

func (p segments) Matches(key string) bool {
	got := strings.Split(key, Separator)
	if len(got) != len(p) {
		return false
	}
	for i, part := range p {
		if part != Wildcard && part != got[i] {
			return false
		}
	}
	return true
}

func (p segments) IsWildcard() bool {
	for _, part := range p {
		if part == Wildcard {
			return true
		}
	}
	return false
}

func (p segments) String() string {
	return strings.Join(p, Separator)
}

// Filter returns the keys matching the pattern, preserving input order.
func Filter(keys []string, p Pattern) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if p.Matches(k) {
			out = append(out, k)
		}
	}
	return out
}

// Enumerate returns the explicit members of a finite pattern built with
// Keys. The second return is false for patterns that cannot be
// enumerated (All and Segments).
func Enumerate(p Pattern) ([]string, bool) {
	set, ok := p.(keySet)
	if !ok {
		return nil, false
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	return keys, true
}

// Glob translates a pattern into a Redis-style MATCH glob. The second
// return is false when the pattern has no glob form (explicit key sets).
// Segment wildcards translate to "*", which in Redis globs can also span
// separators, so backends must re-check candidates with Matches.
func Glob(p Pattern) (string, bool) {
	switch pat := p.(type) {
	case allPattern:
		return "*", true
	case segments:
		return pat.String(), true
	default:
		return "", false
	}
}

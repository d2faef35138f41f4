// Package textmatch provides line predicates for filtering process output.
package textmatch

import (
	"regexp"
	"strings"

	"github.com/kbukum/execkit/errors"
)

// Set is a compiled group of regular expressions; a line matches the set if
// any member matches it.
type Set struct {
	patterns []*regexp.Regexp
}

// Compile builds a Set. With caseInsensitive every pattern matches regardless of case.
func Compile(patterns []string, caseInsensitive bool) (*Set, error) {
	s := &Set{patterns: make([]*regexp.Regexp, 0, len(patterns))}
	for i, p := range patterns {
		if caseInsensitive {
			p = "(?i)" + p
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, errors.InvalidInput("patterns", err.Error()).
				WithDetail("index", i).
				WithCause(err)
		}
		s.patterns = append(s.patterns, re)
	}
	return s, nil
}

// MustCompile is like Compile but panics on an invalid pattern.
func MustCompile(patterns []string, caseInsensitive bool) *Set {
	s, err := Compile(patterns, caseInsensitive)
	if err != nil {
		panic(err)
	}
	return s
}

// Match reports whether any pattern matches line. An empty set matches nothing.
func (s *Set) Match(line string) bool {
	for _, re := range s.patterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// Matches returns the indexes of every pattern that matches line.
func (s *Set) Matches(line string) []int {
	var out []int
	for i, re := range s.patterns {
		if re.MatchString(line) {
			out = append(out, i)
		}
	}
	return out
}

// Len returns the number of patterns in the set.
func (s *Set) Len() int { return len(s.patterns) }

// MatchesAny compiles patterns and reports whether any of them matches line.
// Callers filtering many lines should Compile once and use Set.Match.
func MatchesAny(line string, patterns []string, caseInsensitive bool) (bool, error) {
	s, err := Compile(patterns, caseInsensitive)
	if err != nil {
		return false, err
	}
	return s.Match(line), nil
}

// Contains returns a literal substring predicate.
func Contains(substr string, caseInsensitive bool) func(string) bool {
	if !caseInsensitive {
		return func(line string) bool { return strings.Contains(line, substr) }
	}
	lower := strings.ToLower(substr)
	return func(line string) bool { return strings.Contains(strings.ToLower(line), lower) }
}

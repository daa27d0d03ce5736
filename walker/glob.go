// Copyright (C) 2026 The Hoard Authors. All Rights Reserved.

package walker

import (
	"regexp"
	"strings"
)

// compile converts a glob pattern into a regexp. We can't just use
// filepath.Match, because hoard's ignore globs support "**" (match any
// number of path segments) and "?"/"[...]" character classes the way
// standard glob semantics define them, and filepath.Match's single "*"
// does not cross path separators at all.
func compile(pat string) string {
	var cmp strings.Builder
	cmp.WriteRune('^')
	var star bool
	var class bool
	for _, ch := range pat {
		if ch == '*' && star {
			star = false
			cmp.WriteString(`.*?`) // "**": anything, including separators
			continue
		} else if ch == '*' {
			star = true // not yet known whether this is "*" or "**"
			continue
		}

		if star {
			star = false
			cmp.WriteString(`[^/]*`) // single "*": anything but a separator
		}

		switch {
		case ch == '?':
			cmp.WriteString(`[^/]`)
		case ch == '[' && !class:
			class = true
			cmp.WriteRune(ch)
		case ch == ']' && class:
			class = false
			cmp.WriteRune(ch)
		default:
			if class {
				cmp.WriteRune(ch)
			} else {
				cmp.WriteString(regexp.QuoteMeta(string(ch)))
			}
		}
	}
	if star {
		cmp.WriteString(`[^/]*`)
	}
	cmp.WriteRune('$')
	return cmp.String()
}

// Matcher tests pile-relative paths against a set of ignore globs.
type Matcher struct {
	patterns []*regexp.Regexp
}

// NewMatcher compiles globs into a Matcher. Compilation errors are fatal at
// config load time.
func NewMatcher(globs []string) (*Matcher, error) {
	m := &Matcher{}
	for _, g := range globs {
		re, err := regexp.Compile(compile(g))
		if err != nil {
			return nil, err
		}
		m.patterns = append(m.patterns, re)
	}
	return m, nil
}

// Match reports whether relPath (pile-relative, slash-separated) matches
// any configured glob.
func (m *Matcher) Match(relPath string) bool {
	for _, re := range m.patterns {
		if re.MatchString(relPath) {
			return true
		}
	}
	return false
}

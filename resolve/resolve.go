// Copyright (C) 2026 The Hoard Authors. All Rights Reserved.

// Package resolve implements the Condition Resolver: given a pile's
// condition→path map and the active environment set, it chooses the
// winning path, or rejects the condition set as ambiguous.
package resolve

import (
	"sort"
	"strings"

	"bitbucket.org/creachadair/stringset"
	"github.com/shadow53/hoard/envmatch"
	"github.com/shadow53/hoard/herr"
)

// Condition is a set of environment names, all of which must be active for
// the condition to match. It is rendered pipe-delimited and is
// order-insensitive; equal sets are equal conditions regardless of the
// order names were declared in.
type Condition struct {
	names stringset.Set
}

// NewCondition builds a Condition from a pipe-delimited string such as
// "neovim|ssh".
func NewCondition(raw string) Condition {
	parts := strings.Split(raw, "|")
	names := stringset.New()
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			names.Add(p)
		}
	}
	return Condition{names: names}
}

// Len reports the cardinality of c.
func (c Condition) Len() int { return len(c.names) }

// Names returns the sorted names in c.
func (c Condition) Names() []string { return c.names.Elements() }

// Has reports whether name is one of c's members.
func (c Condition) Has(name string) bool { return c.names.Contains(name) }

// String renders c in canonical pipe-delimited form.
func (c Condition) String() string { return strings.Join(c.Names(), "|") }

// Matches reports whether every name in c is present in the active set.
func (c Condition) Matches(active envmatch.Set) bool {
	for _, name := range c.Names() {
		if !active.Contains(name) {
			return false
		}
	}
	return true
}

// ExclusivityGroup is an ordered list of environment names that cannot
// co-occur in a winning condition; earlier entries take precedence.
type ExclusivityGroup []string

// Candidate pairs a Condition with the path it selects.
type Candidate struct {
	Condition Condition
	Path      string
}

// Resolve chooses the winning candidate given the active environment set
// and the exclusivity list. It returns ok=false (with no error) if no
// candidate's condition matches anything in the active set, in which case
// the pile should be skipped with a warning.
func Resolve(candidates []Candidate, active envmatch.Set, groups []ExclusivityGroup) (Candidate, bool, error) {
	matched := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Condition.Matches(active) {
			matched = append(matched, c)
		}
	}
	if len(matched) == 0 {
		return Candidate{}, false, nil
	}

	// Partition by condition length, descending; consider the largest
	// bucket first, falling through to shorter conditions only if the
	// longer buckets are empty.
	lengths := make(map[int][]Candidate)
	var allLens []int
	for _, c := range matched {
		n := c.Condition.Len()
		if _, ok := lengths[n]; !ok {
			allLens = append(allLens, n)
		}
		lengths[n] = append(lengths[n], c)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(allLens)))

	for _, n := range allLens {
		bucket := lengths[n]
		bucket = applyExclusivity(bucket, groups)
		if len(bucket) == 1 {
			return bucket[0], true, nil
		}
		if len(bucket) > 1 {
			names := make([]string, len(bucket))
			for i, c := range bucket {
				names[i] = c.Condition.String()
			}
			return Candidate{}, false, herr.New(herr.AmbiguousCondition,
				"ambiguous condition: multiple equally-precedent conditions matched: %s",
				strings.Join(names, ", "))
		}
		// Exclusivity isn't expected to empty a singleton bucket entirely,
		// but fall through to the next-shorter bucket if it ever does.
	}
	return Candidate{}, false, nil
}

// applyExclusivity keeps, for each exclusivity group, only candidates that
// mention the earliest group member present among the bucket's conditions;
// candidates whose conditions mention a later member of a group in which
// an earlier member is also present in the bucket are dropped.
func applyExclusivity(bucket []Candidate, groups []ExclusivityGroup) []Candidate {
	out := bucket
	for _, group := range groups {
		present := presentNames(out, group)
		if len(present) < 2 {
			continue
		}
		winner := earliest(group, present)
		filtered := out[:0:0]
		for _, c := range out {
			if hasAnyOf(c.Condition, group) && !c.Condition.Has(winner) {
				continue
			}
			filtered = append(filtered, c)
		}
		out = filtered
	}
	return out
}

func presentNames(bucket []Candidate, group ExclusivityGroup) stringset.Set {
	present := stringset.New()
	for _, name := range group {
		for _, c := range bucket {
			if c.Condition.Has(name) {
				present.Add(name)
				break
			}
		}
	}
	return present
}

func earliest(group ExclusivityGroup, present stringset.Set) string {
	for _, name := range group {
		if present.Contains(name) {
			return name
		}
	}
	return ""
}

func hasAnyOf(c Condition, group ExclusivityGroup) bool {
	for _, name := range group {
		if c.Has(name) {
			return true
		}
	}
	return false
}

// ValidateExclusivity checks, at config-load time, that no environment name
// appears in more than one exclusivity group.
func ValidateExclusivity(groups []ExclusivityGroup) error {
	seen := make(map[string]int)
	for gi, g := range groups {
		for _, name := range g {
			if prior, ok := seen[name]; ok && prior != gi {
				return herr.New(herr.ConfigSemantic,
					"environment %q appears in more than one exclusivity group", name)
			}
			seen[name] = gi
		}
	}
	return nil
}

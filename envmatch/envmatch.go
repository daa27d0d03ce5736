// Copyright (C) 2026 The Hoard Authors. All Rights Reserved.

// Package envmatch evaluates declared environment predicates against the
// live host: OS, hostname, environment variables, executables on the
// search path, and filesystem paths.
package envmatch

import (
	"os"
	"os/exec"
	"runtime"

	"bitbucket.org/creachadair/stringset"
)

// EnvClause is a single "env" factor clause: a variable name and an
// optional expected literal value. When HasValue is false the clause means
// "defined, any value"; when it is true the value must equal Expected
// exactly, even if Expected is empty.
type EnvClause struct {
	Var      string
	Expected string
	HasValue bool
}

// Factor is a DNF expression: an outer OR of inner AND groups. Each element
// of Groups is one AND group; Groups as a whole are OR'd together. An empty
// Factor is trivially satisfied.
type Factor[T any] struct {
	Groups [][]T
}

// Empty reports whether f is trivially true (no groups declared).
func (f Factor[T]) Empty() bool { return len(f.Groups) == 0 }

// Environment is a named predicate over the host.
type Environment struct {
	Name string

	// OS and Hostname are single-value predicates: at most one of each per
	// environment; os/hostname may not be AND-combined.
	OS       string // empty means unspecified
	Hostname string // empty means unspecified

	Env      Factor[EnvClause]
	Exe      Factor[string]
	PathExts Factor[string]
}

// Host carries the live system facts an Environment is evaluated against.
type Host struct {
	OS       string
	Hostname string
	Getenv   func(string) (string, bool)
	LookPath func(string) error
	Stat     func(string) error
}

// DefaultHost returns a Host backed by the real operating system.
func DefaultHost() Host {
	hostname, _ := os.Hostname()
	return Host{
		OS:       runtime.GOOS,
		Hostname: hostname,
		Getenv: func(name string) (string, bool) {
			return os.LookupEnv(name)
		},
		LookPath: func(name string) error {
			_, err := exec.LookPath(name)
			return err
		},
		Stat: func(path string) error {
			_, err := os.Stat(path)
			return err
		},
	}
}

// Matches reports whether every specified factor of env is satisfied by
// host. Unspecified factors are trivially true. Evaluation never panics on
// missing data (an absent env var, a path that does not exist); those
// simply evaluate to false for that clause.
func (e *Environment) Matches(host Host) bool {
	if e.OS != "" && e.OS != host.OS {
		return false
	}
	if e.Hostname != "" && e.Hostname != host.Hostname {
		return false
	}
	if !e.Env.Empty() && !matchEnv(e.Env, host) {
		return false
	}
	if !e.Exe.Empty() && !matchFactor(e.Exe, host, func(name string) bool {
		return host.LookPath(name) == nil
	}) {
		return false
	}
	if !e.PathExts.Empty() && !matchFactor(e.PathExts, host, func(path string) bool {
		return host.Stat(path) == nil
	}) {
		return false
	}
	return true
}

func matchFactor(f Factor[string], _ Host, satisfies func(string) bool) bool {
	for _, group := range f.Groups {
		allOK := true
		for _, item := range group {
			if !satisfies(item) {
				allOK = false
				break
			}
		}
		if allOK {
			return true
		}
	}
	return false
}

func matchEnv(f Factor[EnvClause], host Host) bool {
	for _, group := range f.Groups {
		allOK := true
		for _, clause := range group {
			val, ok := host.Getenv(clause.Var)
			if !ok {
				allOK = false
				break
			}
			if clause.HasValue && val != clause.Expected {
				allOK = false
				break
			}
		}
		if allOK {
			return true
		}
	}
	return false
}

// Set is the subset of declared environments that match the live host. It
// is computed once per run and is immutable thereafter.
type Set struct {
	names stringset.Set
}

// Evaluate computes the Set of environments (out of envs) that match host.
func Evaluate(envs []*Environment, host Host) Set {
	names := stringset.New()
	for _, e := range envs {
		if e.Matches(host) {
			names.Add(e.Name)
		}
	}
	return Set{names: names}
}

// Contains reports whether name is in the active environment set.
func (s Set) Contains(name string) bool { return s.names.Contains(name) }

// Names returns the sorted elements of the active environment set.
func (s Set) Names() []string { return s.names.Elements() }

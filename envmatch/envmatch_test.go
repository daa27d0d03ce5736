// Copyright (C) 2026 The Hoard Authors. All Rights Reserved.

package envmatch

import (
	"testing"

	"github.com/shadow53/hoard/herr"
)

func testHost() Host {
	return Host{
		OS:       "linux",
		Hostname: "rosalind",
		Getenv: func(name string) (string, bool) {
			if name == "SSH_AUTH_SOCK" {
				return "/tmp/sock", true
			}
			return "", false
		},
		LookPath: func(name string) error {
			if name == "nvim" {
				return nil
			}
			return herr.New(herr.IoFailure, "not found")
		},
		Stat: func(path string) error {
			if path == "/opt/games" {
				return nil
			}
			return herr.New(herr.IoFailure, "not found")
		},
	}
}

func TestMatchesOSAndHostname(t *testing.T) {
	host := testHost()
	env := &Environment{Name: "this-box", OS: "linux", Hostname: "rosalind"}
	if !env.Matches(host) {
		t.Errorf("expected match on OS+hostname")
	}
	env.Hostname = "someone-else"
	if env.Matches(host) {
		t.Errorf("expected no match on wrong hostname")
	}
}

func TestMatchesEnvClause(t *testing.T) {
	host := testHost()
	env := &Environment{
		Name: "ssh-session",
		Env: Factor[EnvClause]{Groups: [][]EnvClause{
			{{Var: "SSH_AUTH_SOCK"}},
		}},
	}
	if !env.Matches(host) {
		t.Errorf("expected match: SSH_AUTH_SOCK is set")
	}

	env.Env.Groups[0][0] = EnvClause{Var: "SSH_AUTH_SOCK", Expected: "/wrong", HasValue: true}
	if env.Matches(host) {
		t.Errorf("expected no match: value mismatch")
	}

	env.Env.Groups[0][0] = EnvClause{Var: "NOT_SET"}
	if env.Matches(host) {
		t.Errorf("missing variable must evaluate to false, not error")
	}
}

func TestMatchesExeAndPathDNF(t *testing.T) {
	host := testHost()
	env := &Environment{
		Name: "neovim-box",
		Exe: Factor[string]{Groups: [][]string{
			{"doesnotexist"},
			{"nvim"},
		}},
		PathExts: Factor[string]{Groups: [][]string{
			{"/opt/games", "/also/required"},
		}},
	}
	// exe_exists matches via the second OR-group, but path_exists requires
	// both AND members, and "/also/required" doesn't exist.
	if env.Matches(host) {
		t.Errorf("expected no match: AND group has one unsatisfied member")
	}

	env.PathExts.Groups[0] = []string{"/opt/games"}
	if !env.Matches(host) {
		t.Errorf("expected match once the AND group is satisfiable")
	}
}

func TestEvaluateSet(t *testing.T) {
	host := testHost()
	envs := []*Environment{
		{Name: "always"},
		{Name: "wrong-os", OS: "windows"},
	}
	set := Evaluate(envs, host)
	if !set.Contains("always") {
		t.Errorf("expected 'always' to be in the active set")
	}
	if set.Contains("wrong-os") {
		t.Errorf("did not expect 'wrong-os' to be in the active set")
	}
}

func TestExpandSimple(t *testing.T) {
	getenv := func(name string) (string, bool) {
		if name == "HOME" {
			return "/home/rosalind", true
		}
		return "", false
	}
	x := NewExpander(getenv, map[string]string{"FILES": "${HOME}/files"})
	got, err := x.Expand("${FILES}/anon")
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	if want := "/home/rosalind/files/anon"; got != want {
		t.Errorf("Expand = %q, want %q", got, want)
	}
}

func TestExpandMissingIsFatal(t *testing.T) {
	x := NewExpander(func(string) (string, bool) { return "", false }, nil)
	if _, err := x.Expand("${NOPE}"); herr.KindOf(err) != herr.EnvVarMissing {
		t.Errorf("expected EnvVarMissing, got %v", err)
	}
}

func TestCheckDefaultCyclesDetectsCycle(t *testing.T) {
	defaults := map[string]string{"A": "${B}", "B": "${A}"}
	err := CheckDefaultCycles(defaults)
	if herr.KindOf(err) != herr.ConfigSemantic {
		t.Fatalf("expected ConfigSemantic, got %v", err)
	}
}

func TestCheckDefaultCyclesAcyclic(t *testing.T) {
	defaults := map[string]string{"A": "${B}", "B": "plain"}
	if err := CheckDefaultCycles(defaults); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

// Copyright (C) 2026 The Hoard Authors. All Rights Reserved.

package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shadow53/hoard/config"
	"github.com/shadow53/hoard/envmatch"
	"github.com/shadow53/hoard/herr"
	"github.com/shadow53/hoard/orchestrate"
	"github.com/shadow53/hoard/platform"
	"github.com/shadow53/hoard/resolve"
)

// withStdout redirects os.Stdout for the duration of fn and returns what
// was written to it.
func withStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	os.Stdout = w
	fn()
	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		t.Fatalf("read captured stdout: %v", err)
	}
	return buf.String()
}

func resetFlags(t *testing.T) {
	t.Helper()
	old := *configFile
	*configFile = ""
	t.Cleanup(func() { *configFile = old })
}

func TestResolveConfigPathPrefersExplicitFlag(t *testing.T) {
	resetFlags(t)
	*configFile = "/explicit/path.toml"
	got, err := resolveConfigPath(platform.Dirs{ConfigDir: "/unused"})
	if err != nil {
		t.Fatalf("resolveConfigPath: %v", err)
	}
	if got != "/explicit/path.toml" {
		t.Errorf("got %q, want the explicit flag value", got)
	}
}

func TestResolveConfigPathFindsFirstExistingCandidate(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(yamlPath, []byte("envs: {}\n"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := resolveConfigPath(platform.Dirs{ConfigDir: dir})
	if err != nil {
		t.Fatalf("resolveConfigPath: %v", err)
	}
	if got != yamlPath {
		t.Errorf("got %q, want %q", got, yamlPath)
	}
}

func TestResolveConfigPathErrorsWhenNoneFound(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	_, err := resolveConfigPath(platform.Dirs{ConfigDir: dir})
	if herr.KindOf(err) != herr.IoFailure {
		t.Fatalf("expected IoFailure, got %v", err)
	}
}

func TestCmdInitRefusesToOverwrite(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	*configFile = filepath.Join(dir, "config.toml")
	if err := os.WriteFile(*configFile, []byte("envs: {}\n"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	err := cmdInit(platform.Dirs{ConfigDir: dir})
	if herr.KindOf(err) != herr.IoFailure {
		t.Fatalf("expected IoFailure for existing file, got %v", err)
	}
}

func TestCmdInitWritesStarterConfig(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	*configFile = filepath.Join(dir, "config.toml")
	if err := cmdInit(platform.Dirs{ConfigDir: dir}); err != nil {
		t.Fatalf("cmdInit: %v", err)
	}
	if _, err := config.ParseFile(*configFile); err != nil {
		t.Fatalf("starter config does not parse: %v", err)
	}
}

func TestCmdListPrintsHoardsAndPiles(t *testing.T) {
	cfg := &config.Config{
		Hoards: map[string]*config.Hoard{
			"anon": {Name: "anon", Piles: []*config.Pile{
				{HoardName: "anon", Candidates: []resolve.Candidate{{Condition: resolve.NewCondition("always"), Path: "/a"}}},
			}},
		},
	}
	out := withStdout(t, func() {
		if err := cmdList(cfg); err != nil {
			t.Fatalf("cmdList: %v", err)
		}
	})
	if !strings.Contains(out, "anon") {
		t.Errorf("output %q missing hoard name", out)
	}
}

func TestCmdDiffRejectsWrongArgCount(t *testing.T) {
	o := &orchestrate.Orchestrator{
		Config: &config.Config{Hoards: map[string]*config.Hoard{}},
		Host:   envmatch.DefaultHost(),
	}
	err := cmdDiff(o, nil)
	if herr.KindOf(err) != herr.ConfigParse {
		t.Fatalf("expected ConfigParse for missing name, got %v", err)
	}
	err = cmdDiff(o, []string{"a", "b"})
	if herr.KindOf(err) != herr.ConfigParse {
		t.Fatalf("expected ConfigParse for too many names, got %v", err)
	}
}

func TestCmdDiffUnknownHoardAborts(t *testing.T) {
	o := &orchestrate.Orchestrator{
		Config: &config.Config{Hoards: map[string]*config.Hoard{}},
		Host:   envmatch.DefaultHost(),
	}
	err := cmdDiff(o, []string{"missing"})
	if herr.KindOf(err) != herr.ConfigSemantic {
		t.Fatalf("expected ConfigSemantic for unknown hoard, got %v", err)
	}
}

// Copyright (C) 2026 The Hoard Authors. All Rights Reserved.

package config

import (
	"strings"
	"testing"

	"github.com/shadow53/hoard/herr"
)

const exampleTOML = `
exclusivity = [["neovim", "vim"]]

[env_defaults]
FILES = "${HOME}/dotfiles"

[envs.always]
path_exists = [["/"]]

[envs.neovim]
exe_exists = [["nvim"]]

[envs.vim]
exe_exists = [["vim"]]

[hoards.anon.conditions]
always = "${FILES}/anon"

[hoards.dotfiles.piles.bashrc.conditions]
always = "${FILES}/bashrc"

[hoards.dotfiles.piles.vimrc.conditions]
"vim|neovim" = "${FILES}/vimrc"

[hoards.dotfiles.config]
ignore = ["*.swp"]
`

func TestParseTOMLExample(t *testing.T) {
	cfg, err := Parse(strings.NewReader(exampleTOML), TOML)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(cfg.Environments) != 3 {
		t.Fatalf("expected 3 environments, got %d", len(cfg.Environments))
	}

	anon := cfg.FindHoard("anon")
	if anon == nil || len(anon.Piles) != 1 {
		t.Fatalf("expected a single anonymous pile for hoard 'anon'")
	}
	if anon.Piles[0].Name != "" {
		t.Errorf("anonymous pile should have an empty name, got %q", anon.Piles[0].Name)
	}

	dot := cfg.FindHoard("dotfiles")
	if dot == nil || len(dot.Piles) != 2 {
		t.Fatalf("expected 2 piles for hoard 'dotfiles'")
	}
	for _, p := range dot.Piles {
		if len(p.Config.Ignore) != 1 || p.Config.Ignore[0] != "*.swp" {
			t.Errorf("pile %q: expected ignore to inherit from hoard config, got %v", p.Name, p.Config.Ignore)
		}
	}
}

func TestParseRejectsUnknownKey(t *testing.T) {
	bad := exampleTOML + "\n[bogus]\nx = 1\n"
	_, err := Parse(strings.NewReader(bad), TOML)
	if herr.KindOf(err) != herr.ConfigParse {
		t.Fatalf("expected ConfigParse for unknown key, got %v", err)
	}
}

func TestParseRejectsBareConditionsAndPilesTogether(t *testing.T) {
	bad := `
[hoards.mixed.conditions]
always = "/a"

[hoards.mixed.piles.x.conditions]
always = "/b"
`
	_, err := Parse(strings.NewReader(bad), TOML)
	if herr.KindOf(err) != herr.ConfigParse {
		t.Fatalf("expected ConfigParse, got %v", err)
	}
}

func TestParseDetectsExclusivityConflict(t *testing.T) {
	bad := `
exclusivity = [["a", "b"], ["b", "c"]]
`
	_, err := Parse(strings.NewReader(bad), TOML)
	if herr.KindOf(err) != herr.ConfigSemantic {
		t.Fatalf("expected ConfigSemantic, got %v", err)
	}
}

func TestParseDetectsDefaultCycle(t *testing.T) {
	bad := `
[env_defaults]
A = "${B}"
B = "${A}"
`
	_, err := Parse(strings.NewReader(bad), TOML)
	if herr.KindOf(err) != herr.ConfigSemantic {
		t.Fatalf("expected ConfigSemantic for cyclic defaults, got %v", err)
	}
}

func TestMergePileConfigMostSpecificWins(t *testing.T) {
	global := PileConfigSpec{HashAlgorithm: "md5", Ignore: []string{"*.tmp"}}
	hoard := PileConfigSpec{HashAlgorithm: "sha256"}
	pile := PileConfigSpec{Ignore: []string{"*.swp"}}

	got := mergePileConfig(global, hoard, pile)
	if got.HashAlgorithm != "sha256" {
		t.Errorf("HashAlgorithm = %q, want sha256 (hoard overrides global)", got.HashAlgorithm)
	}
	if len(got.Ignore) != 2 {
		t.Errorf("Ignore = %v, want union of global and pile", got.Ignore)
	}
}

func TestParseYAML(t *testing.T) {
	doc := `
hoards:
  anon:
    conditions:
      always: /tmp/x
`
	cfg, err := Parse(strings.NewReader(doc), YAML)
	if err != nil {
		t.Fatalf("Parse YAML failed: %v", err)
	}
	if cfg.FindHoard("anon") == nil {
		t.Fatalf("expected hoard 'anon'")
	}
}

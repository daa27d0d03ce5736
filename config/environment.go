// Copyright (C) 2026 The Hoard Authors. All Rights Reserved.

package config

import (
	"strings"

	"github.com/shadow53/hoard/envmatch"
	"github.com/shadow53/hoard/herr"
)

// EnvSpec is the raw, as-declared form of an environment definition. Each
// DNF factor is written as an outer list of inner lists: the outer list is
// OR'd, each inner list is AND'd. "env" clauses are strings of the form
// "VAR" (defined, any value) or "VAR=value" (defined, exact match).
type EnvSpec struct {
	OS         string     `toml:"os,omitempty" yaml:"os,omitempty" json:"os,omitempty"`
	Hostname   string     `toml:"hostname,omitempty" yaml:"hostname,omitempty" json:"hostname,omitempty"`
	Env        [][]string `toml:"env,omitempty" yaml:"env,omitempty" json:"env,omitempty"`
	ExeExists  [][]string `toml:"exe_exists,omitempty" yaml:"exe-exists,omitempty" json:"exe_exists,omitempty"`
	PathExists [][]string `toml:"path_exists,omitempty" yaml:"path-exists,omitempty" json:"path_exists,omitempty"`
}

// buildEnvironment converts an EnvSpec into an envmatch.Environment.
func buildEnvironment(name string, spec *EnvSpec) (*envmatch.Environment, error) {
	env := &envmatch.Environment{
		Name:     name,
		OS:       spec.OS,
		Hostname: spec.Hostname,
		Exe:      envmatch.Factor[string]{Groups: spec.ExeExists},
		PathExts: envmatch.Factor[string]{Groups: spec.PathExists},
	}
	var groups [][]envmatch.EnvClause
	for _, group := range spec.Env {
		var clauses []envmatch.EnvClause
		for _, raw := range group {
			clauses = append(clauses, parseEnvClause(raw))
		}
		groups = append(groups, clauses)
	}
	env.Env = envmatch.Factor[envmatch.EnvClause]{Groups: groups}
	return env, nil
}

func parseEnvClause(raw string) envmatch.EnvClause {
	if i := strings.IndexByte(raw, '='); i >= 0 {
		return envmatch.EnvClause{Var: raw[:i], Expected: raw[i+1:], HasValue: true}
	}
	return envmatch.EnvClause{Var: raw}
}

// validateEnvSpecs rejects any environment that specifies no factor at all.
// The invariant that os/hostname may not be AND-combined needs no check
// here: EnvSpec models each as a single scalar field. An empty os or
// hostname is treated as unspecified, not rejected.
func validateEnvSpecs(specs map[string]*EnvSpec) error {
	for name, spec := range specs {
		if spec.OS == "" && len(spec.Env) == 0 && len(spec.ExeExists) == 0 &&
			len(spec.PathExists) == 0 && spec.Hostname == "" {
			return herr.New(herr.ConfigSemantic, "environment %q specifies no factors", name)
		}
	}
	return nil
}

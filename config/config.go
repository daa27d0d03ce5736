// Copyright (C) 2026 The Hoard Authors. All Rights Reserved.

// Package config parses, normalizes, and expands hoard's declarative
// configuration into a resolved, typed object graph: environments, an
// exclusivity list, and a set of hoards, each holding one or more piles
// with a condition→path map and a layered effective pile configuration.
package config

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"sort"

	"github.com/BurntSushi/toml"
	yaml "gopkg.in/yaml.v3"

	"github.com/shadow53/hoard/envmatch"
	"github.com/shadow53/hoard/herr"
	"github.com/shadow53/hoard/resolve"
	"github.com/shadow53/hoard/walker"
)

// Format names an on-disk configuration format.
type Format int

const (
	TOML Format = iota
	YAML
	JSON
)

// rawConfig is the as-declared shape of the configuration file, shared
// across all three formats.
type rawConfig struct {
	EnvDefaults map[string]string    `toml:"env_defaults,omitempty" yaml:"env-defaults,omitempty" json:"env_defaults,omitempty"`
	Exclusivity [][]string           `toml:"exclusivity,omitempty" yaml:"exclusivity,omitempty" json:"exclusivity,omitempty"`
	Envs        map[string]*EnvSpec  `toml:"envs,omitempty" yaml:"envs,omitempty" json:"envs,omitempty"`
	Hoards      map[string]*rawHoard `toml:"hoards,omitempty" yaml:"hoards,omitempty" json:"hoards,omitempty"`
	Config      PileConfigSpec       `toml:"config,omitempty" yaml:"config,omitempty" json:"config,omitempty"`
	Verbose     bool                 `toml:"verbose,omitempty" yaml:"verbose,omitempty" json:"verbose,omitempty"`
}

// rawHoard is either a single anonymous pile (Conditions set directly, no
// Piles table) or a named set of piles.
type rawHoard struct {
	Config     PileConfigSpec      `toml:"config,omitempty" yaml:"config,omitempty" json:"config,omitempty"`
	Conditions map[string]string   `toml:"conditions,omitempty" yaml:"conditions,omitempty" json:"conditions,omitempty"`
	Piles      map[string]*rawPile `toml:"piles,omitempty" yaml:"piles,omitempty" json:"piles,omitempty"`
}

type rawPile struct {
	Config     PileConfigSpec    `toml:"config,omitempty" yaml:"config,omitempty" json:"config,omitempty"`
	Conditions map[string]string `toml:"conditions,omitempty" yaml:"conditions,omitempty" json:"conditions,omitempty"`
}

// Pile is a resolved condition→path mapping plus its effective config.
type Pile struct {
	// Name identifies the pile within its hoard. The anonymous pile of a
	// single-pile hoard has an empty Name.
	Name       string
	HoardName  string
	Candidates []resolve.Candidate
	Config     PileConfig
}

// Hoard is a named set of piles sharing a layered config.
type Hoard struct {
	Name  string
	Piles []*Pile
}

// Config is the fully parsed, normalized, and expanded configuration.
type Config struct {
	Environments      []*envmatch.Environment
	ExclusivityGroups []resolve.ExclusivityGroup
	Hoards            map[string]*Hoard
	Verbose           bool

	envDefaults map[string]string
}

// Parse decodes and normalizes a Config from r in the given format. Unknown
// keys are a ConfigParse error; exclusivity conflicts, cyclic defaults, and
// other semantic problems are ConfigSemantic errors.
func Parse(r io.Reader, format Format) (*Config, error) {
	raw, err := decode(r, format)
	if err != nil {
		return nil, err
	}
	return normalize(raw)
}

// ParseFile decodes a Config from path, inferring the format from its
// extension (".toml" default, ".yaml"/".yml", ".json").
func ParseFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, herr.Wrap(herr.IoFailure, err, "open config file").WithPath(path)
	}
	defer f.Close()
	return Parse(f, formatForPath(path))
}

func formatForPath(path string) Format {
	switch ext(path) {
	case "yaml", "yml":
		return YAML
	case "json":
		return JSON
	default:
		return TOML
	}
}

func ext(path string) string {
	i := len(path) - 1
	for i >= 0 && path[i] != '.' && path[i] != '/' {
		i--
	}
	if i < 0 || path[i] != '.' {
		return ""
	}
	return path[i+1:]
}

func decode(r io.Reader, format Format) (*rawConfig, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, herr.Wrap(herr.IoFailure, err, "read config")
	}

	var raw rawConfig
	switch format {
	case YAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&raw); err != nil {
			return nil, herr.Wrap(herr.ConfigParse, err, "parse YAML config")
		}
	case JSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&raw); err != nil {
			return nil, herr.Wrap(herr.ConfigParse, err, "parse JSON config")
		}
	default:
		md, err := toml.Decode(string(data), &raw)
		if err != nil {
			return nil, herr.Wrap(herr.ConfigParse, err, "parse TOML config")
		}
		if undec := md.Undecoded(); len(undec) > 0 {
			return nil, herr.New(herr.ConfigParse, "unknown key %q in TOML config", undec[0].String())
		}
	}
	return &raw, nil
}

func normalize(raw *rawConfig) (*Config, error) {
	if err := resolve.ValidateExclusivity(toGroups(raw.Exclusivity)); err != nil {
		return nil, err
	}
	if err := validateEnvSpecs(raw.Envs); err != nil {
		return nil, err
	}
	if err := envmatch.CheckDefaultCycles(raw.EnvDefaults); err != nil {
		return nil, err
	}

	envNames := make([]string, 0, len(raw.Envs))
	for name := range raw.Envs {
		envNames = append(envNames, name)
	}
	sort.Strings(envNames)

	var environments []*envmatch.Environment
	for _, name := range envNames {
		env, err := buildEnvironment(name, raw.Envs[name])
		if err != nil {
			return nil, err
		}
		environments = append(environments, env)
	}

	expander := envmatch.NewExpander(func(name string) (string, bool) {
		return os.LookupEnv(name)
	}, raw.EnvDefaults)

	hoards := make(map[string]*Hoard)
	hoardNames := make([]string, 0, len(raw.Hoards))
	for name := range raw.Hoards {
		hoardNames = append(hoardNames, name)
	}
	sort.Strings(hoardNames)

	for _, hoardName := range hoardNames {
		rh := raw.Hoards[hoardName]
		h, err := normalizeHoard(hoardName, rh, raw.Config, expander)
		if err != nil {
			return nil, err
		}
		hoards[hoardName] = h
	}

	return &Config{
		Environments:      environments,
		ExclusivityGroups: toGroups(raw.Exclusivity),
		Hoards:            hoards,
		Verbose:           raw.Verbose,
		envDefaults:       raw.EnvDefaults,
	}, nil
}

func normalizeHoard(name string, rh *rawHoard, global PileConfigSpec, expander *envmatch.Expander) (*Hoard, error) {
	h := &Hoard{Name: name}

	if len(rh.Piles) == 0 {
		pile, err := normalizePile(name, "", rh.Conditions, global, rh.Config, PileConfigSpec{}, expander)
		if err != nil {
			return nil, attachHoard(err, name)
		}
		h.Piles = []*Pile{pile}
		return h, nil
	}
	if len(rh.Conditions) != 0 {
		return nil, herr.New(herr.ConfigParse,
			"hoard %q declares both bare conditions and a piles table", name).WithHoard(name)
	}

	pileNames := make([]string, 0, len(rh.Piles))
	for pn := range rh.Piles {
		pileNames = append(pileNames, pn)
	}
	sort.Strings(pileNames)

	for _, pn := range pileNames {
		rp := rh.Piles[pn]
		pile, err := normalizePile(name, pn, rp.Conditions, global, rh.Config, rp.Config, expander)
		if err != nil {
			return nil, attachHoard(attachPile(err, pn), name)
		}
		h.Piles = append(h.Piles, pile)
	}
	return h, nil
}

func normalizePile(hoardName, pileName string, conditions map[string]string,
	global, hoard, pile PileConfigSpec, expander *envmatch.Expander) (*Pile, error) {

	condNames := make([]string, 0, len(conditions))
	for c := range conditions {
		condNames = append(condNames, c)
	}
	sort.Strings(condNames)

	var candidates []resolve.Candidate
	for _, raw := range condNames {
		path, err := expander.Expand(conditions[raw])
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, resolve.Candidate{
			Condition: resolve.NewCondition(raw),
			Path:      path,
		})
	}

	cfg := mergePileConfig(global, hoard, pile)
	if _, err := walker.NewMatcher(cfg.Ignore); err != nil {
		return nil, herr.Wrap(herr.ConfigParse, err, "invalid ignore glob")
	}

	return &Pile{
		Name:       pileName,
		HoardName:  hoardName,
		Candidates: candidates,
		Config:     cfg,
	}, nil
}

// attachHoard/attachPile add context to an error without disturbing its
// Kind, so EnvVarMissing (say) is still reported as EnvVarMissing at the
// CLI boundary, just with hoard/pile context attached.
func attachHoard(err error, hoard string) error {
	if e, ok := err.(*herr.Error); ok {
		return e.WithHoard(hoard)
	}
	return herr.Wrap(herr.ConfigSemantic, err, "hoard %q", hoard).WithHoard(hoard)
}

func attachPile(err error, pile string) error {
	if e, ok := err.(*herr.Error); ok {
		return e.WithPile(pile)
	}
	return herr.Wrap(herr.ConfigSemantic, err, "pile %q", pile).WithPile(pile)
}

func toGroups(raw [][]string) []resolve.ExclusivityGroup {
	groups := make([]resolve.ExclusivityGroup, len(raw))
	for i, g := range raw {
		groups[i] = resolve.ExclusivityGroup(g)
	}
	return groups
}

// FindHoard returns the hoard matching name, or nil if none matches.
func (c *Config) FindHoard(name string) *Hoard {
	return c.Hoards[name]
}

// HoardNames returns the sorted names of every declared hoard.
func (c *Config) HoardNames() []string {
	names := make([]string, 0, len(c.Hoards))
	for n := range c.Hoards {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

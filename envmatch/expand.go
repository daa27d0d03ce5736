// Copyright (C) 2026 The Hoard Authors. All Rights Reserved.

package envmatch

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shadow53/hoard/herr"
)

var varPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Expander resolves "${NAME}" references against the host environment
// first, then against a table of declared defaults (which may themselves
// contain further "${...}" references). Default resolution is memoized;
// a dependency cycle among defaults is a fatal configuration error.
type Expander struct {
	Getenv   func(string) (string, bool)
	Defaults map[string]string

	resolved map[string]string
	visiting map[string]bool
}

// NewExpander builds an Expander backed by the live host environment.
func NewExpander(getenv func(string) (string, bool), defaults map[string]string) *Expander {
	return &Expander{
		Getenv:   getenv,
		Defaults: defaults,
		resolved: make(map[string]string),
		visiting: make(map[string]bool),
	}
}

// Expand replaces every "${NAME}" reference in s. A missing variable with
// no default is a fatal EnvVarMissing error at the use site. A cycle among
// defaults is a fatal ConfigSemantic error.
func (x *Expander) Expand(s string) (string, error) {
	var outerErr error
	out := varPattern.ReplaceAllStringFunc(s, func(m string) string {
		if outerErr != nil {
			return m
		}
		name := varPattern.FindStringSubmatch(m)[1]
		val, err := x.resolve(name)
		if err != nil {
			outerErr = err
			return m
		}
		return val
	})
	if outerErr != nil {
		return "", outerErr
	}
	return out, nil
}

func (x *Expander) resolve(name string) (string, error) {
	if v, ok := x.Getenv(name); ok {
		return v, nil
	}
	if v, ok := x.resolved[name]; ok {
		return v, nil
	}
	def, ok := x.Defaults[name]
	if !ok {
		return "", herr.New(herr.EnvVarMissing, "no value or default for ${%s}", name)
	}
	if x.visiting[name] {
		return "", herr.New(herr.ConfigSemantic, "cyclic default involving ${%s}", name)
	}
	x.visiting[name] = true
	defer delete(x.visiting, name)

	expanded, err := x.Expand(def)
	if err != nil {
		var e *herr.Error
		if as, ok := err.(*herr.Error); ok {
			e = as
		}
		if e != nil && e.Kind == herr.ConfigSemantic {
			return "", fmt.Errorf("%w (via %s)", err, name)
		}
		return "", err
	}
	x.resolved[name] = expanded
	return expanded, nil
}

// CheckDefaultCycles validates that the default table itself contains no
// cyclic references, independent of whether any are ever used. It returns
// an error naming every variable implicated in a cycle.
func CheckDefaultCycles(defaults map[string]string) error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(defaults))
	var cyclic []string

	var visit func(name string) bool
	visit = func(name string) bool {
		switch color[name] {
		case gray:
			return true
		case black:
			return false
		}
		def, ok := defaults[name]
		if !ok {
			return false
		}
		color[name] = gray
		for _, m := range varPattern.FindAllStringSubmatch(def, -1) {
			if visit(m[1]) {
				cyclic = append(cyclic, name)
				color[name] = black
				return true
			}
		}
		color[name] = black
		return false
	}

	names := make([]string, 0, len(defaults))
	for name := range defaults {
		names = append(names, name)
	}
	for _, name := range names {
		if color[name] == white {
			visit(name)
		}
	}
	if len(cyclic) == 0 {
		return nil
	}
	return herr.New(herr.ConfigSemantic, "cyclic default(s) involving: %s", strings.Join(cyclic, ", "))
}

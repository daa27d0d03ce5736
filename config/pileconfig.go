// Copyright (C) 2026 The Hoard Authors. All Rights Reserved.

package config

import (
	"sort"

	"bitbucket.org/creachadair/stringset"
	"github.com/shadow53/hoard/hasher"
)

// PileConfigSpec is the raw, as-declared form of a pile's effective
// configuration, present at the global, hoard, and pile levels.
type PileConfigSpec struct {
	Ignore            []string  `toml:"ignore,omitempty" yaml:"ignore,omitempty" json:"ignore,omitempty"`
	FilePermissions   *PermSpec `toml:"file_permissions,omitempty" yaml:"file-permissions,omitempty" json:"file_permissions,omitempty"`
	FolderPermissions *PermSpec `toml:"folder_permissions,omitempty" yaml:"folder-permissions,omitempty" json:"folder_permissions,omitempty"`
	HashAlgorithm     string    `toml:"hash_algorithm,omitempty" yaml:"hash-algorithm,omitempty" json:"hash_algorithm,omitempty"`
	Encryption        string    `toml:"encryption,omitempty" yaml:"encryption,omitempty" json:"encryption,omitempty"`
}

// PileConfig is the resolved, effective configuration for a single pile
// after the three-level merge.
type PileConfig struct {
	Ignore            []string
	FilePermissions   *PermSpec
	FolderPermissions *PermSpec
	HashAlgorithm     hasher.Algorithm
	Encryption        string
}

// mergePileConfig unions ignore globs across all three levels
// (deduplicated); permissions, hash algorithm, and encryption take the
// most-specific non-empty value (pile, else hoard, else global).
func mergePileConfig(global, hoard, pile PileConfigSpec) PileConfig {
	ignoreSet := stringset.New()
	ignoreSet.Add(global.Ignore...)
	ignoreSet.Add(hoard.Ignore...)
	ignoreSet.Add(pile.Ignore...)
	ignore := ignoreSet.Elements()
	sort.Strings(ignore)

	return PileConfig{
		Ignore:            ignore,
		FilePermissions:   firstNonZeroPerm(pile.FilePermissions, hoard.FilePermissions, global.FilePermissions),
		FolderPermissions: firstNonZeroPerm(pile.FolderPermissions, hoard.FolderPermissions, global.FolderPermissions),
		HashAlgorithm:     firstNonEmptyAlgorithm(pile.HashAlgorithm, hoard.HashAlgorithm, global.HashAlgorithm),
		Encryption:        firstNonEmpty(pile.Encryption, hoard.Encryption, global.Encryption),
	}
}

func firstNonZeroPerm(specs ...*PermSpec) *PermSpec {
	for _, s := range specs {
		if !s.IsZero() {
			return s
		}
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// firstNonEmptyAlgorithm applies the most-specific-wins rule and defaults
// to SHA-256 when nothing at all is specified.
func firstNonEmptyAlgorithm(vals ...string) hasher.Algorithm {
	v := firstNonEmpty(vals...)
	if v == "" {
		return hasher.SHA256
	}
	return hasher.Algorithm(v)
}

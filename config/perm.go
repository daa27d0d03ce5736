// Copyright (C) 2026 The Hoard Authors. All Rights Reserved.

package config

import "os"

// PermSpec describes a file-permission configuration as either a literal
// octal mode string (e.g. "0644") or a set of POSIX flag bits. Both forms
// lower to a 9-bit os.FileMode.
type PermSpec struct {
	Octal string `toml:"octal,omitempty" yaml:"octal,omitempty" json:"octal,omitempty"`

	IsReadable       *bool `toml:"is_readable,omitempty" yaml:"is-readable,omitempty" json:"is_readable,omitempty"`
	IsWritable       *bool `toml:"is_writable,omitempty" yaml:"is-writable,omitempty" json:"is_writable,omitempty"`
	IsExecutable     *bool `toml:"is_executable,omitempty" yaml:"is-executable,omitempty" json:"is_executable,omitempty"`
	OthersCanRead    *bool `toml:"others_can_read,omitempty" yaml:"others-can-read,omitempty" json:"others_can_read,omitempty"`
	OthersCanWrite   *bool `toml:"others_can_write,omitempty" yaml:"others-can-write,omitempty" json:"others_can_write,omitempty"`
	OthersCanExecute *bool `toml:"others_can_execute,omitempty" yaml:"others-can-execute,omitempty" json:"others_can_execute,omitempty"`
}

// IsZero reports whether p specifies nothing at all.
func (p *PermSpec) IsZero() bool {
	return p == nil || (*p == PermSpec{})
}

// Mode lowers p to a 9-bit permission mode. On non-POSIX hosts only the
// "writable by owner" bit is honored.
func (p *PermSpec) Mode(posix bool) os.FileMode {
	if p.IsZero() {
		return 0
	}
	if p.Octal != "" {
		var m uint32
		for _, c := range p.Octal {
			if c < '0' || c > '7' {
				continue
			}
			m = m*8 + uint32(c-'0')
		}
		mode := os.FileMode(m) & 0777
		if !posix {
			return ownerWriteOnly(mode)
		}
		return mode
	}

	var mode os.FileMode
	if boolVal(p.IsReadable, true) {
		mode |= 0400
	}
	if boolVal(p.IsWritable, true) {
		mode |= 0200
	}
	if boolVal(p.IsExecutable, false) {
		mode |= 0100
	}
	if boolVal(p.OthersCanRead, false) {
		mode |= 0044
	}
	if boolVal(p.OthersCanWrite, false) {
		mode |= 0022
	}
	if boolVal(p.OthersCanExecute, false) {
		mode |= 0011
	}
	if !posix {
		return ownerWriteOnly(mode)
	}
	return mode
}

func ownerWriteOnly(mode os.FileMode) os.FileMode {
	if mode&0200 != 0 {
		return 0200
	}
	return 0
}

func boolVal(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

// Copyright (C) 2026 The Hoard Authors. All Rights Reserved.

// Package copyengine performs the actual backup or restore file copy. Every
// file write goes through the same atomic temp+rename pattern, whatever its
// size; directories are created in place. Each written path gets a final
// permission-setting step.
package copyengine

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/shadow53/hoard/herr"
	"github.com/shadow53/hoard/walker"
)

// Direction selects which root is the read side and which is the write
// side.
type Direction int

const (
	Backup Direction = iota
	Restore
)

// HoardOwnerOnly is the mode files are written with in the hoard on
// backup, regardless of pile permission configuration.
const HoardOwnerOnly os.FileMode = 0600

// HoardDirOwnerOnly is the directory-mode analogue of HoardOwnerOnly.
const HoardDirOwnerOnly os.FileMode = 0700

// PermissionPolicy supplies the permission bits to apply to a written
// file or directory. For a backup, the engine always uses the
// owner-only modes above regardless of what this returns; for a
// restore, FileMode/DirMode are consulted.
type PermissionPolicy struct {
	FileMode os.FileMode
	DirMode  os.FileMode
}

// Plan is one file-copy instruction: read from Source, write to Dest,
// using Item's kind/size/mode as hints.
type Plan struct {
	Item walker.Item
	// Source is the absolute path to read from.
	Source string
	// Dest is the absolute path to write to.
	Dest string
}

// BuildPlans pairs each walked item (already rooted at the read side) with
// its destination under dstRoot. Source root and destination root are
// swapped by direction: callers Walk the read side and pass its root as
// dstRoot's counterpart when building the reverse plan for the next run.
func BuildPlans(items []walker.Item, dstRoot string) []Plan {
	plans := make([]Plan, len(items))
	for i, it := range items {
		dest := dstRoot
		if it.RelPath != "" {
			dest = filepath.Join(dstRoot, filepath.FromSlash(it.RelPath))
		}
		plans[i] = Plan{Item: it, Source: it.LocalPath, Dest: dest}
	}
	return plans
}

// Run executes plans in order, stopping at the first error: any
// single-file error aborts the pile and the command, and partial writes
// leave the destination consistent. Directories are created (and have
// their permissions set) before the files beneath them are written, which
// Walk's depth-first order already guarantees.
func Run(ctx context.Context, plans []Plan, direction Direction, policy PermissionPolicy) error {
	for _, p := range plans {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch p.Item.Kind {
		case walker.Dir:
			if err := writeDir(p.Dest, dirMode(direction, policy)); err != nil {
				return err
			}
		case walker.File, walker.Symlink:
			if err := writeFile(p.Source, p.Dest, fileMode(direction, policy)); err != nil {
				return err
			}
		}
	}
	return nil
}

func fileMode(direction Direction, policy PermissionPolicy) os.FileMode {
	if direction == Backup {
		return HoardOwnerOnly
	}
	if policy.FileMode == 0 {
		return 0644
	}
	return policy.FileMode
}

func dirMode(direction Direction, policy PermissionPolicy) os.FileMode {
	if direction == Backup {
		return HoardDirOwnerOnly
	}
	if policy.DirMode == 0 {
		return 0755
	}
	return policy.DirMode
}

func writeDir(path string, mode os.FileMode) error {
	if err := os.MkdirAll(path, mode); err != nil {
		return herr.Wrap(herr.IoFailure, err, "create directory").WithPath(path)
	}
	// Set permissions as the LAST operation: MkdirAll above may have left
	// an existing directory's mode untouched.
	if err := os.Chmod(path, mode); err != nil {
		return herr.Wrap(herr.IoFailure, err, "set directory permissions").WithPath(path)
	}
	return nil
}

// writeFile streams src to a temp file in dst's directory, then renames it
// into place atomically and chmods it last.
func writeFile(src, dst string, mode os.FileMode) error {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return herr.Wrap(herr.IoFailure, err, "create parent directory").WithPath(dir)
	}

	in, err := os.Open(src)
	if err != nil {
		return herr.Wrap(herr.IoFailure, err, "open source").WithPath(src)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(dir, ".hoard-tmp-*")
	if err != nil {
		return herr.Wrap(herr.IoFailure, err, "create temp file").WithPath(dir)
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return herr.Wrap(herr.IoFailure, err, "write temp file").WithPath(tmpPath)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return herr.Wrap(herr.IoFailure, err, "sync temp file").WithPath(tmpPath)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return herr.Wrap(herr.IoFailure, err, "close temp file").WithPath(tmpPath)
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		os.Remove(tmpPath)
		return herr.Wrap(herr.IoFailure, err, "rename into place").WithPath(dst)
	}
	if err := os.Chmod(dst, mode); err != nil {
		return herr.Wrap(herr.IoFailure, err, "set file permissions").WithPath(dst)
	}
	return nil
}

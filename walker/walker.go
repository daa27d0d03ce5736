// Copyright (C) 2026 The Hoard Authors. All Rights Reserved.

// Package walker implements the Path Tree Walker: it enumerates
// (local path, pile-relative path, kind, permissions) tuples for a pile,
// honoring ignore globs, grounded on the depth-first recursive scan shape
// of a filesystem synchronization scanner (symlinked directories are never
// recursed; file symlinks are read as their target content).
package walker

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/shadow53/hoard/herr"
)

// Kind classifies a walked entry.
type Kind int

const (
	File Kind = iota
	Dir
	Symlink
)

// Item is one file or directory enumerated by the walker.
type Item struct {
	// LocalPath is the absolute filesystem path on this host.
	LocalPath string
	// RelPath is the pile-relative path, using "/" separators, "" for the
	// anonymous root when the pile root is itself a file.
	RelPath string
	Kind    Kind
	Mode    os.FileMode
	Size    int64
}

// Walk enumerates root (file or directory) honoring ignore. The emitted
// sequence is depth-first and lexicographically stable within each
// directory.
func Walk(root string, ignore *Matcher) ([]Item, error) {
	info, err := os.Lstat(root)
	if err != nil {
		return nil, herr.Wrap(herr.IoFailure, err, "stat pile root").WithPath(root)
	}

	if !info.IsDir() {
		// The anonymous root case: root names a single file (or a symlink to
		// one); yield exactly one entry with RelPath "".
		return []Item{itemFor(root, "", info)}, nil
	}

	var items []Item
	if err := walkDir(root, "", ignore, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func walkDir(localDir, relDir string, ignore *Matcher, items *[]Item) error {
	entries, err := os.ReadDir(localDir)
	if err != nil {
		return herr.Wrap(herr.IoFailure, err, "read directory").WithPath(localDir)
	}

	names := make([]string, len(entries))
	byName := make(map[string]os.DirEntry, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
		byName[e.Name()] = e
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	for _, name := range names {
		entry := byName[name]
		localPath := filepath.Join(localDir, name)
		relPath := name
		if relDir != "" {
			relPath = relDir + "/" + name
		}

		if ignore != nil && ignore.Match(relPath) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return herr.Wrap(herr.IoFailure, err, "stat entry").WithPath(localPath)
		}

		if info.Mode()&os.ModeSymlink != 0 {
			// A symlinked directory is never recursed. A symlinked file is
			// followed for content but not for directory recursion.
			target, err := os.Stat(localPath)
			if err != nil {
				return herr.Wrap(herr.IoFailure, err, "resolve symlink").WithPath(localPath)
			}
			if target.IsDir() {
				continue // directory symlinks are skipped entirely
			}
			*items = append(*items, Item{
				LocalPath: localPath,
				RelPath:   relPath,
				Kind:      Symlink,
				Mode:      target.Mode().Perm(),
				Size:      target.Size(),
			})
			continue
		}

		if info.IsDir() {
			*items = append(*items, Item{
				LocalPath: localPath,
				RelPath:   relPath,
				Kind:      Dir,
				Mode:      info.Mode().Perm(),
			})
			if err := walkDir(localPath, relPath, ignore, items); err != nil {
				return err
			}
			continue
		}

		*items = append(*items, itemFor(localPath, relPath, info))
	}
	return nil
}

func itemFor(localPath, relPath string, info os.FileInfo) Item {
	return Item{
		LocalPath: localPath,
		RelPath:   relPath,
		Kind:      File,
		Mode:      info.Mode().Perm(),
		Size:      info.Size(),
	}
}

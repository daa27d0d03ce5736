// Copyright (C) 2026 The Hoard Authors. All Rights Reserved.

//go:build windows

package platform

import (
	"os"

	"github.com/shadow53/hoard/herr"
)

// Lock is a held process-level advisory lock. On Windows, exclusive
// O_CREATE|O_EXCL file creation stands in for flock: a stale lock file
// left behind by a killed process must be removed by hand, the same
// caveat as an un-flocked advisory lock on any platform.
type Lock struct {
	path string
	f    *os.File
}

// AcquireLock creates path exclusively; if it already exists, another
// invocation holds the lock.
func AcquireLock(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
	if err != nil {
		if os.IsExist(err) {
			return nil, herr.New(herr.LockHeld, "another hoard invocation holds the lock").WithPath(path)
		}
		return nil, herr.Wrap(herr.IoFailure, err, "open lock file").WithPath(path)
	}
	return &Lock{path: path, f: f}, nil
}

// Release closes and removes the lock file.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	if err := l.f.Close(); err != nil {
		return herr.Wrap(herr.IoFailure, err, "close lock file")
	}
	return os.Remove(l.path)
}

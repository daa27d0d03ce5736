// Copyright (C) 2026 The Hoard Authors. All Rights Reserved.

//go:build !windows

package platform

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/shadow53/hoard/herr"
)

// Lock is a held process-level advisory lock: a lock file in the data
// dir that serializes concurrent invocations on the same host, failing
// fast on contention rather than blocking.
type Lock struct {
	f *os.File
}

// AcquireLock opens (creating if necessary) the lock file at path and
// takes a non-blocking exclusive flock on it. Contention returns an
// herr.LockHeld error immediately rather than blocking.
func AcquireLock(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, herr.Wrap(herr.IoFailure, err, "open lock file").WithPath(path)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, herr.New(herr.LockHeld, "another hoard invocation holds the lock").WithPath(path)
		}
		return nil, herr.Wrap(herr.IoFailure, err, "acquire lock").WithPath(path)
	}
	return &Lock{f: f}, nil
}

// Release drops the lock and closes the underlying file.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	if err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN); err != nil {
		l.f.Close()
		return herr.Wrap(herr.IoFailure, err, "release lock")
	}
	return l.f.Close()
}

// Copyright (C) 2026 The Hoard Authors. All Rights Reserved.

// Package platform resolves the per-OS config and data directories,
// persists a stable per-host UUID, and provides a process-level advisory
// lock file. Directory resolution is a manual per-OS switch rather than
// os.UserConfigDir, since macOS and Windows each need a vendor-qualified
// subpath os.UserConfigDir alone doesn't produce. The host UUID is
// generated once with uuid.New and read back from disk on every
// subsequent run.
package platform

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/creachadair/staticfile"
	"github.com/google/uuid"

	"github.com/shadow53/hoard/herr"
)

// Dirs holds the resolved config and data directories for this host.
type Dirs struct {
	ConfigDir string
	DataDir   string
}

// Resolve computes Dirs for the current OS: on Unix, $XDG_CONFIG_HOME/hoard
// and $XDG_DATA_HOME/hoard (falling back to ~/.config and ~/.local/share
// when the XDG vars are unset, per the XDG base-directory spec); on
// macOS, a single Application Support directory serves both roles; on
// Windows, %APPDATA%\shadow53\hoard.
func Resolve(getenv func(string) string, homeDir string) (Dirs, error) {
	switch runtime.GOOS {
	case "windows":
		return resolveWindows(getenv)
	case "darwin":
		return resolveDarwin(homeDir), nil
	default:
		return resolveUnix(getenv, homeDir)
	}
}

func resolveWindows(getenv func(string) string) (Dirs, error) {
	appData := getenv("APPDATA")
	if appData == "" {
		return Dirs{}, herr.New(herr.IoFailure, "%%APPDATA%% is not set")
	}
	root := filepath.Join(appData, "shadow53", "hoard")
	return Dirs{ConfigDir: root, DataDir: root}, nil
}

func resolveDarwin(homeDir string) Dirs {
	root := filepath.Join(homeDir, "Library", "Application Support", "com.shadow53.hoard")
	return Dirs{ConfigDir: root, DataDir: root}
}

func resolveUnix(getenv func(string) string, homeDir string) (Dirs, error) {
	configHome := getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		configHome = filepath.Join(homeDir, ".config")
	}
	dataHome := getenv("XDG_DATA_HOME")
	if dataHome == "" {
		dataHome = filepath.Join(homeDir, ".local", "share")
	}
	return Dirs{
		ConfigDir: filepath.Join(configHome, "hoard"),
		DataDir:   filepath.Join(dataHome, "hoard"),
	}, nil
}

// DefaultDirs resolves Dirs against the live process environment and the
// current user's home directory.
func DefaultDirs() (Dirs, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Dirs{}, herr.Wrap(herr.IoFailure, err, "resolve home directory")
	}
	return Resolve(os.Getenv, home)
}

// HistoryDir is the operation-log root under a data dir.
func (d Dirs) HistoryDir() string {
	return filepath.Join(d.DataDir, "history")
}

// HoardsDir is the backup-tree root under a data dir.
func (d Dirs) HoardsDir() string {
	return filepath.Join(d.DataDir, "hoards")
}

// HostID loads the persisted host UUID from configDir, generating and
// saving a new one on first run.
func HostID(configDir string) (string, error) {
	path := filepath.Join(configDir, "uuid")

	f, err := staticfile.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return generateAndSaveHostID(configDir, path)
		}
		return "", herr.Wrap(herr.IoFailure, err, "open host uuid file").WithPath(path)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", herr.Wrap(herr.IoFailure, err, "read host uuid file").WithPath(path)
	}
	return strings.TrimSpace(string(data)), nil
}

func generateAndSaveHostID(configDir, path string) (string, error) {
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", herr.Wrap(herr.IoFailure, err, "create config directory").WithPath(configDir)
	}
	id := uuid.New().String()
	if err := os.WriteFile(path, []byte(id+"\n"), 0600); err != nil {
		return "", herr.Wrap(herr.IoFailure, err, "write host uuid").WithPath(path)
	}
	return id, nil
}

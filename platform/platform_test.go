// Copyright (C) 2026 The Hoard Authors. All Rights Reserved.

package platform

import (
	"path/filepath"
	"testing"
)

func TestResolveUnixUsesXDGVars(t *testing.T) {
	env := map[string]string{
		"XDG_CONFIG_HOME": "/xdg/config",
		"XDG_DATA_HOME":   "/xdg/data",
	}
	dirs, err := resolveUnix(func(k string) string { return env[k] }, "/home/u")
	if err != nil {
		t.Fatalf("resolveUnix: %v", err)
	}
	if dirs.ConfigDir != filepath.Join("/xdg/config", "hoard") {
		t.Errorf("ConfigDir = %q", dirs.ConfigDir)
	}
	if dirs.DataDir != filepath.Join("/xdg/data", "hoard") {
		t.Errorf("DataDir = %q", dirs.DataDir)
	}
}

func TestResolveUnixFallsBackWithoutXDGVars(t *testing.T) {
	dirs, err := resolveUnix(func(string) string { return "" }, "/home/u")
	if err != nil {
		t.Fatalf("resolveUnix: %v", err)
	}
	if dirs.ConfigDir != filepath.Join("/home/u", ".config", "hoard") {
		t.Errorf("ConfigDir = %q", dirs.ConfigDir)
	}
	if dirs.DataDir != filepath.Join("/home/u", ".local", "share", "hoard") {
		t.Errorf("DataDir = %q", dirs.DataDir)
	}
}

func TestHostIDPersistsAcrossCalls(t *testing.T) {
	dir := t.TempDir()
	first, err := HostID(dir)
	if err != nil {
		t.Fatalf("HostID (first): %v", err)
	}
	if first == "" {
		t.Fatalf("expected a non-empty host id")
	}
	second, err := HostID(dir)
	if err != nil {
		t.Fatalf("HostID (second): %v", err)
	}
	if first != second {
		t.Errorf("HostID changed across calls: %q != %q", first, second)
	}
}

func TestHistoryAndHoardsDirLayout(t *testing.T) {
	dirs := Dirs{DataDir: "/data"}
	if dirs.HistoryDir() != filepath.Join("/data", "history") {
		t.Errorf("HistoryDir = %q", dirs.HistoryDir())
	}
	if dirs.HoardsDir() != filepath.Join("/data", "hoards") {
		t.Errorf("HoardsDir = %q", dirs.HoardsDir())
	}
}

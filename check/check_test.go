// Copyright (C) 2026 The Hoard Authors. All Rights Reserved.

package check

import (
	"context"
	"testing"
	"time"

	"github.com/shadow53/hoard/hasher"
	"github.com/shadow53/hoard/herr"
	"github.com/shadow53/hoard/oplog"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse time %q: %v", s, err)
	}
	return ts
}

func writeEntry(t *testing.T, dir string, e *oplog.Entry) {
	t.Helper()
	if _, err := oplog.Write(dir, e); err != nil {
		t.Fatalf("Write: %v", err)
	}
}

func TestRunCleanWhenNoHistory(t *testing.T) {
	dir := t.TempDir()
	res, err := Run(context.Background(), dir, "dotfiles", "local", oplog.Backup, []PileState{
		{PileName: "bashrc", ChosenPath: "/home/u/.bashrc"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Verdict != Clean {
		t.Errorf("Verdict = %v, want Clean", res.Verdict)
	}
}

func TestRunDetectsLastPathsMismatch(t *testing.T) {
	dir := t.TempDir()
	writeEntry(t, dir, &oplog.Entry{
		Timestamp: mustTime(t, "2020-01-01T00:00:00Z"),
		HostID:    "local",
		HoardName: "dotfiles",
		Direction: oplog.Backup,
		PerPile: map[string]oplog.PileRecord{
			"bashrc": {ChosenPath: "/home/u/.bashrc"},
		},
	})

	res, err := Run(context.Background(), dir, "dotfiles", "local", oplog.Backup, []PileState{
		{PileName: "bashrc", ChosenPath: "/home/other/.bashrc"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Verdict != ModifiedLocally {
		t.Errorf("Verdict = %v, want ModifiedLocally", res.Verdict)
	}
	if len(res.Findings) != 1 || res.Findings[0].Check != "last-paths" {
		t.Fatalf("Findings = %+v", res.Findings)
	}

	if err := Enforce(res, false); herr.KindOf(err) != herr.LastPathsMismatch {
		t.Errorf("Enforce kind = %v, want LastPathsMismatch", herr.KindOf(err))
	}
	if err := Enforce(res, true); err != nil {
		t.Errorf("Enforce with force should not error, got %v", err)
	}
}

func TestRunDetectsRemoteOperationNewerTimestamp(t *testing.T) {
	dir := t.TempDir()
	writeEntry(t, dir, &oplog.Entry{
		Timestamp: mustTime(t, "2020-01-01T00:00:00Z"),
		HostID:    "local", HoardName: "dotfiles", Direction: oplog.Backup,
	})
	writeEntry(t, dir, &oplog.Entry{
		Timestamp: mustTime(t, "2020-01-02T00:00:00Z"),
		HostID:    "remote", HoardName: "dotfiles", Direction: oplog.Backup,
	})

	res, err := Run(context.Background(), dir, "dotfiles", "local", oplog.Backup, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Verdict != ModifiedRemotely {
		t.Errorf("Verdict = %v, want ModifiedRemotely", res.Verdict)
	}
}

func TestRunDetectsRemoteOperationChecksumDisagreement(t *testing.T) {
	dir := t.TempDir()
	sumA := hasher.Checksum{Algorithm: hasher.SHA256, Digest: []byte{1}}
	sumB := hasher.Checksum{Algorithm: hasher.SHA256, Digest: []byte{2}}

	writeEntry(t, dir, &oplog.Entry{
		Timestamp: mustTime(t, "2020-01-02T00:00:00Z"),
		HostID:    "local", HoardName: "dotfiles", Direction: oplog.Backup,
		PerPile: map[string]oplog.PileRecord{
			"bashrc": {Paths: map[string]oplog.PathRecord{"": {NewChecksum: sumA}}},
		},
	})
	writeEntry(t, dir, &oplog.Entry{
		Timestamp: mustTime(t, "2020-01-01T00:00:00Z"),
		HostID:    "remote", HoardName: "dotfiles", Direction: oplog.Backup,
		PerPile: map[string]oplog.PileRecord{
			"bashrc": {Paths: map[string]oplog.PathRecord{"": {NewChecksum: sumB}}},
		},
	})

	res, err := Run(context.Background(), dir, "dotfiles", "local", oplog.Backup, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Verdict != ModifiedRemotely {
		t.Errorf("Verdict = %v, want ModifiedRemotely", res.Verdict)
	}
}

func TestRunDetectsUnexpectedChange(t *testing.T) {
	dir := t.TempDir()
	orig := hasher.Checksum{Algorithm: hasher.SHA256, Digest: []byte{1, 2, 3}}
	changed := hasher.Checksum{Algorithm: hasher.SHA256, Digest: []byte{9, 9, 9}}

	writeEntry(t, dir, &oplog.Entry{
		Timestamp: mustTime(t, "2020-01-01T00:00:00Z"),
		HostID:    "local", HoardName: "dotfiles", Direction: oplog.Backup,
		PerPile: map[string]oplog.PileRecord{
			"bashrc": {
				ChosenPath: "/home/u/.bashrc",
				Paths:      map[string]oplog.PathRecord{"": {NewChecksum: orig, Action: oplog.Create}},
			},
		},
	})

	res, err := Run(context.Background(), dir, "dotfiles", "local", oplog.Backup, []PileState{
		{
			PileName:   "bashrc",
			ChosenPath: "/home/u/.bashrc",
			Checksums:  map[string]hasher.Checksum{"": changed},
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Verdict != UnexpectedChanges {
		t.Errorf("Verdict = %v, want UnexpectedChanges", res.Verdict)
	}
	if err := Enforce(res, false); herr.KindOf(err) != herr.UnexpectedChange {
		t.Errorf("Enforce kind = %v, want UnexpectedChange", herr.KindOf(err))
	}
}

func TestRunIgnoresDeletedPathsForUnexpectedChange(t *testing.T) {
	dir := t.TempDir()
	writeEntry(t, dir, &oplog.Entry{
		Timestamp: mustTime(t, "2020-01-01T00:00:00Z"),
		HostID:    "local", HoardName: "dotfiles", Direction: oplog.Backup,
		PerPile: map[string]oplog.PileRecord{
			"bashrc": {
				ChosenPath: "/home/u/.bashrc",
				Paths:      map[string]oplog.PathRecord{"gone": {Action: oplog.Delete}},
			},
		},
	})

	res, err := Run(context.Background(), dir, "dotfiles", "local", oplog.Backup, []PileState{
		{PileName: "bashrc", ChosenPath: "/home/u/.bashrc"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Verdict != Clean {
		t.Errorf("Verdict = %v, want Clean (deleted path should not trigger unexpected-change)", res.Verdict)
	}
}

// Copyright (C) 2026 The Hoard Authors. All Rights Reserved.

// Package check implements the pre-flight safety checks that run before
// any mutating backup or restore: last-paths, remote-operation, and
// unexpected-change. All three run to completion and any failure aborts the
// command unless overridden with --force.
package check

import (
	"context"

	"github.com/shadow53/hoard/hasher"
	"github.com/shadow53/hoard/herr"
	"github.com/shadow53/hoard/oplog"
)

// Verdict classifies the outcome of running the checks against a hoard,
// for the non-mutating `status` command.
type Verdict string

const (
	Clean             Verdict = "clean"
	ModifiedLocally   Verdict = "modified locally"
	ModifiedRemotely  Verdict = "modified remotely"
	MixedChanges      Verdict = "mixed changes"
	UnexpectedChanges Verdict = "unexpected changes"
)

// Finding is one per-pile-relative-path disagreement surfaced by a check,
// for `diff -v`.
type Finding struct {
	Pile     string
	RelPath  string
	Check    string // "last-paths", "remote-operation", "unexpected-change"
	Detail   string
	Expected hasher.Checksum
	Actual   hasher.Checksum
}

// PileState is what the orchestrator knows about one pile's live state,
// the input to Run.
type PileState struct {
	PileName   string
	ChosenPath string
	// Checksums maps pile-relative path to its freshly computed checksum
	// for the side being checked (the local file for backup, the hoard
	// file for restore).
	Checksums map[string]hasher.Checksum
}

// Result is the full outcome of a Run: a verdict plus the findings that
// produced it.
type Result struct {
	Verdict  Verdict
	Findings []Finding
}

// Run executes all three checks for hoardName against historyRoot, given
// the live per-pile state computed by the caller (walker + hasher output).
// It does not mutate anything. The unexpected-change check compares each
// pile's Checksums against the new checksums recorded by the last local
// operation; which side of the copy those checksums were taken from is the
// caller's choice, and direction does not alter the comparison.
func Run(ctx context.Context, historyRoot, hoardName, hostID string, direction oplog.Direction, piles []PileState) (*Result, error) {
	listing, err := oplog.List(historyRoot, hoardName)
	if err != nil {
		return nil, err
	}

	var findings []Finding

	lastLocal, haveLocal := oplog.LatestLocal(listing, hostID)
	lastRemote, haveRemote := oplog.LatestRemote(listing, hostID)

	// 1. Last-paths.
	if haveLocal {
		for _, p := range piles {
			rec, ok := lastLocal.PerPile[p.PileName]
			if !ok {
				continue
			}
			if rec.ChosenPath != "" && rec.ChosenPath != p.ChosenPath {
				findings = append(findings, Finding{
					Pile:   p.PileName,
					Check:  "last-paths",
					Detail: "resolved path changed from " + rec.ChosenPath + " to " + p.ChosenPath,
				})
			}
		}
	}

	// 2. Remote-operation.
	if haveRemote && haveLocal {
		if lastRemote.Timestamp.After(lastLocal.Timestamp) {
			findings = append(findings, Finding{
				Check:  "remote-operation",
				Detail: "a newer remote operation exists for this hoard",
			})
		} else {
			for pileName, remoteRec := range lastRemote.PerPile {
				localRec, ok := lastLocal.PerPile[pileName]
				if !ok {
					continue
				}
				for rel, remotePath := range remoteRec.Paths {
					localPath, ok := localRec.Paths[rel]
					if !ok {
						continue
					}
					if !remotePath.NewChecksum.Equal(localPath.NewChecksum) {
						findings = append(findings, Finding{
							Pile:     pileName,
							RelPath:  rel,
							Check:    "remote-operation",
							Detail:   "remote and local final checksums disagree",
							Expected: localPath.NewChecksum,
							Actual:   remotePath.NewChecksum,
						})
					}
				}
			}
		}
	}

	// 3. Unexpected-change.
	if haveLocal {
		for _, p := range piles {
			rec, ok := lastLocal.PerPile[p.PileName]
			if !ok {
				continue
			}
			for rel, want := range rec.Paths {
				if want.Action == oplog.Delete {
					continue
				}
				got, present := p.Checksums[rel]
				if !present {
					continue
				}
				if !got.Equal(want.NewChecksum) {
					findings = append(findings, Finding{
						Pile:     p.PileName,
						RelPath:  rel,
						Check:    "unexpected-change",
						Detail:   "file was modified outside of hoard",
						Expected: want.NewChecksum,
						Actual:   got,
					})
				}
			}
		}
	}

	return &Result{Verdict: classify(findings), Findings: findings}, nil
}

func classify(findings []Finding) Verdict {
	if len(findings) == 0 {
		return Clean
	}
	var local, remote, unexpected bool
	for _, f := range findings {
		switch f.Check {
		case "last-paths":
			local = true
		case "remote-operation":
			remote = true
		case "unexpected-change":
			unexpected = true
		}
	}
	switch {
	case unexpected:
		return UnexpectedChanges
	case local && remote:
		return MixedChanges
	case remote:
		return ModifiedRemotely
	case local:
		return ModifiedLocally
	default:
		return MixedChanges
	}
}

// Enforce turns a Result into an error unless force is set or the result
// is Clean, choosing the herr.Kind that matches the first offending check.
func Enforce(result *Result, force bool) error {
	if force || result.Verdict == Clean {
		return nil
	}
	first := result.Findings[0]
	switch first.Check {
	case "last-paths":
		return herr.New(herr.LastPathsMismatch, "%s", first.Detail).WithPile(first.Pile)
	case "remote-operation":
		return herr.New(herr.RemoteOperation, "%s", first.Detail).WithPile(first.Pile)
	default:
		return herr.New(herr.UnexpectedChange, "%s", first.Detail).WithPile(first.Pile)
	}
}

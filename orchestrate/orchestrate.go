// Copyright (C) 2026 The Hoard Authors. All Rights Reserved.

// Package orchestrate wires the Env Evaluator, Condition Resolver, Path
// Tree Walker, Hasher, Checker, Copy Engine, and Operation Log into a
// single command state machine: `Loaded → EnvResolved → PilesResolved →
// ChecksPassed → Executing → Journaled → Done`. Each stage is a named
// state so a failure at any point reports exactly which stage it
// short-circuited from.
package orchestrate

import (
	"context"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shadow53/hoard/check"
	"github.com/shadow53/hoard/config"
	"github.com/shadow53/hoard/copyengine"
	"github.com/shadow53/hoard/envmatch"
	"github.com/shadow53/hoard/hasher"
	"github.com/shadow53/hoard/herr"
	"github.com/shadow53/hoard/oplog"
	"github.com/shadow53/hoard/platform"
	"github.com/shadow53/hoard/resolve"
	"github.com/shadow53/hoard/walker"
)

// State names a step of the command state machine.
type State int

const (
	Loaded State = iota
	EnvResolved
	PilesResolved
	ChecksPassed
	Executing
	Journaled
	Done
	Aborted
)

func (s State) String() string {
	switch s {
	case Loaded:
		return "Loaded"
	case EnvResolved:
		return "EnvResolved"
	case PilesResolved:
		return "PilesResolved"
	case ChecksPassed:
		return "ChecksPassed"
	case Executing:
		return "Executing"
	case Journaled:
		return "Journaled"
	case Done:
		return "Done"
	default:
		return "Aborted"
	}
}

// Orchestrator holds everything a run needs beyond the per-invocation
// arguments: the parsed config, resolved platform directories, and this
// host's identity.
type Orchestrator struct {
	Config *config.Config
	Dirs   platform.Dirs
	HostID string
	Host   envmatch.Host

	// Force skips check enforcement but still journals the fresh result.
	Force bool

	// Now supplies the current time for the journal entry; tests can
	// substitute a fixed clock.
	Now func() time.Time
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// PileRun is the fully resolved state of one pile within a run.
type PileRun struct {
	HoardName  string
	PileName   string
	Applicable bool
	ChosenPath string
	Config     config.PileConfig
	Items      []walker.Item
	Checksums  map[string]hasher.Checksum
}

// HoardRun is the outcome of running one hoard through the whole
// pipeline.
type HoardRun struct {
	HoardName string
	State     State
	Piles     []*PileRun
	Check     *check.Result
	Err       error
	LogPath   string
}

// Run executes direction (backup or restore) for the named hoards (all
// declared hoards if names is empty), driving each through the state
// machine independently; one hoard's failure does not abort the others,
// since each hoard owns its own journal subtree.
func (o *Orchestrator) Run(ctx context.Context, names []string, direction oplog.Direction) ([]*HoardRun, error) {
	if len(names) == 0 {
		names = o.Config.HoardNames()
	}
	active := envmatch.Evaluate(o.Config.Environments, o.Host)

	runs := make([]*HoardRun, 0, len(names))
	for _, name := range names {
		h := o.Config.FindHoard(name)
		if h == nil {
			runs = append(runs, &HoardRun{HoardName: name, State: Aborted,
				Err: herr.New(herr.ConfigSemantic, "no such hoard %q", name)})
			continue
		}
		runs = append(runs, o.runHoard(ctx, h, active, direction))
	}
	return runs, nil
}

// CheckOnly resolves piles and runs the Checker without copying any files
// or writing a journal entry, for the non-mutating `status`/`diff`
// commands.
func (o *Orchestrator) CheckOnly(ctx context.Context, names []string, direction oplog.Direction) ([]*HoardRun, error) {
	if len(names) == 0 {
		names = o.Config.HoardNames()
	}
	active := envmatch.Evaluate(o.Config.Environments, o.Host)

	runs := make([]*HoardRun, 0, len(names))
	for _, name := range names {
		h := o.Config.FindHoard(name)
		if h == nil {
			runs = append(runs, &HoardRun{HoardName: name, State: Aborted,
				Err: herr.New(herr.ConfigSemantic, "no such hoard %q", name)})
			continue
		}
		runs = append(runs, o.checkHoard(ctx, h, active, direction))
	}
	return runs, nil
}

func (o *Orchestrator) checkHoard(ctx context.Context, h *config.Hoard, active envmatch.Set, direction oplog.Direction) *HoardRun {
	run, applicable, ok := o.prepare(ctx, h, active, direction)
	if !ok {
		return run
	}
	result, err := o.runChecks(ctx, h.Name, applicable, direction)
	if err != nil {
		run.State, run.Err = Aborted, err
		return run
	}
	run.Check = result
	run.State = Done
	return run
}

func (o *Orchestrator) runHoard(ctx context.Context, h *config.Hoard, active envmatch.Set, direction oplog.Direction) *HoardRun {
	run, applicable, ok := o.prepare(ctx, h, active, direction)
	if !ok {
		return run
	}

	result, err := o.runChecks(ctx, h.Name, applicable, direction)
	if err != nil {
		run.State, run.Err = Aborted, err
		return run
	}
	run.Check = result
	if err := check.Enforce(result, o.Force); err != nil {
		run.State, run.Err = Aborted, err
		return run
	}
	run.State = ChecksPassed

	run.State = Executing
	{
		g, gctx := errgroup.WithContext(ctx)
		for _, pr := range applicable {
			pr := pr
			g.Go(func() error { return o.copyPile(gctx, h.Name, pr, direction) })
		}
		if err := g.Wait(); err != nil {
			run.State, run.Err = Aborted, err
			return run
		}
	}

	entry, err := o.buildEntry(h.Name, direction, applicable)
	if err != nil {
		run.State, run.Err = Aborted, err
		return run
	}
	path, err := oplog.Write(o.Dirs.HistoryDir(), entry)
	if err != nil {
		run.State, run.Err = Aborted, err
		return run
	}
	run.LogPath = path
	run.State = Journaled

	run.State = Done
	return run
}

// prepare resolves every pile of h and walks+hashes the applicable ones,
// the common prefix shared by a full run and a check-only run. ok is
// false when the hoard has already reached a terminal state (aborted, or
// no applicable piles) and the caller should return run as-is.
func (o *Orchestrator) prepare(ctx context.Context, h *config.Hoard, active envmatch.Set, direction oplog.Direction) (run *HoardRun, applicable []*PileRun, ok bool) {
	run = &HoardRun{HoardName: h.Name, State: Loaded}

	run.State = EnvResolved
	for _, pile := range h.Piles {
		pr, err := o.resolvePile(h.Name, pile, active)
		if err != nil {
			run.State, run.Err = Aborted, err
			return run, nil, false
		}
		run.Piles = append(run.Piles, pr)
	}
	run.State = PilesResolved

	applicable = applicablePiles(run.Piles)
	if len(applicable) == 0 {
		run.State = Done
		return run, nil, false
	}

	// Per-pile walk+hash runs concurrently across piles within this hoard;
	// the first error cancels the rest.
	g, gctx := errgroup.WithContext(ctx)
	for _, pr := range applicable {
		pr := pr
		g.Go(func() error { return o.walkAndHash(gctx, pr, direction) })
	}
	if err := g.Wait(); err != nil {
		run.State, run.Err = Aborted, err
		return run, nil, false
	}
	return run, applicable, true
}

func (o *Orchestrator) runChecks(ctx context.Context, hoardName string, applicable []*PileRun, direction oplog.Direction) (*check.Result, error) {
	states := make([]check.PileState, len(applicable))
	for i, pr := range applicable {
		states[i] = check.PileState{PileName: pr.PileName, ChosenPath: pr.ChosenPath, Checksums: pr.Checksums}
	}
	return check.Run(ctx, o.Dirs.HistoryDir(), hoardName, o.HostID, direction, states)
}

func applicablePiles(piles []*PileRun) []*PileRun {
	var out []*PileRun
	for _, p := range piles {
		if p.Applicable {
			out = append(out, p)
		}
	}
	return out
}

func (o *Orchestrator) resolvePile(hoardName string, pile *config.Pile, active envmatch.Set) (*PileRun, error) {
	cand, ok, err := resolve.Resolve(pile.Candidates, active, o.Config.ExclusivityGroups)
	if err != nil {
		return nil, attachPileContext(err, hoardName, pile.Name)
	}
	if !ok {
		return &PileRun{HoardName: hoardName, PileName: pile.Name, Applicable: false}, nil
	}
	return &PileRun{
		HoardName:  hoardName,
		PileName:   pile.Name,
		Applicable: true,
		ChosenPath: cand.Path,
		Config:     pile.Config,
	}, nil
}

// hoardPileDir is the on-disk hoard-tree location for one pile:
// "<data_dir>/hoards/<hoard_name>/<pile_name?>/<relative_path>".
func (o *Orchestrator) hoardPileDir(hoardName, pileName string) string {
	if pileName == "" {
		return filepath.Join(o.Dirs.HoardsDir(), hoardName)
	}
	return filepath.Join(o.Dirs.HoardsDir(), hoardName, pileName)
}

func (o *Orchestrator) readRoot(hoardName string, pr *PileRun, direction oplog.Direction) string {
	if direction == oplog.Backup {
		return pr.ChosenPath
	}
	return o.hoardPileDir(hoardName, pr.PileName)
}

func (o *Orchestrator) writeRoot(hoardName string, pr *PileRun, direction oplog.Direction) string {
	if direction == oplog.Backup {
		return o.hoardPileDir(hoardName, pr.PileName)
	}
	return pr.ChosenPath
}

func (o *Orchestrator) walkAndHash(ctx context.Context, pr *PileRun, direction oplog.Direction) error {
	matcher, err := walker.NewMatcher(pr.Config.Ignore)
	if err != nil {
		return err
	}
	root := o.readRoot(pr.HoardName, pr, direction)
	items, err := walker.Walk(root, matcher)
	if err != nil {
		return err
	}
	pr.Items = items

	var reqs []hasher.Request
	for _, it := range items {
		if it.Kind == walker.Dir {
			continue
		}
		reqs = append(reqs, hasher.Request{Key: it.RelPath, Path: it.LocalPath})
	}
	results, err := hasher.All(ctx, reqs, pr.Config.HashAlgorithm)
	if err != nil {
		return err
	}
	pr.Checksums = make(map[string]hasher.Checksum, len(results))
	for _, r := range results {
		pr.Checksums[r.Key] = r.Checksum
	}
	return nil
}

func (o *Orchestrator) copyPile(ctx context.Context, hoardName string, pr *PileRun, direction oplog.Direction) error {
	dst := o.writeRoot(hoardName, pr, direction)
	plans := copyengine.BuildPlans(pr.Items, dst)

	var dir copyengine.Direction
	var policy copyengine.PermissionPolicy
	if direction == oplog.Backup {
		dir = copyengine.Backup
	} else {
		dir = copyengine.Restore
		if pr.Config.FilePermissions != nil {
			policy.FileMode = pr.Config.FilePermissions.Mode(true)
		}
		if pr.Config.FolderPermissions != nil {
			policy.DirMode = pr.Config.FolderPermissions.Mode(true)
		}
	}
	return copyengine.Run(ctx, plans, dir, policy)
}

func (o *Orchestrator) buildEntry(hoardName string, direction oplog.Direction, piles []*PileRun) (*oplog.Entry, error) {
	historyRoot := o.Dirs.HistoryDir()
	listing, err := oplog.List(historyRoot, hoardName)
	if err != nil {
		return nil, err
	}
	lastLocal, haveLast := oplog.LatestLocal(listing, o.HostID)

	entry := &oplog.Entry{
		Timestamp: o.now().UTC(),
		HostID:    o.HostID,
		HoardName: hoardName,
		Direction: direction,
		PerPile:   make(map[string]oplog.PileRecord, len(piles)),
	}
	for _, pr := range piles {
		var priorRec oplog.PileRecord
		if haveLast {
			priorRec = lastLocal.PerPile[pr.PileName]
		}
		paths := make(map[string]oplog.PathRecord, len(pr.Checksums))
		for rel, sum := range pr.Checksums {
			prior := priorRec.Paths[rel]
			action := oplog.Create
			if !prior.NewChecksum.IsZero() {
				if prior.NewChecksum.Equal(sum) {
					action = oplog.Unchanged
				} else {
					action = oplog.Modify
				}
			}
			paths[rel] = oplog.PathRecord{PriorChecksum: prior.NewChecksum, NewChecksum: sum, Action: action}
		}
		for rel, prior := range priorRec.Paths {
			if _, stillPresent := pr.Checksums[rel]; stillPresent {
				continue
			}
			paths[rel] = oplog.PathRecord{PriorChecksum: prior.NewChecksum, Action: oplog.Delete}
		}
		entry.PerPile[pr.PileName] = oplog.PileRecord{ChosenPath: pr.ChosenPath, Paths: paths}
	}
	return entry, nil
}

func attachPileContext(err error, hoardName, pileName string) error {
	if e, ok := err.(*herr.Error); ok {
		return e.WithHoard(hoardName).WithPile(pileName)
	}
	return herr.Wrap(herr.Unknown, err, "resolve pile %q", pileName).WithHoard(hoardName).WithPile(pileName)
}

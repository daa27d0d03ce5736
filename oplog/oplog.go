// Copyright (C) 2026 The Hoard Authors. All Rights Reserved.

// Package oplog implements the append-only per-host, per-hoard journal of
// backup/restore operations: a directory of versioned journal entries,
// written atomically, with a polymorphic (v1, v2) reader and a v2-only
// writer.
package oplog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/creachadair/atomicfile"

	"github.com/shadow53/hoard/hasher"
	"github.com/shadow53/hoard/herr"
)

// Direction names which way a copy ran.
type Direction string

const (
	Backup  Direction = "backup"
	Restore Direction = "restore"
)

// Action classifies what happened to one pile-relative path in an
// operation, relative to the previous operation on this host.
type Action string

const (
	Create    Action = "create"
	Modify    Action = "modify"
	Delete    Action = "delete"
	Unchanged Action = "unchanged"
)

// PathRecord is the per-path-relative-path record inside a PileRecord.
type PathRecord struct {
	PriorChecksum hasher.Checksum `json:"priorChecksum,omitempty"`
	NewChecksum   hasher.Checksum `json:"newChecksum,omitempty"`
	Action        Action          `json:"action"`
}

// PileRecord is the per-pile record inside an Entry.
type PileRecord struct {
	ChosenPath string                `json:"chosenPath"`
	Paths      map[string]PathRecord `json:"paths"`
}

// Entry is one operation-log record: a single (host, hoard, timestamp)
// journal entry.
type Entry struct {
	Version   int                   `json:"version"`
	Timestamp time.Time             `json:"timestamp"`
	HostID    string                `json:"hostId"`
	HoardName string                `json:"hoardName"`
	Direction Direction             `json:"direction"`
	PerPile   map[string]PileRecord `json:"perPile"`
}

const currentVersion = 2

// fileName returns the log file name for an entry with the given
// timestamp, using RFC3339.
func fileName(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339) + ".log"
}

// Dir returns the journal directory for (historyRoot, hostID, hoardName).
func Dir(historyRoot, hostID, hoardName string) string {
	return filepath.Join(historyRoot, hostID, hoardName)
}

// Write appends a new v2 entry to the journal, atomically (temp file +
// rename). It is an error for a file with the same name (i.e. the same
// truncated-to-second timestamp) to already exist,
// preserving the "no two log files for the same (host, hoard) share a
// timestamp" invariant; callers should bump the timestamp by a second and
// retry if that happens within the same process.
func Write(historyRoot string, e *Entry) (string, error) {
	e.Version = currentVersion
	dir := Dir(historyRoot, e.HostID, e.HoardName)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", herr.Wrap(herr.IoFailure, err, "create history directory").WithPath(dir)
	}
	path := filepath.Join(dir, fileName(e.Timestamp))
	if _, err := os.Stat(path); err == nil {
		return "", herr.New(herr.IoFailure, "operation log entry already exists").WithPath(path)
	}

	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return "", herr.Wrap(herr.IoFailure, err, "encode operation log entry")
	}
	if err := atomicfile.WriteData(path, data, 0600); err != nil {
		return "", herr.Wrap(herr.IoFailure, err, "write operation log entry").WithPath(path)
	}
	return path, nil
}

// Read loads and upgrades (if necessary) a single entry from path.
func Read(path string) (*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, herr.Wrap(herr.IoFailure, err, "read operation log entry").WithPath(path)
	}
	return decode(data, path)
}

// OnDiskVersion reports the schema version path is actually stored in,
// without upgrading it in memory the way Read/decode do. Callers that need
// to know whether Upgrade would actually rewrite a file (e.g. the
// `upgrade` command reporting how many entries it touched) should use
// this instead of the Version field of a decoded Entry, which Read always
// normalizes to currentVersion.
func OnDiskVersion(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, herr.Wrap(herr.IoFailure, err, "read operation log entry").WithPath(path)
	}
	var probe versionProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return 0, herr.Wrap(herr.IoFailure, err, "parse operation log entry").WithPath(path)
	}
	if probe.Version == 0 {
		return 1, nil
	}
	return probe.Version, nil
}

// versionProbe is used to sniff the schema version before fully decoding.
type versionProbe struct {
	Version int `json:"version"`
}

func decode(data []byte, path string) (*Entry, error) {
	var probe versionProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, herr.Wrap(herr.IoFailure, err, "parse operation log entry").WithPath(path)
	}
	switch probe.Version {
	case 0, 1:
		return decodeV1(data, path)
	case 2:
		var e Entry
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, herr.Wrap(herr.IoFailure, err, "parse v2 operation log entry").WithPath(path)
		}
		return &e, nil
	default:
		return nil, herr.New(herr.IoFailure, "unsupported operation log version %d", probe.Version).WithPath(path)
	}
}

// entryV1 is the legacy on-disk shape: checksums had no algorithm tag
// (always SHA-256) and were stored as bare hex strings.
type entryV1 struct {
	Timestamp time.Time               `json:"timestamp"`
	HostID    string                  `json:"hostId"`
	HoardName string                  `json:"hoardName"`
	Direction Direction               `json:"direction"`
	PerPile   map[string]pileRecordV1 `json:"perPile"`
}

type pileRecordV1 struct {
	ChosenPath string                  `json:"chosenPath"`
	Paths      map[string]pathRecordV1 `json:"paths"`
}

type pathRecordV1 struct {
	PriorChecksum string `json:"priorChecksum,omitempty"`
	NewChecksum   string `json:"newChecksum,omitempty"`
	Action        Action `json:"action"`
}

func decodeV1(data []byte, path string) (*Entry, error) {
	var v1 entryV1
	if err := json.Unmarshal(data, &v1); err != nil {
		return nil, herr.Wrap(herr.IoFailure, err, "parse v1 operation log entry").WithPath(path)
	}
	e := upgradeEntry(&v1)
	return e, nil
}

func upgradeEntry(v1 *entryV1) *Entry {
	e := &Entry{
		Version:   currentVersion,
		Timestamp: v1.Timestamp,
		HostID:    v1.HostID,
		HoardName: v1.HoardName,
		Direction: v1.Direction,
		PerPile:   make(map[string]PileRecord, len(v1.PerPile)),
	}
	for pile, pr := range v1.PerPile {
		np := PileRecord{ChosenPath: pr.ChosenPath, Paths: make(map[string]PathRecord, len(pr.Paths))}
		for rel, p := range pr.Paths {
			np.Paths[rel] = PathRecord{
				PriorChecksum: hexChecksum(p.PriorChecksum),
				NewChecksum:   hexChecksum(p.NewChecksum),
				Action:        p.Action,
			}
		}
		e.PerPile[pile] = np
	}
	return e
}

func hexChecksum(hex string) hasher.Checksum {
	if hex == "" {
		return hasher.Checksum{}
	}
	digest := make([]byte, len(hex)/2)
	for i := range digest {
		var b byte
		for _, c := range hex[i*2 : i*2+2] {
			b <<= 4
			switch {
			case c >= '0' && c <= '9':
				b |= byte(c - '0')
			case c >= 'a' && c <= 'f':
				b |= byte(c-'a') + 10
			}
		}
		digest[i] = b
	}
	return hasher.Checksum{Algorithm: hasher.SHA256, Digest: digest}
}

// Upgrade rewrites a v1 log file in place to v2, preserving its filename
// (and thus its timestamp).
func Upgrade(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return herr.Wrap(herr.IoFailure, err, "read operation log entry").WithPath(path)
	}
	var probe versionProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return herr.Wrap(herr.IoFailure, err, "parse operation log entry").WithPath(path)
	}
	if probe.Version >= 2 {
		return nil // already current
	}
	e, err := decodeV1(data, path)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return herr.Wrap(herr.IoFailure, err, "encode upgraded entry")
	}
	if err := atomicfile.WriteData(path, out, 0600); err != nil {
		return herr.Wrap(herr.IoFailure, err, "write upgraded entry").WithPath(path)
	}
	return nil
}

// Listing pairs a decoded journal entry with the file it was read from.
type Listing struct {
	Path  string
	Entry *Entry
}

// List enumerates every journal entry under historyRoot for the given
// hoard, across all hosts, sorted by timestamp.
func List(historyRoot, hoardName string) ([]Listing, error) {
	hostDirs, err := os.ReadDir(historyRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, herr.Wrap(herr.IoFailure, err, "read history root").WithPath(historyRoot)
	}

	var out []Listing
	for _, hd := range hostDirs {
		if !hd.IsDir() {
			continue
		}
		dir := filepath.Join(historyRoot, hd.Name(), hoardName)
		files, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, herr.Wrap(herr.IoFailure, err, "read journal directory").WithPath(dir)
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			path := filepath.Join(dir, f.Name())
			e, err := Read(path)
			if err != nil {
				return nil, err
			}
			out = append(out, Listing{Path: path, Entry: e})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Entry.Timestamp.Before(out[j].Entry.Timestamp)
	})
	return out, nil
}

// LatestLocal returns the most recent entry whose HostID matches hostID.
func LatestLocal(listing []Listing, hostID string) (*Entry, bool) {
	for i := len(listing) - 1; i >= 0; i-- {
		if listing[i].Entry.HostID == hostID {
			return listing[i].Entry, true
		}
	}
	return nil, false
}

// LatestRemote returns the most recent entry whose HostID differs from
// hostID.
func LatestRemote(listing []Listing, hostID string) (*Entry, bool) {
	for i := len(listing) - 1; i >= 0; i-- {
		if listing[i].Entry.HostID != hostID {
			return listing[i].Entry, true
		}
	}
	return nil, false
}

// Cleanup removes every journal file for hoardName except the latest
// local entry and, per other host, that host's latest remote entry.
func Cleanup(historyRoot, hoardName, hostID string) error {
	listing, err := List(historyRoot, hoardName)
	if err != nil {
		return err
	}
	keep := make(map[string]bool)
	if e, ok := LatestLocal(listing, hostID); ok {
		keep[keyOf(e)] = true
	}
	latestPerHost := make(map[string]*Entry)
	for _, l := range listing {
		if l.Entry.HostID == hostID {
			continue
		}
		cur, ok := latestPerHost[l.Entry.HostID]
		if !ok || l.Entry.Timestamp.After(cur.Timestamp) {
			latestPerHost[l.Entry.HostID] = l.Entry
		}
	}
	for _, e := range latestPerHost {
		keep[keyOf(e)] = true
	}
	for _, l := range listing {
		if keep[keyOf(l.Entry)] {
			continue
		}
		if err := os.Remove(l.Path); err != nil && !os.IsNotExist(err) {
			return herr.Wrap(herr.IoFailure, err, "remove stale journal entry").WithPath(l.Path)
		}
	}
	return nil
}

func keyOf(e *Entry) string {
	return e.HostID + "/" + e.Timestamp.UTC().Format(time.RFC3339)
}

// Copyright (C) 2026 The Hoard Authors. All Rights Reserved.

// Package hasher content-hashes files with bounded concurrency, streaming
// each file's content through a hash.Hash and running a bounded number of
// files concurrently rather than one goroutine per file.
package hasher

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/shadow53/hoard/herr"
)

// Algorithm names a supported hash algorithm.
type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	MD5    Algorithm = "md5" // legacy, kept for reading old hoards
)

func (a Algorithm) newHash() (hash.Hash, error) {
	switch a {
	case SHA256, "":
		return sha256.New(), nil
	case MD5:
		return md5.New(), nil
	default:
		return nil, herr.New(herr.ConfigSemantic, "unknown hash algorithm %q", a)
	}
}

// Checksum is an algorithm tag plus raw digest bytes.
type Checksum struct {
	Algorithm Algorithm
	Digest    []byte
}

// String renders the checksum as "algorithm:hex".
func (c Checksum) String() string {
	if c.Algorithm == "" {
		return ""
	}
	return string(c.Algorithm) + ":" + hex.EncodeToString(c.Digest)
}

// Equal reports whether c and other name the same algorithm and digest.
func (c Checksum) Equal(other Checksum) bool {
	if c.Algorithm != other.Algorithm || len(c.Digest) != len(other.Digest) {
		return false
	}
	for i := range c.Digest {
		if c.Digest[i] != other.Digest[i] {
			return false
		}
	}
	return true
}

// IsZero reports whether c carries no digest.
func (c Checksum) IsZero() bool { return len(c.Digest) == 0 }

// MarshalJSON renders the checksum as its "algorithm:hex" string form, so
// journal entries stay human-readable on disk.
func (c Checksum) MarshalJSON() ([]byte, error) {
	return []byte(`"` + c.String() + `"`), nil
}

// UnmarshalJSON parses the "algorithm:hex" string form written by
// MarshalJSON.
func (c *Checksum) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" {
		*c = Checksum{}
		return nil
	}
	i := strings.IndexByte(s, ':')
	if i < 0 {
		return fmt.Errorf("malformed checksum %q", s)
	}
	digest, err := hex.DecodeString(s[i+1:])
	if err != nil {
		return fmt.Errorf("malformed checksum %q: %w", s, err)
	}
	*c = Checksum{Algorithm: Algorithm(s[:i]), Digest: digest}
	return nil
}

// File hashes path with the given algorithm.
func File(path string, alg Algorithm) (Checksum, error) {
	h, err := alg.newHash()
	if err != nil {
		return Checksum{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return Checksum{}, herr.Wrap(herr.IoFailure, err, "open for hashing").WithPath(path)
	}
	defer f.Close()
	if _, err := io.Copy(h, f); err != nil {
		return Checksum{}, herr.Wrap(herr.IoFailure, err, "read for hashing").WithPath(path)
	}
	if alg == "" {
		alg = SHA256
	}
	return Checksum{Algorithm: alg, Digest: h.Sum(nil)}, nil
}

// Request names one path to hash, associated with a caller-defined key
// (typically its pile-relative path) that the result is returned under.
type Request struct {
	Key  string
	Path string
}

// Result pairs a Request's key with its checksum. All and AllWithLimit
// leave Err unset: a failed request makes them return that error instead.
type Result struct {
	Key      string
	Checksum Checksum
	Err      error
}

// maxConcurrency returns the default bound on in-flight hashes per pile:
// the number of logical CPUs.
func maxConcurrency() int64 {
	n := runtime.NumCPU()
	if n < 1 {
		n = 1
	}
	return int64(n)
}

// All hashes every request with bounded concurrency (default: NumCPU
// in-flight). The returned slice preserves the input order, independent of
// completion order, so overall yield order matches the walker's order.
func All(ctx context.Context, reqs []Request, alg Algorithm) ([]Result, error) {
	return AllWithLimit(ctx, reqs, alg, maxConcurrency())
}

// AllWithLimit is All with an explicit concurrency bound, for testing and
// for callers that want to share a budget across piles. The first
// per-request error cancels the remaining work and is returned: a single
// file error aborts the whole pile.
func AllWithLimit(ctx context.Context, reqs []Request, alg Algorithm, limit int64) ([]Result, error) {
	if limit < 1 {
		limit = 1
	}
	results := make([]Result, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(int(limit))
	for i, r := range reqs {
		i, r := i, r
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sum, err := File(r.Path, alg)
			if err != nil {
				return err
			}
			results[i] = Result{Key: r.Key, Checksum: sum}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// SortByKey returns a copy of results ordered by Key, for callers that want
// a deterministic journal ordering independent of request order.
func SortByKey(results []Result) []Result {
	out := append([]Result(nil), results...)
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

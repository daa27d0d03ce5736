// Copyright (C) 2026 The Hoard Authors. All Rights Reserved.

package hasher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
)

func TestFileSHA256(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(path, []byte("hello"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	sum, err := File(path, SHA256)
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	want := sha256.Sum256([]byte("hello"))
	if hex.EncodeToString(sum.Digest) != hex.EncodeToString(want[:]) {
		t.Errorf("digest mismatch")
	}
}

func TestAllWithLimitPreservesOrder(t *testing.T) {
	dir := t.TempDir()
	var reqs []Request
	for i := 0; i < 20; i++ {
		name := filepath.Join(dir, string(rune('a'+i)))
		if err := os.WriteFile(name, []byte{byte(i)}, 0600); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		reqs = append(reqs, Request{Key: string(rune('a' + i)), Path: name})
	}
	results, err := AllWithLimit(context.Background(), reqs, SHA256, 4)
	if err != nil {
		t.Fatalf("AllWithLimit: %v", err)
	}
	for i, r := range results {
		if r.Key != reqs[i].Key {
			t.Fatalf("result order mismatch at %d: got key %q, want %q", i, r.Key, reqs[i].Key)
		}
		if r.Checksum.IsZero() {
			t.Errorf("expected non-zero checksum for %q", r.Key)
		}
	}
}

func TestAllAbortsOnFirstError(t *testing.T) {
	reqs := []Request{{Key: "missing", Path: "/no/such/file"}}
	if _, err := AllWithLimit(context.Background(), reqs, SHA256, 2); err == nil {
		t.Errorf("expected an error for a missing file")
	}
}

func TestChecksumEqual(t *testing.T) {
	a := Checksum{Algorithm: SHA256, Digest: []byte{1, 2, 3}}
	b := Checksum{Algorithm: SHA256, Digest: []byte{1, 2, 3}}
	c := Checksum{Algorithm: SHA256, Digest: []byte{1, 2, 4}}
	if !a.Equal(b) {
		t.Errorf("expected equal checksums")
	}
	if a.Equal(c) {
		t.Errorf("expected different checksums")
	}
}

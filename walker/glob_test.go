// Copyright (C) 2026 The Hoard Authors. All Rights Reserved.

package walker

import "testing"

func TestMatcherDoubleStar(t *testing.T) {
	m, err := NewMatcher([]string{"**/*.backup"})
	if err != nil {
		t.Fatalf("NewMatcher failed: %v", err)
	}
	cases := map[string]bool{
		"config/c.backup":      true,
		"a/b/c/vimrc.backup":   true,
		"a.txt":                false,
		"config/b.vim":         false,
		"top.backup":           false, // no leading directory segment
	}
	for path, want := range cases {
		if got := m.Match(path); got != want {
			t.Errorf("Match(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestMatcherSingleStarDoesNotCrossSeparator(t *testing.T) {
	m, err := NewMatcher([]string{"*.txt"})
	if err != nil {
		t.Fatalf("NewMatcher failed: %v", err)
	}
	if !m.Match("a.txt") {
		t.Errorf("expected a.txt to match")
	}
	if m.Match("dir/a.txt") {
		t.Errorf("single * must not cross a path separator")
	}
}

func TestMatcherCharacterClass(t *testing.T) {
	m, err := NewMatcher([]string{"file[12].txt"})
	if err != nil {
		t.Fatalf("NewMatcher failed: %v", err)
	}
	if !m.Match("file1.txt") || !m.Match("file2.txt") {
		t.Errorf("expected file1.txt and file2.txt to match")
	}
	if m.Match("file3.txt") {
		t.Errorf("file3.txt should not match")
	}
}

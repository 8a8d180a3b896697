package main

import (
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"
)

func TestSplitPattern(t *testing.T) {
	// Compute a base directory.
	base := t.TempDir()

	// Define test cases.
	testCases := []struct {
		path            string
		expectedBase    string
		expectedPattern string
	}{
		{filepath.Join(base, "file"), filepath.Join(base, "file"), ""},
		{filepath.Join(base, "*.txt"), base, "*.txt"},
		{filepath.Join(base, "**", "*.go"), base, "**/*.go"},
		{filepath.Join(base, "a", "b?", "c"), filepath.Join(base, "a"), "b?/c"},
	}

	// Process test cases.
	for _, testCase := range testCases {
		directory, pattern := splitPattern(testCase.path)
		if directory != testCase.expectedBase || pattern != testCase.expectedPattern {
			t.Errorf("split mismatch for %s: (%s, %s) != (%s, %s)",
				testCase.path, directory, pattern, testCase.expectedBase, testCase.expectedPattern,
			)
		}
	}
}

func TestResolveTargets(t *testing.T) {
	// Create a small tree.
	base := t.TempDir()
	for _, name := range []string{"a.txt", "b.txt", "c.log", filepath.Join("sub", "d.txt")} {
		path := filepath.Join(base, name)
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			t.Fatal("unable to create directory:", err)
		} else if err := os.WriteFile(path, nil, 0600); err != nil {
			t.Fatal("unable to create file:", err)
		}
	}

	// Resolve a mixture of literal paths and patterns.
	targets, err := resolveTargets([]string{
		filepath.Join(base, "missing"),
		filepath.Join(base, "**", "*.txt"),
		filepath.Join(base, "a.txt"),
	})
	if err != nil {
		t.Fatal("unable to resolve targets:", err)
	}
	sort.Strings(targets)

	// Verify the results.
	expected := []string{
		filepath.Join(base, "a.txt"),
		filepath.Join(base, "b.txt"),
		filepath.Join(base, "missing"),
		filepath.Join(base, "sub", "d.txt"),
	}
	if !reflect.DeepEqual(targets, expected) {
		t.Error("target mismatch:", targets)
	}

	// Verify that patterns without matches are rejected.
	if _, err := resolveTargets([]string{filepath.Join(base, "*.md")}); err == nil {
		t.Error("pattern without matches accepted")
	}
}

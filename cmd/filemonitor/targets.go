package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
)

// globMetacharacters are the characters that mark a path component as a
// pattern.
const globMetacharacters = "*?[{"

// splitPattern splits an absolute path into the longest leading directory that
// contains no pattern components and the remaining slash-separated pattern. If
// the path contains no pattern components, the pattern is empty.
func splitPattern(path string) (string, string) {
	// Walk up the path until no pattern components remain.
	base := path
	var components []string
	for strings.ContainsAny(base, globMetacharacters) {
		parent := filepath.Dir(base)
		if parent == base {
			break
		}
		components = append([]string{filepath.Base(base)}, components...)
		base = parent
	}

	// Done.
	return base, strings.Join(components, "/")
}

// resolveTargets converts command line arguments to absolute file paths.
// Literal paths need not exist, but patterns are expanded against existing
// files and must match at least one.
func resolveTargets(arguments []string) ([]string, error) {
	var result []string
	seen := make(map[string]bool)
	for _, argument := range arguments {
		// Make the argument absolute.
		path, err := filepath.Abs(argument)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to resolve %q", argument)
		}

		// Expand patterns.
		matches := []string{path}
		if base, pattern := splitPattern(path); pattern != "" {
			expanded, err := doublestar.Glob(os.DirFS(base), pattern)
			if err != nil {
				return nil, errors.Wrapf(err, "unable to expand %q", argument)
			} else if len(expanded) == 0 {
				return nil, errors.Errorf("no files match %q", argument)
			}
			matches = matches[:0]
			for _, match := range expanded {
				matches = append(matches, filepath.Join(base, filepath.FromSlash(match)))
			}
		}

		// Record unique results.
		for _, match := range matches {
			if !seen[match] {
				seen[match] = true
				result = append(result, match)
			}
		}
	}

	// Success.
	return result, nil
}

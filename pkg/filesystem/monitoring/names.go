package monitoring

import (
	"os"
	"path/filepath"
	"unicode/utf8"
)

// isLeafName returns whether or not name is suitable as a watch name: a single
// valid UTF-8 path component with no parent, volume, or separator. Names that
// aren't valid UTF-8 can't survive the UTF-16 notification record encoding.
func isLeafName(name string) bool {
	// Reject empty names and relative directory references.
	if name == "" || name == "." || name == ".." {
		return false
	}

	// Reject names that aren't valid UTF-8.
	if !utf8.ValidString(name) {
		return false
	}

	// Reject volume names.
	if filepath.VolumeName(name) != "" {
		return false
	}

	// Reject any separators.
	for i := 0; i < len(name); i++ {
		if os.IsPathSeparator(name[i]) {
			return false
		}
	}

	// Success.
	return true
}

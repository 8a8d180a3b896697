//go:build !windows && !darwin

package monitoring

// namesEqual reports whether two directory entry names refer to the same
// entry. POSIX filesystems compare names by exact ordinal value.
func namesEqual(first, second string) bool {
	return len(first) == len(second) && first == second
}

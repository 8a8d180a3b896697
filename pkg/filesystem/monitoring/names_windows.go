package monitoring

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	// cstrEqual is the CompareStringOrdinal result indicating equality.
	cstrEqual = 2
)

// namesEqual reports whether two directory entry names refer to the same
// entry. Windows compares names with an ordinal, case-insensitive comparison
// using the operating system's own case mapping tables, so the comparison is
// delegated to CompareStringOrdinal rather than performed with Unicode case
// folding.
func namesEqual(first, second string) bool {
	// Convert the names to UTF-16. Names containing NUL can't exist on disk.
	firstUTF16, err := windows.UTF16FromString(first)
	if err != nil {
		return false
	}
	secondUTF16, err := windows.UTF16FromString(second)
	if err != nil {
		return false
	}

	// Trim the NUL terminators and compare lengths, which ordinal comparison
	// never reconciles.
	firstUTF16 = firstUTF16[:len(firstUTF16)-1]
	secondUTF16 = secondUTF16[:len(secondUTF16)-1]
	if len(firstUTF16) != len(secondUTF16) {
		return false
	} else if len(firstUTF16) == 0 {
		return true
	}

	// If the comparison function is unavailable, fall back to exact matching.
	if procCompareStringOrdinal.Find() != nil {
		return first == second
	}

	// Perform the comparison.
	result, _, _ := procCompareStringOrdinal.Call(
		uintptr(unsafe.Pointer(&firstUTF16[0])),
		uintptr(len(firstUTF16)),
		uintptr(unsafe.Pointer(&secondUTF16[0])),
		uintptr(len(secondUTF16)),
		1,
	)
	return result == cstrEqual
}

package monitoring

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// namesEqual reports whether two directory entry names refer to the same
// entry. The default APFS and HFS+ volume formats compare names without regard
// to case or Unicode normalization form, so both names are normalized to NFC
// and case folded before comparison. On case-sensitive volumes this may match
// names that refer to distinct entries, which only results in extra
// notifications.
func namesEqual(first, second string) bool {
	// Check for an exact match.
	if first == second {
		return true
	}

	// Compare the normalized and folded forms. Casers are stateful, so each
	// comparison uses its own.
	folder := cases.Fold()
	return folder.String(norm.NFC.String(first)) == folder.String(norm.NFC.String(second))
}

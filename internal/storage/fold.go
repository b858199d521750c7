package storage

import (
	"strings"

	"golang.org/x/text/cases"
)

// Turkish dotted and dotless i fold to a plain i, so "ŞİŞECAM" matches "şişecam".
var dotlessI = strings.NewReplacer("İ", "i", "ı", "i", "\u0307", "")

// foldName folds a company name for case-insensitive matching. Both drivers match aliases
// through it, so SQLite's ASCII-only LOWER() never decides a match.
func foldName(s string) string {
	return dotlessI.Replace(cases.Fold().String(s))
}

package fingerprint

import (
	"path"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizePath returns the logical form of a file path used as a
// fingerprint key: NFC normalized, slash separated and cleaned.
// Decomposed names (as returned by HFS+) map to the same key as composed ones.
func NormalizePath(p string) string {
	p = norm.NFC.String(p)
	p = strings.ReplaceAll(p, "\\", "/")
	if p == "" {
		return ""
	}
	return path.Clean(p)
}

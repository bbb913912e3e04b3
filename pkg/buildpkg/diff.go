package buildpkg

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// unifiedDiff renders the change from a to b as a unified diff with n lines
// of context, headed "a/path" and "b/path".
func unifiedDiff(path string, a, b []byte, n int) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        splitLines(string(a)),
		B:        splitLines(string(b)),
		FromFile: "a/" + path,
		ToFile:   "b/" + path,
		Context:  n,
	})
}

// splitLines splits s after every newline. Unlike difflib.SplitLines it
// adds no empty line for a trailing newline, and a last line without one
// is terminated so hunks always end in "\n".
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if last := lines[len(lines)-1]; !strings.HasSuffix(last, "\n") {
		lines[len(lines)-1] = last + "\n"
	}
	return lines
}

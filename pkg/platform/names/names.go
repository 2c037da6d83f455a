// Package names validates and normalizes column-style identifiers: parameter
// names, observable names and CSV header cells.
package names

import (
	"strings"
)

// Trim returns a copy of values with surrounding whitespace removed and
// empty entries dropped. Order and duplicates are preserved so callers can
// still report them.
//
// Example:
//
//	Trim([]string{"  M ", "", "alpha", "M"})
//	// Returns: []string{"M", "alpha", "M"}
func Trim(values []string) []string {
	if values == nil {
		return nil
	}
	result := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// Duplicates returns every value that occurs more than once, in order of
// its second occurrence. Names are case-sensitive: "M" and "m" differ.
//
// Example:
//
//	Duplicates([]string{"M", "r_p", "M", "v_rel", "r_p", "M"})
//	// Returns: []string{"M", "r_p"}
func Duplicates(values []string) []string {
	seen := make(map[string]int, len(values))
	var dups []string
	for _, v := range values {
		seen[v]++
		if seen[v] == 2 {
			dups = append(dups, v)
		}
	}
	return dups
}

// Valid reports whether name can be used as a column header: non-empty, no
// surrounding whitespace, and free of the delimiter, quote and line-break
// characters that would make an export ambiguous.
func Valid(name string) bool {
	if name == "" || strings.TrimSpace(name) != name {
		return false
	}
	return !strings.ContainsAny(name, ",\"\r\n\t")
}

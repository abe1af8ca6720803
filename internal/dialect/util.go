package dialect

import (
	"strings"
)

// ReferentialAction maps a catalog delete/update rule onto the T-SQL clause.
// NO ACTION and RESTRICT are the default and come back empty.
func ReferentialAction(rule string) string {
	r := strings.ToUpper(strings.TrimSpace(strings.ReplaceAll(rule, "_", " ")))
	switch r {
	case "CASCADE", "SET NULL", "SET DEFAULT":
		return r
	default:
		return ""
	}
}

// mapType looks the lower-cased engine type up in table and falls back to the
// upper-cased input.
func mapType(sqlType string, table map[string]string) string {
	t := strings.ToLower(strings.TrimSpace(sqlType))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = t[:i]
	}
	if mapped, ok := table[t]; ok {
		return mapped
	}
	return strings.ToUpper(t)
}

// DefaultGetSchemaName is a default implementation for Getting Schema Name (identity).
func DefaultGetSchemaName(input string) string {
	return input
}

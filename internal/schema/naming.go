package schema

import "strings"

// Naming conventions for constraints and indexes created without an explicit name.

func PrimaryKeyName(table string) string {
	return "PK_" + table
}

func UniqueName(table string, columns []string) string {
	return "UQ_" + table + "_" + strings.Join(columns, "_")
}

func ForeignKeyName(table, column string) string {
	return "FK_" + table + "_" + column
}

// IndexName yields UX_ for unique indexes and IX_ otherwise.
func IndexName(table string, columns []string, unique bool) string {
	prefix := "IX_"
	if unique {
		prefix = "UX_"
	}
	return prefix + table + "_" + strings.Join(columns, "_")
}

package schema

import "strings"

// Type families that decide how type arguments are stored and rendered.

var lengthTypes = map[string]bool{
	"CHAR": true, "VARCHAR": true, "NCHAR": true, "NVARCHAR": true,
	"BINARY": true, "VARBINARY": true,
}

var exactNumericTypes = map[string]bool{
	"DECIMAL": true, "NUMERIC": true,
}

// HasLength reports whether the type takes a (length) argument.
func HasLength(typ string) bool {
	return lengthTypes[strings.ToUpper(typ)]
}

// IsExactNumeric reports whether the type takes (precision[,scale]).
func IsExactNumeric(typ string) bool {
	return exactNumericTypes[strings.ToUpper(typ)]
}

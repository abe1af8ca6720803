package engine

import (
	"errors"
	"strings"
)

// Rejection kinds. Every error returned by Apply wraps exactly one of these.
var (
	ErrNotFound              = errors.New("not found")
	ErrAlreadyExists         = errors.New("already exists")
	ErrNoReferenceableColumn = errors.New("one column must be PRIMARY KEY or UNIQUE")
	ErrAmbiguousRelationship = errors.New("ambiguous relationship")
	ErrDuplicateForeignKey   = errors.New("duplicate foreign key")
	ErrConflictingForeignKey = errors.New("column already has a foreign key")
	ErrCircularForeignKey    = errors.New("circular foreign key")
	ErrTypeMismatch          = errors.New("type mismatch")
	ErrClusteredConflict     = errors.New("table already has a clustered index")
	ErrInvalidName           = errors.New("invalid name")
	ErrInvalidTable          = errors.New("invalid table definition")
	ErrStaleCommand          = errors.New("command issued against a replaced database")
)

// ValidationError is a rejected command. The database it was applied to is
// left untouched.
type ValidationError struct {
	Kind    error
	Schema  string
	Table   string
	Column  string
	Message string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if where := e.location(); where != "" {
		b.WriteString(" (")
		b.WriteString(where)
		b.WriteString(")")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

func (e *ValidationError) Unwrap() error {
	return e.Kind
}

func (e *ValidationError) location() string {
	var parts []string
	for _, p := range []string{e.Schema, e.Table, e.Column} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ".")
}

func reject(kind error, sch, table, column, message string) *ValidationError {
	return &ValidationError{Kind: kind, Schema: sch, Table: table, Column: column, Message: message}
}

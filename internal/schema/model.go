// Package schema holds the in-memory relational model shared by the parser,
// the generator and the edit engine.
package schema

import "strings"

// DefaultSchema is created with every database and never emitted as CREATE SCHEMA.
const DefaultSchema = "dbo"

// MaxLength is stored in Column.Length for (MAX) types.
const MaxLength = -1

type Database struct {
	Name    string
	Schemas []*Schema
}

type Schema struct {
	Name   string
	Tables []*Table
}

type Table struct {
	Name              string
	Columns           []*Column
	PrimaryKey        *PrimaryKey
	UniqueConstraints []*UniqueConstraint
	Indexes           []*Index

	// Diagram position. Opaque to everything in this module.
	X, Y float64
}

type Column struct {
	Name      string
	Type      string // base type token, upper case (INT, NVARCHAR, DECIMAL ...)
	Length    *int
	Precision *int
	Scale     *int
	Nullable  bool
	Default   *string
	Identity  *Identity

	ForeignKey *ForeignKeyRef
}

type Identity struct {
	Seed      int64
	Increment int64
}

// PrimaryKey is CLUSTERED only when Clustered is set. The parser, edit scripts
// and the catalog analyzer set it unless NONCLUSTERED was declared; callers
// building a key by hand state it explicitly.
type PrimaryKey struct {
	Name      string
	Columns   []string
	Clustered bool
}

type UniqueConstraint struct {
	Name    string
	Columns []string
}

type Index struct {
	Name      string
	Columns   []string
	Clustered bool
	Unique    bool
}

// ForeignKeyRef points a column at the column it references.
type ForeignKeyRef struct {
	Name     string
	Schema   string
	Table    string
	Column   string
	OnDelete string
	OnUpdate string
}

// ColumnFlags are derived from the table-level structures; they are never stored.
type ColumnFlags struct {
	PrimaryKey bool
	ForeignKey bool
	Unique     bool
}

// NewDatabase returns an empty database holding only the default schema.
func NewDatabase(name string) *Database {
	return &Database{
		Name:    name,
		Schemas: []*Schema{{Name: DefaultSchema}},
	}
}

// Int is a small helper for the optional numeric column attributes.
func Int(n int) *int { return &n }

// String is a small helper for optional string attributes.
func String(s string) *string { return &s }

// SameName compares identifiers the way SQL Server does under its default collation.
func SameName(a, b string) bool {
	return strings.EqualFold(a, b)
}

// ---------------------------------------------------------------------
// Lookups
// ---------------------------------------------------------------------

func (d *Database) Schema(name string) *Schema {
	for _, s := range d.Schemas {
		if SameName(s.Name, name) {
			return s
		}
	}
	return nil
}

// Table resolves schema and table in one call.
func (d *Database) Table(schemaName, tableName string) *Table {
	s := d.Schema(schemaName)
	if s == nil {
		return nil
	}
	return s.Table(tableName)
}

// Column resolves a fully qualified column.
func (d *Database) Column(schemaName, tableName, columnName string) *Column {
	t := d.Table(schemaName, tableName)
	if t == nil {
		return nil
	}
	return t.Column(columnName)
}

// Target returns the column a foreign key points at, or nil when it is dangling.
func (d *Database) Target(ref *ForeignKeyRef) *Column {
	if ref == nil {
		return nil
	}
	return d.Column(ref.Schema, ref.Table, ref.Column)
}

// EachColumn visits every column of the database in declaration order.
func (d *Database) EachColumn(fn func(s *Schema, t *Table, c *Column)) {
	for _, s := range d.Schemas {
		for _, t := range s.Tables {
			for _, c := range t.Columns {
				fn(s, t, c)
			}
		}
	}
}

func (s *Schema) Table(name string) *Table {
	for _, t := range s.Tables {
		if SameName(t.Name, name) {
			return t
		}
	}
	return nil
}

func (s *Schema) tableIndex(name string) int {
	for i, t := range s.Tables {
		if SameName(t.Name, name) {
			return i
		}
	}
	return -1
}

// RemoveTable drops the named table and reports whether it existed.
func (s *Schema) RemoveTable(name string) bool {
	i := s.tableIndex(name)
	if i < 0 {
		return false
	}
	s.Tables = append(s.Tables[:i], s.Tables[i+1:]...)
	return true
}

// ReplaceTable swaps the named table for t, keeping its position.
func (s *Schema) ReplaceTable(name string, t *Table) bool {
	i := s.tableIndex(name)
	if i < 0 {
		return false
	}
	s.Tables[i] = t
	return true
}

func (t *Table) Column(name string) *Column {
	for _, c := range t.Columns {
		if SameName(c.Name, name) {
			return c
		}
	}
	return nil
}

func (t *Table) Index(name string) *Index {
	for _, idx := range t.Indexes {
		if SameName(idx.Name, name) {
			return idx
		}
	}
	return nil
}

// ---------------------------------------------------------------------
// Derived column state
// ---------------------------------------------------------------------

// IsPrimaryKey reports primary key membership.
func (t *Table) IsPrimaryKey(column string) bool {
	return t.PrimaryKey != nil && containsName(t.PrimaryKey.Columns, column)
}

// IsUnique reports membership in any UNIQUE constraint.
func (t *Table) IsUnique(column string) bool {
	for _, uq := range t.UniqueConstraints {
		if containsName(uq.Columns, column) {
			return true
		}
	}
	return false
}

// Referenceable reports whether a foreign key may target the column: a primary
// key member, a single-column UNIQUE constraint or a single-column unique index.
func (t *Table) Referenceable(column string) bool {
	if t.IsPrimaryKey(column) {
		return true
	}
	for _, uq := range t.UniqueConstraints {
		if len(uq.Columns) == 1 && SameName(uq.Columns[0], column) {
			return true
		}
	}
	for _, idx := range t.Indexes {
		if idx.Unique && len(idx.Columns) == 1 && SameName(idx.Columns[0], column) {
			return true
		}
	}
	return false
}

func (t *Table) Flags(c *Column) ColumnFlags {
	return ColumnFlags{
		PrimaryKey: t.IsPrimaryKey(c.Name),
		ForeignKey: c.ForeignKey != nil,
		Unique:     t.IsUnique(c.Name),
	}
}

// ClusteredCount counts the clustered storage structures of the table.
func (t *Table) ClusteredCount() int {
	n := 0
	if t.PrimaryKey != nil && t.PrimaryKey.Clustered {
		n++
	}
	for _, idx := range t.Indexes {
		if idx.Clustered {
			n++
		}
	}
	return n
}

// BaseTypeEqual compares base types, ignoring length, precision and scale.
func BaseTypeEqual(a, b *Column) bool {
	return strings.EqualFold(a.Type, b.Type)
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if SameName(n, name) {
			return true
		}
	}
	return false
}

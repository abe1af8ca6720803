// Package generator renders a schema.Database as a SQL Server DDL script.
//
// Basic usage:
//
//	script := generator.Generate(db, true)
//	os.WriteFile("schema.sql", []byte(script), 0644)
//
// Statements are emitted in dependency-safe order: schemas, tables (each
// followed by its single-column UNIQUE constraints), multi-column UNIQUE
// constraints, indexes and finally foreign keys. Every statement is its own
// batch. In idempotent mode each statement is guarded by an existence check
// against the matching catalog view, so the script can be run repeatedly.
package generator

import (
	"fmt"
	"io"
	"strings"
	"time"

	"sqlerd/internal/schema"
)

const batchSeparator = "GO"

// Options controls rendering.
type Options struct {
	// Idempotent wraps every statement in an IF NOT EXISTS guard.
	Idempotent bool
	// Now supplies the header timestamp. Defaults to time.Now.
	Now func() time.Time
}

// Generate renders db as a DDL script.
func Generate(db *schema.Database, idempotent bool) string {
	return generate(db, Options{Idempotent: idempotent})
}

// GenerateBytes is Generate for callers writing files.
func GenerateBytes(db *schema.Database, opts Options) []byte {
	return []byte(generate(db, opts))
}

// Render writes the script for db to w.
func Render(w io.Writer, db *schema.Database, opts Options) error {
	_, err := io.WriteString(w, generate(db, opts))
	return err
}

func generate(db *schema.Database, opts Options) string {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	var builder strings.Builder

	generateHeader(&builder, db, now(), opts.Idempotent)

	for _, s := range db.Schemas {
		if !schema.SameName(s.Name, schema.DefaultSchema) {
			generateSchema(&builder, s, opts.Idempotent)
		}
	}

	for _, s := range db.Schemas {
		for _, t := range s.Tables {
			generateTable(&builder, s, t, opts.Idempotent)
			for _, uq := range t.UniqueConstraints {
				if len(uq.Columns) == 1 {
					generateUnique(&builder, s, t, uq, opts.Idempotent)
				}
			}
		}
	}

	var uniques, indexes, foreignKeys strings.Builder
	for _, s := range db.Schemas {
		for _, t := range s.Tables {
			for _, uq := range t.UniqueConstraints {
				if len(uq.Columns) > 1 {
					generateUnique(&uniques, s, t, uq, opts.Idempotent)
				}
			}
			for _, idx := range t.Indexes {
				generateIndex(&indexes, s, t, idx, opts.Idempotent)
			}
			for _, c := range t.Columns {
				if c.ForeignKey != nil {
					generateForeignKey(&foreignKeys, s, t, c, opts.Idempotent)
				}
			}
		}
	}
	writeSection(&builder, "Unique constraints", uniques.String())
	writeSection(&builder, "Indexes", indexes.String())
	writeSection(&builder, "Foreign keys", foreignKeys.String())

	return builder.String()
}

func writeSection(builder *strings.Builder, title, body string) {
	if body == "" {
		return
	}
	builder.WriteString(fmt.Sprintf("-- %s\n", title))
	builder.WriteString(body)
}

func generateHeader(builder *strings.Builder, db *schema.Database, now time.Time, idempotent bool) {
	builder.WriteString(fmt.Sprintf("-- Database: %s\n", db.Name))
	builder.WriteString(fmt.Sprintf("-- Generated: %s\n", now.UTC().Format(time.RFC3339)))
	if idempotent {
		builder.WriteString("-- Idempotent script: every statement checks for existing objects and is safe to re-run.\n")
	}
	builder.WriteString("\n")
	writeBatch(builder, fmt.Sprintf("USE %s;", QuoteIdent(db.Name)))
}

func generateSchema(builder *strings.Builder, s *schema.Schema, idempotent bool) {
	stmt := "CREATE SCHEMA " + QuoteIdent(s.Name)
	if !idempotent {
		writeBatch(builder, stmt+";")
		return
	}
	guard := fmt.Sprintf("SELECT * FROM sys.schemas WHERE name = %s", QuoteString(s.Name))
	writeBatch(builder, guarded(guard, fmt.Sprintf("EXEC(%s);", quoteLiteral(stmt))))
}

func generateTable(builder *strings.Builder, s *schema.Schema, t *schema.Table, idempotent bool) {
	qualified := qualifiedName(s, t)
	var lines []string
	for _, c := range t.Columns {
		lines = append(lines, "    "+columnDefinition(t, c))
	}
	if pk := t.PrimaryKey; pk != nil && len(pk.Columns) > 0 {
		name := pk.Name
		if name == "" {
			name = schema.PrimaryKeyName(t.Name)
		}
		lines = append(lines, fmt.Sprintf("    CONSTRAINT %s PRIMARY KEY %s (%s)",
			QuoteIdent(name), clusteredKeyword(pk.Clustered), columnList(pk.Columns)))
	}

	stmt := fmt.Sprintf("CREATE TABLE %s (\n%s\n);", qualified, strings.Join(lines, ",\n"))
	if !idempotent {
		writeBatch(builder, stmt)
		return
	}
	guard := fmt.Sprintf("SELECT * FROM sys.objects WHERE object_id = OBJECT_ID(%s) AND type = N'U'", QuoteString(qualified))
	writeBatch(builder, guarded(guard, stmt))
}

func columnDefinition(t *schema.Table, c *schema.Column) string {
	parts := []string{QuoteIdent(c.Name), TypeName(c)}
	if c.Identity != nil {
		parts = append(parts, fmt.Sprintf("IDENTITY(%d,%d)", c.Identity.Seed, c.Identity.Increment))
	}
	if !c.Nullable || t.IsPrimaryKey(c.Name) {
		parts = append(parts, "NOT NULL")
	}
	if c.Default != nil {
		parts = append(parts, "DEFAULT "+*c.Default)
	}
	return strings.Join(parts, " ")
}

// TypeName renders the column type with its length or precision arguments.
func TypeName(c *schema.Column) string {
	switch {
	case c.Length != nil && *c.Length == schema.MaxLength:
		return c.Type + "(MAX)"
	case c.Length != nil:
		return fmt.Sprintf("%s(%d)", c.Type, *c.Length)
	case c.Precision != nil && c.Scale != nil:
		return fmt.Sprintf("%s(%d,%d)", c.Type, *c.Precision, *c.Scale)
	case c.Precision != nil:
		return fmt.Sprintf("%s(%d)", c.Type, *c.Precision)
	}
	return c.Type
}

func generateUnique(builder *strings.Builder, s *schema.Schema, t *schema.Table, uq *schema.UniqueConstraint, idempotent bool) {
	qualified := qualifiedName(s, t)
	name := uq.Name
	if name == "" {
		name = schema.UniqueName(t.Name, uq.Columns)
	}
	stmt := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s UNIQUE (%s);", qualified, QuoteIdent(name), columnList(uq.Columns))
	if !idempotent {
		writeBatch(builder, stmt)
		return
	}
	guard := fmt.Sprintf("SELECT * FROM sys.key_constraints WHERE name = %s AND parent_object_id = OBJECT_ID(%s)",
		QuoteString(name), QuoteString(qualified))
	writeBatch(builder, guarded(guard, stmt))
}

func generateIndex(builder *strings.Builder, s *schema.Schema, t *schema.Table, idx *schema.Index, idempotent bool) {
	qualified := qualifiedName(s, t)
	name := idx.Name
	if name == "" {
		name = schema.IndexName(t.Name, idx.Columns, idx.Unique)
	}
	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	stmt := fmt.Sprintf("CREATE %s%s INDEX %s ON %s (%s);",
		unique, clusteredKeyword(idx.Clustered), QuoteIdent(name), qualified, columnList(idx.Columns))
	if !idempotent {
		writeBatch(builder, stmt)
		return
	}
	guard := fmt.Sprintf("SELECT * FROM sys.indexes WHERE name = %s AND object_id = OBJECT_ID(%s)",
		QuoteString(name), QuoteString(qualified))
	writeBatch(builder, guarded(guard, stmt))
}

func generateForeignKey(builder *strings.Builder, s *schema.Schema, t *schema.Table, c *schema.Column, idempotent bool) {
	ref := c.ForeignKey
	qualified := qualifiedName(s, t)
	name := ref.Name
	if name == "" {
		name = schema.ForeignKeyName(t.Name, c.Name)
	}
	refSchema := ref.Schema
	if refSchema == "" {
		refSchema = schema.DefaultSchema
	}
	stmt := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s.%s (%s)",
		qualified, QuoteIdent(name), QuoteIdent(c.Name), QuoteIdent(refSchema), QuoteIdent(ref.Table), QuoteIdent(ref.Column))
	if ref.OnDelete != "" {
		stmt += " ON DELETE " + ref.OnDelete
	}
	if ref.OnUpdate != "" {
		stmt += " ON UPDATE " + ref.OnUpdate
	}
	stmt += ";"
	if !idempotent {
		writeBatch(builder, stmt)
		return
	}
	guard := fmt.Sprintf("SELECT * FROM sys.foreign_keys WHERE name = %s AND parent_object_id = OBJECT_ID(%s)",
		QuoteString(name), QuoteString(qualified))
	writeBatch(builder, guarded(guard, stmt))
}

// ---------------------------------------------------------------------
// Formatting helpers
// ---------------------------------------------------------------------

func writeBatch(builder *strings.Builder, stmt string) {
	builder.WriteString(stmt)
	builder.WriteString("\n" + batchSeparator + "\n\n")
}

func guarded(condition, stmt string) string {
	return fmt.Sprintf("IF NOT EXISTS (%s)\nBEGIN\n%s\nEND", condition, indent(stmt))
}

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = "    " + l
	}
	return strings.Join(lines, "\n")
}

func clusteredKeyword(clustered bool) string {
	if clustered {
		return "CLUSTERED"
	}
	return "NONCLUSTERED"
}

func qualifiedName(s *schema.Schema, t *schema.Table) string {
	return QuoteIdent(s.Name) + "." + QuoteIdent(t.Name)
}

func columnList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = QuoteIdent(c)
	}
	return strings.Join(quoted, ", ")
}

// QuoteIdent brackets an identifier, doubling any closing bracket.
func QuoteIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// QuoteString renders a Unicode string literal.
func QuoteString(s string) string {
	return "N" + quoteLiteral(s)
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

package schema

import (
	"fmt"
	"strings"
)

// Problem is one invariant violation found by Check.
type Problem struct {
	Schema  string
	Table   string
	Column  string
	Message string
}

func (p Problem) String() string {
	where := p.Schema + "." + p.Table
	if p.Column != "" {
		where += "." + p.Column
	}
	return fmt.Sprintf("%s: %s", where, p.Message)
}

// Check walks the model and reports everything that breaks the model
// invariants. A freshly parsed database may carry such problems because the
// parser does not validate its input; the edit engine never produces them.
func (d *Database) Check() []Problem {
	var problems []Problem
	report := func(s *Schema, t *Table, col, format string, args ...interface{}) {
		problems = append(problems, Problem{Schema: s.Name, Table: t.Name, Column: col, Message: fmt.Sprintf(format, args...)})
	}

	for _, s := range d.Schemas {
		for _, t := range s.Tables {
			seen := make(map[string]bool)
			for _, c := range t.Columns {
				key := strings.ToUpper(c.Name)
				if seen[key] {
					report(s, t, c.Name, "duplicate column name")
				}
				seen[key] = true
			}

			if t.PrimaryKey != nil {
				for _, name := range t.PrimaryKey.Columns {
					if t.Column(name) == nil {
						report(s, t, name, "primary key %s names a missing column", t.PrimaryKey.Name)
					}
				}
			}
			for _, uq := range t.UniqueConstraints {
				for _, name := range uq.Columns {
					if t.Column(name) == nil {
						report(s, t, name, "unique constraint %s names a missing column", uq.Name)
					}
				}
			}
			for _, idx := range t.Indexes {
				for _, name := range idx.Columns {
					if t.Column(name) == nil {
						report(s, t, name, "index %s names a missing column", idx.Name)
					}
				}
			}
			if n := t.ClusteredCount(); n > 1 {
				report(s, t, "", "%d clustered structures, at most one is allowed", n)
			}

			for _, c := range t.Columns {
				ref := c.ForeignKey
				if ref == nil {
					continue
				}
				target := d.Target(ref)
				if target == nil {
					report(s, t, c.Name, "foreign key %s references missing column %s.%s.%s", ref.Name, ref.Schema, ref.Table, ref.Column)
					continue
				}
				if !BaseTypeEqual(c, target) {
					report(s, t, c.Name, "foreign key %s type %s does not match %s", ref.Name, c.Type, target.Type)
				}
				if rt := d.Table(ref.Schema, ref.Table); !rt.Referenceable(target.Name) {
					report(s, t, c.Name, "foreign key %s targets %s.%s which is neither PRIMARY KEY nor UNIQUE", ref.Name, rt.Name, target.Name)
				}
				if back := target.ForeignKey; back != nil &&
					SameName(back.Schema, s.Name) && SameName(back.Table, t.Name) && SameName(back.Column, c.Name) {
					report(s, t, c.Name, "foreign key %s is mirrored by %s", ref.Name, back.Name)
				}
			}
		}
	}
	return problems
}

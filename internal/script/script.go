// Package script reads edit scripts: ordered lists of structural edits kept in
// a YAML or JSON file under a top-level "commands" key.
//
//	commands:
//	  - op: connect
//	    a: {table: Orders, column: CustomerId}
//	    b: {table: Customers, column: Id}
//	  - op: rename_column
//	    table: Customers
//	    column: Id
//	    name: CustomerId
//
// Steps that edit a whole table (renames) are resolved against the database
// current at the time they run, so a script can build on its own earlier steps.
package script

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"sqlerd/internal/engine"
	"sqlerd/internal/schema"
)

// Step is one entry of an edit script. Which fields matter depends on Op.
type Step struct {
	Op     string `mapstructure:"op"`
	Schema string `mapstructure:"schema"`
	Table  string `mapstructure:"table"`
	Column string `mapstructure:"column"`
	Name   string `mapstructure:"name"`

	A engine.Endpoint `mapstructure:"a"`
	B engine.Endpoint `mapstructure:"b"`

	Columns    []ColumnSpec `mapstructure:"columns"`
	PrimaryKey []string     `mapstructure:"primary_key"`
	Clustered  *bool        `mapstructure:"clustered"`
	Unique     bool         `mapstructure:"unique"`
}

// ColumnSpec declares a column for add_table and add_column.
type ColumnSpec struct {
	Name      string  `mapstructure:"name"`
	Type      string  `mapstructure:"type"`
	Length    *int    `mapstructure:"length"`
	Precision *int    `mapstructure:"precision"`
	Scale     *int    `mapstructure:"scale"`
	Nullable  bool    `mapstructure:"nullable"`
	Default   *string `mapstructure:"default"`
	Identity  bool    `mapstructure:"identity"`
}

// Load reads the steps of the script at path. The format follows the file
// extension.
func Load(path string) ([]Step, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read script %s: %w", path, err)
	}

	var steps []Step
	if err := v.UnmarshalKey("commands", &steps); err != nil {
		return nil, fmt.Errorf("failed to parse script %s: %w", path, err)
	}
	for i, s := range steps {
		if s.Op == "" {
			return nil, fmt.Errorf("script %s: step %d has no op", path, i+1)
		}
	}
	return steps, nil
}

// Command resolves the step against db.
func (s Step) Command(db *schema.Database) (engine.Command, error) {
	switch strings.ToLower(s.Op) {
	case "add_schema":
		return engine.AddSchema{Name: s.Name}, nil
	case "add_table":
		return engine.AddTable{Schema: s.Schema, Table: s.newTable()}, nil
	case "delete_table":
		return engine.DeleteTable{Schema: s.Schema, Name: s.Table}, nil
	case "connect":
		return engine.ConnectColumns{A: s.A, B: s.B}, nil
	case "disconnect":
		return engine.DisconnectColumns{A: s.A, B: s.B}, nil
	case "add_index":
		idx := &schema.Index{Name: s.Name, Columns: s.columnNames(), Unique: s.Unique}
		if s.Clustered != nil {
			idx.Clustered = *s.Clustered
		}
		return engine.AddIndex{Schema: s.Schema, Table: s.Table, Index: idx}, nil
	case "remove_index":
		return engine.RemoveIndex{Schema: s.Schema, Table: s.Table, Name: s.Name}, nil
	case "rename_table":
		return s.edit(db, func(t *schema.Table) error {
			t.Name = s.Name
			return nil
		})
	case "rename_column":
		return s.edit(db, func(t *schema.Table) error {
			return renameColumn(t, s.Column, s.Name)
		})
	case "add_column":
		return s.edit(db, func(t *schema.Table) error {
			for _, c := range s.Columns {
				t.Columns = append(t.Columns, c.column())
			}
			return nil
		})
	case "drop_column":
		return s.edit(db, func(t *schema.Table) error {
			return dropColumn(t, s.Column)
		})
	default:
		return nil, fmt.Errorf("unknown op %q", s.Op)
	}
}

// edit builds an UpdateTable from a changed copy of the current table.
func (s Step) edit(db *schema.Database, change func(t *schema.Table) error) (engine.Command, error) {
	sch := s.Schema
	if sch == "" {
		sch = schema.DefaultSchema
	}
	current := db.Table(sch, s.Table)
	if current == nil {
		return nil, fmt.Errorf("%s: table %s.%s not found", s.Op, sch, s.Table)
	}
	t := current.Clone()
	if err := change(t); err != nil {
		return nil, fmt.Errorf("%s: %w", s.Op, err)
	}
	return engine.UpdateTable{Schema: sch, OldName: current.Name, Table: t}, nil
}

func (s Step) newTable() *schema.Table {
	t := &schema.Table{Name: s.Table}
	for _, c := range s.Columns {
		t.Columns = append(t.Columns, c.column())
	}
	if len(s.PrimaryKey) > 0 {
		t.PrimaryKey = &schema.PrimaryKey{Columns: s.PrimaryKey, Clustered: true}
		if s.Clustered != nil {
			t.PrimaryKey.Clustered = *s.Clustered
		}
	}
	return t
}

// columnNames lists the index columns, given either as plain names or as
// column specs.
func (s Step) columnNames() []string {
	if s.Column != "" {
		return []string{s.Column}
	}
	names := make([]string, 0, len(s.Columns))
	for _, c := range s.Columns {
		names = append(names, c.Name)
	}
	return names
}

func (c ColumnSpec) column() *schema.Column {
	col := &schema.Column{
		Name:      c.Name,
		Type:      strings.ToUpper(c.Type),
		Length:    c.Length,
		Precision: c.Precision,
		Scale:     c.Scale,
		Nullable:  c.Nullable,
		Default:   c.Default,
	}
	if c.Identity {
		col.Identity = &schema.Identity{Seed: 1, Increment: 1}
	}
	return col
}

// renameColumn renames the column and every key or index entry naming it.
func renameColumn(t *schema.Table, from, to string) error {
	col := t.Column(from)
	if col == nil {
		return fmt.Errorf("column %s.%s not found", t.Name, from)
	}
	rename := func(names []string) {
		for i, n := range names {
			if schema.SameName(n, from) {
				names[i] = to
			}
		}
	}
	col.Name = to
	if t.PrimaryKey != nil {
		rename(t.PrimaryKey.Columns)
	}
	for _, uq := range t.UniqueConstraints {
		rename(uq.Columns)
	}
	for _, idx := range t.Indexes {
		rename(idx.Columns)
	}
	return nil
}

// dropColumn removes the column together with the keys and indexes using it.
func dropColumn(t *schema.Table, name string) error {
	col := t.Column(name)
	if col == nil {
		return fmt.Errorf("column %s.%s not found", t.Name, name)
	}
	uses := func(names []string) bool {
		for _, n := range names {
			if schema.SameName(n, name) {
				return true
			}
		}
		return false
	}

	var columns []*schema.Column
	for _, c := range t.Columns {
		if c != col {
			columns = append(columns, c)
		}
	}
	t.Columns = columns

	if t.PrimaryKey != nil && uses(t.PrimaryKey.Columns) {
		t.PrimaryKey = nil
	}
	var uniques []*schema.UniqueConstraint
	for _, uq := range t.UniqueConstraints {
		if !uses(uq.Columns) {
			uniques = append(uniques, uq)
		}
	}
	t.UniqueConstraints = uniques
	var indexes []*schema.Index
	for _, idx := range t.Indexes {
		if !uses(idx.Columns) {
			indexes = append(indexes, idx)
		}
	}
	t.Indexes = indexes
	return nil
}

// Run applies every step in order through the session and stops at the first
// rejected one. It returns the number of steps applied.
func Run(s *engine.Session, steps []Step) (int, error) {
	for i, step := range steps {
		db, gen := s.Database()
		cmd, err := step.Command(db)
		if err != nil {
			return i, fmt.Errorf("step %d: %w", i+1, err)
		}
		if _, err := s.ApplyAt(gen, cmd); err != nil {
			return i, fmt.Errorf("step %d (%s): %w", i+1, cmd, err)
		}
	}
	return len(steps), nil
}

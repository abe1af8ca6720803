package engine

import (
	"fmt"

	"sqlerd/internal/schema"
)

// Command is one structural edit. The set is closed: only the types in this
// file implement it.
type Command interface {
	fmt.Stringer
	apply(e *editor) error
}

// Endpoint names one column of the database.
type Endpoint struct {
	Schema string `mapstructure:"schema" json:"schema"`
	Table  string `mapstructure:"table" json:"table"`
	Column string `mapstructure:"column" json:"column"`
}

func (p Endpoint) String() string {
	sch := p.Schema
	if sch == "" {
		sch = schema.DefaultSchema
	}
	return sch + "." + p.Table + "." + p.Column
}

// AddSchema creates an empty schema.
type AddSchema struct {
	Name string
}

// AddTable inserts a new table at the end of its schema.
type AddTable struct {
	Schema string
	Table  *schema.Table
}

// UpdateTable replaces OldName wholesale with Table. Renaming the table or
// its primary key column carries every reference along.
type UpdateTable struct {
	Schema  string
	OldName string
	Table   *schema.Table
}

// DeleteTable removes a table after clearing every reference to it.
type DeleteTable struct {
	Schema string
	Name   string
}

// ConnectColumns draws a foreign key between two columns. Direction is
// inferred: the referenceable endpoint becomes the target.
type ConnectColumns struct {
	A, B Endpoint
}

// DisconnectColumns removes the foreign key between two columns, whichever
// side holds it.
type DisconnectColumns struct {
	A, B Endpoint
}

// AddIndex adds a secondary index. An empty name is generated.
type AddIndex struct {
	Schema string
	Table  string
	Index  *schema.Index
}

// RemoveIndex drops a secondary index by name.
type RemoveIndex struct {
	Schema string
	Table  string
	Name   string
}

func (c AddSchema) String() string { return "add schema " + c.Name }

func (c AddTable) String() string {
	if c.Table == nil {
		return "add table"
	}
	return "add table " + qualify(c.Schema, c.Table.Name)
}

func (c UpdateTable) String() string { return "update table " + qualify(c.Schema, c.OldName) }

func (c DeleteTable) String() string { return "delete table " + qualify(c.Schema, c.Name) }

func (c ConnectColumns) String() string { return fmt.Sprintf("connect %s and %s", c.A, c.B) }

func (c DisconnectColumns) String() string { return fmt.Sprintf("disconnect %s and %s", c.A, c.B) }

func (c AddIndex) String() string {
	name := ""
	if c.Index != nil {
		name = c.Index.Name
	}
	return fmt.Sprintf("add index %s on %s", name, qualify(c.Schema, c.Table))
}

func (c RemoveIndex) String() string {
	return fmt.Sprintf("remove index %s on %s", c.Name, qualify(c.Schema, c.Table))
}

func qualify(sch, name string) string {
	if sch == "" {
		sch = schema.DefaultSchema
	}
	return sch + "." + name
}

package script_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"sqlerd/internal/engine"
	"sqlerd/internal/schema"
	"sqlerd/internal/script"
)

const shopDDL = `
CREATE TABLE [dbo].[Customers] (
    [Id] INT NOT NULL PRIMARY KEY,
    [Name] NVARCHAR(100) NOT NULL
);
CREATE TABLE [dbo].[Orders] (
    [Id] INT NOT NULL PRIMARY KEY,
    [CustomerId] INT NOT NULL
);
`

func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newSession(t *testing.T) *engine.Session {
	t.Helper()
	s := engine.NewSession("Shop", nil)
	if res, _ := s.Load(shopDDL, "Shop"); len(res.Skips) > 0 {
		t.Fatalf("unexpected skips %+v", res.Skips)
	}
	return s
}

func TestRun_YAML(t *testing.T) {
	path := writeScript(t, "edits.yaml", `
commands:
  - op: connect
    a: {table: Orders, column: CustomerId}
    b: {table: Customers, column: Id}
  - op: add_index
    table: Orders
    column: CustomerId
  - op: rename_table
    table: Customers
    name: Clients
  - op: add_table
    table: Notes
    columns:
      - {name: Id, type: int, identity: true}
      - {name: Body, type: nvarchar, length: 200, nullable: true}
    primary_key: [Id]
`)
	steps, err := script.Load(path)
	if err != nil {
		t.Fatal(err)
	}

	s := newSession(t)
	n, err := script.Run(s, steps)
	if err != nil {
		t.Fatalf("Run stopped after %d steps: %v", n, err)
	}
	if n != 4 {
		t.Errorf("expected 4 applied steps, got %d", n)
	}

	db, _ := s.Database()
	ref := db.Column("dbo", "Orders", "CustomerId").ForeignKey
	if ref == nil || ref.Table != "Clients" || ref.Column != "Id" {
		t.Errorf("reference did not follow the rename: %+v", ref)
	}
	if db.Table("dbo", "Orders").Index("IX_Orders_CustomerId") == nil {
		t.Error("index was not added with its default name")
	}

	notes := db.Table("dbo", "Notes")
	if notes == nil {
		t.Fatal("Notes was not added")
	}
	if notes.PrimaryKey == nil || notes.PrimaryKey.Name != "PK_Notes" {
		t.Errorf("Notes primary key = %+v", notes.PrimaryKey)
	}
	body := notes.Column("Body")
	if body.Type != "NVARCHAR" || body.Length == nil || *body.Length != 200 || !body.Nullable {
		t.Errorf("Notes.Body = %+v", body)
	}
	if notes.Column("Id").Identity == nil {
		t.Error("Notes.Id lost its identity")
	}
	if problems := db.Check(); len(problems) > 0 {
		t.Errorf("script left the model inconsistent: %v", problems)
	}
}

func TestRun_RenameKeyColumnCascades(t *testing.T) {
	path := writeScript(t, "rename.json", `{
  "commands": [
    {"op": "connect", "a": {"table": "Orders", "column": "CustomerId"}, "b": {"table": "Customers", "column": "Id"}},
    {"op": "rename_column", "table": "Customers", "column": "Id", "name": "CustomerKey"}
  ]
}`)
	steps, err := script.Load(path)
	if err != nil {
		t.Fatal(err)
	}

	s := newSession(t)
	if _, err := script.Run(s, steps); err != nil {
		t.Fatal(err)
	}

	db, _ := s.Database()
	customers := db.Table("dbo", "Customers")
	if !customers.IsPrimaryKey("CustomerKey") {
		t.Errorf("primary key was not renamed: %+v", customers.PrimaryKey)
	}
	col := db.Column("dbo", "Orders", "CustomerKey")
	if col == nil || col.ForeignKey == nil || col.ForeignKey.Column != "CustomerKey" {
		t.Errorf("referencing column was not renamed along: %+v", db.Table("dbo", "Orders").Columns)
	}
}

func TestRun_StopsAtRejectedStep(t *testing.T) {
	path := writeScript(t, "bad.yaml", `
commands:
  - op: add_schema
    name: sales
  - op: connect
    a: {table: Orders, column: CustomerId}
    b: {table: Customers, column: Name}
  - op: delete_table
    table: Orders
`)
	steps, err := script.Load(path)
	if err != nil {
		t.Fatal(err)
	}

	s := newSession(t)
	n, err := script.Run(s, steps)
	if !errors.Is(err, engine.ErrNoReferenceableColumn) {
		t.Fatalf("expected a rejection, got %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 applied step, got %d", n)
	}

	db, _ := s.Database()
	if db.Schema("sales") == nil {
		t.Error("steps before the rejection must stay applied")
	}
	if db.Table(schema.DefaultSchema, "Orders") == nil {
		t.Error("steps after the rejection must not run")
	}
}

func TestDropColumn(t *testing.T) {
	path := writeScript(t, "drop.yaml", `
commands:
  - op: connect
    a: {table: Orders, column: CustomerId}
    b: {table: Customers, column: Id}
  - op: drop_column
    table: Customers
    column: Id
`)
	steps, err := script.Load(path)
	if err != nil {
		t.Fatal(err)
	}

	s := newSession(t)
	if _, err := script.Run(s, steps); err != nil {
		t.Fatal(err)
	}

	db, _ := s.Database()
	if db.Table("dbo", "Customers").PrimaryKey != nil {
		t.Error("primary key over a dropped column must go")
	}
	if db.Column("dbo", "Orders", "CustomerId").ForeignKey != nil {
		t.Error("reference to a dropped column must be cleared")
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := script.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}

	path := writeScript(t, "noop.yaml", "commands:\n  - table: Orders\n")
	if _, err := script.Load(path); err == nil {
		t.Error("expected an error for a step without op")
	}

	steps := []script.Step{{Op: "explode"}}
	if _, err := steps[0].Command(schema.NewDatabase("x")); err == nil {
		t.Error("expected an error for an unknown op")
	}
	rename := script.Step{Op: "rename_table", Table: "Ghost", Name: "Spirit"}
	if _, err := rename.Command(schema.NewDatabase("x")); err == nil {
		t.Error("expected an error for a missing table")
	}
}

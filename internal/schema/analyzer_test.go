package schema_test

import (
	"context"
	"database/sql"
	"reflect"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"sqlerd/internal/dialect"
	"sqlerd/internal/generator"
	"sqlerd/internal/parser"
	"sqlerd/internal/schema"
)

// fkTable builds a table whose columns reference each of refs.
func fkTable(name string, refs ...string) *schema.Table {
	t := &schema.Table{
		Name:       name,
		Columns:    []*schema.Column{{Name: "Id", Type: "INT"}},
		PrimaryKey: &schema.PrimaryKey{Name: "PK_" + name, Columns: []string{"Id"}, Clustered: true},
	}
	for _, ref := range refs {
		t.Columns = append(t.Columns, &schema.Column{
			Name:       ref + "Id",
			Type:       "INT",
			ForeignKey: &schema.ForeignKeyRef{Schema: "dbo", Table: ref, Column: "Id"},
		})
	}
	return t
}

func TestSortTablesByFKCount_ComplexCircular(t *testing.T) {
	// A -> B -> C -> D -> E -> A (순환)
	// F -> E (단순 참조)
	// G (독립)
	tables := []*schema.Table{
		fkTable("A", "B"),
		fkTable("B", "C"),
		fkTable("C", "D"),
		fkTable("D", "E"),
		fkTable("E", "A"),
		fkTable("F", "E"),
		fkTable("G"),
	}

	sorted := schema.SortTablesByFKCount(tables)

	if len(sorted) != len(tables) {
		t.Fatalf("Expected %d tables, got %d", len(tables), len(sorted))
	}

	visited := make(map[string]bool)
	for _, tbl := range sorted {
		visited[tbl.Name] = true
	}
	for _, tbl := range tables {
		if !visited[tbl.Name] {
			t.Errorf("%s is missing from the sorted list", tbl.Name)
		}
	}

	if sorted[0].Name != "G" {
		t.Errorf("Expected independent table G first, got %s", sorted[0].Name)
	}
}

func TestSortTablesByFKCount_Simple(t *testing.T) {
	// Users -> Orders -> OrderItems
	tables := []*schema.Table{
		fkTable("OrderItems", "Orders"),
		fkTable("Orders", "Users"),
		fkTable("Users"),
	}

	sorted := schema.SortTablesByFKCount(tables)

	if sorted[0].Name != "Users" {
		t.Errorf("Expected Users first, got %s", sorted[0].Name)
	}
	if sorted[1].Name != "Orders" {
		t.Errorf("Expected Orders second, got %s", sorted[1].Name)
	}
	if sorted[2].Name != "OrderItems" {
		t.Errorf("Expected OrderItems third, got %s", sorted[2].Name)
	}
}

func TestDependencies_IgnoresSelfAndForeignTables(t *testing.T) {
	tree := fkTable("Nodes", "Nodes", "Owners")
	tree.Columns[1].Name = "ParentId"
	tables := []*schema.Table{tree, fkTable("Leaves", "nodes")}

	deps := schema.Dependencies(tables)

	if len(deps["Nodes"]) != 0 {
		t.Errorf("Nodes should not depend on itself or unknown tables, got %v", deps["Nodes"])
	}
	if !reflect.DeepEqual(deps["Leaves"], []string{"Nodes"}) {
		t.Errorf("Leaves dependencies = %v", deps["Leaves"])
	}
}

const storeDDL = `
CREATE TABLE Orders (
    Id INTEGER PRIMARY KEY,
    CustomerId INTEGER NOT NULL REFERENCES Customers (Id) ON DELETE CASCADE,
    Total DECIMAL(10,2),
    Note TEXT
);
CREATE TABLE Customers (
    Id INTEGER PRIMARY KEY AUTOINCREMENT,
    Name VARCHAR(100) NOT NULL,
    Email NVARCHAR(200) UNIQUE
);
CREATE INDEX IX_Orders_CustomerId ON Orders (CustomerId);
`

func openStore(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(storeDDL); err != nil {
		t.Fatalf("create store: %v", err)
	}
	return db
}

func TestAnalyze_SQLite(t *testing.T) {
	conn := openStore(t)

	db, err := schema.Analyze(context.Background(), conn, dialect.GetDialect("sqlite3"), "", "", "Store")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	tables := db.Schema("dbo").Tables
	if len(tables) != 2 || tables[0].Name != "Customers" || tables[1].Name != "Orders" {
		t.Fatalf("expected Customers before Orders, got %+v", tables)
	}

	customers := tables[0]
	id := customers.Column("Id")
	if id.Type != "INT" || id.Nullable || id.Identity == nil || *id.Identity != (schema.Identity{Seed: 1, Increment: 1}) {
		t.Errorf("Customers.Id = %+v", id)
	}
	if pk := customers.PrimaryKey; pk == nil || pk.Name != "PK_Customers" || !pk.Clustered {
		t.Errorf("Customers primary key = %+v", pk)
	}
	if name := customers.Column("Name"); name.Type != "VARCHAR" || *name.Length != 100 || name.Nullable {
		t.Errorf("Customers.Name = %+v", name)
	}
	if len(customers.UniqueConstraints) != 1 || customers.UniqueConstraints[0].Name != "UQ_Customers_Email" {
		t.Errorf("Customers unique constraints = %+v", customers.UniqueConstraints)
	}

	orders := tables[1]
	if orders.Column("Id").Identity != nil {
		t.Error("a rowid alias without AUTOINCREMENT is not an identity")
	}
	total := orders.Column("Total")
	if total.Type != "DECIMAL" || *total.Precision != 10 || *total.Scale != 2 {
		t.Errorf("Orders.Total = %+v", total)
	}
	if note := orders.Column("Note"); note.Type != "NVARCHAR" || *note.Length != schema.MaxLength {
		t.Errorf("Orders.Note = %+v", note)
	}

	want := &schema.ForeignKeyRef{
		Name:     "FK_Orders_CustomerId",
		Schema:   "dbo",
		Table:    "Customers",
		Column:   "Id",
		OnDelete: "CASCADE",
	}
	if got := orders.Column("CustomerId").ForeignKey; !reflect.DeepEqual(got, want) {
		t.Errorf("Orders.CustomerId references %+v, want %+v", got, want)
	}
	if idx := orders.Index("IX_Orders_CustomerId"); idx == nil || idx.Unique || len(idx.Columns) != 1 {
		t.Errorf("Orders index = %+v", idx)
	}

	if problems := db.Check(); len(problems) > 0 {
		t.Errorf("imported model breaks invariants: %v", problems)
	}
}

func TestAnalyze_RendersParsableScript(t *testing.T) {
	conn := openStore(t)

	db, err := schema.Analyze(context.Background(), conn, dialect.GetDialect("sqlite3"), "main", "sales", "Store")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if db.Schema("sales") == nil || len(db.Schema("sales").Tables) != 2 {
		t.Fatalf("tables were not placed in the target schema: %+v", db.Schemas)
	}

	script := generator.Generate(db, true)
	res := parser.Parse(script, "")
	if len(res.Skips) > 0 {
		t.Fatalf("unexpected skips %+v\n%s", res.Skips, script)
	}
	if !reflect.DeepEqual(res.Database, db) {
		t.Errorf("rendered import did not parse back to the same model\n%s", script)
	}
}

func TestAnalyze_QueryFailure(t *testing.T) {
	conn := openStore(t)
	conn.Close()

	if _, err := schema.Analyze(context.Background(), conn, dialect.GetDialect("sqlite3"), "", "", "Store"); err == nil {
		t.Error("expected an error from a closed connection")
	}
}

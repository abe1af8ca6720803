package generator_test

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"
	"unicode"

	"github.com/brianvoe/gofakeit/v6"

	"sqlerd/internal/generator"
	"sqlerd/internal/parser"
	"sqlerd/internal/schema"
)

var fixedNow = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

func customersDB() *schema.Database {
	db := schema.NewDatabase("Shop")
	db.Schemas[0].Tables = []*schema.Table{{
		Name: "Customers",
		Columns: []*schema.Column{
			{Name: "Id", Type: "INT"},
			{Name: "Name", Type: "NVARCHAR", Length: schema.Int(255)},
		},
		PrimaryKey: &schema.PrimaryKey{Name: "PK_Customers", Columns: []string{"Id"}, Clustered: true},
	}}
	return db
}

func TestGenerate_RoundTrip(t *testing.T) {
	db := customersDB()

	for _, idempotent := range []bool{false, true} {
		t.Run(fmt.Sprintf("idempotent=%v", idempotent), func(t *testing.T) {
			script := generator.Generate(db, idempotent)
			res := parser.Parse(script, db.Name)

			if len(res.Skips) > 0 {
				t.Fatalf("unexpected skips: %+v\n%s", res.Skips, script)
			}
			if !reflect.DeepEqual(res.Database, db) {
				t.Errorf("round trip changed the model\nscript:\n%s", script)
			}
		})
	}
}

func TestGenerate_PlainShape(t *testing.T) {
	script := generator.Generate(customersDB(), false)

	expected := []string{
		"-- Database: Shop\n",
		"USE [Shop];\nGO\n",
		"CREATE TABLE [dbo].[Customers] (\n" +
			"    [Id] INT NOT NULL,\n" +
			"    [Name] NVARCHAR(255) NOT NULL,\n" +
			"    CONSTRAINT [PK_Customers] PRIMARY KEY CLUSTERED ([Id])\n" +
			");\nGO\n",
	}
	for _, e := range expected {
		if !strings.Contains(script, e) {
			t.Errorf("expected script to contain %q\n%s", e, script)
		}
	}
	if strings.Contains(script, "IF NOT EXISTS") {
		t.Error("plain script must not carry existence guards")
	}
	if strings.Contains(script, "CREATE SCHEMA") {
		t.Error("default schema must not be created")
	}
}

func TestGenerate_IdempotentStable(t *testing.T) {
	db := customersDB()
	sales := &schema.Schema{Name: "sales"}
	db.Schemas = append(db.Schemas, sales)

	first := generator.GenerateBytes(db, generator.Options{Idempotent: true, Now: fixedNow})
	second := generator.GenerateBytes(db, generator.Options{Idempotent: true, Now: fixedNow})
	if string(first) != string(second) {
		t.Fatal("two renders of an unchanged model differ")
	}

	// Without a fixed clock only the timestamp line may differ.
	a := dropTimestamp(generator.Generate(db, true))
	b := dropTimestamp(generator.Generate(db, true))
	if a != b {
		t.Error("idempotent output differs outside the timestamp line")
	}

	script := string(first)
	if !strings.Contains(script, "-- Generated: 2024-03-01T12:00:00Z") {
		t.Errorf("missing fixed timestamp:\n%s", script)
	}
	if !strings.Contains(script, "IF NOT EXISTS (SELECT * FROM sys.schemas WHERE name = N'sales')\nBEGIN\n    EXEC('CREATE SCHEMA [sales]');\nEND\nGO") {
		t.Errorf("schema guard not rendered:\n%s", script)
	}
	if !strings.Contains(script, "OBJECT_ID(N'[dbo].[Customers]') AND type = N'U'") {
		t.Errorf("table guard not rendered:\n%s", script)
	}
}

func dropTimestamp(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if !strings.HasPrefix(l, "-- Generated:") {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

func TestGenerate_Sections(t *testing.T) {
	db := customersDB()
	customers := db.Table("dbo", "Customers")
	customers.Columns = append(customers.Columns,
		&schema.Column{Name: "Email", Type: "NVARCHAR", Length: schema.Int(320)},
		&schema.Column{Name: "Region", Type: "NCHAR", Length: schema.Int(2), Nullable: true},
	)
	customers.UniqueConstraints = []*schema.UniqueConstraint{
		{Name: "UQ_Customers_Email", Columns: []string{"Email"}},
		{Columns: []string{"Name", "Region"}},
	}
	customers.Indexes = []*schema.Index{{Columns: []string{"Region"}}}

	db.Schemas[0].Tables = append(db.Schemas[0].Tables, &schema.Table{
		Name: "Orders",
		Columns: []*schema.Column{
			{Name: "Id", Type: "BIGINT", Identity: &schema.Identity{Seed: 1000, Increment: 1}},
			{Name: "CustomerId", Type: "INT", ForeignKey: &schema.ForeignKeyRef{
				Schema: "dbo", Table: "Customers", Column: "Id", OnDelete: "CASCADE",
			}},
			{Name: "Total", Type: "DECIMAL", Precision: schema.Int(10), Scale: schema.Int(2), Default: schema.String("(0)")},
			{Name: "Notes", Type: "NVARCHAR", Length: schema.Int(schema.MaxLength), Nullable: true},
		},
		PrimaryKey: &schema.PrimaryKey{Columns: []string{"Id"}},
	})

	script := generator.Generate(db, false)

	order := []string{
		"CREATE TABLE [dbo].[Customers]",
		"ALTER TABLE [dbo].[Customers] ADD CONSTRAINT [UQ_Customers_Email] UNIQUE ([Email]);",
		"CREATE TABLE [dbo].[Orders]",
		"-- Unique constraints\nALTER TABLE [dbo].[Customers] ADD CONSTRAINT [UQ_Customers_Name_Region] UNIQUE ([Name], [Region]);",
		"-- Indexes\nCREATE NONCLUSTERED INDEX [IX_Customers_Region] ON [dbo].[Customers] ([Region]);",
		"-- Foreign keys\nALTER TABLE [dbo].[Orders] ADD CONSTRAINT [FK_Orders_CustomerId] FOREIGN KEY ([CustomerId]) REFERENCES [dbo].[Customers] ([Id]) ON DELETE CASCADE;",
	}
	last := -1
	for _, stmt := range order {
		i := strings.Index(script, stmt)
		if i < 0 {
			t.Fatalf("missing %q\n%s", stmt, script)
		}
		if i < last {
			t.Errorf("%q rendered out of order", stmt)
		}
		last = i
	}

	for _, e := range []string{
		"[Id] BIGINT IDENTITY(1000,1) NOT NULL,",
		"[Total] DECIMAL(10,2) NOT NULL DEFAULT (0),",
		"[Notes] NVARCHAR(MAX),\n",
		"CONSTRAINT [PK_Orders] PRIMARY KEY NONCLUSTERED ([Id])",
	} {
		if !strings.Contains(script, e) {
			t.Errorf("expected %q\n%s", e, script)
		}
	}
}

func TestGenerate_EmptySectionsOmitted(t *testing.T) {
	script := generator.Generate(customersDB(), true)
	for _, title := range []string{"-- Unique constraints", "-- Indexes", "-- Foreign keys"} {
		if strings.Contains(script, title) {
			t.Errorf("empty section %q rendered", title)
		}
	}
}

func TestQuoteIdent(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Orders", "[Orders]"},
		{"Order Lines", "[Order Lines]"},
		{"odd]name", "[odd]]name]"},
	}
	for _, tt := range tests {
		if got := generator.QuoteIdent(tt.in); got != tt.want {
			t.Errorf("QuoteIdent(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGenerate_QuotedNamesRoundTrip(t *testing.T) {
	db := schema.NewDatabase("It's")
	db.Schemas = append(db.Schemas, &schema.Schema{Name: "o'brien", Tables: []*schema.Table{{
		Name: "odd]table",
		Columns: []*schema.Column{
			{Name: "key col", Type: "INT"},
			{Name: "label", Type: "NVARCHAR", Length: schema.Int(20), Nullable: true, Default: schema.String("N'it''s'")},
		},
		PrimaryKey: &schema.PrimaryKey{Name: "PK odd", Columns: []string{"key col"}, Clustered: true},
	}}})

	for _, idempotent := range []bool{false, true} {
		script := generator.Generate(db, idempotent)
		res := parser.Parse(script, "")
		if len(res.Skips) > 0 {
			t.Fatalf("unexpected skips: %+v\n%s", res.Skips, script)
		}
		if !reflect.DeepEqual(res.Database, db) {
			t.Errorf("idempotent=%v: round trip changed the model\n%s", idempotent, script)
		}
	}
}

// randomDatabase builds a valid model: every table has an identity key, and
// foreign keys only point backwards at earlier tables.
func randomDatabase(f *gofakeit.Faker) *schema.Database {
	db := schema.NewDatabase(fmt.Sprintf("%s%d", identifier(f.Word()), f.Number(1, 99)))
	db.Schemas = append(db.Schemas, &schema.Schema{Name: "sales"})

	type ref struct{ schema, table string }
	var earlier []ref

	tableCount := f.Number(1, 6)
	for i := 0; i < tableCount; i++ {
		sch := db.Schemas[f.Number(0, len(db.Schemas)-1)]
		name := fmt.Sprintf("%s%d", identifier(f.Noun()), i)
		t := &schema.Table{
			Name:       name,
			Columns:    []*schema.Column{{Name: "Id", Type: "INT", Identity: &schema.Identity{Seed: 1, Increment: 1}}},
			PrimaryKey: &schema.PrimaryKey{Name: schema.PrimaryKeyName(name), Columns: []string{"Id"}, Clustered: f.Bool()},
		}

		colCount := f.Number(1, 5)
		for j := 0; j < colCount; j++ {
			t.Columns = append(t.Columns, randomColumn(f, fmt.Sprintf("Col%d", j)))
		}

		if len(earlier) > 0 && f.Bool() {
			target := earlier[f.Number(0, len(earlier)-1)]
			col := &schema.Column{
				Name:     target.table + "Id",
				Type:     "INT",
				Nullable: f.Bool(),
				ForeignKey: &schema.ForeignKeyRef{
					Name:     schema.ForeignKeyName(name, target.table+"Id"),
					Schema:   target.schema,
					Table:    target.table,
					Column:   "Id",
					OnDelete: f.RandomString([]string{"", "CASCADE", "NO ACTION", "SET NULL"}),
				},
			}
			t.Columns = append(t.Columns, col)
		}

		if f.Bool() {
			t.UniqueConstraints = append(t.UniqueConstraints, &schema.UniqueConstraint{
				Name: schema.UniqueName(name, []string{"Col0"}), Columns: []string{"Col0"},
			})
		}
		if colCount > 1 && f.Bool() {
			cols := []string{"Col0", "Col1"}
			t.UniqueConstraints = append(t.UniqueConstraints, &schema.UniqueConstraint{
				Name: schema.UniqueName(name, cols), Columns: cols,
			})
		}
		if f.Bool() {
			unique := f.Bool()
			cols := []string{t.Columns[len(t.Columns)-1].Name}
			t.Indexes = append(t.Indexes, &schema.Index{
				Name:      schema.IndexName(name, cols, unique),
				Columns:   cols,
				Clustered: !t.PrimaryKey.Clustered && f.Bool(),
				Unique:    unique,
			})
		}

		sch.Tables = append(sch.Tables, t)
		earlier = append(earlier, ref{sch.Name, name})
	}
	return db
}

// identifier keeps the letters of a generated word.
func identifier(word string) string {
	var b strings.Builder
	for _, r := range word {
		if unicode.IsLetter(r) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "x"
	}
	return b.String()
}

func randomColumn(f *gofakeit.Faker, name string) *schema.Column {
	c := &schema.Column{Name: name, Nullable: f.Bool()}
	switch f.Number(0, 6) {
	case 0:
		c.Type = "INT"
		if f.Bool() {
			c.Default = schema.String(fmt.Sprintf("(%d)", f.Number(0, 100)))
		}
	case 1:
		c.Type = "BIGINT"
	case 2:
		c.Type = "NVARCHAR"
		c.Length = schema.Int(f.Number(1, 4000))
		if f.Bool() {
			c.Default = schema.String("N'" + identifier(f.Word()) + "'")
		}
	case 3:
		c.Type = "VARCHAR"
		c.Length = schema.Int(schema.MaxLength)
	case 4:
		c.Type = "DECIMAL"
		c.Precision = schema.Int(f.Number(5, 38))
		c.Scale = schema.Int(f.Number(0, 4))
	case 5:
		c.Type = "DATETIME2"
		c.Precision = schema.Int(f.Number(0, 7))
		if f.Bool() {
			c.Default = schema.String("(sysutcdatetime())")
		}
	default:
		c.Type = "BIT"
	}
	return c
}

func TestGenerate_RandomRoundTrip(t *testing.T) {
	for seed := int64(1); seed <= 50; seed++ {
		f := gofakeit.New(seed)
		db := randomDatabase(f)
		if problems := db.Check(); len(problems) > 0 {
			t.Fatalf("seed %d: generated an invalid model: %v", seed, problems)
		}

		for _, idempotent := range []bool{false, true} {
			script := generator.Generate(db, idempotent)
			res := parser.Parse(script, "")
			if len(res.Skips) > 0 {
				t.Fatalf("seed %d: unexpected skips %+v\n%s", seed, res.Skips, script)
			}
			if !reflect.DeepEqual(res.Database, db) {
				t.Fatalf("seed %d idempotent=%v: round trip changed the model\n%s", seed, idempotent, script)
			}
		}
	}
}

package engine_test

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"sqlerd/internal/engine"
	"sqlerd/internal/generator"
	"sqlerd/internal/schema"
)

const inventoryDDL = `
CREATE TABLE [dbo].[Items] (
    [Id] INT NOT NULL,
    [Name] NVARCHAR(100) NOT NULL,
    CONSTRAINT [PK_Items] PRIMARY KEY CLUSTERED ([Id])
);
CREATE TABLE [dbo].[Stock] (
    [Id] INT NOT NULL PRIMARY KEY,
    [ItemId] INT NOT NULL
);
`

func TestSession_StaleCommands(t *testing.T) {
	s := engine.NewSession("Inventory", nil)

	res, gen := s.Load(inventoryDDL, "Inventory")
	if len(res.Skips) > 0 {
		t.Fatalf("unexpected skips %+v", res.Skips)
	}

	connect := engine.ConnectColumns{A: endpoint("Stock", "ItemId"), B: endpoint("Items", "Id")}

	_, reloaded := s.Load(inventoryDDL, "Inventory")
	if reloaded == gen {
		t.Fatal("a load must start a new generation")
	}
	if _, err := s.ApplyAt(gen, connect); !errors.Is(err, engine.ErrStaleCommand) {
		t.Fatalf("expected a stale command error, got %v", err)
	}
	if db, _ := s.Database(); db.Column("dbo", "Stock", "ItemId").ForeignKey != nil {
		t.Fatal("stale command reached the database")
	}

	if _, err := s.ApplyAt(reloaded, connect); err != nil {
		t.Fatalf("current command rejected: %v", err)
	}
	db, current := s.Database()
	if current != reloaded {
		t.Error("applying a command must not change the generation")
	}
	if db.Column("dbo", "Stock", "ItemId").ForeignKey == nil {
		t.Error("command was not applied")
	}
}

func TestSession_SnapshotsAreCopies(t *testing.T) {
	s := engine.NewSession("Inventory", nil)
	s.Load(inventoryDDL, "")

	snap, _ := s.Database()
	snap.Table("dbo", "Items").Name = "Changed"

	again, _ := s.Database()
	if again.Table("dbo", "Items") == nil {
		t.Error("editing a snapshot leaked into the session")
	}

	src := schema.NewDatabase("Other")
	s.Replace(src)
	src.Name = "Mutated"
	if db, _ := s.Database(); db.Name != "Other" {
		t.Error("Replace must copy its argument")
	}
}

func TestSession_RejectedCommandKeepsState(t *testing.T) {
	s := engine.NewSession("Inventory", nil)
	s.Load(inventoryDDL, "Inventory")
	opts := generator.Options{Idempotent: true, Now: func() time.Time { return time.Unix(0, 0) }}
	before := s.Render(opts)

	_, err := s.Apply(engine.ConnectColumns{A: endpoint("Items", "Name"), B: endpoint("Stock", "ItemId")})
	if !errors.Is(err, engine.ErrNoReferenceableColumn) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if after := s.Render(opts); after != before {
		t.Error("rejected command changed the rendered script")
	}
}

func TestSession_ConcurrentCommands(t *testing.T) {
	s := engine.NewSession("Busy", nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Apply(engine.AddTable{Table: &schema.Table{
				Name:       fmt.Sprintf("T%02d", i),
				Columns:    []*schema.Column{{Name: "Id", Type: "INT"}},
				PrimaryKey: &schema.PrimaryKey{Columns: []string{"Id"}, Clustered: true},
			}})
			if err != nil {
				t.Errorf("T%02d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	db, _ := s.Database()
	if n := len(db.Schemas[0].Tables); n != 20 {
		t.Errorf("expected 20 tables, got %d", n)
	}
	script := s.Render(generator.Options{})
	if !strings.Contains(script, "CREATE TABLE [dbo].[T07]") {
		t.Error("rendered script misses a table")
	}
}

func TestSession_RenameOption(t *testing.T) {
	s := engine.NewSession("Inventory", []engine.Option{engine.WithoutReferencingRenames()})
	gen := s.Replace(shopDB())

	db, _ := s.Database()
	if _, err := s.ApplyAt(gen, engine.UpdateTable{OldName: "Customers", Table: renamedCustomers(db)}); err != nil {
		t.Fatal(err)
	}
	db, _ = s.Database()
	if db.Table("dbo", "Orders").Column("CustomerId") == nil {
		t.Error("session options were not passed to Apply")
	}
}

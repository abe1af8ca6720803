package schema

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strconv"
	"strings"

	"sqlerd/internal/dialect"
)

// ---------------------------------------------------------------------
// 1. Catalog Import
// ---------------------------------------------------------------------

// Analyze reads one schema of a live database through the dialect's catalog
// queries and returns it as a model whose tables live in targetSchema.
// Tables come back in foreign key dependency order.
func Analyze(ctx context.Context, db *sql.DB, d dialect.Dialect, sourceSchema, targetSchema, databaseName string) (*Database, error) {
	source := d.GetSchemaName(sourceSchema)
	if targetSchema == "" {
		targetSchema = DefaultSchema
	}

	a := &analyzer{
		ctx:      ctx,
		db:       db,
		d:        d,
		source:   source,
		target:   targetSchema,
		tableMap: make(map[string]*Table),
	}

	steps := []struct {
		name string
		run  func() error
	}{
		{"tables", a.tables},
		{"columns", a.columns},
		{"primary keys", a.primaryKeys},
		{"unique constraints", a.uniqueConstraints},
		{"indexes", a.indexes},
		{"foreign keys", a.foreignKeys},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", step.name, err)
		}
	}

	out := NewDatabase(databaseName)
	s := out.Schema(targetSchema)
	if s == nil {
		s = &Schema{Name: targetSchema}
		out.Schemas = append(out.Schemas, s)
	}
	s.Tables = SortTablesByFKCount(a.list)
	return out, nil
}

type analyzer struct {
	ctx    context.Context
	db     *sql.DB
	d      dialect.Dialect
	source string
	target string

	// Normalized keys (UPPERCASE) for case-insensitive matching (Oracle support)
	tableMap map[string]*Table
	list     []*Table
}

// each runs a catalog query bound to the source schema and scans every row
// into dest before calling fn.
func (a *analyzer) each(query string, dest []interface{}, fn func() error) error {
	rows, err := a.db.QueryContext(a.ctx, query, a.source)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return err
		}
		if err := fn(); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (a *analyzer) table(name sql.NullString) *Table {
	if !name.Valid {
		return nil
	}
	return a.tableMap[strings.ToUpper(name.String)]
}

// --- Step 1: Tables ---
func (a *analyzer) tables() error {
	var name string
	return a.each(a.d.GetTablesQuery(a.source), []interface{}{&name}, func() error {
		t := &Table{Name: name}
		a.tableMap[strings.ToUpper(name)] = t
		a.list = append(a.list, t)
		return nil
	})
}

// --- Step 2: Columns ---
func (a *analyzer) columns() error {
	var tName, cName, dType, cLen, cPrec, cScale, isNull, cDefault, isIdentity, seed, incr sql.NullString
	dest := []interface{}{&tName, &cName, &dType, &cLen, &cPrec, &cScale, &isNull, &cDefault, &isIdentity, &seed, &incr}

	return a.each(a.d.GetColumnsQuery(a.source), dest, func() error {
		t := a.table(tName)
		if t == nil || !cName.Valid {
			return nil // Skip invalid rows
		}

		col := &Column{
			Name:     cName.String,
			Type:     a.d.NormalizeType(dType.String),
			Nullable: isNull.String == "YES",
		}

		if HasLength(col.Type) {
			col.Length = catalogLength(col.Type, cLen)
		}
		if IsExactNumeric(col.Type) {
			col.Precision = catalogInt(cPrec)
			col.Scale = catalogInt(cScale)
		}
		if cDefault.Valid && strings.TrimSpace(cDefault.String) != "" {
			col.Default = String(strings.TrimSpace(cDefault.String))
		}
		if isIdentity.String == "YES" {
			col.Identity = &Identity{Seed: catalogInt64(seed, 1), Increment: catalogInt64(incr, 1)}
		}

		t.Columns = append(t.Columns, col)
		return nil
	})
}

// --- Step 3: Primary Keys ---
func (a *analyzer) primaryKeys() error {
	var tName, kName, cName, clustered sql.NullString
	return a.each(a.d.GetPrimaryKeysQuery(a.source), []interface{}{&tName, &kName, &cName, &clustered}, func() error {
		t := a.table(tName)
		if t == nil || t.Column(cName.String) == nil {
			return nil
		}
		if t.PrimaryKey == nil {
			name := kName.String
			if !kName.Valid || name == "" {
				name = PrimaryKeyName(t.Name)
			}
			t.PrimaryKey = &PrimaryKey{Name: name, Clustered: clustered.String != "NO"}
		}
		col := t.Column(cName.String)
		col.Nullable = false
		t.PrimaryKey.Columns = append(t.PrimaryKey.Columns, col.Name)
		return nil
	})
}

// --- Step 4: Unique Constraints ---
func (a *analyzer) uniqueConstraints() error {
	var tName, kName, cName sql.NullString
	return a.each(a.d.GetUniqueConstraintsQuery(a.source), []interface{}{&tName, &kName, &cName}, func() error {
		t := a.table(tName)
		if t == nil || t.Column(cName.String) == nil {
			return nil
		}
		var uq *UniqueConstraint
		for _, existing := range t.UniqueConstraints {
			if SameName(existing.Name, kName.String) {
				uq = existing
			}
		}
		if uq == nil {
			uq = &UniqueConstraint{Name: kName.String}
			t.UniqueConstraints = append(t.UniqueConstraints, uq)
		}
		uq.Columns = append(uq.Columns, t.Column(cName.String).Name)
		return nil
	})
}

// --- Step 5: Indexes ---
func (a *analyzer) indexes() error {
	var tName, iName, cName, isUnique, isClustered sql.NullString
	return a.each(a.d.GetIndexesQuery(a.source), []interface{}{&tName, &iName, &cName, &isUnique, &isClustered}, func() error {
		t := a.table(tName)
		if t == nil || t.Column(cName.String) == nil {
			return nil
		}
		idx := t.Index(iName.String)
		if idx == nil {
			idx = &Index{
				Name:      iName.String,
				Unique:    isUnique.String == "YES",
				Clustered: isClustered.String == "YES",
			}
			t.Indexes = append(t.Indexes, idx)
		}
		idx.Columns = append(idx.Columns, t.Column(cName.String).Name)
		return nil
	})
}

// --- Step 6: Foreign Keys ---
type catalogForeignKey struct {
	table                         *Table
	name                          string
	column, refTable, refColumn   string
	refSchema, onDelete, onUpdate sql.NullString
	columns                       int
}

func (a *analyzer) foreignKeys() error {
	var tName, kName, cName, rSchema, rTable, rCol, delRule, updRule sql.NullString
	dest := []interface{}{&tName, &kName, &cName, &rSchema, &rTable, &rCol, &delRule, &updRule}

	var order []*catalogForeignKey
	byName := make(map[string]*catalogForeignKey)

	err := a.each(a.d.GetForeignKeysQuery(a.source), dest, func() error {
		t := a.table(tName)
		if t == nil {
			return nil
		}
		key := strings.ToUpper(t.Name + "." + kName.String)
		if fk, ok := byName[key]; ok {
			fk.columns++
			return nil
		}
		fk := &catalogForeignKey{
			table:     t,
			name:      kName.String,
			column:    cName.String,
			refSchema: rSchema,
			refTable:  rTable.String,
			refColumn: rCol.String,
			onDelete:  delRule,
			onUpdate:  updRule,
			columns:   1,
		}
		byName[key] = fk
		order = append(order, fk)
		return nil
	})
	if err != nil {
		return err
	}

	for _, fk := range order {
		where := fk.table.Name + "." + fk.name
		if fk.columns > 1 {
			log.Printf("[Analyze] Skipping composite foreign key %s (%d columns)", where, fk.columns)
			continue
		}
		if fk.refSchema.Valid && fk.refSchema.String != "" && !SameName(fk.refSchema.String, a.source) {
			log.Printf("[Analyze] Skipping foreign key %s: references schema %s", where, fk.refSchema.String)
			continue
		}
		col := fk.table.Column(fk.column)
		ref, ok := a.tableMap[strings.ToUpper(fk.refTable)]
		if col == nil || !ok || ref.Column(fk.refColumn) == nil {
			log.Printf("[Analyze] Skipping foreign key %s: unresolved column", where)
			continue
		}
		col.ForeignKey = &ForeignKeyRef{
			Name:     fk.name,
			Schema:   a.target,
			Table:    ref.Name,
			Column:   ref.Column(fk.refColumn).Name,
			OnDelete: dialect.ReferentialAction(fk.onDelete.String),
			OnUpdate: dialect.ReferentialAction(fk.onUpdate.String),
		}
	}
	return nil
}

// catalogLength maps a catalog character length onto Column.Length. Missing,
// negative and oversized lengths all mean (MAX).
func catalogLength(typ string, raw sql.NullString) *int {
	n := catalogInt(raw)
	if n == nil || *n < 0 {
		return Int(MaxLength)
	}
	limit := 8000
	if strings.HasPrefix(strings.ToUpper(typ), "N") {
		limit = 4000
	}
	if *n > limit {
		return Int(MaxLength)
	}
	return n
}

// catalogInt parses a numeric catalog value. Some drivers hand decimals back
// as "10.0".
func catalogInt(raw sql.NullString) *int {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	if n, err := strconv.Atoi(raw.String); err == nil {
		return Int(n)
	}
	if f, err := strconv.ParseFloat(raw.String, 64); err == nil {
		return Int(int(f))
	}
	return nil
}

func catalogInt64(raw sql.NullString, fallback int64) int64 {
	if n := catalogInt(raw); n != nil {
		return int64(*n)
	}
	return fallback
}

// ---------------------------------------------------------------------
// 2. Sorting Algorithm (Topological / Greedy)
// ---------------------------------------------------------------------

// Dependencies returns, per table name, the other tables of the same list its
// foreign keys point at. Self references are ignored.
func Dependencies(tables []*Table) map[string][]string {
	deps := make(map[string][]string, len(tables))
	for _, t := range tables {
		deps[t.Name] = []string{}
		for _, c := range t.Columns {
			if c.ForeignKey == nil || SameName(c.ForeignKey.Table, t.Name) {
				continue
			}
			for _, cand := range tables {
				if SameName(cand.Name, c.ForeignKey.Table) && !containsName(deps[t.Name], cand.Name) {
					deps[t.Name] = append(deps[t.Name], cand.Name)
				}
			}
		}
	}
	return deps
}

// SortTablesByFKCount sorts tables by dependency order.
// It handles circular dependencies by using a scoring system.
func SortTablesByFKCount(tables []*Table) []*Table {
	deps := Dependencies(tables)
	var sorted []*Table
	processed := make(map[string]bool)

	// Keep looping until all tables are processed
	for len(sorted) < len(tables) {
		added := false

		// Pass 1: Add tables whose dependencies are fully satisfied
		for _, t := range tables {
			if processed[t.Name] {
				continue
			}

			allDepsProcessed := true
			for _, depName := range deps[t.Name] {
				if !processed[depName] {
					allDepsProcessed = false
					break
				}
			}

			if allDepsProcessed {
				sorted = append(sorted, t)
				processed[t.Name] = true
				added = true
			}
		}

		// Pass 2: If no table added, we have a cycle. Break it using heuristic score.
		if !added {
			var bestTable *Table
			bestScore := -999999

			for _, t := range tables {
				if processed[t.Name] {
					continue
				}

				// Penalty: unprocessed dependencies. Bonus: taking part in a two-table cycle.
				score := 0
				unprocessedDeps := 0
				for _, dep := range deps[t.Name] {
					if !processed[dep] {
						unprocessedDeps++
					}
				}
				score -= (unprocessedDeps * 100)

				isCircular := false
				for _, depName := range deps[t.Name] {
					if !processed[depName] && containsName(deps[depName], t.Name) {
						isCircular = true
						break
					}
				}
				if isCircular {
					score += 500 // Priority boost
				}

				// Tie-breaker: Name (Deterministic)
				if bestTable == nil || score > bestScore || (score == bestScore && t.Name < bestTable.Name) {
					bestScore = score
					bestTable = t
				}
			}

			if bestTable == nil {
				// Should not happen if tables > sorted
				fmt.Println("[Sort] Error: Deadlock in sorting logic? Remaining tables cannot be sorted.")
				break
			}
			sorted = append(sorted, bestTable)
			processed[bestTable.Name] = true
			fmt.Printf("[Sort] Breaking circular dependency: %s (Score: %d)\n", bestTable.Name, bestScore)
		}
	}

	return sorted
}

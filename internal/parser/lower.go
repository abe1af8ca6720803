// Package parser reads SQL Server DDL scripts into a schema.Database.
//
// Parsing never fails. Text the parser cannot place in the model is reported
// as a Skip instead, so callers can decide whether a lossy load is acceptable:
//
//	res := parser.Parse(ddl, "Shop")
//	for _, s := range res.Skips {
//	    log.Printf("line %d: %s (%s)", s.Line, s.Reason, s.Text)
//	}
//	db := res.Database
package parser

import (
	"fmt"
	"sort"
	"strconv"

	"sqlerd/internal/schema"
)

// Result is the outcome of a parse: the model and everything that was dropped.
type Result struct {
	Database *schema.Database
	Skips    []Skip
}

// Parse reads CREATE SCHEMA, CREATE TABLE, CREATE INDEX and ALTER TABLE ADD
// CONSTRAINT statements. databaseName names the result; when empty the name of
// the first USE statement is taken.
func Parse(ddl, databaseName string, opts ...Option) *Result {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	p := newParser(ddl)
	stmts := p.parseScript(false)

	l := &lowerer{opts: o, skips: p.skips, refLines: make(map[*schema.Column]int)}
	db := l.lower(stmts, databaseName)

	sort.SliceStable(l.skips, func(i, j int) bool { return l.skips[i].Line < l.skips[j].Line })
	return &Result{Database: db, Skips: l.skips}
}

// lowerer turns statements into the model. Constraints declared inside
// CREATE TABLE are applied per table; ALTER TABLE and CREATE INDEX statements
// are applied in a second pass so they can refer to any table of the script.
type lowerer struct {
	opts     *options
	db       *schema.Database
	skips    []Skip
	refLines map[*schema.Column]int
}

func (l *lowerer) lower(stmts []statement, name string) *schema.Database {
	if name == "" {
		for _, s := range stmts {
			if use, ok := s.(*useStmt); ok {
				name = use.database
				break
			}
		}
	}
	if name == "" {
		name = "Database"
	}
	l.db = schema.NewDatabase(name)

	for _, s := range stmts {
		switch s := s.(type) {
		case *createSchemaStmt:
			l.ensureSchema(s.name)
		case *createTableStmt:
			l.createTable(s)
		}
	}
	for _, s := range stmts {
		switch s := s.(type) {
		case *alterTableStmt:
			l.alterTable(s)
		case *createIndexStmt:
			l.createIndex(s)
		}
	}
	l.resolveReferences()
	return l.db
}

func (l *lowerer) skip(line int, text, format string, args ...interface{}) {
	l.skips = append(l.skips, Skip{Line: line, Text: text, Reason: fmt.Sprintf(format, args...)})
}

func (l *lowerer) schemaName(n qualifiedName) string {
	if n.schema == "" {
		return l.opts.defaultSchema
	}
	return n.schema
}

func (l *lowerer) ensureSchema(name string) *schema.Schema {
	if s := l.db.Schema(name); s != nil {
		return s
	}
	s := &schema.Schema{Name: name}
	l.db.Schemas = append(l.db.Schemas, s)
	return s
}

func (l *lowerer) createTable(stmt *createTableStmt) {
	sch := l.ensureSchema(l.schemaName(stmt.table))
	label := sch.Name + "." + stmt.table.name
	if sch.Table(stmt.table.name) != nil {
		l.skip(stmt.line, label, "duplicate CREATE TABLE, first definition kept")
		return
	}

	t := &schema.Table{Name: stmt.table.name}
	var deferred []*constraintDef
	for _, def := range stmt.columns {
		if t.Column(def.name) != nil {
			l.skip(def.line, label+"."+def.name, "duplicate column")
			continue
		}
		t.Columns = append(t.Columns, lowerColumn(def))
		deferred = append(deferred, def.inline...)
	}
	deferred = append(deferred, stmt.constraints...)

	for _, con := range deferred {
		l.applyConstraint(t, con, false)
	}
	sch.Tables = append(sch.Tables, t)
}

func lowerColumn(def *columnDef) *schema.Column {
	c := &schema.Column{
		Name:     def.name,
		Type:     def.typ,
		Nullable: !def.notNull,
		Default:  def.def,
		Identity: def.identity,
	}
	args := make([]int, 0, len(def.args))
	for _, a := range def.args {
		if a == "MAX" {
			args = append(args, schema.MaxLength)
			continue
		}
		n, err := strconv.Atoi(a)
		if err != nil {
			continue
		}
		args = append(args, n)
	}
	switch {
	case len(args) == 0:
	case schema.HasLength(c.Type):
		c.Length = schema.Int(args[0])
	default:
		c.Precision = schema.Int(args[0])
		if len(args) > 1 {
			c.Scale = schema.Int(args[1])
		}
	}
	return c
}

func (l *lowerer) alterTable(stmt *alterTableStmt) {
	sch := l.db.Schema(l.schemaName(stmt.table))
	var t *schema.Table
	if sch != nil {
		t = sch.Table(stmt.table.name)
	}
	if t == nil {
		l.skip(stmt.line, l.schemaName(stmt.table)+"."+stmt.table.name, "ALTER TABLE on a table that was never created")
		return
	}
	l.applyConstraint(t, stmt.constraint, true)
}

func (l *lowerer) createIndex(stmt *createIndexStmt) {
	t := l.db.Table(l.schemaName(stmt.table), stmt.table.name)
	if t == nil {
		l.skip(stmt.line, stmt.index.name, "CREATE INDEX on a table that was never created")
		return
	}
	l.applyConstraint(t, stmt.index, true)
}

// resolveColumns maps constraint column names onto the table's own spelling.
func (l *lowerer) resolveColumns(t *schema.Table, con *constraintDef) ([]string, bool) {
	cols := make([]string, 0, len(con.columns))
	for _, name := range con.columns {
		c := t.Column(name)
		if c == nil {
			l.skip(con.line, t.Name+"."+name, "%s names a missing column", con.kind)
			return nil, false
		}
		cols = append(cols, c.Name)
	}
	return cols, true
}

func (l *lowerer) applyConstraint(t *schema.Table, con *constraintDef, fromAlter bool) {
	switch con.kind {
	case conCheck, conDefault:
		l.skip(con.line, t.Name+"."+con.name, "%s constraint is not represented", con.kind)
		return
	}
	cols, ok := l.resolveColumns(t, con)
	if !ok {
		return
	}

	switch con.kind {
	case conPrimaryKey:
		if pk := t.PrimaryKey; pk != nil {
			// Several inline PRIMARY KEY columns form one composite key.
			if fromAlter || (con.name != "" && !schema.SameName(con.name, pk.Name)) {
				l.skip(con.line, t.Name, "table already has primary key %s", pk.Name)
				return
			}
			for _, c := range cols {
				if !t.IsPrimaryKey(c) {
					pk.Columns = append(pk.Columns, c)
				}
			}
		} else {
			t.PrimaryKey = &schema.PrimaryKey{
				Name:      nameOr(con.name, schema.PrimaryKeyName(t.Name)),
				Columns:   cols,
				Clustered: con.clustered == nil || *con.clustered,
			}
		}
		for _, c := range cols {
			t.Column(c).Nullable = false
		}

	case conUnique:
		name := nameOr(con.name, schema.UniqueName(t.Name, cols))
		for _, uq := range t.UniqueConstraints {
			if schema.SameName(uq.Name, name) {
				l.skip(con.line, t.Name+"."+name, "duplicate unique constraint")
				return
			}
		}
		t.UniqueConstraints = append(t.UniqueConstraints, &schema.UniqueConstraint{Name: name, Columns: cols})

	case conIndex:
		if t.Index(con.name) != nil {
			l.skip(con.line, t.Name+"."+con.name, "duplicate index")
			return
		}
		t.Indexes = append(t.Indexes, &schema.Index{
			Name:      con.name,
			Columns:   cols,
			Clustered: con.clustered != nil && *con.clustered,
			Unique:    con.unique,
		})

	case conForeignKey:
		if len(cols) != 1 || len(con.refColumns) > 1 {
			l.skip(con.line, t.Name+"."+con.name, "composite FOREIGN KEY is not represented")
			return
		}
		col := t.Column(cols[0])
		if col.ForeignKey != nil {
			l.skip(con.line, t.Name+"."+col.Name, "column already references %s.%s", col.ForeignKey.Table, col.ForeignKey.Column)
			return
		}
		ref := &schema.ForeignKeyRef{
			Name:     nameOr(con.name, schema.ForeignKeyName(t.Name, col.Name)),
			Schema:   l.schemaName(con.ref),
			Table:    con.ref.name,
			OnDelete: con.onDelete,
			OnUpdate: con.onUpdate,
		}
		if len(con.refColumns) == 1 {
			ref.Column = con.refColumns[0]
		}
		col.ForeignKey = ref
		l.refLines[col] = con.line
	}
}

// resolveReferences canonicalizes every foreign key target and, unless
// disabled, promotes targets that are neither PRIMARY KEY nor UNIQUE.
func (l *lowerer) resolveReferences() {
	l.db.EachColumn(func(s *schema.Schema, t *schema.Table, c *schema.Column) {
		ref := c.ForeignKey
		if ref == nil {
			return
		}
		line := l.refLines[c]
		label := s.Name + "." + t.Name + "." + c.Name

		ts := l.db.Schema(ref.Schema)
		var target *schema.Table
		if ts != nil {
			target = ts.Table(ref.Table)
		}
		if target == nil {
			l.skip(line, label, "references unknown table %s.%s", ref.Schema, ref.Table)
			c.ForeignKey = nil
			return
		}
		ref.Schema, ref.Table = ts.Name, target.Name

		if ref.Column == "" {
			if target.PrimaryKey == nil || len(target.PrimaryKey.Columns) != 1 {
				l.skip(line, label, "REFERENCES %s without a column needs a single-column primary key", target.Name)
				c.ForeignKey = nil
				return
			}
			ref.Column = target.PrimaryKey.Columns[0]
		}
		tc := target.Column(ref.Column)
		if tc == nil {
			l.skip(line, label, "references unknown column %s.%s", target.Name, ref.Column)
			c.ForeignKey = nil
			return
		}
		ref.Column = tc.Name

		if target.Referenceable(tc.Name) || !l.opts.promoteReferenced {
			return
		}
		if target.PrimaryKey == nil {
			target.PrimaryKey = &schema.PrimaryKey{
				Name:      schema.PrimaryKeyName(target.Name),
				Columns:   []string{tc.Name},
				Clustered: target.ClusteredCount() == 0,
			}
			tc.Nullable = false
			return
		}
		target.UniqueConstraints = append(target.UniqueConstraints, &schema.UniqueConstraint{
			Name:    schema.UniqueName(target.Name, []string{tc.Name}),
			Columns: []string{tc.Name},
		})
	})
}

func nameOr(name, fallback string) string {
	if name != "" {
		return name
	}
	return fallback
}

// Package engine applies structural edits to a schema.Database while keeping
// it consistent.
//
// Apply never mutates its input. Each command runs against a deep copy, which
// is returned only when the whole command succeeded:
//
//	next, err := engine.Apply(db, engine.ConnectColumns{
//	    A: engine.Endpoint{Table: "Orders", Column: "CustomerId"},
//	    B: engine.Endpoint{Table: "Customers", Column: "Id"},
//	})
//	if errors.Is(err, engine.ErrAmbiguousRelationship) { ... }
//
// Session wraps Apply for a single owner that also loads and renders scripts.
package engine

import (
	"fmt"

	"sqlerd/internal/schema"
)

// Option configures Apply.
type Option func(*options)

type options struct {
	renameReferencing bool
}

func defaultOptions() *options {
	return &options{renameReferencing: true}
}

// WithoutReferencingRenames keeps foreign key column names when the primary
// key column they point at is renamed. The references are still repointed.
func WithoutReferencingRenames() Option {
	return func(o *options) {
		o.renameReferencing = false
	}
}

// WithReferencingRenames sets the rename behavior explicitly, for callers
// driven by configuration.
func WithReferencingRenames(enabled bool) Option {
	return func(o *options) {
		o.renameReferencing = enabled
	}
}

// Apply runs cmd against a copy of db. On success the copy is returned; on
// failure db itself is returned together with a *ValidationError.
func Apply(db *schema.Database, cmd Command, opts ...Option) (*schema.Database, error) {
	if cmd == nil {
		return db, fmt.Errorf("engine: nil command")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	e := &editor{db: db.Clone(), opts: o}
	if err := cmd.apply(e); err != nil {
		return db, err
	}
	return e.db, nil
}

// editor is the working state of one command. It owns db exclusively.
type editor struct {
	db   *schema.Database
	opts *options
}

func schemaOrDefault(name string) string {
	if name == "" {
		return schema.DefaultSchema
	}
	return name
}

func (e *editor) schema(name string) (*schema.Schema, error) {
	name = schemaOrDefault(name)
	s := e.db.Schema(name)
	if s == nil {
		return nil, reject(ErrNotFound, name, "", "", "schema does not exist")
	}
	return s, nil
}

func (e *editor) table(schemaName, tableName string) (*schema.Schema, *schema.Table, error) {
	s, err := e.schema(schemaName)
	if err != nil {
		return nil, nil, err
	}
	t := s.Table(tableName)
	if t == nil {
		return nil, nil, reject(ErrNotFound, s.Name, tableName, "", "table does not exist")
	}
	return s, t, nil
}

func (e *editor) column(p Endpoint) (*schema.Schema, *schema.Table, *schema.Column, error) {
	s, t, err := e.table(p.Schema, p.Table)
	if err != nil {
		return nil, nil, nil, err
	}
	c := t.Column(p.Column)
	if c == nil {
		return nil, nil, nil, reject(ErrNotFound, s.Name, t.Name, p.Column, "column does not exist")
	}
	return s, t, c, nil
}

// pointsAt reports whether ref targets the table, or the column when one is given.
func pointsAt(ref *schema.ForeignKeyRef, schemaName, table, column string) bool {
	if ref == nil || !schema.SameName(ref.Schema, schemaName) || !schema.SameName(ref.Table, table) {
		return false
	}
	return column == "" || schema.SameName(ref.Column, column)
}

// ---------------------------------------------------------------------
// Schemas and tables
// ---------------------------------------------------------------------

func (c AddSchema) apply(e *editor) error {
	if c.Name == "" {
		return reject(ErrInvalidName, "", "", "", "schema name is required")
	}
	if e.db.Schema(c.Name) != nil {
		return reject(ErrAlreadyExists, c.Name, "", "", "schema already exists")
	}
	e.db.Schemas = append(e.db.Schemas, &schema.Schema{Name: c.Name})
	return nil
}

func (c AddTable) apply(e *editor) error {
	s, err := e.schema(c.Schema)
	if err != nil {
		return err
	}
	if c.Table == nil {
		return reject(ErrInvalidTable, s.Name, "", "", "no table given")
	}
	if s.Table(c.Table.Name) != nil {
		return reject(ErrAlreadyExists, s.Name, c.Table.Name, "", "table already exists")
	}

	t := c.Table.Clone()
	if err := normalizeTable(s, t); err != nil {
		return err
	}
	s.Tables = append(s.Tables, t)

	for _, col := range t.Columns {
		if col.ForeignKey != nil {
			if err := e.checkNewReference(s, t, col); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c UpdateTable) apply(e *editor) error {
	s, old, err := e.table(c.Schema, c.OldName)
	if err != nil {
		return err
	}
	if c.Table == nil {
		return reject(ErrInvalidTable, s.Name, old.Name, "", "no table given")
	}
	if other := s.Table(c.Table.Name); other != nil && other != old {
		return reject(ErrAlreadyExists, s.Name, c.Table.Name, "", "table already exists")
	}

	t := c.Table.Clone()
	if err := normalizeTable(s, t); err != nil {
		return err
	}
	keyRenames := primaryKeyRenames(old, t)

	s.ReplaceTable(old.Name, t)

	if t.Name != old.Name {
		e.db.EachColumn(func(_ *schema.Schema, _ *schema.Table, col *schema.Column) {
			if pointsAt(col.ForeignKey, s.Name, old.Name, "") {
				col.ForeignKey.Table = t.Name
			}
		})
	}

	for oldColumn, newColumn := range keyRenames {
		e.cascadeKeyRename(s, t, oldColumn, newColumn)
	}

	// References to columns that no longer exist go away with the column.
	e.db.EachColumn(func(_ *schema.Schema, _ *schema.Table, col *schema.Column) {
		if ref := col.ForeignKey; pointsAt(ref, s.Name, t.Name, "") && t.Column(ref.Column) == nil {
			col.ForeignKey = nil
		}
	})

	// Surviving references into the table must still hit a key of the same type.
	var mismatch error
	e.db.EachColumn(func(rs *schema.Schema, rt *schema.Table, col *schema.Column) {
		if mismatch != nil || !pointsAt(col.ForeignKey, s.Name, t.Name, "") {
			return
		}
		target := t.Column(col.ForeignKey.Column)
		if !t.Referenceable(target.Name) {
			mismatch = reject(ErrNoReferenceableColumn, rs.Name, rt.Name, col.Name,
				fmt.Sprintf("%s.%s is still referenced but is no longer a PRIMARY KEY or UNIQUE column", t.Name, target.Name))
			return
		}
		if !schema.BaseTypeEqual(col, target) {
			mismatch = reject(ErrTypeMismatch, rs.Name, rt.Name, col.Name,
				fmt.Sprintf("%s is %s but %s.%s is now %s", col.Name, col.Type, t.Name, target.Name, target.Type))
		}
	})
	if mismatch != nil {
		return mismatch
	}

	for _, col := range t.Columns {
		if col.ForeignKey == nil {
			continue
		}
		var before *schema.ForeignKeyRef
		if oc := old.Column(col.Name); oc != nil {
			before = oc.ForeignKey
		}
		if before != nil && pointsAt(col.ForeignKey, before.Schema, before.Table, before.Column) {
			if err := e.checkExistingReference(s, t, col); err != nil {
				return err
			}
			continue
		}
		if err := e.checkNewReference(s, t, col); err != nil {
			return err
		}
	}
	return nil
}

// primaryKeyRenames pairs every key column that disappeared from the new
// definition with the key column now in its position.
func primaryKeyRenames(old, t *schema.Table) map[string]string {
	renames := make(map[string]string)
	if old.PrimaryKey == nil || t.PrimaryKey == nil {
		return renames
	}
	for i, name := range old.PrimaryKey.Columns {
		if t.Column(name) != nil {
			continue
		}
		switch {
		case i < len(t.PrimaryKey.Columns):
			renames[name] = t.PrimaryKey.Columns[i]
		case len(t.PrimaryKey.Columns) == 1:
			renames[name] = t.PrimaryKey.Columns[0]
		}
	}
	return renames
}

// cascadeKeyRename repoints references from a renamed key column and, unless
// disabled, renames the referencing columns to match. A referencing column is
// left as is when its table already has a column of the new name, including
// one renamed earlier in the same walk.
func (e *editor) cascadeKeyRename(s *schema.Schema, t *schema.Table, oldColumn, newColumn string) {
	type rename struct {
		schema *schema.Schema
		table  *schema.Table
		column *schema.Column
	}
	var renames []rename

	e.db.EachColumn(func(rs *schema.Schema, rt *schema.Table, col *schema.Column) {
		if !pointsAt(col.ForeignKey, s.Name, t.Name, oldColumn) {
			return
		}
		col.ForeignKey.Column = newColumn
		if e.opts.renameReferencing && !schema.SameName(col.Name, newColumn) && rt.Column(newColumn) == nil {
			renames = append(renames, rename{rs, rt, col})
		}
	})

	for _, r := range renames {
		if r.table.Column(newColumn) != nil {
			continue
		}
		e.renameColumn(r.schema, r.table, r.column, newColumn)
	}
}

// renameColumn renames a column everywhere it is named: the table's key,
// unique constraints and indexes, and references pointing at it.
func (e *editor) renameColumn(s *schema.Schema, t *schema.Table, col *schema.Column, name string) {
	old := col.Name
	col.Name = name

	rewrite := func(names []string) {
		for i, n := range names {
			if schema.SameName(n, old) {
				names[i] = name
			}
		}
	}
	if t.PrimaryKey != nil {
		rewrite(t.PrimaryKey.Columns)
	}
	for _, uq := range t.UniqueConstraints {
		rewrite(uq.Columns)
	}
	for _, idx := range t.Indexes {
		rewrite(idx.Columns)
	}

	e.db.EachColumn(func(_ *schema.Schema, _ *schema.Table, other *schema.Column) {
		if pointsAt(other.ForeignKey, s.Name, t.Name, old) {
			other.ForeignKey.Column = name
		}
	})
}

func (c DeleteTable) apply(e *editor) error {
	s, t, err := e.table(c.Schema, c.Name)
	if err != nil {
		return err
	}
	e.db.EachColumn(func(_ *schema.Schema, _ *schema.Table, col *schema.Column) {
		if pointsAt(col.ForeignKey, s.Name, t.Name, "") {
			col.ForeignKey = nil
		}
	})
	s.RemoveTable(t.Name)
	return nil
}

// normalizeTable validates a table definition and fills in what may be
// omitted: constraint names, the canonical spelling of column names and
// reference schemas.
func normalizeTable(s *schema.Schema, t *schema.Table) error {
	if t.Name == "" {
		return reject(ErrInvalidName, s.Name, "", "", "table name is required")
	}
	if len(t.Columns) == 0 {
		return reject(ErrInvalidTable, s.Name, t.Name, "", "a table needs at least one column")
	}
	for i, col := range t.Columns {
		if col.Name == "" {
			return reject(ErrInvalidName, s.Name, t.Name, "", fmt.Sprintf("column %d has no name", i+1))
		}
		if col.Type == "" {
			return reject(ErrInvalidTable, s.Name, t.Name, col.Name, "column has no type")
		}
		if t.Column(col.Name) != col {
			return reject(ErrAlreadyExists, s.Name, t.Name, col.Name, "duplicate column name")
		}
	}

	if pk := t.PrimaryKey; pk != nil && len(pk.Columns) == 0 {
		t.PrimaryKey = nil
	}
	if pk := t.PrimaryKey; pk != nil {
		cols, err := canonicalColumns(s, t, pk.Columns, "primary key")
		if err != nil {
			return err
		}
		pk.Columns = cols
		if pk.Name == "" {
			pk.Name = schema.PrimaryKeyName(t.Name)
		}
		for _, name := range cols {
			t.Column(name).Nullable = false
		}
	}

	for _, uq := range t.UniqueConstraints {
		cols, err := canonicalColumns(s, t, uq.Columns, "unique constraint")
		if err != nil {
			return err
		}
		uq.Columns = cols
		if uq.Name == "" {
			uq.Name = schema.UniqueName(t.Name, cols)
		}
	}

	for _, idx := range t.Indexes {
		cols, err := canonicalColumns(s, t, idx.Columns, "index")
		if err != nil {
			return err
		}
		idx.Columns = cols
		if idx.Name == "" {
			idx.Name = schema.IndexName(t.Name, cols, idx.Unique)
		}
		if t.Index(idx.Name) != idx {
			return reject(ErrAlreadyExists, s.Name, t.Name, "", "duplicate index "+idx.Name)
		}
	}

	if n := t.ClusteredCount(); n > 1 {
		return reject(ErrClusteredConflict, s.Name, t.Name, "", fmt.Sprintf("%d clustered structures declared", n))
	}

	for _, col := range t.Columns {
		if ref := col.ForeignKey; ref != nil {
			ref.Schema = schemaOrDefault(ref.Schema)
			if ref.Name == "" {
				ref.Name = schema.ForeignKeyName(t.Name, col.Name)
			}
		}
	}
	return nil
}

func canonicalColumns(s *schema.Schema, t *schema.Table, names []string, what string) ([]string, error) {
	if len(names) == 0 {
		return nil, reject(ErrInvalidTable, s.Name, t.Name, "", what+" has no columns")
	}
	out := make([]string, len(names))
	for i, name := range names {
		col := t.Column(name)
		if col == nil {
			return nil, reject(ErrNotFound, s.Name, t.Name, name, what+" names a missing column")
		}
		out[i] = col.Name
	}
	return out, nil
}

// checkExistingReference validates a reference that was already in the model:
// its target must still exist with the same base type.
func (e *editor) checkExistingReference(s *schema.Schema, t *schema.Table, col *schema.Column) error {
	ref := col.ForeignKey
	rt := e.db.Table(ref.Schema, ref.Table)
	if rt == nil {
		return reject(ErrNotFound, s.Name, t.Name, col.Name,
			fmt.Sprintf("referenced table %s.%s does not exist", ref.Schema, ref.Table))
	}
	target := rt.Column(ref.Column)
	if target == nil {
		return reject(ErrNotFound, s.Name, t.Name, col.Name,
			fmt.Sprintf("referenced column %s.%s does not exist", rt.Name, ref.Column))
	}
	ref.Table, ref.Column = rt.Name, target.Name
	if !schema.BaseTypeEqual(col, target) {
		return reject(ErrTypeMismatch, s.Name, t.Name, col.Name,
			fmt.Sprintf("%s is %s but %s.%s is %s", col.Name, col.Type, rt.Name, target.Name, target.Type))
	}
	return nil
}

// checkNewReference applies every rule for a reference being created: the
// target is referenceable and does not reference the column back.
func (e *editor) checkNewReference(s *schema.Schema, t *schema.Table, col *schema.Column) error {
	if err := e.checkExistingReference(s, t, col); err != nil {
		return err
	}
	ref := col.ForeignKey
	rs := e.db.Schema(ref.Schema)
	rt := rs.Table(ref.Table)
	ref.Schema = rs.Name
	if !rt.Referenceable(ref.Column) {
		return reject(ErrNoReferenceableColumn, s.Name, t.Name, col.Name,
			fmt.Sprintf("%s.%s is neither PRIMARY KEY nor UNIQUE", rt.Name, ref.Column))
	}
	if pointsAt(rt.Column(ref.Column).ForeignKey, s.Name, t.Name, col.Name) {
		return reject(ErrCircularForeignKey, s.Name, t.Name, col.Name,
			fmt.Sprintf("%s.%s already references %s.%s", rt.Name, ref.Column, t.Name, col.Name))
	}
	return nil
}

// ---------------------------------------------------------------------
// Relationships
// ---------------------------------------------------------------------

func (c ConnectColumns) apply(e *editor) error {
	sa, ta, ca, err := e.column(c.A)
	if err != nil {
		return err
	}
	sb, tb, cb, err := e.column(c.B)
	if err != nil {
		return err
	}
	if ca == cb {
		return reject(ErrCircularForeignKey, sa.Name, ta.Name, ca.Name, "a column cannot reference itself")
	}

	refA, refB := ta.Referenceable(ca.Name), tb.Referenceable(cb.Name)
	switch {
	case !refA && !refB:
		return reject(ErrNoReferenceableColumn, "", "", "", fmt.Sprintf("neither %s nor %s qualifies", c.A, c.B))
	case refA && refB:
		return reject(ErrAmbiguousRelationship, "", "", "",
			fmt.Sprintf("both %s and %s are PRIMARY KEY or UNIQUE", c.A, c.B))
	}

	// The referenceable side is the target, whichever end the edit started from.
	fs, ft, fc := sa, ta, ca
	rs, rt, rc := sb, tb, cb
	if refA {
		fs, ft, fc, rs, rt, rc = sb, tb, cb, sa, ta, ca
	}

	if existing := fc.ForeignKey; existing != nil {
		if pointsAt(existing, rs.Name, rt.Name, rc.Name) {
			return reject(ErrDuplicateForeignKey, fs.Name, ft.Name, fc.Name,
				fmt.Sprintf("already references %s.%s", rt.Name, rc.Name))
		}
		return reject(ErrConflictingForeignKey, fs.Name, ft.Name, fc.Name,
			fmt.Sprintf("already references %s.%s.%s", existing.Schema, existing.Table, existing.Column))
	}
	if pointsAt(rc.ForeignKey, fs.Name, ft.Name, fc.Name) {
		return reject(ErrCircularForeignKey, fs.Name, ft.Name, fc.Name,
			fmt.Sprintf("%s.%s already references %s.%s", rt.Name, rc.Name, ft.Name, fc.Name))
	}
	if !schema.BaseTypeEqual(fc, rc) {
		return reject(ErrTypeMismatch, fs.Name, ft.Name, fc.Name,
			fmt.Sprintf("%s is %s but %s.%s is %s", fc.Name, fc.Type, rt.Name, rc.Name, rc.Type))
	}

	fc.ForeignKey = &schema.ForeignKeyRef{
		Name:   schema.ForeignKeyName(ft.Name, fc.Name),
		Schema: rs.Name,
		Table:  rt.Name,
		Column: rc.Name,
	}
	return nil
}

func (c DisconnectColumns) apply(e *editor) error {
	sa, ta, ca, err := e.column(c.A)
	if err != nil {
		return err
	}
	sb, tb, cb, err := e.column(c.B)
	if err != nil {
		return err
	}
	switch {
	case pointsAt(ca.ForeignKey, sb.Name, tb.Name, cb.Name):
		ca.ForeignKey = nil
	case pointsAt(cb.ForeignKey, sa.Name, ta.Name, ca.Name):
		cb.ForeignKey = nil
	default:
		return reject(ErrNotFound, "", "", "", fmt.Sprintf("no foreign key between %s and %s", c.A, c.B))
	}
	return nil
}

// ---------------------------------------------------------------------
// Indexes
// ---------------------------------------------------------------------

func (c AddIndex) apply(e *editor) error {
	s, t, err := e.table(c.Schema, c.Table)
	if err != nil {
		return err
	}
	if c.Index == nil {
		return reject(ErrInvalidTable, s.Name, t.Name, "", "no index given")
	}
	idx := &schema.Index{Name: c.Index.Name, Clustered: c.Index.Clustered, Unique: c.Index.Unique}
	idx.Columns, err = canonicalColumns(s, t, c.Index.Columns, "index")
	if err != nil {
		return err
	}
	if idx.Clustered && t.ClusteredCount() > 0 {
		return reject(ErrClusteredConflict, s.Name, t.Name, "", "a table may have only one clustered index or primary key")
	}
	if idx.Name == "" {
		idx.Name = schema.IndexName(t.Name, idx.Columns, idx.Unique)
	}
	if t.Index(idx.Name) != nil {
		return reject(ErrAlreadyExists, s.Name, t.Name, "", "index "+idx.Name+" already exists")
	}
	t.Indexes = append(t.Indexes, idx)
	return nil
}

func (c RemoveIndex) apply(e *editor) error {
	s, t, err := e.table(c.Schema, c.Table)
	if err != nil {
		return err
	}
	for i, idx := range t.Indexes {
		if schema.SameName(idx.Name, c.Name) {
			t.Indexes = append(t.Indexes[:i], t.Indexes[i+1:]...)
			return nil
		}
	}
	return reject(ErrNotFound, s.Name, t.Name, "", "index "+c.Name+" does not exist")
}

package schema

// Clone returns a deep copy; edits on the copy never reach the original.
func (d *Database) Clone() *Database {
	if d == nil {
		return nil
	}
	out := &Database{Name: d.Name}
	if d.Schemas != nil {
		out.Schemas = make([]*Schema, len(d.Schemas))
		for i, s := range d.Schemas {
			out.Schemas[i] = s.Clone()
		}
	}
	return out
}

func (s *Schema) Clone() *Schema {
	out := &Schema{Name: s.Name}
	if s.Tables != nil {
		out.Tables = make([]*Table, len(s.Tables))
		for i, t := range s.Tables {
			out.Tables[i] = t.Clone()
		}
	}
	return out
}

func (t *Table) Clone() *Table {
	out := &Table{Name: t.Name, X: t.X, Y: t.Y}
	if t.Columns != nil {
		out.Columns = make([]*Column, len(t.Columns))
		for i, c := range t.Columns {
			out.Columns[i] = c.Clone()
		}
	}
	if t.PrimaryKey != nil {
		pk := *t.PrimaryKey
		pk.Columns = cloneNames(pk.Columns)
		out.PrimaryKey = &pk
	}
	if t.UniqueConstraints != nil {
		out.UniqueConstraints = make([]*UniqueConstraint, len(t.UniqueConstraints))
		for i, uq := range t.UniqueConstraints {
			out.UniqueConstraints[i] = &UniqueConstraint{Name: uq.Name, Columns: cloneNames(uq.Columns)}
		}
	}
	if t.Indexes != nil {
		out.Indexes = make([]*Index, len(t.Indexes))
		for i, idx := range t.Indexes {
			cp := *idx
			cp.Columns = cloneNames(idx.Columns)
			out.Indexes[i] = &cp
		}
	}
	return out
}

func (c *Column) Clone() *Column {
	out := *c
	out.Length = cloneInt(c.Length)
	out.Precision = cloneInt(c.Precision)
	out.Scale = cloneInt(c.Scale)
	if c.Default != nil {
		out.Default = String(*c.Default)
	}
	if c.Identity != nil {
		id := *c.Identity
		out.Identity = &id
	}
	if c.ForeignKey != nil {
		ref := *c.ForeignKey
		out.ForeignKey = &ref
	}
	return &out
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	return Int(*p)
}

func cloneNames(names []string) []string {
	if names == nil {
		return nil
	}
	out := make([]string, len(names))
	copy(out, names)
	return out
}

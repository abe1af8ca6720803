package parser

import "sqlerd/internal/schema"

// Statement shapes recognized by the parser. Everything else becomes a Skip.

type statement interface {
	startLine() int
}

type qualifiedName struct {
	schema string // empty when the source left it unqualified
	name   string
}

type useStmt struct {
	line     int
	database string
}

type createSchemaStmt struct {
	line int
	name string
}

type createTableStmt struct {
	line        int
	table       qualifiedName
	columns     []*columnDef
	constraints []*constraintDef
}

type alterTableStmt struct {
	line       int
	table      qualifiedName
	constraint *constraintDef
}

type createIndexStmt struct {
	line  int
	table qualifiedName
	index *constraintDef
}

type columnDef struct {
	line     int
	name     string
	typ      string
	args     []string // type arguments: numbers or MAX
	identity *schema.Identity
	notNull  bool
	def      *string
	inline   []*constraintDef
}

type constraintKind int

const (
	conPrimaryKey constraintKind = iota
	conUnique
	conForeignKey
	conIndex
	conCheck
	conDefault
)

func (k constraintKind) String() string {
	switch k {
	case conPrimaryKey:
		return "PRIMARY KEY"
	case conUnique:
		return "UNIQUE"
	case conForeignKey:
		return "FOREIGN KEY"
	case conIndex:
		return "INDEX"
	case conCheck:
		return "CHECK"
	default:
		return "DEFAULT"
	}
}

// constraintDef covers table-level, inline and ALTER TABLE constraints as
// well as index definitions.
type constraintDef struct {
	line      int
	kind      constraintKind
	name      string
	columns   []string
	clustered *bool
	unique    bool // indexes only

	ref        qualifiedName
	refColumns []string
	onDelete   string
	onUpdate   string
}

func (s *useStmt) startLine() int          { return s.line }
func (s *createSchemaStmt) startLine() int { return s.line }
func (s *createTableStmt) startLine() int  { return s.line }
func (s *alterTableStmt) startLine() int   { return s.line }
func (s *createIndexStmt) startLine() int  { return s.line }

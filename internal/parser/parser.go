package parser

import (
	"strconv"
	"strings"

	"sqlerd/internal/schema"
)

// Skip records a region of input that did not match a recognized statement
// shape, or a recognized construct the model cannot represent.
type Skip struct {
	Line   int
	Text   string
	Reason string
}

// parser is a cursor over a token slice. peek/pop follow the usual shape; every
// parse method leaves the cursor after what it consumed.
type parser struct {
	src   string
	toks  []token
	pos   int
	skips []Skip
}

func newParser(src string) *parser {
	return &parser{src: src, toks: lex(src)}
}

// sub returns a parser over a slice of our own tokens, used for CREATE TABLE fragments.
func (p *parser) sub(toks []token) *parser {
	end := token{kind: tokEOF}
	if len(toks) > 0 {
		last := toks[len(toks)-1]
		end = token{kind: tokEOF, pos: last.end, end: last.end, line: last.line}
	}
	cp := make([]token, 0, len(toks)+1)
	cp = append(cp, toks...)
	return &parser{src: p.src, toks: append(cp, end)}
}

func (p *parser) peek() token {
	return p.peekAt(0)
}

func (p *parser) peekAt(n int) token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}

func (p *parser) pop() token {
	t := p.peek()
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) eof() bool {
	return p.peek().kind == tokEOF
}

// acceptWords consumes the keyword sequence only if all of it is present.
func (p *parser) acceptWords(kws ...string) bool {
	for i, kw := range kws {
		if !p.peekAt(i).word(kw) {
			return false
		}
	}
	p.pos += len(kws)
	return true
}

func (p *parser) acceptPunct(s string) bool {
	if p.peek().punct(s) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) skip(from token, reason string) {
	text := ""
	if last := p.pos - 1; last >= 0 && last < len(p.toks) && p.toks[last].end > from.pos {
		text = p.src[from.pos:p.toks[last].end]
	}
	p.skips = append(p.skips, Skip{Line: from.line, Text: snippet(text), Reason: reason})
}

func snippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 80 {
		return s[:77] + "..."
	}
	return s
}

// ---------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------

var statementStarts = []string{"CREATE", "ALTER", "USE", "GO", "IF", "EXEC", "EXECUTE", "BEGIN", "END", "DROP", "SET", "PRINT", "INSERT", "UPDATE", "DELETE", "DECLARE"}

func startsStatement(t token) bool {
	for _, kw := range statementStarts {
		if t.word(kw) {
			return true
		}
	}
	return false
}

// parseScript parses statements until EOF, or until END when inBlock is set.
func (p *parser) parseScript(inBlock bool) []statement {
	var stmts []statement
	for !p.eof() {
		if p.acceptPunct(";") || p.acceptWords("GO") {
			continue
		}
		if inBlock && p.peek().word("END") {
			return stmts
		}
		stmts = append(stmts, p.parseStatement()...)
	}
	return stmts
}

func (p *parser) parseStatement() []statement {
	start := p.peek()

	switch {
	case start.word("USE"):
		p.pop()
		if !p.peek().name() {
			p.skipStatement(start, "USE without a database name")
			return nil
		}
		return []statement{&useStmt{line: start.line, database: p.pop().text}}

	case p.peek().word("CREATE") && p.peekAt(1).word("SCHEMA"):
		p.pos += 2
		return p.parseCreateSchema(start)

	case p.peek().word("CREATE") && p.peekAt(1).word("TABLE"):
		p.pos += 2
		return p.parseCreateTable(start)

	case start.word("CREATE"):
		if stmt := p.parseCreateIndex(start); stmt != nil {
			return []statement{stmt}
		}
		return nil

	case p.peek().word("ALTER") && p.peekAt(1).word("TABLE"):
		p.pos += 2
		return p.parseAlterTable(start)

	case start.word("IF"):
		return p.parseIf(start)

	case start.word("BEGIN"):
		p.pop()
		if p.acceptWords("TRANSACTION") || p.acceptWords("TRAN") {
			return nil
		}
		return p.parseBlockBody()

	case start.word("EXEC") || start.word("EXECUTE"):
		return p.parseExec(start)
	}

	p.skipStatement(start, "unrecognized statement")
	return nil
}

// skipStatement drops tokens up to the end of the current statement: a
// semicolon, a batch separator or the next statement keyword at depth zero.
func (p *parser) skipStatement(from token, reason string) {
	depth := 0
	first := true
	for !p.eof() {
		t := p.peek()
		if depth == 0 && !first {
			if t.punct(";") || startsStatement(t) {
				break
			}
		}
		first = false
		switch {
		case t.punct("("):
			depth++
		case t.punct(")"):
			if depth > 0 {
				depth--
			}
		}
		p.pop()
	}
	p.skip(from, reason)
}

func (p *parser) parseBlockBody() []statement {
	stmts := p.parseScript(true)
	p.acceptWords("END")
	return stmts
}

// parseIf handles existence guards. The guard itself carries no structure: for
// IF NOT EXISTS the guarded statements are parsed as if unguarded.
func (p *parser) parseIf(start token) []statement {
	p.pop()
	if !p.acceptWords("NOT", "EXISTS") {
		// Any other condition: drop the condition and parse what follows as
		// ordinary statements.
		p.skipStatement(start, "unsupported IF condition")
		return nil
	}
	if !p.peek().punct("(") {
		p.skipStatement(start, "IF NOT EXISTS without a condition")
		return nil
	}
	if _, ok := p.balanced(); !ok {
		p.skip(start, "unterminated IF NOT EXISTS condition")
		return nil
	}
	if p.acceptWords("BEGIN") {
		return p.parseBlockBody()
	}
	if p.eof() {
		return nil
	}
	return p.parseStatement()
}

// parseExec re-parses the string argument of EXEC('...') or
// EXEC sp_executesql N'...' as a script of its own.
func (p *parser) parseExec(start token) []statement {
	p.pop()
	var parts []string
	if p.acceptPunct("(") {
		for !p.eof() && !p.peek().punct(")") {
			t := p.pop()
			if t.kind == tokString {
				parts = append(parts, t.text)
			}
		}
		p.acceptPunct(")")
	} else if p.acceptWords("sp_executesql") {
		if p.peek().kind == tokString {
			parts = append(parts, p.pop().text)
		}
		if p.peek().punct(",") {
			p.skipStatement(start, "sp_executesql parameters ignored")
		}
	} else {
		p.skipStatement(start, "EXEC of a stored procedure")
		return nil
	}
	if len(parts) == 0 {
		p.skip(start, "EXEC without a literal statement")
		return nil
	}

	inner := newParser(strings.Join(parts, ""))
	stmts := inner.parseScript(false)
	for _, s := range inner.skips {
		s.Line += start.line - 1
		p.skips = append(p.skips, s)
	}
	return stmts
}

func (p *parser) parseCreateSchema(start token) []statement {
	if !p.peek().name() {
		p.skipStatement(start, "CREATE SCHEMA without a name")
		return nil
	}
	name := p.pop().text
	if p.acceptWords("AUTHORIZATION") && p.peek().name() {
		p.pop()
	}
	return []statement{&createSchemaStmt{line: start.line, name: name}}
}

func (p *parser) parseCreateTable(start token) []statement {
	table, ok := p.parseQualifiedName()
	if !ok {
		p.skipStatement(start, "CREATE TABLE without a table name")
		return nil
	}
	if !p.peek().punct("(") {
		p.skipStatement(start, "CREATE TABLE without a column list")
		return nil
	}
	body, ok := p.balanced()
	if !ok {
		p.skip(start, "unterminated CREATE TABLE body")
		return nil
	}
	p.skipTableOptions()

	stmt := &createTableStmt{line: start.line, table: table}
	for _, frag := range splitTokens(body) {
		fp := p.sub(frag)
		fp.parseDefinition(stmt)
		p.skips = append(p.skips, fp.skips...)
	}
	return []statement{stmt}
}

// skipTableOptions consumes trailing storage clauses such as ON [PRIMARY],
// TEXTIMAGE_ON or WITH (...).
func (p *parser) skipTableOptions() {
	for !p.eof() && !p.peek().punct(";") && !startsStatement(p.peek()) {
		if p.peek().punct("(") {
			p.balanced()
			continue
		}
		p.pop()
	}
}

func (p *parser) parseAlterTable(start token) []statement {
	table, ok := p.parseQualifiedName()
	if !ok {
		p.skipStatement(start, "ALTER TABLE without a table name")
		return nil
	}
	p.acceptWords("WITH", "CHECK")
	p.acceptWords("WITH", "NOCHECK")
	if !p.acceptWords("ADD") {
		p.skipStatement(start, "ALTER TABLE other than ADD CONSTRAINT")
		return nil
	}

	name := ""
	if p.acceptWords("CONSTRAINT") {
		if !p.peek().name() {
			p.skipStatement(start, "ADD CONSTRAINT without a name")
			return nil
		}
		name = p.pop().text
	}
	con := p.parseTableConstraint(start, name)
	if con == nil {
		p.skipStatement(start, "ALTER TABLE ADD of a column or unsupported constraint")
		return nil
	}
	p.skipTableOptions()
	return []statement{&alterTableStmt{line: start.line, table: table, constraint: con}}
}

// parseCreateIndex handles CREATE [UNIQUE] [CLUSTERED|NONCLUSTERED] INDEX.
func (p *parser) parseCreateIndex(start token) statement {
	p.pop()
	idx := &constraintDef{line: start.line, kind: conIndex}
	if p.acceptWords("UNIQUE") {
		idx.unique = true
	}
	idx.clustered = p.parseClustered()
	if !p.acceptWords("INDEX") {
		p.skipStatement(start, "unsupported CREATE statement")
		return nil
	}
	if !p.peek().name() {
		p.skipStatement(start, "CREATE INDEX without a name")
		return nil
	}
	idx.name = p.pop().text
	if !p.acceptWords("ON") {
		p.skipStatement(start, "CREATE INDEX without ON")
		return nil
	}
	table, ok := p.parseQualifiedName()
	if !ok {
		p.skipStatement(start, "CREATE INDEX without a table")
		return nil
	}
	cols, ok := p.parseColumnList()
	if !ok {
		p.skipStatement(start, "CREATE INDEX without a column list")
		return nil
	}
	idx.columns = cols
	p.skipTableOptions()
	return &createIndexStmt{line: start.line, table: table, index: idx}
}

// ---------------------------------------------------------------------
// CREATE TABLE fragments
// ---------------------------------------------------------------------

func (p *parser) parseDefinition(stmt *createTableStmt) {
	start := p.peek()
	if start.kind == tokEOF {
		return
	}

	name := ""
	if start.word("CONSTRAINT") {
		p.pop()
		if !p.peek().name() {
			p.skipRest(start, "CONSTRAINT without a name")
			return
		}
		name = p.pop().text
	}

	if name != "" || p.atTableConstraint() {
		con := p.parseTableConstraint(start, name)
		if con == nil {
			p.skipRest(start, "unrecognized table constraint")
			return
		}
		stmt.constraints = append(stmt.constraints, con)
		if !p.eof() {
			p.skipRest(p.peek(), "trailing text after "+con.kind.String())
		}
		return
	}
	if p.peek().word("PERIOD") && p.peekAt(1).word("FOR") {
		p.skipRest(start, "PERIOD FOR SYSTEM_TIME is not represented")
		return
	}

	col := p.parseColumn()
	if col == nil {
		p.skipRest(start, "unrecognized column definition")
		return
	}
	stmt.columns = append(stmt.columns, col)
}

// atTableConstraint tells an unnamed table constraint from a column whose
// unbracketed name happens to be PRIMARY, UNIQUE, FOREIGN, CHECK or INDEX.
func (p *parser) atTableConstraint() bool {
	t, next := p.peek(), p.peekAt(1)
	switch {
	case t.word("PRIMARY"), t.word("FOREIGN"):
		return next.word("KEY")
	case t.word("UNIQUE"):
		return next.punct("(") || next.word("CLUSTERED") || next.word("NONCLUSTERED")
	case t.word("CHECK"):
		return next.punct("(") || next.word("NOT")
	case t.word("INDEX"):
		// INDEX IX_A (Col) against a column declared as Index VARCHAR(10).
		after := p.peekAt(2)
		if !next.name() {
			return false
		}
		if after.punct("(") {
			arg := p.peekAt(3)
			return arg.kind != tokNumber && !arg.word("MAX")
		}
		return after.word("UNIQUE") || after.word("CLUSTERED") || after.word("NONCLUSTERED")
	}
	return false
}

func (p *parser) skipRest(from token, reason string) {
	for !p.eof() {
		p.pop()
	}
	p.skip(from, reason)
}

// parseTableConstraint reads the body of a named or unnamed constraint. CHECK
// and DEFAULT constraints are consumed and returned so the caller can report
// them; nil means nothing recognizable followed.
func (p *parser) parseTableConstraint(start token, name string) *constraintDef {
	con := &constraintDef{line: start.line, name: name}
	switch {
	case p.acceptWords("PRIMARY", "KEY"):
		con.kind = conPrimaryKey
		con.clustered = p.parseClustered()
		cols, ok := p.parseColumnList()
		if !ok {
			return nil
		}
		con.columns = cols
		p.skipIndexOptions()
	case p.acceptWords("UNIQUE"):
		con.kind = conUnique
		con.clustered = p.parseClustered()
		cols, ok := p.parseColumnList()
		if !ok {
			return nil
		}
		con.columns = cols
		p.skipIndexOptions()
	case p.acceptWords("FOREIGN", "KEY"):
		con.kind = conForeignKey
		cols, ok := p.parseColumnList()
		if !ok || !p.acceptWords("REFERENCES") {
			return nil
		}
		con.columns = cols
		if !p.parseReference(con) {
			return nil
		}
	case p.acceptWords("INDEX"):
		con.kind = conIndex
		if !p.peek().name() {
			return nil
		}
		con.name = p.pop().text
		if p.acceptWords("UNIQUE") {
			con.unique = true
		}
		con.clustered = p.parseClustered()
		cols, ok := p.parseColumnList()
		if !ok {
			return nil
		}
		con.columns = cols
		p.skipIndexOptions()
	case p.acceptWords("CHECK"):
		con.kind = conCheck
		p.acceptWords("NOT", "FOR", "REPLICATION")
		if _, ok := p.balanced(); !ok {
			return nil
		}
	case p.acceptWords("DEFAULT"):
		con.kind = conDefault
		p.parseExpr()
		if p.acceptWords("FOR") && p.peek().name() {
			con.columns = []string{p.pop().text}
		}
	default:
		return nil
	}
	return con
}

// skipIndexOptions drops WITH (...) and ON <filegroup> after a key definition.
func (p *parser) skipIndexOptions() {
	for {
		switch {
		case p.peek().word("WITH") && p.peekAt(1).punct("("):
			p.pop()
			p.balanced()
		case p.peek().word("ON") && p.peekAt(1).name():
			p.pos += 2
		default:
			return
		}
	}
}

func (p *parser) parseColumn() *columnDef {
	first := p.peek()
	if !first.name() {
		return nil
	}
	col := &columnDef{line: first.line, name: p.pop().text}

	// Computed columns (Name AS expr) have no type of their own.
	if p.peek().word("AS") {
		return nil
	}
	typ, ok := p.parseQualifiedName()
	if !ok {
		return nil
	}
	col.typ = strings.ToUpper(typ.name)

	if p.peek().punct("(") {
		p.pop()
		for !p.eof() && !p.peek().punct(")") {
			t := p.pop()
			if t.kind == tokNumber || t.word("MAX") {
				col.args = append(col.args, strings.ToUpper(t.text))
			}
		}
		if !p.acceptPunct(")") {
			return nil
		}
	}

	pendingName := ""
	for !p.eof() {
		start := p.peek()
		switch {
		case p.acceptWords("IDENTITY"):
			col.identity = &schema.Identity{Seed: 1, Increment: 1}
			if p.peek().punct("(") {
				args, _ := p.balanced()
				nums := signedNumbers(args)
				if len(nums) == 2 {
					col.identity.Seed, col.identity.Increment = nums[0], nums[1]
				}
			}
		case p.acceptWords("NOT", "NULL"):
			col.notNull = true
		case p.acceptWords("NOT", "FOR", "REPLICATION"):
		case p.acceptWords("NULL"):
			col.notNull = false
		case p.acceptWords("DEFAULT"):
			col.def = p.parseExpr()
			pendingName = ""
		case p.acceptWords("CONSTRAINT"):
			if p.peek().name() {
				pendingName = p.pop().text
			}
		case p.acceptWords("PRIMARY", "KEY"):
			con := &constraintDef{line: start.line, kind: conPrimaryKey, name: pendingName, columns: []string{col.name}}
			con.clustered = p.parseClustered()
			p.skipIndexOptions()
			col.inline = append(col.inline, con)
			pendingName = ""
		case p.acceptWords("UNIQUE"):
			con := &constraintDef{line: start.line, kind: conUnique, name: pendingName, columns: []string{col.name}}
			con.clustered = p.parseClustered()
			p.skipIndexOptions()
			col.inline = append(col.inline, con)
			pendingName = ""
		case p.peek().word("FOREIGN") || p.peek().word("REFERENCES"):
			p.acceptWords("FOREIGN", "KEY")
			if !p.acceptWords("REFERENCES") {
				p.skipRest(start, "FOREIGN KEY without REFERENCES")
				return col
			}
			con := &constraintDef{line: start.line, kind: conForeignKey, name: pendingName, columns: []string{col.name}}
			if !p.parseReference(con) {
				p.skipRest(start, "REFERENCES without a target table")
				return col
			}
			col.inline = append(col.inline, con)
			pendingName = ""
		case p.acceptWords("CHECK"):
			p.acceptWords("NOT", "FOR", "REPLICATION")
			p.balanced()
			p.skip(start, "CHECK constraint is not represented")
			pendingName = ""
		case p.acceptWords("COLLATE"):
			p.pop()
		default:
			// ROWGUIDCOL, SPARSE, FILESTREAM and friends carry no structure.
			if p.peek().punct("(") {
				p.balanced()
			} else {
				p.pop()
			}
		}
	}
	return col
}

// parseReference reads "<table> [(<cols>)] [ON DELETE x] [ON UPDATE x]".
func (p *parser) parseReference(con *constraintDef) bool {
	ref, ok := p.parseQualifiedName()
	if !ok {
		return false
	}
	con.ref = ref
	if p.peek().punct("(") {
		cols, ok := p.parseColumnList()
		if !ok {
			return false
		}
		con.refColumns = cols
	}
	for p.peek().word("ON") {
		var target *string
		switch {
		case p.acceptWords("ON", "DELETE"):
			target = &con.onDelete
		case p.acceptWords("ON", "UPDATE"):
			target = &con.onUpdate
		default:
			return true
		}
		switch {
		case p.acceptWords("NO", "ACTION"):
			*target = "NO ACTION"
		case p.acceptWords("CASCADE"):
			*target = "CASCADE"
		case p.acceptWords("SET", "NULL"):
			*target = "SET NULL"
		case p.acceptWords("SET", "DEFAULT"):
			*target = "SET DEFAULT"
		}
	}
	p.acceptWords("NOT", "FOR", "REPLICATION")
	return true
}

// parseQualifiedName reads up to three dotted parts and keeps schema.name.
func (p *parser) parseQualifiedName() (qualifiedName, bool) {
	if !p.peek().name() {
		return qualifiedName{}, false
	}
	parts := []string{p.pop().text}
	for p.peek().punct(".") && p.peekAt(1).name() {
		p.pop()
		parts = append(parts, p.pop().text)
	}
	n := qualifiedName{name: parts[len(parts)-1]}
	if len(parts) > 1 {
		n.schema = parts[len(parts)-2]
	}
	return n, true
}

// parseColumnList reads "(a [ASC|DESC], b ...)".
func (p *parser) parseColumnList() ([]string, bool) {
	if !p.acceptPunct("(") {
		return nil, false
	}
	var cols []string
	for !p.eof() {
		switch t := p.pop(); {
		case t.punct(")"):
			return cols, len(cols) > 0
		case t.punct(","), t.word("ASC"), t.word("DESC"):
		case t.name():
			cols = append(cols, t.text)
		default:
			return nil, false
		}
	}
	return nil, false
}

func (p *parser) parseClustered() *bool {
	switch {
	case p.acceptWords("CLUSTERED"):
		v := true
		return &v
	case p.acceptWords("NONCLUSTERED"):
		v := false
		return &v
	}
	return nil
}

// parseExpr consumes one default expression and returns its source text:
// a literal, a parenthesized group or a function call, with an optional sign.
func (p *parser) parseExpr() *string {
	first := p.peek()
	if first.kind == tokEOF {
		return nil
	}
	if first.punct("-") || first.punct("+") {
		p.pop()
	}
	switch {
	case p.peek().punct("("):
		p.balanced()
	default:
		t := p.pop()
		if t.name() {
			for p.peek().punct(".") && p.peekAt(1).name() {
				p.pos += 2
			}
			if p.peek().punct("(") {
				p.balanced()
			}
		}
	}
	last := p.toks[p.pos-1]
	text := p.src[first.pos:last.end]
	return &text
}

// balanced consumes a parenthesized group starting at the cursor and returns
// the tokens strictly inside it.
func (p *parser) balanced() ([]token, bool) {
	if !p.acceptPunct("(") {
		return nil, false
	}
	start := p.pos
	depth := 1
	for !p.eof() {
		t := p.pop()
		switch {
		case t.punct("("):
			depth++
		case t.punct(")"):
			depth--
			if depth == 0 {
				return p.toks[start : p.pos-1], true
			}
		}
	}
	return p.toks[start:p.pos], false
}

func signedNumbers(toks []token) []int64 {
	var out []int64
	sign := int64(1)
	for _, t := range toks {
		switch {
		case t.punct("-"):
			sign = -1
		case t.kind == tokNumber:
			n, err := strconv.ParseInt(t.text, 10, 64)
			if err == nil {
				out = append(out, sign*n)
			}
			sign = 1
		}
	}
	return out
}

// ---------------------------------------------------------------------
// Depth-aware splitting
// ---------------------------------------------------------------------

// splitTokens splits a CREATE TABLE body at commas that sit at parenthesis
// depth zero, so DECIMAL(10,2) or a constraint's column list stay whole.
func splitTokens(toks []token) [][]token {
	var out [][]token
	depth, start := 0, 0
	for i, t := range toks {
		switch {
		case t.punct("("):
			depth++
		case t.punct(")"):
			if depth > 0 {
				depth--
			}
		case t.punct(",") && depth == 0:
			if i > start {
				out = append(out, toks[start:i])
			}
			start = i + 1
		}
	}
	if start < len(toks) {
		out = append(out, toks[start:])
	}
	return out
}

// SplitDefinitions splits the text between the parentheses of a CREATE TABLE
// statement into its top-level column and constraint definitions.
func SplitDefinitions(body string) []string {
	toks := lex(body)
	toks = toks[:len(toks)-1]
	var out []string
	for _, frag := range splitTokens(toks) {
		out = append(out, body[frag[0].pos:frag[len(frag)-1].end])
	}
	return out
}

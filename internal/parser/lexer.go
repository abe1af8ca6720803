package parser

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF    tokenKind = iota
	tokIdent            // bare word: keywords and unquoted identifiers
	tokQuoted           // [bracketed] or "double quoted" identifier
	tokNumber           // 10, 2.5
	tokString           // 'text' or N'text', already unescaped
	tokPunct            // any other single character
)

type token struct {
	kind tokenKind
	text string
	pos  int // byte offset of the first character in the source
	end  int // byte offset just past the token
	line int
}

// word reports whether the token is the given keyword. Quoted identifiers never are.
func (t token) word(kw string) bool {
	return t.kind == tokIdent && strings.EqualFold(t.text, kw)
}

func (t token) punct(p string) bool {
	return t.kind == tokPunct && t.text == p
}

// name reports whether the token can stand for an identifier.
func (t token) name() bool {
	return t.kind == tokIdent || t.kind == tokQuoted
}

// lex splits T-SQL text into tokens. Comments and whitespace are dropped; the
// returned slice always ends with a tokEOF token.
func lex(src string) []token {
	var toks []token
	line := 1
	i := 0

	for i < len(src) {
		c := src[i]
		switch {
		case c == '\n':
			line++
			i++
		case c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v':
			i++
		case c == '-' && i+1 < len(src) && src[i+1] == '-':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			// T-SQL block comments nest.
			depth := 0
			for i < len(src) {
				if src[i] == '/' && i+1 < len(src) && src[i+1] == '*' {
					depth++
					i += 2
					continue
				}
				if src[i] == '*' && i+1 < len(src) && src[i+1] == '/' {
					depth--
					i += 2
					if depth == 0 {
						break
					}
					continue
				}
				if src[i] == '\n' {
					line++
				}
				i++
			}
		case c == '[':
			start, startLine := i, line
			text, next, lines := scanDelimited(src, i+1, ']')
			i, line = next, line+lines
			toks = append(toks, token{kind: tokQuoted, text: text, pos: start, end: i, line: startLine})
		case c == '"':
			start, startLine := i, line
			text, next, lines := scanDelimited(src, i+1, '"')
			i, line = next, line+lines
			toks = append(toks, token{kind: tokQuoted, text: text, pos: start, end: i, line: startLine})
		case c == '\'' || ((c == 'N' || c == 'n') && i+1 < len(src) && src[i+1] == '\''):
			start, startLine := i, line
			if c != '\'' {
				i++
			}
			text, next, lines := scanDelimited(src, i+1, '\'')
			i, line = next, line+lines
			toks = append(toks, token{kind: tokString, text: text, pos: start, end: i, line: startLine})
		case c >= '0' && c <= '9':
			start := i
			for i < len(src) && (isDigit(src[i]) || src[i] == '.') {
				i++
			}
			toks = append(toks, token{kind: tokNumber, text: src[start:i], pos: start, end: i, line: line})
		case isIdentStart(src, i):
			start := i
			for i < len(src) && isIdentPart(src, i) {
				_, size := utf8.DecodeRuneInString(src[i:])
				i += size
			}
			toks = append(toks, token{kind: tokIdent, text: src[start:i], pos: start, end: i, line: line})
		default:
			_, size := utf8.DecodeRuneInString(src[i:])
			toks = append(toks, token{kind: tokPunct, text: src[i : i+size], pos: i, end: i + size, line: line})
			i += size
		}
	}

	return append(toks, token{kind: tokEOF, pos: len(src), end: len(src), line: line})
}

// scanDelimited reads up to the closing delimiter, where a doubled delimiter
// stands for itself. Unterminated input runs to the end of the source.
func scanDelimited(src string, i int, closing byte) (string, int, int) {
	var b strings.Builder
	lines := 0
	for i < len(src) {
		c := src[i]
		if c == closing {
			if i+1 < len(src) && src[i+1] == closing {
				b.WriteByte(closing)
				i += 2
				continue
			}
			return b.String(), i + 1, lines
		}
		if c == '\n' {
			lines++
		}
		b.WriteByte(c)
		i++
	}
	return b.String(), i, lines
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(src string, i int) bool {
	c := src[i]
	if c == '_' || c == '@' || c == '#' {
		return true
	}
	r, _ := utf8.DecodeRuneInString(src[i:])
	return unicode.IsLetter(r)
}

func isIdentPart(src string, i int) bool {
	c := src[i]
	if isDigit(c) || c == '$' {
		return true
	}
	return isIdentStart(src, i)
}

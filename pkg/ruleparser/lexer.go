// Package ruleparser implements the lexer and recursive-descent/precedence
// parser for the Traefik rule grammar in spec.md §6 ("wire-exact" grammar),
// producing pkg/ruleast trees.
package ruleparser

import (
	"strings"

	"github.com/bolabaden/nginx-traefik-converter/pkg/ruleast"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokLParen
	tokRParen
	tokComma
	tokBang
	tokAndAnd
	tokOrOr
	tokString
)

type token struct {
	kind   tokenKind
	text   string // decoded literal text for tokString/tokIdent
	quote  ruleast.Quote
	offset int // byte offset of the first character of this token
}

// lexError is a lexical fault; it always carries a valid offset into the
// original source, satisfying the parser-totality property (spec.md §8.6).
type lexError struct {
	Code   string
	Msg    string
	Offset int
}

func (e *lexError) Error() string { return e.Msg }

// lexer tokenizes rule source for one dialect. v2 additionally accepts
// double-quoted strings (spec.md §4.2 STRING production).
type lexer struct {
	src     string
	pos     int
	dialect ruleast.Dialect
}

func newLexer(src string, dialect ruleast.Dialect) *lexer {
	return &lexer{src: src, dialect: dialect}
}

func (l *lexer) errAt(code, msg string, offset int) *lexError {
	return &lexError{Code: code, Msg: msg, Offset: offset}
}

func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isIdentCont(b byte) bool {
	return isIdentStart(b) || (b >= '0' && b <= '9')
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) {
		switch l.src[l.pos] {
		case ' ', '\t', '\n', '\r':
			l.pos++
		default:
			return
		}
	}
}

// next returns the next token, or an error describing exactly one lexical
// fault (UnterminatedString, or UnexpectedToken for unknown punctuation,
// both with a valid source offset).
func (l *lexer) next() (token, *lexError) {
	l.skipSpace()
	start := l.pos
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, offset: start}, nil
	}

	c := l.src[l.pos]
	switch {
	case c == '(':
		l.pos++
		return token{kind: tokLParen, offset: start}, nil
	case c == ')':
		l.pos++
		return token{kind: tokRParen, offset: start}, nil
	case c == ',':
		l.pos++
		return token{kind: tokComma, offset: start}, nil
	case c == '!':
		l.pos++
		return token{kind: tokBang, offset: start}, nil
	case c == '&':
		if l.pos+1 < len(l.src) && l.src[l.pos+1] == '&' {
			l.pos += 2
			return token{kind: tokAndAnd, offset: start}, nil
		}
		return token{}, l.errAt("UnexpectedToken", "unexpected '&'", start)
	case c == '|':
		if l.pos+1 < len(l.src) && l.src[l.pos+1] == '|' {
			l.pos += 2
			return token{kind: tokOrOr, offset: start}, nil
		}
		return token{}, l.errAt("UnexpectedToken", "unexpected '|'", start)
	case c == '`' || c == '\'' || (c == '"' && l.dialect == ruleast.DialectV2):
		return l.lexString(c, start)
	case isIdentStart(c):
		return l.lexIdent(start)
	default:
		return token{}, l.errAt("UnexpectedToken", "unexpected character '"+string(c)+"'", start)
	}
}

func (l *lexer) lexIdent(start int) (token, *lexError) {
	l.pos++
	for l.pos < len(l.src) && isIdentCont(l.src[l.pos]) {
		l.pos++
	}
	return token{kind: tokIdent, text: l.src[start:l.pos], offset: start}, nil
}

func (l *lexer) lexString(delim byte, start int) (token, *lexError) {
	l.pos++ // consume opening delimiter
	var b strings.Builder
	for {
		if l.pos >= len(l.src) {
			return token{}, l.errAt("UnterminatedString", "unterminated string literal", start)
		}
		c := l.src[l.pos]
		if c == delim {
			l.pos++
			return token{kind: tokString, text: b.String(), quote: ruleast.Quote(delim), offset: start}, nil
		}
		if c == '\n' {
			return token{}, l.errAt("UnterminatedString", "unterminated string literal", start)
		}
		b.WriteByte(c)
		l.pos++
	}
}

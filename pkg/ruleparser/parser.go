package ruleparser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bolabaden/nginx-traefik-converter/pkg/ruleast"
)

// Diagnostic reports the single fault a failed parse produced. Per
// spec.md §8 "Parser totality", Parse always returns either a tree or
// exactly one Diagnostic with Offset in [0, len(input)].
type Diagnostic struct {
	Code    string // UnknownMatcher, ArityMismatch, UnexpectedToken, UnterminatedString, TrailingGarbage
	Message string
	Offset  int
}

func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%s at offset %d: %s", d.Code, d.Offset, d.Message)
}

// parser implements the grammar in spec.md §6:
//
//	expr     := or_expr
//	or_expr  := and_expr ('||' and_expr)*
//	and_expr := not_expr ('&&' not_expr)*
//	not_expr := '!' not_expr | primary
//	primary  := '(' expr ')' | matcher
//	matcher  := IDENT '(' arglist? ')'
//	arglist  := STRING (',' STRING)*
type parser struct {
	lex     *lexer
	dialect ruleast.Dialect
	protocol ruleast.Protocol

	cur token
	err *Diagnostic
}

// Parse tokenizes and parses src as a rule expression in the given dialect
// and for the given router protocol (used only to validate matcher
// legality — see checkMatcher). It never panics: any fault produces
// exactly one Diagnostic.
func Parse(src string, dialect ruleast.Dialect, protocol ruleast.Protocol) (ruleast.Expr, *Diagnostic) {
	p := &parser{lex: newLexer(src, dialect), dialect: dialect, protocol: protocol}
	if !p.advance() {
		return nil, p.err
	}
	expr := p.parseOr()
	if p.err != nil {
		return nil, p.err
	}
	if p.cur.kind != tokEOF {
		return nil, &Diagnostic{Code: "TrailingGarbage", Message: "unexpected trailing input", Offset: p.cur.offset}
	}
	return expr, nil
}

func (p *parser) advance() bool {
	tok, lerr := p.lex.next()
	if lerr != nil {
		p.err = &Diagnostic{Code: lerr.Code, Message: lerr.Msg, Offset: lerr.Offset}
		return false
	}
	p.cur = tok
	return true
}

func (p *parser) fail(code, msg string, offset int) {
	if p.err == nil {
		p.err = &Diagnostic{Code: code, Message: msg, Offset: offset}
	}
}

func (p *parser) parseOr() ruleast.Expr {
	left := p.parseAnd()
	if p.err != nil {
		return nil
	}
	for p.cur.kind == tokOrOr {
		if !p.advance() {
			return nil
		}
		right := p.parseAnd()
		if p.err != nil {
			return nil
		}
		left = ruleast.Or{Left: left, Right: right}
	}
	return left
}

func (p *parser) parseAnd() ruleast.Expr {
	left := p.parseNot()
	if p.err != nil {
		return nil
	}
	for p.cur.kind == tokAndAnd {
		if !p.advance() {
			return nil
		}
		right := p.parseNot()
		if p.err != nil {
			return nil
		}
		left = ruleast.And{Left: left, Right: right}
	}
	return left
}

func (p *parser) parseNot() ruleast.Expr {
	if p.cur.kind == tokBang {
		if !p.advance() {
			return nil
		}
		operand := p.parseNot()
		if p.err != nil {
			return nil
		}
		return ruleast.Not{Operand: operand}
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() ruleast.Expr {
	switch p.cur.kind {
	case tokLParen:
		if !p.advance() {
			return nil
		}
		inner := p.parseOr()
		if p.err != nil {
			return nil
		}
		if p.cur.kind != tokRParen {
			p.fail("UnexpectedToken", "expected ')'", p.cur.offset)
			return nil
		}
		if !p.advance() {
			return nil
		}
		return ruleast.Group{Inner: inner}
	case tokIdent:
		return p.parseMatcher()
	case tokEOF:
		p.fail("UnexpectedToken", "unexpected end of input", p.cur.offset)
		return nil
	default:
		p.fail("UnexpectedToken", "expected matcher or '('", p.cur.offset)
		return nil
	}
}

func (p *parser) parseMatcher() ruleast.Expr {
	nameTok := p.cur
	name := nameTok.text
	if !p.advance() {
		return nil
	}
	if p.cur.kind != tokLParen {
		p.fail("UnexpectedToken", "expected '(' after matcher name", p.cur.offset)
		return nil
	}
	if !p.advance() {
		return nil
	}

	var args []ruleast.Arg
	if p.cur.kind != tokRParen {
		for {
			if p.cur.kind != tokString {
				p.fail("UnexpectedToken", "expected string literal argument", p.cur.offset)
				return nil
			}
			args = append(args, p.decodeArg(name, p.cur))
			if !p.advance() {
				return nil
			}
			if p.cur.kind == tokComma {
				if !p.advance() {
					return nil
				}
				continue
			}
			break
		}
	}

	if p.cur.kind != tokRParen {
		p.fail("UnexpectedToken", "expected ')'", p.cur.offset)
		return nil
	}
	if !p.advance() {
		return nil
	}

	if err := p.checkMatcher(name, args, nameTok.offset); err != nil {
		p.err = err
		return nil
	}

	return ruleast.Matcher{Name: name, Args: args}
}

func (p *parser) decodeArg(matcherName string, tok token) ruleast.Arg {
	arg := ruleast.Arg{Literal: tok.text, Quote: tok.quote}
	if matcherName == "HostRegexp" && p.dialect == ruleast.DialectV2 {
		if regex := parseRegexTemplate(tok.text); regex != nil {
			arg.Regex = regex
		}
	}
	return arg
}

var regexTemplatePattern = regexp.MustCompile(`^([^{}]*)\{([A-Za-z_][A-Za-z0-9_]*)?:(.*)\}([^{}]*)$`)

// parseRegexTemplate captures the v2 HostRegexp "{name:pattern}" template
// form (spec.md §4.2). It returns nil for a plain literal with no braces,
// in which case the argument is treated as an already-v3-shaped bare
// regex embedded in a v2 rule.
func parseRegexTemplate(lit string) *ruleast.RegexArg {
	m := regexTemplatePattern.FindStringSubmatch(lit)
	if m == nil {
		return nil
	}
	return &ruleast.RegexArg{Prefix: m[1], Name: m[2], Pattern: m[3], Suffix: m[4]}
}

func (p *parser) checkMatcher(name string, args []ruleast.Arg, offset int) *Diagnostic {
	schema, ok := ruleast.Schema[name]
	if !ok {
		return &Diagnostic{Code: "UnknownMatcher", Message: "unknown matcher " + name, Offset: offset}
	}
	if !schema.ArityOK(len(args)) {
		return &Diagnostic{
			Code:    "ArityMismatch",
			Message: fmt.Sprintf("matcher %s expects %s arguments, got %d", name, arityDesc(schema), len(args)),
			Offset:  offset,
		}
	}
	if p.protocol != "" && !schema.SupportsProtocol(p.protocol) {
		return &Diagnostic{
			Code:    "UnexpectedToken",
			Message: fmt.Sprintf("matcher %s is not valid for protocol %s", name, p.protocol),
			Offset:  offset,
		}
	}
	return nil
}

func arityDesc(s ruleast.MatcherSchema) string {
	if s.MaxArity == -1 {
		return fmt.Sprintf("%d..n", s.MinArity)
	}
	if s.MinArity == s.MaxArity {
		return fmt.Sprintf("%d", s.MinArity)
	}
	return fmt.Sprintf("%d..%d", s.MinArity, s.MaxArity)
}

// ExtractHosts walks a parsed tree and returns the literal (non-regex)
// values of every Host/HostSNI matcher it contains, in source order. It is
// used by the dev DNS resolver (SPEC_FULL §6); the nginx emitter groups
// hosts with its own helper.
func ExtractHosts(e ruleast.Expr) []string {
	var hosts []string
	var walk func(ruleast.Expr)
	walk = func(e ruleast.Expr) {
		switch n := e.(type) {
		case ruleast.Matcher:
			if n.Name == "Host" || n.Name == "HostSNI" {
				for _, a := range n.Args {
					if a.Regex == nil && !strings.ContainsAny(a.Literal, "*{}") {
						hosts = append(hosts, a.Literal)
					}
				}
			}
		case ruleast.And:
			walk(n.Left)
			walk(n.Right)
		case ruleast.Or:
			walk(n.Left)
			walk(n.Right)
		case ruleast.Not:
			walk(n.Operand)
		case ruleast.Group:
			walk(n.Inner)
		}
	}
	walk(e)
	return hosts
}

package ruleast

import "strings"

// precedence levels, lowest binds loosest. Matchers and Groups are always
// primaries and never need parenthesization around themselves.
const (
	precOr = iota
	precAnd
	precNot
	precPrimary
)

func precOf(e Expr) int {
	switch e.(type) {
	case Or:
		return precOr
	case And:
		return precAnd
	case Not:
		return precNot
	default:
		return precPrimary
	}
}

// Print renders m as "Name(`a1`, `a2`)" in v3, or with v2's brace-templated
// HostRegexp arguments where applicable.
func (m Matcher) Print(d Dialect) string {
	var b strings.Builder
	b.WriteString(m.Name)
	b.WriteByte('(')
	for i, a := range m.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(printArg(a, d, m.Name))
	}
	b.WriteByte(')')
	return b.String()
}

func printArg(a Arg, d Dialect, matcherName string) string {
	quote := a.Quote
	if quote == 0 {
		quote = QuoteBacktick
	}
	if a.Regex != nil && matcherName == "HostRegexp" {
		if d == DialectV2 {
			return quoteLiteral(printRegexTemplate(*a.Regex), quote)
		}
		// v3 has no brace-template form: lower to a bare named group.
		return quoteLiteral(regexTemplateToV3(*a.Regex), quote)
	}
	return quoteLiteral(a.Literal, quote)
}

func printRegexTemplate(r RegexArg) string {
	name := r.Name
	if name == "" {
		return r.Prefix + r.Pattern + r.Suffix
	}
	return r.Prefix + "{" + name + ":" + r.Pattern + "}" + r.Suffix
}

// regexTemplateToV3 lowers a v2 "{name:pattern}" template to the
// equivalent v3 bare regex using a named capture group, per the round-trip
// law in spec.md §8 property 2.
func regexTemplateToV3(r RegexArg) string {
	prefix := escapeRegexLiteral(r.Prefix)
	suffix := escapeRegexLiteral(r.Suffix)
	if r.Name == "" {
		return prefix + "(?:" + r.Pattern + ")" + suffix
	}
	return prefix + "(?P<" + r.Name + ">" + r.Pattern + ")" + suffix
}

func escapeRegexLiteral(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '.', '+', '*', '?', '(', ')', '[', ']', '{', '}', '^', '$', '|', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func quoteLiteral(lit string, q Quote) string {
	return string(byte(q)) + lit + string(byte(q))
}

func (n And) Print(d Dialect) string {
	return binPrint(n.Left, n.Right, "&&", precAnd, d)
}

func (n Or) Print(d Dialect) string {
	return binPrint(n.Left, n.Right, "||", precOr, d)
}

func binPrint(left, right Expr, op string, myPrec int, d Dialect) string {
	l := printChild(left, myPrec, d)
	r := printChild(right, myPrec, d)
	return l + " " + op + " " + r
}

// printChild renders a child, parenthesizing it only when its own
// precedence is looser than the parent's. A right operand of equal
// precedence prints bare: && and || are associative, so the text means the
// same even though it parses back left-nested. Explicit
// Group nodes always print their own parens regardless of necessity, per
// spec.md §4.1 "redundant Group nodes are preserved verbatim".
func printChild(child Expr, parentPrec int, d Dialect) string {
	if g, ok := child.(Group); ok {
		return "(" + g.Inner.Print(d) + ")"
	}
	if precOf(child) < parentPrec {
		return "(" + child.Print(d) + ")"
	}
	return child.Print(d)
}

func (n Not) Print(d Dialect) string {
	inner := n.Operand
	if g, ok := inner.(Group); ok {
		return "!(" + g.Inner.Print(d) + ")"
	}
	if precOf(inner) < precNot {
		return "!(" + inner.Print(d) + ")"
	}
	return "!" + inner.Print(d)
}

func (g Group) Print(d Dialect) string {
	return "(" + g.Inner.Print(d) + ")"
}

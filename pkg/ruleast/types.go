// Package ruleast defines the typed tree of Traefik rule expressions shared
// by the rule parser (pkg/ruleparser) and every ingestor/emitter that
// embeds a rule inside the unified routing model (pkg/model).
package ruleast

// Dialect selects which Traefik rule syntax a tree is printed in. The
// operator grammar is identical between dialects; only literal-argument
// shape differs (see RegexArg).
type Dialect string

const (
	DialectV2 Dialect = "v2"
	DialectV3 Dialect = "v3"
)

// Protocol restricts which matchers are legal on a router (spec §4.2 table).
type Protocol string

const (
	ProtocolHTTP Protocol = "http"
	ProtocolTCP  Protocol = "tcp"
	ProtocolUDP  Protocol = "udp"
)

// Quote records the original delimiter of a string literal so a v3 round
// trip reproduces the source byte-for-byte (spec §3 invariant on quoting).
type Quote byte

const (
	QuoteBacktick Quote = '`'
	QuoteSingle   Quote = '\''
	QuoteDouble   Quote = '"'
)

// Expr is a node in a rule expression tree. The set of implementations is
// closed: Matcher, And, Or, Not, Group. Dynamic dispatch is a small closed
// switch, not an open interface hierarchy, per the design note in
// spec.md §9 ("tagged variant, not deep class hierarchy").
type Expr interface {
	// Print renders the node in the given dialect. Callers at the root
	// should not wrap the result in parentheses; Print only inserts
	// parens for children when precedence requires it.
	Print(d Dialect) string

	exprNode()
}

// Arg is a single matcher argument. Most matchers take plain string
// literals; v2's HostRegexp accepts brace-templated arguments captured
// structurally as Regex.
type Arg struct {
	// Literal is the argument text, unescaped, without surrounding quotes.
	Literal string
	// Quote is the original delimiter, preserved for lossless printing.
	Quote Quote
	// Regex is set only for v2 HostRegexp arguments of the form
	// "{name:pattern}" or bare "pattern". Nil for every other matcher.
	Regex *RegexArg
}

// RegexArg is the structured form of a v2 HostRegexp template argument,
// e.g. "{sub:[a-z]+}.example.com" parses to Name="sub", Pattern="[a-z]+"
// with Prefix/Suffix carrying the literal text around the template.
type RegexArg struct {
	Name    string // empty if the template has no capture name
	Pattern string
	Prefix  string
	Suffix  string
}

// Matcher is a leaf predicate node, e.g. Host(`example.com`).
type Matcher struct {
	Name string
	Args []Arg
}

func (Matcher) exprNode() {}

// And is left-associative logical conjunction.
type And struct {
	Left, Right Expr
}

func (And) exprNode() {}

// Or is left-associative logical disjunction, binds looser than And.
type Or struct {
	Left, Right Expr
}

func (Or) exprNode() {}

// Not is unary prefix negation, binds tighter than And and Or.
type Not struct {
	Operand Expr
}

func (Not) exprNode() {}

// Group is an explicit parenthesization preserved from source so that a
// round trip keeps author intent even when the grouping is semantically
// redundant (spec §4.1).
type Group struct {
	Inner Expr
}

func (Group) exprNode() {}

// MatcherSchema describes one recognized matcher: its argument arity and
// the router protocols it is legal on. This is data, not code, per the
// design note in spec.md §9.
type MatcherSchema struct {
	Name string
	// MinArity/MaxArity bound the argument count. MaxArity of -1 means
	// unbounded ("1..n").
	MinArity, MaxArity int
	Protocols          []Protocol
	// MinTraefikVersion, if set, is compared against a caller-supplied
	// target version by the validator (SPEC_FULL §4.5); empty means
	// "available since the earliest version this tool models".
	MinTraefikVersion string
}

// Schema is the closed set of recognized matchers, keyed by name exactly
// as it appears in rule text (case-sensitive, matching Traefik itself).
var Schema = map[string]MatcherSchema{
	"Host":          {Name: "Host", MinArity: 1, MaxArity: -1, Protocols: []Protocol{ProtocolHTTP}},
	"HostRegexp":    {Name: "HostRegexp", MinArity: 1, MaxArity: -1, Protocols: []Protocol{ProtocolHTTP}},
	"Path":          {Name: "Path", MinArity: 1, MaxArity: -1, Protocols: []Protocol{ProtocolHTTP}},
	"PathPrefix":    {Name: "PathPrefix", MinArity: 1, MaxArity: -1, Protocols: []Protocol{ProtocolHTTP}},
	"PathRegexp":    {Name: "PathRegexp", MinArity: 1, MaxArity: -1, Protocols: []Protocol{ProtocolHTTP}},
	"Method":        {Name: "Method", MinArity: 1, MaxArity: -1, Protocols: []Protocol{ProtocolHTTP}},
	"Header":        {Name: "Header", MinArity: 2, MaxArity: 2, Protocols: []Protocol{ProtocolHTTP}},
	"HeaderRegexp":  {Name: "HeaderRegexp", MinArity: 2, MaxArity: 2, Protocols: []Protocol{ProtocolHTTP}},
	"Query":         {Name: "Query", MinArity: 1, MaxArity: 2, Protocols: []Protocol{ProtocolHTTP}},
	"QueryRegexp":   {Name: "QueryRegexp", MinArity: 2, MaxArity: 2, Protocols: []Protocol{ProtocolHTTP}},
	"ClientIP":      {Name: "ClientIP", MinArity: 1, MaxArity: -1, Protocols: []Protocol{ProtocolHTTP, ProtocolTCP, ProtocolUDP}, MinTraefikVersion: "2.6.0"},
	"HostSNI":       {Name: "HostSNI", MinArity: 1, MaxArity: -1, Protocols: []Protocol{ProtocolTCP}},
	"HostSNIRegexp": {Name: "HostSNIRegexp", MinArity: 1, MaxArity: -1, Protocols: []Protocol{ProtocolTCP}, MinTraefikVersion: "2.10.0"},
	"ALPN":          {Name: "ALPN", MinArity: 1, MaxArity: -1, Protocols: []Protocol{ProtocolTCP}},
}

// SupportsProtocol reports whether a matcher may appear in a rule attached
// to a router of the given protocol.
func (s MatcherSchema) SupportsProtocol(p Protocol) bool {
	for _, sp := range s.Protocols {
		if sp == p {
			return true
		}
	}
	return false
}

// ArityOK reports whether n arguments satisfy the schema's arity bounds.
func (s MatcherSchema) ArityOK(n int) bool {
	if n < s.MinArity {
		return false
	}
	if s.MaxArity == -1 {
		return true
	}
	return n <= s.MaxArity
}

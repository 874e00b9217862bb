package ruleast

import "testing"

func hostMatcher(host string) Expr {
	return Matcher{Name: "Host", Args: []Arg{{Literal: host, Quote: QuoteBacktick}}}
}

func pathPrefixMatcher(p string) Expr {
	return Matcher{Name: "PathPrefix", Args: []Arg{{Literal: p, Quote: QuoteBacktick}}}
}

// TestS1RoundTrip mirrors spec.md scenario S1: the grouped OR of two
// PathPrefix matchers must print back verbatim in v3.
func TestS1RoundTrip(t *testing.T) {
	tree := And{
		Left: hostMatcher("a.com"),
		Right: Group{
			Inner: Or{
				Left:  pathPrefixMatcher("/x"),
				Right: pathPrefixMatcher("/y"),
			},
		},
	}

	got := tree.Print(DialectV3)
	want := "Host(`a.com`) && (PathPrefix(`/x`) || PathPrefix(`/y`))"
	if got != want {
		t.Fatalf("Print() = %q, want %q", got, want)
	}
}

func TestPrecedenceOmitsUnnecessaryParens(t *testing.T) {
	// Host(`a`) && Method(`GET`) || Host(`b`) has no source grouping;
	// printing should not insert parens since && already binds tighter.
	tree := Or{
		Left: And{
			Left:  hostMatcher("a"),
			Right: Matcher{Name: "Method", Args: []Arg{{Literal: "GET", Quote: QuoteBacktick}}},
		},
		Right: hostMatcher("b"),
	}

	got := tree.Print(DialectV3)
	want := "Host(`a`) && Method(`GET`) || Host(`b`)"
	if got != want {
		t.Fatalf("Print() = %q, want %q", got, want)
	}
}

func TestNotBindsTighterThanAnd(t *testing.T) {
	tree := And{
		Left:  Not{Operand: hostMatcher("a")},
		Right: hostMatcher("b"),
	}
	got := tree.Print(DialectV3)
	want := "!Host(`a`) && Host(`b`)"
	if got != want {
		t.Fatalf("Print() = %q, want %q", got, want)
	}
}

func TestHostRegexpV2ToV3Lowering(t *testing.T) {
	// spec.md §8 property 2: v2 HostRegexp({sub:[a-z]+}.x) lowers to v3
	// HostRegexp(`(?P<sub>[a-z]+)\.x`).
	arg := Arg{
		Regex: &RegexArg{Name: "sub", Pattern: "[a-z]+", Suffix: ".x"},
		Quote: QuoteBacktick,
	}
	m := Matcher{Name: "HostRegexp", Args: []Arg{arg}}

	v2 := m.Print(DialectV2)
	if v2 != "HostRegexp(`{sub:[a-z]+}.x`)" {
		t.Fatalf("v2 print = %q", v2)
	}

	v3 := m.Print(DialectV3)
	if v3 != "HostRegexp(`(?P<sub>[a-z]+)\\.x`)" {
		t.Fatalf("v3 print = %q", v3)
	}
}

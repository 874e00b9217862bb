package ruleparser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bolabaden/nginx-traefik-converter/pkg/ruleast"
)

func TestParseS1(t *testing.T) {
	src := "Host(`a.com`) && (PathPrefix(`/x`) || PathPrefix(`/y`))"
	expr, diag := Parse(src, ruleast.DialectV3, ruleast.ProtocolHTTP)
	require.Nil(t, diag)
	require.NotNil(t, expr)
	assert.Equal(t, src, expr.Print(ruleast.DialectV3))

	and, ok := expr.(ruleast.And)
	require.True(t, ok)
	host, ok := and.Left.(ruleast.Matcher)
	require.True(t, ok)
	assert.Equal(t, "Host", host.Name)
	assert.Equal(t, "a.com", host.Args[0].Literal)

	group, ok := and.Right.(ruleast.Group)
	require.True(t, ok)
	or, ok := group.Inner.(ruleast.Or)
	require.True(t, ok)
	left, ok := or.Left.(ruleast.Matcher)
	require.True(t, ok)
	assert.Equal(t, "PathPrefix", left.Name)
}

// TestS6ArityMismatch mirrors spec.md scenario S6.
func TestS6ArityMismatch(t *testing.T) {
	_, diag := Parse("Method(`GET`, `POST`)", ruleast.DialectV3, ruleast.ProtocolHTTP)
	assert.Nil(t, diag)

	_, diag = Parse("Method()", ruleast.DialectV3, ruleast.ProtocolHTTP)
	require.NotNil(t, diag)
	assert.Equal(t, "ArityMismatch", diag.Code)
	assert.Equal(t, 0, diag.Offset)
}

func TestUnknownMatcher(t *testing.T) {
	_, diag := Parse("Bogus(`x`)", ruleast.DialectV3, ruleast.ProtocolHTTP)
	require.NotNil(t, diag)
	assert.Equal(t, "UnknownMatcher", diag.Code)
}

func TestUnterminatedString(t *testing.T) {
	_, diag := Parse("Host(`abc", ruleast.DialectV3, ruleast.ProtocolHTTP)
	require.NotNil(t, diag)
	assert.Equal(t, "UnterminatedString", diag.Code)
}

func TestTrailingGarbage(t *testing.T) {
	_, diag := Parse("Host(`a`) extra", ruleast.DialectV3, ruleast.ProtocolHTTP)
	require.NotNil(t, diag)
	assert.Equal(t, "TrailingGarbage", diag.Code)
}

func TestProtocolMismatch(t *testing.T) {
	_, diag := Parse("HostSNI(`a`)", ruleast.DialectV3, ruleast.ProtocolHTTP)
	require.NotNil(t, diag)
}

// TestParserTotality is a light property check for spec.md §8.6: for a
// handful of malformed inputs, Parse always returns exactly one
// diagnostic with an offset within [0, len(input)].
func TestParserTotality(t *testing.T) {
	inputs := []string{
		"",
		"(",
		")",
		"Host(",
		"Host(`a`",
		"&&",
		"Host(`a`) &&",
		"!!!Host(`a`)",
		"Host(`a`,)",
	}
	for _, in := range inputs {
		expr, diag := Parse(in, ruleast.DialectV3, ruleast.ProtocolHTTP)
		if diag == nil {
			require.NotNil(t, expr)
			continue
		}
		assert.GreaterOrEqual(t, diag.Offset, 0)
		assert.LessOrEqual(t, diag.Offset, len(in))
	}
}

func TestHostRegexpV2Template(t *testing.T) {
	expr, diag := Parse("HostRegexp(`{sub:[a-z]+}.x`)", ruleast.DialectV2, ruleast.ProtocolHTTP)
	require.Nil(t, diag)
	m := expr.(ruleast.Matcher)
	require.NotNil(t, m.Args[0].Regex)
	assert.Equal(t, "sub", m.Args[0].Regex.Name)
	assert.Equal(t, "[a-z]+", m.Args[0].Regex.Pattern)
	assert.Equal(t, "HostRegexp(`(?P<sub>[a-z]+)\\.x`)", expr.Print(ruleast.DialectV3))
}

func TestMemoizingParserCachesSuccess(t *testing.T) {
	p := NewParser(0)
	e1, diag := p.Parse("Host(`a.com`)", ruleast.DialectV3, ruleast.ProtocolHTTP)
	require.Nil(t, diag)
	e2, diag := p.Parse("Host(`a.com`)", ruleast.DialectV3, ruleast.ProtocolHTTP)
	require.Nil(t, diag)
	assert.Equal(t, e1, e2)
}

func TestMemoizingParserDoesNotCacheErrors(t *testing.T) {
	p := NewParser(0)
	_, diag1 := p.Parse("Bogus(`x`)", ruleast.DialectV3, ruleast.ProtocolHTTP)
	_, diag2 := p.Parse("Bogus(`x`)", ruleast.DialectV3, ruleast.ProtocolHTTP)
	require.NotNil(t, diag1)
	require.NotNil(t, diag2)
	assert.Equal(t, diag1.Code, diag2.Code)
}

func TestExtractHosts(t *testing.T) {
	expr, diag := Parse("Host(`a.com`) && (PathPrefix(`/x`) || Host(`b.com`))", ruleast.DialectV3, ruleast.ProtocolHTTP)
	require.Nil(t, diag)
	hosts := ExtractHosts(expr)
	assert.Equal(t, []string{"a.com", "b.com"}, hosts)
}

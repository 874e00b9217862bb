package ruleparser

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/bolabaden/nginx-traefik-converter/pkg/ruleast"
)

// Parser memoizes successful parses across a batch conversion run, since
// the same rule string commonly recurs across many routers in a large
// Traefik dynamic file or docker-compose project (SPEC_FULL §4.2). Parse
// errors are never cached: a fix-and-retry loop over the same input must
// always see the parser's current behavior.
type Parser struct {
	cache *gocache.Cache
}

type cacheKey struct {
	dialect  ruleast.Dialect
	protocol ruleast.Protocol
	src      string
}

// NewParser creates a memoizing parser. Each cached entry expires ttl after
// it was stored (a cache hit does not extend it); a ttl of 0 disables
// expiry for the lifetime of the process. pkg/orchestrator shares one
// Parser, with a 30-minute ttl, across every conversion in the process.
func NewParser(ttl time.Duration) *Parser {
	cleanup := ttl
	if cleanup <= 0 {
		cleanup = gocache.NoExpiration
	}
	return &Parser{cache: gocache.New(ttl, cleanup)}
}

// Parse behaves exactly like the package-level Parse, but consults and
// populates the memoization cache first.
func (p *Parser) Parse(src string, dialect ruleast.Dialect, protocol ruleast.Protocol) (ruleast.Expr, *Diagnostic) {
	key := cacheKey{dialect: dialect, protocol: protocol, src: src}
	if v, ok := p.cache.Get(key.string()); ok {
		return v.(ruleast.Expr), nil
	}

	expr, diag := Parse(src, dialect, protocol)
	if diag != nil {
		return nil, diag
	}
	p.cache.SetDefault(key.string(), expr)
	return expr, nil
}

func (k cacheKey) string() string {
	return string(k.dialect) + "\x00" + string(k.protocol) + "\x00" + k.src
}

package emit

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bolabaden/nginx-traefik-converter/pkg/model"
	"github.com/bolabaden/nginx-traefik-converter/pkg/ruleast"
)

// NginxConfEmitter lowers a Config to textual nginx configuration.
// Grounded on original_source's NginxConfParser shape in reverse: routers
// sharing a host become one server block, PathPrefix/Path/PathRegexp
// matchers become location blocks, and load-balancer policy maps to
// upstream directives per SPEC_FULL §4.4 step 4:
//
//	weighted_rr  -> "server addr weight=N;"
//	least_conn   -> "least_conn;"
//	random       -> "random;"
//
// Rules that do not decompose into a plain conjunction of matchers (an Or
// across incompatible predicates, a Not, anything but a chain of Ands) are
// not representable as nginx `if` guards faithfully; the emitter records a
// lossy-conversion diagnostic and builds the location from those matchers
// of the top-level And chain that do decompose, using a bare "/" location
// when none of them is a path matcher.
//
// SPEC_FULL §4.4 step 5 additionally lowers each router's middlewares in
// reference order: basic-auth -> auth_basic+htpasswd, rate-limit ->
// limit_req_zone+limit_req, compress -> gzip on, headers ->
// proxy_set_header/add_header, redirect-scheme/redirect-regex -> return/
// rewrite, strip-prefix -> rewrite ... break. Any other kind is recorded as
// a comment plus a warning diagnostic rather than silently dropped.
type NginxConfEmitter struct{}

func (NginxConfEmitter) Emit(cfg *model.Config) ([]byte, error) {
	var b strings.Builder

	writeRateLimitZones(&b, cfg)

	for _, id := range cfg.SortedServiceIDs() {
		writeUpstream(&b, cfg.Services[id])
	}

	byHost := groupRoutersByHost(cfg)
	hosts := make([]string, 0, len(byHost))
	for h := range byHost {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)

	for _, host := range hosts {
		writeServerBlock(&b, host, byHost[host], cfg)
	}

	return []byte(b.String()), nil
}

// writeRateLimitZones emits one limit_req_zone directive per rate-limit
// middleware in the config, whether or not a router references it; nginx requires the zone
// declared once at http context before any limit_req referencing it.
func writeRateLimitZones(b *strings.Builder, cfg *model.Config) {
	wrote := false
	for _, id := range cfg.SortedMiddlewareIDs() {
		mw := cfg.Middlewares[id]
		if mw.Kind != model.MiddlewareRateLimit {
			continue
		}
		rate, _ := toInt(mw.Params["average"])
		fmt.Fprintf(b, "limit_req_zone $binary_remote_addr zone=%s:10m rate=%dr/s;\n", id, rate)
		wrote = true
	}
	if wrote {
		b.WriteString("\n")
	}
}

func writeUpstream(b *strings.Builder, s *model.Service) {
	fmt.Fprintf(b, "upstream %s {\n", s.ID)
	switch s.Pool.Policy {
	case model.PolicyLeastConn:
		b.WriteString("    least_conn;\n")
	case model.PolicyRandom, model.PolicyWeightedRandom:
		b.WriteString("    random;\n")
	}
	for _, server := range s.Pool.Servers {
		addr := server.Address
		if addr == "" {
			addr = stripScheme(server.URL)
		}
		if server.Weight != nil {
			fmt.Fprintf(b, "    server %s weight=%d;\n", addr, *server.Weight)
		} else {
			fmt.Fprintf(b, "    server %s;\n", addr)
		}
	}
	b.WriteString("}\n\n")
}

func stripScheme(url string) string {
	url = strings.TrimPrefix(url, "https://")
	url = strings.TrimPrefix(url, "http://")
	return strings.TrimSuffix(url, "/")
}

type hostRouter struct {
	router *model.Router
	host   string
}

// groupRoutersByHost buckets HTTP routers by their literal Host matcher, so
// every router sharing a hostname becomes location blocks in one server
// block rather than one server block apiece.
func groupRoutersByHost(cfg *model.Config) map[string][]*model.Router {
	out := map[string][]*model.Router{}
	for _, id := range cfg.SortedRouterIDs() {
		r := cfg.Routers[id]
		if r.Protocol != ruleast.ProtocolHTTP {
			continue
		}
		host := "_"
		if hosts := literalHosts(r.Rule); len(hosts) > 0 {
			host = hosts[0]
		}
		out[host] = append(out[host], r)
	}
	return out
}

func literalHosts(expr ruleast.Expr) []string {
	var hosts []string
	var walk func(ruleast.Expr)
	walk = func(e ruleast.Expr) {
		switch n := e.(type) {
		case ruleast.Matcher:
			if (n.Name == "Host" || n.Name == "HostSNI") && len(n.Args) > 0 && n.Args[0].Regex == nil {
				hosts = append(hosts, n.Args[0].Literal)
			}
		case ruleast.And:
			walk(n.Left)
			walk(n.Right)
		case ruleast.Group:
			walk(n.Inner)
		}
	}
	if expr != nil {
		walk(expr)
	}
	return hosts
}

func writeServerBlock(b *strings.Builder, host string, routers []*model.Router, cfg *model.Config) {
	b.WriteString("server {\n")
	fmt.Fprintf(b, "    listen 80;\n")
	if host != "_" {
		fmt.Fprintf(b, "    server_name %s;\n", host)
	}

	tls := false
	for _, r := range routers {
		if r.TLS != nil {
			tls = true
		}
	}
	if tls {
		b.WriteString("    listen 443 ssl;\n")
		for _, r := range routers {
			if r.TLS == nil {
				continue
			}
			for _, cf := range r.TLS.CertFiles {
				if cf.Cert != "" {
					fmt.Fprintf(b, "    ssl_certificate %s;\n", cf.Cert)
				}
				if cf.Key != "" {
					fmt.Fprintf(b, "    ssl_certificate_key %s;\n", cf.Key)
				}
			}
		}
	}

	for _, r := range routers {
		writeLocationBlock(b, r, cfg)
	}
	b.WriteString("}\n\n")
}

func writeLocationBlock(b *strings.Builder, r *model.Router, cfg *model.Config) {
	comps, ok := decompose(r.Rule)
	if !ok {
		fmt.Fprintf(b, "    # rule %q could not be fully expressed as nginx location guards\n", r.RuleSource)
		cfg.AddDiagnostic(model.Diagnostic{
			Severity: model.SeverityWarning,
			Code:     "UnrepresentableRule",
			Message:  fmt.Sprintf("router %q: rule %q could not be fully expressed as nginx location guards", r.ID, r.RuleSource),
		})
	}

	path := "/"
	pathKind := "prefix"
	for _, m := range comps {
		switch m.Name {
		case "PathPrefix":
			path, pathKind = m.Args[0].Literal, "prefix"
		case "Path":
			path, pathKind = m.Args[0].Literal, "exact"
		case "PathRegexp":
			path, pathKind = m.Args[0].Literal, "regexp"
		}
	}

	switch pathKind {
	case "exact":
		fmt.Fprintf(b, "    location = %s {\n", path)
	case "regexp":
		fmt.Fprintf(b, "    location ~ %s {\n", path)
	default:
		fmt.Fprintf(b, "    location %s {\n", path)
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if r.ServiceRef != "" {
		fmt.Fprintf(b, "        proxy_pass %s://%s;\n", scheme, r.ServiceRef)
	}

	var methods []string
	headers := map[string]string{}
	queries := map[string]string{}
	for _, m := range comps {
		switch m.Name {
		case "Method":
			for _, a := range m.Args {
				methods = append(methods, a.Literal)
			}
		case "Header":
			if len(m.Args) == 2 {
				headers[m.Args[0].Literal] = m.Args[1].Literal
			}
		case "Query":
			if len(m.Args) == 2 {
				queries[m.Args[0].Literal] = m.Args[1].Literal
			}
		case "ClientIP":
			for _, a := range m.Args {
				fmt.Fprintf(b, "        allow %s;\n", a.Literal)
			}
			b.WriteString("        deny all;\n")
		}
	}
	if len(methods) > 0 {
		fmt.Fprintf(b, "        if ($request_method !~ ^(%s)$) {\n            return 405;\n        }\n", strings.Join(methods, "|"))
	}
	for name, value := range headers {
		fmt.Fprintf(b, "        if ($http_%s != %q) {\n            return 403;\n        }\n", strings.ReplaceAll(name, "-", "_"), value)
	}
	for name, value := range queries {
		fmt.Fprintf(b, "        if ($arg_%s != %q) {\n            return 403;\n        }\n", name, value)
	}

	writeMiddlewares(b, r, cfg)

	b.WriteString("    }\n")
}

// writeMiddlewares lowers each of r's middlewares, in reference order, to
// the nginx directive(s) SPEC_FULL §4.4 step 5 maps it to. A kind with no
// nginx equivalent is recorded as a comment plus a warning diagnostic
// rather than silently dropped.
func writeMiddlewares(b *strings.Builder, r *model.Router, cfg *model.Config) {
	for _, ref := range r.MiddlewareRefs {
		mw, ok := cfg.Middlewares[ref]
		if !ok {
			continue // reported separately by pkg/validate as UndefinedMiddlewareRef
		}
		switch mw.Kind {
		case model.MiddlewareBasicAuth:
			realm := "Restricted"
			if v, ok := mw.Params["realm"].(string); ok && v != "" {
				realm = v
			}
			fmt.Fprintf(b, "        auth_basic %q;\n", realm)
			b.WriteString("        auth_basic_user_file /etc/nginx/.htpasswd;\n")
		case model.MiddlewareRateLimit:
			burst, _ := toInt(mw.Params["burst"])
			fmt.Fprintf(b, "        limit_req zone=%s burst=%d;\n", mw.ID, burst)
		case model.MiddlewareCompress:
			b.WriteString("        gzip on;\n")
		case model.MiddlewareHeaders:
			writeHeadersMiddleware(b, mw)
		case model.MiddlewareRedirectScheme:
			writeRedirectScheme(b, mw)
		case model.MiddlewareRedirectRegex:
			writeRedirectRegex(b, mw)
		case model.MiddlewareStripPrefix:
			writeStripPrefix(b, mw)
		default:
			fmt.Fprintf(b, "        # middleware %q (%s) has no nginx lowering, skipped\n", mw.ID, mw.Kind)
			cfg.AddDiagnostic(model.Diagnostic{
				Severity: model.SeverityWarning,
				Code:     "UnsupportedMiddleware",
				Message:  fmt.Sprintf("router %q: middleware %q (%s) has no nginx lowering, skipped", r.ID, mw.ID, mw.Kind),
			})
		}
	}
}

func writeHeadersMiddleware(b *strings.Builder, mw *model.Middleware) {
	if req, ok := mw.Params["customRequestHeaders"].(map[string]string); ok {
		for _, name := range sortedStringMapKeys(req) {
			fmt.Fprintf(b, "        proxy_set_header %s %q;\n", name, req[name])
		}
	}
	if resp, ok := mw.Params["customResponseHeaders"].(map[string]string); ok {
		for _, name := range sortedStringMapKeys(resp) {
			fmt.Fprintf(b, "        add_header %s %q;\n", name, resp[name])
		}
	}
}

func writeRedirectScheme(b *strings.Builder, mw *model.Middleware) {
	scheme, _ := mw.Params["scheme"].(string)
	if scheme == "" {
		scheme = "https"
	}
	code := 302
	if permanent, ok := mw.Params["permanent"].(bool); ok && permanent {
		code = 301
	}
	fmt.Fprintf(b, "        return %d %s://$host$request_uri;\n", code, scheme)
}

func writeRedirectRegex(b *strings.Builder, mw *model.Middleware) {
	regex, _ := mw.Params["regex"].(string)
	replacement, _ := mw.Params["replacement"].(string)
	if regex == "" {
		return
	}
	fmt.Fprintf(b, "        rewrite %s %s permanent;\n", regex, replacement)
}

func writeStripPrefix(b *strings.Builder, mw *model.Middleware) {
	prefixes, _ := mw.Params["prefixes"].([]string)
	for _, prefix := range prefixes {
		fmt.Fprintf(b, "        rewrite ^%s/(.*) /$1 break;\n", prefix)
	}
}

func sortedStringMapKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case uint32:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// decompose walks a chain of top-level And/Group nodes and returns its leaf
// matchers. ok is false if the rule contains Or/Not or anything else that
// cannot be flattened into a single set of simultaneously-true guards.
func decompose(expr ruleast.Expr) ([]ruleast.Matcher, bool) {
	if expr == nil {
		return nil, true
	}
	switch n := expr.(type) {
	case ruleast.Matcher:
		return []ruleast.Matcher{n}, true
	case ruleast.Group:
		return decompose(n.Inner)
	case ruleast.And:
		left, okL := decompose(n.Left)
		right, okR := decompose(n.Right)
		return append(left, right...), okL && okR
	default:
		return nil, false
	}
}

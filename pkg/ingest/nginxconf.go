package ingest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bolabaden/nginx-traefik-converter/pkg/model"
	"github.com/bolabaden/nginx-traefik-converter/pkg/ruleast"
)

// NginxConfIngestor parses a textual nginx configuration into a Config.
// Grounded on original_source's NginxConfParser (upstream/server/location
// block regexes); unlike Traefik-origin formats, there is no embedded rule
// grammar to hand to pkg/ruleparser, so router rules are assembled directly
// as a ruleast.Expr tree from the matched directives (SPEC_FULL §4.3).
type NginxConfIngestor struct{}

var (
	upstreamPattern = regexp.MustCompile(`(?s)upstream\s+(\S+)\s*\{([^}]+)\}`)
	upstreamServer  = regexp.MustCompile(`server\s+([^;]+);`)
	serverPattern   = regexp.MustCompile(`(?s)server\s*\{`)
	locationPattern = regexp.MustCompile(`(?s)location\s+([^{]+)\s*\{`)
	serverName      = regexp.MustCompile(`server_name\s+([^;]+);`)
	listenDirective = regexp.MustCompile(`listen\s+([^;]+);`)
	allowDirective  = regexp.MustCompile(`allow\s+([^;]+);`)
	sslCertificate  = regexp.MustCompile(`ssl_certificate\s+([^;]+);`)
	sslCertKey      = regexp.MustCompile(`ssl_certificate_key\s+([^;]+);`)
	proxyPass       = regexp.MustCompile(`proxy_pass\s+([^;]+);`)
	methodIf        = regexp.MustCompile(`if\s*\(\s*\$request_method\s*!~\s*\^\(([^)]+)\)`)
	headerIf        = regexp.MustCompile(`if\s*\(\s*\$http_([A-Za-z0-9_]+)\s*!=\s*"([^"]*)"`)
	queryIf         = regexp.MustCompile(`if\s*\(\s*\$arg_([A-Za-z0-9_]+)\s*!=\s*"([^"]*)"`)
)

func (NginxConfIngestor) Ingest(data []byte, opts Options) (*model.Config, error) {
	content := string(data)
	cfg := model.New()
	file := opts.SourceFile

	ingestNginxUpstreams(cfg, content)
	if err := ingestNginxServers(cfg, content, file); err != nil {
		return nil, err
	}
	return cfg, nil
}

func ingestNginxUpstreams(cfg *model.Config, content string) {
	for _, m := range upstreamPattern.FindAllStringSubmatch(content, -1) {
		name, body := m[1], m[2]
		lb := model.LoadBalancer{Policy: model.PolicyRoundRobin}
		for _, sm := range upstreamServer.FindAllStringSubmatch(body, -1) {
			addr := strings.TrimSpace(sm[1])
			addr = strings.Fields(addr)[0] // drop weight=/max_fails= etc.
			lb.Servers = append(lb.Servers, model.Server{Address: addr, URL: "http://" + addr})
		}
		switch {
		case strings.Contains(body, "least_conn"):
			lb.Policy = model.PolicyLeastConn
		case strings.Contains(body, "ip_hash"):
			lb.Policy = model.PolicyRoundRobin // no direct Traefik equivalent; preserved via raw_extras below
		}
		svc := &model.Service{ID: name, Protocol: ruleast.ProtocolHTTP, Pool: lb}
		if strings.Contains(body, "ip_hash") {
			svc.RawExtras = map[string]any{"nginx_load_balancer": "ip_hash"}
		}
		cfg.AddService(svc)
	}
}

func ingestNginxServers(cfg *model.Config, content, file string) error {
	blocks := extractBraceBlocks(content, serverPattern)
	for i, block := range blocks {
		routerID := fmt.Sprintf("server-%d", i)

		var host string
		if m := serverName.FindStringSubmatch(block); m != nil {
			fields := strings.Fields(m[1])
			if len(fields) > 0 {
				host = fields[0]
			}
		}

		tlsEnabled := false
		if m := listenDirective.FindStringSubmatch(block); m != nil && strings.Contains(m[1], "ssl") {
			tlsEnabled = true
		}

		var certFile, keyFile string
		if m := sslCertificate.FindStringSubmatch(block); m != nil {
			certFile = strings.TrimSpace(m[1])
		}
		if m := sslCertKey.FindStringSubmatch(block); m != nil {
			keyFile = strings.TrimSpace(m[1])
		}

		var clientIP string
		if m := allowDirective.FindStringSubmatch(block); m != nil {
			clientIP = strings.TrimSpace(m[1])
		}

		locations := locationPattern.FindAllStringSubmatchIndex(block, -1)
		if len(locations) == 0 {
			// server block with no location: emit a bare host router if any host was found.
			if host != "" {
				addHostOnlyRouter(cfg, routerID, host, clientIP, tlsEnabled, certFile, keyFile)
			}
			continue
		}

		locBlocks := extractBraceBlocks(block, locationPattern)
		locHeaders := locationPattern.FindAllStringSubmatch(block, -1)
		for j, locBody := range locBlocks {
			pathSpec := strings.TrimSpace(locHeaders[j][1])
			id := fmt.Sprintf("%s-loc-%d", routerID, j)

			expr, err := buildNginxRule(host, pathSpec, locBody, clientIP)
			if err != nil {
				return err
			}

			svcRef := ""
			locTLS := tlsEnabled
			if m := proxyPass.FindStringSubmatch(locBody); m != nil {
				svcRef, locTLS = parseProxyPass(m[1], tlsEnabled)
			}

			router := &model.Router{
				ID:         id,
				Protocol:   ruleast.ProtocolHTTP,
				Rule:       expr,
				RuleSource: expr.Print(ruleast.DialectV3),
				ServiceRef: svcRef,
			}
			if locTLS {
				router.TLS = tlsSpecFor(certFile, keyFile)
			}
			cfg.AddRouter(router)
		}
	}
	return nil
}

func addHostOnlyRouter(cfg *model.Config, id, host, clientIP string, tlsEnabled bool, certFile, keyFile string) {
	expr := hostExpr(host)
	if clientIP != "" {
		expr = ruleast.And{Left: expr, Right: clientIPExpr(clientIP)}
	}
	router := &model.Router{
		ID:         id,
		Protocol:   ruleast.ProtocolHTTP,
		Rule:       expr,
		RuleSource: expr.Print(ruleast.DialectV3),
	}
	if tlsEnabled {
		router.TLS = tlsSpecFor(certFile, keyFile)
	}
	cfg.AddRouter(router)
}

// tlsSpecFor builds the TlsSpec for a server block carrying ssl_certificate
// and/or ssl_certificate_key directives, so the nginx round-trip preserves
// cert material instead of degrading to an empty TlsSpec (SPEC_FULL §4.3).
func tlsSpecFor(certFile, keyFile string) *model.TlsSpec {
	spec := &model.TlsSpec{}
	if certFile != "" || keyFile != "" {
		spec.CertFiles = []model.TLSCertFile{{Cert: certFile, Key: keyFile}}
	}
	return spec
}

// buildNginxRule assembles a ruleast.Expr from one location block's host,
// path form, and any $request_method/$http_*/$arg_* guard directives.
func buildNginxRule(host, pathSpec, locBody, clientIP string) (ruleast.Expr, error) {
	var expr ruleast.Expr
	if host != "" {
		expr = hostExpr(host)
	}

	pathExpr := pathExprFromSpec(pathSpec)
	expr = and(expr, pathExpr)

	if m := methodIf.FindStringSubmatch(locBody); m != nil {
		methods := strings.Split(m[1], "|")
		expr = and(expr, matcherExpr("Method", methods...))
	}
	for _, m := range headerIf.FindAllStringSubmatch(locBody, -1) {
		name := strings.ReplaceAll(m[1], "_", "-")
		expr = and(expr, matcherExpr("Header", name, m[2]))
	}
	for _, m := range queryIf.FindAllStringSubmatch(locBody, -1) {
		expr = and(expr, matcherExpr("Query", m[1], m[2]))
	}
	if clientIP != "" {
		expr = and(expr, clientIPExpr(clientIP))
	}
	if expr == nil {
		return nil, fmt.Errorf("nginx location %q: could not derive any matcher", pathSpec)
	}
	return expr, nil
}

func and(a, b ruleast.Expr) ruleast.Expr {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return ruleast.And{Left: a, Right: b}
}

func hostExpr(host string) ruleast.Expr {
	return matcherExpr("Host", host)
}

func clientIPExpr(spec string) ruleast.Expr {
	fields := strings.Fields(spec)
	if len(fields) == 0 {
		return matcherExpr("ClientIP", spec)
	}
	return matcherExpr("ClientIP", fields[0])
}

func pathExprFromSpec(spec string) ruleast.Expr {
	switch {
	case strings.HasPrefix(spec, "~"):
		pattern := strings.TrimSpace(strings.TrimPrefix(spec, "~"))
		pattern = strings.TrimPrefix(pattern, "*")
		return matcherExpr("PathRegexp", pattern)
	case strings.HasPrefix(spec, "="):
		return matcherExpr("Path", strings.TrimSpace(strings.TrimPrefix(spec, "=")))
	default:
		return matcherExpr("PathPrefix", spec)
	}
}

func matcherExpr(name string, args ...string) ruleast.Expr {
	a := make([]ruleast.Arg, len(args))
	for i, v := range args {
		a[i] = ruleast.Arg{Literal: v, Quote: ruleast.QuoteBacktick}
	}
	return ruleast.Matcher{Name: name, Args: a}
}

func parseProxyPass(target string, tlsEnabled bool) (string, bool) {
	target = strings.TrimSpace(target)
	switch {
	case strings.HasPrefix(target, "https://"):
		return hostFromTarget(target[len("https://"):]), true
	case strings.HasPrefix(target, "http://"):
		return hostFromTarget(target[len("http://"):]), tlsEnabled
	default:
		return target, tlsEnabled
	}
}

func hostFromTarget(rest string) string {
	if idx := strings.IndexAny(rest, "/"); idx >= 0 {
		rest = rest[:idx]
	}
	if idx := strings.LastIndex(rest, ":"); idx >= 0 {
		if _, err := strconv.Atoi(rest[idx+1:]); err == nil {
			rest = rest[:idx]
		}
	}
	return rest
}

// extractBraceBlocks returns the brace-delimited body text following each
// match of headerRe, matching nginx's brace nesting (a plain regex over
// "[^}]+" fails once a block itself contains nested braces).
func extractBraceBlocks(content string, headerRe *regexp.Regexp) []string {
	var blocks []string
	locs := headerRe.FindAllStringIndex(content, -1)
	for _, loc := range locs {
		openIdx := strings.IndexByte(content[loc[0]:], '{')
		if openIdx < 0 {
			continue
		}
		start := loc[0] + openIdx + 1
		depth := 1
		i := start
		for ; i < len(content) && depth > 0; i++ {
			switch content[i] {
			case '{':
				depth++
			case '}':
				depth--
			}
		}
		if depth == 0 {
			blocks = append(blocks, content[start:i-1])
		}
	}
	return blocks
}

package ingest

import (
	"fmt"

	"github.com/traefik/traefik/v3/pkg/config/dynamic"
	"gopkg.in/yaml.v3"

	"github.com/bolabaden/nginx-traefik-converter/pkg/model"
	"github.com/bolabaden/nginx-traefik-converter/pkg/ruleast"
)

// TraefikDynamicIngestor reads a Traefik dynamic configuration document
// (YAML or JSON, file-provider shaped) into a Config. Grounded on the real
// github.com/traefik/traefik/v3/pkg/config/dynamic types rather than a
// reimplementation, per SPEC_FULL §4.4.
type TraefikDynamicIngestor struct{}

func (TraefikDynamicIngestor) Ingest(data []byte, opts Options) (*model.Config, error) {
	var doc dynamic.Configuration
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("traefik-dynamic: %w", err)
	}
	return fromDynamicConfiguration(&doc, opts)
}

func fromDynamicConfiguration(doc *dynamic.Configuration, opts Options) (*model.Config, error) {
	cfg := model.New()
	file := opts.SourceFile

	if doc.HTTP != nil {
		if err := ingestHTTP(cfg, doc.HTTP, opts, file); err != nil {
			return nil, err
		}
	}
	if doc.TCP != nil {
		if err := ingestTCP(cfg, doc.TCP, opts, file); err != nil {
			return nil, err
		}
	}
	if doc.UDP != nil {
		ingestUDP(cfg, doc.UDP)
	}
	if doc.TLS != nil {
		ingestTLS(cfg, doc.TLS, file)
	}

	return cfg, nil
}

func ingestHTTP(cfg *model.Config, http *dynamic.HTTPConfiguration, opts Options, file string) error {
	for _, id := range sortedMapKeys(http.Routers) {
		r := http.Routers[id]
		expr, diag := opts.parseRule(r.Rule, ruleast.ProtocolHTTP)
		if diag != nil {
			return &ruleParseError{RouterID: id, Diag: diag}
		}
		router := &model.Router{
			ID:             id,
			Protocol:       ruleast.ProtocolHTTP,
			Rule:           expr,
			RuleSource:     r.Rule,
			EntryPoints:    r.EntryPoints,
			ServiceRef:     r.Service,
			MiddlewareRefs: r.Middlewares,
		}
		if r.Priority != 0 {
			p := r.Priority
			router.Priority = &p
		}
		if r.TLS != nil {
			router.TLS = &model.TlsSpec{
				CertResolver: r.TLS.CertResolver,
				OptionsRef:   r.TLS.Options,
			}
		}
		cfg.AddRouter(router)
	}

	for _, id := range sortedMapKeys(http.Services) {
		svc := http.Services[id]
		if svc.LoadBalancer == nil {
			warn(cfg, file, "UnsupportedFeature", fmt.Sprintf("service %q: only loadBalancer services are converted, weighted/mirroring/failover kept in raw_extras", id))
			cfg.AddService(&model.Service{ID: id, Protocol: ruleast.ProtocolHTTP, RawExtras: map[string]any{"service": svc}})
			continue
		}
		lb := model.LoadBalancer{Policy: model.PolicyRoundRobin}
		for _, s := range svc.LoadBalancer.Servers {
			server := model.Server{URL: serverURL(id, s)}
			if s.Weight != nil {
				w := *s.Weight
				server.Weight = &w
				lb.Policy = model.PolicyWeightedRR
			}
			lb.Servers = append(lb.Servers, server)
		}
		s := &model.Service{ID: id, Protocol: ruleast.ProtocolHTTP, Pool: lb}
		if svc.LoadBalancer.HealthCheck != nil {
			s.Health = &model.HealthCheck{
				Path:     svc.LoadBalancer.HealthCheck.Path,
				Interval: svc.LoadBalancer.HealthCheck.Interval.String(),
				Timeout:  svc.LoadBalancer.HealthCheck.Timeout.String(),
			}
		}
		cfg.AddService(s)
	}

	for _, id := range sortedMapKeys(http.Middlewares) {
		mw, diags := fromDynamicMiddleware(id, http.Middlewares[id])
		for _, d := range diags {
			warn(cfg, file, "UnsupportedFeature", d)
		}
		cfg.AddMiddleware(mw)
	}
	return nil
}

// serverURL returns s.URL verbatim when set, otherwise synthesizes one from
// serviceID+s.Port (defaulting s.Scheme to "http"), exactly as Traefik's
// docker/docker-compose provider does when a service is described with
// loadbalancer.server.port instead of a full loadbalancer.server.url —
// the host is the service/container's own name, resolved by whatever DNS
// the target network provides.
func serverURL(serviceID string, s dynamic.Server) string {
	if s.URL != "" {
		return s.URL
	}
	if s.Port == "" {
		return ""
	}
	scheme := s.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s:%s", scheme, serviceID, s.Port)
}

func ingestTCP(cfg *model.Config, tcp *dynamic.TCPConfiguration, opts Options, file string) error {
	for _, id := range sortedMapKeys(tcp.Routers) {
		r := tcp.Routers[id]
		expr, diag := opts.parseRule(r.Rule, ruleast.ProtocolTCP)
		if diag != nil {
			return &ruleParseError{RouterID: id, Diag: diag}
		}
		router := &model.Router{
			ID:             id,
			Protocol:       ruleast.ProtocolTCP,
			Rule:           expr,
			RuleSource:     r.Rule,
			EntryPoints:    r.EntryPoints,
			ServiceRef:     r.Service,
			MiddlewareRefs: r.Middlewares,
		}
		if r.TLS != nil {
			router.TLS = &model.TlsSpec{
				CertResolver: r.TLS.CertResolver,
				OptionsRef:   r.TLS.Options,
				SNIStrict:    !r.TLS.Passthrough && r.TLS.Options != "",
			}
		}
		cfg.AddRouter(router)
	}

	for _, id := range sortedMapKeys(tcp.Services) {
		svc := tcp.Services[id]
		if svc.LoadBalancer == nil {
			warn(cfg, file, "UnsupportedFeature", fmt.Sprintf("tcp service %q: only loadBalancer services are converted", id))
			continue
		}
		lb := model.LoadBalancer{Policy: model.PolicyRoundRobin}
		for _, s := range svc.LoadBalancer.Servers {
			lb.Servers = append(lb.Servers, model.Server{Address: s.Address})
		}
		cfg.AddService(&model.Service{ID: id, Protocol: ruleast.ProtocolTCP, Pool: lb})
	}
	return nil
}

func ingestUDP(cfg *model.Config, udp *dynamic.UDPConfiguration) {
	for _, id := range sortedMapKeys(udp.Routers) {
		r := udp.Routers[id]
		cfg.AddRouter(&model.Router{
			ID:          id,
			Protocol:    ruleast.ProtocolUDP,
			EntryPoints: r.EntryPoints,
			ServiceRef:  r.Service,
		})
	}
	for _, id := range sortedMapKeys(udp.Services) {
		svc := udp.Services[id]
		if svc.LoadBalancer == nil {
			continue
		}
		lb := model.LoadBalancer{Policy: model.PolicyRoundRobin}
		for _, s := range svc.LoadBalancer.Servers {
			lb.Servers = append(lb.Servers, model.Server{Address: s.Address})
		}
		cfg.AddService(&model.Service{ID: id, Protocol: ruleast.ProtocolUDP, Pool: lb})
	}
}

func ingestTLS(cfg *model.Config, tlsCfg *dynamic.TLSConfiguration, file string) {
	for _, name := range sortedMapKeys(tlsCfg.Options) {
		o := tlsCfg.Options[name]
		cfg.AddTLSOptions(&model.TlsOptions{ID: name, MinVersion: o.MinVersion, CipherSuites: o.CipherSuites})
	}
	if len(tlsCfg.Certificates) > 0 {
		info(cfg, file, "TLSCertificateSkipped", "top-level TLS certificate stores are not modeled and are not carried into the converted config")
	}
}

// fromDynamicMiddleware maps the subset of dynamic.Middleware kinds named
// in SPEC_FULL §3 to model.Middleware; everything else is preserved in
// RawExtras and reported as a lossy-conversion diagnostic.
func fromDynamicMiddleware(id string, m *dynamic.Middleware) (*model.Middleware, []string) {
	var diags []string
	mw := &model.Middleware{ID: id, Params: map[string]any{}}

	switch {
	case m.BasicAuth != nil:
		mw.Kind = model.MiddlewareBasicAuth
		mw.Params["users"] = m.BasicAuth.Users
		mw.Params["realm"] = m.BasicAuth.Realm
	case m.ForwardAuth != nil:
		mw.Kind = model.MiddlewareForwardAuth
		mw.Params["address"] = m.ForwardAuth.Address
	case m.RateLimit != nil:
		mw.Kind = model.MiddlewareRateLimit
		mw.Params["average"] = m.RateLimit.Average
		mw.Params["burst"] = m.RateLimit.Burst
	case m.Headers != nil:
		mw.Kind = model.MiddlewareHeaders
		mw.Params["customRequestHeaders"] = m.Headers.CustomRequestHeaders
		mw.Params["customResponseHeaders"] = m.Headers.CustomResponseHeaders
	case m.StripPrefix != nil:
		mw.Kind = model.MiddlewareStripPrefix
		mw.Params["prefixes"] = m.StripPrefix.Prefixes
	case m.AddPrefix != nil:
		mw.Kind = model.MiddlewareAddPrefix
		mw.Params["prefix"] = m.AddPrefix.Prefix
	case m.ReplacePath != nil:
		mw.Kind = model.MiddlewareReplacePath
		mw.Params["path"] = m.ReplacePath.Path
	case m.RedirectScheme != nil:
		mw.Kind = model.MiddlewareRedirectScheme
		mw.Params["scheme"] = m.RedirectScheme.Scheme
		mw.Params["permanent"] = m.RedirectScheme.Permanent
	case m.RedirectRegex != nil:
		mw.Kind = model.MiddlewareRedirectRegex
		mw.Params["regex"] = m.RedirectRegex.Regex
		mw.Params["replacement"] = m.RedirectRegex.Replacement
	case m.IPAllowList != nil:
		mw.Kind = model.MiddlewareIPAllowlist
		mw.Params["sourceRange"] = m.IPAllowList.SourceRange
	case m.Compress != nil:
		mw.Kind = model.MiddlewareCompress
	case m.Retry != nil:
		mw.Kind = model.MiddlewareRetry
		mw.Params["attempts"] = m.Retry.Attempts
	case m.InFlightReq != nil:
		mw.Kind = model.MiddlewareInFlightReq
		mw.Params["amount"] = m.InFlightReq.Amount
	case m.CircuitBreaker != nil:
		mw.Kind = model.MiddlewareCircuitBreaker
		mw.Params["expression"] = m.CircuitBreaker.Expression
	case m.Buffering != nil:
		mw.Kind = model.MiddlewareBuffering
		mw.Params["maxRequestBodyBytes"] = m.Buffering.MaxRequestBodyBytes
	case m.Chain != nil:
		mw.Kind = model.MiddlewareChain
		mw.Params["middlewares"] = m.Chain.Middlewares
	default:
		mw.Kind = "unknown"
		mw.RawExtras = map[string]any{"middleware": m}
		diags = append(diags, fmt.Sprintf("middleware %q: kind not recognized, preserved in raw_extras", id))
	}
	return mw, diags
}

// sortedMapKeys returns a map's string keys in lexicographic order, so
// ingestion visits routers/services/middlewares deterministically
// regardless of Go's randomized map iteration (spec.md §8 property 4).
func sortedMapKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sortStrings(keys)
	return keys
}

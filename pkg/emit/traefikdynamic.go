package emit

import (
	"encoding/json"
	"fmt"

	"github.com/traefik/traefik/v3/pkg/config/dynamic"
	traefiktls "github.com/traefik/traefik/v3/pkg/tls"
	"gopkg.in/yaml.v3"

	"github.com/bolabaden/nginx-traefik-converter/pkg/model"
	"github.com/bolabaden/nginx-traefik-converter/pkg/ruleast"
)

// TraefikDynamicYAMLEmitter lowers a Config to a Traefik dynamic
// configuration YAML document. Grounded on SPEC_FULL §4.4: builds a real
// *dynamic.Configuration value and hands it to yaml.v3 rather than
// hand-formatting text, so field names/nesting always match Traefik's own
// schema.
type TraefikDynamicYAMLEmitter struct{ Dialect ruleast.Dialect }

func (e TraefikDynamicYAMLEmitter) Emit(cfg *model.Config) ([]byte, error) {
	doc := toDynamicConfiguration(cfg, e.dialect())
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("traefik-dynamic yaml: %w", err)
	}
	return out, nil
}

// TraefikDynamicJSONEmitter is the JSON-serialized form of the same
// document, sharing the lowering logic.
type TraefikDynamicJSONEmitter struct{ Dialect ruleast.Dialect }

func (e TraefikDynamicJSONEmitter) Emit(cfg *model.Config) ([]byte, error) {
	doc := toDynamicConfiguration(cfg, e.dialect())
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("traefik-dynamic json: %w", err)
	}
	return out, nil
}

func (e TraefikDynamicYAMLEmitter) dialect() ruleast.Dialect {
	if e.Dialect == "" {
		return ruleast.DialectV3
	}
	return e.Dialect
}

func (e TraefikDynamicJSONEmitter) dialect() ruleast.Dialect {
	if e.Dialect == "" {
		return ruleast.DialectV3
	}
	return e.Dialect
}

func toDynamicConfiguration(cfg *model.Config, dialect ruleast.Dialect) *dynamic.Configuration {
	doc := &dynamic.Configuration{}

	http := &dynamic.HTTPConfiguration{
		Routers:     map[string]*dynamic.Router{},
		Services:    map[string]*dynamic.Service{},
		Middlewares: map[string]*dynamic.Middleware{},
	}
	tcp := &dynamic.TCPConfiguration{
		Routers:  map[string]*dynamic.TCPRouter{},
		Services: map[string]*dynamic.TCPService{},
	}
	udp := &dynamic.UDPConfiguration{
		Routers:  map[string]*dynamic.UDPRouter{},
		Services: map[string]*dynamic.UDPService{},
	}

	for _, id := range cfg.SortedRouterIDs() {
		r := cfg.Routers[id]
		switch r.Protocol {
		case ruleast.ProtocolHTTP:
			http.Routers[id] = toDynamicRouter(r, dialect)
		case ruleast.ProtocolTCP:
			tcp.Routers[id] = toDynamicTCPRouter(r, dialect)
		case ruleast.ProtocolUDP:
			udp.Routers[id] = &dynamic.UDPRouter{EntryPoints: r.EntryPoints, Service: r.ServiceRef}
		}
	}

	for _, id := range cfg.SortedServiceIDs() {
		s := cfg.Services[id]
		switch s.Protocol {
		case ruleast.ProtocolTCP:
			tcp.Services[id] = toDynamicTCPService(s)
		case ruleast.ProtocolUDP:
			udp.Services[id] = toDynamicUDPService(s)
		default:
			http.Services[id] = toDynamicService(s)
		}
	}

	for _, id := range cfg.SortedMiddlewareIDs() {
		http.Middlewares[id] = toDynamicMiddleware(cfg.Middlewares[id])
	}

	if len(http.Routers) > 0 || len(http.Services) > 0 || len(http.Middlewares) > 0 {
		doc.HTTP = http
	}
	if len(tcp.Routers) > 0 || len(tcp.Services) > 0 {
		doc.TCP = tcp
	}
	if len(udp.Routers) > 0 || len(udp.Services) > 0 {
		doc.UDP = udp
	}

	if len(cfg.TLSOptions) > 0 {
		opts := map[string]traefiktls.Options{}
		for _, id := range cfg.SortedTLSOptionIDs() {
			t := cfg.TLSOptions[id]
			opts[id] = traefiktls.Options{MinVersion: t.MinVersion, CipherSuites: t.CipherSuites}
		}
		doc.TLS = &dynamic.TLSConfiguration{Options: opts}
	}

	return doc
}

func toDynamicRouter(r *model.Router, dialect ruleast.Dialect) *dynamic.Router {
	dr := &dynamic.Router{
		Rule:        ruleText(r, dialect),
		EntryPoints: r.EntryPoints,
		Middlewares: r.MiddlewareRefs,
		Service:     r.ServiceRef,
	}
	if r.Priority != nil {
		dr.Priority = *r.Priority
	}
	if r.TLS != nil {
		dr.TLS = &dynamic.RouterTLSConfig{CertResolver: r.TLS.CertResolver, Options: r.TLS.OptionsRef}
	}
	return dr
}

func toDynamicTCPRouter(r *model.Router, dialect ruleast.Dialect) *dynamic.TCPRouter {
	dr := &dynamic.TCPRouter{
		Rule:        ruleText(r, dialect),
		EntryPoints: r.EntryPoints,
		Middlewares: r.MiddlewareRefs,
		Service:     r.ServiceRef,
	}
	if r.Priority != nil {
		dr.Priority = *r.Priority
	}
	if r.TLS != nil {
		dr.TLS = &dynamic.RouterTCPTLSConfig{
			CertResolver: r.TLS.CertResolver,
			Options:      r.TLS.OptionsRef,
			Passthrough:  !r.TLS.SNIStrict,
		}
	}
	return dr
}

func ruleText(r *model.Router, dialect ruleast.Dialect) string {
	if r.Rule != nil {
		return r.Rule.Print(dialect)
	}
	return r.RuleSource
}

func toDynamicService(s *model.Service) *dynamic.Service {
	lb := &dynamic.ServersLoadBalancer{}
	for _, server := range s.Pool.Servers {
		ds := dynamic.Server{URL: server.URL}
		if server.Weight != nil {
			w := *server.Weight
			ds.Weight = &w
		}
		lb.Servers = append(lb.Servers, ds)
	}
	if s.Health != nil {
		lb.HealthCheck = &dynamic.ServerHealthCheck{Path: s.Health.Path}
	}
	return &dynamic.Service{LoadBalancer: lb}
}

func toDynamicTCPService(s *model.Service) *dynamic.TCPService {
	lb := &dynamic.TCPServersLoadBalancer{}
	for _, server := range s.Pool.Servers {
		lb.Servers = append(lb.Servers, dynamic.TCPServer{Address: server.Address})
	}
	return &dynamic.TCPService{LoadBalancer: lb}
}

func toDynamicUDPService(s *model.Service) *dynamic.UDPService {
	lb := &dynamic.UDPServersLoadBalancer{}
	for _, server := range s.Pool.Servers {
		lb.Servers = append(lb.Servers, dynamic.UDPServer{Address: server.Address})
	}
	return &dynamic.UDPService{LoadBalancer: lb}
}

func toDynamicMiddleware(m *model.Middleware) *dynamic.Middleware {
	dm := &dynamic.Middleware{}
	switch m.Kind {
	case model.MiddlewareBasicAuth:
		dm.BasicAuth = &dynamic.BasicAuth{
			Users: stringSlice(m.Params["users"]),
			Realm: stringVal(m.Params["realm"]),
		}
	case model.MiddlewareForwardAuth:
		dm.ForwardAuth = &dynamic.ForwardAuth{Address: stringVal(m.Params["address"])}
	case model.MiddlewareRateLimit:
		dm.RateLimit = &dynamic.RateLimit{Average: int64Val(m.Params["average"]), Burst: int64Val(m.Params["burst"])}
	case model.MiddlewareHeaders:
		dm.Headers = &dynamic.Headers{
			CustomRequestHeaders:  stringMap(m.Params["customRequestHeaders"]),
			CustomResponseHeaders: stringMap(m.Params["customResponseHeaders"]),
		}
	case model.MiddlewareStripPrefix:
		dm.StripPrefix = &dynamic.StripPrefix{Prefixes: stringSlice(m.Params["prefixes"])}
	case model.MiddlewareAddPrefix:
		dm.AddPrefix = &dynamic.AddPrefix{Prefix: stringVal(m.Params["prefix"])}
	case model.MiddlewareReplacePath:
		dm.ReplacePath = &dynamic.ReplacePath{Path: stringVal(m.Params["path"])}
	case model.MiddlewareRedirectScheme:
		dm.RedirectScheme = &dynamic.RedirectScheme{Scheme: stringVal(m.Params["scheme"]), Permanent: boolVal(m.Params["permanent"])}
	case model.MiddlewareRedirectRegex:
		dm.RedirectRegex = &dynamic.RedirectRegex{Regex: stringVal(m.Params["regex"]), Replacement: stringVal(m.Params["replacement"])}
	case model.MiddlewareIPAllowlist:
		dm.IPAllowList = &dynamic.IPAllowList{SourceRange: stringSlice(m.Params["sourceRange"])}
	case model.MiddlewareCompress:
		dm.Compress = &dynamic.Compress{}
	case model.MiddlewareRetry:
		dm.Retry = &dynamic.Retry{Attempts: intVal(m.Params["attempts"])}
	case model.MiddlewareInFlightReq:
		dm.InFlightReq = &dynamic.InFlightReq{Amount: int64Val(m.Params["amount"])}
	case model.MiddlewareCircuitBreaker:
		dm.CircuitBreaker = &dynamic.CircuitBreaker{Expression: stringVal(m.Params["expression"])}
	case model.MiddlewareBuffering:
		dm.Buffering = &dynamic.Buffering{MaxRequestBodyBytes: int64Val(m.Params["maxRequestBodyBytes"])}
	case model.MiddlewareChain:
		dm.Chain = &dynamic.Chain{Middlewares: stringSlice(m.Params["middlewares"])}
	}
	return dm
}

func stringVal(v any) string {
	s, _ := v.(string)
	return s
}

func boolVal(v any) bool {
	b, _ := v.(bool)
	return b
}

func intVal(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func int64Val(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func stringSlice(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			out = append(out, stringVal(item))
		}
		return out
	default:
		return nil
	}
}

func stringMap(v any) map[string]string {
	m, _ := v.(map[string]string)
	return m
}

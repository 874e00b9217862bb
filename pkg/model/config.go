package model

import "sort"

// Config is the top-level unified routing model (spec.md §3). IDs are
// unique within their kind; referential integrity between them is
// enforced by pkg/validate, not by Config itself.
//
// Determinism (spec.md §8 property 4) requires emission to iterate ids in
// "stable order by insertion, then lexicographic" — Go maps make no
// ordering guarantee, so Config additionally tracks insertion order per
// kind and exposes Sorted* accessors that every emitter must use instead
// of ranging over the maps directly.
type Config struct {
	Routers     map[string]*Router
	Services    map[string]*Service
	Middlewares map[string]*Middleware
	TLSOptions  map[string]*TlsOptions
	EntryPoints map[string]*EntryPoint

	Diagnostics []Diagnostic

	routerOrder     []string
	serviceOrder    []string
	middlewareOrder []string
	tlsOptionOrder  []string
	entryPointOrder []string
}

// New returns an empty Config ready for an ingestor to populate.
func New() *Config {
	return &Config{
		Routers:     make(map[string]*Router),
		Services:    make(map[string]*Service),
		Middlewares: make(map[string]*Middleware),
		TLSOptions:  make(map[string]*TlsOptions),
		EntryPoints: make(map[string]*EntryPoint),
	}
}

// AddRouter inserts r, recording insertion order for deterministic
// emission. It overwrites any existing router with the same ID without
// changing that ID's original position in the order.
func (c *Config) AddRouter(r *Router) {
	if _, exists := c.Routers[r.ID]; !exists {
		c.routerOrder = append(c.routerOrder, r.ID)
	}
	c.Routers[r.ID] = r
}

// AddService inserts s, recording insertion order.
func (c *Config) AddService(s *Service) {
	if _, exists := c.Services[s.ID]; !exists {
		c.serviceOrder = append(c.serviceOrder, s.ID)
	}
	c.Services[s.ID] = s
}

// AddMiddleware inserts m, recording insertion order.
func (c *Config) AddMiddleware(m *Middleware) {
	if _, exists := c.Middlewares[m.ID]; !exists {
		c.middlewareOrder = append(c.middlewareOrder, m.ID)
	}
	c.Middlewares[m.ID] = m
}

// AddTLSOptions inserts t, recording insertion order.
func (c *Config) AddTLSOptions(t *TlsOptions) {
	if _, exists := c.TLSOptions[t.ID]; !exists {
		c.tlsOptionOrder = append(c.tlsOptionOrder, t.ID)
	}
	c.TLSOptions[t.ID] = t
}

// AddEntryPoint inserts e, recording insertion order.
func (c *Config) AddEntryPoint(e *EntryPoint) {
	if _, exists := c.EntryPoints[e.Name]; !exists {
		c.entryPointOrder = append(c.entryPointOrder, e.Name)
	}
	c.EntryPoints[e.Name] = e
}

// AddDiagnostic appends a diagnostic to the Config's accumulated set
// (spec.md §7 propagation policy: validation and lowering accumulate
// rather than returning early).
func (c *Config) AddDiagnostic(d Diagnostic) {
	c.Diagnostics = append(c.Diagnostics, d)
}

// HasErrors reports whether any accumulated diagnostic is error-severity.
func (c *Config) HasErrors() bool {
	for _, d := range c.Diagnostics {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// SortedRouterIDs returns router ids ordered by insertion, falling back to
// lexicographic order for ids not seen through AddRouter (e.g. after
// manual map mutation in a test) — this satisfies the "stable by
// insertion, then lexicographic" rule in spec.md §8 property 4.
func (c *Config) SortedRouterIDs() []string { return orderedIDs(c.Routers, c.routerOrder) }

// SortedServiceIDs returns service ids in deterministic emission order.
func (c *Config) SortedServiceIDs() []string { return orderedIDs(c.Services, c.serviceOrder) }

// SortedMiddlewareIDs returns middleware ids in deterministic emission order.
func (c *Config) SortedMiddlewareIDs() []string {
	return orderedIDs(c.Middlewares, c.middlewareOrder)
}

// SortedTLSOptionIDs returns tls-options ids in deterministic emission order.
func (c *Config) SortedTLSOptionIDs() []string {
	return orderedIDs(c.TLSOptions, c.tlsOptionOrder)
}

// SortedEntryPointNames returns entrypoint names in deterministic emission order.
func (c *Config) SortedEntryPointNames() []string {
	return orderedIDs(c.EntryPoints, c.entryPointOrder)
}

func orderedIDs[V any](m map[string]V, order []string) []string {
	seen := make(map[string]bool, len(order))
	result := make([]string, 0, len(m))
	for _, id := range order {
		if _, ok := m[id]; ok && !seen[id] {
			result = append(result, id)
			seen[id] = true
		}
	}
	var extra []string
	for id := range m {
		if !seen[id] {
			extra = append(extra, id)
		}
	}
	sort.Strings(extra)
	return append(result, extra...)
}

// Package model defines the unified, format-neutral routing model (C3)
// that every ingestor produces and every emitter consumes (spec.md §3).
package model

import "github.com/bolabaden/nginx-traefik-converter/pkg/ruleast"

// Severity is a diagnostic's severity level (spec.md §6 diagnostic record).
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Source pinpoints where a diagnostic originated, when known.
type Source struct {
	File   string
	Line   int
	Column int
}

// Diagnostic is a single machine-readable finding produced by ingestion,
// validation, or emission (spec.md §6, §7).
type Diagnostic struct {
	Severity Severity
	Code     string
	Message  string
	Source   Source
	Fix      string
}

// LBPolicy is a load-balancer server-selection policy (spec.md §3).
type LBPolicy string

const (
	PolicyRoundRobin        LBPolicy = "round_robin"
	PolicyWeightedRR        LBPolicy = "weighted_rr"
	PolicyLeastConn         LBPolicy = "least_conn"
	PolicyWeightedLeastConn LBPolicy = "weighted_least_conn"
	PolicyRandom            LBPolicy = "random"
	PolicyWeightedRandom    LBPolicy = "weighted_random"
)

// Server is one backend in a load-balancer pool. URL is used for HTTP
// (scheme+host+port+optional path); Address is used for TCP/UDP
// (host+port). Usually only the field matching the owning Service's
// protocol is set; the nginx ingestor sets both on the HTTP servers it
// reads from upstream blocks.
type Server struct {
	URL     string
	Address string
	Weight  *int
}

// LoadBalancer is a pool of backend servers plus the policy used to pick
// among them (spec.md §3).
type LoadBalancer struct {
	Servers []Server
	Policy  LBPolicy
}

// HealthCheck is an optional service health probe, carried through
// best-effort from Traefik-origin input (SPEC_FULL §3); nginx has no
// first-class equivalent so this is never populated by the nginx ingestor.
type HealthCheck struct {
	Path     string
	Interval string
	Timeout  string
}

// Service is a named backend pool (spec.md §3).
type Service struct {
	ID       string
	Protocol ruleast.Protocol
	Pool     LoadBalancer
	Health   *HealthCheck

	RawExtras map[string]any
}

// TLSCertFile is one certificate/key pair, optionally with a CA bundle and
// DH parameters file, as understood by both Traefik's file provider and
// nginx's ssl_certificate/ssl_certificate_key/ssl_client_certificate.
type TLSCertFile struct {
	Cert    string
	Key     string
	CA      string
	DHParam string
}

// TlsSpec is a router's TLS termination configuration (spec.md §3).
type TlsSpec struct {
	CertResolver string
	OptionsRef   string
	SNIStrict    bool
	CertFiles    []TLSCertFile
}

// TlsOptions is a named, reusable TLS options set referenced by
// TlsSpec.OptionsRef (Traefik's tls.options).
type TlsOptions struct {
	ID                string
	MinVersion        string
	CipherSuites      []string
	ClientAuthCAFiles []string
}

// Middleware is a request/response transform applied before/after the
// backend (spec.md §3). Kind is drawn from the recognized set in
// spec.md §3; Params holds kind-specific configuration validated by
// pkg/validate.
type Middleware struct {
	ID     string
	Kind   string
	Params map[string]any

	RawExtras map[string]any
}

// Recognized middleware kinds (spec.md §3).
const (
	MiddlewareBasicAuth       = "basic-auth"
	MiddlewareRateLimit       = "rate-limit"
	MiddlewareIPAllowlist     = "ip-allowlist"
	MiddlewareCompress        = "compress"
	MiddlewareHeaders         = "headers"
	MiddlewareRedirectScheme  = "redirect-scheme"
	MiddlewareRedirectRegex   = "redirect-regex"
	MiddlewareStripPrefix     = "strip-prefix"
	MiddlewareAddPrefix       = "add-prefix"
	MiddlewareReplacePath     = "replace-path"
	MiddlewareRetry           = "retry"
	MiddlewareBuffering       = "buffering"
	MiddlewareInFlightReq     = "in-flight-req"
	MiddlewareForwardAuth     = "forward-auth"
	MiddlewareCircuitBreaker  = "circuit-breaker"
	MiddlewareChain           = "chain"
)

// Router binds a rule to a service, with optional middlewares, TLS, and an
// explicit priority (spec.md §3). UDP routers carry no Rule and no TLS
// (spec.md §4.5).
type Router struct {
	ID             string
	Protocol       ruleast.Protocol
	Rule           ruleast.Expr
	RuleSource     string // original rule text, preserved for diagnostics and lossless re-emission when unparsed
	Priority       *int
	EntryPoints    []string
	ServiceRef     string
	MiddlewareRefs []string
	TLS            *TlsSpec

	RawExtras map[string]any
}

// EntryPoint is a named listening address binding (spec.md §3 top-level
// Config.entrypoints).
type EntryPoint struct {
	Name     string
	Address  string
	Protocol ruleast.Protocol
}

// Package validate implements the C6 cross-format validator of spec.md
// §4.5: referential integrity and structural checks that ingestion alone
// cannot catch, since a Router can reference a Service or Middleware that
// simply does not exist in a given input.
package validate

import (
	"fmt"
	"net/url"

	"github.com/bolabaden/nginx-traefik-converter/pkg/model"
	"github.com/bolabaden/nginx-traefik-converter/pkg/ruleast"
)

// Validate runs every structural check against cfg and appends diagnostics
// directly onto it (spec.md §7 propagation policy: accumulate, don't
// short-circuit). targetVersion, if non-empty, additionally gates matchers
// by SPEC_FULL §4.5's Traefik-version requirements.
func Validate(cfg *model.Config, targetVersion string) {
	checkReferences(cfg)
	checkEmptyPools(cfg)
	checkWeightedPolicyWeights(cfg)
	checkUDPRouters(cfg)
	checkTLSCertResolver(cfg)
	checkServerPorts(cfg)
	checkDuplicatePriorities(cfg)
	checkPriorityHints(cfg)
	if targetVersion != "" {
		checkMatcherVersions(cfg, targetVersion)
	}
}

func checkReferences(cfg *model.Config) {
	for _, id := range cfg.SortedRouterIDs() {
		r := cfg.Routers[id]
		if r.ServiceRef == "" {
			cfg.AddDiagnostic(model.Diagnostic{
				Severity: model.SeverityError,
				Code:     "MissingServiceRef",
				Message:  fmt.Sprintf("router %q: no service reference", id),
			})
		} else if _, ok := cfg.Services[r.ServiceRef]; !ok {
			cfg.AddDiagnostic(model.Diagnostic{
				Severity: model.SeverityError,
				Code:     "UndefinedServiceRef",
				Message:  fmt.Sprintf("router %q: references undefined service %q", id, r.ServiceRef),
			})
		}
		for _, mw := range r.MiddlewareRefs {
			if _, ok := cfg.Middlewares[mw]; !ok {
				cfg.AddDiagnostic(model.Diagnostic{
					Severity: model.SeverityError,
					Code:     "UndefinedMiddlewareRef",
					Message:  fmt.Sprintf("router %q: references undefined middleware %q", id, mw),
				})
			}
		}
		if r.TLS != nil && r.TLS.OptionsRef != "" {
			if _, ok := cfg.TLSOptions[r.TLS.OptionsRef]; !ok {
				cfg.AddDiagnostic(model.Diagnostic{
					Severity: model.SeverityError,
					Code:     "UndefinedTLSOptionsRef",
					Message:  fmt.Sprintf("router %q: references undefined tls options %q", id, r.TLS.OptionsRef),
				})
			}
		}
	}
}

func checkEmptyPools(cfg *model.Config) {
	for _, id := range cfg.SortedServiceIDs() {
		s := cfg.Services[id]
		if len(s.Pool.Servers) == 0 && s.RawExtras == nil {
			cfg.AddDiagnostic(model.Diagnostic{
				Severity: model.SeverityWarning,
				Code:     "EmptyServicePool",
				Message:  fmt.Sprintf("service %q: no backend servers", id),
			})
		}
	}
}

// checkWeightedPolicyWeights enforces spec.md §4.5's "weighted policies
// require weights on every server": a pool using a weighted_* LBPolicy
// with even one unweighted server has no well-defined distribution.
func checkWeightedPolicyWeights(cfg *model.Config) {
	for _, id := range cfg.SortedServiceIDs() {
		s := cfg.Services[id]
		if !isWeightedPolicy(s.Pool.Policy) {
			continue
		}
		for _, srv := range s.Pool.Servers {
			if srv.Weight == nil {
				cfg.AddDiagnostic(model.Diagnostic{
					Severity: model.SeverityError,
					Code:     "MissingServerWeight",
					Message:  fmt.Sprintf("service %q: policy %s requires a weight on every server", id, s.Pool.Policy),
				})
				break
			}
		}
	}
}

func isWeightedPolicy(p model.LBPolicy) bool {
	switch p {
	case model.PolicyWeightedRR, model.PolicyWeightedLeastConn, model.PolicyWeightedRandom:
		return true
	default:
		return false
	}
}

// checkUDPRouters enforces spec.md §4.5's "UDP routers have no rule and no
// TLS": both fields only make sense for HTTP/TCP, where a client hello or
// request line exists to match against.
func checkUDPRouters(cfg *model.Config) {
	for _, id := range cfg.SortedRouterIDs() {
		r := cfg.Routers[id]
		if r.Protocol != ruleast.ProtocolUDP {
			continue
		}
		if r.Rule != nil {
			cfg.AddDiagnostic(model.Diagnostic{
				Severity: model.SeverityError,
				Code:     "UDPRouterHasRule",
				Message:  fmt.Sprintf("router %q: UDP routers carry no rule", id),
			})
		}
		if r.TLS != nil {
			cfg.AddDiagnostic(model.Diagnostic{
				Severity: model.SeverityError,
				Code:     "UDPRouterHasTLS",
				Message:  fmt.Sprintf("router %q: UDP routers carry no TLS", id),
			})
		}
	}
}

// checkTLSCertResolver enforces spec.md §4.5's TLS rule: absent
// cert_files, a cert_resolver must be set, or plain HTTP is silently
// assumed at emission time — worth a warning either way.
func checkTLSCertResolver(cfg *model.Config) {
	for _, id := range cfg.SortedRouterIDs() {
		r := cfg.Routers[id]
		if r.TLS == nil {
			continue
		}
		if len(r.TLS.CertFiles) == 0 && r.TLS.CertResolver == "" {
			cfg.AddDiagnostic(model.Diagnostic{
				Severity: model.SeverityWarning,
				Code:     "TLSResolverAssumed",
				Message:  fmt.Sprintf("router %q: no cert_files and no cert_resolver set, plain HTTP is assumed", id),
			})
		}
	}
}

// checkServerPorts enforces spec.md §4.5's "port specification present
// when load-balancing to containers": an HTTP server URL naming a bare
// host with no port relies on an implicit default that a container's
// actual exposed port may not match.
func checkServerPorts(cfg *model.Config) {
	for _, id := range cfg.SortedServiceIDs() {
		s := cfg.Services[id]
		for _, srv := range s.Pool.Servers {
			if srv.URL == "" {
				continue
			}
			u, err := url.Parse(srv.URL)
			if err != nil || u.Port() != "" {
				continue
			}
			cfg.AddDiagnostic(model.Diagnostic{
				Severity: model.SeverityWarning,
				Code:     "MissingServerPort",
				Message:  fmt.Sprintf("service %q: server %q has no explicit port", id, srv.URL),
			})
		}
	}
}

// checkDuplicatePriorities warns, never errors, since Traefik itself breaks
// ties deterministically (longer rule wins). Per spec.md §4.5 this only
// fires when two routers share both an identical rule and an equal
// explicit priority — equal priority alone is ordinary and not a conflict.
func checkDuplicatePriorities(cfg *model.Config) {
	type key struct {
		priority int
		rule     string
	}
	seen := map[key][]string{}
	var order []key
	for _, id := range cfg.SortedRouterIDs() {
		r := cfg.Routers[id]
		if r.Priority == nil {
			continue
		}
		ruleText := r.RuleSource
		if r.Rule != nil {
			ruleText = r.Rule.Print(ruleast.DialectV3)
		}
		k := key{priority: *r.Priority, rule: ruleText}
		if _, exists := seen[k]; !exists {
			order = append(order, k)
		}
		seen[k] = append(seen[k], id)
	}
	for _, k := range order {
		ids := seen[k]
		if len(ids) > 1 {
			cfg.AddDiagnostic(model.Diagnostic{
				Severity: model.SeverityWarning,
				Code:     "DuplicatePriority",
				Message:  fmt.Sprintf("routers %v share identical rule %q and priority %d", ids, k.rule, k.priority),
			})
		}
	}
}

// checkPriorityHints implements spec.md §4.5's best-practice nudge: a rule
// combining more than one matcher is "more specific" in Traefik's own
// rule-length tiebreak, so leaving its priority implicit invites a
// surprising ordering once another router's rule grows past it.
func checkPriorityHints(cfg *model.Config) {
	for _, id := range cfg.SortedRouterIDs() {
		r := cfg.Routers[id]
		if r.Priority != nil || r.Rule == nil {
			continue
		}
		if isCompoundRule(r.Rule) {
			cfg.AddDiagnostic(model.Diagnostic{
				Severity: model.SeverityInfo,
				Code:     "PriorityHint",
				Message:  fmt.Sprintf("router %q: rule combines multiple matchers, consider an explicit priority instead of Traefik's rule-length tiebreak", id),
			})
		}
	}
}

func isCompoundRule(expr ruleast.Expr) bool {
	switch n := expr.(type) {
	case ruleast.And, ruleast.Or, ruleast.Not:
		return true
	case ruleast.Group:
		return isCompoundRule(n.Inner)
	default:
		return false
	}
}

package validate

import (
	"fmt"

	"github.com/hashicorp/go-version"

	"github.com/bolabaden/nginx-traefik-converter/pkg/model"
	"github.com/bolabaden/nginx-traefik-converter/pkg/ruleast"
)

// checkMatcherVersions walks every router's rule tree and reports any
// matcher whose ruleast.MatcherSchema.MinTraefikVersion exceeds the
// caller's --target-version, per SPEC_FULL §4.5. Version comparison uses
// the real hashicorp/go-version library rather than a hand-rolled
// dotted-string comparator.
func checkMatcherVersions(cfg *model.Config, targetVersion string) {
	target, err := version.NewVersion(targetVersion)
	if err != nil {
		cfg.AddDiagnostic(model.Diagnostic{
			Severity: model.SeverityWarning,
			Code:     "InvalidTargetVersion",
			Message:  fmt.Sprintf("target version %q is not a valid version, skipping version gating: %v", targetVersion, err),
		})
		return
	}

	for _, id := range cfg.SortedRouterIDs() {
		r := cfg.Routers[id]
		walkMatchers(r.Rule, func(m ruleast.Matcher) {
			schema, ok := ruleast.Schema[m.Name]
			if !ok || schema.MinTraefikVersion == "" {
				return
			}
			minVersion, err := version.NewVersion(schema.MinTraefikVersion)
			if err != nil {
				return
			}
			if target.LessThan(minVersion) {
				cfg.AddDiagnostic(model.Diagnostic{
					Severity: model.SeverityWarning,
					Code:     "UnsupportedFeature",
					Message: fmt.Sprintf(
						"router %q: matcher %s requires Traefik >= %s, target is %s",
						id, m.Name, schema.MinTraefikVersion, targetVersion,
					),
				})
			}
		})
	}
}

func walkMatchers(expr ruleast.Expr, visit func(ruleast.Matcher)) {
	switch n := expr.(type) {
	case nil:
		return
	case ruleast.Matcher:
		visit(n)
	case ruleast.And:
		walkMatchers(n.Left, visit)
		walkMatchers(n.Right, visit)
	case ruleast.Or:
		walkMatchers(n.Left, visit)
		walkMatchers(n.Right, visit)
	case ruleast.Not:
		walkMatchers(n.Operand, visit)
	case ruleast.Group:
		walkMatchers(n.Inner, visit)
	}
}

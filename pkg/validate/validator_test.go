package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bolabaden/nginx-traefik-converter/pkg/model"
	"github.com/bolabaden/nginx-traefik-converter/pkg/ruleast"
)

func intPtr(n int) *int { return &n }

func TestValidateMissingServiceRef(t *testing.T) {
	cfg := model.New()
	cfg.AddRouter(&model.Router{ID: "r1"})

	Validate(cfg, "")

	assert.True(t, cfg.HasErrors())
	assert.Equal(t, "MissingServiceRef", cfg.Diagnostics[0].Code)
}

func TestValidateUndefinedServiceRef(t *testing.T) {
	cfg := model.New()
	cfg.AddRouter(&model.Router{ID: "r1", ServiceRef: "does-not-exist"})

	Validate(cfg, "")

	assert.True(t, cfg.HasErrors())
	found := false
	for _, d := range cfg.Diagnostics {
		if d.Code == "UndefinedServiceRef" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidateUndefinedMiddlewareAndTLSOptionsRefs(t *testing.T) {
	cfg := model.New()
	cfg.AddService(&model.Service{ID: "svc", Pool: model.LoadBalancer{Servers: []model.Server{{URL: "http://127.0.0.1:80"}}}})
	cfg.AddRouter(&model.Router{
		ID:             "r1",
		ServiceRef:     "svc",
		MiddlewareRefs: []string{"missing-mw"},
		TLS:            &model.TlsSpec{OptionsRef: "missing-tls"},
	})

	Validate(cfg, "")

	codes := map[string]bool{}
	for _, d := range cfg.Diagnostics {
		codes[d.Code] = true
	}
	assert.True(t, codes["UndefinedMiddlewareRef"])
	assert.True(t, codes["UndefinedTLSOptionsRef"])
}

func TestValidateNoErrorsForWellFormedConfig(t *testing.T) {
	cfg := model.New()
	cfg.AddService(&model.Service{ID: "svc", Pool: model.LoadBalancer{Servers: []model.Server{{URL: "http://127.0.0.1:80"}}}})
	cfg.AddMiddleware(&model.Middleware{ID: "mw", Kind: model.MiddlewareCompress})
	cfg.AddTLSOptions(&model.TlsOptions{ID: "tlsopts"})
	cfg.AddRouter(&model.Router{
		ID:             "r1",
		ServiceRef:     "svc",
		MiddlewareRefs: []string{"mw"},
		TLS:            &model.TlsSpec{OptionsRef: "tlsopts"},
	})

	Validate(cfg, "")

	assert.False(t, cfg.HasErrors())
}

func TestValidateEmptyServicePoolWarns(t *testing.T) {
	cfg := model.New()
	cfg.AddService(&model.Service{ID: "svc"})

	Validate(cfg, "")

	found := false
	for _, d := range cfg.Diagnostics {
		if d.Code == "EmptyServicePool" {
			assert.Equal(t, model.SeverityWarning, d.Severity)
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidateEmptyServicePoolSkippedWhenRawExtrasPresent(t *testing.T) {
	cfg := model.New()
	cfg.AddService(&model.Service{ID: "svc", RawExtras: map[string]any{"weighted": true}})

	Validate(cfg, "")

	for _, d := range cfg.Diagnostics {
		assert.NotEqual(t, "EmptyServicePool", d.Code)
	}
}

func TestValidateDuplicatePriorityWarns(t *testing.T) {
	cfg := model.New()
	cfg.AddService(&model.Service{ID: "svc", Pool: model.LoadBalancer{Servers: []model.Server{{URL: "http://127.0.0.1:80"}}}})
	rule := ruleast.Matcher{Name: "Host", Args: []ruleast.Arg{{Literal: "example.com"}}}
	cfg.AddRouter(&model.Router{ID: "r1", ServiceRef: "svc", Rule: rule, RuleSource: "Host(`example.com`)", Priority: intPtr(10)})
	cfg.AddRouter(&model.Router{ID: "r2", ServiceRef: "svc", Rule: rule, RuleSource: "Host(`example.com`)", Priority: intPtr(10)})

	Validate(cfg, "")

	found := false
	for _, d := range cfg.Diagnostics {
		if d.Code == "DuplicatePriority" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidateEqualPriorityDifferentRuleDoesNotWarn(t *testing.T) {
	cfg := model.New()
	cfg.AddService(&model.Service{ID: "svc", Pool: model.LoadBalancer{Servers: []model.Server{{URL: "http://127.0.0.1:80"}}}})
	cfg.AddRouter(&model.Router{
		ID: "r1", ServiceRef: "svc", Priority: intPtr(10),
		Rule: ruleast.Matcher{Name: "Host", Args: []ruleast.Arg{{Literal: "a.example.com"}}}, RuleSource: "Host(`a.example.com`)",
	})
	cfg.AddRouter(&model.Router{
		ID: "r2", ServiceRef: "svc", Priority: intPtr(10),
		Rule: ruleast.Matcher{Name: "Host", Args: []ruleast.Arg{{Literal: "b.example.com"}}}, RuleSource: "Host(`b.example.com`)",
	})

	Validate(cfg, "")

	for _, d := range cfg.Diagnostics {
		assert.NotEqual(t, "DuplicatePriority", d.Code)
	}
}

func TestValidateWeightedPolicyMissingWeightErrors(t *testing.T) {
	cfg := model.New()
	cfg.AddService(&model.Service{
		ID: "svc",
		Pool: model.LoadBalancer{
			Policy: model.PolicyWeightedRR,
			Servers: []model.Server{
				{URL: "http://127.0.0.1:80", Weight: intPtr(2)},
				{URL: "http://127.0.0.1:81"},
			},
		},
	})

	Validate(cfg, "")

	found := false
	for _, d := range cfg.Diagnostics {
		if d.Code == "MissingServerWeight" {
			assert.Equal(t, model.SeverityError, d.Severity)
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidateUDPRouterWithRuleOrTLSErrors(t *testing.T) {
	cfg := model.New()
	cfg.AddService(&model.Service{ID: "svc", Pool: model.LoadBalancer{Servers: []model.Server{{Address: "127.0.0.1:80"}}}})
	cfg.AddRouter(&model.Router{
		ID:         "r1",
		Protocol:   ruleast.ProtocolUDP,
		ServiceRef: "svc",
		Rule:       ruleast.Matcher{Name: "Host", Args: []ruleast.Arg{{Literal: "example.com"}}},
		TLS:        &model.TlsSpec{},
	})

	Validate(cfg, "")

	codes := map[string]bool{}
	for _, d := range cfg.Diagnostics {
		codes[d.Code] = true
	}
	assert.True(t, codes["UDPRouterHasRule"])
	assert.True(t, codes["UDPRouterHasTLS"])
}

func TestValidateTLSWithoutCertFilesOrResolverWarns(t *testing.T) {
	cfg := model.New()
	cfg.AddService(&model.Service{ID: "svc", Pool: model.LoadBalancer{Servers: []model.Server{{URL: "http://127.0.0.1:80"}}}})
	cfg.AddRouter(&model.Router{ID: "r1", ServiceRef: "svc", TLS: &model.TlsSpec{}})

	Validate(cfg, "")

	found := false
	for _, d := range cfg.Diagnostics {
		if d.Code == "TLSResolverAssumed" {
			assert.Equal(t, model.SeverityWarning, d.Severity)
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidateTLSWithCertResolverDoesNotWarn(t *testing.T) {
	cfg := model.New()
	cfg.AddService(&model.Service{ID: "svc", Pool: model.LoadBalancer{Servers: []model.Server{{URL: "http://127.0.0.1:80"}}}})
	cfg.AddRouter(&model.Router{ID: "r1", ServiceRef: "svc", TLS: &model.TlsSpec{CertResolver: "letsencrypt"}})

	Validate(cfg, "")

	for _, d := range cfg.Diagnostics {
		assert.NotEqual(t, "TLSResolverAssumed", d.Code)
	}
}

func TestValidateServerMissingPortWarns(t *testing.T) {
	cfg := model.New()
	cfg.AddService(&model.Service{ID: "svc", Pool: model.LoadBalancer{Servers: []model.Server{{URL: "http://backend-container"}}}})

	Validate(cfg, "")

	found := false
	for _, d := range cfg.Diagnostics {
		if d.Code == "MissingServerPort" {
			assert.Equal(t, model.SeverityWarning, d.Severity)
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidateCompoundRuleWithoutPriorityHints(t *testing.T) {
	cfg := model.New()
	cfg.AddService(&model.Service{ID: "svc", Pool: model.LoadBalancer{Servers: []model.Server{{URL: "http://127.0.0.1:80"}}}})
	cfg.AddRouter(&model.Router{
		ID:         "r1",
		ServiceRef: "svc",
		Rule: ruleast.And{
			Left:  ruleast.Matcher{Name: "Host", Args: []ruleast.Arg{{Literal: "example.com"}}},
			Right: ruleast.Matcher{Name: "PathPrefix", Args: []ruleast.Arg{{Literal: "/api"}}},
		},
	})

	Validate(cfg, "")

	found := false
	for _, d := range cfg.Diagnostics {
		if d.Code == "PriorityHint" {
			assert.Equal(t, model.SeverityInfo, d.Severity)
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidateSingleMatcherWithoutPriorityDoesNotHint(t *testing.T) {
	cfg := model.New()
	cfg.AddService(&model.Service{ID: "svc", Pool: model.LoadBalancer{Servers: []model.Server{{URL: "http://127.0.0.1:80"}}}})
	cfg.AddRouter(&model.Router{
		ID:         "r1",
		ServiceRef: "svc",
		Rule:       ruleast.Matcher{Name: "Host", Args: []ruleast.Arg{{Literal: "example.com"}}},
	})

	Validate(cfg, "")

	for _, d := range cfg.Diagnostics {
		assert.NotEqual(t, "PriorityHint", d.Code)
	}
}

func TestValidateMatcherVersionGating(t *testing.T) {
	cfg := model.New()
	cfg.AddService(&model.Service{ID: "svc", Pool: model.LoadBalancer{Servers: []model.Server{{URL: "http://127.0.0.1:80"}}}})
	cfg.AddRouter(&model.Router{
		ID:         "r1",
		ServiceRef: "svc",
		Rule:       ruleast.Matcher{Name: "ClientIP", Args: []ruleast.Arg{{Literal: "10.0.0.0/8"}}},
	})

	Validate(cfg, "2.0.0")

	found := false
	for _, d := range cfg.Diagnostics {
		if d.Code == "UnsupportedFeature" {
			assert.Equal(t, model.SeverityWarning, d.Severity)
			found = true
		}
	}
	assert.True(t, found, "expected UnsupportedFeature diagnostic for ClientIP below its MinTraefikVersion")
}

func TestValidateMatcherVersionGatingSatisfied(t *testing.T) {
	cfg := model.New()
	cfg.AddService(&model.Service{ID: "svc", Pool: model.LoadBalancer{Servers: []model.Server{{URL: "http://127.0.0.1:80"}}}})
	cfg.AddRouter(&model.Router{
		ID:         "r1",
		ServiceRef: "svc",
		Rule:       ruleast.Matcher{Name: "ClientIP", Args: []ruleast.Arg{{Literal: "10.0.0.0/8"}}},
	})

	Validate(cfg, "3.0.0")

	for _, d := range cfg.Diagnostics {
		assert.NotEqual(t, "UnsupportedFeature", d.Code)
	}
}

func TestValidateInvalidTargetVersionWarns(t *testing.T) {
	cfg := model.New()
	cfg.AddService(&model.Service{ID: "svc", Pool: model.LoadBalancer{Servers: []model.Server{{URL: "http://127.0.0.1:80"}}}})
	cfg.AddRouter(&model.Router{ID: "r1", ServiceRef: "svc"})

	Validate(cfg, "not-a-version")

	found := false
	for _, d := range cfg.Diagnostics {
		if d.Code == "InvalidTargetVersion" {
			found = true
		}
	}
	assert.True(t, found)
}

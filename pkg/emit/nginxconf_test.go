package emit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bolabaden/nginx-traefik-converter/pkg/model"
	"github.com/bolabaden/nginx-traefik-converter/pkg/ruleast"
)

func TestNginxConfEmitterBasicRoute(t *testing.T) {
	cfg := model.New()
	cfg.AddService(&model.Service{
		ID:   "web-svc",
		Pool: model.LoadBalancer{Servers: []model.Server{{URL: "http://10.0.0.1:8080"}}},
	})
	cfg.AddRouter(&model.Router{
		ID:       "web",
		Protocol: ruleast.ProtocolHTTP,
		Rule: ruleast.And{
			Left:  ruleast.Matcher{Name: "Host", Args: []ruleast.Arg{{Literal: "example.com"}}},
			Right: ruleast.Matcher{Name: "PathPrefix", Args: []ruleast.Arg{{Literal: "/api"}}},
		},
		ServiceRef: "web-svc",
	})

	out, err := (NginxConfEmitter{}).Emit(cfg)
	assert.NoError(t, err)
	text := string(out)

	assert.Contains(t, text, "upstream web-svc {")
	assert.Contains(t, text, "server 10.0.0.1:8080;")
	assert.Contains(t, text, "server_name example.com;")
	assert.Contains(t, text, "location /api {")
	assert.Contains(t, text, "proxy_pass http://web-svc;")
}

func TestNginxConfEmitterFlagsUnrepresentableOrRule(t *testing.T) {
	cfg := model.New()
	cfg.AddService(&model.Service{ID: "svc", Pool: model.LoadBalancer{Servers: []model.Server{{URL: "http://127.0.0.1:80"}}}})
	cfg.AddRouter(&model.Router{
		ID:       "r1",
		Protocol: ruleast.ProtocolHTTP,
		Rule: ruleast.Or{
			Left:  ruleast.Matcher{Name: "Host", Args: []ruleast.Arg{{Literal: "a.example.com"}}},
			Right: ruleast.Matcher{Name: "Host", Args: []ruleast.Arg{{Literal: "b.example.com"}}},
		},
		RuleSource: "Host(`a.example.com`) || Host(`b.example.com`)",
		ServiceRef: "svc",
	})

	out, err := (NginxConfEmitter{}).Emit(cfg)
	assert.NoError(t, err)
	assert.Contains(t, string(out), "could not be fully expressed as nginx location guards")
}

func TestNginxConfEmitterWeightedUpstream(t *testing.T) {
	cfg := model.New()
	cfg.AddService(&model.Service{
		ID: "svc",
		Pool: model.LoadBalancer{
			Policy: model.PolicyWeightedRR,
			Servers: []model.Server{
				{URL: "http://10.0.0.1:80", Weight: weightPtr(3)},
				{URL: "http://10.0.0.2:80", Weight: weightPtr(1)},
			},
		},
	})

	out, err := (NginxConfEmitter{}).Emit(cfg)
	assert.NoError(t, err)
	text := string(out)
	assert.Contains(t, text, "server 10.0.0.1:80 weight=3;")
	assert.Contains(t, text, "server 10.0.0.2:80 weight=1;")
}

// TestNginxConfEmitterRateLimitAndClientIP covers mandated scenario S4: a
// rate-limit{average:50,burst:100} middleware combined with a ClientIP
// matcher must produce both the limit_req_zone/limit_req pair and the
// allow/deny pair, the latter derived from the matcher, not the middleware.
func TestNginxConfEmitterRateLimitAndClientIP(t *testing.T) {
	cfg := model.New()
	cfg.AddService(&model.Service{ID: "svc", Pool: model.LoadBalancer{Servers: []model.Server{{URL: "http://127.0.0.1:80"}}}})
	cfg.AddMiddleware(&model.Middleware{
		ID:   "throttle",
		Kind: model.MiddlewareRateLimit,
		Params: map[string]any{
			"average": int64(50),
			"burst":   int64(100),
		},
	})
	cfg.AddRouter(&model.Router{
		ID:       "r1",
		Protocol: ruleast.ProtocolHTTP,
		Rule: ruleast.And{
			Left:  ruleast.Matcher{Name: "Host", Args: []ruleast.Arg{{Literal: "example.com"}}},
			Right: ruleast.Matcher{Name: "ClientIP", Args: []ruleast.Arg{{Literal: "10.0.0.0/8"}}},
		},
		ServiceRef:     "svc",
		MiddlewareRefs: []string{"throttle"},
	})

	out, err := (NginxConfEmitter{}).Emit(cfg)
	require.NoError(t, err)
	text := string(out)

	assert.Contains(t, text, "limit_req_zone $binary_remote_addr zone=throttle:10m rate=50r/s;")
	assert.Contains(t, text, "limit_req zone=throttle burst=100;")
	assert.Contains(t, text, "allow 10.0.0.0/8;")
	assert.Contains(t, text, "deny all;")
}

func TestNginxConfEmitterBasicAuthMiddleware(t *testing.T) {
	cfg := model.New()
	cfg.AddService(&model.Service{ID: "svc", Pool: model.LoadBalancer{Servers: []model.Server{{URL: "http://127.0.0.1:80"}}}})
	cfg.AddMiddleware(&model.Middleware{
		ID:     "auth",
		Kind:   model.MiddlewareBasicAuth,
		Params: map[string]any{"realm": "Members Only"},
	})
	cfg.AddRouter(&model.Router{
		ID:             "r1",
		Protocol:       ruleast.ProtocolHTTP,
		Rule:           ruleast.Matcher{Name: "Host", Args: []ruleast.Arg{{Literal: "example.com"}}},
		ServiceRef:     "svc",
		MiddlewareRefs: []string{"auth"},
	})

	out, err := (NginxConfEmitter{}).Emit(cfg)
	require.NoError(t, err)
	text := string(out)

	assert.Contains(t, text, `auth_basic "Members Only";`)
	assert.Contains(t, text, "auth_basic_user_file /etc/nginx/.htpasswd;")
}

func TestNginxConfEmitterCompressAndHeadersMiddleware(t *testing.T) {
	cfg := model.New()
	cfg.AddService(&model.Service{ID: "svc", Pool: model.LoadBalancer{Servers: []model.Server{{URL: "http://127.0.0.1:80"}}}})
	cfg.AddMiddleware(&model.Middleware{ID: "gz", Kind: model.MiddlewareCompress})
	cfg.AddMiddleware(&model.Middleware{
		ID:   "hdrs",
		Kind: model.MiddlewareHeaders,
		Params: map[string]any{
			"customRequestHeaders":  map[string]string{"X-Forwarded-Proto": "https"},
			"customResponseHeaders": map[string]string{"X-Frame-Options": "DENY"},
		},
	})
	cfg.AddRouter(&model.Router{
		ID:             "r1",
		Protocol:       ruleast.ProtocolHTTP,
		Rule:           ruleast.Matcher{Name: "Host", Args: []ruleast.Arg{{Literal: "example.com"}}},
		ServiceRef:     "svc",
		MiddlewareRefs: []string{"gz", "hdrs"},
	})

	out, err := (NginxConfEmitter{}).Emit(cfg)
	require.NoError(t, err)
	text := string(out)

	assert.Contains(t, text, "gzip on;")
	assert.Contains(t, text, `proxy_set_header X-Forwarded-Proto "https";`)
	assert.Contains(t, text, `add_header X-Frame-Options "DENY";`)
}

func TestNginxConfEmitterRedirectAndStripPrefixMiddleware(t *testing.T) {
	cfg := model.New()
	cfg.AddService(&model.Service{ID: "svc", Pool: model.LoadBalancer{Servers: []model.Server{{URL: "http://127.0.0.1:80"}}}})
	cfg.AddMiddleware(&model.Middleware{
		ID:     "tohttps",
		Kind:   model.MiddlewareRedirectScheme,
		Params: map[string]any{"scheme": "https", "permanent": true},
	})
	cfg.AddMiddleware(&model.Middleware{
		ID:     "stripp",
		Kind:   model.MiddlewareStripPrefix,
		Params: map[string]any{"prefixes": []string{"/p"}},
	})
	cfg.AddRouter(&model.Router{
		ID:             "r1",
		Protocol:       ruleast.ProtocolHTTP,
		Rule:           ruleast.Matcher{Name: "Host", Args: []ruleast.Arg{{Literal: "example.com"}}},
		ServiceRef:     "svc",
		MiddlewareRefs: []string{"tohttps", "stripp"},
	})

	out, err := (NginxConfEmitter{}).Emit(cfg)
	require.NoError(t, err)
	text := string(out)

	assert.Contains(t, text, "return 301 https://$host$request_uri;")
	assert.Contains(t, text, "rewrite ^/p/(.*) /$1 break;")
}

func TestNginxConfEmitterUnsupportedMiddlewareWarns(t *testing.T) {
	cfg := model.New()
	cfg.AddService(&model.Service{ID: "svc", Pool: model.LoadBalancer{Servers: []model.Server{{URL: "http://127.0.0.1:80"}}}})
	cfg.AddMiddleware(&model.Middleware{ID: "cb", Kind: model.MiddlewareCircuitBreaker})
	cfg.AddRouter(&model.Router{
		ID:             "r1",
		Protocol:       ruleast.ProtocolHTTP,
		Rule:           ruleast.Matcher{Name: "Host", Args: []ruleast.Arg{{Literal: "example.com"}}},
		ServiceRef:     "svc",
		MiddlewareRefs: []string{"cb"},
	})

	out, err := (NginxConfEmitter{}).Emit(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(out), "has no nginx lowering, skipped")

	found := false
	for _, d := range cfg.Diagnostics {
		if d.Code == "UnsupportedMiddleware" {
			assert.Equal(t, model.SeverityWarning, d.Severity)
			found = true
		}
	}
	assert.True(t, found)
}

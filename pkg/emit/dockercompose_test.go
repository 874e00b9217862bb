package emit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/bolabaden/nginx-traefik-converter/pkg/model"
	"github.com/bolabaden/nginx-traefik-converter/pkg/ruleast"
)

func TestDockerComposeEmitterProducesLabelOverlay(t *testing.T) {
	cfg := sampleConfig()

	out, err := (DockerComposeEmitter{}).Emit(cfg)
	require.NoError(t, err)

	var doc composeOverlay
	require.NoError(t, yaml.Unmarshal(out, &doc))

	svc, ok := doc.Services["web-svc"]
	require.True(t, ok)
	assert.Equal(t, "true", svc.Labels["traefik.enable"])
	assert.Equal(t, "Host(`example.com`)", svc.Labels["traefik.http.routers.web.rule"])
	assert.Equal(t, "web-svc", svc.Labels["traefik.http.routers.web.service"])
	assert.Equal(t, "8080", svc.Labels["traefik.http.services.web-svc.loadbalancer.server.port"])
}

func TestDockerComposeEmitterTLSLabels(t *testing.T) {
	cfg := model.New()
	cfg.AddService(&model.Service{ID: "svc", Pool: model.LoadBalancer{Servers: []model.Server{{URL: "http://127.0.0.1:80"}}}})
	cfg.AddRouter(&model.Router{
		ID:         "secure",
		Protocol:   ruleast.ProtocolHTTP,
		Rule:       ruleast.Matcher{Name: "Host", Args: []ruleast.Arg{{Literal: "secure.example.com"}}},
		ServiceRef: "svc",
		TLS:        &model.TlsSpec{CertResolver: "letsencrypt"},
	})

	out, err := (DockerComposeEmitter{}).Emit(cfg)
	require.NoError(t, err)

	var doc composeOverlay
	require.NoError(t, yaml.Unmarshal(out, &doc))

	labels := doc.Services["svc"].Labels
	assert.Equal(t, "true", labels["traefik.http.routers.secure.tls"])
	assert.Equal(t, "letsencrypt", labels["traefik.http.routers.secure.tls.certresolver"])
}

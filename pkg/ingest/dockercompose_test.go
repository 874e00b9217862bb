package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleComposeYAML = `
services:
  web:
    image: nginx:latest
    ports:
      - "8080:80"
    labels:
      traefik.enable: "true"
      traefik.http.routers.web.rule: "Host(` + "`example.com`" + `)"
      traefik.http.services.web.loadbalancer.servers[0].url: "http://web:80"
  disabled:
    image: nginx:latest
    labels:
      traefik.enable: "false"
      traefik.http.routers.disabled.rule: "Host(` + "`disabled.example.com`" + `)"
`

func TestDockerComposeIngestorSkipsDisabledServices(t *testing.T) {
	cfg, err := (DockerComposeIngestor{}).Ingest([]byte(sampleComposeYAML), Options{})
	require.NoError(t, err)

	_, ok := cfg.Routers["web"]
	assert.True(t, ok)
	_, ok = cfg.Routers["disabled"]
	assert.False(t, ok)
}

func TestDockerComposeIngestorExplicitService(t *testing.T) {
	cfg, err := (DockerComposeIngestor{}).Ingest([]byte(sampleComposeYAML), Options{})
	require.NoError(t, err)

	svc, ok := cfg.Services["web"]
	require.True(t, ok)
	require.Len(t, svc.Pool.Servers, 1)
	assert.Equal(t, "http://web:80", svc.Pool.Servers[0].URL)
}

func TestDockerComposeIngestorSynthesizesImplicitService(t *testing.T) {
	data := []byte(`
services:
  app:
    image: myapp:latest
    ports:
      - "3000:3000"
    labels:
      traefik.enable: "true"
      traefik.http.routers.app.rule: "Host(` + "`app.example.com`" + `)"
`)
	cfg, err := (DockerComposeIngestor{}).Ingest(data, Options{})
	require.NoError(t, err)

	router, ok := cfg.Routers["app"]
	require.True(t, ok)
	assert.Equal(t, "app", router.ServiceRef)

	svc, ok := cfg.Services["app"]
	require.True(t, ok)
	require.Len(t, svc.Pool.Servers, 1)
	assert.Equal(t, "http://app:3000", svc.Pool.Servers[0].URL)
}

func TestDockerComposeIngestorSynthesizesURLFromServerPort(t *testing.T) {
	data := []byte(`
services:
  web:
    image: myapp:latest
    labels:
      traefik.enable: "true"
      traefik.http.routers.s.rule: "Host(` + "`s.example.com`" + `)"
      traefik.http.services.s.loadbalancer.server.port: "8080"
`)
	cfg, err := (DockerComposeIngestor{}).Ingest(data, Options{})
	require.NoError(t, err)

	svc, ok := cfg.Services["s"]
	require.True(t, ok)
	require.Len(t, svc.Pool.Servers, 1)
	assert.Equal(t, "http://web:8080", svc.Pool.Servers[0].URL)
}

func TestDockerComposeIngestorWarnsOnUnknownLabelKey(t *testing.T) {
	data := []byte(`
services:
  app:
    image: myapp:latest
    labels:
      traefik.enable: "true"
      traefik.http.routers.app.rule: "Host(` + "`app.example.com`" + `)"
      traefik.mystery.thing: "value"
`)
	cfg, err := (DockerComposeIngestor{}).Ingest(data, Options{})
	require.NoError(t, err)

	found := false
	for _, d := range cfg.Diagnostics {
		if d.Code == "UnknownLabelKey" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestDockerComposeIngestorLabelListForm(t *testing.T) {
	data := []byte(`
services:
  app:
    image: myapp:latest
    ports:
      - "3000:3000"
    labels:
      - "traefik.enable=true"
      - "traefik.http.routers.app.rule=Host(` + "`app.example.com`" + `)"
`)
	cfg, err := (DockerComposeIngestor{}).Ingest(data, Options{})
	require.NoError(t, err)

	_, ok := cfg.Routers["app"]
	assert.True(t, ok)
}

package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bolabaden/nginx-traefik-converter/pkg/ruleast"
)

func TestJSONYAMLIngestorDetectsJSON(t *testing.T) {
	data := []byte(`{"http":{"routers":{"web":{"rule":"Host(` + "`example.com`" + `)","service":"svc"}},"services":{"svc":{"loadBalancer":{"servers":[{"url":"http://10.0.0.1:80"}]}}}}}`)

	cfg, err := (JSONYAMLIngestor{}).Ingest(data, Options{})
	require.NoError(t, err)

	router, ok := cfg.Routers["web"]
	require.True(t, ok)
	assert.Equal(t, "svc", router.ServiceRef)
	require.NotNil(t, router.Rule)
	assert.Equal(t, "Host(`example.com`)", router.Rule.Print(ruleast.DialectV3))
}

func TestJSONYAMLIngestorFallsBackToYAML(t *testing.T) {
	data := []byte(sampleDynamicYAML)

	cfg, err := (JSONYAMLIngestor{}).Ingest(data, Options{})
	require.NoError(t, err)

	_, ok := cfg.Routers["web"]
	assert.True(t, ok)
}

func TestLooksLikeJSON(t *testing.T) {
	assert.True(t, looksLikeJSON([]byte(`  {"a":1}`)))
	assert.True(t, looksLikeJSON([]byte(`[1,2,3]`)))
	assert.False(t, looksLikeJSON([]byte("http:\n  routers: {}\n")))
	assert.False(t, looksLikeJSON(nil))
}

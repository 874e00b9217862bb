package labeltree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFoldBasic(t *testing.T) {
	labels := map[string]string{
		"traefik.enable":                                   "true",
		"traefik.http.routers.r.rule":                      "Host(`x`)",
		"traefik.http.routers.r.service":                   "s",
		"traefik.http.services.s.loadbalancer.server.port": "8080",
		"unrelated.label":                                  "ignored",
	}

	root, err := Fold(labels, "traefik.")
	require.NoError(t, err)

	enable, ok := root.Get("enable")
	assert.True(t, ok)
	assert.Equal(t, "true", enable)

	rule, ok := root.Get("http", "routers", "r", "rule")
	assert.True(t, ok)
	assert.Equal(t, "Host(`x`)", rule)

	port, ok := root.Get("http", "services", "s", "loadbalancer", "server", "port")
	assert.True(t, ok)
	assert.Equal(t, "8080", port)

	_, ok = root.Get("nonexistent")
	assert.False(t, ok)
}

func TestFoldConflictScalarThenTree(t *testing.T) {
	labels := map[string]string{
		"traefik.http.routers.r":      "oops",
		"traefik.http.routers.r.rule": "Host(`x`)",
	}
	_, err := Fold(labels, "traefik.")
	require.Error(t, err)
	var conflict *ConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestFoldConflictTreeThenScalar(t *testing.T) {
	labels := map[string]string{
		"traefik.http.routers.r.rule": "Host(`x`)",
		"traefik.http.routers.r":      "oops",
	}
	_, err := Fold(labels, "traefik.")
	require.Error(t, err)
}

func TestKeysAndChild(t *testing.T) {
	labels := map[string]string{
		"traefik.http.routers.a.rule": "Host(`a`)",
		"traefik.http.routers.b.rule": "Host(`b`)",
	}
	root, err := Fold(labels, "traefik.")
	require.NoError(t, err)

	routers := root.Child("http").Child("routers")
	assert.Equal(t, []string{"a", "b"}, routers.Keys())
}

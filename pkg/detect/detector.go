// Package detect implements the C7 format sniffer of spec.md §4.6: given
// raw bytes and no explicit --input-format flag, guess which ingestor
// should handle them.
package detect

import (
	"bytes"
	"regexp"
)

// Format names one of the formats pkg/ingest knows how to read.
type Format string

const (
	FormatTraefikDynamic Format = "traefik-dynamic"
	FormatDockerCompose  Format = "docker-compose"
	FormatNginxConf      Format = "nginx-conf"
	FormatJSON           Format = "json"
	FormatDockerLive     Format = "docker-live"
	FormatUnknown        Format = ""
)

var (
	composeServicesKey    = regexp.MustCompile(`(?m)^\s*services\s*:`)
	traefikRouterOrMwKey  = regexp.MustCompile(`(?m)(^|\s)(routers|middlewares)\s*:`)
	traefikLoadBalancer   = regexp.MustCompile(`(?i)loadbalancer\s*:`)
	nginxServerBlock      = regexp.MustCompile(`\bserver\s*\{`)
	nginxUpstreamBlock    = regexp.MustCompile(`\bupstream\s+\S+\s*\{`)
	nginxDirectiveTerm    = regexp.MustCompile(`;\s*\n`)
	dockerInspectShape    = regexp.MustCompile(`"(Config|NetworkSettings|State)"\s*:`)
)

// Detect guesses a Format from raw content. Detection is best-effort and
// ordered by specificity: docker-compose and traefik-dynamic are both YAML
// documents that can carry a bare "services:" top-level key (compose
// service definitions, or a traefik-dynamic document whose only content is
// http.services). A "routers:"/"middlewares:" key, an "image:"/"build:"
// key, or a "loadBalancer:" key each disambiguate; "services:" alone with
// none of those (e.g. this tool's own label-only compose overlay output)
// falls back to docker-compose, since a traefik dynamic file with no
// routers and no middlewares and no loadBalancer is not a useful document.
func Detect(data []byte) Format {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return FormatUnknown
	}

	if trimmed[0] == '{' || trimmed[0] == '[' {
		if dockerInspectShape.Match(trimmed) {
			return FormatDockerLive
		}
		return FormatJSON
	}

	if composeServicesKey.Match(trimmed) && (bytes.Contains(trimmed, []byte("image:")) || bytes.Contains(trimmed, []byte("build:"))) {
		return FormatDockerCompose
	}
	if traefikRouterOrMwKey.Match(trimmed) || traefikLoadBalancer.Match(trimmed) {
		return FormatTraefikDynamic
	}
	if nginxServerBlock.Match(trimmed) || nginxUpstreamBlock.Match(trimmed) || nginxDirectiveTerm.Match(trimmed) {
		return FormatNginxConf
	}
	if composeServicesKey.Match(trimmed) {
		return FormatDockerCompose
	}
	return FormatUnknown
}

package emit

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bolabaden/nginx-traefik-converter/pkg/model"
	"github.com/bolabaden/nginx-traefik-converter/pkg/ruleast"
)

// DockerComposeEmitter lowers a Config into docker-compose service label
// fragments, the mirror image of pkg/ingest's DockerComposeIngestor: one
// synthetic service per router's ServiceRef, carrying the same dotted
// traefik.* keys Traefik's label provider itself understands (SPEC_FULL
// §4.4). Emitted as a compose overlay document rather than a full compose
// file, since ports/image/volumes are not something this tool invents.
type DockerComposeEmitter struct{ Dialect ruleast.Dialect }

func (e DockerComposeEmitter) Emit(cfg *model.Config) ([]byte, error) {
	dialect := e.Dialect
	if dialect == "" {
		dialect = ruleast.DialectV3
	}

	byService := map[string]map[string]string{}
	ensure := func(name string) map[string]string {
		if labels, ok := byService[name]; ok {
			return labels
		}
		labels := map[string]string{"traefik.enable": "true"}
		byService[name] = labels
		return labels
	}

	for _, id := range cfg.SortedRouterIDs() {
		r := cfg.Routers[id]
		name := r.ServiceRef
		if name == "" {
			name = id
		}
		labels := ensure(name)
		prefix := fmt.Sprintf("traefik.http.routers.%s", id)
		labels[prefix+".rule"] = ruleText(r, dialect)
		labels[prefix+".service"] = r.ServiceRef
		if len(r.EntryPoints) > 0 {
			labels[prefix+".entrypoints"] = strings.Join(r.EntryPoints, ",")
		}
		if len(r.MiddlewareRefs) > 0 {
			labels[prefix+".middlewares"] = strings.Join(r.MiddlewareRefs, ",")
		}
		if r.TLS != nil {
			labels[prefix+".tls"] = "true"
			if r.TLS.CertResolver != "" {
				labels[prefix+".tls.certresolver"] = r.TLS.CertResolver
			}
		}
	}

	for _, id := range cfg.SortedServiceIDs() {
		s := cfg.Services[id]
		labels := ensure(id)
		for i, server := range s.Pool.Servers {
			addr := server.URL
			if addr == "" {
				addr = server.Address
			}
			key := fmt.Sprintf("traefik.http.services.%s.loadbalancer.server.port", id)
			if i > 0 {
				key = fmt.Sprintf("traefik.http.services.%s.loadbalancer.servers.%d.url", id, i)
				labels[key] = addr
				continue
			}
			labels[key] = portFromAddr(addr)
		}
	}

	doc := composeOverlay{Services: map[string]composeOverlayService{}}
	names := make([]string, 0, len(byService))
	for name := range byService {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		doc.Services[name] = composeOverlayService{Labels: byService[name]}
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("docker-compose overlay: %w", err)
	}
	return out, nil
}

type composeOverlay struct {
	Services map[string]composeOverlayService `yaml:"services"`
}

type composeOverlayService struct {
	Labels map[string]string `yaml:"labels"`
}

func portFromAddr(addr string) string {
	addr = stripScheme(addr)
	if idx := strings.LastIndex(addr, ":"); idx >= 0 {
		return addr[idx+1:]
	}
	return addr
}

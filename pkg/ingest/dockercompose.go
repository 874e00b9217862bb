package ingest

import (
	"fmt"
	"strings"

	connat "github.com/docker/go-connections/nat"
	"github.com/traefik/paerser/parser"
	"github.com/traefik/traefik/v3/pkg/config/dynamic"
	traefiktls "github.com/traefik/traefik/v3/pkg/tls"
	"gopkg.in/yaml.v3"

	"github.com/bolabaden/nginx-traefik-converter/pkg/labeltree"
	"github.com/bolabaden/nginx-traefik-converter/pkg/model"
)

// labelFilters mirrors Traefik's own docker/label provider: paerser is
// handed the raw "traefik."-prefixed labels plus a root filter per top
// level section, and decodes the dotted paths onto a *dynamic.Configuration
// (SPEC_FULL §4.3).
var labelFilters = []string{"traefik.http", "traefik.tcp", "traefik.udp", "traefik.tls"}

// DockerComposeIngestor reads a docker-compose.yml, extracts each
// service's traefik.* labels, and decodes them the same way Traefik's own
// Docker provider does.
type DockerComposeIngestor struct{}

type composeFile struct {
	Services map[string]composeService `yaml:"services"`
}

type composeService struct {
	Image  string        `yaml:"image"`
	Labels composeLabels `yaml:"labels"`
	Ports  []string      `yaml:"ports"`
	Expose []string      `yaml:"expose"`
}

// composeLabels accepts both the mapping form (labels: {key: value}) and
// the list form (labels: ["key=value"]) that docker-compose allows.
type composeLabels map[string]string

func (l *composeLabels) UnmarshalYAML(value *yaml.Node) error {
	out := composeLabels{}
	switch value.Kind {
	case yaml.MappingNode:
		var m map[string]string
		if err := value.Decode(&m); err != nil {
			return err
		}
		for k, v := range m {
			out[k] = v
		}
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		for _, entry := range list {
			k, v, ok := strings.Cut(entry, "=")
			if !ok {
				continue
			}
			out[k] = v
		}
	}
	*l = out
	return nil
}

func (DockerComposeIngestor) Ingest(data []byte, opts Options) (*model.Config, error) {
	var doc composeFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("docker-compose: %w", err)
	}

	cfg := model.New()
	file := opts.SourceFile

	for _, name := range sortedMapKeys(doc.Services) {
		svc := doc.Services[name]
		if strings.ToLower(svc.Labels["traefik.enable"]) != "true" {
			continue
		}

		labels := map[string]string(svc.Labels)
		tree, err := labeltree.Fold(labels, "traefik.")
		if err != nil {
			return nil, fmt.Errorf("docker-compose service %q: %w", name, err)
		}

		dc := &dynamic.Configuration{
			HTTP: &dynamic.HTTPConfiguration{
				Routers:     map[string]*dynamic.Router{},
				Services:    map[string]*dynamic.Service{},
				Middlewares: map[string]*dynamic.Middleware{},
			},
			TCP: &dynamic.TCPConfiguration{
				Routers:  map[string]*dynamic.TCPRouter{},
				Services: map[string]*dynamic.TCPService{},
			},
			UDP: &dynamic.UDPConfiguration{
				Routers:  map[string]*dynamic.UDPRouter{},
				Services: map[string]*dynamic.UDPService{},
			},
			TLS: &dynamic.TLSConfiguration{
				Options: map[string]traefiktls.Options{},
			},
		}
		if err := parser.Decode(labels, dc, parser.DefaultRootName, labelFilters...); err != nil {
			return nil, fmt.Errorf("docker-compose service %q: label decode: %w", name, err)
		}

		fillImplicitService(dc, name, svc)

		// A port-only server label resolves to the compose service's own
		// name, as Traefik's docker provider does.
		for _, s := range dc.HTTP.Services {
			if s.LoadBalancer == nil {
				continue
			}
			for i := range s.LoadBalancer.Servers {
				s.LoadBalancer.Servers[i].URL = serverURL(name, s.LoadBalancer.Servers[i])
			}
		}

		sub, err := fromDynamicConfiguration(dc, opts)
		if err != nil {
			return nil, fmt.Errorf("docker-compose service %q: %w", name, err)
		}
		mergeInto(cfg, sub)

		for _, key := range tree.Keys() {
			switch key {
			case "http", "tcp", "udp", "tls", "enable":
			default:
				warn(cfg, file, "UnknownLabelKey", fmt.Sprintf("service %q: label key traefik.%s not recognized, ignored", name, key))
			}
		}
	}
	return cfg, nil
}

// fillImplicitService mirrors Traefik's docker provider default: a router
// referencing a service that was never explicitly configured gets one
// synthesized from the container's own exposed ports.
func fillImplicitService(dc *dynamic.Configuration, name string, svc composeService) {
	if len(dc.HTTP.Services) > 0 {
		return
	}
	needsDefault := false
	for _, r := range dc.HTTP.Routers {
		if r.Service == "" || r.Service == name {
			needsDefault = true
			r.Service = name
		}
	}
	if !needsDefault {
		return
	}
	port := firstContainerPort(svc.Ports)
	if port == "" {
		port = firstContainerPort(svc.Expose)
	}
	if port == "" {
		return
	}
	dc.HTTP.Services[name] = &dynamic.Service{
		LoadBalancer: &dynamic.ServersLoadBalancer{
			Servers: []dynamic.Server{{URL: fmt.Sprintf("http://%s:%s", name, port)}},
		},
	}
}

func firstContainerPort(ports []string) string {
	for _, spec := range ports {
		_, bindings, err := connat.ParsePortSpecs([]string{spec})
		if err != nil {
			continue
		}
		for port := range bindings {
			return port.Port()
		}
	}
	return ""
}

func mergeInto(dst, src *model.Config) {
	for _, id := range src.SortedRouterIDs() {
		dst.AddRouter(src.Routers[id])
	}
	for _, id := range src.SortedServiceIDs() {
		dst.AddService(src.Services[id])
	}
	for _, id := range src.SortedMiddlewareIDs() {
		dst.AddMiddleware(src.Middlewares[id])
	}
	for _, id := range src.SortedTLSOptionIDs() {
		dst.AddTLSOptions(src.TLSOptions[id])
	}
	dst.Diagnostics = append(dst.Diagnostics, src.Diagnostics...)
}

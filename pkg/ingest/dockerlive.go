package ingest

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/docker/docker/api/types"

	"github.com/bolabaden/nginx-traefik-converter/pkg/model"
	"github.com/bolabaden/nginx-traefik-converter/pkg/ruleast"
	"github.com/bolabaden/nginx-traefik-converter/pkg/utils"
)

// DockerLiveIngestor converts a JSON array of docker inspect results
// (types.ContainerJSON) into a Config, one router pair per VIRTUAL_HOST
// entry. Grounded directly on the teacher's cmd/dinghy-layer compatibility
// layer, which performed this same VIRTUAL_HOST-to-Traefik-label
// translation live against the Docker events API (SPEC_FULL §4.3, C9);
// cmd/ntc-live-sync calls FromContainer directly against a running
// *client.Client instead of going through this JSON front door.
type DockerLiveIngestor struct{}

func (DockerLiveIngestor) Ingest(data []byte, opts Options) (*model.Config, error) {
	var containers []types.ContainerJSON
	if err := json.Unmarshal(data, &containers); err != nil {
		return nil, fmt.Errorf("docker-live: %w", err)
	}
	cfg := model.New()
	for _, inspect := range containers {
		frag, diags := FromContainer(inspect)
		if frag == nil {
			continue
		}
		mergeInto(cfg, frag)
		for _, d := range diags {
			cfg.AddDiagnostic(d)
		}
	}
	return cfg, nil
}

type virtualHost struct {
	hostname string
	port     string
}

// FromContainer builds the router/service pair for one running container's
// VIRTUAL_HOST env var, exactly as the teacher's generateTraefikConfig did,
// but into the unified model instead of a *dynamic.Configuration.
func FromContainer(inspect types.ContainerJSON) (*model.Config, []model.Diagnostic) {
	if inspect.Config == nil || !inspect.State.Running {
		return nil, nil
	}
	if !utils.ShouldManageContainer(inspect.Config.Env, inspect.Config.Labels) {
		return nil, nil
	}
	virtualHostEnv := utils.GetDockerEnvVar(inspect.Config.Env, "VIRTUAL_HOST")
	if virtualHostEnv == "" {
		return nil, nil
	}
	for label := range inspect.Config.Labels {
		if strings.HasPrefix(label, "traefik.") {
			// A container already carrying explicit Traefik labels owns its
			// own routing; the VIRTUAL_HOST compatibility path defers to it.
			return nil, nil
		}
	}

	cfg := model.New()
	var diags []model.Diagnostic

	serviceName := generateServiceName(inspect.Name)
	hosts := parseVirtualHosts(virtualHostEnv)
	containerIP := getContainerIP(inspect)
	if containerIP == "" {
		diags = append(diags, model.Diagnostic{
			Severity: model.SeverityWarning,
			Code:     "NoContainerIP",
			Message:  fmt.Sprintf("container %q: could not determine an IP address, skipped", serviceName),
		})
		return nil, diags
	}

	for i, h := range hosts {
		rule := hostRuleFor(h.hostname)
		httpID := fmt.Sprintf("%s-%d", serviceName, i)
		cfg.AddRouter(&model.Router{
			ID:          httpID,
			Protocol:    ruleast.ProtocolHTTP,
			Rule:        rule,
			RuleSource:  rule.Print(ruleast.DialectV3),
			EntryPoints: []string{"http"},
			ServiceRef:  serviceName,
		})
		tlsID := fmt.Sprintf("%s-tls-%d", serviceName, i)
		cfg.AddRouter(&model.Router{
			ID:          tlsID,
			Protocol:    ruleast.ProtocolHTTP,
			Rule:        rule,
			RuleSource:  rule.Print(ruleast.DialectV3),
			EntryPoints: []string{"https"},
			ServiceRef:  serviceName,
			TLS:         &model.TlsSpec{},
		})
	}

	port := getEffectivePort(hosts, utils.GetDockerEnvVar(inspect.Config.Env, "VIRTUAL_PORT"), inspect)
	cfg.AddService(&model.Service{
		ID:       serviceName,
		Protocol: ruleast.ProtocolHTTP,
		Pool: model.LoadBalancer{
			Policy:  model.PolicyRoundRobin,
			Servers: []model.Server{{URL: fmt.Sprintf("http://%s:%s", containerIP, port)}},
		},
	})

	return cfg, diags
}

func hostRuleFor(hostname string) ruleast.Expr {
	if !isWildcardHost(hostname) {
		return ruleast.Matcher{Name: "Host", Args: []ruleast.Arg{{Literal: hostname, Quote: ruleast.QuoteBacktick}}}
	}
	pattern := wildcardToRegex(hostname)
	return ruleast.Matcher{
		Name: "HostRegexp",
		Args: []ruleast.Arg{{Quote: ruleast.QuoteBacktick, Regex: &ruleast.RegexArg{Pattern: pattern}}},
	}
}

func parseVirtualHosts(virtualHostEnv string) []virtualHost {
	var hosts []virtualHost
	for _, entry := range strings.Split(virtualHostEnv, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if idx := strings.LastIndex(entry, ":"); idx >= 0 && isPort(entry[idx+1:]) {
			hosts = append(hosts, virtualHost{hostname: entry[:idx], port: entry[idx+1:]})
			continue
		}
		hosts = append(hosts, virtualHost{hostname: entry})
	}
	return hosts
}

func isPort(s string) bool {
	port, err := strconv.Atoi(s)
	return err == nil && port > 0 && port <= 65535
}

func isWildcardHost(hostname string) bool {
	return strings.Contains(hostname, "*") || strings.HasPrefix(hostname, "~")
}

func wildcardToRegex(hostname string) string {
	if strings.HasPrefix(hostname, "~") {
		return strings.TrimPrefix(hostname, "~")
	}
	regex := strings.ReplaceAll(hostname, ".", `\.`)
	regex = strings.ReplaceAll(regex, "*", ".*")
	return fmt.Sprintf("^%s$", regex)
}

var (
	invalidServiceNameChars = regexp.MustCompile(`[^a-zA-Z0-9-]`)
	repeatedHyphens         = regexp.MustCompile(`-+`)
)

func generateServiceName(containerName string) string {
	name := strings.TrimPrefix(containerName, "/")
	name = invalidServiceNameChars.ReplaceAllString(name, "-")
	name = repeatedHyphens.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-")
	if name == "" {
		name = "service"
	}
	return name
}

func getContainerIP(inspect types.ContainerJSON) string {
	if inspect.NetworkSettings == nil {
		return ""
	}
	for _, network := range inspect.NetworkSettings.Networks {
		if network.IPAddress != "" {
			return network.IPAddress
		}
	}
	return ""
}

func getEffectivePort(hosts []virtualHost, virtualPort string, inspect types.ContainerJSON) string {
	for _, h := range hosts {
		if h.port != "" {
			return h.port
		}
	}
	if virtualPort != "" {
		return virtualPort
	}
	return getDefaultPort(inspect)
}

func getDefaultPort(inspect types.ContainerJSON) string {
	if inspect.Config != nil {
		for port := range inspect.Config.ExposedPorts {
			if strings.HasSuffix(string(port), "/tcp") {
				return strings.TrimSuffix(string(port), "/tcp")
			}
		}
	}
	if inspect.NetworkSettings != nil {
		for port := range inspect.NetworkSettings.Ports {
			if strings.HasSuffix(string(port), "/tcp") {
				return strings.TrimSuffix(string(port), "/tcp")
			}
		}
	}
	return "80"
}

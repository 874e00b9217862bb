// Command ntc-live-sync watches running Docker containers and keeps a
// Traefik dynamic configuration file up to date from their VIRTUAL_HOST
// environment variables, for containers that carry no explicit traefik.*
// labels. Adapted from the teacher's cmd/dinghy-layer compatibility layer,
// rebuilt on pkg/service's Docker-event-loop WatchHandler contract instead
// of dinghy-layer's own bespoke event loop.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/events"
	dockerclient "github.com/docker/docker/client"

	"github.com/bolabaden/nginx-traefik-converter/pkg/emit"
	"github.com/bolabaden/nginx-traefik-converter/pkg/ingest"
	"github.com/bolabaden/nginx-traefik-converter/pkg/logger"
	"github.com/bolabaden/nginx-traefik-converter/pkg/model"
	"github.com/bolabaden/nginx-traefik-converter/pkg/ruleast"
	"github.com/bolabaden/nginx-traefik-converter/pkg/service"
	"github.com/bolabaden/nginx-traefik-converter/pkg/utils"
	"github.com/bolabaden/nginx-traefik-converter/pkg/validate"
)

// liveSyncHandler implements service.WatchHandler: it rebuilds a Config from
// every running container's VIRTUAL_HOST env var whenever a container starts
// or dies, and re-emits the output file on each change.
type liveSyncHandler struct {
	client     *dockerclient.Client
	logger     *logger.Logger
	outputPath string
	dialect    ruleast.Dialect

	mu  sync.Mutex
	cfg *model.Config
}

func (h *liveSyncHandler) GetName() string { return "ntc-live-sync" }

func (h *liveSyncHandler) SetDependencies(c *dockerclient.Client, l *logger.Logger) {
	h.client = c
	h.logger = l
}

func (h *liveSyncHandler) HandleInitialScan(ctx context.Context) error {
	return h.rebuild(ctx)
}

func (h *liveSyncHandler) HandleEvent(ctx context.Context, event events.Message) error {
	h.logger.Debug("docker event received", "action", event.Action, "container", utils.FormatDockerID(event.Actor.ID))
	return h.rebuild(ctx)
}

func (h *liveSyncHandler) rebuild(ctx context.Context) error {
	containers, err := utils.RetryContainerList(ctx, h.client, container.ListOptions{})
	if err != nil {
		return err
	}

	cfg := model.New()
	for _, c := range containers {
		inspect, err := utils.RetryContainerInspect(ctx, h.client, c.ID)
		if err != nil {
			h.logger.Warn("failed to inspect container", "id", utils.FormatDockerID(c.ID), "error", err)
			continue
		}
		frag, diags := ingest.FromContainer(inspect)
		if frag == nil {
			continue
		}
		for _, id := range frag.SortedRouterIDs() {
			cfg.AddRouter(frag.Routers[id])
		}
		for _, id := range frag.SortedServiceIDs() {
			cfg.AddService(frag.Services[id])
		}
		for _, d := range diags {
			cfg.AddDiagnostic(d)
		}
	}

	validate.Validate(cfg, "")

	emitter := emit.TraefikDynamicYAMLEmitter{Dialect: h.dialect}
	out, err := emitter.Emit(cfg)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.cfg = cfg
	h.mu.Unlock()

	if err := os.WriteFile(h.outputPath, out, 0o644); err != nil {
		return err
	}
	h.logger.Info("synced config", "routers", len(cfg.Routers), "services", len(cfg.Services), "path", h.outputPath)
	return nil
}

func main() {
	var (
		output   = flag.String("output", "traefik-dynamic.yaml", "path to write the synced Traefik dynamic configuration file")
		dialect  = flag.String("dialect", "v3", "rule dialect: v2|v3")
		logLevel = flag.String("log-level", "info", "log level: debug|info|warn|error")
	)
	flag.Parse()

	if err := utils.ValidateLogLevel(*logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v, falling back to info\n", err)
		*logLevel = "info"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := &liveSyncHandler{
		outputPath: *output,
		dialect:    ruleast.Dialect(*dialect),
	}

	if err := service.RunWithSignalHandling(ctx, "ntc-live-sync", *logLevel, handler); err != nil {
		os.Exit(1)
	}
}

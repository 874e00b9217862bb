// Package service runs the Docker-event-driven watch loop behind
// cmd/ntc-live-sync (SPEC_FULL §6, C10): on startup and on every
// container start/die event it asks a WatchHandler to rebuild whatever
// state it owns from scratch. There is no incremental patching here — a
// live routing config is cheap enough to fully re-derive from the current
// container set on every event that the extra bookkeeping an incremental
// diff would need isn't worth carrying.
package service

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"

	"github.com/bolabaden/nginx-traefik-converter/pkg/logger"
	"github.com/bolabaden/nginx-traefik-converter/pkg/utils"
)

// DefaultDockerTimeout bounds the initial Docker daemon connectivity check.
const DefaultDockerTimeout = 30 * time.Second

// WatchHandler is what a caller implements to react to the container set
// changing. HandleInitialScan and HandleEvent both do a full rebuild;
// HandleEvent additionally receives the triggering event for logging.
type WatchHandler interface {
	HandleInitialScan(ctx context.Context) error
	HandleEvent(ctx context.Context, event events.Message) error
	GetName() string
	SetDependencies(client *client.Client, logger *logger.Logger)
}

// Watcher owns the Docker client and event stream driving a WatchHandler.
type Watcher struct {
	client  *client.Client
	logger  *logger.Logger
	handler WatchHandler
	name    string
}

// NewWatcher connects to the Docker daemon, verifies it is reachable, and
// wires the resulting client and a level-configured logger into handler.
func NewWatcher(ctx context.Context, name string, logLevel string, handler WatchHandler) (*Watcher, error) {
	log := logger.NewWithLevel(name, logger.LogLevel(logLevel))

	dockerClient, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, DefaultDockerTimeout)
	defer cancel()
	if _, err := dockerClient.Ping(pingCtx); err != nil {
		dockerClient.Close()
		return nil, fmt.Errorf("failed to connect to Docker daemon: %w", err)
	}
	log.Debug("connected to Docker daemon")

	handler.SetDependencies(dockerClient, log)

	return &Watcher{client: dockerClient, logger: log, handler: handler, name: name}, nil
}

// GetLogger returns the watcher's logger for use by callers outside the
// handler (e.g. RunWithSignalHandling's own shutdown logging).
func (w *Watcher) GetLogger() *logger.Logger {
	return w.logger
}

// Close releases the underlying Docker client connection.
func (w *Watcher) Close() error {
	return w.client.Close()
}

// Run performs the initial scan, then blocks processing start/die events
// until ctx is cancelled or a signal arrives.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("starting watcher", "name", w.name)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	errChan := make(chan error, 1)
	go func() {
		errChan <- w.watchEvents(ctx)
	}()

	select {
	case <-sigChan:
		w.logger.Info("received shutdown signal")
		if err := w.Close(); err != nil {
			w.logger.Error("error while closing watcher", "error", err)
		}
		return context.Canceled
	case err := <-errChan:
		if err != nil {
			w.logger.Error("watcher error", "error", err)
			return err
		}
		w.logger.Info("watcher completed")
		return nil
	}
}

func containerStartDieFilters() filters.Args {
	return filters.NewArgs(
		filters.Arg("type", "container"),
		filters.Arg("event", "start"),
		filters.Arg("event", "die"),
	)
}

// watchEvents runs the initial full rebuild, then reacts to every
// subsequent start/die event with another full rebuild. A dropped event
// stream (daemon restart, network blip) reconnects after a short backoff
// rather than giving up.
func (w *Watcher) watchEvents(ctx context.Context) error {
	w.logger.Debug("running initial scan")
	if err := w.handler.HandleInitialScan(ctx); err != nil {
		w.logger.Error("initial scan failed", "error", err)
		return err
	}

	eventsChan, errChan := w.client.Events(ctx, events.ListOptions{Filters: containerStartDieFilters()})

	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-eventsChan:
			w.handleEventSafely(ctx, event)
		case err := <-errChan:
			if err == nil {
				continue
			}
			w.logger.Error("docker events stream error, reconnecting", "error", err)
			time.Sleep(5 * time.Second)
			eventsChan, errChan = w.client.Events(ctx, events.ListOptions{Filters: containerStartDieFilters()})
		}
	}
}

func (w *Watcher) handleEventSafely(ctx context.Context, event events.Message) {
	select {
	case <-ctx.Done():
		w.logger.Debug("context cancelled, skipping event")
		return
	default:
	}

	if err := w.handler.HandleEvent(ctx, event); err != nil {
		w.logger.Error("failed to process event",
			"error", err,
			"action", event.Action,
			"container_id", utils.FormatDockerID(event.Actor.ID))
	}
}

// RunWithSignalHandling builds a Watcher and runs it to completion,
// exiting the process on an unrecoverable startup or shutdown error. It is
// the entry point cmd/ntc-live-sync calls directly.
func RunWithSignalHandling(ctx context.Context, name string, logLevel string, handler WatchHandler) error {
	watcher, err := NewWatcher(ctx, name, logLevel, handler)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start %s: %v\n", name, err)
		os.Exit(1)
	}
	defer watcher.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	errChan := make(chan error, 1)
	go func() {
		errChan <- watcher.Run(runCtx)
	}()

	select {
	case err := <-errChan:
		if err != nil && err != context.Canceled {
			watcher.GetLogger().Error("watcher failed", "error", err)
			os.Exit(1)
		}
		watcher.GetLogger().Info("watcher completed")
	case sig := <-sigChan:
		watcher.GetLogger().Info("received shutdown signal", "signal", sig)
		cancel()

		select {
		case err := <-errChan:
			if err != nil && err != context.Canceled {
				watcher.GetLogger().Error("error during shutdown", "error", err)
			}
		case <-time.After(10 * time.Second):
			watcher.GetLogger().Warn("shutdown timeout, forcing exit")
		}
	}

	watcher.GetLogger().Info("shut down")
	return nil
}

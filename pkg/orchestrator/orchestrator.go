// Package orchestrator implements the C8 pipeline of spec.md §4.7: wire
// together detection, ingestion, validation, and emission into the single
// operation the CLI shell and the scaffold worker pool both call.
package orchestrator

import (
	"fmt"
	"time"

	"github.com/bolabaden/nginx-traefik-converter/pkg/detect"
	"github.com/bolabaden/nginx-traefik-converter/pkg/emit"
	"github.com/bolabaden/nginx-traefik-converter/pkg/ingest"
	"github.com/bolabaden/nginx-traefik-converter/pkg/model"
	"github.com/bolabaden/nginx-traefik-converter/pkg/ruleast"
	"github.com/bolabaden/nginx-traefik-converter/pkg/ruleparser"
	"github.com/bolabaden/nginx-traefik-converter/pkg/validate"
)

// Request describes one conversion (spec.md §6 convert operation).
type Request struct {
	Data          []byte
	InputFormat   string // empty triggers detect.Detect
	OutputFormat  string
	Dialect       ruleast.Dialect
	TargetVersion string // empty disables version gating
	SourceFile    string

	// DryRun runs ingestion and validation but never emits (spec.md §6
	// --dry-run): Result.Output is nil and Result.Emitted is false.
	DryRun bool
	// Lenient overrides §4.7's emission gate, emitting even when
	// validation produced error-severity diagnostics.
	Lenient bool
}

// Result is the outcome of one conversion: emitted bytes plus every
// diagnostic accumulated across ingestion and validation.
type Result struct {
	Output      []byte
	Diagnostics []model.Diagnostic
	Format      detect.Format
	// Emitted reports whether Output was actually produced. It is false
	// for a dry run, and false when validation reported errors and the
	// request was not Lenient (spec.md §4.7 emission gate).
	Emitted bool
}

// sharedParser memoizes rule parses across the lifetime of one process, so
// a batch conversion run (SPEC_FULL §5 worker pool) does not re-parse an
// identical rule string once per file.
var sharedParser = ruleparser.NewParser(30 * time.Minute)

// Convert runs the full pipeline for one input document.
func Convert(req Request) (*Result, error) {
	format := detect.Format(req.InputFormat)
	if format == detect.FormatUnknown {
		format = detect.Detect(req.Data)
	}
	if format == detect.FormatUnknown {
		return nil, fmt.Errorf("could not detect input format; pass --input-format explicitly")
	}

	ingestor, err := selectIngestor(format)
	if err != nil {
		return nil, err
	}

	opts := ingest.Options{
		Dialect:    req.Dialect,
		Parser:     sharedParser,
		SourceFile: req.SourceFile,
	}
	cfg, err := ingestor.Ingest(req.Data, opts)
	if err != nil {
		return nil, fmt.Errorf("ingest %s: %w", format, err)
	}

	validate.Validate(cfg, req.TargetVersion)

	result := &Result{Diagnostics: cfg.Diagnostics, Format: format}

	// §4.7: emit only if there are no error-severity diagnostics (unless
	// the caller asked to be lenient about them), and never on a dry run.
	if req.DryRun || (cfg.HasErrors() && !req.Lenient) {
		return result, nil
	}

	emitter, err := selectEmitter(req.OutputFormat, req.Dialect)
	if err != nil {
		return nil, err
	}
	out, err := emitter.Emit(cfg)
	if err != nil {
		return nil, fmt.Errorf("emit %s: %w", req.OutputFormat, err)
	}

	result.Output = out
	result.Emitted = true
	// Emitters may append lowering warnings to cfg.
	result.Diagnostics = cfg.Diagnostics
	return result, nil
}

func selectIngestor(format detect.Format) (ingest.Ingestor, error) {
	switch format {
	case detect.FormatTraefikDynamic:
		return ingest.TraefikDynamicIngestor{}, nil
	case detect.FormatDockerCompose:
		return ingest.DockerComposeIngestor{}, nil
	case detect.FormatNginxConf:
		return ingest.NginxConfIngestor{}, nil
	case detect.FormatJSON:
		return ingest.JSONYAMLIngestor{}, nil
	case detect.FormatDockerLive:
		return ingest.DockerLiveIngestor{}, nil
	default:
		return nil, fmt.Errorf("unrecognized input format %q", format)
	}
}

func selectEmitter(format string, dialect ruleast.Dialect) (emit.Emitter, error) {
	switch format {
	case "traefik-dynamic", "traefik-dynamic-yaml", "":
		return emit.TraefikDynamicYAMLEmitter{Dialect: dialect}, nil
	case "traefik-dynamic-json", "json":
		return emit.TraefikDynamicJSONEmitter{Dialect: dialect}, nil
	case "nginx-conf":
		return emit.NginxConfEmitter{}, nil
	case "docker-compose":
		return emit.DockerComposeEmitter{Dialect: dialect}, nil
	default:
		return nil, fmt.Errorf("unrecognized output format %q", format)
	}
}

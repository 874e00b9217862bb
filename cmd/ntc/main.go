// Command ntc is the nginx-traefik-converter CLI shell (SPEC_FULL §6):
// convert one file between formats, analyze a config for diagnostics
// without emitting output, or scaffold a batch conversion run with a
// generated docs.html summary.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/bolabaden/nginx-traefik-converter/pkg/config"
	"github.com/bolabaden/nginx-traefik-converter/pkg/logger"
	"github.com/bolabaden/nginx-traefik-converter/pkg/model"
	"github.com/bolabaden/nginx-traefik-converter/pkg/orchestrator"
	"github.com/bolabaden/nginx-traefik-converter/pkg/ruleast"
	"github.com/bolabaden/nginx-traefik-converter/pkg/scaffold"
	"github.com/bolabaden/nginx-traefik-converter/pkg/utils"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg := config.Load()
	if err := utils.ValidateLogLevel(cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v, falling back to info\n", err)
		cfg.LogLevel = "info"
	}
	log := logger.NewWithEnv("ntc")

	var err error
	switch os.Args[1] {
	case "convert":
		err = runConvert(os.Args[2:], cfg)
	case "analyze":
		err = runAnalyze(os.Args[2:], cfg)
	case "scaffold":
		err = runScaffold(os.Args[2:], cfg, log)
	case "-h", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "ntc: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: ntc <convert|analyze|scaffold> [flags]

convert   read one input file, write one output file
analyze   read one input file, report diagnostics only
scaffold  batch-convert a directory of input files with a docs.html summary`)
}

func runConvert(args []string, sc *config.ShellConfig) error {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	input := fs.String("input", "", "input file path (required)")
	output := fs.String("output", "", "output file path (required)")
	inputFormat := fs.String("input-format", "", "input format: traefik-dynamic|docker-compose|nginx-conf|json|docker-live (autodetected if omitted)")
	outputFormat := fs.String("output-format", "traefik-dynamic", "output format: traefik-dynamic|traefik-dynamic-json|nginx-conf|docker-compose")
	dialect := fs.String("dialect", sc.DefaultDialect, "rule dialect: v2|v3")
	targetVersion := fs.String("target-version", "", "gate matchers against a Traefik version, e.g. 2.9.0")
	dryRun := fs.Bool("dry-run", false, "ingest and validate but do not write the output file")
	lenient := fs.Bool("lenient", false, "emit output even when validation reports errors")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *input == "" || *output == "" {
		return fmt.Errorf("convert requires --input and --output")
	}

	data, err := os.ReadFile(*input)
	if err != nil {
		return fmt.Errorf("read %s: %w", *input, err)
	}

	res, err := orchestrator.Convert(orchestrator.Request{
		Data:          data,
		InputFormat:   *inputFormat,
		OutputFormat:  *outputFormat,
		Dialect:       ruleast.Dialect(config.NormalizeDialect(*dialect)),
		TargetVersion: *targetVersion,
		SourceFile:    *input,
		DryRun:        *dryRun,
		Lenient:       *lenient,
	})
	if err != nil {
		return err
	}

	printDiagnostics(res.Diagnostics)

	if res.Emitted {
		if err := os.WriteFile(*output, res.Output, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", *output, err)
		}
	} else if !*dryRun {
		fmt.Fprintf(os.Stderr, "conversion produced errors, %s not written (pass --lenient to force)\n", *output)
	}

	if hasErrorSeverity(res.Diagnostics) {
		return fmt.Errorf("conversion completed with errors")
	}
	return nil
}

func runAnalyze(args []string, sc *config.ShellConfig) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	input := fs.String("input", "", "input file path (required)")
	inputFormat := fs.String("input-format", "", "input format (autodetected if omitted)")
	dialect := fs.String("dialect", sc.DefaultDialect, "rule dialect: v2|v3")
	targetVersion := fs.String("target-version", "", "gate matchers against a Traefik version")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *input == "" {
		return fmt.Errorf("analyze requires --input")
	}

	data, err := os.ReadFile(*input)
	if err != nil {
		return fmt.Errorf("read %s: %w", *input, err)
	}

	res, err := orchestrator.Convert(orchestrator.Request{
		Data:          data,
		InputFormat:   *inputFormat,
		OutputFormat:  "traefik-dynamic",
		Dialect:       ruleast.Dialect(config.NormalizeDialect(*dialect)),
		TargetVersion: *targetVersion,
		SourceFile:    *input,
	})
	if err != nil {
		return err
	}

	printDiagnostics(res.Diagnostics)
	if len(res.Diagnostics) == 0 {
		fmt.Println("no diagnostics")
	}
	return nil
}

func runScaffold(args []string, sc *config.ShellConfig, log *logger.Logger) error {
	fs := flag.NewFlagSet("scaffold", flag.ExitOnError)
	inputDir := fs.String("input-dir", "", "directory of input files (required)")
	outputDir := fs.String("output-dir", "", "directory to write outputs and docs.html into (required)")
	outputFormat := fs.String("output-format", "traefik-dynamic", "output format")
	dialect := fs.String("dialect", sc.DefaultDialect, "rule dialect: v2|v3")
	workers := fs.Int("workers", 4, "number of concurrent conversion workers")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inputDir == "" || *outputDir == "" {
		return fmt.Errorf("scaffold requires --input-dir and --output-dir")
	}

	entries, err := os.ReadDir(*inputDir)
	if err != nil {
		return fmt.Errorf("read %s: %w", *inputDir, err)
	}

	var jobs []scaffold.Job
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		jobs = append(jobs, scaffold.Job{
			InputPath:  *inputDir + "/" + e.Name(),
			OutputPath: *outputDir + "/" + e.Name() + ".out",
			Request: orchestrator.Request{
				OutputFormat: *outputFormat,
				Dialect:      ruleast.Dialect(config.NormalizeDialect(*dialect)),
			},
		})
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", *outputDir, err)
	}

	results := scaffold.RunPool(jobs, *workers, log)

	failures := 0
	for _, r := range results {
		if r.Err != nil {
			failures++
			log.Error("conversion failed", "input", r.Job.InputPath, "error", r.Err)
		}
	}

	docsPath := *outputDir + "/docs.html"
	if err := scaffold.WriteDocs(docsPath, results); err != nil {
		return fmt.Errorf("write docs: %w", err)
	}

	log.Info("scaffold complete", "total", len(jobs), "failures", failures, "docs", docsPath)
	if failures > 0 {
		return fmt.Errorf("%d of %d conversions failed", failures, len(jobs))
	}
	return nil
}

func printDiagnostics(diags []model.Diagnostic) {
	for _, d := range diags {
		loc := ""
		if d.Source.File != "" {
			loc = fmt.Sprintf(" (%s)", d.Source.File)
		}
		fmt.Printf("[%s] %s: %s%s\n", d.Severity, d.Code, d.Message, loc)
	}
}

func hasErrorSeverity(diags []model.Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == model.SeverityError {
			return true
		}
	}
	return false
}

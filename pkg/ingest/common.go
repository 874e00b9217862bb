// Package ingest implements the C4 ingestors of spec.md §4.3: one per
// supported input format, each producing a format-neutral pkg/model.Config
// plus accumulated diagnostics. Shared contract (spec.md §4.3): unknown
// fields are warned, never fatal; referenced-but-undefined ids are errors,
// caught later by pkg/validate; unsupported features are recorded losslessly
// in RawExtras so round-trips stay stable.
package ingest

import (
	"fmt"

	"github.com/bolabaden/nginx-traefik-converter/pkg/model"
	"github.com/bolabaden/nginx-traefik-converter/pkg/ruleast"
	"github.com/bolabaden/nginx-traefik-converter/pkg/ruleparser"
)

// Options carries the caller's per-conversion choices into an ingestor.
type Options struct {
	// Dialect selects which rule grammar embedded rule strings are parsed
	// with (spec.md §4.2 dialect selection).
	Dialect ruleast.Dialect
	// Parser is the shared memoizing rule parser for this conversion run
	// (SPEC_FULL §4.2). If nil, a fresh non-memoizing parser is used.
	Parser *ruleparser.Parser
	// SourceFile names the input for diagnostic Source records.
	SourceFile string
}

func (o Options) dialect() ruleast.Dialect {
	if o.Dialect == "" {
		return ruleast.DialectV3
	}
	return o.Dialect
}

func (o Options) parseRule(src string, protocol ruleast.Protocol) (ruleast.Expr, *ruleparser.Diagnostic) {
	if o.Parser != nil {
		return o.Parser.Parse(src, o.dialect(), protocol)
	}
	return ruleparser.Parse(src, o.dialect(), protocol)
}

// Ingestor produces a Config from raw bytes of one input format.
type Ingestor interface {
	Ingest(data []byte, opts Options) (*model.Config, error)
}

func warn(cfg *model.Config, file, code, msg string) {
	cfg.AddDiagnostic(model.Diagnostic{
		Severity: model.SeverityWarning,
		Code:     code,
		Message:  msg,
		Source:   model.Source{File: file},
	})
}

func info(cfg *model.Config, file, code, msg string) {
	cfg.AddDiagnostic(model.Diagnostic{
		Severity: model.SeverityInfo,
		Code:     code,
		Message:  msg,
		Source:   model.Source{File: file},
	})
}

func errDiag(cfg *model.Config, file, code, msg string) {
	cfg.AddDiagnostic(model.Diagnostic{
		Severity: model.SeverityError,
		Code:     code,
		Message:  msg,
		Source:   model.Source{File: file},
	})
}

// ruleParseError wraps a rule-grammar diagnostic as the fatal, fail-fast
// error spec.md §7 requires for syntax faults: "no partial Config is
// returned".
type ruleParseError struct {
	RouterID string
	Diag     *ruleparser.Diagnostic
}

func (e *ruleParseError) Error() string {
	return fmt.Sprintf("router %q: %s", e.RouterID, e.Diag.Error())
}

// Package emit implements the C5 emitters of spec.md §4.4: one per
// supported output format, each lowering a format-neutral pkg/model.Config
// back into that format's native shape.
package emit

import "github.com/bolabaden/nginx-traefik-converter/pkg/model"

// Emitter renders a Config into one output format's bytes.
type Emitter interface {
	Emit(cfg *model.Config) ([]byte, error)
}

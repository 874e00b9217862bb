package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/traefik/traefik/v3/pkg/config/dynamic"

	"github.com/bolabaden/nginx-traefik-converter/pkg/model"
)

// JSONYAMLIngestor reads a generic JSON or YAML dump of the same shape as
// a Traefik dynamic configuration document. Per SPEC_FULL §4.3, this
// format carries no semantics of its own beyond the traefik-dynamic
// schema, so ingestion is a thin front end that only needs to pick a
// decoder before handing off to the shared traefik-dynamic path.
type JSONYAMLIngestor struct{}

func (JSONYAMLIngestor) Ingest(data []byte, opts Options) (*model.Config, error) {
	if looksLikeJSON(data) {
		var doc dynamic.Configuration
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("json: %w", err)
		}
		return fromDynamicConfiguration(&doc, opts)
	}
	return TraefikDynamicIngestor{}.Ingest(data, opts)
}

func looksLikeJSON(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}

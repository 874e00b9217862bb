package scaffold

import (
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/unrolled/render"

	"github.com/bolabaden/nginx-traefik-converter/pkg/model"
)

// templatesDir locates pkg/scaffold/templates relative to this source
// file, so WriteDocs works regardless of the caller's working directory.
func templatesDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "templates")
}

// jobSummary is the per-job view model handed to templates/docs.tmpl.
type jobSummary struct {
	Input       string
	Output      string
	Err         error
	Diagnostics []model.Diagnostic
}

type docsData struct {
	Title       string
	GeneratedAt string
	Jobs        []jobSummary
}

// WriteDocs renders a docs.html summary of a batch run's results using
// unrolled/render. render.Render is built to write into an
// http.ResponseWriter inside a handler; outside of a server, a
// httptest.ResponseRecorder stands in as that ResponseWriter so the
// rendered bytes can be captured and written to a plain file (SPEC_FULL
// §5 scaffold docs generation).
func WriteDocs(outputPath string, results []JobResult) error {
	rndr := render.New(render.Options{
		Directory:  templatesDir(),
		Extensions: []string{".tmpl"},
	})

	data := docsData{
		Title:       "nginx-traefik-converter scaffold report",
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
	for _, r := range results {
		data.Jobs = append(data.Jobs, jobSummary{
			Input:       r.Job.InputPath,
			Output:      r.Job.OutputPath,
			Err:         r.Err,
			Diagnostics: r.Diagnostics,
		})
	}

	rec := httptest.NewRecorder()
	if err := rndr.HTML(rec, 200, "docs", data); err != nil {
		return fmt.Errorf("render docs: %w", err)
	}

	if err := os.WriteFile(outputPath, rec.Body.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", outputPath, err)
	}
	return nil
}

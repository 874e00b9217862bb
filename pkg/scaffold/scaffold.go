// Package scaffold implements the batch "scaffold" operation of SPEC_FULL
// §5: convert many input files concurrently and write one docs.html
// summary alongside the outputs. The worker pool follows the same
// goroutine+channel shape as pkg/service's Docker event loop, just
// fanning out over a static job list instead of an open-ended event stream.
package scaffold

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bolabaden/nginx-traefik-converter/pkg/logger"
	"github.com/bolabaden/nginx-traefik-converter/pkg/model"
	"github.com/bolabaden/nginx-traefik-converter/pkg/orchestrator"
)

// Job is one file to convert.
type Job struct {
	InputPath  string
	OutputPath string
	Request    orchestrator.Request
}

// JobResult is one job's outcome.
type JobResult struct {
	Job         Job
	Diagnostics []model.Diagnostic
	Err         error
}

// RunPool converts every job concurrently across workers goroutines and
// returns results in job order.
func RunPool(jobs []Job, workers int, log *logger.Logger) []JobResult {
	if workers < 1 {
		workers = 1
	}

	results := make([]JobResult, len(jobs))
	jobCh := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for idx := range jobCh {
				results[idx] = runJob(jobs[idx])
				log.Debug("converted", "worker", workerID, "input", jobs[idx].InputPath)
			}
		}(w)
	}

	go func() {
		defer close(jobCh)
		for i := range jobs {
			jobCh <- i
		}
	}()

	wg.Wait()
	return results
}

func runJob(job Job) JobResult {
	data, err := os.ReadFile(job.InputPath)
	if err != nil {
		return JobResult{Job: job, Err: fmt.Errorf("read %s: %w", job.InputPath, err)}
	}
	job.Request.Data = data
	if job.Request.SourceFile == "" {
		job.Request.SourceFile = job.InputPath
	}

	res, err := orchestrator.Convert(job.Request)
	if err != nil {
		return JobResult{Job: job, Err: err}
	}

	if err := os.MkdirAll(filepath.Dir(job.OutputPath), 0o755); err != nil {
		return JobResult{Job: job, Err: fmt.Errorf("mkdir %s: %w", filepath.Dir(job.OutputPath), err)}
	}
	if err := os.WriteFile(job.OutputPath, res.Output, 0o644); err != nil {
		return JobResult{Job: job, Err: fmt.Errorf("write %s: %w", job.OutputPath, err)}
	}

	return JobResult{Job: job, Diagnostics: res.Diagnostics}
}

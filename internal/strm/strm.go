// Package strm writes placeholder files for streamable media: a small local
// file whose sole content is the resolved download URL.
package strm

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/sly67/alist-mirror/internal/alist"
	"github.com/sly67/alist-mirror/internal/logging"
	"github.com/sly67/alist-mirror/pkg/retry"
)

// API resolves the short-lived raw URL for a remote file.
type API interface {
	GetFileInfo(ctx context.Context, path string) (*alist.FileInfo, error)
}

// Task is one placeholder to produce.
type Task struct {
	RemotePath string
	Dest       string // destination of the original file; Write swaps the extension
}

// TaskError records a placeholder that could not be written.
type TaskError struct {
	Path     string
	Attempts int
	Err      error
}

// Report aggregates one batch of placeholder writes.
type Report struct {
	Written int
	Failed  []TaskError
}

// Writer produces placeholder files with bounded concurrency. URL
// resolution shares the same rate-limited client and retry policy as the
// download pipeline.
type Writer struct {
	api         API
	concurrency int
	policy      retry.Config
}

// New creates a Writer. Concurrency below 1 is clamped to 1.
func New(api API, concurrency int, policy retry.Config) *Writer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Writer{api: api, concurrency: concurrency, policy: policy}
}

// PlaceholderPath maps a destination path to its .strm sibling.
func PlaceholderPath(dest string) string {
	ext := filepath.Ext(dest)
	return strings.TrimSuffix(dest, ext) + ".strm"
}

// Write creates the placeholder for dest containing rawURL.
func Write(dest, rawURL string) error {
	path := PlaceholderPath(dest)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create parent of %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(rawURL), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

type taskResult struct {
	task     Task
	attempts int
	err      error
}

// Run resolves URLs and writes placeholders for the batch. Failures are
// recorded per task and never stop the rest of the batch.
func (w *Writer) Run(ctx context.Context, tasks []Task) *Report {
	results := make(chan taskResult, len(tasks))
	sem := make(chan struct{}, w.concurrency)
	var wg sync.WaitGroup

	for _, task := range tasks {
		wg.Add(1)
		sem <- struct{}{}

		go func(t Task) {
			defer wg.Done()
			defer func() { <-sem }()

			attempts, err := retry.Do(ctx, w.policy, func() error {
				info, err := w.api.GetFileInfo(ctx, t.RemotePath)
				if err != nil {
					return retry.Retryable(err)
				}
				if err := Write(t.Dest, info.RawURL); err != nil {
					return retry.Retryable(err)
				}
				return nil
			})
			results <- taskResult{task: t, attempts: attempts, err: err}
		}(task)
	}

	wg.Wait()
	close(results)

	report := &Report{}
	for r := range results {
		if r.err != nil {
			logging.Error("placeholder failed",
				zap.String("path", r.task.RemotePath),
				zap.Int("attempts", r.attempts),
				zap.Error(r.err))
			report.Failed = append(report.Failed, TaskError{
				Path:     r.task.RemotePath,
				Attempts: r.attempts,
				Err:      r.err,
			})
			continue
		}
		report.Written++
	}
	return report
}

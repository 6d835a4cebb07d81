// Package download fetches remote files into the local mirror with bounded
// concurrency, checksum-based skip and verification, and per-task retries.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/sly67/alist-mirror/internal/alist"
	"github.com/sly67/alist-mirror/internal/checksum"
	"github.com/sly67/alist-mirror/internal/crawl"
	"github.com/sly67/alist-mirror/internal/logging"
	"github.com/sly67/alist-mirror/internal/metrics"
	"github.com/sly67/alist-mirror/pkg/retry"
)

// API is the slice of the AList client the pipeline needs. Tests substitute
// a counting fake.
type API interface {
	GetFileInfo(ctx context.Context, path string) (*alist.FileInfo, error)
	Download(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

// Task is one file to materialize locally.
type Task struct {
	Item crawl.Item
	Dest string // resolved local destination path
}

// TaskError records the final failure of one task after retries.
type TaskError struct {
	Path     string
	Attempts int
	Err      error
}

// Report aggregates a batch. The pipeline is best-effort: individual
// failures land in Failed without canceling sibling tasks.
type Report struct {
	Downloaded int
	Skipped    int
	Failed     []TaskError
}

// Config holds pipeline settings.
type Config struct {
	Concurrency        int
	Retry              retry.Config
	DeleteCorrupt      bool
	UntrustedProviders map[string]struct{}
}

// Manager runs download tasks through a fixed-size worker pool.
type Manager struct {
	api API
	cfg Config
}

// New creates a Manager. Concurrency below 1 is clamped to 1.
func New(api API, cfg Config) *Manager {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Manager{api: api, cfg: cfg}
}

type taskResult struct {
	task     Task
	attempts int
	skipped  bool
	err      error
}

// Run executes the batch and returns the aggregate report. Worker count is
// bounded by the configured concurrency; all workers share the caller's
// rate-limited API client.
func (m *Manager) Run(ctx context.Context, tasks []Task) *Report {
	results := make(chan taskResult, len(tasks))
	sem := make(chan struct{}, m.cfg.Concurrency)
	var wg sync.WaitGroup

	for _, task := range tasks {
		wg.Add(1)
		sem <- struct{}{}

		go func(t Task) {
			defer wg.Done()
			defer func() { <-sem }()

			skipped := false
			attempts, err := retry.Do(ctx, m.cfg.Retry, func() error {
				s, err := m.attempt(ctx, t)
				if err != nil {
					return retry.Retryable(err)
				}
				skipped = s
				return nil
			})
			results <- taskResult{task: t, attempts: attempts, skipped: skipped, err: err}
		}(task)
	}

	wg.Wait()
	close(results)

	report := &Report{}
	for r := range results {
		switch {
		case r.err != nil:
			metrics.ObserveDownload("failed")
			logging.Error("download failed",
				zap.String("path", r.task.Item.Path),
				zap.Int("attempts", r.attempts),
				zap.Error(r.err))
			report.Failed = append(report.Failed, TaskError{
				Path:     r.task.Item.Path,
				Attempts: r.attempts,
				Err:      r.err,
			})
		case r.skipped:
			metrics.ObserveDownload("skipped")
			report.Skipped++
		default:
			metrics.ObserveDownload("ok")
			report.Downloaded++
		}
	}
	return report
}

// expectedHash resolves the hash to verify against. Providers on the
// denylist report sums that cannot be trusted, so their files are fetched
// unconditionally and never verified.
func (m *Manager) expectedHash(item crawl.Item) *alist.HashInfo {
	if _, untrusted := m.cfg.UntrustedProviders[item.Provider]; untrusted {
		return nil
	}
	if item.Entry.HashInfo.Algo() == alist.HashNone {
		return nil
	}
	return item.Entry.HashInfo
}

// attempt performs one full try: skip check, URL resolution, streaming GET
// into a temp file, atomic rename, post-write verification. It reports
// skipped=true when the local file already matched and no network was used.
func (m *Manager) attempt(ctx context.Context, t Task) (skipped bool, err error) {
	hash := m.expectedHash(t.Item)

	if hash != nil {
		ok, err := checksum.Verify(t.Dest, hash)
		if err != nil {
			return false, err
		}
		if ok {
			logging.Debug("local file up to date", zap.String("path", t.Dest))
			return true, nil
		}
	}

	info, err := m.api.GetFileInfo(ctx, t.Item.Path)
	if err != nil {
		return false, err
	}

	body, err := m.api.Download(ctx, info.RawURL)
	if err != nil {
		return false, err
	}
	defer body.Close()

	written, err := writeAtomic(t.Dest, body)
	if err != nil {
		return false, err
	}
	metrics.AddDownloadBytes(written)

	if hash != nil {
		ok, err := checksum.Verify(t.Dest, hash)
		if err != nil {
			return false, err
		}
		if !ok {
			metrics.ObserveChecksumMismatch()
			if m.cfg.DeleteCorrupt {
				if rmErr := os.Remove(t.Dest); rmErr != nil {
					logging.Warn("could not remove corrupt file",
						zap.String("path", t.Dest), zap.Error(rmErr))
				}
			}
			return false, fmt.Errorf("%s: %w", t.Dest, checksum.ErrChecksumMismatch)
		}
	}

	logging.Debug("downloaded",
		zap.String("path", t.Item.Path),
		zap.Int64("bytes", written))
	return false, nil
}

// writeAtomic streams r into dest via a .part sibling and renames it into
// place, so readers never observe a half-written file under the final name.
func writeAtomic(dest string, r io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return 0, fmt.Errorf("create parent of %s: %w", dest, err)
	}

	tmp := dest + ".part"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", tmp, err)
	}

	written, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		os.Remove(tmp)
		return written, fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return written, fmt.Errorf("close %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return written, fmt.Errorf("rename %s: %w", tmp, err)
	}
	return written, nil
}

// IsChecksumMismatch reports whether err is a failed verification.
func IsChecksumMismatch(err error) bool {
	return errors.Is(err, checksum.ErrChecksumMismatch)
}

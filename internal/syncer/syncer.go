// Package syncer orchestrates one full run: crawl the remote tree, classify
// entries, materialize them locally, then reconcile the mirror.
package syncer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/sly67/alist-mirror/internal/alist"
	"github.com/sly67/alist-mirror/internal/config"
	"github.com/sly67/alist-mirror/internal/crawl"
	"github.com/sly67/alist-mirror/internal/download"
	"github.com/sly67/alist-mirror/internal/logging"
	"github.com/sly67/alist-mirror/internal/reconcile"
	"github.com/sly67/alist-mirror/internal/strm"
	"github.com/sly67/alist-mirror/pkg/retry"
)

// API is the full client surface one run needs.
type API interface {
	ListDirectory(ctx context.Context, path string) (*alist.Listing, error)
	download.API
}

// Failure is one path that ended in an error after all retries.
type Failure struct {
	Path string
	Err  error
}

// Summary is the user-visible outcome of a run.
type Summary struct {
	Crawled      int
	FailedDirs   []string
	Downloaded   int
	Skipped      int
	StrmWritten  int
	Failures     []Failure
	Removable    []string
	DeletedFiles int
	DeletedDirs  int
}

// OK reports whether the run completed without any casualty.
func (s *Summary) OK() bool {
	return len(s.FailedDirs) == 0 && len(s.Failures) == 0
}

// Run executes one sync. Only systemic problems (unusable output root,
// canceled context) return an error; per-path failures are collected in the
// summary, since the engine is best-effort over the batch.
func Run(ctx context.Context, api API, cfg *config.Config) (*Summary, error) {
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output root %s: %w", cfg.OutputDir, err)
	}

	crawler := crawl.New(api, cfg.MaxRetries, cfg.CrawlDelay)
	logging.Info("crawling remote tree", zap.String("root", cfg.RootPath))
	result, err := crawler.Crawl(ctx, cfg.RootPath)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		Crawled:    len(result.Items),
		FailedDirs: result.FailedDirs,
	}
	logging.Info("crawl finished",
		zap.Int("entries", len(result.Items)),
		zap.Int("failed_dirs", len(result.FailedDirs)))

	dlTasks, strmTasks := classify(result.Items, cfg)

	backoff := retry.Backoff(cfg.MaxRetries, cfg.BackoffBase, cfg.BackoffMax)

	if len(strmTasks) > 0 {
		logging.Info("writing placeholders", zap.Int("count", len(strmTasks)))
		writer := strm.New(api, cfg.Concurrency, backoff)
		report := writer.Run(ctx, strmTasks)
		summary.StrmWritten = report.Written
		for _, f := range report.Failed {
			summary.Failures = append(summary.Failures, Failure{Path: f.Path, Err: f.Err})
		}
	}

	if len(dlTasks) > 0 {
		logging.Info("downloading files", zap.Int("count", len(dlTasks)))
		manager := download.New(api, download.Config{
			Concurrency:        cfg.Concurrency,
			Retry:              backoff,
			DeleteCorrupt:      cfg.DeleteCorrupt,
			UntrustedProviders: cfg.UntrustedProviders,
		})
		report := manager.Run(ctx, dlTasks)
		summary.Downloaded = report.Downloaded
		summary.Skipped = report.Skipped
		for _, f := range report.Failed {
			summary.Failures = append(summary.Failures, Failure{Path: f.Path, Err: f.Err})
		}
	}

	expected := expectedPaths(result.Items, cfg)
	recReport, err := reconcile.Run(cfg.OutputDir, expected, cfg.Delete)
	if err != nil {
		return summary, err
	}
	summary.Removable = recReport.Removable
	summary.DeletedFiles = recReport.DeletedFiles
	summary.DeletedDirs = recReport.DeletedDirs
	for _, path := range recReport.Failed {
		summary.Failures = append(summary.Failures, Failure{Path: path, Err: fmt.Errorf("reconcile failed for %s", path)})
	}

	return summary, nil
}

// destPath maps a remote path onto the output tree.
func destPath(outputDir, remotePath string) string {
	rel := strings.TrimPrefix(remotePath, "/")
	return filepath.Join(outputDir, filepath.FromSlash(rel))
}

// classify splits crawled files into download and placeholder work. In strm
// mode, streamable media become placeholders, metadata files are downloaded
// and everything else is left alone; mirror mode downloads every file.
func classify(items []crawl.Item, cfg *config.Config) ([]download.Task, []strm.Task) {
	var dlTasks []download.Task
	var strmTasks []strm.Task

	for _, item := range items {
		if item.Entry.IsDir {
			continue
		}
		dest := destPath(cfg.OutputDir, item.Path)

		if cfg.Mode == config.ModeMirror {
			dlTasks = append(dlTasks, download.Task{Item: item, Dest: dest})
			continue
		}

		ext := item.Entry.Ext()
		switch {
		case cfg.IsStreamable(ext):
			strmTasks = append(strmTasks, strm.Task{RemotePath: item.Path, Dest: dest})
		case cfg.IsMetadata(ext):
			dlTasks = append(dlTasks, download.Task{Item: item, Dest: dest})
		default:
			logging.Debug("skipping unmatched extension", zap.String("path", item.Path))
		}
	}
	return dlTasks, strmTasks
}

// expectedPaths builds the set of local paths the mirror should contain.
// Directories are excluded; in strm mode streamable files map to their
// placeholder path since they are never downloaded verbatim.
func expectedPaths(items []crawl.Item, cfg *config.Config) map[string]struct{} {
	expected := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item.Entry.IsDir {
			continue
		}
		dest := destPath(cfg.OutputDir, item.Path)
		if cfg.Mode == config.ModeStrm && cfg.IsStreamable(item.Entry.Ext()) {
			dest = strm.PlaceholderPath(dest)
		}
		expected[dest] = struct{}{}
	}
	return expected
}

// Package reconcile diffs the local mirror against the latest crawl and
// removes files and directories no longer represented remotely.
package reconcile

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sly67/alist-mirror/internal/logging"
	"github.com/sly67/alist-mirror/internal/metrics"
)

// Report is the outcome of one reconciliation pass. In non-destructive mode
// Removable lists what would be deleted; in destructive mode it lists what
// was targeted, with per-entry failures in Failed.
type Report struct {
	Removable    []string
	DeletedFiles int
	DeletedDirs  int
	Failed       []string
}

// Run walks root once, marking every regular file whose path is not in
// expected. With destructive set, marked files are deleted and a second,
// contents-first pass removes directories left empty. Deletion is
// best-effort per entry: one failure is recorded and the walk continues.
func Run(root string, expected map[string]struct{}, destructive bool) (*Report, error) {
	report := &Report{}

	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return report, nil
		}
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logging.Warn("walk error", zap.String("path", path), zap.Error(err))
			report.Failed = append(report.Failed, path)
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if _, keep := expected[path]; keep {
			return nil
		}

		report.Removable = append(report.Removable, path)
		if !destructive {
			return nil
		}

		if err := os.Remove(path); err != nil {
			logging.Warn("could not delete file", zap.String("path", path), zap.Error(err))
			report.Failed = append(report.Failed, path)
			return nil
		}
		metrics.ObserveReconcileDelete("file")
		logging.Info("deleted stale file", zap.String("path", path))
		report.DeletedFiles++
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("walk %s: %w", root, err)
	}

	if destructive {
		report.DeletedDirs = sweepEmptyDirs(root, report)
	}
	return report, nil
}

// sweepEmptyDirs removes directories left empty by file cleanup, deepest
// first so that newly emptied parents are caught in the same pass.
func sweepEmptyDirs(root string, report *Report) int {
	var dirs []string
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err == nil && d.IsDir() && path != root {
			dirs = append(dirs, path)
		}
		return nil
	})

	sort.Slice(dirs, func(i, j int) bool {
		return strings.Count(dirs[i], string(os.PathSeparator)) >
			strings.Count(dirs[j], string(os.PathSeparator))
	})

	deleted := 0
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			continue
		}
		if err := os.Remove(dir); err != nil {
			logging.Warn("could not delete directory", zap.String("path", dir), zap.Error(err))
			report.Failed = append(report.Failed, dir)
			continue
		}
		metrics.ObserveReconcileDelete("dir")
		logging.Info("deleted empty directory", zap.String("path", dir))
		deleted++
	}
	return deleted
}

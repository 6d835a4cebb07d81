// Package crawl walks a remote AList directory tree breadth-first and
// flattens it into a list of entries with absolute paths.
package crawl

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sly67/alist-mirror/internal/alist"
	"github.com/sly67/alist-mirror/internal/logging"
	"github.com/sly67/alist-mirror/internal/metrics"
	"github.com/sly67/alist-mirror/pkg/retry"
)

// Lister is the single API call the crawler needs.
type Lister interface {
	ListDirectory(ctx context.Context, path string) (*alist.Listing, error)
}

// Item pairs one remote entry with its absolute path and the provider of
// the folder that produced it. Created once per crawl, never mutated.
type Item struct {
	Entry    alist.Entry
	Path     string
	Provider string
}

// Result is the flattened crawl outcome. FailedDirs lists directories that
// exhausted their listing retries; their subtrees are simply absent from
// Items.
type Result struct {
	Items      []Item
	FailedDirs []string
}

// Crawler lists directories strictly sequentially; listing calls are
// already rate-limited and directory counts are small next to file counts.
type Crawler struct {
	lister Lister
	policy retry.Config
}

// New builds a crawler retrying each directory maxAttempts times with a
// fixed delay between attempts.
func New(lister Lister, maxAttempts int, delay time.Duration) *Crawler {
	return &Crawler{
		lister: lister,
		policy: retry.Fixed(maxAttempts, delay),
	}
}

// Crawl traverses the tree rooted at root. A queue drives the traversal and
// a visited set guarantees each path is listed at most once, so cyclic or
// repeated directory references cannot loop. A directory that keeps failing
// is logged and skipped; the crawl always runs the queue to completion.
func (c *Crawler) Crawl(ctx context.Context, root string) (*Result, error) {
	visited := map[string]struct{}{root: {}}
	queue := []string{root}
	res := &Result{}

	for len(queue) > 0 {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}

		current := queue[0]
		queue = queue[1:]

		listing, err := c.listWithRetry(ctx, current)
		if err != nil {
			logging.Warn("giving up on directory",
				zap.String("path", current), zap.Error(err))
			metrics.ObserveCrawlFailedDir()
			res.FailedDirs = append(res.FailedDirs, current)
			continue
		}

		// nil content is a valid empty directory
		if listing.Content == nil {
			continue
		}

		metrics.AddCrawlEntries(len(listing.Content))
		for _, entry := range listing.Content {
			full := joinPath(current, entry.Name)
			logging.Debug("scanned entry", zap.String("path", full))

			res.Items = append(res.Items, Item{
				Entry:    entry,
				Path:     full,
				Provider: listing.Provider,
			})

			if entry.IsDir {
				if _, seen := visited[full]; !seen {
					visited[full] = struct{}{}
					queue = append(queue, full)
				}
			}
		}
	}

	return res, nil
}

func (c *Crawler) listWithRetry(ctx context.Context, path string) (*alist.Listing, error) {
	var listing *alist.Listing
	attempts, err := retry.Do(ctx, c.policy, func() error {
		l, err := c.lister.ListDirectory(ctx, path)
		if err != nil {
			logging.Warn("list failed, will retry",
				zap.String("path", path), zap.Error(err))
			return retry.Retryable(err)
		}
		listing = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	if attempts > 1 {
		logging.Info("list succeeded after retries",
			zap.String("path", path), zap.Int("attempts", attempts))
	}
	return listing, nil
}

func joinPath(parent, name string) string {
	return strings.TrimSuffix(parent, "/") + "/" + name
}

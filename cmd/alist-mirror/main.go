// alist-mirror synchronizes a local directory tree against an AList server:
// it crawls the remote namespace, downloads metadata files, writes .strm
// placeholders for streamable media (or mirrors everything verbatim with
// -mode mirror), and prunes local files no longer present remotely.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sly67/alist-mirror/internal/alist"
	"github.com/sly67/alist-mirror/internal/config"
	"github.com/sly67/alist-mirror/internal/logging"
	"github.com/sly67/alist-mirror/internal/metrics"
	"github.com/sly67/alist-mirror/internal/syncer"
)

func main() {
	cfg := parseFlags()

	if err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: init logging: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		flag.Usage()
		os.Exit(1)
	}

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(cfg.MetricsAddr); err != nil {
				logging.Warn("metrics listener stopped", zap.Error(err))
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	limiter := alist.NewLimiter(cfg.RPSLimit, cfg.LimiterWait)
	client := alist.New(alist.Config{
		BaseURL: cfg.ServerAddress,
		Token:   cfg.Token,
		Timeout: cfg.RequestTimeout,
		Limiter: limiter,
	})

	summary, err := syncer.Run(ctx, client, cfg)
	if err != nil {
		logging.Fatal("sync aborted", zap.Error(err))
	}

	logging.Info("sync finished",
		zap.Int("crawled", summary.Crawled),
		zap.Int("downloaded", summary.Downloaded),
		zap.Int("skipped", summary.Skipped),
		zap.Int("strm_written", summary.StrmWritten),
		zap.Int("deleted_files", summary.DeletedFiles),
		zap.Int("deleted_dirs", summary.DeletedDirs),
		zap.Int("failures", len(summary.Failures)),
		zap.Int("failed_dirs", len(summary.FailedDirs)))

	if !cfg.Delete && len(summary.Removable) > 0 {
		logging.Info("stale local files present, re-run with -delete to remove them",
			zap.Int("count", len(summary.Removable)))
	}
	for _, f := range summary.Failures {
		logging.Error("failed path", zap.String("path", f.Path), zap.Error(f.Err))
	}

	if !summary.OK() {
		os.Exit(1)
	}
}

func parseFlags() *config.Config {
	cfg := config.Default()

	server := flag.String("server", "", "AList server address, e.g. http://localhost:5244 (required)")
	token := flag.String("token", "", "API token (falls back to ALIST_TOKEN)")
	root := flag.String("path", "", "Remote path to synchronize (required)")
	out := flag.String("out", "", "Local output directory (required)")
	mode := flag.String("mode", string(config.ModeStrm), "Sync mode: strm or mirror")
	concurrency := flag.Int("concurrency", cfg.Concurrency, "Maximum concurrent downloads")
	rps := flag.Float64("rps", cfg.RPSLimit, "API requests per second")
	timeout := flag.Duration("timeout", cfg.RequestTimeout, "Per-request timeout")
	del := flag.Bool("delete", false, "Delete local files absent remotely")
	delCorrupt := flag.Bool("delete-corrupt", false, "Remove files that fail checksum verification")
	untrusted := flag.String("untrusted-hash", "BaiduNetdisk", "Comma-separated providers whose hashes are ignored")
	streamable := flag.String("strm-ext", "", "Override streamable extension list (comma-separated)")
	metadata := flag.String("meta-ext", "", "Override metadata extension list (comma-separated)")
	metricsAddr := flag.String("metrics", "", "Expose Prometheus metrics on this address (optional)")
	logLevel := flag.String("log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	logFormat := flag.String("log-format", cfg.LogFormat, "Log format: console or json")

	flag.Parse()

	cfg.ServerAddress = *server
	cfg.Token = *token
	cfg.RootPath = *root
	cfg.OutputDir = *out
	cfg.Mode = config.Mode(*mode)
	cfg.Concurrency = *concurrency
	cfg.RPSLimit = *rps
	cfg.RequestTimeout = *timeout
	cfg.LimiterWait = 5 * time.Second
	cfg.Delete = *del
	cfg.DeleteCorrupt = *delCorrupt
	cfg.MetricsAddr = *metricsAddr
	cfg.LogLevel = *logLevel
	cfg.LogFormat = *logFormat

	if cfg.Token == "" {
		cfg.Token = os.Getenv("ALIST_TOKEN")
	}
	if *untrusted != "" {
		cfg.UntrustedProviders = splitList(*untrusted)
	}
	if *streamable != "" {
		cfg.StreamableExts = config.ParseExtList(*streamable)
	}
	if *metadata != "" {
		cfg.MetadataExts = config.ParseExtList(*metadata)
	}

	return cfg
}

func splitList(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			set[part] = struct{}{}
		}
	}
	return set
}

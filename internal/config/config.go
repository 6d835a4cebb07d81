// Package config holds the run configuration supplied by the CLI.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects how matched files are materialized locally.
type Mode string

const (
	// ModeStrm writes placeholder files for streamable media and downloads
	// metadata files alongside them.
	ModeStrm Mode = "strm"
	// ModeMirror downloads every file verbatim.
	ModeMirror Mode = "mirror"
)

// Default extension sets, overridable per run.
var (
	defaultStreamable = []string{
		"mkv", "iso", "ts", "mp4", "avi", "rmvb", "wmv", "m2ts", "mpg",
		"flv", "rm", "mov", "wav", "mp3",
	}
	defaultMetadata = []string{
		"nfo", "jpg", "png", "svg", "ass", "srt", "sup", "vtt", "txt",
	}
	defaultUntrustedProviders = []string{"BaiduNetdisk"}
)

// Config holds all settings for one sync run.
type Config struct {
	ServerAddress string
	Token         string
	RootPath      string // remote path to crawl
	OutputDir     string // local mirror root

	Mode Mode

	Concurrency    int
	RPSLimit       float64
	RequestTimeout time.Duration
	LimiterWait    time.Duration

	MaxRetries  int
	CrawlDelay  time.Duration
	BackoffBase time.Duration
	BackoffMax  time.Duration

	Delete        bool // destructive reconciliation
	DeleteCorrupt bool // remove checksum-mismatched partials

	UntrustedProviders map[string]struct{}
	StreamableExts     map[string]struct{}
	MetadataExts       map[string]struct{}

	MetricsAddr string
	LogLevel    string
	LogFormat   string
}

// Default returns a Config with the stock extension sets and timings.
func Default() *Config {
	return &Config{
		Mode:               ModeStrm,
		Concurrency:        4,
		RPSLimit:           10,
		RequestTimeout:     5 * time.Second,
		LimiterWait:        5 * time.Second,
		MaxRetries:         3,
		CrawlDelay:         time.Second,
		BackoffBase:        500 * time.Millisecond,
		BackoffMax:         10 * time.Second,
		UntrustedProviders: toSet(defaultUntrustedProviders),
		StreamableExts:     toSet(defaultStreamable),
		MetadataExts:       toSet(defaultMetadata),
		LogLevel:           "info",
		LogFormat:          "console",
	}
}

// Validate checks required fields and pipeline invariants.
func (c *Config) Validate() error {
	if c.ServerAddress == "" {
		return fmt.Errorf("server address is required")
	}
	if c.RootPath == "" {
		return fmt.Errorf("remote root path is required")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output directory is required")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.RPSLimit <= 0 {
		return fmt.Errorf("rate limit must be positive, got %g", c.RPSLimit)
	}
	if c.Mode != ModeStrm && c.Mode != ModeMirror {
		return fmt.Errorf("unknown mode %q", c.Mode)
	}
	return nil
}

// IsStreamable reports whether ext gets placeholder treatment.
func (c *Config) IsStreamable(ext string) bool {
	_, ok := c.StreamableExts[ext]
	return ok
}

// IsMetadata reports whether ext is downloaded alongside media.
func (c *Config) IsMetadata(ext string) bool {
	_, ok := c.MetadataExts[ext]
	return ok
}

// ParseExtList splits a comma-separated extension list into a set.
// Entries are lowercased and stripped of leading dots.
func ParseExtList(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimPrefix(strings.TrimSpace(part), ".")
		if part == "" {
			continue
		}
		set[strings.ToLower(part)] = struct{}{}
	}
	return set
}

func toSet(list []string) map[string]struct{} {
	set := make(map[string]struct{}, len(list))
	for _, s := range list {
		set[s] = struct{}{}
	}
	return set
}

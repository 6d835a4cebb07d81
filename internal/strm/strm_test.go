package strm

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sly67/alist-mirror/internal/alist"
	"github.com/sly67/alist-mirror/pkg/retry"
)

func TestPlaceholderPath(t *testing.T) {
	cases := []struct{ in, want string }{
		{"/out/A/movie.mkv", "/out/A/movie.strm"},
		{"/out/A/track.mp3", "/out/A/track.strm"},
		{"/out/A/noext", "/out/A/noext.strm"},
		{"/out/A/a.b.mkv", "/out/A/a.b.strm"},
	}
	for _, tc := range cases {
		if got := PlaceholderPath(tc.in); got != tc.want {
			t.Errorf("PlaceholderPath(%q): got %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestWrite_CreatesParentsAndContent(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "A", "sub", "movie.mkv")
	url := "http://example.test/d/A/sub/movie.mkv?sign=xyz"

	if err := Write(dest, url); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := os.ReadFile(PlaceholderPath(dest))
	if err != nil {
		t.Fatalf("read placeholder: %v", err)
	}
	if string(got) != url {
		t.Errorf("content: got %q, want %q", got, url)
	}
}

type fakeResolver struct {
	mu    sync.Mutex
	urls  map[string]string
	calls int
}

func (f *fakeResolver) GetFileInfo(_ context.Context, path string) (*alist.FileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	url, ok := f.urls[path]
	if !ok {
		return nil, &alist.APIError{Code: 500, Message: "object not found"}
	}
	return &alist.FileInfo{RawURL: url}, nil
}

func TestRun_WritesPlaceholders(t *testing.T) {
	dir := t.TempDir()
	f := &fakeResolver{urls: map[string]string{
		"/A/movie.mkv": "http://example.test/d/A/movie.mkv",
	}}

	w := New(f, 2, retry.Backoff(3, time.Millisecond, time.Millisecond))
	report := w.Run(context.Background(), []Task{
		{RemotePath: "/A/movie.mkv", Dest: filepath.Join(dir, "A", "movie.mkv")},
	})

	if report.Written != 1 || len(report.Failed) != 0 {
		t.Fatalf("report: %+v", report)
	}
	got, err := os.ReadFile(filepath.Join(dir, "A", "movie.strm"))
	if err != nil {
		t.Fatalf("read placeholder: %v", err)
	}
	if string(got) != "http://example.test/d/A/movie.mkv" {
		t.Errorf("content: got %q", got)
	}
}

func TestRun_FailureRecordedNotFatal(t *testing.T) {
	dir := t.TempDir()
	f := &fakeResolver{urls: map[string]string{
		"/A/ok.mkv": "http://example.test/d/A/ok.mkv",
	}}

	w := New(f, 2, retry.Backoff(2, time.Millisecond, time.Millisecond))
	report := w.Run(context.Background(), []Task{
		{RemotePath: "/A/ok.mkv", Dest: filepath.Join(dir, "A", "ok.mkv")},
		{RemotePath: "/A/gone.mkv", Dest: filepath.Join(dir, "A", "gone.mkv")},
	})

	if report.Written != 1 {
		t.Errorf("expected the healthy task to finish, report: %+v", report)
	}
	if len(report.Failed) != 1 || report.Failed[0].Path != "/A/gone.mkv" {
		t.Fatalf("failed: %+v", report.Failed)
	}
	if report.Failed[0].Attempts != 2 {
		t.Errorf("attempts: got %d, want 2", report.Failed[0].Attempts)
	}
}

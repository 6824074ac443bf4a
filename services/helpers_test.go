package services

import (
	"context"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Afterbark/youtube-to-mp3/logging"
	"github.com/Afterbark/youtube-to-mp3/types"
	"github.com/stretchr/testify/require"
)

// fakeExtractor stands in for yt-dlp. It replays events through the progress
// hook and writes a placeholder artifact where the template points.
type fakeExtractor struct {
	events    []types.ProgressEvent
	title     string
	err       error
	panicMsg  string
	skipWrite bool
	block     chan struct{}

	// titles maps a source URL to the metadata title returned for it
	titles map[string]string

	mu      sync.Mutex
	calls   []ExtractOptions
	running atomic.Int32
	peak    atomic.Int32
}

func (f *fakeExtractor) Extract(ctx context.Context, sourceURL string, opts ExtractOptions) (*types.ExtractResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, opts)
	f.mu.Unlock()

	n := f.running.Add(1)
	defer f.running.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, &types.ExtractionError{URL: sourceURL, Message: ctx.Err().Error(), Err: types.ErrExtractTimeout}
		}
	}

	for _, ev := range f.events {
		if opts.Progress != nil {
			opts.Progress(ev)
		}
	}
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.err != nil {
		return nil, f.err
	}

	if !f.skipWrite {
		ext, err := types.AudioExtension(opts.AudioCodec)
		if err != nil {
			return nil, err
		}
		path := strings.Replace(opts.OutputTemplate, "%(ext)s", ext, 1)
		if err := os.WriteFile(path, []byte("not really audio"), 0644); err != nil {
			return nil, err
		}
	}

	title := f.title
	if t, ok := f.titles[sourceURL]; ok {
		title = t
	}
	return &types.ExtractResult{Title: title}, nil
}

func (f *fakeExtractor) lastCall(t *testing.T) ExtractOptions {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.calls)
	return f.calls[len(f.calls)-1]
}

type testEnv struct {
	store      TaskStore
	artifacts  ArtifactService
	downloader Downloader
	extractor  *fakeExtractor
}

func newTestEnv(t *testing.T, extractor *fakeExtractor, cfg DownloaderConfig) *testEnv {
	t.Helper()

	if cfg.AudioCodec == "" {
		cfg.AudioCodec = "mp3"
	}
	if cfg.AudioQuality == "" {
		cfg.AudioQuality = "192"
	}

	logger := logging.Discard()
	artifacts := NewArtifactService(t.TempDir(), cfg.AudioCodec, logger)
	require.NoError(t, artifacts.EnsureDir())

	store := NewTaskStore()
	return &testEnv{
		store:      store,
		artifacts:  artifacts,
		downloader: NewDownloader(store, artifacts, extractor, cfg, nil, logger),
		extractor:  extractor,
	}
}

func (e *testEnv) waitTerminal(t *testing.T, id string) types.Task {
	t.Helper()
	var task types.Task
	require.Eventually(t, func() bool {
		var ok bool
		task, ok = e.store.Get(id)
		return ok && task.Status.IsTerminal()
	}, 5*time.Second, 10*time.Millisecond, "task %s never finished", id)
	return task
}

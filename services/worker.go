package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Afterbark/youtube-to-mp3/types"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/semaphore"
)

// Downloader interface defines how tasks are submitted and run
type Downloader interface {
	Submit(sourceURL string) (types.Task, error)
	Wait(ctx context.Context) error
}

// DownloaderConfig holds the fixed extraction settings applied to every task
type DownloaderConfig struct {
	AudioCodec   string
	AudioQuality string
	CookieFile   string
	PlayerClient string

	// MaxConcurrent bounds running workers; 0 spawns one per task unbounded
	MaxConcurrent int
	// Timeout aborts a worker after this long; 0 never times out
	Timeout time.Duration
}

// downloader spawns one worker goroutine per submitted task
type downloader struct {
	store     TaskStore
	artifacts ArtifactService
	extractor Extractor
	cfg       DownloaderConfig
	sem       *semaphore.Weighted
	metrics   *Metrics
	logger    *slog.Logger
	wg        sync.WaitGroup
}

// NewDownloader creates a downloader. metrics may be nil.
func NewDownloader(store TaskStore, artifacts ArtifactService, extractor Extractor, cfg DownloaderConfig, metrics *Metrics, logger *slog.Logger) Downloader {
	d := &downloader{
		store:     store,
		artifacts: artifacts,
		extractor: extractor,
		cfg:       cfg,
		metrics:   metrics,
		logger:    logger.With("component", "downloader"),
	}
	if cfg.MaxConcurrent > 0 {
		d.sem = semaphore.NewWeighted(int64(cfg.MaxConcurrent))
	}
	return d
}

// Submit validates the URL, creates a queued task and starts its worker. It
// returns without waiting for any download work.
func (d *downloader) Submit(sourceURL string) (types.Task, error) {
	sourceURL = strings.TrimSpace(sourceURL)
	if err := validateSourceURL(sourceURL); err != nil {
		return types.Task{}, err
	}

	task := d.store.Create(sourceURL)
	d.metrics.taskSubmitted()
	d.logger.Info("task submitted", "task_id", task.ID, "url", sourceURL)

	d.wg.Add(1)
	go d.run(task.ID, sourceURL)

	return task, nil
}

// Wait blocks until every started worker has returned or ctx is done
func (d *downloader) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run executes one task to a terminal state. Nothing that happens in here
// escapes to the caller or to other tasks.
func (d *downloader) run(taskID, sourceURL string) {
	defer d.wg.Done()

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("worker panicked", "task_id", taskID, "panic", r)
			d.fail(taskID, fmt.Errorf("internal error: %v", r))
		}
	}()

	if d.sem != nil {
		// waiting tasks stay queued
		if err := d.sem.Acquire(context.Background(), 1); err != nil {
			d.fail(taskID, err)
			return
		}
		defer d.sem.Release(1)
	}

	d.metrics.workerStarted()
	defer d.metrics.workerStopped()

	ctx := context.Background()
	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}

	if err := d.process(ctx, taskID, sourceURL); err != nil {
		d.fail(taskID, err)
		return
	}
}

func (d *downloader) process(ctx context.Context, taskID, sourceURL string) error {
	opts := ExtractOptions{
		OutputTemplate: d.artifacts.OutputTemplate(taskID),
		Format:         FormatSelector,
		AudioCodec:     d.cfg.AudioCodec,
		AudioQuality:   d.cfg.AudioQuality,
		NoPlaylist:     true,
		CookieFile:     d.cfg.CookieFile,
		PlayerClient:   d.cfg.PlayerClient,
		Progress:       NewProgressHook(d.store, taskID, d.logger),
	}

	result, err := d.extractor.Extract(ctx, sourceURL, opts)
	if err != nil {
		return err
	}
	if result == nil {
		result = &types.ExtractResult{}
	}

	// done is only reported once the artifact is on disk
	artifact := d.artifacts.ArtifactPath(taskID)
	info, err := d.artifacts.Stat(artifact)
	if err != nil {
		return fmt.Errorf("conversion produced no %s file: %w", d.cfg.AudioCodec, err)
	}

	title := d.resolveTitle(taskID, result, artifact)
	if err := d.store.Update(taskID, func(t *types.Task) {
		t.MarkDone(artifact, title)
	}); err != nil {
		return err
	}

	d.logger.Info("task done", "task_id", taskID, "title", title, "path", artifact, "size", humanize.Bytes(uint64(info.Size())))
	return nil
}

// resolveTitle prefers collaborator metadata, then a title seen in progress
// events, then the artifact's own tags, then a placeholder
func (d *downloader) resolveTitle(taskID string, result *types.ExtractResult, artifact string) string {
	if title := strings.TrimSpace(result.Title); title != "" {
		return title
	}
	if task, ok := d.store.Get(taskID); ok && task.Title != "" {
		return task.Title
	}
	if meta := d.artifacts.ReadMetadata(artifact); meta != nil && meta.Title != "" {
		return meta.Title
	}
	return DefaultTitle
}

func (d *downloader) fail(taskID string, err error) {
	level := slog.LevelError
	if IsExtractionError(err) {
		level = slog.LevelWarn
	}
	d.logger.Log(context.Background(), level, "task failed", "task_id", taskID, "error", err)

	if updateErr := d.store.Update(taskID, func(t *types.Task) {
		t.MarkFailed(err.Error())
	}); updateErr != nil && !errors.Is(updateErr, types.ErrTaskNotFound) {
		d.logger.Error("failed to record task failure", "task_id", taskID, "error", updateErr)
	}
}

// validateSourceURL accepts absolute http(s) URLs only
func validateSourceURL(sourceURL string) error {
	if sourceURL == "" {
		return fmt.Errorf("%w: no url provided", types.ErrInvalidInput)
	}
	parsed, err := url.Parse(sourceURL)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidInput, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", types.ErrInvalidInput, parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%w: missing host", types.ErrInvalidInput)
	}
	return nil
}

package cmd

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Afterbark/youtube-to-mp3/config"
	"github.com/Afterbark/youtube-to-mp3/services"
	"github.com/Afterbark/youtube-to-mp3/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App wires the task subsystem shared by the web server and the CLI mode
type App struct {
	Config     *config.Config
	Store      services.TaskStore
	Artifacts  services.ArtifactService
	Downloader services.Downloader
	Janitor    *services.Janitor
	Hub        websocket.Hub
	Registry   *prometheus.Registry
	Logger     *slog.Logger

	hubOnce sync.Once
}

// NewApp resolves yt-dlp and builds the application around it
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	extractor, err := services.NewYtdlpExtractor(ctx, services.YtdlpConfig{
		Executable:       cfg.YtdlpPath,
		AutoInstall:      cfg.AutoInstall,
		ProgressInterval: cfg.ProgressInterval,
	})
	if err != nil {
		return nil, err
	}
	return NewAppWithExtractor(cfg, extractor, logger)
}

// NewAppWithExtractor builds the application around the given extractor and
// creates the artifact directory
func NewAppWithExtractor(cfg *config.Config, extractor services.Extractor, logger *slog.Logger) (*App, error) {
	artifacts := services.NewArtifactService(cfg.DownloadFolder, cfg.AudioCodec, logger)
	if err := artifacts.EnsureDir(); err != nil {
		return nil, err
	}

	store := services.NewTaskStore()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := services.NewMetrics(registry, store)

	hub := websocket.NewHub(logger)

	downloader := services.NewDownloader(store, artifacts, extractor, services.DownloaderConfig{
		AudioCodec:    cfg.AudioCodec,
		AudioQuality:  cfg.AudioQuality,
		CookieFile:    cfg.CookieFileIfPresent(),
		PlayerClient:  cfg.PlayerClient,
		MaxConcurrent: cfg.MaxConcurrent,
		Timeout:       cfg.WorkerTimeout,
	}, metrics, logger)

	return &App{
		Config:     cfg,
		Store:      store,
		Artifacts:  artifacts,
		Downloader: downloader,
		Janitor:    services.NewJanitor(store, artifacts, cfg.TaskTTL, cfg.JanitorInterval, metrics, logger),
		Hub:        hub,
		Registry:   registry,
		Logger:     logger,
	}, nil
}

// StartHub feeds store changes to the websocket hub and runs it until ctx is
// cancelled. Only the web server needs it; without a running hub the
// broadcast buffer fills up and updates are dropped.
func (a *App) StartHub(ctx context.Context) {
	a.hubOnce.Do(func() {
		a.Store.OnChange(a.Hub.BroadcastTask)
		go a.Hub.Run(ctx)
	})
}

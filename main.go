package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Afterbark/youtube-to-mp3/cmd"
	"github.com/Afterbark/youtube-to-mp3/config"
	"github.com/Afterbark/youtube-to-mp3/logging"
)

func main() {
	var (
		server    bool
		port      string
		sourceURL string
	)

	flag.BoolVar(&server, "server", false, "Start in web server mode")
	flag.StringVar(&port, "port", "", "Port for web server mode (overrides SERVER_PORT)")
	flag.StringVar(&sourceURL, "url", "", "Media URL to convert once in the foreground")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}
	if port != "" {
		cfg.Port = port
	}

	logger := logging.Setup(os.Stderr, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Server mode takes precedence; with no url there is nothing else to do
	if sourceURL == "" {
		server = true
	}

	app, err := cmd.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialise", "error", err)
		os.Exit(1)
	}

	if server {
		if err := cmd.StartWebServer(ctx, app); err != nil {
			logger.Error("server stopped", "error", err)
			os.Exit(1)
		}
		return
	}

	if _, err := cmd.DownloadOnce(ctx, app, sourceURL, os.Stdout); err != nil {
		logger.Error("download failed", "url", sourceURL, "error", err)
		os.Exit(1)
	}
}

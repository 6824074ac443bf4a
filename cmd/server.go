package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Afterbark/youtube-to-mp3/handlers"
	"github.com/Afterbark/youtube-to-mp3/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// shutdownGrace bounds how long in-flight requests get after ctx is cancelled
const shutdownGrace = 10 * time.Second

// StartWebServer serves the HTTP surface until ctx is cancelled
func StartWebServer(ctx context.Context, app *App) error {
	gin.SetMode(app.Config.GinMode)

	app.StartHub(ctx)
	go app.Janitor.Run(ctx)

	srv := &http.Server{
		Addr:              ":" + app.Config.Port,
		Handler:           NewRouter(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		app.Logger.Info("web server starting", "port", app.Config.Port, "download_folder", app.Artifacts.Dir())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	app.Logger.Info("shutting down web server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// NewRouter builds the gin engine with every route registered
func NewRouter(app *App) *gin.Engine {
	downloadHandler := handlers.NewDownloadHandler(app.Store, app.Downloader, app.Artifacts, app.Hub, app.Config.CORSOrigins, app.Logger)
	healthHandler := handlers.NewHealthHandler(app.Store)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CORS(app.Config.CORSOrigins))
	r.Use(middleware.Logging(app.Logger, "/status/", "/health", "/metrics"))

	setupRoutes(r, app, downloadHandler, healthHandler)
	return r
}

// setupRoutes configures all the HTTP routes
func setupRoutes(r *gin.Engine, app *App, downloadHandler *handlers.DownloadHandler, healthHandler *handlers.HealthHandler) {
	r.GET("/", handlers.Home)

	r.POST("/start_download", downloadHandler.StartDownload)
	r.GET("/status/:task_id", downloadHandler.Status)
	r.GET("/get_file/:task_id", downloadHandler.GetFile)

	// WebSocket endpoint for task progress
	r.GET("/ws/status/:task_id", downloadHandler.HandleWebSocket)

	r.GET("/health", healthHandler.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{})))
}

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/Afterbark/youtube-to-mp3/services"
	"github.com/Afterbark/youtube-to-mp3/types"
	"github.com/Afterbark/youtube-to-mp3/websocket"
	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
)

// DownloadHandler handles the submit, status, fetch and progress push endpoints
type DownloadHandler struct {
	store      services.TaskStore
	downloader services.Downloader
	artifacts  services.ArtifactService
	hub        websocket.Hub
	upgrader   gorilla.Upgrader
	logger     *slog.Logger
}

// NewDownloadHandler creates a new download handler
func NewDownloadHandler(store services.TaskStore, downloader services.Downloader, artifacts services.ArtifactService, hub websocket.Hub, origins []string, logger *slog.Logger) *DownloadHandler {
	return &DownloadHandler{
		store:      store,
		downloader: downloader,
		artifacts:  artifacts,
		hub:        hub,
		upgrader:   websocket.NewUpgrader(origins),
		logger:     logger,
	}
}

// StartDownload creates a task for the submitted URL and returns its id
// without waiting for any download work
func (h *DownloadHandler) StartDownload(c *gin.Context) {
	var req types.StartDownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "No URL provided",
		})
		return
	}

	task, err := h.downloader.Submit(req.URL)
	if err != nil {
		if errors.Is(err, types.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid URL",
			})
			return
		}
		h.logger.Error("failed to submit task", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to start download",
		})
		return
	}

	c.JSON(http.StatusAccepted, types.StartDownloadResponse{TaskID: task.ID})
}

// Status returns the current snapshot of a task
func (h *DownloadHandler) Status(c *gin.Context) {
	task, exists := h.store.Get(c.Param("task_id"))
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Task not found",
		})
		return
	}

	c.JSON(http.StatusOK, task)
}

// GetFile streams the finished artifact as an attachment named after the
// source title
func (h *DownloadHandler) GetFile(c *gin.Context) {
	taskID := c.Param("task_id")
	task, fileInfo, err := h.readyArtifact(taskID)
	switch {
	case errors.Is(err, types.ErrTaskNotFound):
		c.String(http.StatusNotFound, "Error: Task not found.")
		return
	case errors.Is(err, types.ErrTaskNotReady):
		c.String(http.StatusConflict, "Error: Task is not ready.")
		return
	case errors.Is(err, types.ErrArtifactMissing):
		c.String(http.StatusNotFound, "Error: File missing from server.")
		return
	case err != nil:
		c.String(http.StatusInternalServerError, "Error sending file: %v", err)
		return
	}

	file, err := os.Open(task.Filename)
	if err != nil {
		if os.IsNotExist(err) {
			c.String(http.StatusNotFound, "Error: File missing from server.")
			return
		}
		c.String(http.StatusInternalServerError, "Error sending file: %v", err)
		return
	}
	defer file.Close()

	name := h.artifacts.DownloadName(task.Title)
	c.Header("Content-Type", h.artifacts.ContentType(task.Filename))
	c.Header("Content-Disposition", services.ContentDisposition(name))

	h.logger.Info("sending file", "task_id", taskID, "name", name, "size", humanize.Bytes(uint64(fileInfo.Size())))

	// ServeContent handles Range and conditional requests
	http.ServeContent(c.Writer, c.Request, name, fileInfo.ModTime(), file)
}

// readyArtifact resolves a task to its artifact on disk
func (h *DownloadHandler) readyArtifact(taskID string) (types.Task, os.FileInfo, error) {
	task, exists := h.store.Get(taskID)
	if !exists {
		return task, nil, types.ErrTaskNotFound
	}
	if task.Status != types.TaskStatusDone {
		return task, nil, types.ErrTaskNotReady
	}
	info, err := h.artifacts.Stat(task.Filename)
	if err != nil {
		return task, nil, err
	}
	return task, info, nil
}

// HandleWebSocket pushes task snapshots to the client until it disconnects.
// The current snapshot is sent first.
func (h *DownloadHandler) HandleWebSocket(c *gin.Context) {
	taskID := c.Param("task_id")
	task, exists := h.store.Get(taskID)
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "task_id", taskID, "error", err)
		return
	}

	client := websocket.NewClient(h.hub, conn, taskID, h.logger)
	client.Prime(task)
	h.hub.RegisterClient(client)
	client.StartPumps()

	// changes made while upgrading were broadcast before registration
	if latest, ok := h.store.Get(taskID); ok && latest.UpdatedAt.After(task.UpdatedAt) {
		h.hub.BroadcastTask(latest)
	}
}

package handlers

import (
	"net/http"
	"time"

	"github.com/Afterbark/youtube-to-mp3/services"
	"github.com/Afterbark/youtube-to-mp3/types"
	"github.com/gin-gonic/gin"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	store services.TaskStore
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store services.TaskStore) *HealthHandler {
	return &HealthHandler{store: store}
}

// HealthCheck returns the health status of the service with task counts by status
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	counts := make(map[string]int)
	for _, task := range h.store.List() {
		counts[string(task.Status)]++
	}

	c.JSON(http.StatusOK, types.HealthStatus{
		Status:    "healthy",
		Service:   "youtube-to-mp3",
		Tasks:     counts,
		Timestamp: time.Now().Unix(),
	})
}

package services

import (
	"context"
	"log/slog"
	"time"
)

// Janitor evicts finished tasks and their artifacts once they outlive the
// retention window. Tasks still in flight are never touched.
type Janitor struct {
	store     TaskStore
	artifacts ArtifactService
	ttl       time.Duration
	interval  time.Duration
	metrics   *Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// NewJanitor creates a janitor; a zero ttl makes Run a no-op
func NewJanitor(store TaskStore, artifacts ArtifactService, ttl, interval time.Duration, metrics *Metrics, logger *slog.Logger) *Janitor {
	return &Janitor{
		store:     store,
		artifacts: artifacts,
		ttl:       ttl,
		interval:  interval,
		metrics:   metrics,
		logger:    logger.With("component", "janitor"),
		now:       time.Now,
	}
}

// Run sweeps every interval until ctx is cancelled
func (j *Janitor) Run(ctx context.Context) {
	if j.ttl <= 0 {
		return
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := j.Sweep(); n > 0 {
				j.logger.Info("evicted expired tasks", "count", n)
			}
		}
	}
}

// Sweep removes expired terminal tasks and returns how many were evicted
func (j *Janitor) Sweep() int {
	if j.ttl <= 0 {
		return 0
	}

	cutoff := j.now().Add(-j.ttl)
	evicted := 0
	for _, task := range j.store.List() {
		if !task.Status.IsTerminal() || task.CompletedAt == nil || task.CompletedAt.After(cutoff) {
			continue
		}
		if err := j.artifacts.Remove(task.ID); err != nil {
			j.logger.Warn("failed to remove artifact", "task_id", task.ID, "error", err)
			continue
		}
		if j.store.Delete(task.ID) {
			j.metrics.taskEvicted()
			evicted++
		}
	}
	return evicted
}

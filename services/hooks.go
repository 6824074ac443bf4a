package services

import (
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/Afterbark/youtube-to-mp3/types"
)

// ProgressHook receives progress events from the extraction collaborator
type ProgressHook func(ev types.ProgressEvent)

// NewProgressHook returns a hook that translates collaborator events for one
// task into store mutations. Malformed events are dropped and the hook never
// panics.
func NewProgressHook(store TaskStore, taskID string, logger *slog.Logger) ProgressHook {
	return func(ev types.ProgressEvent) {
		defer func() {
			if r := recover(); r != nil {
				logger.Warn("progress hook recovered", "task_id", taskID, "panic", r)
			}
		}()

		switch ev.Tag {
		case types.ProgressTagDownloading:
			pct, ok := ParsePercent(ev.Percent)
			if !ok {
				return
			}
			_ = store.Update(taskID, func(t *types.Task) {
				t.SetTitle(ev.Title)
				t.MarkDownloading(pct)
			})
		case types.ProgressTagFinished:
			_ = store.Update(taskID, func(t *types.Task) {
				t.SetTitle(ev.Title)
				t.MarkConverting()
			})
		}
	}
}

// ParsePercent turns collaborator strings like " 15.4%" into 15.4
func ParsePercent(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return math.Max(0, math.Min(100, v)), true
}

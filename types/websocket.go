package types

import "time"

// ProgressMessage represents a WebSocket progress update message
type ProgressMessage struct {
	TaskID    string     `json:"task_id"`
	Status    TaskStatus `json:"status"`
	Progress  float64    `json:"progress"` // 0-100 percentage
	Title     string     `json:"title,omitempty"`
	Filename  string     `json:"filename,omitempty"`
	Error     string     `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"` // when the update occurred
}

// NewProgressMessage builds a push message from a task snapshot
func NewProgressMessage(t Task) ProgressMessage {
	return ProgressMessage{
		TaskID:    t.ID,
		Status:    t.Status,
		Progress:  t.Progress,
		Title:     t.Title,
		Filename:  t.Filename,
		Error:     t.Error,
		Timestamp: t.UpdatedAt,
	}
}

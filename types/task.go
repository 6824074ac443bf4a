package types

import (
	"math"
	"time"
)

// TaskStatus represents the current status of a download task
type TaskStatus string

const (
	TaskStatusQueued      TaskStatus = "queued"
	TaskStatusDownloading TaskStatus = "downloading"
	TaskStatusConverting  TaskStatus = "converting"
	TaskStatusDone        TaskStatus = "done"
	TaskStatusError       TaskStatus = "error"
)

// rank orders the non-error states along the pipeline
func (s TaskStatus) rank() int {
	switch s {
	case TaskStatusQueued:
		return 0
	case TaskStatusDownloading:
		return 1
	case TaskStatusConverting:
		return 2
	case TaskStatusDone:
		return 3
	default:
		return -1
	}
}

// IsTerminal returns true if no further transitions are possible
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusDone || s == TaskStatusError
}

// CanTransitionTo reports whether moving from s to next keeps the lifecycle
// monotonic. Downloading may repeat itself to carry progress updates.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if next == TaskStatusError {
		return true
	}
	if s == TaskStatusDownloading && next == TaskStatusDownloading {
		return true
	}
	return next.rank() > s.rank()
}

// Task is the record tracked for one submitted URL
type Task struct {
	ID          string     `json:"-"`
	URL         string     `json:"-"`
	Status      TaskStatus `json:"status"`
	Progress    float64    `json:"progress"`           // 0-100 percentage
	Filename    string     `json:"filename,omitempty"` // artifact path, set once done
	Title       string     `json:"title,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"-"`
	UpdatedAt   time.Time  `json:"-"`
	CompletedAt *time.Time `json:"-"`
}

// NewTask returns a queued task with zero progress
func NewTask(id, url string) *Task {
	now := time.Now()
	return &Task{
		ID:        id,
		URL:       url,
		Status:    TaskStatusQueued,
		Progress:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// transition moves the task to next if the state machine allows it
func (t *Task) transition(next TaskStatus) bool {
	if !t.Status.CanTransitionTo(next) {
		return false
	}
	t.Status = next
	t.UpdatedAt = time.Now()
	if next.IsTerminal() {
		completed := t.UpdatedAt
		t.CompletedAt = &completed
	}
	return true
}

// setProgress keeps progress within 0-100 and never lets it go backwards
func (t *Task) setProgress(pct float64) {
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		return
	}
	pct = math.Max(0, math.Min(100, pct))
	if pct > t.Progress {
		t.Progress = pct
	}
}

// MarkDownloading records a download progress event. It returns false when the
// task has already moved past the download leg.
func (t *Task) MarkDownloading(pct float64) bool {
	if t.Status == TaskStatusDownloading {
		// only a progress increase counts as a change
		before := t.Progress
		t.setProgress(pct)
		if t.Progress != before {
			t.UpdatedAt = time.Now()
		}
		return true
	}
	if !t.transition(TaskStatusDownloading) {
		return false
	}
	t.setProgress(pct)
	return true
}

// MarkConverting records that the download leg finished and transcoding began
func (t *Task) MarkConverting() bool {
	if !t.transition(TaskStatusConverting) {
		return false
	}
	t.Progress = 100
	return true
}

// MarkDone sets the final artifact and title
func (t *Task) MarkDone(filename, title string) bool {
	if !t.transition(TaskStatusDone) {
		return false
	}
	t.Progress = 100
	t.Filename = filename
	t.Title = title
	t.Error = ""
	return true
}

// MarkFailed records a diagnostic. Filename is cleared so it is only ever
// present on done tasks.
func (t *Task) MarkFailed(msg string) bool {
	if !t.transition(TaskStatusError) {
		return false
	}
	if msg == "" {
		msg = "unknown error"
	}
	t.Error = msg
	t.Filename = ""
	return true
}

// SetTitle records the human readable source title if none is known yet
func (t *Task) SetTitle(title string) {
	if t.Title == "" && title != "" && !t.Status.IsTerminal() {
		t.Title = title
	}
}

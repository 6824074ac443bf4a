package types

// StartDownloadRequest is the body accepted by POST /start_download
type StartDownloadRequest struct {
	URL string `json:"url"`
}

// StartDownloadResponse is returned once a task has been created
type StartDownloadResponse struct {
	TaskID string `json:"task_id"`
}

// ErrorResponse is the JSON body for failed API calls
type ErrorResponse struct {
	Error string `json:"error"`
}

// ProgressEvent is what the extraction collaborator reports while it runs
type ProgressEvent struct {
	Tag     string // "downloading", "finished", or anything else
	Percent string // e.g. " 15.4%", only meaningful while downloading
	Title   string // source title when the collaborator already knows it
}

const (
	ProgressTagDownloading = "downloading"
	ProgressTagFinished    = "finished"
)

// ExtractResult is the metadata returned after a successful extraction
type ExtractResult struct {
	Title string
}

// HealthStatus summarises task counts for the health endpoint
type HealthStatus struct {
	Status    string         `json:"status"`
	Service   string         `json:"service"`
	Tasks     map[string]int `json:"tasks"`
	Timestamp int64          `json:"timestamp"`
}

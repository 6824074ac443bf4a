package cmd

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/Afterbark/youtube-to-mp3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const songURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

func newStub() *stubExtractor {
	return &stubExtractor{outcomes: map[string]stubOutcome{
		songURL: {
			title: "Rick Astley - Never Gonna Give You Up",
			events: []types.ProgressEvent{
				{Tag: types.ProgressTagDownloading, Percent: " 12.0%"},
				{Tag: types.ProgressTagDownloading, Percent: "64.5%"},
				{Tag: types.ProgressTagFinished},
			},
		},
	}}
}

func TestHappyPath(t *testing.T) {
	helper := NewTestHelper(t, newStub())

	id := helper.Submit(t, songURL)

	done := helper.WaitFor(t, id, types.TaskStatusDone)
	assert.Equal(t, 100.0, done["progress"])
	assert.Equal(t, "Rick Astley - Never Gonna Give You Up", done["title"])
	assert.Equal(t, helper.App.Artifacts.ArtifactPath(id), done["filename"])
	assert.NotContains(t, done, "error")

	resp, body := helper.Get(t, "/get_file/"+id)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "audio/mpeg", resp.Header.Get("Content-Type"))
	assert.Equal(t,
		`attachment; filename="Rick Astley - Never Gonna Give You Up.mp3"; filename*=UTF-8''Rick%20Astley%20-%20Never%20Gonna%20Give%20You%20Up.mp3`,
		resp.Header.Get("Content-Disposition"))
	assert.Equal(t, "ID3-less fake audio payload", string(body))
}

func TestStatusImmediatelyAfterSubmit(t *testing.T) {
	release := make(chan struct{})
	stub := &stubExtractor{outcomes: map[string]stubOutcome{
		songURL: {title: "t", release: release},
	}}
	helper := NewTestHelper(t, stub)

	id := helper.Submit(t, songURL)
	code, out := helper.Status(t, id)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, string(types.TaskStatusQueued), out["status"])
	assert.Equal(t, 0.0, out["progress"])

	// not ready until done
	resp, body := helper.Get(t, "/get_file/"+id)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "Error: Task is not ready.", string(body))

	close(release)
	helper.WaitFor(t, id, types.TaskStatusDone)
}

func TestStartDownloadValidation(t *testing.T) {
	helper := NewTestHelper(t, newStub())

	tests := []struct {
		name string
		body any
		want string
	}{
		{"empty body", nil, "No URL provided"},
		{"empty object", map[string]string{}, "No URL provided"},
		{"blank url", map[string]string{"url": "   "}, "No URL provided"},
		{"invalid json", "{not json", "No URL provided"},
		{"wrong type", map[string]int{"url": 5}, "No URL provided"},
		{"bad scheme", map[string]string{"url": "file:///etc/passwd"}, "Invalid URL"},
		{"no scheme", map[string]string{"url": "youtube.com/watch?v=1"}, "Invalid URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out types.ErrorResponse
			resp := helper.PostJSON(t, "/start_download", tt.body, &out)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tt.want, out.Error)
		})
	}

	assert.Zero(t, helper.App.Store.Len())
}

func TestUnknownTask(t *testing.T) {
	helper := NewTestHelper(t, newStub())

	for _, id := range []string{"does-not-exist", "00000000-0000-4000-8000-000000000000"} {
		code, out := helper.Status(t, id)
		assert.Equal(t, http.StatusNotFound, code)
		assert.Equal(t, "Task not found", out["error"])

		resp, body := helper.Get(t, "/get_file/"+id)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "Error: Task not found.", string(body))
	}
}

func TestUnresolvableURL(t *testing.T) {
	helper := NewTestHelper(t, newStub())

	id := helper.Submit(t, "https://nonexistent.invalid/video")
	failed := helper.WaitFor(t, id, types.TaskStatusError)
	assert.Contains(t, failed["error"], "url not supported")
	assert.NotContains(t, failed, "filename")

	resp, body := helper.Get(t, "/get_file/"+id)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "Error: Task is not ready.", string(body))
}

func TestArtifactDeletedAfterDone(t *testing.T) {
	helper := NewTestHelper(t, newStub())

	id := helper.Submit(t, songURL)
	helper.WaitFor(t, id, types.TaskStatusDone)
	require.NoError(t, helper.App.Artifacts.Remove(id))

	resp, body := helper.Get(t, "/get_file/"+id)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Error: File missing from server.", string(body))
}

func TestProgressNeverDecreases(t *testing.T) {
	release := make(chan struct{})
	stub := &stubExtractor{outcomes: map[string]stubOutcome{
		songURL: {
			title:   "t",
			release: release,
			events: []types.ProgressEvent{
				{Tag: types.ProgressTagDownloading, Percent: "40%"},
				{Tag: types.ProgressTagDownloading, Percent: "garbage"},
				{Tag: types.ProgressTagDownloading, Percent: "10%"},
			},
		},
	}}
	helper := NewTestHelper(t, stub)

	id := helper.Submit(t, songURL)
	out := helper.WaitFor(t, id, types.TaskStatusDownloading)
	require.Eventually(t, func() bool {
		task, _ := helper.App.Store.Get(id)
		return task.Progress == 40
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, string(types.TaskStatusDownloading), out["status"])

	code, out := helper.Status(t, id)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 40.0, out["progress"])

	close(release)
	helper.WaitFor(t, id, types.TaskStatusDone)
}

func TestConcurrentSubmissions(t *testing.T) {
	stub := &stubExtractor{outcomes: map[string]stubOutcome{}}
	urls := make([]string, 8)
	for i := range urls {
		urls[i] = songURL + "&n=" + string(rune('a'+i))
		stub.outcomes[urls[i]] = stubOutcome{title: "title " + string(rune('a'+i))}
	}
	helper := NewTestHelper(t, stub)

	ids := make([]string, len(urls))
	for i, u := range urls {
		ids[i] = helper.Submit(t, u)
	}
	for i, id := range ids {
		done := helper.WaitFor(t, id, types.TaskStatusDone)
		assert.Equal(t, "title "+string(rune('a'+i)), done["title"])
		assert.True(t, strings.HasSuffix(done["filename"].(string), id+".mp3"))
	}
}

func TestHealthAndMetrics(t *testing.T) {
	helper := NewTestHelper(t, newStub())
	id := helper.Submit(t, songURL)
	helper.WaitFor(t, id, types.TaskStatusDone)

	resp, body := helper.Get(t, "/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var health types.HealthStatus
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, 1, health.Tasks[string(types.TaskStatusDone)])

	resp, body = helper.Get(t, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "ytmp3_tasks_submitted_total 1")
	assert.Contains(t, string(body), `ytmp3_tasks_finished_total{status="done"} 1`)
}

func TestHomePage(t *testing.T) {
	helper := NewTestHelper(t, newStub())

	resp, body := helper.Get(t, "/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, string(body), "/start_download")
}

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Afterbark/youtube-to-mp3/config"
	"github.com/Afterbark/youtube-to-mp3/logging"
	"github.com/Afterbark/youtube-to-mp3/services"
	"github.com/Afterbark/youtube-to-mp3/types"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// stubExtractor resolves URLs from a fixed table of outcomes
type stubExtractor struct {
	mu       sync.Mutex
	outcomes map[string]stubOutcome
}

type stubOutcome struct {
	title   string
	events  []types.ProgressEvent
	err     error
	release chan struct{}
}

func (s *stubExtractor) Extract(ctx context.Context, sourceURL string, opts services.ExtractOptions) (*types.ExtractResult, error) {
	s.mu.Lock()
	outcome, ok := s.outcomes[sourceURL]
	s.mu.Unlock()
	if !ok {
		return nil, &types.ExtractionError{URL: sourceURL, Message: "ERROR: Unsupported URL: " + sourceURL, Err: types.ErrUnsupportedURL}
	}

	for _, ev := range outcome.events {
		opts.Progress(ev)
	}
	if outcome.release != nil {
		select {
		case <-outcome.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if outcome.err != nil {
		return nil, outcome.err
	}

	ext, err := types.AudioExtension(opts.AudioCodec)
	if err != nil {
		return nil, err
	}
	path := strings.Replace(opts.OutputTemplate, "%(ext)s", ext, 1)
	if err := os.WriteFile(path, []byte("ID3-less fake audio payload"), 0644); err != nil {
		return nil, err
	}
	return &types.ExtractResult{Title: outcome.title}, nil
}

// testConfig returns settings for a download folder under t's temp dir
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Port:             "0",
		GinMode:          gin.TestMode,
		CORSOrigins:      []string{"*"},
		DownloadFolder:   t.TempDir(),
		AudioCodec:       "mp3",
		AudioQuality:     "192",
		PlayerClient:     "android",
		JanitorInterval:  time.Minute,
		ProgressInterval: 10 * time.Millisecond,
	}
}

// TestHelper runs the full router against a stub extractor
type TestHelper struct {
	App    *App
	Server *httptest.Server
	cancel context.CancelFunc
}

// NewTestHelper creates a new test helper with a temporary download folder
func NewTestHelper(t *testing.T, extractor services.Extractor) *TestHelper {
	t.Helper()
	gin.SetMode(gin.TestMode)

	app, err := NewAppWithExtractor(testConfig(t), extractor, logging.Discard())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	app.StartHub(ctx)

	h := &TestHelper{
		App:    app,
		Server: httptest.NewServer(NewRouter(app)),
		cancel: cancel,
	}
	t.Cleanup(h.Cleanup)
	return h
}

// Cleanup stops the server and waits for background workers
func (h *TestHelper) Cleanup() {
	h.Server.Close()
	h.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = h.App.Downloader.Wait(ctx)
}

// PostJSON posts body to path and decodes the JSON response into out
func (h *TestHelper) PostJSON(t *testing.T, path string, body any, out any) *http.Response {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
		reader = http.NoBody
	case string:
		reader = strings.NewReader(b)
	default:
		payload, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	resp, err := http.Post(h.Server.URL+path, "application/json", reader)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

// Get performs a GET request and returns the response with its body read
func (h *TestHelper) Get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()

	resp, err := http.Get(h.Server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

// Submit starts a download and returns its task id
func (h *TestHelper) Submit(t *testing.T, url string) string {
	t.Helper()

	var out types.StartDownloadResponse
	resp := h.PostJSON(t, "/start_download", types.StartDownloadRequest{URL: url}, &out)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.NotEmpty(t, out.TaskID)
	return out.TaskID
}

// Status polls the status endpoint once
func (h *TestHelper) Status(t *testing.T, id string) (int, map[string]any) {
	t.Helper()

	resp, body := h.Get(t, "/status/"+id)
	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out))
	return resp.StatusCode, out
}

// WaitFor polls status until it reports the wanted state
func (h *TestHelper) WaitFor(t *testing.T, id string, status types.TaskStatus) map[string]any {
	t.Helper()

	var last map[string]any
	require.Eventually(t, func() bool {
		code, out := h.Status(t, id)
		last = out
		return code == http.StatusOK && out["status"] == string(status)
	}, 5*time.Second, 10*time.Millisecond, "task %s never reached %s", id, status)
	return last
}

// ConnectWebSocket dials a websocket path on the test server
func (h *TestHelper) ConnectWebSocket(t *testing.T, path string) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(h.Server.URL, "http") + path
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn
}

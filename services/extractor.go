package services

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/Afterbark/youtube-to-mp3/types"
	"github.com/lrstanley/go-ytdlp"
)

// FormatSelector prefers audio-only streams, then muxed video+audio, then
// whatever the source offers
const FormatSelector = "bestaudio/bestvideo+bestaudio/best"

// ExtractOptions is the option bundle handed to the extraction collaborator
type ExtractOptions struct {
	OutputTemplate string
	Format         string
	AudioCodec     string
	AudioQuality   string
	NoPlaylist     bool
	CookieFile     string
	PlayerClient   string
	Progress       ProgressHook
}

// Extractor fetches a source URL and transcodes it to audio on disk
type Extractor interface {
	Extract(ctx context.Context, sourceURL string, opts ExtractOptions) (*types.ExtractResult, error)
}

// YtdlpConfig configures the yt-dlp backed extractor
type YtdlpConfig struct {
	// Executable is the yt-dlp binary; empty means PATH lookup
	Executable       string
	AutoInstall      bool
	ProgressInterval time.Duration
}

// ytdlpExtractor drives yt-dlp through go-ytdlp
type ytdlpExtractor struct {
	executable       string
	progressInterval time.Duration
}

// NewYtdlpExtractor resolves the yt-dlp binary, installing it when asked to
func NewYtdlpExtractor(ctx context.Context, cfg YtdlpConfig) (Extractor, error) {
	executable := cfg.Executable
	if cfg.AutoInstall {
		resolved, err := ytdlp.Install(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to install yt-dlp: %w", err)
		}
		executable = resolved.Executable
	} else {
		name := executable
		if name == "" {
			name = "yt-dlp"
		}
		if _, err := exec.LookPath(name); err != nil {
			return nil, fmt.Errorf("yt-dlp not found in PATH: %w", err)
		}
	}

	interval := cfg.ProgressInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	return &ytdlpExtractor{
		executable:       executable,
		progressInterval: interval,
	}, nil
}

// Extract downloads and converts sourceURL according to opts
func (e *ytdlpExtractor) Extract(ctx context.Context, sourceURL string, opts ExtractOptions) (*types.ExtractResult, error) {
	dl := ytdlp.New().
		Format(opts.Format).
		Output(opts.OutputTemplate).
		ExtractAudio().
		AudioFormat(opts.AudioCodec).
		AudioQuality(opts.AudioQuality).
		PrintJSON()

	if e.executable != "" {
		dl.SetExecutable(e.executable)
	}
	if opts.NoPlaylist {
		dl.NoPlaylist()
	}
	if opts.CookieFile != "" {
		dl.Cookies(opts.CookieFile)
	}
	if opts.PlayerClient != "" {
		dl.ExtractorArgs("youtube:player_client=" + opts.PlayerClient)
	}
	if opts.Progress != nil {
		dl.ProgressFunc(e.progressInterval, func(update ytdlp.ProgressUpdate) {
			opts.Progress(toProgressEvent(update))
		})
	}

	res, err := dl.Run(ctx, sourceURL)
	if err != nil {
		stderr := ""
		if res != nil {
			stderr = res.Stderr
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &types.ExtractionError{URL: sourceURL, Message: ctxErr.Error(), Err: types.ErrExtractTimeout}
		}
		return nil, categorizeError(sourceURL, err, stderr)
	}

	result := &types.ExtractResult{}
	info, err := res.GetExtractedInfo()
	if err == nil && len(info) > 0 && info[0].Title != nil {
		result.Title = *info[0].Title
	}
	return result, nil
}

func toProgressEvent(update ytdlp.ProgressUpdate) types.ProgressEvent {
	ev := types.ProgressEvent{Tag: string(update.Status)}
	switch update.Status {
	case ytdlp.ProgressStatusDownloading:
		ev.Tag = types.ProgressTagDownloading
		ev.Percent = update.PercentString()
	case ytdlp.ProgressStatusFinished:
		ev.Tag = types.ProgressTagFinished
	}
	if update.Info != nil && update.Info.Title != nil {
		ev.Title = *update.Info.Title
	}
	return ev
}

// categorizeError converts yt-dlp failures into extraction error categories
func categorizeError(sourceURL string, err error, stderr string) error {
	detail := strings.ToLower(stderr + " " + err.Error())

	message := lastLine(stderr)
	if message == "" {
		message = err.Error()
	}

	var category error
	switch {
	case strings.Contains(detail, "video unavailable") ||
		strings.Contains(detail, "this video is unavailable"):
		category = types.ErrVideoUnavailable

	case strings.Contains(detail, "private video") ||
		strings.Contains(detail, "is private"):
		category = types.ErrVideoPrivate

	case strings.Contains(detail, "age-restricted") ||
		strings.Contains(detail, "sign in to confirm your age"):
		category = types.ErrAgeRestricted

	case strings.Contains(detail, "sign in to confirm") ||
		strings.Contains(detail, "cookies"):
		category = types.ErrAuthRequired

	case strings.Contains(detail, "unsupported url") ||
		strings.Contains(detail, "no suitable extractor") ||
		strings.Contains(detail, "is not a valid url"):
		category = types.ErrUnsupportedURL

	case strings.Contains(detail, "unable to download") ||
		strings.Contains(detail, "connection") ||
		strings.Contains(detail, "network"):
		category = types.ErrNetwork

	default:
		category = types.ErrDownloadFailed
	}

	return &types.ExtractionError{URL: sourceURL, Message: message, Err: category}
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// IsExtractionError reports whether err came from the collaborator
func IsExtractionError(err error) bool {
	var extractErr *types.ExtractionError
	return errors.As(err, &extractErr)
}

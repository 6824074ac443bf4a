package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Afterbark/youtube-to-mp3/types"
	"github.com/joho/godotenv"
)

// Config holds the runtime settings of the service
type Config struct {
	Port        string
	GinMode     string
	CORSOrigins []string
	LogLevel    slog.Level

	DownloadFolder string
	AudioCodec     string
	AudioQuality   string
	CookieFile     string
	PlayerClient   string
	YtdlpPath      string
	AutoInstall    bool

	// MaxConcurrent bounds simultaneous workers; 0 means unbounded
	MaxConcurrent    int
	WorkerTimeout    time.Duration // 0 disables the timeout
	TaskTTL          time.Duration // 0 keeps finished tasks forever
	JanitorInterval  time.Duration
	ProgressInterval time.Duration
}

const (
	DefaultPort           = "5000"
	DefaultDownloadFolder = "downloads"
	DefaultAudioCodec     = "mp3"
	DefaultAudioQuality   = "192"
	DefaultCookieFile     = "cookies.txt"
	DefaultPlayerClient   = "android"
	DefaultCORSOrigins    = "http://localhost:3000,http://localhost:5173"
)

// Load reads an optional .env file and then the process environment
func Load() (*Config, error) {
	// A missing .env file is normal outside development
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnvOrDefault("SERVER_PORT", DefaultPort),
		GinMode:        getEnvOrDefault("GIN_MODE", "release"),
		CORSOrigins:    splitList(getEnvOrDefault("CORS_ORIGINS", DefaultCORSOrigins)),
		DownloadFolder: getEnvOrDefault("DOWNLOAD_FOLDER", DefaultDownloadFolder),
		AudioCodec:     getEnvOrDefault("AUDIO_CODEC", DefaultAudioCodec),
		AudioQuality:   getEnvOrDefault("AUDIO_QUALITY", DefaultAudioQuality),
		CookieFile:     getEnvOrDefault("COOKIE_FILE", DefaultCookieFile),
		PlayerClient:   getEnvOrDefault("YTDLP_PLAYER_CLIENT", DefaultPlayerClient),
		YtdlpPath:      os.Getenv("YTDLP_PATH"),
	}

	var err error
	if cfg.LogLevel, err = parseLevel(getEnvOrDefault("LOG_LEVEL", "info")); err != nil {
		return nil, err
	}
	if cfg.AutoInstall, err = getBool("YTDLP_AUTO_INSTALL", false); err != nil {
		return nil, err
	}
	if cfg.MaxConcurrent, err = getInt("MAX_CONCURRENT_DOWNLOADS", 0); err != nil {
		return nil, err
	}
	if cfg.WorkerTimeout, err = getDuration("WORKER_TIMEOUT", 0); err != nil {
		return nil, err
	}
	if cfg.TaskTTL, err = getDuration("TASK_TTL", 0); err != nil {
		return nil, err
	}
	if cfg.JanitorInterval, err = getDuration("JANITOR_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.ProgressInterval, err = getDuration("PROGRESS_INTERVAL", 500*time.Millisecond); err != nil {
		return nil, err
	}

	if cfg.MaxConcurrent < 0 {
		return nil, fmt.Errorf("MAX_CONCURRENT_DOWNLOADS must not be negative, got %d", cfg.MaxConcurrent)
	}
	if cfg.JanitorInterval <= 0 {
		return nil, fmt.Errorf("JANITOR_INTERVAL must be positive, got %s", cfg.JanitorInterval)
	}
	if _, err := types.AudioExtension(cfg.AudioCodec); err != nil {
		return nil, fmt.Errorf("invalid AUDIO_CODEC: %w", err)
	}

	return cfg, nil
}

// CookieFileIfPresent returns the cookie file path only when it exists on disk
func (c *Config) CookieFileIfPresent() string {
	if c.CookieFile == "" {
		return ""
	}
	if _, err := os.Stat(c.CookieFile); err != nil {
		return ""
	}
	return c.CookieFile
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw := getEnvOrDefault(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	raw := getEnvOrDefault(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := getEnvOrDefault(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %s", key, raw)
	}
	return v, nil
}

func parseLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q: %w", raw, err)
	}
	return level, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

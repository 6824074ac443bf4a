package types

import (
	"fmt"
	"strings"
)

// AudioMetadata represents tag metadata read back from a finished artifact
type AudioMetadata struct {
	Title  string `json:"title,omitempty"`
	Artist string `json:"artist,omitempty"`
	Album  string `json:"album,omitempty"`
}

// audioExtensions maps a yt-dlp --audio-format codec to the extension of the
// file it writes. "best" keeps the source container and has no fixed extension.
var audioExtensions = map[string]string{
	"mp3":    "mp3",
	"aac":    "m4a",
	"m4a":    "m4a",
	"alac":   "m4a",
	"opus":   "opus",
	"vorbis": "ogg",
	"flac":   "flac",
	"wav":    "wav",
}

// AudioExtension returns the file extension yt-dlp produces for codec
func AudioExtension(codec string) (string, error) {
	ext, ok := audioExtensions[strings.ToLower(strings.TrimSpace(codec))]
	if !ok {
		return "", fmt.Errorf("unsupported audio codec %q", codec)
	}
	return ext, nil
}

package services

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/Afterbark/youtube-to-mp3/types"
	"github.com/dhowden/tag"
	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultTitle is used when neither the source nor the file carries a title
const DefaultTitle = "audio_download"

// ArtifactService interface defines how task artifacts are laid out on disk
type ArtifactService interface {
	EnsureDir() error
	Dir() string
	OutputTemplate(taskID string) string
	ArtifactPath(taskID string) string
	Stat(path string) (os.FileInfo, error)
	Remove(taskID string) error
	ReadMetadata(path string) *types.AudioMetadata
	ContentType(path string) string
	DownloadName(title string) string
	ValidateTaskID(id string) error
}

// artifactService implements the ArtifactService interface
type artifactService struct {
	dir    string
	ext    string
	logger *slog.Logger
}

// NewArtifactService creates an artifact service rooted at dir producing
// files with the extension yt-dlp writes for codec
func NewArtifactService(dir, codec string, logger *slog.Logger) ArtifactService {
	ext, err := types.AudioExtension(codec)
	if err != nil {
		ext = strings.TrimPrefix(strings.ToLower(codec), ".")
	}
	return &artifactService{
		dir:    dir,
		ext:    ext,
		logger: logger,
	}
}

// EnsureDir creates the artifact directory if absent
func (a *artifactService) EnsureDir() error {
	if err := os.MkdirAll(a.dir, 0755); err != nil {
		return fmt.Errorf("failed to create download folder %s: %w", a.dir, err)
	}
	return nil
}

// Dir returns the artifact directory
func (a *artifactService) Dir() string {
	return a.dir
}

// OutputTemplate is the collaborator output template for a task. Only the
// task identifier goes into the name, never user supplied text.
func (a *artifactService) OutputTemplate(taskID string) string {
	return filepath.Join(a.dir, taskID+".%(ext)s")
}

// ArtifactPath is where the transcoded file for a task ends up
func (a *artifactService) ArtifactPath(taskID string) string {
	return filepath.Join(a.dir, taskID+"."+a.ext)
}

// Stat returns file info for an artifact, rejecting directories
func (a *artifactService) Stat(path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.ErrArtifactMissing
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, types.ErrArtifactMissing
	}
	return info, nil
}

// Remove deletes every file the task produced, including leftovers from a
// failed conversion
func (a *artifactService) Remove(taskID string) error {
	if err := a.ValidateTaskID(taskID); err != nil {
		return err
	}
	matches, err := filepath.Glob(filepath.Join(a.dir, taskID+".*"))
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", m, err)
		}
	}
	return nil
}

// ReadMetadata reads the tag block of a finished artifact
func (a *artifactService) ReadMetadata(path string) *types.AudioMetadata {
	file, err := os.Open(path)
	if err != nil {
		a.logger.Debug("could not open artifact", "path", path, "error", err)
		return nil
	}
	defer file.Close()

	meta, err := tag.ReadFrom(file)
	if err != nil {
		a.logger.Debug("could not parse artifact tags", "path", path, "error", err)
		return nil
	}

	return &types.AudioMetadata{
		Title:  strings.TrimSpace(meta.Title()),
		Artist: strings.TrimSpace(meta.Artist()),
		Album:  strings.TrimSpace(meta.Album()),
	}
}

// ContentType returns the appropriate MIME type for an audio file
func (a *artifactService) ContentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return "audio/mpeg"
	case ".m4a", ".aac":
		return "audio/mp4"
	case ".opus", ".ogg", ".vorbis":
		return "audio/ogg"
	case ".flac":
		return "audio/flac"
	case ".wav":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}

// DownloadName is the user facing filename for a title, with path separators
// replaced so it can never name a directory
func (a *artifactService) DownloadName(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultTitle
	}
	title = strings.NewReplacer("/", "_", "\\", "_").Replace(title)
	return norm.NFC.String(title) + "." + a.ext
}

// ValidateTaskID rejects anything that is not a task identifier so it can be
// safely joined into a path
func (a *artifactService) ValidateTaskID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: malformed task id", types.ErrTaskNotFound)
	}
	return nil
}

// ContentDisposition builds an attachment header carrying both an ASCII
// fallback and the RFC 5987 UTF-8 filename
func ContentDisposition(name string) string {
	return fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, asciiFallback(name), encodeExtValue(name))
}

// encodeExtValue percent-encodes everything outside the RFC 5987 attr-char set
func encodeExtValue(s string) string {
	const upperhex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isAttrChar(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&0x0f])
	}
	return b.String()
}

func isAttrChar(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("!#$&+-.^_`|~", c) >= 0
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func asciiFallback(name string) string {
	folded, _, err := transform.String(stripMarks, name)
	if err != nil {
		folded = name
	}
	var b strings.Builder
	for _, r := range folded {
		switch {
		case r == '"' || r == '\\' || r < 0x20 || r == 0x7f:
			b.WriteRune('_')
		case r > unicode.MaxASCII:
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

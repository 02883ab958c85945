// Package filehandler inspects, pre-processes, and partitions local media files.
//
// Metadata extraction follows a split-provider model: images are handled in
// pure Go (evanoberholster/imagemeta + stdlib image), videos through ffprobe,
// because pure Go container parsers expose raw atoms without the duration and
// stream properties needed here. ffmpeg is the external transcoder boundary;
// this package only decides what to ask it for.
package filehandler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// Kind tags what a media file is, as consumed by the controller's dispatch.
type Kind int

const (
	// KindNone marks a file that is neither a known image nor a known video.
	KindNone Kind = iota
	KindImage
	KindVideo
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	default:
		return "none"
	}
}

// SupportedImageExtensions maps image file extensions to MIME types.
var SupportedImageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// SupportedVideoExtensions maps video file extensions to MIME types.
var SupportedVideoExtensions = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
}

// IsImage reports whether the extension is a supported image type.
func IsImage(ext string) bool {
	_, ok := SupportedImageExtensions[strings.ToLower(ext)]
	return ok
}

// IsVideo reports whether the extension is a supported video type.
func IsVideo(ext string) bool {
	_, ok := SupportedVideoExtensions[strings.ToLower(ext)]
	return ok
}

// MIMEType returns the MIME type for a media file path, falling back to
// application/octet-stream for unrecognized extensions.
func MIMEType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if m, ok := SupportedImageExtensions[ext]; ok {
		return m
	}
	if m, ok := SupportedVideoExtensions[ext]; ok {
		return m
	}
	return "application/octet-stream"
}

// MediaAsset describes one media file: its kind, byte size, and (for videos)
// duration in whole seconds. It is derived, never mutated; re-probe when needed.
type MediaAsset struct {
	Path            string
	Kind            Kind
	Size            int64
	DurationSeconds int
}

// Probe inspects a file on disk and returns its MediaAsset description.
// Video duration comes from ffprobe; everything else from the filesystem.
func Probe(path string) (*MediaAsset, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	asset := &MediaAsset{Path: path, Size: info.Size()}

	switch {
	case IsImage(ext):
		asset.Kind = KindImage
	case IsVideo(ext):
		asset.Kind = KindVideo
		duration, err := probeDurationSeconds(path)
		if err != nil {
			return nil, fmt.Errorf("failed to probe video duration: %w", err)
		}
		asset.DurationSeconds = duration
	default:
		asset.Kind = KindNone
	}

	log.Debug().
		Str("path", path).
		Stringer("kind", asset.Kind).
		Int64("size_bytes", asset.Size).
		Int("duration_seconds", asset.DurationSeconds).
		Msg("Media file probed")

	return asset, nil
}

package filehandler

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/rs/zerolog/log"
)

// VideoInfo holds the stream properties the planner and compressor need.
type VideoInfo struct {
	DurationSeconds int
	Width           int
	Height          int
}

// CheckFFprobeAvailable returns nil if ffprobe is on the PATH. Call at startup
// to fail fast when video handling would be unavailable.
func CheckFFprobeAvailable() error {
	path, err := exec.LookPath("ffprobe")
	if err != nil {
		return fmt.Errorf("ffprobe not found in PATH: install FFmpeg to enable video handling")
	}
	log.Debug().Str("path", path).Msg("ffprobe found")
	return nil
}

// ffprobeOutput is the subset of ffprobe's JSON document consumed here.
type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

// ProbeVideo extracts duration and dimensions from a video file via ffprobe.
func ProbeVideo(path string) (*VideoInfo, error) {
	ffprobePath, err := exec.LookPath("ffprobe")
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found in PATH: %w", err)
	}

	cmd := exec.Command(ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	var probe ffprobeOutput
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &VideoInfo{}
	if probe.Format.Duration != "" {
		if dur, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
			info.DurationSeconds = int(dur)
		}
	}
	for _, s := range probe.Streams {
		if s.CodecType == "video" && info.Width == 0 {
			info.Width = s.Width
			info.Height = s.Height
		}
	}

	if info.DurationSeconds <= 0 {
		return nil, fmt.Errorf("could not determine video duration for %s", path)
	}

	log.Debug().
		Str("path", path).
		Int("duration_seconds", info.DurationSeconds).
		Int("width", info.Width).
		Int("height", info.Height).
		Msg("Video probed via ffprobe")

	return info, nil
}

// probeDurationSeconds is the thin duration-only probe used by Probe.
func probeDurationSeconds(path string) (int, error) {
	info, err := ProbeVideo(path)
	if err != nil {
		return 0, err
	}
	return info.DurationSeconds, nil
}

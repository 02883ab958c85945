package filehandler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/fpang/gemini-media-chat/internal/metrics"
	"github.com/rs/zerolog/log"
)

// ErrTranscodeFailed wraps every ffmpeg failure so callers can classify it
// without matching on ffmpeg's stderr text.
var ErrTranscodeFailed = errors.New("transcode failed")

// MinVideoBitrateKbps is the floor for the size-targeting formula. Encoders
// reject rates below this, so the formula never returns less.
const MinVideoBitrateKbps = 100

// Encoder profile for size-capped transcodes.
const (
	compressVideoCodec = "libx264"
	compressAudioCodec = "aac"
	compressCRF        = "18"
	compressPreset     = "slow"
)

// TargetVideoBitrateKbps computes the video bitrate that fits a file of
// targetSizeMB megabytes given the clip duration and a fixed audio bitrate.
// The audio track's byte budget is subtracted from the total before deriving
// the video rate.
func TargetVideoBitrateKbps(targetSizeMB, durationSeconds, audioBitrateKb int) int {
	if durationSeconds <= 0 {
		return MinVideoBitrateKbps
	}
	targetBits := int64(targetSizeMB) * 1024 * 1024 * 8
	audioBits := int64(audioBitrateKb) * 1024 * int64(durationSeconds)
	kbps := (targetBits - audioBits) / (int64(durationSeconds) * 1024)
	if kbps < MinVideoBitrateKbps {
		return MinVideoBitrateKbps
	}
	return int(kbps)
}

// EvenWidthForHeight computes the output width that preserves the source
// aspect ratio at the requested height, rounded down to the nearest even
// number. Odd widths are rejected by chroma-subsampled encoders.
func EvenWidthForHeight(srcWidth, srcHeight, targetHeight int) int {
	if srcWidth <= 0 || srcHeight <= 0 {
		return 0
	}
	w := targetHeight * srcWidth / srcHeight
	return w - (w % 2)
}

// CompressOptions carries the constraints for a size-capped transcode.
type CompressOptions struct {
	TargetSizeMB   int
	AudioBitrateKb int
	TargetHeight   int
}

// CompressToTargetSize transcodes inputPath to outputPath at a bitrate chosen
// to land near TargetSizeMB, scaling to TargetHeight with an even
// aspect-preserving width. A non-zero ffmpeg exit is a hard failure wrapped in
// ErrTranscodeFailed; the oversized input is never passed through silently.
//
// If outputPath already exists the transcode is skipped and the existing file
// reused, keeping re-runs idempotent.
func CompressToTargetSize(ctx context.Context, inputPath, outputPath string, opts CompressOptions) error {
	if _, err := os.Stat(outputPath); err == nil {
		log.Info().Str("output", outputPath).Msg("Compressed output already exists, skipping transcode")
		return nil
	}

	info, err := ProbeVideo(inputPath)
	if err != nil {
		return err
	}

	bitrateKbps := TargetVideoBitrateKbps(opts.TargetSizeMB, info.DurationSeconds, opts.AudioBitrateKb)
	width := EvenWidthForHeight(info.Width, info.Height, opts.TargetHeight)

	log.Info().
		Str("input", inputPath).
		Str("output", outputPath).
		Int("target_size_mb", opts.TargetSizeMB).
		Int("video_bitrate_kbps", bitrateKbps).
		Int("width", width).
		Int("height", opts.TargetHeight).
		Msg("Starting size-capped transcode")

	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return fmt.Errorf("%w: ffmpeg not found in PATH", ErrTranscodeFailed)
	}

	args := buildCompressArgs(inputPath, outputPath, info, bitrateKbps, opts)

	start := time.Now()
	cmd := exec.CommandContext(ctx, ffmpegPath, args...)
	output, err := cmd.CombinedOutput()
	elapsed := time.Since(start)

	m := metrics.New("GeminiMediaChat").
		Dimension("Operation", "compress").
		Metric("TranscodeMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds)
	if err != nil {
		m.Count("TranscodeErrors").Flush()
		// Remove the partial output so a retry does not skip-if-exists it.
		os.Remove(outputPath)
		log.Error().
			Err(err).
			Str("input", inputPath).
			Str("ffmpeg_output", string(output)).
			Dur("duration", elapsed).
			Msg("ffmpeg transcode failed")
		return fmt.Errorf("%w: %v", ErrTranscodeFailed, err)
	}
	m.Count("Transcodes").Flush()

	outInfo, err := os.Stat(outputPath)
	if err != nil {
		return fmt.Errorf("failed to stat transcoded file: %w", err)
	}

	log.Info().
		Str("output", outputPath).
		Int64("output_size_bytes", outInfo.Size()).
		Dur("duration", elapsed).
		Msg("Size-capped transcode complete")

	return nil
}

// buildCompressArgs assembles the ffmpeg invocation for a size-capped transcode.
// maxrate 1.5x and bufsize 3x keep the rate controller near the target without
// starving complex scenes.
func buildCompressArgs(inputPath, outputPath string, info *VideoInfo, bitrateKbps int, opts CompressOptions) []string {
	args := []string{"-i", inputPath}

	if w := EvenWidthForHeight(info.Width, info.Height, opts.TargetHeight); w > 0 {
		args = append(args, "-vf", fmt.Sprintf("scale=%d:%d", w, opts.TargetHeight))
	}

	args = append(args,
		"-c:v", compressVideoCodec,
		"-b:v", fmt.Sprintf("%dk", bitrateKbps),
		"-maxrate", fmt.Sprintf("%dk", bitrateKbps*3/2),
		"-bufsize", fmt.Sprintf("%dk", bitrateKbps*3),
		"-crf", compressCRF,
		"-preset", compressPreset,
		"-c:a", compressAudioCodec,
		"-b:a", fmt.Sprintf("%dk", opts.AudioBitrateKb),
		"-y", outputPath,
	)
	return args
}

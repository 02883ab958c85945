package filehandler

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/fpang/gemini-media-chat/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Segment is one bounded slice of a video: [Start, End) in whole seconds,
// backed by the file at Path. A single-segment plan holding the original
// asset means no split was needed.
type Segment struct {
	Start int
	End   int
	Path  string
}

// Encoder profile for segment cutting: re-encode video so cuts land on exact
// boundaries, copy audio, strip container metadata.
const (
	splitVideoCodec = "libx264"
	splitCRF        = "22"
	splitPreset     = "medium"
)

// PlanParts decides how many segments a video of durationSeconds needs under
// a per-request budget of maxChunkMinutes. Returns -1 when no split is needed,
// otherwise the smallest parts >= 2 such that every part fits the budget.
// Deterministic: the same duration always yields the same answer, which the
// skip-if-exists segment reuse depends on.
func PlanParts(durationSeconds, maxChunkMinutes int) int {
	durationMinutes := (durationSeconds + 59) / 60
	if durationMinutes <= maxChunkMinutes {
		return -1
	}
	parts := 2
	for (durationMinutes+parts-1)/parts > maxChunkMinutes {
		parts++
	}
	return parts
}

// BuildSplitPlan computes the segment boundaries and deterministic output
// paths for cutting asset into parts pieces under outDir. Boundaries are
// contiguous and exhaustive; the last segment absorbs the rounding remainder.
func BuildSplitPlan(asset *MediaAsset, parts int, outDir string) []Segment {
	if parts < 2 {
		return []Segment{{Start: 0, End: asset.DurationSeconds, Path: asset.Path}}
	}

	base := strings.TrimSuffix(filepath.Base(asset.Path), filepath.Ext(asset.Path))
	ext := filepath.Ext(asset.Path)
	segDir := filepath.Join(outDir, base)

	segments := make([]Segment, 0, parts)
	for i := 0; i < parts; i++ {
		start := i * asset.DurationSeconds / parts
		end := (i + 1) * asset.DurationSeconds / parts
		if i == parts-1 {
			end = asset.DurationSeconds
		}
		name := fmt.Sprintf("%s_part%02d_%d-%d%s", base, i+1, start, end, ext)
		segments = append(segments, Segment{Start: start, End: end, Path: filepath.Join(segDir, name)})
	}
	return segments
}

// SplitPlanFor plans and, when needed, produces the segment files for a video
// asset. Segments whose output file already exists on disk are reused without
// re-invoking ffmpeg, so re-running against the same asset is idempotent.
func SplitPlanFor(ctx context.Context, asset *MediaAsset, maxChunkMinutes int, outDir string) ([]Segment, error) {
	parts := PlanParts(asset.DurationSeconds, maxChunkMinutes)
	plan := BuildSplitPlan(asset, parts, outDir)
	if parts < 2 {
		log.Debug().
			Str("path", asset.Path).
			Int("duration_seconds", asset.DurationSeconds).
			Msg("Video fits a single request, no split needed")
		return plan, nil
	}

	log.Info().
		Str("path", asset.Path).
		Int("duration_seconds", asset.DurationSeconds).
		Int("parts", parts).
		Msg("Splitting video into segments")

	if err := os.MkdirAll(filepath.Dir(plan[0].Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create segment directory: %w", err)
	}

	for i, seg := range plan {
		if _, err := os.Stat(seg.Path); err == nil {
			log.Debug().Str("segment", seg.Path).Msg("Segment file already exists, reusing")
			continue
		}
		if err := cutSegment(ctx, asset.Path, seg, i == len(plan)-1); err != nil {
			return nil, err
		}
		log.Info().
			Int("part", i+1).
			Int("of", parts).
			Int("start", seg.Start).
			Int("end", seg.End).
			Str("output", seg.Path).
			Msg("Segment produced")
	}

	return plan, nil
}

// cutSegment runs ffmpeg to produce one segment file. The last segment runs
// to end-of-stream instead of a fixed duration so it absorbs any container
// timing slack.
func cutSegment(ctx context.Context, inputPath string, seg Segment, last bool) error {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return fmt.Errorf("%w: ffmpeg not found in PATH", ErrTranscodeFailed)
	}

	args := []string{"-ss", fmt.Sprintf("%d", seg.Start), "-i", inputPath}
	if !last {
		args = append(args, "-t", fmt.Sprintf("%d", seg.End-seg.Start))
	}
	args = append(args,
		"-c:v", splitVideoCodec,
		"-crf", splitCRF,
		"-preset", splitPreset,
		"-c:a", "copy",
		"-map_metadata", "-1",
		"-avoid_negative_ts", "make_zero",
		"-y", seg.Path,
	)

	start := time.Now()
	cmd := exec.CommandContext(ctx, ffmpegPath, args...)
	output, err := cmd.CombinedOutput()
	elapsed := time.Since(start)

	m := metrics.New("GeminiMediaChat").
		Dimension("Operation", "split").
		Metric("SegmentCutMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds)
	if err != nil {
		m.Count("SegmentCutErrors").Flush()
		os.Remove(seg.Path)
		log.Error().
			Err(err).
			Str("segment", seg.Path).
			Str("ffmpeg_output", string(output)).
			Msg("ffmpeg segment cut failed")
		return fmt.Errorf("%w: %v", ErrTranscodeFailed, err)
	}
	m.Count("SegmentCuts").Flush()
	return nil
}

package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/fpang/gemini-media-chat/internal/metrics"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// UploadGate uploads one media segment and blocks, with bounded polling,
// until the remote marks it ready for use.
type UploadGate struct {
	remote       remote
	pollInterval time.Duration
	maxWait      time.Duration
	sleep        func(time.Duration)
}

// newUploadGate builds a gate over the given remote. The remote is per-key,
// so a gate is only valid for the lifetime of one session handle.
func newUploadGate(r remote, pollInterval, maxWait time.Duration) *UploadGate {
	return &UploadGate{
		remote:       r,
		pollInterval: pollInterval,
		maxWait:      maxWait,
		sleep:        time.Sleep,
	}
}

// Upload transfers the file and returns its remote handle, typically still in
// a pending/processing state.
func (g *UploadGate) Upload(ctx context.Context, path string) (*UploadedFile, error) {
	start := time.Now()
	file, err := g.remote.UploadFile(ctx, path)
	elapsed := time.Since(start)

	m := metrics.New("GeminiMediaChat").
		Dimension("Operation", "filesApiUpload").
		Metric("GeminiFilesApiUploadMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds)
	if err != nil {
		m.Count("GeminiApiErrors").Flush()
		return nil, err
	}
	m.Count("GeminiApiCalls").Flush()

	log.Info().
		Str("path", path).
		Str("name", file.Name).
		Dur("upload_duration", elapsed).
		Msg("Segment uploaded, awaiting processing")

	return file, nil
}

// AwaitActive polls the file's state at fixed intervals until it becomes
// ACTIVE. A FAILED state or an exhausted wait budget is terminal for the
// segment. The poll loop deliberately blocks the caller: media readiness is
// the serialization point for the whole segment.
func (g *UploadGate) AwaitActive(ctx context.Context, file *UploadedFile) error {
	state := file.State
	var waited time.Duration
	polls := 0

	for state == genai.FileStateProcessing || state == genai.FileStateUnspecified {
		if waited >= g.maxWait {
			return &ChatError{
				Kind:    KindMediaProcessingTimeout,
				Segment: -1,
				Err:     fmt.Errorf("file %s not active after %v (%d polls)", file.Name, g.maxWait, polls),
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		g.sleep(g.pollInterval)
		waited += g.pollInterval
		polls++

		next, err := g.remote.FileState(ctx, file.Name)
		if err != nil {
			return err
		}
		state = next

		log.Debug().
			Str("name", file.Name).
			Str("state", string(state)).
			Int("poll", polls).
			Msg("Polled remote file state")
	}

	if state == genai.FileStateFailed {
		return &ChatError{
			Kind:    KindMediaProcessingFailed,
			Segment: -1,
			Err:     fmt.Errorf("remote processing failed for file %s", file.Name),
		}
	}

	file.State = state
	log.Info().Str("name", file.Name).Int("polls", polls).Msg("Remote file active")
	return nil
}

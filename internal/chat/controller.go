package chat

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fpang/gemini-media-chat/internal/config"
	"github.com/fpang/gemini-media-chat/internal/filehandler"
	"github.com/fpang/gemini-media-chat/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// SendRequest is the immutable input to one controller invocation: a prompt,
// an optional media file, and optional per-request session overrides.
type SendRequest struct {
	Prompt    string
	MediaPath string

	SystemInstruction string
	ResponseSchema    *genai.Schema
	ResponseMIMEType  string
}

// Controller orchestrates a full multi-segment exchange: partition the media,
// upload each segment, send each turn, and recover from quota and transient
// failures per the retry policy. One invocation runs on a single goroutine;
// segment i+1 never starts before segment i's reply is in, because its prompt
// may embed that reply.
type Controller struct {
	sess *Session
	cfg  *config.Config

	// Test seams; production values set by NewController.
	plan     func(ctx context.Context, path string) ([]filehandler.Segment, error)
	compress func(ctx context.Context, inputPath, outputPath string) error
	sleep    func(time.Duration)
}

// NewController builds a Controller over an existing session and configuration.
func NewController(sess *Session, cfg *config.Config) *Controller {
	c := &Controller{sess: sess, cfg: cfg, sleep: time.Sleep}
	c.plan = c.planMedia
	c.compress = func(ctx context.Context, in, out string) error {
		return filehandler.CompressToTargetSize(ctx, in, out, filehandler.CompressOptions{
			TargetSizeMB:   cfg.TargetSizeMB,
			AudioBitrateKb: cfg.AudioBitrateKb,
			TargetHeight:   cfg.TargetHeight,
		})
	}
	return c
}

// Send runs one full exchange and returns the ordered per-segment replies, or
// a ChatError identifying the failing segment and error kind.
func (c *Controller) Send(ctx context.Context, req SendRequest) ([]string, error) {
	runID := uuid.NewString()
	logger := log.With().Str("run_id", runID).Logger()

	c.sess.ApplyOverrides(req.SystemInstruction, req.ResponseSchema, req.ResponseMIMEType)

	segments, err := c.plan(ctx, req.MediaPath)
	if err != nil {
		return nil, classified(err, Classify(err), -1)
	}
	n := len(segments)

	logger.Info().
		Str("media", req.MediaPath).
		Int("segments", n).
		Bool("thread_replies", c.cfg.ThreadReplies).
		Msg("Starting exchange")

	var replies []string
	rotations := 0
	transientRetried := false
	sessionFresh := false

	for i := 0; i < n; {
		// Invocation-level cancellation is honored between segments.
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Multi-segment exchanges get a fresh session (and a clean remote
		// file namespace) per segment; single-segment ones reuse a live one.
		// A session just rebuilt by a credential rotation is not rebuilt again.
		if (!c.sess.Ready() || n > 1) && !sessionFresh {
			if err := c.reinit(ctx, n); err != nil {
				return nil, classified(err, KindSessionInit, i)
			}
		}
		sessionFresh = false

		reply, err := c.runSegment(ctx, req, segments[i], i, n, replies)
		if err == nil {
			replies = append(replies, reply)
			transientRetried = false
			i++
			continue
		}

		switch kind := Classify(err); kind {
		case KindQuotaExhausted:
			rotations++
			logger.Warn().Int("segment", i).Int("rotations", rotations).
				Msg("Quota exhausted, rotating API credential")
			metrics.New("GeminiMediaChat").Count("CredentialRotations").Flush()
			if initErr := c.reinit(ctx, n); initErr != nil {
				return nil, classified(initErr, KindSessionInit, i)
			}
			sessionFresh = true

		case KindTransientUnavailable:
			if transientRetried {
				// Second consecutive occurrence for this segment: escalate
				// rather than mask a persistent outage.
				logger.Error().Int("segment", i).Msg("Service still unavailable after retry")
				return nil, classified(err, kind, i)
			}
			transientRetried = true
			logger.Warn().Int("segment", i).Dur("backoff", c.cfg.RetryBackoff).
				Msg("Service unavailable, backing off before retry")
			metrics.New("GeminiMediaChat").Count("TransientRetries").Flush()
			c.sleep(c.cfg.RetryBackoff)

		default:
			logger.Error().Err(err).Int("segment", i).Stringer("kind", kind).
				Msg("Exchange failed")
			return nil, classified(err, kind, i)
		}
	}

	logger.Info().Int("replies", len(replies)).Msg("Exchange complete")
	return replies, nil
}

// reinit rotates to the next credential and opens a fresh chat handle. For
// multi-segment exchanges the previous uploads are best-effort deleted first,
// so each segment works in a clean remote file namespace.
func (c *Controller) reinit(ctx context.Context, n int) error {
	if err := c.sess.Initialize(ctx); err != nil {
		return err
	}
	if n > 1 {
		c.sess.DeleteRemoteFiles(ctx)
	}
	return nil
}

// runSegment drives one segment end to end: prepare and upload the media,
// then send the turn. The session is already initialized by the caller.
func (c *Controller) runSegment(ctx context.Context, req SendRequest, seg filehandler.Segment, i, n int, prev []string) (string, error) {
	prompt := req.Prompt
	if n > 1 {
		prompt = fmt.Sprintf("%s Part %d of %d", req.Prompt, i+1, n)
		if c.cfg.ThreadReplies && len(prev) > 0 {
			prompt += "\nprevious output: " + prev[len(prev)-1]
		}
	}

	parts := []genai.Part{{Text: prompt}}

	if seg.Path != "" {
		path, err := c.enforceSizeCeiling(ctx, seg.Path)
		if err != nil {
			return "", err
		}

		gate := newUploadGate(c.sess.remote, c.cfg.UploadPollInterval, c.cfg.UploadMaxWait)
		file, err := gate.Upload(ctx, path)
		if err != nil {
			return "", err
		}
		if err := gate.AwaitActive(ctx, file); err != nil {
			return "", err
		}
		parts = append(parts, genai.Part{
			FileData: &genai.FileData{FileURI: file.URI, MIMEType: file.MIMEType},
		})
	}

	return c.sess.SendTurn(ctx, parts, c.cfg.SendTimeout)
}

// enforceSizeCeiling transcodes path down to the target size when it exceeds
// the hard per-file ceiling, returning the path to upload.
func (c *Controller) enforceSizeCeiling(ctx context.Context, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat segment file: %w", err)
	}
	if info.Size() <= c.cfg.SizeCeilingBytes {
		return path, nil
	}

	out := compressedPathFor(path, c.cfg.TempOutput)
	log.Warn().
		Str("path", path).
		Int64("size_bytes", info.Size()).
		Int64("ceiling_bytes", c.cfg.SizeCeilingBytes).
		Str("output", out).
		Msg("Segment exceeds size ceiling, transcoding to target size")

	if err := c.compress(ctx, path, out); err != nil {
		return "", err
	}
	return out, nil
}

// planMedia classifies the media file and produces its segment plan.
func (c *Controller) planMedia(ctx context.Context, path string) ([]filehandler.Segment, error) {
	if path == "" {
		// Text-only exchange: one segment, no file.
		return []filehandler.Segment{{}}, nil
	}

	asset, err := filehandler.Probe(path)
	if err != nil {
		return nil, err
	}

	switch asset.Kind {
	case filehandler.KindImage:
		processed, err := filehandler.PreprocessImage(asset.Path, c.cfg.TempOutput)
		if err != nil {
			return nil, err
		}
		return []filehandler.Segment{{Path: processed}}, nil

	case filehandler.KindVideo:
		return filehandler.SplitPlanFor(ctx, asset, c.cfg.MaxChunkMinutes, c.cfg.TempOutput)

	default:
		// Unrecognized types are passed through untouched as one segment.
		return []filehandler.Segment{{Path: asset.Path}}, nil
	}
}

// CleanupRemoteFiles initializes a session if needed and best-effort deletes
// every remote file stored for the current credential.
func (c *Controller) CleanupRemoteFiles(ctx context.Context) error {
	if !c.sess.Ready() {
		if err := c.sess.Initialize(ctx); err != nil {
			return err
		}
	}
	c.sess.DeleteRemoteFiles(ctx)
	return nil
}

// compressedPathFor names the size-capped transcode output deterministically
// from the source, so re-runs reuse finished work.
func compressedPathFor(path, outDir string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return filepath.Join(outDir, base, base+"_compressed"+filepath.Ext(path))
}
